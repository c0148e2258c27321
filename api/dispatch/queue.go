package dispatch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrQueueClosed is returned by Push and Pop once the queue is closed and drained.
	ErrQueueClosed = errors.New("request queue is closed")
	// ErrQueueFull is returned by Push when a bounded queue is at capacity.
	ErrQueueFull = errors.New("request queue is full")
)

type jobState int

const (
	jobPending jobState = iota
	jobClaimed
	jobAbandoned
)

// Job is one accepted HTTP exchange waiting for a worker.
type Job struct {
	ID       string
	W        http.ResponseWriter
	R        *http.Request
	Enqueued time.Time

	mu        sync.Mutex
	state     jobState
	responded bool
	done      chan struct{}
	once      sync.Once
}

// NewJob wraps an exchange. The acceptor must not touch w after pushing the
// job until Done is closed.
func NewJob(w http.ResponseWriter, r *http.Request) *Job {
	return &Job{
		ID:       uuid.NewString(),
		W:        w,
		R:        r,
		Enqueued: time.Now(),
		done:     make(chan struct{}),
	}
}

// Done is closed once a worker has answered or skipped the job.
func (j *Job) Done() <-chan struct{} { return j.done }

func (j *Job) finish() { j.once.Do(func() { close(j.done) }) }

// claim hands the job to a worker. It fails if the acceptor gave up on it.
func (j *Job) claim() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != jobPending {
		return false
	}
	j.state = jobClaimed
	return true
}

// abandon withdraws a job that no worker has claimed yet. It reports false
// when a worker already owns the job, in which case the caller must wait for
// Done.
func (j *Job) abandon() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == jobClaimed {
		return false
	}
	j.state = jobAbandoned
	return true
}

func (j *Job) markResponded() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.responded {
		return false
	}
	j.responded = true
	return true
}

// Queue is the FIFO of pending jobs shared by the acceptor and the workers.
type Queue struct {
	mu       sync.Mutex
	jobs     []*Job
	capacity int
	closed   bool
	// signal holds at most one wake-up; a woken Pop passes it on while jobs remain.
	signal chan struct{}
}

// NewQueue creates a queue. capacity <= 0 means unbounded.
func NewQueue(capacity int) *Queue {
	return &Queue{
		capacity: capacity,
		signal:   make(chan struct{}, 1),
	}
}

func (q *Queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Push appends a job.
func (q *Queue) Push(j *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if q.capacity > 0 && len(q.jobs) >= q.capacity {
		return ErrQueueFull
	}
	q.jobs = append(q.jobs, j)
	q.wake()
	return nil
}

// Pop removes the oldest job, blocking until one is available, ctx is done, or
// the queue is closed and empty. A done ctx wins over pending jobs.
func (q *Queue) Pop(ctx context.Context) (*Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q.mu.Lock()
		if len(q.jobs) > 0 {
			j := q.jobs[0]
			q.jobs[0] = nil
			q.jobs = q.jobs[1:]
			if len(q.jobs) > 0 && !q.closed {
				q.wake()
			}
			q.mu.Unlock()
			return j, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.signal:
		}
	}
}

// Len returns the number of pending jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Drain removes and returns every pending job.
func (q *Queue) Drain() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	jobs := q.jobs
	q.jobs = nil
	return jobs
}

// Close rejects further pushes and wakes every waiting Pop. Jobs already
// queued can still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
