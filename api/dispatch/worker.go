package dispatch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/logging"
)

// WorkerState is the lifecycle state of a worker goroutine.
type WorkerState int32

const (
	WorkerStarting WorkerState = iota
	WorkerIdle
	WorkerBusy
	WorkerStopped
	WorkerDead
)

func (s WorkerState) String() string {
	switch s {
	case WorkerStarting:
		return "starting"
	case WorkerIdle:
		return "idle"
	case WorkerBusy:
		return "busy"
	case WorkerStopped:
		return "stopped"
	case WorkerDead:
		return "dead"
	}
	return fmt.Sprintf("WorkerState(%d)", int32(s))
}

// Worker pops jobs from the queue and runs them through the pipeline on its
// own database connection.
type Worker struct {
	id       int
	name     string
	conn     *db.Conn
	queue    *Queue
	pipeline *Pipeline
	log      logr.Logger

	state     atomic.Int32
	processed atomic.Int64
	cancel    context.CancelFunc
	done      chan struct{}
}

// WorkerName is the name of the worker with the given slot index.
func WorkerName(id int) string { return fmt.Sprintf("RequestWorker%d", id) }

func newWorker(id int, conn *db.Conn, queue *Queue, pipeline *Pipeline, log logr.Logger) *Worker {
	name := WorkerName(id)
	w := &Worker{
		id:       id,
		name:     name,
		conn:     conn,
		queue:    queue,
		pipeline: pipeline,
		log:      log.WithValues("worker", name),
		done:     make(chan struct{}),
	}
	w.state.Store(int32(WorkerStarting))
	return w
}

func (w *Worker) ID() int            { return w.id }
func (w *Worker) Name() string       { return w.name }
func (w *Worker) State() WorkerState { return WorkerState(w.state.Load()) }
func (w *Worker) Processed() int64   { return w.processed.Load() }

// ConnState reports the state of the worker's database connection.
func (w *Worker) ConnState() db.State { return w.conn.State() }

// IsAlive reports whether the goroutine is still serving the queue.
func (w *Worker) IsAlive() bool {
	switch w.State() {
	case WorkerStopped, WorkerDead:
		return false
	}
	return true
}

// Ping measures the worker's connection.
func (w *Worker) Ping(ctx context.Context) (time.Duration, error) { return w.conn.Ping(ctx) }

func (w *Worker) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	w.cancel = cancel
	go w.run(ctx)
}

func (w *Worker) run(ctx context.Context) {
	exited := false
	defer func() {
		r := recover()
		if r != nil || !exited {
			w.state.Store(int32(WorkerDead))
			w.log.Error(fmt.Errorf("worker died: %v", r), "Worker terminated unexpectedly")
		} else {
			w.state.Store(int32(WorkerStopped))
			w.log.V(logging.VERBOSE).Info("Worker stopped")
		}
		w.conn.Close()
		close(w.done)
	}()

	w.log.V(logging.VERBOSE).Info("Worker started")
	for {
		w.state.Store(int32(WorkerIdle))
		job, err := w.queue.Pop(ctx)
		if err != nil {
			exited = true
			return
		}
		if !job.claim() {
			continue
		}
		w.state.Store(int32(WorkerBusy))
		w.pipeline.Process(w.conn, job, w.log)
		w.processed.Add(1)
	}
}

// Stop asks the worker to exit after its current job and waits for it.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	<-w.done
}

// Done is closed when the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }
