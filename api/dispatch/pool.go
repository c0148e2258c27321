package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/logging"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/types/api"
)

// LivenessConn is the name of the pool's own monitoring connection.
const LivenessConn = "Liveness"

// PoolOptions configures NewPool.
type PoolOptions struct {
	Workers          int
	LivenessInterval time.Duration
}

// PingResult is the outcome of pinging one connection.
type PingResult struct {
	Name string        `json:"name"`
	RTT  time.Duration `json:"rtt"`
	Err  error         `json:"-"`
}

// WorkerStatus is a snapshot of one worker.
type WorkerStatus struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Alive     bool   `json:"alive"`
	Processed int64  `json:"processed"`
	Conn      string `json:"conn"`
}

// Pool owns the workers that drain the request queue, plus a liveness
// connection pinged in the background.
type Pool struct {
	db       *db.DB
	queue    *Queue
	pipeline *Pipeline
	opts     PoolOptions
	log      logr.Logger

	mu       sync.Mutex
	workers  []*Worker
	ctx      context.Context
	cancel   context.CancelFunc
	liveness *db.Conn
	healthy  atomic.Bool
	monitor  sync.WaitGroup
}

func NewPool(database *db.DB, queue *Queue, pipeline *Pipeline, opts PoolOptions, log logr.Logger) *Pool {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.LivenessInterval <= 0 {
		opts.LivenessInterval = 10 * time.Second
	}
	return &Pool{
		db:       database,
		queue:    queue,
		pipeline: pipeline,
		opts:     opts,
		log:      log,
	}
}

// Start opens one connection per worker and launches them along with the
// liveness monitor.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return errors.New("pool already started")
	}

	p.liveness = p.db.Conn(LivenessConn)
	if err := p.liveness.Open(ctx); err != nil {
		return err
	}
	p.healthy.Store(true)

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.workers = make([]*Worker, p.opts.Workers)
	for i := range p.workers {
		w, err := p.spawn(ctx, i)
		if err != nil {
			p.cancel()
			p.cancel = nil
			for _, started := range p.workers[:i] {
				started.Stop()
			}
			p.liveness.Close()
			return err
		}
		p.workers[i] = w
	}

	p.monitor.Add(1)
	go p.watch()
	p.log.Info("Worker pool started", "workers", len(p.workers))
	return nil
}

func (p *Pool) spawn(ctx context.Context, id int) (*Worker, error) {
	conn := p.db.Conn(WorkerName(id))
	if err := conn.Open(ctx); err != nil {
		return nil, fmt.Errorf("start %s: %w", WorkerName(id), err)
	}
	w := newWorker(id, conn, p.queue, p.pipeline, p.log)
	w.start(p.ctx)
	return w, nil
}

// Stop cancels every worker and waits for their in-flight jobs. Requests still
// queued are answered with 503 and the queue is closed.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.cancel == nil {
		p.mu.Unlock()
		return
	}
	p.cancel()
	p.cancel = nil
	workers := append([]*Worker(nil), p.workers...)
	p.mu.Unlock()

	for _, w := range workers {
		<-w.Done()
	}
	p.monitor.Wait()
	p.liveness.Close()

	// Nobody is left to serve what is still queued.
	p.queue.Close()
	for _, j := range p.queue.Drain() {
		if j.claim() && j.markResponded() {
			api.ServerError("server is shutting down").SendJSON(j.W, http.StatusServiceUnavailable)
		}
		j.finish()
	}
	p.log.Info("Worker pool stopped")
}

// Revive replaces every worker that is no longer alive, or whose connection
// was marked broken, with a fresh worker of the same name.
func (p *Pool) Revive(ctx context.Context) (restarted, attempted int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return 0, 0
	}
	for i, w := range p.workers {
		broken := w.ConnState() == db.Broken
		if w.IsAlive() && !broken {
			continue
		}
		attempted++
		if w.IsAlive() {
			w.Stop()
		}
		replacement, err := p.spawn(ctx, i)
		if err != nil {
			p.log.Error(err, "Failed to revive worker", "worker", w.Name())
			continue
		}
		p.workers[i] = replacement
		restarted++
		p.log.Info("Revived worker", "worker", w.Name(), "previousState", w.State().String())
	}
	return restarted, attempted
}

// Workers returns the current workers.
func (p *Pool) Workers() []*Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Worker(nil), p.workers...)
}

// Ping measures every worker connection and the liveness connection.
func (p *Pool) Ping(ctx context.Context) []PingResult {
	workers := p.Workers()
	out := make([]PingResult, 0, len(workers)+1)
	for _, w := range workers {
		rtt, err := w.Ping(ctx)
		out = append(out, PingResult{Name: w.Name(), RTT: rtt, Err: err})
	}
	if p.liveness != nil {
		rtt, err := p.liveness.Ping(ctx)
		out = append(out, PingResult{Name: LivenessConn, RTT: rtt, Err: err})
	}
	return out
}

// Status snapshots every worker.
func (p *Pool) Status() []WorkerStatus {
	workers := p.Workers()
	out := make([]WorkerStatus, len(workers))
	for i, w := range workers {
		out[i] = WorkerStatus{
			Name:      w.Name(),
			State:     w.State().String(),
			Alive:     w.IsAlive(),
			Processed: w.Processed(),
			Conn:      w.ConnState().String(),
		}
	}
	return out
}

// Alive counts the live workers.
func (p *Pool) Alive() int {
	n := 0
	for _, w := range p.Workers() {
		if w.IsAlive() {
			n++
		}
	}
	return n
}

// Healthy reports the result of the latest liveness check.
func (p *Pool) Healthy() bool { return p.healthy.Load() }

// QueueLen is the number of requests waiting for a worker.
func (p *Pool) QueueLen() int { return p.queue.Len() }

func (p *Pool) watch() {
	defer p.monitor.Done()
	ticker := time.NewTicker(p.opts.LivenessInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.checkLiveness()
		}
	}
}

func (p *Pool) checkLiveness() {
	ctx, cancel := context.WithTimeout(p.ctx, p.opts.LivenessInterval)
	defer cancel()
	_, err := p.liveness.Ping(ctx)
	if err != nil {
		if rerr := p.liveness.Reconnect(ctx); rerr == nil {
			_, err = p.liveness.Ping(ctx)
		}
	}
	was := p.healthy.Swap(err == nil)
	switch {
	case err != nil && was:
		p.log.Error(err, "Database became unreachable")
	case err == nil && !was:
		p.log.Info("Database reachable again")
	default:
		p.log.V(logging.TRACE).Info("Liveness check", "healthy", err == nil)
	}
}
