// Package dispatch hands accepted HTTP requests to a fixed pool of worker
// goroutines through a shared queue. Each worker owns one database connection
// and runs the request pipeline: transport checks, database check, routing by
// requestType, authentication, authorization and the registered handler.
package dispatch

import (
	"net/http"

	"github.com/go-logr/logr"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/logging"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/types/api"
)

// Dispatcher is the acceptor side: an http.Handler that enqueues every request
// and waits for a worker to answer it.
type Dispatcher struct {
	queue *Queue
	log   logr.Logger
}

func NewDispatcher(queue *Queue, log logr.Logger) *Dispatcher {
	return &Dispatcher{queue: queue, log: log}
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	job := NewJob(w, r)
	if err := d.queue.Push(job); err != nil {
		d.log.Info("Rejecting request", "reason", err.Error())
		api.ServerError(err.Error()).SendJSON(w, http.StatusServiceUnavailable)
		return
	}
	d.log.V(logging.TRACE).Info("Enqueued request", "requestId", job.ID, "remote", r.RemoteAddr)

	select {
	case <-job.Done():
	case <-r.Context().Done():
		// A worker that already claimed the job still owns w.
		if !job.abandon() {
			<-job.Done()
		}
	}
}
