// Package server holds the admin endpoints that inspect and steer the worker
// pool.
package server

import (
	"context"

	"github.com/go-chi/chi/v5"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/api/dispatch"
)

// Operator is the part of the worker pool the admin endpoints use.
type Operator interface {
	Healthy() bool
	Alive() int
	QueueLen() int
	Status() []dispatch.WorkerStatus
	Ping(ctx context.Context) []dispatch.PingResult
	Revive(ctx context.Context) (restarted, attempted int)
}

// RegisterRoutes registers the pool endpoints under /admin.
func RegisterRoutes(r chi.Router, ops Operator) {
	r.Get("/status", HandleStatus(ops))
	r.Get("/status/stream", HandleStatusStream(ops, streamInterval))
	r.Get("/ping", HandlePing(ops))
	r.Post("/revive", HandleRevive(ops))
}
