// Package api wires the configuration, database, worker pool and routers into
// one server.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/api/dispatch"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/api/routes"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/config"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/core"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/tables"
)

// ShutdownTimeout bounds the graceful shutdown after a signal.
const ShutdownTimeout = 30 * time.Second

// Server is the running API: a public listener feeding the worker pool and an
// optional admin listener.
type Server struct {
	cfg      *config.Config
	log      logr.Logger
	db       *db.DB
	registry *dispatch.Registry
	queue    *dispatch.Queue
	pool     *dispatch.Pool

	public    *http.Server
	admin     *http.Server
	publicLn  net.Listener
	adminLn   net.Listener
	serveErrs chan error
}

// NewServer opens the database, creates missing tables and registers every
// request type. Nothing listens until Start.
func NewServer(ctx context.Context, cfg *config.Config, log logr.Logger) (*Server, error) {
	openCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseSettings.Timeout())
	defer cancel()

	workers := cfg.PerformanceSettings.WorkerThreadCount
	database, err := db.NewDB(openCtx, db.Options{
		Driver:   cfg.DatabaseSettings.Driver,
		DSN:      cfg.DatabaseSettings.DSN,
		MaxConns: workers + 2,
		Logger:   log.WithName("db"),
	})
	if err != nil {
		return nil, fmt.Errorf("create db: %w", err)
	}
	if err := tables.Init(openCtx, database); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	registry := dispatch.NewRegistry()
	core.RegisterAll(registry)
	registry.Freeze()

	queue := dispatch.NewQueue(cfg.PerformanceSettings.QueueCapacity)
	pipeline := dispatch.NewPipeline(registry, cfg)
	pool := dispatch.NewPool(database, queue, pipeline, dispatch.PoolOptions{
		Workers:          workers,
		LivenessInterval: cfg.PerformanceSettings.Liveness(),
	}, log.WithName("pool"))

	s := &Server{
		cfg:       cfg,
		log:       log,
		db:        database,
		registry:  registry,
		queue:     queue,
		pool:      pool,
		serveErrs: make(chan error, 2),
	}
	s.public = &http.Server{
		Addr:    cfg.ConnectionSettings.Address,
		Handler: routes.Public(dispatch.NewDispatcher(queue, log.WithName("dispatcher"))),
	}
	if a := cfg.ConnectionSettings.AdminAddress; a != "" && a != cfg.ConnectionSettings.Address {
		s.admin = &http.Server{
			Addr:    cfg.ConnectionSettings.AdminAddress,
			Handler: routes.Admin(pool, database),
		}
	}
	return s, nil
}

// Start launches the workers and both listeners. Serve errors are reported on
// Errors.
func (s *Server) Start(ctx context.Context) error {
	if err := s.pool.Start(ctx); err != nil {
		return fmt.Errorf("start pool: %w", err)
	}

	ln, err := net.Listen("tcp", s.public.Addr)
	if err != nil {
		s.pool.Stop()
		return fmt.Errorf("listen %s: %w", s.public.Addr, err)
	}
	s.publicLn = ln
	if s.admin != nil {
		aln, err := net.Listen("tcp", s.admin.Addr)
		if err != nil {
			ln.Close()
			s.pool.Stop()
			return fmt.Errorf("listen %s: %w", s.admin.Addr, err)
		}
		s.adminLn = aln
		go s.serve(s.admin, aln)
		s.log.Info("Admin router listening", "address", aln.Addr().String())
	}
	go s.serve(s.public, ln)
	s.log.Info("Server listening", "address", ln.Addr().String(),
		"workers", s.cfg.PerformanceSettings.WorkerThreadCount,
		"requestTypes", len(s.registry.Names()))
	return nil
}

func (s *Server) serve(srv *http.Server, ln net.Listener) {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.serveErrs <- err
	}
}

// Errors delivers listener failures after Start.
func (s *Server) Errors() <-chan error { return s.serveErrs }

// Stop stops accepting, lets the workers answer what is queued and closes the
// database.
func (s *Server) Stop(ctx context.Context) error {
	var errs []error
	if s.admin != nil {
		if err := s.admin.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown admin: %w", err))
		}
	}
	// Shutdown waits for handlers, which wait for workers, so stop the pool
	// alongside it.
	stopped := make(chan struct{})
	go func() {
		s.pool.Stop()
		close(stopped)
	}()
	if err := s.public.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown: %w", err))
	}
	<-stopped
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close db: %w", err))
	}
	return errors.Join(errs...)
}

// PublicAddr is the address the public listener is bound to.
func (s *Server) PublicAddr() string {
	if s.publicLn == nil {
		return s.public.Addr
	}
	return s.publicLn.Addr().String()
}

// AdminAddr is the address of the admin listener, or "" when disabled.
func (s *Server) AdminAddr() string {
	switch {
	case s.adminLn != nil:
		return s.adminLn.Addr().String()
	case s.admin != nil:
		return s.admin.Addr
	}
	return ""
}

// Pool returns the worker pool.
func (s *Server) Pool() *dispatch.Pool { return s.pool }

// DB returns the database handle.
func (s *Server) DB() *db.DB { return s.db }

// Console runs an operator console until it returns. It gets the pool and the
// database, and its return ends the server.
type Console func(ctx context.Context, ops *dispatch.Pool, src db.Source) error

// StartServer runs the server until SIGINT or SIGTERM, a listener error, or
// the console returning.
func StartServer(cfg *config.Config, log logr.Logger, console Console) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server, err := NewServer(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := server.Start(ctx); err != nil {
		server.db.Close()
		return err
	}

	var runErr error
	consoleDone := make(chan error, 1)
	if console != nil {
		go func() { consoleDone <- console(ctx, server.pool, server.db) }()
	}

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received, stopping server")
	case runErr = <-server.Errors():
		log.Error(runErr, "Server error")
	case runErr = <-consoleDone:
		log.Info("Console closed, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error(err, "Error during shutdown")
		return errors.Join(runErr, err)
	}
	log.Info("Server stopped gracefully")
	return runErr
}
