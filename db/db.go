package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/condition"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/schema"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/logging"
)

// DB is the process-wide handle on the database. Workers pin their own
// connection from it with Conn.
type DB struct {
	pool    *sql.DB
	driver  string
	dialect condition.Dialect
	log     logr.Logger
}

// Options configures NewDB.
type Options struct {
	Driver string
	DSN    string
	// MaxConns caps open connections; one per worker plus the liveness connection.
	MaxConns int
	Logger   logr.Logger
}

// NewDB opens the database pool and checks that it answers.
func NewDB(ctx context.Context, opts Options) (*DB, error) {
	dialect, err := condition.ForDriver(opts.Driver)
	if err != nil {
		return nil, err
	}
	pool, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}
	if opts.MaxConns > 0 {
		pool.SetMaxOpenConns(opts.MaxConns)
		pool.SetMaxIdleConns(opts.MaxConns)
	}
	pool.SetConnMaxIdleTime(0)

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Driver, err)
	}

	return &DB{
		pool:    pool,
		driver:  opts.Driver,
		dialect: dialect,
		log:     opts.Logger,
	}, nil
}

// Dialect returns the SQL dialect of the underlying driver.
func (db *DB) Dialect() condition.Dialect { return db.dialect }

// Driver returns the database/sql driver name.
func (db *DB) Driver() string { return db.driver }

// Conn returns a new wrapper that pins one connection once opened.
func (db *DB) Conn(name string) *Conn {
	return &Conn{
		db:   db,
		name: name,
		log:  db.log.WithValues("conn", name),
	}
}

// Close closes every connection in the pool.
func (db *DB) Close() error {
	return db.pool.Close()
}

// Ping checks the pool and returns the round trip time.
func (db *DB) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	err := db.pool.PingContext(ctx)
	return time.Since(start), err
}

// Executor returns an executor that runs statements on the shared pool. It
// is meant for setup and maintenance code, not for workers.
func (db *DB) Executor() (*Executor, error) {
	return &Executor{q: db.pool, dialect: db.dialect, log: db.log}, nil
}

// CreateTables creates every table that does not exist yet.
func (db *DB) CreateTables(ctx context.Context, tables ...*schema.Table) error {
	for _, t := range tables {
		for _, stmt := range createTable(db.dialect, t) {
			if _, err := db.pool.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create table %s: %w", t.Name, err)
			}
		}
		db.log.V(logging.VERBOSE).Info("Ensured table", "table", t.Name)
	}
	return nil
}

// DropTable removes a table if it exists.
func (db *DB) DropTable(ctx context.Context, t *schema.Table) error {
	_, err := db.pool.ExecContext(ctx, "DROP TABLE IF EXISTS "+db.dialect.QuoteIdent(t.Name))
	return err
}
