package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/condition"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/schema"
)

// ErrConnClosed is returned when statements run on a closed Conn.
var ErrConnClosed = errors.New("database connection is closed")

// State is the lifecycle state of a Conn.
type State int

const (
	Closed State = iota
	Open
	Broken
)

func (s State) String() string {
	switch s {
	case Open:
		return "Open"
	case Broken:
		return "Broken"
	default:
		return "Closed"
	}
}

// Conn wraps one pinned database connection. It is owned by a single worker;
// the mutex only guards open/close against concurrent maintenance pings.
type Conn struct {
	db   *DB
	name string
	log  logr.Logger

	mu    sync.Mutex
	conn  *sql.Conn
	state State
}

// Open pins a connection from the pool.
func (c *Conn) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && c.state == Open {
		return nil
	}
	conn, err := c.db.pool.Conn(ctx)
	if err != nil {
		c.state = Broken
		return fmt.Errorf("open connection %s: %w", c.name, err)
	}
	c.conn = conn
	c.state = Open
	return nil
}

// Close returns the pinned connection. Closing twice is harmless.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Closed
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if errors.Is(err, sql.ErrConnDone) {
		return nil
	}
	return err
}

// Reconnect drops the current connection and pins a fresh one.
func (c *Conn) Reconnect(ctx context.Context) error {
	c.Close()
	return c.Open(ctx)
}

// MarkBroken flags the connection for replacement.
func (c *Conn) MarkBroken() {
	c.mu.Lock()
	c.state = Broken
	c.mu.Unlock()
}

// State returns the connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil && c.state == Open {
		return Closed
	}
	return c.state
}

// Name returns the name the connection was created with.
func (c *Conn) Name() string { return c.name }

// Dialect returns the dialect of the connection's database.
func (c *Conn) Dialect() condition.Dialect { return c.db.dialect }

// Condition returns an empty builder for this connection's dialect.
func (c *Conn) Condition() *condition.Builder { return condition.NewFor(c.db.dialect) }

func (c *Conn) current() (*sql.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.state == Closed {
		return nil, ErrConnClosed
	}
	return c.conn, nil
}

// Ping checks the connection. It never reports success for a closed Conn.
func (c *Conn) Ping(ctx context.Context) (time.Duration, error) {
	conn, err := c.current()
	if err != nil {
		return 0, err
	}
	start := time.Now()
	err = conn.PingContext(ctx)
	return time.Since(start), err
}

// Alive is Ping reduced to a boolean.
func (c *Conn) Alive(ctx context.Context) bool {
	_, err := c.Ping(ctx)
	return err == nil
}

// Executor returns an executor bound to the pinned connection.
func (c *Conn) Executor() (*Executor, error) {
	conn, err := c.current()
	if err != nil {
		return nil, err
	}
	return &Executor{q: conn, dialect: c.db.dialect, log: c.log}, nil
}

// Tx runs fn inside a transaction on the pinned connection. fn's error, or a
// failed commit, rolls the transaction back.
func (c *Conn) Tx(ctx context.Context, fn func(*Executor) error) (err error) {
	conn, err := c.current()
	if err != nil {
		return err
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
		}
	}()
	if err = fn(&Executor{q: tx, dialect: c.db.dialect, log: c.log}); err != nil {
		return err
	}
	return tx.Commit()
}

// Insert runs Executor.Insert on the pinned connection.
func (c *Conn) Insert(ctx context.Context, ent schema.Entity) (int64, error) {
	e, err := c.Executor()
	if err != nil {
		return 0, err
	}
	return e.Insert(ctx, ent)
}

// Update runs Executor.Update on the pinned connection.
func (c *Conn) Update(ctx context.Context, ent schema.Entity) (int64, error) {
	e, err := c.Executor()
	if err != nil {
		return 0, err
	}
	return e.Update(ctx, ent)
}

// Delete runs Executor.Delete on the pinned connection.
func (c *Conn) Delete(ctx context.Context, ent schema.Entity) (int64, error) {
	e, err := c.Executor()
	if err != nil {
		return 0, err
	}
	return e.Delete(ctx, ent)
}

// SelectRows runs Executor.SelectRows on the pinned connection.
func (c *Conn) SelectRows(ctx context.Context, t *schema.Table, columns []string, cond *condition.Builder, rng *Range) ([][]any, error) {
	e, err := c.Executor()
	if err != nil {
		return nil, err
	}
	return e.SelectRows(ctx, t, columns, cond, rng)
}

// Count runs Executor.Count on the pinned connection.
func (c *Conn) Count(ctx context.Context, t *schema.Table, cond *condition.Builder) (int64, error) {
	e, err := c.Executor()
	if err != nil {
		return 0, err
	}
	return e.Count(ctx, t, cond)
}
