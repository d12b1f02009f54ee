// Package dbpool provides a fixed-capacity pool of SQLite connections with
// asynchronous acquisition.
//
// A weighted semaphore gates entry; the connections themselves live in a
// bounded channel. A handle holds its permit for its whole lifetime and puts
// the connection back on the channel before releasing the permit, so a
// successful semaphore acquisition guarantees a connection is available.
package dbpool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	_ "modernc.org/sqlite"
)

// Pool errors.
var (
	// ErrTimeout is returned by AcquireTimeout when no connection became
	// available within the deadline.
	ErrTimeout = errors.New("timeout acquiring connection")
	// ErrWouldBlock is returned by TryAcquire when no permits remain.
	ErrWouldBlock = errors.New("no connections available")
	// ErrClosed is returned by every acquire after Close.
	ErrClosed = errors.New("pool is closed")
)

// connPragmas are applied to every pooled connection.
var connPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// Pool is a fixed-capacity connection pool. The zero value is not usable;
// construct with New.
type Pool struct {
	db       *sql.DB
	sem      *semaphore.Weighted
	conns    chan *sql.Conn
	capacity int
	closed   atomic.Bool
}

// Stats is a point-in-time snapshot of pool occupancy.
type Stats struct {
	Capacity  int
	Available int
	InUse     int
}

// New opens capacity connections against the database at path and returns a
// ready pool. Construction fails if any single connection fails to open.
func New(ctx context.Context, path string, capacity int) (*Pool, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("pool capacity must be positive, got %d", capacity)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	db.SetMaxOpenConns(capacity)
	db.SetConnMaxLifetime(0)

	p := &Pool{
		db:       db,
		sem:      semaphore.NewWeighted(int64(capacity)),
		conns:    make(chan *sql.Conn, capacity),
		capacity: capacity,
	}

	for i := 0; i < capacity; i++ {
		conn, err := db.Conn(ctx)
		if err != nil {
			p.Close()

			return nil, fmt.Errorf("opening pooled connection %d: %w", i, err)
		}

		for _, pragma := range connPragmas {
			if _, err := conn.ExecContext(ctx, pragma); err != nil {
				conn.Close()
				p.Close()

				return nil, fmt.Errorf("applying %q: %w", pragma, err)
			}
		}

		p.conns <- conn
	}

	return p, nil
}

// Acquire suspends until a connection is available. The handle must be
// released exactly once; Release is infallible.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquiring pool permit: %w", err)
	}

	if p.closed.Load() {
		p.sem.Release(1)

		return nil, ErrClosed
	}

	// The permit guarantees a connection is queued.
	conn := <-p.conns

	return &Handle{conn: conn, pool: p}, nil
}

// AcquireTimeout is Acquire bounded by d.
func (p *Pool) AcquireTimeout(ctx context.Context, d time.Duration) (*Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	h, err := p.Acquire(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, ErrTimeout
	}

	return h, err
}

// TryAcquire returns a connection immediately or ErrWouldBlock.
func (p *Pool) TryAcquire() (*Handle, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}

	if !p.sem.TryAcquire(1) {
		return nil, ErrWouldBlock
	}

	conn := <-p.conns

	return &Handle{conn: conn, pool: p}, nil
}

// Stats reports capacity, available and in-use counts. At steady state
// Available + InUse == Capacity; a shortfall with no outstanding handles
// indicates a lost connection.
func (p *Pool) Stats() Stats {
	available := len(p.conns)

	return Stats{
		Capacity:  p.capacity,
		Available: available,
		InUse:     p.capacity - available,
	}
}

// HealthCheck verifies connectivity by running a trivial query.
func (p *Pool) HealthCheck(ctx context.Context) error {
	h, err := p.AcquireTimeout(ctx, 2*time.Second)
	if err != nil {
		return err
	}
	defer h.Release()

	var one int
	if err := h.Conn().QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("health check query: %w", err)
	}

	return nil
}

// Close marks the pool closed, drains the queue and closes every connection.
// Outstanding handles are closed when released.
func (p *Pool) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	var firstErr error

	for {
		select {
		case conn := <-p.conns:
			if err := conn.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		default:
			if err := p.db.Close(); err != nil && firstErr == nil {
				firstErr = err
			}

			return firstErr
		}
	}
}

// Handle is a borrowed connection. It must be released exactly once;
// releasing returns the connection to the pool before freeing the permit.
type Handle struct {
	conn     *sql.Conn
	pool     *Pool
	released atomic.Bool
}

// Conn exposes the underlying connection.
func (h *Handle) Conn() *sql.Conn {
	return h.conn
}

// Release returns the connection to the pool. Safe to call more than once;
// only the first call has effect.
func (h *Handle) Release() {
	if h.released.Swap(true) {
		return
	}

	if h.pool.closed.Load() {
		h.conn.Close()
		h.pool.sem.Release(1)

		return
	}

	// Queue the connection first so the permit release below observes a
	// non-empty queue.
	h.pool.conns <- h.conn
	h.pool.sem.Release(1)
}
