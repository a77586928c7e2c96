package pgscope

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/pgscope/pgscope/internal/errs"
	"github.com/pgscope/pgscope/internal/render"
)

// Pool manages a lazily-initialized pgx connection pool over a single
// connection descriptor. All methods are safe for concurrent use from
// multiple goroutines; the first caller that needs a connection establishes
// the pool, and Close followed by another operation re-establishes it.
type Pool struct {
	connString string
	cfg        PoolConfig
	logger     zerolog.Logger

	maxConnLifetime   time.Duration
	maxConnIdleTime   time.Duration
	healthCheckPeriod time.Duration

	mu   sync.Mutex
	pool *pgxpool.Pool
}

// NewPool creates a Pool over connString. No connections are opened here:
// the pool is established by Init, or lazily by the first operation that
// needs a connection. Panics on invalid configuration. Zero-valued sizing
// fields take the package defaults.
func NewPool(connString string, cfg PoolConfig, logger zerolog.Logger) *Pool {
	if connString == "" {
		panic("pgscope: connString must be non-empty")
	}

	// Apply defaults for zero values
	if cfg.MinConns == 0 {
		cfg.MinConns = DefaultMinConns
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = DefaultMaxConns
	}
	if cfg.StatementTimeoutSeconds == 0 {
		cfg.StatementTimeoutSeconds = DefaultStatementTimeoutSeconds
	}

	if cfg.MinConns < 0 {
		panic("pgscope: pool.min_conns must not be negative")
	}
	if cfg.MaxConns < 0 {
		panic("pgscope: pool.max_conns must not be negative")
	}
	if cfg.MinConns > cfg.MaxConns {
		panic("pgscope: pool.min_conns must not exceed pool.max_conns")
	}
	if cfg.StatementTimeoutSeconds < 0 {
		panic("pgscope: pool.statement_timeout_seconds must not be negative")
	}

	p := &Pool{
		connString: connString,
		cfg:        cfg,
		logger:     logger,
	}

	// Parse pool duration strings
	if cfg.MaxConnLifetime != "" {
		d, err := time.ParseDuration(cfg.MaxConnLifetime)
		if err != nil {
			panic(fmt.Sprintf("pgscope: invalid pool.max_conn_lifetime %q: %v", cfg.MaxConnLifetime, err))
		}
		p.maxConnLifetime = d
	}
	if cfg.MaxConnIdleTime != "" {
		d, err := time.ParseDuration(cfg.MaxConnIdleTime)
		if err != nil {
			panic(fmt.Sprintf("pgscope: invalid pool.max_conn_idle_time %q: %v", cfg.MaxConnIdleTime, err))
		}
		p.maxConnIdleTime = d
	}
	if cfg.HealthCheckPeriod != "" {
		d, err := time.ParseDuration(cfg.HealthCheckPeriod)
		if err != nil {
			panic(fmt.Sprintf("pgscope: invalid pool.health_check_period %q: %v", cfg.HealthCheckPeriod, err))
		}
		p.healthCheckPeriod = d
	}

	return p
}

// Init establishes the pool against the connection descriptor and verifies
// the backend is reachable. Idempotent: calling Init on an initialized pool
// is a no-op. A malformed descriptor yields a configuration error, an
// unreachable backend a pool-init error.
func (p *Pool) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initLocked(ctx)
}

func (p *Pool) initLocked(ctx context.Context) error {
	if p.pool != nil {
		return nil
	}

	poolConfig, err := pgxpool.ParseConfig(p.connString)
	if err != nil {
		return errs.Wrap(errs.KindConfiguration, "failed to parse connection string", err)
	}

	poolConfig.MinConns = int32(p.cfg.MinConns)
	poolConfig.MaxConns = int32(p.cfg.MaxConns)
	poolConfig.MaxConnLifetime = p.maxConnLifetime
	poolConfig.MaxConnIdleTime = p.maxConnIdleTime
	poolConfig.HealthCheckPeriod = p.healthCheckPeriod
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	// The statement timeout is enforced by the backend for every statement
	// on the session, so a runaway query cannot hold a connection past it.
	timeoutMS := p.cfg.StatementTimeoutSeconds * 1000
	poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = strconv.Itoa(timeoutMS)

	if p.cfg.ReadOnly {
		poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if _, err := conn.Exec(ctx, "SET default_transaction_read_only = on"); err != nil {
				return fmt.Errorf("failed to SET default_transaction_read_only: %w", err)
			}
			return nil
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return errs.Wrap(errs.KindPoolInit, "failed to create connection pool", err)
	}

	// Fail fast when the backend is unreachable instead of deferring the
	// surprise to the first query.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return errs.Wrap(errs.KindPoolInit, "failed to connect to database", err)
	}

	p.pool = pool
	p.logger.Info().
		Int("min_conns", p.cfg.MinConns).
		Int("max_conns", p.cfg.MaxConns).
		Int("statement_timeout_ms", timeoutMS).
		Bool("read_only", p.cfg.ReadOnly).
		Msg("connection pool initialized")
	return nil
}

// ensure returns the live pool, initializing it first when needed.
func (p *Pool) ensure(ctx context.Context) (*pgxpool.Pool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.initLocked(ctx); err != nil {
		return nil, err
	}
	return p.pool, nil
}

// Close closes all pooled connections and releases the pool. Safe to call
// when the pool was never initialized. A subsequent operation lazily
// re-initializes rather than failing permanently. Accepts context for API
// forward-compatibility, but does not currently use it: pgxpool.Pool.Close()
// does not support context-based shutdown.
func (p *Pool) Close(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool == nil {
		return
	}
	p.pool.Close()
	p.pool = nil
	p.logger.Info().Msg("connection pool closed")
}

// WithConn runs fn with a connection acquired from the pool, initializing
// the pool first when needed. The connection is returned to the pool on
// every exit path, including panics and context cancellation. Blocking for
// a free connection ends when ctx does, classified as a pool timeout.
func (p *Pool) WithConn(ctx context.Context, fn func(ctx context.Context, conn *pgxpool.Conn) error) error {
	pool, err := p.ensure(ctx)
	if err != nil {
		return err
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return errs.Wrap(errs.KindPoolTimeout, "no connection became available", err)
		}
		return errs.Wrap(errs.KindQueryExecution, "failed to acquire connection", err)
	}
	defer conn.Release()
	return fn(ctx, conn)
}

// Query executes a parameterized statement and returns the row set. The
// caller must close the returned rows; closing hands the underlying
// connection back to the pool. User-influenced values must arrive through
// args, never interpolated into sql.
func (p *Pool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	pool, err := p.ensure(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, p.classify(ctx, "failed to execute query", err)
	}
	return rows, nil
}

// Exec executes a statement that returns no rows and reports the resulting
// command tag.
func (p *Pool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	var tag pgconn.CommandTag
	err := p.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var execErr error
		tag, execErr = conn.Exec(ctx, sql, args...)
		if execErr != nil {
			return errs.Wrap(errs.KindQueryExecution, "failed to execute statement", execErr)
		}
		return nil
	})
	return tag, err
}

// QueryMaps executes a parameterized statement and returns the result
// column order plus one string-keyed mapping per row, with every value
// rendered transport-safe.
func (p *Pool) QueryMaps(ctx context.Context, sql string, args ...any) ([]string, []map[string]any, error) {
	var (
		cols []string
		maps []map[string]any
	)
	err := p.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var qErr error
		cols, maps, qErr = connQueryMaps(ctx, conn, sql, args...)
		return qErr
	})
	if err != nil {
		return nil, nil, err
	}
	return cols, maps, nil
}

// QueryRow executes a statement expected to return at most one row. Errors,
// including pool initialization failures, surface on Scan.
func (p *Pool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	pool, err := p.ensure(ctx)
	if err != nil {
		return errRow{err}
	}
	return pool.QueryRow(ctx, sql, args...)
}

// Ping verifies the backend is reachable, initializing the pool when
// needed.
func (p *Pool) Ping(ctx context.Context) error {
	pool, err := p.ensure(ctx)
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		return p.classify(ctx, "failed to ping database", err)
	}
	return nil
}

// classify assigns a taxonomy kind by failure phase. Backend errors keep
// their message under the query-execution kind; context expiry without a
// backend error means the caller gave up waiting on the pool.
func (p *Pool) classify(ctx context.Context, msg string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrap(errs.KindQueryExecution, msg, err)
	}
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.KindPoolTimeout, msg, err)
	}
	return errs.Wrap(errs.KindQueryExecution, msg, err)
}

// connQueryMaps runs one parameterized statement over an already-acquired
// connection and renders the rows as mappings. Used by operations that
// issue several statements over a single connection.
func connQueryMaps(ctx context.Context, conn *pgxpool.Conn, sql string, args ...any) ([]string, []map[string]any, error) {
	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindQueryExecution, "failed to execute query", err)
	}
	cols, maps, err := render.Rows(rows)
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindQueryExecution, "failed to read query result", err)
	}
	return cols, maps, nil
}

// errRow satisfies pgx.Row for QueryRow paths that fail before reaching the
// backend.
type errRow struct{ err error }

func (r errRow) Scan(dest ...any) error { return r.err }
