package pgscope

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/pgscope/pgscope/internal/errs"
	"github.com/pgscope/pgscope/internal/guard"
)

// Scope is the query and introspection engine. It exposes five read-only
// operations over an injected Pool, each returning a uniform envelope in
// which failures are converted to an error string, never propagated as Go
// errors. All exported methods are safe for concurrent use from multiple
// goroutines.
type Scope struct {
	pool   *Pool
	cfg    QueryConfig
	guard  *guard.Checker
	logger zerolog.Logger
}

// New creates a Scope over an already-constructed Pool. The pool is
// injected, not owned: Startup and Shutdown drive its lifecycle for hosting
// processes that want eager initialization, while a Scope over a fresh pool
// also works immediately through lazy initialization. Panics on invalid
// configuration. A zero DefaultRowLimit takes the package default.
func New(pool *Pool, cfg QueryConfig, logger zerolog.Logger) *Scope {
	if pool == nil {
		panic("pgscope: pool must be non-nil")
	}
	if cfg.DefaultRowLimit == 0 {
		cfg.DefaultRowLimit = DefaultRowLimit
	}
	if cfg.DefaultRowLimit < 0 {
		panic("pgscope: query.default_row_limit must not be negative")
	}
	return &Scope{
		pool:   pool,
		cfg:    cfg,
		guard:  guard.New(),
		logger: logger,
	}
}

// Startup initializes the pool eagerly. Hosting processes call it once
// before accepting traffic; a failure here is lifecycle-level and returned
// to the host rather than masked into an envelope.
func (s *Scope) Startup(ctx context.Context) error {
	if err := s.pool.Init(ctx); err != nil {
		s.logger.Error().Err(err).Msg("startup failed")
		return err
	}
	return nil
}

// Shutdown closes the pool. Safe to call when Startup never ran.
func (s *Scope) Shutdown(ctx context.Context) {
	s.pool.Close(ctx)
}

// logFailure records a classified operation failure just before it is
// converted into an envelope error string.
func (s *Scope) logFailure(op string, err error) {
	s.logger.Error().
		Err(err).
		Str("op", op).
		Str("kind", errs.KindOf(err).String()).
		Msg("operation failed")
}
