package pgscope

import (
	"context"
	"time"

	"github.com/pgscope/pgscope/internal/errs"
)

// ExecuteQuery runs one read statement and returns its rows as string-keyed
// mappings. The statement is parsed and gated before anything reaches the
// backend: only single-statement SELECT/VALUES, EXPLAIN, and SHOW texts are
// accepted, and a plain selection with no limiting clause gets LIMIT
// appended (the configured default when input.Limit is zero). All failures,
// policy rejections included, are converted into the envelope; callers only
// check output.Error, never a Go error.
func (s *Scope) ExecuteQuery(ctx context.Context, input QueryInput) *QueryOutput {
	startTime := time.Now()

	limit := input.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultRowLimit
	}

	s.logger.Debug().
		Str("sql", truncateForLog(input.SQL)).
		Int("limit", limit).
		Msg("ExecuteQuery received")

	// 1. Policy gate: parse and reject anything that is not a read
	if err := s.guard.Check(input.SQL); err != nil {
		return s.failQuery(errs.Wrap(errs.KindPolicyRejection, "query rejected by read-only policy", err))
	}

	// 2. Append the row limit to plain selections (no-op when the text
	// already limits itself, so limiting stays idempotent)
	sql, err := s.guard.EnsureLimit(input.SQL, limit)
	if err != nil {
		return s.failQuery(errs.Wrap(errs.KindPolicyRejection, "query rejected by read-only policy", err))
	}

	// 3. Execute and render rows transport-safe
	cols, rows, err := s.pool.QueryMaps(ctx, sql)
	if err != nil {
		return s.failQuery(err)
	}

	s.logger.Info().
		Dur("duration", time.Since(startTime)).
		Int("row_count", len(rows)).
		Msg("ExecuteQuery executed")

	return &QueryOutput{Success: true, Columns: cols, Data: rows, RowCount: len(rows)}
}

func (s *Scope) failQuery(err error) *QueryOutput {
	s.logFailure("execute_query", err)
	return &QueryOutput{Columns: []string{}, Data: []map[string]any{}, Error: errText(err)}
}

// truncateForLog shortens query text for log lines.
func truncateForLog(sql string) string {
	const maxLen = 200
	if len(sql) <= maxLen {
		return sql
	}
	return sql[:maxLen] + "..."
}
