package pgscope

import (
	"context"
	"time"

	"github.com/pgscope/pgscope/internal/errs"
)

// Aggregates and window functions have no renderable definition, so the
// CASE keeps pg_get_functiondef from aborting the whole listing on them.
const listRoutinesSQL = `
SELECT
    n.nspname AS schema_name,
    p.proname AS function_name,
    pg_get_function_identity_arguments(p.oid) AS arguments,
    COALESCE(pg_get_function_result(p.oid), '') AS return_type,
    CASE p.prokind
        WHEN 'f' THEN 'function'
        WHEN 'p' THEN 'procedure'
        WHEN 'a' THEN 'aggregate'
        WHEN 'w' THEN 'window'
        ELSE 'unknown'
    END AS routine_type,
    CASE p.provolatile
        WHEN 'i' THEN 'immutable'
        WHEN 's' THEN 'stable'
        WHEN 'v' THEN 'volatile'
    END AS volatility,
    l.lanname AS language,
    CASE
        WHEN p.prokind IN ('a', 'w') THEN ''
        ELSE pg_get_functiondef(p.oid)
    END AS definition
FROM pg_catalog.pg_proc p
JOIN pg_catalog.pg_namespace n ON p.pronamespace = n.oid
JOIN pg_catalog.pg_language l ON p.prolang = l.oid
WHERE (
        ($1::text IS NULL AND n.nspname NOT IN ('pg_catalog', 'information_schema'))
        OR n.nspname = $1::text
      )
  AND ($2::text IS NULL OR p.proname LIKE $2::text)
ORDER BY n.nspname, p.proname;
`

// ListRoutines returns stored functions, procedures, aggregates, and window
// functions with their identity arguments, return type, volatility,
// language, and definition. The schema filter and the LIKE name pattern are
// optional, independent, and always bound as parameters. With no schema
// filter, system catalogs are excluded.
func (s *Scope) ListRoutines(ctx context.Context, input ListRoutinesInput) *RoutinesOutput {
	startTime := time.Now()

	var schema, pattern any
	if input.Schema != "" {
		schema = input.Schema
	}
	if input.NamePattern != "" {
		pattern = input.NamePattern
	}

	rows, err := s.pool.Query(ctx, listRoutinesSQL, schema, pattern)
	if err != nil {
		return s.failRoutines(err)
	}
	defer rows.Close()

	var routines []RoutineInfo
	for rows.Next() {
		var r RoutineInfo
		if err := rows.Scan(&r.Schema, &r.Name, &r.Arguments, &r.ReturnType, &r.Kind, &r.Volatility, &r.Language, &r.Definition); err != nil {
			return s.failRoutines(errs.Wrap(errs.KindQueryExecution, "failed to scan routine row", err))
		}
		routines = append(routines, r)
	}
	if err := rows.Err(); err != nil {
		return s.failRoutines(errs.Wrap(errs.KindQueryExecution, "failed to read routine rows", err))
	}

	if routines == nil {
		routines = []RoutineInfo{}
	}

	s.logger.Info().
		Dur("duration", time.Since(startTime)).
		Int("routine_count", len(routines)).
		Msg("ListRoutines executed")

	return &RoutinesOutput{Success: true, Data: routines, Count: len(routines)}
}

func (s *Scope) failRoutines(err error) *RoutinesOutput {
	s.logFailure("list_routines", err)
	return &RoutinesOutput{Data: []RoutineInfo{}, Error: errText(err)}
}
