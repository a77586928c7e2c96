package pgscope

import (
	"context"
	"time"

	"github.com/pgscope/pgscope/internal/errs"
)

const listTablesSQL = `
SELECT
    t.table_schema,
    t.table_name,
    t.table_type,
    (
        SELECT count(*)
        FROM information_schema.columns c
        WHERE c.table_schema = t.table_schema
          AND c.table_name = t.table_name
    ) AS column_count,
    COALESCE((
        SELECT string_agg(kcu.column_name, ', ' ORDER BY kcu.ordinal_position)
        FROM information_schema.key_column_usage kcu
        JOIN information_schema.table_constraints tc
          ON kcu.constraint_name = tc.constraint_name
         AND kcu.table_schema = tc.table_schema
        WHERE tc.constraint_type = 'PRIMARY KEY'
          AND kcu.table_schema = t.table_schema
          AND kcu.table_name = t.table_name
    ), '') AS primary_key_columns,
    pg_size_pretty(pg_total_relation_size(
        quote_ident(t.table_schema) || '.' || quote_ident(t.table_name)
    )) AS table_size
FROM information_schema.tables t
WHERE (t.table_type = 'BASE TABLE' OR ($2 AND t.table_type = 'VIEW'))
  AND (
        ($1::text IS NULL AND t.table_schema NOT IN ('pg_catalog', 'information_schema'))
        OR t.table_schema = $1::text
      )
ORDER BY t.table_schema, t.table_name;
`

// ListTables returns every table (and, when requested, view) with its
// column count, primary key columns, and total size. With no schema filter,
// system catalogs are excluded. The filter travels as a bound parameter,
// never interpolated.
func (s *Scope) ListTables(ctx context.Context, input ListTablesInput) *TablesOutput {
	startTime := time.Now()

	var schema any
	if input.Schema != "" {
		schema = input.Schema
	}

	rows, err := s.pool.Query(ctx, listTablesSQL, schema, input.IncludeViews)
	if err != nil {
		return s.failTables(err)
	}
	defer rows.Close()

	var tables []TableSummary
	for rows.Next() {
		var t TableSummary
		if err := rows.Scan(&t.Schema, &t.Name, &t.Type, &t.ColumnCount, &t.PrimaryKeyColumns, &t.TableSize); err != nil {
			return s.failTables(errs.Wrap(errs.KindQueryExecution, "failed to scan table row", err))
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return s.failTables(errs.Wrap(errs.KindQueryExecution, "failed to read table rows", err))
	}

	if tables == nil {
		tables = []TableSummary{}
	}

	s.logger.Info().
		Dur("duration", time.Since(startTime)).
		Int("table_count", len(tables)).
		Msg("ListTables executed")

	return &TablesOutput{Success: true, Data: tables, Count: len(tables)}
}

func (s *Scope) failTables(err error) *TablesOutput {
	s.logFailure("list_tables", err)
	return &TablesOutput{Data: []TableSummary{}, Error: errText(err)}
}
