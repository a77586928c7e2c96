package pgscope

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgscope/pgscope/internal/errs"
)

// SQL queries for DescribeTable. All identity filters are bound parameters.

const describeColumnsSQL = `
SELECT
    column_name,
    data_type,
    character_maximum_length,
    (is_nullable = 'YES') AS is_nullable,
    column_default,
    ordinal_position
FROM information_schema.columns
WHERE table_schema = $1
  AND table_name = $2
ORDER BY ordinal_position;
`

// The referenced table/column pair only means anything for foreign keys;
// for other constraint kinds constraint_column_usage reports the
// constrained table itself, so the CASE nulls it out.
const describeConstraintsSQL = `
SELECT
    tc.constraint_name,
    tc.constraint_type,
    kcu.column_name,
    CASE WHEN tc.constraint_type = 'FOREIGN KEY' THEN ccu.table_name END AS foreign_table_name,
    CASE WHEN tc.constraint_type = 'FOREIGN KEY' THEN ccu.column_name END AS foreign_column_name
FROM information_schema.table_constraints tc
LEFT JOIN information_schema.key_column_usage kcu
    ON tc.constraint_name = kcu.constraint_name
   AND tc.table_schema = kcu.table_schema
LEFT JOIN information_schema.constraint_column_usage ccu
    ON ccu.constraint_name = tc.constraint_name
   AND ccu.table_schema = tc.table_schema
WHERE tc.table_schema = $1
  AND tc.table_name = $2
ORDER BY tc.constraint_name, kcu.ordinal_position;
`

const describeIndexesSQL = `
SELECT
    i.relname AS index_name,
    ARRAY(
        SELECT a.attname
        FROM unnest(ix.indkey::int2[]) WITH ORDINALITY AS key(attnum, ord)
        JOIN pg_catalog.pg_attribute a
          ON a.attrelid = t.oid AND a.attnum = key.attnum
        ORDER BY key.ord
    ) AS columns,
    am.amname AS index_type,
    ix.indisunique AS is_unique,
    ix.indisprimary AS is_primary
FROM pg_catalog.pg_index ix
JOIN pg_catalog.pg_class i ON i.oid = ix.indexrelid
JOIN pg_catalog.pg_class t ON t.oid = ix.indrelid
JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
JOIN pg_catalog.pg_am am ON am.oid = i.relam
WHERE n.nspname = $1
  AND t.relname = $2
ORDER BY i.relname;
`

// DescribeTable returns the columns, constraints, and indexes of one table,
// assembled from three catalog queries issued over a single acquired
// connection. Schema defaults to "public". A table with no constraints or
// indexes yields empty sequences; a table that does not exist yields three
// empty sequences rather than a failure.
func (s *Scope) DescribeTable(ctx context.Context, input DescribeTableInput) *TableSchemaOutput {
	startTime := time.Now()

	schema := input.Schema
	if schema == "" {
		schema = "public"
	}

	var (
		columns     []ColumnInfo
		constraints []ConstraintInfo
		indexes     []IndexInfo
	)
	err := s.pool.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var err error
		if columns, err = fetchColumns(ctx, conn, schema, input.Table); err != nil {
			return err
		}
		if constraints, err = fetchConstraints(ctx, conn, schema, input.Table); err != nil {
			return err
		}
		indexes, err = fetchIndexes(ctx, conn, schema, input.Table)
		return err
	})
	if err != nil {
		return s.failDescribe(err)
	}

	s.logger.Info().
		Str("schema", schema).
		Str("table", input.Table).
		Dur("duration", time.Since(startTime)).
		Int("column_count", len(columns)).
		Msg("DescribeTable executed")

	return &TableSchemaOutput{
		Success: true,
		Data: TableSchema{
			Table:       input.Table,
			Schema:      schema,
			Columns:     columns,
			Constraints: constraints,
			Indexes:     indexes,
		},
	}
}

func (s *Scope) failDescribe(err error) *TableSchemaOutput {
	s.logFailure("describe_table", err)
	return &TableSchemaOutput{Data: emptyTableSchema(), Error: errText(err)}
}

func fetchColumns(ctx context.Context, conn *pgxpool.Conn, schema, table string) ([]ColumnInfo, error) {
	rows, err := conn.Query(ctx, describeColumnsSQL, schema, table)
	if err != nil {
		return nil, errs.Wrap(errs.KindQueryExecution, "failed to fetch columns", err)
	}
	defer rows.Close()

	columns := []ColumnInfo{}
	for rows.Next() {
		var col ColumnInfo
		if err := rows.Scan(&col.Name, &col.DataType, &col.MaxLength, &col.Nullable, &col.Default, &col.Position); err != nil {
			return nil, errs.Wrap(errs.KindQueryExecution, "failed to scan column", err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindQueryExecution, "failed to read columns", err)
	}
	return columns, nil
}

func fetchConstraints(ctx context.Context, conn *pgxpool.Conn, schema, table string) ([]ConstraintInfo, error) {
	rows, err := conn.Query(ctx, describeConstraintsSQL, schema, table)
	if err != nil {
		return nil, errs.Wrap(errs.KindQueryExecution, "failed to fetch constraints", err)
	}
	defer rows.Close()

	constraints := []ConstraintInfo{}
	for rows.Next() {
		var con ConstraintInfo
		if err := rows.Scan(&con.Name, &con.Type, &con.Column, &con.ReferencedTable, &con.ReferencedColumn); err != nil {
			return nil, errs.Wrap(errs.KindQueryExecution, "failed to scan constraint", err)
		}
		constraints = append(constraints, con)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindQueryExecution, "failed to read constraints", err)
	}
	return constraints, nil
}

func fetchIndexes(ctx context.Context, conn *pgxpool.Conn, schema, table string) ([]IndexInfo, error) {
	rows, err := conn.Query(ctx, describeIndexesSQL, schema, table)
	if err != nil {
		return nil, errs.Wrap(errs.KindQueryExecution, "failed to fetch indexes", err)
	}
	defer rows.Close()

	indexes := []IndexInfo{}
	for rows.Next() {
		var idx IndexInfo
		if err := rows.Scan(&idx.Name, &idx.Columns, &idx.Type, &idx.IsUnique, &idx.IsPrimary); err != nil {
			return nil, errs.Wrap(errs.KindQueryExecution, "failed to scan index", err)
		}
		indexes = append(indexes, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindQueryExecution, "failed to read indexes", err)
	}
	return indexes, nil
}
