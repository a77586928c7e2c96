package pgscope_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pgscope/pgscope"
	"github.com/pgscope/pgscope/internal/errs"
)

func TestNewScopePanics_NilPool(t *testing.T) {
	t.Parallel()
	expectPanic(t, "pool must be non-nil", func() {
		pgscope.New(nil, pgscope.QueryConfig{}, testLogger())
	})
}

func TestNewScopePanics_NegativeRowLimit(t *testing.T) {
	t.Parallel()
	pool := newUnreachablePool(t)
	expectPanic(t, "default_row_limit", func() {
		pgscope.New(pool, pgscope.QueryConfig{DefaultRowLimit: -1}, testLogger())
	})
}

func TestNewScopeZeroRowLimitTakesDefault(t *testing.T) {
	t.Parallel()
	pool := newUnreachablePool(t)
	expectNoPanic(t, func() {
		pgscope.New(pool, pgscope.QueryConfig{}, testLogger())
	})
}

func TestScopeStartupUnreachable(t *testing.T) {
	t.Parallel()
	scope := newUnreachableScope(t)

	err := scope.Startup(context.Background())
	if err == nil {
		t.Fatal("expected error for unreachable backend")
	}
	if !errs.IsPoolInit(err) {
		t.Fatalf("expected pool-init error, got kind %s: %v", errs.KindOf(err), err)
	}
}

func TestScopeShutdownWithoutStartup(t *testing.T) {
	t.Parallel()
	pool := newUnreachablePool(t)
	scope := pgscope.New(pool, pgscope.QueryConfig{}, testLogger())
	expectNoPanic(t, func() {
		scope.Shutdown(context.Background())
		scope.Shutdown(context.Background())
	})
}

func TestListTablesFailureEnvelope(t *testing.T) {
	t.Parallel()
	scope := newUnreachableScope(t)

	out := scope.ListTables(context.Background(), pgscope.ListTablesInput{})
	if out.Success {
		t.Fatal("expected Success=false for unreachable backend")
	}
	if out.Error == nil {
		t.Fatal("expected Error to be set")
	}
	if out.Data == nil {
		t.Fatal("expected Data to be an empty slice, got nil")
	}
	if len(out.Data) != 0 || out.Count != 0 {
		t.Fatalf("expected empty payload, got %d rows, count %d", len(out.Data), out.Count)
	}

	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(raw), `"data":[]`) {
		t.Fatalf("expected data to serialize as [], got %s", raw)
	}
}

func TestListRoutinesFailureEnvelope(t *testing.T) {
	t.Parallel()
	scope := newUnreachableScope(t)

	out := scope.ListRoutines(context.Background(), pgscope.ListRoutinesInput{})
	if out.Success {
		t.Fatal("expected Success=false for unreachable backend")
	}
	if out.Error == nil {
		t.Fatal("expected Error to be set")
	}
	if out.Data == nil {
		t.Fatal("expected Data to be an empty slice, got nil")
	}

	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(raw), `"data":[]`) {
		t.Fatalf("expected data to serialize as [], got %s", raw)
	}
}

func TestDescribeTableFailureEnvelope(t *testing.T) {
	t.Parallel()
	scope := newUnreachableScope(t)

	out := scope.DescribeTable(context.Background(), pgscope.DescribeTableInput{Table: "users"})
	if out.Success {
		t.Fatal("expected Success=false for unreachable backend")
	}
	if out.Error == nil {
		t.Fatal("expected Error to be set")
	}
	if out.Data.Table != "" || out.Data.Schema != "" {
		t.Fatalf("expected zero identity in failure payload, got %q.%q", out.Data.Schema, out.Data.Table)
	}
	if out.Data.Columns == nil || out.Data.Constraints == nil || out.Data.Indexes == nil {
		t.Fatal("expected empty sequences in failure payload, got nil")
	}

	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	for _, key := range []string{`"columns":[]`, `"constraints":[]`, `"indexes":[]`} {
		if !strings.Contains(string(raw), key) {
			t.Fatalf("expected %s in serialized payload, got %s", key, raw)
		}
	}
}

func TestExecuteQueryFailureEnvelope(t *testing.T) {
	t.Parallel()
	scope := newUnreachableScope(t)

	out := scope.ExecuteQuery(context.Background(), pgscope.QueryInput{SQL: "SELECT 1"})
	if out.Success {
		t.Fatal("expected Success=false for unreachable backend")
	}
	if out.Error == nil {
		t.Fatal("expected Error to be set")
	}
	if !strings.Contains(*out.Error, "failed to connect to database") {
		t.Fatalf("expected connect failure in error, got %q", *out.Error)
	}
	if out.Columns == nil || out.Data == nil {
		t.Fatal("expected empty columns and data, got nil")
	}
	if out.RowCount != 0 {
		t.Fatalf("expected row_count 0, got %d", out.RowCount)
	}
}

func TestSchemaSummaryFailureEnvelope(t *testing.T) {
	t.Parallel()
	scope := newUnreachableScope(t)

	out := scope.SchemaSummary(context.Background())
	if out.Success {
		t.Fatal("expected Success=false for unreachable backend")
	}
	if out.Error == nil {
		t.Fatal("expected Error to be set")
	}
	if out.Data.Tables == nil || out.Data.DetailedSchemas == nil || out.Data.Functions == nil || out.Data.FailedTables == nil {
		t.Fatal("expected empty sequences in failure payload, got nil")
	}
	if out.Data.Totals.TotalTables != 0 || out.Data.Totals.TotalFunctions != 0 {
		t.Fatalf("expected zero totals, got %+v", out.Data.Totals)
	}
}

// Rejected statements never reach the backend: the envelope carries the
// policy message and no connection error, even though the pool points at an
// unreachable address.
func TestExecuteQueryPolicyRejections(t *testing.T) {
	t.Parallel()
	scope := newUnreachableScope(t)

	cases := []struct {
		name   string
		sql    string
		substr string
	}{
		{"drop", "DROP TABLE users", "DROP is not allowed"},
		{"truncate", "TRUNCATE users", "TRUNCATE is not allowed"},
		{"delete", "DELETE FROM users", "DELETE is not allowed"},
		{"update", "UPDATE users SET email = 'x'", "UPDATE is not allowed"},
		{"insert", "INSERT INTO users (email) VALUES ('x')", "INSERT is not allowed"},
		{"alter", "ALTER TABLE users ADD COLUMN age int", "ALTER is not allowed"},
		{"create", "CREATE TABLE t (id int)", "CREATE is not allowed"},
		{"copy", "COPY users TO STDOUT", "COPY TO is not allowed"},
		{"set", "SET search_path TO public", "SET is not allowed"},
		{"call", "CALL refresh_stats()", "CALL is not allowed"},
		{"begin", "BEGIN", "transaction control is not allowed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out := scope.ExecuteQuery(context.Background(), pgscope.QueryInput{SQL: tc.sql})
			if out.Success {
				t.Fatalf("expected rejection for %q", tc.sql)
			}
			if out.Error == nil {
				t.Fatal("expected Error to be set")
			}
			if !strings.Contains(*out.Error, "rejected by read-only policy") {
				t.Fatalf("expected policy rejection, got %q", *out.Error)
			}
			if !strings.Contains(*out.Error, tc.substr) {
				t.Fatalf("expected %q in error, got %q", tc.substr, *out.Error)
			}
			if strings.Contains(*out.Error, "connect") {
				t.Fatalf("rejection must not touch the backend, got %q", *out.Error)
			}
		})
	}
}

func TestExecuteQueryMultiStatementRejected(t *testing.T) {
	t.Parallel()
	scope := newUnreachableScope(t)

	out := scope.ExecuteQuery(context.Background(), pgscope.QueryInput{SQL: "SELECT 1; SELECT 2"})
	if out.Success || out.Error == nil {
		t.Fatal("expected rejection for multi-statement text")
	}
	if !strings.Contains(*out.Error, "multi-statement queries are not allowed") {
		t.Fatalf("expected multi-statement rejection, got %q", *out.Error)
	}
	if !strings.Contains(*out.Error, "found 2 statements") {
		t.Fatalf("expected statement count in error, got %q", *out.Error)
	}
}

func TestExecuteQueryWriteInCTERejected(t *testing.T) {
	t.Parallel()
	scope := newUnreachableScope(t)

	out := scope.ExecuteQuery(context.Background(), pgscope.QueryInput{
		SQL: "WITH gone AS (DELETE FROM users RETURNING id) SELECT * FROM gone",
	})
	if out.Success || out.Error == nil {
		t.Fatal("expected rejection for data-modifying CTE")
	}
	if !strings.Contains(*out.Error, "DELETE is not allowed") {
		t.Fatalf("expected DELETE rejection, got %q", *out.Error)
	}
}

func TestExecuteQuerySelectIntoRejected(t *testing.T) {
	t.Parallel()
	scope := newUnreachableScope(t)

	out := scope.ExecuteQuery(context.Background(), pgscope.QueryInput{SQL: "SELECT * INTO copies FROM users"})
	if out.Success || out.Error == nil {
		t.Fatal("expected rejection for SELECT INTO")
	}
	if !strings.Contains(*out.Error, "SELECT INTO is not allowed") {
		t.Fatalf("expected SELECT INTO rejection, got %q", *out.Error)
	}
}

func TestExecuteQueryRowLockingRejected(t *testing.T) {
	t.Parallel()
	scope := newUnreachableScope(t)

	out := scope.ExecuteQuery(context.Background(), pgscope.QueryInput{SQL: "SELECT * FROM users FOR UPDATE"})
	if out.Success || out.Error == nil {
		t.Fatal("expected rejection for row locking")
	}
	if !strings.Contains(*out.Error, "SELECT FOR UPDATE/SHARE is not allowed") {
		t.Fatalf("expected locking rejection, got %q", *out.Error)
	}
}

func TestExecuteQueryUnparseableRejected(t *testing.T) {
	t.Parallel()
	scope := newUnreachableScope(t)

	out := scope.ExecuteQuery(context.Background(), pgscope.QueryInput{SQL: "SELEC * FRM users"})
	if out.Success || out.Error == nil {
		t.Fatal("expected rejection for unparseable text")
	}
	if !strings.Contains(*out.Error, "SQL parse error") {
		t.Fatalf("expected parse error, got %q", *out.Error)
	}
}

func TestExecuteQueryEmptyRejected(t *testing.T) {
	t.Parallel()
	scope := newUnreachableScope(t)

	out := scope.ExecuteQuery(context.Background(), pgscope.QueryInput{SQL: ""})
	if out.Success || out.Error == nil {
		t.Fatal("expected rejection for empty text")
	}
	if !strings.Contains(*out.Error, "empty query") {
		t.Fatalf("expected empty-query rejection, got %q", *out.Error)
	}
}

// Read statements clear the policy gate and fail only at the connection,
// which proves the gate admitted them.
func TestExecuteQueryReadStatementsPassGate(t *testing.T) {
	t.Parallel()
	scope := newUnreachableScope(t)

	cases := []struct {
		name string
		sql  string
	}{
		{"select", "SELECT id, email FROM users"},
		{"values", "VALUES (1), (2)"},
		{"explain", "EXPLAIN SELECT * FROM users"},
		{"show", "SHOW server_version"},
		{"cte", "WITH recent AS (SELECT * FROM users) SELECT count(*) FROM recent"},
		{"union", "SELECT 1 UNION SELECT 2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out := scope.ExecuteQuery(context.Background(), pgscope.QueryInput{SQL: tc.sql})
			if out.Success {
				t.Fatalf("expected connection failure for %q", tc.sql)
			}
			if out.Error == nil {
				t.Fatal("expected Error to be set")
			}
			if strings.Contains(*out.Error, "not allowed") || strings.Contains(*out.Error, "rejected") {
				t.Fatalf("read statement must pass the gate, got %q", *out.Error)
			}
			if !strings.Contains(*out.Error, "failed to connect to database") {
				t.Fatalf("expected connect failure, got %q", *out.Error)
			}
		})
	}
}

func TestScopeLoggerDisabledStaysQuiet(t *testing.T) {
	t.Parallel()
	var buf strings.Builder
	logger := zerolog.New(&buf).Level(zerolog.Disabled)
	pool := pgscope.NewPool(unreachableConnString, pgscope.PoolConfig{}, logger)
	t.Cleanup(func() { pool.Close(context.Background()) })
	scope := pgscope.New(pool, pgscope.QueryConfig{}, logger)

	scope.ExecuteQuery(context.Background(), pgscope.QueryInput{SQL: "DROP TABLE users"})
	if buf.Len() != 0 {
		t.Fatalf("expected no log output at disabled level, got %q", buf.String())
	}
}
