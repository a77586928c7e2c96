// Package pgscope provides read-only PostgreSQL introspection and query
// execution for AI agents through the Model Context Protocol (MCP).
//
// It exposes five tools (ListTables, ListRoutines, DescribeTable,
// ExecuteQuery, and SchemaSummary) over a lazily-initialized connection
// pool. Every operation returns a uniform envelope (success, data, error);
// failures from any layer are converted into the envelope rather than
// propagated, so transport code never sees a raw backend error.
//
// Writes are blocked twice. ExecuteQuery parses every statement with
// PostgreSQL's actual C parser via pg_query and accepts only
// single-statement SELECT/VALUES, EXPLAIN, and SHOW texts, rejecting
// everything else before it reaches the backend. Independently, every
// pooled session runs with default_transaction_read_only enabled, so the
// backend itself refuses writes. Catalog filters travel as bound
// parameters, never interpolated into SQL.
//
// # Library Usage
//
//	pool := pgscope.NewPool(connString, pgscope.PoolConfig{ReadOnly: true}, logger)
//	scope := pgscope.New(pool, pgscope.QueryConfig{DefaultRowLimit: 1000}, logger)
//
//	if err := scope.Startup(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer scope.Shutdown(ctx)
//
//	// Use directly
//	output := scope.ExecuteQuery(ctx, pgscope.QueryInput{SQL: "SELECT * FROM users"})
//
//	// Or register as MCP tools
//	pgscope.RegisterMCPTools(mcpServer, scope)
//
// Startup is optional: a Scope over a fresh Pool initializes the pool on
// the first operation that needs a connection, and Shutdown is safe to call
// either way.
package pgscope
