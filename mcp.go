package pgscope

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterMCPTools registers the five introspection and query tools on the
// given MCP server. Every reply is the operation's envelope serialized as
// JSON; failed operations still reply with a well-formed envelope, so
// protocol-level tool errors only occur for missing required parameters and
// serialization failures.
func RegisterMCPTools(mcpServer *server.MCPServer, scope *Scope) {
	// ListTables tool
	listTablesTool := mcp.NewTool("list_tables",
		mcp.WithDescription("List tables in the PostgreSQL database with per-table column counts, primary key columns, and total sizes. Optionally filtered by schema; views are excluded unless requested."),
		mcp.WithString("schema",
			mcp.Description("Schema name to filter by. When omitted, all non-system schemas are listed."),
		),
		mcp.WithBoolean("include_views",
			mcp.Description("Also include views (default false)."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(listTablesTool, scope.loggedToolHandler("list_tables", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input := ListTablesInput{
			Schema:       req.GetString("schema", ""),
			IncludeViews: req.GetBool("include_views", false),
		}
		return envelopeResult(scope.ListTables(ctx, input))
	}))

	// ListRoutines tool
	listRoutinesTool := mcp.NewTool("list_routines",
		mcp.WithDescription("List stored functions, procedures, aggregates, and window functions with their arguments, return types, volatility, language, and definitions."),
		mcp.WithString("schema",
			mcp.Description("Schema name to filter by. When omitted, all non-system schemas are listed."),
		),
		mcp.WithString("name_pattern",
			mcp.Description("SQL LIKE pattern applied to routine names, e.g. 'get_%'."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(listRoutinesTool, scope.loggedToolHandler("list_routines", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input := ListRoutinesInput{
			Schema:      req.GetString("schema", ""),
			NamePattern: req.GetString("name_pattern", ""),
		}
		return envelopeResult(scope.ListRoutines(ctx, input))
	}))

	// DescribeTable tool
	describeTableTool := mcp.NewTool("describe_table",
		mcp.WithDescription("Describe one table: columns with types and defaults, constraints with foreign key targets, and indexes with their column lists."),
		mcp.WithString("table",
			mcp.Required(),
			mcp.Description("The table name to describe."),
		),
		mcp.WithString("schema",
			mcp.Description("The schema name (defaults to 'public')."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(describeTableTool, scope.loggedToolHandler("describe_table", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError("table parameter is required"), nil
		}
		input := DescribeTableInput{
			Table:  table,
			Schema: req.GetString("schema", ""),
		}
		return envelopeResult(scope.DescribeTable(ctx, input))
	}))

	// ExecuteQuery tool
	executeQueryTool := mcp.NewTool("execute_query",
		mcp.WithDescription("Execute a read-only SQL query (SELECT, EXPLAIN, SHOW) and return rows as JSON. Mutating statements are rejected before reaching the database; plain SELECTs get a row limit appended."),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The SQL query to execute."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum rows to return for selections with no explicit limit (default 1000)."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(executeQueryTool, scope.loggedToolHandler("execute_query", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, err := req.RequireString("sql")
		if err != nil {
			return mcp.NewToolResultError("sql parameter is required"), nil
		}
		input := QueryInput{
			SQL:   sql,
			Limit: req.GetInt("limit", 0),
		}
		return envelopeResult(scope.ExecuteQuery(ctx, input))
	}))

	// SchemaSummary tool
	schemaSummaryTool := mcp.NewTool("schema_summary",
		mcp.WithDescription("Produce a full database snapshot: every table with its detailed schema, every routine, and aggregate totals. Tables that fail to describe are reported in failed_tables."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(schemaSummaryTool, scope.loggedToolHandler("schema_summary", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return envelopeResult(scope.SchemaSummary(ctx))
	}))
}

// envelopeResult serializes an operation envelope into a text tool result.
func envelopeResult(envelope any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(envelope)
	if err != nil {
		return mcp.NewToolResultError("failed to marshal result"), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// loggedToolHandler wraps a tool handler to log request and response lengths.
func (s *Scope) loggedToolHandler(tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reqLen := requestLength(req)
		result, err := handler(ctx, req)
		respLen := resultLength(result)
		s.logger.Info().
			Str("tool", tool).
			Int("request_bytes", reqLen).
			Int("response_bytes", respLen).
			Msg("tool call")
		return result, err
	}
}

// requestLength returns the JSON-encoded byte length of the request arguments.
func requestLength(req mcp.CallToolRequest) int {
	args := req.GetArguments()
	if len(args) == 0 {
		return 0
	}
	b, err := json.Marshal(args)
	if err != nil {
		return 0
	}
	return len(b)
}

// resultLength returns the total byte length of text content in a CallToolResult.
func resultLength(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	total := 0
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			total += len(tc.Text)
		}
	}
	return total
}
