// Package guard enforces the read-only query policy.
//
// Incoming query text is parsed with pg_query_go and checked at the AST
// level, so the decision is about what a statement does, not about which
// words appear in it. A SELECT over a column named update_count passes; a
// DELETE smuggled into a CTE or a second statement does not. The guard is
// the first line of defense; the pool's read-only session setting backs it
// up at the backend.
package guard

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Checker validates query text against the fixed read-only policy.
// It is stateless and safe for concurrent use.
type Checker struct{}

// New returns a Checker.
func New() *Checker {
	return &Checker{}
}

// Check parses sql and returns nil when the text is a single read statement
// (SELECT/VALUES, EXPLAIN over a read statement, or SHOW). Every other
// statement kind, multi-statement texts, and unparseable input are rejected
// with a descriptive error.
func (c *Checker) Check(sql string) error {
	result, err := pg_query.Parse(sql)
	if err != nil {
		return fmt.Errorf("SQL parse error: %w", err)
	}

	if len(result.Stmts) == 0 {
		return fmt.Errorf("empty query")
	}

	if len(result.Stmts) > 1 {
		return fmt.Errorf("multi-statement queries are not allowed: found %d statements", len(result.Stmts))
	}

	return c.checkNode(result.Stmts[0].Stmt)
}

// checkNode admits read statements and rejects everything else. EXPLAIN is
// followed into its inner statement, SELECTs are walked for set-operation
// legs and data-modifying CTEs.
func (c *Checker) checkNode(node *pg_query.Node) error {
	if node == nil {
		return nil
	}

	switch n := node.Node.(type) {
	case *pg_query.Node_SelectStmt:
		return c.checkSelect(n.SelectStmt)

	case *pg_query.Node_ExplainStmt:
		// EXPLAIN ANALYZE executes the inner statement for real.
		return c.checkNode(n.ExplainStmt.Query)

	case *pg_query.Node_VariableShowStmt:
		return nil

	default:
		return fmt.Errorf("%s through this tool: only read statements (SELECT, EXPLAIN, SHOW) are accepted", blockedLabel(node))
	}
}

// checkSelect walks a SELECT for the parts that can hide writes or take
// locks: the WITH clause, UNION/INTERSECT/EXCEPT legs, SELECT INTO, and
// FOR UPDATE/SHARE row locking.
func (c *Checker) checkSelect(sel *pg_query.SelectStmt) error {
	if sel == nil {
		return nil
	}

	if sel.IntoClause != nil {
		return fmt.Errorf("SELECT INTO is not allowed through this tool: it creates a new table")
	}

	if len(sel.LockingClause) > 0 {
		return fmt.Errorf("SELECT FOR UPDATE/SHARE is not allowed through this tool: row locking is blocked in read-only mode")
	}

	if sel.WithClause != nil {
		for _, cte := range sel.WithClause.Ctes {
			cteNode, ok := cte.Node.(*pg_query.Node_CommonTableExpr)
			if !ok {
				continue
			}
			if err := c.checkNode(cteNode.CommonTableExpr.Ctequery); err != nil {
				return err
			}
		}
	}

	if sel.Larg != nil {
		if err := c.checkSelect(sel.Larg); err != nil {
			return err
		}
	}
	if sel.Rarg != nil {
		if err := c.checkSelect(sel.Rarg); err != nil {
			return err
		}
	}

	return nil
}

// EnsureLimit appends "LIMIT n" to a top-level SELECT that has no limiting
// clause. Statements that already limit (LIMIT or FETCH FIRST), and
// statements that are not plain SELECTs, come back unchanged; a LIMIT inside
// a subquery or CTE does not count as a top-level one. A trailing semicolon
// is dropped before appending.
func (c *Checker) EnsureLimit(sql string, limit int) (string, error) {
	result, err := pg_query.Parse(sql)
	if err != nil {
		return "", fmt.Errorf("SQL parse error: %w", err)
	}

	if len(result.Stmts) != 1 {
		return sql, nil
	}

	stmt, ok := result.Stmts[0].Stmt.Node.(*pg_query.Node_SelectStmt)
	if !ok {
		return sql, nil
	}
	if stmt.SelectStmt.LimitCount != nil {
		return sql, nil
	}

	trimmed := strings.TrimSpace(sql)
	trimmed = strings.TrimSuffix(trimmed, ";")
	trimmed = strings.TrimRight(trimmed, " \t\r\n")
	return fmt.Sprintf("%s LIMIT %d", trimmed, limit), nil
}

// blockedLabel names the rejected statement kind for the policy error.
func blockedLabel(node *pg_query.Node) string {
	switch n := node.Node.(type) {
	case *pg_query.Node_InsertStmt:
		return "INSERT is not allowed"
	case *pg_query.Node_UpdateStmt:
		return "UPDATE is not allowed"
	case *pg_query.Node_DeleteStmt:
		return "DELETE is not allowed"
	case *pg_query.Node_MergeStmt:
		return "MERGE is not allowed"
	case *pg_query.Node_TruncateStmt:
		return "TRUNCATE is not allowed"
	case *pg_query.Node_DropStmt, *pg_query.Node_DropdbStmt, *pg_query.Node_DropRoleStmt:
		return "DROP is not allowed"
	case *pg_query.Node_CreateStmt, *pg_query.Node_CreateTableAsStmt, *pg_query.Node_CreateSchemaStmt,
		*pg_query.Node_CreateSeqStmt, *pg_query.Node_ViewStmt, *pg_query.Node_IndexStmt,
		*pg_query.Node_CreateFunctionStmt, *pg_query.Node_CreateTrigStmt, *pg_query.Node_RuleStmt,
		*pg_query.Node_CreateExtensionStmt, *pg_query.Node_CreateRoleStmt, *pg_query.Node_CreatedbStmt:
		return "CREATE is not allowed"
	case *pg_query.Node_AlterTableStmt, *pg_query.Node_AlterSeqStmt, *pg_query.Node_AlterRoleStmt,
		*pg_query.Node_AlterRoleSetStmt, *pg_query.Node_AlterSystemStmt, *pg_query.Node_RenameStmt,
		*pg_query.Node_AlterExtensionStmt, *pg_query.Node_AlterExtensionContentsStmt,
		*pg_query.Node_AlterDatabaseStmt, *pg_query.Node_AlterDatabaseSetStmt:
		return "ALTER is not allowed"
	case *pg_query.Node_CopyStmt:
		if n.CopyStmt.IsFrom {
			return "COPY FROM is not allowed"
		}
		return "COPY TO is not allowed"
	case *pg_query.Node_GrantStmt, *pg_query.Node_GrantRoleStmt:
		return "GRANT/REVOKE is not allowed"
	case *pg_query.Node_DoStmt:
		return "DO blocks are not allowed"
	case *pg_query.Node_CallStmt:
		return "CALL is not allowed"
	case *pg_query.Node_PrepareStmt, *pg_query.Node_ExecuteStmt, *pg_query.Node_DeallocateStmt:
		return "PREPARE/EXECUTE is not allowed"
	case *pg_query.Node_TransactionStmt:
		return "transaction control is not allowed"
	case *pg_query.Node_VariableSetStmt:
		return "SET is not allowed"
	case *pg_query.Node_DiscardStmt:
		return "DISCARD is not allowed"
	case *pg_query.Node_LockStmt:
		return "LOCK TABLE is not allowed"
	case *pg_query.Node_ListenStmt, *pg_query.Node_NotifyStmt, *pg_query.Node_UnlistenStmt:
		return "LISTEN/NOTIFY is not allowed"
	case *pg_query.Node_VacuumStmt:
		return "VACUUM/ANALYZE is not allowed"
	case *pg_query.Node_ClusterStmt:
		return "CLUSTER is not allowed"
	case *pg_query.Node_ReindexStmt:
		return "REINDEX is not allowed"
	case *pg_query.Node_RefreshMatViewStmt:
		return "REFRESH MATERIALIZED VIEW is not allowed"
	case *pg_query.Node_CommentStmt:
		return "COMMENT ON is not allowed"
	case *pg_query.Node_SecLabelStmt:
		return "SECURITY LABEL is not allowed"
	case *pg_query.Node_FetchStmt:
		return "FETCH/MOVE is not allowed"
	case *pg_query.Node_DeclareCursorStmt:
		return "DECLARE CURSOR is not allowed"
	case *pg_query.Node_CheckPointStmt:
		return "CHECKPOINT is not allowed"
	case *pg_query.Node_LoadStmt:
		return "LOAD is not allowed"
	default:
		return "this statement type is not allowed"
	}
}
