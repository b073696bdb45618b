package executor

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Plan describes how a script has to be executed.
type Plan struct {
	Statements int
	// Autocommit is set when the script contains a statement that
	// PostgreSQL refuses to run inside a transaction block.
	Autocommit bool
	// Parts holds the statement texts, without the trailing semicolon,
	// when Autocommit is set. They have to be sent one at a time: a
	// multi-statement batch runs in an implicit transaction block.
	Parts []string
}

// Inspect parses a script with the PostgreSQL parser and decides how it
// must be executed. Empty scripts yield a zero Plan.
func Inspect(sql string) (Plan, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return Plan{}, nil
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return Plan{}, fmt.Errorf("parsing SQL: %w", err)
	}

	plan := Plan{Statements: len(tree.Stmts)}

	for _, stmt := range tree.Stmts {
		if stmt.Stmt != nil && requiresAutocommit(stmt.Stmt) {
			plan.Autocommit = true
		}
	}

	if plan.Autocommit {
		parts, err := pg_query.SplitWithParser(trimmed, true)
		if err != nil {
			return Plan{}, fmt.Errorf("splitting SQL: %w", err)
		}

		plan.Parts = parts
	}

	return plan, nil
}

func requiresAutocommit(node *pg_query.Node) bool {
	switch n := node.Node.(type) {
	case *pg_query.Node_IndexStmt:
		return n.IndexStmt != nil && n.IndexStmt.Concurrent
	case *pg_query.Node_DropStmt:
		return n.DropStmt != nil && n.DropStmt.Concurrent
	case *pg_query.Node_VacuumStmt, *pg_query.Node_CreatedbStmt, *pg_query.Node_AlterSystemStmt:
		return true
	default:
		return false
	}
}
