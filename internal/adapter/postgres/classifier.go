package postgres

import (
	"strings"

	"github.com/guillermoBallester/txscope/internal/core/domain"
	pg_query "github.com/pganalyze/pg_query_go/v6"
)

var _ domain.Classifier = Classifier{}

// Classifier categorizes statements using PostgreSQL's actual parser, so
// leading comments and CTEs do not hide the statement kind. Statements the
// parser rejects fall back to prefix classification.
type Classifier struct{}

func (Classifier) Classify(sql string) domain.Category {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return domain.CategoryOther
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return domain.ClassifyPrefix(trimmed)
	}
	if len(tree.Stmts) == 0 || tree.Stmts[0].Stmt == nil {
		return domain.CategoryOther
	}

	// WITH ... INSERT parses as an InsertStmt carrying the CTEs, so the
	// node type is already the outer statement's.
	switch tree.Stmts[0].Stmt.Node.(type) {
	case *pg_query.Node_InsertStmt:
		return domain.CategoryInsert
	case *pg_query.Node_SelectStmt:
		return domain.CategoryQuery
	case *pg_query.Node_UpdateStmt:
		return domain.CategoryUpdate
	case *pg_query.Node_DeleteStmt:
		return domain.CategoryDelete
	default:
		return domain.CategoryOther
	}
}
