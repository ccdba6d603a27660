package postgres

import (
	"testing"

	"github.com/guillermoBallester/txscope/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sql  string
		want domain.Category
	}{
		{"insert", "INSERT INTO t (a) VALUES (1)", domain.CategoryInsert},
		{"select", "SELECT * FROM t", domain.CategoryQuery},
		{"update", "UPDATE t SET a = 1", domain.CategoryUpdate},
		{"delete", "DELETE FROM t WHERE a = 1", domain.CategoryDelete},
		{"leading comment", "/* batch */ SELECT 1", domain.CategoryQuery},
		{"cte insert", "WITH src AS (SELECT 1 AS a) INSERT INTO t SELECT a FROM src", domain.CategoryInsert},
		{"cte delete", "WITH gone AS (SELECT 1) DELETE FROM t", domain.CategoryDelete},
		{"commit", "COMMIT", domain.CategoryOther},
		{"ddl", "CREATE TABLE t (a int)", domain.CategoryOther},
		{"empty", "   ", domain.CategoryOther},
		{"parse failure falls back", "UPDATE t SET WHERE", domain.CategoryUpdate},
	}

	var cl Classifier
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, cl.Classify(tt.sql))
		})
	}
}
