// Package postgres opens PostgreSQL sources through pgx and classifies their
// statements with the PostgreSQL parser.
package postgres

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/guillermoBallester/txscope/internal/core/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

var keywordNames = map[string]string{
	"server":          "host",
	"data source":     "host",
	"database":        "dbname",
	"initial catalog": "dbname",
	"uid":             "user",
	"user id":         "user",
	"pwd":             "password",
}

// OpenDB opens a database/sql pool backed by pgx. connString may be a URL,
// a pgx keyword/value string or an attribute-value string with
// server/database/uid/pwd keys.
func OpenDB(connString string) (*sql.DB, error) {
	cfg, err := ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	return stdlib.OpenDB(*cfg), nil
}

// ParseConfig parses connString into a pgx connection config.
func ParseConfig(connString string) (*pgx.ConnConfig, error) {
	if domain.IsAttributeForm(connString) && strings.Contains(connString, ";") {
		connString = toKeywords(domain.ParseAttributes(connString))
	}
	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	return cfg, nil
}

// toKeywords renders attrs as libpq keyword/value pairs.
func toKeywords(attrs domain.Attributes) string {
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		key := a.Key
		if mapped, ok := keywordNames[key]; ok {
			key = mapped
		}
		parts = append(parts, key+"="+quoteValue(a.Value))
	}
	return strings.Join(parts, " ")
}

func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
