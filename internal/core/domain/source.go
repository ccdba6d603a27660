package domain

import (
	"fmt"
	"strings"
)

// DbKind identifies the database engine behind a source.
type DbKind int

const (
	MySQL DbKind = iota + 1
	PostgreSQL
	SQLServer
	SQLite
)

var kindNames = map[DbKind]string{
	MySQL:      "mysql",
	PostgreSQL: "postgresql",
	SQLServer:  "sqlserver",
	SQLite:     "sqlite",
}

var kindAliases = map[string]DbKind{
	"mysql":      MySQL,
	"postgresql": PostgreSQL,
	"postgres":   PostgreSQL,
	"pgsql":      PostgreSQL,
	"sqlserver":  SQLServer,
	"mssql":      SQLServer,
	"sqlite":     SQLite,
}

// ParseDbKind resolves a database kind name case-insensitively.
func ParseDbKind(s string) (DbKind, error) {
	if k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k DbKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("DbKind(%d)", int(k))
}

// UsesAttributeDSN reports whether addresses for this kind are normalized from
// the compact user:pass@proto(host:port)/db form into attribute-value form.
func (k DbKind) UsesAttributeDSN() bool {
	return k == MySQL
}

// Descriptor is an admitted connection source. Treat it as immutable.
type Descriptor struct {
	Alias            string
	Kind             DbKind
	ConnectionString string
	AutoClose        bool
}

// Redacted returns the connection string with password values masked.
func (d Descriptor) Redacted() string {
	if !IsAttributeForm(d.ConnectionString) {
		return redactURLStyle(d.ConnectionString)
	}
	attrs := ParseAttributes(d.ConnectionString)
	for _, a := range attrs {
		if isPasswordKey(a.Key) {
			return FormatAttributes(maskPasswords(attrs))
		}
	}
	return d.ConnectionString
}

func maskPasswords(attrs Attributes) Attributes {
	out := make(Attributes, len(attrs))
	for i, a := range attrs {
		if isPasswordKey(a.Key) {
			a.Value = "***"
		}
		out[i] = a
	}
	return out
}

func isPasswordKey(k string) bool {
	switch k {
	case "pwd", "password":
		return true
	}
	return false
}

// redactURLStyle masks the password in user:pass@host forms.
func redactURLStyle(s string) string {
	at := strings.LastIndex(s, "@")
	if at < 0 {
		return s
	}
	head := s[:at]
	start := strings.Index(head, "://") + 1
	if start > 0 {
		start += 2
	}
	colon := strings.Index(head[start:], ":")
	if colon < 0 {
		return s
	}
	return head[:start+colon+1] + "***" + s[at:]
}
