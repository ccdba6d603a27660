package sqldb

import (
	"database/sql"
	"net"
	"strings"

	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/go-sql-driver/mysql"
	"github.com/guillermoBallester/txscope/internal/adapter/postgres"
	"github.com/guillermoBallester/txscope/internal/core/domain"

	_ "modernc.org/sqlite"
)

const (
	defaultMySQLPort = "3306"
	sqlitePragmas    = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
)

func openDB(d domain.Descriptor) (*sql.DB, error) {
	switch d.Kind {
	case domain.MySQL:
		return sql.Open("mysql", mysqlDSN(d.ConnectionString))
	case domain.PostgreSQL:
		return postgres.OpenDB(d.ConnectionString)
	case domain.SQLServer:
		connector, err := mssql.NewConnector(sqlServerDSN(d.ConnectionString))
		if err != nil {
			return nil, err
		}
		return sql.OpenDB(connector), nil
	case domain.SQLite:
		return sql.Open("sqlite", sqliteDSN(d.ConnectionString))
	default:
		return nil, domain.ErrUnknownKind
	}
}

// mysqlDSN renders server=;port=;database=;uid=;pwd=; attributes as a
// go-sql-driver DSN. Unrecognized attributes become connection parameters.
func mysqlDSN(cs string) string {
	if !domain.IsAttributeForm(cs) {
		return cs
	}
	attrs := domain.ParseAttributes(cs)

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	port := attrs.First("port")
	if port == "" {
		port = defaultMySQLPort
	}
	cfg.Addr = net.JoinHostPort(attrs.First("server", "host", "data source"), port)
	cfg.DBName = attrs.First("database", "initial catalog")
	cfg.User = attrs.First("uid", "user id", "user")
	cfg.Passwd = attrs.First("pwd", "password")

	for _, a := range attrs {
		switch a.Key {
		case "server", "host", "data source", "port", "database", "initial catalog",
			"uid", "user id", "user", "pwd", "password":
			continue
		}
		if cfg.Params == nil {
			cfg.Params = make(map[string]string)
		}
		cfg.Params[a.Key] = a.Value
	}
	return cfg.FormatDSN()
}

var sqlServerKeys = map[string]string{
	"uid": "user id",
	"pwd": "password",
}

// sqlServerDSN maps the short uid/pwd keys onto the ADO names go-mssqldb
// understands. URL-style strings pass through.
func sqlServerDSN(cs string) string {
	if !domain.IsAttributeForm(cs) {
		return cs
	}
	attrs := domain.ParseAttributes(cs)
	var b strings.Builder
	for _, a := range attrs {
		key := a.Key
		if mapped, ok := sqlServerKeys[key]; ok {
			key = mapped
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(a.Value)
		b.WriteByte(';')
	}
	return b.String()
}

// sqliteDSN accepts "data source=<path>" or a bare path and enables WAL with
// a busy timeout.
func sqliteDSN(cs string) string {
	path := cs
	if domain.IsAttributeForm(cs) {
		path = domain.ParseAttributes(cs).First("data source", "datasource", "filename")
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + sqlitePragmas
}
