package source

import (
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/guillermoBallester/txscope/internal/core/domain"
)

// Normalize converts a compact user:pass@proto(host:port)/db?... DSN into
// server=..;port=..;database=..;uid=..;pwd=..; form. Attribute-value input is
// returned unchanged.
func Normalize(addr string) (string, error) {
	if domain.IsAttributeForm(addr) {
		return addr, nil
	}

	cfg, err := mysql.ParseDSN(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidDSN, err)
	}

	host, port := cfg.Addr, ""
	if h, p, err := net.SplitHostPort(cfg.Addr); err == nil {
		host, port = h, p
	}

	attrs := domain.Attributes{{Key: "server", Value: host}}
	if port != "" {
		attrs = append(attrs, domain.Attribute{Key: "port", Value: port})
	}
	attrs = append(attrs,
		domain.Attribute{Key: "database", Value: cfg.DBName},
		domain.Attribute{Key: "uid", Value: cfg.User},
		domain.Attribute{Key: "pwd", Value: cfg.Passwd},
	)
	return domain.FormatAttributes(attrs), nil
}
