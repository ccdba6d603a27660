package domain

import (
	"errors"
	"fmt"
)

// Configuration errors. Initialize returns them wrapped in a *ConfigError.
var (
	ErrNilConfig      = errors.New("source configuration is nil")
	ErrMalformedKey   = errors.New("malformed source key")
	ErrUnknownKind    = errors.New("unknown database kind")
	ErrEmptyAddress   = errors.New("empty source address")
	ErrDuplicateAlias = errors.New("duplicate source alias")
	ErrInvalidDSN     = errors.New("invalid DSN")
)

var (
	ErrNoSources         = errors.New("no connection sources configured")
	ErrSourceNotFound    = errors.New("connection source not found")
	ErrStatementMismatch = errors.New("statement does not match operation")
)

// ConfigError reports a rejected source setting.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("source config: %v", e.Err)
	}
	return fmt.Sprintf("source config %q: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
