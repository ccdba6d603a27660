// Package sqldb implements port.Opener on database/sql, one pool per source.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/guillermoBallester/txscope/internal/core/domain"
	"github.com/guillermoBallester/txscope/internal/core/port"
)

const pingTimeout = 10 * time.Second

var _ port.Opener = (*Opener)(nil)

// PoolOptions bound each source's connection pool.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Opener lazily opens one *sql.DB per source and hands out handles on it.
type Opener struct {
	opts   PoolOptions
	logger *slog.Logger

	mu  sync.Mutex
	dbs map[poolKey]*sql.DB
}

type poolKey struct {
	alias string
	dsn   string
}

func NewOpener(opts PoolOptions, logger *slog.Logger) *Opener {
	return &Opener{
		opts:   opts,
		logger: logger,
		dbs:    make(map[poolKey]*sql.DB),
	}
}

// Open pins a connection from the source's pool and wraps it so hooks see
// every statement.
func (o *Opener) Open(ctx context.Context, d domain.Descriptor, hooks port.ExecHooks) (port.Handle, error) {
	db, err := o.pool(ctx, d)
	if err != nil {
		return nil, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	return NewInstrumentedConn(newPinned(d, conn), hooks), nil
}

// OpenAdHoc returns an uninstrumented handle that runs each statement on any
// pooled connection in autocommit mode.
func (o *Opener) OpenAdHoc(ctx context.Context, d domain.Descriptor) (port.Handle, error) {
	db, err := o.pool(ctx, d)
	if err != nil {
		return nil, err
	}
	return newAdHoc(d, db), nil
}

func (o *Opener) pool(ctx context.Context, d domain.Descriptor) (*sql.DB, error) {
	key := poolKey{alias: d.Alias, dsn: d.ConnectionString}

	o.mu.Lock()
	defer o.mu.Unlock()
	if db, ok := o.dbs[key]; ok {
		return db, nil
	}

	db, err := openDB(d)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", d.Kind, err)
	}
	db.SetMaxOpenConns(o.opts.MaxOpenConns)
	db.SetConnMaxLifetime(o.opts.ConnMaxLifetime)
	if d.AutoClose {
		db.SetMaxIdleConns(0)
	} else {
		db.SetMaxIdleConns(o.opts.MaxIdleConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database (10s timeout): %w", err)
	}

	o.dbs[key] = db
	o.logger.Info("connection pool opened",
		slog.String("alias", d.Alias),
		slog.String("db.system", d.Kind.String()),
		slog.String("connection", d.Redacted()),
	)
	return db, nil
}

// Close closes every pool. Handles still pinned fail afterwards.
func (o *Opener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var errs []error
	for key, db := range o.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", key.alias, err))
		}
		delete(o.dbs, key)
	}
	return errors.Join(errs...)
}
