// Package storage opens the backend selected by the configured DSN: the
// in-process memstore for "memory", PostgreSQL through pgx otherwise.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/fundkeeper/internal/dbx"
	"github.com/dmitrijs2005/fundkeeper/internal/server/config"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/memstore"
	"github.com/dmitrijs2005/fundkeeper/internal/server/repositories/repomanager"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// openDB is a test seam for sql.Open.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// Storage is what the services need from a backend.
type Storage struct {
	Manager    repomanager.RepositoryManager
	Transactor dbx.Transactor
	// Probe is nil for the memstore, which is always reachable.
	Probe func(ctx context.Context) error
	db    *sql.DB
}

// Open connects to dsn and checks the connection. Migrations are not run.
func Open(ctx context.Context, dsn string) (*Storage, error) {
	if dsn == config.MemoryDSN {
		s := memstore.New()
		return &Storage{Manager: s, Transactor: s}, nil
	}

	db, err := openDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	m, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository manager creation error: %w", err)
	}

	return &Storage{
		Manager:    m,
		Transactor: dbx.NewSQLTransactor(db, nil),
		Probe:      db.PingContext,
		db:         db,
	}, nil
}

// Close releases the database pool, if any.
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
