// Package sqlite provides the embedded single-file clinic store.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"vetclinic/internal/infra/persistence/sqlstore"
	"vetclinic/pkg/domain"
)

const (
	driverName  = "sqlite"
	defaultPath = "vet_clinic.db"
	pragmas     = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
)

func init() {
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

// Dialect describes SQLite for the shared SQL store.
var Dialect = sqlstore.Dialect{
	Name:            "sqlite",
	Schema:          schema,
	UniqueViolation: uniqueViolation,
}

// Store is a SQLite-backed clinic store.
type Store struct {
	*sqlstore.Store
	path string
}

// NewStore opens (creating if needed) the database file at path and applies the schema.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	return open("file:"+path+"?"+pragmas, path, engine)
}

// NewMemoryStore opens a private in-memory database, used for ephemeral runs and tests.
func NewMemoryStore(engine *domain.RulesEngine) (*Store, error) {
	return open("file::memory:?"+pragmas, ":memory:", engine)
}

func open(dsn, path string, engine *domain.RulesEngine) (*Store, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	store := &Store{Store: sqlstore.New(db, Dialect, engine), path: path}
	if err := store.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

func uniqueViolation(err error) (string, bool) {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return "", false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return se.Error(), true
	}
	return "", false
}
