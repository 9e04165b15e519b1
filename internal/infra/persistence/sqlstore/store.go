// Package sqlstore implements domain.PersistentStore over database/sql through
// sqlx. Dialect packages (sqlite, postgres) supply the driver, schema and
// constraint error decoding.
package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"

	"vetclinic/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// Dialect describes the database specific parts of the store.
type Dialect struct {
	Name string
	// Schema holds idempotent DDL statements applied by Migrate, in order.
	Schema []string
	// UniqueViolation reports whether err is a unique constraint failure and,
	// when the driver exposes it, the violated constraint or column list.
	UniqueViolation func(err error) (constraint string, ok bool)
}

// Store runs clinic transactions against a relational database. Writers are
// serialized; each RunInTransaction maps to exactly one database transaction.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	engine  *domain.RulesEngine
	mu      sync.RWMutex
}

// New wraps an open database handle. The caller keeps ownership of dialect
// registration; Migrate must run before first use on a fresh database.
func New(db *sqlx.DB, dialect Dialect, engine *domain.RulesEngine) *Store {
	return &Store{db: db, dialect: dialect, engine: engine}
}

// Migrate applies the dialect schema.
func (s *Store) Migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stmt := range s.dialect.Schema {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: apply schema: %w", s.dialect.Name, err)
		}
	}
	return nil
}

// RunInTransaction executes fn inside a database transaction. Registered rules
// see the uncommitted state; a blocking violation rolls everything back.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Result{}, domain.StorageError{Op: "begin", Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	tx := &transaction{
		view:    view{ctx: ctx, q: sqlTx},
		dialect: s.dialect,
	}
	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, &tx.view, tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return result, domain.StorageError{Op: "commit", Err: err}
	}
	committed = true
	return result, nil
}

// View executes fn against committed data.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&view{ctx: ctx, q: s.db})
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for tests and administrative tooling.
func (s *Store) DB() *sqlx.DB { return s.db }

// Dialect returns the dialect name.
func (s *Store) Dialect() string { return s.dialect.Name }
