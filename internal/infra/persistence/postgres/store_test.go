package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"vetclinic/internal/infra/persistence/postgres/testutil"
	"vetclinic/pkg/domain"
)

func openStub(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		if driverName != defaultDriver {
			t.Fatalf("unexpected driver %s", driverName)
		}
		if dsn != defaultDSN {
			t.Fatalf("expected default dsn, got %s", dsn)
		}
		return db, nil
	})
	t.Cleanup(restore)
	store, err := NewStore("", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, conn
}

func TestNewStoreAppliesSchema(t *testing.T) {
	store, conn := openStub(t)
	if store.Dialect() != "postgres" {
		t.Fatalf("unexpected dialect %s", store.Dialect())
	}
	stmts := conn.Statements()
	if len(stmts) != len(schema) {
		t.Fatalf("expected %d DDL statements, got %d", len(schema), len(stmts))
	}
	var sawPartialIndex bool
	for _, stmt := range stmts {
		if strings.Contains(stmt, "idx_appointments_doctor_slot") && strings.Contains(stmt, "WHERE status <> 'cancelled'") {
			sawPartialIndex = true
		}
	}
	if !sawPartialIndex {
		t.Fatalf("expected partial slot index in %v", stmts)
	}
}

func TestRunInTransactionRebindsPlaceholders(t *testing.T) {
	store, conn := openStub(t)
	var created domain.Doctor
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateDoctor(domain.Doctor{Name: "Dr. Pg", Fee: decimal.NewFromInt(1500)})
		return err
	})
	if err != nil {
		t.Fatalf("create doctor: %v", err)
	}
	if created.ID != 1 {
		t.Fatalf("expected returned id 1, got %d", created.ID)
	}
	if len(conn.Queries) != 1 || !strings.Contains(conn.Queries[0], "$3") || strings.Contains(conn.Queries[0], "?") {
		t.Fatalf("expected dollar placeholders, got %v", conn.Queries)
	}
	if conn.Commits != 1 {
		t.Fatalf("expected one commit, got %d", conn.Commits)
	}
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	store, conn := openStub(t)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateMedicine(7, func(*domain.Medicine) error { return nil })
		return err
	})
	if domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not found from empty stub, got %v", err)
	}
	if conn.Commits != 0 || conn.Rollbacks != 1 {
		t.Fatalf("expected rollback only, commits=%d rollbacks=%d", conn.Commits, conn.Rollbacks)
	}
}

func TestNewStoreErrors(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("no driver") })
	if _, err := NewStore("postgres://x", nil); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
	restore()

	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore = OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore("postgres://x", nil); err == nil || !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping error, got %v", err)
	}

	db, conn = testutil.NewStubDB()
	conn.FailExec = errors.New("ddl refused")
	restore2 := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore2()
	if _, err := NewStore("postgres://x", nil); err == nil || !strings.Contains(err.Error(), "apply schema") {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestUniqueViolationDecodesConstraint(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "idx_appointments_patient_slot"})
	constraint, ok := uniqueViolation(err)
	if !ok || constraint != "idx_appointments_patient_slot" {
		t.Fatalf("unexpected decode %q %v", constraint, ok)
	}
	if _, ok := uniqueViolation(&pgconn.PgError{Code: "23503"}); ok {
		t.Fatalf("foreign key violation is not a duplicate")
	}
	if _, ok := uniqueViolation(errors.New("plain")); ok {
		t.Fatalf("plain errors are not duplicates")
	}
}
