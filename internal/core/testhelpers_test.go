package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"vetclinic/internal/infra/persistence/sqlite"
	"vetclinic/pkg/domain"
)

// fixedNow is before the 2024-03-10 bookings used throughout the tests.
var fixedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

const bookingDate = "2024-03-10"

func fixedClock() Clock {
	return ClockFunc(func() time.Time { return fixedNow })
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.NewMemoryStore(NewDefaultRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestService(t *testing.T, opts ...Option) (*Service, *sqlite.Store) {
	t.Helper()
	store := newTestStore(t)
	opts = append([]Option{WithClock(fixedClock())}, opts...)
	return NewService(store, opts...), store
}

// clinic seeds the doctor roster (ids 1-9) and seven patients (ids 1-7).
type clinic struct {
	svc      *Service
	store    *sqlite.Store
	doctors  []domain.Doctor
	patients []domain.Patient
}

func newClinic(t *testing.T, opts ...Option) *clinic {
	t.Helper()
	svc, store := newTestService(t, opts...)
	ctx := context.Background()
	if _, err := svc.SeedDoctors(ctx); err != nil {
		t.Fatalf("seed doctors: %v", err)
	}
	doctors, err := svc.ListDoctors(ctx)
	if err != nil {
		t.Fatalf("list doctors: %v", err)
	}
	c := &clinic{svc: svc, store: store, doctors: doctors}
	species := []string{"Dog", "Cat", "Dog", "Rabbit", "Cat", "Dog", "Bird"}
	for i := 1; i <= 7; i++ {
		p, err := svc.SavePatient(ctx, domain.Patient{
			Name:      fmt.Sprintf("Pet %d", i),
			Species:   species[i-1],
			OwnerName: fmt.Sprintf("Owner %d", (i+1)/2),
		})
		if err != nil {
			t.Fatalf("save patient %d: %v", i, err)
		}
		c.patients = append(c.patients, p)
	}
	return c
}

func (c *clinic) book(t *testing.T, patientID, doctorID int64, slot string) domain.Appointment {
	t.Helper()
	appt, _, err := c.svc.BookAppointment(context.Background(), AppointmentDraft{
		PatientID: patientID,
		DoctorID:  doctorID,
		Date:      bookingDate,
		Time:      slot,
	}, "")
	if err != nil {
		t.Fatalf("book patient %d with doctor %d at %s: %v", patientID, doctorID, slot, err)
	}
	return appt
}

func (c *clinic) medicine(t *testing.T, name string, stock int, price string) domain.Medicine {
	t.Helper()
	m, err := c.svc.SaveMedicine(context.Background(), domain.Medicine{Name: name, Stock: stock, Price: decimal.RequireFromString(price), Form: "Tablet"})
	if err != nil {
		t.Fatalf("save medicine %s: %v", name, err)
	}
	return m
}

// diagnosis books patient 1 with doctor 1 and records a diagnosis for it.
func (c *clinic) diagnosis(t *testing.T) domain.Diagnosis {
	t.Helper()
	appt := c.book(t, 1, 1, "08:00")
	out, err := c.svc.SaveDiagnosis(context.Background(), appt.ID, "Ear infection", 0)
	if err != nil {
		t.Fatalf("save diagnosis: %v", err)
	}
	return out.Diagnosis
}

func (c *clinic) stock(t *testing.T, name string) int {
	t.Helper()
	var stock int
	err := c.store.View(context.Background(), func(v domain.TransactionView) error {
		m, ok, err := v.FindMedicineByName(name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("medicine %s missing", name)
		}
		stock = m.Stock
		return nil
	})
	if err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return stock
}

func requireKind(t *testing.T, err error, kind domain.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := domain.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s: %v", kind, got, err)
	}
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *captureLogger) log(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.log("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.log("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.log("error", msg, args) }

// find returns the first entry at level whose args contain key=value.
func (l *captureLogger) find(level, key string, value any) (logEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level != level {
			continue
		}
		for i := 0; i+1 < len(e.args); i += 2 {
			if e.args[i] == key && e.args[i+1] == value {
				return e, true
			}
		}
	}
	return logEntry{}, false
}

func argValue(e logEntry, key string) any {
	for i := 0; i+1 < len(e.args); i += 2 {
		if e.args[i] == key {
			return e.args[i+1]
		}
	}
	return nil
}

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			if predicate == nil || predicate(entry) {
				return true
			}
		}
	}
	return false
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type spanRecord struct {
	op  string
	err error
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	for _, record := range c.ended {
		if record.op == op && (record.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

var errBoom = errors.New("boom")
