package core

import (
	"context"
	"fmt"
	"time"

	"vetclinic/pkg/domain"
)

// Service exposes the clinic's transactional operations over a PersistentStore.
type Service struct {
	store   domain.PersistentStore
	clock   Clock
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
}

// Option customizes a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	clock   Clock
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:   ClockFunc(time.Now),
		logger:  noopLogger{},
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
	}
}

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger installs a structured logger.
func WithLogger(logger Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder installs an audit sink for mutating operations.
func WithAuditRecorder(audit AuditRecorder) Option {
	return func(o *serviceOptions) {
		if audit != nil {
			o.audit = audit
		}
	}
}

// WithMetricsRecorder installs a metrics sink.
func WithMetricsRecorder(metrics MetricsRecorder) Option {
	return func(o *serviceOptions) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(tracer Tracer) Option {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	options := defaultServiceOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Service{
		store:   store,
		clock:   options.clock,
		logger:  options.logger,
		audit:   options.audit,
		metrics: options.metrics,
		tracer:  options.tracer,
	}
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

func (s *Service) now() time.Time {
	return s.clock.Now()
}

func (s *Service) today() string {
	return domain.Today(s.now())
}

type operationMeta struct {
	entity domain.EntityType
	action domain.Action
}

// operations lists the audited mutating calls.
var operations = map[string]operationMeta{
	"book_appointment":         {domain.EntityAppointment, domain.ActionCreate},
	"update_appointment":       {domain.EntityAppointment, domain.ActionUpdate},
	"cancel_appointment":       {domain.EntityAppointment, domain.ActionUpdate},
	"delete_appointment":       {domain.EntityAppointment, domain.ActionDelete},
	"save_diagnosis":           {domain.EntityDiagnosis, domain.ActionUpdate},
	"delete_diagnosis":         {domain.EntityDiagnosis, domain.ActionDelete},
	"add_medication":           {domain.EntityMedication, domain.ActionCreate},
	"delete_medication":        {domain.EntityMedication, domain.ActionDelete},
	"save_medicine":            {domain.EntityMedicine, domain.ActionUpdate},
	"delete_medicine":          {domain.EntityMedicine, domain.ActionDelete},
	"seed_sample_medicines":    {domain.EntityMedicine, domain.ActionCreate},
	"save_patient":             {domain.EntityPatient, domain.ActionUpdate},
	"archive_patient":          {domain.EntityPatient, domain.ActionDelete},
	"restore_archived_patient": {domain.EntityPatient, domain.ActionUpdate},
	"purge_archived_patient":   {domain.EntityArchivedPatient, domain.ActionDelete},
	"save_doctor":              {domain.EntityDoctor, domain.ActionUpdate},
	"update_doctor_fee":        {domain.EntityDoctor, domain.ActionUpdate},
	"delete_doctor":            {domain.EntityDoctor, domain.ActionDelete},
	"seed_doctors":             {domain.EntityDoctor, domain.ActionCreate},
}

// run executes fn in one store transaction with logging, metrics, tracing and
// audit around it. fn returns the id of the affected entity for reporting.
func (s *Service) run(ctx context.Context, op string, fn func(domain.Transaction) (string, error)) (domain.Result, error) {
	ctx, span := s.tracer.Start(ctx, op)
	start := s.now()
	var entityID string
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		id, err := fn(tx)
		entityID = id
		return err
	})
	duration := s.now().Sub(start)
	s.metrics.Observe(ctx, op, err == nil, duration)
	span.End(err)

	for _, v := range res.Violations {
		if v.Severity == domain.SeverityBlock {
			continue
		}
		s.logger.Warn("rule violation", "operation", op, "rule", v.Rule, "severity", v.Severity, "message", v.Message, "entity_id", v.EntityID)
	}
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "entity_id", entityID, "kind", domain.KindOf(err), "error", err, "duration", duration)
		s.recordAuditError(ctx, op, entityID, duration, err)
		return res, err
	}
	s.logger.Debug("operation completed", "operation", op, "entity_id", entityID, "duration", duration)
	s.recordAuditSuccess(ctx, op, entityID, duration)
	return res, nil
}

// read runs fn against committed data with metrics and tracing.
func (s *Service) read(ctx context.Context, op string, fn func(domain.TransactionView) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	start := s.now()
	err := s.store.View(ctx, fn)
	duration := s.now().Sub(start)
	s.metrics.Observe(ctx, op, err == nil, duration)
	span.End(err)
	if err != nil {
		s.logger.Error("read failed", "operation", op, "kind", domain.KindOf(err), "error", err, "duration", duration)
	}
	return err
}

func (s *Service) recordAuditSuccess(ctx context.Context, op, entityID string, duration time.Duration) {
	s.recordAudit(ctx, op, entityID, duration, AuditStatusSuccess, nil)
}

func (s *Service) recordAuditError(ctx context.Context, op, entityID string, duration time.Duration, err error) {
	s.recordAudit(ctx, op, entityID, duration, AuditStatusError, err)
}

func (s *Service) recordAudit(ctx context.Context, op, entityID string, duration time.Duration, status AuditStatus, err error) {
	meta, ok := operations[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    status,
		Duration:  duration,
		Timestamp: s.now(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

func idString(id int64) string {
	if id == 0 {
		return ""
	}
	return fmt.Sprint(id)
}
