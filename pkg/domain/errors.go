package domain

import (
	"errors"
	"fmt"
)

// ErrorKind discriminates the recoverable failures surfaced to callers.
type ErrorKind string

// Error kinds reported by KindOf.
const (
	KindUnknown           ErrorKind = ""
	KindValidation        ErrorKind = "validation"
	KindNotFound          ErrorKind = "not_found"
	KindScheduleConflict  ErrorKind = "schedule_conflict"
	KindInvalidDate       ErrorKind = "invalid_date"
	KindUnknownMedicine   ErrorKind = "unknown_medicine"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindRuleViolation     ErrorKind = "rule_violation"
	KindStorage           ErrorKind = "storage"
)

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ErrNotFound is returned when a referenced record does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NotFound builds an ErrNotFound for integer or string identifiers.
func NotFound[ID int64 | string](entity EntityType, id ID) ErrNotFound {
	return ErrNotFound{Entity: entity, ID: fmt.Sprint(id)}
}

// Parties named by ScheduleConflictError.
const (
	PartyDoctor  = "Doctor"
	PartyPatient = "Patient"
)

// ScheduleConflictError reports that a doctor or patient already holds the slot.
type ScheduleConflictError struct {
	Party         string
	AppointmentID string
	Date          string
	Time          string
}

func (e ScheduleConflictError) Error() string {
	msg := fmt.Sprintf("%s already has an appointment on %s at %s", e.Party, e.Date, e.Time)
	if e.AppointmentID != "" {
		msg += " (" + e.AppointmentID + ")"
	}
	return msg
}

// InvalidDateError rejects bookings dated before today.
type InvalidDateError struct {
	Date  string
	Today string
}

func (e InvalidDateError) Error() string {
	return fmt.Sprintf("cannot book an appointment in the past: %s is before %s", e.Date, e.Today)
}

// UnknownMedicineError reports a prescription for a medicine missing from inventory.
type UnknownMedicineError struct {
	Name string
}

func (e UnknownMedicineError) Error() string {
	return fmt.Sprintf("medicine %q not found in inventory", e.Name)
}

// InsufficientStockError reports a prescription larger than the on-hand stock.
type InsufficientStockError struct {
	Medicine  string
	Requested int
	Available int
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("requested quantity (%d) exceeds available stock (%d) of %s", e.Requested, e.Available, e.Medicine)
}

// StorageError wraps a failure of the underlying database.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e StorageError) Unwrap() error { return e.Err }

// ErrDuplicate matches unique constraint violations raised by a store.
var ErrDuplicate = errors.New("duplicate key")

// DuplicateError carries the violated constraint, when the driver reports it.
type DuplicateError struct {
	Entity     EntityType
	Constraint string
	Err        error
}

func (e DuplicateError) Error() string {
	if e.Constraint == "" {
		return fmt.Sprintf("%s: duplicate key", e.Entity)
	}
	return fmt.Sprintf("%s: duplicate key violates %s", e.Entity, e.Constraint)
}

func (e DuplicateError) Unwrap() error { return e.Err }

// Is reports a match against ErrDuplicate.
func (e DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// KindOf classifies err for presentation. Errors wrapped with %w are unwrapped.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var (
		validation ValidationError
		notFound   ErrNotFound
		conflict   ScheduleConflictError
		invalid    InvalidDateError
		unknown    UnknownMedicineError
		stock      InsufficientStockError
		rules      RuleViolationError
		storage    StorageError
	)
	switch {
	case errors.As(err, &conflict):
		return KindScheduleConflict
	case errors.As(err, &invalid):
		return KindInvalidDate
	case errors.As(err, &unknown):
		return KindUnknownMedicine
	case errors.As(err, &stock):
		return KindInsufficientStock
	case errors.As(err, &notFound):
		return KindNotFound
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &rules):
		return KindRuleViolation
	case errors.As(err, &storage), errors.Is(err, ErrDuplicate):
		return KindStorage
	}
	return KindUnknown
}
