// Package domain defines the clinic's persistent entities, value types, error
// taxonomy and rule evaluation primitives used by vetclinic.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies the type of record stored in the clinic schema.
type EntityType string

// Supported entity type identifiers used in Change records and error reports.
const (
	EntityPatient         EntityType = "patient"
	EntityArchivedPatient EntityType = "archived_patient"
	EntityDoctor          EntityType = "doctor"
	EntityAppointment     EntityType = "appointment"
	EntityDiagnosis       EntityType = "diagnosis"
	EntityMedication      EntityType = "medication"
	EntityMedicine        EntityType = "medicine"
	// EntityClient names a pet owner; owners have no table of their own.
	EntityClient EntityType = "client"
)

// PatientState tracks a patient record through soft deletion.
type PatientState string

// Patient lifecycle: active -> archived -> {active, purged}.
const (
	PatientActive   PatientState = "active"
	PatientArchived PatientState = "archived"
	// PatientPurged keeps the row for historic appointments after the archive entry is dropped.
	PatientPurged PatientState = "purged"
)

// CanTransition reports whether a patient may move from s to next.
func (s PatientState) CanTransition(next PatientState) bool {
	switch s {
	case PatientActive:
		return next == PatientArchived
	case PatientArchived:
		return next == PatientActive || next == PatientPurged
	default:
		return false
	}
}

// AppointmentStatus enumerates appointment workflow states.
type AppointmentStatus string

// Canonical appointment statuses. Cancelled appointments never occupy a slot.
const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an appointment in status s may be saved with status next.
// Completed and cancelled are terminal; re-saving the same status is always allowed.
func (s AppointmentStatus) CanTransition(next AppointmentStatus) bool {
	if s == next {
		return true
	}
	return s == StatusScheduled && (next == StatusCompleted || next == StatusCancelled)
}

// OccupiesSlot reports whether an appointment in this status blocks its slot.
func (s AppointmentStatus) OccupiesSlot() bool {
	return s != StatusCancelled
}

// Patient is an animal registered with the clinic.
type Patient struct {
	ID           int64        `db:"id" json:"id"`
	Name         string       `db:"name" json:"name" validate:"required"`
	Species      string       `db:"species" json:"species"`
	Breed        string       `db:"breed" json:"breed"`
	Age          int          `db:"age" json:"age" validate:"gte=0"`
	OwnerName    string       `db:"owner_name" json:"owner_name" validate:"required"`
	OwnerContact string       `db:"owner_contact" json:"owner_contact"`
	Notes        string       `db:"notes" json:"notes"`
	State        PatientState `db:"state" json:"state"`
}

// Client returns the owner the patient is billed to.
func (p Patient) Client() Client {
	return Client{OwnerName: p.OwnerName, OwnerContact: p.OwnerContact}
}

// Client identifies a pet owner. Two owners sharing a name are told apart by
// contact.
type Client struct {
	OwnerName    string `db:"owner_name" json:"owner_name"`
	OwnerContact string `db:"owner_contact" json:"owner_contact"`
}

// ClientVisits counts a client's completed appointments.
type ClientVisits struct {
	Client
	Visits int `db:"visits" json:"visits"`
}

// Deleted reports the legacy soft-delete flag.
func (p Patient) Deleted() bool {
	return p.State != "" && p.State != PatientActive
}

// ArchivedPatient is a copy of a soft-deleted patient kept for restore or purge.
type ArchivedPatient struct {
	ID           int64     `db:"id" json:"id"`
	PatientID    int64     `db:"patient_id" json:"patient_id"`
	Name         string    `db:"name" json:"name"`
	Species      string    `db:"species" json:"species"`
	Breed        string    `db:"breed" json:"breed"`
	Age          int       `db:"age" json:"age"`
	OwnerName    string    `db:"owner_name" json:"owner_name"`
	OwnerContact string    `db:"owner_contact" json:"owner_contact"`
	Notes        string    `db:"notes" json:"notes"`
	ArchivedAt   time.Time `db:"-" json:"archived_at"`
}

// Patient rebuilds the active patient record held by the archive entry.
func (a ArchivedPatient) Patient() Patient {
	return Patient{
		ID:           a.PatientID,
		Name:         a.Name,
		Species:      a.Species,
		Breed:        a.Breed,
		Age:          a.Age,
		OwnerName:    a.OwnerName,
		OwnerContact: a.OwnerContact,
		Notes:        a.Notes,
		State:        PatientActive,
	}
}

// Doctor is an attending veterinarian.
type Doctor struct {
	ID             int64           `db:"id" json:"id"`
	Name           string          `db:"name" json:"name" validate:"required"`
	Specialization string          `db:"specialization" json:"specialization"`
	Fee            decimal.Decimal `db:"fee" json:"fee"`
}

// Appointment books a patient with a doctor at a slot.
type Appointment struct {
	ID        string            `db:"id" json:"id"`
	PatientID int64             `db:"patient_id" json:"patient_id"`
	DoctorID  int64             `db:"doctor_id" json:"doctor_id"`
	Date      string            `db:"date" json:"date"`
	Time      string            `db:"time" json:"time"`
	Status    AppointmentStatus `db:"status" json:"status"`
	Notes     string            `db:"notes" json:"notes"`
}

// Diagnosis records the findings of an appointment.
type Diagnosis struct {
	ID            int64  `db:"id" json:"id"`
	AppointmentID string `db:"appointment_id" json:"appointment_id"`
	PatientID     int64  `db:"patient_id" json:"patient_id"`
	DoctorID      int64  `db:"doctor_id" json:"doctor_id"`
	Text          string `db:"diagnosis_text" json:"diagnosis_text"`
	Date          string `db:"diagnosis_date" json:"diagnosis_date"`
}

// Medication is one prescription line attached to a diagnosis. Price is the
// unit price at the time of prescribing, independent of later inventory changes.
type Medication struct {
	ID           int64           `db:"id" json:"id"`
	DiagnosisID  int64           `db:"diagnosis_id" json:"diagnosis_id"`
	MedicineName string          `db:"medicine_name" json:"medicine_name"`
	Quantity     int             `db:"quantity" json:"quantity"`
	Price        decimal.Decimal `db:"price" json:"price"`
}

// Subtotal returns price * quantity for the line.
func (m Medication) Subtotal() decimal.Decimal {
	return m.Price.Mul(decimal.NewFromInt(int64(m.Quantity)))
}

// MedicationTotal sums the subtotals of the supplied lines.
func MedicationTotal(lines []Medication) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// Medicine is an inventory item. Stock is only decremented by prescriptions.
type Medicine struct {
	ID              int64           `db:"id" json:"id"`
	Name            string          `db:"name" json:"name" validate:"required"`
	Stock           int             `db:"stock" json:"stock" validate:"gte=0"`
	Price           decimal.Decimal `db:"price" json:"price"`
	Form            string          `db:"form" json:"form"`
	IntendedUse     string          `db:"intended_use" json:"intended_use"`
	SupplierName    string          `db:"supplier_name" json:"supplier_name"`
	SupplierContact string          `db:"supplier_contact" json:"supplier_contact"`
}

// Change describes a mutation applied to an entity within a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions captured for rule evaluation.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	SeverityWarn  Severity = "warn"
	SeverityLog   Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock && v.Message != "" {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}
