package domain

import "context"

// PatientFilter narrows ListPatients. Empty fields match everything.
type PatientFilter struct {
	// Query matches a substring of the patient or owner name.
	Query   string
	Species string
	// IncludeDeleted also returns archived and purged patients.
	IncludeDeleted bool
	// Owner, when set, matches owner name and contact exactly.
	Owner *Client
}

// AppointmentFilter narrows ListAppointments. Zero values match everything.
type AppointmentFilter struct {
	Date      string
	PatientID int64
	DoctorID  int64
	// Month restricts dates to a YYYY-MM month.
	Month string
	// Status, when set, matches only that status.
	Status           AppointmentStatus
	IncludeCancelled bool
}

// ClientFilter narrows ListClients.
type ClientFilter struct {
	// Query matches a substring of the owner name or contact.
	Query string
	// WithCompleted keeps only owners with at least one completed appointment.
	WithCompleted bool
}

// Transaction exposes the clinic operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView

	// CreatePatient inserts a patient, keeping p.ID when it is non-zero.
	CreatePatient(p Patient) (Patient, error)
	UpdatePatient(id int64, mutator func(*Patient) error) (Patient, error)
	CreateArchivedPatient(a ArchivedPatient) (ArchivedPatient, error)
	DeleteArchivedPatient(id int64) error

	CreateDoctor(d Doctor) (Doctor, error)
	UpdateDoctor(id int64, mutator func(*Doctor) error) (Doctor, error)
	DeleteDoctor(id int64) error

	CreateAppointment(a Appointment) (Appointment, error)
	UpdateAppointment(id string, mutator func(*Appointment) error) (Appointment, error)
	DeleteAppointment(id string) error

	CreateDiagnosis(d Diagnosis) (Diagnosis, error)
	UpdateDiagnosis(id int64, mutator func(*Diagnosis) error) (Diagnosis, error)
	DeleteDiagnosis(id int64) error

	CreateMedication(m Medication) (Medication, error)
	DeleteMedication(id int64) error

	CreateMedicine(m Medicine) (Medicine, error)
	UpdateMedicine(id int64, mutator func(*Medicine) error) (Medicine, error)
	DeleteMedicine(id int64) error
	// AdjustMedicineStock adds delta to the named medicine's stock. It reports
	// false, without changing anything, when the medicine does not exist or the
	// result would be negative; in the latter case the unchanged row is returned.
	AdjustMedicineStock(name string, delta int) (Medicine, bool, error)
}

// TransactionView provides read-only access to clinic data.
type TransactionView interface {
	RuleView

	FindPatient(id int64) (Patient, bool, error)
	ListPatients(filter PatientFilter) ([]Patient, error)
	ListSpecies() ([]string, error)
	FindArchivedPatient(id int64) (ArchivedPatient, bool, error)
	ListArchivedPatients() ([]ArchivedPatient, error)
	// ListClients returns distinct owners, ordered by name then contact.
	ListClients(filter ClientFilter) ([]Client, error)
	// TopClientsByVisits ranks owners by completed appointments across all
	// their pets, most visits first, ties by name.
	TopClientsByVisits(limit int) ([]ClientVisits, error)

	FindDoctor(id int64) (Doctor, bool, error)
	FindDoctorByName(name string) (Doctor, bool, error)
	ListDoctors() ([]Doctor, error)

	FindAppointment(id string) (Appointment, bool, error)
	ListAppointments(filter AppointmentFilter) ([]Appointment, error)
	BookedDates() ([]string, error)

	FindDiagnosis(id int64) (Diagnosis, bool, error)
	// ListDiagnoses returns the diagnoses of an appointment, or all of them when appointmentID is empty.
	ListDiagnoses(appointmentID string) ([]Diagnosis, error)

	FindMedication(id int64) (Medication, bool, error)
	// ListMedications returns the lines of a diagnosis, or all of them when diagnosisID is zero.
	ListMedications(diagnosisID int64) ([]Medication, error)

	FindMedicine(id int64) (Medicine, bool, error)
	ListMedicines(query string) ([]Medicine, error)
}

// PersistentStore is the relational data store shared by the scheduling and
// inventory operations.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	Close() error
}
