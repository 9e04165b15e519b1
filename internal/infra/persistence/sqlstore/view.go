package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"vetclinic/pkg/domain"
)

const (
	patientColumns     = `id, name, species, breed, age, owner_name, owner_contact, notes, state`
	archiveColumns     = `id, patient_id, name, species, breed, age, owner_name, owner_contact, notes, archived_at`
	doctorColumns      = `id, name, specialization, fee`
	appointmentColumns = `id, patient_id, doctor_id, date, time, status, notes`
	diagnosisColumns   = `id, appointment_id, patient_id, doctor_id, diagnosis_text, diagnosis_date`
	medicationColumns  = `id, diagnosis_id, medicine_name, quantity, price`
	medicineColumns    = `id, name, stock, price, form, intended_use, supplier_name, supplier_contact`
)

// archiveRow carries archived_at as text so both dialects scan the same way.
type archiveRow struct {
	domain.ArchivedPatient
	ArchivedAt string `db:"archived_at"`
}

func (r archiveRow) toDomain() domain.ArchivedPatient {
	out := r.ArchivedPatient
	if ts, err := time.Parse(time.RFC3339Nano, r.ArchivedAt); err == nil {
		out.ArchivedAt = ts
	}
	return out
}

type view struct {
	ctx context.Context
	q   sqlx.ExtContext
}

var _ domain.TransactionView = (*view)(nil)

func (v *view) get(dest any, query string, args ...any) (bool, error) {
	err := sqlx.GetContext(v.ctx, v.q, dest, v.q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, domain.StorageError{Op: "get", Err: err}
	}
	return true, nil
}

func (v *view) all(dest any, query string, args ...any) error {
	if err := sqlx.SelectContext(v.ctx, v.q, dest, v.q.Rebind(query), args...); err != nil {
		return domain.StorageError{Op: "select", Err: err}
	}
	return nil
}

func likePattern(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	q = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(q)
	return "%" + q + "%"
}

func (v *view) FindPatient(id int64) (domain.Patient, bool, error) {
	var p domain.Patient
	ok, err := v.get(&p, `SELECT `+patientColumns+` FROM patients WHERE id = ?`, id)
	return p, ok, err
}

func (v *view) ListPatients(filter domain.PatientFilter) ([]domain.Patient, error) {
	var (
		where []string
		args  []any
	)
	if !filter.IncludeDeleted {
		where = append(where, `state = ?`)
		args = append(args, string(domain.PatientActive))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := likePattern(q)
		where = append(where, `(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(owner_name) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if filter.Species != "" {
		where = append(where, `species = ?`)
		args = append(args, filter.Species)
	}
	if filter.Owner != nil {
		where = append(where, `owner_name = ? AND owner_contact = ?`)
		args = append(args, filter.Owner.OwnerName, filter.Owner.OwnerContact)
	}
	query := `SELECT ` + patientColumns + ` FROM patients`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY name, id`
	patients := []domain.Patient{}
	err := v.all(&patients, query, args...)
	return patients, err
}

func (v *view) ListSpecies() ([]string, error) {
	species := []string{}
	err := v.all(&species, `SELECT DISTINCT species FROM patients WHERE state = ? AND species <> '' ORDER BY species`, string(domain.PatientActive))
	return species, err
}

func (v *view) FindArchivedPatient(id int64) (domain.ArchivedPatient, bool, error) {
	var row archiveRow
	ok, err := v.get(&row, `SELECT `+archiveColumns+` FROM patient_archive WHERE id = ?`, id)
	return row.toDomain(), ok, err
}

func (v *view) ListArchivedPatients() ([]domain.ArchivedPatient, error) {
	var rows []archiveRow
	if err := v.all(&rows, `SELECT `+archiveColumns+` FROM patient_archive ORDER BY archived_at DESC, id DESC`); err != nil {
		return nil, err
	}
	out := make([]domain.ArchivedPatient, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (v *view) ListClients(filter domain.ClientFilter) ([]domain.Client, error) {
	var (
		where []string
		args  []any
	)
	query := `SELECT DISTINCT p.owner_name, p.owner_contact FROM patients p`
	if filter.WithCompleted {
		query += ` JOIN appointments a ON a.patient_id = p.id`
		where = append(where, `a.status = ?`)
		args = append(args, string(domain.StatusCompleted))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := likePattern(q)
		where = append(where, `(LOWER(p.owner_name) LIKE ? ESCAPE '\' OR LOWER(p.owner_contact) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY p.owner_name, p.owner_contact`
	clients := []domain.Client{}
	err := v.all(&clients, query, args...)
	return clients, err
}

func (v *view) TopClientsByVisits(limit int) ([]domain.ClientVisits, error) {
	ranked := []domain.ClientVisits{}
	err := v.all(&ranked, `SELECT p.owner_name, p.owner_contact, COUNT(a.id) AS visits
		FROM patients p JOIN appointments a ON a.patient_id = p.id
		WHERE a.status = ?
		GROUP BY p.owner_name, p.owner_contact
		ORDER BY visits DESC, p.owner_name, p.owner_contact
		LIMIT ?`, string(domain.StatusCompleted), limit)
	return ranked, err
}

func (v *view) FindDoctor(id int64) (domain.Doctor, bool, error) {
	var d domain.Doctor
	ok, err := v.get(&d, `SELECT `+doctorColumns+` FROM doctors WHERE id = ?`, id)
	return d, ok, err
}

func (v *view) FindDoctorByName(name string) (domain.Doctor, bool, error) {
	var d domain.Doctor
	ok, err := v.get(&d, `SELECT `+doctorColumns+` FROM doctors WHERE name = ? ORDER BY id LIMIT 1`, name)
	return d, ok, err
}

func (v *view) ListDoctors() ([]domain.Doctor, error) {
	doctors := []domain.Doctor{}
	err := v.all(&doctors, `SELECT `+doctorColumns+` FROM doctors ORDER BY id`)
	return doctors, err
}

func (v *view) FindAppointment(id string) (domain.Appointment, bool, error) {
	var a domain.Appointment
	ok, err := v.get(&a, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id)
	return a, ok, err
}

func (v *view) ListAppointments(filter domain.AppointmentFilter) ([]domain.Appointment, error) {
	var (
		where []string
		args  []any
	)
	if filter.Date != "" {
		where = append(where, `date = ?`)
		args = append(args, filter.Date)
	}
	if filter.PatientID != 0 {
		where = append(where, `patient_id = ?`)
		args = append(args, filter.PatientID)
	}
	if filter.DoctorID != 0 {
		where = append(where, `doctor_id = ?`)
		args = append(args, filter.DoctorID)
	}
	if filter.Month != "" {
		where = append(where, `date >= ? AND date <= ?`)
		args = append(args, filter.Month+"-01", filter.Month+"-31")
	}
	if filter.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, string(filter.Status))
	} else if !filter.IncludeCancelled {
		where = append(where, `status <> ?`)
		args = append(args, string(domain.StatusCancelled))
	}
	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY date, time, id`
	appointments := []domain.Appointment{}
	err := v.all(&appointments, query, args...)
	return appointments, err
}

// FindSlotConflicts returns non-cancelled appointments held by the doctor or
// the patient at the slot, doctor matches first.
func (v *view) FindSlotConflicts(doctorID, patientID int64, date, slot string) ([]domain.Appointment, error) {
	conflicts := []domain.Appointment{}
	err := v.all(&conflicts, `SELECT `+appointmentColumns+` FROM appointments
		WHERE (doctor_id = ? OR patient_id = ?) AND date = ? AND time = ? AND status <> ?
		ORDER BY CASE WHEN doctor_id = ? THEN 0 ELSE 1 END, id`,
		doctorID, patientID, date, slot, string(domain.StatusCancelled), doctorID)
	return conflicts, err
}

func (v *view) BookedDates() ([]string, error) {
	dates := []string{}
	err := v.all(&dates, `SELECT DISTINCT date FROM appointments WHERE status <> ? ORDER BY date`, string(domain.StatusCancelled))
	return dates, err
}

func (v *view) FindDiagnosis(id int64) (domain.Diagnosis, bool, error) {
	var d domain.Diagnosis
	ok, err := v.get(&d, `SELECT `+diagnosisColumns+` FROM diagnoses WHERE id = ?`, id)
	return d, ok, err
}

func (v *view) ListDiagnoses(appointmentID string) ([]domain.Diagnosis, error) {
	diagnoses := []domain.Diagnosis{}
	if appointmentID == "" {
		err := v.all(&diagnoses, `SELECT `+diagnosisColumns+` FROM diagnoses ORDER BY id`)
		return diagnoses, err
	}
	err := v.all(&diagnoses, `SELECT `+diagnosisColumns+` FROM diagnoses WHERE appointment_id = ? ORDER BY id`, appointmentID)
	return diagnoses, err
}

func (v *view) FindMedication(id int64) (domain.Medication, bool, error) {
	var m domain.Medication
	ok, err := v.get(&m, `SELECT `+medicationColumns+` FROM medications WHERE id = ?`, id)
	return m, ok, err
}

func (v *view) ListMedications(diagnosisID int64) ([]domain.Medication, error) {
	lines := []domain.Medication{}
	if diagnosisID == 0 {
		err := v.all(&lines, `SELECT `+medicationColumns+` FROM medications ORDER BY id`)
		return lines, err
	}
	err := v.all(&lines, `SELECT `+medicationColumns+` FROM medications WHERE diagnosis_id = ? ORDER BY id`, diagnosisID)
	return lines, err
}

func (v *view) FindMedicine(id int64) (domain.Medicine, bool, error) {
	var m domain.Medicine
	ok, err := v.get(&m, `SELECT `+medicineColumns+` FROM medicines WHERE id = ?`, id)
	return m, ok, err
}

func (v *view) FindMedicineByName(name string) (domain.Medicine, bool, error) {
	var m domain.Medicine
	ok, err := v.get(&m, `SELECT `+medicineColumns+` FROM medicines WHERE name = ?`, name)
	return m, ok, err
}

func (v *view) ListMedicines(query string) ([]domain.Medicine, error) {
	medicines := []domain.Medicine{}
	if strings.TrimSpace(query) == "" {
		err := v.all(&medicines, `SELECT `+medicineColumns+` FROM medicines ORDER BY name`)
		return medicines, err
	}
	err := v.all(&medicines, `SELECT `+medicineColumns+` FROM medicines WHERE LOWER(name) LIKE ? ESCAPE '\' ORDER BY name`, likePattern(query))
	return medicines, err
}
