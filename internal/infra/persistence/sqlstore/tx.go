package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	"vetclinic/pkg/domain"
)

type transaction struct {
	view
	dialect Dialect
	changes []domain.Change
}

var _ domain.Transaction = (*transaction)(nil)

func (tx *transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view that observes the transaction's own writes.
func (tx *transaction) Snapshot() domain.TransactionView {
	return &tx.view
}

func (tx *transaction) translate(entity domain.EntityType, op string, err error) error {
	if tx.dialect.UniqueViolation != nil {
		if constraint, ok := tx.dialect.UniqueViolation(err); ok {
			return domain.DuplicateError{Entity: entity, Constraint: constraint, Err: err}
		}
	}
	return domain.StorageError{Op: fmt.Sprintf("%s %s", op, entity), Err: err}
}

func (tx *transaction) exec(entity domain.EntityType, op, query string, args ...any) (sql.Result, error) {
	res, err := tx.q.ExecContext(tx.ctx, tx.q.Rebind(query), args...)
	if err != nil {
		return nil, tx.translate(entity, op, err)
	}
	return res, nil
}

// execOne runs a statement that must touch exactly one row.
func (tx *transaction) execOne(entity domain.EntityType, op, id, query string, args ...any) error {
	res, err := tx.exec(entity, op, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.StorageError{Op: op + " " + string(entity), Err: err}
	}
	if n == 0 {
		return domain.ErrNotFound{Entity: entity, ID: id}
	}
	return nil
}

func (tx *transaction) insertID(entity domain.EntityType, query string, args ...any) (int64, error) {
	var id int64
	if err := tx.q.QueryRowxContext(tx.ctx, tx.q.Rebind(query), args...).Scan(&id); err != nil {
		return 0, tx.translate(entity, "insert", err)
	}
	return id, nil
}

func (tx *transaction) CreatePatient(p domain.Patient) (domain.Patient, error) {
	if p.State == "" {
		p.State = domain.PatientActive
	}
	var err error
	if p.ID != 0 {
		p.ID, err = tx.insertID(domain.EntityPatient, `INSERT INTO patients (id, name, species, breed, age, owner_name, owner_contact, notes, state)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			p.ID, p.Name, p.Species, p.Breed, p.Age, p.OwnerName, p.OwnerContact, p.Notes, string(p.State))
	} else {
		p.ID, err = tx.insertID(domain.EntityPatient, `INSERT INTO patients (name, species, breed, age, owner_name, owner_contact, notes, state)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			p.Name, p.Species, p.Breed, p.Age, p.OwnerName, p.OwnerContact, p.Notes, string(p.State))
	}
	if err != nil {
		return domain.Patient{}, err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityPatient, Action: domain.ActionCreate, After: p})
	return p, nil
}

func (tx *transaction) UpdatePatient(id int64, mutator func(*domain.Patient) error) (domain.Patient, error) {
	before, ok, err := tx.FindPatient(id)
	if err != nil {
		return domain.Patient{}, err
	}
	if !ok {
		return domain.Patient{}, domain.NotFound(domain.EntityPatient, id)
	}
	current := before
	if err := mutator(&current); err != nil {
		return domain.Patient{}, err
	}
	current.ID = id
	if err := tx.execOne(domain.EntityPatient, "update", fmt.Sprint(id), `UPDATE patients
		SET name = ?, species = ?, breed = ?, age = ?, owner_name = ?, owner_contact = ?, notes = ?, state = ?
		WHERE id = ?`,
		current.Name, current.Species, current.Breed, current.Age, current.OwnerName, current.OwnerContact,
		current.Notes, string(current.State), id); err != nil {
		return domain.Patient{}, err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityPatient, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

func (tx *transaction) CreateArchivedPatient(a domain.ArchivedPatient) (domain.ArchivedPatient, error) {
	if a.ArchivedAt.IsZero() {
		a.ArchivedAt = time.Now().UTC()
	}
	id, err := tx.insertID(domain.EntityArchivedPatient, `INSERT INTO patient_archive
		(patient_id, name, species, breed, age, owner_name, owner_contact, notes, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		a.PatientID, a.Name, a.Species, a.Breed, a.Age, a.OwnerName, a.OwnerContact, a.Notes,
		a.ArchivedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return domain.ArchivedPatient{}, err
	}
	a.ID = id
	tx.recordChange(domain.Change{Entity: domain.EntityArchivedPatient, Action: domain.ActionCreate, After: a})
	return a, nil
}

func (tx *transaction) DeleteArchivedPatient(id int64) error {
	before, ok, err := tx.FindArchivedPatient(id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound(domain.EntityArchivedPatient, id)
	}
	if err := tx.execOne(domain.EntityArchivedPatient, "delete", fmt.Sprint(id), `DELETE FROM patient_archive WHERE id = ?`, id); err != nil {
		return err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityArchivedPatient, Action: domain.ActionDelete, Before: before})
	return nil
}

func (tx *transaction) CreateDoctor(d domain.Doctor) (domain.Doctor, error) {
	id, err := tx.insertID(domain.EntityDoctor, `INSERT INTO doctors (name, specialization, fee) VALUES (?, ?, ?) RETURNING id`,
		d.Name, d.Specialization, d.Fee)
	if err != nil {
		return domain.Doctor{}, err
	}
	d.ID = id
	tx.recordChange(domain.Change{Entity: domain.EntityDoctor, Action: domain.ActionCreate, After: d})
	return d, nil
}

func (tx *transaction) UpdateDoctor(id int64, mutator func(*domain.Doctor) error) (domain.Doctor, error) {
	before, ok, err := tx.FindDoctor(id)
	if err != nil {
		return domain.Doctor{}, err
	}
	if !ok {
		return domain.Doctor{}, domain.NotFound(domain.EntityDoctor, id)
	}
	current := before
	if err := mutator(&current); err != nil {
		return domain.Doctor{}, err
	}
	current.ID = id
	if err := tx.execOne(domain.EntityDoctor, "update", fmt.Sprint(id),
		`UPDATE doctors SET name = ?, specialization = ?, fee = ? WHERE id = ?`,
		current.Name, current.Specialization, current.Fee, id); err != nil {
		return domain.Doctor{}, err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityDoctor, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

func (tx *transaction) DeleteDoctor(id int64) error {
	before, ok, err := tx.FindDoctor(id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound(domain.EntityDoctor, id)
	}
	if err := tx.execOne(domain.EntityDoctor, "delete", fmt.Sprint(id), `DELETE FROM doctors WHERE id = ?`, id); err != nil {
		return err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityDoctor, Action: domain.ActionDelete, Before: before})
	return nil
}

func (tx *transaction) CreateAppointment(a domain.Appointment) (domain.Appointment, error) {
	if a.ID == "" {
		return domain.Appointment{}, domain.ValidationError{Field: "id", Message: "appointment id is required"}
	}
	if _, err := tx.exec(domain.EntityAppointment, "insert", `INSERT INTO appointments (id, patient_id, doctor_id, date, time, status, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.PatientID, a.DoctorID, a.Date, a.Time, string(a.Status), a.Notes); err != nil {
		return domain.Appointment{}, err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityAppointment, Action: domain.ActionCreate, After: a})
	return a, nil
}

func (tx *transaction) UpdateAppointment(id string, mutator func(*domain.Appointment) error) (domain.Appointment, error) {
	before, ok, err := tx.FindAppointment(id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if !ok {
		return domain.Appointment{}, domain.NotFound(domain.EntityAppointment, id)
	}
	current := before
	if err := mutator(&current); err != nil {
		return domain.Appointment{}, err
	}
	current.ID = id
	if err := tx.execOne(domain.EntityAppointment, "update", id, `UPDATE appointments
		SET patient_id = ?, doctor_id = ?, date = ?, time = ?, status = ?, notes = ?
		WHERE id = ?`,
		current.PatientID, current.DoctorID, current.Date, current.Time, string(current.Status), current.Notes, id); err != nil {
		return domain.Appointment{}, err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityAppointment, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

func (tx *transaction) DeleteAppointment(id string) error {
	before, ok, err := tx.FindAppointment(id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound(domain.EntityAppointment, id)
	}
	if err := tx.execOne(domain.EntityAppointment, "delete", id, `DELETE FROM appointments WHERE id = ?`, id); err != nil {
		return err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityAppointment, Action: domain.ActionDelete, Before: before})
	return nil
}

func (tx *transaction) CreateDiagnosis(d domain.Diagnosis) (domain.Diagnosis, error) {
	id, err := tx.insertID(domain.EntityDiagnosis, `INSERT INTO diagnoses (appointment_id, patient_id, doctor_id, diagnosis_text, diagnosis_date)
		VALUES (?, ?, ?, ?, ?) RETURNING id`,
		d.AppointmentID, d.PatientID, d.DoctorID, d.Text, d.Date)
	if err != nil {
		return domain.Diagnosis{}, err
	}
	d.ID = id
	tx.recordChange(domain.Change{Entity: domain.EntityDiagnosis, Action: domain.ActionCreate, After: d})
	return d, nil
}

func (tx *transaction) UpdateDiagnosis(id int64, mutator func(*domain.Diagnosis) error) (domain.Diagnosis, error) {
	before, ok, err := tx.FindDiagnosis(id)
	if err != nil {
		return domain.Diagnosis{}, err
	}
	if !ok {
		return domain.Diagnosis{}, domain.NotFound(domain.EntityDiagnosis, id)
	}
	current := before
	if err := mutator(&current); err != nil {
		return domain.Diagnosis{}, err
	}
	current.ID = id
	if err := tx.execOne(domain.EntityDiagnosis, "update", fmt.Sprint(id), `UPDATE diagnoses
		SET appointment_id = ?, patient_id = ?, doctor_id = ?, diagnosis_text = ?, diagnosis_date = ?
		WHERE id = ?`,
		current.AppointmentID, current.PatientID, current.DoctorID, current.Text, current.Date, id); err != nil {
		return domain.Diagnosis{}, err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityDiagnosis, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteDiagnosis removes the diagnosis; its medication lines cascade.
func (tx *transaction) DeleteDiagnosis(id int64) error {
	before, ok, err := tx.FindDiagnosis(id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound(domain.EntityDiagnosis, id)
	}
	if err := tx.execOne(domain.EntityDiagnosis, "delete", fmt.Sprint(id), `DELETE FROM diagnoses WHERE id = ?`, id); err != nil {
		return err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityDiagnosis, Action: domain.ActionDelete, Before: before})
	return nil
}

func (tx *transaction) CreateMedication(m domain.Medication) (domain.Medication, error) {
	id, err := tx.insertID(domain.EntityMedication, `INSERT INTO medications (diagnosis_id, medicine_name, quantity, price)
		VALUES (?, ?, ?, ?) RETURNING id`,
		m.DiagnosisID, m.MedicineName, m.Quantity, m.Price)
	if err != nil {
		return domain.Medication{}, err
	}
	m.ID = id
	tx.recordChange(domain.Change{Entity: domain.EntityMedication, Action: domain.ActionCreate, After: m})
	return m, nil
}

func (tx *transaction) DeleteMedication(id int64) error {
	before, ok, err := tx.FindMedication(id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound(domain.EntityMedication, id)
	}
	if err := tx.execOne(domain.EntityMedication, "delete", fmt.Sprint(id), `DELETE FROM medications WHERE id = ?`, id); err != nil {
		return err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityMedication, Action: domain.ActionDelete, Before: before})
	return nil
}

func (tx *transaction) CreateMedicine(m domain.Medicine) (domain.Medicine, error) {
	id, err := tx.insertID(domain.EntityMedicine, `INSERT INTO medicines (name, stock, price, form, intended_use, supplier_name, supplier_contact)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		m.Name, m.Stock, m.Price, m.Form, m.IntendedUse, m.SupplierName, m.SupplierContact)
	if err != nil {
		return domain.Medicine{}, err
	}
	m.ID = id
	tx.recordChange(domain.Change{Entity: domain.EntityMedicine, Action: domain.ActionCreate, After: m})
	return m, nil
}

func (tx *transaction) UpdateMedicine(id int64, mutator func(*domain.Medicine) error) (domain.Medicine, error) {
	before, ok, err := tx.FindMedicine(id)
	if err != nil {
		return domain.Medicine{}, err
	}
	if !ok {
		return domain.Medicine{}, domain.NotFound(domain.EntityMedicine, id)
	}
	current := before
	if err := mutator(&current); err != nil {
		return domain.Medicine{}, err
	}
	current.ID = id
	if err := tx.execOne(domain.EntityMedicine, "update", fmt.Sprint(id), `UPDATE medicines
		SET name = ?, stock = ?, price = ?, form = ?, intended_use = ?, supplier_name = ?, supplier_contact = ?
		WHERE id = ?`,
		current.Name, current.Stock, current.Price, current.Form, current.IntendedUse,
		current.SupplierName, current.SupplierContact, id); err != nil {
		return domain.Medicine{}, err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityMedicine, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

func (tx *transaction) DeleteMedicine(id int64) error {
	before, ok, err := tx.FindMedicine(id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound(domain.EntityMedicine, id)
	}
	if err := tx.execOne(domain.EntityMedicine, "delete", fmt.Sprint(id), `DELETE FROM medicines WHERE id = ?`, id); err != nil {
		return err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityMedicine, Action: domain.ActionDelete, Before: before})
	return nil
}

// AdjustMedicineStock applies delta with a guarded UPDATE so concurrent
// writers can never drive stock below zero.
func (tx *transaction) AdjustMedicineStock(name string, delta int) (domain.Medicine, bool, error) {
	before, ok, err := tx.FindMedicineByName(name)
	if err != nil || !ok {
		return domain.Medicine{}, false, err
	}
	res, err := tx.exec(domain.EntityMedicine, "adjust stock",
		`UPDATE medicines SET stock = stock + ? WHERE id = ? AND stock + ? >= 0`, delta, before.ID, delta)
	if err != nil {
		return domain.Medicine{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Medicine{}, false, domain.StorageError{Op: "adjust stock", Err: err}
	}
	if n == 0 {
		return before, false, nil
	}
	after, _, err := tx.FindMedicine(before.ID)
	if err != nil {
		return domain.Medicine{}, false, err
	}
	tx.recordChange(domain.Change{Entity: domain.EntityMedicine, Action: domain.ActionUpdate, Before: before, After: after})
	return after, true, nil
}
