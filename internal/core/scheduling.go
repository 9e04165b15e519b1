package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"vetclinic/pkg/domain"
)

const (
	appointmentIDLength   = 8
	appointmentIDAttempts = 10
)

// AppointmentDraft is the caller's booking input before normalization.
type AppointmentDraft struct {
	PatientID int64                    `json:"patient_id" validate:"gt=0"`
	DoctorID  int64                    `json:"doctor_id" validate:"gt=0"`
	Date      string                   `json:"date" validate:"required"`
	Time      string                   `json:"time" validate:"required"`
	Status    domain.AppointmentStatus `json:"status" validate:"omitempty,oneof=scheduled completed cancelled"`
	Notes     string                   `json:"notes" validate:"max=2000"`
}

// BookAppointment creates an appointment, or edits the one named by
// existingID in place. Date and time are normalized before the slot check;
// a doctor or patient already holding the slot yields ScheduleConflictError.
func (s *Service) BookAppointment(ctx context.Context, draft AppointmentDraft, existingID string) (domain.Appointment, domain.Result, error) {
	op := "book_appointment"
	if existingID != "" {
		op = "update_appointment"
	}
	var saved domain.Appointment
	res, err := s.run(ctx, op, func(tx domain.Transaction) (string, error) {
		view := tx.Snapshot()
		appt, err := s.prepareAppointment(view, draft, existingID)
		if err != nil {
			return existingID, err
		}
		if existingID != "" {
			saved, err = tx.UpdateAppointment(existingID, func(current *domain.Appointment) error {
				*current = appt
				return nil
			})
		} else {
			if appt.ID, err = newAppointmentID(view); err != nil {
				return "", err
			}
			saved, err = tx.CreateAppointment(appt)
		}
		if err != nil {
			return appt.ID, slotConflictFromDuplicate(err, appt)
		}
		return saved.ID, nil
	})
	if err != nil {
		return domain.Appointment{}, res, err
	}
	s.verifyAppointment(ctx, saved)
	return saved, res, nil
}

func (s *Service) prepareAppointment(view domain.TransactionView, draft AppointmentDraft, existingID string) (domain.Appointment, error) {
	if err := validateStruct(draft); err != nil {
		return domain.Appointment{}, err
	}
	date, _, err := domain.NormalizeDate(draft.Date)
	if err != nil {
		return domain.Appointment{}, err
	}
	slot, err := domain.NormalizeTime(draft.Time)
	if err != nil {
		return domain.Appointment{}, err
	}
	appt := domain.Appointment{
		ID:        existingID,
		PatientID: draft.PatientID,
		DoctorID:  draft.DoctorID,
		Date:      date,
		Time:      slot,
		Status:    draft.Status,
		Notes:     strings.TrimSpace(draft.Notes),
	}

	patientChanged := true
	if existingID == "" {
		if today := s.today(); date < today {
			return domain.Appointment{}, domain.InvalidDateError{Date: date, Today: today}
		}
		if appt.Status == "" {
			appt.Status = domain.StatusScheduled
		}
	} else {
		current, ok, err := view.FindAppointment(existingID)
		if err != nil {
			return domain.Appointment{}, err
		}
		if !ok {
			return domain.Appointment{}, domain.NotFound(domain.EntityAppointment, existingID)
		}
		// An edit without a status keeps the current one.
		if appt.Status == "" {
			appt.Status = current.Status
		}
		if !current.Status.CanTransition(appt.Status) {
			return domain.Appointment{}, domain.ValidationError{
				Field:   "status",
				Message: fmt.Sprintf("cannot change a %s appointment to %s", current.Status, appt.Status),
			}
		}
		patientChanged = current.PatientID != draft.PatientID
	}

	patient, ok, err := view.FindPatient(draft.PatientID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if !ok {
		return domain.Appointment{}, domain.NotFound(domain.EntityPatient, draft.PatientID)
	}
	if patientChanged && patient.Deleted() {
		return domain.Appointment{}, domain.ValidationError{Field: "patient_id", Message: "patient is " + string(patient.State)}
	}
	if _, ok, err := view.FindDoctor(draft.DoctorID); err != nil {
		return domain.Appointment{}, err
	} else if !ok {
		return domain.Appointment{}, domain.NotFound(domain.EntityDoctor, draft.DoctorID)
	}

	if appt.Status.OccupiesSlot() {
		if err := checkSlot(view, appt); err != nil {
			return domain.Appointment{}, err
		}
	}
	return appt, nil
}

// checkSlot looks for another non-cancelled appointment holding the doctor's or
// the patient's slot. A doctor match is reported ahead of a patient match.
func checkSlot(view domain.RuleView, appt domain.Appointment) error {
	conflicts, err := view.FindSlotConflicts(appt.DoctorID, appt.PatientID, appt.Date, appt.Time)
	if err != nil {
		return err
	}
	var patientClash *domain.Appointment
	for i := range conflicts {
		other := conflicts[i]
		if other.ID == appt.ID {
			continue
		}
		if other.DoctorID == appt.DoctorID {
			return domain.ScheduleConflictError{Party: domain.PartyDoctor, AppointmentID: other.ID, Date: appt.Date, Time: appt.Time}
		}
		if patientClash == nil {
			patientClash = &conflicts[i]
		}
	}
	if patientClash != nil {
		return domain.ScheduleConflictError{Party: domain.PartyPatient, AppointmentID: patientClash.ID, Date: appt.Date, Time: appt.Time}
	}
	return nil
}

// slotConflictFromDuplicate maps a slot index violation raised at write time
// onto the same error the pre-check reports.
func slotConflictFromDuplicate(err error, appt domain.Appointment) error {
	var dup domain.DuplicateError
	if !errors.As(err, &dup) {
		return err
	}
	constraint := strings.ToLower(dup.Constraint)
	switch {
	case strings.Contains(constraint, "doctor"):
		return domain.ScheduleConflictError{Party: domain.PartyDoctor, Date: appt.Date, Time: appt.Time}
	case strings.Contains(constraint, "patient"):
		return domain.ScheduleConflictError{Party: domain.PartyPatient, Date: appt.Date, Time: appt.Time}
	}
	return err
}

func newAppointmentID(view domain.TransactionView) (string, error) {
	for range appointmentIDAttempts {
		id := strings.ReplaceAll(uuid.NewString(), "-", "")[:appointmentIDLength]
		_, taken, err := view.FindAppointment(id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("no free appointment id after %d attempts", appointmentIDAttempts)
}

// verifyAppointment re-reads a committed appointment. Mismatches are only logged.
func (s *Service) verifyAppointment(ctx context.Context, want domain.Appointment) {
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		got, ok, err := view.FindAppointment(want.ID)
		if err != nil {
			return err
		}
		if !ok {
			s.logger.Warn("appointment missing after save", "appointment_id", want.ID)
			return nil
		}
		if got != want {
			s.logger.Warn("appointment differs after save", "appointment_id", want.ID, "want", want, "got", got)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("appointment verification failed", "appointment_id", want.ID, "error", err)
	}
}

// CancelAppointment frees the slot held by an appointment. Cancelling twice is
// a no-op; completed appointments cannot be cancelled.
func (s *Service) CancelAppointment(ctx context.Context, id string) (domain.Appointment, error) {
	var out domain.Appointment
	_, err := s.run(ctx, "cancel_appointment", func(tx domain.Transaction) (string, error) {
		current, ok, err := tx.Snapshot().FindAppointment(id)
		if err != nil {
			return id, err
		}
		if !ok {
			return id, domain.NotFound(domain.EntityAppointment, id)
		}
		switch current.Status {
		case domain.StatusCancelled:
			out = current
			return id, nil
		case domain.StatusCompleted:
			return id, domain.ValidationError{Field: "status", Message: "completed appointments cannot be cancelled"}
		}
		out, err = tx.UpdateAppointment(id, func(a *domain.Appointment) error {
			a.Status = domain.StatusCancelled
			return nil
		})
		return id, err
	})
	return out, err
}

// DeleteAppointment removes an appointment along with its diagnoses. Stock
// prescribed under those diagnoses is returned to inventory.
func (s *Service) DeleteAppointment(ctx context.Context, id string) error {
	_, err := s.run(ctx, "delete_appointment", func(tx domain.Transaction) (string, error) {
		view := tx.Snapshot()
		if _, ok, err := view.FindAppointment(id); err != nil {
			return id, err
		} else if !ok {
			return id, domain.NotFound(domain.EntityAppointment, id)
		}
		diagnoses, err := view.ListDiagnoses(id)
		if err != nil {
			return id, err
		}
		for _, diag := range diagnoses {
			if _, err := dropDiagnosis(tx, diag.ID); err != nil {
				return id, err
			}
		}
		return id, tx.DeleteAppointment(id)
	})
	return err
}

// GetAppointment returns one appointment.
func (s *Service) GetAppointment(ctx context.Context, id string) (domain.Appointment, error) {
	var out domain.Appointment
	err := s.read(ctx, "get_appointment", func(view domain.TransactionView) error {
		appt, ok, err := view.FindAppointment(id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NotFound(domain.EntityAppointment, id)
		}
		out = appt
		return nil
	})
	return out, err
}

// ListAppointmentsByDate returns every appointment on date, cancelled ones included.
func (s *Service) ListAppointmentsByDate(ctx context.Context, date string) ([]domain.Appointment, error) {
	day, _, err := domain.NormalizeDate(date)
	if err != nil {
		return nil, err
	}
	var out []domain.Appointment
	err = s.read(ctx, "list_appointments", func(view domain.TransactionView) error {
		out, err = view.ListAppointments(domain.AppointmentFilter{Date: day, IncludeCancelled: true})
		return err
	})
	return out, err
}

// ListPatientAppointments returns a patient's appointment history.
func (s *Service) ListPatientAppointments(ctx context.Context, patientID int64) ([]domain.Appointment, error) {
	var out []domain.Appointment
	err := s.read(ctx, "list_patient_appointments", func(view domain.TransactionView) error {
		var err error
		out, err = view.ListAppointments(domain.AppointmentFilter{PatientID: patientID, IncludeCancelled: true})
		return err
	})
	return out, err
}

// BookedDates lists the distinct dates that hold at least one non-cancelled appointment.
func (s *Service) BookedDates(ctx context.Context) ([]string, error) {
	var out []string
	err := s.read(ctx, "booked_dates", func(view domain.TransactionView) error {
		var err error
		out, err = view.BookedDates()
		return err
	})
	return out, err
}

// AvailableSlots lists the clinic slots a doctor has free on date.
func (s *Service) AvailableSlots(ctx context.Context, doctorID int64, date string) ([]string, error) {
	day, _, err := domain.NormalizeDate(date)
	if err != nil {
		return nil, err
	}
	var out []string
	err = s.read(ctx, "available_slots", func(view domain.TransactionView) error {
		if _, ok, err := view.FindDoctor(doctorID); err != nil {
			return err
		} else if !ok {
			return domain.NotFound(domain.EntityDoctor, doctorID)
		}
		booked, err := view.ListAppointments(domain.AppointmentFilter{Date: day, DoctorID: doctorID})
		if err != nil {
			return err
		}
		taken := make(map[string]struct{}, len(booked))
		for _, appt := range booked {
			taken[appt.Time] = struct{}{}
		}
		out = make([]string, 0, len(domain.ClinicSlots))
		for _, slot := range domain.ClinicSlots {
			if _, ok := taken[slot]; !ok {
				out = append(out, slot)
			}
		}
		return nil
	})
	return out, err
}
