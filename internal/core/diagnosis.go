package core

import (
	"context"
	"strings"

	"vetclinic/pkg/domain"
)

// DiagnosisOutcome reports whether SaveDiagnosis created a row or updated one.
type DiagnosisOutcome struct {
	Created   bool
	Diagnosis domain.Diagnosis
}

// SaveDiagnosis records the findings for an appointment. The selected
// diagnosis is updated when it belongs to the appointment; otherwise the
// appointment's existing diagnosis is updated, and only when there is none is
// a new one created. selectedID 0 means nothing is selected.
func (s *Service) SaveDiagnosis(ctx context.Context, appointmentID, text string, selectedID int64) (DiagnosisOutcome, error) {
	appointmentID = strings.TrimSpace(appointmentID)
	text = strings.TrimSpace(text)
	var out DiagnosisOutcome
	_, err := s.run(ctx, "save_diagnosis", func(tx domain.Transaction) (string, error) {
		if appointmentID == "" {
			return "", domain.ValidationError{Field: "appointment_id", Message: "select an appointment first"}
		}
		if text == "" {
			return "", domain.ValidationError{Field: "diagnosis_text", Message: "diagnosis text is required"}
		}
		view := tx.Snapshot()
		appt, ok, err := view.FindAppointment(appointmentID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", domain.NotFound(domain.EntityAppointment, appointmentID)
		}

		target := int64(0)
		if selectedID != 0 {
			selected, ok, err := view.FindDiagnosis(selectedID)
			if err != nil {
				return "", err
			}
			if ok && selected.AppointmentID == appointmentID {
				target = selected.ID
			}
		}
		if target == 0 {
			existing, err := view.ListDiagnoses(appointmentID)
			if err != nil {
				return "", err
			}
			if len(existing) > 0 {
				target = existing[0].ID
			}
		}

		today := s.today()
		if target != 0 {
			updated, err := tx.UpdateDiagnosis(target, func(d *domain.Diagnosis) error {
				d.Text = text
				d.Date = today
				return nil
			})
			out = DiagnosisOutcome{Diagnosis: updated}
			return idString(target), err
		}
		created, err := tx.CreateDiagnosis(domain.Diagnosis{
			AppointmentID: appt.ID,
			PatientID:     appt.PatientID,
			DoctorID:      appt.DoctorID,
			Text:          text,
			Date:          today,
		})
		out = DiagnosisOutcome{Created: true, Diagnosis: created}
		return idString(created.ID), err
	})
	if err != nil {
		return DiagnosisOutcome{}, err
	}
	return out, nil
}

// DeleteDiagnosis removes a diagnosis and its medication lines, returning
// their quantities to stock. It reports how many lines were removed.
func (s *Service) DeleteDiagnosis(ctx context.Context, id int64) (int, error) {
	removed := 0
	_, err := s.run(ctx, "delete_diagnosis", func(tx domain.Transaction) (string, error) {
		n, err := dropDiagnosis(tx, id)
		removed = n
		return idString(id), err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func dropDiagnosis(tx domain.Transaction, id int64) (int, error) {
	view := tx.Snapshot()
	if _, ok, err := view.FindDiagnosis(id); err != nil {
		return 0, err
	} else if !ok {
		return 0, domain.NotFound(domain.EntityDiagnosis, id)
	}
	lines, err := view.ListMedications(id)
	if err != nil {
		return 0, err
	}
	for _, line := range lines {
		if _, err := removeMedication(tx, line.ID); err != nil {
			return 0, err
		}
	}
	return len(lines), tx.DeleteDiagnosis(id)
}

// GetDiagnosis returns one diagnosis.
func (s *Service) GetDiagnosis(ctx context.Context, id int64) (domain.Diagnosis, error) {
	var out domain.Diagnosis
	err := s.read(ctx, "get_diagnosis", func(view domain.TransactionView) error {
		d, ok, err := view.FindDiagnosis(id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NotFound(domain.EntityDiagnosis, id)
		}
		out = d
		return nil
	})
	return out, err
}

// ListDiagnoses returns the diagnoses recorded for an appointment.
func (s *Service) ListDiagnoses(ctx context.Context, appointmentID string) ([]domain.Diagnosis, error) {
	if strings.TrimSpace(appointmentID) == "" {
		return nil, domain.ValidationError{Field: "appointment_id", Message: "is required"}
	}
	var out []domain.Diagnosis
	err := s.read(ctx, "list_diagnoses", func(view domain.TransactionView) error {
		var err error
		out, err = view.ListDiagnoses(appointmentID)
		return err
	})
	return out, err
}
