package core

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"vetclinic/pkg/domain"
)

// DefaultTopClients is the ranking length used when TopClientsByVisits is
// called without a positive limit.
const DefaultTopClients = 10

// ReportEntry is a completed appointment with who was seen and by whom.
type ReportEntry struct {
	Appointment domain.Appointment
	PatientName string
	Species     string
	Client      domain.Client
	DoctorName  string
	DoctorFee   decimal.Decimal
}

// MonthlyReport lists the completed appointments of one month.
type MonthlyReport struct {
	Year       int
	Month      int
	Entries    []ReportEntry
	DoctorFees decimal.Decimal
}

// MonthlyCompletedAppointments reports the completed appointments dated in
// the given month, newest first, with the attending doctor's fee.
func (s *Service) MonthlyCompletedAppointments(ctx context.Context, year, month int) (MonthlyReport, error) {
	if year < 1 || year > 9999 {
		return MonthlyReport{}, domain.ValidationError{Field: "year", Message: "must be between 1 and 9999"}
	}
	if month < 1 || month > 12 {
		return MonthlyReport{}, domain.ValidationError{Field: "month", Message: "must be between 1 and 12"}
	}
	out := MonthlyReport{Year: year, Month: month, DoctorFees: decimal.Zero}
	err := s.read(ctx, "monthly_report", func(view domain.TransactionView) error {
		appts, err := view.ListAppointments(domain.AppointmentFilter{
			Month:  fmt.Sprintf("%04d-%02d", year, month),
			Status: domain.StatusCompleted,
		})
		if err != nil {
			return err
		}
		patients := make(map[int64]domain.Patient)
		doctors := make(map[int64]domain.Doctor)
		for i := len(appts) - 1; i >= 0; i-- {
			appt := appts[i]
			entry := ReportEntry{Appointment: appt, DoctorFee: decimal.Zero}
			patient, ok := patients[appt.PatientID]
			if !ok {
				if patient, _, err = view.FindPatient(appt.PatientID); err != nil {
					return err
				}
				patients[appt.PatientID] = patient
			}
			entry.PatientName, entry.Species, entry.Client = patient.Name, patient.Species, patient.Client()
			doctor, ok := doctors[appt.DoctorID]
			if !ok {
				if doctor, _, err = view.FindDoctor(appt.DoctorID); err != nil {
					return err
				}
				doctors[appt.DoctorID] = doctor
			}
			if doctor.ID != 0 {
				entry.DoctorName, entry.DoctorFee = doctor.Name, doctor.Fee
			}
			out.Entries = append(out.Entries, entry)
			out.DoctorFees = out.DoctorFees.Add(entry.DoctorFee)
		}
		return nil
	})
	if err != nil {
		return MonthlyReport{}, err
	}
	return out, nil
}

// ListClients returns distinct owners matching filter.
func (s *Service) ListClients(ctx context.Context, filter domain.ClientFilter) ([]domain.Client, error) {
	var clients []domain.Client
	err := s.read(ctx, "list_clients", func(view domain.TransactionView) error {
		var err error
		clients, err = view.ListClients(filter)
		return err
	})
	return clients, err
}

// TopClientsByVisits ranks owners by completed appointments across their pets.
func (s *Service) TopClientsByVisits(ctx context.Context, limit int) ([]domain.ClientVisits, error) {
	if limit <= 0 {
		limit = DefaultTopClients
	}
	var ranked []domain.ClientVisits
	err := s.read(ctx, "top_clients", func(view domain.TransactionView) error {
		var err error
		ranked, err = view.TopClientsByVisits(limit)
		return err
	})
	return ranked, err
}
