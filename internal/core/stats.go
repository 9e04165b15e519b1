package core

import (
	"context"
	"strings"

	"vetclinic/pkg/domain"
)

// Stats summarizes the clinic for a dashboard. Owners counts distinct
// (owner name, contact) pairs among active patients.
type Stats struct {
	Date                  string
	ActivePatients        int
	Doctors               int
	AppointmentsOnDate    int
	TotalAppointments     int
	CompletedAppointments int
	Owners                int
	LowStock              []domain.Medicine
}

// clientKey folds case and surrounding space so one owner typed two ways
// counts once.
func clientKey(c domain.Client) domain.Client {
	return domain.Client{
		OwnerName:    strings.ToLower(strings.TrimSpace(c.OwnerName)),
		OwnerContact: strings.ToLower(strings.TrimSpace(c.OwnerContact)),
	}
}

// Stats counts patients, doctors and appointments. AppointmentsOnDate
// excludes cancelled appointments; an empty date means today.
func (s *Service) Stats(ctx context.Context, date string) (Stats, error) {
	if strings.TrimSpace(date) == "" {
		date = s.today()
	}
	day, _, err := domain.NormalizeDate(date)
	if err != nil {
		return Stats{}, err
	}
	out := Stats{Date: day}
	err = s.read(ctx, "stats", func(view domain.TransactionView) error {
		patients, err := view.ListPatients(domain.PatientFilter{})
		if err != nil {
			return err
		}
		out.ActivePatients = len(patients)
		owners := make(map[domain.Client]struct{}, len(patients))
		for _, p := range patients {
			owners[clientKey(p.Client())] = struct{}{}
		}
		out.Owners = len(owners)

		doctors, err := view.ListDoctors()
		if err != nil {
			return err
		}
		out.Doctors = len(doctors)

		all, err := view.ListAppointments(domain.AppointmentFilter{IncludeCancelled: true})
		if err != nil {
			return err
		}
		out.TotalAppointments = len(all)
		for _, appt := range all {
			if appt.Status == domain.StatusCompleted {
				out.CompletedAppointments++
			}
			if appt.Date == day && appt.Status.OccupiesSlot() {
				out.AppointmentsOnDate++
			}
		}

		medicines, err := view.ListMedicines("")
		if err != nil {
			return err
		}
		for _, m := range medicines {
			if m.Stock <= LowStockThreshold {
				out.LowStock = append(out.LowStock, m)
			}
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	return out, nil
}
