package core

import (
	"context"
	"fmt"

	"vetclinic/pkg/domain"
)

// NewSlotUniquenessRule returns the commit-time rule that blocks a transaction
// leaving a doctor or patient with two non-cancelled appointments in one slot.
func NewSlotUniquenessRule() domain.Rule {
	return slotUniquenessRule{}
}

type slotUniquenessRule struct{}

func (slotUniquenessRule) Name() string { return "slot_uniqueness" }

func (r slotUniquenessRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityAppointment || change.Action == domain.ActionDelete {
			continue
		}
		appt, ok := change.After.(domain.Appointment)
		if !ok || !appt.Status.OccupiesSlot() {
			continue
		}
		conflicts, err := view.FindSlotConflicts(appt.DoctorID, appt.PatientID, appt.Date, appt.Time)
		if err != nil {
			return domain.Result{}, err
		}
		for _, other := range conflicts {
			if other.ID == appt.ID {
				continue
			}
			party := domain.PartyPatient
			if other.DoctorID == appt.DoctorID {
				party = domain.PartyDoctor
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("%s double-booked on %s at %s by %s", party, appt.Date, appt.Time, other.ID),
				Entity:   domain.EntityAppointment,
				EntityID: appt.ID,
			})
			break
		}
	}
	return res, nil
}
