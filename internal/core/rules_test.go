package core

import (
	"context"
	"testing"

	"vetclinic/pkg/domain"
)

type fakeRuleView struct {
	medicines map[string]domain.Medicine
	conflicts []domain.Appointment
}

func (v fakeRuleView) FindMedicineByName(name string) (domain.Medicine, bool, error) {
	m, ok := v.medicines[name]
	return m, ok, nil
}

func (v fakeRuleView) FindSlotConflicts(int64, int64, string, string) ([]domain.Appointment, error) {
	return v.conflicts, nil
}

func TestSlotUniquenessRule(t *testing.T) {
	appt := domain.Appointment{ID: "aaaa0001", PatientID: 1, DoctorID: 3, Date: bookingDate, Time: "09:00", Status: domain.StatusScheduled}
	change := domain.Change{Entity: domain.EntityAppointment, Action: domain.ActionCreate, After: appt}
	rule := NewSlotUniquenessRule()

	res, err := rule.Evaluate(context.Background(), fakeRuleView{conflicts: []domain.Appointment{appt}}, []domain.Change{change})
	if err != nil || len(res.Violations) != 0 {
		t.Fatalf("expected self match to be ignored, got %+v (%v)", res.Violations, err)
	}

	other := domain.Appointment{ID: "bbbb0002", PatientID: 2, DoctorID: 3, Date: bookingDate, Time: "09:00", Status: domain.StatusScheduled}
	res, err = rule.Evaluate(context.Background(), fakeRuleView{conflicts: []domain.Appointment{other}}, []domain.Change{change})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 1 || !res.HasBlocking() || res.Violations[0].EntityID != appt.ID {
		t.Fatalf("expected one blocking violation, got %+v", res.Violations)
	}

	cancelled := appt
	cancelled.Status = domain.StatusCancelled
	res, err = rule.Evaluate(context.Background(), fakeRuleView{conflicts: []domain.Appointment{other}}, []domain.Change{
		{Entity: domain.EntityAppointment, Action: domain.ActionUpdate, After: cancelled},
		{Entity: domain.EntityAppointment, Action: domain.ActionDelete, Before: appt},
	})
	if err != nil || len(res.Violations) != 0 {
		t.Fatalf("expected cancelled and deleted appointments to be ignored, got %+v (%v)", res.Violations, err)
	}
}

func TestStockRules(t *testing.T) {
	view := fakeRuleView{medicines: map[string]domain.Medicine{
		"Amoxicillin": {ID: 1, Name: "Amoxicillin", Stock: -2},
		"Ketamine":    {ID: 2, Name: "Ketamine", Stock: 5},
		"Carprofen":   {ID: 3, Name: "Carprofen", Stock: 30},
	}}
	changes := []domain.Change{
		{Entity: domain.EntityMedication, Action: domain.ActionCreate, After: domain.Medication{MedicineName: "Amoxicillin"}},
		{Entity: domain.EntityMedicine, Action: domain.ActionUpdate, After: domain.Medicine{Name: "Amoxicillin"}},
		{Entity: domain.EntityMedicine, Action: domain.ActionUpdate, After: domain.Medicine{Name: "Ketamine"}},
		{Entity: domain.EntityMedicine, Action: domain.ActionUpdate, After: domain.Medicine{Name: "Carprofen"}},
		{Entity: domain.EntityMedicine, Action: domain.ActionDelete, Before: domain.Medicine{Name: "Gone"}},
	}

	if got := touchedMedicines(changes); len(got) != 3 || got[0] != "Amoxicillin" || got[1] != "Ketamine" || got[2] != "Carprofen" {
		t.Fatalf("unexpected touched medicines %v", got)
	}

	res, err := NewStockNonNegativeRule().Evaluate(context.Background(), view, changes)
	if err != nil {
		t.Fatalf("stock rule: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].EntityID != "1" || res.Violations[0].Severity != domain.SeverityBlock {
		t.Fatalf("expected Amoxicillin to block, got %+v", res.Violations)
	}

	res, err = NewLowStockRule(LowStockThreshold).Evaluate(context.Background(), view, changes)
	if err != nil {
		t.Fatalf("low stock rule: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].EntityID != "2" || res.HasBlocking() {
		t.Fatalf("expected only a Ketamine warning, got %+v", res.Violations)
	}
}

func TestGuardedStockAdjustmentLeavesStockAlone(t *testing.T) {
	c := newClinic(t)
	ctx := context.Background()
	c.medicine(t, "Ketamine", 3, "500")

	var applied bool
	_, err := c.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		_, applied, err = tx.AdjustMedicineStock("Ketamine", -5)
		return err
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if applied {
		t.Fatalf("expected oversell adjustment to be refused")
	}
	if got := c.stock(t, "Ketamine"); got != 3 {
		t.Fatalf("expected stock to stay at 3, got %d", got)
	}
}
