package core

import (
	"context"
	"fmt"

	"vetclinic/pkg/domain"
)

// NewStockNonNegativeRule returns the rule blocking any transaction that would
// leave a touched medicine with negative stock.
func NewStockNonNegativeRule() domain.Rule {
	return stockNonNegativeRule{}
}

type stockNonNegativeRule struct{}

func (stockNonNegativeRule) Name() string { return "stock_non_negative" }

func (r stockNonNegativeRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, name := range touchedMedicines(changes) {
		med, ok, err := view.FindMedicineByName(name)
		if err != nil {
			return domain.Result{}, err
		}
		if !ok || med.Stock >= 0 {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("medicine %s stock would drop to %d", med.Name, med.Stock),
			Entity:   domain.EntityMedicine,
			EntityID: idString(med.ID),
		})
	}
	return res, nil
}

// touchedMedicines returns the distinct medicine names affected by medicine or
// medication changes, in first-seen order.
func touchedMedicines(changes []domain.Change) []string {
	seen := make(map[string]struct{})
	var names []string
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	for _, change := range changes {
		switch change.Entity {
		case domain.EntityMedicine:
			if m, ok := change.After.(domain.Medicine); ok {
				add(m.Name)
			}
		case domain.EntityMedication:
			if m, ok := change.After.(domain.Medication); ok {
				add(m.MedicineName)
			}
		}
	}
	return names
}
