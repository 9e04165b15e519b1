package core

import (
	"context"
	"fmt"

	"vetclinic/pkg/domain"
)

// NewLowStockRule returns a non-blocking rule that warns when a transaction
// leaves a touched medicine at or below threshold.
func NewLowStockRule(threshold int) domain.Rule {
	return lowStockRule{threshold: threshold}
}

type lowStockRule struct {
	threshold int
}

func (lowStockRule) Name() string { return "low_stock" }

func (r lowStockRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, name := range touchedMedicines(changes) {
		med, ok, err := view.FindMedicineByName(name)
		if err != nil {
			return domain.Result{}, err
		}
		if !ok || med.Stock < 0 || med.Stock > r.threshold {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("medicine %s is low on stock (%d left)", med.Name, med.Stock),
			Entity:   domain.EntityMedicine,
			EntityID: idString(med.ID),
		})
	}
	return res, nil
}
