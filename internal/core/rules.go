package core

import "vetclinic/pkg/domain"

// LowStockThreshold is the stock level at or below which a medicine is reported as low.
const LowStockThreshold = 5

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewSlotUniquenessRule())
	engine.Register(NewStockNonNegativeRule())
	engine.Register(NewLowStockRule(LowStockThreshold))
	return engine
}
