package core

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"vetclinic/pkg/domain"
)

// SampleMedicines is the starter inventory installed by SeedSampleMedicines.
var SampleMedicines = []domain.Medicine{
	{Name: "Amoxicillin", Stock: 50, Price: decimal.NewFromInt(150), Form: "Tablet", IntendedUse: "Antibiotic for bacterial infections"},
	{Name: "Carprofen", Stock: 30, Price: decimal.NewFromInt(200), Form: "Tablet", IntendedUse: "Pain and inflammation relief"},
	{Name: "Enrofloxacin", Stock: 40, Price: decimal.NewFromInt(250), Form: "Syrup", IntendedUse: "Broad-spectrum antibiotic"},
	{Name: "Ketamine", Stock: 10, Price: decimal.NewFromInt(500), Form: "Injection", IntendedUse: "Anesthetic"},
	{Name: "Dexamethasone", Stock: 25, Price: decimal.NewFromInt(120), Form: "Injection", IntendedUse: "Anti-inflammatory steroid"},
}

// SaveMedicine inserts or updates an inventory item. An item with a non-zero
// ID is updated by ID; otherwise an item with the same name is updated, and
// only then is a new row created.
func (s *Service) SaveMedicine(ctx context.Context, medicine domain.Medicine) (domain.Medicine, error) {
	medicine.Name = strings.TrimSpace(medicine.Name)
	var saved domain.Medicine
	_, err := s.run(ctx, "save_medicine", func(tx domain.Transaction) (string, error) {
		if err := validateStruct(medicine); err != nil {
			return idString(medicine.ID), err
		}
		if err := requireMoney("price", medicine.Price); err != nil {
			return idString(medicine.ID), err
		}
		id := medicine.ID
		if id == 0 {
			existing, ok, err := tx.Snapshot().FindMedicineByName(medicine.Name)
			if err != nil {
				return "", err
			}
			if ok {
				id = existing.ID
			}
		}
		var err error
		if id == 0 {
			saved, err = tx.CreateMedicine(medicine)
		} else {
			saved, err = tx.UpdateMedicine(id, func(current *domain.Medicine) error {
				*current = medicine
				return nil
			})
		}
		if errors.Is(err, domain.ErrDuplicate) {
			err = domain.ValidationError{Field: "name", Message: "a medicine named " + medicine.Name + " already exists"}
		}
		return idString(saved.ID), err
	})
	if err != nil {
		return domain.Medicine{}, err
	}
	return saved, nil
}

// DeleteMedicine removes an inventory item. Existing prescription lines keep
// their name and price snapshot.
func (s *Service) DeleteMedicine(ctx context.Context, id int64) error {
	_, err := s.run(ctx, "delete_medicine", func(tx domain.Transaction) (string, error) {
		return idString(id), tx.DeleteMedicine(id)
	})
	return err
}

// GetMedicine returns one inventory item.
func (s *Service) GetMedicine(ctx context.Context, id int64) (domain.Medicine, error) {
	var out domain.Medicine
	err := s.read(ctx, "get_medicine", func(view domain.TransactionView) error {
		m, ok, err := view.FindMedicine(id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NotFound(domain.EntityMedicine, id)
		}
		out = m
		return nil
	})
	return out, err
}

// ListMedicines returns inventory items whose name contains query, or all of them.
func (s *Service) ListMedicines(ctx context.Context, query string) ([]domain.Medicine, error) {
	var out []domain.Medicine
	err := s.read(ctx, "list_medicines", func(view domain.TransactionView) error {
		var err error
		out, err = view.ListMedicines(query)
		return err
	})
	return out, err
}

// LowStockMedicines returns the items whose stock is at or below threshold.
func (s *Service) LowStockMedicines(ctx context.Context, threshold int) ([]domain.Medicine, error) {
	all, err := s.ListMedicines(ctx, "")
	if err != nil {
		return nil, err
	}
	low := make([]domain.Medicine, 0, len(all))
	for _, m := range all {
		if m.Stock <= threshold {
			low = append(low, m)
		}
	}
	return low, nil
}

// SeedSampleMedicines installs SampleMedicines, skipping names already in
// inventory, and returns how many rows were inserted.
func (s *Service) SeedSampleMedicines(ctx context.Context) (int, error) {
	inserted := 0
	_, err := s.run(ctx, "seed_sample_medicines", func(tx domain.Transaction) (string, error) {
		view := tx.Snapshot()
		for _, sample := range SampleMedicines {
			if _, exists, err := view.FindMedicineByName(sample.Name); err != nil {
				return "", err
			} else if exists {
				continue
			}
			if _, err := tx.CreateMedicine(sample); err != nil {
				return "", err
			}
			inserted++
		}
		return "", nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
