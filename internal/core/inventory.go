package core

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"vetclinic/pkg/domain"
)

// PrescriptionDraft is one medication line to attach to a diagnosis.
type PrescriptionDraft struct {
	DiagnosisID  int64           `json:"diagnosis_id" validate:"gt=0"`
	MedicineName string          `json:"medicine_name" validate:"required"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity" validate:"gt=0"`
}

// MedicationRemoval reports a deleted prescription line and whether its
// quantity went back into stock.
type MedicationRemoval struct {
	Medication    domain.Medication
	StockRestored bool
}

// AddMedication prescribes a medicine under a diagnosis and takes the quantity
// out of stock in the same transaction.
func (s *Service) AddMedication(ctx context.Context, draft PrescriptionDraft) (domain.Medication, domain.Result, error) {
	draft.MedicineName = strings.TrimSpace(draft.MedicineName)
	var line domain.Medication
	res, err := s.run(ctx, "add_medication", func(tx domain.Transaction) (string, error) {
		if err := validateStruct(draft); err != nil {
			return "", err
		}
		if err := requireMoney("unit_price", draft.UnitPrice); err != nil {
			return "", err
		}
		view := tx.Snapshot()
		if _, ok, err := view.FindDiagnosis(draft.DiagnosisID); err != nil {
			return "", err
		} else if !ok {
			return "", domain.NotFound(domain.EntityDiagnosis, draft.DiagnosisID)
		}
		medicine, ok, err := view.FindMedicineByName(draft.MedicineName)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", domain.UnknownMedicineError{Name: draft.MedicineName}
		}
		if draft.Quantity > medicine.Stock {
			return "", domain.InsufficientStockError{Medicine: medicine.Name, Requested: draft.Quantity, Available: medicine.Stock}
		}

		line, err = tx.CreateMedication(domain.Medication{
			DiagnosisID:  draft.DiagnosisID,
			MedicineName: medicine.Name,
			Quantity:     draft.Quantity,
			Price:        draft.UnitPrice,
		})
		if err != nil {
			return "", err
		}
		after, applied, err := tx.AdjustMedicineStock(medicine.Name, -draft.Quantity)
		if err != nil {
			return idString(line.ID), err
		}
		if !applied {
			return idString(line.ID), domain.InsufficientStockError{Medicine: medicine.Name, Requested: draft.Quantity, Available: after.Stock}
		}
		return idString(line.ID), nil
	})
	if err != nil {
		return domain.Medication{}, res, err
	}
	return line, res, nil
}

// DeleteMedication removes a prescription line and returns its quantity to
// stock. When the medicine has since been removed from inventory the line is
// still deleted and StockRestored is false.
func (s *Service) DeleteMedication(ctx context.Context, id int64) (MedicationRemoval, error) {
	var out MedicationRemoval
	_, err := s.run(ctx, "delete_medication", func(tx domain.Transaction) (string, error) {
		removal, err := removeMedication(tx, id)
		out = removal
		return idString(id), err
	})
	return out, err
}

func removeMedication(tx domain.Transaction, id int64) (MedicationRemoval, error) {
	line, ok, err := tx.Snapshot().FindMedication(id)
	if err != nil {
		return MedicationRemoval{}, err
	}
	if !ok {
		return MedicationRemoval{}, domain.NotFound(domain.EntityMedication, id)
	}
	_, restored, err := tx.AdjustMedicineStock(line.MedicineName, line.Quantity)
	if err != nil {
		return MedicationRemoval{}, err
	}
	if err := tx.DeleteMedication(id); err != nil {
		return MedicationRemoval{}, err
	}
	return MedicationRemoval{Medication: line, StockRestored: restored}, nil
}

// ListMedications returns the lines prescribed under a diagnosis.
func (s *Service) ListMedications(ctx context.Context, diagnosisID int64) ([]domain.Medication, error) {
	if diagnosisID <= 0 {
		return nil, domain.ValidationError{Field: "diagnosis_id", Message: "must be greater than 0"}
	}
	var out []domain.Medication
	err := s.read(ctx, "list_medications", func(view domain.TransactionView) error {
		var err error
		out, err = view.ListMedications(diagnosisID)
		return err
	})
	return out, err
}

// DiagnosisMedicationTotal sums price * quantity over a diagnosis's lines.
func (s *Service) DiagnosisMedicationTotal(ctx context.Context, diagnosisID int64) (decimal.Decimal, error) {
	lines, err := s.ListMedications(ctx, diagnosisID)
	if err != nil {
		return decimal.Zero, err
	}
	return domain.MedicationTotal(lines), nil
}
