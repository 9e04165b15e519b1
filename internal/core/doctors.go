package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"vetclinic/pkg/domain"
)

// GeneralPractitionerFee is the consultation fee of the general veterinarians.
var GeneralPractitionerFee = decimal.NewFromInt(1500)

// SpecialistRoster is installed on first run when no doctors exist.
var SpecialistRoster = []domain.Doctor{
	{Name: "Dr. Sarah Geronimo", Specialization: "Nutrition", Fee: decimal.NewFromInt(3500)},
	{Name: "Dr. Carlos Garcia", Specialization: "Grooming", Fee: decimal.NewFromInt(2500)},
	{Name: "Dr. Princess Valdez", Specialization: "Surgery", Fee: decimal.NewFromInt(15000)},
	{Name: "Dr. Robert Tuazon", Specialization: "Dentistry", Fee: decimal.NewFromInt(5000)},
	{Name: "Dr. Lisa Badlis", Specialization: "Ophthalmology", Fee: decimal.NewFromInt(4500)},
	{Name: "Dr. James Villaluna", Specialization: "Dermatology", Fee: decimal.NewFromInt(5000)},
}

// GeneralPractitioners are ensured on every seed with GeneralPractitionerFee.
var GeneralPractitioners = []string{
	"Dr. Miguel Santos",
	"Dr. Katrina Dela Cruz",
	"Dr. Jerome Bautista",
}

const generalSpecialization = "General Veterinarian"

// SaveDoctor creates a doctor, or updates the doctor with d.ID.
func (s *Service) SaveDoctor(ctx context.Context, d domain.Doctor) (domain.Doctor, error) {
	d.Name = strings.TrimSpace(d.Name)
	var saved domain.Doctor
	_, err := s.run(ctx, "save_doctor", func(tx domain.Transaction) (string, error) {
		if err := validateStruct(d); err != nil {
			return idString(d.ID), err
		}
		if err := requireMoney("fee", d.Fee); err != nil {
			return idString(d.ID), err
		}
		var err error
		if d.ID == 0 {
			saved, err = tx.CreateDoctor(d)
		} else {
			saved, err = tx.UpdateDoctor(d.ID, func(current *domain.Doctor) error {
				*current = d
				return nil
			})
		}
		return idString(saved.ID), err
	})
	if err != nil {
		return domain.Doctor{}, err
	}
	return saved, nil
}

// UpdateDoctorFee changes a doctor's consultation fee.
func (s *Service) UpdateDoctorFee(ctx context.Context, id int64, fee decimal.Decimal) (domain.Doctor, error) {
	var saved domain.Doctor
	_, err := s.run(ctx, "update_doctor_fee", func(tx domain.Transaction) (string, error) {
		if err := requireMoney("fee", fee); err != nil {
			return idString(id), err
		}
		var err error
		saved, err = tx.UpdateDoctor(id, func(d *domain.Doctor) error {
			d.Fee = fee
			return nil
		})
		return idString(id), err
	})
	if err != nil {
		return domain.Doctor{}, err
	}
	return saved, nil
}

// DeleteDoctor removes a doctor that no appointment references.
func (s *Service) DeleteDoctor(ctx context.Context, id int64) error {
	_, err := s.run(ctx, "delete_doctor", func(tx domain.Transaction) (string, error) {
		booked, err := tx.Snapshot().ListAppointments(domain.AppointmentFilter{DoctorID: id, IncludeCancelled: true})
		if err != nil {
			return idString(id), err
		}
		if len(booked) > 0 {
			return idString(id), domain.ValidationError{
				Field:   "id",
				Message: fmt.Sprintf("doctor has %d appointment(s) and cannot be deleted", len(booked)),
			}
		}
		return idString(id), tx.DeleteDoctor(id)
	})
	return err
}

// GetDoctor returns one doctor.
func (s *Service) GetDoctor(ctx context.Context, id int64) (domain.Doctor, error) {
	var out domain.Doctor
	err := s.read(ctx, "get_doctor", func(view domain.TransactionView) error {
		d, ok, err := view.FindDoctor(id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NotFound(domain.EntityDoctor, id)
		}
		out = d
		return nil
	})
	return out, err
}

// ListDoctors returns the roster in insertion order.
func (s *Service) ListDoctors(ctx context.Context) ([]domain.Doctor, error) {
	var out []domain.Doctor
	err := s.read(ctx, "list_doctors", func(view domain.TransactionView) error {
		var err error
		out, err = view.ListDoctors()
		return err
	})
	return out, err
}

// SeedDoctors installs SpecialistRoster into an empty table and makes sure the
// general practitioners exist with GeneralPractitionerFee. It is safe to run
// on every start and returns the number of doctors inserted.
func (s *Service) SeedDoctors(ctx context.Context) (int, error) {
	inserted := 0
	_, err := s.run(ctx, "seed_doctors", func(tx domain.Transaction) (string, error) {
		view := tx.Snapshot()
		existing, err := view.ListDoctors()
		if err != nil {
			return "", err
		}
		if len(existing) == 0 {
			for _, d := range SpecialistRoster {
				if _, err := tx.CreateDoctor(d); err != nil {
					return "", err
				}
				inserted++
			}
		}
		for _, name := range GeneralPractitioners {
			d, ok, err := view.FindDoctorByName(name)
			if err != nil {
				return "", err
			}
			if !ok {
				if _, err := tx.CreateDoctor(domain.Doctor{Name: name, Specialization: generalSpecialization, Fee: GeneralPractitionerFee}); err != nil {
					return "", err
				}
				inserted++
				continue
			}
			if d.Fee.Equal(GeneralPractitionerFee) {
				continue
			}
			if _, err := tx.UpdateDoctor(d.ID, func(doc *domain.Doctor) error {
				doc.Fee = GeneralPractitionerFee
				return nil
			}); err != nil {
				return "", err
			}
		}
		return "", nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
