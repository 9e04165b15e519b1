package core

import (
	"context"
	"errors"
	"strings"

	"vetclinic/pkg/domain"
)

// SavePatient registers a new patient, or updates the active patient with p.ID.
func (s *Service) SavePatient(ctx context.Context, p domain.Patient) (domain.Patient, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.OwnerName = strings.TrimSpace(p.OwnerName)
	p.OwnerContact = strings.TrimSpace(p.OwnerContact)
	p.Species = strings.TrimSpace(p.Species)
	var saved domain.Patient
	_, err := s.run(ctx, "save_patient", func(tx domain.Transaction) (string, error) {
		if err := validateStruct(p); err != nil {
			return idString(p.ID), err
		}
		var err error
		if p.ID == 0 {
			p.State = domain.PatientActive
			saved, err = tx.CreatePatient(p)
			return idString(saved.ID), err
		}
		saved, err = tx.UpdatePatient(p.ID, func(current *domain.Patient) error {
			if current.Deleted() {
				return domain.ValidationError{Field: "id", Message: "patient is " + string(current.State)}
			}
			state := current.State
			*current = p
			current.State = state
			return nil
		})
		return idString(p.ID), err
	})
	if err != nil {
		return domain.Patient{}, err
	}
	return saved, nil
}

// GetPatient returns a patient in any state.
func (s *Service) GetPatient(ctx context.Context, id int64) (domain.Patient, error) {
	var out domain.Patient
	err := s.read(ctx, "get_patient", func(view domain.TransactionView) error {
		p, ok, err := view.FindPatient(id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NotFound(domain.EntityPatient, id)
		}
		out = p
		return nil
	})
	return out, err
}

// ListPatients returns active patients whose name or owner contains query,
// optionally restricted to one species.
func (s *Service) ListPatients(ctx context.Context, query, species string) ([]domain.Patient, error) {
	var out []domain.Patient
	err := s.read(ctx, "list_patients", func(view domain.TransactionView) error {
		var err error
		out, err = view.ListPatients(domain.PatientFilter{Query: query, Species: strings.TrimSpace(species)})
		return err
	})
	return out, err
}

// ListSpecies returns the distinct species of active patients.
func (s *Service) ListSpecies(ctx context.Context) ([]string, error) {
	var out []string
	err := s.read(ctx, "list_species", func(view domain.TransactionView) error {
		var err error
		out, err = view.ListSpecies()
		return err
	})
	return out, err
}

// ArchivePatient soft-deletes an active patient and keeps a copy in the archive.
func (s *Service) ArchivePatient(ctx context.Context, id int64) (domain.ArchivedPatient, error) {
	var out domain.ArchivedPatient
	_, err := s.run(ctx, "archive_patient", func(tx domain.Transaction) (string, error) {
		patient, err := tx.UpdatePatient(id, transitionPatient(domain.PatientArchived))
		if err != nil {
			return idString(id), err
		}
		out, err = tx.CreateArchivedPatient(domain.ArchivedPatient{
			PatientID:    patient.ID,
			Name:         patient.Name,
			Species:      patient.Species,
			Breed:        patient.Breed,
			Age:          patient.Age,
			OwnerName:    patient.OwnerName,
			OwnerContact: patient.OwnerContact,
			Notes:        patient.Notes,
			ArchivedAt:   s.now().UTC(),
		})
		return idString(id), err
	})
	if err != nil {
		return domain.ArchivedPatient{}, err
	}
	return out, nil
}

// ListArchivedPatients returns archive entries, most recently archived first.
func (s *Service) ListArchivedPatients(ctx context.Context) ([]domain.ArchivedPatient, error) {
	var out []domain.ArchivedPatient
	err := s.read(ctx, "list_archived_patients", func(view domain.TransactionView) error {
		var err error
		out, err = view.ListArchivedPatients()
		return err
	})
	return out, err
}

// RestoreArchivedPatient reactivates the patient behind an archive entry and
// drops the entry. A patient row that no longer exists is re-created with its
// original ID.
func (s *Service) RestoreArchivedPatient(ctx context.Context, archiveID int64) (domain.Patient, error) {
	var out domain.Patient
	_, err := s.run(ctx, "restore_archived_patient", func(tx domain.Transaction) (string, error) {
		view := tx.Snapshot()
		entry, ok, err := view.FindArchivedPatient(archiveID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", domain.NotFound(domain.EntityArchivedPatient, archiveID)
		}
		entityID := idString(entry.PatientID)
		_, exists, err := view.FindPatient(entry.PatientID)
		if err != nil {
			return entityID, err
		}
		if exists {
			out, err = tx.UpdatePatient(entry.PatientID, transitionPatient(domain.PatientActive))
		} else {
			out, err = tx.CreatePatient(entry.Patient())
		}
		if err != nil {
			return entityID, err
		}
		return entityID, tx.DeleteArchivedPatient(archiveID)
	})
	if err != nil {
		return domain.Patient{}, err
	}
	return out, nil
}

// PurgeArchivedPatient permanently removes an archive entry. The patient row
// stays, marked purged, so past appointments keep their references.
func (s *Service) PurgeArchivedPatient(ctx context.Context, archiveID int64) error {
	_, err := s.run(ctx, "purge_archived_patient", func(tx domain.Transaction) (string, error) {
		entry, ok, err := tx.Snapshot().FindArchivedPatient(archiveID)
		if err != nil {
			return idString(archiveID), err
		}
		if !ok {
			return idString(archiveID), domain.NotFound(domain.EntityArchivedPatient, archiveID)
		}
		if _, err := tx.UpdatePatient(entry.PatientID, transitionPatient(domain.PatientPurged)); err != nil {
			var missing domain.ErrNotFound
			if !errors.As(err, &missing) {
				return idString(archiveID), err
			}
		}
		return idString(archiveID), tx.DeleteArchivedPatient(archiveID)
	})
	return err
}

func transitionPatient(next domain.PatientState) func(*domain.Patient) error {
	return func(p *domain.Patient) error {
		if !p.State.CanTransition(next) {
			return domain.ValidationError{Field: "state", Message: "cannot move patient from " + string(p.State) + " to " + string(next)}
		}
		p.State = next
		return nil
	}
}
