package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vetclinic/internal/blob"
	"vetclinic/pkg/domain"
)

// SnapshotPrefix is the blob key prefix of exported snapshots.
const SnapshotPrefix = "exports/"

// Snapshot is the JSON document written by ExportSnapshot.
type Snapshot struct {
	ExportedAt       time.Time                `json:"exported_at"`
	Patients         []domain.Patient         `json:"patients"`
	ArchivedPatients []domain.ArchivedPatient `json:"archived_patients"`
	Doctors          []domain.Doctor          `json:"doctors"`
	Appointments     []domain.Appointment     `json:"appointments"`
	Diagnoses        []domain.Diagnosis       `json:"diagnoses"`
	Medications      []domain.Medication      `json:"medications"`
	Medicines        []domain.Medicine        `json:"medicines"`
}

// ExportSnapshot reads every table in one consistent view and writes it to
// store as exports/clinic-<timestamp>.json.
func (s *Service) ExportSnapshot(ctx context.Context, store blob.Store) (blob.Info, error) {
	now := s.now().UTC()
	snap := Snapshot{ExportedAt: now}
	err := s.read(ctx, "export_snapshot", func(view domain.TransactionView) error {
		var err error
		if snap.Patients, err = view.ListPatients(domain.PatientFilter{IncludeDeleted: true}); err != nil {
			return err
		}
		if snap.ArchivedPatients, err = view.ListArchivedPatients(); err != nil {
			return err
		}
		if snap.Doctors, err = view.ListDoctors(); err != nil {
			return err
		}
		if snap.Appointments, err = view.ListAppointments(domain.AppointmentFilter{IncludeCancelled: true}); err != nil {
			return err
		}
		if snap.Diagnoses, err = view.ListDiagnoses(""); err != nil {
			return err
		}
		if snap.Medications, err = view.ListMedications(0); err != nil {
			return err
		}
		snap.Medicines, err = view.ListMedicines("")
		return err
	})
	if err != nil {
		return blob.Info{}, err
	}

	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode snapshot: %w", err)
	}
	key := SnapshotPrefix + "clinic-" + now.Format("20060102T150405.000Z") + ".json"
	info, err := store.Put(ctx, key, bytes.NewReader(body), blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"appointments": fmt.Sprint(len(snap.Appointments)),
			"patients":     fmt.Sprint(len(snap.Patients)),
		},
	})
	if err != nil {
		s.logger.Error("snapshot upload failed", "key", key, "driver", store.Driver(), "error", err)
		return blob.Info{}, fmt.Errorf("store snapshot: %w", err)
	}
	s.logger.Info("snapshot exported", "key", info.Key, "driver", store.Driver(), "size", info.Size)
	return info, nil
}
