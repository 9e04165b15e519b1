package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"vetclinic/internal/blob"
	"vetclinic/pkg/domain"
)

func TestExportSnapshot(t *testing.T) {
	logger := &captureLogger{}
	c := newClinic(t, WithLogger(logger))
	ctx := context.Background()
	c.medicine(t, "Amoxicillin", 50, "150")
	c.diagnosis(t)
	if _, err := c.svc.ArchivePatient(ctx, 5); err != nil {
		t.Fatalf("archive: %v", err)
	}

	store := blob.NewMemory()
	info, err := c.svc.ExportSnapshot(ctx, store)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if info.Key != "exports/clinic-20240301T090000.000Z.json" {
		t.Fatalf("unexpected key %s", info.Key)
	}
	if info.Metadata["appointments"] != "1" || info.Metadata["patients"] != "7" {
		t.Fatalf("unexpected metadata %+v", info.Metadata)
	}

	_, body, err := store.Get(ctx, info.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer body.Close()
	raw, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !snap.ExportedAt.Equal(fixedNow) {
		t.Fatalf("unexpected exported_at %s", snap.ExportedAt)
	}
	if len(snap.Patients) != 7 || len(snap.ArchivedPatients) != 1 || len(snap.Doctors) != 9 {
		t.Fatalf("unexpected row counts: %d patients, %d archived, %d doctors", len(snap.Patients), len(snap.ArchivedPatients), len(snap.Doctors))
	}
	if len(snap.Appointments) != 1 || len(snap.Diagnoses) != 1 || len(snap.Medicines) != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if _, ok := logger.find("info", "key", info.Key); !ok {
		t.Fatalf("expected the export to be logged")
	}

	listed, err := store.List(ctx, SnapshotPrefix)
	if err != nil || len(listed) != 1 {
		t.Fatalf("expected one listed snapshot, got %d (%v)", len(listed), err)
	}
}

type rejectingBlobStore struct {
	*blob.Memory
}

func (rejectingBlobStore) Put(context.Context, string, io.Reader, blob.PutOptions) (blob.Info, error) {
	return blob.Info{}, errBoom
}

func TestExportSnapshotUploadFailure(t *testing.T) {
	logger := &captureLogger{}
	c := newClinic(t, WithLogger(logger))

	_, err := c.svc.ExportSnapshot(context.Background(), rejectingBlobStore{blob.NewMemory()})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected upload error, got %v", err)
	}
	entry, ok := logger.find("error", "driver", blob.DriverMemory)
	if !ok || !strings.Contains(entry.msg, "snapshot") {
		t.Fatalf("expected upload failure to be logged, got %+v", logger.entries)
	}
	if domain.KindOf(err) != domain.KindUnknown {
		t.Fatalf("expected an unclassified error, got %s", domain.KindOf(err))
	}
}
