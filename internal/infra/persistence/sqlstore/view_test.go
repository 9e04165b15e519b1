package sqlstore

import (
	"testing"
	"time"

	"vetclinic/pkg/domain"
)

func TestLikePatternEscapesWildcards(t *testing.T) {
	cases := map[string]string{
		"Rex":    "%rex%",
		" ana ":  "%ana%",
		"50%":    `%50\%%`,
		"a_b":    `%a\_b%`,
		`back\s`: `%back\\s%`,
	}
	for in, want := range cases {
		if got := likePattern(in); got != want {
			t.Errorf("likePattern(%q) = %q want %q", in, got, want)
		}
	}
}

func TestArchiveRowParsesTimestamp(t *testing.T) {
	ts := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	row := archiveRow{ArchivedPatient: domain.ArchivedPatient{ID: 1, PatientID: 2}, ArchivedAt: ts.Format(time.RFC3339Nano)}
	got := row.toDomain()
	if !got.ArchivedAt.Equal(ts) || got.PatientID != 2 {
		t.Fatalf("unexpected archive %+v", got)
	}
	if !(archiveRow{ArchivedAt: "garbage"}).toDomain().ArchivedAt.IsZero() {
		t.Fatalf("unparseable timestamps stay zero")
	}
}

func TestTranslateMapsUniqueViolations(t *testing.T) {
	tx := &transaction{dialect: Dialect{UniqueViolation: func(err error) (string, bool) {
		return "medicines.name", err.Error() == "unique"
	}}}
	err := tx.translate(domain.EntityMedicine, "insert", errString("unique"))
	if dup, ok := err.(domain.DuplicateError); !ok || dup.Constraint != "medicines.name" {
		t.Fatalf("expected duplicate error, got %#v", err)
	}
	err = tx.translate(domain.EntityMedicine, "insert", errString("disk full"))
	if domain.KindOf(err) != domain.KindStorage {
		t.Fatalf("expected storage error, got %v", err)
	}
}

type errString string

func (e errString) Error() string { return string(e) }
