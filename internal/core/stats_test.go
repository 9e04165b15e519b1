package core

import (
	"context"
	"testing"

	"vetclinic/pkg/domain"
)

func TestStats(t *testing.T) {
	c := newClinic(t)
	ctx := context.Background()
	c.medicine(t, "Ketamine", 3, "500")
	c.medicine(t, "Amoxicillin", 50, "150")

	done := c.book(t, 1, 1, "09:00")
	cancelled := c.book(t, 2, 2, "09:00")
	c.book(t, 3, 3, "10:00")
	complete(t, c, done)
	if _, err := c.svc.CancelAppointment(ctx, cancelled.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := c.svc.ArchivePatient(ctx, 7); err != nil {
		t.Fatalf("archive: %v", err)
	}

	stats, err := c.svc.Stats(ctx, bookingDate)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Date != bookingDate || stats.ActivePatients != 6 || stats.Doctors != 9 {
		t.Fatalf("unexpected counts %+v", stats)
	}
	if stats.AppointmentsOnDate != 2 || stats.TotalAppointments != 3 || stats.CompletedAppointments != 1 {
		t.Fatalf("unexpected appointment counts %+v", stats)
	}
	if stats.Owners != 3 {
		t.Fatalf("expected 3 distinct owners, got %d", stats.Owners)
	}
	if len(stats.LowStock) != 1 || stats.LowStock[0].Name != "Ketamine" {
		t.Fatalf("unexpected low stock %+v", stats.LowStock)
	}

	today, err := c.svc.Stats(ctx, "")
	if err != nil {
		t.Fatalf("stats today: %v", err)
	}
	if today.Date != "2024-03-01" || today.AppointmentsOnDate != 0 {
		t.Fatalf("expected an empty today, got %+v", today)
	}

	_, err = c.svc.Stats(ctx, "10/03/2024")
	requireKind(t, err, domain.KindValidation)
}

func TestStatsCountsOwnersByNameAndContact(t *testing.T) {
	c := newClinic(t)
	ctx := context.Background()
	extra := []domain.Patient{
		{Name: "Pet 8", Species: "Dog", OwnerName: "Owner 1", OwnerContact: "555-0101"},
		{Name: "Pet 9", Species: "Cat", OwnerName: " owner 1 ", OwnerContact: "555-0101"},
	}
	for _, p := range extra {
		if _, err := c.svc.SavePatient(ctx, p); err != nil {
			t.Fatalf("save %s: %v", p.Name, err)
		}
	}

	stats, err := c.svc.Stats(ctx, bookingDate)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Owners != 5 {
		t.Fatalf("expected the namesake with a contact to count separately, got %d owners", stats.Owners)
	}
}
