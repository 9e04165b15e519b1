package domain

import (
	"testing"
	"time"
)

func TestNormalizeTime(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"09:00", "09:00"},
		{"9:00", "09:00"},
		{"09:00:00", "09:00"},
		{"9 AM", "09:00"},
		{"9AM", "09:00"},
		{"8am", "08:00"},
		{"09:30 pm", "21:30"},
		{"1PM", "13:00"},
		{"12 PM", "12:00"},
		{"12:15 AM", "00:15"},
		{" 17:00 ", "17:00"},
		{"23:59", "23:59"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := NormalizeTime(tc.in)
			if err != nil {
				t.Fatalf("normalize %q: %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("normalize %q: got %s want %s", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeTimeRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "9", "25:00", "13 PM", "0 AM", "9:5", "nine", "10:60", "1:2:3:4"} {
		if _, err := NormalizeTime(in); err == nil {
			t.Errorf("expected error for %q", in)
		} else if KindOf(err) != KindValidation {
			t.Errorf("expected validation error for %q, got %v", in, err)
		}
	}
}

func TestNormalizeTimeEquatesFormats(t *testing.T) {
	a, _ := NormalizeTime("9:00 AM")
	b, _ := NormalizeTime("09:00")
	if a != b {
		t.Fatalf("expected equal slots, got %s and %s", a, b)
	}
}

func TestNormalizeDate(t *testing.T) {
	got, day, err := NormalizeDate(" 2024-03-10 ")
	if err != nil {
		t.Fatalf("normalize date: %v", err)
	}
	if got != "2024-03-10" || day.Day() != 10 {
		t.Fatalf("unexpected result %s %v", got, day)
	}
	for _, bad := range []string{"", "10/03/2024", "2024-13-01"} {
		if _, _, err := NormalizeDate(bad); KindOf(err) != KindValidation {
			t.Errorf("expected validation error for %q, got %v", bad, err)
		}
	}
}

func TestTodayAndClinicSlots(t *testing.T) {
	if Today(time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)) != "2024-03-09" {
		t.Fatalf("unexpected today")
	}
	for _, slot := range ClinicSlots {
		norm, err := NormalizeTime(slot)
		if err != nil || norm != slot {
			t.Fatalf("slot %s not canonical", slot)
		}
	}
}
