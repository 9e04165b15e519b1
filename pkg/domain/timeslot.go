package domain

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format stored in the appointments table.
const DateLayout = "2006-01-02"

// ClinicSlots lists the bookable hourly slots in canonical form. The clinic
// closes over lunch, so 12:00 is not offered.
var ClinicSlots = []string{
	"08:00", "09:00", "10:00", "11:00",
	"13:00", "14:00", "15:00", "16:00", "17:00",
}

// NormalizeTime converts a 12-hour or 24-hour time of day into canonical HH:MM.
// Accepted inputs include "9:00", "09:00", "09:00:00", "9 AM", "9AM" and "09:30 pm".
func NormalizeTime(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", ValidationError{Field: "time", Message: "time is required"}
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ".", "")

	meridiem := ""
	switch {
	case strings.HasSuffix(s, "AM"):
		meridiem, s = "AM", strings.TrimSuffix(s, "AM")
	case strings.HasSuffix(s, "PM"):
		meridiem, s = "PM", strings.TrimSuffix(s, "PM")
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 || (meridiem == "" && len(parts) < 2) {
		return "", invalidTime(raw)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		if p == "" || len(p) > 2 {
			return "", invalidTime(raw)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return "", invalidTime(raw)
		}
		nums[i] = n
	}
	hour, minute, second := nums[0], nums[1], nums[2]
	if minute > 59 || second > 59 {
		return "", invalidTime(raw)
	}
	if len(parts) > 1 && len(parts[1]) != 2 {
		return "", invalidTime(raw)
	}

	switch meridiem {
	case "AM", "PM":
		if hour < 1 || hour > 12 {
			return "", invalidTime(raw)
		}
		hour %= 12
		if meridiem == "PM" {
			hour += 12
		}
	default:
		if hour > 23 {
			return "", invalidTime(raw)
		}
	}
	return formatHourMinute(hour, minute), nil
}

func formatHourMinute(hour, minute int) string {
	var b strings.Builder
	if hour < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.Itoa(hour))
	b.WriteByte(':')
	if minute < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.Itoa(minute))
	return b.String()
}

func invalidTime(raw string) error {
	return ValidationError{Field: "time", Message: "unrecognized time " + strconv.Quote(raw)}
}

// NormalizeDate validates an ISO date and returns its canonical form and the parsed day.
func NormalizeDate(raw string) (string, time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", time.Time{}, ValidationError{Field: "date", Message: "date is required"}
	}
	day, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", time.Time{}, ValidationError{Field: "date", Message: "date must be YYYY-MM-DD"}
	}
	return day.Format(DateLayout), day, nil
}

// Today truncates now to a calendar date in its own location.
func Today(now time.Time) string {
	return now.Format(DateLayout)
}
