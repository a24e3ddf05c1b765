package usecases

import (
	"testing"
	"time"
)

func TestNormalizeDate(t *testing.T) {
	// A Monday, so weekday arithmetic is easy to eyeball.
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"today", "today", "2025-03-10"},
		{"tonight", "tonight", "2025-03-10"},
		{"tomorrow", "tomorrow", "2025-03-11"},
		{"day after tomorrow", "day after tomorrow", "2025-03-12"},
		{"next friday", "next friday", "2025-03-14"},
		{"bare weekday", "friday", "2025-03-14"},
		{"same weekday never today", "monday", "2025-03-17"},
		{"iso passthrough", "2025-04-01", "2025-04-01"},
		{"iso case and spaces", "  2025-04-01  ", "2025-04-01"},
		{"slash format", "01/04/2025", "2025-04-01"},
		{"long form", "April 1, 2025", "2025-04-01"},
		{"garbage", "whenever", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeDate(tc.in, now); got != tc.want {
				t.Errorf("NormalizeDate(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeTime(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"10am", "10:00"},
		{"10 AM", "10:00"},
		{"2:30pm", "14:30"},
		{"2.30 PM", "14:30"},
		{"14:00", "14:00"},
		{"12am", "00:00"},
		{"12pm", "12:00"},
		{"9", "09:00"},
		{"25:00", ""},
		{"10:75", ""},
		{"noonish", ""},
		{"", ""},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			if got := NormalizeTime(tc.in); got != tc.want {
				t.Errorf("NormalizeTime(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestAddSlot(t *testing.T) {
	if got := addSlot("09:00", 60); got != "10:00" {
		t.Errorf("addSlot(09:00, 60) = %q", got)
	}
	if got := addSlot("09:00", 45); got != "09:45" {
		t.Errorf("addSlot(09:00, 45) = %q", got)
	}
	if got := addSlot("23:30", 60); got != "" {
		t.Errorf("addSlot past midnight = %q, want empty", got)
	}
	if got := addSlot("bogus", 30); got != "" {
		t.Errorf("addSlot on bad input = %q, want empty", got)
	}
}

func TestFriendlyDate(t *testing.T) {
	if got := friendlyDate("2025-03-14"); got != "Friday, Mar 14" {
		t.Errorf("friendlyDate = %q", got)
	}
	// Unparseable input passes through untouched.
	if got := friendlyDate("soon"); got != "soon" {
		t.Errorf("friendlyDate fallback = %q", got)
	}
}
