package usecases

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// The decision layer's date and time strings come from a language model and
// cannot be trusted to be well formed. Everything here is deterministic
// post-processing so flaky model formatting never reaches business logic.

const dateLayout = "2006-01-02"

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// NormalizeDate resolves relative terms against the wall-clock date and
// returns an ISO date, or "" when nothing usable was extracted.
func NormalizeDate(raw string, now time.Time) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}

	switch s {
	case "today", "tonight":
		return now.Format(dateLayout)
	case "tomorrow":
		return now.AddDate(0, 0, 1).Format(dateLayout)
	case "day after tomorrow":
		return now.AddDate(0, 0, 2).Format(dateLayout)
	}

	// "monday", "next friday" resolve to the next such weekday, never today.
	name := strings.TrimPrefix(s, "next ")
	if wd, ok := weekdays[name]; ok {
		days := int(wd-now.Weekday()+7) % 7
		if days == 0 {
			days = 7
		}
		return now.AddDate(0, 0, days).Format(dateLayout)
	}

	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.Format(dateLayout)
	}
	// Tolerate a couple of common model variants.
	for _, layout := range []string{"02/01/2006", "01/02/2006", "January 2, 2006", "January 2 2006", "2 January 2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(dateLayout)
		}
	}
	return ""
}

var timePattern = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\s*$`)

// NormalizeTime converts 12-hour and sloppy inputs ("10am", "2.30 PM",
// "14:00") to 24-hour HH:MM, or "" when unparseable.
func NormalizeTime(raw string) string {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ".", ":")
	m := timePattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}

	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	meridiem := strings.ToLower(m[3])

	switch meridiem {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}

	if hour > 23 || minute > 59 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// addSlot advances HH:MM by the given minutes within one day.
func addSlot(hhmm string, minutes int) string {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return ""
	}
	next := t.Add(time.Duration(minutes) * time.Minute)
	if next.Day() != t.Day() {
		return ""
	}
	return next.Format("15:04")
}

// friendlyDate renders an ISO date for user-facing messages.
func friendlyDate(iso string) string {
	t, err := time.Parse(dateLayout, iso)
	if err != nil {
		return iso
	}
	return t.Format("Monday, Jan 2")
}
