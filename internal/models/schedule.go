package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Frequency determines how a schedule's day selector is interpreted.
type Frequency string

const (
	FreqDaily        Frequency = "daily"
	FreqWeekly       Frequency = "weekly"
	FreqMonthly      Frequency = "monthly"
	FreqSpecificDays Frequency = "specific_days"
	FreqInterval     Frequency = "interval"
)

// Schedule is one recurring intake time for a medication. A medication may
// have any number of schedules.
type Schedule struct {
	ID           int64      `json:"id"`
	MedicationID int64      `json:"medication_id"`
	TimeOfDay    string     `json:"time_of_day"` // HH:MM, process-wide timezone
	Frequency    Frequency  `json:"frequency"`
	Days         []int      `json:"days"`          // ISO weekday 1-7 or day-of-month 1-31
	IntervalDays int        `json:"interval_days"` // meaningful for FreqInterval only
	AnchorDate   *time.Time `json:"anchor_date"`   // day zero for interval counting
	Active       bool       `json:"active"`
}

// Validate checks the recurrence configuration. Interval schedules must carry
// an anchor date: an anchorless interval silently behaves like daily, which
// is never what the user asked for.
func (s *Schedule) Validate() error {
	if _, err := time.Parse("15:04", s.TimeOfDay); err != nil {
		return fmt.Errorf("time of day %q is not HH:MM", s.TimeOfDay)
	}

	switch s.Frequency {
	case FreqDaily:
		return nil
	case FreqWeekly, FreqSpecificDays:
		if len(s.Days) == 0 {
			return fmt.Errorf("%s schedule has no weekdays", s.Frequency)
		}
		for _, d := range s.Days {
			if d < 1 || d > 7 {
				return fmt.Errorf("weekday %d out of range 1-7", d)
			}
		}
		return nil
	case FreqMonthly:
		if len(s.Days) == 0 {
			return fmt.Errorf("monthly schedule has no days of month")
		}
		for _, d := range s.Days {
			if d < 1 || d > 31 {
				return fmt.Errorf("day of month %d out of range 1-31", d)
			}
		}
		return nil
	case FreqInterval:
		if s.IntervalDays < 1 {
			return fmt.Errorf("interval of %d days is not positive", s.IntervalDays)
		}
		if s.AnchorDate == nil {
			return fmt.Errorf("interval schedule has no anchor date")
		}
		return nil
	default:
		return fmt.Errorf("unknown frequency %q", s.Frequency)
	}
}

var weekdayNames = map[int]string{
	1: "Mon", 2: "Tue", 3: "Wed", 4: "Thu", 5: "Fri", 6: "Sat", 7: "Sun",
}

// FrequencyDisplay returns a short human-readable description of the
// schedule's recurrence.
func (s *Schedule) FrequencyDisplay() string {
	switch s.Frequency {
	case FreqDaily:
		return "every day"
	case FreqWeekly, FreqSpecificDays:
		days := append([]int(nil), s.Days...)
		sort.Ints(days)
		if len(days) == 7 {
			return "every day"
		}
		names := make([]string, 0, len(days))
		for _, d := range days {
			names = append(names, weekdayNames[d])
		}
		return strings.Join(names, ", ")
	case FreqMonthly:
		if len(s.Days) == 0 {
			return "monthly"
		}
		days := append([]int(nil), s.Days...)
		sort.Ints(days)
		parts := make([]string, 0, len(days))
		for _, d := range days {
			parts = append(parts, fmt.Sprintf("%d", d))
		}
		return "monthly on day " + strings.Join(parts, ", ")
	case FreqInterval:
		if s.IntervalDays == 1 {
			return "every day"
		}
		if s.IntervalDays == 2 {
			return "every other day"
		}
		return fmt.Sprintf("every %d days", s.IntervalDays)
	}
	return string(s.Frequency)
}

// DueSchedule is the joined read model the evaluator works on: a schedule
// together with its medication and owner.
type DueSchedule struct {
	Schedule
	MedicationName string `json:"medication_name"`
	Dosage         string `json:"dosage"`
	PhotoID        string `json:"photo_id"`
	TelegramID     int64  `json:"telegram_id"`
	ChatID         int64  `json:"chat_id"`
	Username       string `json:"username"`
	FirstName      string `json:"first_name"`
}

// Recipient identifies where and to whom a notification goes.
func (d *DueSchedule) Recipient() Recipient {
	return Recipient{
		ChatID:     d.ChatID,
		TelegramID: d.TelegramID,
		Username:   d.Username,
		FirstName:  d.FirstName,
	}
}

// Recipient is the grouping key for batched notifications.
type Recipient struct {
	ChatID     int64
	TelegramID int64
	Username   string
	FirstName  string
}

// Mention returns the string used to address the recipient.
func (r Recipient) Mention() string {
	if r.Username != "" {
		return "@" + r.Username
	}
	if r.FirstName != "" {
		return r.FirstName
	}
	return "there"
}
