// Package recurrence decides on which calendar days a schedule is due. It is
// pure: no state, no I/O, and callable for arbitrary past or future dates.
package recurrence

import (
	"time"

	"github.com/arogachev/pillbot/internal/models"
)

// IsDueOn reports whether the schedule has an occurrence on the given
// calendar day. Only the date part of day is considered.
func IsDueOn(s *models.Schedule, day time.Time) bool {
	switch s.Frequency {
	case models.FreqDaily:
		return true
	case models.FreqWeekly, models.FreqSpecificDays:
		return containsDay(s.Days, isoWeekday(day))
	case models.FreqMonthly:
		// A month shorter than the selected day simply never matches that
		// month. No clamping to the last day.
		return containsDay(s.Days, day.Day())
	case models.FreqInterval:
		if s.AnchorDate == nil {
			// Legacy rows without an anchor behave like daily. New schedules
			// are rejected by Schedule.Validate before they get here.
			return true
		}
		passed := daysBetween(*s.AnchorDate, day)
		return passed >= 0 && passed%s.IntervalDays == 0
	}
	return false
}

// isoWeekday returns 1 for Monday through 7 for Sunday.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func containsDay(days []int, d int) bool {
	for _, v := range days {
		if v == d {
			return true
		}
	}
	return false
}

// daysBetween returns the whole calendar days from a to b, negative when b
// precedes a. Both arguments are truncated to their date part, so DST shifts
// and time-of-day differences do not skew the count.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	au := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	bu := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}
