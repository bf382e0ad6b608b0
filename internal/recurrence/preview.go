package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/arogachev/pillbot/internal/models"
)

// Preview returns the next n occurrence dates of the schedule on or after
// the given day. Used for schedule display only; due-now decisions go
// through IsDueOn.
func Preview(s *models.Schedule, from time.Time, n int) ([]time.Time, error) {
	opt, err := toROption(s, from)
	if err != nil {
		return nil, err
	}

	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("failed to build recurrence rule: %w", err)
	}

	// For interval schedules Dtstart is the anchor, which may be far in the
	// past; occurrences before the requested day are skipped.
	y, m, d := from.Date()
	cut := time.Date(y, m, d, 0, 0, 0, 0, from.Location())

	iterator := rule.Iterator()
	var results []time.Time
	for len(results) < n {
		next, ok := iterator()
		if !ok {
			break
		}
		if next.Before(cut) {
			continue
		}
		results = append(results, next)
	}
	return results, nil
}

var rruleWeekdays = map[int]rrule.Weekday{
	1: rrule.MO, 2: rrule.TU, 3: rrule.WE, 4: rrule.TH,
	5: rrule.FR, 6: rrule.SA, 7: rrule.SU,
}

func toROption(s *models.Schedule, from time.Time) (*rrule.ROption, error) {
	y, m, d := from.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, from.Location())

	opt := &rrule.ROption{Dtstart: start}

	switch s.Frequency {
	case models.FreqDaily:
		opt.Freq = rrule.DAILY
	case models.FreqWeekly, models.FreqSpecificDays:
		opt.Freq = rrule.WEEKLY
		for _, day := range s.Days {
			wd, ok := rruleWeekdays[day]
			if !ok {
				return nil, fmt.Errorf("weekday %d out of range 1-7", day)
			}
			opt.Byweekday = append(opt.Byweekday, wd)
		}
	case models.FreqMonthly:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = append(opt.Bymonthday, s.Days...)
	case models.FreqInterval:
		opt.Freq = rrule.DAILY
		opt.Interval = s.IntervalDays
		if s.AnchorDate != nil {
			ay, am, ad := s.AnchorDate.Date()
			opt.Dtstart = time.Date(ay, am, ad, 0, 0, 0, 0, from.Location())
		}
	default:
		return nil, fmt.Errorf("unknown frequency %q", s.Frequency)
	}

	return opt, nil
}
