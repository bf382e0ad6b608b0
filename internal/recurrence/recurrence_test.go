package recurrence

import (
	"testing"
	"time"

	"github.com/arogachev/pillbot/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestIsDueOn(t *testing.T) {
	anchor := date(2024, time.January, 1) // a Monday

	tests := []struct {
		name  string
		sched models.Schedule
		day   time.Time
		want  bool
	}{
		{
			name:  "daily is always due",
			sched: models.Schedule{Frequency: models.FreqDaily},
			day:   date(2024, time.March, 15),
			want:  true,
		},
		{
			name:  "weekly on a selected weekday",
			sched: models.Schedule{Frequency: models.FreqWeekly, Days: []int{1, 3, 5}},
			day:   date(2024, time.January, 3), // Wednesday
			want:  true,
		},
		{
			name:  "weekly on an off day",
			sched: models.Schedule{Frequency: models.FreqWeekly, Days: []int{1, 3, 5}},
			day:   date(2024, time.January, 2), // Tuesday
			want:  false,
		},
		{
			name:  "sunday maps to iso weekday 7",
			sched: models.Schedule{Frequency: models.FreqSpecificDays, Days: []int{7}},
			day:   date(2024, time.January, 7), // Sunday
			want:  true,
		},
		{
			name:  "monthly on the matching day",
			sched: models.Schedule{Frequency: models.FreqMonthly, Days: []int{31}},
			day:   date(2024, time.January, 31),
			want:  true,
		},
		{
			name:  "monthly day 31 never matches february",
			sched: models.Schedule{Frequency: models.FreqMonthly, Days: []int{31}},
			day:   date(2024, time.February, 29),
			want:  false,
		},
		{
			name:  "interval due on the anchor day",
			sched: models.Schedule{Frequency: models.FreqInterval, IntervalDays: 3, AnchorDate: &anchor},
			day:   date(2024, time.January, 1),
			want:  true,
		},
		{
			name:  "interval not due the next day",
			sched: models.Schedule{Frequency: models.FreqInterval, IntervalDays: 3, AnchorDate: &anchor},
			day:   date(2024, time.January, 2),
			want:  false,
		},
		{
			name:  "interval due a full period later",
			sched: models.Schedule{Frequency: models.FreqInterval, IntervalDays: 3, AnchorDate: &anchor},
			day:   date(2024, time.January, 4),
			want:  true,
		},
		{
			name:  "interval not due before the anchor",
			sched: models.Schedule{Frequency: models.FreqInterval, IntervalDays: 3, AnchorDate: &anchor},
			day:   date(2023, time.December, 29),
			want:  false,
		},
		{
			name:  "anchorless interval behaves like daily",
			sched: models.Schedule{Frequency: models.FreqInterval, IntervalDays: 3},
			day:   date(2024, time.January, 2),
			want:  true,
		},
		{
			name:  "interval spanning a month boundary",
			sched: models.Schedule{Frequency: models.FreqInterval, IntervalDays: 5, AnchorDate: &anchor},
			day:   date(2024, time.January, 31), // 30 days after the anchor
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDueOn(&tt.sched, tt.day); got != tt.want {
				t.Errorf("IsDueOn() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsDueOnIgnoresTimeOfDay(t *testing.T) {
	anchor := date(2024, time.January, 1)
	sched := models.Schedule{Frequency: models.FreqInterval, IntervalDays: 2, AnchorDate: &anchor}

	// Late on a due day still counts as that day.
	day := time.Date(2024, time.January, 3, 23, 59, 0, 0, time.UTC)
	if !IsDueOn(&sched, day) {
		t.Error("IsDueOn() should only consider the date part")
	}
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name string
		a, b time.Time
		want int
	}{
		{"same day", date(2024, time.March, 15), date(2024, time.March, 15), 0},
		{"next day", date(2024, time.March, 15), date(2024, time.March, 16), 1},
		{"reversed is negative", date(2024, time.March, 16), date(2024, time.March, 15), -1},
		{"across leap day", date(2024, time.February, 28), date(2024, time.March, 1), 2},
		{
			"time of day does not skew the count",
			time.Date(2024, time.March, 15, 23, 0, 0, 0, time.UTC),
			time.Date(2024, time.March, 16, 1, 0, 0, 0, time.UTC),
			1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := daysBetween(tt.a, tt.b); got != tt.want {
				t.Errorf("daysBetween() = %d, want %d", got, tt.want)
			}
		})
	}
}
