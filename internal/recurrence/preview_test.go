package recurrence

import (
	"testing"
	"time"

	"github.com/arogachev/pillbot/internal/models"
)

func TestPreviewDaily(t *testing.T) {
	sched := models.Schedule{Frequency: models.FreqDaily}
	from := time.Date(2024, time.January, 1, 10, 30, 0, 0, time.UTC)

	got, err := Preview(&sched, from, 3)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	want := []time.Time{
		date(2024, time.January, 1),
		date(2024, time.January, 2),
		date(2024, time.January, 3),
	}
	assertDates(t, got, want)
}

func TestPreviewWeekends(t *testing.T) {
	sched := models.Schedule{Frequency: models.FreqSpecificDays, Days: []int{6, 7}}
	from := date(2024, time.January, 1) // Monday

	got, err := Preview(&sched, from, 3)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	want := []time.Time{
		date(2024, time.January, 6),
		date(2024, time.January, 7),
		date(2024, time.January, 13),
	}
	assertDates(t, got, want)
}

func TestPreviewIntervalCountsFromAnchor(t *testing.T) {
	anchor := date(2024, time.January, 1)
	sched := models.Schedule{Frequency: models.FreqInterval, IntervalDays: 3, AnchorDate: &anchor}

	// Asking from the 6th: the Jan 1 and Jan 4 occurrences are in the past,
	// the phase from the anchor is preserved.
	got, err := Preview(&sched, date(2024, time.January, 6), 3)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	want := []time.Time{
		date(2024, time.January, 7),
		date(2024, time.January, 10),
		date(2024, time.January, 13),
	}
	assertDates(t, got, want)
}

func TestPreviewUnknownFrequency(t *testing.T) {
	sched := models.Schedule{Frequency: "hourly"}
	if _, err := Preview(&sched, date(2024, time.January, 1), 3); err == nil {
		t.Error("Preview() should reject an unknown frequency")
	}
}

func assertDates(t *testing.T, got, want []time.Time) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d dates, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		gy, gm, gd := got[i].Date()
		wy, wm, wd := want[i].Date()
		if gy != wy || gm != wm || gd != wd {
			t.Errorf("date %d = %v, want %v", i, got[i], want[i])
		}
	}
}
