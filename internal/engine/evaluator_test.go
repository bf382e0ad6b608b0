package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arogachev/pillbot/internal/models"
)

func dueSchedule(id int64, hhmm string, chatID int64) *models.DueSchedule {
	return &models.DueSchedule{
		Schedule: models.Schedule{
			ID: id, TimeOfDay: hhmm, Frequency: models.FreqDaily,
			IntervalDays: 1, Active: true,
		},
		MedicationName: "Aspirin",
		Dosage:         "500mg",
		TelegramID:     chatID,
		ChatID:         chatID,
	}
}

func TestDueAtMinuteEmitsEachOccurrenceOnce(t *testing.T) {
	store := newMemStore()
	scheds := newMemSchedules()
	scheds.add(dueSchedule(1, "08:00", 100))
	ev := NewEvaluator(scheds, NewLedger(store, scheds))

	now := time.Date(2024, 3, 15, 8, 0, 30, 0, time.UTC)
	due, err := ev.DueAtMinute(context.Background(), now)
	if err != nil {
		t.Fatalf("DueAtMinute() error = %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("first tick emitted %d occurrences, want 1", len(due))
	}
	if due[0].Record.Status != models.IntakePending {
		t.Errorf("emitted record status = %q, want pending", due[0].Record.Status)
	}

	// A redundant tick in the same minute finds the record and stays silent.
	due, err = ev.DueAtMinute(context.Background(), now.Add(10*time.Second))
	if err != nil {
		t.Fatalf("DueAtMinute() error = %v", err)
	}
	if len(due) != 0 {
		t.Errorf("second tick emitted %d occurrences, want 0", len(due))
	}
}

func TestDueAtMinuteHonorsRecurrence(t *testing.T) {
	store := newMemStore()
	scheds := newMemSchedules()
	d := dueSchedule(1, "08:00", 100)
	d.Frequency = models.FreqSpecificDays
	d.Days = []int{6, 7} // weekends only
	scheds.add(d)
	ev := NewEvaluator(scheds, NewLedger(store, scheds))

	friday := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	due, err := ev.DueAtMinute(context.Background(), friday)
	if err != nil {
		t.Fatalf("DueAtMinute() error = %v", err)
	}
	if len(due) != 0 {
		t.Errorf("friday tick emitted %d occurrences for a weekend schedule", len(due))
	}
	if len(store.recs) != 0 {
		t.Errorf("%d records created for an off day, want 0", len(store.recs))
	}

	saturday := friday.AddDate(0, 0, 1)
	due, err = ev.DueAtMinute(context.Background(), saturday)
	if err != nil {
		t.Fatalf("DueAtMinute() error = %v", err)
	}
	if len(due) != 1 {
		t.Errorf("saturday tick emitted %d occurrences, want 1", len(due))
	}
}

func TestDueAtMinuteReturnsPartialResultOnStoreFailure(t *testing.T) {
	store := newMemStore()
	store.insertErr = errors.New("connection reset")
	store.insertsBeforeErr = 1

	scheds := newMemSchedules()
	scheds.add(dueSchedule(1, "08:00", 100))
	scheds.add(dueSchedule(2, "08:00", 200))
	ev := NewEvaluator(scheds, NewLedger(store, scheds))

	now := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	due, err := ev.DueAtMinute(context.Background(), now)
	if err == nil {
		t.Fatal("DueAtMinute() should surface the store failure")
	}
	if len(due) != 1 {
		t.Fatalf("got %d occurrences alongside the error, want the 1 collected before it", len(due))
	}

	// The failed schedule got no record, so the next tick picks it up.
	store.insertErr = nil
	due, err = ev.DueAtMinute(context.Background(), now.Add(15*time.Second))
	if err != nil {
		t.Fatalf("retry tick error = %v", err)
	}
	if len(due) != 1 || due[0].Schedule.ID != 2 {
		t.Errorf("retry tick emitted %v, want the previously failed schedule", due)
	}
}

func TestDueBetween(t *testing.T) {
	store := newMemStore()
	scheds := newMemSchedules()
	scheds.add(dueSchedule(1, "07:30", 100))
	scheds.add(dueSchedule(2, "11:00", 100))
	scheds.add(dueSchedule(3, "15:00", 100))
	ev := NewEvaluator(scheds, NewLedger(store, scheds))

	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	due, err := ev.DueBetween(context.Background(), "00:00", "12:00", now)
	if err != nil {
		t.Fatalf("DueBetween() error = %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("got %d occurrences, want 2 within the window", len(due))
	}
}
