package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arogachev/pillbot/internal/models"
)

func TestEnsureRecordCreatesOnce(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store, newMemSchedules())
	at := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)

	rec, created, err := ledger.EnsureRecord(context.Background(), 42, at)
	if err != nil {
		t.Fatalf("EnsureRecord() error = %v", err)
	}
	if !created {
		t.Fatal("first EnsureRecord() should create the record")
	}
	if rec.Status != models.IntakePending {
		t.Errorf("new record status = %q, want pending", rec.Status)
	}

	again, created, err := ledger.EnsureRecord(context.Background(), 42, at.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("EnsureRecord() error = %v", err)
	}
	if created {
		t.Error("second EnsureRecord() on the same day should not create")
	}
	if again.ID != rec.ID {
		t.Errorf("second EnsureRecord() returned record %d, want %d", again.ID, rec.ID)
	}
}

// racingStore simulates losing the insert race: the initial existence check
// sees nothing, the insert hits the uniqueness constraint, and the re-read
// finds the concurrent winner.
type racingStore struct {
	*memStore
	finds int
}

func (r *racingStore) Find(ctx context.Context, scheduleID int64, day time.Time) (*models.IntakeRecord, error) {
	r.finds++
	if r.finds == 1 {
		return nil, nil
	}
	return r.memStore.Find(ctx, scheduleID, day)
}

func (r *racingStore) Insert(ctx context.Context, scheduleID int64, scheduledAt time.Time) (*models.IntakeRecord, error) {
	return nil, ErrDuplicateRecord
}

func TestEnsureRecordRecoversFromLostInsertRace(t *testing.T) {
	store := newMemStore()
	at := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	winner, err := store.Insert(context.Background(), 42, at)
	if err != nil {
		t.Fatalf("seeding winner row: %v", err)
	}

	ledger := NewLedger(&racingStore{memStore: store}, newMemSchedules())
	rec, created, err := ledger.EnsureRecord(context.Background(), 42, at)
	if err != nil {
		t.Fatalf("EnsureRecord() error = %v", err)
	}
	if created {
		t.Error("losing the race must not report created")
	}
	if rec.ID != winner.ID {
		t.Errorf("EnsureRecord() returned record %d, want the winner %d", rec.ID, winner.ID)
	}
}

func seedPending(t *testing.T, store *memStore, scheduleID, ownerID int64, at time.Time) *models.IntakeRecord {
	t.Helper()
	store.owner[scheduleID] = ownerID
	rec, err := store.Insert(context.Background(), scheduleID, at)
	if err != nil {
		t.Fatalf("seeding record: %v", err)
	}
	return rec
}

func TestConfirmTaken(t *testing.T) {
	store := newMemStore()
	scheds := newMemSchedules()
	scheds.add(&models.DueSchedule{Schedule: models.Schedule{
		ID: 1, TimeOfDay: "08:00", Frequency: models.FreqDaily, Active: true,
	}})
	ledger := NewLedger(store, scheds)

	at := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	rec := seedPending(t, store, 1, 777, at)

	now := at.Add(10 * time.Minute)
	got, err := ledger.Confirm(context.Background(), rec.ID, models.IntakeTaken, 777, now)
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if got.Status != models.IntakeTaken {
		t.Errorf("status = %q, want taken", got.Status)
	}
	if got.TakenAt == nil || !got.TakenAt.Equal(now) {
		t.Errorf("takenAt = %v, want %v", got.TakenAt, now)
	}
}

func TestConfirmTakenMovesIntervalAnchor(t *testing.T) {
	store := newMemStore()
	scheds := newMemSchedules()
	anchor := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	scheds.add(&models.DueSchedule{Schedule: models.Schedule{
		ID: 1, TimeOfDay: "08:00", Frequency: models.FreqInterval,
		IntervalDays: 3, AnchorDate: &anchor, Active: true,
	}})
	ledger := NewLedger(store, scheds)

	// Due on the 13th, confirmed a day late on the 14th: the next dose
	// counts from the day actually taken.
	rec := seedPending(t, store, 1, 777, time.Date(2024, 3, 13, 8, 0, 0, 0, time.UTC))
	now := time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)
	if _, err := ledger.Confirm(context.Background(), rec.ID, models.IntakeTaken, 777, now); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}

	moved := scheds.scheds[1].AnchorDate
	want := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	if moved == nil || !moved.Equal(want) {
		t.Errorf("anchor = %v, want %v", moved, want)
	}
}

func TestConfirmMissedKeepsIntervalAnchor(t *testing.T) {
	store := newMemStore()
	scheds := newMemSchedules()
	anchor := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	scheds.add(&models.DueSchedule{Schedule: models.Schedule{
		ID: 1, TimeOfDay: "08:00", Frequency: models.FreqInterval,
		IntervalDays: 3, AnchorDate: &anchor, Active: true,
	}})
	ledger := NewLedger(store, scheds)

	rec := seedPending(t, store, 1, 777, time.Date(2024, 3, 13, 8, 0, 0, 0, time.UTC))
	now := time.Date(2024, 3, 13, 21, 0, 0, 0, time.UTC)
	if _, err := ledger.Confirm(context.Background(), rec.ID, models.IntakeMissed, 777, now); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}

	if !scheds.scheds[1].AnchorDate.Equal(anchor) {
		t.Errorf("anchor moved to %v on a missed dose", scheds.scheds[1].AnchorDate)
	}
}

func TestConfirmErrors(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store, newMemSchedules())
	at := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	rec := seedPending(t, store, 1, 777, at)

	tests := []struct {
		name     string
		recordID int64
		outcome  models.IntakeStatus
		actor    int64
		wantErr  error
	}{
		{"unknown record", 999, models.IntakeTaken, 777, ErrNotFound},
		{"wrong actor", rec.ID, models.IntakeTaken, 555, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ledger.Confirm(context.Background(), tt.recordID, tt.outcome, tt.actor, at)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Confirm() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := ledger.Confirm(context.Background(), rec.ID, models.IntakePending, 777, at); err == nil {
		t.Error("Confirm() with a non-terminal outcome should fail")
	}
	if rec.Status != models.IntakePending {
		t.Errorf("record status changed to %q by rejected confirmations", rec.Status)
	}
}

func TestConfirmAlreadyFinalized(t *testing.T) {
	store := newMemStore()
	scheds := newMemSchedules()
	scheds.addDaily(1)
	ledger := NewLedger(store, scheds)
	at := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	rec := seedPending(t, store, 1, 777, at)

	first := at.Add(5 * time.Minute)
	if _, err := ledger.Confirm(context.Background(), rec.ID, models.IntakeTaken, 777, first); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}

	// Replayed callback: reported as already finalized, nothing overwritten.
	got, err := ledger.Confirm(context.Background(), rec.ID, models.IntakeMissed, 777, at.Add(time.Hour))
	if !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("Confirm() error = %v, want ErrAlreadyFinalized", err)
	}
	if got == nil || got.Status != models.IntakeTaken {
		t.Errorf("replay returned %+v, want the original taken record", got)
	}
	if got.TakenAt == nil || !got.TakenAt.Equal(first) {
		t.Errorf("takenAt = %v, want the original %v", got.TakenAt, first)
	}
}

func TestConfirmAllowedOnEscalated(t *testing.T) {
	store := newMemStore()
	scheds := newMemSchedules()
	scheds.addDaily(1)
	ledger := NewLedger(store, scheds)
	at := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	rec := seedPending(t, store, 1, 777, at)

	if err := ledger.MarkEscalated(context.Background(), rec.ID); err != nil {
		t.Fatalf("MarkEscalated() error = %v", err)
	}
	got, err := ledger.Confirm(context.Background(), rec.ID, models.IntakeTaken, 777, at.Add(14*time.Hour))
	if err != nil {
		t.Fatalf("Confirm() on escalated record error = %v", err)
	}
	if got.Status != models.IntakeTaken {
		t.Errorf("status = %q, want taken", got.Status)
	}
}

func TestRecordFollowUp(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store, newMemSchedules())
	at := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	rec := seedPending(t, store, 1, 777, at)

	now := at.Add(61 * time.Minute)
	if err := ledger.RecordFollowUp(context.Background(), rec.ID, now); err != nil {
		t.Fatalf("RecordFollowUp() error = %v", err)
	}
	if rec.FollowUpCount != 1 {
		t.Errorf("followUpCount = %d, want 1", rec.FollowUpCount)
	}
	if rec.LastFollowUpAt == nil || !rec.LastFollowUpAt.Equal(now) {
		t.Errorf("lastFollowUpAt = %v, want %v", rec.LastFollowUpAt, now)
	}
}
