// Package engine holds the recurrence-and-intake core: the intake ledger,
// the due-now evaluator, the follow-up planner and the notification grouper.
// Every operation takes the current time explicitly so the whole engine runs
// deterministically under test.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arogachev/pillbot/internal/models"
)

// Ledger owns the lifecycle of intake records: creation with the
// one-per-(schedule, day) guarantee, confirmation, and follow-up counting.
type Ledger struct {
	records   IntakeStore
	schedules ScheduleSource
}

// NewLedger creates a Ledger on top of the given stores.
func NewLedger(records IntakeStore, schedules ScheduleSource) *Ledger {
	return &Ledger{records: records, schedules: schedules}
}

// EnsureRecord returns the intake record for (scheduleID, date of
// scheduledAt), creating it as pending if absent. The bool reports whether
// the record was newly created. Safe to call any number of times for the
// same occurrence: a concurrent insert losing the race on the store's
// uniqueness constraint is recovered by re-reading the winner's row.
func (l *Ledger) EnsureRecord(ctx context.Context, scheduleID int64, scheduledAt time.Time) (*models.IntakeRecord, bool, error) {
	rec, err := l.records.Find(ctx, scheduleID, scheduledAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up intake record: %w", err)
	}
	if rec != nil {
		return rec, false, nil
	}

	rec, err = l.records.Insert(ctx, scheduleID, scheduledAt)
	if errors.Is(err, ErrDuplicateRecord) {
		rec, err = l.records.Find(ctx, scheduleID, scheduledAt)
		if err != nil {
			return nil, false, fmt.Errorf("failed to re-read intake record after duplicate insert: %w", err)
		}
		if rec == nil {
			return nil, false, fmt.Errorf("intake record for schedule %d vanished after duplicate insert", scheduleID)
		}
		return rec, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create intake record: %w", err)
	}
	return rec, true, nil
}

// Confirm finalizes a record as taken or missed on behalf of actorTelegramID.
// Returns ErrNotFound for an unknown record, ErrForbidden when the actor does
// not own it, and ErrAlreadyFinalized when it was confirmed before — safe to
// replay for at-least-once callback delivery.
//
// Confirming an interval schedule as taken moves its anchor date to the day
// of confirmation, so the next dose is counted from the day actually taken.
func (l *Ledger) Confirm(ctx context.Context, recordID int64, outcome models.IntakeStatus, actorTelegramID int64, now time.Time) (*models.IntakeRecord, error) {
	if outcome != models.IntakeTaken && outcome != models.IntakeMissed {
		return nil, fmt.Errorf("cannot confirm intake as %q", outcome)
	}

	rec, err := l.records.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}

	owner, err := l.records.OwnerTelegramID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if owner != actorTelegramID {
		return nil, ErrForbidden
	}

	if rec.Status.Final() {
		return rec, ErrAlreadyFinalized
	}

	var takenAt *time.Time
	if outcome == models.IntakeTaken {
		takenAt = &now
	}
	if _, err := l.records.UpdateStatus(ctx, recordID, outcome, takenAt); err != nil {
		return nil, fmt.Errorf("failed to update intake status: %w", err)
	}
	rec.Status = outcome
	rec.TakenAt = takenAt

	if outcome == models.IntakeTaken {
		if err := l.resetIntervalAnchor(ctx, rec.ScheduleID, now); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (l *Ledger) resetIntervalAnchor(ctx context.Context, scheduleID int64, now time.Time) error {
	sched, err := l.schedules.Get(ctx, scheduleID)
	if err != nil {
		return err
	}
	if sched.Frequency != models.FreqInterval {
		return nil
	}
	y, m, d := now.Date()
	anchor := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	if _, err := l.schedules.UpdateAnchorDate(ctx, scheduleID, anchor); err != nil {
		return fmt.Errorf("failed to move interval anchor: %w", err)
	}
	return nil
}

// RecordFollowUp marks that the one-shot follow-up reminder for the record
// was delivered. Call it after delivery succeeded, not before: a failed send
// must not consume the escalation.
func (l *Ledger) RecordFollowUp(ctx context.Context, recordID int64, now time.Time) error {
	rec, err := l.records.Get(ctx, recordID)
	if err != nil {
		return err
	}
	if _, err := l.records.UpdateFollowUp(ctx, recordID, rec.FollowUpCount+1, now); err != nil {
		return fmt.Errorf("failed to record follow-up: %w", err)
	}
	return nil
}

// PendingDueForFollowUp returns today's pending records scheduled at least
// elapsed ago that have not had their follow-up yet.
func (l *Ledger) PendingDueForFollowUp(ctx context.Context, elapsed time.Duration, now time.Time) ([]*models.PendingIntake, error) {
	return l.records.PendingDueFollowUp(ctx, now, now.Add(-elapsed))
}

// PendingForDate returns all records still pending for the given day. Used
// by the terminal sweep.
func (l *Ledger) PendingForDate(ctx context.Context, day time.Time) ([]*models.PendingIntake, error) {
	return l.records.PendingForDay(ctx, day)
}

// MarkEscalated moves a record from pending to escalated after the terminal
// sweep notified its owner. Escalated records can still be confirmed.
func (l *Ledger) MarkEscalated(ctx context.Context, recordID int64) error {
	if _, err := l.records.UpdateStatus(ctx, recordID, models.IntakeEscalated, nil); err != nil {
		return fmt.Errorf("failed to mark record escalated: %w", err)
	}
	return nil
}
