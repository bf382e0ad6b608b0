package engine

import (
	"context"
	"time"

	"github.com/arogachev/pillbot/internal/models"
	"github.com/arogachev/pillbot/internal/recurrence"
)

// DueOccurrence is one freshly created intake record ready for notification.
type DueOccurrence struct {
	Record   *models.IntakeRecord
	Schedule *models.DueSchedule
}

// Recipient identifies where and to whom the notification goes.
func (d DueOccurrence) Recipient() models.Recipient {
	return d.Schedule.Recipient()
}

// Evaluator selects schedules that are due at the current instant and turns
// them into intake records through the ledger. Because only newly created
// records are emitted, the per-minute tick is safe to run redundantly: a
// second tick in the same minute finds the records already present and emits
// nothing.
type Evaluator struct {
	schedules ScheduleSource
	ledger    *Ledger
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(schedules ScheduleSource, ledger *Ledger) *Evaluator {
	return &Evaluator{schedules: schedules, ledger: ledger}
}

// DueAtMinute returns the occurrences becoming due at the current minute:
// active schedules whose time of day equals HH:MM of now and whose
// recurrence matches today.
//
// On a store failure the occurrences collected so far are returned together
// with the error, so the caller can deliver what it has and retry the rest
// on the next tick. A failed record creation is never treated as "not due".
func (e *Evaluator) DueAtMinute(ctx context.Context, now time.Time) ([]DueOccurrence, error) {
	hhmm := now.Format("15:04")
	scheds, err := e.schedules.ActiveAt(ctx, hhmm)
	if err != nil {
		return nil, err
	}
	return e.collect(ctx, scheds, now)
}

// DueBetween returns the occurrences due today with a time of day within
// [from, to], both HH:MM inclusive. Used for coarse batch windows such as
// "everything due before noon".
func (e *Evaluator) DueBetween(ctx context.Context, from, to string, now time.Time) ([]DueOccurrence, error) {
	scheds, err := e.schedules.ActiveBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return e.collect(ctx, scheds, now)
}

func (e *Evaluator) collect(ctx context.Context, scheds []*models.DueSchedule, now time.Time) ([]DueOccurrence, error) {
	var due []DueOccurrence
	for _, s := range scheds {
		if !recurrence.IsDueOn(&s.Schedule, now) {
			continue
		}
		rec, created, err := e.ledger.EnsureRecord(ctx, s.ID, now)
		if err != nil {
			return due, err
		}
		if !created {
			// Record already exists for today: an earlier tick (or an
			// overlapping run) owns the notification.
			continue
		}
		due = append(due, DueOccurrence{Record: rec, Schedule: s})
	}
	return due, nil
}
