package engine

import (
	"context"
	"time"

	"github.com/arogachev/pillbot/internal/models"
)

// DefaultFollowUpDelay is how long a record may stay pending before its
// single follow-up reminder becomes due.
const DefaultFollowUpDelay = time.Hour

// FollowUpPlanner decides which pending records get their one-shot
// escalation reminder. Records are eligible once they have been pending for
// the configured delay, and never after the evening cutoff hour.
type FollowUpPlanner struct {
	ledger     *Ledger
	delay      time.Duration
	cutoffHour int
	loc        *time.Location
}

// NewFollowUpPlanner creates a planner. cutoffHour is the local hour (0-23)
// from which no more follow-ups are generated; the terminal sweep takes over
// from there.
func NewFollowUpPlanner(ledger *Ledger, delay time.Duration, cutoffHour int, loc *time.Location) *FollowUpPlanner {
	if delay <= 0 {
		delay = DefaultFollowUpDelay
	}
	return &FollowUpPlanner{ledger: ledger, delay: delay, cutoffHour: cutoffHour, loc: loc}
}

// Plan returns the pending records whose follow-up reminder is due now.
// Outside the allowed window it returns nothing: escalations must not fire
// late at night. The caller records the follow-up via Ledger.RecordFollowUp
// only after the reminder was actually delivered.
func (p *FollowUpPlanner) Plan(ctx context.Context, now time.Time) ([]*models.PendingIntake, error) {
	if now.In(p.loc).Hour() >= p.cutoffHour {
		return nil, nil
	}
	return p.ledger.PendingDueForFollowUp(ctx, p.delay, now)
}

// SweepPending returns every record still pending for the given day, for the
// unconditional end-of-day reminder. Eligibility ignores followUpCount: the
// sweep is the last chance regardless of earlier follow-up state.
func (p *FollowUpPlanner) SweepPending(ctx context.Context, day time.Time) ([]*models.PendingIntake, error) {
	return p.ledger.PendingForDate(ctx, day)
}
