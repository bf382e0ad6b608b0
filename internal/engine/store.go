package engine

import (
	"context"
	"time"

	"github.com/arogachev/pillbot/internal/models"
)

// ScheduleSource is the schedule-side store the engine consumes. Implemented
// by repository.ScheduleRepository.
type ScheduleSource interface {
	// ActiveAt returns active schedules whose time of day equals hhmm,
	// joined with medication and owner.
	ActiveAt(ctx context.Context, hhmm string) ([]*models.DueSchedule, error)

	// ActiveBetween returns active schedules whose time of day falls within
	// [from, to], both HH:MM, joined with medication and owner.
	ActiveBetween(ctx context.Context, from, to string) ([]*models.DueSchedule, error)

	// Get returns the schedule by id, or ErrNotFound.
	Get(ctx context.Context, id int64) (*models.Schedule, error)

	// UpdateAnchorDate moves the interval anchor to the given day.
	UpdateAnchorDate(ctx context.Context, id int64, anchor time.Time) (bool, error)
}

// IntakeStore is the record-side store the engine consumes. Implemented by
// repository.IntakeRepository. Insert must fail with ErrDuplicateRecord when
// a concurrent insert for the same (schedule, day) already succeeded: the
// store's uniqueness constraint is the engine's single synchronization point.
type IntakeStore interface {
	Find(ctx context.Context, scheduleID int64, day time.Time) (*models.IntakeRecord, error)
	Insert(ctx context.Context, scheduleID int64, scheduledAt time.Time) (*models.IntakeRecord, error)
	Get(ctx context.Context, id int64) (*models.IntakeRecord, error)

	// OwnerTelegramID resolves the record's ownership chain
	// (record -> schedule -> medication -> user).
	OwnerTelegramID(ctx context.Context, id int64) (int64, error)

	UpdateStatus(ctx context.Context, id int64, status models.IntakeStatus, takenAt *time.Time) (bool, error)
	UpdateFollowUp(ctx context.Context, id int64, count int, at time.Time) (bool, error)

	// PendingDueFollowUp returns pending records for the given day whose
	// scheduled time is at or before latest and which have had no follow-up.
	PendingDueFollowUp(ctx context.Context, day, latest time.Time) ([]*models.PendingIntake, error)

	// PendingForDay returns all pending records for the given day.
	PendingForDay(ctx context.Context, day time.Time) ([]*models.PendingIntake, error)
}
