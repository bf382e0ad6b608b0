package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arogachev/pillbot/internal/database"
	"github.com/arogachev/pillbot/internal/engine"
	"github.com/arogachev/pillbot/internal/models"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint hit.
const uniqueViolation = "23505"

type IntakeRepository struct {
	db *database.DB
}

func NewIntakeRepository(db *database.DB) *IntakeRepository {
	return &IntakeRepository{db: db}
}

const intakeColumns = `id, schedule_id, scheduled_at, status, taken_at, follow_up_count, last_follow_up_at`

// Find returns the record for (scheduleID, date of day), or nil when none
// exists yet.
func (r *IntakeRepository) Find(ctx context.Context, scheduleID int64, day time.Time) (*models.IntakeRecord, error) {
	rec := &models.IntakeRecord{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT `+intakeColumns+` FROM intake_logs
		 WHERE schedule_id = $1 AND scheduled_on = $2::date`,
		scheduleID, day.Format("2006-01-02"),
	).Scan(&rec.ID, &rec.ScheduleID, &rec.ScheduledAt, &rec.Status, &rec.TakenAt,
		&rec.FollowUpCount, &rec.LastFollowUpAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Insert creates a pending record for the occurrence. The UNIQUE
// (schedule_id, scheduled_on) constraint turns a concurrent duplicate into
// engine.ErrDuplicateRecord, which the ledger recovers as "already exists".
func (r *IntakeRepository) Insert(ctx context.Context, scheduleID int64, scheduledAt time.Time) (*models.IntakeRecord, error) {
	rec := &models.IntakeRecord{
		ScheduleID:  scheduleID,
		ScheduledAt: scheduledAt,
		Status:      models.IntakePending,
	}
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO intake_logs (schedule_id, scheduled_at, scheduled_on, status)
		 VALUES ($1, $2, $3::date, 'pending')
		 RETURNING id`,
		scheduleID, scheduledAt, scheduledAt.Format("2006-01-02"),
	).Scan(&rec.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, engine.ErrDuplicateRecord
		}
		return nil, err
	}
	return rec, nil
}

func (r *IntakeRepository) Get(ctx context.Context, id int64) (*models.IntakeRecord, error) {
	rec := &models.IntakeRecord{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT `+intakeColumns+` FROM intake_logs WHERE id = $1`,
		id,
	).Scan(&rec.ID, &rec.ScheduleID, &rec.ScheduledAt, &rec.Status, &rec.TakenAt,
		&rec.FollowUpCount, &rec.LastFollowUpAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// OwnerTelegramID walks the record -> schedule -> medication -> user chain.
func (r *IntakeRepository) OwnerTelegramID(ctx context.Context, id int64) (int64, error) {
	var telegramID int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT u.telegram_id
		 FROM intake_logs il
		 JOIN schedules s ON il.schedule_id = s.id
		 JOIN medications m ON s.medication_id = m.id
		 JOIN users u ON m.user_id = u.id
		 WHERE il.id = $1`,
		id,
	).Scan(&telegramID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, engine.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return telegramID, nil
}

func (r *IntakeRepository) UpdateStatus(ctx context.Context, id int64, status models.IntakeStatus, takenAt *time.Time) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE intake_logs SET status = $1, taken_at = $2 WHERE id = $3`,
		status, takenAt, id,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *IntakeRepository) UpdateFollowUp(ctx context.Context, id int64, count int, at time.Time) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE intake_logs SET follow_up_count = $1, last_follow_up_at = $2 WHERE id = $3`,
		count, at, id,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const pendingColumns = `
	il.id, il.schedule_id, il.scheduled_at, il.status, il.taken_at, il.follow_up_count, il.last_follow_up_at,
	s.id, s.time_of_day, s.frequency,
	m.name, m.dosage, m.photo_id,
	u.telegram_id, u.chat_id, u.username, u.first_name`

const pendingJoins = `
	FROM intake_logs il
	JOIN schedules s ON il.schedule_id = s.id
	JOIN medications m ON s.medication_id = m.id
	JOIN users u ON m.user_id = u.id`

// PendingDueFollowUp returns pending records for the given day scheduled at
// or before latest that have had no follow-up yet.
func (r *IntakeRepository) PendingDueFollowUp(ctx context.Context, day, latest time.Time) ([]*models.PendingIntake, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT`+pendingColumns+pendingJoins+`
		 WHERE il.status = 'pending'
		   AND il.scheduled_on = $1::date
		   AND il.scheduled_at <= $2
		   AND il.follow_up_count = 0
		 ORDER BY u.chat_id, u.telegram_id, il.scheduled_at`,
		day.Format("2006-01-02"), latest,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPendingIntakes(rows)
}

// PendingForDay returns every record still pending for the given day,
// ordered by recipient so grouped sweep messages come out deterministic.
func (r *IntakeRepository) PendingForDay(ctx context.Context, day time.Time) ([]*models.PendingIntake, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT`+pendingColumns+pendingJoins+`
		 WHERE il.status = 'pending' AND il.scheduled_on = $1::date
		 ORDER BY u.chat_id, u.telegram_id, il.scheduled_at`,
		day.Format("2006-01-02"),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPendingIntakes(rows)
}

func scanPendingIntakes(rows pgx.Rows) ([]*models.PendingIntake, error) {
	var items []*models.PendingIntake
	for rows.Next() {
		p := &models.PendingIntake{}
		if err := rows.Scan(&p.Record.ID, &p.Record.ScheduleID, &p.Record.ScheduledAt,
			&p.Record.Status, &p.Record.TakenAt, &p.Record.FollowUpCount, &p.Record.LastFollowUpAt,
			&p.ScheduleID, &p.TimeOfDay, &p.Frequency,
			&p.MedicationName, &p.Dosage, &p.PhotoID,
			&p.TelegramID, &p.ChatID, &p.Username, &p.FirstName); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
