package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/arogachev/pillbot/internal/database"
	"github.com/arogachev/pillbot/internal/engine"
	"github.com/arogachev/pillbot/internal/models"
)

type ScheduleRepository struct {
	db *database.DB
}

func NewScheduleRepository(db *database.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) Create(ctx context.Context, s *models.Schedule) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO schedules (medication_id, time_of_day, frequency, days, interval_days, anchor_date, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		s.MedicationID, s.TimeOfDay, s.Frequency, toInt32s(s.Days), s.IntervalDays, dateArg(s.AnchorDate), s.Active,
	).Scan(&s.ID)
}

func (r *ScheduleRepository) Get(ctx context.Context, id int64) (*models.Schedule, error) {
	s := &models.Schedule{}
	var days []int32
	var anchor *time.Time
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, medication_id, time_of_day, frequency, days, interval_days, anchor_date, is_active
		 FROM schedules WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.MedicationID, &s.TimeOfDay, &s.Frequency, &days, &s.IntervalDays, &anchor, &s.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Days = toInts(days)
	s.AnchorDate = anchor
	return s, nil
}

func (r *ScheduleRepository) GetByMedicationID(ctx context.Context, medicationID int64) ([]*models.Schedule, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, medication_id, time_of_day, frequency, days, interval_days, anchor_date, is_active
		 FROM schedules WHERE medication_id = $1 AND is_active ORDER BY time_of_day`,
		medicationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scheds []*models.Schedule
	for rows.Next() {
		s := &models.Schedule{}
		var days []int32
		if err := rows.Scan(&s.ID, &s.MedicationID, &s.TimeOfDay, &s.Frequency, &days,
			&s.IntervalDays, &s.AnchorDate, &s.Active); err != nil {
			return nil, err
		}
		s.Days = toInts(days)
		scheds = append(scheds, s)
	}
	return scheds, rows.Err()
}

func (r *ScheduleRepository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateAnchorDate moves the interval anchor; the ledger calls this when an
// interval dose is confirmed as taken.
func (r *ScheduleRepository) UpdateAnchorDate(ctx context.Context, id int64, anchor time.Time) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE schedules SET anchor_date = $1::date WHERE id = $2`,
		anchor.Format("2006-01-02"), id,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const dueScheduleColumns = `
	s.id, s.medication_id, s.time_of_day, s.frequency, s.days, s.interval_days, s.anchor_date, s.is_active,
	m.name, m.dosage, m.photo_id,
	u.telegram_id, u.chat_id, u.username, u.first_name`

const dueScheduleJoins = `
	FROM schedules s
	JOIN medications m ON s.medication_id = m.id
	JOIN users u ON m.user_id = u.id`

// ActiveAt returns active schedules firing exactly at hhmm, joined with
// medication and owner. Recurrence filtering happens in the engine.
func (r *ScheduleRepository) ActiveAt(ctx context.Context, hhmm string) ([]*models.DueSchedule, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT`+dueScheduleColumns+dueScheduleJoins+`
		 WHERE s.time_of_day = $1 AND s.is_active`,
		hhmm,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDueSchedules(rows)
}

// ActiveBetween returns active schedules with a time of day within
// [from, to] inclusive, ordered by time.
func (r *ScheduleRepository) ActiveBetween(ctx context.Context, from, to string) ([]*models.DueSchedule, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT`+dueScheduleColumns+dueScheduleJoins+`
		 WHERE s.time_of_day >= $1 AND s.time_of_day <= $2 AND s.is_active
		 ORDER BY s.time_of_day`,
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDueSchedules(rows)
}

func scanDueSchedules(rows pgx.Rows) ([]*models.DueSchedule, error) {
	var scheds []*models.DueSchedule
	for rows.Next() {
		s := &models.DueSchedule{}
		var days []int32
		if err := rows.Scan(&s.ID, &s.MedicationID, &s.TimeOfDay, &s.Frequency, &days,
			&s.IntervalDays, &s.AnchorDate, &s.Active,
			&s.MedicationName, &s.Dosage, &s.PhotoID,
			&s.TelegramID, &s.ChatID, &s.Username, &s.FirstName); err != nil {
			return nil, err
		}
		s.Days = toInts(days)
		scheds = append(scheds, s)
	}
	return scheds, rows.Err()
}

// TodayItem is one row of a user's daily plan: a schedule with today's
// intake status, when a record exists.
type TodayItem struct {
	models.Schedule
	MedicationName string
	Dosage         string
	Status         *models.IntakeStatus
	TakenAt        *time.Time
}

// ListForUserWithStatus returns a user's active schedules left-joined with
// today's intake records, ordered by time of day. The caller filters by
// recurrence to keep only today's occurrences.
func (r *ScheduleRepository) ListForUserWithStatus(ctx context.Context, userID int64, day time.Time) ([]*TodayItem, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT s.id, s.medication_id, s.time_of_day, s.frequency, s.days, s.interval_days, s.anchor_date, s.is_active,
		        m.name, m.dosage, il.status, il.taken_at
		 FROM schedules s
		 JOIN medications m ON s.medication_id = m.id
		 LEFT JOIN intake_logs il ON il.schedule_id = s.id AND il.scheduled_on = $2::date
		 WHERE m.user_id = $1 AND s.is_active
		 ORDER BY s.time_of_day`,
		userID, day.Format("2006-01-02"),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*TodayItem
	for rows.Next() {
		it := &TodayItem{}
		var days []int32
		if err := rows.Scan(&it.ID, &it.MedicationID, &it.TimeOfDay, &it.Frequency, &days,
			&it.IntervalDays, &it.AnchorDate, &it.Active,
			&it.MedicationName, &it.Dosage, &it.Status, &it.TakenAt); err != nil {
			return nil, err
		}
		it.Days = toInts(days)
		items = append(items, it)
	}
	return items, rows.Err()
}

func toInt32s(days []int) []int32 {
	out := make([]int32, len(days))
	for i, d := range days {
		out[i] = int32(d)
	}
	return out
}

func toInts(days []int32) []int {
	if len(days) == 0 {
		return nil
	}
	out := make([]int, len(days))
	for i, d := range days {
		out[i] = int(d)
	}
	return out
}

func dateArg(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}
