package engine

import (
	"context"
	"sync"
	"time"

	"github.com/arogachev/pillbot/internal/models"
)

// memStore is an in-memory IntakeStore that reproduces the one record per
// (schedule, day) constraint of the real table, including ErrDuplicateRecord
// on a losing insert.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	recs   map[int64]*models.IntakeRecord
	owner  map[int64]int64 // schedule id -> owner telegram id

	insertErr       error // when set, Insert fails after insertsBeforeErr calls
	insertsBeforeErr int
	inserts          int
}

func newMemStore() *memStore {
	return &memStore{
		recs:  make(map[int64]*models.IntakeRecord),
		owner: make(map[int64]int64),
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (m *memStore) Find(ctx context.Context, scheduleID int64, day time.Time) (*models.IntakeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.recs {
		if rec.ScheduleID == scheduleID && sameDay(rec.ScheduledAt, day) {
			return rec, nil
		}
	}
	return nil, nil
}

func (m *memStore) Insert(ctx context.Context, scheduleID int64, scheduledAt time.Time) (*models.IntakeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		m.inserts++
		if m.inserts > m.insertsBeforeErr {
			return nil, m.insertErr
		}
	}
	for _, rec := range m.recs {
		if rec.ScheduleID == scheduleID && sameDay(rec.ScheduledAt, scheduledAt) {
			return nil, ErrDuplicateRecord
		}
	}
	m.nextID++
	rec := &models.IntakeRecord{
		ID:          m.nextID,
		ScheduleID:  scheduleID,
		ScheduledAt: scheduledAt,
		Status:      models.IntakePending,
	}
	m.recs[rec.ID] = rec
	return rec, nil
}

func (m *memStore) Get(ctx context.Context, id int64) (*models.IntakeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (m *memStore) OwnerTelegramID(ctx context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return 0, ErrNotFound
	}
	return m.owner[rec.ScheduleID], nil
}

func (m *memStore) UpdateStatus(ctx context.Context, id int64, status models.IntakeStatus, takenAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return false, nil
	}
	rec.Status = status
	rec.TakenAt = takenAt
	return true, nil
}

func (m *memStore) UpdateFollowUp(ctx context.Context, id int64, count int, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return false, nil
	}
	rec.FollowUpCount = count
	rec.LastFollowUpAt = &at
	return true, nil
}

func (m *memStore) PendingDueFollowUp(ctx context.Context, day, latest time.Time) ([]*models.PendingIntake, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PendingIntake
	for _, rec := range m.recs {
		if rec.Status != models.IntakePending || !sameDay(rec.ScheduledAt, day) {
			continue
		}
		if rec.ScheduledAt.After(latest) || rec.FollowUpCount > 0 {
			continue
		}
		out = append(out, m.pendingIntake(rec))
	}
	return out, nil
}

func (m *memStore) PendingForDay(ctx context.Context, day time.Time) ([]*models.PendingIntake, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PendingIntake
	for _, rec := range m.recs {
		if rec.Status == models.IntakePending && sameDay(rec.ScheduledAt, day) {
			out = append(out, m.pendingIntake(rec))
		}
	}
	return out, nil
}

func (m *memStore) pendingIntake(rec *models.IntakeRecord) *models.PendingIntake {
	return &models.PendingIntake{
		Record:     *rec,
		ScheduleID: rec.ScheduleID,
		TelegramID: m.owner[rec.ScheduleID],
		ChatID:     m.owner[rec.ScheduleID],
	}
}

// memSchedules is an in-memory ScheduleSource.
type memSchedules struct {
	scheds map[int64]*models.Schedule
	due    []*models.DueSchedule
}

func newMemSchedules() *memSchedules {
	return &memSchedules{scheds: make(map[int64]*models.Schedule)}
}

func (m *memSchedules) add(d *models.DueSchedule) {
	m.scheds[d.ID] = &d.Schedule
	m.due = append(m.due, d)
}

func (m *memSchedules) addDaily(id int64) {
	m.add(&models.DueSchedule{Schedule: models.Schedule{
		ID: id, TimeOfDay: "08:00", Frequency: models.FreqDaily,
		IntervalDays: 1, Active: true,
	}})
}

func (m *memSchedules) ActiveAt(ctx context.Context, hhmm string) ([]*models.DueSchedule, error) {
	var out []*models.DueSchedule
	for _, d := range m.due {
		if d.Active && d.TimeOfDay == hhmm {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memSchedules) ActiveBetween(ctx context.Context, from, to string) ([]*models.DueSchedule, error) {
	var out []*models.DueSchedule
	for _, d := range m.due {
		if d.Active && d.TimeOfDay >= from && d.TimeOfDay <= to {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memSchedules) Get(ctx context.Context, id int64) (*models.Schedule, error) {
	s, ok := m.scheds[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *memSchedules) UpdateAnchorDate(ctx context.Context, id int64, anchor time.Time) (bool, error) {
	s, ok := m.scheds[id]
	if !ok {
		return false, nil
	}
	s.AnchorDate = &anchor
	return true, nil
}
