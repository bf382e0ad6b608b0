package models

import "time"

// IntakeStatus is the lifecycle state of an intake record.
type IntakeStatus string

const (
	IntakePending   IntakeStatus = "pending"
	IntakeTaken     IntakeStatus = "taken"
	IntakeMissed    IntakeStatus = "missed"
	IntakeEscalated IntakeStatus = "escalated" // end-of-day sweep notified, still unacknowledged
)

// Final reports whether the status is a terminal acknowledgement. Escalated
// records can still be confirmed from the sweep message buttons.
func (s IntakeStatus) Final() bool {
	return s == IntakeTaken || s == IntakeMissed
}

// IntakeRecord tracks one due occurrence of a schedule from "due" through
// acknowledgement. At most one record exists per (schedule, calendar day).
type IntakeRecord struct {
	ID             int64        `json:"id"`
	ScheduleID     int64        `json:"schedule_id"`
	ScheduledAt    time.Time    `json:"scheduled_at"`
	Status         IntakeStatus `json:"status"`
	TakenAt        *time.Time   `json:"taken_at"` // set iff status is taken
	FollowUpCount  int          `json:"follow_up_count"`
	LastFollowUpAt *time.Time   `json:"last_follow_up_at"`
}

// PendingIntake is the joined read model for follow-up and sweep queries: an
// unacknowledged record together with its schedule, medication and owner.
type PendingIntake struct {
	Record         IntakeRecord `json:"record"`
	ScheduleID     int64        `json:"schedule_id"`
	TimeOfDay      string       `json:"time_of_day"`
	Frequency      Frequency    `json:"frequency"`
	MedicationName string       `json:"medication_name"`
	Dosage         string       `json:"dosage"`
	PhotoID        string       `json:"photo_id"`
	TelegramID     int64        `json:"telegram_id"`
	ChatID         int64        `json:"chat_id"`
	Username       string       `json:"username"`
	FirstName      string       `json:"first_name"`
}

// Recipient identifies where and to whom a notification goes.
func (p *PendingIntake) Recipient() Recipient {
	return Recipient{
		ChatID:     p.ChatID,
		TelegramID: p.TelegramID,
		Username:   p.Username,
		FirstName:  p.FirstName,
	}
}
