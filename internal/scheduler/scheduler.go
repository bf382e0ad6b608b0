// Package scheduler is the periodic driver: every minute it asks the engine
// which doses just became due, which pending doses deserve their follow-up,
// and once a day which ones get the final evening reminder. Delivery is
// fire-and-forget: a failed send is logged and never rolls back record
// state.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/arogachev/pillbot/internal/engine"
	"github.com/arogachev/pillbot/internal/models"
)

type Scheduler struct {
	api       *tgbotapi.BotAPI
	evaluator *engine.Evaluator
	planner   *engine.FollowUpPlanner
	ledger    *engine.Ledger

	loc         *time.Location
	eveningTime string // HH:MM, terminal sweep time

	checkInterval time.Duration
	notifyCh      chan struct{}
	lastSweepDay  string // date of the last terminal sweep, YYYY-MM-DD
}

func New(
	api *tgbotapi.BotAPI,
	evaluator *engine.Evaluator,
	planner *engine.FollowUpPlanner,
	ledger *engine.Ledger,
	loc *time.Location,
	eveningTime string,
) *Scheduler {
	return &Scheduler{
		api:           api,
		evaluator:     evaluator,
		planner:       planner,
		ledger:        ledger,
		loc:           loc,
		eveningTime:   eveningTime,
		checkInterval: 1 * time.Minute,
		notifyCh:      make(chan struct{}, 1),
	}
}

// Notify triggers an immediate check. Non-blocking if a check is already pending.
func (s *Scheduler) Notify() {
	select {
	case s.notifyCh <- struct{}{}:
	default:
		// Channel already has a pending notification, skip
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	log.Println("Scheduler started")
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	// Wait a bit for migrations to complete before first check
	select {
	case <-ctx.Done():
		return
	case <-time.After(2 * time.Second):
	}

	// Run first check
	s.check(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("Scheduler stopped")
			return
		case <-ticker.C:
			s.check(ctx)
		case <-s.notifyCh:
			log.Println("Scheduler triggered by notification")
			s.check(ctx)
		}
	}
}

func (s *Scheduler) check(ctx context.Context) {
	now := time.Now().In(s.loc)
	s.checkDueReminders(ctx, now)
	s.checkFollowUps(ctx, now)
	s.checkEveningSweep(ctx, now)
}

func (s *Scheduler) checkDueReminders(ctx context.Context, now time.Time) {
	due, err := s.evaluator.DueAtMinute(ctx, now)
	if err != nil {
		// Deliver whatever was collected; the failed remainder is retried
		// on the next tick because no record was created for it.
		log.Printf("Due evaluation incomplete: %v", err)
	}
	if len(due) == 0 {
		return
	}

	for _, group := range engine.GroupByRecipient(due) {
		s.sendDueGroup(group)
	}
}

func (s *Scheduler) sendDueGroup(group engine.Group[engine.DueOccurrence]) {
	// A single pill with a photo gets the photo reminder; everything else
	// is one combined text message.
	if len(group.Items) == 1 && group.Items[0].Schedule.PhotoID != "" {
		item := group.Items[0]
		text := fmt.Sprintf("%s, time to take your medication!\n\n%s (%s)",
			group.Mention(), item.Schedule.MedicationName, item.Schedule.Dosage)

		photo := tgbotapi.NewPhoto(group.ChatID, tgbotapi.FileID(item.Schedule.PhotoID))
		photo.Caption = text
		photo.ReplyMarkup = dueKeyboard(group.Items)
		if _, err := s.api.Send(photo); err != nil {
			log.Printf("Failed to send reminder to chat %d: %v", group.ChatID, err)
			return
		}
		log.Printf("Sent reminder to chat %d for %s", group.ChatID, item.Schedule.MedicationName)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s, time to take your medication!\n\n", group.Mention())
	for _, item := range group.Items {
		fmt.Fprintf(&sb, "• %s (%s)\n", item.Schedule.MedicationName, item.Schedule.Dosage)
	}

	msg := tgbotapi.NewMessage(group.ChatID, sb.String())
	msg.ReplyMarkup = dueKeyboard(group.Items)
	if _, err := s.api.Send(msg); err != nil {
		log.Printf("Failed to send reminder to chat %d: %v", group.ChatID, err)
		return
	}
	log.Printf("Sent reminder to chat %d with %d items", group.ChatID, len(group.Items))
}

func dueKeyboard(items []engine.DueOccurrence) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, item := range items {
		label := "Taken"
		if len(items) > 1 {
			label = "Taken: " + item.Schedule.MedicationName
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("taken_%d", item.Record.ID)),
			tgbotapi.NewInlineKeyboardButtonData("Later", fmt.Sprintf("later_%d", item.Record.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (s *Scheduler) checkFollowUps(ctx context.Context, now time.Time) {
	items, err := s.planner.Plan(ctx, now)
	if err != nil {
		log.Printf("Failed to plan follow-ups: %v", err)
		return
	}
	if len(items) == 0 {
		return
	}

	for _, group := range engine.GroupByRecipient(items) {
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s, you haven't confirmed your medication yet:\n\n", group.Mention())
		for _, item := range group.Items {
			fmt.Fprintf(&sb, "• %s (%s) - %s\n", item.MedicationName, item.Dosage, item.TimeOfDay)
		}
		sb.WriteString("\nDid you take it?")

		msg := tgbotapi.NewMessage(group.ChatID, sb.String())
		msg.ReplyMarkup = pendingKeyboard(group.Items)
		if _, err := s.api.Send(msg); err != nil {
			// The one-shot follow-up is not consumed: an undelivered
			// reminder stays eligible for the next tick.
			log.Printf("Failed to send follow-up to chat %d: %v", group.ChatID, err)
			continue
		}
		log.Printf("Sent follow-up to chat %d with %d items", group.ChatID, len(group.Items))

		for _, item := range group.Items {
			if err := s.ledger.RecordFollowUp(ctx, item.Record.ID, now); err != nil {
				log.Printf("Failed to record follow-up for intake %d: %v", item.Record.ID, err)
			}
		}
	}
}

func (s *Scheduler) checkEveningSweep(ctx context.Context, now time.Time) {
	today := now.Format("2006-01-02")
	if s.lastSweepDay == today {
		return
	}
	target, err := timeOnDay(s.eveningTime, now)
	if err != nil {
		log.Printf("Invalid evening reminder time %q: %v", s.eveningTime, err)
		return
	}
	if now.Before(target) {
		return
	}
	s.lastSweepDay = today

	items, err := s.planner.SweepPending(ctx, now)
	if err != nil {
		log.Printf("Failed to collect pending intakes for evening sweep: %v", err)
		return
	}
	if len(items) == 0 {
		return
	}

	for _, group := range engine.GroupByRecipient(items) {
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s, you did not confirm these medications today:\n\n", group.Mention())
		for _, item := range group.Items {
			fmt.Fprintf(&sb, "• %s (%s) - %s\n", item.MedicationName, item.Dosage, item.TimeOfDay)
		}
		sb.WriteString("\nDid you take them?")

		msg := tgbotapi.NewMessage(group.ChatID, sb.String())
		msg.ReplyMarkup = sweepKeyboard(group.Items)
		if _, err := s.api.Send(msg); err != nil {
			log.Printf("Failed to send evening reminder to chat %d: %v", group.ChatID, err)
			continue
		}
		log.Printf("Sent evening reminder to chat %d for user %d", group.ChatID, group.TelegramID)

		// Escalated after notifying: the sweep fires once per record, but
		// the buttons stay usable for a late confirmation.
		for _, item := range group.Items {
			if err := s.ledger.MarkEscalated(ctx, item.Record.ID); err != nil {
				log.Printf("Failed to escalate intake %d: %v", item.Record.ID, err)
			}
		}
	}
}

func pendingKeyboard(items []*models.PendingIntake) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, item := range items {
		label := "Taken"
		if len(items) > 1 {
			label = "Taken: " + item.MedicationName
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("taken_%d", item.Record.ID)),
			tgbotapi.NewInlineKeyboardButtonData("Later", fmt.Sprintf("later_%d", item.Record.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func sweepKeyboard(items []*models.PendingIntake) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, item := range items {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Taken: "+item.MedicationName, fmt.Sprintf("taken_%d", item.Record.ID)),
			tgbotapi.NewInlineKeyboardButtonData("Missed", fmt.Sprintf("missed_%d", item.Record.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func timeOnDay(hhmm string, day time.Time) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}
