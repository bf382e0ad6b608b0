package handlers

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/arogachev/pillbot/internal/ai"
	"github.com/arogachev/pillbot/internal/models"
)

// Drafts parsed from free-form messages wait in memory for an explicit
// confirm/cancel button press before anything touches the database.

const draftTimeout = 10 * time.Minute

type pendingDraft struct {
	Draft     *ai.MedicationDraft
	DBUserID  int64
	ExpiresAt time.Time
}

var (
	drafts     = make(map[wizardKey]*pendingDraft)
	draftMutex sync.Mutex
)

func saveDraft(chatID, userID int64, d *pendingDraft) {
	draftMutex.Lock()
	defer draftMutex.Unlock()
	d.ExpiresAt = time.Now().Add(draftTimeout)
	drafts[wizardKey{chatID: chatID, userID: userID}] = d
}

func takeDraft(chatID, userID int64) *pendingDraft {
	draftMutex.Lock()
	defer draftMutex.Unlock()
	key := wizardKey{chatID: chatID, userID: userID}
	d, ok := drafts[key]
	delete(drafts, key)
	if !ok || time.Now().After(d.ExpiresAt) {
		return nil
	}
	return d
}

func (h *Handlers) handleAIMessage(ctx context.Context, msg *tgbotapi.Message) {
	user, err := h.repos.User.GetOrCreate(ctx, msg.From.ID, msg.Chat.ID, msg.From.UserName, msg.From.FirstName)
	if err != nil {
		log.Printf("Failed to get/create user: %v", err)
		return
	}

	typing := tgbotapi.NewChatAction(msg.Chat.ID, tgbotapi.ChatTyping)
	if _, err := h.api.Request(typing); err != nil {
		log.Printf("Failed to send chat action: %v", err)
	}

	draft, err := h.ai.ParseMedication(ctx, msg.Text)
	if err != nil {
		log.Printf("Failed to parse message with AI: %v", err)
		h.sendMessage(msg.Chat.ID, "I could not understand that, try /addpill instead.")
		return
	}

	if draft.Confidence < 0.5 || draft.Name == "" {
		reply := draft.Message
		if reply == "" {
			reply = "I help with medication reminders. Use /addpill to add one, or describe it, e.g. \"aspirin 500mg every morning at 8\"."
		}
		h.sendMessage(msg.Chat.ID, reply)
		return
	}

	if draft.Time == "" {
		draft.Time = "08:00"
	}
	if _, buildErr := scheduleFromDraft(0, draft, time.Now().In(h.loc)); buildErr != nil {
		h.sendMessage(msg.Chat.ID, "I could not make sense of the schedule, try /addpill instead.")
		return
	}

	saveDraft(msg.Chat.ID, msg.From.ID, &pendingDraft{Draft: draft, DBUserID: user.ID})

	reply := tgbotapi.NewMessage(msg.Chat.ID, draftSummary(draft))
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Save", "ai_confirm"),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", "ai_cancel"),
		),
	)
	if _, err := h.api.Send(reply); err != nil {
		log.Printf("Failed to send message: %v", err)
	}
}

func draftSummary(d *ai.MedicationDraft) string {
	var sb strings.Builder
	sb.WriteString("Here is what I understood:\n\n")
	fmt.Fprintf(&sb, "Medication: %s\n", d.Name)
	if d.Dosage != "" {
		fmt.Fprintf(&sb, "Dosage: %s\n", d.Dosage)
	}
	fmt.Fprintf(&sb, "Time: %s\n", d.Time)

	sched := models.Schedule{
		Frequency:    models.Frequency(d.Frequency),
		Days:         d.Days,
		IntervalDays: d.IntervalDays,
	}
	fmt.Fprintf(&sb, "Repeats: %s\n", sched.FrequencyDisplay())
	sb.WriteString("\nSave it?")
	return sb.String()
}

// scheduleFromDraft builds and validates a schedule from a parsed draft.
// Interval drafts are anchored on today, same as the /schedule presets.
func scheduleFromDraft(medicationID int64, d *ai.MedicationDraft, now time.Time) (*models.Schedule, error) {
	sched := &models.Schedule{
		MedicationID: medicationID,
		TimeOfDay:    d.Time,
		Frequency:    models.Frequency(d.Frequency),
		Days:         d.Days,
		IntervalDays: d.IntervalDays,
		Active:       true,
	}
	if sched.Frequency == "" {
		sched.Frequency = models.FreqDaily
	}
	if sched.IntervalDays == 0 {
		sched.IntervalDays = 1
	}
	if sched.Frequency == models.FreqInterval {
		anchor := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		sched.AnchorDate = &anchor
	}
	if err := sched.Validate(); err != nil {
		return nil, err
	}
	return sched, nil
}

func (h *Handlers) handleAICallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	chatID := callback.Message.Chat.ID

	if callback.Data == "ai_cancel" {
		takeDraft(chatID, callback.From.ID)
		h.answerCallback(callback.ID, "")
		h.editMessageText(chatID, callback.Message.MessageID, "Cancelled.")
		return
	}

	pending := takeDraft(chatID, callback.From.ID)
	if pending == nil {
		h.answerCallback(callback.ID, "This dialog has expired, send the message again")
		return
	}

	med := &models.Medication{
		UserID: pending.DBUserID,
		Name:   pending.Draft.Name,
		Dosage: pending.Draft.Dosage,
	}
	if err := h.repos.Medication.Create(ctx, med); err != nil {
		log.Printf("Failed to create medication: %v", err)
		h.answerCallbackWithAlert(callback.ID, "Could not save the medication, please try again.")
		return
	}

	sched, err := scheduleFromDraft(med.ID, pending.Draft, time.Now().In(h.loc))
	if err != nil {
		log.Printf("Draft produced an invalid schedule: %v", err)
		h.answerCallbackWithAlert(callback.ID, "Could not save the schedule, set it up with /schedule.")
		return
	}
	if err := h.repos.Schedule.Create(ctx, sched); err != nil {
		log.Printf("Failed to create schedule: %v", err)
		h.answerCallbackWithAlert(callback.ID, "Could not save the schedule, set it up with /schedule.")
		return
	}

	h.notify()
	h.answerCallback(callback.ID, "Saved!")
	h.editMessageText(chatID, callback.Message.MessageID, fmt.Sprintf(
		"Medication added!\n\n%s (%s)\nIntake time: %s\nRepeats: %s",
		med.Name, med.Dosage, sched.TimeOfDay, sched.FrequencyDisplay(),
	))
}
