package handlers

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/arogachev/pillbot/internal/models"
)

// Add-pill wizard: a small in-memory state machine per (chat, user). State
// expires after a few minutes of inactivity.

const wizardTimeout = 10 * time.Minute

type wizardStep int

const (
	stepName wizardStep = iota
	stepDosage
	stepPhoto
	stepCustomTime
)

type wizardKey struct {
	chatID int64
	userID int64
}

type wizardState struct {
	Step      wizardStep
	DBUserID  int64
	Name      string
	Dosage    string
	PhotoID   string
	ExpiresAt time.Time
}

var (
	wizards     = make(map[wizardKey]*wizardState)
	wizardMutex sync.Mutex
)

func getWizard(chatID, userID int64) *wizardState {
	wizardMutex.Lock()
	defer wizardMutex.Unlock()
	key := wizardKey{chatID: chatID, userID: userID}
	state, ok := wizards[key]
	if !ok {
		return nil
	}
	if time.Now().After(state.ExpiresAt) {
		delete(wizards, key)
		return nil
	}
	return state
}

func saveWizard(chatID, userID int64, state *wizardState) {
	wizardMutex.Lock()
	defer wizardMutex.Unlock()
	state.ExpiresAt = time.Now().Add(wizardTimeout)
	wizards[wizardKey{chatID: chatID, userID: userID}] = state
}

func cancelWizard(chatID, userID int64) bool {
	wizardMutex.Lock()
	defer wizardMutex.Unlock()
	key := wizardKey{chatID: chatID, userID: userID}
	_, ok := wizards[key]
	delete(wizards, key)
	return ok
}

func (h *Handlers) handleAddPill(ctx context.Context, msg *tgbotapi.Message) {
	user, err := h.repos.User.GetOrCreate(ctx, msg.From.ID, msg.Chat.ID, msg.From.UserName, msg.From.FirstName)
	if err != nil {
		log.Printf("Failed to get/create user: %v", err)
		return
	}

	saveWizard(msg.Chat.ID, msg.From.ID, &wizardState{Step: stepName, DBUserID: user.ID})
	h.sendMessage(msg.Chat.ID, "What is the medication called?")
}

// handleWizardMessage consumes a plain message when a wizard is active.
// Returns false when no wizard is running for the sender.
func (h *Handlers) handleWizardMessage(ctx context.Context, msg *tgbotapi.Message) bool {
	state := getWizard(msg.Chat.ID, msg.From.ID)
	if state == nil {
		return false
	}

	switch state.Step {
	case stepName:
		if msg.Text == "" {
			h.sendMessage(msg.Chat.ID, "Please send the medication name as text.")
			return true
		}
		state.Name = msg.Text
		state.Step = stepDosage
		saveWizard(msg.Chat.ID, msg.From.ID, state)
		h.sendMessage(msg.Chat.ID, "What is the dosage? (e.g. 500mg, 1 capsule, 2 tablets)")

	case stepDosage:
		if msg.Text == "" {
			h.sendMessage(msg.Chat.ID, "Please send the dosage as text.")
			return true
		}
		state.Dosage = msg.Text
		state.Step = stepPhoto
		saveWizard(msg.Chat.ID, msg.From.ID, state)

		reply := tgbotapi.NewMessage(msg.Chat.ID, "Send a photo of the pill, or skip:")
		reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Skip", "skip_photo"),
			),
		)
		if _, err := h.api.Send(reply); err != nil {
			log.Printf("Failed to send message: %v", err)
		}

	case stepPhoto:
		if len(msg.Photo) == 0 {
			h.sendMessage(msg.Chat.ID, "Send a photo or press Skip.")
			return true
		}
		state.PhotoID = msg.Photo[len(msg.Photo)-1].FileID
		saveWizard(msg.Chat.ID, msg.From.ID, state)
		h.showTimeSelection(msg.Chat.ID, msg.From.ID, state)

	case stepCustomTime:
		hhmm, err := normalizeTime(msg.Text)
		if err != nil {
			h.sendMessage(msg.Chat.ID, "Wrong format. Send the time as HH:MM (e.g. 09:30):")
			return true
		}
		h.savePill(ctx, msg.Chat.ID, msg.From.ID, state, hhmm)
	}
	return true
}

func (h *Handlers) handleWizardCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	chatID := callback.Message.Chat.ID
	userID := callback.From.ID

	state := getWizard(chatID, userID)
	if state == nil {
		h.answerCallback(callback.ID, "This dialog has expired, start over with /addpill")
		return
	}

	switch {
	case callback.Data == "skip_photo":
		if state.Step != stepPhoto {
			h.answerCallback(callback.ID, "")
			return
		}
		h.answerCallback(callback.ID, "")
		saveWizard(chatID, userID, state)
		h.showTimeSelection(chatID, userID, state)

	case callback.Data == "time_custom":
		state.Step = stepCustomTime
		saveWizard(chatID, userID, state)
		h.answerCallback(callback.ID, "")
		h.sendMessage(chatID, "Send the time as HH:MM (e.g. 09:30):")

	default: // time_HH:MM
		hhmm, err := normalizeTime(callback.Data[len("time_"):])
		if err != nil {
			h.answerCallback(callback.ID, "Invalid time")
			return
		}
		h.answerCallback(callback.ID, "")
		h.savePill(ctx, chatID, userID, state, hhmm)
	}
}

func (h *Handlers) showTimeSelection(chatID, userID int64, state *wizardState) {
	msg := tgbotapi.NewMessage(chatID, "When should I remind you?")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Morning 08:00", "time_08:00"),
			tgbotapi.NewInlineKeyboardButtonData("Noon 14:00", "time_14:00"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Evening 20:00", "time_20:00"),
			tgbotapi.NewInlineKeyboardButtonData("Custom time", "time_custom"),
		),
	)
	if _, err := h.api.Send(msg); err != nil {
		log.Printf("Failed to send message: %v", err)
	}
}

func (h *Handlers) savePill(ctx context.Context, chatID, userID int64, state *wizardState, hhmm string) {
	med := &models.Medication{
		UserID:  state.DBUserID,
		Name:    state.Name,
		Dosage:  state.Dosage,
		PhotoID: state.PhotoID,
	}
	if err := h.repos.Medication.Create(ctx, med); err != nil {
		log.Printf("Failed to create medication: %v", err)
		h.sendMessage(chatID, "Could not save the medication, please try again.")
		return
	}

	sched := &models.Schedule{
		MedicationID: med.ID,
		TimeOfDay:    hhmm,
		Frequency:    models.FreqDaily,
		IntervalDays: 1,
		Active:       true,
	}
	if err := h.repos.Schedule.Create(ctx, sched); err != nil {
		log.Printf("Failed to create schedule: %v", err)
		h.sendMessage(chatID, "Could not save the schedule, please try again.")
		return
	}

	cancelWizard(chatID, userID)
	h.notify()

	h.sendMessage(chatID, fmt.Sprintf(
		"Medication added!\n\n%s (%s)\nIntake time: %s\nRepeats: every day\n\nUse /schedule to change how often it repeats.",
		med.Name, med.Dosage, hhmm,
	))
}

func normalizeTime(s string) (string, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return "", err
	}
	return t.Format("15:04"), nil
}
