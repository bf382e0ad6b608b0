package handlers

import (
	"context"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/arogachev/pillbot/internal/ai"
	"github.com/arogachev/pillbot/internal/engine"
	"github.com/arogachev/pillbot/internal/repository"
)

type Repositories struct {
	User       *repository.UserRepository
	Medication *repository.MedicationRepository
	Schedule   *repository.ScheduleRepository
}

type Handlers struct {
	api    *tgbotapi.BotAPI
	repos  *Repositories
	ledger *engine.Ledger
	ai     *ai.Client
	loc    *time.Location
	notify func() // wakes the scheduler after schedule changes
}

func New(api *tgbotapi.BotAPI, repos *Repositories, ledger *engine.Ledger, aiClient *ai.Client, loc *time.Location, notify func()) *Handlers {
	if notify == nil {
		notify = func() {}
	}
	return &Handlers{
		api:    api,
		repos:  repos,
		ledger: ledger,
		ai:     aiClient,
		loc:    loc,
		notify: notify,
	}
}

func (h *Handlers) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	// Ensure user exists
	_, err := h.repos.User.GetOrCreate(ctx, msg.From.ID, msg.Chat.ID, msg.From.UserName, msg.From.FirstName)
	if err != nil {
		log.Printf("Failed to get/create user: %v", err)
		return
	}

	switch msg.Command() {
	case "start":
		h.handleStart(ctx, msg)
	case "help":
		h.handleHelp(ctx, msg)
	case "addpill":
		h.handleAddPill(ctx, msg)
	case "mypills":
		h.handleMyPills(ctx, msg)
	case "today":
		h.handleToday(ctx, msg)
	case "schedule":
		h.handleSchedule(ctx, msg)
	case "deletepill":
		h.handleDeletePill(ctx, msg)
	case "cancel":
		h.handleCancel(ctx, msg)
	default:
		h.sendMessage(msg.Chat.ID, "Unknown command, see /help")
	}
}

func (h *Handlers) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	_, err := h.repos.User.GetOrCreate(ctx, msg.From.ID, msg.Chat.ID, msg.From.UserName, msg.From.FirstName)
	if err != nil {
		log.Printf("Failed to get/create user: %v", err)
		return
	}

	// An active add-pill wizard consumes plain messages first
	if h.handleWizardMessage(ctx, msg) {
		return
	}

	if h.ai != nil {
		h.handleAIMessage(ctx, msg)
		return
	}
	h.sendMessage(msg.Chat.ID, "Use /addpill to add a medication or /help to see what I can do.")
}

func (h *Handlers) HandleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	data := callback.Data

	switch {
	case strings.HasPrefix(data, "taken_"), strings.HasPrefix(data, "missed_"), strings.HasPrefix(data, "later_"):
		h.handleConfirmCallback(ctx, callback)
	case strings.HasPrefix(data, "delete_"):
		h.handleDeleteCallback(ctx, callback)
	case strings.HasPrefix(data, "schedule_pill_"), strings.HasPrefix(data, "add_schedule_"),
		strings.HasPrefix(data, "newtime_"), strings.HasPrefix(data, "freq_"),
		strings.HasPrefix(data, "del_schedule_"), strings.HasPrefix(data, "rmschedule_"),
		data == "back_to_pills":
		h.handleScheduleCallback(ctx, callback)
	case data == "skip_photo", strings.HasPrefix(data, "time_"):
		h.handleWizardCallback(ctx, callback)
	case data == "ai_confirm", data == "ai_cancel":
		h.handleAICallback(ctx, callback)
	default:
		h.answerCallback(callback.ID, "")
	}
}

func (h *Handlers) answerCallback(callbackID, text string) {
	answer := tgbotapi.NewCallback(callbackID, text)
	if _, err := h.api.Request(answer); err != nil {
		log.Printf("Failed to answer callback: %v", err)
	}
}

func (h *Handlers) answerCallbackWithAlert(callbackID, text string) {
	answer := tgbotapi.NewCallbackWithAlert(callbackID, text)
	if _, err := h.api.Request(answer); err != nil {
		log.Printf("Failed to answer callback with alert: %v", err)
	}
}

func (h *Handlers) editMessageText(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := h.api.Send(edit); err != nil {
		log.Printf("Failed to edit message: %v", err)
	}
}

func (h *Handlers) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.api.Send(msg); err != nil {
		log.Printf("Failed to send message: %v", err)
	}
}

func (h *Handlers) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	text := `Hi ` + msg.From.FirstName + `!

I help you remember to take your medication.

Commands:
/addpill - add a medication
/mypills - list your medications
/today - today's intake plan
/schedule - manage intake schedules
/deletepill - remove a medication
/help - how reminders work`
	h.sendMessage(msg.Chat.ID, text)
}

func (h *Handlers) handleHelp(ctx context.Context, msg *tgbotapi.Message) {
	text := `How to use the bot:

1. /addpill - add a medication. I will ask for the name, dosage, an optional photo and the intake time.

2. /schedule - add more intake times or change how often a medication repeats: daily, on chosen weekdays, every N days or monthly.

3. /today - what is left to take today.

How reminders work:
- I remind you at the scheduled time
- Press the button when you take the pill
- If you don't react within an hour, I remind once more
- In the evening I list everything still unconfirmed`
	if h.ai != nil {
		text += "\n\nYou can also just write to me, e.g. \"aspirin 500mg every morning at 8\"."
	}
	h.sendMessage(msg.Chat.ID, text)
}

func (h *Handlers) handleCancel(ctx context.Context, msg *tgbotapi.Message) {
	if cancelWizard(msg.Chat.ID, msg.From.ID) {
		h.sendMessage(msg.Chat.ID, "Cancelled.")
		return
	}
	h.sendMessage(msg.Chat.ID, "Nothing to cancel.")
}
