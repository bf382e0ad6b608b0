package handlers

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/arogachev/pillbot/internal/models"
	"github.com/arogachev/pillbot/internal/recurrence"
)

func (h *Handlers) handleMyPills(ctx context.Context, msg *tgbotapi.Message) {
	user, err := h.repos.User.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		h.sendMessage(msg.Chat.ID, "Use /start to register first.")
		return
	}

	meds, err := h.repos.Medication.GetByUserID(ctx, user.ID)
	if err != nil {
		log.Printf("Failed to list medications: %v", err)
		h.sendMessage(msg.Chat.ID, "Could not load your medications, please try again.")
		return
	}
	if len(meds) == 0 {
		h.sendMessage(msg.Chat.ID, "You have no medications yet.\nUse /addpill to add one.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Your medications:\n\n")
	for _, med := range meds {
		scheds, err := h.repos.Schedule.GetByMedicationID(ctx, med.ID)
		if err != nil {
			log.Printf("Failed to list schedules for medication %d: %v", med.ID, err)
			continue
		}
		fmt.Fprintf(&sb, "• %s (%s)\n", med.Name, med.Dosage)
		if len(scheds) == 0 {
			sb.WriteString("  No schedule set\n\n")
			continue
		}
		for _, s := range scheds {
			fmt.Fprintf(&sb, "  %s - %s\n", s.TimeOfDay, s.FrequencyDisplay())
		}
		sb.WriteString("\n")
	}
	h.sendMessage(msg.Chat.ID, sb.String())
}

func (h *Handlers) handleToday(ctx context.Context, msg *tgbotapi.Message) {
	user, err := h.repos.User.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		h.sendMessage(msg.Chat.ID, "Use /start to register first.")
		return
	}

	now := time.Now().In(h.loc)
	items, err := h.repos.Schedule.ListForUserWithStatus(ctx, user.ID, now)
	if err != nil {
		log.Printf("Failed to load today's plan: %v", err)
		h.sendMessage(msg.Chat.ID, "Could not load today's plan, please try again.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Today's plan:\n\n")
	shown := 0
	for _, it := range items {
		if !recurrence.IsDueOn(&it.Schedule, now) {
			continue
		}
		shown++
		fmt.Fprintf(&sb, "%s %s - %s (%s)\n", statusEmoji(it.Status), it.TimeOfDay, it.MedicationName, it.Dosage)
	}
	if shown == 0 {
		h.sendMessage(msg.Chat.ID, "Nothing scheduled for today.")
		return
	}
	h.sendMessage(msg.Chat.ID, sb.String())
}

func statusEmoji(status *models.IntakeStatus) string {
	if status == nil {
		return "⏳"
	}
	switch *status {
	case models.IntakeTaken:
		return "✅"
	case models.IntakeMissed:
		return "❌"
	case models.IntakeEscalated:
		return "🔔"
	default:
		return "⏳"
	}
}

func (h *Handlers) handleDeletePill(ctx context.Context, msg *tgbotapi.Message) {
	user, err := h.repos.User.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		h.sendMessage(msg.Chat.ID, "Use /start to register first.")
		return
	}

	meds, err := h.repos.Medication.GetByUserID(ctx, user.ID)
	if err != nil {
		log.Printf("Failed to list medications: %v", err)
		return
	}
	if len(meds) == 0 {
		h.sendMessage(msg.Chat.ID, "You have no medications to delete.")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, med := range meds {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s (%s)", med.Name, med.Dosage),
				fmt.Sprintf("delete_%d", med.ID),
			),
		))
	}
	reply := tgbotapi.NewMessage(msg.Chat.ID, "Which medication should I delete?")
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := h.api.Send(reply); err != nil {
		log.Printf("Failed to send message: %v", err)
	}
}

func (h *Handlers) handleDeleteCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	medID, err := strconv.ParseInt(strings.TrimPrefix(callback.Data, "delete_"), 10, 64)
	if err != nil {
		h.answerCallback(callback.ID, "")
		return
	}

	user, err := h.repos.User.Get(ctx, callback.From.ID, callback.Message.Chat.ID)
	if err != nil {
		h.answerCallbackWithAlert(callback.ID, "Use /start to register first.")
		return
	}

	med, err := h.repos.Medication.GetByID(ctx, medID)
	if err != nil {
		h.answerCallbackWithAlert(callback.ID, "Medication not found")
		return
	}
	if med.UserID != user.ID {
		h.answerCallbackWithAlert(callback.ID, "This is not your medication!")
		return
	}

	deleted, err := h.repos.Medication.Delete(ctx, medID, user.ID)
	if err != nil || !deleted {
		log.Printf("Failed to delete medication %d: %v", medID, err)
		h.answerCallbackWithAlert(callback.ID, "Could not delete, please try again.")
		return
	}

	h.answerCallback(callback.ID, "Deleted!")
	h.editMessageText(callback.Message.Chat.ID, callback.Message.MessageID,
		fmt.Sprintf("Medication %s deleted.", med.Name))
}
