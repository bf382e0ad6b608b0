package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/arogachev/pillbot/internal/engine"
	"github.com/arogachev/pillbot/internal/models"
)

// handleConfirmCallback reacts to the reminder buttons: taken_<recordID>,
// missed_<recordID> and later_<recordID>. Telegram may deliver the same
// callback more than once, so a repeated press of a final button is answered
// quietly instead of failing.
func (h *Handlers) handleConfirmCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	data := callback.Data

	if strings.HasPrefix(data, "later_") {
		h.answerCallback(callback.ID, "OK, I will remind you again in a bit")
		return
	}

	var outcome models.IntakeStatus
	var idStr string
	switch {
	case strings.HasPrefix(data, "taken_"):
		outcome = models.IntakeTaken
		idStr = strings.TrimPrefix(data, "taken_")
	case strings.HasPrefix(data, "missed_"):
		outcome = models.IntakeMissed
		idStr = strings.TrimPrefix(data, "missed_")
	default:
		h.answerCallback(callback.ID, "")
		return
	}

	recordID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.answerCallback(callback.ID, "")
		return
	}

	rec, err := h.ledger.Confirm(ctx, recordID, outcome, callback.From.ID, time.Now().In(h.loc))
	switch {
	case errors.Is(err, engine.ErrNotFound):
		h.answerCallbackWithAlert(callback.ID, "Record not found")
		return
	case errors.Is(err, engine.ErrForbidden):
		h.answerCallbackWithAlert(callback.ID, "This is not your medication!")
		return
	case errors.Is(err, engine.ErrAlreadyFinalized):
		h.answerCallback(callback.ID, "Already marked")
		return
	case err != nil:
		log.Printf("Failed to confirm intake record %d: %v", recordID, err)
		h.answerCallbackWithAlert(callback.ID, "Something went wrong, please try again.")
		return
	}

	if outcome == models.IntakeTaken {
		h.answerCallback(callback.ID, "Well done!")
	} else {
		h.answerCallback(callback.ID, "Noted")
	}
	h.stripConfirmedButtons(callback, rec)
}

// stripConfirmedButtons rewrites the reminder message so the pressed entry
// shows its outcome. Reminder messages can carry buttons for several records,
// so only the matching row is dropped.
func (h *Handlers) stripConfirmedButtons(callback *tgbotapi.CallbackQuery, rec *models.IntakeRecord) {
	msg := callback.Message
	if msg == nil {
		return
	}

	mark := "✅ Taken"
	if rec.Status == models.IntakeMissed {
		mark = "❌ Missed"
	}
	note := fmt.Sprintf("%s at %s", mark, time.Now().In(h.loc).Format("15:04"))

	var kept [][]tgbotapi.InlineKeyboardButton
	if msg.ReplyMarkup != nil {
		suffix := fmt.Sprintf("_%d", rec.ID)
		for _, row := range msg.ReplyMarkup.InlineKeyboard {
			rowForRecord := false
			for _, btn := range row {
				if btn.CallbackData != nil && strings.HasSuffix(*btn.CallbackData, suffix) {
					rowForRecord = true
					break
				}
			}
			if !rowForRecord {
				kept = append(kept, row)
			}
		}
	}

	if msg.Caption != "" {
		edit := tgbotapi.NewEditMessageCaption(msg.Chat.ID, msg.MessageID, msg.Caption+"\n\n"+note)
		if len(kept) > 0 {
			markup := tgbotapi.NewInlineKeyboardMarkup(kept...)
			edit.ReplyMarkup = &markup
		}
		if _, err := h.api.Send(edit); err != nil {
			log.Printf("Failed to edit message: %v", err)
		}
		return
	}

	if len(kept) > 0 {
		edit := tgbotapi.NewEditMessageTextAndMarkup(msg.Chat.ID, msg.MessageID,
			msg.Text+"\n\n"+note, tgbotapi.NewInlineKeyboardMarkup(kept...))
		if _, err := h.api.Send(edit); err != nil {
			log.Printf("Failed to edit message: %v", err)
		}
		return
	}
	h.editMessageText(msg.Chat.ID, msg.MessageID, msg.Text+"\n\n"+note)
}
