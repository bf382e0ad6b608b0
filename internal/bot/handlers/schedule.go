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

func (h *Handlers) handleSchedule(ctx context.Context, msg *tgbotapi.Message) {
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
		h.sendMessage(msg.Chat.ID, "You have no medications yet.\nUse /addpill to add one.")
		return
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, "Pick a medication to manage its schedule:")
	reply.ReplyMarkup = medicationKeyboard(meds)
	if _, err := h.api.Send(reply); err != nil {
		log.Printf("Failed to send message: %v", err)
	}
}

func medicationKeyboard(meds []*models.Medication) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, med := range meds {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s (%s)", med.Name, med.Dosage),
				fmt.Sprintf("schedule_pill_%d", med.ID),
			),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (h *Handlers) handleScheduleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	data := callback.Data

	switch {
	case strings.HasPrefix(data, "schedule_pill_"):
		h.showPillSchedule(ctx, callback, strings.TrimPrefix(data, "schedule_pill_"))
	case strings.HasPrefix(data, "add_schedule_"):
		h.showTimeOptions(ctx, callback, strings.TrimPrefix(data, "add_schedule_"))
	case strings.HasPrefix(data, "newtime_"):
		h.showFrequencyOptions(ctx, callback, strings.TrimPrefix(data, "newtime_"))
	case strings.HasPrefix(data, "freq_"):
		h.saveNewSchedule(ctx, callback, strings.TrimPrefix(data, "freq_"))
	case strings.HasPrefix(data, "del_schedule_"):
		h.showSchedulesToDelete(ctx, callback, strings.TrimPrefix(data, "del_schedule_"))
	case strings.HasPrefix(data, "rmschedule_"):
		h.deleteSchedule(ctx, callback, strings.TrimPrefix(data, "rmschedule_"))
	case data == "back_to_pills":
		h.backToPills(ctx, callback)
	}
}

// ownedMedication resolves the medication and checks the caller owns it.
func (h *Handlers) ownedMedication(ctx context.Context, callback *tgbotapi.CallbackQuery, medIDStr string) *models.Medication {
	medID, err := strconv.ParseInt(medIDStr, 10, 64)
	if err != nil {
		h.answerCallback(callback.ID, "")
		return nil
	}
	med, err := h.repos.Medication.GetByID(ctx, medID)
	if err != nil {
		h.answerCallbackWithAlert(callback.ID, "Medication not found")
		return nil
	}
	user, err := h.repos.User.Get(ctx, callback.From.ID, callback.Message.Chat.ID)
	if err != nil || med.UserID != user.ID {
		h.answerCallbackWithAlert(callback.ID, "This is not your medication!")
		return nil
	}
	return med
}

func (h *Handlers) showPillSchedule(ctx context.Context, callback *tgbotapi.CallbackQuery, medIDStr string) {
	med := h.ownedMedication(ctx, callback, medIDStr)
	if med == nil {
		return
	}

	scheds, err := h.repos.Schedule.GetByMedicationID(ctx, med.ID)
	if err != nil {
		log.Printf("Failed to list schedules for medication %d: %v", med.ID, err)
		h.answerCallbackWithAlert(callback.ID, "Could not load the schedule.")
		return
	}

	text := h.pillScheduleText(med, scheds)

	var rows [][]tgbotapi.InlineKeyboardButton
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Add time", fmt.Sprintf("add_schedule_%d", med.ID)),
	))
	if len(scheds) > 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Remove time", fmt.Sprintf("del_schedule_%d", med.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Back", "back_to_pills"),
	))

	edit := tgbotapi.NewEditMessageTextAndMarkup(callback.Message.Chat.ID, callback.Message.MessageID,
		text, tgbotapi.NewInlineKeyboardMarkup(rows...))
	if _, err := h.api.Send(edit); err != nil {
		log.Printf("Failed to edit message: %v", err)
	}
	h.answerCallback(callback.ID, "")
}

func (h *Handlers) pillScheduleText(med *models.Medication, scheds []*models.Schedule) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s)\n\n", med.Name, med.Dosage)
	if len(scheds) == 0 {
		sb.WriteString("No schedule set.\n")
		return sb.String()
	}

	now := time.Now().In(h.loc)
	sb.WriteString("Current schedule:\n")
	for _, s := range scheds {
		fmt.Fprintf(&sb, "• %s - %s\n", s.TimeOfDay, s.FrequencyDisplay())
		if s.Frequency == models.FreqDaily {
			continue
		}
		next, err := recurrence.Preview(s, now, 3)
		if err != nil || len(next) == 0 {
			continue
		}
		dates := make([]string, 0, len(next))
		for _, d := range next {
			dates = append(dates, d.Format("Jan 2"))
		}
		fmt.Fprintf(&sb, "  next: %s\n", strings.Join(dates, ", "))
	}
	return sb.String()
}

func (h *Handlers) showTimeOptions(ctx context.Context, callback *tgbotapi.CallbackQuery, medIDStr string) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, presets := range [][]string{
		{"06:00", "08:00", "10:00"},
		{"12:00", "14:00", "18:00"},
		{"20:00", "22:00"},
	} {
		var row []tgbotapi.InlineKeyboardButton
		for _, hhmm := range presets {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(hhmm,
				fmt.Sprintf("newtime_%s_%s", medIDStr, hhmm)))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Cancel", "schedule_pill_"+medIDStr),
	))

	edit := tgbotapi.NewEditMessageTextAndMarkup(callback.Message.Chat.ID, callback.Message.MessageID,
		"Pick the intake time:", tgbotapi.NewInlineKeyboardMarkup(rows...))
	if _, err := h.api.Send(edit); err != nil {
		log.Printf("Failed to edit message: %v", err)
	}
	h.answerCallback(callback.ID, "")
}

// showFrequencyOptions is the second step of adding a time: how often the
// intake repeats. arg is "<medID>_<HH:MM>".
func (h *Handlers) showFrequencyOptions(ctx context.Context, callback *tgbotapi.CallbackQuery, arg string) {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Every day", "freq_"+arg+"_daily"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Weekdays", "freq_"+arg+"_weekdays"),
			tgbotapi.NewInlineKeyboardButtonData("Weekends", "freq_"+arg+"_weekends"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Every 2 days", "freq_"+arg+"_every2"),
			tgbotapi.NewInlineKeyboardButtonData("Every 3 days", "freq_"+arg+"_every3"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Monthly, on this date", "freq_"+arg+"_monthly"),
		),
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(callback.Message.Chat.ID, callback.Message.MessageID,
		"How often should it repeat?", tgbotapi.NewInlineKeyboardMarkup(rows...))
	if _, err := h.api.Send(edit); err != nil {
		log.Printf("Failed to edit message: %v", err)
	}
	h.answerCallback(callback.ID, "")
}

// saveNewSchedule persists the chosen time and frequency. arg is
// "<medID>_<HH:MM>_<kind>".
func (h *Handlers) saveNewSchedule(ctx context.Context, callback *tgbotapi.CallbackQuery, arg string) {
	parts := strings.SplitN(arg, "_", 3)
	if len(parts) != 3 {
		h.answerCallback(callback.ID, "")
		return
	}
	medIDStr, hhmm, kind := parts[0], parts[1], parts[2]

	med := h.ownedMedication(ctx, callback, medIDStr)
	if med == nil {
		return
	}
	if _, err := time.Parse("15:04", hhmm); err != nil {
		h.answerCallback(callback.ID, "Invalid time")
		return
	}

	now := time.Now().In(h.loc)
	sched := &models.Schedule{
		MedicationID: med.ID,
		TimeOfDay:    hhmm,
		IntervalDays: 1,
		Active:       true,
	}

	switch kind {
	case "daily":
		sched.Frequency = models.FreqDaily
	case "weekdays":
		sched.Frequency = models.FreqSpecificDays
		sched.Days = []int{1, 2, 3, 4, 5}
	case "weekends":
		sched.Frequency = models.FreqSpecificDays
		sched.Days = []int{6, 7}
	case "every2", "every3":
		sched.Frequency = models.FreqInterval
		sched.IntervalDays = 2
		if kind == "every3" {
			sched.IntervalDays = 3
		}
		anchor := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)
		sched.AnchorDate = &anchor
	case "monthly":
		sched.Frequency = models.FreqMonthly
		sched.Days = []int{now.Day()}
	default:
		h.answerCallback(callback.ID, "")
		return
	}

	if err := h.repos.Schedule.Create(ctx, sched); err != nil {
		log.Printf("Failed to create schedule: %v", err)
		h.answerCallbackWithAlert(callback.ID, "Could not save the schedule.")
		return
	}
	h.notify()
	h.answerCallback(callback.ID, "Time added!")

	scheds, err := h.repos.Schedule.GetByMedicationID(ctx, med.ID)
	if err != nil {
		log.Printf("Failed to list schedules for medication %d: %v", med.ID, err)
		return
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(callback.Message.Chat.ID, callback.Message.MessageID,
		h.pillScheduleText(med, scheds), tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Add time", fmt.Sprintf("add_schedule_%d", med.ID)),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Remove time", fmt.Sprintf("del_schedule_%d", med.ID)),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Back", "back_to_pills"),
			),
		))
	if _, err := h.api.Send(edit); err != nil {
		log.Printf("Failed to edit message: %v", err)
	}
}

func (h *Handlers) showSchedulesToDelete(ctx context.Context, callback *tgbotapi.CallbackQuery, medIDStr string) {
	med := h.ownedMedication(ctx, callback, medIDStr)
	if med == nil {
		return
	}

	scheds, err := h.repos.Schedule.GetByMedicationID(ctx, med.ID)
	if err != nil || len(scheds) == 0 {
		h.answerCallbackWithAlert(callback.ID, "No schedules to remove")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, s := range scheds {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s - %s", s.TimeOfDay, s.FrequencyDisplay()),
				fmt.Sprintf("rmschedule_%d_%d", s.ID, med.ID),
			),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Cancel", fmt.Sprintf("schedule_pill_%d", med.ID)),
	))

	edit := tgbotapi.NewEditMessageTextAndMarkup(callback.Message.Chat.ID, callback.Message.MessageID,
		"Pick the time to remove:", tgbotapi.NewInlineKeyboardMarkup(rows...))
	if _, err := h.api.Send(edit); err != nil {
		log.Printf("Failed to edit message: %v", err)
	}
	h.answerCallback(callback.ID, "")
}

// deleteSchedule removes one schedule. arg is "<schedID>_<medID>".
func (h *Handlers) deleteSchedule(ctx context.Context, callback *tgbotapi.CallbackQuery, arg string) {
	parts := strings.SplitN(arg, "_", 2)
	if len(parts) != 2 {
		h.answerCallback(callback.ID, "")
		return
	}
	schedID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		h.answerCallback(callback.ID, "")
		return
	}

	med := h.ownedMedication(ctx, callback, parts[1])
	if med == nil {
		return
	}

	if _, err := h.repos.Schedule.Delete(ctx, schedID); err != nil {
		log.Printf("Failed to delete schedule %d: %v", schedID, err)
		h.answerCallbackWithAlert(callback.ID, "Could not remove the schedule.")
		return
	}
	h.notify()
	h.answerCallback(callback.ID, "Schedule removed!")

	scheds, err := h.repos.Schedule.GetByMedicationID(ctx, med.ID)
	if err != nil {
		log.Printf("Failed to list schedules for medication %d: %v", med.ID, err)
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Add time", fmt.Sprintf("add_schedule_%d", med.ID)),
	))
	if len(scheds) > 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Remove time", fmt.Sprintf("del_schedule_%d", med.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Back", "back_to_pills"),
	))

	edit := tgbotapi.NewEditMessageTextAndMarkup(callback.Message.Chat.ID, callback.Message.MessageID,
		h.pillScheduleText(med, scheds), tgbotapi.NewInlineKeyboardMarkup(rows...))
	if _, err := h.api.Send(edit); err != nil {
		log.Printf("Failed to edit message: %v", err)
	}
}

func (h *Handlers) backToPills(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	user, err := h.repos.User.Get(ctx, callback.From.ID, callback.Message.Chat.ID)
	if err != nil {
		h.answerCallbackWithAlert(callback.ID, "Use /start to register first.")
		return
	}

	meds, err := h.repos.Medication.GetByUserID(ctx, user.ID)
	if err != nil {
		log.Printf("Failed to list medications: %v", err)
		return
	}
	if len(meds) == 0 {
		h.editMessageText(callback.Message.Chat.ID, callback.Message.MessageID, "You have no medications yet.")
		h.answerCallback(callback.ID, "")
		return
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(callback.Message.Chat.ID, callback.Message.MessageID,
		"Pick a medication to manage its schedule:", medicationKeyboard(meds))
	if _, err := h.api.Send(edit); err != nil {
		log.Printf("Failed to edit message: %v", err)
	}
	h.answerCallback(callback.ID, "")
}
