package bot

import (
	"context"
	"fmt"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/arogachev/pillbot/internal/ai"
	"github.com/arogachev/pillbot/internal/bot/handlers"
	"github.com/arogachev/pillbot/internal/database"
	"github.com/arogachev/pillbot/internal/engine"
	"github.com/arogachev/pillbot/internal/repository"
)

type Bot struct {
	api      *tgbotapi.BotAPI
	handlers *handlers.Handlers
}

func New(token string, db *database.DB, ledger *engine.Ledger, aiClient *ai.Client, loc *time.Location, notify func()) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	repos := &handlers.Repositories{
		User:       repository.NewUserRepository(db),
		Medication: repository.NewMedicationRepository(db),
		Schedule:   repository.NewScheduleRepository(db),
	}

	return &Bot{
		api:      api,
		handlers: handlers.New(api, repos, ledger, aiClient, loc, notify),
	}, nil
}

func (b *Bot) Start(ctx context.Context) error {
	log.Printf("Authorized on account %s", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handlers.HandleCallbackQuery(ctx, update.CallbackQuery)
		return
	}

	if update.Message == nil {
		return
	}

	if update.Message.IsCommand() {
		b.handlers.HandleCommand(ctx, update.Message)
		return
	}

	b.handlers.HandleMessage(ctx, update.Message)
}
