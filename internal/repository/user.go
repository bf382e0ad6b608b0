package repository

import (
	"context"

	"github.com/arogachev/pillbot/internal/database"
	"github.com/arogachev/pillbot/internal/models"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetOrCreate(ctx context.Context, telegramID, chatID int64, username, firstName string) (*models.User, error) {
	user := &models.User{}
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO users (telegram_id, chat_id, username, first_name) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (telegram_id, chat_id) DO UPDATE SET username = EXCLUDED.username, first_name = EXCLUDED.first_name
		 RETURNING id, telegram_id, chat_id, username, first_name`,
		telegramID, chatID, username, firstName,
	).Scan(&user.ID, &user.TelegramID, &user.ChatID, &user.Username, &user.FirstName)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) Get(ctx context.Context, telegramID, chatID int64) (*models.User, error) {
	user := &models.User{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, telegram_id, chat_id, username, first_name FROM users
		 WHERE telegram_id = $1 AND chat_id = $2`,
		telegramID, chatID,
	).Scan(&user.ID, &user.TelegramID, &user.ChatID, &user.Username, &user.FirstName)
	if err != nil {
		return nil, err
	}
	return user, nil
}
