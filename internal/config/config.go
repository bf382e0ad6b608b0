package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURI   string
	TelegramToken string

	// Location is the process-wide timezone every wall-clock comparison
	// runs in. Threaded explicitly into the engine, never read ambiently.
	Location *time.Location

	// EveningReminderTime is when the end-of-day sweep for unacknowledged
	// doses runs, HH:MM local.
	EveningReminderTime string

	// FollowUpDelay is how long a dose may stay unacknowledged before its
	// single follow-up reminder.
	FollowUpDelay time.Duration

	// FollowUpCutoffHour is the local hour from which follow-ups stop; the
	// evening sweep takes over.
	FollowUpCutoffHour int

	AIAPIKey  string
	AIBaseURL string
	AIModel   string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional in production
	}

	loc, err := time.LoadLocation(getEnvOrDefault("TIMEZONE", "Europe/Moscow"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	evening := getEnvOrDefault("EVENING_REMINDER_TIME", "20:00")
	if _, err := time.Parse("15:04", evening); err != nil {
		return nil, fmt.Errorf("invalid EVENING_REMINDER_TIME %q: %w", evening, err)
	}

	delay, err := time.ParseDuration(getEnvOrDefault("FOLLOWUP_DELAY", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid FOLLOWUP_DELAY: %w", err)
	}

	cutoff, err := strconv.Atoi(getEnvOrDefault("FOLLOWUP_CUTOFF_HOUR", "21"))
	if err != nil || cutoff < 0 || cutoff > 23 {
		return nil, fmt.Errorf("invalid FOLLOWUP_CUTOFF_HOUR %q", os.Getenv("FOLLOWUP_CUTOFF_HOUR"))
	}

	return &Config{
		DatabaseURI:         os.Getenv("DATABASE_URI"),
		TelegramToken:       os.Getenv("TELEGRAM_TOKEN"),
		Location:            loc,
		EveningReminderTime: evening,
		FollowUpDelay:       delay,
		FollowUpCutoffHour:  cutoff,
		AIAPIKey:            os.Getenv("AI_API_KEY"),
		AIBaseURL:           getEnvOrDefault("AI_BASE_URL", "https://openrouter.ai/api/v1"),
		AIModel:             getEnvOrDefault("AI_MODEL", "openai/gpt-4o-mini"),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
