package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Token            string `env:"TELEGRAM_BOT_TOKEN,required,notEmpty"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY,required,notEmpty"`
	DBPath           string `env:"DB_PATH"            envDefault:"quran.db"`
	Timezone         string `env:"TIMEZONE"           envDefault:"America/New_York"`
	SendHour         int    `env:"SEND_HOUR"          envDefault:"19"`
	SendMinute       int    `env:"SEND_MINUTE"        envDefault:"0"`
	MaxDailyRequests int64  `env:"MAX_DAILY_REQUESTS" envDefault:"10"`
}

func Load(ctx context.Context, log *slog.Logger) (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.InfoContext(ctx, "No .env file loaded",
			"error", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.SendHour < 0 || cfg.SendHour > 23 {
		return Config{}, fmt.Errorf("SEND_HOUR must be in 0..23, got %d", cfg.SendHour)
	}
	if cfg.SendMinute < 0 || cfg.SendMinute > 59 {
		return Config{}, fmt.Errorf("SEND_MINUTE must be in 0..59, got %d", cfg.SendMinute)
	}
	if cfg.MaxDailyRequests < 1 {
		return Config{}, fmt.Errorf("MAX_DAILY_REQUESTS must be positive, got %d", cfg.MaxDailyRequests)
	}

	return cfg, nil
}

// Location resolves the configured time zone. Every date-in-zone
// decision in the bot uses this single location.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", c.Timezone, err)
	}
	return loc, nil
}
