package app

import (
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	Addr            string
	DatabaseURL     string
	SessionLifetime time.Duration
}

func LoadConfig() Config {
	addr := getenv("ADDR", ":8080")
	dbURL := getenv("DATABASE_URL", "./warbler.db")
	lifeHours := getenv("SESSION_LIFETIME_HOURS", "24")
	dur, err := time.ParseDuration(lifeHours + "h")
	if err != nil {
		dur = 24 * time.Hour
	}
	return Config{
		Addr:            addr,
		DatabaseURL:     dbURL,
		SessionLifetime: dur,
	}
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func Must(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}
