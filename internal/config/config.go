// Package config reads process configuration from the environment, with a
// best-effort .env load for local development.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string
	DatabaseURL string
	Env         string // "development" | "production"

	DaySeconds   int
	VoteSeconds  int
	NightSeconds int
	TurnSeconds  int

	RouletteStake int64
	MafiaReward   int64
}

func Load() Config {
	_ = godotenv.Load() // missing .env is fine

	return Config{
		Addr:          getenv("ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Env:           getenv("APP_ENV", "development"),
		DaySeconds:    getint("DAY_SECONDS", 30),
		VoteSeconds:   getint("VOTE_SECONDS", 15),
		NightSeconds:  getint("NIGHT_SECONDS", 15),
		TurnSeconds:   getint("TURN_SECONDS", 15),
		RouletteStake: int64(getint("ROULETTE_STAKE", 100)),
		MafiaReward:   int64(getint("MAFIA_REWARD", 50)),
	}
}

func (c Config) Production() bool { return c.Env == "production" }

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
