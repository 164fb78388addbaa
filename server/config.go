package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"bj-trainer/server/trainer"
)

type Config struct {
	Port        string
	DatabaseURL string
	AutoMigrate bool
	Rules       trainer.Rules
	SessionTTL  time.Duration
	LogLevel    string
	LogPretty   bool
}

func loadConfig() Config {
	rules := trainer.DefaultRules()
	rules.Decks = atoiDef(os.Getenv("DECKS"), rules.Decks)
	rules.ReshoeAt = atoiDef(os.Getenv("RESHOE_AT"), rules.ReshoeAt)
	rules.Seed = int64(atoiDef(os.Getenv("SEED"), 0))

	return Config{
		Port:        getenv("PORT", "8080"),
		DatabaseURL: getenv("DATABASE_URL", ""),
		AutoMigrate: asBool(os.Getenv("AUTO_MIGRATE")),
		Rules:       rules,
		SessionTTL:  time.Duration(atoiDef(os.Getenv("SESSION_TTL_MINUTES"), 240)) * time.Minute,
		LogLevel:    getenv("LOG_LEVEL", "info"),
		LogPretty:   asBool(os.Getenv("LOG_PRETTY")),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func atoiDef(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
func asBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
