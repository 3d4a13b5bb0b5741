package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddress   string
	ShutdownTimeout time.Duration

	DatabasePath string

	// LLM answer judging
	LLMURL       string // OpenAI-compatible endpoint, e.g. "http://localhost:1234"
	LLMAPIKey    string // empty for local endpoints
	LLMModel     string // model name, e.g. "qwen3-8b"
	JudgeTimeout time.Duration

	DefaultTimezone string // IANA identifier used when requests omit one

	DigestHour int // local hour (0-23) the daily digest fires; -1 disables
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()
	return &Config{
		ServerAddress:   mustGetenv("SERVER_ADDRESS"),
		ShutdownTimeout: mustGetDuration("SHUTDOWN_TIMEOUT"),
		DatabasePath:    getenvDefault("DATABASE_PATH", "lumenlearn.db"),
		LLMURL:          getenvDefault("LLM_URL", "http://localhost:1234"),
		LLMAPIKey:       os.Getenv("LLM_API_KEY"),
		LLMModel:        getenvDefault("LLM_MODEL", "qwen3-8b"),
		JudgeTimeout:    getDurationDefault("JUDGE_TIMEOUT", 5*time.Second),
		DefaultTimezone: getenvDefault("DEFAULT_TIMEZONE", "UTC"),
		DigestHour:      getIntDefault("DIGEST_HOUR", 8),
	}
}

func mustGetenv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("config: required environment variable %s is not set", k)
	}
	return v
}

func mustGetDuration(k string) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("config: required environment variable %s is not set", k)
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("config: %s=%q is not a valid duration: %v", k, v, err)
	}
	return d
}

func getenvDefault(k, fallback string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return fallback
}

func getDurationDefault(k string, fallback time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("config: %s=%q is not a valid duration: %v", k, v, err)
	}
	return d
}

func getIntDefault(k string, fallback int) int {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("config: %s=%q is not a valid integer: %v", k, v, err)
	}
	return n
}
