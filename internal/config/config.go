package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	LogLevel string

	// Telegram transport; empty token disables the bot
	TelegramToken string
	// Reviewer chat ids that receive every confirmed questionnaire
	ReviewerIDs []string

	DatabaseURL   string
	NotifyChannel string

	RedisAddr     string
	RedisPassword string
	SessionTTL    time.Duration

	RecordsDir string

	OpenAIKey    string
	OpenAIModel  string
	BriefTimeout time.Duration

	HTTPEnabled      bool
	ReviewerAPIToken string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		TelegramToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
		ReviewerIDs:      getEnvAsList("ADMIN_IDS"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		NotifyChannel:    getEnv("POSTGRES_NOTIFY_CHANNEL", "survey_records"),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		SessionTTL:       getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		RecordsDir:       getEnv("RECORDS_DIR", "surveys"),
		OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:      getEnv("OPENAI_MODEL_SUMMARY", "gpt-4o-mini"),
		BriefTimeout:     getEnvAsDuration("BRIEF_TIMEOUT", 20*time.Second),
		HTTPEnabled:      getEnvAsBool("HTTP_ENABLED", true),
		ReviewerAPIToken: getEnv("REVIEWER_API_TOKEN", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
