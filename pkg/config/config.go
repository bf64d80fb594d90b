package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             string
	LogLevel         string
	DatabaseURL      string
	DatabaseMaxConns int

	GoogleClientID         string
	GoogleClientSecret     string
	GoogleProjectID        string
	GooglePubSubTopic      string
	GoogleCredentials      string
	GmailRequestsPerSecond float64

	FirebaseCredentials string

	AIProvider    string
	GeminiApiKey  string
	OllamaBaseURL string
	OllamaModel   string

	// ExternalCallTimeout bounds every provider, classifier and drafting call
	ExternalCallTimeout time.Duration
	FollowUpInterval    time.Duration
	FollowUpConcurrency int
	CronSecret          string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DatabaseMaxConns: getEnvInt("DATABASE_MAX_CONNS", 10),

		GoogleClientID:         getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:     getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleProjectID:        getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic:      getEnv("GOOGLE_PUBSUB_TOPIC", "gmail-updates"),
		GoogleCredentials:      getEnv("GOOGLE_CREDENTIALS", ""),
		GmailRequestsPerSecond: getEnvFloat("GMAIL_REQUESTS_PER_SECOND", 10),

		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),

		AIProvider:    getEnv("AI_PROVIDER", "auto"),
		GeminiApiKey:  getEnv("GEMINI_API_KEY", ""),
		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llama3"),

		ExternalCallTimeout: getEnvDuration("EXTERNAL_CALL_TIMEOUT", 30*time.Second),
		FollowUpInterval:    getEnvDuration("FOLLOW_UP_INTERVAL", 15*time.Minute),
		FollowUpConcurrency: getEnvInt("FOLLOW_UP_CONCURRENCY", 4),
		CronSecret:          getEnv("CRON_SECRET", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
