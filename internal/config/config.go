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
	Env      string
	LogLevel string

	// StoreBackend selects the appointment repository: memory, postgres or redis.
	StoreBackend string
	DatabaseURL  string
	// AuditDatabaseURL enables the appointment audit trail when set.
	AuditDatabaseURL string
	RedisAddr        string
	RedisPassword    string
	RedisTLS         bool
	RedisKeyPrefix   string

	// Simulated latency for store operations.
	ListLatency     time.Duration
	ScheduleLatency time.Duration
	CancelLatency   time.Duration

	SessionSecret       string
	SessionTTL          time.Duration
	ConfirmationTTL     time.Duration
	NotificationTTL     time.Duration
	LoginRateLimit      float64
	LoginRateBurst      int
	CORSAllowedOrigins  []string
	EventsPublisher     string
	AppointmentQueueURL string

	// Scheduling desk emails: none, sendgrid or ses.
	EmailProvider  string
	SendGridAPIKey string
	EmailFrom      string
	EmailFromName  string
	DeskEmail      string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	// Per-service endpoints win over AWSEndpointOverride.
	SQSEndpoint string
	SESEndpoint string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StoreBackend:     strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", "memory"))),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		AuditDatabaseURL: getEnv("AUDIT_DATABASE_URL", ""),
		RedisAddr:        getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisTLS:         getEnvAsBool("REDIS_TLS", false),
		RedisKeyPrefix:   getEnv("REDIS_KEY_PREFIX", "portal:"),

		ListLatency:     getEnvAsDuration("LIST_LATENCY", 800*time.Millisecond),
		ScheduleLatency: getEnvAsDuration("SCHEDULE_LATENCY", 1200*time.Millisecond),
		CancelLatency:   getEnvAsDuration("CANCEL_LATENCY", 800*time.Millisecond),

		SessionSecret:       getEnv("SESSION_SECRET", "dev-session-secret"),
		SessionTTL:          getEnvAsDuration("SESSION_TTL", 8*time.Hour),
		ConfirmationTTL:     getEnvAsDuration("CANCEL_CONFIRMATION_TTL", 2*time.Minute),
		NotificationTTL:     getEnvAsDuration("NOTIFICATION_TTL", 4*time.Second),
		LoginRateLimit:      getEnvAsFloat("LOGIN_RATE_LIMIT", 1),
		LoginRateBurst:      getEnvAsInt("LOGIN_RATE_BURST", 5),
		CORSAllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS"),
		EventsPublisher:     strings.ToLower(strings.TrimSpace(getEnv("EVENTS_PUBLISHER", "none"))),
		AppointmentQueueURL: getEnv("APPOINTMENT_EVENTS_QUEUE_URL", ""),

		EmailProvider:  strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "none"))),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:      getEnv("EMAIL_FROM", ""),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "Portal do Paciente"),
		DeskEmail:      getEnv("SCHEDULING_DESK_EMAIL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		SQSEndpoint:         getEnv("SQS_ENDPOINT", ""),
		SESEndpoint:         getEnv("SES_ENDPOINT", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
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

func getEnvAsList(key string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
