package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Telephony webhook verification. Empty disables signature checks
	// (local development, test harnesses).
	TwilioAuthToken string

	// Voice dialogue settings
	VoiceName       string
	DefaultLanguage string
	OperatorNumber  string
	MaxInputRetries int
	RecordMaxSecs   int
	SessionTTL      time.Duration

	// AfterBuy order API
	AfterbuyBaseURL      string
	AfterbuyPartnerID    string
	AfterbuyPartnerToken string
	AfterbuyAccountToken string
	AfterbuyUserID       string
	AfterbuyUserPassword string
	AfterbuyTimeout      time.Duration

	// Voicemail notification email
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	NotifyRecipients  string
	EmailCooldown     time.Duration

	// Transcription provider: "platform" (default) or "deepgram"
	TranscribeProvider string
	DeepgramAPIKey     string

	AdminJWTSecret string

	// Origins allowed to call the admin API from a browser. Empty leaves
	// CORS disabled.
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		TwilioAuthToken: getEnv("TWILIO_AUTH_TOKEN", ""),

		VoiceName:       getEnv("VOICE_NAME", "alice"),
		DefaultLanguage: strings.ToLower(getEnv("DEFAULT_LANGUAGE", "de")),
		OperatorNumber:  getEnv("OPERATOR_NUMBER", "+4973929378421"),
		MaxInputRetries: getEnvAsInt("MAX_INPUT_RETRIES", 3),
		RecordMaxSecs:   getEnvAsInt("RECORD_MAX_SECONDS", 60),
		SessionTTL:      getEnvAsDuration("SESSION_TTL", 4*time.Hour),

		AfterbuyBaseURL:      getEnv("AFTERBUY_BASE_URL", ""),
		AfterbuyPartnerID:    getEnv("AFTERBUY_PARTNER_ID", ""),
		AfterbuyPartnerToken: getEnv("AFTERBUY_PARTNER_TOKEN", ""),
		AfterbuyAccountToken: getEnv("AFTERBUY_ACCOUNT_TOKEN", ""),
		AfterbuyUserID:       getEnv("AFTERBUY_USER_ID", ""),
		AfterbuyUserPassword: getEnv("AFTERBUY_USER_PASSWORD", ""),
		AfterbuyTimeout:      getEnvAsDuration("AFTERBUY_TIMEOUT", 10*time.Second),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Lisa Voice Assistant"),
		NotifyRecipients:  getEnv("NOTIFY_RECIPIENTS", ""),
		EmailCooldown:     getEnvAsDuration("EMAIL_COOLDOWN", 2*time.Minute),

		TranscribeProvider: strings.ToLower(getEnv("TRANSCRIBE_PROVIDER", "platform")),
		DeepgramAPIKey:     getEnv("DEEPGRAM_API_KEY", ""),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS"),
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

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsSlice splits a comma separated environment variable, dropping
// blank entries.
func getEnvAsSlice(key string) []string {
	var values []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
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
