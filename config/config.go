package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the matatu feedback service
type Config struct {
	// Server configuration
	Port string

	// Logging
	LogLevel  string
	LogFormat string

	// AppEnv selects production vs development routing for regulator submissions
	AppEnv string

	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// SendGrid configuration
	SendGridAPIKey    string
	SendGridFromName  string
	SendGridFromEmail string

	// Escalation mailboxes
	NTSAEmail       string
	DevEmail        string
	MonitoringEmail string

	// Twilio configuration (SMS and WhatsApp)
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioSMSFrom      string
	TwilioWhatsAppFrom string
	WhatsAppJoinCode   string
	DefaultCountryCode string
	TransportTimeout   time.Duration

	// Dispatch configuration
	AlertRecipients   []string
	DispatchWorkers   int
	DispatchQueueSize int
	UrgentThreshold   int

	// RabbitMQ configuration
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Triage policy override file (YAML)
	TriagePolicyFile string

	// Report submission rate limit
	SubmitRatePerSec float64
	SubmitRateBurst  int
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8080"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		AppEnv: getEnv("APP_ENV", "development"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret"),
		DBName:     getEnv("DB_NAME", "matatu"),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Matatu Feedback"),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", "reports@matatufeedback.co.ke"),

		NTSAEmail:       getEnv("NTSA_EMAIL", "complaints@ntsa.go.ke"),
		DevEmail:        getEnv("DEV_EMAIL", "dev@matatufeedback.co.ke"),
		MonitoringEmail: getEnv("MONITORING_EMAIL", "monitoring@matatufeedback.co.ke"),

		TwilioAccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:    getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioSMSFrom:      getEnv("TWILIO_SMS_FROM", ""),
		TwilioWhatsAppFrom: getEnv("TWILIO_WHATSAPP_FROM", "+14155238886"),
		WhatsAppJoinCode:   getEnv("WHATSAPP_JOIN_CODE", ""),
		DefaultCountryCode: getEnv("DEFAULT_COUNTRY_CODE", "254"),
		TransportTimeout:   getDurationEnv("TRANSPORT_TIMEOUT", 10*time.Second),

		AlertRecipients:   getListEnv("ALERT_RECIPIENTS"),
		DispatchWorkers:   getIntEnv("DISPATCH_WORKERS", 4),
		DispatchQueueSize: getIntEnv("DISPATCH_QUEUE_SIZE", 256),
		UrgentThreshold:   getIntEnv("URGENT_THRESHOLD", 4),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "matatu-feedback"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "report.created"),

		TriagePolicyFile: getEnv("TRIAGE_POLICY_FILE", ""),

		SubmitRatePerSec: getFloatEnv("SUBMIT_RATE_PER_SEC", 20),
		SubmitRateBurst:  getIntEnv("SUBMIT_RATE_BURST", 40),
	}

	return cfg
}

// IsProduction reports whether regulator routing is active
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// TwilioEnabled reports whether Twilio credentials are present
func (c *Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != ""
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated environment variable, dropping empty entries
func getListEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
