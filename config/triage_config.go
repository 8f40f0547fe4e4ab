package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateWorkerID creates a unique worker ID using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "worker"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Storage
	RedisURL    string
	DatabaseURL string
	MongoDBURL  string
	MongoDBName string

	// OpenAI
	OpenAIAPIKey   string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeoutSec  int

	// Twilio
	TwilioAccountSID        string
	TwilioAuthToken         string
	TwilioWhatsAppFrom      string
	TwilioValidateSignature bool
	PublicBaseURL           string

	// Admin
	AdminWhatsApp  []string
	AdminJWTSecret string

	// Reply
	ReplyStyle      string
	WorkshopName    string
	WorkshopAddress string
	WorkshopMapsURL string
	WorkshopHours   string
	WorkshopPhone   string

	// Conversation
	HistoryLimit      int
	HandoffCooldown   time.Duration
	AutoClaimMinScore int
	InboundRateLimit  int

	// Follow-up
	FollowUpEnabled        bool
	FollowUpStage1Delay    time.Duration
	FollowUpStage2Delay    time.Duration
	FollowUpMaxPerCustomer int
	FollowUpCooldown       time.Duration
	FollowUpScanInterval   time.Duration
	FollowUpWorkers        int

	// Worker / Consumer (Redis Stream)
	WorkerID                string
	ConsumerBatchSize       int
	ConsumerBlockMS         int
	ConsumerMaxRetries      int
	ConsumerPendingCheckSec int
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Storage
		RedisURL:    getEnv("REDIS_URL", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "triage"),

		// OpenAI
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 300),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.4),
		LLMTimeoutSec:  getEnvInt("LLM_TIMEOUT_SEC", 8),

		// Twilio
		TwilioAccountSID:        getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:         getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppFrom:      getEnv("TWILIO_WHATSAPP_FROM", ""),
		TwilioValidateSignature: getEnvBool("TWILIO_VALIDATE_SIGNATURE", false),
		PublicBaseURL:           strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),

		// Admin
		AdminWhatsApp:  getEnvSlice("ADMIN_WHATSAPP", nil),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		// Reply
		ReplyStyle:      getEnv("REPLY_STYLE", "formal"),
		WorkshopName:    getEnv("WORKSHOP_NAME", "Bengkel"),
		WorkshopAddress: getEnv("WORKSHOP_ADDRESS", ""),
		WorkshopMapsURL: getEnv("WORKSHOP_MAPS_URL", ""),
		WorkshopHours:   getEnv("WORKSHOP_HOURS", ""),
		WorkshopPhone:   getEnv("WORKSHOP_PHONE", ""),

		// Conversation
		HistoryLimit:      getEnvInt("HISTORY_LIMIT", 12),
		HandoffCooldown:   time.Duration(getEnvInt("HANDOFF_COOLDOWN_MIN", 30)) * time.Minute,
		AutoClaimMinScore: getEnvInt("AUTO_CLAIM_MIN_SCORE", 70),
		InboundRateLimit:  getEnvInt("INBOUND_RATE_LIMIT", 20),

		// Follow-up
		FollowUpEnabled:        getEnvBool("FOLLOWUP_ENABLED", true),
		FollowUpStage1Delay:    time.Duration(getEnvInt("FOLLOWUP_STAGE1_DELAY_MIN", 60)) * time.Minute,
		FollowUpStage2Delay:    time.Duration(getEnvInt("FOLLOWUP_STAGE2_DELAY_MIN", 1440)) * time.Minute,
		FollowUpMaxPerCustomer: getEnvInt("FOLLOWUP_MAX_PER_CUSTOMER", 0),
		FollowUpCooldown:       time.Duration(getEnvInt("FOLLOWUP_COOLDOWN_MIN", 0)) * time.Minute,
		FollowUpScanInterval:   time.Duration(getEnvInt("FOLLOWUP_SCAN_INTERVAL_SEC", 60)) * time.Second,
		FollowUpWorkers:        getEnvInt("FOLLOWUP_WORKERS", 4),

		// Worker
		WorkerID:                getEnv("WORKER_ID", generateWorkerID()),
		ConsumerBatchSize:       getEnvInt("CONSUMER_BATCH_SIZE", 10),
		ConsumerBlockMS:         getEnvInt("CONSUMER_BLOCK_MS", 5000),
		ConsumerMaxRetries:      getEnvInt("CONSUMER_MAX_RETRIES", 3),
		ConsumerPendingCheckSec: getEnvInt("CONSUMER_PENDING_CHECK_SEC", 30),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Port) == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	if c.HistoryLimit < 1 {
		errs = append(errs, fmt.Errorf("HISTORY_LIMIT must be >= 1, got %d", c.HistoryLimit))
	}
	if c.FollowUpStage1Delay < 0 || c.FollowUpStage2Delay < 0 {
		errs = append(errs, errors.New("follow-up delays must not be negative"))
	}
	if c.FollowUpCooldown < 0 || c.HandoffCooldown < 0 {
		errs = append(errs, errors.New("cooldowns must not be negative"))
	}
	if c.FollowUpScanInterval <= 0 {
		errs = append(errs, errors.New("FOLLOWUP_SCAN_INTERVAL_SEC must be positive"))
	}
	if c.TwilioValidateSignature && (c.TwilioAuthToken == "" || c.PublicBaseURL == "") {
		errs = append(errs, errors.New("TWILIO_VALIDATE_SIGNATURE needs TWILIO_AUTH_TOKEN and PUBLIC_BASE_URL"))
	}
	return errors.Join(errs...)
}

// TwilioEnabled reports whether outbound sends can go to Twilio.
func (c *Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioWhatsAppFrom != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
