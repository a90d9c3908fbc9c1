package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Voice    VoiceConfig
	Webhook  WebhookConfig
	OTEL     OTELConfig
	Env      string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// VoiceConfig holds call-session and tool tunables.
// Thresholds are configuration, not constants, so individual tenants can be
// tuned without a redeploy.
type VoiceConfig struct {
	ReadToolTimeout     time.Duration
	MutationToolTimeout time.Duration
	KeepaliveDeadline   time.Duration
	IdleTimeout         time.Duration
	MalformedFrameLimit int
	MatchThreshold      float64
	MatchTieBand        float64
	SlotStepMinutes     int
	DefaultSlotMinutes  int
	ToolRateLimit       int
	ToolRateWindow      time.Duration
	TransferNumber      string
}

// WebhookConfig holds post-call webhook configuration
type WebhookConfig struct {
	SigningSecret string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "crowndesk_receptionist"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Voice: VoiceConfig{
			ReadToolTimeout:     getEnvAsDuration("VOICE_READ_TOOL_TIMEOUT", 10*time.Second),
			MutationToolTimeout: getEnvAsDuration("VOICE_MUTATION_TOOL_TIMEOUT", 15*time.Second),
			KeepaliveDeadline:   getEnvAsDuration("VOICE_KEEPALIVE_DEADLINE", 2*time.Second),
			IdleTimeout:         getEnvAsDuration("VOICE_IDLE_TIMEOUT", 5*time.Minute),
			MalformedFrameLimit: getEnvAsInt("VOICE_MALFORMED_FRAME_LIMIT", 5),
			MatchThreshold:      getEnvAsFloat("VOICE_MATCH_THRESHOLD", 0.82),
			MatchTieBand:        getEnvAsFloat("VOICE_MATCH_TIE_BAND", 0.05),
			SlotStepMinutes:     getEnvAsInt("VOICE_SLOT_STEP_MINUTES", 15),
			DefaultSlotMinutes:  getEnvAsInt("VOICE_DEFAULT_SLOT_MINUTES", 30),
			ToolRateLimit:       getEnvAsInt("VOICE_TOOL_RATE_LIMIT", 60),
			ToolRateWindow:      getEnvAsDuration("VOICE_TOOL_RATE_WINDOW", time.Minute),
			TransferNumber:      getEnv("VOICE_TRANSFER_NUMBER", ""),
		},
		Webhook: WebhookConfig{
			SigningSecret: getEnv("VOICE_WEBHOOK_SECRET", ""),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "crowndesk-receptionist"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Env: getEnv("APP_ENV", "development"),
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ToolTimeout returns the timeout for a tool, based on whether it mutates state
func (c *VoiceConfig) ToolTimeout(mutating bool) time.Duration {
	if mutating {
		return c.MutationToolTimeout
	}
	return c.ReadToolTimeout
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
