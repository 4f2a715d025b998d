// Package config loads process configuration from the environment.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string

	DatabaseURL string
	RedisURL    string

	Port string

	// Match lifecycle
	DefaultMoveTimeoutMs  int64
	MatchStaleMs          int64 // stale-cleanup age limit: ACTIVE since last activity, WAITING since creation
	QueueStaleMs          int64 // loaded from QUEUE_STALE_MS; the stale cleanup does not read it
	CompletedMatchTTLMs   int64 // how long a COMPLETED match stays in MR
	CleanupIntervalMs     int64
	DepositPollIntervalMs int64
	DepositTimeoutMs      int64
	DisputeWindowMs       int64

	// Matchmaking
	TicketTTLSeconds int
	PendingTTLSeconds int
	SessionTokenTTLSeconds int
	SessionTTLSeconds int
	ActiveMatchTTLSeconds int

	// Settlement
	SettlementEnabled bool
	MinStakeWei       string

	// Security
	JWTSecret       string
	AdminBcryptCost int

	// Settlement / on-chain
	EscrowAddress string

	// HTTP / CORS
	FrontendURL string
}

func Load() *Config {
	godotenv.Load()

	return &Config{
		Environment: getEnv("APP_ENV", "development"),

		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/dorkfun?sslmode=disable"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		Port: getEnv("APP_PORT", "8080"),

		DefaultMoveTimeoutMs:  getEnvInt64("DEFAULT_MOVE_TIMEOUT_MS", 30_000),
		MatchStaleMs:          getEnvInt64("MATCH_STALE_MS", 10*60*1000),
		QueueStaleMs:          getEnvInt64("QUEUE_STALE_MS", 5*60*1000),
		CompletedMatchTTLMs:   getEnvInt64("COMPLETED_MATCH_TTL_MS", 60*60*1000),
		CleanupIntervalMs:     getEnvInt64("CLEANUP_INTERVAL_MS", 30_000),
		DepositPollIntervalMs: getEnvInt64("DEPOSIT_POLL_INTERVAL_MS", 5_000),
		DepositTimeoutMs:      getEnvInt64("DEPOSIT_TIMEOUT_MS", 5*60*1000),
		DisputeWindowMs:       getEnvInt64("DISPUTE_WINDOW_MS", 10*60*1000),

		TicketTTLSeconds:       getEnvInt("TICKET_TTL_SECONDS", 120),
		PendingTTLSeconds:      getEnvInt("PENDING_TTL_SECONDS", 60),
		SessionTokenTTLSeconds: getEnvInt("SESSION_TOKEN_TTL_SECONDS", 120),
		SessionTTLSeconds:      getEnvInt("SESSION_TTL_SECONDS", 24*60*60),
		ActiveMatchTTLSeconds:  getEnvInt("ACTIVE_MATCH_TTL_SECONDS", 24*60*60),

		SettlementEnabled: getEnvBool("SETTLEMENT_ENABLED", false),
		MinStakeWei:       getEnv("MIN_STAKE_WEI", "1000000000000000"),

		JWTSecret:       getEnv("JWT_SECRET", "change-me-in-production"),
		AdminBcryptCost: getEnvInt("ADMIN_BCRYPT_COST", 12),

		EscrowAddress: getEnv("ESCROW_ADDRESS", "0x0000000000000000000000000000000000000000"),

		FrontendURL: getEnv("FRONTEND_URL", ""),
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
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
