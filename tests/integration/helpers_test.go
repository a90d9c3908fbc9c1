//go:build integration

package integration

import (
	"database/sql"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crowndesk/receptionist/internal/infrastructure/clients/postgres"
	"github.com/crowndesk/receptionist/internal/infrastructure/clients/redis"
	"github.com/crowndesk/receptionist/pkg/config"
)

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

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	cfg := &config.RedisConfig{
		Host:     getEnv("TEST_REDIS_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_REDIS_PORT", 6379),
		Password: getEnv("TEST_REDIS_PASSWORD", ""),
		DB:       getEnvAsInt("TEST_REDIS_DB", 0),
	}

	client, err := redis.NewClient(cfg)
	require.NoError(t, err, "Failed to create redis client")
	return client
}

func newTestPostgresClient(t *testing.T) *postgres.Client {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		Database: getEnv("TEST_DB_NAME", "crowndesk_receptionist_test"),
		SSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}

	client, err := postgres.NewClient(cfg)
	require.NoError(t, err, "Failed to create postgres client")
	return client
}

// ensureApprovalSchema creates the tables the approval flow touches. The DDL
// mirrors scripts/seed.go so the tests run against a blank database.
func ensureApprovalSchema(t *testing.T, db *sql.DB) {
	t.Helper()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS appointments (
			id          TEXT PRIMARY KEY,
			tenant_id   TEXT NOT NULL,
			patient_id  TEXT NOT NULL,
			provider_id TEXT NOT NULL,
			start_time  TIMESTAMPTZ NOT NULL,
			end_time    TIMESTAMPTZ NOT NULL,
			type        TEXT NOT NULL,
			status      TEXT NOT NULL,
			notes       TEXT,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS approval_requests (
			id              TEXT PRIMARY KEY,
			tenant_id       TEXT NOT NULL,
			session_id      TEXT NOT NULL,
			entity_type     TEXT NOT NULL,
			entity_id       TEXT NOT NULL,
			mutation_type   TEXT NOT NULL,
			idempotency_key TEXT NOT NULL,
			before_state    JSONB,
			after_state     JSONB NOT NULL,
			rationale       TEXT,
			status          TEXT NOT NULL,
			reviewed_by     TEXT,
			reviewed_at     TIMESTAMPTZ,
			review_note     TEXT,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_approvals_idempotency
			ON approval_requests (tenant_id, idempotency_key) WHERE status = 'pending'`,
	}
	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
}

func ensureWebhookSchema(t *testing.T, db *sql.DB) {
	t.Helper()

	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS webhook_events (
		id            TEXT NOT NULL,
		provider      TEXT NOT NULL,
		event_type    TEXT NOT NULL,
		payload       JSONB,
		processed     BOOLEAN NOT NULL DEFAULT false,
		processed_at  TIMESTAMPTZ,
		error_message TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (provider, id)
	)`)
	require.NoError(t, err)
}

func cleanupTenantData(t *testing.T, db *sql.DB, tenantID string) {
	t.Helper()
	for _, table := range []string{"approval_requests", "appointments"} {
		_, err := db.Exec("DELETE FROM "+table+" WHERE tenant_id = $1", tenantID)
		require.NoError(t, err)
	}
}
