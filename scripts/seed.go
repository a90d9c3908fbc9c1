package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/crowndesk/receptionist/internal/infrastructure/clients/postgres"
	"github.com/crowndesk/receptionist/pkg/config"
)

// Development seeder: creates the schema if missing and loads one demo
// practice with providers, patients, policies, and a few appointments.

const demoTenantID = "demo-dental"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS patients (
		id            TEXT PRIMARY KEY,
		tenant_id     TEXT NOT NULL,
		first_name    TEXT NOT NULL,
		last_name     TEXT NOT NULL,
		date_of_birth DATE NOT NULL,
		phone         TEXT,
		email         TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_patients_tenant_dob ON patients (tenant_id, date_of_birth)`,
	`CREATE TABLE IF NOT EXISTS providers (
		id            TEXT PRIMARY KEY,
		tenant_id     TEXT NOT NULL,
		first_name    TEXT NOT NULL,
		last_name     TEXT NOT NULL,
		is_active     BOOLEAN NOT NULL DEFAULT true,
		working_hours JSONB NOT NULL DEFAULT '{}',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
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
	`CREATE INDEX IF NOT EXISTS idx_appointments_provider_window ON appointments (tenant_id, provider_id, start_time)`,
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
	`CREATE TABLE IF NOT EXISTS call_records (
		id                TEXT PRIMARY KEY,
		tenant_id         TEXT NOT NULL,
		external_call_id  TEXT NOT NULL,
		phone_number      TEXT,
		direction         TEXT,
		start_time        TIMESTAMPTZ NOT NULL,
		end_time          TIMESTAMPTZ,
		duration_secs     INTEGER,
		status            TEXT NOT NULL,
		disconnect_reason TEXT,
		summary           TEXT,
		sentiment         TEXT,
		outcome           TEXT,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (tenant_id, external_call_id)
	)`,
	`CREATE TABLE IF NOT EXISTS call_transcripts (
		call_id       TEXT NOT NULL,
		sequence      BIGINT NOT NULL,
		role          TEXT NOT NULL,
		content       TEXT NOT NULL,
		invocation_id TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (call_id, sequence)
	)`,
	`CREATE TABLE IF NOT EXISTS tool_invocations (
		id             TEXT PRIMARY KEY,
		call_id        TEXT NOT NULL,
		tool_name      TEXT NOT NULL,
		arguments      JSONB,
		result         JSONB,
		failure_reason TEXT,
		status         TEXT NOT NULL,
		dispatched_at  TIMESTAMPTZ NOT NULL,
		completed_at   TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS insurance_policies (
		id            TEXT PRIMARY KEY,
		tenant_id     TEXT NOT NULL,
		patient_id    TEXT NOT NULL,
		carrier       TEXT NOT NULL,
		policy_number TEXT NOT NULL,
		group_number  TEXT,
		is_active     BOOLEAN NOT NULL DEFAULT true,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS webhook_events (
		id            TEXT NOT NULL,
		provider      TEXT NOT NULL,
		event_type    TEXT NOT NULL,
		payload       JSONB,
		processed     BOOLEAN NOT NULL DEFAULT false,
		processed_at  TIMESTAMPTZ,
		error_message TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (provider, id)
	)`,
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	ctx := context.Background()
	db := pgClient.DBX()

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, dropping tables before seeding")
		_, err := db.ExecContext(ctx, `
			DROP TABLE IF EXISTS
				webhook_events,
				insurance_policies,
				tool_invocations,
				call_transcripts,
				call_records,
				approval_requests,
				appointments,
				providers,
				patients
			CASCADE
		`)
		if err != nil {
			log.Fatalf("Failed to reset tables: %v", err)
		}
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			log.Fatalf("Failed to apply schema: %v", err)
		}
	}
	log.Println("Schema applied")

	now := time.Now()
	weekdayHours := `{
		"monday":    {"start": "09:00", "end": "17:00"},
		"tuesday":   {"start": "09:00", "end": "17:00"},
		"wednesday": {"start": "09:00", "end": "17:00"},
		"thursday":  {"start": "09:00", "end": "17:00"},
		"friday":    {"start": "09:00", "end": "13:00"}
	}`

	// Providers
	drPatel := uuid.New().String()
	drOkafor := uuid.New().String()
	providerRows := []struct {
		id, first, last string
	}{
		{drPatel, "Anita", "Patel"},
		{drOkafor, "Chidi", "Okafor"},
	}
	for _, p := range providerRows {
		_, err := db.ExecContext(ctx, `
			INSERT INTO providers (id, tenant_id, first_name, last_name, is_active, working_hours, created_at, updated_at)
			VALUES ($1, $2, $3, $4, true, $5, $6, $6)`,
			p.id, demoTenantID, p.first, p.last, weekdayHours, now)
		if err != nil {
			log.Printf("Failed to create provider %s %s: %v", p.first, p.last, err)
		}
	}

	// Patients. Two share a birthday so ambiguous-match handling can be
	// exercised against real data.
	johnSmith := uuid.New().String()
	patientRows := []struct {
		id, first, last, dob, phone string
	}{
		{johnSmith, "John", "Smith", "1985-03-12", "+15550100"},
		{uuid.New().String(), "Jon", "Smythe", "1985-03-12", "+15550101"},
		{uuid.New().String(), "Maria", "Gonzalez", "1990-07-04", "+15550102"},
		{uuid.New().String(), "Wei", "Chen", "1978-11-30", "+15550103"},
	}
	for _, p := range patientRows {
		_, err := db.ExecContext(ctx, `
			INSERT INTO patients (id, tenant_id, first_name, last_name, date_of_birth, phone, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5::date, $6, $7, $7)`,
			p.id, demoTenantID, p.first, p.last, p.dob, p.phone, now)
		if err != nil {
			log.Printf("Failed to create patient %s %s: %v", p.first, p.last, err)
		}
	}

	// Insurance
	_, err = db.ExecContext(ctx, `
		INSERT INTO insurance_policies (id, tenant_id, patient_id, carrier, policy_number, group_number, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, 'Delta Dental', 'DD-4417820', 'GRP-2201', true, $4, $4)`,
		uuid.New().String(), demoTenantID, johnSmith, now)
	if err != nil {
		log.Printf("Failed to create insurance policy: %v", err)
	}

	// Tomorrow's schedule for Dr. Patel leaves two open half-hour slots in
	// the morning
	day := now.AddDate(0, 0, 1)
	slot := func(hour, min int) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, day.Location())
	}
	appointments := []struct {
		start, end time.Time
		apptType   string
	}{
		{slot(9, 30), slot(10, 30), "cleaning"},
		{slot(11, 0), slot(12, 0), "filling"},
		{slot(13, 0), slot(17, 0), "surgery"},
	}
	for _, a := range appointments {
		_, err := db.ExecContext(ctx, `
			INSERT INTO appointments (id, tenant_id, patient_id, provider_id, start_time, end_time, type, status, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 'scheduled', '', $8, $8)`,
			uuid.New().String(), demoTenantID, johnSmith, drPatel, a.start, a.end, a.apptType, now)
		if err != nil {
			log.Printf("Failed to create appointment: %v", err)
		}
	}

	log.Printf("Seed complete: tenant %s, %d providers, %d patients", demoTenantID, len(providerRows), len(patientRows))
}
