package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Reference tables (users, listings, reservations) are normally owned by the booking
// platform; they are created here so the service can run against an empty database.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email         TEXT NOT NULL UNIQUE,
		full_name     TEXT NOT NULL,
		phone_number  TEXT,
		role          TEXT NOT NULL CHECK (role IN ('GUEST', 'HOST', 'STAFF', 'ADMIN')),
		password_hash TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS listings (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		address    TEXT NOT NULL,
		city       TEXT,
		state      TEXT,
		zip_code   TEXT,
		country    TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		agreement_number TEXT NOT NULL UNIQUE,
		listing_id       UUID NOT NULL REFERENCES listings(id),
		guest_id         UUID NOT NULL REFERENCES users(id),
		check_in_date    TIMESTAMPTZ NOT NULL,
		check_out_date   TIMESTAMPTZ NOT NULL,
		status           TEXT NOT NULL DEFAULT 'CONFIRMED',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS emergency_reports (
		id                    UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		reservation_id        UUID NOT NULL,
		reported_by_id        UUID NOT NULL,
		emergency_type        TEXT NOT NULL,
		description           TEXT NOT NULL,
		photo1_url            TEXT,
		photo2_url            TEXT,
		status                TEXT NOT NULL DEFAULT 'REPORTED'
			CHECK (status IN ('REPORTED', 'ASSIGNED', 'IN_PROGRESS', 'RESOLVED', 'CLOSED')),
		guidance_instructions TEXT,
		assigned_to_id        UUID,
		assigned_at           TIMESTAMPTZ,
		resolved_at           TIMESTAMPTZ,
		is_hidden             BOOLEAN NOT NULL DEFAULT FALSE,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT ` + constraintReservation + ` FOREIGN KEY (reservation_id) REFERENCES reservations(id),
		CONSTRAINT ` + constraintReportedBy + ` FOREIGN KEY (reported_by_id) REFERENCES users(id),
		CONSTRAINT ` + constraintAssignedTo + ` FOREIGN KEY (assigned_to_id) REFERENCES users(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_emergency_queue ON emergency_reports(is_hidden, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_emergency_status ON emergency_reports(status)`,
	`CREATE INDEX IF NOT EXISTS idx_emergency_assignee ON emergency_reports(assigned_to_id)`,
	`CREATE INDEX IF NOT EXISTS idx_emergency_reservation ON emergency_reports(reservation_id)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id                  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		emergency_report_id UUID NOT NULL REFERENCES emergency_reports(id),
		direction           TEXT NOT NULL DEFAULT 'OUTBOUND',
		recipient_phone     TEXT NOT NULL,
		sender_phone        TEXT NOT NULL,
		message_body        TEXT NOT NULL,
		transport_reference TEXT,
		status              TEXT NOT NULL CHECK (status IN ('PENDING', 'SENT', 'FAILED')),
		sent_at             TIMESTAMPTZ,
		error_message       TEXT,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_report ON messages(emergency_report_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS email_logs (
		id                  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		emergency_report_id UUID NOT NULL REFERENCES emergency_reports(id),
		recipient_email     TEXT NOT NULL,
		cc_emails           TEXT[] NOT NULL DEFAULT '{}',
		bcc_emails          TEXT[] NOT NULL DEFAULT '{}',
		subject             TEXT NOT NULL,
		body_html           TEXT NOT NULL,
		body_text           TEXT NOT NULL,
		status              TEXT NOT NULL CHECK (status IN ('PENDING', 'SENT', 'FAILED')),
		sent_at             TIMESTAMPTZ,
		error_message       TEXT,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_email_logs_report ON email_logs(emergency_report_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS preset_messages (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		label      TEXT NOT NULL UNIQUE,
		content    TEXT NOT NULL,
		category   TEXT NOT NULL DEFAULT '',
		is_active  BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS preset_emails (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		label      TEXT NOT NULL UNIQUE,
		subject    TEXT NOT NULL,
		body_html  TEXT NOT NULL,
		body_text  TEXT NOT NULL,
		category   TEXT NOT NULL DEFAULT '',
		is_active  BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

const (
	constraintReservation = "emergency_reports_reservation_fk"
	constraintReportedBy  = "emergency_reports_reported_by_fk"
	constraintAssignedTo  = "emergency_reports_assigned_to_fk"
)

// EnsureSchema creates missing tables and indexes. Safe to run on every start.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, stmt := range schemaStatements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return tx.Commit(ctx)
}
