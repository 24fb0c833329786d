package store

import (
	"context"

	"github.com/idpsmw/ingest/internal/ingest"
)

var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS idps`,

	`CREATE TABLE IF NOT EXISTS idps.workflow_events (
		id               BIGSERIAL PRIMARY KEY,
		event_timestamp  TIMESTAMPTZ NOT NULL,
		document_type    VARCHAR(10),
		destination_code VARCHAR(20),
		request_id       VARCHAR(50),
		status           VARCHAR(20) NOT NULL,
		file_name        VARCHAR(255) NOT NULL,
		ingested_at      TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS idps.error_events (
		id               BIGSERIAL PRIMARY KEY,
		event_timestamp  TIMESTAMPTZ NOT NULL,
		document_type    VARCHAR(10),
		destination_code VARCHAR(20),
		request_id       VARCHAR(50),
		service_name     VARCHAR(50),
		error_category   VARCHAR(20) NOT NULL,
		comment          TEXT,
		file_name        VARCHAR(255) NOT NULL,
		ingested_at      TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS idps.ingestion_audit_log (
		id               BIGSERIAL PRIMARY KEY,
		file_name        VARCHAR(255) NOT NULL UNIQUE,
		file_type        VARCHAR(50) NOT NULL,
		file_date        DATE NOT NULL,
		records_expected INTEGER NOT NULL DEFAULT 0,
		records_inserted INTEGER NOT NULL DEFAULT 0,
		status           VARCHAR(20) NOT NULL,
		error_message    TEXT,
		started_at       TIMESTAMPTZ NOT NULL,
		ended_at         TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS workflow_events_file_name_idx
		ON idps.workflow_events (file_name)`,

	`CREATE INDEX IF NOT EXISTS error_events_file_name_idx
		ON idps.error_events (file_name)`,
}

// InitSchema creates the idps schema and its tables if they do not exist.
// Idempotent: safe to run against an already provisioned database.
func (s *Postgres) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return &ingest.DatabaseError{Op: "init schema", Err: err}
		}
	}
	return nil
}
