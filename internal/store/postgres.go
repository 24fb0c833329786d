// Package store implements the persistence gateway on PostgreSQL via pgx.
//
// Target tables live in the idps schema: workflow_events, error_events and
// ingestion_audit_log (unique on file_name). Event batches are inserted in
// one transaction per file via COPY; the audit upsert runs in its own
// transaction, keyed by file name.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/idpsmw/ingest/internal/ingest"
)

// Postgres implements ingest.EventStore.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

var workflowEventColumns = []string{
	"event_timestamp", "document_type", "destination_code",
	"request_id", "status", "file_name", "ingested_at",
}

// InsertWorkflowEvents bulk-inserts the batch in one transaction. A failure
// rolls back the whole batch: zero rows land for the file.
func (s *Postgres) InsertWorkflowEvents(ctx context.Context, events []ingest.WorkflowEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, &ingest.DatabaseError{Op: "insert workflow events", Err: err}
	}
	defer tx.Rollback(ctx)

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"idps", "workflow_events"},
		workflowEventColumns,
		pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
			e := events[i]
			return []any{
				e.EventTimestamp, e.DocumentType, e.DestinationCode,
				e.RequestID, e.Status, e.FileName, e.IngestedAt,
			}, nil
		}),
	)
	if err != nil {
		return 0, &ingest.DatabaseError{Op: "insert workflow events", Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, &ingest.DatabaseError{Op: "insert workflow events", Err: err}
	}

	return int(n), nil
}

var errorEventColumns = []string{
	"event_timestamp", "document_type", "destination_code", "request_id",
	"service_name", "error_category", "comment", "file_name", "ingested_at",
}

// InsertErrorEvents bulk-inserts the batch in one transaction, rolling back
// entirely on failure.
func (s *Postgres) InsertErrorEvents(ctx context.Context, events []ingest.ErrorEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, &ingest.DatabaseError{Op: "insert error events", Err: err}
	}
	defer tx.Rollback(ctx)

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"idps", "error_events"},
		errorEventColumns,
		pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
			e := events[i]
			return []any{
				e.EventTimestamp, e.DocumentType, e.DestinationCode, e.RequestID,
				e.ServiceName, e.ErrorCategory, toPgText(e.Comment), e.FileName, e.IngestedAt,
			}, nil
		}),
	)
	if err != nil {
		return 0, &ingest.DatabaseError{Op: "insert error events", Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, &ingest.DatabaseError{Op: "insert error events", Err: err}
	}

	return int(n), nil
}

// UpsertAuditLog converges the audit trail to one row per file name. An
// existing row is updated in place (started_at preserved from the first
// attempt); otherwise a new row is inserted. Find-then-write runs inside one
// transaction with the existing row locked.
func (s *Postgres) UpsertAuditLog(ctx context.Context, entry ingest.AuditLogEntry) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, &ingest.DatabaseError{Op: "upsert audit log", Err: err}
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM idps.ingestion_audit_log WHERE file_name = $1 FOR UPDATE`,
		entry.FileName,
	).Scan(&id)

	switch {
	case err == nil:
		_, err = tx.Exec(ctx,
			`UPDATE idps.ingestion_audit_log
			 SET file_type = $1, file_date = $2, records_expected = $3,
			     records_inserted = $4, status = $5, error_message = $6, ended_at = $7
			 WHERE id = $8`,
			entry.FileType, entry.FileDate, entry.RecordsExpected,
			entry.RecordsInserted, entry.Status, toPgText(entry.ErrorMessage), entry.EndedAt,
			id,
		)
		if err != nil {
			return 0, &ingest.DatabaseError{Op: "upsert audit log", Err: err}
		}

	case errors.Is(err, pgx.ErrNoRows):
		err = tx.QueryRow(ctx,
			`INSERT INTO idps.ingestion_audit_log
			     (file_name, file_type, file_date, records_expected, records_inserted,
			      status, error_message, started_at, ended_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id`,
			entry.FileName, entry.FileType, entry.FileDate, entry.RecordsExpected,
			entry.RecordsInserted, entry.Status, toPgText(entry.ErrorMessage),
			entry.StartedAt, entry.EndedAt,
		).Scan(&id)
		if err != nil {
			return 0, &ingest.DatabaseError{Op: "upsert audit log", Err: err}
		}

	default:
		return 0, &ingest.DatabaseError{Op: "upsert audit log", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, &ingest.DatabaseError{Op: "upsert audit log", Err: err}
	}

	return id, nil
}

// AuditLogRecord is one persisted audit row, as read back for reporting.
type AuditLogRecord struct {
	ID int64
	ingest.AuditLogEntry
}

// RecentAuditLogs returns the most recent audit rows, newest first.
func (s *Postgres) RecentAuditLogs(ctx context.Context, limit int) ([]AuditLogRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, file_name, file_type, file_date, records_expected, records_inserted,
		        status, error_message, started_at, ended_at
		 FROM idps.ingestion_audit_log
		 ORDER BY ended_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, &ingest.DatabaseError{Op: "read audit log", Err: err}
	}
	defer rows.Close()

	var records []AuditLogRecord
	for rows.Next() {
		var r AuditLogRecord
		var errMsg pgtype.Text
		var fileDate time.Time
		if err := rows.Scan(&r.ID, &r.FileName, &r.FileType, &fileDate,
			&r.RecordsExpected, &r.RecordsInserted, &r.Status, &errMsg,
			&r.StartedAt, &r.EndedAt); err != nil {
			return nil, &ingest.DatabaseError{Op: "read audit log", Err: err}
		}
		r.FileDate = fileDate
		if errMsg.Valid {
			r.ErrorMessage = &errMsg.String
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &ingest.DatabaseError{Op: "read audit log", Err: err}
	}

	return records, nil
}

// EventCounts returns total rows in the two event tables.
func (s *Postgres) EventCounts(ctx context.Context) (workflow, errorEvents int64, err error) {
	if err = s.pool.QueryRow(ctx,
		`SELECT count(*) FROM idps.workflow_events`).Scan(&workflow); err != nil {
		return 0, 0, &ingest.DatabaseError{Op: "count workflow events", Err: err}
	}
	if err = s.pool.QueryRow(ctx,
		`SELECT count(*) FROM idps.error_events`).Scan(&errorEvents); err != nil {
		return 0, 0, &ingest.DatabaseError{Op: "count error events", Err: err}
	}
	return workflow, errorEvents, nil
}

func toPgText(s *string) pgtype.Text {
	if s == nil || *s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}
