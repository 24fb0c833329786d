package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"
)

// EventStore is the persistence gateway the orchestrator writes through.
// Implementations own their transaction boundaries: one transaction for a
// full event batch (all-or-nothing per file), a separate one for the audit
// upsert.
type EventStore interface {
	InsertWorkflowEvents(ctx context.Context, events []WorkflowEvent) (int, error)
	InsertErrorEvents(ctx context.Context, events []ErrorEvent) (int, error)
	UpsertAuditLog(ctx context.Context, entry AuditLogEntry) (int64, error)
}

// Options configures an Orchestrator.
type Options struct {
	InputDir    string
	ArchiveDir  string
	ErrorDir    string
	Separator   rune
	Encoding    string
	Logger      *slog.Logger
	Now         func() time.Time // defaults to time.Now
}

// Orchestrator drives one ingestion pass: detect files, then run each file
// through parse, schema check, transform, map, persist, mark-processed,
// archive and audit. Files are processed sequentially, start to finish.
type Orchestrator struct {
	fs       afero.Fs
	store    EventStore
	detector *Detector
	archiver *Archiver
	sep      rune
	encoding string
	log      *slog.Logger
	now      func() time.Time
}

func New(fsys afero.Fs, store EventStore, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		fs:       fsys,
		store:    store,
		detector: NewDetector(fsys, opts.InputDir, logger),
		archiver: NewArchiver(fsys, opts.ArchiveDir, opts.ErrorDir, logger),
		sep:      opts.Separator,
		encoding: opts.Encoding,
		log:      logger,
		now:      now,
	}
}

// Run executes one full ingestion pass and returns one Result per detected
// file. Only a directory-level detection failure propagates as an error;
// per-file failures are reported in the results.
func (o *Orchestrator) Run(ctx context.Context) ([]Result, error) {
	o.log.Info("ingestion started")

	files, err := o.detector.Detect()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		o.log.Info("no new export files detected")
		return nil, nil
	}
	o.log.Info("export files detected", "count", len(files))

	results := make([]Result, 0, len(files))
	for _, file := range files {
		results = append(results, o.processFile(ctx, file))
	}

	var successes, errors, totalRows int
	for _, r := range results {
		if r.Success() {
			successes++
		} else {
			errors++
		}
		totalRows += r.RowsInserted
	}
	o.log.Info("ingestion finished",
		"files", len(results),
		"successes", successes,
		"errors", errors,
		"rows_inserted", totalRows,
	)

	return results, nil
}

// processFile walks one file through the pipeline to a terminal state. It
// never lets an error escape: every failure is converted into an error
// Result via handleError.
func (o *Orchestrator) processFile(ctx context.Context, file DetectedFile) Result {
	start := o.now()
	file.IngestionTime = start
	log := o.log.With("file", file.Name)
	log.Info("processing started", "type", file.FileType, "size", file.Size)

	data, err := afero.ReadFile(o.fs, file.Path)
	if err != nil {
		ve := &ValidationError{File: file.Name, Err: err}
		log.Error("file read failed", "error", err)
		return o.handleError(ctx, file, ve.Error(), 0, start)
	}

	rows, err := ParseCSV(data, o.sep, o.encoding)
	if err != nil {
		log.Error("parse failed", "error", err)
		return o.handleError(ctx, file, err.Error(), 0, start)
	}

	if err := CheckSchema(rows, file.FileType); err != nil {
		log.Error("schema check failed", "error", err)
		return o.handleError(ctx, file, fmt.Sprintf("invalid schema: %v", err), 0, start)
	}

	tr := Transform(rows, file, start)
	for _, msg := range tr.Errors {
		log.Warn("row skipped", "reason", msg)
	}
	log.Info("rows transformed",
		"original", tr.OriginalCount,
		"transformed", tr.TransformedCount,
		"success_rate", fmt.Sprintf("%.1f%%", tr.SuccessRate()),
	)
	if tr.TransformedCount == 0 {
		return o.handleError(ctx, file, "no rows transformed", tr.OriginalCount, start)
	}

	records := make([]MappedRecord, 0, len(tr.Rows))
	for _, row := range tr.Rows {
		records = append(records, MapRow(row, file))
	}

	inserted, err := o.insertEvents(ctx, records, file.Category)
	if err != nil {
		log.Error("event insert failed", "error", err)
		return o.handleError(ctx, file, err.Error(), tr.TransformedCount, start)
	}
	if inserted == 0 {
		return o.handleError(ctx, file, "no rows inserted", tr.TransformedCount, start)
	}

	// Mark processed before the move: if archiving fails after a successful
	// insert, the same run must not re-insert the rows.
	o.detector.MarkProcessed(file.Path, file)

	if _, err := o.archiver.Archive(file.Path, file, true); err != nil {
		log.Error("archive failed", "error", err)
		return o.handleError(ctx, file, err.Error(), tr.TransformedCount, start)
	}

	if _, err := o.store.UpsertAuditLog(ctx, AuditLogEntry{
		FileName:        file.Name,
		FileType:        file.FileType,
		FileDate:        file.FileDate,
		RecordsExpected: tr.OriginalCount,
		RecordsInserted: inserted,
		Status:          StatusSuccess,
		StartedAt:       start,
		EndedAt:         o.now(),
	}); err != nil {
		log.Error("audit upsert failed", "error", err)
		return o.handleError(ctx, file, err.Error(), tr.TransformedCount, start)
	}

	elapsed := o.now().Sub(start)
	log.Info("processing finished", "rows_inserted", inserted, "elapsed", elapsed)

	return Result{
		File:          file,
		Status:        StatusSuccess,
		RowsProcessed: tr.OriginalCount,
		RowsInserted:  inserted,
		Elapsed:       elapsed,
	}
}

// insertEvents routes mapped records to the correct target table by
// category. Unknown categories default to the workflow table.
func (o *Orchestrator) insertEvents(ctx context.Context, records []MappedRecord, category Category) (int, error) {
	if category == CategoryUnknown {
		o.log.Warn("unknown category, routing to workflow events", "category", category)
	}

	if category == CategoryError {
		events := make([]ErrorEvent, 0, len(records))
		for _, rec := range records {
			if rec.Error != nil {
				events = append(events, *rec.Error)
			}
		}
		return o.store.InsertErrorEvents(ctx, events)
	}

	events := make([]WorkflowEvent, 0, len(records))
	for _, rec := range records {
		if rec.Workflow != nil {
			events = append(events, *rec.Workflow)
		}
	}
	return o.store.InsertWorkflowEvents(ctx, events)
}

// handleError drives the failure path: best-effort archive to the error tree
// (skipped when the file is already gone), then a best-effort audit upsert
// with status error. Failures inside error handling are logged and
// swallowed; they must never escape processFile.
func (o *Orchestrator) handleError(ctx context.Context, file DetectedFile, msg string, rowsProcessed int, start time.Time) Result {
	log := o.log.With("file", file.Name)

	if _, err := o.archiver.Archive(file.Path, file, false); err != nil {
		log.Error("error-tree archive failed", "error", err)
	}

	if _, err := o.store.UpsertAuditLog(ctx, AuditLogEntry{
		FileName:        file.Name,
		FileType:        file.FileType,
		FileDate:        file.FileDate,
		RecordsExpected: rowsProcessed,
		RecordsInserted: 0,
		Status:          StatusError,
		ErrorMessage:    &msg,
		StartedAt:       start,
		EndedAt:         o.now(),
	}); err != nil {
		log.Error("audit upsert failed during error handling", "error", err)
	}

	return Result{
		File:          file,
		Status:        StatusError,
		RowsProcessed: rowsProcessed,
		RowsInserted:  0,
		ErrorMessage:  msg,
		Elapsed:       o.now().Sub(start),
	}
}
