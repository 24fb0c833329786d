// Package ingest implements the per-file ingestion pipeline for IDPS export
// files: discovery and classification of files in the input directory,
// tolerant CSV cleaning and parsing, schema checks, row normalization and
// mapping onto the two event shapes, and archiving of processed files.
//
// Persistence is delegated to an EventStore (see orchestrator.go); the
// package itself never opens a database connection.
package ingest

import (
	"time"
)

// ModuleName is the upstream system identifier, used in archive paths.
const ModuleName = "IDPS"

// Category classifies a file as workflow-bearing or error-bearing,
// derived from its type code.
type Category string

const (
	CategoryWorkflow Category = "workflow"
	CategoryError    Category = "error"
	CategoryUnknown  Category = "unknown"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// DetectedFile describes one export file found in the input directory.
// Derived once per scan; immutable apart from IngestionTime, which the
// orchestrator sets when processing starts.
type DetectedFile struct {
	Path          string
	Name          string
	FileType      string
	FileDate      time.Time
	Size          int64
	Category      Category
	IngestionTime time.Time
}

// RawRow is one parsed CSV data row. Columns preserves the header order;
// Values maps column name to cell content, nil for blank cells.
// Line is the 1-based line number in the original file, counting the
// header line and any dropped preamble lines.
type RawRow struct {
	Line    int
	Columns []string
	Values  map[string]*string
}

// NormalizedRow wraps a RawRow with file metadata after generic
// normalization (date and JSON fields).
type NormalizedRow struct {
	SourceFile string
	FileType   string
	FileDate   time.Time
	Category   Category
	IngestedAt time.Time
	Line       int
	// Raw holds the normalized field map. Values are strings except for
	// JSON-like fields that parsed successfully, which hold the parsed
	// structure.
	Raw map[string]any
	// Parsed duplicates successfully parsed JSON fields under a
	// "<name>_parsed" key.
	Parsed map[string]any
}

// WorkflowEvent is a record describing progress of a document through the
// backlog/finish lifecycle. Target table: idps.workflow_events.
type WorkflowEvent struct {
	EventTimestamp  time.Time
	DocumentType    string
	DestinationCode string
	RequestID       string
	Status          string
	FileName        string
	IngestedAt      time.Time
}

// ErrorEvent is a record describing a service-reported failure for a
// document/request. Target table: idps.error_events.
type ErrorEvent struct {
	EventTimestamp  time.Time
	DocumentType    string
	DestinationCode string
	RequestID       string
	ServiceName     string
	ErrorCategory   string
	Comment         *string
	FileName        string
	IngestedAt      time.Time
}

// MappedRecord is the tagged variant produced by the row mapper. Exactly one
// of Workflow or Error is set; the persistence gateway switches on Category.
// Unknown categories carry a workflow-shaped record and are routed to the
// workflow table (documented default, see mapper.go).
type MappedRecord struct {
	Category Category
	Workflow *WorkflowEvent
	Error    *ErrorEvent
}

// AuditLogEntry summarizes the outcome of the most recent ingestion attempt
// for one file name. file_name is globally unique in the audit table:
// re-ingesting a file with the same name updates the existing row.
type AuditLogEntry struct {
	FileName        string
	FileType        string
	FileDate        time.Time
	RecordsExpected int
	RecordsInserted int
	Status          string
	ErrorMessage    *string
	StartedAt       time.Time
	EndedAt         time.Time
}

// Result is the per-file outcome returned to the caller of Run.
type Result struct {
	File          DetectedFile
	Status        string
	RowsProcessed int
	RowsInserted  int
	ErrorMessage  string
	Elapsed       time.Duration
}

// Success reports whether the file was fully ingested and archived.
func (r Result) Success() bool { return r.Status == StatusSuccess }
