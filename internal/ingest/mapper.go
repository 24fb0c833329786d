package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Accepted header spellings per logical field. The upstream export has
// shipped several naming variants over time; resolution tries them in order
// and also tolerates a BOM-prefixed form of each.
var (
	timestampColumns   = []string{"Timestamp", "timestamp", "TIMESTAMP"}
	documentColumns    = []string{"Type de document", "type_de_document", "Document Type"}
	destinationColumns = []string{"Code de destination", "code_de_destination", "Destination Code"}
	requestIDColumns   = []string{"Request ID", "request_id", "RequestID", "requestId"}
	serviceColumns     = []string{"Service", "service", "service_name", "SERVICE"}
	commentColumns     = []string{"infos_comment", "comment", "Comment"}
)

var workflowStatuses = map[string]string{
	"WO-BACKLOG": "BACKLOG",
	"WO-FINISH":  "FINISH",
}

var errorCategories = map[string]string{
	"QC-ERROR":    "QC_ERROR",
	"PERSO-ERROR": "PERSO_ERROR",
	"SUP-ERROR":   "SUP_ERROR",
}

// MapRow maps a normalized row onto the target record shape for its
// category. Unknown categories are given a workflow-shaped record; the
// persistence gateway routes them to the workflow table (documented default
// inherited from the upstream system).
func MapRow(row NormalizedRow, file DetectedFile) MappedRecord {
	switch file.Category {
	case CategoryError:
		return MappedRecord{Category: CategoryError, Error: mapErrorEvent(row, file)}
	default:
		return MappedRecord{Category: file.Category, Workflow: mapWorkflowEvent(row, file)}
	}
}

func mapWorkflowEvent(row NormalizedRow, file DetectedFile) *WorkflowEvent {
	status, ok := workflowStatuses[file.FileType]
	if !ok {
		status = file.FileType
	}

	return &WorkflowEvent{
		EventTimestamp:  eventTimestamp(row),
		DocumentType:    resolveColumn(row.Raw, documentColumns...),
		DestinationCode: resolveColumn(row.Raw, destinationColumns...),
		RequestID:       resolveColumn(row.Raw, requestIDColumns...),
		Status:          status,
		FileName:        row.SourceFile,
		IngestedAt:      row.IngestedAt,
	}
}

func mapErrorEvent(row NormalizedRow, file DetectedFile) *ErrorEvent {
	category, ok := errorCategories[file.FileType]
	if !ok {
		category = file.FileType
	}

	return &ErrorEvent{
		EventTimestamp:  eventTimestamp(row),
		DocumentType:    resolveColumn(row.Raw, documentColumns...),
		DestinationCode: resolveColumn(row.Raw, destinationColumns...),
		RequestID:       resolveColumn(row.Raw, requestIDColumns...),
		ServiceName:     resolveColumn(row.Raw, serviceColumns...),
		ErrorCategory:   category,
		Comment:         parseComment(resolveColumn(row.Raw, commentColumns...)),
		FileName:        row.SourceFile,
		IngestedAt:      row.IngestedAt,
	}
}

// resolveColumn tries each candidate header name in order, plus a
// BOM-prefixed variant of each; the first non-blank value wins. Returns ""
// when nothing matches.
func resolveColumn(raw map[string]any, names ...string) string {
	for _, name := range names {
		for _, key := range []string{name, bom + name} {
			if s := stringValue(raw[key]); s != "" {
				return s
			}
		}
	}
	return ""
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// eventTimestamp parses the Timestamp-like column, normalizing the space
// separator to the ISO 'T' form first. Falls back to the row's ingestion
// timestamp when absent or unparsable.
func eventTimestamp(row NormalizedRow) time.Time {
	value := resolveColumn(row.Raw, timestampColumns...)
	if value == "" {
		return row.IngestedAt
	}
	return parseEventTimestamp(value, row.IngestedAt)
}

var eventTimestampLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseEventTimestamp(value string, fallback time.Time) time.Time {
	normalized := strings.Replace(strings.TrimSpace(value), " ", "T", 1)
	for _, layout := range eventTimestampLayouts {
		if t, err := time.Parse(layout, normalized); err == nil {
			return t
		}
	}
	return fallback
}

// parseComment interprets the comment cell. A JSON object yields its "raw"
// key (falling back to the literal text when the key is absent); any other
// JSON value is rendered as text; non-JSON text is kept as-is. Blank input
// yields nil.
func parseComment(value string) *string {
	if value == "" {
		return nil
	}

	var decoded any
	if err := json.Unmarshal([]byte(value), &decoded); err != nil {
		return &value
	}

	switch t := decoded.(type) {
	case map[string]any:
		if raw, ok := t["raw"].(string); ok && raw != "" {
			return &raw
		}
		return &value
	case nil:
		return &value
	case string:
		return &t
	default:
		s := fmt.Sprint(t)
		return &s
	}
}
