package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// isoTimestamp is the canonical text form date-like fields are rewritten to.
const isoTimestamp = "2006-01-02T15:04:05"

// Field name fragments that trigger normalization (case-insensitive
// substring match).
var (
	dateFieldHints = []string{"date", "timestamp", "time", "created", "updated"}
	jsonFieldHints = []string{"json", "data", "payload", "metadata"}
)

// Layouts tried, in order, when normalizing a date-like field.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02/01/2006 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999",
	"2006/01/02",
	"02-01-2006",
}

// TransformResult aggregates the outcome of normalizing one file's rows.
type TransformResult struct {
	Rows             []NormalizedRow
	OriginalCount    int
	TransformedCount int
	Errors           []string
}

// SuccessRate returns the share of rows that survived transformation, in
// percent. Reported, not enforced as a gate.
func (r TransformResult) SuccessRate() float64 {
	if r.OriginalCount == 0 {
		return 0
	}
	return float64(r.TransformedCount) / float64(r.OriginalCount) * 100
}

// Transform normalizes every row and wraps it with file metadata. One bad
// row never aborts the file: a row whose transform fails is skipped and
// recorded as an error string carrying its origin line number.
func Transform(rows []RawRow, file DetectedFile, ingestedAt time.Time) TransformResult {
	res := TransformResult{OriginalCount: len(rows)}

	for _, row := range rows {
		normalized, err := transformRow(row, file, ingestedAt)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: %v", row.Line, err))
			continue
		}
		res.Rows = append(res.Rows, normalized)
	}

	res.TransformedCount = len(res.Rows)
	return res
}

func transformRow(row RawRow, file DetectedFile, ingestedAt time.Time) (NormalizedRow, error) {
	if len(row.Columns) == 0 {
		return NormalizedRow{}, errors.New("row has no fields")
	}

	raw := make(map[string]any, len(row.Values))
	for name, value := range row.Values {
		if value == nil {
			raw[name] = nil
		} else {
			raw[name] = *value
		}
	}

	normalized := NormalizedRow{
		SourceFile: file.Name,
		FileType:   file.FileType,
		FileDate:   file.FileDate,
		Category:   file.Category,
		IngestedAt: ingestedAt,
		Line:       row.Line,
		Raw:        raw,
		Parsed:     map[string]any{},
	}

	normalizeDates(normalized.Raw)
	extractJSONFields(normalized.Raw, normalized.Parsed)

	return normalized, nil
}

// normalizeDates rewrites date-like fields to ISO-8601 text. Values that
// match none of the known layouts are left unchanged.
func normalizeDates(raw map[string]any) {
	for name, value := range raw {
		if !nameContains(name, dateFieldHints) {
			continue
		}
		s, ok := value.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		if t, ok := parseDate(s); ok {
			raw[name] = t.Format(isoTimestamp)
		}
	}
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// extractJSONFields parses JSON-like fields in place and duplicates the
// parsed structure under a "<name>_parsed" key. Invalid JSON leaves the
// field untouched.
func extractJSONFields(raw map[string]any, parsed map[string]any) {
	for name, value := range raw {
		if !nameContains(name, jsonFieldHints) {
			continue
		}
		s, ok := value.(string)
		if !ok || s == "" {
			continue
		}
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			continue
		}
		raw[name] = decoded
		parsed[name+"_parsed"] = decoded
	}
}

func nameContains(name string, hints []string) bool {
	lower := strings.ToLower(name)
	for _, h := range hints {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}
