package ingest

import (
	"regexp"
	"time"
)

// File name grammar: IDPS-TG-EID-<TYPE>-<YYYY-MM-DD>.csv where <TYPE> is one
// or more uppercase letters/hyphens.
var fileNamePattern = regexp.MustCompile(`^IDPS-TG-EID-([A-Z-]+)-(\d{4}-\d{2}-\d{2})\.csv$`)

var (
	workflowTypes = map[string]bool{
		"WO-BACKLOG": true,
		"WO-FINISH":  true,
	}
	errorTypes = map[string]bool{
		"QC-ERROR":    true,
		"PERSO-ERROR": true,
		"SUP-ERROR":   true,
	}
)

// FileID is the classification derived from a file name.
type FileID struct {
	FileType string
	Date     time.Time
	Category Category
}

// Classify parses fileName against the export grammar and derives type, date
// and category. Returns false if the name does not match exactly or the date
// segment is not a valid calendar date. Pure, no I/O.
func Classify(fileName string) (FileID, bool) {
	m := fileNamePattern.FindStringSubmatch(fileName)
	if m == nil {
		return FileID{}, false
	}

	date, err := time.Parse("2006-01-02", m[2])
	if err != nil {
		return FileID{}, false
	}

	return FileID{
		FileType: m[1],
		Date:     date,
		Category: categoryOf(m[1]),
	}, true
}

// categoryOf maps a file type code onto its category. Unmapped codes fall
// into CategoryUnknown but are still processed.
func categoryOf(fileType string) Category {
	switch {
	case workflowTypes[fileType]:
		return CategoryWorkflow
	case errorTypes[fileType]:
		return CategoryError
	default:
		return CategoryUnknown
	}
}
