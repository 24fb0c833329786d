package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normalizedRow(raw map[string]any) NormalizedRow {
	return NormalizedRow{
		SourceFile: "IDPS-TG-EID-WO-BACKLOG-2024-01-15.csv",
		IngestedAt: time.Date(2024, 1, 16, 8, 0, 0, 0, time.UTC),
		Raw:        raw,
	}
}

func TestMapRowWorkflow(t *testing.T) {
	file := DetectedFile{
		Name:     "IDPS-TG-EID-WO-BACKLOG-2024-01-15.csv",
		FileType: "WO-BACKLOG",
		Category: CategoryWorkflow,
	}

	t.Run("maps columns and translates status", func(t *testing.T) {
		row := normalizedRow(map[string]any{
			"Timestamp":           "2024-01-15T10:00:00",
			"Type de document":    "FORM",
			"Code de destination": "DEST1",
			"Request ID":          "REQ123",
		})

		rec := MapRow(row, file)
		assert.Equal(t, CategoryWorkflow, rec.Category)
		require.NotNil(t, rec.Workflow)
		assert.Nil(t, rec.Error)

		e := rec.Workflow
		assert.Equal(t, "BACKLOG", e.Status)
		assert.Equal(t, "FORM", e.DocumentType)
		assert.Equal(t, "DEST1", e.DestinationCode)
		assert.Equal(t, "REQ123", e.RequestID)
		assert.Equal(t, file.Name, e.FileName)
		assert.Equal(t, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), e.EventTimestamp)
	})

	t.Run("accepts alternate header spellings", func(t *testing.T) {
		row := normalizedRow(map[string]any{
			"timestamp":           "2024-01-15 10:00:00",
			"Document Type":       "CARD",
			"code_de_destination": "DEST2",
			"request_id":          "REQ9",
		})

		rec := MapRow(row, file)
		require.NotNil(t, rec.Workflow)
		assert.Equal(t, "CARD", rec.Workflow.DocumentType)
		assert.Equal(t, "DEST2", rec.Workflow.DestinationCode)
		assert.Equal(t, "REQ9", rec.Workflow.RequestID)
	})

	t.Run("accepts BOM-prefixed headers", func(t *testing.T) {
		row := normalizedRow(map[string]any{
			"\ufeff" + "Timestamp": "2024-01-15T10:00:00",
			"Request ID":        "REQ5",
		})

		rec := MapRow(row, file)
		require.NotNil(t, rec.Workflow)
		assert.Equal(t, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), rec.Workflow.EventTimestamp)
	})

	t.Run("missing timestamp falls back to ingestion time", func(t *testing.T) {
		row := normalizedRow(map[string]any{"Request ID": "REQ1"})

		rec := MapRow(row, file)
		require.NotNil(t, rec.Workflow)
		assert.Equal(t, row.IngestedAt, rec.Workflow.EventTimestamp)
	})

	t.Run("unparsable timestamp falls back to ingestion time", func(t *testing.T) {
		row := normalizedRow(map[string]any{"Timestamp": "soon"})

		rec := MapRow(row, file)
		require.NotNil(t, rec.Workflow)
		assert.Equal(t, row.IngestedAt, rec.Workflow.EventTimestamp)
	})

	t.Run("space separated timestamp parses", func(t *testing.T) {
		row := normalizedRow(map[string]any{"Timestamp": "2024-01-15 10:00:00.000"})

		rec := MapRow(row, file)
		require.NotNil(t, rec.Workflow)
		assert.Equal(t, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), rec.Workflow.EventTimestamp)
	})
}

func TestMapRowError(t *testing.T) {
	file := DetectedFile{
		Name:     "IDPS-TG-EID-QC-ERROR-2024-01-15.csv",
		FileType: "QC-ERROR",
		Category: CategoryError,
	}

	t.Run("maps error columns and category", func(t *testing.T) {
		row := normalizedRow(map[string]any{
			"Timestamp":     "2024-01-15T10:00:00",
			"Service":       "perso-service",
			"Request ID":    "REQ7",
			"infos_comment": "printer jam",
		})

		rec := MapRow(row, file)
		assert.Equal(t, CategoryError, rec.Category)
		require.NotNil(t, rec.Error)
		assert.Nil(t, rec.Workflow)

		e := rec.Error
		assert.Equal(t, "QC_ERROR", e.ErrorCategory)
		assert.Equal(t, "perso-service", e.ServiceName)
		assert.Equal(t, "REQ7", e.RequestID)
		require.NotNil(t, e.Comment)
		assert.Equal(t, "printer jam", *e.Comment)
	})

	t.Run("json comment yields its raw key", func(t *testing.T) {
		row := normalizedRow(map[string]any{
			"infos_comment": `{"raw":"sensor fault","code":17}`,
		})

		rec := MapRow(row, file)
		require.NotNil(t, rec.Error)
		require.NotNil(t, rec.Error.Comment)
		assert.Equal(t, "sensor fault", *rec.Error.Comment)
	})

	t.Run("json object without raw key keeps the literal text", func(t *testing.T) {
		literal := `{"code":17}`
		row := normalizedRow(map[string]any{"infos_comment": literal})

		rec := MapRow(row, file)
		require.NotNil(t, rec.Error)
		require.NotNil(t, rec.Error.Comment)
		assert.Equal(t, literal, *rec.Error.Comment)
	})

	t.Run("blank comment is nil", func(t *testing.T) {
		row := normalizedRow(map[string]any{"infos_comment": "  "})

		rec := MapRow(row, file)
		require.NotNil(t, rec.Error)
		assert.Nil(t, rec.Error.Comment)
	})
}

func TestStatusAndCategoryTables(t *testing.T) {
	row := normalizedRow(map[string]any{})

	workflow := map[string]string{
		"WO-BACKLOG": "BACKLOG",
		"WO-FINISH":  "FINISH",
	}
	for fileType, want := range workflow {
		rec := MapRow(row, DetectedFile{FileType: fileType, Category: CategoryWorkflow})
		require.NotNil(t, rec.Workflow, fileType)
		assert.Equal(t, want, rec.Workflow.Status, fileType)
	}

	errors := map[string]string{
		"QC-ERROR":    "QC_ERROR",
		"PERSO-ERROR": "PERSO_ERROR",
		"SUP-ERROR":   "SUP_ERROR",
	}
	for fileType, want := range errors {
		rec := MapRow(row, DetectedFile{FileType: fileType, Category: CategoryError})
		require.NotNil(t, rec.Error, fileType)
		assert.Equal(t, want, rec.Error.ErrorCategory, fileType)
	}
}

func TestMapRowUnknownCategory(t *testing.T) {
	file := DetectedFile{
		Name:     "IDPS-TG-EID-NEW-TYPE-2024-01-15.csv",
		FileType: "NEW-TYPE",
		Category: CategoryUnknown,
	}

	row := normalizedRow(map[string]any{"Request ID": "REQ1"})

	rec := MapRow(row, file)
	assert.Equal(t, CategoryUnknown, rec.Category)
	require.NotNil(t, rec.Workflow)
	// Unmapped types keep their raw type code as the status.
	assert.Equal(t, "NEW-TYPE", rec.Workflow.Status)
	assert.Equal(t, file.Name, rec.Workflow.FileName)
}
