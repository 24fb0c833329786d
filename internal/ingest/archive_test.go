package ingest

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func archiveTestFile() DetectedFile {
	return DetectedFile{
		Name:     "IDPS-TG-EID-WO-BACKLOG-2024-01-15.csv",
		FileType: "WO-BACKLOG",
		FileDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Category: CategoryWorkflow,
	}
}

func TestArchive(t *testing.T) {
	t.Run("success moves into archive tree", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		src := "input/IDPS-TG-EID-WO-BACKLOG-2024-01-15.csv"
		require.NoError(t, afero.WriteFile(fsys, src, []byte("data"), 0o644))

		a := NewArchiver(fsys, "archive", "error", nil)
		dest, err := a.Archive(src, archiveTestFile(), true)
		require.NoError(t, err)
		assert.Equal(t, "archive/2024-01-15/IDPS/workflow/IDPS-TG-EID-WO-BACKLOG-2024-01-15.csv", dest)

		moved, err := afero.Exists(fsys, dest)
		require.NoError(t, err)
		assert.True(t, moved)

		gone, err := afero.Exists(fsys, src)
		require.NoError(t, err)
		assert.False(t, gone)
	})

	t.Run("failure moves into error tree", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		src := "input/IDPS-TG-EID-WO-BACKLOG-2024-01-15.csv"
		require.NoError(t, afero.WriteFile(fsys, src, []byte("data"), 0o644))

		a := NewArchiver(fsys, "archive", "error", nil)
		dest, err := a.Archive(src, archiveTestFile(), false)
		require.NoError(t, err)
		assert.Equal(t, "error/2024-01-15/IDPS-TG-EID-WO-BACKLOG-2024-01-15.csv", dest)

		moved, err := afero.Exists(fsys, dest)
		require.NoError(t, err)
		assert.True(t, moved)
	})

	t.Run("error category lands in its own archive branch", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		src := "input/IDPS-TG-EID-QC-ERROR-2024-01-15.csv"
		require.NoError(t, afero.WriteFile(fsys, src, []byte("data"), 0o644))

		file := DetectedFile{
			Name:     "IDPS-TG-EID-QC-ERROR-2024-01-15.csv",
			FileType: "QC-ERROR",
			FileDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			Category: CategoryError,
		}

		a := NewArchiver(fsys, "archive", "error", nil)
		dest, err := a.Archive(src, file, true)
		require.NoError(t, err)
		assert.Equal(t, "archive/2024-01-15/IDPS/error/IDPS-TG-EID-QC-ERROR-2024-01-15.csv", dest)
	})

	t.Run("missing source is a no-op", func(t *testing.T) {
		a := NewArchiver(afero.NewMemMapFs(), "archive", "error", nil)
		dest, err := a.Archive("input/gone.csv", archiveTestFile(), true)
		require.NoError(t, err)
		assert.Empty(t, dest)
	})
}
