package ingest

import (
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"
)

// Archiver relocates processed files into the success or failure tree.
// A file ends up in exactly one of the two trees and leaves the input
// directory in the same move.
type Archiver struct {
	fs          afero.Fs
	archiveRoot string
	errorRoot   string
	log         *slog.Logger
}

func NewArchiver(fsys afero.Fs, archiveRoot, errorRoot string, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		fs:          fsys,
		archiveRoot: archiveRoot,
		errorRoot:   errorRoot,
		log:         logger,
	}
}

// Archive moves the file to its destination tree. Returns the new path, or
// "" when the file no longer exists at path (already moved; not an error).
// Intermediate directories are created as needed.
func (a *Archiver) Archive(path string, file DetectedFile, success bool) (string, error) {
	exists, err := afero.Exists(a.fs, path)
	if err != nil {
		return "", &ArchiveError{Path: path, Err: err}
	}
	if !exists {
		a.log.Warn("file already gone, archiving skipped", "file", file.Name)
		return "", nil
	}

	var dest string
	if success {
		dest = a.archivePath(file)
	} else {
		dest = a.errorPath(file)
	}

	if err := a.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", &ArchiveError{Path: path, Err: err}
	}
	if err := a.fs.Rename(path, dest); err != nil {
		return "", &ArchiveError{Path: path, Err: err}
	}

	a.log.Info("file archived", "file", file.Name, "dest", dest, "success", success)
	return dest, nil
}

// archivePath builds archive/<YYYY-MM-DD>/<module>/<category>/<name>.
func (a *Archiver) archivePath(file DetectedFile) string {
	date := file.FileDate.Format("2006-01-02")
	return filepath.Join(a.archiveRoot, date, ModuleName, string(file.Category), file.Name)
}

// errorPath builds error/<YYYY-MM-DD>/<name>.
func (a *Archiver) errorPath(file DetectedFile) string {
	date := file.FileDate.Format("2006-01-02")
	return filepath.Join(a.errorRoot, date, file.Name)
}
