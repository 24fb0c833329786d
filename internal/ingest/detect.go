package ingest

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"
)

// Detector finds ingestible export files in the input directory.
//
// The processed set is in-memory and per-run only: it prevents the same file
// from being picked up twice within one invocation. Across invocations the
// guarantee comes from the archiver moving files out of the input directory
// and from the audit-log upsert.
type Detector struct {
	fs        afero.Fs
	inputDir  string
	processed map[string]struct{}
	log       *slog.Logger
}

// NewDetector creates a detector with a fresh processed set.
func NewDetector(fsys afero.Fs, inputDir string, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		fs:        fsys,
		inputDir:  inputDir,
		processed: make(map[string]struct{}),
		log:       logger,
	}
}

// Detect lists *.csv files directly under the input directory (non-recursive),
// classifies each against the export grammar, and returns a DetectedFile per
// match not yet processed in this run. Non-matching names are skipped
// silently. A missing or unreadable input directory is fatal to the run.
func (d *Detector) Detect() ([]DetectedFile, error) {
	entries, err := afero.ReadDir(d.fs, d.inputDir)
	if err != nil {
		return nil, &DetectionError{Dir: d.inputDir, Err: err}
	}

	var detected []DetectedFile
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".csv" {
			continue
		}

		id, ok := Classify(entry.Name())
		if !ok {
			continue
		}

		if _, done := d.processed[fileKey(entry.Name(), entry)]; done {
			continue
		}

		detected = append(detected, DetectedFile{
			Path:     filepath.Join(d.inputDir, entry.Name()),
			Name:     entry.Name(),
			FileType: id.FileType,
			FileDate: id.Date,
			Size:     entry.Size(),
			Category: id.Category,
		})
		d.log.Info("export file detected", "file", entry.Name(), "type", id.FileType, "category", id.Category)
	}

	return detected, nil
}

// MarkProcessed records the file in the in-run dedup set. When the file has
// already been moved out of the input directory, the key falls back to the
// file name plus its file date.
func (d *Detector) MarkProcessed(path string, file DetectedFile) {
	var key string
	if info, err := d.fs.Stat(path); err == nil {
		key = fileKey(file.Name, info)
	} else {
		key = fmt.Sprintf("%s_%s", file.Name, file.FileDate.Format("2006-01-02"))
	}
	d.processed[key] = struct{}{}
	d.log.Debug("file marked processed", "file", file.Name)
}

func fileKey(name string, info fs.FileInfo) string {
	return fmt.Sprintf("%s_%d", name, info.ModTime().UnixNano())
}
