package ingest

import "fmt"

// DetectionError reports a failure to scan the input directory.
// It is fatal to the whole run and propagates out of Run.
type DetectionError struct {
	Dir string
	Err error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("detecting files in %s: %v", e.Dir, e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }

// ValidationError reports a parse or encoding failure for one file.
// It is local to that file's pipeline run.
type ValidationError struct {
	File string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validating %s: %v", e.File, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// DatabaseError reports a persistence failure. A failed event batch means
// zero rows land for that file; a failed audit upsert is logged and swallowed
// inside error handling.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// ArchiveError reports a failure to move a file into the archive or error
// tree. Local to that file; it does not block audit logging.
type ArchiveError struct {
	Path string
	Err  error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archiving %s: %v", e.Path, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }
