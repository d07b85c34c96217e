package services

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuestion is returned when the question is blank after trimming.
	ErrEmptyQuestion = errors.New("empty question")

	// ErrCapabilityUnavailable marks an embedding, generation or index call
	// that kept failing after all retries.
	ErrCapabilityUnavailable = errors.New("capability unavailable")

	// ErrLoadFailure marks a corpus file that could not be read or parsed.
	ErrLoadFailure = errors.New("document load failure")

	// ErrIngestionAborted marks an ingestion run stopped part way through.
	// Records committed before the failure stay in the index.
	ErrIngestionAborted = errors.New("ingestion aborted")

	// ErrUnsupportedFormat is returned for file extensions the loader cannot read.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// StageError reports which chain stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// LoadError describes a single corpus file that was skipped.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() []error { return []error{ErrLoadFailure, e.Err} }

// IngestError names the document and stage that aborted an ingestion run.
type IngestError struct {
	Source string
	Stage  string
	Err    error
}

func (e *IngestError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("ingestion aborted at %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("ingestion aborted at %s of %s: %v", e.Stage, e.Source, e.Err)
}

func (e *IngestError) Unwrap() []error { return []error{ErrIngestionAborted, e.Err} }
