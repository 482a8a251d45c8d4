package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSourceNotFound means the raw input path does not exist.
	ErrSourceNotFound = errors.New("source not found")

	// ErrSchemaMismatch means a required column is absent from the input header.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrUnparseableValue marks a row-level parse failure. Rows carrying one are
	// dropped and counted; it never aborts a run.
	ErrUnparseableValue = errors.New("unparseable value")

	// ErrWrite means an output could not be created, written, or moved into place.
	ErrWrite = errors.New("write error")
)

// SchemaError lists every requested column missing from a source header.
type SchemaError struct {
	Path    string
	Missing []Column
}

func (e *SchemaError) Error() string {
	names := make([]string, len(e.Missing))
	for i, c := range e.Missing {
		names[i] = string(c)
	}
	return fmt.Sprintf("%s: %s: missing columns [%s]", ErrSchemaMismatch, e.Path, strings.Join(names, ", "))
}

func (e *SchemaError) Unwrap() error { return ErrSchemaMismatch }
