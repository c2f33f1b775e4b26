package search

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery is returned for queries rejected before reaching the engine.
	ErrInvalidQuery = errors.New("invalid search query")

	// ErrBackendUnavailable is returned when the engine cannot be reached.
	ErrBackendUnavailable = errors.New("search backend unavailable")

	// ErrQueryFailed is returned when the engine fails to answer a search.
	ErrQueryFailed = errors.New("search query failed")

	// ErrIndexingFailed is returned when the engine rejects a document write.
	ErrIndexingFailed = errors.New("failed to index document")
)

// Error is a search error annotated with the operation that failed.
type Error struct {
	Op  string
	Err error
	Msg string
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Msg, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}
