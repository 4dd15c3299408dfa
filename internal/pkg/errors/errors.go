package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidPosition marks a malformed FEN or an illegal move in an
	// ingested game. Ingestion fails fast on it, nothing is persisted.
	ErrInvalidPosition = errors.New("invalid position")
	// ErrBudgetExceeded is a soft signal: the analysis pipeline stops issuing
	// engine calls and returns partial results. Never surfaced to callers.
	ErrBudgetExceeded = errors.New("analysis budget exceeded")
)
