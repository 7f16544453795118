package model

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for the memory engine. Callers match them with errors.Is.
var (
	// ErrNotFound means the referenced memory does not exist or is soft-deleted.
	ErrNotFound = goerr.New("memory not found")

	// ErrInvalidInput means a request carried empty content or an unknown
	// type/importance value.
	ErrInvalidInput = goerr.New("invalid input")

	// ErrProviderFailure means an external embedding or extraction call failed.
	ErrProviderFailure = goerr.New("external provider failure")

	// ErrEngineClosed means an operation was invoked on a closed engine.
	ErrEngineClosed = goerr.New("engine is closed")
)
