package port

import (
	"errors"
	"net/http"
)

// Sentinel errors used across ports. Adapters wrap these so callers can
// classify failures with errors.Is regardless of the backing service.
var (
	// ErrValidation marks bad input shape or range, rejected before any I/O.
	ErrValidation = errors.New("validation error")

	// ErrServiceUnavailable marks an unreachable or misbehaving embedding
	// or generation service.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrStorageUnavailable marks an unreachable vector or relational store.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrCollectionNotFound marks a search against a collection that was
	// never created. Distinct from an empty result.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrPersistenceFailed marks a memory write that failed after a
	// response was already generated.
	ErrPersistenceFailed = errors.New("persistence failed")

	// ErrGenerationInterrupted marks a generation stream that errored or
	// was cancelled mid-flight. No partial text is persisted.
	ErrGenerationInterrupted = errors.New("generation interrupted")
)

// StepError attaches the pipeline step that failed to an underlying error,
// so the HTTP boundary can report where a turn broke down.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Step returns the failing pipeline step recorded on err, or "internal"
// when none was.
func Step(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return "internal"
}

// Code returns the taxonomy identifier for err.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrCollectionNotFound):
		return "collection_not_found"
	case errors.Is(err, ErrServiceUnavailable):
		return "service_unavailable"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, ErrPersistenceFailed):
		return "persistence_failed"
	case errors.Is(err, ErrGenerationInterrupted):
		return "generation_interrupted"
	default:
		return "internal_error"
	}
}

// HTTPStatus maps err to the status code used by the error envelope.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrCollectionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrGenerationInterrupted):
		return 499 // client closed request
	default:
		return http.StatusInternalServerError
	}
}
