// Package domain holds the error kinds shared by every component.
package domain

import "errors"

// Error kinds. Components wrap these with fmt.Errorf("...: %w", ErrX) and
// callers test with errors.Is.
var (
	// ErrInvalidInput indicates a schema violation in an inbound request.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbeddingUnavailable indicates the embedding service failed after retries.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrIndexUnavailable indicates the vector index could not be reached.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrSearchUnavailable indicates every field query of a search failed.
	ErrSearchUnavailable = errors.New("search unavailable")

	// ErrCatalog indicates a relational store failure.
	ErrCatalog = errors.New("catalog error")

	// ErrOverloaded indicates admission was denied. Clients may retry.
	ErrOverloaded = errors.New("overloaded")

	// ErrTimeout indicates a bounded call exceeded its budget.
	ErrTimeout = errors.New("timeout")

	// ErrConflict indicates an update against a stale service revision.
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized indicates the caller is not identified.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller does not own the resource.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")
)
