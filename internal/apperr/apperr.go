// Package apperr holds the error kinds the pipeline uses to decide whether a
// delivery is acknowledged, redelivered or fatal.
package apperr

import "errors"

var (
	// ErrInvalidInput is a local precondition failure (bad chunking parameters, blank text).
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbeddingService covers network failures, non-2xx responses and malformed
	// bodies from the embedding provider.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrBrokerUnavailable means the queue connection could not be established or was lost.
	ErrBrokerUnavailable = errors.New("broker unavailable")

	// ErrSinkWrite is a failed write to the search index or the relational table.
	ErrSinkWrite = errors.New("sink write error")

	// ErrMalformedMessage is an undecodable delivery. It is acknowledged, never retried.
	ErrMalformedMessage = errors.New("malformed message")
)

// Retryable reports whether redelivering the message may succeed.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrMalformedMessage), errors.Is(err, ErrBrokerUnavailable):
		return false
	default:
		return true
	}
}

// Kind returns a short stable label for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrEmbeddingService):
		return "embedding_service"
	case errors.Is(err, ErrBrokerUnavailable):
		return "broker_unavailable"
	case errors.Is(err, ErrSinkWrite):
		return "sink_write"
	case errors.Is(err, ErrMalformedMessage):
		return "malformed_message"
	default:
		return "unknown"
	}
}
