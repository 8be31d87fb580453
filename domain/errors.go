package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrOrderBookUpdateIsOutdated marks a diff at or below the book's current
	// sequence number. Safe to drop.
	ErrOrderBookUpdateIsOutdated = errors.New("orderbook update is outdated")

	// ErrOrderBookUpdateIsOutOfSequence marks a diff that skips ahead of the
	// book. At least one update was missed and the book can no longer be
	// trusted.
	ErrOrderBookUpdateIsOutOfSequence = errors.New("orderbook update is out of sequence")

	// ErrResyncBudgetExhausted terminates a depth stream after too many
	// consecutive failed resynchronizations.
	ErrResyncBudgetExhausted = errors.New("orderbook resync budget exhausted")

	// ErrStreamClosed is returned when an operation races with Close or
	// Unsubscribe.
	ErrStreamClosed = errors.New("stream closed")
)

// RequestError wraps a failed signed request with its retry semantics.
// NonceConsumed reports whether the server may have seen the nonce: when true,
// the nonce must never be reused, even though the request failed.
type RequestError struct {
	Op            string
	Nonce         uint64
	NonceConsumed bool
	Err           error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s (nonce %d): %v", e.Op, e.Nonce, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// AmbiguousOutcomeError reports a round trip that timed out after the request
// may have reached the server. The operation may or may not have been applied;
// the caller must consult the order event stream or the user's open orders
// before acting. Automatically resubmitting would risk a duplicate order.
type AmbiguousOutcomeError struct {
	Op      string
	OrderID string
	Nonce   uint64
}

func (e *AmbiguousOutcomeError) Error() string {
	return fmt.Sprintf("%s outcome is ambiguous: no acknowledgment for order %s (nonce %d)", e.Op, e.OrderID, e.Nonce)
}

// HTTPError carries a remote rejection verbatim.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}
