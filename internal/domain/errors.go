package domain

import "errors"

var (
	// ErrTokenNotFound is returned when a token row does not exist yet.
	// At indexing time this is a no-op success, not a failure.
	ErrTokenNotFound = errors.New("token not found")

	// ErrAttributeKeyUnresolved is returned when neither the conditional
	// update, the insert, nor the follow-up reselect yielded an attribute key
	// id. Transient: a queue retry will see the now-created row.
	ErrAttributeKeyUnresolved = errors.New("attribute key unresolved")

	// ErrAttributeUnresolved is returned when an attribute value row could not
	// be resolved after the conflict-safe insert. Transient, retryable.
	ErrAttributeUnresolved = errors.New("attribute unresolved")

	// ErrInvalidJobPayload is returned for payloads missing required fields.
	// Such jobs are dropped, never retried.
	ErrInvalidJobPayload = errors.New("invalid job payload")

	// ErrInvalidContinuation is returned when a feed continuation token cannot
	// be decoded
	ErrInvalidContinuation = errors.New("invalid continuation token")
)

// IsRetryable reports whether an indexing failure should be redelivered by the
// queue. Invalid payloads and missing tokens are terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidJobPayload) || errors.Is(err, ErrTokenNotFound) {
		return false
	}
	return true
}
