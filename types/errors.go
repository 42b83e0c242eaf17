package types

import "errors"

// Error kinds returned by the core operations. Callers match them with
// errors.Is; the reason is carried in the wrapping message.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrDuplicateVote     = errors.New("voter already participated in this election")
	ErrDuplicateTag      = errors.New("ballot tag already exists")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyClosed     = errors.New("election already closed")
	ErrElectionNotActive = errors.New("election is not accepting votes")
	ErrLedger            = errors.New("ledger unavailable")
	ErrMalformedProof    = errors.New("malformed proof")
)

// IsRetryable reports whether the operation that returned err may succeed if
// repeated unchanged. Only ledger failures are transient.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLedger)
}
