package rate

import "errors"

var (
	// ErrRateLimited reports an exhausted attempt budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreUnavailable reports a counter store failure.
	ErrStoreUnavailable = errors.New("rate store unavailable")
)
