package api

import "errors"

// Sentinel errors that callers branch on. Everything else coming out of the
// client is wrapped context and treated as fatal by the callers.
var (
	// ErrDataUnavailable means a historical data request yielded nothing
	// usable. Engines skip the cycle or the contract and carry on.
	ErrDataUnavailable = errors.New("historical data unavailable")

	// ErrQuoteUnavailable means the last traded price could not be fetched.
	// Trade monitoring skips the cycle and retries on the next poll.
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrOrderRejected means the broker refused the order. The trade must
	// not be registered.
	ErrOrderRejected = errors.New("order rejected")
)
