package models

import "errors"

// Engine error taxonomy. Callers match with errors.Is; everything else is
// wrapped transport or storage failure.
var (
	// ErrFetchFailed covers provider I/O, HTTP and parse failures. The
	// caller retries at the next schedule tick, never inline.
	ErrFetchFailed = errors.New("quote fetch failed")

	// ErrInvalidValue rejects non-positive observation values. The poll
	// job skips the property silently instead of aborting the batch.
	ErrInvalidValue = errors.New("observation value must be greater than zero")

	// ErrUnknownCurrency rejects an observation whose currency code is
	// not in the reference table. Fatal for that property only.
	ErrUnknownCurrency = errors.New("unknown currency")

	// ErrUnknownExchange fails instrument creation when the MIC does not
	// resolve. Surfaced to the caller as a validation error.
	ErrUnknownExchange = errors.New("unknown exchange")

	// ErrUnknownInstrument fails subscription creation when the provider
	// cannot resolve a new symbol.
	ErrUnknownInstrument = errors.New("unknown or unsupported instrument")

	// ErrDuplicateSubscription rejects a second subscription for the same
	// owner, instrument and threshold or interval.
	ErrDuplicateSubscription = errors.New("subscription already exists")

	// ErrInvalidThreshold rejects step subscriptions with a non-positive
	// change threshold.
	ErrInvalidThreshold = errors.New("change threshold must be greater than zero")

	// ErrInvalidInterval rejects interval subscriptions with a
	// non-positive period.
	ErrInvalidInterval = errors.New("interval must be greater than zero")

	// ErrInvalidSubscription rejects subscription requests with an
	// unknown kind, property or channel.
	ErrInvalidSubscription = errors.New("invalid subscription")
)
