package engine

import "errors"

// The pipeline's failure taxonomy. Every error aborts atomically; the
// distinctions matter to callers deciding whether to retry, re-price, or
// give up. Errors are wrapped with context at the failure site and
// matched with errors.Is.
var (
	// ErrValidation marks a malformed request: crossed or out-of-range
	// ticks, a discount balance above the scaling unit, a referral rate
	// over its cap. Rejected before any mutation.
	ErrValidation = errors.New("invalid cross request")

	// ErrHalted means governance has paused the pair or the venue.
	ErrHalted = errors.New("trading halted")

	// ErrReentrancy marks a nested re-entry into a pair's pipeline.
	ErrReentrancy = errors.New("reentrant execution")

	// ErrGuardrail means a leg's realized average price fell outside the
	// caller's corridor. The whole pipeline rolls back.
	ErrGuardrail = errors.New("price outside corridor")

	// ErrOverflow marks fixed-point or balance arithmetic leaving its
	// domain. It indicates an out-of-range value reaching the pricing
	// layer and must never occur for documented tick bounds.
	ErrOverflow = errors.New("arithmetic overflow")
)
