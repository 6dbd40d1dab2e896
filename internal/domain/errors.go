package domain

import "errors"

// Claim and configuration errors. Every failure is final for the call that
// produced it; no state is mutated when one of these is returned.
var (
	// ErrTgeNotStarted is returned by every schedule-consuming operation
	// while the TGE timestamp is unset.
	ErrTgeNotStarted = errors.New("TGE not started")

	// ErrAlreadySet is returned when a one-time value is written twice.
	ErrAlreadySet = errors.New("already set")

	// ErrInvalidProof is returned when a Merkle proof does not bind the
	// caller and declared allocation to the stored root.
	ErrInvalidProof = errors.New("invalid Merkle proof")

	// ErrNoClaimable is returned when nothing new has unlocked since the
	// last claim, including when the entitlement is fully claimed.
	ErrNoClaimable = errors.New("claimable amount is 0")

	// ErrPoolExhausted is returned when a sale claim would push the
	// pool-wide total past its cap.
	ErrPoolExhausted = errors.New("pool allocation is 100%")

	// ErrUnauthorized is returned when a non-owner invokes an owner-gated operation.
	ErrUnauthorized = errors.New("unauthorized account")

	// ErrUnknownPool is returned for identifiers that name no pool.
	ErrUnknownPool = errors.New("unknown pool")
)
