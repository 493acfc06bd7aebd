// Package chore holds the scheduling engine: instance generation from
// recurrence rules, the completion/approval lifecycle, streak counting,
// the expiry sweep, and duplicate cleanup.
package chore

import "errors"

var (
	// ErrNotFound is returned when the referenced instance, schedule, or
	// completion does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when an instance is not in the
	// state the requested operation expects, including any attempt to
	// credit an instance twice.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrProofMissing is returned when a completion lacks the proof the
	// template requires.
	ErrProofMissing = errors.New("required proof missing")
)
