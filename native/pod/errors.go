package pod

import (
	"errors"

	podErrors "memepod/core/errors"
)

var (
	errNilState  = errors.New("pod engine: state not configured")
	errNilLedger = errors.New("pod engine: token ledger not configured")

	// ErrPodNotFound is returned when no pod exists for an identity.
	ErrPodNotFound = errors.New("pod: not found")
	// ErrIdentityMismatch is returned when a stored record does not carry the
	// identity it was loaded under.
	ErrIdentityMismatch = errors.New("pod: stored identity mismatch")

	// ErrArithmeticOverflow aliases the shared fatal arithmetic error.
	ErrArithmeticOverflow = podErrors.ErrArithmeticOverflow
)
