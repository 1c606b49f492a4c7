package errors

import stderrors "errors"

// Domain error kinds surfaced by the registry and pod lifecycle operations.
var (
	ErrUninitialized      = stderrors.New("memepod: uninitialized")
	ErrAlreadyInitialized = stderrors.New("memepod: already initialized")
	ErrUnauthorised       = stderrors.New("memepod: unauthorised")
	ErrInsufficientFund   = stderrors.New("memepod: insufficient fund")
	ErrUnknownToken       = stderrors.New("memepod: one token should be the native asset")
	ErrNotActive          = stderrors.New("memepod: not active")
	ErrPodNameTooLong     = stderrors.New("memepod: pod name too long")
	ErrTokenNameTooLong   = stderrors.New("memepod: token name too long")
	ErrTokenSymbolTooLong = stderrors.New("memepod: token symbol too long")
)

// ErrArithmeticOverflow aborts an operation whose counters would wrap. It is
// deliberately outside the numbered kinds above.
var ErrArithmeticOverflow = stderrors.New("memepod: arithmetic overflow")

// CodeOffset is the first numbered error code; kinds are numbered in
// declaration order.
const CodeOffset = 6000

var kinds = []struct {
	err  error
	name string
}{
	{ErrUninitialized, "Uninitialized"},
	{ErrAlreadyInitialized, "AlreadyInitialized"},
	{ErrUnauthorised, "Unauthorised"},
	{ErrInsufficientFund, "InsufficientFund"},
	{ErrUnknownToken, "UnknownToken"},
	{ErrNotActive, "NotActive"},
	{ErrPodNameTooLong, "PodNameTooLong"},
	{ErrTokenNameTooLong, "TokenNameTooLong"},
	{ErrTokenSymbolTooLong, "TokenSymbolTooLong"},
}

// Kind resolves the numbered kind wrapped by err. ok is false for errors that
// are not one of the domain kinds, including ErrArithmeticOverflow.
func Kind(err error) (name string, code int, ok bool) {
	if err == nil {
		return "", 0, false
	}
	for i, k := range kinds {
		if stderrors.Is(err, k.err) {
			return k.name, CodeOffset + i, true
		}
	}
	return "", 0, false
}
