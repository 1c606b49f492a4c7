package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestKindResolvesWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("withdraw: %w", ErrInsufficientFund)
	name, code, ok := Kind(wrapped)
	if !ok {
		t.Fatalf("expected wrapped kind to resolve")
	}
	if name != "InsufficientFund" || code != CodeOffset+3 {
		t.Fatalf("unexpected kind %s/%d", name, code)
	}

	name, code, ok = Kind(ErrTokenSymbolTooLong)
	if !ok || name != "TokenSymbolTooLong" || code != 6008 {
		t.Fatalf("unexpected kind %s/%d", name, code)
	}
}

func TestKindIgnoresForeignErrors(t *testing.T) {
	if _, _, ok := Kind(ErrArithmeticOverflow); ok {
		t.Fatalf("overflow must not map to a numbered kind")
	}
	if _, _, ok := Kind(stderrors.New("boom")); ok {
		t.Fatalf("foreign error mapped to a kind")
	}
	if _, _, ok := Kind(nil); ok {
		t.Fatalf("nil error mapped to a kind")
	}
}
