package token

import "errors"

var (
	errNilState = errors.New("token engine: state not configured")

	// ErrMintNotFound is returned when an operation references an unknown mint.
	ErrMintNotFound = errors.New("token: mint not found")
	// ErrMintExists is returned when registering a mint twice.
	ErrMintExists = errors.New("token: mint already registered")
	// ErrAccountNotFound is returned when a token account does not exist.
	ErrAccountNotFound = errors.New("token: account not found")
	// ErrMintMismatch is returned when two accounts of different mints meet.
	ErrMintMismatch = errors.New("token: mint mismatch")
	// ErrOwnerMismatch is returned when the authority does not own the account.
	ErrOwnerMismatch = errors.New("token: owner does not match")
	// ErrInvalidAuthority is returned when an authority cannot be resolved.
	ErrInvalidAuthority = errors.New("token: invalid authority")
	// ErrInsufficientFunds is returned when a balance cannot cover a debit.
	ErrInsufficientFunds = errors.New("token: insufficient funds")
	// ErrOverflow is returned when a credit would wrap a balance or supply.
	ErrOverflow = errors.New("token: amount overflow")
	// ErrNonNativeAccount is returned when a native-only operation targets
	// another mint.
	ErrNonNativeAccount = errors.New("token: account is not native")
	// ErrNonEmptyAccount is returned when closing a non-native account that
	// still holds a balance.
	ErrNonEmptyAccount = errors.New("token: non-native account has balance")
	// ErrZeroAddress is returned when an owner or mint is the zero key.
	ErrZeroAddress = errors.New("token: zero address")
)
