package token

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// NativeDecimals is the precision of the wrapped native currency.
const NativeDecimals uint8 = 9

// NativeMint identifies the wrapped form of the ledger's native currency.
var NativeMint = solana.SolMint

// Mint describes a fungible asset registered on the ledger.
type Mint struct {
	Address       solana.PublicKey
	Decimals      uint8
	Supply        uint64
	MintAuthority solana.PublicKey
}

// Clone returns a copy of the mint.
func (m *Mint) Clone() *Mint {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// IsNative reports whether the mint is the wrapped native currency.
func (m *Mint) IsNative() bool { return m != nil && m.Address.Equals(NativeMint) }

// Account is a token holding of exactly one mint, spendable by Owner.
type Account struct {
	Address solana.PublicKey
	Mint    solana.PublicKey
	Owner   solana.PublicKey
	Amount  uint64
}

// Clone returns a copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

// IsNative reports whether the account holds wrapped native currency.
func (a *Account) IsNative() bool { return a != nil && a.Mint.Equals(NativeMint) }

// AssociatedAddress returns the canonical token account of owner for mint.
func AssociatedAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("token: derive associated account: %w", err)
	}
	return addr, nil
}

// Authority is the proof presented when spending from a token account. It is
// either a plain signer or a program-derived signer reconstructed from its
// seeds and bump.
type Authority struct {
	Signer  solana.PublicKey
	Program solana.PublicKey
	Seeds   [][]byte
	Bump    uint8
}

// SignerAuthority authorises spending with the caller's own identity.
func SignerAuthority(signer solana.PublicKey) Authority {
	return Authority{Signer: signer}
}

// ProgramAuthority authorises spending with a keyless program-derived address.
func ProgramAuthority(program solana.PublicKey, seeds [][]byte, bump uint8) Authority {
	copied := make([][]byte, len(seeds))
	for i, seed := range seeds {
		copied[i] = append([]byte(nil), seed...)
	}
	return Authority{Program: program, Seeds: copied, Bump: bump}
}

// Resolve returns the identity the authority proves control of.
func (a Authority) Resolve() (solana.PublicKey, error) {
	if a.Program.IsZero() {
		if a.Signer.IsZero() {
			return solana.PublicKey{}, ErrInvalidAuthority
		}
		return a.Signer, nil
	}
	seeds := make([][]byte, 0, len(a.Seeds)+1)
	seeds = append(seeds, a.Seeds...)
	seeds = append(seeds, []byte{a.Bump})
	addr, err := solana.CreateProgramAddress(seeds, a.Program)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidAuthority, err)
	}
	return addr, nil
}
