package mainstate

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Seed prefixes the registry's program-derived address.
const Seed = "main"

// Defaults applied by Init.
const (
	DefaultTradingFee  uint16 = 1_000
	DefaultCreatorFee  uint16 = 1_000
	DefaultOwnerFee    uint16 = 1_000
	DefaultCreationFee uint64 = 100_000_000
)

// State is the global configuration registry consulted by every pod
// operation. Fee rates are parts per million.
type State struct {
	Initialized  bool
	Owner        solana.PublicKey
	FeeRecipient solana.PublicKey
	CreationFee  uint64
	TradingFee   uint16
	CreatorFee   uint16
	OwnerFee     uint16
}

// Clone returns a copy of the registry record.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// UpdateInput replaces every mutable registry field at once.
type UpdateInput struct {
	Owner        solana.PublicKey
	FeeRecipient solana.PublicKey
	CreationFee  uint64
	TradingFee   uint16
	CreatorFee   uint16
	OwnerFee     uint16
}

// Address returns the well-known registry address for program.
func Address(program solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{[]byte(Seed)}, program)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("mainstate: derive address: %w", err)
	}
	return addr, bump, nil
}
