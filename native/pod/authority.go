package pod

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	podErrors "memepod/core/errors"
	"memepod/native/token"
)

// Seed is the domain tag mixed into every pod derivation.
const Seed = "memepod"

// Seeds returns the derivation seeds of a pod, without the bump.
func Seeds(id ID) [][]byte {
	return [][]byte{
		[]byte(Seed),
		id.BaseAsset.Bytes(),
		id.QuoteAsset.Bytes(),
		id.Owner.Bytes(),
	}
}

// VaultAuthority is the keyless identity that owns a pod's escrow vaults. It
// doubles as the pod's own address.
type VaultAuthority struct {
	Address solana.PublicKey
	Bump    uint8
	program solana.PublicKey
	id      ID
}

// DeriveVaultAuthority computes the authority of the pod identified by id.
func DeriveVaultAuthority(program solana.PublicKey, id ID) (VaultAuthority, error) {
	addr, bump, err := solana.FindProgramAddress(Seeds(id), program)
	if err != nil {
		return VaultAuthority{}, fmt.Errorf("pod: derive vault authority: %w", err)
	}
	return VaultAuthority{Address: addr, Bump: bump, program: program, id: id}, nil
}

// VerifyVaultAuthority checks that addr and bump are exactly the derivation of
// id under program.
func VerifyVaultAuthority(program solana.PublicKey, id ID, addr solana.PublicKey, bump uint8) error {
	seeds := append(Seeds(id), []byte{bump})
	derived, err := solana.CreateProgramAddress(seeds, program)
	if err != nil {
		return fmt.Errorf("%w: %v", podErrors.ErrUnauthorised, err)
	}
	if !derived.Equals(addr) {
		return fmt.Errorf("%w: vault authority %s does not match derivation", podErrors.ErrUnauthorised, addr)
	}
	return nil
}

// Signer returns the proof the token ledger accepts for vault spends.
func (a VaultAuthority) Signer() token.Authority {
	return token.ProgramAuthority(a.program, Seeds(a.id), a.Bump)
}

// Address returns the pod record address for id.
func Address(program solana.PublicKey, id ID) (solana.PublicKey, error) {
	authority, err := DeriveVaultAuthority(program, id)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return authority.Address, nil
}
