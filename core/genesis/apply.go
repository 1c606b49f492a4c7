package genesis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gagliardetto/solana-go"

	"memepod/native/mainstate"
	"memepod/native/token"
)

type tokenLedger interface {
	RegisterMint(addr solana.PublicKey, decimals uint8, authority solana.PublicKey) (*token.Mint, error)
	MintTo(mint, owner solana.PublicKey, amount uint64, auth token.Authority) (*token.Account, error)
	Airdrop(owner solana.PublicKey, lamports uint64) (uint64, error)
}

type registry interface {
	Init(caller solana.PublicKey) (*mainstate.State, error)
	Update(caller solana.PublicKey, input mainstate.UpdateInput) (*mainstate.State, error)
}

// Apply writes the document into state through the token and registry
// engines. Map entries are applied in sorted order so the result does not
// depend on map iteration.
func Apply(spec *Spec, tokens tokenLedger, reg registry) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	authorities := make(map[solana.PublicKey]solana.PublicKey, len(spec.Mints))
	for i, m := range spec.Mints {
		addr := mustKey(m.Address)
		var authority solana.PublicKey
		if strings.TrimSpace(m.MintAuthority) != "" {
			authority = mustKey(m.MintAuthority)
		}
		if _, err := tokens.RegisterMint(addr, m.Decimals, authority); err != nil {
			return fmt.Errorf("mints[%d]: %w", i, err)
		}
		authorities[addr] = authority
	}

	for _, owner := range sortedKeys(spec.Lamports) {
		if _, err := tokens.Airdrop(mustKey(owner), spec.Lamports[owner]); err != nil {
			return fmt.Errorf("lamports[%s]: %w", owner, err)
		}
	}

	for _, owner := range sortedKeys(spec.Alloc) {
		holder := mustKey(owner)
		holdings := spec.Alloc[owner]
		for _, mint := range sortedKeys(holdings) {
			mintAddr := mustKey(mint)
			auth := token.SignerAuthority(authorities[mintAddr])
			if _, err := tokens.MintTo(mintAddr, holder, holdings[mint], auth); err != nil {
				return fmt.Errorf("alloc[%s][%s]: %w", owner, mint, err)
			}
		}
	}

	if spec.Registry != nil {
		owner := mustKey(spec.Registry.Owner)
		current, err := reg.Init(owner)
		if err != nil {
			return fmt.Errorf("registry: %w", err)
		}
		input := mainstate.UpdateInput{
			Owner:        current.Owner,
			FeeRecipient: current.FeeRecipient,
			CreationFee:  current.CreationFee,
			TradingFee:   current.TradingFee,
			CreatorFee:   current.CreatorFee,
			OwnerFee:     current.OwnerFee,
		}
		changed := false
		if strings.TrimSpace(spec.Registry.FeeRecipient) != "" {
			input.FeeRecipient = mustKey(spec.Registry.FeeRecipient)
			changed = true
		}
		if v := spec.Registry.CreationFee; v != nil {
			input.CreationFee, changed = *v, true
		}
		if v := spec.Registry.TradingFee; v != nil {
			input.TradingFee, changed = *v, true
		}
		if v := spec.Registry.CreatorFee; v != nil {
			input.CreatorFee, changed = *v, true
		}
		if v := spec.Registry.OwnerFee; v != nil {
			input.OwnerFee, changed = *v, true
		}
		if changed {
			if _, err := reg.Update(owner, input); err != nil {
				return fmt.Errorf("registry: %w", err)
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// mustKey parses an address already checked by Validate.
func mustKey(raw string) solana.PublicKey {
	key, err := parseKey(raw)
	if err != nil {
		panic(err)
	}
	return key
}
