package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"
)

// Spec is the optional document applied once when a node starts on an empty
// database. It can be written as JSON or YAML.
type Spec struct {
	GenesisTime string                       `json:"genesisTime" yaml:"genesisTime"`
	Mints       []MintSpec                   `json:"mints" yaml:"mints"`
	Lamports    map[string]uint64            `json:"lamports" yaml:"lamports"`
	Alloc       map[string]map[string]uint64 `json:"alloc" yaml:"alloc"` // owner -> mint -> amount
	Registry    *RegistrySpec                `json:"registry,omitempty" yaml:"registry,omitempty"`

	genesisTimestamp time.Time
}

// MintSpec registers a token mint.
type MintSpec struct {
	Address       string `json:"address" yaml:"address"`
	Decimals      uint8  `json:"decimals" yaml:"decimals"`
	MintAuthority string `json:"mintAuthority" yaml:"mintAuthority"`
}

// RegistrySpec initialises the configuration registry. Fields left nil keep
// the registry defaults.
type RegistrySpec struct {
	Owner        string  `json:"owner" yaml:"owner"`
	FeeRecipient string  `json:"feeRecipient,omitempty" yaml:"feeRecipient,omitempty"`
	CreationFee  *uint64 `json:"creationFee,omitempty" yaml:"creationFee,omitempty"`
	TradingFee   *uint16 `json:"tradingFee,omitempty" yaml:"tradingFee,omitempty"`
	CreatorFee   *uint16 `json:"creatorFee,omitempty" yaml:"creatorFee,omitempty"`
	OwnerFee     *uint16 `json:"ownerFee,omitempty" yaml:"ownerFee,omitempty"`
}

// LoadSpec reads and validates a genesis document. Files ending in .yaml or
// .yml are decoded as YAML, everything else as JSON.
func LoadSpec(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	var spec Spec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("decode genesis spec %q: %w", path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("decode genesis spec %q: %w", path, err)
		}
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis spec %q: %w", path, err)
	}
	return &spec, nil
}

// GenesisTimestamp returns the parsed genesis time.
func (s *Spec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

// Validate checks every address and cross reference in the document.
func (s *Spec) Validate() error {
	parsed, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = parsed

	mints := make(map[solana.PublicKey]struct{}, len(s.Mints))
	for i, m := range s.Mints {
		addr, err := parseKey(m.Address)
		if err != nil {
			return fmt.Errorf("mints[%d].address: %w", i, err)
		}
		if _, dup := mints[addr]; dup {
			return fmt.Errorf("mints[%d]: duplicate mint %s", i, addr)
		}
		if !addr.Equals(solana.SolMint) {
			if _, err := parseKey(m.MintAuthority); err != nil {
				return fmt.Errorf("mints[%d].mintAuthority: %w", i, err)
			}
		}
		mints[addr] = struct{}{}
	}
	for owner := range s.Lamports {
		if _, err := parseKey(owner); err != nil {
			return fmt.Errorf("lamports[%s]: %w", owner, err)
		}
	}
	for owner, holdings := range s.Alloc {
		if _, err := parseKey(owner); err != nil {
			return fmt.Errorf("alloc[%s]: %w", owner, err)
		}
		for mint := range holdings {
			addr, err := parseKey(mint)
			if err != nil {
				return fmt.Errorf("alloc[%s][%s]: %w", owner, mint, err)
			}
			if addr.Equals(solana.SolMint) {
				return fmt.Errorf("alloc[%s]: native balances belong in lamports", owner)
			}
			if _, ok := mints[addr]; !ok {
				return fmt.Errorf("alloc[%s]: mint %s is not declared", owner, mint)
			}
		}
	}
	if s.Registry != nil {
		if _, err := parseKey(s.Registry.Owner); err != nil {
			return fmt.Errorf("registry.owner: %w", err)
		}
		if strings.TrimSpace(s.Registry.FeeRecipient) != "" {
			if _, err := parseKey(s.Registry.FeeRecipient); err != nil {
				return fmt.Errorf("registry.feeRecipient: %w", err)
			}
		}
	}
	return nil
}

func parseKey(raw string) (solana.PublicKey, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return solana.PublicKey{}, fmt.Errorf("address must be provided")
	}
	key, err := solana.PublicKeyFromBase58(trimmed)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid address %q: %w", raw, err)
	}
	return key, nil
}

func parseGenesisTime(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	ts, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid genesisTime %q: %w", value, err)
	}
	return ts.UTC(), nil
}
