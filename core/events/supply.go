package events

import (
	"strings"

	"github.com/gagliardetto/solana-go"

	"memepod/core/types"
)

const (
	// TypeTokenSupply is emitted whenever a token supply changes.
	TypeTokenSupply = "token.supply"

	// SupplyReasonMint identifies mint driven supply increases.
	SupplyReasonMint = "mint"
	// SupplyReasonBurn identifies burn driven supply decreases.
	SupplyReasonBurn = "burn"
	// SupplyReasonWrap identifies native currency wrapped into a token account.
	SupplyReasonWrap = "wrap"
	// SupplyReasonUnwrap identifies wrapped native currency returned as lamports.
	SupplyReasonUnwrap = "unwrap"
)

// TokenSupply captures a supply delta for a mint.
type TokenSupply struct {
	Mint    solana.PublicKey
	Account solana.PublicKey
	Total   uint64
	Delta   uint64
	Reason  string
}

func (TokenSupply) EventType() string { return TypeTokenSupply }

// Event renders the structured supply change event for downstream consumers.
func (e TokenSupply) Event() *types.Event {
	attrs := map[string]string{}
	mint := formatKey(e.Mint)
	if mint == "" {
		mint = "UNKNOWN"
	}
	attrs["mint"] = mint
	attrs["total"] = formatAmount(e.Total)
	attrs["delta"] = formatAmount(e.Delta)
	if account := formatKey(e.Account); account != "" {
		attrs["account"] = account
	}
	if reason := strings.TrimSpace(e.Reason); reason != "" {
		attrs["reason"] = reason
	}
	return &types.Event{Type: TypeTokenSupply, Attributes: attrs}
}
