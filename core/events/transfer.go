package events

import (
	"github.com/gagliardetto/solana-go"

	"memepod/core/types"
)

const (
	// TypeTransfer is emitted for every token account balance movement.
	TypeTransfer = "token.transfer"
)

// Transfer describes a movement between two token accounts of the same mint.
type Transfer struct {
	Mint      solana.PublicKey
	From      solana.PublicKey
	To        solana.PublicKey
	Authority solana.PublicKey
	Amount    uint64
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	attrs := map[string]string{
		"mint":   formatKey(e.Mint),
		"from":   formatKey(e.From),
		"to":     formatKey(e.To),
		"amount": formatAmount(e.Amount),
	}
	if authority := formatKey(e.Authority); authority != "" {
		attrs["authority"] = authority
	}
	return &types.Event{Type: TypeTransfer, Attributes: attrs}
}
