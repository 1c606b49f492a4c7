package pod

import (
	"bytes"

	"github.com/gagliardetto/solana-go"
)

// Fixed widths of the descriptive fields.
const (
	PodNameLen     = 32
	TokenNameLen   = 32
	TokenSymbolLen = 10
)

// ID is the immutable identity of a pod. Together with Seed it determines the
// pod address and the vault authority.
type ID struct {
	Owner      solana.PublicKey
	BaseAsset  solana.PublicKey
	QuoteAsset solana.PublicKey
}

// Pod is one fixed-price sale of BaseAsset priced in QuoteAsset. TokenPrice is
// the number of quote units paid per 1e9 base units.
type Pod struct {
	Owner      solana.PublicKey
	BaseAsset  solana.PublicKey
	QuoteAsset solana.PublicKey

	PodName     [PodNameLen]byte
	TokenName   [TokenNameLen]byte
	TokenSymbol [TokenSymbolLen]byte
	Decimal     uint8

	BaseAmount   uint64
	BoughtAmount uint64
	TokenPrice   uint64
	ExpireTime   uint64

	IsActive bool
}

// ID returns the identity triple of the pod.
func (p *Pod) ID() ID {
	return ID{Owner: p.Owner, BaseAsset: p.BaseAsset, QuoteAsset: p.QuoteAsset}
}

// Clone returns a deep copy of the pod.
func (p *Pod) Clone() *Pod {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// Unsold returns the base units still available for sale.
func (p *Pod) Unsold() (uint64, error) {
	if p.BoughtAmount > p.BaseAmount {
		return 0, ErrArithmeticOverflow
	}
	return p.BaseAmount - p.BoughtAmount, nil
}

// PodNameString returns the pod name without its zero padding.
func (p *Pod) PodNameString() string { return trimFixed(p.PodName[:]) }

// TokenNameString returns the token name without its zero padding.
func (p *Pod) TokenNameString() string { return trimFixed(p.TokenName[:]) }

// TokenSymbolString returns the token symbol without its zero padding.
func (p *Pod) TokenSymbolString() string { return trimFixed(p.TokenSymbol[:]) }

func fixedBytes(dst []byte, s string) {
	copy(dst, s)
}

func trimFixed(b []byte) string {
	return string(bytes.TrimRight(b, "\x00"))
}

// Purchase is the breakdown of one Buy.
type Purchase struct {
	QuoteAmount  uint64
	Fee          uint64
	InputAmount  uint64
	OutputAmount uint64
	// RecipientFee is the half of the fee paid to the fee recipient.
	RecipientFee uint64
	// VaultAmount is what reaches the quote vault, including the retained
	// half of the fee.
	VaultAmount uint64
}

// Quote is a dry-run of Buy against a copy of the pod.
type Quote struct {
	Purchase
	Pod *Pod
}

// Vaults describes the escrow accounts held by the vault authority.
type Vaults struct {
	Authority    solana.PublicKey
	Bump         uint8
	BaseVault    solana.PublicKey
	QuoteVault   solana.PublicKey
	BaseBalance  uint64
	QuoteBalance uint64
}
