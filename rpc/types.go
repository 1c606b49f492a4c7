package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"

	"memepod/indexer"
	"memepod/native/mainstate"
	"memepod/native/pod"
	"memepod/native/token"
)

// Uint64 carries a base-unit amount. It is rendered as a decimal string and
// accepts either a string or a JSON number.
type Uint64 uint64

func (u Uint64) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatUint(uint64(u), 10))), nil
}

func (u *Uint64) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		trimmed = []byte(strings.TrimSpace(s))
	}
	v, err := strconv.ParseUint(string(trimmed), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", string(data))
	}
	*u = Uint64(v)
	return nil
}

func parseKey(field, raw string) (solana.PublicKey, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return solana.PublicKey{}, invalidParams("%s is required", field)
	}
	key, err := solana.PublicKeyFromBase58(trimmed)
	if err != nil {
		return solana.PublicKey{}, invalidParams("%s: invalid address %q", field, trimmed)
	}
	return key, nil
}

func parseOptionalKey(field, raw string, fallback solana.PublicKey) (solana.PublicKey, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return parseKey(field, raw)
}

// PodRef names a pod either by address or by its (owner, base, quote)
// identity. The quote asset defaults to the native mint.
type PodRef struct {
	Pod        string `json:"pod,omitempty"`
	Owner      string `json:"owner,omitempty"`
	BaseAsset  string `json:"baseAsset,omitempty"`
	QuoteAsset string `json:"quoteAsset,omitempty"`
}

type RegistryResult struct {
	Address      string `json:"address"`
	Initialized  bool   `json:"initialized"`
	Owner        string `json:"owner,omitempty"`
	FeeRecipient string `json:"feeRecipient,omitempty"`
	CreationFee  Uint64 `json:"creationFee"`
	TradingFee   uint16 `json:"tradingFee"`
	CreatorFee   uint16 `json:"creatorFee"`
	OwnerFee     uint16 `json:"ownerFee"`
}

func registryResult(program solana.PublicKey, st *mainstate.State) (*RegistryResult, error) {
	addr, _, err := mainstate.Address(program)
	if err != nil {
		return nil, err
	}
	out := &RegistryResult{Address: addr.String()}
	if st == nil || !st.Initialized {
		return out, nil
	}
	out.Initialized = true
	out.Owner = st.Owner.String()
	out.FeeRecipient = st.FeeRecipient.String()
	out.CreationFee = Uint64(st.CreationFee)
	out.TradingFee = st.TradingFee
	out.CreatorFee = st.CreatorFee
	out.OwnerFee = st.OwnerFee
	return out, nil
}

type PodResult struct {
	Address      string `json:"address"`
	Owner        string `json:"owner"`
	BaseAsset    string `json:"baseAsset"`
	QuoteAsset   string `json:"quoteAsset"`
	PodName      string `json:"podName"`
	TokenName    string `json:"tokenName"`
	TokenSymbol  string `json:"tokenSymbol"`
	Decimal      uint8  `json:"decimal"`
	BaseAmount   Uint64 `json:"baseAmount"`
	BoughtAmount Uint64 `json:"boughtAmount"`
	Unsold       Uint64 `json:"unsold"`
	TokenPrice   Uint64 `json:"tokenPrice"`
	ExpireTime   Uint64 `json:"expireTime"`
	IsActive     bool   `json:"isActive"`
}

func podResult(program solana.PublicKey, p *pod.Pod) (*PodResult, error) {
	if p == nil {
		return nil, nil
	}
	addr, err := pod.Address(program, p.ID())
	if err != nil {
		return nil, err
	}
	// Unsold is only an error for records that broke the inventory bound.
	unsold, _ := p.Unsold()
	return &PodResult{
		Address:      addr.String(),
		Owner:        p.Owner.String(),
		BaseAsset:    p.BaseAsset.String(),
		QuoteAsset:   p.QuoteAsset.String(),
		PodName:      p.PodNameString(),
		TokenName:    p.TokenNameString(),
		TokenSymbol:  p.TokenSymbolString(),
		Decimal:      p.Decimal,
		BaseAmount:   Uint64(p.BaseAmount),
		BoughtAmount: Uint64(p.BoughtAmount),
		Unsold:       Uint64(unsold),
		TokenPrice:   Uint64(p.TokenPrice),
		ExpireTime:   Uint64(p.ExpireTime),
		IsActive:     p.IsActive,
	}, nil
}

type PurchaseResult struct {
	QuoteAmount  Uint64 `json:"quoteAmount"`
	Fee          Uint64 `json:"fee"`
	InputAmount  Uint64 `json:"inputAmount"`
	OutputAmount Uint64 `json:"outputAmount"`
	RecipientFee Uint64 `json:"recipientFee"`
	VaultAmount  Uint64 `json:"vaultAmount"`
}

func purchaseResult(p pod.Purchase) PurchaseResult {
	return PurchaseResult{
		QuoteAmount:  Uint64(p.QuoteAmount),
		Fee:          Uint64(p.Fee),
		InputAmount:  Uint64(p.InputAmount),
		OutputAmount: Uint64(p.OutputAmount),
		RecipientFee: Uint64(p.RecipientFee),
		VaultAmount:  Uint64(p.VaultAmount),
	}
}

type QuoteResult struct {
	PurchaseResult
	Pod *PodResult `json:"pod"`
}

type VaultsResult struct {
	Authority    string `json:"authority"`
	Bump         uint8  `json:"bump"`
	BaseVault    string `json:"baseVault"`
	QuoteVault   string `json:"quoteVault"`
	BaseBalance  Uint64 `json:"baseBalance"`
	QuoteBalance Uint64 `json:"quoteBalance"`
}

func vaultsResult(v *pod.Vaults) VaultsResult {
	return VaultsResult{
		Authority:    v.Authority.String(),
		Bump:         v.Bump,
		BaseVault:    v.BaseVault.String(),
		QuoteVault:   v.QuoteVault.String(),
		BaseBalance:  Uint64(v.BaseBalance),
		QuoteBalance: Uint64(v.QuoteBalance),
	}
}

type MintResult struct {
	Address       string `json:"address"`
	Decimals      uint8  `json:"decimals"`
	Supply        Uint64 `json:"supply"`
	MintAuthority string `json:"mintAuthority,omitempty"`
}

func mintResult(m *token.Mint) MintResult {
	out := MintResult{Address: m.Address.String(), Decimals: m.Decimals, Supply: Uint64(m.Supply)}
	if !m.MintAuthority.IsZero() {
		out.MintAuthority = m.MintAuthority.String()
	}
	return out
}

type AccountResult struct {
	Address string `json:"address"`
	Mint    string `json:"mint"`
	Owner   string `json:"owner"`
	Amount  Uint64 `json:"amount"`
}

func accountResult(a *token.Account) AccountResult {
	return AccountResult{Address: a.Address.String(), Mint: a.Mint.String(), Owner: a.Owner.String(), Amount: Uint64(a.Amount)}
}

type BalanceResult struct {
	Owner   string `json:"owner"`
	Mint    string `json:"mint"`
	Balance Uint64 `json:"balance"`
}

type EventResult struct {
	ID         string            `json:"id"`
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Pod        string            `json:"pod,omitempty"`
	Actor      string            `json:"actor,omitempty"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  int64             `json:"createdAt"`
}

func eventResults(records []indexer.EventRecord) ([]EventResult, error) {
	out := make([]EventResult, 0, len(records))
	for _, rec := range records {
		attrs := map[string]string{}
		if rec.Attributes != "" {
			if err := json.Unmarshal([]byte(rec.Attributes), &attrs); err != nil {
				return nil, fmt.Errorf("decode attributes of event %s: %w", rec.ID, err)
			}
		}
		out = append(out, EventResult{
			ID:         rec.ID.String(),
			Sequence:   rec.Sequence,
			Type:       rec.Type,
			Pod:        rec.Pod,
			Actor:      rec.Actor,
			Attributes: attrs,
			CreatedAt:  rec.CreatedAt.Unix(),
		})
	}
	return out, nil
}
