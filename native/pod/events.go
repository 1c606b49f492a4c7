package pod

import (
	"strconv"

	"github.com/gagliardetto/solana-go"

	"memepod/core/types"
)

const (
	EventTypeCreate   = "pod.create"
	EventTypeBuy      = "pod.buy"
	EventTypeComplete = "pod.complete"
)

// CreateEvent is emitted when a pod is opened.
type CreateEvent struct {
	Pod        solana.PublicKey
	Creator    solana.PublicKey
	BaseAsset  solana.PublicKey
	BaseAmount uint64
	TokenPrice uint64
	ExpireTime uint64
	Timestamp  int64
}

func (CreateEvent) EventType() string { return EventTypeCreate }

func (e CreateEvent) Event() *types.Event {
	return &types.Event{Type: EventTypeCreate, Attributes: map[string]string{
		"pod":        e.Pod.String(),
		"creator":    e.Creator.String(),
		"baseMint":   e.BaseAsset.String(),
		"baseAmount": strconv.FormatUint(e.BaseAmount, 10),
		"tokenPrice": strconv.FormatUint(e.TokenPrice, 10),
		"expireTime": strconv.FormatUint(e.ExpireTime, 10),
		"timestamp":  strconv.FormatInt(e.Timestamp, 10),
	}}
}

// BuyEvent is emitted for every purchase.
type BuyEvent struct {
	Pod         solana.PublicKey
	User        solana.PublicKey
	BaseAsset   solana.PublicKey
	QuoteAmount uint64
	BaseAmount  uint64
	Timestamp   int64
}

func (BuyEvent) EventType() string { return EventTypeBuy }

func (e BuyEvent) Event() *types.Event {
	return &types.Event{Type: EventTypeBuy, Attributes: map[string]string{
		"pod":         e.Pod.String(),
		"user":        e.User.String(),
		"baseMint":    e.BaseAsset.String(),
		"quoteAmount": strconv.FormatUint(e.QuoteAmount, 10),
		"baseAmount":  strconv.FormatUint(e.BaseAmount, 10),
		"timestamp":   strconv.FormatInt(e.Timestamp, 10),
	}}
}

// CompleteEvent is part of the published event schema. No operation emits it.
type CompleteEvent struct {
	Pod       solana.PublicKey
	User      solana.PublicKey
	BaseAsset solana.PublicKey
	Timestamp int64
}

func (CompleteEvent) EventType() string { return EventTypeComplete }

func (e CompleteEvent) Event() *types.Event {
	return &types.Event{Type: EventTypeComplete, Attributes: map[string]string{
		"pod":       e.Pod.String(),
		"user":      e.User.String(),
		"baseMint":  e.BaseAsset.String(),
		"timestamp": strconv.FormatInt(e.Timestamp, 10),
	}}
}
