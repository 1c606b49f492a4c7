package mainstate

import (
	"strconv"

	"memepod/core/types"
)

const (
	EventTypeInitialized = "mainstate.initialized"
	EventTypeUpdated     = "mainstate.updated"
)

type registryEvent struct {
	evt *types.Event
}

func (e registryEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e registryEvent) Event() *types.Event { return e.evt }

func newRegistryEvent(eventType string, s *State) *types.Event {
	attrs := map[string]string{}
	if s != nil {
		attrs["owner"] = s.Owner.String()
		attrs["feeRecipient"] = s.FeeRecipient.String()
		attrs["creationFee"] = strconv.FormatUint(s.CreationFee, 10)
		attrs["tradingFee"] = strconv.FormatUint(uint64(s.TradingFee), 10)
		attrs["creatorFee"] = strconv.FormatUint(uint64(s.CreatorFee), 10)
		attrs["ownerFee"] = strconv.FormatUint(uint64(s.OwnerFee), 10)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
