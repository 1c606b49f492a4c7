package state

import (
	"memepod/native/mainstate"
)

type storedMainState struct {
	Initialized  bool
	Owner        [32]byte
	FeeRecipient [32]byte
	CreationFee  uint64
	TradingFee   uint16
	CreatorFee   uint16
	OwnerFee     uint16
}

func newStoredMainState(s *mainstate.State) *storedMainState {
	return &storedMainState{
		Initialized:  s.Initialized,
		Owner:        s.Owner,
		FeeRecipient: s.FeeRecipient,
		CreationFee:  s.CreationFee,
		TradingFee:   s.TradingFee,
		CreatorFee:   s.CreatorFee,
		OwnerFee:     s.OwnerFee,
	}
}

func (s *storedMainState) toState() *mainstate.State {
	return &mainstate.State{
		Initialized:  s.Initialized,
		Owner:        s.Owner,
		FeeRecipient: s.FeeRecipient,
		CreationFee:  s.CreationFee,
		TradingFee:   s.TradingFee,
		CreatorFee:   s.CreatorFee,
		OwnerFee:     s.OwnerFee,
	}
}

// MainState loads the registry record. The boolean reports whether it exists.
func (m *Manager) MainState() (*mainstate.State, bool, error) {
	var stored storedMainState
	ok, err := m.KVGet(MainStateKey(), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return stored.toState(), true, nil
}

// PutMainState overwrites the registry record.
func (m *Manager) PutMainState(s *mainstate.State) error {
	if s == nil {
		return errNilRecord
	}
	return m.KVPut(MainStateKey(), newStoredMainState(s))
}
