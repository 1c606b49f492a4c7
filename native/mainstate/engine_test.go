package mainstate

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"

	"memepod/core/events"
	podErrors "memepod/core/errors"
)

type mockState struct {
	record *State
}

func (m *mockState) MainState() (*State, bool, error) {
	if m.record == nil {
		return nil, false, nil
	}
	return m.record.Clone(), true, nil
}

func (m *mockState) PutMainState(s *State) error {
	m.record = s.Clone()
	return nil
}

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

func TestInitAppliesDefaults(t *testing.T) {
	engine := NewEngine()
	st := &mockState{}
	emitter := &captureEmitter{}
	engine.SetState(st)
	engine.SetEmitter(emitter)

	caller := solana.NewWallet().PublicKey()
	got, err := engine.Init(caller)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !got.Initialized || !got.Owner.Equals(caller) || !got.FeeRecipient.Equals(caller) {
		t.Fatalf("unexpected identities: %+v", got)
	}
	if got.TradingFee != 1_000 || got.CreatorFee != 1_000 || got.OwnerFee != 1_000 {
		t.Fatalf("unexpected fee defaults: %+v", got)
	}
	if got.CreationFee != 100_000_000 {
		t.Fatalf("unexpected creation fee: %d", got.CreationFee)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType() != EventTypeInitialized {
		t.Fatalf("expected initialized event, got %+v", emitter.events)
	}
	if _, err := engine.Init(caller); !errors.Is(err, podErrors.ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestUpdateIsOwnerGated(t *testing.T) {
	engine := NewEngine()
	engine.SetState(&mockState{})
	owner := solana.NewWallet().PublicKey()
	stranger := solana.NewWallet().PublicKey()
	input := UpdateInput{
		Owner:        stranger,
		FeeRecipient: stranger,
		CreationFee:  5,
		TradingFee:   20_000,
		CreatorFee:   1,
		OwnerFee:     2,
	}

	if _, err := engine.Update(owner, input); !errors.Is(err, podErrors.ErrUninitialized) {
		t.Fatalf("expected ErrUninitialized, got %v", err)
	}
	if _, err := engine.Init(owner); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := engine.Update(stranger, input); !errors.Is(err, podErrors.ErrUnauthorised) {
		t.Fatalf("expected ErrUnauthorised, got %v", err)
	}
	updated, err := engine.Update(owner, input)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Owner.Equals(stranger) || updated.TradingFee != 20_000 || updated.CreationFee != 5 {
		t.Fatalf("update not applied: %+v", updated)
	}
	// Ownership moved with the update.
	if _, err := engine.Update(owner, input); !errors.Is(err, podErrors.ErrUnauthorised) {
		t.Fatalf("expected previous owner rejected, got %v", err)
	}
}

func TestUpdateRejectsZeroAuthorities(t *testing.T) {
	engine := NewEngine()
	st := &mockState{}
	emitter := &captureEmitter{}
	engine.SetState(st)
	engine.SetEmitter(emitter)
	owner := solana.NewWallet().PublicKey()
	if _, err := engine.Init(owner); err != nil {
		t.Fatalf("init: %v", err)
	}

	cases := map[string]UpdateInput{
		"zero owner":         {Owner: solana.PublicKey{}, FeeRecipient: owner, TradingFee: 1},
		"zero fee recipient": {Owner: owner, FeeRecipient: solana.MustPublicKeyFromBase58("11111111111111111111111111111111"), TradingFee: 1},
	}
	for name, input := range cases {
		_, err := engine.Update(owner, input)
		if !errors.Is(err, ErrZeroAuthority) || !errors.Is(err, podErrors.ErrUnauthorised) {
			t.Fatalf("%s: expected ErrZeroAuthority, got %v", name, err)
		}
	}
	got, err := engine.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Owner.Equals(owner) || !got.FeeRecipient.Equals(owner) || got.TradingFee != DefaultTradingFee {
		t.Fatalf("rejected update mutated registry: %+v", got)
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected only the init event, got %d", len(emitter.events))
	}
}

func TestGetReturnsCopy(t *testing.T) {
	engine := NewEngine()
	engine.SetState(&mockState{})
	empty, err := engine.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if empty.Initialized {
		t.Fatalf("expected uninitialized registry")
	}
	owner := solana.NewWallet().PublicKey()
	if _, err := engine.Init(owner); err != nil {
		t.Fatalf("init: %v", err)
	}
	got, _ := engine.Get()
	got.TradingFee = 0
	again, _ := engine.Get()
	if again.TradingFee != DefaultTradingFee {
		t.Fatalf("mutation leaked into registry")
	}
}

func TestAddressIsDeterministic(t *testing.T) {
	program := solana.MustPublicKeyFromBase58("5EFN2ja837Uk3setSnu99JvSfx8H8sNWKx3Hndm3XeKb")
	first, bump, err := Address(program)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	second, bump2, _ := Address(program)
	if !first.Equals(second) || bump != bump2 {
		t.Fatalf("address derivation not deterministic")
	}
	rebuilt, err := solana.CreateProgramAddress([][]byte{[]byte(Seed), {bump}}, program)
	if err != nil || !rebuilt.Equals(first) {
		t.Fatalf("bump does not reproduce registry address: %v", err)
	}
}
