package mainstate

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"memepod/core/events"
	podErrors "memepod/core/errors"
	"memepod/core/types"
)

var errNilState = errors.New("mainstate engine: state not configured")

// ErrZeroAuthority rejects an update that would hand the registry, or its fee
// stream, to the all-zero key nobody can sign for.
var ErrZeroAuthority = fmt.Errorf("%w: owner and fee recipient must not be the zero key", podErrors.ErrUnauthorised)

type engineState interface {
	MainState() (*State, bool, error)
	PutMainState(*State) error
}

// Engine owns the registry's init/update entry points.
type Engine struct {
	state   engineState
	emitter events.Emitter
}

// NewEngine creates a registry engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(registryEvent{evt: event})
}

func (e *Engine) load() (*State, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	current, ok, err := e.state.MainState()
	if err != nil {
		return nil, err
	}
	if !ok || current == nil {
		return &State{}, nil
	}
	return current, nil
}

// Init creates the registry with default fees; caller becomes both owner and
// fee recipient.
func (e *Engine) Init(caller solana.PublicKey) (*State, error) {
	current, err := e.load()
	if err != nil {
		return nil, err
	}
	if current.Initialized {
		return nil, podErrors.ErrAlreadyInitialized
	}
	next := &State{
		Initialized:  true,
		Owner:        caller,
		FeeRecipient: caller,
		CreationFee:  DefaultCreationFee,
		TradingFee:   DefaultTradingFee,
		CreatorFee:   DefaultCreatorFee,
		OwnerFee:     DefaultOwnerFee,
	}
	if err := e.state.PutMainState(next); err != nil {
		return nil, err
	}
	e.emit(newRegistryEvent(EventTypeInitialized, next))
	return next.Clone(), nil
}

// Update replaces every registry field. Only the current owner may call it.
func (e *Engine) Update(caller solana.PublicKey, input UpdateInput) (*State, error) {
	current, err := e.load()
	if err != nil {
		return nil, err
	}
	if !current.Initialized {
		return nil, podErrors.ErrUninitialized
	}
	if !caller.Equals(current.Owner) {
		return nil, podErrors.ErrUnauthorised
	}
	if input.Owner.IsZero() || input.FeeRecipient.IsZero() {
		return nil, ErrZeroAuthority
	}
	next := &State{
		Initialized:  true,
		Owner:        input.Owner,
		FeeRecipient: input.FeeRecipient,
		CreationFee:  input.CreationFee,
		TradingFee:   input.TradingFee,
		CreatorFee:   input.CreatorFee,
		OwnerFee:     input.OwnerFee,
	}
	if err := e.state.PutMainState(next); err != nil {
		return nil, err
	}
	e.emit(newRegistryEvent(EventTypeUpdated, next))
	return next.Clone(), nil
}

// Get returns a copy of the registry. An absent registry is returned as an
// uninitialized zero record.
func (e *Engine) Get() (*State, error) {
	current, err := e.load()
	if err != nil {
		return nil, err
	}
	return current.Clone(), nil
}
