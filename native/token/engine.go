package token

import (
	"fmt"
	"math/bits"

	"github.com/gagliardetto/solana-go"

	"memepod/core/events"
)

type engineState interface {
	TokenMint(addr solana.PublicKey) (*Mint, bool, error)
	PutTokenMint(mint *Mint) error
	TokenAccount(addr solana.PublicKey) (*Account, bool, error)
	PutTokenAccount(account *Account) error
	DeleteTokenAccount(addr solana.PublicKey) error
	Lamports(owner solana.PublicKey) (uint64, error)
	SetLamports(owner solana.PublicKey, amount uint64) error
}

// Engine implements the ledger's token account primitives: mint registry,
// associated accounts, transfers, burns and native currency wrapping.
type Engine struct {
	state   engineState
	emitter events.Emitter
}

// NewEngine creates a token engine with a no-op emitter.
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

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

func addChecked(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// loadMint returns the stored mint. The native mint is always available even
// before it has been persisted.
func (e *Engine) loadMint(addr solana.PublicKey) (*Mint, error) {
	mint, ok, err := e.state.TokenMint(addr)
	if err != nil {
		return nil, err
	}
	if ok {
		return mint, nil
	}
	if addr.Equals(NativeMint) {
		return &Mint{Address: NativeMint, Decimals: NativeDecimals}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrMintNotFound, addr)
}

func (e *Engine) loadAccount(addr solana.PublicKey) (*Account, error) {
	account, ok, err := e.state.TokenAccount(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	return account, nil
}

func (e *Engine) authorize(account *Account, auth Authority) (solana.PublicKey, error) {
	signer, err := auth.Resolve()
	if err != nil {
		return solana.PublicKey{}, err
	}
	if !signer.Equals(account.Owner) {
		return solana.PublicKey{}, fmt.Errorf("%w: account %s", ErrOwnerMismatch, account.Address)
	}
	return signer, nil
}

// RegisterMint records a new mint with zero supply.
func (e *Engine) RegisterMint(addr solana.PublicKey, decimals uint8, authority solana.PublicKey) (*Mint, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if addr.IsZero() {
		return nil, ErrZeroAddress
	}
	if _, ok, err := e.state.TokenMint(addr); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: %s", ErrMintExists, addr)
	}
	mint := &Mint{Address: addr, Decimals: decimals, MintAuthority: authority}
	if addr.Equals(NativeMint) {
		mint.Decimals = NativeDecimals
		mint.MintAuthority = solana.PublicKey{}
	}
	if err := e.state.PutTokenMint(mint); err != nil {
		return nil, err
	}
	return mint.Clone(), nil
}

// Mint returns the mint registered under addr.
func (e *Engine) Mint(addr solana.PublicKey) (*Mint, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	mint, err := e.loadMint(addr)
	if err != nil {
		return nil, err
	}
	return mint.Clone(), nil
}

// Account returns the token account stored at addr.
func (e *Engine) Account(addr solana.PublicKey) (*Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	account, err := e.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	return account.Clone(), nil
}

// CreateAccountIfAbsent returns the associated token account of owner for
// mint, creating an empty one when it does not exist yet.
func (e *Engine) CreateAccountIfAbsent(owner, mintAddr solana.PublicKey) (*Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if owner.IsZero() || mintAddr.IsZero() {
		return nil, ErrZeroAddress
	}
	if _, err := e.loadMint(mintAddr); err != nil {
		return nil, err
	}
	addr, err := AssociatedAddress(owner, mintAddr)
	if err != nil {
		return nil, err
	}
	existing, ok, err := e.state.TokenAccount(addr)
	if err != nil {
		return nil, err
	}
	if ok {
		if !existing.Mint.Equals(mintAddr) || !existing.Owner.Equals(owner) {
			return nil, fmt.Errorf("%w: associated account %s", ErrMintMismatch, addr)
		}
		return existing, nil
	}
	account := &Account{Address: addr, Mint: mintAddr, Owner: owner}
	if err := e.state.PutTokenAccount(account); err != nil {
		return nil, err
	}
	return account, nil
}

// BalanceOf returns the amount held in owner's associated account for mint.
// Missing accounts hold zero.
func (e *Engine) BalanceOf(owner, mintAddr solana.PublicKey) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	addr, err := AssociatedAddress(owner, mintAddr)
	if err != nil {
		return 0, err
	}
	account, ok, err := e.state.TokenAccount(addr)
	if err != nil || !ok {
		return 0, err
	}
	return account.Amount, nil
}

// Lamports returns the unwrapped native balance held directly by owner.
func (e *Engine) Lamports(owner solana.PublicKey) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return e.state.Lamports(owner)
}

// NativeBalance returns everything owner can spend in the native currency:
// direct lamports plus the wrapped balance of its associated account.
func (e *Engine) NativeBalance(owner solana.PublicKey) (uint64, error) {
	lamports, err := e.Lamports(owner)
	if err != nil {
		return 0, err
	}
	wrapped, err := e.BalanceOf(owner, NativeMint)
	if err != nil {
		return 0, err
	}
	return addChecked(lamports, wrapped)
}

// Airdrop credits lamports directly to an identity.
func (e *Engine) Airdrop(owner solana.PublicKey, lamports uint64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if owner.IsZero() {
		return 0, ErrZeroAddress
	}
	current, err := e.state.Lamports(owner)
	if err != nil {
		return 0, err
	}
	updated, err := addChecked(current, lamports)
	if err != nil {
		return 0, err
	}
	if err := e.state.SetLamports(owner, updated); err != nil {
		return 0, err
	}
	return updated, nil
}

// MintTo issues new units of mint into owner's associated account. The
// authority must resolve to the mint authority.
func (e *Engine) MintTo(mintAddr, owner solana.PublicKey, amount uint64, auth Authority) (*Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	mint, err := e.loadMint(mintAddr)
	if err != nil {
		return nil, err
	}
	if mint.IsNative() {
		return nil, fmt.Errorf("%w: native mint is backed by lamports", ErrInvalidAuthority)
	}
	signer, err := auth.Resolve()
	if err != nil {
		return nil, err
	}
	if mint.MintAuthority.IsZero() || !signer.Equals(mint.MintAuthority) {
		return nil, fmt.Errorf("%w: mint authority", ErrOwnerMismatch)
	}
	account, err := e.CreateAccountIfAbsent(owner, mintAddr)
	if err != nil {
		return nil, err
	}
	if mint.Supply, err = addChecked(mint.Supply, amount); err != nil {
		return nil, err
	}
	if account.Amount, err = addChecked(account.Amount, amount); err != nil {
		return nil, err
	}
	if err := e.state.PutTokenMint(mint); err != nil {
		return nil, err
	}
	if err := e.state.PutTokenAccount(account); err != nil {
		return nil, err
	}
	e.emit(events.TokenSupply{Mint: mint.Address, Account: account.Address, Total: mint.Supply, Delta: amount, Reason: events.SupplyReasonMint})
	return account.Clone(), nil
}

// Transfer moves amount between two accounts of the same mint. The authority
// must resolve to the owner of the source account.
func (e *Engine) Transfer(from, to solana.PublicKey, amount uint64, auth Authority) error {
	if err := e.ready(); err != nil {
		return err
	}
	src, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	dst, err := e.loadAccount(to)
	if err != nil {
		return err
	}
	if !src.Mint.Equals(dst.Mint) {
		return fmt.Errorf("%w: %s -> %s", ErrMintMismatch, src.Mint, dst.Mint)
	}
	signer, err := e.authorize(src, auth)
	if err != nil {
		return err
	}
	if amount == 0 || from.Equals(to) {
		return nil
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: have %d need %d", ErrInsufficientFunds, src.Amount, amount)
	}
	credited, err := addChecked(dst.Amount, amount)
	if err != nil {
		return err
	}
	src.Amount -= amount
	dst.Amount = credited
	if err := e.state.PutTokenAccount(src); err != nil {
		return err
	}
	if err := e.state.PutTokenAccount(dst); err != nil {
		return err
	}
	e.emit(events.Transfer{Mint: src.Mint, From: from, To: to, Authority: signer, Amount: amount})
	return nil
}

// Burn destroys amount units held by account, reducing the mint supply.
func (e *Engine) Burn(addr solana.PublicKey, amount uint64, auth Authority) error {
	if err := e.ready(); err != nil {
		return err
	}
	account, err := e.loadAccount(addr)
	if err != nil {
		return err
	}
	if _, err := e.authorize(account, auth); err != nil {
		return err
	}
	mint, err := e.loadMint(account.Mint)
	if err != nil {
		return err
	}
	if account.Amount < amount {
		return fmt.Errorf("%w: have %d need %d", ErrInsufficientFunds, account.Amount, amount)
	}
	if mint.Supply < amount {
		return fmt.Errorf("%w: supply %d below burn %d", ErrInsufficientFunds, mint.Supply, amount)
	}
	if amount == 0 {
		return nil
	}
	account.Amount -= amount
	mint.Supply -= amount
	if err := e.state.PutTokenAccount(account); err != nil {
		return err
	}
	if err := e.state.PutTokenMint(mint); err != nil {
		return err
	}
	e.emit(events.TokenSupply{Mint: mint.Address, Account: account.Address, Total: mint.Supply, Delta: amount, Reason: events.SupplyReasonBurn})
	return nil
}

// SyncNative tops a wrapped native account up to target by moving lamports
// from owner. Accounts already holding target or more are left unchanged.
func (e *Engine) SyncNative(owner, addr solana.PublicKey, target uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	account, err := e.loadAccount(addr)
	if err != nil {
		return err
	}
	if !account.IsNative() {
		return fmt.Errorf("%w: %s", ErrNonNativeAccount, addr)
	}
	if account.Amount >= target {
		return nil
	}
	need := target - account.Amount
	lamports, err := e.state.Lamports(owner)
	if err != nil {
		return err
	}
	if lamports < need {
		return fmt.Errorf("%w: have %d lamports need %d", ErrInsufficientFunds, lamports, need)
	}
	mint, err := e.loadMint(NativeMint)
	if err != nil {
		return err
	}
	if mint.Supply, err = addChecked(mint.Supply, need); err != nil {
		return err
	}
	account.Amount = target
	if err := e.state.SetLamports(owner, lamports-need); err != nil {
		return err
	}
	if err := e.state.PutTokenAccount(account); err != nil {
		return err
	}
	if err := e.state.PutTokenMint(mint); err != nil {
		return err
	}
	e.emit(events.TokenSupply{Mint: NativeMint, Account: addr, Total: mint.Supply, Delta: need, Reason: events.SupplyReasonWrap})
	return nil
}

// CloseAccount deletes a token account. Wrapped native balances are returned
// to destination as lamports; other accounts must already be empty.
func (e *Engine) CloseAccount(addr, destination solana.PublicKey, auth Authority) error {
	if err := e.ready(); err != nil {
		return err
	}
	account, err := e.loadAccount(addr)
	if err != nil {
		return err
	}
	if _, err := e.authorize(account, auth); err != nil {
		return err
	}
	if !account.IsNative() {
		if account.Amount != 0 {
			return fmt.Errorf("%w: %s", ErrNonEmptyAccount, addr)
		}
		return e.state.DeleteTokenAccount(addr)
	}
	if account.Amount > 0 {
		lamports, err := e.state.Lamports(destination)
		if err != nil {
			return err
		}
		credited, err := addChecked(lamports, account.Amount)
		if err != nil {
			return err
		}
		mint, err := e.loadMint(NativeMint)
		if err != nil {
			return err
		}
		if mint.Supply < account.Amount {
			mint.Supply = 0
		} else {
			mint.Supply -= account.Amount
		}
		if err := e.state.SetLamports(destination, credited); err != nil {
			return err
		}
		if err := e.state.PutTokenMint(mint); err != nil {
			return err
		}
		e.emit(events.TokenSupply{Mint: NativeMint, Account: addr, Total: mint.Supply, Delta: account.Amount, Reason: events.SupplyReasonUnwrap})
	}
	return e.state.DeleteTokenAccount(addr)
}
