package pod

import (
	"errors"
	"fmt"
	"math/bits"
	"time"

	"github.com/gagliardetto/solana-go"

	"memepod/core/events"
	podErrors "memepod/core/errors"
	"memepod/native/mainstate"
	"memepod/native/token"
)

type engineState interface {
	Pod(addr solana.PublicKey) (*Pod, bool, error)
	PutPod(addr solana.PublicKey, pod *Pod) error
	PodIndex() ([]solana.PublicKey, error)
	AppendPodIndex(addr solana.PublicKey) error
}

// ledger is the subset of the token engine the pod lifecycle moves funds
// through.
type ledger interface {
	Mint(addr solana.PublicKey) (*token.Mint, error)
	CreateAccountIfAbsent(owner, mint solana.PublicKey) (*token.Account, error)
	BalanceOf(owner, mint solana.PublicKey) (uint64, error)
	NativeBalance(owner solana.PublicKey) (uint64, error)
	Transfer(from, to solana.PublicKey, amount uint64, auth token.Authority) error
	Burn(addr solana.PublicKey, amount uint64, auth token.Authority) error
	SyncNative(owner, addr solana.PublicKey, target uint64) error
	CloseAccount(addr, destination solana.PublicKey, auth token.Authority) error
}

// Engine runs the pod lifecycle: Create, Buy, Edit, Withdraw and Close. Every
// operation receives the registry record explicitly.
type Engine struct {
	program solana.PublicKey
	state   engineState
	ledger  ledger
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a pod engine for program with a no-op emitter.
func NewEngine(program solana.PublicKey) *Engine {
	return &Engine{
		program: program,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the token ledger vault transfers are issued against.
func (e *Engine) SetLedger(l ledger) { e.ledger = l }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for event timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Program returns the program identity pods are derived under.
func (e *Engine) Program() solana.PublicKey { return e.program }

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	return nil
}

// ledgerErr maps token ledger failures onto the domain error kinds.
func ledgerErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, token.ErrOwnerMismatch), errors.Is(err, token.ErrInvalidAuthority):
		return fmt.Errorf("%w: %v", podErrors.ErrUnauthorised, err)
	case errors.Is(err, token.ErrInsufficientFunds):
		return fmt.Errorf("%w: %v", podErrors.ErrInsufficientFund, err)
	case errors.Is(err, token.ErrOverflow):
		return fmt.Errorf("%w: %v", ErrArithmeticOverflow, err)
	default:
		return err
	}
}

func requireInitialized(cfg *mainstate.State) error {
	if cfg == nil || !cfg.Initialized {
		return podErrors.ErrUninitialized
	}
	return nil
}

// loaded bundles a pod with its derived authority.
type loaded struct {
	pod       *Pod
	authority VaultAuthority
}

func (e *Engine) load(id ID) (*loaded, error) {
	authority, err := DeriveVaultAuthority(e.program, id)
	if err != nil {
		return nil, err
	}
	p, ok, err := e.state.Pod(authority.Address)
	if err != nil {
		return nil, err
	}
	if !ok || p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPodNotFound, authority.Address)
	}
	if p.ID() != id {
		return nil, fmt.Errorf("%w: %s", ErrIdentityMismatch, authority.Address)
	}
	if err := VerifyVaultAuthority(e.program, p.ID(), authority.Address, authority.Bump); err != nil {
		return nil, err
	}
	return &loaded{pod: p, authority: authority}, nil
}

// loadOwned loads an active pod on behalf of its owner.
func (e *Engine) loadOwned(cfg *mainstate.State, caller solana.PublicKey, id ID) (*loaded, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := requireInitialized(cfg); err != nil {
		return nil, err
	}
	l, err := e.load(id)
	if err != nil {
		return nil, err
	}
	if !caller.Equals(l.pod.Owner) {
		return nil, podErrors.ErrUnauthorised
	}
	if !l.pod.IsActive {
		return nil, podErrors.ErrNotActive
	}
	return l, nil
}

func (e *Engine) ata(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	account, err := e.ledger.CreateAccountIfAbsent(owner, mint)
	if err != nil {
		return solana.PublicKey{}, ledgerErr(err)
	}
	return account.Address, nil
}

// CreateInput carries the caller-supplied fields of a new pod.
type CreateInput struct {
	BaseAsset    solana.PublicKey
	QuoteAsset   solana.PublicKey
	PodName      string
	TokenName    string
	TokenSymbol  string
	BaseAmount   uint64
	TokenPrice   uint64
	TokenDecimal uint8
	ExpireTime   uint64
}

// Create opens a pod: the creator deposits BaseAmount into the base vault and
// pays the registry creation fee to the fee recipient.
func (e *Engine) Create(cfg *mainstate.State, creator solana.PublicKey, input CreateInput) (*Pod, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := requireInitialized(cfg); err != nil {
		return nil, err
	}
	if len(input.PodName) > PodNameLen {
		return nil, podErrors.ErrPodNameTooLong
	}
	if len(input.TokenName) > TokenNameLen {
		return nil, podErrors.ErrTokenNameTooLong
	}
	if len(input.TokenSymbol) > TokenSymbolLen {
		return nil, podErrors.ErrTokenSymbolTooLong
	}
	if !input.QuoteAsset.Equals(token.NativeMint) {
		return nil, podErrors.ErrUnknownToken
	}
	if input.BaseAsset.Equals(input.QuoteAsset) {
		return nil, fmt.Errorf("%w: base asset must differ from quote asset", podErrors.ErrUnknownToken)
	}
	if _, err := e.ledger.Mint(input.BaseAsset); err != nil {
		if errors.Is(err, token.ErrMintNotFound) {
			return nil, fmt.Errorf("%w: %v", podErrors.ErrUnknownToken, err)
		}
		return nil, err
	}

	id := ID{Owner: creator, BaseAsset: input.BaseAsset, QuoteAsset: input.QuoteAsset}
	authority, err := DeriveVaultAuthority(e.program, id)
	if err != nil {
		return nil, err
	}
	if _, exists, err := e.state.Pod(authority.Address); err != nil {
		return nil, err
	} else if exists {
		return nil, podErrors.ErrAlreadyInitialized
	}

	baseHeld, err := e.ledger.BalanceOf(creator, input.BaseAsset)
	if err != nil {
		return nil, ledgerErr(err)
	}
	if baseHeld < input.BaseAmount {
		return nil, fmt.Errorf("%w: base balance %d below deposit %d", podErrors.ErrInsufficientFund, baseHeld, input.BaseAmount)
	}
	quoteHeld, err := e.ledger.NativeBalance(creator)
	if err != nil {
		return nil, ledgerErr(err)
	}
	if quoteHeld < cfg.CreationFee {
		return nil, fmt.Errorf("%w: quote balance %d below creation fee %d", podErrors.ErrInsufficientFund, quoteHeld, cfg.CreationFee)
	}

	p := &Pod{
		Owner:      creator,
		BaseAsset:  input.BaseAsset,
		QuoteAsset: input.QuoteAsset,
		Decimal:    input.TokenDecimal,
		BaseAmount: input.BaseAmount,
		TokenPrice: input.TokenPrice,
		ExpireTime: input.ExpireTime,
		IsActive:   true,
	}
	fixedBytes(p.PodName[:], input.PodName)
	fixedBytes(p.TokenName[:], input.TokenName)
	fixedBytes(p.TokenSymbol[:], input.TokenSymbol)

	creatorBase, err := e.ata(creator, input.BaseAsset)
	if err != nil {
		return nil, err
	}
	creatorQuote, err := e.ata(creator, input.QuoteAsset)
	if err != nil {
		return nil, err
	}
	feeQuote, err := e.ata(cfg.FeeRecipient, input.QuoteAsset)
	if err != nil {
		return nil, err
	}
	vaultBase, err := e.ata(authority.Address, input.BaseAsset)
	if err != nil {
		return nil, err
	}

	if err := e.ledger.SyncNative(creator, creatorQuote, cfg.CreationFee); err != nil {
		return nil, ledgerErr(err)
	}
	signer := token.SignerAuthority(creator)
	if err := e.ledger.Transfer(creatorBase, vaultBase, input.BaseAmount, signer); err != nil {
		return nil, ledgerErr(err)
	}
	if err := e.ledger.Transfer(creatorQuote, feeQuote, cfg.CreationFee, signer); err != nil {
		return nil, ledgerErr(err)
	}

	if err := e.state.PutPod(authority.Address, p); err != nil {
		return nil, err
	}
	if err := e.state.AppendPodIndex(authority.Address); err != nil {
		return nil, err
	}
	e.emit(CreateEvent{
		Pod:        authority.Address,
		Creator:    p.Owner,
		BaseAsset:  p.BaseAsset,
		BaseAmount: p.BaseAmount,
		TokenPrice: p.TokenPrice,
		ExpireTime: p.ExpireTime,
		Timestamp:  e.now(),
	})
	return p.Clone(), nil
}

// ComputeReceivableAmountOnBuy converts inputAmount quote units into base
// units at the pod price and adds the result to BoughtAmount.
func (p *Pod) ComputeReceivableAmountOnBuy(inputAmount uint64) (uint64, error) {
	output, ok := ReceivableBaseAmount(inputAmount, p.TokenPrice)
	if !ok {
		return 0, ErrArithmeticOverflow
	}
	bought, carry := bits.Add64(p.BoughtAmount, output, 0)
	if carry != 0 {
		return 0, ErrArithmeticOverflow
	}
	p.BoughtAmount = bought
	return output, nil
}

// purchase runs the Buy computation on p, mutating its BoughtAmount.
func purchase(p *Pod, tradingFee uint16, quoteAmount uint64) (Purchase, error) {
	fee := TradingFeeAmount(tradingFee, quoteAmount)
	if quoteAmount < fee {
		return Purchase{}, ErrArithmeticOverflow
	}
	input := quoteAmount - fee
	output, err := p.ComputeReceivableAmountOnBuy(input)
	if err != nil {
		return Purchase{}, err
	}
	if p.BoughtAmount > p.BaseAmount {
		return Purchase{}, fmt.Errorf("%w: output %d exceeds unsold inventory", podErrors.ErrInsufficientFund, output)
	}
	return Purchase{
		QuoteAmount:  quoteAmount,
		Fee:          fee,
		InputAmount:  input,
		OutputAmount: output,
		RecipientFee: fee / 2,
		VaultAmount:  quoteAmount - fee/2,
	}, nil
}

// QuoteBuy estimates a Buy without persisting anything.
func (e *Engine) QuoteBuy(cfg *mainstate.State, id ID, quoteAmount uint64) (*Quote, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := requireInitialized(cfg); err != nil {
		return nil, err
	}
	l, err := e.load(id)
	if err != nil {
		return nil, err
	}
	if !l.pod.IsActive {
		return nil, podErrors.ErrNotActive
	}
	simulated := l.pod.Clone()
	result, err := purchase(simulated, cfg.TradingFee, quoteAmount)
	if err != nil {
		return nil, err
	}
	return &Quote{Purchase: result, Pod: simulated}, nil
}

// Buy purchases base units for quoteAmount. Half of the trading fee goes to
// the fee recipient; the rest of quoteAmount lands in the quote vault.
func (e *Engine) Buy(cfg *mainstate.State, buyer solana.PublicKey, id ID, quoteAmount uint64) (*Purchase, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := requireInitialized(cfg); err != nil {
		return nil, err
	}
	l, err := e.load(id)
	if err != nil {
		return nil, err
	}
	p := l.pod
	if !p.IsActive {
		return nil, podErrors.ErrNotActive
	}

	result, err := purchase(p, cfg.TradingFee, quoteAmount)
	if err != nil {
		return nil, err
	}

	buyerQuote, err := e.ata(buyer, p.QuoteAsset)
	if err != nil {
		return nil, err
	}
	buyerBase, err := e.ata(buyer, p.BaseAsset)
	if err != nil {
		return nil, err
	}
	feeQuote, err := e.ata(cfg.FeeRecipient, p.QuoteAsset)
	if err != nil {
		return nil, err
	}
	vaultBase, err := e.ata(l.authority.Address, p.BaseAsset)
	if err != nil {
		return nil, err
	}
	vaultQuote, err := e.ata(l.authority.Address, p.QuoteAsset)
	if err != nil {
		return nil, err
	}

	if err := e.ledger.SyncNative(buyer, buyerQuote, quoteAmount); err != nil {
		return nil, ledgerErr(err)
	}
	signer := token.SignerAuthority(buyer)
	if err := e.ledger.Transfer(buyerQuote, feeQuote, result.RecipientFee, signer); err != nil {
		return nil, ledgerErr(err)
	}
	if err := e.ledger.Transfer(buyerQuote, vaultQuote, result.VaultAmount, signer); err != nil {
		return nil, ledgerErr(err)
	}
	if err := e.ledger.Transfer(vaultBase, buyerBase, result.OutputAmount, l.authority.Signer()); err != nil {
		return nil, ledgerErr(err)
	}
	if err := e.ledger.CloseAccount(buyerQuote, buyer, signer); err != nil {
		return nil, ledgerErr(err)
	}

	if err := e.state.PutPod(l.authority.Address, p); err != nil {
		return nil, err
	}
	e.emit(BuyEvent{
		Pod:         l.authority.Address,
		User:        buyer,
		BaseAsset:   p.BaseAsset,
		QuoteAmount: quoteAmount,
		BaseAmount:  result.OutputAmount,
		Timestamp:   e.now(),
	})
	return &result, nil
}

// Edit tops up inventory by additionalBase and replaces the price.
func (e *Engine) Edit(cfg *mainstate.State, admin solana.PublicKey, id ID, additionalBase, newPrice uint64) (*Pod, error) {
	l, err := e.loadOwned(cfg, admin, id)
	if err != nil {
		return nil, err
	}
	p := l.pod
	total, carry := bits.Add64(p.BaseAmount, additionalBase, 0)
	if carry != 0 {
		return nil, ErrArithmeticOverflow
	}

	adminBase, err := e.ata(admin, p.BaseAsset)
	if err != nil {
		return nil, err
	}
	vaultBase, err := e.ata(l.authority.Address, p.BaseAsset)
	if err != nil {
		return nil, err
	}
	if err := e.ledger.Transfer(adminBase, vaultBase, additionalBase, token.SignerAuthority(admin)); err != nil {
		return nil, ledgerErr(err)
	}

	p.TokenPrice = newPrice
	p.BaseAmount = total
	if err := e.state.PutPod(l.authority.Address, p); err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// Withdraw moves baseOut unsold base units and quoteOut quote units from the
// vaults to the owner. At least one unsold base unit must remain.
func (e *Engine) Withdraw(cfg *mainstate.State, admin solana.PublicKey, id ID, baseOut, quoteOut uint64) (*Pod, error) {
	l, err := e.loadOwned(cfg, admin, id)
	if err != nil {
		return nil, err
	}
	p := l.pod

	if baseOut > 0 {
		unsold, err := p.Unsold()
		if err != nil {
			return nil, err
		}
		if unsold <= baseOut {
			return nil, fmt.Errorf("%w: unsold %d must exceed withdrawal %d", podErrors.ErrInsufficientFund, unsold, baseOut)
		}
		p.BaseAmount -= baseOut

		adminBase, err := e.ata(admin, p.BaseAsset)
		if err != nil {
			return nil, err
		}
		vaultBase, err := e.ata(l.authority.Address, p.BaseAsset)
		if err != nil {
			return nil, err
		}
		if err := e.ledger.Transfer(vaultBase, adminBase, baseOut, l.authority.Signer()); err != nil {
			return nil, ledgerErr(err)
		}
	}

	if quoteOut > 0 {
		adminQuote, err := e.ata(admin, p.QuoteAsset)
		if err != nil {
			return nil, err
		}
		vaultQuote, err := e.ata(l.authority.Address, p.QuoteAsset)
		if err != nil {
			return nil, err
		}
		if err := e.ledger.Transfer(vaultQuote, adminQuote, quoteOut, l.authority.Signer()); err != nil {
			return nil, ledgerErr(err)
		}
		if err := e.ledger.CloseAccount(adminQuote, admin, token.SignerAuthority(admin)); err != nil {
			return nil, ledgerErr(err)
		}
	}

	if err := e.state.PutPod(l.authority.Address, p); err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// Close deactivates the pod and burns its unsold inventory from the base
// vault. It cannot be undone.
func (e *Engine) Close(cfg *mainstate.State, admin solana.PublicKey, id ID) (*Pod, error) {
	l, err := e.loadOwned(cfg, admin, id)
	if err != nil {
		return nil, err
	}
	p := l.pod
	unsold, err := p.Unsold()
	if err != nil {
		return nil, err
	}
	p.IsActive = false

	vaultBase, err := e.ata(l.authority.Address, p.BaseAsset)
	if err != nil {
		return nil, err
	}
	if err := e.ledger.Burn(vaultBase, unsold, l.authority.Signer()); err != nil {
		return nil, ledgerErr(err)
	}
	if err := e.state.PutPod(l.authority.Address, p); err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// Get returns the pod identified by id.
func (e *Engine) Get(id ID) (*Pod, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	l, err := e.load(id)
	if err != nil {
		return nil, err
	}
	return l.pod.Clone(), nil
}

// GetByAddress returns the pod stored at addr.
func (e *Engine) GetByAddress(addr solana.PublicKey) (*Pod, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	p, ok, err := e.state.Pod(addr)
	if err != nil {
		return nil, err
	}
	if !ok || p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPodNotFound, addr)
	}
	return p, nil
}

// List returns every pod in creation order.
func (e *Engine) List() ([]*Pod, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	addrs, err := e.state.PodIndex()
	if err != nil {
		return nil, err
	}
	out := make([]*Pod, 0, len(addrs))
	for _, addr := range addrs {
		p, ok, err := e.state.Pod(addr)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// VaultAuthority returns the derived authority for id.
func (e *Engine) VaultAuthority(id ID) (VaultAuthority, error) {
	return DeriveVaultAuthority(e.program, id)
}

// Vaults reports both escrow vault addresses and balances. Vaults that have
// not been created yet report zero.
func (e *Engine) Vaults(id ID) (*Vaults, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	l, err := e.load(id)
	if err != nil {
		return nil, err
	}
	out := &Vaults{Authority: l.authority.Address, Bump: l.authority.Bump}
	if out.BaseVault, err = token.AssociatedAddress(l.authority.Address, id.BaseAsset); err != nil {
		return nil, err
	}
	if out.QuoteVault, err = token.AssociatedAddress(l.authority.Address, id.QuoteAsset); err != nil {
		return nil, err
	}
	if out.BaseBalance, err = e.ledger.BalanceOf(l.authority.Address, id.BaseAsset); err != nil {
		return nil, err
	}
	if out.QuoteBalance, err = e.ledger.BalanceOf(l.authority.Address, id.QuoteAsset); err != nil {
		return nil, err
	}
	return out, nil
}
