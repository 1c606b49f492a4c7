package state

import (
	"errors"

	"github.com/gagliardetto/solana-go"

	"memepod/native/token"
)

var errNilRecord = errors.New("state: nil record")

type storedMint struct {
	Address       [32]byte
	Decimals      uint8
	Supply        uint64
	MintAuthority [32]byte
}

type storedTokenAccount struct {
	Address [32]byte
	Mint    [32]byte
	Owner   [32]byte
	Amount  uint64
}

// TokenMint loads the mint registered at addr.
func (m *Manager) TokenMint(addr solana.PublicKey) (*token.Mint, bool, error) {
	var stored storedMint
	ok, err := m.KVGet(TokenMintKey(addr), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &token.Mint{
		Address:       stored.Address,
		Decimals:      stored.Decimals,
		Supply:        stored.Supply,
		MintAuthority: stored.MintAuthority,
	}, true, nil
}

// PutTokenMint writes a mint record.
func (m *Manager) PutTokenMint(mint *token.Mint) error {
	if mint == nil {
		return errNilRecord
	}
	return m.KVPut(TokenMintKey(mint.Address), &storedMint{
		Address:       mint.Address,
		Decimals:      mint.Decimals,
		Supply:        mint.Supply,
		MintAuthority: mint.MintAuthority,
	})
}

// TokenAccount loads the token account stored at addr.
func (m *Manager) TokenAccount(addr solana.PublicKey) (*token.Account, bool, error) {
	var stored storedTokenAccount
	ok, err := m.KVGet(TokenAccountKey(addr), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &token.Account{
		Address: stored.Address,
		Mint:    stored.Mint,
		Owner:   stored.Owner,
		Amount:  stored.Amount,
	}, true, nil
}

// PutTokenAccount writes a token account record.
func (m *Manager) PutTokenAccount(account *token.Account) error {
	if account == nil {
		return errNilRecord
	}
	return m.KVPut(TokenAccountKey(account.Address), &storedTokenAccount{
		Address: account.Address,
		Mint:    account.Mint,
		Owner:   account.Owner,
		Amount:  account.Amount,
	})
}

// DeleteTokenAccount removes a token account record.
func (m *Manager) DeleteTokenAccount(addr solana.PublicKey) error {
	return m.KVDelete(TokenAccountKey(addr))
}

// Lamports returns the native balance held directly by owner.
func (m *Manager) Lamports(owner solana.PublicKey) (uint64, error) {
	var amount uint64
	if _, err := m.KVGet(LamportsKey(owner), &amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// SetLamports overwrites the native balance of owner. Zero balances are
// deleted.
func (m *Manager) SetLamports(owner solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return m.KVDelete(LamportsKey(owner))
	}
	return m.KVPut(LamportsKey(owner), amount)
}
