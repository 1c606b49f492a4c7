package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	podErrors "memepod/core/errors"
	"memepod/core/genesis"
	"memepod/core/types"
	"memepod/indexer"
	"memepod/native/pod"
	"memepod/native/token"
	"memepod/storage"
)

var nodeTestProgram = solana.MustPublicKeyFromBase58("5EFN2ja837Uk3setSnu99JvSfx8H8sNWKx3Hndm3XeKb")

type recordingSink struct {
	mu      sync.Mutex
	batches [][]*types.Event
}

func (s *recordingSink) Publish(_ context.Context, batch []*types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batch)
	return nil
}

func (s *recordingSink) eventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, batch := range s.batches {
		for _, evt := range batch {
			out = append(out, evt.Type)
		}
	}
	return out
}

type nodeFixture struct {
	node    *Node
	db      storage.Database
	sink    *recordingSink
	owner   solana.PublicKey
	creator solana.PublicKey
	buyer   solana.PublicKey
	base    solana.PublicKey
	id      pod.ID
}

func newNodeFixture(t *testing.T) *nodeFixture {
	t.Helper()
	ctx := context.Background()
	db := storage.NewMemDB()
	node, err := NewNode(db, nodeTestProgram)
	require.NoError(t, err)
	node.SetNowFunc(func() time.Time { return time.Unix(1_700_000_000, 0) })
	sink := &recordingSink{}
	node.AddSink(sink)

	f := &nodeFixture{
		node:    node,
		db:      db,
		sink:    sink,
		owner:   solana.NewWallet().PublicKey(),
		creator: solana.NewWallet().PublicKey(),
		buyer:   solana.NewWallet().PublicKey(),
		base:    solana.NewWallet().PublicKey(),
	}
	_, err = node.RegistryInit(ctx, f.owner)
	require.NoError(t, err)
	_, err = node.TokenRegisterMint(ctx, f.base, 6, f.creator)
	require.NoError(t, err)
	_, err = node.TokenMintTo(ctx, f.base, f.creator, 1_000_000_000, f.creator)
	require.NoError(t, err)
	_, err = node.TokenAirdrop(ctx, f.creator, 200_000_000)
	require.NoError(t, err)

	created, err := node.PodCreate(ctx, f.creator, pod.CreateInput{
		BaseAsset:    f.base,
		QuoteAsset:   token.NativeMint,
		PodName:      "launch",
		TokenName:    "Meme",
		TokenSymbol:  "MEME",
		BaseAmount:   1_000_000_000,
		TokenPrice:   2_000_000_000,
		TokenDecimal: 6,
	})
	require.NoError(t, err)
	f.id = created.ID()
	return f
}

func TestNodeBuyCommitsAndPublishes(t *testing.T) {
	f := newNodeFixture(t)
	ctx := context.Background()
	_, err := f.node.TokenAirdrop(ctx, f.buyer, 1_000)
	require.NoError(t, err)

	purchase, err := f.node.PodBuy(ctx, f.buyer, f.id, 1_000)
	require.NoError(t, err)
	require.Equal(t, uint64(1), purchase.Fee)
	require.Equal(t, uint64(1_998), purchase.OutputAmount)

	balance, err := f.node.TokenBalance(f.buyer, f.base)
	require.NoError(t, err)
	require.Equal(t, purchase.OutputAmount, balance)

	stored, err := f.node.PodGet(f.id)
	require.NoError(t, err)
	require.Equal(t, purchase.OutputAmount, stored.BoughtAmount)

	// A node reopened over the same database sees the committed pod.
	reopened, err := NewNode(f.db, nodeTestProgram)
	require.NoError(t, err)
	again, err := reopened.PodGet(f.id)
	require.NoError(t, err)
	require.Equal(t, stored.BoughtAmount, again.BoughtAmount)

	require.Contains(t, f.sink.eventTypes(), pod.EventTypeBuy)
}

func TestNodeFailedBuyLeavesNoTrace(t *testing.T) {
	f := newNodeFixture(t)
	ctx := context.Background()
	before := len(f.sink.eventTypes())

	// No lamports: the buyer's accounts are created before the wrap fails.
	_, err := f.node.PodBuy(ctx, f.buyer, f.id, 1_000)
	require.ErrorIs(t, err, podErrors.ErrInsufficientFund)

	buyerBase, err := token.AssociatedAddress(f.buyer, f.base)
	require.NoError(t, err)
	err = f.node.view(func(c *call) error {
		_, err := c.tokens.Account(buyerBase)
		return err
	})
	require.True(t, errors.Is(err, token.ErrAccountNotFound), "unexpected error %v", err)

	stored, err := f.node.PodGet(f.id)
	require.NoError(t, err)
	require.Zero(t, stored.BoughtAmount)
	require.Len(t, f.sink.eventTypes(), before)
}

func TestNodeRegistryPreconditions(t *testing.T) {
	ctx := context.Background()
	node, err := NewNode(storage.NewMemDB(), nodeTestProgram)
	require.NoError(t, err)

	cfg, err := node.Registry()
	require.NoError(t, err)
	require.False(t, cfg.Initialized)

	_, err = node.PodCreate(ctx, solana.NewWallet().PublicKey(), pod.CreateInput{QuoteAsset: token.NativeMint})
	require.ErrorIs(t, err, podErrors.ErrUninitialized)

	owner := solana.NewWallet().PublicKey()
	_, err = node.RegistryInit(ctx, owner)
	require.NoError(t, err)
	_, err = node.RegistryInit(ctx, owner)
	require.ErrorIs(t, err, podErrors.ErrAlreadyInitialized)
}

func TestNodeGenesisAppliedOnce(t *testing.T) {
	ctx := context.Background()
	node, err := NewNode(storage.NewMemDB(), nodeTestProgram)
	require.NoError(t, err)

	owner := solana.NewWallet().PublicKey()
	spec := &genesis.Spec{
		GenesisTime: "2024-01-01T00:00:00Z",
		Lamports:    map[string]uint64{owner.String(): 5_000},
		Registry:    &genesis.RegistrySpec{Owner: owner.String()},
	}
	applied, err := node.ApplyGenesis(ctx, spec)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = node.ApplyGenesis(ctx, spec)
	require.NoError(t, err)
	require.False(t, applied)

	balance, err := node.TokenBalance(owner, token.NativeMint)
	require.NoError(t, err)
	require.Equal(t, uint64(5_000), balance)

	cfg, err := node.Registry()
	require.NoError(t, err)
	require.True(t, cfg.Initialized)
	require.True(t, cfg.Owner.Equals(owner))
}

func TestNodeEventsWithoutIndexer(t *testing.T) {
	node, err := NewNode(storage.NewMemDB(), nodeTestProgram)
	require.NoError(t, err)
	_, err = node.Events(context.Background(), indexer.Filter{})
	require.ErrorIs(t, err, ErrIndexerUnavailable)
}
