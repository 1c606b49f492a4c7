package rpc

import (
	"container/list"
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Envelope nonces are the signer's wall clock in unix nanoseconds. A nonce is
// accepted once, and only while it lies within [now-ttl, now+skew].
const (
	defaultNonceWindow   = 10 * time.Minute
	maxNonceWindow       = time.Hour
	defaultNonceSkew     = 30 * time.Second
	maxNonceSkew         = 2 * time.Minute
	defaultNonceCapacity = 65536
	noncePruneInterval   = time.Minute
)

// NoncePersistence keeps consumed nonces across restarts. EnsureNonce
// records the pair and reports whether it had already been recorded.
type NoncePersistence interface {
	EnsureNonce(ctx context.Context, signer string, nonce uint64, observedAt time.Time) (bool, error)
	PruneNonces(ctx context.Context, cutoff time.Time) error
}

type nonceEntry struct {
	key     string
	expires time.Time
}

// nonceGuard rejects stale, future and repeated envelope nonces. Entries are
// kept until no envelope carrying them could pass the window check again.
type nonceGuard struct {
	ttl         time.Duration
	skew        time.Duration
	capacity    int
	persistence NoncePersistence

	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	lastPruned time.Time
}

func newNonceGuard(ttl, skew time.Duration, capacity int, persistence NoncePersistence) *nonceGuard {
	if ttl <= 0 {
		ttl = defaultNonceWindow
	}
	if ttl > maxNonceWindow {
		ttl = maxNonceWindow
	}
	if skew <= 0 {
		skew = defaultNonceSkew
	}
	if skew > maxNonceSkew {
		skew = maxNonceSkew
	}
	if capacity <= 0 {
		capacity = defaultNonceCapacity
	}
	return &nonceGuard{
		ttl:         ttl,
		skew:        skew,
		capacity:    capacity,
		persistence: persistence,
		entries:     make(map[string]*list.Element),
		order:       list.New(),
	}
}

// retention is how long a consumed nonce must be remembered after it was
// observed: the nonce may be up to skew ahead of the observation and stays
// acceptable for ttl after its own timestamp.
func (g *nonceGuard) retention() time.Duration { return g.ttl + g.skew }

func (g *nonceGuard) admit(ctx context.Context, signer solana.PublicKey, nonce uint64, now time.Time) error {
	if nonce > math.MaxInt64 {
		return invalidParams("envelope nonce must be a unix timestamp in nanoseconds")
	}
	issued := time.Unix(0, int64(nonce))
	if issued.After(now.Add(g.skew)) {
		return invalidParams("envelope nonce is %s ahead of the node clock", issued.Sub(now).Round(time.Second))
	}
	if issued.Before(now.Add(-g.ttl)) {
		return &RPCError{Code: codeReplay, Message: "envelope has expired", Data: nonce}
	}

	key := fmt.Sprintf("%s|%d", signer, nonce)
	if err := g.claim(key, nonce, now); err != nil {
		return err
	}
	if g.persistence == nil {
		return nil
	}
	if err := g.prunePersistent(ctx, now); err != nil {
		g.release(key)
		return err
	}
	existed, err := g.persistence.EnsureNonce(ctx, signer.String(), nonce, now)
	if err != nil {
		g.release(key)
		return fmt.Errorf("persist nonce: %w", err)
	}
	if existed {
		return replayError(nonce)
	}
	return nil
}

func replayError(nonce uint64) *RPCError {
	return &RPCError{Code: codeReplay, Message: "envelope has already been submitted", Data: nonce}
}

// claim records key in memory. A full window is never evicted early, so
// callers are throttled instead of reopening a replay gap.
func (g *nonceGuard) claim(key string, nonce uint64, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.evictExpired(now)
	if _, exists := g.entries[key]; exists {
		return replayError(nonce)
	}
	if g.order.Len() >= g.capacity {
		return &RPCError{Code: codeRateLimited, Message: "too many signed calls in the nonce window"}
	}
	g.entries[key] = g.order.PushBack(nonceEntry{key: key, expires: now.Add(g.retention())})
	return nil
}

func (g *nonceGuard) release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if elem, ok := g.entries[key]; ok {
		g.order.Remove(elem)
		delete(g.entries, key)
	}
}

func (g *nonceGuard) evictExpired(now time.Time) {
	for {
		front := g.order.Front()
		if front == nil {
			return
		}
		entry := front.Value.(nonceEntry)
		if entry.expires.After(now) {
			return
		}
		g.order.Remove(front)
		delete(g.entries, entry.key)
	}
}

func (g *nonceGuard) prunePersistent(ctx context.Context, now time.Time) error {
	g.mu.Lock()
	due := g.lastPruned.IsZero() || now.Sub(g.lastPruned) >= noncePruneInterval
	if due {
		g.lastPruned = now
	}
	g.mu.Unlock()
	if !due {
		return nil
	}
	if err := g.persistence.PruneNonces(ctx, now.Add(-g.retention())); err != nil {
		return fmt.Errorf("prune nonces: %w", err)
	}
	return nil
}

// size reports the number of nonces held in memory.
func (g *nonceGuard) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.order.Len()
}
