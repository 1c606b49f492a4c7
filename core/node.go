package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	podErrors "memepod/core/errors"
	"memepod/core/events"
	"memepod/core/genesis"
	nhbstate "memepod/core/state"
	"memepod/core/types"
	"memepod/indexer"
	"memepod/native/mainstate"
	"memepod/native/pod"
	"memepod/native/token"
	"memepod/observability"
	"memepod/storage"
)

// ErrIndexerUnavailable is returned by Events when no indexer is attached.
var ErrIndexerUnavailable = errors.New("node: event indexer not configured")

// EventSink receives the events of every committed call, in emission order.
type EventSink interface {
	Publish(ctx context.Context, batch []*types.Event) error
}

// Node is the host ledger. It serialises every call, runs it against a state
// overlay and commits the overlay in one storage batch only when the call
// succeeds. Events are published after the commit.
type Node struct {
	mu      sync.Mutex
	db      storage.Database
	state   *nhbstate.Manager
	program solana.PublicKey
	logger  *slog.Logger
	sinks   []EventSink
	index   *indexer.Indexer
	nowFn   func() time.Time
}

// NewNode wires a node over db for program.
func NewNode(db storage.Database, program solana.PublicKey) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database must not be nil")
	}
	if program.IsZero() {
		return nil, fmt.Errorf("node: program id must be set")
	}
	return &Node{
		db:      db,
		state:   nhbstate.NewManager(db),
		program: program,
		logger:  slog.Default(),
		nowFn:   time.Now,
	}, nil
}

// SetLogger overrides the logger used for committed events.
func (n *Node) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	n.logger = logger
}

// SetNowFunc overrides the clock used for event timestamps.
func (n *Node) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	n.mu.Lock()
	n.nowFn = now
	n.mu.Unlock()
}

// AddSink registers an additional consumer of committed events.
func (n *Node) AddSink(sink EventSink) {
	if sink == nil {
		return
	}
	n.mu.Lock()
	n.sinks = append(n.sinks, sink)
	n.mu.Unlock()
}

// SetIndexer attaches the event indexer both as a sink and as the backend of
// Events.
func (n *Node) SetIndexer(idx *indexer.Indexer) {
	if idx == nil {
		return
	}
	n.mu.Lock()
	n.index = idx
	n.sinks = append(n.sinks, indexerSink{idx: idx})
	n.mu.Unlock()
}

// Program returns the program identity pods are derived under.
func (n *Node) Program() solana.PublicKey { return n.program }

// call is the set of engines bound to one state overlay.
type call struct {
	state    *nhbstate.Manager
	tokens   *token.Engine
	registry *mainstate.Engine
	pods     *pod.Engine
}

func (n *Node) newCall(overlay *nhbstate.Manager, emitter events.Emitter) *call {
	tokens := token.NewEngine()
	tokens.SetState(overlay)
	tokens.SetEmitter(emitter)

	registry := mainstate.NewEngine()
	registry.SetState(overlay)
	registry.SetEmitter(emitter)

	pods := pod.NewEngine(n.program)
	pods.SetState(overlay)
	pods.SetLedger(tokens)
	pods.SetEmitter(emitter)
	now := n.nowFn
	pods.SetNowFunc(func() int64 { return now().Unix() })

	return &call{state: overlay, tokens: tokens, registry: registry, pods: pods}
}

// execute runs fn atomically: every write fn makes is committed in one batch
// or, when fn fails, discarded.
func (n *Node) execute(ctx context.Context, operation string, fn func(c *call) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	start := time.Now()
	overlay := n.state.Child()
	buffer := &events.Buffer{}
	err := fn(n.newCall(overlay, buffer))
	if err == nil {
		err = n.commit(overlay)
	}
	observability.Pods().Observe(operation, outcome(err), time.Since(start))
	if err != nil {
		n.logger.Debug("call aborted", slog.String("method", operation), slog.String("error", err.Error()))
		return err
	}
	n.publish(ctx, operation, buffer.Events())
	return nil
}

func (n *Node) commit(overlay *nhbstate.Manager) error {
	if err := overlay.Commit(); err != nil {
		return err
	}
	if err := n.state.Commit(); err != nil {
		n.state.Discard()
		return fmt.Errorf("node: commit: %w", err)
	}
	return nil
}

// view runs a read-only fn against a throwaway overlay.
func (n *Node) view(fn func(c *call) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return fn(n.newCall(n.state.Child(), events.NoopEmitter{}))
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if name, _, ok := podErrors.Kind(err); ok {
		return name
	}
	if errors.Is(err, podErrors.ErrArithmeticOverflow) {
		return "ArithmeticOverflow"
	}
	return "error"
}

func (n *Node) publish(ctx context.Context, operation string, emitted []events.Event) {
	if len(emitted) == 0 {
		return
	}
	batch := make([]*types.Event, 0, len(emitted))
	for _, evt := range emitted {
		rendered := events.Render(evt)
		if rendered == nil {
			continue
		}
		observability.Events().RecordEvent(rendered.Type)
		n.logger.Info("event committed",
			slog.String("method", operation),
			slog.String("event", rendered.Type),
			slog.String("pod", rendered.Attributes["pod"]),
		)
		batch = append(batch, rendered)
	}
	for _, sink := range n.sinks {
		// Sinks get their own copies so they cannot mutate each other's view.
		copies := make([]*types.Event, len(batch))
		for i, evt := range batch {
			copies[i] = evt.Clone()
		}
		if err := sink.Publish(ctx, copies); err != nil {
			n.logger.Warn("event sink failed", slog.String("method", operation), slog.String("error", err.Error()))
		}
	}
}

type indexerSink struct {
	idx *indexer.Indexer
}

func (s indexerSink) Publish(ctx context.Context, batch []*types.Event) error {
	return s.idx.Record(ctx, batch)
}

// ApplyGenesis writes spec into an empty ledger. It is a no-op when a genesis
// has already been applied.
func (n *Node) ApplyGenesis(ctx context.Context, spec *genesis.Spec) (bool, error) {
	if spec == nil {
		return false, nil
	}
	if err := spec.Validate(); err != nil {
		return false, err
	}
	var stamp uint64
	if ts := spec.GenesisTimestamp().Unix(); ts > 0 {
		stamp = uint64(ts)
	}
	applied := false
	err := n.execute(ctx, "genesis", func(c *call) error {
		done, err := c.state.GenesisApplied()
		if err != nil || done {
			return err
		}
		if err := genesis.Apply(spec, c.tokens, c.registry); err != nil {
			return err
		}
		applied = true
		return c.state.MarkGenesisApplied(stamp)
	})
	return applied, err
}

// Events queries the attached indexer.
func (n *Node) Events(ctx context.Context, filter indexer.Filter) ([]indexer.EventRecord, error) {
	n.mu.Lock()
	idx := n.index
	n.mu.Unlock()
	if idx == nil {
		return nil, ErrIndexerUnavailable
	}
	return idx.Query(ctx, filter)
}
