package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"memepod/core/types"
)

// DefaultLimit caps queries that do not ask for a limit.
const DefaultLimit = 100

var errClosed = errors.New("indexer: closed")

// actorKeys lists the attributes naming the identity behind an event, in
// priority order.
var actorKeys = []string{"user", "creator", "owner", "authority", "from"}

// Indexer stores committed events in SQLite or Postgres.
type Indexer struct {
	mu     sync.Mutex
	db     *gorm.DB
	seq    uint64
	nowFn  func() time.Time
	closed bool
}

// Open connects to dsn. DSNs starting with postgres:// or postgresql:// use
// Postgres; anything else is handed to SQLite.
func Open(dsn string) (*Indexer, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, fmt.Errorf("indexer: dsn must be provided")
	}
	var dialector gorm.Dialector
	if strings.HasPrefix(trimmed, "postgres://") || strings.HasPrefix(trimmed, "postgresql://") {
		dialector = postgres.Open(trimmed)
	} else {
		dialector = sqlite.Open(trimmed)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm handle and migrates the schema.
func New(db *gorm.DB) (*Indexer, error) {
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	idx := &Indexer{db: db, nowFn: time.Now}
	var last EventRecord
	err := db.Order("sequence desc").Limit(1).Find(&last).Error
	if err != nil {
		return nil, fmt.Errorf("indexer: load sequence: %w", err)
	}
	idx.seq = last.Sequence
	return idx, nil
}

// Record persists a batch of committed events in a single transaction.
func (i *Indexer) Record(ctx context.Context, batch []*types.Event) error {
	if len(batch) == 0 {
		return nil
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return errClosed
	}
	now := i.nowFn().UTC()
	records := make([]EventRecord, 0, len(batch))
	seq := i.seq
	for _, evt := range batch {
		if evt == nil {
			continue
		}
		attrs, err := json.Marshal(evt.Attributes)
		if err != nil {
			return fmt.Errorf("indexer: encode attributes: %w", err)
		}
		seq++
		records = append(records, EventRecord{
			ID:         uuid.New(),
			Sequence:   seq,
			Type:       evt.Type,
			Pod:        evt.Attributes["pod"],
			Actor:      actor(evt.Attributes),
			Attributes: string(attrs),
			CreatedAt:  now,
		})
	}
	if len(records) == 0 {
		return nil
	}
	err := i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&records).Error
	})
	if err != nil {
		return fmt.Errorf("indexer: insert: %w", err)
	}
	i.seq = seq
	return nil
}

func actor(attrs map[string]string) string {
	for _, key := range actorKeys {
		if v := attrs[key]; v != "" {
			return v
		}
	}
	return ""
}

// Filter narrows a Query.
type Filter struct {
	Pod   string
	Type  string
	Actor string
	// AfterSequence returns only events newer than the given sequence.
	AfterSequence uint64
	Limit         int
}

// Query returns matching events, oldest first.
func (i *Indexer) Query(ctx context.Context, f Filter) ([]EventRecord, error) {
	if i.isClosed() {
		return nil, errClosed
	}
	limit := f.Limit
	if limit <= 0 || limit > 10*DefaultLimit {
		limit = DefaultLimit
	}
	q := i.db.WithContext(ctx).Model(&EventRecord{})
	if f.Pod != "" {
		q = q.Where("pod = ?", f.Pod)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Actor != "" {
		q = q.Where("actor = ?", f.Actor)
	}
	if f.AfterSequence > 0 {
		q = q.Where("sequence > ?", f.AfterSequence)
	}
	var out []EventRecord
	if err := q.Order("sequence asc").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("indexer: query: %w", err)
	}
	return out, nil
}

// EnsureNonce records that signer used nonce. The boolean reports whether the
// pair was already present, in which case nothing is written.
func (i *Indexer) EnsureNonce(ctx context.Context, signer string, nonce uint64, observedAt time.Time) (bool, error) {
	if i.isClosed() {
		return false, errClosed
	}
	record := UsedNonce{Signer: signer, Nonce: nonce, ObservedAt: observedAt.UTC()}
	res := i.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if res.Error != nil {
		return false, fmt.Errorf("indexer: record nonce: %w", res.Error)
	}
	return res.RowsAffected == 0, nil
}

// PruneNonces drops nonces observed before cutoff.
func (i *Indexer) PruneNonces(ctx context.Context, cutoff time.Time) error {
	if i.isClosed() {
		return errClosed
	}
	err := i.db.WithContext(ctx).Where("observed_at < ?", cutoff.UTC()).Delete(&UsedNonce{}).Error
	if err != nil {
		return fmt.Errorf("indexer: prune nonces: %w", err)
	}
	return nil
}

func (i *Indexer) isClosed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}

// Close releases the underlying connection pool.
func (i *Indexer) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	sqlDB, err := i.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
