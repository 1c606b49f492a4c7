package state

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"memepod/storage"
)

// Manager provides RLP-encoded key/value access to ledger state. A root
// manager reads from and commits into the backing database; a child manager
// created with Child buffers every write in memory until Commit merges it into
// its parent. Discarding a child (simply dropping it) rolls back everything it
// wrote, which is how the node gives each call all-or-nothing semantics.
//
// Manager is not safe for concurrent use.
type Manager struct {
	db      storage.Database
	parent  *Manager
	dirty   map[string][]byte
	deleted map[string]struct{}
}

// NewManager creates a root state manager backed by the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{
		db:      db,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

// Child returns an overlay whose writes stay invisible to m until Commit.
func (m *Manager) Child() *Manager {
	return &Manager{
		db:      m.db,
		parent:  m,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

// Dirty reports the number of pending writes and deletions in the overlay.
func (m *Manager) Dirty() int { return len(m.dirty) + len(m.deleted) }

// Commit merges the overlay into the parent manager, or for a root manager
// writes every pending change to the database in a single batch.
func (m *Manager) Commit() error {
	if m.parent != nil {
		for key := range m.deleted {
			delete(m.parent.dirty, key)
			m.parent.deleted[key] = struct{}{}
		}
		for key, value := range m.dirty {
			delete(m.parent.deleted, key)
			m.parent.dirty[key] = value
		}
		m.reset()
		return nil
	}
	if m.Dirty() == 0 {
		return nil
	}
	batch := m.db.NewBatch()
	for key := range m.deleted {
		batch.Delete([]byte(key))
	}
	for key, value := range m.dirty {
		batch.Put([]byte(key), value)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit batch: %w", err)
	}
	m.reset()
	return nil
}

func (m *Manager) reset() {
	m.dirty = make(map[string][]byte)
	m.deleted = make(map[string]struct{})
}

func (m *Manager) get(key []byte) ([]byte, error) {
	k := string(key)
	if _, gone := m.deleted[k]; gone {
		return nil, nil
	}
	if value, ok := m.dirty[k]; ok {
		return value, nil
	}
	if m.parent != nil {
		return m.parent.get(key)
	}
	value, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return value, err
}

func (m *Manager) put(key, value []byte) {
	k := string(key)
	delete(m.deleted, k)
	m.dirty[k] = value
}

func (m *Manager) remove(key []byte) {
	k := string(key)
	delete(m.dirty, k)
	m.deleted[k] = struct{}{}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is automatically hashed with keccak256.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.put(kvKey(key), encoded)
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.remove(kvKey(key))
	return nil
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	hashed := kvKey(key)
	data, err := m.get(hashed)
	if err != nil {
		return err
	}
	var list [][]byte
	if len(data) > 0 {
		if err := rlp.DecodeBytes(data, &list); err != nil {
			return err
		}
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	m.put(hashed, encoded)
	return nil
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}

// Discard drops every pending change in the overlay.
func (m *Manager) Discard() { m.reset() }
