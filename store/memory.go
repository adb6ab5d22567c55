package store

import (
	"sort"
	"sync"

	"github.com/blockberries/govledger/address"
)

// Compile-time interface check.
var _ Backend = (*MemoryStore)(nil)

// MemoryStore is an in-memory Backend. Records are copied on the way
// in and out so callers never share buffers with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[address.Address][]byte
	cp      Checkpoint
	hasCP   bool
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[address.Address][]byte),
	}
}

func (m *MemoryStore) Read(addr address.Address) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.records[addr]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(v), nil
}

func (m *MemoryStore) Iterate(fn func(addr address.Address, value []byte) error) error {
	m.mu.RLock()
	keys := make([]address.Address, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, k)
	}
	values := make(map[address.Address][]byte, len(keys))
	for _, k := range keys {
		values[k] = clone(m.records[k])
	}
	m.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })
	for _, k := range keys {
		if err := fn(k, values[k]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) Create(addr address.Address, value []byte) error {
	return m.Apply([]Op{{Kind: OpCreate, Addr: addr, Value: value}})
}

func (m *MemoryStore) Update(addr address.Address, mut Mutator) error {
	return m.Apply([]Op{{Kind: OpUpdate, Addr: addr, Mutate: mut}})
}

func (m *MemoryStore) Upsert(addr address.Address, init []byte, mut Mutator) error {
	return m.Apply([]Op{{Kind: OpUpsert, Addr: addr, Value: init, Mutate: mut}})
}

func (m *MemoryStore) Apply(ops []Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(ops)
}

func (m *MemoryStore) Checkpoint() (Checkpoint, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cp, m.hasCP, nil
}

func (m *MemoryStore) Commit(ops []Op, cp Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.applyLocked(ops); err != nil {
		return err
	}
	m.cp = cp
	m.hasCP = true
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// Len returns the number of records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// applyLocked stages every op before touching the map so a failing op
// leaves the store unchanged.
func (m *MemoryStore) applyLocked(ops []Op) error {
	staged := make(map[address.Address][]byte, len(ops))
	for _, op := range ops {
		cur, exists := staged[op.Addr]
		if !exists {
			cur, exists = m.records[op.Addr]
		}
		next, err := op.apply(cur, exists)
		if err != nil {
			return err
		}
		staged[op.Addr] = next
	}
	for k, v := range staged {
		m.records[k] = v
	}
	return nil
}
