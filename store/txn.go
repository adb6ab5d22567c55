package store

import (
	"sort"

	"github.com/blockberries/govledger/address"
)

// Compile-time interface check.
var _ Store = (*Txn)(nil)

// Txn is an explicit unit of work over a parent Store. Mutations are
// applied to a private overlay (so later steps read earlier writes)
// and recorded as ops. Commit hands the ops to the parent's atomic
// Apply; Discard drops them. A Txn is itself a Store, so transactions
// nest: the ledger app opens one per block and one per instruction.
//
// A Txn is not safe for concurrent use.
type Txn struct {
	parent Store
	writes map[address.Address][]byte
	ops    []Op
	done   bool
}

// NewTxn opens a transaction over parent.
func NewTxn(parent Store) *Txn {
	return &Txn{
		parent: parent,
		writes: make(map[address.Address][]byte),
	}
}

func (t *Txn) Read(addr address.Address) ([]byte, error) {
	if v, ok := t.writes[addr]; ok {
		return clone(v), nil
	}
	return t.parent.Read(addr)
}

// Iterate merges the parent's records with the overlay.
func (t *Txn) Iterate(fn func(addr address.Address, value []byte) error) error {
	merged := make(map[address.Address][]byte)
	if err := t.parent.Iterate(func(addr address.Address, value []byte) error {
		merged[addr] = value
		return nil
	}); err != nil {
		return err
	}
	for k, v := range t.writes {
		merged[k] = clone(v)
	}
	keys := make([]address.Address, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })
	for _, k := range keys {
		if err := fn(k, merged[k]); err != nil {
			return err
		}
	}
	return nil
}

func (t *Txn) Create(addr address.Address, value []byte) error {
	return t.Apply([]Op{{Kind: OpCreate, Addr: addr, Value: value}})
}

func (t *Txn) Update(addr address.Address, mut Mutator) error {
	return t.Apply([]Op{{Kind: OpUpdate, Addr: addr, Mutate: mut}})
}

func (t *Txn) Upsert(addr address.Address, init []byte, mut Mutator) error {
	return t.Apply([]Op{{Kind: OpUpsert, Addr: addr, Value: init, Mutate: mut}})
}

// Apply runs ops against the overlay. On error the overlay is left as
// it was before the call.
func (t *Txn) Apply(ops []Op) error {
	if t.done {
		return ErrTxnDone
	}
	staged := make(map[address.Address][]byte, len(ops))
	for _, op := range ops {
		cur, exists, err := t.current(staged, op.Addr)
		if err != nil {
			return err
		}
		next, err := op.apply(cur, exists)
		if err != nil {
			return err
		}
		staged[op.Addr] = next
	}
	for k, v := range staged {
		t.writes[k] = v
	}
	t.ops = append(t.ops, ops...)
	return nil
}

// Ops returns the ops recorded so far.
func (t *Txn) Ops() []Op {
	out := make([]Op, len(t.ops))
	copy(out, t.ops)
	return out
}

// Empty reports whether the transaction recorded no ops.
func (t *Txn) Empty() bool { return len(t.ops) == 0 }

// Commit replays the recorded ops on the parent as one atomic Apply.
// The parent re-runs each op against its own state, so a create that
// lost a race, or an update whose record vanished, fails the whole
// transaction.
func (t *Txn) Commit() error {
	if t.done {
		return ErrTxnDone
	}
	t.done = true
	if len(t.ops) == 0 {
		return nil
	}
	return t.parent.Apply(t.ops)
}

// Discard abandons the transaction.
func (t *Txn) Discard() {
	t.done = true
	t.writes = nil
	t.ops = nil
}

func (t *Txn) current(staged map[address.Address][]byte, addr address.Address) ([]byte, bool, error) {
	if v, ok := staged[addr]; ok {
		return v, true, nil
	}
	if v, ok := t.writes[addr]; ok {
		return v, true, nil
	}
	v, err := t.parent.Read(addr)
	if err != nil {
		if IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}
