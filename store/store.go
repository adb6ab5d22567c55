// Package store is the ledger's record store: one record per 32-byte
// address, with creation distinct from update.
//
// Every mutation is expressed as an Op and a backend applies a slice
// of ops atomically: either every op lands or none does. Updates carry
// their mutator rather than a precomputed value, so an increment
// replayed inside Apply never loses a concurrent increment. Txn
// collects ops into one explicit unit of work over any Store.
package store

import (
	"github.com/pkg/errors"

	"github.com/blockberries/govledger/address"
)

var (
	// ErrAlreadyExists is returned when creating at an occupied address.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrNotFound is returned when reading or updating an empty address.
	ErrNotFound = errors.New("record not found")
	// ErrIO wraps backend failures.
	ErrIO = errors.New("store I/O failure")
	// ErrTxnDone is returned when a committed or discarded Txn is reused.
	ErrTxnDone = errors.New("transaction already finished")
)

// Mutator maps the current record bytes to new ones. It receives a
// private copy and may modify it.
type Mutator func(current []byte) ([]byte, error)

// OpKind selects the semantics of an Op.
type OpKind uint8

const (
	// OpCreate stores Value; fails with ErrAlreadyExists if occupied.
	OpCreate OpKind = iota + 1
	// OpUpdate runs Mutate on the record; fails with ErrNotFound if empty.
	OpUpdate
	// OpUpsert starts from Value when the address is empty, then runs
	// Mutate (if set).
	OpUpsert
)

func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpUpsert:
		return "upsert"
	default:
		return "unknown"
	}
}

// Op is a single record mutation.
type Op struct {
	Kind   OpKind
	Addr   address.Address
	Value  []byte
	Mutate Mutator
}

// apply computes the record that op leaves behind given the current
// one.
func (op Op) apply(cur []byte, exists bool) ([]byte, error) {
	switch op.Kind {
	case OpCreate:
		if exists {
			return nil, errors.Wrapf(ErrAlreadyExists, "address %s", op.Addr)
		}
		return clone(op.Value), nil
	case OpUpdate:
		if !exists {
			return nil, errors.Wrapf(ErrNotFound, "address %s", op.Addr)
		}
		return op.Mutate(clone(cur))
	case OpUpsert:
		if !exists {
			cur = op.Value
		}
		if op.Mutate == nil {
			return clone(cur), nil
		}
		return op.Mutate(clone(cur))
	default:
		return nil, errors.Errorf("unknown op kind %d", op.Kind)
	}
}

// Reader is read access to records.
type Reader interface {
	// Read returns a copy of the record at addr or ErrNotFound.
	Read(addr address.Address) ([]byte, error)
	// Iterate calls fn for every record in ascending address order.
	Iterate(fn func(addr address.Address, value []byte) error) error
}

// Store is a key-addressed record store. Each method is individually
// atomic.
type Store interface {
	Reader
	Create(addr address.Address, value []byte) error
	Update(addr address.Address, m Mutator) error
	Upsert(addr address.Address, init []byte, m Mutator) error
	// Apply runs ops in order as one atomic unit.
	Apply(ops []Op) error
}

// Checkpoint records the last block whose effects are durable.
type Checkpoint struct {
	Height  uint64   `cramberry:"1"`
	AppHash [32]byte `cramberry:"2"`
}

// Backend is a durable Store that also tracks the committed checkpoint.
type Backend interface {
	Store
	// Checkpoint returns the last committed checkpoint; ok is false
	// for an empty backend.
	Checkpoint() (cp Checkpoint, ok bool, err error)
	// Commit applies ops and records cp in one atomic step.
	Commit(ops []Op, cp Checkpoint) error
	Close() error
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists reports whether err is (or wraps) ErrAlreadyExists.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
