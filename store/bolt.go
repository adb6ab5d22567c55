package store

import (
	"github.com/blockberries/cramberry/pkg/cramberry"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/blockberries/govledger/address"
)

const fileMode = 0600

var (
	accountsBucket = []byte("accounts")
	metaBucket     = []byte("meta")
	checkpointKey  = []byte("checkpoint")
)

// Compile-time interface check.
var _ Backend = (*BoltStore)(nil)

// BoltStore is a Backend persisted in a bbolt file. Each Apply or
// Commit runs inside a single bolt write transaction, which bolt rolls
// back if any op fails.
type BoltStore struct {
	db         *bolt.DB
	path       string
	numRetries uint8
}

// opFailure marks an error raised by an op itself (as opposed to
// bolt); those are never retried.
type opFailure struct{ err error }

func (f *opFailure) Error() string { return f.err.Error() }

// OpenBolt opens (creating if needed) the bolt file at path.
func OpenBolt(path string, numRetries uint8) (*BoltStore, error) {
	db, err := bolt.Open(path, fileMode, nil)
	if err != nil {
		return nil, errors.Wrap(ErrIO, err.Error())
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(accountsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, errors.Wrap(ErrIO, err.Error())
	}
	if numRetries == 0 {
		numRetries = 1
	}
	return &BoltStore{db: db, path: path, numRetries: numRetries}, nil
}

// Path returns the bolt file path.
func (b *BoltStore) Path() string { return b.path }

func (b *BoltStore) Read(addr address.Address) ([]byte, error) {
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(accountsBucket).Get(addr[:])
		if v == nil {
			return errors.Wrapf(ErrNotFound, "address %s", addr)
		}
		value = clone(v)
		return nil
	})
	if err == nil {
		return value, nil
	}
	if errors.Cause(err) == ErrNotFound {
		return nil, err
	}
	return nil, errors.Wrap(ErrIO, err.Error())
}

func (b *BoltStore) Iterate(fn func(addr address.Address, value []byte) error) error {
	var (
		keys   []address.Address
		values [][]byte
	)
	if err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(accountsBucket).ForEach(func(k, v []byte) error {
			addr, err := address.FromBytes(k)
			if err != nil {
				return err
			}
			keys = append(keys, addr)
			values = append(values, clone(v))
			return nil
		})
	}); err != nil {
		return errors.Wrap(ErrIO, err.Error())
	}
	// bolt iterates keys in byte order, which is address order.
	for i, k := range keys {
		if err := fn(k, values[i]); err != nil {
			return err
		}
	}
	return nil
}

func (b *BoltStore) Create(addr address.Address, value []byte) error {
	return b.Apply([]Op{{Kind: OpCreate, Addr: addr, Value: value}})
}

func (b *BoltStore) Update(addr address.Address, mut Mutator) error {
	return b.Apply([]Op{{Kind: OpUpdate, Addr: addr, Mutate: mut}})
}

func (b *BoltStore) Upsert(addr address.Address, init []byte, mut Mutator) error {
	return b.Apply([]Op{{Kind: OpUpsert, Addr: addr, Value: init, Mutate: mut}})
}

func (b *BoltStore) Apply(ops []Op) error {
	return b.write(func(tx *bolt.Tx) error {
		return applyBolt(tx, ops)
	})
}

func (b *BoltStore) Checkpoint() (Checkpoint, bool, error) {
	var (
		cp Checkpoint
		ok bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(metaBucket).Get(checkpointKey)
		if v == nil {
			return nil
		}
		ok = true
		return cramberry.Unmarshal(v, &cp)
	})
	if err != nil {
		return Checkpoint{}, false, errors.Wrap(ErrIO, err.Error())
	}
	return cp, ok, nil
}

func (b *BoltStore) Commit(ops []Op, cp Checkpoint) error {
	data, err := cramberry.Marshal(cp)
	if err != nil {
		return errors.Wrap(err, "failed to encode checkpoint")
	}
	return b.write(func(tx *bolt.Tx) error {
		if err := applyBolt(tx, ops); err != nil {
			return err
		}
		return tx.Bucket(metaBucket).Put(checkpointKey, data)
	})
}

// Close closes the bolt file.
func (b *BoltStore) Close() error {
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return errors.Wrap(ErrIO, err.Error())
		}
	}
	return nil
}

// write runs fn in a write transaction, retrying bolt failures up to
// numRetries times. Op failures return immediately, unwrapped.
func (b *BoltStore) write(fn func(tx *bolt.Tx) error) (err error) {
	for c := uint8(0); c < b.numRetries; c++ {
		if err = b.db.Update(fn); err == nil {
			return nil
		}
		var f *opFailure
		if errors.As(err, &f) {
			return f.err
		}
	}
	return errors.Wrap(ErrIO, err.Error())
}

func applyBolt(tx *bolt.Tx, ops []Op) error {
	bucket := tx.Bucket(accountsBucket)
	for _, op := range ops {
		// Get returns a value only valid for the life of tx; apply
		// receives a copy through Op.apply.
		cur := bucket.Get(op.Addr[:])
		next, err := op.apply(cur, cur != nil)
		if err != nil {
			return &opFailure{err: err}
		}
		if err := bucket.Put(op.Addr[:], next); err != nil {
			return errors.Wrapf(err, "failed to put address %s", op.Addr)
		}
	}
	return nil
}
