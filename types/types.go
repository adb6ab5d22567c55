// Package types defines the wire and record types of the governance
// ledger: block-execution envelopes exchanged with the consensus
// engine, the instruction payloads carried in transactions, and the
// four account records kept in the record store.
//
// These are plain Go structs with cramberry struct tags for
// deterministic binary serialization.
package types

import "github.com/blockberries/govledger/address"

// Hash is a 32-byte cryptographic hash.
type Hash [32]byte

// AppHash is a deterministic fingerprint of the ledger state after
// execution.
type AppHash [32]byte

// Tx is an encoded instruction. See instruction.go for the layout.
type Tx []byte

// QueryPath selects the record kind for a state query
// (e.g., "/proposal").
type QueryPath string

// Pubkey is a 32-byte account key. Signer keys (payer, user) and
// record addresses share the same space.
type Pubkey = address.Address

// BlockID uniquely identifies a point in the chain.
type BlockID struct {
	Height uint64 `cramberry:"1"`
	Hash   Hash   `cramberry:"2"`
}
