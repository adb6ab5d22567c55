package types

// TxOutcome is the result of executing a single instruction.
type TxOutcome struct {
	// Position of this tx in the block (0-indexed).
	Index uint32 `cramberry:"1"`
	// Ledger error code. 0 = success.
	Code uint32 `cramberry:"2"`
	// Human-readable result info.
	Info string `cramberry:"3"`
	// Instruction result: the address the instruction created or
	// touched (32 bytes), empty on failure.
	Data []byte `cramberry:"4"`
	// Events emitted by this instruction.
	Events []Event `cramberry:"5"`
}

// OK returns true if the instruction executed successfully.
func (t TxOutcome) OK() bool { return t.Code == 0 }

// BlockOutcome is the output of executing a finalized block.
type BlockOutcome struct {
	// Per-transaction results, in block order.
	TxOutcomes []TxOutcome `cramberry:"1"`
	// New ledger state root after this block.
	AppHash AppHash `cramberry:"2"`
}

// FinalizedBlock is a decided block delivered to the ledger for
// execution.
type FinalizedBlock struct {
	Height        uint64    `cramberry:"1"`
	Time          Timestamp `cramberry:"2"`
	Txs           []Tx      `cramberry:"3"`
	LastBlockHash Hash      `cramberry:"4"`
}

// CommitResult is returned after the ledger persists state.
type CommitResult struct {
	// Height now durable in the record store.
	Height uint64 `cramberry:"1"`
	// Minimum height the ledger still needs. The ledger keeps no
	// history, so this is always the committed height.
	RetainHeight uint64 `cramberry:"2"`
}
