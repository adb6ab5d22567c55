package types

// HandshakeRequest is sent by the engine on every startup.
type HandshakeRequest struct {
	// The last block the engine committed. Nil = fresh chain.
	LastCommitted *BlockID `cramberry:"1"`
	// Genesis document. Only set when LastCommitted is nil.
	Genesis *GenesisDoc `cramberry:"2"`
}

// HandshakeResponse reports the ledger's committed state and
// capabilities.
type HandshakeResponse struct {
	// The last block the ledger committed. Nil = empty ledger.
	LastBlock *BlockID `cramberry:"1"`
	// App hash at that height.
	AppHash *AppHash `cramberry:"2"`
	// Capabilities the ledger supports.
	Capabilities Capabilities `cramberry:"3"`
	// Program id every derived address is scoped to.
	ProgramID Pubkey `cramberry:"4"`
}
