package types

// GenesisDoc is the genesis document for chain initialization.
type GenesisDoc struct {
	ChainID       string    `cramberry:"1"`
	GenesisTime   Timestamp `cramberry:"2"`
	InitialHeight uint64    `cramberry:"3"`
	// Largest encoded instruction the mempool gate admits. 0 = no limit.
	MaxTxBytes uint64 `cramberry:"4"`
}
