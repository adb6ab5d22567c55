package types

// Query paths served by the ledger.
const (
	QueryDao             QueryPath = "/dao"
	QueryProposal        QueryPath = "/proposal"
	QueryVoter           QueryPath = "/voter"
	QueryReward          QueryPath = "/reward"
	QueryProposalAddress QueryPath = "/address/proposal"
	QueryVoterAddress    QueryPath = "/address/voter"
	QueryRewardAddress   QueryPath = "/address/reward"
)

// StateQuery is a request to read ledger state.
type StateQuery struct {
	Path QueryPath `cramberry:"1"`
	Data []byte    `cramberry:"2"`
}

// StateQueryResult is the ledger's response to a state query.
type StateQueryResult struct {
	Code   uint32 `cramberry:"1"`
	Key    []byte `cramberry:"2"`
	Value  []byte `cramberry:"3"`
	Height uint64 `cramberry:"4"`
	Info   string `cramberry:"5"`
}

// OK returns true if the query succeeded.
func (r StateQueryResult) OK() bool { return r.Code == 0 }
