package ledger

import (
	"github.com/blockberries/govledger/address"
	"github.com/blockberries/govledger/store"
	"github.com/blockberries/govledger/types"
)

// DAO reads the DAO record at dao.
func (p *Program) DAO(r store.Reader, dao address.Address) (types.DaoAccount, error) {
	var acc types.DaoAccount
	err := load(r, dao, &acc, "dao")
	return acc, err
}

// Proposal reads the proposal record at addr.
func (p *Program) Proposal(r store.Reader, addr address.Address) (types.Proposal, error) {
	var prop types.Proposal
	err := load(r, addr, &prop, "proposal")
	return prop, err
}

// Voter reads user's receipt for proposal. ErrNotFound means the user
// has not voted.
func (p *Program) Voter(r store.Reader, proposal, user address.Address) (types.Voter, error) {
	addr, _, err := p.VoterAddress(proposal, user)
	if err != nil {
		return types.Voter{}, err
	}
	var v types.Voter
	err = load(r, addr, &v, "voter")
	return v, err
}

// HasVoted reports whether user has voted on proposal.
func (p *Program) HasVoted(r store.Reader, proposal, user address.Address) (bool, error) {
	v, err := p.Voter(r, proposal, user)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return v.HasVoted, nil
}

// RewardAccount reads user's reward record in dao.
func (p *Program) RewardAccount(r store.Reader, dao, user address.Address) (types.RewardAccount, error) {
	addr, _, err := p.RewardAddress(dao, user)
	if err != nil {
		return types.RewardAccount{}, err
	}
	var acc types.RewardAccount
	err = load(r, addr, &acc, "reward")
	return acc, err
}

// Reward returns user's reward points in dao. A user who never voted in
// dao has no record and gets ErrNotFound.
func (p *Program) Reward(r store.Reader, dao, user address.Address) (uint64, error) {
	acc, err := p.RewardAccount(r, dao, user)
	if err != nil {
		return 0, err
	}
	return acc.RewardPoints, nil
}

// IsNotFound reports whether err carries ErrNotFound.
func IsNotFound(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code == ErrNotFound.Code
}

func load(r store.Reader, addr address.Address, acc types.Account, what string) error {
	data, err := r.Read(addr)
	if err != nil {
		return translate(err, what+" "+addr.String())
	}
	return translate(types.DecodeAccount(data, acc), what+" "+addr.String())
}
