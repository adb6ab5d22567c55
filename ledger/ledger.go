// Package ledger implements the governance program: DAO records,
// proposals scoped to a DAO, one irrevocable vote per (proposal, user)
// and per-(DAO, user) reward points.
//
// Every operation is one explicit store.Txn. Nothing reaches the
// underlying store until the transaction's single atomic Apply, and a
// failing operation leaves no record behind.
package ledger

import (
	"crypto/ed25519"
	"io"
	"math"

	"github.com/blockberries/govledger/address"
	"github.com/blockberries/govledger/store"
	"github.com/blockberries/govledger/types"
)

// Text bounds, in bytes. A title is a derivation seed. It stays one
// byte short of address.MaxSeedLen so a proposal's dao ‖ title seeds
// can never equal a reward account's dao ‖ user.
const (
	MaxNameLen        = 20
	MaxTitleLen       = address.MaxSeedLen - 1
	MaxDescriptionLen = 200
)

const voterSeed = "voter"

// DefaultProgramID is the program id addresses are derived under
// unless configured otherwise.
var DefaultProgramID = address.MustFromBase58("DbEmYfDwjsW2ge6pF4BVc91W1XHVbs1Lk7hQ3JEc1hvP")

// Program runs ledger operations for one program id.
type Program struct {
	id address.Address
}

// New returns a Program deriving addresses under programID.
func New(programID address.Address) *Program {
	return &Program{id: programID}
}

// ID returns the program id.
func (p *Program) ID() address.Address { return p.id }

// ProposalAddress derives the address of the proposal titled title in
// dao.
func (p *Program) ProposalAddress(dao address.Address, title string) (address.Address, uint8, error) {
	if len(title) > MaxTitleLen {
		return address.Zero, 0, wrap(ErrTextTooLong, "title is %d bytes, max %d", len(title), MaxTitleLen)
	}
	return p.derive("proposal", dao[:], []byte(title))
}

// VoterAddress derives the receipt address for user's vote on proposal.
func (p *Program) VoterAddress(proposal, user address.Address) (address.Address, uint8, error) {
	return p.derive("voter", []byte(voterSeed), proposal[:], user[:])
}

// RewardAddress derives the address of user's reward record in dao.
func (p *Program) RewardAddress(dao, user address.Address) (address.Address, uint8, error) {
	return p.derive("reward", dao[:], user[:])
}

func (p *Program) derive(what string, seeds ...[]byte) (address.Address, uint8, error) {
	addr, bump, err := address.FindProgramAddress(seeds, p.id)
	if err != nil {
		return address.Zero, 0, translate(err, what+" address")
	}
	return addr, bump, nil
}

// NewDAOAddress returns a fresh base address for a DAO, the public half
// of an ed25519 key drawn from rand.
func NewDAOAddress(rand io.Reader) (address.Address, error) {
	pub, _, err := ed25519.GenerateKey(rand)
	if err != nil {
		return address.Zero, err
	}
	return address.FromBytes(pub)
}

// Initialize creates a DAO record named name at dao, owned by payer.
func (p *Program) Initialize(s store.Store, dao, payer address.Address, name string) error {
	if err := checkInitialize(dao, payer, name); err != nil {
		return err
	}
	data, err := types.EncodeAccount(types.DaoAccount{Name: name, Owner: payer})
	if err != nil {
		return err
	}
	txn := store.NewTxn(s)
	if err := txn.Create(dao, data); err != nil {
		txn.Discard()
		return translate(err, "dao "+dao.String())
	}
	return translate(txn.Commit(), "dao "+dao.String())
}

// CreateProposal creates a proposal under dao and returns its address.
// Both text bounds are checked before the address is derived.
func (p *Program) CreateProposal(s store.Store, dao, payer address.Address, title, description string) (address.Address, error) {
	if err := checkCreateProposal(dao, payer, title, description); err != nil {
		return address.Zero, err
	}
	addr, _, err := p.ProposalAddress(dao, title)
	if err != nil {
		return address.Zero, err
	}
	if _, err := p.DAO(s, dao); err != nil {
		return address.Zero, err
	}
	data, err := types.EncodeAccount(types.Proposal{Title: title, Description: description, Dao: dao})
	if err != nil {
		return address.Zero, err
	}

	txn := store.NewTxn(s)
	if err := txn.Create(addr, data); err != nil {
		txn.Discard()
		return address.Zero, translate(err, "proposal "+title)
	}
	if err := txn.Commit(); err != nil {
		return address.Zero, translate(err, "proposal "+title)
	}
	return addr, nil
}

// VoteResult lists the records a successful vote touched.
type VoteResult struct {
	Voter  address.Address
	Reward address.Address
}

// Vote records user's vote on proposal in dao. The voter receipt, the
// tally increment and the reward credit commit together or not at all;
// a second vote by the same user fails with ErrVotedTwice.
func (p *Program) Vote(s store.Store, proposal, dao, user address.Address, choice bool) (VoteResult, error) {
	if err := checkVote(proposal, dao, user); err != nil {
		return VoteResult{}, err
	}
	voterAddr, _, err := p.VoterAddress(proposal, user)
	if err != nil {
		return VoteResult{}, err
	}
	rewardAddr, _, err := p.RewardAddress(dao, user)
	if err != nil {
		return VoteResult{}, err
	}
	receipt, err := types.EncodeAccount(types.Voter{HasVoted: true})
	if err != nil {
		return VoteResult{}, err
	}
	fresh, err := types.EncodeAccount(types.RewardAccount{User: user})
	if err != nil {
		return VoteResult{}, err
	}

	txn := store.NewTxn(s)
	if err := txn.Create(voterAddr, receipt); err != nil {
		txn.Discard()
		return VoteResult{}, voteError(err)
	}
	if err := txn.Update(proposal, tally(dao, choice)); err != nil {
		txn.Discard()
		return VoteResult{}, translate(err, "proposal "+proposal.String())
	}
	if err := txn.Upsert(rewardAddr, fresh, credit); err != nil {
		txn.Discard()
		return VoteResult{}, translate(err, "reward "+rewardAddr.String())
	}
	// Only the receipt is created by Commit; the reward is an upsert,
	// so a create conflict here is a concurrent vote by the same user.
	if err := txn.Commit(); err != nil {
		return VoteResult{}, voteError(err)
	}
	return VoteResult{Voter: voterAddr, Reward: rewardAddr}, nil
}

func voteError(err error) error {
	if store.IsAlreadyExists(err) {
		return ErrVotedTwice
	}
	return translate(err, "vote")
}

// tally adds one vote to the side picked by choice.
func tally(dao address.Address, choice bool) store.Mutator {
	return func(cur []byte) ([]byte, error) {
		var prop types.Proposal
		if err := types.DecodeAccount(cur, &prop); err != nil {
			return nil, translate(err, "proposal")
		}
		if prop.Dao != dao {
			return nil, wrap(ErrDaoMismatch, "proposal belongs to %s", prop.Dao)
		}
		counter := &prop.VotesNo
		if choice {
			counter = &prop.VotesYes
		}
		if *counter == math.MaxUint64 {
			return nil, ErrCounterOverflow
		}
		*counter++
		return types.EncodeAccount(prop)
	}
}

func credit(cur []byte) ([]byte, error) {
	var r types.RewardAccount
	if err := types.DecodeAccount(cur, &r); err != nil {
		return nil, translate(err, "reward")
	}
	if r.RewardPoints == math.MaxUint64 {
		return nil, ErrCounterOverflow
	}
	r.RewardPoints++
	return types.EncodeAccount(r)
}
