package app

import (
	"strconv"

	"github.com/blockberries/govledger/address"
	"github.com/blockberries/govledger/types"
)

func daoInitialized(ix types.Initialize) types.Event {
	return types.Event{
		Kind: types.EventDaoInitialized,
		Attributes: []types.EventAttribute{
			{Key: "dao", Value: ix.Dao.String(), Index: true},
			{Key: "owner", Value: ix.Payer.String(), Index: true},
			{Key: "name", Value: ix.Name},
		},
	}
}

func proposalCreated(ix types.CreateProposal, addr address.Address) types.Event {
	return types.Event{
		Kind: types.EventProposalCreated,
		Attributes: []types.EventAttribute{
			{Key: "dao", Value: ix.Dao.String(), Index: true},
			{Key: "proposal", Value: addr.String(), Index: true},
			{Key: "title", Value: ix.Title},
		},
	}
}

func voteCast(ix types.Vote) types.Event {
	return types.Event{
		Kind: types.EventVoteCast,
		Attributes: []types.EventAttribute{
			{Key: "dao", Value: ix.Dao.String(), Index: true},
			{Key: "proposal", Value: ix.Proposal.String(), Index: true},
			{Key: "user", Value: ix.User.String(), Index: true},
			{Key: "choice", Value: strconv.FormatBool(ix.Choice)},
		},
	}
}
