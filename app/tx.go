package app

import (
	"github.com/blockberries/govledger/address"
	"github.com/blockberries/govledger/types"
)

// InitializeTx builds an initialize instruction.
func InitializeTx(dao, payer address.Address, name string) types.Tx {
	return mustEncode(types.Initialize{Dao: dao, Payer: payer, Name: name})
}

// CreateProposalTx builds a create_proposal instruction.
func CreateProposalTx(dao, payer address.Address, title, description string) types.Tx {
	return mustEncode(types.CreateProposal{Dao: dao, Payer: payer, Title: title, Description: description})
}

// VoteTx builds a vote instruction.
func VoteTx(proposal, dao, user address.Address, choice bool) types.Tx {
	return mustEncode(types.Vote{Proposal: proposal, Dao: dao, User: user, Choice: choice})
}

// The instruction payloads are fixed structs of keys, strings and
// bools; encoding them cannot fail.
func mustEncode(ix types.Instruction) types.Tx {
	tx, err := types.EncodeInstruction(ix)
	if err != nil {
		panic(err)
	}
	return tx
}
