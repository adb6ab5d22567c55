package app

import (
	"context"
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/blockberries/govledger/address"
	"github.com/blockberries/govledger/types"
)

// Query serves committed records and derived addresses.
//
//	/dao               Data = dao              Value = cramberry(DaoAccount)
//	/proposal          Data = proposal         Value = cramberry(Proposal)
//	/voter             Data = proposal ‖ user  Value = cramberry(Voter)
//	/reward            Data = dao ‖ user       Value = cramberry(RewardAccount)
//	/address/proposal  Data = dao ‖ title      Value = address ‖ bump
//	/address/voter     Data = proposal ‖ user  Value = address ‖ bump
//	/address/reward    Data = dao ‖ user       Value = address ‖ bump
//
// A missing record is reported with the ledger NotFound code.
func (a *App) Query(_ context.Context, req types.StateQuery) (types.StateQueryResult, error) {
	a.mu.RLock()
	height := a.height
	a.mu.RUnlock()

	res := a.query(req)
	res.Height = height
	return res, nil
}

func (a *App) query(req types.StateQuery) types.StateQueryResult {
	switch req.Path {
	case types.QueryDao:
		dao, err := keyArgs(req.Data, 1)
		if err != nil {
			return rejected(err)
		}
		acc, err := a.prog.DAO(a.backend, dao[0])
		return recordResult(dao[0], acc, err)

	case types.QueryProposal:
		prop, err := keyArgs(req.Data, 1)
		if err != nil {
			return rejected(err)
		}
		acc, err := a.prog.Proposal(a.backend, prop[0])
		return recordResult(prop[0], acc, err)

	case types.QueryVoter:
		keys, err := keyArgs(req.Data, 2)
		if err != nil {
			return rejected(err)
		}
		addr, _, err := a.prog.VoterAddress(keys[0], keys[1])
		if err != nil {
			return failed(err)
		}
		acc, err := a.prog.Voter(a.backend, keys[0], keys[1])
		return recordResult(addr, acc, err)

	case types.QueryReward:
		keys, err := keyArgs(req.Data, 2)
		if err != nil {
			return rejected(err)
		}
		addr, _, err := a.prog.RewardAddress(keys[0], keys[1])
		if err != nil {
			return failed(err)
		}
		acc, err := a.prog.RewardAccount(a.backend, keys[0], keys[1])
		return recordResult(addr, acc, err)

	case types.QueryProposalAddress:
		if len(req.Data) < address.Length {
			return rejected(fmt.Errorf("data must be [32]dao ‖ title"))
		}
		dao, _ := address.FromBytes(req.Data[:address.Length])
		return addressResult(a.prog.ProposalAddress(dao, string(req.Data[address.Length:])))

	case types.QueryVoterAddress:
		keys, err := keyArgs(req.Data, 2)
		if err != nil {
			return rejected(err)
		}
		return addressResult(a.prog.VoterAddress(keys[0], keys[1]))

	case types.QueryRewardAddress:
		keys, err := keyArgs(req.Data, 2)
		if err != nil {
			return rejected(err)
		}
		return addressResult(a.prog.RewardAddress(keys[0], keys[1]))

	default:
		return types.StateQueryResult{Code: CodeRejected, Info: "unknown query path"}
	}
}

// keyArgs splits data into exactly n 32-byte keys.
func keyArgs(data []byte, n int) ([]address.Address, error) {
	if len(data) != n*address.Length {
		return nil, fmt.Errorf("data must be %d bytes, got %d", n*address.Length, len(data))
	}
	keys := make([]address.Address, n)
	for i := range keys {
		copy(keys[i][:], data[i*address.Length:])
	}
	return keys, nil
}

func recordResult(addr address.Address, acc types.Account, err error) types.StateQueryResult {
	if err != nil {
		return failed(err)
	}
	value, err := cramberry.Marshal(acc)
	if err != nil {
		return failed(err)
	}
	return types.StateQueryResult{Key: addr.Bytes(), Value: value}
}

func addressResult(addr address.Address, bump uint8, err error) types.StateQueryResult {
	if err != nil {
		return failed(err)
	}
	return types.StateQueryResult{
		Key:   addr.Bytes(),
		Value: append(addr.Bytes(), bump),
	}
}

func rejected(err error) types.StateQueryResult {
	return types.StateQueryResult{Code: CodeRejected, Info: err.Error()}
}

func failed(err error) types.StateQueryResult {
	code, info := outcomeOf(err)
	return types.StateQueryResult{Code: code, Info: info}
}
