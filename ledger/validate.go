package ledger

import (
	"unicode/utf8"

	"github.com/blockberries/govledger/address"
	"github.com/blockberries/govledger/types"
)

// Validate runs the checks an instruction must pass regardless of
// ledger state: non-zero keys, text bounds and UTF-8 text.
func Validate(ix types.Instruction) error {
	switch ix := ix.(type) {
	case types.Initialize:
		return checkInitialize(ix.Dao, ix.Payer, ix.Name)
	case types.CreateProposal:
		return checkCreateProposal(ix.Dao, ix.Payer, ix.Title, ix.Description)
	case types.Vote:
		return checkVote(ix.Proposal, ix.Dao, ix.User)
	default:
		return wrap(ErrInvalidInstruction, "unknown instruction %T", ix)
	}
}

func checkInitialize(dao, payer address.Address, name string) error {
	if dao.IsZero() || payer.IsZero() {
		return wrap(ErrInvalidInstruction, "initialize: zero key")
	}
	if len(name) > MaxNameLen {
		return wrap(ErrTextTooLong, "name is %d bytes, max %d", len(name), MaxNameLen)
	}
	if !utf8.ValidString(name) {
		return wrap(ErrInvalidInstruction, "name is not valid UTF-8")
	}
	return nil
}

func checkCreateProposal(dao, payer address.Address, title, description string) error {
	if dao.IsZero() || payer.IsZero() {
		return wrap(ErrInvalidInstruction, "create_proposal: zero key")
	}
	if len(title) > MaxTitleLen {
		return wrap(ErrTextTooLong, "title is %d bytes, max %d", len(title), MaxTitleLen)
	}
	if len(description) > MaxDescriptionLen {
		return wrap(ErrTextTooLong, "description is %d bytes, max %d", len(description), MaxDescriptionLen)
	}
	if !utf8.ValidString(title) || !utf8.ValidString(description) {
		return wrap(ErrInvalidInstruction, "proposal text is not valid UTF-8")
	}
	return nil
}

func checkVote(proposal, dao, user address.Address) error {
	if proposal.IsZero() || dao.IsZero() || user.IsZero() {
		return wrap(ErrInvalidInstruction, "vote: zero key")
	}
	return nil
}
