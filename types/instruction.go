package types

import (
	"errors"
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// Instruction prefix bytes. A transaction is a single prefix byte
// followed by the cramberry encoding of the matching payload:
//
//	0x01 = initialize:      Initialize{dao, payer, name}
//	0x02 = create_proposal: CreateProposal{dao, payer, title, description}
//	0x03 = vote:            Vote{proposal, dao, user, choice}
const (
	TxInitialize     byte = 0x01
	TxCreateProposal byte = 0x02
	TxVote           byte = 0x03
)

// ErrMalformedTx is returned for transactions that do not decode to a
// known instruction.
var ErrMalformedTx = errors.New("malformed instruction")

// Instruction is a decoded transaction payload.
type Instruction interface {
	// Prefix returns the instruction's tx prefix byte.
	Prefix() byte
	// Signer returns the key that authorized (and pays for) the
	// instruction.
	Signer() Pubkey
	// Method returns the instruction name used in logs and metrics.
	Method() string
}

// Initialize creates a DAO record at Dao owned by Payer.
type Initialize struct {
	Dao   Pubkey `cramberry:"1"`
	Payer Pubkey `cramberry:"2"`
	Name  string `cramberry:"3"`
}

// CreateProposal creates a proposal under Dao.
type CreateProposal struct {
	Dao         Pubkey `cramberry:"1"`
	Payer       Pubkey `cramberry:"2"`
	Title       string `cramberry:"3"`
	Description string `cramberry:"4"`
}

// Vote casts User's irrevocable vote on Proposal.
type Vote struct {
	Proposal Pubkey `cramberry:"1"`
	Dao      Pubkey `cramberry:"2"`
	User     Pubkey `cramberry:"3"`
	Choice   bool   `cramberry:"4"`
}

func (Initialize) Prefix() byte     { return TxInitialize }
func (CreateProposal) Prefix() byte { return TxCreateProposal }
func (Vote) Prefix() byte           { return TxVote }

func (i Initialize) Signer() Pubkey     { return i.Payer }
func (c CreateProposal) Signer() Pubkey { return c.Payer }
func (v Vote) Signer() Pubkey           { return v.User }

func (Initialize) Method() string     { return "initialize" }
func (CreateProposal) Method() string { return "create_proposal" }
func (Vote) Method() string           { return "vote" }

// EncodeInstruction serializes ix as a transaction.
func EncodeInstruction(ix Instruction) (Tx, error) {
	payload, err := cramberry.Marshal(ix)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ix.Method(), err)
	}
	tx := make(Tx, 1+len(payload))
	tx[0] = ix.Prefix()
	copy(tx[1:], payload)
	return tx, nil
}

// DecodeInstruction parses a transaction.
func DecodeInstruction(tx Tx) (Instruction, error) {
	if len(tx) == 0 {
		return nil, fmt.Errorf("%w: empty tx", ErrMalformedTx)
	}
	switch tx[0] {
	case TxInitialize:
		var ix Initialize
		if err := cramberry.Unmarshal(tx[1:], &ix); err != nil {
			return nil, fmt.Errorf("%w: initialize: %v", ErrMalformedTx, err)
		}
		return ix, nil
	case TxCreateProposal:
		var ix CreateProposal
		if err := cramberry.Unmarshal(tx[1:], &ix); err != nil {
			return nil, fmt.Errorf("%w: create_proposal: %v", ErrMalformedTx, err)
		}
		return ix, nil
	case TxVote:
		var ix Vote
		if err := cramberry.Unmarshal(tx[1:], &ix); err != nil {
			return nil, fmt.Errorf("%w: vote: %v", ErrMalformedTx, err)
		}
		return ix, nil
	default:
		return nil, fmt.Errorf("%w: unknown prefix 0x%02x", ErrMalformedTx, tx[0])
	}
}
