package types

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// DiscriminatorLen is the length of the kind tag prefixed to every
// stored record.
const DiscriminatorLen = 8

// ErrAccountKind is returned when stored bytes carry another record
// kind's discriminator.
var ErrAccountKind = errors.New("account discriminator mismatch")

// Discriminator tags a stored record with its kind:
// sha256("account:" + name)[:8].
type Discriminator [DiscriminatorLen]byte

// DiscriminatorOf returns the discriminator for a record kind name.
func DiscriminatorOf(name string) Discriminator {
	var d Discriminator
	sum := sha256.Sum256([]byte("account:" + name))
	copy(d[:], sum[:DiscriminatorLen])
	return d
}

// Account is implemented by every record kind kept in the store.
type Account interface {
	AccountName() string
}

// DaoAccount is the root record of a DAO. Owner never changes.
type DaoAccount struct {
	Name  string `cramberry:"1"`
	Owner Pubkey `cramberry:"2"`
}

// Proposal is scoped to exactly one DAO; its address is derived from
// (dao, title).
type Proposal struct {
	Title       string `cramberry:"1"`
	Description string `cramberry:"2"`
	VotesYes    uint64 `cramberry:"3"`
	VotesNo     uint64 `cramberry:"4"`
	Dao         Pubkey `cramberry:"5"`
}

// Voter is the receipt proving a user voted on a proposal.
type Voter struct {
	HasVoted bool `cramberry:"1"`
}

// RewardAccount accumulates points per (dao, user).
type RewardAccount struct {
	User         Pubkey `cramberry:"1"`
	RewardPoints uint64 `cramberry:"2"`
}

func (DaoAccount) AccountName() string    { return "DaoAccount" }
func (Proposal) AccountName() string      { return "Proposal" }
func (Voter) AccountName() string         { return "Voter" }
func (RewardAccount) AccountName() string { return "RewardAccount" }

// TotalVotes returns votes_yes + votes_no.
func (p Proposal) TotalVotes() uint64 { return p.VotesYes + p.VotesNo }

// EncodeAccount serializes a record as discriminator ‖ cramberry(a).
func EncodeAccount(a Account) ([]byte, error) {
	body, err := cramberry.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", a.AccountName(), err)
	}
	d := DiscriminatorOf(a.AccountName())
	out := make([]byte, 0, DiscriminatorLen+len(body))
	out = append(out, d[:]...)
	return append(out, body...), nil
}

// DecodeAccount decodes data into a, which must be a pointer to a
// record kind. The discriminator must match a's kind.
func DecodeAccount(data []byte, a Account) error {
	if len(data) < DiscriminatorLen {
		return fmt.Errorf("decode %s: %w: short record", a.AccountName(), ErrAccountKind)
	}
	d := DiscriminatorOf(a.AccountName())
	if !bytes.Equal(data[:DiscriminatorLen], d[:]) {
		return fmt.Errorf("decode %s: %w", a.AccountName(), ErrAccountKind)
	}
	if err := cramberry.Unmarshal(data[DiscriminatorLen:], a); err != nil {
		return fmt.Errorf("decode %s: %w", a.AccountName(), err)
	}
	return nil
}
