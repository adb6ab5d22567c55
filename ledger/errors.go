package ledger

import (
	"errors"
	"fmt"

	"github.com/blockberries/govledger/address"
	"github.com/blockberries/govledger/store"
	"github.com/blockberries/govledger/types"
)

// Error is a ledger failure with a stable numeric code. Two Errors
// match under errors.Is when their codes are equal.
type Error struct {
	Code    uint32
	Name    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Message)
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Ledger errors.
var (
	ErrVotedTwice          = &Error{Code: 6000, Name: "VotedTwice", Message: "The user has already voted"}
	ErrTextTooLong         = &Error{Code: 6001, Name: "TextTooLong", Message: "Text exceeds its length bound"}
	ErrAlreadyExists       = &Error{Code: 6002, Name: "AlreadyExists", Message: "Account already exists"}
	ErrNotFound            = &Error{Code: 6003, Name: "NotFound", Message: "Account not found"}
	ErrCounterOverflow     = &Error{Code: 6004, Name: "CounterOverflow", Message: "Counter overflow"}
	ErrDaoMismatch         = &Error{Code: 6005, Name: "DaoMismatch", Message: "Proposal belongs to another DAO"}
	ErrInvalidInstruction  = &Error{Code: 6006, Name: "InvalidInstruction", Message: "Invalid instruction"}
	ErrAccountKindMismatch = &Error{Code: 6007, Name: "AccountKindMismatch", Message: "Account holds another record kind"}
	ErrAddressResolution   = &Error{Code: 6008, Name: "AddressResolution", Message: "Address could not be derived"}
)

var allErrors = []*Error{
	ErrVotedTwice,
	ErrTextTooLong,
	ErrAlreadyExists,
	ErrNotFound,
	ErrCounterOverflow,
	ErrDaoMismatch,
	ErrInvalidInstruction,
	ErrAccountKindMismatch,
	ErrAddressResolution,
}

// ErrorByCode returns the ledger error registered under code.
func ErrorByCode(code uint32) (*Error, bool) {
	for _, e := range allErrors {
		if e.Code == code {
			return e, true
		}
	}
	return nil, false
}

// AsError extracts the ledger error carried by err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// wrap attaches detail to a ledger error without changing its code.
func wrap(e *Error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), e)
}

// translate maps store, decoding and derivation failures onto ledger
// errors. Anything else (backend I/O) is returned unchanged.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if _, ok := AsError(err); ok {
		return err
	}
	switch {
	case store.IsNotFound(err):
		return wrap(ErrNotFound, "%s", what)
	case store.IsAlreadyExists(err):
		return wrap(ErrAlreadyExists, "%s", what)
	case errors.Is(err, types.ErrAccountKind):
		return wrap(ErrAccountKindMismatch, "%s", what)
	case errors.Is(err, address.ErrMaxSeedLengthExceeded),
		errors.Is(err, address.ErrInvalidSeeds),
		errors.Is(err, address.ErrNoViableBump):
		return wrap(ErrAddressResolution, "%s: %v", what, err)
	}
	return err
}
