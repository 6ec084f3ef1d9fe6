// Package errors defines the failure taxonomy shared by the custody and
// instrument modules. Modules wrap these sentinels with their own context and
// callers classify failures with errors.Is.
package errors

import stderrors "errors"

var (
	// ErrInvalidState reports an operation attempted from the wrong lifecycle state.
	ErrInvalidState = stderrors.New("invalid state")
	// ErrInvalidExpiry reports an expiry or duration that is in the past or beyond its ceiling.
	ErrInvalidExpiry    = stderrors.New("invalid expiry")
	ErrOptionExpired    = stderrors.New("option expired")
	ErrOptionNotExpired = stderrors.New("option not expired")
	ErrNotOverdue       = stderrors.New("loan not overdue")
	ErrNotExpired       = stderrors.New("rental not expired")

	// ErrUnauthorized reports a caller that is not the recorded counterpart.
	ErrUnauthorized = stderrors.New("unauthorized")
	// ErrNumericOverflow reports an arithmetic result outside the u64 domain.
	ErrNumericOverflow = stderrors.New("numeric overflow")
	// ErrCustodyViolation reports asset custody inconsistent with the composition flags.
	ErrCustodyViolation = stderrors.New("custody violation")
	// ErrInvalidDelegate reports an asset already delegated to a foreign authority.
	ErrInvalidDelegate = stderrors.New("invalid delegate")

	ErrNotFound            = stderrors.New("not found")
	ErrInvalidAmount       = stderrors.New("invalid amount")
	ErrInsufficientBalance = stderrors.New("insufficient balance")
)

// Kind returns a stable machine-readable name for the taxonomy member wrapped
// by err, or "internal" when err is not part of the taxonomy.
func Kind(err error) string {
	for _, entry := range kinds {
		if stderrors.Is(err, entry.err) {
			return entry.name
		}
	}
	return "internal"
}

var kinds = []struct {
	err  error
	name string
}{
	{ErrInvalidState, "InvalidState"},
	{ErrInvalidExpiry, "InvalidExpiry"},
	{ErrOptionExpired, "OptionExpired"},
	{ErrOptionNotExpired, "OptionNotExpired"},
	{ErrNotOverdue, "NotOverdue"},
	{ErrNotExpired, "NotExpired"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrNumericOverflow, "NumericOverflow"},
	{ErrCustodyViolation, "CustodyViolation"},
	{ErrInvalidDelegate, "InvalidDelegate"},
	{ErrNotFound, "NotFound"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrInsufficientBalance, "InsufficientBalance"},
}
