package rental

import (
	"strconv"

	"github.com/onda-protocol/onda-program-library-sub000/core/types"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
)

const (
	EventTypeListed    = "rental.listed"
	EventTypeTaken     = "rental.taken"
	EventTypeExtended  = "rental.extended"
	EventTypeWithdrawn = "rental.escrow_withdrawn"
	EventTypeRecovered = "rental.recovered"
	EventTypeSettled   = "rental.settled"
	EventTypeClosed    = "rental.closed"
)

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

func newRentalEvent(eventType string, r *Rental) *types.Event {
	evt := types.NewEvent(eventType).
		With("asset", r.Asset.String()).
		With("lender", r.Lender.String()).
		With("status", string(r.Status())).
		With("dailyRate", u64(r.DailyRate)).
		With("escrowBalance", u64(r.EscrowBalance))
	if w, ok := r.Window(); ok {
		evt.With("borrower", w.Borrower.String()).
			With("currentStart", strconv.FormatInt(w.Start, 10)).
			With("currentExpiry", strconv.FormatInt(w.Expiry, 10))
	}
	return evt
}

func withSettlement(evt *types.Event, s *Settlement) *types.Event {
	return evt.
		With("toLender", u64(s.ToLender)).
		With("royalty", u64(s.Royalty)).
		With("toBorrower", u64(s.ToBorrower))
}

func NewListedEvent(r *Rental) *types.Event {
	evt := newRentalEvent(EventTypeListed, r).
		With("ceilingExpiry", strconv.FormatInt(r.CeilingExpiry, 10))
	if !r.Designated.IsZero() {
		evt.With("designatedBorrower", r.Designated.String())
	}
	return evt
}

// NewTakenEvent carries the rent paid into escrow for the new window.
func NewTakenEvent(r *Rental, rent uint64) *types.Event {
	return newRentalEvent(EventTypeTaken, r).With("rent", u64(rent))
}

func NewExtendedEvent(r *Rental, rent uint64) *types.Event {
	return newRentalEvent(EventTypeExtended, r).With("rent", u64(rent))
}

func NewWithdrawnEvent(r *Rental, s *Settlement) *types.Event {
	return withSettlement(newRentalEvent(EventTypeWithdrawn, r), s)
}

func NewRecoveredEvent(r *Rental, borrower crypto.Address, s *Settlement) *types.Event {
	return withSettlement(newRentalEvent(EventTypeRecovered, r), s).With("borrower", borrower.String())
}

// NewSettledEvent is emitted when a rental is ended early by another
// instrument taking the asset.
func NewSettledEvent(r *Rental, s *Settlement) *types.Event {
	return withSettlement(newRentalEvent(EventTypeSettled, r), s)
}

func NewClosedEvent(r *Rental) *types.Event { return newRentalEvent(EventTypeClosed, r) }
