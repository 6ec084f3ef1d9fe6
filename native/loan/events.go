package loan

import (
	"strconv"

	"github.com/onda-protocol/onda-program-library-sub000/core/types"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
)

const (
	EventTypeListed         = "loan.listed"
	EventTypeFunded         = "loan.funded"
	EventTypeRepaid         = "loan.repaid"
	EventTypeRepossessed    = "loan.repossessed"
	EventTypeClosed         = "loan.closed"
	EventTypeOfferPosted    = "loan.offer.posted"
	EventTypeOfferCancelled = "loan.offer.cancelled"
	EventTypeOfferTaken     = "loan.offer.taken"
)

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

func i64(v int64) string { return strconv.FormatInt(v, 10) }

func newLoanEvent(eventType string, l *Loan) *types.Event {
	evt := types.NewEvent(eventType).
		With("asset", l.Asset.String()).
		With("borrower", l.Borrower.String()).
		With("status", string(l.Status())).
		With("principal", u64(l.Principal)).
		With("annualRateBps", u64(uint64(l.AnnualRateBps))).
		With("durationSeconds", i64(l.Duration))
	if lender, ok := l.Lender(); ok {
		evt.With("lender", lender.String())
	}
	if start, ok := l.StartDate(); ok {
		evt.With("startDate", i64(start))
	}
	return evt
}

// NewListedEvent is emitted when a borrower posts an ask.
func NewListedEvent(l *Loan) *types.Event { return newLoanEvent(EventTypeListed, l) }

// NewFundedEvent is emitted when a loan becomes active.
func NewFundedEvent(l *Loan) *types.Event { return newLoanEvent(EventTypeFunded, l) }

// NewRepaidEvent carries the settled amounts of a repayment.
func NewRepaidEvent(l *Loan, lender crypto.Address, q *Quote) *types.Event {
	return newLoanEvent(EventTypeRepaid, l).
		With("lender", lender.String()).
		With("interest", u64(q.Interest)).
		With("amountDue", u64(q.AmountDue)).
		With("creatorFee", u64(q.CreatorFee)).
		With("elapsedSeconds", i64(q.Elapsed))
}

func NewRepossessedEvent(l *Loan) *types.Event { return newLoanEvent(EventTypeRepossessed, l) }

func NewClosedEvent(l *Loan, caller crypto.Address) *types.Event {
	return newLoanEvent(EventTypeClosed, l).With("caller", caller.String())
}

func newOfferEvent(eventType string, o *Offer) *types.Event {
	return types.NewEvent(eventType).
		With("asset", o.Asset.String()).
		With("lender", o.Lender.String()).
		With("principal", u64(o.Principal)).
		With("annualRateBps", u64(uint64(o.AnnualRateBps))).
		With("durationSeconds", i64(o.Duration))
}

func NewOfferPostedEvent(o *Offer) *types.Event { return newOfferEvent(EventTypeOfferPosted, o) }

func NewOfferCancelledEvent(o *Offer) *types.Event { return newOfferEvent(EventTypeOfferCancelled, o) }

func NewOfferTakenEvent(o *Offer, borrower crypto.Address) *types.Event {
	return newOfferEvent(EventTypeOfferTaken, o).With("borrower", borrower.String())
}
