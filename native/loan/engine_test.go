package loan_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/onda-protocol/onda-program-library-sub000/core/errors"
	"github.com/onda-protocol/onda-program-library-sub000/core/events"
	"github.com/onda-protocol/onda-program-library-sub000/core/state"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	"github.com/onda-protocol/onda-program-library-sub000/native/assets"
	"github.com/onda-protocol/onda-program-library-sub000/native/custody"
	"github.com/onda-protocol/onda-program-library-sub000/native/loan"
	"github.com/onda-protocol/onda-program-library-sub000/native/rental"
	"github.com/onda-protocol/onda-program-library-sub000/native/settlement"
	"github.com/onda-protocol/onda-program-library-sub000/storage"
)

const (
	start    = int64(1_700_000_000)
	halfYear = int64(15_768_000)
)

func addr(fill byte) crypto.Address {
	var a crypto.Address
	for i := range a {
		a[i] = fill
	}
	return a
}

var (
	borrower = addr(0x01)
	lender   = addr(0x02)
	renter   = addr(0x03)
	creatorA = addr(0x0A)
	creatorB = addr(0x0B)
)

type fixture struct {
	now     int64
	mgr     *state.Manager
	custody *custody.Engine
	loans   *loan.Engine
	rentals *rental.Engine
	events  *events.Buffer
	asset   crypto.AssetID
}

func newFixture(t *testing.T, feeBps uint16) *fixture {
	t.Helper()
	f := &fixture{now: start, mgr: state.NewManager(storage.NewMemDB()), events: new(events.Buffer)}
	clock := func() int64 { return f.now }

	f.custody = custody.NewEngine()
	f.custody.SetState(f.mgr)
	f.custody.SetEmitter(f.events)

	registry := assets.NewEngine()
	registry.SetState(f.mgr)

	f.rentals = rental.NewEngine()
	f.rentals.SetState(f.mgr)
	f.rentals.SetCustody(f.custody)
	f.rentals.SetRoyalties(registry)
	f.rentals.SetNowFunc(clock)

	f.loans = loan.NewEngine()
	f.loans.SetState(f.mgr)
	f.loans.SetCustody(f.custody)
	f.loans.SetRoyalties(registry)
	f.loans.SetRentalSettler(f.rentals)
	f.loans.SetNowFunc(clock)
	f.loans.SetEmitter(f.events)

	f.asset = crypto.NewAssetID([]byte("loan-collateral"))
	creators := []settlement.Creator{{Address: creatorA, Share: 60}, {Address: creatorB, Share: 40}}
	_, err := registry.Register(f.asset, borrower, creators, feeBps)
	require.NoError(t, err)

	for _, a := range []crypto.Address{borrower, lender, renter} {
		require.NoError(t, f.mgr.Credit(a, 1_000_000))
	}
	return f
}

func (f *fixture) balance(t *testing.T, a crypto.Address) uint64 {
	t.Helper()
	b, err := f.mgr.Balance(a)
	require.NoError(t, err)
	return b
}

func (f *fixture) holding(t *testing.T) *custody.Holding {
	t.Helper()
	h, err := f.mgr.AssetHolding(f.asset)
	require.NoError(t, err)
	return h
}

func TestLoanRepayHalfYear(t *testing.T) {
	f := newFixture(t, 0)
	l, err := f.loans.Ask(f.asset, borrower, 100_000, 1_000, 2*halfYear)
	require.NoError(t, err)
	require.Equal(t, loan.StatusListed, l.Status())
	require.True(t, f.holding(t).Frozen)

	_, err = f.loans.Fund(f.asset, borrower)
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)

	l, err = f.loans.Fund(f.asset, lender)
	require.NoError(t, err)
	startDate, ok := l.StartDate()
	require.True(t, ok)
	require.Equal(t, start, startDate)
	require.EqualValues(t, 1_100_000, f.balance(t, borrower))

	f.now = start + halfYear
	q, err := f.loans.Repay(f.asset, borrower)
	require.NoError(t, err)
	require.EqualValues(t, 5_000, q.Interest)
	require.EqualValues(t, 105_000, q.AmountDue)
	require.EqualValues(t, 995_000, f.balance(t, borrower))
	require.EqualValues(t, 1_005_000, f.balance(t, lender))

	h := f.holding(t)
	require.False(t, h.Frozen)
	require.Equal(t, borrower, h.Owner)
	_, ok, err = f.custody.Record(f.asset)
	require.NoError(t, err)
	require.False(t, ok)
	_, err = f.loans.Loan(f.asset)
	require.ErrorIs(t, err, coreerrors.ErrNotFound)
}

func TestLoanRepayAtStartIsPrincipal(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.loans.Ask(f.asset, borrower, 50_000, 2_000, halfYear)
	require.NoError(t, err)
	_, err = f.loans.Fund(f.asset, lender)
	require.NoError(t, err)

	q, err := f.loans.Quote(f.asset, start)
	require.NoError(t, err)
	require.EqualValues(t, 50_000, q.AmountDue)
	require.False(t, q.Overdue)
}

func TestLoanCreatorFeeSplit(t *testing.T) {
	f := newFixture(t, 500)
	_, err := f.loans.Ask(f.asset, borrower, 100_000, 1_000, 2*halfYear)
	require.NoError(t, err)
	_, err = f.loans.Fund(f.asset, lender)
	require.NoError(t, err)

	f.now = start + halfYear
	q, err := f.loans.Repay(f.asset, borrower)
	require.NoError(t, err)
	// 100_000 × 5% × ½ year = 2_500, split 60/40.
	require.EqualValues(t, 2_500, q.CreatorFee)
	require.EqualValues(t, 1_500, f.balance(t, creatorA))
	require.EqualValues(t, 1_000, f.balance(t, creatorB))
	require.EqualValues(t, 1_100_000-105_000-2_500, f.balance(t, borrower))
}

func TestRepossessBoundary(t *testing.T) {
	f := newFixture(t, 0)
	duration := int64(30 * settlement.SecondsPerDay)
	_, err := f.loans.Ask(f.asset, borrower, 10_000, 1_000, duration)
	require.NoError(t, err)
	_, err = f.loans.Fund(f.asset, lender)
	require.NoError(t, err)

	_, err = f.loans.Repossess(f.asset, borrower)
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)

	f.now = start + duration - 1
	_, err = f.loans.Repossess(f.asset, lender)
	require.ErrorIs(t, err, coreerrors.ErrNotOverdue)

	f.now = start + duration
	l, err := f.loans.Repossess(f.asset, lender)
	require.NoError(t, err)
	require.Equal(t, loan.StatusDefaulted, l.Status())

	h := f.holding(t)
	require.Equal(t, lender, h.Owner)
	require.False(t, h.Frozen)

	require.NoError(t, f.loans.Close(f.asset, lender))
	err = f.loans.Close(f.asset, lender)
	require.ErrorIs(t, err, coreerrors.ErrNotFound)
}

func TestRepossessSettlesRental(t *testing.T) {
	f := newFixture(t, 0)
	duration := int64(10 * settlement.SecondsPerDay)
	_, err := f.loans.Ask(f.asset, borrower, 10_000, 1_000, duration)
	require.NoError(t, err)
	_, err = f.rentals.List(f.asset, borrower, 1_000, start+100*settlement.SecondsPerDay, crypto.Address{})
	require.NoError(t, err)
	_, err = f.loans.Fund(f.asset, lender)
	require.NoError(t, err)

	_, err = f.rentals.Take(f.asset, renter, 20)
	require.NoError(t, err)
	require.Equal(t, renter, f.holding(t).Owner)

	// Ten of twenty days elapsed: half the rent is earned.
	f.now = start + duration
	_, err = f.loans.Repossess(f.asset, lender)
	require.NoError(t, err)

	require.EqualValues(t, 1_000_000-20_000+10_000, f.balance(t, renter))
	require.EqualValues(t, 0, f.balance(t, rental.EscrowVault(f.asset)))
	_, err = f.rentals.Rental(f.asset)
	require.ErrorIs(t, err, coreerrors.ErrNotFound)

	h := f.holding(t)
	require.Equal(t, lender, h.Owner)
	require.False(t, h.Frozen)
	_, ok, err := f.custody.Record(f.asset)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCloseListedLoan(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.loans.Ask(f.asset, borrower, 10_000, 1_000, halfYear)
	require.NoError(t, err)
	require.ErrorIs(t, f.loans.Close(f.asset, lender), coreerrors.ErrUnauthorized)
	require.NoError(t, f.loans.Close(f.asset, borrower))
	require.False(t, f.holding(t).Frozen)
	require.ErrorIs(t, f.loans.Close(f.asset, borrower), coreerrors.ErrNotFound)
}

func TestCloseRefusedWhileRentedOut(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.loans.Ask(f.asset, borrower, 10_000, 1_000, halfYear)
	require.NoError(t, err)
	_, err = f.rentals.List(f.asset, borrower, 100, start+30*settlement.SecondsPerDay, crypto.Address{})
	require.NoError(t, err)
	_, err = f.rentals.Take(f.asset, renter, 5)
	require.NoError(t, err)

	require.ErrorIs(t, f.loans.Close(f.asset, borrower), coreerrors.ErrInvalidState)

	f.now = start + 5*settlement.SecondsPerDay
	_, err = f.rentals.Recover(f.asset, borrower)
	require.NoError(t, err)
	require.NoError(t, f.loans.Close(f.asset, borrower))

	rec, ok, err := f.custody.Record(f.asset)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "rental", rec.Composition.String())
	require.True(t, f.holding(t).Frozen)
}

func TestCloseActiveLoanRejected(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.loans.Ask(f.asset, borrower, 10_000, 1_000, halfYear)
	require.NoError(t, err)
	_, err = f.loans.Fund(f.asset, lender)
	require.NoError(t, err)
	require.ErrorIs(t, f.loans.Close(f.asset, borrower), coreerrors.ErrInvalidState)
	_, err = f.loans.Fund(f.asset, renter)
	require.ErrorIs(t, err, coreerrors.ErrInvalidState)
}

func TestAskValidation(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.loans.Ask(f.asset, borrower, 0, 1_000, halfYear)
	require.ErrorIs(t, err, coreerrors.ErrInvalidAmount)
	_, err = f.loans.Ask(f.asset, borrower, 10, 1_000, 0)
	require.ErrorIs(t, err, coreerrors.ErrInvalidExpiry)
	_, err = f.loans.Ask(f.asset, lender, 10, 1_000, halfYear)
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)
}

func TestFundRequiresBalance(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.loans.Ask(f.asset, borrower, 5_000_000, 1_000, halfYear)
	require.NoError(t, err)
	_, err = f.loans.Fund(f.asset, lender)
	require.ErrorIs(t, err, coreerrors.ErrInsufficientBalance)
}

func TestOfferLifecycle(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.loans.Offer(f.asset, lender, 20_000, 1_000, halfYear)
	require.NoError(t, err)
	require.EqualValues(t, 20_000, f.balance(t, loan.OfferVault(f.asset, lender)))

	_, err = f.loans.Offer(f.asset, lender, 20_000, 1_000, halfYear)
	require.ErrorIs(t, err, coreerrors.ErrInvalidState)

	offers, err := f.loans.Offers(f.asset)
	require.NoError(t, err)
	require.Len(t, offers, 1)

	l, err := f.loans.TakeOffer(f.asset, borrower, lender)
	require.NoError(t, err)
	require.Equal(t, loan.StatusActive, l.Status())
	require.EqualValues(t, 1_020_000, f.balance(t, borrower))
	require.EqualValues(t, 0, f.balance(t, loan.OfferVault(f.asset, lender)))
	require.True(t, f.holding(t).Frozen)

	offers, err = f.loans.Offers(f.asset)
	require.NoError(t, err)
	require.Empty(t, offers)
}

func TestCancelOfferRefunds(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.loans.Offer(f.asset, lender, 20_000, 1_000, halfYear)
	require.NoError(t, err)
	require.NoError(t, f.loans.CancelOffer(f.asset, lender))
	require.EqualValues(t, 1_000_000, f.balance(t, lender))
	require.ErrorIs(t, f.loans.CancelOffer(f.asset, lender), coreerrors.ErrNotFound)
}

func TestTakeOfferReplacesOwnAsk(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.loans.Ask(f.asset, borrower, 10_000, 500, halfYear)
	require.NoError(t, err)
	_, err = f.loans.Offer(f.asset, lender, 15_000, 900, halfYear)
	require.NoError(t, err)

	l, err := f.loans.TakeOffer(f.asset, borrower, lender)
	require.NoError(t, err)
	require.EqualValues(t, 15_000, l.Principal)
	require.EqualValues(t, 900, l.AnnualRateBps)
}

func TestLoanEventsEmitted(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.loans.Ask(f.asset, borrower, 10_000, 1_000, halfYear)
	require.NoError(t, err)
	_, err = f.loans.Fund(f.asset, lender)
	require.NoError(t, err)

	var seen []string
	for _, evt := range f.events.Events() {
		seen = append(seen, evt.EventType())
	}
	require.Contains(t, seen, loan.EventTypeListed)
	require.Contains(t, seen, loan.EventTypeFunded)
	require.Contains(t, seen, custody.EventTypeAttached)
}
