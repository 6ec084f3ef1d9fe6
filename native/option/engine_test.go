package option_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/onda-protocol/onda-program-library-sub000/core/errors"
	"github.com/onda-protocol/onda-program-library-sub000/core/state"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	"github.com/onda-protocol/onda-program-library-sub000/native/assets"
	"github.com/onda-protocol/onda-program-library-sub000/native/custody"
	"github.com/onda-protocol/onda-program-library-sub000/native/loan"
	"github.com/onda-protocol/onda-program-library-sub000/native/option"
	"github.com/onda-protocol/onda-program-library-sub000/native/rental"
	"github.com/onda-protocol/onda-program-library-sub000/native/settlement"
	"github.com/onda-protocol/onda-program-library-sub000/storage"
)

const (
	start = int64(1_700_000_000)
	day   = int64(settlement.SecondsPerDay)
)

func addr(fill byte) crypto.Address {
	var a crypto.Address
	for i := range a {
		a[i] = fill
	}
	return a
}

var (
	seller   = addr(0x01)
	buyer    = addr(0x02)
	renter   = addr(0x03)
	creatorA = addr(0x0A)
	creatorB = addr(0x0B)
	creatorC = addr(0x0C)
)

type fixture struct {
	now     int64
	mgr     *state.Manager
	custody *custody.Engine
	options *option.Engine
	rentals *rental.Engine
	loans   *loan.Engine
	asset   crypto.AssetID
}

func newFixture(t *testing.T, feeBps uint16) *fixture {
	t.Helper()
	f := &fixture{now: start, mgr: state.NewManager(storage.NewMemDB())}
	clock := func() int64 { return f.now }

	f.custody = custody.NewEngine()
	f.custody.SetState(f.mgr)

	registry := assets.NewEngine()
	registry.SetState(f.mgr)

	f.rentals = rental.NewEngine()
	f.rentals.SetState(f.mgr)
	f.rentals.SetCustody(f.custody)
	f.rentals.SetRoyalties(registry)
	f.rentals.SetNowFunc(clock)

	f.options = option.NewEngine()
	f.options.SetState(f.mgr)
	f.options.SetCustody(f.custody)
	f.options.SetRoyalties(registry)
	f.options.SetRentalSettler(f.rentals)
	f.options.SetNowFunc(clock)

	f.loans = loan.NewEngine()
	f.loans.SetState(f.mgr)
	f.loans.SetCustody(f.custody)
	f.loans.SetRoyalties(registry)
	f.loans.SetNowFunc(clock)

	f.asset = crypto.NewAssetID([]byte("option-asset"))
	creators := []settlement.Creator{
		{Address: creatorA, Share: 34},
		{Address: creatorB, Share: 33},
		{Address: creatorC, Share: 33},
	}
	_, err := registry.Register(f.asset, seller, creators, feeBps)
	require.NoError(t, err)
	for _, a := range []crypto.Address{buyer, renter} {
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

func TestBuyAndExercise(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.options.Ask(f.asset, seller, 1_000, 50_000, start+7*day)
	require.NoError(t, err)

	_, err = f.options.Buy(f.asset, seller)
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)

	o, err := f.options.Buy(f.asset, buyer)
	require.NoError(t, err)
	require.Equal(t, option.StatusActive, o.Status())
	require.EqualValues(t, 1_000, f.balance(t, seller))

	_, err = f.options.Exercise(f.asset, seller)
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)

	f.now = start + 7*day
	p, err := f.options.Exercise(f.asset, buyer)
	require.NoError(t, err)
	require.EqualValues(t, 50_000, p.ToSeller)
	require.EqualValues(t, 51_000, f.balance(t, seller))
	require.EqualValues(t, 1_000_000-51_000, f.balance(t, buyer))

	h := f.holding(t)
	require.Equal(t, buyer, h.Owner)
	require.False(t, h.Frozen)
	_, ok, err := f.custody.Record(f.asset)
	require.NoError(t, err)
	require.False(t, ok)

	o, err = f.options.Option(f.asset)
	require.NoError(t, err)
	require.Equal(t, option.StatusExercised, o.Status())

	require.NoError(t, f.options.Close(f.asset, buyer))
	require.ErrorIs(t, f.options.Close(f.asset, buyer), coreerrors.ErrNotFound)
}

func TestExerciseAfterExpiryFails(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.options.Ask(f.asset, seller, 1_000, 50_000, start+day)
	require.NoError(t, err)
	_, err = f.options.Buy(f.asset, buyer)
	require.NoError(t, err)

	f.now = start + day + 1
	_, err = f.options.Exercise(f.asset, buyer)
	require.ErrorIs(t, err, coreerrors.ErrOptionExpired)
	require.Equal(t, seller, f.holding(t).Owner)
}

func TestCloseActiveOnlyAfterExpiry(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.options.Ask(f.asset, seller, 1_000, 50_000, start+day)
	require.NoError(t, err)
	_, err = f.options.Buy(f.asset, buyer)
	require.NoError(t, err)

	require.ErrorIs(t, f.options.Close(f.asset, seller), coreerrors.ErrOptionNotExpired)

	f.now = start + day + 1
	require.NoError(t, f.options.Close(f.asset, seller))
	h := f.holding(t)
	require.Equal(t, seller, h.Owner)
	require.False(t, h.Frozen)
}

func TestRoyaltyDustStaysWithBuyer(t *testing.T) {
	f := newFixture(t, 1_000)
	_, err := f.options.Ask(f.asset, seller, 100, 10_000, start+day)
	require.NoError(t, err)

	o, err := f.options.Buy(f.asset, buyer)
	require.NoError(t, err)
	require.Equal(t, option.StatusActive, o.Status())

	// fee = 10; shares 34/33/33 pay 3 each and one unit of dust stays put.
	require.EqualValues(t, 90, f.balance(t, seller))
	require.EqualValues(t, 3, f.balance(t, creatorA))
	require.EqualValues(t, 3, f.balance(t, creatorB))
	require.EqualValues(t, 3, f.balance(t, creatorC))
	require.EqualValues(t, 1_000_000-99, f.balance(t, buyer))
}

func TestExerciseSettlesRental(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.options.Ask(f.asset, seller, 0, 5_000, start+30*day)
	require.NoError(t, err)
	_, err = f.rentals.List(f.asset, seller, 1_000, start+30*day, crypto.Address{})
	require.NoError(t, err)
	_, err = f.options.Buy(f.asset, buyer)
	require.NoError(t, err)
	_, err = f.rentals.Take(f.asset, renter, 10)
	require.NoError(t, err)
	require.Equal(t, renter, f.holding(t).Owner)

	f.now = start + 2*day
	_, err = f.options.Exercise(f.asset, buyer)
	require.NoError(t, err)

	require.EqualValues(t, 1_000_000-10_000+8_000, f.balance(t, renter))
	require.EqualValues(t, 5_000+2_000, f.balance(t, seller))
	require.EqualValues(t, 0, f.balance(t, rental.EscrowVault(f.asset)))
	_, err = f.rentals.Rental(f.asset)
	require.ErrorIs(t, err, coreerrors.ErrNotFound)

	h := f.holding(t)
	require.Equal(t, buyer, h.Owner)
	require.False(t, h.Frozen)
	_, ok, err := f.custody.Record(f.asset)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOptionExcludesLoan(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.options.Ask(f.asset, seller, 1_000, 5_000, start+day)
	require.NoError(t, err)
	_, err = f.loans.Ask(f.asset, seller, 10_000, 1_000, day)
	require.ErrorIs(t, err, coreerrors.ErrInvalidState)
}

func TestAskRequiresFutureExpiry(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.options.Ask(f.asset, seller, 1_000, 5_000, start)
	require.ErrorIs(t, err, coreerrors.ErrInvalidExpiry)
	require.False(t, f.holding(t).Frozen)
}

func TestSellIntoBid(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.options.Bid(f.asset, buyer, 2_000, 40_000, start+3*day)
	require.NoError(t, err)
	require.EqualValues(t, 2_000, f.balance(t, option.BidVault(f.asset, buyer)))

	bids, err := f.options.Bids(f.asset)
	require.NoError(t, err)
	require.Len(t, bids, 1)

	_, err = f.options.SellIntoBid(f.asset, renter, buyer)
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized, "only the holder can write the option")

	o, err := f.options.SellIntoBid(f.asset, seller, buyer)
	require.NoError(t, err)
	require.Equal(t, option.StatusActive, o.Status())
	gotBuyer, ok := o.Buyer()
	require.True(t, ok)
	require.Equal(t, buyer, gotBuyer)
	require.EqualValues(t, 2_000, f.balance(t, seller))
	require.EqualValues(t, 0, f.balance(t, option.BidVault(f.asset, buyer)))
	require.True(t, f.holding(t).Frozen)

	_, err = f.options.Exercise(f.asset, buyer)
	require.NoError(t, err)
	require.Equal(t, buyer, f.holding(t).Owner)
}

func TestSellIntoBidRefundsDust(t *testing.T) {
	f := newFixture(t, 1_000)
	_, err := f.options.Bid(f.asset, buyer, 100, 40_000, start+3*day)
	require.NoError(t, err)
	_, err = f.options.SellIntoBid(f.asset, seller, buyer)
	require.NoError(t, err)
	require.EqualValues(t, 90, f.balance(t, seller))
	require.EqualValues(t, 0, f.balance(t, option.BidVault(f.asset, buyer)))
	require.EqualValues(t, 1_000_000-99, f.balance(t, buyer))
}

func TestCancelBid(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.options.Bid(f.asset, buyer, 2_000, 40_000, start+3*day)
	require.NoError(t, err)
	require.NoError(t, f.options.CancelBid(f.asset, buyer))
	require.EqualValues(t, 1_000_000, f.balance(t, buyer))
	require.ErrorIs(t, f.options.CancelBid(f.asset, buyer), coreerrors.ErrNotFound)
}

func TestExpiredBidCannotBeFilled(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.options.Bid(f.asset, buyer, 2_000, 40_000, start+day)
	require.NoError(t, err)
	f.now = start + day + 1
	_, err = f.options.SellIntoBid(f.asset, seller, buyer)
	require.ErrorIs(t, err, coreerrors.ErrOptionExpired)
}
