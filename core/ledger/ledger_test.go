package ledger_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/onda-protocol/onda-program-library-sub000/core/errors"
	"github.com/onda-protocol/onda-program-library-sub000/core/events"
	"github.com/onda-protocol/onda-program-library-sub000/core/ledger"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	nativecommon "github.com/onda-protocol/onda-program-library-sub000/native/common"
	"github.com/onda-protocol/onda-program-library-sub000/native/loan"
	"github.com/onda-protocol/onda-program-library-sub000/native/option"
	"github.com/onda-protocol/onda-program-library-sub000/storage"
)

const (
	start    int64 = 1_700_000_000
	day      int64 = 86_400
	halfYear int64 = 15_768_000
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
	buyer    = addr(0x04)
)

type harness struct {
	ledger *ledger.Ledger
	events *events.Buffer
	now    atomic.Int64
}

func newHarness(t *testing.T, opts ...ledger.Option) *harness {
	t.Helper()
	h := &harness{events: new(events.Buffer)}
	h.now.Store(start)
	opts = append([]ledger.Option{
		ledger.WithClock(func() int64 { return h.now.Load() }),
		ledger.WithEmitter(h.events),
	}, opts...)
	l, err := ledger.New(storage.NewMemDB(), opts...)
	require.NoError(t, err)
	h.ledger = l
	return h
}

func (h *harness) advance(seconds int64) { h.now.Add(seconds) }

func (h *harness) register(t *testing.T, label string, owner crypto.Address) crypto.AssetID {
	t.Helper()
	asset := crypto.NewAssetID([]byte(label))
	_, err := h.ledger.RegisterAsset(context.Background(), asset, owner, nil, 0)
	require.NoError(t, err)
	return asset
}

func (h *harness) deposit(t *testing.T, a crypto.Address, amount uint64) {
	t.Helper()
	require.NoError(t, h.ledger.Deposit(context.Background(), a, amount))
}

func (h *harness) balance(t *testing.T, a crypto.Address) uint64 {
	t.Helper()
	b, err := h.ledger.Balance(context.Background(), a)
	require.NoError(t, err)
	return b
}

func (h *harness) eventTypes() []string {
	evts := h.events.Events()
	out := make([]string, 0, len(evts))
	for _, evt := range evts {
		out = append(out, evt.EventType())
	}
	return out
}

func TestLoanRepayHalfYear(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	asset := h.register(t, "collateral", borrower)
	h.deposit(t, lender, 200_000)
	h.deposit(t, borrower, 10_000)

	_, err := h.ledger.AskLoan(ctx, asset, borrower, 100_000, 1_000, 2*halfYear)
	require.NoError(t, err)
	funded, err := h.ledger.FundLoan(ctx, asset, lender)
	require.NoError(t, err)
	require.Equal(t, loan.StatusActive, funded.Status())
	require.Equal(t, uint64(110_000), h.balance(t, borrower))

	h.advance(halfYear)
	q, err := h.ledger.LoanQuote(ctx, asset, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(105_000), q.AmountDue)

	paid, err := h.ledger.RepayLoan(ctx, asset, borrower)
	require.NoError(t, err)
	require.Equal(t, uint64(5_000), paid.Interest)
	require.Equal(t, uint64(205_000), h.balance(t, lender))
	require.Equal(t, uint64(5_000), h.balance(t, borrower))

	holding, err := h.ledger.Holding(ctx, asset)
	require.NoError(t, err)
	require.Equal(t, borrower, holding.Owner)
	require.False(t, holding.Frozen)

	_, err = h.ledger.CustodyRecord(ctx, asset)
	require.ErrorIs(t, err, coreerrors.ErrNotFound)
	_, err = h.ledger.Loan(ctx, asset)
	require.ErrorIs(t, err, coreerrors.ErrNotFound)
}

func TestFailedOperationLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	asset := h.register(t, "collateral", borrower)
	h.deposit(t, lender, 10)
	_, err := h.ledger.AskLoan(ctx, asset, borrower, 100_000, 1_000, halfYear)
	require.NoError(t, err)
	before := len(h.events.Events())

	_, err = h.ledger.FundLoan(ctx, asset, lender)
	require.ErrorIs(t, err, coreerrors.ErrInsufficientBalance)
	require.Len(t, h.events.Events(), before)

	l, err := h.ledger.Loan(ctx, asset)
	require.NoError(t, err)
	require.Equal(t, loan.StatusListed, l.Status())
	require.Equal(t, uint64(10), h.balance(t, lender))
	require.Zero(t, h.balance(t, borrower))
}

func TestEventsEmittedAfterCommit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	asset := h.register(t, "collateral", borrower)
	h.deposit(t, lender, 1)
	h.events.Reset()

	_, err := h.ledger.AskLoan(ctx, asset, borrower, 1_000, 100, day)
	require.NoError(t, err)
	types := h.eventTypes()
	require.Contains(t, types, "custody.attached")
	require.Equal(t, loan.EventTypeListed, types[len(types)-1])
}

func TestOptionExerciseSettlesRental(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	seller := lender
	asset := h.register(t, "rented-call", seller)
	h.deposit(t, buyer, 2_000)
	h.deposit(t, renter, 20_000)

	_, err := h.ledger.AskOption(ctx, asset, seller, 100, 1_000, start+30*day)
	require.NoError(t, err)
	_, err = h.ledger.ListRental(ctx, asset, seller, 1_000, start+60*day, crypto.Address{})
	require.NoError(t, err)
	_, err = h.ledger.BuyOption(ctx, asset, buyer)
	require.NoError(t, err)
	_, err = h.ledger.TakeRental(ctx, asset, renter, 10)
	require.NoError(t, err)

	h.advance(5 * day)
	escrow, err := h.ledger.RentalEscrow(ctx, asset, 0)
	require.NoError(t, err)
	require.Equal(t, escrow.Balance, escrow.Earned+escrow.Unearned)

	payment, err := h.ledger.ExerciseOption(ctx, asset, buyer)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), payment.ToSeller)

	require.Equal(t, uint64(15_000), h.balance(t, renter))
	require.Equal(t, uint64(6_100), h.balance(t, seller))
	require.Equal(t, uint64(900), h.balance(t, buyer))

	_, err = h.ledger.Rental(ctx, asset)
	require.ErrorIs(t, err, coreerrors.ErrNotFound)
	holding, err := h.ledger.Holding(ctx, asset)
	require.NoError(t, err)
	require.Equal(t, buyer, holding.Owner)
	require.False(t, holding.Frozen)

	o, err := h.ledger.Option(ctx, asset)
	require.NoError(t, err)
	require.Equal(t, option.StatusExercised, o.Status())
	require.NoError(t, h.ledger.CloseOption(ctx, asset, buyer))
	require.ErrorIs(t, h.ledger.CloseOption(ctx, asset, buyer), coreerrors.ErrNotFound)
	require.Contains(t, h.eventTypes(), "rental.settled")
}

func TestRepayAndRepossessRaceHasOneWinner(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	asset := h.register(t, "contested", borrower)
	h.deposit(t, lender, 100_000)
	h.deposit(t, borrower, 50_000)
	_, err := h.ledger.AskLoan(ctx, asset, borrower, 100_000, 1_000, halfYear)
	require.NoError(t, err)
	_, err = h.ledger.FundLoan(ctx, asset, lender)
	require.NoError(t, err)
	h.advance(halfYear)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = h.ledger.RepayLoan(ctx, asset, borrower)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = h.ledger.RepossessLoan(ctx, asset, lender)
	}()
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		require.True(t, errors.Is(err, coreerrors.ErrInvalidState) || errors.Is(err, coreerrors.ErrNotFound), err)
	}
	require.Equal(t, 1, winners)

	holding, err := h.ledger.Holding(ctx, asset)
	require.NoError(t, err)
	if errs[0] == nil {
		require.Equal(t, borrower, holding.Owner)
		require.Equal(t, uint64(105_000), h.balance(t, lender))
	} else {
		require.Equal(t, lender, holding.Owner)
		require.Equal(t, uint64(150_000), h.balance(t, borrower))
	}
}

func TestConcurrentFundingReconcilesSharedBalance(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	const loans = 8
	assetsList := make([]crypto.AssetID, loans)
	for i := range assetsList {
		owner := addr(byte(0x40 + i))
		assetsList[i] = h.register(t, string(rune('a'+i)), owner)
		_, err := h.ledger.AskLoan(ctx, assetsList[i], owner, 100, 100, day)
		require.NoError(t, err)
	}
	h.deposit(t, lender, 500)

	var wg sync.WaitGroup
	var funded, short atomic.Int32
	for _, asset := range assetsList {
		wg.Add(1)
		go func(asset crypto.AssetID) {
			defer wg.Done()
			_, err := h.ledger.FundLoan(ctx, asset, lender)
			switch {
			case err == nil:
				funded.Add(1)
			case errors.Is(err, coreerrors.ErrInsufficientBalance):
				short.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(asset)
	}
	wg.Wait()
	require.Equal(t, int32(5), funded.Load())
	require.Equal(t, int32(3), short.Load())
	require.Zero(t, h.balance(t, lender))
}

func TestPausedModuleRejectsMutations(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, ledger.WithPauses(nativecommon.NewStaticPauses("loan")))
	asset := h.register(t, "paused", borrower)
	_, err := h.ledger.AskLoan(ctx, asset, borrower, 1_000, 100, day)
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)

	_, err = h.ledger.ListRental(ctx, asset, borrower, 10, start+day, crypto.Address{})
	require.NoError(t, err)
}

func TestTransferAssetRequiresUnencumbered(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	asset := h.register(t, "transferable", borrower)
	require.NoError(t, h.ledger.TransferAsset(ctx, asset, borrower, lender))

	holding, err := h.ledger.Holding(ctx, asset)
	require.NoError(t, err)
	require.Equal(t, lender, holding.Owner)

	_, err = h.ledger.ListRental(ctx, asset, lender, 10, start+day, crypto.Address{})
	require.NoError(t, err)
	require.ErrorIs(t, h.ledger.TransferAsset(ctx, asset, lender, borrower), coreerrors.ErrInvalidState)
}

func TestDepositRejectsZero(t *testing.T) {
	h := newHarness(t)
	require.ErrorIs(t, h.ledger.Deposit(context.Background(), lender, 0), coreerrors.ErrInvalidAmount)
}

func TestCancelledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.ledger.Balance(ctx, lender)
	require.ErrorIs(t, err, context.Canceled)
}
