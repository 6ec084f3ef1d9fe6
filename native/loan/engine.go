package loan

import (
	"errors"
	"fmt"
	"time"

	coreerrors "github.com/onda-protocol/onda-program-library-sub000/core/errors"
	"github.com/onda-protocol/onda-program-library-sub000/core/events"
	"github.com/onda-protocol/onda-program-library-sub000/core/types"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	"github.com/onda-protocol/onda-program-library-sub000/native/assets"
	nativecommon "github.com/onda-protocol/onda-program-library-sub000/native/common"
	"github.com/onda-protocol/onda-program-library-sub000/native/custody"
	"github.com/onda-protocol/onda-program-library-sub000/native/settlement"
)

const moduleName = "loan"

var (
	errNilState   = errors.New("loan engine: state not configured")
	errNilCustody = errors.New("loan engine: custody not configured")
)

type engineState interface {
	LoanGet(asset crypto.AssetID) (*Loan, bool, error)
	LoanPut(l *Loan) error
	LoanDelete(asset crypto.AssetID) error
	LoanOfferGet(asset crypto.AssetID, lender crypto.Address) (*Offer, bool, error)
	LoanOfferPut(o *Offer) error
	LoanOfferDelete(asset crypto.AssetID, lender crypto.Address) error
	LoanOffers(asset crypto.AssetID) ([]*Offer, error)
	Transfer(from, to crypto.Address, amount uint64) error
}

// Custody is the part of the custody engine the loan drives.
type Custody interface {
	Record(asset crypto.AssetID) (*custody.Record, bool, error)
	Attach(asset crypto.AssetID, kind custody.Kind, caller crypto.Address) (*custody.Record, error)
	Detach(asset crypto.AssetID, kind custody.Kind, caller crypto.Address) (*custody.Record, error)
	ThawAndTransfer(asset crypto.AssetID, from, to, newAuthority crypto.Address) error
}

// Royalties looks up the royalty table of an asset.
type Royalties interface {
	Metadata(asset crypto.AssetID) (*assets.Metadata, error)
}

// RentalSettler settles a rental on asset ahead of its term and drops its
// claim on the asset.
type RentalSettler interface {
	ForceSettle(asset crypto.AssetID, now int64) error
}

// Engine runs the loan state machine against the custody record.
type Engine struct {
	state     engineState
	custody   Custody
	royalties Royalties
	rentals   RentalSettler
	emitter   events.Emitter
	pauses    nativecommon.PauseView
	nowFn     func() int64
}

// NewEngine creates a loan engine with a no-op emitter and the wall clock.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetCustody(c Custody) { e.custody = c }

func (e *Engine) SetRoyalties(r Royalties) { e.royalties = r }

// SetRentalSettler configures the rental engine consulted when collateral is
// repossessed from under a rental.
func (e *Engine) SetRentalSettler(r RentalSettler) { e.rentals = r }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(events.Wrap(evt))
}

func (e *Engine) ready(mutating bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.custody == nil {
		return errNilCustody
	}
	if mutating {
		return nativecommon.Guard(e.pauses, moduleName)
	}
	return nil
}

func (e *Engine) load(asset crypto.AssetID) (*Loan, error) {
	l, ok, err := e.state.LoanGet(asset)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("loan: no loan on %s: %w", asset, coreerrors.ErrNotFound)
	}
	return l, nil
}

func (e *Engine) creatorFeeBps(asset crypto.AssetID) (uint16, error) {
	if e.royalties == nil {
		return 0, nil
	}
	meta, err := e.royalties.Metadata(asset)
	if err != nil {
		return 0, err
	}
	return meta.SellerFeeBps, nil
}

func validateTerms(principal uint64, rateBps uint16, duration int64) error {
	if principal == 0 {
		return fmt.Errorf("loan: principal must be positive: %w", coreerrors.ErrInvalidAmount)
	}
	if rateBps > settlement.BasisPoints {
		return fmt.Errorf("loan: rate %d bps: %w", rateBps, coreerrors.ErrInvalidAmount)
	}
	if duration <= 0 {
		return fmt.Errorf("loan: duration must be positive: %w", coreerrors.ErrInvalidExpiry)
	}
	return nil
}

// Loan returns the loan collateralised by asset.
func (e *Engine) Loan(asset crypto.AssetID) (*Loan, error) {
	if err := e.ready(false); err != nil {
		return nil, err
	}
	return e.load(asset)
}

// Ask lists asset as collateral for a loan of principal and freezes it under
// the borrower's authority.
func (e *Engine) Ask(asset crypto.AssetID, borrower crypto.Address, principal uint64, rateBps uint16, duration int64) (*Loan, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	if err := validateTerms(principal, rateBps, duration); err != nil {
		return nil, err
	}
	if _, ok, err := e.state.LoanGet(asset); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("loan: %s already has a loan: %w", asset, coreerrors.ErrInvalidState)
	}
	feeBps, err := e.creatorFeeBps(asset)
	if err != nil {
		return nil, err
	}
	if _, err := e.custody.Attach(asset, custody.KindLoan, borrower); err != nil {
		return nil, err
	}
	l := &Loan{
		Asset:         asset,
		Borrower:      borrower,
		Principal:     principal,
		AnnualRateBps: rateBps,
		CreatorFeeBps: feeBps,
		Duration:      duration,
		Phase:         Listed{},
	}
	if err := e.state.LoanPut(l); err != nil {
		return nil, err
	}
	e.emit(NewListedEvent(l))
	return l.Clone(), nil
}

// Fund accepts a listed loan. The principal moves straight from lender to
// borrower and interest accrues from now.
func (e *Engine) Fund(asset crypto.AssetID, lender crypto.Address) (*Loan, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	l, err := e.load(asset)
	if err != nil {
		return nil, err
	}
	if _, ok := l.Phase.(Listed); !ok {
		return nil, fmt.Errorf("loan: cannot fund a %s loan: %w", l.Status(), coreerrors.ErrInvalidState)
	}
	if lender.IsZero() || lender == l.Borrower {
		return nil, fmt.Errorf("loan: borrower cannot fund own loan: %w", coreerrors.ErrUnauthorized)
	}
	if err := e.state.Transfer(lender, l.Borrower, l.Principal); err != nil {
		return nil, err
	}
	l.Phase = Active{Lender: lender, StartDate: e.now()}
	l.Outstanding = l.Principal
	if err := e.state.LoanPut(l); err != nil {
		return nil, err
	}
	e.emit(NewFundedEvent(l))
	return l.Clone(), nil
}

// Quote reports what a repayment at the given time would settle.
func (e *Engine) Quote(asset crypto.AssetID, at int64) (*Quote, error) {
	if err := e.ready(false); err != nil {
		return nil, err
	}
	l, err := e.load(asset)
	if err != nil {
		return nil, err
	}
	return quote(l, at)
}

func quote(l *Loan, at int64) (*Quote, error) {
	start, ok := l.StartDate()
	if !ok {
		return nil, fmt.Errorf("loan: %s loan accrues nothing: %w", l.Status(), coreerrors.ErrInvalidState)
	}
	elapsed := at - start
	if elapsed < 0 {
		elapsed = 0
	}
	interest, err := settlement.InterestDue(l.Principal, l.AnnualRateBps, elapsed)
	if err != nil {
		return nil, err
	}
	due, err := settlement.Add(l.Principal, interest)
	if err != nil {
		return nil, err
	}
	fee, err := settlement.ProRata(l.Principal, l.CreatorFeeBps, elapsed, settlement.SecondsPerYear)
	if err != nil {
		return nil, err
	}
	return &Quote{
		Asset:      l.Asset,
		At:         at,
		Elapsed:    elapsed,
		Interest:   interest,
		AmountDue:  due,
		CreatorFee: fee,
		Overdue:    elapsed >= l.Duration,
	}, nil
}

// Repay settles an active loan: principal plus interest to the lender, the
// creator fee to the asset's creators, then the loan's custody claim is
// dropped and the record reclaimed.
func (e *Engine) Repay(asset crypto.AssetID, caller crypto.Address) (*Quote, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	l, err := e.load(asset)
	if err != nil {
		return nil, err
	}
	active, ok := l.Phase.(Active)
	if !ok {
		return nil, fmt.Errorf("loan: cannot repay a %s loan: %w", l.Status(), coreerrors.ErrInvalidState)
	}
	if caller != l.Borrower {
		return nil, fmt.Errorf("loan: only the borrower repays: %w", coreerrors.ErrUnauthorized)
	}
	q, err := quote(l, e.now())
	if err != nil {
		return nil, err
	}
	if err := e.state.Transfer(l.Borrower, active.Lender, q.AmountDue); err != nil {
		return nil, err
	}
	if q.CreatorFee > 0 && e.royalties != nil {
		meta, err := e.royalties.Metadata(asset)
		if err != nil {
			return nil, err
		}
		paid, _, err := assets.PayRoyalty(e.state, l.Borrower, q.CreatorFee, meta.Creators)
		if err != nil {
			return nil, err
		}
		q.CreatorFee = paid
	}
	if _, err := e.custody.Detach(asset, custody.KindLoan, l.Borrower); err != nil {
		return nil, err
	}
	if err := e.state.LoanDelete(asset); err != nil {
		return nil, err
	}
	l.Outstanding = 0
	e.emit(NewRepaidEvent(l, active.Lender, q))
	return q, nil
}

// Repossess moves the collateral of an overdue loan to its lender. A rental
// on the asset is settled first so its borrower gets the unearned rent back.
func (e *Engine) Repossess(asset crypto.AssetID, caller crypto.Address) (*Loan, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	l, err := e.load(asset)
	if err != nil {
		return nil, err
	}
	active, ok := l.Phase.(Active)
	if !ok {
		return nil, fmt.Errorf("loan: cannot repossess a %s loan: %w", l.Status(), coreerrors.ErrInvalidState)
	}
	if caller != active.Lender {
		return nil, fmt.Errorf("loan: only the lender repossesses: %w", coreerrors.ErrUnauthorized)
	}
	now := e.now()
	if elapsed := now - active.StartDate; elapsed < l.Duration {
		return nil, fmt.Errorf("loan: %ds of %ds elapsed: %w", elapsed, l.Duration, coreerrors.ErrNotOverdue)
	}
	rec, ok, err := e.custody.Record(asset)
	if err != nil {
		return nil, err
	}
	if !ok || !rec.Composition.Loan {
		return nil, fmt.Errorf("loan: %s carries no loan claim: %w", asset, coreerrors.ErrCustodyViolation)
	}
	if rec.Composition.Rental {
		if e.rentals == nil {
			return nil, fmt.Errorf("loan: %s is rented and no rental settler is configured: %w", asset, coreerrors.ErrInvalidState)
		}
		if err := e.rentals.ForceSettle(asset, now); err != nil {
			return nil, err
		}
	}
	if err := e.custody.ThawAndTransfer(asset, l.Borrower, active.Lender, active.Lender); err != nil {
		return nil, err
	}
	if _, err := e.custody.Detach(asset, custody.KindLoan, active.Lender); err != nil {
		return nil, err
	}
	l.Phase = Defaulted{Lender: active.Lender}
	if err := e.state.LoanPut(l); err != nil {
		return nil, err
	}
	e.emit(NewRepossessedEvent(l))
	return l.Clone(), nil
}

// Close reclaims a listed or defaulted loan. A listed loan drops its custody
// claim, which frees the asset unless another instrument still holds it.
func (e *Engine) Close(asset crypto.AssetID, caller crypto.Address) error {
	if err := e.ready(true); err != nil {
		return err
	}
	l, err := e.load(asset)
	if err != nil {
		return err
	}
	switch p := l.Phase.(type) {
	case Listed:
		if caller != l.Borrower {
			return fmt.Errorf("loan: only the borrower closes a listed loan: %w", coreerrors.ErrUnauthorized)
		}
		rec, _, err := e.custody.Record(asset)
		if err != nil {
			return err
		}
		if rec.LentOut() {
			return fmt.Errorf("loan: collateral is rented out: %w", coreerrors.ErrInvalidState)
		}
		if _, err := e.custody.Detach(asset, custody.KindLoan, l.Borrower); err != nil {
			return err
		}
	case Defaulted:
		if caller != p.Lender {
			return fmt.Errorf("loan: only the lender closes a defaulted loan: %w", coreerrors.ErrUnauthorized)
		}
	default:
		return fmt.Errorf("loan: cannot close a %s loan: %w", l.Status(), coreerrors.ErrInvalidState)
	}
	if err := e.state.LoanDelete(asset); err != nil {
		return err
	}
	e.emit(NewClosedEvent(l, caller))
	return nil
}
