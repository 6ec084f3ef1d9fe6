package rental

import (
	"errors"
	"fmt"
	"math"
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

const moduleName = "rental"

var (
	errNilState   = errors.New("rental engine: state not configured")
	errNilCustody = errors.New("rental engine: custody not configured")
)

type engineState interface {
	RentalGet(asset crypto.AssetID) (*Rental, bool, error)
	RentalPut(r *Rental) error
	RentalDelete(asset crypto.AssetID) error
	Transfer(from, to crypto.Address, amount uint64) error
}

// Custody is the part of the custody engine the rental drives.
type Custody interface {
	Attach(asset crypto.AssetID, kind custody.Kind, caller crypto.Address) (*custody.Record, error)
	Detach(asset crypto.AssetID, kind custody.Kind, caller crypto.Address) (*custody.Record, error)
	ThawAndTransfer(asset crypto.AssetID, from, to, newAuthority crypto.Address) error
}

type Royalties interface {
	Metadata(asset crypto.AssetID) (*assets.Metadata, error)
}

// Engine runs the rental state machine. Rent is prepaid into a per-asset
// escrow vault and released to the lender as it is earned.
type Engine struct {
	state     engineState
	custody   Custody
	royalties Royalties
	emitter   events.Emitter
	pauses    nativecommon.PauseView
	nowFn     func() int64
}

func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetCustody(c Custody) { e.custody = c }

func (e *Engine) SetRoyalties(r Royalties) { e.royalties = r }

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

// SetNowFunc overrides the time source used by the engine.
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

func (e *Engine) load(asset crypto.AssetID) (*Rental, error) {
	r, ok, err := e.state.RentalGet(asset)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("rental: no rental on %s: %w", asset, coreerrors.ErrNotFound)
	}
	return r, nil
}

func (e *Engine) creators(asset crypto.AssetID) ([]settlement.Creator, error) {
	if e.royalties == nil {
		return nil, nil
	}
	meta, err := e.royalties.Metadata(asset)
	if err != nil {
		return nil, err
	}
	return meta.Creators, nil
}

func windowEnd(from int64, days uint32) (int64, error) {
	if days == 0 {
		return 0, fmt.Errorf("rental: days must be positive: %w", coreerrors.ErrInvalidExpiry)
	}
	span := int64(days) * settlement.SecondsPerDay
	if span > math.MaxInt64-from {
		return 0, fmt.Errorf("rental: window end: %w", coreerrors.ErrNumericOverflow)
	}
	return from + span, nil
}

// Rental returns the rental listed on asset.
func (e *Engine) Rental(asset crypto.AssetID) (*Rental, error) {
	if err := e.ready(false); err != nil {
		return nil, err
	}
	return e.load(asset)
}

// Escrow reports the earned and unearned parts of the escrow at time at.
func (e *Engine) Escrow(asset crypto.AssetID, at int64) (*Escrow, error) {
	if err := e.ready(false); err != nil {
		return nil, err
	}
	r, err := e.load(asset)
	if err != nil {
		return nil, err
	}
	earned, unearned := r.SplitAt(at)
	return &Escrow{Asset: asset, At: at, Balance: r.EscrowBalance, Earned: earned, Unearned: unearned}, nil
}

// List offers asset for rent at dailyRate until ceilingExpiry. A non-zero
// designated borrower is the only identity allowed to take it.
func (e *Engine) List(asset crypto.AssetID, lender crypto.Address, dailyRate uint64, ceilingExpiry int64, designated crypto.Address) (*Rental, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	if dailyRate == 0 {
		return nil, fmt.Errorf("rental: daily rate must be positive: %w", coreerrors.ErrInvalidAmount)
	}
	if ceilingExpiry <= e.now() {
		return nil, fmt.Errorf("rental: ceiling %d is not in the future: %w", ceilingExpiry, coreerrors.ErrInvalidExpiry)
	}
	if designated == lender {
		designated = crypto.Address{}
	}
	if _, ok, err := e.state.RentalGet(asset); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("rental: %s already listed: %w", asset, coreerrors.ErrInvalidState)
	}
	var feeBps uint16
	if e.royalties != nil {
		meta, err := e.royalties.Metadata(asset)
		if err != nil {
			return nil, err
		}
		feeBps = meta.SellerFeeBps
	}
	if _, err := e.custody.Attach(asset, custody.KindRental, lender); err != nil {
		return nil, err
	}
	r := &Rental{
		Asset:         asset,
		Lender:        lender,
		Designated:    designated,
		DailyRate:     dailyRate,
		CreatorFeeBps: feeBps,
		CeilingExpiry: ceilingExpiry,
		Phase:         Listed{},
	}
	if err := e.state.RentalPut(r); err != nil {
		return nil, err
	}
	e.emit(NewListedEvent(r))
	return r.Clone(), nil
}

func (e *Engine) prepay(r *Rental, payer crypto.Address, days uint32) (uint64, error) {
	rent, err := settlement.Rent(r.DailyRate, days)
	if err != nil {
		return 0, err
	}
	balance, err := settlement.Add(r.EscrowBalance, rent)
	if err != nil {
		return 0, err
	}
	if err := e.state.Transfer(payer, EscrowVault(r.Asset), rent); err != nil {
		return 0, err
	}
	r.EscrowBalance = balance
	return rent, nil
}

// Take rents a listed asset for days. The rent is paid into escrow and the
// asset moves to the borrower, who holds authority over it for the window.
func (e *Engine) Take(asset crypto.AssetID, borrower crypto.Address, days uint32) (*Rental, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	r, err := e.load(asset)
	if err != nil {
		return nil, err
	}
	if _, ok := r.Phase.(Listed); !ok {
		return nil, fmt.Errorf("rental: cannot take a %s rental: %w", r.Status(), coreerrors.ErrInvalidState)
	}
	if borrower.IsZero() || borrower == r.Lender {
		return nil, fmt.Errorf("rental: lender cannot rent own asset: %w", coreerrors.ErrUnauthorized)
	}
	if !r.Designated.IsZero() && borrower != r.Designated {
		return nil, fmt.Errorf("rental: reserved for %s: %w", r.Designated, coreerrors.ErrUnauthorized)
	}
	now := e.now()
	expiry, err := windowEnd(now, days)
	if err != nil {
		return nil, err
	}
	if expiry > r.CeilingExpiry {
		return nil, fmt.Errorf("rental: window ends after ceiling %d: %w", r.CeilingExpiry, coreerrors.ErrInvalidExpiry)
	}
	rent, err := e.prepay(r, borrower, days)
	if err != nil {
		return nil, err
	}
	if err := e.custody.ThawAndTransfer(asset, r.Lender, borrower, borrower); err != nil {
		return nil, err
	}
	r.Phase = Rented{Borrower: borrower, Start: now, Expiry: expiry, Checkpoint: now}
	if err := e.state.RentalPut(r); err != nil {
		return nil, err
	}
	e.emit(NewTakenEvent(r, rent))
	return r.Clone(), nil
}

// Extend lengthens the current window by days. It must happen before the
// window ends and may not pass the ceiling.
func (e *Engine) Extend(asset crypto.AssetID, borrower crypto.Address, days uint32) (*Rental, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	r, err := e.load(asset)
	if err != nil {
		return nil, err
	}
	w, ok := r.Window()
	if !ok {
		return nil, fmt.Errorf("rental: cannot extend a %s rental: %w", r.Status(), coreerrors.ErrInvalidState)
	}
	if borrower != w.Borrower {
		return nil, fmt.Errorf("rental: only the borrower extends: %w", coreerrors.ErrUnauthorized)
	}
	if e.now() >= w.Expiry {
		return nil, fmt.Errorf("rental: window ended at %d: %w", w.Expiry, coreerrors.ErrInvalidExpiry)
	}
	expiry, err := windowEnd(w.Expiry, days)
	if err != nil {
		return nil, err
	}
	if expiry > r.CeilingExpiry {
		return nil, fmt.Errorf("rental: window ends after ceiling %d: %w", r.CeilingExpiry, coreerrors.ErrInvalidExpiry)
	}
	rent, err := e.prepay(r, borrower, days)
	if err != nil {
		return nil, err
	}
	w.Expiry = expiry
	r.Phase = w
	if err := e.state.RentalPut(r); err != nil {
		return nil, err
	}
	e.emit(NewExtendedEvent(r, rent))
	return r.Clone(), nil
}

// Settlement describes the funds a rental released.
type Settlement struct {
	Asset      crypto.AssetID `json:"asset"`
	ToLender   uint64         `json:"toLender"`
	Royalty    uint64         `json:"royalty"`
	ToBorrower uint64         `json:"toBorrower"`
	Remaining  uint64         `json:"remaining"`
}

// release pays earned out of the vault: the creators' royalty first, the
// rest including rounding dust to the lender.
func (e *Engine) release(r *Rental, earned uint64, s *Settlement) error {
	if earned == 0 {
		return nil
	}
	vault := EscrowVault(r.Asset)
	fee, err := settlement.Fee(earned, r.CreatorFeeBps)
	if err != nil {
		return err
	}
	creators, err := e.creators(r.Asset)
	if err != nil {
		return err
	}
	paid, _, err := assets.PayRoyalty(e.state, vault, fee, creators)
	if err != nil {
		return err
	}
	if err := e.state.Transfer(vault, r.Lender, earned-paid); err != nil {
		return err
	}
	r.EscrowBalance -= earned
	s.ToLender += earned - paid
	s.Royalty += paid
	return nil
}

// WithdrawEscrow pays the lender the rent earned since the last withdrawal.
func (e *Engine) WithdrawEscrow(asset crypto.AssetID, caller crypto.Address) (*Settlement, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	r, err := e.load(asset)
	if err != nil {
		return nil, err
	}
	if caller != r.Lender {
		return nil, fmt.Errorf("rental: only the lender withdraws: %w", coreerrors.ErrUnauthorized)
	}
	if r.EscrowBalance == 0 {
		return nil, fmt.Errorf("rental: escrow is empty: %w", coreerrors.ErrInvalidState)
	}
	now := e.now()
	earned, _ := r.SplitAt(now)
	s := &Settlement{Asset: asset}
	if err := e.release(r, earned, s); err != nil {
		return nil, err
	}
	if w, ok := r.Window(); ok && now > w.Checkpoint {
		w.Checkpoint = now
		if w.Checkpoint > w.Expiry {
			w.Checkpoint = w.Expiry
		}
		r.Phase = w
	}
	s.Remaining = r.EscrowBalance
	if err := e.state.RentalPut(r); err != nil {
		return nil, err
	}
	e.emit(NewWithdrawnEvent(r, s))
	return s, nil
}

// Recover ends an expired window: the whole escrow goes to the lender, the
// asset returns to the lender and the rental is listed again.
func (e *Engine) Recover(asset crypto.AssetID, caller crypto.Address) (*Settlement, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	r, err := e.load(asset)
	if err != nil {
		return nil, err
	}
	w, ok := r.Window()
	if !ok {
		return nil, fmt.Errorf("rental: cannot recover a %s rental: %w", r.Status(), coreerrors.ErrInvalidState)
	}
	if caller != r.Lender && caller != w.Borrower {
		return nil, fmt.Errorf("rental: %s is not a party: %w", caller, coreerrors.ErrUnauthorized)
	}
	if now := e.now(); now < w.Expiry {
		return nil, fmt.Errorf("rental: window ends at %d: %w", w.Expiry, coreerrors.ErrNotExpired)
	}
	s := &Settlement{Asset: asset}
	if err := e.release(r, r.EscrowBalance, s); err != nil {
		return nil, err
	}
	if err := e.custody.ThawAndTransfer(asset, w.Borrower, r.Lender, r.Lender); err != nil {
		return nil, err
	}
	r.Phase = Listed{}
	if err := e.state.RentalPut(r); err != nil {
		return nil, err
	}
	e.emit(NewRecoveredEvent(r, w.Borrower, s))
	return s, nil
}

// ForceSettle ends the rental on asset ahead of its term because another
// instrument is taking the asset. Unearned rent goes back to the borrower,
// earned rent to the lender, the asset returns to the lender, and the
// rental's claim and record are dropped. It is a no-op when asset has no
// rental; it is not paused with the module since it serves loan and option
// transitions.
func (e *Engine) ForceSettle(asset crypto.AssetID, now int64) error {
	if err := e.ready(false); err != nil {
		return err
	}
	r, ok, err := e.state.RentalGet(asset)
	if err != nil || !ok {
		return err
	}
	s := &Settlement{Asset: asset}
	if w, rented := r.Window(); rented {
		earned, unearned := r.SplitAt(now)
		if unearned > 0 {
			if err := e.state.Transfer(EscrowVault(asset), w.Borrower, unearned); err != nil {
				return err
			}
			r.EscrowBalance -= unearned
			s.ToBorrower = unearned
		}
		if err := e.release(r, earned, s); err != nil {
			return err
		}
		if err := e.custody.ThawAndTransfer(asset, w.Borrower, r.Lender, r.Lender); err != nil {
			return err
		}
	} else if r.EscrowBalance > 0 {
		if err := e.release(r, r.EscrowBalance, s); err != nil {
			return err
		}
	}
	if _, err := e.custody.Detach(asset, custody.KindRental, r.Lender); err != nil {
		return err
	}
	if err := e.state.RentalDelete(asset); err != nil {
		return err
	}
	r.Phase = Listed{}
	e.emit(NewSettledEvent(r, s))
	return nil
}

// Close delists a rental that is not currently rented and drops its claim
// on the asset.
func (e *Engine) Close(asset crypto.AssetID, caller crypto.Address) error {
	if err := e.ready(true); err != nil {
		return err
	}
	r, err := e.load(asset)
	if err != nil {
		return err
	}
	if caller != r.Lender {
		return fmt.Errorf("rental: only the lender closes: %w", coreerrors.ErrUnauthorized)
	}
	if _, ok := r.Phase.(Listed); !ok {
		return fmt.Errorf("rental: cannot close a %s rental: %w", r.Status(), coreerrors.ErrInvalidState)
	}
	s := &Settlement{Asset: asset}
	if err := e.release(r, r.EscrowBalance, s); err != nil {
		return err
	}
	if _, err := e.custody.Detach(asset, custody.KindRental, r.Lender); err != nil {
		return err
	}
	if err := e.state.RentalDelete(asset); err != nil {
		return err
	}
	e.emit(NewClosedEvent(r))
	return nil
}
