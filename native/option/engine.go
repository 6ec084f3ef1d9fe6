package option

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

const moduleName = "option"

var (
	errNilState   = errors.New("option engine: state not configured")
	errNilCustody = errors.New("option engine: custody not configured")
)

type engineState interface {
	OptionGet(asset crypto.AssetID) (*Option, bool, error)
	OptionPut(o *Option) error
	OptionDelete(asset crypto.AssetID) error
	OptionBidGet(asset crypto.AssetID, buyer crypto.Address) (*Bid, bool, error)
	OptionBidPut(b *Bid) error
	OptionBidDelete(asset crypto.AssetID, buyer crypto.Address) error
	OptionBids(asset crypto.AssetID) ([]*Bid, error)
	Transfer(from, to crypto.Address, amount uint64) error
}

// Custody is the part of the custody engine the option drives.
type Custody interface {
	Record(asset crypto.AssetID) (*custody.Record, bool, error)
	Attach(asset crypto.AssetID, kind custody.Kind, caller crypto.Address) (*custody.Record, error)
	Detach(asset crypto.AssetID, kind custody.Kind, caller crypto.Address) (*custody.Record, error)
	ThawAndTransfer(asset crypto.AssetID, from, to, newAuthority crypto.Address) error
}

type Royalties interface {
	Metadata(asset crypto.AssetID) (*assets.Metadata, error)
}

// RentalSettler settles a rental on asset ahead of its term.
type RentalSettler interface {
	ForceSettle(asset crypto.AssetID, now int64) error
}

// Engine runs the call option state machine against the custody record.
type Engine struct {
	state     engineState
	custody   Custody
	royalties Royalties
	rentals   RentalSettler
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

func (e *Engine) load(asset crypto.AssetID) (*Option, error) {
	o, ok, err := e.state.OptionGet(asset)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("option: no option on %s: %w", asset, coreerrors.ErrNotFound)
	}
	return o, nil
}

func (e *Engine) metadata(asset crypto.AssetID) (*assets.Metadata, error) {
	if e.royalties == nil {
		return &assets.Metadata{Asset: asset}, nil
	}
	return e.royalties.Metadata(asset)
}

// Payment is the split of one premium or strike payment.
type Payment struct {
	Gross    uint64 `json:"gross"`
	ToSeller uint64 `json:"toSeller"`
	Royalty  uint64 `json:"royalty"`
}

// pay moves amount from payer to seller net of the asset's royalty. Rounding
// dust of the royalty split stays with the payer.
func (e *Engine) pay(asset crypto.AssetID, payer, seller crypto.Address, amount uint64) (*Payment, error) {
	meta, err := e.metadata(asset)
	if err != nil {
		return nil, err
	}
	fee, err := settlement.Fee(amount, meta.SellerFeeBps)
	if err != nil {
		return nil, err
	}
	paid, _, err := assets.PayRoyalty(e.state, payer, fee, meta.Creators)
	if err != nil {
		return nil, err
	}
	if err := e.state.Transfer(payer, seller, amount-fee); err != nil {
		return nil, err
	}
	return &Payment{Gross: amount, ToSeller: amount - fee, Royalty: paid}, nil
}

// Option returns the option written on asset.
func (e *Engine) Option(asset crypto.AssetID) (*Option, error) {
	if err := e.ready(false); err != nil {
		return nil, err
	}
	return e.load(asset)
}

// Ask writes a call option on asset and freezes it under the seller.
func (e *Engine) Ask(asset crypto.AssetID, seller crypto.Address, premium, strike uint64, expiry int64) (*Option, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	if expiry <= e.now() {
		return nil, fmt.Errorf("option: expiry %d is not in the future: %w", expiry, coreerrors.ErrInvalidExpiry)
	}
	if _, ok, err := e.state.OptionGet(asset); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("option: %s already has an option: %w", asset, coreerrors.ErrInvalidState)
	}
	if _, err := e.custody.Attach(asset, custody.KindOption, seller); err != nil {
		return nil, err
	}
	o := &Option{Asset: asset, Seller: seller, Premium: premium, StrikePrice: strike, Expiry: expiry, Phase: Listed{}}
	if err := e.state.OptionPut(o); err != nil {
		return nil, err
	}
	e.emit(NewListedEvent(o))
	return o.Clone(), nil
}

// Buy purchases a listed option, paying the premium to the seller.
func (e *Engine) Buy(asset crypto.AssetID, buyer crypto.Address) (*Option, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	o, err := e.load(asset)
	if err != nil {
		return nil, err
	}
	if _, ok := o.Phase.(Listed); !ok {
		return nil, fmt.Errorf("option: cannot buy a %s option: %w", o.Status(), coreerrors.ErrInvalidState)
	}
	if buyer.IsZero() || buyer == o.Seller {
		return nil, fmt.Errorf("option: seller cannot buy own option: %w", coreerrors.ErrUnauthorized)
	}
	if e.now() > o.Expiry {
		return nil, fmt.Errorf("option: expired at %d: %w", o.Expiry, coreerrors.ErrOptionExpired)
	}
	payment, err := e.pay(asset, buyer, o.Seller, o.Premium)
	if err != nil {
		return nil, err
	}
	o.Phase = Active{Buyer: buyer}
	if err := e.state.OptionPut(o); err != nil {
		return nil, err
	}
	e.emit(NewBoughtEvent(o, payment))
	return o.Clone(), nil
}

// Exercise delivers the asset to the buyer against the strike. A rental on
// the asset is settled before the asset moves.
func (e *Engine) Exercise(asset crypto.AssetID, caller crypto.Address) (*Payment, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	o, err := e.load(asset)
	if err != nil {
		return nil, err
	}
	active, ok := o.Phase.(Active)
	if !ok {
		return nil, fmt.Errorf("option: cannot exercise a %s option: %w", o.Status(), coreerrors.ErrInvalidState)
	}
	if caller != active.Buyer {
		return nil, fmt.Errorf("option: only the buyer exercises: %w", coreerrors.ErrUnauthorized)
	}
	now := e.now()
	if now > o.Expiry {
		return nil, fmt.Errorf("option: expired at %d: %w", o.Expiry, coreerrors.ErrOptionExpired)
	}
	rec, ok, err := e.custody.Record(asset)
	if err != nil {
		return nil, err
	}
	if !ok || !rec.Composition.Option {
		return nil, fmt.Errorf("option: %s carries no option claim: %w", asset, coreerrors.ErrCustodyViolation)
	}
	payment, err := e.pay(asset, active.Buyer, o.Seller, o.StrikePrice)
	if err != nil {
		return nil, err
	}
	if rec.Composition.Rental {
		if e.rentals == nil {
			return nil, fmt.Errorf("option: %s is rented and no rental settler is configured: %w", asset, coreerrors.ErrInvalidState)
		}
		if err := e.rentals.ForceSettle(asset, now); err != nil {
			return nil, err
		}
	}
	if err := e.custody.ThawAndTransfer(asset, o.Seller, active.Buyer, active.Buyer); err != nil {
		return nil, err
	}
	if _, err := e.custody.Detach(asset, custody.KindOption, active.Buyer); err != nil {
		return nil, err
	}
	o.Phase = Exercised{Buyer: active.Buyer}
	if err := e.state.OptionPut(o); err != nil {
		return nil, err
	}
	e.emit(NewExercisedEvent(o, payment))
	return payment, nil
}

// Close reclaims an option. A listed option may be withdrawn by its seller,
// an active one only after expiry, and an exercised one by either party.
func (e *Engine) Close(asset crypto.AssetID, caller crypto.Address) error {
	if err := e.ready(true); err != nil {
		return err
	}
	o, err := e.load(asset)
	if err != nil {
		return err
	}
	switch p := o.Phase.(type) {
	case Listed:
		if caller != o.Seller {
			return fmt.Errorf("option: only the seller closes a listed option: %w", coreerrors.ErrUnauthorized)
		}
		if _, err := e.custody.Detach(asset, custody.KindOption, o.Seller); err != nil {
			return err
		}
	case Active:
		if caller != o.Seller && caller != p.Buyer {
			return fmt.Errorf("option: %s is not a party: %w", caller, coreerrors.ErrUnauthorized)
		}
		if e.now() <= o.Expiry {
			return fmt.Errorf("option: exercisable until %d: %w", o.Expiry, coreerrors.ErrOptionNotExpired)
		}
		if _, err := e.custody.Detach(asset, custody.KindOption, o.Seller); err != nil {
			return err
		}
	case Exercised:
		if caller != o.Seller && caller != p.Buyer {
			return fmt.Errorf("option: %s is not a party: %w", caller, coreerrors.ErrUnauthorized)
		}
	default:
		return fmt.Errorf("option: unknown state %s: %w", o.Status(), coreerrors.ErrInvalidState)
	}
	if err := e.state.OptionDelete(asset); err != nil {
		return err
	}
	e.emit(NewClosedEvent(o, caller))
	return nil
}
