package custody

import (
	"errors"
	"fmt"

	coreerrors "github.com/onda-protocol/onda-program-library-sub000/core/errors"
	"github.com/onda-protocol/onda-program-library-sub000/core/events"
	"github.com/onda-protocol/onda-program-library-sub000/core/types"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	nativecommon "github.com/onda-protocol/onda-program-library-sub000/native/common"
)

const moduleName = "custody"

var errNilState = errors.New("custody engine: state not configured")

// Provider is the asset-custody collaborator: it keeps the owner, delegate
// and frozen flag of every asset. It applies the primitive it is asked for;
// the engine decides who may ask.
type Provider interface {
	AssetHolding(asset crypto.AssetID) (*Holding, error)
	// AssetFreeze sets delegate on the asset and freezes it.
	AssetFreeze(asset crypto.AssetID, delegate crypto.Address) error
	// AssetThaw unfreezes an asset frozen under delegate.
	AssetThaw(asset crypto.AssetID, delegate crypto.Address) error
	// AssetRevoke clears delegate from the asset.
	AssetRevoke(asset crypto.AssetID, delegate crypto.Address) error
	// AssetTransfer moves an unfrozen asset. signer must be the owner or the
	// delegate; a delegate signer stays delegate of the new owner.
	AssetTransfer(asset crypto.AssetID, from, to, signer crypto.Address) error
}

type engineState interface {
	Provider
	CustodyRecordGet(asset crypto.AssetID) (*Record, bool, error)
	CustodyRecordPut(record *Record) error
	CustodyRecordDelete(asset crypto.AssetID) error
}

// Engine implements the custody lock and the custody record. It is the only
// component that changes a record's controlling authority.
type Engine struct {
	state   engineState
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

// NewEngine creates a custody engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

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

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(events.Wrap(evt))
}

// Capability returns the derived identity that acts on an asset while it is
// encumbered. No key exists for it; it is re-derived from the record address.
func Capability(asset crypto.AssetID) crypto.Address {
	return crypto.DeriveAddress([]byte("custody"), asset[:])
}

// EscrowAccount is the custody account that holds an asset during a handoff.
// It is the capability itself, so only this engine can move assets out of it.
func EscrowAccount(asset crypto.AssetID) crypto.Address { return Capability(asset) }

func violation(format string, args ...any) error {
	return fmt.Errorf("custody: "+format+": %w", append(args, coreerrors.ErrCustodyViolation)...)
}

// Record returns the custody record for asset.
func (e *Engine) Record(asset crypto.AssetID) (*Record, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.CustodyRecordGet(asset)
}

func (e *Engine) holding(asset crypto.AssetID) (*Holding, error) {
	h, err := e.state.AssetHolding(asset)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("custody: asset %s: %w", asset, coreerrors.ErrNotFound)
	}
	return h, nil
}

// --- custody lock ---

// DelegateAndFreeze encumbers an unencumbered asset held by owner: the
// capability becomes its delegate, the asset is frozen and authority is
// recorded as controlling authority.
func (e *Engine) DelegateAndFreeze(asset crypto.AssetID, owner, authority crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	h, err := e.holding(asset)
	if err != nil {
		return err
	}
	if h.Owner != owner {
		return fmt.Errorf("custody: %s does not hold asset: %w", owner, coreerrors.ErrUnauthorized)
	}
	if h.Frozen {
		return violation("asset %s already frozen", asset)
	}
	capability := Capability(asset)
	if !h.Delegate.IsZero() && h.Delegate != capability {
		return fmt.Errorf("custody: asset delegated to %s: %w", h.Delegate, coreerrors.ErrInvalidDelegate)
	}
	if err := e.state.AssetFreeze(asset, capability); err != nil {
		return err
	}
	if err := e.rotateAuthority(asset, authority); err != nil {
		return err
	}
	e.emit(NewFrozenEvent(asset, owner, authority))
	return nil
}

// ThawAndRevoke releases a frozen asset back to unencumbered ownership by
// owner. Only the recorded controlling authority may request it.
func (e *Engine) ThawAndRevoke(asset crypto.AssetID, owner, caller crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	rec, ok, err := e.state.CustodyRecordGet(asset)
	if err != nil {
		return err
	}
	if !ok || rec.Authority != caller {
		return fmt.Errorf("custody: %s is not the controlling authority: %w", caller, coreerrors.ErrUnauthorized)
	}
	h, err := e.holding(asset)
	if err != nil {
		return err
	}
	if !h.Frozen {
		return violation("asset %s is not frozen", asset)
	}
	if h.Owner != owner {
		return violation("asset %s held by %s, not %s", asset, h.Owner, owner)
	}
	capability := Capability(asset)
	if err := e.state.AssetThaw(asset, capability); err != nil {
		return err
	}
	if err := e.state.AssetRevoke(asset, capability); err != nil {
		return err
	}
	e.emit(NewReleasedEvent(asset, owner))
	return nil
}

// ThawAndTransfer moves a frozen asset from one holder to another through
// the escrow account and refreezes it there, rotating the controlling
// authority to newAuthority in the same step.
func (e *Engine) ThawAndTransfer(asset crypto.AssetID, from, to, newAuthority crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	rec, ok, err := e.state.CustodyRecordGet(asset)
	if err != nil {
		return err
	}
	if !ok || !rec.Composition.Any() {
		return violation("asset %s has no custody claim", asset)
	}
	h, err := e.holding(asset)
	if err != nil {
		return err
	}
	if !h.Frozen {
		return violation("asset %s is not frozen", asset)
	}
	if h.Owner != from {
		return violation("asset %s held by %s, not %s", asset, h.Owner, from)
	}
	capability := Capability(asset)
	if err := e.state.AssetThaw(asset, capability); err != nil {
		return err
	}
	if err := e.state.AssetTransfer(asset, from, EscrowAccount(asset), capability); err != nil {
		return err
	}
	return e.ClaimFromEscrow(asset, to, newAuthority)
}

// ClaimFromEscrow hands an asset sitting in the escrow account to its new
// holder, refreezes it under the capability and rotates authority.
func (e *Engine) ClaimFromEscrow(asset crypto.AssetID, to, newAuthority crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if to.IsZero() || newAuthority.IsZero() {
		return violation("claim requires a recipient and authority")
	}
	h, err := e.holding(asset)
	if err != nil {
		return err
	}
	escrow := EscrowAccount(asset)
	if h.Owner != escrow {
		return violation("asset %s is not in escrow", asset)
	}
	if h.Frozen {
		return violation("escrowed asset %s is frozen", asset)
	}
	capability := Capability(asset)
	if err := e.state.AssetTransfer(asset, escrow, to, capability); err != nil {
		return err
	}
	if err := e.state.AssetFreeze(asset, capability); err != nil {
		return err
	}
	if err := e.rotateAuthority(asset, newAuthority); err != nil {
		return err
	}
	e.emit(NewTransferredEvent(asset, to, newAuthority))
	return nil
}

func (e *Engine) rotateAuthority(asset crypto.AssetID, authority crypto.Address) error {
	rec, ok, err := e.state.CustodyRecordGet(asset)
	if err != nil {
		return err
	}
	if !ok {
		rec = &Record{Asset: asset}
	}
	previous := rec.Authority
	if ok && previous == authority {
		return nil
	}
	rec.Authority = authority
	if err := e.state.CustodyRecordPut(rec); err != nil {
		return err
	}
	if ok && !previous.IsZero() {
		e.emit(NewAuthorityRotatedEvent(asset, previous, authority))
	}
	return nil
}

// --- custody record ---

// Attach marks asset as claimed by an instrument of kind issued by caller.
// The first claim encumbers the asset under caller's authority; later claims
// must come from the same issuer while the asset is at home.
func (e *Engine) Attach(asset crypto.AssetID, kind Kind, caller crypto.Address) (*Record, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("custody: unknown kind %d: %w", kind, coreerrors.ErrInvalidState)
	}
	rec, ok, err := e.state.CustodyRecordGet(asset)
	if err != nil {
		return nil, err
	}
	if ok && rec.Composition.Any() {
		if rec.Composition.Has(kind) {
			return nil, fmt.Errorf("custody: %s already attached to %s: %w", kind, asset, coreerrors.ErrInvalidState)
		}
		if rec.Issuer != caller {
			return nil, fmt.Errorf("custody: asset claimed by %s: %w", rec.Issuer, coreerrors.ErrUnauthorized)
		}
		if rec.Authority != rec.Issuer {
			return nil, fmt.Errorf("custody: asset is held by %s: %w", rec.Authority, coreerrors.ErrInvalidState)
		}
		if !rec.Composition.compatible(kind) {
			return nil, fmt.Errorf("custody: %s cannot join %s: %w", kind, rec.Composition, coreerrors.ErrInvalidState)
		}
		h, err := e.holding(asset)
		if err != nil {
			return nil, err
		}
		if !h.Frozen {
			return nil, violation("claimed asset %s is not frozen", asset)
		}
	} else {
		if err := e.DelegateAndFreeze(asset, caller, caller); err != nil {
			return nil, err
		}
		if rec, _, err = e.state.CustodyRecordGet(asset); err != nil {
			return nil, err
		}
		rec.Issuer = caller
	}
	rec.Composition = rec.Composition.With(kind, true)
	if err := e.state.CustodyRecordPut(rec); err != nil {
		return nil, err
	}
	e.emit(NewAttachedEvent(rec, kind))
	return rec.Clone(), nil
}

// Detach clears the kind flag. When it was the last claim the asset is
// released to its holder on behalf of caller, who must be the controlling
// authority, and the record is reclaimed. The returned record is nil once
// reclaimed.
func (e *Engine) Detach(asset crypto.AssetID, kind Kind, caller crypto.Address) (*Record, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	rec, ok, err := e.state.CustodyRecordGet(asset)
	if err != nil {
		return nil, err
	}
	if !ok || !rec.Composition.Has(kind) {
		return nil, fmt.Errorf("custody: %s not attached to %s: %w", kind, asset, coreerrors.ErrInvalidState)
	}
	rec.Composition = rec.Composition.With(kind, false)
	e.emit(NewDetachedEvent(rec, kind))
	if rec.Composition.Any() {
		if err := e.state.CustodyRecordPut(rec); err != nil {
			return nil, err
		}
		return rec.Clone(), nil
	}
	h, err := e.holding(asset)
	if err != nil {
		return nil, err
	}
	if err := e.ThawAndRevoke(asset, h.Owner, caller); err != nil {
		return nil, err
	}
	if err := e.state.CustodyRecordDelete(asset); err != nil {
		return nil, err
	}
	return nil, nil
}

// Consistent reports whether the record and the provider agree: an asset is
// frozen exactly when at least one flag is set.
func (e *Engine) Consistent(asset crypto.AssetID) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	h, err := e.holding(asset)
	if err != nil {
		return false, err
	}
	rec, ok, err := e.state.CustodyRecordGet(asset)
	if err != nil {
		return false, err
	}
	claimed := ok && rec.Composition.Any()
	return claimed == h.Frozen, nil
}

// Transfer hands an unencumbered asset from its owner to another holder.
// Frozen assets move only through ThawAndTransfer.
func (e *Engine) Transfer(asset crypto.AssetID, owner, to crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	rec, ok, err := e.state.CustodyRecordGet(asset)
	if err != nil {
		return err
	}
	if ok && rec.Composition.Any() {
		return fmt.Errorf("custody: asset %s is claimed by %s: %w", asset, rec.Composition, coreerrors.ErrInvalidState)
	}
	h, err := e.holding(asset)
	if err != nil {
		return err
	}
	if h.Owner != owner {
		return fmt.Errorf("custody: %s does not hold %s: %w", owner, asset, coreerrors.ErrUnauthorized)
	}
	if err := e.state.AssetTransfer(asset, owner, to, owner); err != nil {
		return err
	}
	e.emit(NewTransferredEvent(asset, to, crypto.Address{}))
	return nil
}
