package assets

import (
	"errors"
	"fmt"

	coreerrors "github.com/onda-protocol/onda-program-library-sub000/core/errors"
	"github.com/onda-protocol/onda-program-library-sub000/core/events"
	"github.com/onda-protocol/onda-program-library-sub000/core/types"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	nativecommon "github.com/onda-protocol/onda-program-library-sub000/native/common"
	"github.com/onda-protocol/onda-program-library-sub000/native/settlement"
)

const moduleName = "assets"

var errNilState = errors.New("assets engine: state not configured")

type engineState interface {
	AssetMetadataGet(asset crypto.AssetID) (*Metadata, bool, error)
	AssetMetadataPut(meta *Metadata) error
	AssetMint(asset crypto.AssetID, owner crypto.Address) error
}

// Bank moves fungible balances between accounts.
type Bank interface {
	Transfer(from, to crypto.Address, amount uint64) error
}

// Engine maintains the asset registry and the royalty table derived from it.
type Engine struct {
	state   engineState
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

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

// Register mints the single unit of asset to owner and records its royalty
// table.
func (e *Engine) Register(asset crypto.AssetID, owner crypto.Address, creators []settlement.Creator, sellerFeeBps uint16) (*Metadata, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if asset.IsZero() {
		return nil, fmt.Errorf("assets: asset id required: %w", coreerrors.ErrInvalidAmount)
	}
	if owner.IsZero() {
		return nil, fmt.Errorf("assets: owner required: %w", coreerrors.ErrUnauthorized)
	}
	if sellerFeeBps > settlement.BasisPoints {
		return nil, fmt.Errorf("assets: seller fee %d bps: %w", sellerFeeBps, coreerrors.ErrInvalidAmount)
	}
	if err := settlement.ValidateCreators(creators); err != nil {
		return nil, err
	}
	if len(creators) > 0 {
		total := 0
		for _, c := range creators {
			total += int(c.Share)
		}
		if total != settlement.MaxShare {
			return nil, fmt.Errorf("assets: creator shares sum to %d: %w", total, coreerrors.ErrInvalidAmount)
		}
	}
	if _, ok, err := e.state.AssetMetadataGet(asset); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("assets: %s already registered: %w", asset, coreerrors.ErrInvalidState)
	}
	if err := e.state.AssetMint(asset, owner); err != nil {
		return nil, err
	}
	meta := &Metadata{
		Asset:        asset,
		Creators:     append([]settlement.Creator(nil), creators...),
		SellerFeeBps: sellerFeeBps,
	}
	if err := e.state.AssetMetadataPut(meta); err != nil {
		return nil, err
	}
	e.emit(NewRegisteredEvent(meta, owner))
	return meta.Clone(), nil
}

// Metadata returns the royalty table for asset.
func (e *Engine) Metadata(asset crypto.AssetID) (*Metadata, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	meta, ok, err := e.state.AssetMetadataGet(asset)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("assets: %s not registered: %w", asset, coreerrors.ErrNotFound)
	}
	return meta, nil
}

// PayRoyalty splits fee among creators and pays every share from payer. The
// returned dust is the part of fee nobody was paid; it stays with payer.
func PayRoyalty(bank Bank, payer crypto.Address, fee uint64, creators []settlement.Creator) (paid, dust uint64, err error) {
	payouts, dust, err := settlement.SplitRoyalty(fee, creators)
	if err != nil {
		return 0, 0, err
	}
	for _, p := range payouts {
		if err := bank.Transfer(payer, p.Recipient, p.Amount); err != nil {
			return 0, 0, err
		}
		paid += p.Amount
	}
	return paid, dust, nil
}
