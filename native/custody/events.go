package custody

import (
	"github.com/onda-protocol/onda-program-library-sub000/core/types"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
)

const (
	EventTypeFrozen           = "custody.frozen"
	EventTypeReleased         = "custody.released"
	EventTypeTransferred      = "custody.transferred"
	EventTypeAuthorityRotated = "custody.authority_rotated"
	EventTypeAttached         = "custody.attached"
	EventTypeDetached         = "custody.detached"
)

// NewFrozenEvent is emitted when an asset is delegated and frozen.
func NewFrozenEvent(asset crypto.AssetID, owner, authority crypto.Address) *types.Event {
	return types.NewEvent(EventTypeFrozen).
		With("asset", asset.String()).
		With("owner", owner.String()).
		With("authority", authority.String())
}

// NewReleasedEvent is emitted when an asset is thawed and its delegate revoked.
func NewReleasedEvent(asset crypto.AssetID, owner crypto.Address) *types.Event {
	return types.NewEvent(EventTypeReleased).
		With("asset", asset.String()).
		With("owner", owner.String())
}

// NewTransferredEvent omits the authority for plain owner transfers.
func NewTransferredEvent(asset crypto.AssetID, to, authority crypto.Address) *types.Event {
	evt := types.NewEvent(EventTypeTransferred).
		With("asset", asset.String()).
		With("to", to.String())
	if !authority.IsZero() {
		evt.With("authority", authority.String())
	}
	return evt
}

func NewAuthorityRotatedEvent(asset crypto.AssetID, from, to crypto.Address) *types.Event {
	return types.NewEvent(EventTypeAuthorityRotated).
		With("asset", asset.String()).
		With("from", from.String()).
		With("to", to.String())
}

// NewAttachedEvent reports the composition after kind joined it.
func NewAttachedEvent(rec *Record, kind Kind) *types.Event {
	return recordEvent(EventTypeAttached, rec, kind)
}

// NewDetachedEvent reports the composition after kind left it.
func NewDetachedEvent(rec *Record, kind Kind) *types.Event {
	return recordEvent(EventTypeDetached, rec, kind)
}

func recordEvent(eventType string, rec *Record, kind Kind) *types.Event {
	evt := types.NewEvent(eventType).With("kind", kind.String())
	if rec == nil {
		return evt
	}
	return evt.
		With("asset", rec.Asset.String()).
		With("issuer", rec.Issuer.String()).
		With("authority", rec.Authority.String()).
		With("composition", rec.Composition.String())
}
