package assets

import (
	"strconv"

	"github.com/onda-protocol/onda-program-library-sub000/core/types"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
)

const EventTypeRegistered = "assets.registered"

// NewRegisteredEvent is emitted when an asset is minted into the registry.
func NewRegisteredEvent(meta *Metadata, owner crypto.Address) *types.Event {
	return types.NewEvent(EventTypeRegistered).
		With("asset", meta.Asset.String()).
		With("owner", owner.String()).
		With("sellerFeeBps", strconv.FormatUint(uint64(meta.SellerFeeBps), 10)).
		With("creators", strconv.Itoa(len(meta.Creators)))
}
