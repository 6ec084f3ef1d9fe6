package assets

import (
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	"github.com/onda-protocol/onda-program-library-sub000/native/settlement"
)

// Metadata is the registry entry for one asset: its royalty table.
type Metadata struct {
	Asset crypto.AssetID `json:"asset"`
	// Creators receive royalties by percentage share. Shares sum to 100 when
	// any creator is listed.
	Creators []settlement.Creator `json:"creators"`
	// SellerFeeBps is the royalty rate charged on premiums, strikes and as
	// the default loan creator fee.
	SellerFeeBps uint16 `json:"sellerFeeBps"`
}

// Clone returns a deep copy of the metadata.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	clone := *m
	clone.Creators = append([]settlement.Creator(nil), m.Creators...)
	return &clone
}
