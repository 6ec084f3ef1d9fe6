package state

import (
	"fmt"

	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	"github.com/onda-protocol/onda-program-library-sub000/native/assets"
)

// AssetMetadataGet returns the registry entry for asset.
func (m *Manager) AssetMetadataGet(asset crypto.AssetID) (*assets.Metadata, bool, error) {
	meta := new(assets.Metadata)
	ok, err := m.KVGet(assetMetadataKey(asset), meta)
	if err != nil || !ok {
		return nil, false, err
	}
	return meta, true, nil
}

// AssetMetadataPut stores the registry entry for its asset.
func (m *Manager) AssetMetadataPut(meta *assets.Metadata) error {
	if meta == nil {
		return fmt.Errorf("state: nil asset metadata")
	}
	return m.KVPut(assetMetadataKey(meta.Asset), meta)
}
