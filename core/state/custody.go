package state

import (
	"fmt"

	coreerrors "github.com/onda-protocol/onda-program-library-sub000/core/errors"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	"github.com/onda-protocol/onda-program-library-sub000/native/custody"
)

// CustodyRecordGet loads the custody record for asset.
func (m *Manager) CustodyRecordGet(asset crypto.AssetID) (*custody.Record, bool, error) {
	rec := new(custody.Record)
	ok, err := m.KVGet(custodyRecordKey(asset), rec)
	if err != nil || !ok {
		return nil, false, err
	}
	return rec, true, nil
}

// CustodyRecordPut stores record under its asset.
func (m *Manager) CustodyRecordPut(record *custody.Record) error {
	if record == nil {
		return fmt.Errorf("state: nil custody record")
	}
	return m.KVPut(custodyRecordKey(record.Asset), record)
}

// CustodyRecordDelete reclaims the record of asset.
func (m *Manager) CustodyRecordDelete(asset crypto.AssetID) error {
	return m.KVDelete(custodyRecordKey(asset))
}

// The methods below make the manager the in-ledger asset custody provider:
// one holding per asset with its owner, delegate and frozen flag.

func (m *Manager) loadHolding(asset crypto.AssetID) (*custody.Holding, error) {
	h := new(custody.Holding)
	ok, err := m.KVGet(custodyHoldingKey(asset), h)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("state: asset %s: %w", asset, coreerrors.ErrNotFound)
	}
	h.Asset = asset
	return h, nil
}

func (m *Manager) storeHolding(h *custody.Holding) error {
	return m.KVPut(custodyHoldingKey(h.Asset), h)
}

// AssetMint creates the single unit of asset held by owner.
func (m *Manager) AssetMint(asset crypto.AssetID, owner crypto.Address) error {
	ok, err := m.KVGet(custodyHoldingKey(asset), nil)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("state: asset %s already minted: %w", asset, coreerrors.ErrInvalidState)
	}
	return m.storeHolding(&custody.Holding{Asset: asset, Owner: owner})
}

// AssetHolding returns the current holding of asset, or nil when the asset
// was never minted.
func (m *Manager) AssetHolding(asset crypto.AssetID) (*custody.Holding, error) {
	h := new(custody.Holding)
	ok, err := m.KVGet(custodyHoldingKey(asset), h)
	if err != nil || !ok {
		return nil, err
	}
	h.Asset = asset
	return h, nil
}

// AssetFreeze sets delegate on asset and freezes it.
func (m *Manager) AssetFreeze(asset crypto.AssetID, delegate crypto.Address) error {
	h, err := m.loadHolding(asset)
	if err != nil {
		return err
	}
	if h.Frozen {
		return fmt.Errorf("state: asset %s already frozen: %w", asset, coreerrors.ErrCustodyViolation)
	}
	if !h.Delegate.IsZero() && h.Delegate != delegate {
		return fmt.Errorf("state: asset %s delegated to %s: %w", asset, h.Delegate, coreerrors.ErrInvalidDelegate)
	}
	h.Delegate = delegate
	h.Frozen = true
	return m.storeHolding(h)
}

// AssetThaw unfreezes asset. Only its delegate may thaw it.
func (m *Manager) AssetThaw(asset crypto.AssetID, delegate crypto.Address) error {
	h, err := m.loadHolding(asset)
	if err != nil {
		return err
	}
	if !h.Frozen {
		return fmt.Errorf("state: asset %s not frozen: %w", asset, coreerrors.ErrCustodyViolation)
	}
	if h.Delegate != delegate {
		return fmt.Errorf("state: asset %s delegated to %s: %w", asset, h.Delegate, coreerrors.ErrInvalidDelegate)
	}
	h.Frozen = false
	return m.storeHolding(h)
}

// AssetRevoke clears the delegate of an unfrozen asset.
func (m *Manager) AssetRevoke(asset crypto.AssetID, delegate crypto.Address) error {
	h, err := m.loadHolding(asset)
	if err != nil {
		return err
	}
	if h.Frozen {
		return fmt.Errorf("state: asset %s is frozen: %w", asset, coreerrors.ErrCustodyViolation)
	}
	if h.Delegate != delegate {
		return fmt.Errorf("state: asset %s delegated to %s: %w", asset, h.Delegate, coreerrors.ErrInvalidDelegate)
	}
	h.Delegate = crypto.Address{}
	return m.storeHolding(h)
}

// AssetTransfer moves an unfrozen asset from one holder to another. The
// signer must be the owner or the delegate. A delegate signer keeps its
// delegation over the new owner; an owner signer clears it.
func (m *Manager) AssetTransfer(asset crypto.AssetID, from, to, signer crypto.Address) error {
	h, err := m.loadHolding(asset)
	if err != nil {
		return err
	}
	if h.Owner != from {
		return fmt.Errorf("state: asset %s held by %s: %w", asset, h.Owner, coreerrors.ErrCustodyViolation)
	}
	if h.Frozen {
		return fmt.Errorf("state: asset %s is frozen: %w", asset, coreerrors.ErrCustodyViolation)
	}
	if to.IsZero() {
		return fmt.Errorf("state: transfer of %s to zero address: %w", asset, coreerrors.ErrCustodyViolation)
	}
	if signer != h.Owner && signer != h.Delegate {
		return fmt.Errorf("state: %s may not move %s: %w", signer, asset, coreerrors.ErrUnauthorized)
	}
	if signer != h.Delegate {
		h.Delegate = crypto.Address{}
	}
	h.Owner = to
	return m.storeHolding(h)
}
