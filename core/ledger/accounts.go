package ledger

import (
	"context"
	"fmt"
	"strconv"

	coreerrors "github.com/onda-protocol/onda-program-library-sub000/core/errors"
	"github.com/onda-protocol/onda-program-library-sub000/core/events"
	"github.com/onda-protocol/onda-program-library-sub000/core/types"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	"github.com/onda-protocol/onda-program-library-sub000/native/assets"
	"github.com/onda-protocol/onda-program-library-sub000/native/custody"
	"github.com/onda-protocol/onda-program-library-sub000/native/settlement"
)

// EventTypeDeposited is emitted when an operator credits an account.
const EventTypeDeposited = "account.deposited"

// RegisterAsset mints asset to owner and records its royalty table.
func (l *Ledger) RegisterAsset(ctx context.Context, asset crypto.AssetID, owner crypto.Address, creators []settlement.Creator, sellerFeeBps uint16) (*assets.Metadata, error) {
	var meta *assets.Metadata
	err := l.apply(ctx, "register_asset", asset, func(s *session) error {
		var err error
		meta, err = s.registry.Register(asset, owner, creators, sellerFeeBps)
		return err
	})
	return meta, err
}

// AssetMetadata returns the royalty table of asset.
func (l *Ledger) AssetMetadata(ctx context.Context, asset crypto.AssetID) (*assets.Metadata, error) {
	var meta *assets.Metadata
	err := l.view(ctx, "asset_metadata", asset, func(s *session) error {
		var err error
		meta, err = s.registry.Metadata(asset)
		return err
	})
	return meta, err
}

// Deposit credits amount to addr.
func (l *Ledger) Deposit(ctx context.Context, addr crypto.Address, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("ledger: deposit: %w", coreerrors.ErrInvalidAmount)
	}
	return l.apply(ctx, "deposit", crypto.AssetID{}, func(s *session) error {
		if err := s.state.Credit(addr, amount); err != nil {
			return err
		}
		s.sink.Emit(events.Wrap(types.NewEvent(EventTypeDeposited).
			With("account", addr.String()).
			With("amount", strconv.FormatUint(amount, 10))))
		return nil
	})
}

// Balance returns the committed balance of addr.
func (l *Ledger) Balance(ctx context.Context, addr crypto.Address) (uint64, error) {
	var balance uint64
	err := l.view(ctx, "balance", crypto.AssetID{}, func(s *session) error {
		var err error
		balance, err = s.state.Balance(addr)
		return err
	})
	return balance, err
}

// TransferAsset moves an unencumbered asset from owner to to.
func (l *Ledger) TransferAsset(ctx context.Context, asset crypto.AssetID, owner, to crypto.Address) error {
	return l.apply(ctx, "transfer_asset", asset, func(s *session) error {
		return s.custody.Transfer(asset, owner, to)
	})
}

// CustodyRecord returns the custody record of asset.
func (l *Ledger) CustodyRecord(ctx context.Context, asset crypto.AssetID) (*custody.Record, error) {
	var rec *custody.Record
	err := l.view(ctx, "custody_record", asset, func(s *session) error {
		found, ok, err := s.custody.Record(asset)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("ledger: custody record %s: %w", asset, coreerrors.ErrNotFound)
		}
		rec = found
		return nil
	})
	return rec, err
}

// Holding reports who holds asset and whether it is frozen.
func (l *Ledger) Holding(ctx context.Context, asset crypto.AssetID) (*custody.Holding, error) {
	var holding *custody.Holding
	err := l.view(ctx, "holding", asset, func(s *session) error {
		h, err := s.state.AssetHolding(asset)
		if err != nil {
			return err
		}
		if h == nil {
			return fmt.Errorf("ledger: holding %s: %w", asset, coreerrors.ErrNotFound)
		}
		holding = h
		return nil
	})
	return holding, err
}
