package ledger

import (
	"context"

	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	"github.com/onda-protocol/onda-program-library-sub000/native/rental"
)

// ListRental offers asset for rent by lender. A zero designated borrower
// leaves the rental open to anyone.
func (l *Ledger) ListRental(ctx context.Context, asset crypto.AssetID, lender crypto.Address, dailyRate uint64, ceilingExpiry int64, designated crypto.Address) (*rental.Rental, error) {
	var out *rental.Rental
	err := l.apply(ctx, "list_rental", asset, func(s *session) error {
		var err error
		out, err = s.rentals.List(asset, lender, dailyRate, ceilingExpiry, designated)
		return err
	})
	return out, err
}

func (l *Ledger) TakeRental(ctx context.Context, asset crypto.AssetID, borrower crypto.Address, days uint32) (*rental.Rental, error) {
	var out *rental.Rental
	err := l.apply(ctx, "take_rental", asset, func(s *session) error {
		var err error
		out, err = s.rentals.Take(asset, borrower, days)
		return err
	})
	return out, err
}

func (l *Ledger) ExtendRental(ctx context.Context, asset crypto.AssetID, borrower crypto.Address, days uint32) (*rental.Rental, error) {
	var out *rental.Rental
	err := l.apply(ctx, "extend_rental", asset, func(s *session) error {
		var err error
		out, err = s.rentals.Extend(asset, borrower, days)
		return err
	})
	return out, err
}

// RecoverRental returns the asset to the lender once the window expired.
func (l *Ledger) RecoverRental(ctx context.Context, asset crypto.AssetID, caller crypto.Address) (*rental.Settlement, error) {
	var out *rental.Settlement
	err := l.apply(ctx, "recover_rental", asset, func(s *session) error {
		var err error
		out, err = s.rentals.Recover(asset, caller)
		return err
	})
	return out, err
}

func (l *Ledger) WithdrawRentalEscrow(ctx context.Context, asset crypto.AssetID, lender crypto.Address) (*rental.Settlement, error) {
	var out *rental.Settlement
	err := l.apply(ctx, "withdraw_rental_escrow", asset, func(s *session) error {
		var err error
		out, err = s.rentals.WithdrawEscrow(asset, lender)
		return err
	})
	return out, err
}

func (l *Ledger) CloseRental(ctx context.Context, asset crypto.AssetID, lender crypto.Address) error {
	return l.apply(ctx, "close_rental", asset, func(s *session) error {
		return s.rentals.Close(asset, lender)
	})
}

func (l *Ledger) Rental(ctx context.Context, asset crypto.AssetID) (*rental.Rental, error) {
	var out *rental.Rental
	err := l.view(ctx, "rental", asset, func(s *session) error {
		var err error
		out, err = s.rentals.Rental(asset)
		return err
	})
	return out, err
}

// RentalEscrow splits the escrow at the supplied time. A zero at uses the
// ledger clock.
func (l *Ledger) RentalEscrow(ctx context.Context, asset crypto.AssetID, at int64) (*rental.Escrow, error) {
	var out *rental.Escrow
	err := l.view(ctx, "rental_escrow", asset, func(s *session) error {
		if at == 0 {
			at = s.now
		}
		var err error
		out, err = s.rentals.Escrow(asset, at)
		return err
	})
	return out, err
}
