package routes

import (
	"context"
	"net/http"

	"github.com/onda-protocol/onda-program-library-sub000/crypto"
)

type rentalListing struct {
	DailyRate     uint64 `json:"dailyRate"`
	CeilingExpiry int64  `json:"ceilingExpiry"`
	// Designated restricts the renter. Omitted means anyone.
	Designated crypto.Address `json:"designated"`
}

type rentalDays struct {
	Days uint32 `json:"days"`
}

func (h *handlers) listRental(ctx context.Context, asset crypto.AssetID, caller crypto.Address, req rentalListing) (any, error) {
	return h.ledger.ListRental(ctx, asset, caller, req.DailyRate, req.CeilingExpiry, req.Designated)
}

func (h *handlers) takeRental(ctx context.Context, asset crypto.AssetID, caller crypto.Address, req rentalDays) (any, error) {
	return h.ledger.TakeRental(ctx, asset, caller, req.Days)
}

func (h *handlers) extendRental(ctx context.Context, asset crypto.AssetID, caller crypto.Address, req rentalDays) (any, error) {
	return h.ledger.ExtendRental(ctx, asset, caller, req.Days)
}

func (h *handlers) recoverRental(ctx context.Context, asset crypto.AssetID, caller crypto.Address, _ struct{}) (any, error) {
	return h.ledger.RecoverRental(ctx, asset, caller)
}

func (h *handlers) withdrawRentalEscrow(ctx context.Context, asset crypto.AssetID, caller crypto.Address, _ struct{}) (any, error) {
	return h.ledger.WithdrawRentalEscrow(ctx, asset, caller)
}

func (h *handlers) closeRental(ctx context.Context, asset crypto.AssetID, caller crypto.Address, _ struct{}) (any, error) {
	return nil, h.ledger.CloseRental(ctx, asset, caller)
}

func (h *handlers) rentalView(ctx context.Context, asset crypto.AssetID, _ *http.Request) (any, error) {
	return h.ledger.Rental(ctx, asset)
}

func (h *handlers) rentalEscrow(ctx context.Context, asset crypto.AssetID, r *http.Request) (any, error) {
	at, err := intQuery(r, "at")
	if err != nil {
		return nil, badRequest{err}
	}
	return h.ledger.RentalEscrow(ctx, asset, at)
}
