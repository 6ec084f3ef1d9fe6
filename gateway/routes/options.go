package routes

import (
	"context"
	"net/http"

	"github.com/onda-protocol/onda-program-library-sub000/crypto"
)

type optionTerms struct {
	Premium     uint64 `json:"premium"`
	StrikePrice uint64 `json:"strikePrice"`
	Expiry      int64  `json:"expiry"`
}

type sellIntoBidRequest struct {
	Buyer crypto.Address `json:"buyer"`
}

func (h *handlers) askOption(ctx context.Context, asset crypto.AssetID, caller crypto.Address, req optionTerms) (any, error) {
	return h.ledger.AskOption(ctx, asset, caller, req.Premium, req.StrikePrice, req.Expiry)
}

func (h *handlers) buyOption(ctx context.Context, asset crypto.AssetID, caller crypto.Address, _ struct{}) (any, error) {
	return h.ledger.BuyOption(ctx, asset, caller)
}

func (h *handlers) exerciseOption(ctx context.Context, asset crypto.AssetID, caller crypto.Address, _ struct{}) (any, error) {
	return h.ledger.ExerciseOption(ctx, asset, caller)
}

func (h *handlers) closeOption(ctx context.Context, asset crypto.AssetID, caller crypto.Address, _ struct{}) (any, error) {
	return nil, h.ledger.CloseOption(ctx, asset, caller)
}

func (h *handlers) bidOption(ctx context.Context, asset crypto.AssetID, caller crypto.Address, req optionTerms) (any, error) {
	return h.ledger.BidOption(ctx, asset, caller, req.Premium, req.StrikePrice, req.Expiry)
}

func (h *handlers) cancelOptionBid(ctx context.Context, asset crypto.AssetID, caller crypto.Address, _ struct{}) (any, error) {
	return nil, h.ledger.CancelOptionBid(ctx, asset, caller)
}

func (h *handlers) sellOptionIntoBid(ctx context.Context, asset crypto.AssetID, caller crypto.Address, req sellIntoBidRequest) (any, error) {
	return h.ledger.SellOptionIntoBid(ctx, asset, caller, req.Buyer)
}

func (h *handlers) optionView(ctx context.Context, asset crypto.AssetID, _ *http.Request) (any, error) {
	return h.ledger.Option(ctx, asset)
}

func (h *handlers) optionBids(ctx context.Context, asset crypto.AssetID, _ *http.Request) (any, error) {
	return h.ledger.OptionBids(ctx, asset)
}
