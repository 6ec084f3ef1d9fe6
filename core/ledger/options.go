package ledger

import (
	"context"

	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	"github.com/onda-protocol/onda-program-library-sub000/native/option"
)

// AskOption writes a call option on asset by seller.
func (l *Ledger) AskOption(ctx context.Context, asset crypto.AssetID, seller crypto.Address, premium, strike uint64, expiry int64) (*option.Option, error) {
	var out *option.Option
	err := l.apply(ctx, "ask_option", asset, func(s *session) error {
		var err error
		out, err = s.options.Ask(asset, seller, premium, strike, expiry)
		return err
	})
	return out, err
}

func (l *Ledger) BuyOption(ctx context.Context, asset crypto.AssetID, buyer crypto.Address) (*option.Option, error) {
	var out *option.Option
	err := l.apply(ctx, "buy_option", asset, func(s *session) error {
		var err error
		out, err = s.options.Buy(asset, buyer)
		return err
	})
	return out, err
}

// ExerciseOption pays the strike and moves the asset to the buyer.
func (l *Ledger) ExerciseOption(ctx context.Context, asset crypto.AssetID, buyer crypto.Address) (*option.Payment, error) {
	var out *option.Payment
	err := l.apply(ctx, "exercise_option", asset, func(s *session) error {
		var err error
		out, err = s.options.Exercise(asset, buyer)
		return err
	})
	return out, err
}

func (l *Ledger) CloseOption(ctx context.Context, asset crypto.AssetID, caller crypto.Address) error {
	return l.apply(ctx, "close_option", asset, func(s *session) error {
		return s.options.Close(asset, caller)
	})
}

// BidOption escrows premium from buyer as a standing bid on asset.
func (l *Ledger) BidOption(ctx context.Context, asset crypto.AssetID, buyer crypto.Address, premium, strike uint64, expiry int64) (*option.Bid, error) {
	var out *option.Bid
	err := l.apply(ctx, "bid_option", asset, func(s *session) error {
		var err error
		out, err = s.options.Bid(asset, buyer, premium, strike, expiry)
		return err
	})
	return out, err
}

func (l *Ledger) CancelOptionBid(ctx context.Context, asset crypto.AssetID, buyer crypto.Address) error {
	return l.apply(ctx, "cancel_option_bid", asset, func(s *session) error {
		return s.options.CancelBid(asset, buyer)
	})
}

func (l *Ledger) SellOptionIntoBid(ctx context.Context, asset crypto.AssetID, seller, buyer crypto.Address) (*option.Option, error) {
	var out *option.Option
	err := l.apply(ctx, "sell_option_into_bid", asset, func(s *session) error {
		var err error
		out, err = s.options.SellIntoBid(asset, seller, buyer)
		return err
	})
	return out, err
}

func (l *Ledger) Option(ctx context.Context, asset crypto.AssetID) (*option.Option, error) {
	var out *option.Option
	err := l.view(ctx, "option", asset, func(s *session) error {
		var err error
		out, err = s.options.Option(asset)
		return err
	})
	return out, err
}

func (l *Ledger) OptionBids(ctx context.Context, asset crypto.AssetID) ([]*option.Bid, error) {
	var out []*option.Bid
	err := l.view(ctx, "option_bids", asset, func(s *session) error {
		var err error
		out, err = s.options.Bids(asset)
		return err
	})
	return out, err
}
