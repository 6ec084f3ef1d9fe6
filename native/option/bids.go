package option

import (
	"fmt"

	coreerrors "github.com/onda-protocol/onda-program-library-sub000/core/errors"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	"github.com/onda-protocol/onda-program-library-sub000/native/custody"
)

// Bid escrows premium from buyer into a bid vault, offering to buy a call
// option on asset at strike until expiry.
func (e *Engine) Bid(asset crypto.AssetID, buyer crypto.Address, premium, strike uint64, expiry int64) (*Bid, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	if buyer.IsZero() {
		return nil, fmt.Errorf("option: buyer required: %w", coreerrors.ErrUnauthorized)
	}
	if expiry <= e.now() {
		return nil, fmt.Errorf("option: expiry %d is not in the future: %w", expiry, coreerrors.ErrInvalidExpiry)
	}
	if _, err := e.metadata(asset); err != nil {
		return nil, err
	}
	if _, ok, err := e.state.OptionBidGet(asset, buyer); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("option: %s already bids on %s: %w", buyer, asset, coreerrors.ErrInvalidState)
	}
	b := &Bid{Asset: asset, Buyer: buyer, Premium: premium, StrikePrice: strike, Expiry: expiry}
	if err := e.state.Transfer(buyer, BidVault(asset, buyer), premium); err != nil {
		return nil, err
	}
	if err := e.state.OptionBidPut(b); err != nil {
		return nil, err
	}
	e.emit(NewBidPostedEvent(b))
	return b, nil
}

// CancelBid refunds buyer's bid vault and drops the bid.
func (e *Engine) CancelBid(asset crypto.AssetID, buyer crypto.Address) error {
	if err := e.ready(true); err != nil {
		return err
	}
	b, err := e.loadBid(asset, buyer)
	if err != nil {
		return err
	}
	if err := e.state.Transfer(BidVault(asset, buyer), buyer, b.Premium); err != nil {
		return err
	}
	if err := e.state.OptionBidDelete(asset, buyer); err != nil {
		return err
	}
	e.emit(NewBidCancelledEvent(b))
	return nil
}

// SellIntoBid writes an option straight into buyer's bid. The asset is
// frozen under the seller and the option starts active, with the premium
// paid out of the bid vault. A listed ask of the same seller is replaced.
func (e *Engine) SellIntoBid(asset crypto.AssetID, seller, buyer crypto.Address) (*Option, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	b, err := e.loadBid(asset, buyer)
	if err != nil {
		return nil, err
	}
	if seller == buyer {
		return nil, fmt.Errorf("option: buyer cannot fill own bid: %w", coreerrors.ErrUnauthorized)
	}
	if e.now() > b.Expiry {
		return nil, fmt.Errorf("option: bid expired at %d: %w", b.Expiry, coreerrors.ErrOptionExpired)
	}
	existing, ok, err := e.state.OptionGet(asset)
	if err != nil {
		return nil, err
	}
	switch {
	case !ok:
		if _, err := e.custody.Attach(asset, custody.KindOption, seller); err != nil {
			return nil, err
		}
	case existing.Status() == StatusListed && existing.Seller == seller:
	default:
		return nil, fmt.Errorf("option: %s already has a %s option: %w", asset, existing.Status(), coreerrors.ErrInvalidState)
	}
	vault := BidVault(asset, buyer)
	payment, err := e.pay(asset, vault, seller, b.Premium)
	if err != nil {
		return nil, err
	}
	// Royalty dust left in the vault belongs to the buyer.
	if dust := b.Premium - payment.ToSeller - payment.Royalty; dust > 0 {
		if err := e.state.Transfer(vault, buyer, dust); err != nil {
			return nil, err
		}
	}
	if err := e.state.OptionBidDelete(asset, buyer); err != nil {
		return nil, err
	}
	o := &Option{
		Asset:       asset,
		Seller:      seller,
		Premium:     b.Premium,
		StrikePrice: b.StrikePrice,
		Expiry:      b.Expiry,
		Phase:       Active{Buyer: buyer},
	}
	if err := e.state.OptionPut(o); err != nil {
		return nil, err
	}
	e.emit(NewBidFilledEvent(b, seller))
	e.emit(NewBoughtEvent(o, payment))
	return o.Clone(), nil
}

// Bids lists the standing bids on asset.
func (e *Engine) Bids(asset crypto.AssetID) ([]*Bid, error) {
	if err := e.ready(false); err != nil {
		return nil, err
	}
	return e.state.OptionBids(asset)
}

func (e *Engine) loadBid(asset crypto.AssetID, buyer crypto.Address) (*Bid, error) {
	b, ok, err := e.state.OptionBidGet(asset, buyer)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("option: no bid from %s on %s: %w", buyer, asset, coreerrors.ErrNotFound)
	}
	return b, nil
}
