package option

import (
	"strconv"

	"github.com/onda-protocol/onda-program-library-sub000/core/types"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
)

const (
	EventTypeListed       = "option.listed"
	EventTypeBought       = "option.bought"
	EventTypeExercised    = "option.exercised"
	EventTypeClosed       = "option.closed"
	EventTypeBidPosted    = "option.bid.posted"
	EventTypeBidCancelled = "option.bid.cancelled"
	EventTypeBidFilled    = "option.bid.filled"
)

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

func newOptionEvent(eventType string, o *Option) *types.Event {
	evt := types.NewEvent(eventType).
		With("asset", o.Asset.String()).
		With("seller", o.Seller.String()).
		With("status", string(o.Status())).
		With("premium", u64(o.Premium)).
		With("strikePrice", u64(o.StrikePrice)).
		With("expiry", strconv.FormatInt(o.Expiry, 10))
	if buyer, ok := o.Buyer(); ok {
		evt.With("buyer", buyer.String())
	}
	return evt
}

func withPayment(evt *types.Event, p *Payment) *types.Event {
	if p == nil {
		return evt
	}
	return evt.
		With("paid", u64(p.Gross)).
		With("toSeller", u64(p.ToSeller)).
		With("royalty", u64(p.Royalty))
}

func NewListedEvent(o *Option) *types.Event { return newOptionEvent(EventTypeListed, o) }

// NewBoughtEvent carries the premium split of a purchase.
func NewBoughtEvent(o *Option, p *Payment) *types.Event {
	return withPayment(newOptionEvent(EventTypeBought, o), p)
}

// NewExercisedEvent carries the strike split of an exercise.
func NewExercisedEvent(o *Option, p *Payment) *types.Event {
	return withPayment(newOptionEvent(EventTypeExercised, o), p)
}

func NewClosedEvent(o *Option, caller crypto.Address) *types.Event {
	return newOptionEvent(EventTypeClosed, o).With("caller", caller.String())
}

func newBidEvent(eventType string, b *Bid) *types.Event {
	return types.NewEvent(eventType).
		With("asset", b.Asset.String()).
		With("buyer", b.Buyer.String()).
		With("premium", u64(b.Premium)).
		With("strikePrice", u64(b.StrikePrice)).
		With("expiry", strconv.FormatInt(b.Expiry, 10))
}

func NewBidPostedEvent(b *Bid) *types.Event { return newBidEvent(EventTypeBidPosted, b) }

func NewBidCancelledEvent(b *Bid) *types.Event { return newBidEvent(EventTypeBidCancelled, b) }

func NewBidFilledEvent(b *Bid, seller crypto.Address) *types.Event {
	return newBidEvent(EventTypeBidFilled, b).With("seller", seller.String())
}
