package state

import (
	"fmt"

	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	"github.com/onda-protocol/onda-program-library-sub000/native/loan"
	"github.com/onda-protocol/onda-program-library-sub000/native/option"
	"github.com/onda-protocol/onda-program-library-sub000/native/rental"
)

// LoanGet loads the loan collateralised by asset.
func (m *Manager) LoanGet(asset crypto.AssetID) (*loan.Loan, bool, error) {
	l := new(loan.Loan)
	ok, err := m.KVGet(loanKey(asset), l)
	if err != nil || !ok {
		return nil, false, err
	}
	return l, true, nil
}

func (m *Manager) LoanPut(l *loan.Loan) error {
	if l == nil {
		return fmt.Errorf("state: nil loan")
	}
	return m.KVPut(loanKey(l.Asset), l)
}

func (m *Manager) LoanDelete(asset crypto.AssetID) error {
	return m.KVDelete(loanKey(asset))
}

// LoanOfferGet loads lender's standing offer on asset.
func (m *Manager) LoanOfferGet(asset crypto.AssetID, lender crypto.Address) (*loan.Offer, bool, error) {
	o := new(loan.Offer)
	ok, err := m.KVGet(loanOfferKey(asset, lender), o)
	if err != nil || !ok {
		return nil, false, err
	}
	return o, true, nil
}

// LoanOfferPut stores an offer and indexes it under its asset.
func (m *Manager) LoanOfferPut(o *loan.Offer) error {
	if o == nil {
		return fmt.Errorf("state: nil loan offer")
	}
	if err := m.KVPut(loanOfferKey(o.Asset, o.Lender), o); err != nil {
		return err
	}
	return m.KVAppend(loanOfferIndexKey(o.Asset), o.Lender.Bytes())
}

func (m *Manager) LoanOfferDelete(asset crypto.AssetID, lender crypto.Address) error {
	if err := m.KVDelete(loanOfferKey(asset, lender)); err != nil {
		return err
	}
	return m.KVRemove(loanOfferIndexKey(asset), lender.Bytes())
}

// LoanOffers lists the standing offers on asset in posting order.
func (m *Manager) LoanOffers(asset crypto.AssetID) ([]*loan.Offer, error) {
	lenders, err := m.indexed(loanOfferIndexKey(asset))
	if err != nil {
		return nil, err
	}
	offers := make([]*loan.Offer, 0, len(lenders))
	for _, lender := range lenders {
		o, ok, err := m.LoanOfferGet(asset, lender)
		if err != nil {
			return nil, err
		}
		if ok {
			offers = append(offers, o)
		}
	}
	return offers, nil
}

func (m *Manager) OptionGet(asset crypto.AssetID) (*option.Option, bool, error) {
	o := new(option.Option)
	ok, err := m.KVGet(optionKey(asset), o)
	if err != nil || !ok {
		return nil, false, err
	}
	return o, true, nil
}

func (m *Manager) OptionPut(o *option.Option) error {
	if o == nil {
		return fmt.Errorf("state: nil option")
	}
	return m.KVPut(optionKey(o.Asset), o)
}

func (m *Manager) OptionDelete(asset crypto.AssetID) error {
	return m.KVDelete(optionKey(asset))
}

func (m *Manager) OptionBidGet(asset crypto.AssetID, buyer crypto.Address) (*option.Bid, bool, error) {
	b := new(option.Bid)
	ok, err := m.KVGet(optionBidKey(asset, buyer), b)
	if err != nil || !ok {
		return nil, false, err
	}
	return b, true, nil
}

// OptionBidPut stores a bid and indexes it under its asset.
func (m *Manager) OptionBidPut(b *option.Bid) error {
	if b == nil {
		return fmt.Errorf("state: nil option bid")
	}
	if err := m.KVPut(optionBidKey(b.Asset, b.Buyer), b); err != nil {
		return err
	}
	return m.KVAppend(optionBidIndexKey(b.Asset), b.Buyer.Bytes())
}

func (m *Manager) OptionBidDelete(asset crypto.AssetID, buyer crypto.Address) error {
	if err := m.KVDelete(optionBidKey(asset, buyer)); err != nil {
		return err
	}
	return m.KVRemove(optionBidIndexKey(asset), buyer.Bytes())
}

// OptionBids lists the standing bids on asset in posting order.
func (m *Manager) OptionBids(asset crypto.AssetID) ([]*option.Bid, error) {
	buyers, err := m.indexed(optionBidIndexKey(asset))
	if err != nil {
		return nil, err
	}
	bids := make([]*option.Bid, 0, len(buyers))
	for _, buyer := range buyers {
		b, ok, err := m.OptionBidGet(asset, buyer)
		if err != nil {
			return nil, err
		}
		if ok {
			bids = append(bids, b)
		}
	}
	return bids, nil
}

func (m *Manager) RentalGet(asset crypto.AssetID) (*rental.Rental, bool, error) {
	r := new(rental.Rental)
	ok, err := m.KVGet(rentalKey(asset), r)
	if err != nil || !ok {
		return nil, false, err
	}
	return r, true, nil
}

func (m *Manager) RentalPut(r *rental.Rental) error {
	if r == nil {
		return fmt.Errorf("state: nil rental")
	}
	return m.KVPut(rentalKey(r.Asset), r)
}

func (m *Manager) RentalDelete(asset crypto.AssetID) error {
	return m.KVDelete(rentalKey(asset))
}

func (m *Manager) indexed(key []byte) ([]crypto.Address, error) {
	var raw [][]byte
	if err := m.KVGetList(key, &raw); err != nil {
		return nil, err
	}
	addrs := make([]crypto.Address, 0, len(raw))
	for _, b := range raw {
		if len(b) != len(crypto.Address{}) {
			return nil, fmt.Errorf("state: malformed index entry %x", b)
		}
		addrs = append(addrs, crypto.BytesToAddress(b))
	}
	return addrs, nil
}
