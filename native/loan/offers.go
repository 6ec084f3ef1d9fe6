package loan

import (
	"fmt"

	coreerrors "github.com/onda-protocol/onda-program-library-sub000/core/errors"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	"github.com/onda-protocol/onda-program-library-sub000/native/custody"
)

// Offer escrows principal from lender into an offer vault, committing to fund
// a loan on asset at the given terms.
func (e *Engine) Offer(asset crypto.AssetID, lender crypto.Address, principal uint64, rateBps uint16, duration int64) (*Offer, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	if err := validateTerms(principal, rateBps, duration); err != nil {
		return nil, err
	}
	if lender.IsZero() {
		return nil, fmt.Errorf("loan: lender required: %w", coreerrors.ErrUnauthorized)
	}
	if e.royalties != nil {
		if _, err := e.royalties.Metadata(asset); err != nil {
			return nil, err
		}
	}
	if _, ok, err := e.state.LoanOfferGet(asset, lender); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("loan: %s already has an offer on %s: %w", lender, asset, coreerrors.ErrInvalidState)
	}
	o := &Offer{Asset: asset, Lender: lender, Principal: principal, AnnualRateBps: rateBps, Duration: duration}
	if err := e.state.Transfer(lender, OfferVault(asset, lender), principal); err != nil {
		return nil, err
	}
	if err := e.state.LoanOfferPut(o); err != nil {
		return nil, err
	}
	e.emit(NewOfferPostedEvent(o))
	return o, nil
}

// CancelOffer refunds lender's offer vault and drops the offer.
func (e *Engine) CancelOffer(asset crypto.AssetID, lender crypto.Address) error {
	if err := e.ready(true); err != nil {
		return err
	}
	o, err := e.loadOffer(asset, lender)
	if err != nil {
		return err
	}
	if err := e.state.Transfer(OfferVault(asset, lender), lender, o.Principal); err != nil {
		return err
	}
	if err := e.state.LoanOfferDelete(asset, lender); err != nil {
		return err
	}
	e.emit(NewOfferCancelledEvent(o))
	return nil
}

// TakeOffer lets the asset owner accept lender's offer. The asset is frozen
// as collateral, the vault pays the principal to the borrower and the loan
// starts active. A listed ask of the same borrower is replaced by the
// offer's terms.
func (e *Engine) TakeOffer(asset crypto.AssetID, borrower, lender crypto.Address) (*Loan, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	o, err := e.loadOffer(asset, lender)
	if err != nil {
		return nil, err
	}
	if borrower == lender {
		return nil, fmt.Errorf("loan: lender cannot take own offer: %w", coreerrors.ErrUnauthorized)
	}
	existing, ok, err := e.state.LoanGet(asset)
	if err != nil {
		return nil, err
	}
	feeBps, err := e.creatorFeeBps(asset)
	if err != nil {
		return nil, err
	}
	switch {
	case !ok:
		if _, err := e.custody.Attach(asset, custody.KindLoan, borrower); err != nil {
			return nil, err
		}
	case existing.Status() == StatusListed && existing.Borrower == borrower:
		feeBps = existing.CreatorFeeBps
	default:
		return nil, fmt.Errorf("loan: %s already has a %s loan: %w", asset, existing.Status(), coreerrors.ErrInvalidState)
	}
	if err := e.state.Transfer(OfferVault(asset, lender), borrower, o.Principal); err != nil {
		return nil, err
	}
	if err := e.state.LoanOfferDelete(asset, lender); err != nil {
		return nil, err
	}
	l := &Loan{
		Asset:         asset,
		Borrower:      borrower,
		Principal:     o.Principal,
		AnnualRateBps: o.AnnualRateBps,
		CreatorFeeBps: feeBps,
		Outstanding:   o.Principal,
		Duration:      o.Duration,
		Phase:         Active{Lender: lender, StartDate: e.now()},
	}
	if err := e.state.LoanPut(l); err != nil {
		return nil, err
	}
	e.emit(NewOfferTakenEvent(o, borrower))
	e.emit(NewFundedEvent(l))
	return l.Clone(), nil
}

// Offers lists the standing offers on asset.
func (e *Engine) Offers(asset crypto.AssetID) ([]*Offer, error) {
	if err := e.ready(false); err != nil {
		return nil, err
	}
	return e.state.LoanOffers(asset)
}

func (e *Engine) loadOffer(asset crypto.AssetID, lender crypto.Address) (*Offer, error) {
	o, ok, err := e.state.LoanOfferGet(asset, lender)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("loan: no offer from %s on %s: %w", lender, asset, coreerrors.ErrNotFound)
	}
	return o, nil
}
