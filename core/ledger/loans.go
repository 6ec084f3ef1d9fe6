package ledger

import (
	"context"

	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	"github.com/onda-protocol/onda-program-library-sub000/native/loan"
)

// AskLoan lists asset as collateral for a loan request by borrower.
func (l *Ledger) AskLoan(ctx context.Context, asset crypto.AssetID, borrower crypto.Address, principal uint64, rateBps uint16, duration int64) (*loan.Loan, error) {
	var out *loan.Loan
	err := l.apply(ctx, "ask_loan", asset, func(s *session) error {
		var err error
		out, err = s.loans.Ask(asset, borrower, principal, rateBps, duration)
		return err
	})
	return out, err
}

func (l *Ledger) FundLoan(ctx context.Context, asset crypto.AssetID, lender crypto.Address) (*loan.Loan, error) {
	var out *loan.Loan
	err := l.apply(ctx, "fund_loan", asset, func(s *session) error {
		var err error
		out, err = s.loans.Fund(asset, lender)
		return err
	})
	return out, err
}

// RepayLoan settles the loan and returns the amounts paid.
func (l *Ledger) RepayLoan(ctx context.Context, asset crypto.AssetID, borrower crypto.Address) (*loan.Quote, error) {
	var out *loan.Quote
	err := l.apply(ctx, "repay_loan", asset, func(s *session) error {
		var err error
		out, err = s.loans.Repay(asset, borrower)
		return err
	})
	return out, err
}

func (l *Ledger) RepossessLoan(ctx context.Context, asset crypto.AssetID, lender crypto.Address) (*loan.Loan, error) {
	var out *loan.Loan
	err := l.apply(ctx, "repossess_loan", asset, func(s *session) error {
		var err error
		out, err = s.loans.Repossess(asset, lender)
		return err
	})
	return out, err
}

func (l *Ledger) CloseLoan(ctx context.Context, asset crypto.AssetID, caller crypto.Address) error {
	return l.apply(ctx, "close_loan", asset, func(s *session) error {
		return s.loans.Close(asset, caller)
	})
}

// OfferLoan escrows principal from lender as a standing offer on asset.
func (l *Ledger) OfferLoan(ctx context.Context, asset crypto.AssetID, lender crypto.Address, principal uint64, rateBps uint16, duration int64) (*loan.Offer, error) {
	var out *loan.Offer
	err := l.apply(ctx, "offer_loan", asset, func(s *session) error {
		var err error
		out, err = s.loans.Offer(asset, lender, principal, rateBps, duration)
		return err
	})
	return out, err
}

func (l *Ledger) CancelLoanOffer(ctx context.Context, asset crypto.AssetID, lender crypto.Address) error {
	return l.apply(ctx, "cancel_loan_offer", asset, func(s *session) error {
		return s.loans.CancelOffer(asset, lender)
	})
}

func (l *Ledger) TakeLoanOffer(ctx context.Context, asset crypto.AssetID, borrower, lender crypto.Address) (*loan.Loan, error) {
	var out *loan.Loan
	err := l.apply(ctx, "take_loan_offer", asset, func(s *session) error {
		var err error
		out, err = s.loans.TakeOffer(asset, borrower, lender)
		return err
	})
	return out, err
}

// LoanQuote prices repayment at the supplied time. A zero at uses the
// ledger clock.
func (l *Ledger) LoanQuote(ctx context.Context, asset crypto.AssetID, at int64) (*loan.Quote, error) {
	var out *loan.Quote
	err := l.view(ctx, "loan_quote", asset, func(s *session) error {
		if at == 0 {
			at = s.now
		}
		var err error
		out, err = s.loans.Quote(asset, at)
		return err
	})
	return out, err
}

func (l *Ledger) Loan(ctx context.Context, asset crypto.AssetID) (*loan.Loan, error) {
	var out *loan.Loan
	err := l.view(ctx, "loan", asset, func(s *session) error {
		var err error
		out, err = s.loans.Loan(asset)
		return err
	})
	return out, err
}

func (l *Ledger) LoanOffers(ctx context.Context, asset crypto.AssetID) ([]*loan.Offer, error) {
	var out []*loan.Offer
	err := l.view(ctx, "loan_offers", asset, func(s *session) error {
		var err error
		out, err = s.loans.Offers(asset)
		return err
	})
	return out, err
}
