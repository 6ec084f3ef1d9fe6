package routes

import (
	"context"
	"net/http"

	"github.com/onda-protocol/onda-program-library-sub000/crypto"
)

type loanTerms struct {
	Principal     uint64 `json:"principal"`
	AnnualRateBps uint16 `json:"annualRateBps"`
	Duration      int64  `json:"durationSeconds"`
}

type takeOfferRequest struct {
	Lender crypto.Address `json:"lender"`
}

func (h *handlers) askLoan(ctx context.Context, asset crypto.AssetID, caller crypto.Address, req loanTerms) (any, error) {
	return h.ledger.AskLoan(ctx, asset, caller, req.Principal, req.AnnualRateBps, req.Duration)
}

func (h *handlers) fundLoan(ctx context.Context, asset crypto.AssetID, caller crypto.Address, _ struct{}) (any, error) {
	return h.ledger.FundLoan(ctx, asset, caller)
}

func (h *handlers) repayLoan(ctx context.Context, asset crypto.AssetID, caller crypto.Address, _ struct{}) (any, error) {
	return h.ledger.RepayLoan(ctx, asset, caller)
}

func (h *handlers) repossessLoan(ctx context.Context, asset crypto.AssetID, caller crypto.Address, _ struct{}) (any, error) {
	return h.ledger.RepossessLoan(ctx, asset, caller)
}

func (h *handlers) closeLoan(ctx context.Context, asset crypto.AssetID, caller crypto.Address, _ struct{}) (any, error) {
	return nil, h.ledger.CloseLoan(ctx, asset, caller)
}

func (h *handlers) offerLoan(ctx context.Context, asset crypto.AssetID, caller crypto.Address, req loanTerms) (any, error) {
	return h.ledger.OfferLoan(ctx, asset, caller, req.Principal, req.AnnualRateBps, req.Duration)
}

func (h *handlers) cancelLoanOffer(ctx context.Context, asset crypto.AssetID, caller crypto.Address, _ struct{}) (any, error) {
	return nil, h.ledger.CancelLoanOffer(ctx, asset, caller)
}

func (h *handlers) takeLoanOffer(ctx context.Context, asset crypto.AssetID, caller crypto.Address, req takeOfferRequest) (any, error) {
	return h.ledger.TakeLoanOffer(ctx, asset, caller, req.Lender)
}

func (h *handlers) loanView(ctx context.Context, asset crypto.AssetID, _ *http.Request) (any, error) {
	return h.ledger.Loan(ctx, asset)
}

// loanQuote prices repayment at ?at=, or now when absent.
func (h *handlers) loanQuote(ctx context.Context, asset crypto.AssetID, r *http.Request) (any, error) {
	at, err := intQuery(r, "at")
	if err != nil {
		return nil, badRequest{err}
	}
	return h.ledger.LoanQuote(ctx, asset, at)
}

func (h *handlers) loanOffers(ctx context.Context, asset crypto.AssetID, _ *http.Request) (any, error) {
	return h.ledger.LoanOffers(ctx, asset)
}
