package loan

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/onda-protocol/onda-program-library-sub000/crypto"
)

// Status names a loan lifecycle state.
type Status string

const (
	StatusListed    Status = "listed"
	StatusActive    Status = "active"
	StatusDefaulted Status = "defaulted"
)

// Phase is the state-specific part of a loan. Exactly one of Listed, Active
// or Defaulted is stored, so a lender or start date cannot exist in a state
// that has none.
type Phase interface {
	Status() Status
}

// Listed is an ask waiting for a lender.
type Listed struct{}

// Active is a funded loan accruing interest from StartDate.
type Active struct {
	Lender    crypto.Address
	StartDate int64
}

// Defaulted is a loan whose collateral was repossessed by Lender.
type Defaulted struct {
	Lender crypto.Address
}

func (Listed) Status() Status    { return StatusListed }
func (Active) Status() Status    { return StatusActive }
func (Defaulted) Status() Status { return StatusDefaulted }

// Loan is a fixed-term loan collateralised by one asset.
type Loan struct {
	Asset         crypto.AssetID
	Borrower      crypto.Address
	Principal     uint64
	AnnualRateBps uint16
	CreatorFeeBps uint16
	Outstanding   uint64
	// Duration is the loan term in seconds, counted from the start date.
	Duration int64
	Phase    Phase
}

// Status returns the lifecycle state of the loan.
func (l *Loan) Status() Status {
	if l == nil || l.Phase == nil {
		return StatusListed
	}
	return l.Phase.Status()
}

// Lender returns the funding lender, if any.
func (l *Loan) Lender() (crypto.Address, bool) {
	switch p := l.Phase.(type) {
	case Active:
		return p.Lender, true
	case Defaulted:
		return p.Lender, true
	default:
		return crypto.Address{}, false
	}
}

// StartDate returns the funding time of an active loan.
func (l *Loan) StartDate() (int64, bool) {
	if p, ok := l.Phase.(Active); ok {
		return p.StartDate, true
	}
	return 0, false
}

// Clone returns a copy of the loan. Phases are values so a shallow copy is
// enough.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	return &clone
}

type loanView struct {
	Asset         crypto.AssetID  `json:"asset"`
	Status        Status          `json:"status"`
	Borrower      crypto.Address  `json:"borrower"`
	Lender        *crypto.Address `json:"lender,omitempty"`
	Principal     uint64          `json:"principal"`
	AnnualRateBps uint16          `json:"annualRateBps"`
	CreatorFeeBps uint16          `json:"creatorFeeBps"`
	Outstanding   uint64          `json:"outstanding"`
	Duration      int64           `json:"durationSeconds"`
	StartDate     *int64          `json:"startDate,omitempty"`
}

// MarshalJSON renders the loan as a flat object with optional fields omitted
// outside the states that carry them.
func (l *Loan) MarshalJSON() ([]byte, error) {
	view := loanView{
		Asset:         l.Asset,
		Status:        l.Status(),
		Borrower:      l.Borrower,
		Principal:     l.Principal,
		AnnualRateBps: l.AnnualRateBps,
		CreatorFeeBps: l.CreatorFeeBps,
		Outstanding:   l.Outstanding,
		Duration:      l.Duration,
	}
	if lender, ok := l.Lender(); ok {
		view.Lender = &lender
	}
	if start, ok := l.StartDate(); ok {
		view.StartDate = &start
	}
	return json.Marshal(view)
}

const (
	codeListed uint8 = iota
	codeActive
	codeDefaulted
)

type storedLoan struct {
	Asset         [32]byte
	Borrower      [20]byte
	Principal     uint64
	AnnualRateBps uint16
	CreatorFeeBps uint16
	Outstanding   uint64
	Duration      uint64
	Status        uint8
	Lender        [20]byte
	StartDate     uint64
}

// EncodeRLP implements rlp.Encoder.
func (l *Loan) EncodeRLP(w io.Writer) error {
	stored := storedLoan{
		Asset:         l.Asset,
		Borrower:      l.Borrower,
		Principal:     l.Principal,
		AnnualRateBps: l.AnnualRateBps,
		CreatorFeeBps: l.CreatorFeeBps,
		Outstanding:   l.Outstanding,
		Duration:      uint64(l.Duration),
	}
	switch p := l.Phase.(type) {
	case nil, Listed:
		stored.Status = codeListed
	case Active:
		stored.Status = codeActive
		stored.Lender = p.Lender
		stored.StartDate = uint64(p.StartDate)
	case Defaulted:
		stored.Status = codeDefaulted
		stored.Lender = p.Lender
	default:
		return fmt.Errorf("loan: unknown phase %T", p)
	}
	return rlp.Encode(w, stored)
}

// DecodeRLP implements rlp.Decoder.
func (l *Loan) DecodeRLP(s *rlp.Stream) error {
	var stored storedLoan
	if err := s.Decode(&stored); err != nil {
		return err
	}
	*l = Loan{
		Asset:         stored.Asset,
		Borrower:      stored.Borrower,
		Principal:     stored.Principal,
		AnnualRateBps: stored.AnnualRateBps,
		CreatorFeeBps: stored.CreatorFeeBps,
		Outstanding:   stored.Outstanding,
		Duration:      int64(stored.Duration),
	}
	switch stored.Status {
	case codeListed:
		l.Phase = Listed{}
	case codeActive:
		l.Phase = Active{Lender: stored.Lender, StartDate: int64(stored.StartDate)}
	case codeDefaulted:
		l.Phase = Defaulted{Lender: stored.Lender}
	default:
		return fmt.Errorf("loan: unknown status code %d", stored.Status)
	}
	return nil
}

// Offer is a lender's standing commitment to fund a loan against an asset.
// Principal sits in the offer vault until the offer is taken or cancelled.
type Offer struct {
	Asset         crypto.AssetID `json:"asset"`
	Lender        crypto.Address `json:"lender"`
	Principal     uint64         `json:"principal"`
	AnnualRateBps uint16         `json:"annualRateBps"`
	Duration      int64          `json:"durationSeconds"`
}

type storedOffer struct {
	Asset         [32]byte
	Lender        [20]byte
	Principal     uint64
	AnnualRateBps uint16
	Duration      uint64
}

// EncodeRLP implements rlp.Encoder.
func (o *Offer) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, storedOffer{
		Asset:         o.Asset,
		Lender:        o.Lender,
		Principal:     o.Principal,
		AnnualRateBps: o.AnnualRateBps,
		Duration:      uint64(o.Duration),
	})
}

// DecodeRLP implements rlp.Decoder.
func (o *Offer) DecodeRLP(s *rlp.Stream) error {
	var stored storedOffer
	if err := s.Decode(&stored); err != nil {
		return err
	}
	*o = Offer{
		Asset:         stored.Asset,
		Lender:        stored.Lender,
		Principal:     stored.Principal,
		AnnualRateBps: stored.AnnualRateBps,
		Duration:      int64(stored.Duration),
	}
	return nil
}

// OfferVault is the account holding the principal of lender's offer on asset.
func OfferVault(asset crypto.AssetID, lender crypto.Address) crypto.Address {
	return crypto.DeriveAddress([]byte("loan-offer"), asset[:], lender[:])
}

// Quote is the settlement a repayment at a given time would produce.
type Quote struct {
	Asset      crypto.AssetID `json:"asset"`
	At         int64          `json:"at"`
	Elapsed    int64          `json:"elapsedSeconds"`
	Interest   uint64         `json:"interest"`
	AmountDue  uint64         `json:"amountDue"`
	CreatorFee uint64         `json:"creatorFee"`
	Overdue    bool           `json:"overdue"`
}
