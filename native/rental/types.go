package rental

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	"github.com/onda-protocol/onda-program-library-sub000/native/settlement"
)

// Status names a rental lifecycle state.
type Status string

const (
	StatusListed Status = "listed"
	StatusRented Status = "rented"
)

// Phase is the state-specific part of a rental.
type Phase interface {
	Status() Status
}

type Listed struct{}

// Rented is one active rental window. Checkpoint is the time up to which
// rent has already been released to the lender; it starts at Start.
type Rented struct {
	Borrower   crypto.Address
	Start      int64
	Expiry     int64
	Checkpoint int64
}

func (Listed) Status() Status { return StatusListed }
func (Rented) Status() Status { return StatusRented }

// Rental is an asset offered for timed use at a daily rate.
type Rental struct {
	Asset  crypto.AssetID
	Lender crypto.Address
	// Designated restricts who may take the rental. Zero means anyone.
	Designated    crypto.Address
	DailyRate     uint64
	CreatorFeeBps uint16
	// CeilingExpiry bounds every rental window.
	CeilingExpiry int64
	EscrowBalance uint64
	Phase         Phase
}

func (r *Rental) Status() Status {
	if r == nil || r.Phase == nil {
		return StatusListed
	}
	return r.Phase.Status()
}

// Window returns the active rental window, if rented.
func (r *Rental) Window() (Rented, bool) {
	w, ok := r.Phase.(Rented)
	return w, ok
}

func (r *Rental) Clone() *Rental {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// SplitAt reports how much of the escrow balance is earned by the lender at
// now and how much remains unearned.
func (r *Rental) SplitAt(now int64) (earned, unearned uint64) {
	w, ok := r.Window()
	if !ok {
		return r.EscrowBalance, 0
	}
	return settlement.SplitEscrow(r.EscrowBalance, w.Checkpoint, w.Expiry, now)
}

type rentalView struct {
	Asset         crypto.AssetID  `json:"asset"`
	Status        Status          `json:"status"`
	Lender        crypto.Address  `json:"lender"`
	Designated    *crypto.Address `json:"designatedBorrower,omitempty"`
	Borrower      *crypto.Address `json:"borrower,omitempty"`
	DailyRate     uint64          `json:"dailyRate"`
	CreatorFeeBps uint16          `json:"creatorFeeBps"`
	CeilingExpiry int64           `json:"ceilingExpiry"`
	EscrowBalance uint64          `json:"escrowBalance"`
	CurrentStart  *int64          `json:"currentStart,omitempty"`
	CurrentExpiry *int64          `json:"currentExpiry,omitempty"`
}

func (r *Rental) MarshalJSON() ([]byte, error) {
	view := rentalView{
		Asset:         r.Asset,
		Status:        r.Status(),
		Lender:        r.Lender,
		DailyRate:     r.DailyRate,
		CreatorFeeBps: r.CreatorFeeBps,
		CeilingExpiry: r.CeilingExpiry,
		EscrowBalance: r.EscrowBalance,
	}
	if !r.Designated.IsZero() {
		designated := r.Designated
		view.Designated = &designated
	}
	if w, ok := r.Window(); ok {
		view.Borrower = &w.Borrower
		view.CurrentStart = &w.Start
		view.CurrentExpiry = &w.Expiry
	}
	return json.Marshal(view)
}

const (
	codeListed uint8 = iota
	codeRented
)

type storedRental struct {
	Asset         [32]byte
	Lender        [20]byte
	Designated    [20]byte
	DailyRate     uint64
	CreatorFeeBps uint16
	CeilingExpiry uint64
	EscrowBalance uint64
	Status        uint8
	Borrower      [20]byte
	Start         uint64
	Expiry        uint64
	Checkpoint    uint64
}

// EncodeRLP implements rlp.Encoder.
func (r *Rental) EncodeRLP(w io.Writer) error {
	stored := storedRental{
		Asset:         r.Asset,
		Lender:        r.Lender,
		Designated:    r.Designated,
		DailyRate:     r.DailyRate,
		CreatorFeeBps: r.CreatorFeeBps,
		CeilingExpiry: uint64(r.CeilingExpiry),
		EscrowBalance: r.EscrowBalance,
	}
	switch p := r.Phase.(type) {
	case nil, Listed:
		stored.Status = codeListed
	case Rented:
		stored.Status = codeRented
		stored.Borrower = p.Borrower
		stored.Start = uint64(p.Start)
		stored.Expiry = uint64(p.Expiry)
		stored.Checkpoint = uint64(p.Checkpoint)
	default:
		return fmt.Errorf("rental: unknown phase %T", p)
	}
	return rlp.Encode(w, stored)
}

// DecodeRLP implements rlp.Decoder.
func (r *Rental) DecodeRLP(s *rlp.Stream) error {
	var stored storedRental
	if err := s.Decode(&stored); err != nil {
		return err
	}
	*r = Rental{
		Asset:         stored.Asset,
		Lender:        stored.Lender,
		Designated:    stored.Designated,
		DailyRate:     stored.DailyRate,
		CreatorFeeBps: stored.CreatorFeeBps,
		CeilingExpiry: int64(stored.CeilingExpiry),
		EscrowBalance: stored.EscrowBalance,
	}
	switch stored.Status {
	case codeListed:
		r.Phase = Listed{}
	case codeRented:
		r.Phase = Rented{
			Borrower:   stored.Borrower,
			Start:      int64(stored.Start),
			Expiry:     int64(stored.Expiry),
			Checkpoint: int64(stored.Checkpoint),
		}
	default:
		return fmt.Errorf("rental: unknown status code %d", stored.Status)
	}
	return nil
}

// EscrowVault is the account holding the prepaid rent of asset's rental.
func EscrowVault(asset crypto.AssetID) crypto.Address {
	return crypto.DeriveAddress([]byte("rental-escrow"), asset[:])
}

// Escrow is the earned / unearned split of a rental's escrow at a point in
// time.
type Escrow struct {
	Asset    crypto.AssetID `json:"asset"`
	At       int64          `json:"at"`
	Balance  uint64         `json:"balance"`
	Earned   uint64         `json:"earned"`
	Unearned uint64         `json:"unearned"`
}
