package custody

import (
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/onda-protocol/onda-program-library-sub000/crypto"
)

// Kind names one instrument type that can claim an asset.
type Kind uint8

const (
	KindLoan Kind = iota + 1
	KindOption
	KindRental
)

func (k Kind) String() string {
	switch k {
	case KindLoan:
		return "loan"
	case KindOption:
		return "option"
	case KindRental:
		return "rental"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is a known instrument kind.
func (k Kind) Valid() bool {
	switch k {
	case KindLoan, KindOption, KindRental:
		return true
	default:
		return false
	}
}

// Composition lists which instrument kinds currently claim an asset.
type Composition struct {
	Loan   bool `json:"loan"`
	Option bool `json:"option"`
	Rental bool `json:"rental"`
}

// Any reports whether at least one flag is set.
func (c Composition) Any() bool { return c.Loan || c.Option || c.Rental }

// Has reports whether the flag for k is set.
func (c Composition) Has(k Kind) bool {
	switch k {
	case KindLoan:
		return c.Loan
	case KindOption:
		return c.Option
	case KindRental:
		return c.Rental
	default:
		return false
	}
}

// With returns a copy with the flag for k set to v.
func (c Composition) With(k Kind, v bool) Composition {
	switch k {
	case KindLoan:
		c.Loan = v
	case KindOption:
		c.Option = v
	case KindRental:
		c.Rental = v
	}
	return c
}

func (c Composition) String() string {
	parts := make([]string, 0, 3)
	for _, k := range []Kind{KindLoan, KindOption, KindRental} {
		if c.Has(k) {
			parts = append(parts, k.String())
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

func (c Composition) bits() uint8 {
	var b uint8
	if c.Loan {
		b |= 1
	}
	if c.Option {
		b |= 2
	}
	if c.Rental {
		b |= 4
	}
	return b
}

func compositionFromBits(b uint8) Composition {
	return Composition{Loan: b&1 != 0, Option: b&2 != 0, Rental: b&4 != 0}
}

// compatible reports whether k may join the existing composition. A loan
// and a call option never share an asset: exercising the option would move
// collateral out from under the loan.
func (c Composition) compatible(k Kind) bool {
	switch k {
	case KindLoan:
		return !c.Option
	case KindOption:
		return !c.Loan
	default:
		return true
	}
}

// Record is the custody record kept for every encumbered asset.
type Record struct {
	Asset crypto.AssetID `json:"asset"`
	// Authority is the identity allowed to request release. It rotates when
	// the asset changes hands (repossession, exercise, rental window).
	Authority crypto.Address `json:"authority"`
	// Issuer is the identity whose instruments claim the asset.
	Issuer      crypto.Address `json:"issuer"`
	Composition Composition    `json:"composition"`
}

// Clone returns a copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// HasAuthority reports whether a controlling authority is recorded.
func (r *Record) HasAuthority() bool { return r != nil && !r.Authority.IsZero() }

// LentOut reports whether the asset currently sits with a rental borrower.
func (r *Record) LentOut() bool {
	return r != nil && r.Composition.Rental && r.Authority != r.Issuer
}

type storedRecord struct {
	Asset       [32]byte
	Authority   [20]byte
	Issuer      [20]byte
	Composition uint8
}

// EncodeRLP implements rlp.Encoder.
func (r *Record) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, storedRecord{
		Asset:       r.Asset,
		Authority:   r.Authority,
		Issuer:      r.Issuer,
		Composition: r.Composition.bits(),
	})
}

// DecodeRLP implements rlp.Decoder.
func (r *Record) DecodeRLP(s *rlp.Stream) error {
	var stored storedRecord
	if err := s.Decode(&stored); err != nil {
		return err
	}
	r.Asset = stored.Asset
	r.Authority = stored.Authority
	r.Issuer = stored.Issuer
	r.Composition = compositionFromBits(stored.Composition)
	return nil
}

// Holding is the custody provider's view of one asset: its owner account, the
// delegate allowed to act on it and whether it is frozen.
type Holding struct {
	Asset    crypto.AssetID `json:"asset"`
	Owner    crypto.Address `json:"owner"`
	Delegate crypto.Address `json:"delegate"`
	Frozen   bool           `json:"frozen"`
}

type storedHolding struct {
	Owner    [20]byte
	Delegate [20]byte
	Frozen   bool
}

// EncodeRLP implements rlp.Encoder.
func (h *Holding) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, storedHolding{Owner: h.Owner, Delegate: h.Delegate, Frozen: h.Frozen})
}

// DecodeRLP implements rlp.Decoder. The asset id is the storage key and is
// restored by the caller.
func (h *Holding) DecodeRLP(s *rlp.Stream) error {
	var stored storedHolding
	if err := s.Decode(&stored); err != nil {
		return err
	}
	h.Owner = stored.Owner
	h.Delegate = stored.Delegate
	h.Frozen = stored.Frozen
	return nil
}
