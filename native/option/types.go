package option

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/onda-protocol/onda-program-library-sub000/crypto"
)

// Status names a call option lifecycle state.
type Status string

const (
	StatusListed    Status = "listed"
	StatusActive    Status = "active"
	StatusExercised Status = "exercised"
)

// Phase is the state-specific part of an option.
type Phase interface {
	Status() Status
}

type Listed struct{}

// Active is a purchased option that Buyer may exercise until expiry.
type Active struct {
	Buyer crypto.Address
}

// Exercised is an option whose asset was delivered to Buyer.
type Exercised struct {
	Buyer crypto.Address
}

func (Listed) Status() Status    { return StatusListed }
func (Active) Status() Status    { return StatusActive }
func (Exercised) Status() Status { return StatusExercised }

// Option is a call option written by Seller on one asset.
type Option struct {
	Asset       crypto.AssetID
	Seller      crypto.Address
	Premium     uint64
	StrikePrice uint64
	Expiry      int64
	Phase       Phase
}

func (o *Option) Status() Status {
	if o == nil || o.Phase == nil {
		return StatusListed
	}
	return o.Phase.Status()
}

// Buyer returns the holder of the option, if bought.
func (o *Option) Buyer() (crypto.Address, bool) {
	switch p := o.Phase.(type) {
	case Active:
		return p.Buyer, true
	case Exercised:
		return p.Buyer, true
	default:
		return crypto.Address{}, false
	}
}

func (o *Option) Clone() *Option {
	if o == nil {
		return nil
	}
	clone := *o
	return &clone
}

type optionView struct {
	Asset       crypto.AssetID  `json:"asset"`
	Status      Status          `json:"status"`
	Seller      crypto.Address  `json:"seller"`
	Buyer       *crypto.Address `json:"buyer,omitempty"`
	Premium     uint64          `json:"premium"`
	StrikePrice uint64          `json:"strikePrice"`
	Expiry      int64           `json:"expiry"`
}

func (o *Option) MarshalJSON() ([]byte, error) {
	view := optionView{
		Asset:       o.Asset,
		Status:      o.Status(),
		Seller:      o.Seller,
		Premium:     o.Premium,
		StrikePrice: o.StrikePrice,
		Expiry:      o.Expiry,
	}
	if buyer, ok := o.Buyer(); ok {
		view.Buyer = &buyer
	}
	return json.Marshal(view)
}

const (
	codeListed uint8 = iota
	codeActive
	codeExercised
)

type storedOption struct {
	Asset       [32]byte
	Seller      [20]byte
	Premium     uint64
	StrikePrice uint64
	Expiry      uint64
	Status      uint8
	Buyer       [20]byte
}

// EncodeRLP implements rlp.Encoder.
func (o *Option) EncodeRLP(w io.Writer) error {
	stored := storedOption{
		Asset:       o.Asset,
		Seller:      o.Seller,
		Premium:     o.Premium,
		StrikePrice: o.StrikePrice,
		Expiry:      uint64(o.Expiry),
	}
	switch p := o.Phase.(type) {
	case nil, Listed:
		stored.Status = codeListed
	case Active:
		stored.Status = codeActive
		stored.Buyer = p.Buyer
	case Exercised:
		stored.Status = codeExercised
		stored.Buyer = p.Buyer
	default:
		return fmt.Errorf("option: unknown phase %T", p)
	}
	return rlp.Encode(w, stored)
}

// DecodeRLP implements rlp.Decoder.
func (o *Option) DecodeRLP(s *rlp.Stream) error {
	var stored storedOption
	if err := s.Decode(&stored); err != nil {
		return err
	}
	*o = Option{
		Asset:       stored.Asset,
		Seller:      stored.Seller,
		Premium:     stored.Premium,
		StrikePrice: stored.StrikePrice,
		Expiry:      int64(stored.Expiry),
	}
	switch stored.Status {
	case codeListed:
		o.Phase = Listed{}
	case codeActive:
		o.Phase = Active{Buyer: stored.Buyer}
	case codeExercised:
		o.Phase = Exercised{Buyer: stored.Buyer}
	default:
		return fmt.Errorf("option: unknown status code %d", stored.Status)
	}
	return nil
}

// Bid is a prospective buyer's standing offer to buy an option on an asset.
// The premium sits in the bid vault until the bid is filled or cancelled.
type Bid struct {
	Asset       crypto.AssetID `json:"asset"`
	Buyer       crypto.Address `json:"buyer"`
	Premium     uint64         `json:"premium"`
	StrikePrice uint64         `json:"strikePrice"`
	Expiry      int64          `json:"expiry"`
}

type storedBid struct {
	Asset       [32]byte
	Buyer       [20]byte
	Premium     uint64
	StrikePrice uint64
	Expiry      uint64
}

// EncodeRLP implements rlp.Encoder.
func (b *Bid) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, storedBid{
		Asset:       b.Asset,
		Buyer:       b.Buyer,
		Premium:     b.Premium,
		StrikePrice: b.StrikePrice,
		Expiry:      uint64(b.Expiry),
	})
}

// DecodeRLP implements rlp.Decoder.
func (b *Bid) DecodeRLP(s *rlp.Stream) error {
	var stored storedBid
	if err := s.Decode(&stored); err != nil {
		return err
	}
	*b = Bid{
		Asset:       stored.Asset,
		Buyer:       stored.Buyer,
		Premium:     stored.Premium,
		StrikePrice: stored.StrikePrice,
		Expiry:      int64(stored.Expiry),
	}
	return nil
}

// BidVault is the account holding the premium of buyer's bid on asset.
func BidVault(asset crypto.AssetID, buyer crypto.Address) crypto.Address {
	return crypto.DeriveAddress([]byte("option-bid"), asset[:], buyer[:])
}
