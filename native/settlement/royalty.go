package settlement

import (
	"fmt"

	"github.com/holiman/uint256"

	coreerrors "github.com/onda-protocol/onda-program-library-sub000/core/errors"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
)

// Creator is one royalty recipient with its percentage share.
type Creator struct {
	Address crypto.Address `json:"address" toml:"address"`
	Share   uint8          `json:"share" toml:"share"`
}

// Payout is an amount owed to one recipient.
type Payout struct {
	Recipient crypto.Address `json:"recipient"`
	Amount    uint64         `json:"amount"`
}

// ValidateCreators rejects share lists summing above MaxShare.
func ValidateCreators(creators []Creator) error {
	total := 0
	for _, c := range creators {
		if c.Address.IsZero() {
			return fmt.Errorf("settlement: creator address required: %w", coreerrors.ErrInvalidAmount)
		}
		total += int(c.Share)
	}
	if total > MaxShare {
		return fmt.Errorf("settlement: creator shares sum to %d: %w", total, coreerrors.ErrInvalidAmount)
	}
	return nil
}

// SplitRoyalty distributes fee among creators as floor(fee × share / 100)
// each. The remainder is returned as dust for the payer, so payouts plus dust
// always equal fee. Zero payouts are omitted.
func SplitRoyalty(fee uint64, creators []Creator) ([]Payout, uint64, error) {
	if err := ValidateCreators(creators); err != nil {
		return nil, 0, err
	}
	if fee == 0 || len(creators) == 0 {
		return nil, fee, nil
	}
	remaining := fee
	payouts := make([]Payout, 0, len(creators))
	hundred := uint256.NewInt(MaxShare)
	for _, c := range creators {
		v := new(uint256.Int).Mul(uint256.NewInt(fee), uint256.NewInt(uint64(c.Share)))
		v.Div(v, hundred)
		amount := v.Uint64()
		if amount == 0 {
			continue
		}
		remaining -= amount
		payouts = append(payouts, Payout{Recipient: c.Address, Amount: amount})
	}
	return payouts, remaining, nil
}
