// Package settlement holds the pure arithmetic every instrument transition
// depends on: pro-rata interest and rent, escrow accrual and royalty splits.
// All intermediate products are carried in 256-bit integers so nothing can
// wrap before the final division; results outside the u64 domain are
// reported as ErrNumericOverflow.
package settlement

import (
	"fmt"

	"github.com/holiman/uint256"

	coreerrors "github.com/onda-protocol/onda-program-library-sub000/core/errors"
)

const (
	// BasisPoints is the denominator for every *Bps value.
	BasisPoints = 10_000
	// SecondsPerYear is the accrual period for annual rates.
	SecondsPerYear int64 = 31_536_000
	// SecondsPerDay is the length of one rental day.
	SecondsPerDay int64 = 86_400
	// MaxShare is the sum every creator share list must not exceed.
	MaxShare = 100
)

var (
	bpsDenominator = uint256.NewInt(BasisPoints)
	maxU64         = new(uint256.Int).SetUint64(^uint64(0))
)

func overflow(op string) error {
	return fmt.Errorf("settlement: %s: %w", op, coreerrors.ErrNumericOverflow)
}

func toU64(v *uint256.Int, op string) (uint64, error) {
	if v.Gt(maxU64) {
		return 0, overflow(op)
	}
	return v.Uint64(), nil
}

// ProRata returns round_half_up(amount × rateBps / 10000 × elapsed / period).
// Negative elapsed time accrues nothing.
func ProRata(amount uint64, rateBps uint16, elapsed, period int64) (uint64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("settlement: period must be positive: %w", coreerrors.ErrInvalidExpiry)
	}
	if amount == 0 || rateBps == 0 || elapsed <= 0 {
		return 0, nil
	}
	num, over := new(uint256.Int).MulOverflow(uint256.NewInt(amount), uint256.NewInt(uint64(rateBps)))
	if over {
		return 0, overflow("pro-rata")
	}
	if _, over = num.MulOverflow(num, uint256.NewInt(uint64(elapsed))); over {
		return 0, overflow("pro-rata")
	}
	den := new(uint256.Int).Mul(bpsDenominator, uint256.NewInt(uint64(period)))
	half := new(uint256.Int).Rsh(den, 1)
	if _, over = num.AddOverflow(num, half); over {
		return 0, overflow("pro-rata")
	}
	num.Div(num, den)
	return toU64(num, "pro-rata")
}

// InterestDue is the simple annual interest accrued on principal after
// elapsed seconds.
func InterestDue(principal uint64, rateBps uint16, elapsed int64) (uint64, error) {
	return ProRata(principal, rateBps, elapsed, SecondsPerYear)
}

// AmountDue is principal plus its accrued interest.
func AmountDue(principal uint64, rateBps uint16, elapsed int64) (uint64, error) {
	interest, err := InterestDue(principal, rateBps, elapsed)
	if err != nil {
		return 0, err
	}
	return Add(principal, interest)
}

// Fee returns floor(amount × bps / 10000).
func Fee(amount uint64, bps uint16) (uint64, error) {
	if bps > BasisPoints {
		return 0, fmt.Errorf("settlement: fee bps %d out of range: %w", bps, coreerrors.ErrInvalidAmount)
	}
	if amount == 0 || bps == 0 {
		return 0, nil
	}
	v := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(uint64(bps)))
	v.Div(v, bpsDenominator)
	return toU64(v, "fee")
}

// Rent returns days × dailyRate.
func Rent(dailyRate uint64, days uint32) (uint64, error) {
	v, over := new(uint256.Int).MulOverflow(uint256.NewInt(dailyRate), uint256.NewInt(uint64(days)))
	if over {
		return 0, overflow("rent")
	}
	return toU64(v, "rent")
}

// Add is a checked u64 addition.
func Add(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, overflow("add")
	}
	return sum, nil
}

// Earned returns the already-earned part of an escrow that accrues linearly
// from checkpoint to expiry: floor(balance × (now − checkpoint) / (expiry −
// checkpoint)), zero before checkpoint and the full balance from expiry on.
func Earned(balance uint64, checkpoint, expiry, now int64) uint64 {
	if balance == 0 || now <= checkpoint {
		return 0
	}
	if now >= expiry || expiry <= checkpoint {
		return balance
	}
	v := new(uint256.Int).Mul(uint256.NewInt(balance), uint256.NewInt(uint64(now-checkpoint)))
	v.Div(v, uint256.NewInt(uint64(expiry-checkpoint)))
	// The ratio is below one, so the quotient always fits.
	return v.Uint64()
}

// SplitEscrow partitions balance into its earned and unearned parts at now.
// The two parts always sum to balance.
func SplitEscrow(balance uint64, checkpoint, expiry, now int64) (earned, unearned uint64) {
	earned = Earned(balance, checkpoint, expiry, now)
	return earned, balance - earned
}
