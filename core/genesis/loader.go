package genesis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	coreerrors "github.com/onda-protocol/onda-program-library-sub000/core/errors"
	"github.com/onda-protocol/onda-program-library-sub000/core/ledger"
)

// Apply seeds l with the spec's balances and assets. Accounts are credited
// in address order and assets registered in id order so two nodes seeded
// from one file hold identical state.
func Apply(ctx context.Context, l *ledger.Ledger, spec *GenesisSpec) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if l == nil {
		return fmt.Errorf("ledger must not be nil")
	}
	for _, alloc := range spec.accounts {
		if err := l.Deposit(ctx, alloc.Account, alloc.Amount); err != nil {
			return fmt.Errorf("alloc %s: %w", alloc.Account, err)
		}
	}
	ordered := make([]*AssetSpec, 0, len(spec.Assets))
	for i := range spec.Assets {
		ordered = append(ordered, &spec.Assets[i])
	}
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i].asset[:], ordered[j].asset[:]) < 0
	})
	for _, a := range ordered {
		if _, err := l.RegisterAsset(ctx, a.asset, a.owner, a.creators, a.SellerFeeBps); err != nil {
			return fmt.Errorf("asset %s: %w", a.asset, err)
		}
	}
	return nil
}

// Seeded reports whether l already holds the first asset of spec, which
// marks a store that was seeded before.
func Seeded(ctx context.Context, l *ledger.Ledger, spec *GenesisSpec) (bool, error) {
	if spec == nil || len(spec.Assets) == 0 {
		return false, nil
	}
	_, err := l.AssetMetadata(ctx, spec.Assets[0].asset)
	if errors.Is(err, coreerrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
