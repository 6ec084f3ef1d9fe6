package assets_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/onda-protocol/onda-program-library-sub000/core/errors"
	"github.com/onda-protocol/onda-program-library-sub000/core/state"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	"github.com/onda-protocol/onda-program-library-sub000/native/assets"
	"github.com/onda-protocol/onda-program-library-sub000/native/settlement"
	"github.com/onda-protocol/onda-program-library-sub000/storage"
)

func setup(t *testing.T) (*state.Manager, *assets.Engine) {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	engine := assets.NewEngine()
	engine.SetState(mgr)
	return mgr, engine
}

func TestRegisterMintsToOwner(t *testing.T) {
	mgr, engine := setup(t)
	asset := crypto.NewAssetID([]byte("art-1"))
	owner := crypto.Address{0x01}
	creators := []settlement.Creator{{Address: crypto.Address{0x0A}, Share: 70}, {Address: crypto.Address{0x0B}, Share: 30}}

	meta, err := engine.Register(asset, owner, creators, 500)
	require.NoError(t, err)
	require.EqualValues(t, 500, meta.SellerFeeBps)

	h, err := mgr.AssetHolding(asset)
	require.NoError(t, err)
	require.Equal(t, owner, h.Owner)
	require.False(t, h.Frozen)

	loaded, err := engine.Metadata(asset)
	require.NoError(t, err)
	require.Equal(t, creators, loaded.Creators)

	_, err = engine.Register(asset, owner, creators, 500)
	require.ErrorIs(t, err, coreerrors.ErrInvalidState)
}

func TestRegisterValidation(t *testing.T) {
	_, engine := setup(t)
	asset := crypto.NewAssetID([]byte("art-2"))
	owner := crypto.Address{0x01}

	_, err := engine.Register(asset, owner, []settlement.Creator{{Address: crypto.Address{0x0A}, Share: 50}}, 100)
	require.ErrorIs(t, err, coreerrors.ErrInvalidAmount, "shares must sum to 100")

	_, err = engine.Register(asset, owner, nil, 10_001)
	require.ErrorIs(t, err, coreerrors.ErrInvalidAmount)

	_, err = engine.Register(asset, crypto.Address{}, nil, 0)
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)

	_, err = engine.Metadata(asset)
	require.ErrorIs(t, err, coreerrors.ErrNotFound)
}

func TestPayRoyaltyReturnsDust(t *testing.T) {
	mgr, _ := setup(t)
	payer := crypto.Address{0x01}
	require.NoError(t, mgr.Credit(payer, 1_000))
	creators := []settlement.Creator{{Address: crypto.Address{0x0A}, Share: 50}, {Address: crypto.Address{0x0B}, Share: 50}}

	paid, dust, err := assets.PayRoyalty(mgr, payer, 11, creators)
	require.NoError(t, err)
	require.EqualValues(t, 10, paid)
	require.EqualValues(t, 1, dust)

	balance, err := mgr.Balance(payer)
	require.NoError(t, err)
	require.EqualValues(t, 990, balance)
}
