package genesis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onda-protocol/onda-program-library-sub000/core/ledger"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	"github.com/onda-protocol/onda-program-library-sub000/storage"
)

func fill(b byte) crypto.Address {
	var a crypto.Address
	for i := range a {
		a[i] = b
	}
	return a
}

func sampleSpec(owner, creator crypto.Address) string {
	return fmt.Sprintf(`
[alloc]
"%s" = 5000
"0x%x" = 7

[[assets]]
label = "punk-1"
owner = "%s"
sellerFeeBps = 500

  [[assets.creators]]
  address = "%s"
  share = 100
`, owner, creator.Bytes(), owner, creator)
}

func TestLoadGenesisSpecAndApply(t *testing.T) {
	owner, creator := fill(0x01), fill(0x02)
	path := filepath.Join(t.TempDir(), "genesis.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSpec(owner, creator)), 0o600))

	spec, err := LoadGenesisSpec(path)
	require.NoError(t, err)
	accounts := spec.Accounts()
	require.Len(t, accounts, 2)
	require.Equal(t, owner, accounts[0].Account)
	require.Equal(t, uint64(5000), accounts[0].Amount)

	l, err := ledger.New(storage.NewMemDB())
	require.NoError(t, err)
	ctx := context.Background()
	seeded, err := Seeded(ctx, l, spec)
	require.NoError(t, err)
	require.False(t, seeded)

	require.NoError(t, Apply(ctx, l, spec))
	balance, err := l.Balance(ctx, creator)
	require.NoError(t, err)
	require.Equal(t, uint64(7), balance)

	asset := crypto.NewAssetID([]byte("punk-1"))
	meta, err := l.AssetMetadata(ctx, asset)
	require.NoError(t, err)
	require.Equal(t, uint16(500), meta.SellerFeeBps)
	require.Equal(t, creator, meta.Creators[0].Address)

	holding, err := l.Holding(ctx, asset)
	require.NoError(t, err)
	require.Equal(t, owner, holding.Owner)

	seeded, err = Seeded(ctx, l, spec)
	require.NoError(t, err)
	require.True(t, seeded)
}

func TestGenesisSpecRejectsUnknownFields(t *testing.T) {
	_, err := ParseGenesisSpec("chainId = 4\n")
	require.Error(t, err)
}

func TestGenesisSpecValidation(t *testing.T) {
	owner := fill(0x01)
	cases := map[string]string{
		"zero alloc":     fmt.Sprintf("[alloc]\n\"%s\" = 0\n", owner),
		"bad address":    "[alloc]\n\"nobody\" = 1\n",
		"missing id":     fmt.Sprintf("[[assets]]\nowner = \"%s\"\n", owner),
		"id and label":   fmt.Sprintf("[[assets]]\nid = \"%s\"\nlabel = \"x\"\nowner = \"%s\"\n", crypto.NewAssetID([]byte("x")), owner),
		"fee too large":  fmt.Sprintf("[[assets]]\nlabel = \"x\"\nowner = \"%s\"\nsellerFeeBps = 10001\n", owner),
		"duplicate mint": fmt.Sprintf("[[assets]]\nlabel = \"x\"\nowner = \"%s\"\n[[assets]]\nlabel = \"x\"\nowner = \"%s\"\n", owner, owner),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseGenesisSpec(body)
			require.Error(t, err)
		})
	}
}

func TestApplyRejectsBadCreatorShares(t *testing.T) {
	owner, creator := fill(0x01), fill(0x02)
	spec, err := ParseGenesisSpec(fmt.Sprintf(`
[[assets]]
label = "half"
owner = "%s"
  [[assets.creators]]
  address = "%s"
  share = 50
`, owner, creator))
	require.NoError(t, err)
	l, err := ledger.New(storage.NewMemDB())
	require.NoError(t, err)
	require.Error(t, Apply(context.Background(), l, spec))
}
