package custody_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/onda-protocol/onda-program-library-sub000/core/errors"
	"github.com/onda-protocol/onda-program-library-sub000/core/events"
	"github.com/onda-protocol/onda-program-library-sub000/core/state"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	nativecommon "github.com/onda-protocol/onda-program-library-sub000/native/common"
	"github.com/onda-protocol/onda-program-library-sub000/native/custody"
	"github.com/onda-protocol/onda-program-library-sub000/storage"
)

func addr(fill byte) crypto.Address {
	var a crypto.Address
	for i := range a {
		a[i] = fill
	}
	return a
}

type fixture struct {
	mgr    *state.Manager
	engine *custody.Engine
	events *events.Buffer
	asset  crypto.AssetID
	owner  crypto.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	buf := new(events.Buffer)
	engine := custody.NewEngine()
	engine.SetState(mgr)
	engine.SetEmitter(buf)
	f := &fixture{mgr: mgr, engine: engine, events: buf, asset: crypto.NewAssetID([]byte("custody-test")), owner: addr(0x11)}
	require.NoError(t, mgr.AssetMint(f.asset, f.owner))
	return f
}

func (f *fixture) requireConsistent(t *testing.T) {
	t.Helper()
	ok, err := f.engine.Consistent(f.asset)
	require.NoError(t, err)
	require.True(t, ok, "frozen state must match composition")
}

func TestAttachFreezesUnderCaller(t *testing.T) {
	f := newFixture(t)
	rec, err := f.engine.Attach(f.asset, custody.KindLoan, f.owner)
	require.NoError(t, err)
	require.Equal(t, f.owner, rec.Authority)
	require.Equal(t, f.owner, rec.Issuer)
	require.True(t, rec.Composition.Loan)

	h, err := f.mgr.AssetHolding(f.asset)
	require.NoError(t, err)
	require.True(t, h.Frozen)
	require.Equal(t, custody.Capability(f.asset), h.Delegate)
	f.requireConsistent(t)
}

func TestAttachRequiresOwner(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Attach(f.asset, custody.KindRental, addr(0x22))
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)
	_, ok, err := f.engine.Record(f.asset)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAttachComposition(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Attach(f.asset, custody.KindLoan, f.owner)
	require.NoError(t, err)

	_, err = f.engine.Attach(f.asset, custody.KindLoan, f.owner)
	require.ErrorIs(t, err, coreerrors.ErrInvalidState, "same flag twice")

	_, err = f.engine.Attach(f.asset, custody.KindOption, f.owner)
	require.ErrorIs(t, err, coreerrors.ErrInvalidState, "loan and option never share an asset")

	_, err = f.engine.Attach(f.asset, custody.KindRental, addr(0x33))
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)

	rec, err := f.engine.Attach(f.asset, custody.KindRental, f.owner)
	require.NoError(t, err)
	require.Equal(t, "loan+rental", rec.Composition.String())
	f.requireConsistent(t)
}

func TestAttachRejectsAssetDelegatedElsewhere(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mgr.AssetFreeze(f.asset, addr(0x99)))
	require.NoError(t, f.mgr.AssetThaw(f.asset, addr(0x99)))

	_, err := f.engine.Attach(f.asset, custody.KindOption, f.owner)
	require.ErrorIs(t, err, coreerrors.ErrInvalidDelegate)
}

func TestDetachReleasesOnLastFlag(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Attach(f.asset, custody.KindLoan, f.owner)
	require.NoError(t, err)
	_, err = f.engine.Attach(f.asset, custody.KindRental, f.owner)
	require.NoError(t, err)

	rec, err := f.engine.Detach(f.asset, custody.KindLoan, f.owner)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.True(t, rec.Composition.Rental)
	f.requireConsistent(t)

	rec, err = f.engine.Detach(f.asset, custody.KindRental, f.owner)
	require.NoError(t, err)
	require.Nil(t, rec)
	_, ok, err := f.engine.Record(f.asset)
	require.NoError(t, err)
	require.False(t, ok, "record reclaimed")

	h, err := f.mgr.AssetHolding(f.asset)
	require.NoError(t, err)
	require.False(t, h.Frozen)
	require.True(t, h.Delegate.IsZero())
	f.requireConsistent(t)

	_, err = f.engine.Detach(f.asset, custody.KindRental, f.owner)
	require.ErrorIs(t, err, coreerrors.ErrInvalidState)
}

func TestReleaseRequiresAuthority(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Attach(f.asset, custody.KindOption, f.owner)
	require.NoError(t, err)

	err = f.engine.ThawAndRevoke(f.asset, f.owner, addr(0x44))
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)

	_, err = f.engine.Detach(f.asset, custody.KindOption, addr(0x44))
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)
}

func TestThawAndTransferRotatesAuthority(t *testing.T) {
	f := newFixture(t)
	holder := addr(0x55)
	_, err := f.engine.Attach(f.asset, custody.KindRental, f.owner)
	require.NoError(t, err)

	require.NoError(t, f.engine.ThawAndTransfer(f.asset, f.owner, holder, holder))

	rec, ok, err := f.engine.Record(f.asset)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, holder, rec.Authority)
	require.Equal(t, f.owner, rec.Issuer)
	require.True(t, rec.LentOut())

	h, err := f.mgr.AssetHolding(f.asset)
	require.NoError(t, err)
	require.Equal(t, holder, h.Owner)
	require.True(t, h.Frozen)
	require.Equal(t, custody.Capability(f.asset), h.Delegate)

	// A lent-out asset accepts no new claim.
	_, err = f.engine.Attach(f.asset, custody.KindLoan, f.owner)
	require.ErrorIs(t, err, coreerrors.ErrInvalidState)

	// The holder cannot move a frozen asset on its own.
	err = f.mgr.AssetTransfer(f.asset, holder, addr(0x66), holder)
	require.ErrorIs(t, err, coreerrors.ErrCustodyViolation)

	var rotated bool
	for _, evt := range f.events.Events() {
		if evt.EventType() == custody.EventTypeAuthorityRotated {
			rotated = true
		}
	}
	require.True(t, rotated)
}

func TestThawAndTransferRejectsWrongHolder(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Attach(f.asset, custody.KindLoan, f.owner)
	require.NoError(t, err)
	err = f.engine.ThawAndTransfer(f.asset, addr(0x77), addr(0x78), addr(0x78))
	require.ErrorIs(t, err, coreerrors.ErrCustodyViolation)
}

func TestFreezeTwiceIsViolation(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.DelegateAndFreeze(f.asset, f.owner, f.owner))
	err := f.engine.DelegateAndFreeze(f.asset, f.owner, f.owner)
	require.ErrorIs(t, err, coreerrors.ErrCustodyViolation)

	require.NoError(t, f.engine.ThawAndRevoke(f.asset, f.owner, f.owner))
	err = f.engine.ThawAndRevoke(f.asset, f.owner, f.owner)
	require.ErrorIs(t, err, coreerrors.ErrCustodyViolation)
}

func TestClaimFromEscrow(t *testing.T) {
	f := newFixture(t)
	escrow := custody.EscrowAccount(f.asset)
	require.NoError(t, f.mgr.AssetTransfer(f.asset, f.owner, escrow, f.owner))

	recipient := addr(0x88)
	require.NoError(t, f.engine.ClaimFromEscrow(f.asset, recipient, recipient))

	h, err := f.mgr.AssetHolding(f.asset)
	require.NoError(t, err)
	require.Equal(t, recipient, h.Owner)
	require.True(t, h.Frozen)

	err = f.engine.ClaimFromEscrow(f.asset, recipient, recipient)
	require.ErrorIs(t, err, coreerrors.ErrCustodyViolation)
}

func TestAttachPaused(t *testing.T) {
	f := newFixture(t)
	f.engine.SetPauses(nativecommon.NewStaticPauses("custody"))
	_, err := f.engine.Attach(f.asset, custody.KindLoan, f.owner)
	require.True(t, errors.Is(err, nativecommon.ErrModulePaused))
}

func TestUnknownAsset(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Attach(crypto.NewAssetID([]byte("missing")), custody.KindLoan, f.owner)
	require.ErrorIs(t, err, coreerrors.ErrNotFound)
}

func TestTransferUnencumbered(t *testing.T) {
	f := newFixture(t)
	next := addr(0x44)
	require.ErrorIs(t, f.engine.Transfer(f.asset, next, f.owner), coreerrors.ErrUnauthorized)
	require.NoError(t, f.engine.Transfer(f.asset, f.owner, next))

	h, err := f.mgr.AssetHolding(f.asset)
	require.NoError(t, err)
	require.Equal(t, next, h.Owner)

	_, err = f.engine.Attach(f.asset, custody.KindRental, next)
	require.NoError(t, err)
	require.ErrorIs(t, f.engine.Transfer(f.asset, next, f.owner), coreerrors.ErrInvalidState)
}
