package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/onda-protocol/onda-program-library-sub000/core/errors"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
	"github.com/onda-protocol/onda-program-library-sub000/storage"
)

func commit(t *testing.T, db *storage.MemDB, j *storage.Journal, m *Manager) {
	t.Helper()
	require.NoError(t, m.Finalize())
	require.NoError(t, db.Write(j.Batch()))
}

func TestBalancesAreDeltasUntilFinalize(t *testing.T) {
	db := storage.NewMemDB()
	alice, bob := crypto.Address{1}, crypto.Address{2}

	j := storage.NewJournal(db)
	m := NewManager(j)
	require.NoError(t, m.Credit(alice, 100))
	require.NoError(t, m.Transfer(alice, bob, 30))
	require.Equal(t, 2, m.PendingAccounts())
	require.Zero(t, db.Len(), "nothing written before commit")

	commit(t, db, j, m)
	reader := NewManager(db)
	a, err := reader.Balance(alice)
	require.NoError(t, err)
	require.EqualValues(t, 70, a)
	b, err := reader.Balance(bob)
	require.NoError(t, err)
	require.EqualValues(t, 30, b)
}

func TestDebitChecksBalance(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	alice := crypto.Address{1}
	require.NoError(t, m.Credit(alice, 10))
	require.ErrorIs(t, m.Debit(alice, 11), coreerrors.ErrInsufficientBalance)
	require.ErrorIs(t, m.Credit(crypto.Address{}, 1), coreerrors.ErrInvalidAmount)
}

func TestFinalizeReconcilesConcurrentCommits(t *testing.T) {
	db := storage.NewMemDB()
	alice, bob, carol := crypto.Address{1}, crypto.Address{2}, crypto.Address{3}

	seed := storage.NewJournal(db)
	seedMgr := NewManager(seed)
	require.NoError(t, seedMgr.Credit(alice, 100))
	commit(t, db, seed, seedMgr)

	// Two operations both see 100 and each spend 80.
	j1, j2 := storage.NewJournal(db), storage.NewJournal(db)
	m1, m2 := NewManager(j1), NewManager(j2)
	require.NoError(t, m1.Transfer(alice, bob, 80))
	require.NoError(t, m2.Transfer(alice, carol, 80))

	commit(t, db, j1, m1)
	require.ErrorIs(t, m2.Finalize(), coreerrors.ErrInsufficientBalance)

	reader := NewManager(db)
	a, err := reader.Balance(alice)
	require.NoError(t, err)
	require.EqualValues(t, 20, a)
	c, err := reader.Balance(carol)
	require.NoError(t, err)
	require.Zero(t, c)
}

func TestFinalizeCreditsAddToCommittedBalance(t *testing.T) {
	db := storage.NewMemDB()
	alice := crypto.Address{1}

	j1, j2 := storage.NewJournal(db), storage.NewJournal(db)
	m1, m2 := NewManager(j1), NewManager(j2)
	require.NoError(t, m1.Credit(alice, 5))
	require.NoError(t, m2.Credit(alice, 7))
	commit(t, db, j1, m1)
	commit(t, db, j2, m2)

	a, err := NewManager(db).Balance(alice)
	require.NoError(t, err)
	require.EqualValues(t, 12, a)
}
