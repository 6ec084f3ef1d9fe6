package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/onda-protocol/onda-program-library-sub000/crypto"
)

func TestAssetLocksExclusive(t *testing.T) {
	locks := newAssetLocks()
	asset := crypto.NewAssetID([]byte("lock"))

	unlock, err := locks.acquire(context.Background(), asset)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locks.acquire(ctx, asset)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, locks.size())

	unlock()
	unlock()
	require.Equal(t, 0, locks.size())
}

func TestAssetLocksIndependentAssets(t *testing.T) {
	locks := newAssetLocks()
	a := crypto.NewAssetID([]byte("a"))
	b := crypto.NewAssetID([]byte("b"))

	unlockA, err := locks.acquire(context.Background(), a)
	require.NoError(t, err)
	unlockB, err := locks.acquire(context.Background(), b)
	require.NoError(t, err)
	require.Equal(t, 2, locks.size())
	unlockA()
	unlockB()
	require.Equal(t, 0, locks.size())
}

func TestAssetLocksSerializeCriticalSection(t *testing.T) {
	locks := newAssetLocks()
	asset := crypto.NewAssetID([]byte("counter"))
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locks.acquire(context.Background(), asset)
			if err != nil {
				return
			}
			defer unlock()
			current := counter
			time.Sleep(time.Microsecond)
			counter = current + 1
		}()
	}
	wg.Wait()
	require.Equal(t, 32, counter)
	require.Equal(t, 0, locks.size())
}
