package ledger

import (
	"context"
	"sync"

	"github.com/onda-protocol/onda-program-library-sub000/crypto"
)

// assetLocks serializes operations per asset. Slots are reference counted
// and dropped once no caller holds or waits on them, so the map only grows
// with the number of assets in flight.
type assetLocks struct {
	mu    sync.Mutex
	slots map[crypto.AssetID]*assetSlot
}

type assetSlot struct {
	ch   chan struct{}
	refs int
}

func newAssetLocks() *assetLocks {
	return &assetLocks{slots: make(map[crypto.AssetID]*assetSlot)}
}

// acquire blocks until the asset is free or ctx ends. The returned func
// releases the lock.
func (l *assetLocks) acquire(ctx context.Context, asset crypto.AssetID) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[asset]
	if !ok {
		slot = &assetSlot{ch: make(chan struct{}, 1)}
		l.slots[asset] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(asset, slot)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.drop(asset, slot)
		})
	}, nil
}

func (l *assetLocks) drop(asset crypto.AssetID, slot *assetSlot) {
	l.mu.Lock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, asset)
	}
	l.mu.Unlock()
}

func (l *assetLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
