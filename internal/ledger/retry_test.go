package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errDown = errors.New("store down")

// flaky delegates to a Memory ledger but can be switched into a failing mode.
type flaky struct {
	*Memory
	mu   sync.Mutex
	down bool
}

func (f *flaky) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *flaky) isDown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.down
}

func (f *flaky) FindOrCreateProfile(ctx context.Context, tgID int64, username string) (*Profile, error) {
	if f.isDown() {
		return nil, errDown
	}
	return f.Memory.FindOrCreateProfile(ctx, tgID, username)
}

func (f *flaky) AdjustBalance(ctx context.Context, tgID int64, delta int64) error {
	if f.isDown() {
		return errDown
	}
	return f.Memory.AdjustBalance(ctx, tgID, delta)
}

func TestRetrying_ReplaysFailedWrites(t *testing.T) {
	store := &flaky{Memory: NewMemory()}
	_, err := store.FindOrCreateProfile(context.Background(), 1, "ann")
	require.NoError(t, err)

	r := NewRetrying(context.Background(), store, 10*time.Millisecond, zap.NewNop())
	defer r.Close()

	store.setDown(true)
	err = r.AdjustBalance(context.Background(), 1, 100)
	require.ErrorIs(t, err, errDown, "the failure is still reported to the caller")

	store.setDown(false)

	require.Eventually(t, func() bool {
		coins, _ := store.Balance(1)
		return coins == 1100
	}, time.Second, 10*time.Millisecond, "queued write must be replayed")
}

func TestRetrying_ServesCachedProfileWhenStoreIsDown(t *testing.T) {
	store := &flaky{Memory: NewMemory()}
	r := NewRetrying(context.Background(), store, time.Hour, zap.NewNop())
	defer r.Close()

	p, err := r.FindOrCreateProfile(context.Background(), 1, "ann")
	require.NoError(t, err)
	require.Equal(t, int64(StartingCoins), p.Coins)

	store.setDown(true)

	cached, err := r.FindOrCreateProfile(context.Background(), 1, "ann")
	require.NoError(t, err, "a cached profile backs the read")
	require.Equal(t, p.Coins, cached.Coins)

	_, err = r.FindOrCreateProfile(context.Background(), 2, "bob")
	require.ErrorIs(t, err, errDown, "unknown profiles cannot be served from cache")
}
