package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRegistry(t *testing.T, clk Clock) *Registry {
	t.Helper()
	r := NewRegistry(Config{
		Grace:         time.Minute,
		MaxAge:        30 * time.Minute,
		SweepInterval: 5 * time.Millisecond,
		Clock:         clk,
		Logger:        zap.NewNop(),
	})
	t.Cleanup(r.Close)
	return r
}

func TestCreateDuplicateSession(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, nil)
	require.NoError(t, r.Create("sess-1", 10))
	require.ErrorIs(t, r.Create("sess-1", 5), ErrDuplicateSession)
}

func TestAdvanceUnknownSessionIsNoOp(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, nil)
	r.Advance("never-created")
	r.Complete("never-created")
	require.Equal(t, 0, r.Len())
}

func TestAdvanceNeverExceedsTotal(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, nil)
	require.NoError(t, r.Create("sess-1", 2))
	r.Advance("sess-1")
	r.Advance("sess-1")
	r.Advance("sess-1")
	snap, err := r.Peek("sess-1")
	require.NoError(t, err)
	require.Equal(t, 2, snap.CurrentIndex)
	require.False(t, snap.Done)
}

func TestWatchObservesMonotonicProgressAndTerminalDone(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, nil)
	require.NoError(t, r.Create("sess-1", 3))
	ch := r.Watch("sess-1")

	var snaps []Snapshot
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for snap := range ch {
			snaps = append(snaps, snap)
		}
	}()

	r.Advance("sess-1")
	r.Advance("sess-1")
	r.Advance("sess-1")
	r.Complete("sess-1")
	wg.Wait()

	require.NotEmpty(t, snaps)
	last := 0
	for _, snap := range snaps {
		require.GreaterOrEqual(t, snap.CurrentIndex, last)
		require.Equal(t, 3, snap.TotalFiles)
		last = snap.CurrentIndex
	}
	final := snaps[len(snaps)-1]
	require.True(t, final.Done)
	require.Equal(t, 3, final.CurrentIndex)
}

func TestWatchUnknownSessionClosesImmediately(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, nil)
	ch := r.Watch("missing")
	_, open := <-ch
	require.False(t, open)
}

func TestWatchAfterCompletionEmitsSingleTerminalSnapshot(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, nil)
	require.NoError(t, r.Create("sess-1", 2))
	r.Advance("sess-1")
	r.Advance("sess-1")
	r.Complete("sess-1")

	ch := r.Watch("sess-1")
	snap, open := <-ch
	require.True(t, open)
	require.True(t, snap.Done)
	require.Equal(t, 2, snap.CurrentIndex)
	_, open = <-ch
	require.False(t, open)
}

// TestSlowWatcherNeverBlocksWriter floods a session whose subscriber is not
// reading; Advance must return promptly every time.
func TestSlowWatcherNeverBlocksWriter(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, nil)
	require.NoError(t, r.Create("sess-1", 1000))
	ch := r.Watch("sess-1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			r.Advance("sess-1")
		}
		r.Complete("sess-1")
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("writer blocked on slow watcher")
	}

	// The coalesced stream still ends with the terminal snapshot.
	var final Snapshot
	for snap := range ch {
		final = snap
	}
	require.True(t, final.Done)
	require.Equal(t, 1000, final.CurrentIndex)
}

func TestEvictClosesWatchersWithoutDone(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, nil)
	require.NoError(t, r.Create("sess-1", 5))
	ch := r.Watch("sess-1")
	<-ch // subscription snapshot

	r.Evict("sess-1")
	for snap := range ch {
		require.False(t, snap.Done)
	}
	require.Equal(t, 0, r.Len())
	_, err := r.Peek("sess-1")
	require.ErrorIs(t, err, ErrUnknownSession)
}

func TestSweepEvictsCompletedAfterGrace(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	r := newTestRegistry(t, clk)
	require.NoError(t, r.Create("sess-1", 1))
	r.Advance("sess-1")
	r.Complete("sess-1")

	clk.Add(2 * time.Minute)
	require.Eventually(t, func() bool {
		return r.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestSweepEvictsAbandonedAfterMaxAge(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	r := newTestRegistry(t, clk)
	require.NoError(t, r.Create("sess-1", 100))
	r.Advance("sess-1") // never completes

	clk.Add(31 * time.Minute)
	require.Eventually(t, func() bool {
		return r.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestSessionIDReusableAfterEviction(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, nil)
	require.NoError(t, r.Create("sess-1", 1))
	r.Evict("sess-1")
	require.NoError(t, r.Create("sess-1", 2))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
