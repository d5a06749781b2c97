package store

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadDelete(t *testing.T) {
	m := NewMemStore()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Write(ctx, "rooms/123456", map[string]any{"status": "waiting"}))

	snap, err := m.ReadOnce(ctx, "rooms/123456/status")
	require.NoError(t, err)
	assert.Equal(t, "waiting", snap)

	// Overwrite a nested leaf without touching siblings.
	require.NoError(t, m.Write(ctx, "rooms/123456/status", "active"))
	snap, err = m.ReadOnce(ctx, "rooms/123456")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"status": "active"}, snap)

	require.NoError(t, m.Delete(ctx, "rooms/123456"))
	snap, err = m.ReadOnce(ctx, "rooms/123456")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestReadAbsentPath(t *testing.T) {
	m := NewMemStore()
	defer m.Close()

	snap, err := m.ReadOnce(context.Background(), "rooms/999999")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestWriteNormalizesStructs(t *testing.T) {
	m := NewMemStore()
	defer m.Close()
	ctx := context.Background()

	type record struct {
		Nickname string `json:"nickname"`
		JoinedAt int64  `json:"joinedAt"`
	}
	require.NoError(t, m.Write(ctx, "rooms/123456/participants/p1", record{Nickname: "Kim", JoinedAt: 42}))

	snap, err := m.ReadOnce(ctx, "rooms/123456/participants/p1")
	require.NoError(t, err)

	var got record
	require.NoError(t, Decode(snap, &got))
	assert.Equal(t, record{Nickname: "Kim", JoinedAt: 42}, got)
}

func TestDeletePrunesEmptyParents(t *testing.T) {
	m := NewMemStore()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Write(ctx, "rooms/123456/participants/p1/nickname", "Kim"))
	require.NoError(t, m.Delete(ctx, "rooms/123456/participants/p1"))

	snap, err := m.ReadOnce(ctx, "rooms/123456")
	require.NoError(t, err)
	assert.Nil(t, snap, "emptied parents should read as absent")
}

func TestInvalidPaths(t *testing.T) {
	m := NewMemStore()
	defer m.Close()
	ctx := context.Background()

	assert.Error(t, m.Write(ctx, "", "x"))
	assert.Error(t, m.Write(ctx, "rooms//123456", "x"))
	_, err := m.ReadOnce(ctx, "/")
	assert.Error(t, err)
}

func TestSubscribeDeliversImmediatelyAndOnChange(t *testing.T) {
	m := NewMemStore()
	defer m.Close()
	ctx := context.Background()
	require.NoError(t, m.Write(ctx, "rooms/123456/status", "waiting"))

	var mu sync.Mutex
	var seen []any
	unsub, err := m.Subscribe("rooms/123456/status", func(snap any) {
		mu.Lock()
		seen = append(seen, snap)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer unsub()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 1 && seen[0] == "waiting"
	}, time.Second, 5*time.Millisecond, "initial snapshot must be delivered")

	require.NoError(t, m.Write(ctx, "rooms/123456/status", "active"))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen[len(seen)-1] == "active"
	}, time.Second, 5*time.Millisecond)
}

func TestSubscribeSeesAncestorAndDescendantWrites(t *testing.T) {
	m := NewMemStore()
	defer m.Close()
	ctx := context.Background()

	var mu sync.Mutex
	var last any
	unsub, err := m.Subscribe("rooms/123456", func(snap any) {
		mu.Lock()
		last = snap
		mu.Unlock()
	})
	require.NoError(t, err)
	defer unsub()

	// Descendant write wakes an ancestor watcher.
	require.NoError(t, m.Write(ctx, "rooms/123456/scores/p1", map[string]any{"total": 10}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		room, ok := last.(map[string]any)
		return ok && room["scores"] != nil
	}, time.Second, 5*time.Millisecond)

	// Ancestor delete wakes it too, with a nil snapshot.
	require.NoError(t, m.Delete(ctx, "rooms/123456"))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last == nil
	}, time.Second, 5*time.Millisecond)
}

func TestSubscribeCoalescesFastWrites(t *testing.T) {
	m := NewMemStore()
	defer m.Close()
	ctx := context.Background()

	var mu sync.Mutex
	var calls int
	var last any
	block := make(chan struct{})
	first := true
	unsub, err := m.Subscribe("rooms/123456/n", func(snap any) {
		if first {
			first = false
			<-block // hold the delivery goroutine so writes pile up
		}
		mu.Lock()
		calls++
		last = snap
		mu.Unlock()
	})
	require.NoError(t, err)
	defer unsub()

	for i := 0; i < 50; i++ {
		require.NoError(t, m.Write(ctx, "rooms/123456/n", i))
	}
	close(block)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last == float64(49)
	}, time.Second, 5*time.Millisecond, "latest snapshot must always arrive")

	mu.Lock()
	defer mu.Unlock()
	assert.Less(t, calls, 51, "fast writes should coalesce into fewer deliveries")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	m := NewMemStore()
	defer m.Close()
	ctx := context.Background()

	var mu sync.Mutex
	var calls int
	unsub, err := m.Subscribe("rooms/123456", func(any) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 1
	}, time.Second, 5*time.Millisecond)

	unsub()
	mu.Lock()
	before := calls
	mu.Unlock()

	require.NoError(t, m.Write(ctx, "rooms/123456/status", "active"))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, before, calls)
}

func TestPushKeysOrderedAndUnique(t *testing.T) {
	m := NewMemStore()
	defer m.Close()

	keys := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		keys = append(keys, m.PushKey("rooms/123456/answers"))
	}

	uniq := make(map[string]bool, len(keys))
	for _, k := range keys {
		uniq[k] = true
	}
	assert.Len(t, uniq, len(keys))
	assert.True(t, sort.StringsAreSorted(keys), "push keys must sort by creation order")
}

func TestHandleDisconnectDeletesRegisteredPaths(t *testing.T) {
	m := NewMemStore()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Write(ctx, "rooms/123456/participants/p1", map[string]any{"nickname": "Kim"}))
	require.NoError(t, m.Write(ctx, "rooms/123456/participants/p2", map[string]any{"nickname": "Lee"}))

	h := m.NewHandle()
	h.RegisterCleanup("rooms/123456/participants/p1")
	h.Disconnect()
	h.Disconnect() // second disconnect is a no-op

	p1, err := m.ReadOnce(ctx, "rooms/123456/participants/p1")
	require.NoError(t, err)
	assert.Nil(t, p1)

	p2, err := m.ReadOnce(ctx, "rooms/123456/participants/p2")
	require.NoError(t, err)
	assert.NotNil(t, p2)
}

func TestClosedStoreFailsOperations(t *testing.T) {
	m := NewMemStore()
	m.Close()
	ctx := context.Background()

	assert.ErrorIs(t, m.Write(ctx, "rooms/123456", "x"), ErrClosed)
	_, err := m.ReadOnce(ctx, "rooms/123456")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Delete(ctx, "rooms/123456"), ErrClosed)
	_, err = m.Subscribe("rooms/123456", func(any) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestUnsubscribeAfterCloseIsSafe(t *testing.T) {
	m := NewMemStore()

	unsub, err := m.Subscribe("rooms/123456", func(any) {})
	require.NoError(t, err)

	// Session teardown and store shutdown race in either order; both
	// sides releasing the same subscription must not panic.
	m.Close()
	assert.NotPanics(t, func() { unsub() })
	assert.NotPanics(t, func() { unsub() })

	m2 := NewMemStore()
	unsub2, err := m2.Subscribe("rooms/123456", func(any) {})
	require.NoError(t, err)
	unsub2()
	assert.NotPanics(t, m2.Close)
}
