package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is the in-process Store implementation. All server roles in one
// process share a single MemStore; subscription fan-out is the only channel
// between them.
type MemStore struct {
	mu     sync.RWMutex
	root   map[string]any
	subs   map[int]*subscriber
	nextID int
	seq    int64
	closed bool
}

func NewMemStore() *MemStore {
	return &MemStore{
		root: make(map[string]any),
		subs: make(map[int]*subscriber),
	}
}

type subscriber struct {
	path   []string
	fn     func(any)
	signal chan struct{}
	done   chan struct{}
	stop   sync.Once
}

// halt ends the delivery goroutine. Both the unsubscribe func and Close
// reach this, in either order.
func (s *subscriber) halt() {
	s.stop.Do(func() { close(s.done) })
}

func splitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, fmt.Errorf("empty path")
	}
	segs := strings.Split(trimmed, "/")
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("invalid path %q", path)
		}
	}
	return segs, nil
}

// normalize round-trips a value through JSON so the tree only ever holds
// map[string]any, []any, string, float64, bool.
func normalize(value any) (any, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func deepCopy(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, c := range v {
			out[k] = deepCopy(c)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, c := range v {
			out[i] = deepCopy(c)
		}
		return out
	default:
		return v
	}
}

func (m *MemStore) Write(ctx context.Context, path string, value any) error {
	if value == nil {
		return m.Delete(ctx, path)
	}
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	norm, err := normalize(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	node := m.root
	for _, seg := range segs[:len(segs)-1] {
		child, ok := node[seg].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[seg] = child
		}
		node = child
	}
	node[segs[len(segs)-1]] = norm
	m.mu.Unlock()

	m.notify(segs)
	return nil
}

func (m *MemStore) ReadOnce(ctx context.Context, path string) (any, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return deepCopy(m.lookup(segs)), nil
}

func (m *MemStore) Delete(ctx context.Context, path string) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.deleteLocked(segs)
	m.mu.Unlock()

	m.notify(segs)
	return nil
}

// deleteLocked removes the subtree at segs and prunes emptied parents so an
// absent path reads as nil rather than an empty map.
func (m *MemStore) deleteLocked(segs []string) {
	parents := make([]map[string]any, 0, len(segs))
	node := m.root
	for _, seg := range segs[:len(segs)-1] {
		parents = append(parents, node)
		child, ok := node[seg].(map[string]any)
		if !ok {
			return
		}
		node = child
	}
	delete(node, segs[len(segs)-1])
	for i := len(parents) - 1; i >= 0; i-- {
		if len(node) > 0 {
			break
		}
		delete(parents[i], segs[i])
		node = parents[i]
	}
}

func (m *MemStore) lookup(segs []string) any {
	var cur any = m.root
	for _, seg := range segs {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = node[seg]
		if !ok {
			return nil
		}
	}
	return cur
}

func (m *MemStore) Subscribe(path string, fn func(snapshot any)) (func(), error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	sub := &subscriber{
		path:   segs,
		fn:     fn,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	id := m.nextID
	m.nextID++
	m.subs[id] = sub
	m.mu.Unlock()

	go sub.run(m)
	sub.wake()

	unsubscribe := func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
		sub.halt()
	}
	return unsubscribe, nil
}

// run delivers snapshots one at a time per subscriber. A wake that arrives
// while a callback is in flight collapses into the next delivery, which is
// where snapshot coalescing comes from.
func (s *subscriber) run(m *MemStore) {
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}
		m.mu.RLock()
		snap := deepCopy(m.lookup(s.path))
		m.mu.RUnlock()
		s.fn(snap)
	}
}

func (s *subscriber) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (m *MemStore) notify(changed []string) {
	m.mu.RLock()
	for _, sub := range m.subs {
		if pathsOverlap(sub.path, changed) {
			sub.wake()
		}
	}
	m.mu.RUnlock()
}

// pathsOverlap reports whether one path is a prefix of the other, i.e. a
// change at one affects a watcher of the other.
func pathsOverlap(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// PushKey returns a key that sorts by allocation order: a zero-padded base36
// nanosecond timestamp, a process-wide sequence, and a random suffix.
func (m *MemStore) PushKey(path string) string {
	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.mu.Unlock()

	ts := strconv.FormatInt(time.Now().UnixNano(), 36)
	return fmt.Sprintf("%013s%08d-%s", ts, seq, uuid.NewString()[:8])
}

// Close shuts the store down. Subsequent operations fail with ErrClosed.
func (m *MemStore) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	subs := m.subs
	m.subs = make(map[int]*subscriber)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.halt()
	}
}

func (m *MemStore) NewHandle() Handle {
	return &memHandle{store: m}
}

type memHandle struct {
	store    *MemStore
	mu       sync.Mutex
	cleanups []string
	fired    bool
}

func (h *memHandle) RegisterCleanup(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fired {
		return
	}
	h.cleanups = append(h.cleanups, path)
}

func (h *memHandle) Disconnect() {
	h.mu.Lock()
	if h.fired {
		h.mu.Unlock()
		return
	}
	h.fired = true
	cleanups := h.cleanups
	h.mu.Unlock()

	for _, path := range cleanups {
		// Best effort: the room may already be gone.
		_ = h.store.Delete(context.Background(), path)
	}
}
