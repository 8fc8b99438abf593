package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/armory/internal/domain/model"
	"github.com/okian/armory/pkg/metrics"
)

// Default memory store configuration constants.
const (
	defaultMaxEntries = 10000
)

// node is one entry in the insertion-ordered list.
type node struct {
	key       string
	value     model.ProfileDocuments
	expiresAt time.Time
	prev      *node
	next      *node
}

// reset clears the node state for reuse
func (n *node) reset() {
	*n = node{}
}

// MemoryStore is an in-process Store. Entries expire lazily on read and in
// Sweep. When full, an expired entry is evicted first, else the oldest one.
// maxEntries <= 0 means unbounded.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]*node
	head       *node // newest
	tail       *node // oldest
	maxEntries int
	clock      clockwork.Clock
	nodePool   sync.Pool
}

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMaxEntries bounds the number of entries kept.
func WithMaxEntries(n int) MemoryOption {
	return func(s *MemoryStore) {
		s.maxEntries = n
	}
}

// WithClock sets the time source used for expiry.
func WithClock(c clockwork.Clock) MemoryOption {
	return func(s *MemoryStore) {
		if c != nil {
			s.clock = c
		}
	}
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries:    make(map[string]*node),
		maxEntries: defaultMaxEntries,
		clock:      clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.nodePool = sync.Pool{
		New: func() interface{} {
			return &node{}
		},
	}
	return s
}

// Get returns the live entry for key.
func (s *MemoryStore) Get(_ context.Context, key string) (model.ProfileDocuments, bool, error) {
	now := s.clock.Now()

	s.mu.RLock()
	n, ok := s.entries[key]
	if ok && now.Before(n.expiresAt) {
		v := n.value
		s.mu.RUnlock()
		return v, true, nil
	}
	s.mu.RUnlock()

	if ok {
		// Expired: drop it unless it was replaced meanwhile.
		s.mu.Lock()
		if n, ok := s.entries[key]; ok && !now.Before(n.expiresAt) {
			s.remove(n)
			metrics.RecordCacheEvictions(1)
		}
		s.mu.Unlock()
	}
	return model.ProfileDocuments{}, false, nil
}

// Set stores v under key until ttl elapses.
func (s *MemoryStore) Set(_ context.Context, key string, v model.ProfileDocuments, ttl time.Duration) error {
	expiresAt := s.clock.Now().Add(ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.entries[key]; ok {
		s.unlink(n)
		n.value, n.expiresAt = v, expiresAt
		s.pushFront(n)
		return nil
	}

	if s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		s.evictOne()
	}

	n := s.nodePool.Get().(*node)
	n.key, n.value, n.expiresAt = key, v, expiresAt
	s.entries[key] = n
	s.pushFront(n)
	metrics.UpdateCacheEntries(len(s.entries))
	return nil
}

// Delete removes key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.entries[key]; ok {
		s.remove(n)
	}
	return nil
}

// Len returns the number of entries held, including expired ones not yet swept.
func (s *MemoryStore) Len(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Sweep removes every expired entry and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for n := s.tail; n != nil; {
		prev := n.prev
		if !now.Before(n.expiresAt) {
			s.remove(n)
			removed++
		}
		n = prev
	}
	metrics.RecordCacheEvictions(removed)
	metrics.UpdateCacheEntries(len(s.entries))
	return removed
}

// evictOne drops an expired entry if there is one, else the oldest.
// Must be called with s.mu held.
func (s *MemoryStore) evictOne() {
	now := s.clock.Now()
	victim := s.tail
	for n := s.tail; n != nil; n = n.prev {
		if !now.Before(n.expiresAt) {
			victim = n
			break
		}
	}
	if victim != nil {
		s.remove(victim)
		metrics.RecordCacheEvictions(1)
	}
}

// remove unlinks n, deletes it from the map and returns it to the pool.
// Must be called with s.mu held.
func (s *MemoryStore) remove(n *node) {
	s.unlink(n)
	delete(s.entries, n.key)
	n.reset()
	s.nodePool.Put(n)
	metrics.UpdateCacheEntries(len(s.entries))
}

func (s *MemoryStore) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		s.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		s.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (s *MemoryStore) pushFront(n *node) {
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
}
