package session

import (
	"context"
	"sync"
	"time"
)

// cachedStore is a read-through decorator over another Store. Gets are
// served from an LRU with per-entry TTL; every write invalidates the cached
// entry so a follow-up read sees the stored state.
type cachedStore struct {
	inner Store

	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*cacheEntry
	head     *cacheEntry
	tail     *cacheEntry
}

type cacheEntry struct {
	key       string
	sess      *Session
	expiresAt time.Time
	prev      *cacheEntry
	next      *cacheEntry
}

var _ Store = (*cachedStore)(nil)

func newCachedStore(inner Store, capacity int, ttl time.Duration) *cachedStore {
	return &cachedStore{
		inner:    inner,
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*cacheEntry, capacity),
	}
}

func (c *cachedStore) Create(ctx context.Context, s *Session) error {
	if err := c.inner.Create(ctx, s); err != nil {
		return err
	}
	c.put(s.ID, s)
	return nil
}

func (c *cachedStore) Get(ctx context.Context, id string) (*Session, error) {
	if s := c.lookup(id); s != nil {
		return s, nil
	}

	s, err := c.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.put(id, s)
	return s, nil
}

func (c *cachedStore) Patch(ctx context.Context, id string, p Patch) error {
	if err := c.inner.Patch(ctx, id, p); err != nil {
		return err
	}
	c.invalidate(id)
	return nil
}

func (c *cachedStore) TransitionStatus(ctx context.Context, id string, from, to Status) error {
	if err := c.inner.TransitionStatus(ctx, id, from, to); err != nil {
		return err
	}
	c.invalidate(id)
	return nil
}

func (c *cachedStore) Close() error {
	c.mu.Lock()
	c.items = make(map[string]*cacheEntry)
	c.head, c.tail = nil, nil
	c.mu.Unlock()
	return c.inner.Close()
}

// lookup returns a clone of the cached session, or nil on miss or expiry.
func (c *cachedStore) lookup(id string) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[id]
	if !ok {
		return nil
	}
	if c.ttl > 0 && time.Now().After(e.expiresAt) {
		c.remove(e)
		return nil
	}
	c.moveToFront(e)
	return e.sess.Clone()
}

func (c *cachedStore) put(id string, s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[id]; ok {
		e.sess = s.Clone()
		e.expiresAt = time.Now().Add(c.ttl)
		c.moveToFront(e)
		return
	}

	e := &cacheEntry{key: id, sess: s.Clone(), expiresAt: time.Now().Add(c.ttl)}
	c.items[id] = e
	c.pushFront(e)

	for len(c.items) > c.capacity && c.tail != nil {
		c.remove(c.tail)
	}
}

func (c *cachedStore) invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[id]; ok {
		c.remove(e)
	}
}

func (c *cachedStore) pushFront(e *cacheEntry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *cachedStore) moveToFront(e *cacheEntry) {
	if c.head == e {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *cachedStore) remove(e *cacheEntry) {
	c.unlink(e)
	delete(c.items, e.key)
}

func (c *cachedStore) unlink(e *cacheEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else if c.head == e {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else if c.tail == e {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}
