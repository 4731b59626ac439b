// Package dedupe remembers client request ids so a retried placement is
// answered with its first outcome instead of toggling the slot back.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/okian/biggame/internal/domain/model"
)

// Deduper records request ids together with the outcome they produced.
type Deduper interface {
	// Lookup returns the outcome recorded for id, if any.
	Lookup(ctx context.Context, id string) (model.Outcome, bool)

	// Record stores outcome for id. Recording an existing id is a no-op.
	Record(ctx context.Context, id string, outcome model.Outcome)

	Size() int64
}

// node is one entry of the insertion-ordered list.
type node struct {
	id      string
	outcome model.Outcome
	prev    *node
	next    *node
}

func (n *node) reset() {
	n.id = ""
	n.outcome = ""
	n.prev = nil
	n.next = nil
}

// inMemoryDeduper keeps ids in insertion order. In bounded mode (maxSize > 0)
// the oldest id is evicted first; otherwise ids are kept forever.
type inMemoryDeduper struct {
	mu       sync.Mutex
	seen     map[string]*node
	head     *node // newest
	tail     *node // oldest
	maxSize  int
	size     atomic.Int64
	nodePool sync.Pool
}

// NewInMemoryDeduper creates a deduper holding up to 1024 ids by default.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 1024,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*node)
	d.nodePool = sync.Pool{
		New: func() any { return &node{} },
	}
	return d
}

func (d *inMemoryDeduper) Lookup(_ context.Context, id string) (model.Outcome, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.seen[id]
	if !ok {
		return "", false
	}
	return n.outcome, true
}

func (d *inMemoryDeduper) Record(_ context.Context, id string, outcome model.Outcome) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; exists {
		return
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}

	n := d.nodePool.Get().(*node)
	n.id = id
	n.outcome = outcome
	n.next = d.head
	if d.head != nil {
		d.head.prev = n
	}
	d.head = n
	if d.tail == nil {
		d.tail = n
	}
	d.seen[id] = n
	d.size.Add(1)
}

// evictOldest drops the tail. Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	n := d.tail
	if n == nil {
		return
	}
	d.tail = n.prev
	if d.tail != nil {
		d.tail.next = nil
	} else {
		d.head = nil
	}
	delete(d.seen, n.id)
	n.reset()
	d.nodePool.Put(n)
	d.size.Add(-1)
}

// Size returns the current number of remembered ids.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
