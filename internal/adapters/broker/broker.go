// Package broker is an in-process pub/sub for scoreboard snapshots.
package broker

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/okian/biggame/pkg/metrics"
)

const defaultBuffer = 16

// Event is one JSON-encoded message for subscribers.
type Event struct {
	Seq  uint64
	Kind string
	Data []byte
}

// Broker fans events out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event. Events with a sequence
// number not newer than the last published one are dropped.
type Broker struct {
	mu      sync.RWMutex
	subs    map[chan Event]string
	lastSeq uint64
	buffer  int
}

// Option configures a Broker.
type Option func(*Broker)

// WithBuffer sets the per-subscriber channel buffer.
func WithBuffer(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.buffer = n
		}
	}
}

func New(opts ...Option) *Broker {
	b := &Broker{
		subs:   make(map[chan Event]string),
		buffer: defaultBuffer,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe returns a channel receiving future events. transport labels the
// subscriber in metrics ("sse", "ws").
func (b *Broker) Subscribe(transport string) chan Event {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	b.subs[ch] = transport
	n := b.countLocked(transport)
	b.mu.Unlock()
	metrics.UpdateSubscribers(transport, n)
	return ch
}

// Unsubscribe removes ch. It is safe to call more than once.
func (b *Broker) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	transport, ok := b.subs[ch]
	delete(b.subs, ch)
	n := b.countLocked(transport)
	b.mu.Unlock()
	if ok {
		metrics.UpdateSubscribers(transport, n)
	}
}

// Publish encodes payload and sends it to every subscriber. It reports
// whether the event was delivered to the fan-out (false for stale seq).
func (b *Broker) Publish(seq uint64, kind string, payload any) (bool, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("encode %s event: %w", kind, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if seq <= b.lastSeq {
		return false, nil
	}
	b.lastSeq = seq

	ev := Event{Seq: seq, Kind: kind, Data: data}
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Drop if subscriber is slow.
		}
	}
	return true, nil
}

// Subscribers returns the number of live subscribers.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broker) countLocked(transport string) int {
	n := 0
	for _, t := range b.subs {
		if t == transport {
			n++
		}
	}
	return n
}
