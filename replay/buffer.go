// Package replay provides the bounded experience store that mirrors bus
// traffic for later sampling and aggregate analysis. The buffer is a strict
// FIFO ring: once capacity is reached the oldest record is evicted on every
// insert, keeping memory bounded under continuous event volume. Records are
// never mutated after insertion.
package replay

import (
	"math/rand/v2"
	"sync"

	"github.com/levysystems/agentarmy/bus"
)

// DefaultCapacity bounds the buffer when no capacity is configured.
const DefaultCapacity = 500

// Record is a stored copy of a published event plus the buffer's own
// insertion sequence number.
type Record struct {
	Seq   uint64    `json:"seq"`
	Event bus.Event `json:"event"`
}

// Stats aggregates current buffer contents. Counts are computed on demand
// from the live contents so eviction can never cause drift.
type Stats struct {
	Total   int                   `json:"total"`
	ByType  map[bus.EventType]int `json:"by_type"`
	ByAgent map[string]int        `json:"by_agent"`
}

// Buffer is a fixed-capacity FIFO ring of experience records. It follows a
// single-writer-appends, multiple-readers-snapshot discipline: readers never
// observe a partially appended record.
type Buffer struct {
	mu       sync.RWMutex
	records  []Record
	head     int // index of the oldest record
	count    int
	capacity int
	seq      uint64
}

// NewBuffer constructs a buffer with the given fixed capacity. Non-positive
// capacities fall back to DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		records:  make([]Record, capacity),
		capacity: capacity,
	}
}

// Record appends an experience for the given event, evicting the oldest
// record first when the buffer is full.
func (b *Buffer) Record(ev bus.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	rec := Record{Seq: b.seq, Event: ev}

	if b.count == b.capacity {
		b.records[b.head] = rec
		b.head = (b.head + 1) % b.capacity
		return
	}

	b.records[(b.head+b.count)%b.capacity] = rec
	b.count++
}

// Subscriber adapts the buffer to a bus handler so it can mirror all bus
// traffic without the bus knowing about it.
func (b *Buffer) Subscriber() bus.Handler {
	return func(ev bus.Event) error {
		b.Record(ev)
		return nil
	}
}

// Sample returns batchSize records chosen uniformly at random without
// replacement from current contents. If batchSize meets or exceeds the
// current size, a copy of all records is returned. Sample never errors and
// never blocks beyond the snapshot read lock.
func (b *Buffer) Sample(batchSize int) []Record {
	snap := b.Snapshot()
	if batchSize <= 0 {
		return nil
	}
	if batchSize >= len(snap) {
		return snap
	}

	out := make([]Record, 0, batchSize)
	for _, i := range rand.Perm(len(snap))[:batchSize] {
		out = append(out, snap[i])
	}
	return out
}

// Stats computes counts by event type and by agent over current contents.
func (b *Buffer) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := Stats{
		Total:   b.count,
		ByType:  make(map[bus.EventType]int),
		ByAgent: make(map[string]int),
	}
	for i := 0; i < b.count; i++ {
		rec := b.records[(b.head+i)%b.capacity]
		s.ByType[rec.Event.Type]++
		s.ByAgent[rec.Event.AgentID]++
	}
	return s
}

// Snapshot returns a copy of current contents in insertion order,
// oldest first.
func (b *Buffer) Snapshot() []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Record, 0, b.count)
	for i := 0; i < b.count; i++ {
		out = append(out, b.records[(b.head+i)%b.capacity])
	}
	return out
}

// Len reports the number of records currently stored.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Capacity reports the fixed configured capacity.
func (b *Buffer) Capacity() int { return b.capacity }
