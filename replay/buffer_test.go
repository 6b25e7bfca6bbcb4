package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/levysystems/agentarmy/bus"
	"github.com/levysystems/agentarmy/internal/testutil"
)

func event(agentID string, eventType bus.EventType) bus.Event {
	return testutil.NewEventBuilder().Agent(agentID).Type(eventType).Build()
}

func TestRecordAndLen(t *testing.T) {
	b := NewBuffer(10)

	assert.Equal(t, 0, b.Len())
	b.Record(event("a", bus.EventAction))
	b.Record(event("a", bus.EventResult))
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, 10, b.Capacity())
}

func TestCapacityLawFIFO(t *testing.T) {
	b := NewBuffer(3)

	for i := 0; i < 5; i++ {
		b.Record(event("a", bus.EventAction))
	}

	assert.Equal(t, 3, b.Len(), "length never exceeds capacity")

	snap := b.Snapshot()
	require.Len(t, snap, 3)
	// Oldest-first; records 1 and 2 were evicted.
	assert.Equal(t, uint64(3), snap[0].Seq)
	assert.Equal(t, uint64(4), snap[1].Seq)
	assert.Equal(t, uint64(5), snap[2].Seq)
}

func TestSample(t *testing.T) {
	b := NewBuffer(10)
	for i := 0; i < 6; i++ {
		b.Record(event("a", bus.EventAction))
	}

	assert.Nil(t, b.Sample(0))
	assert.Nil(t, b.Sample(-1))

	sample := b.Sample(4)
	require.Len(t, sample, 4)

	// Without replacement: no record appears twice.
	seen := make(map[uint64]bool)
	for _, rec := range sample {
		assert.False(t, seen[rec.Seq])
		seen[rec.Seq] = true
	}

	// Oversized batch returns everything.
	assert.Len(t, b.Sample(100), 6)
}

func TestStats(t *testing.T) {
	b := NewBuffer(10)
	b.Record(event("alpha", bus.EventAction))
	b.Record(event("alpha", bus.EventResult))
	b.Record(event("beta", bus.EventError))
	b.Record(event("beta", bus.EventError))

	stats := b.Stats()
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.ByType[bus.EventAction])
	assert.Equal(t, 2, stats.ByType[bus.EventError])
	assert.Equal(t, 2, stats.ByAgent["alpha"])
	assert.Equal(t, 2, stats.ByAgent["beta"])
}

func TestStatsReflectEviction(t *testing.T) {
	b := NewBuffer(2)
	b.Record(event("old", bus.EventAction))
	b.Record(event("new", bus.EventAction))
	b.Record(event("new", bus.EventAction))

	stats := b.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Zero(t, stats.ByAgent["old"], "evicted records drop out of the stats")
	assert.Equal(t, 2, stats.ByAgent["new"])
}

func TestSubscriberFeedsBufferFromBus(t *testing.T) {
	b := NewBuffer(10)
	eventBus := bus.New()
	eventBus.SubscribeAll(b.Subscriber())

	eventBus.Publish(bus.NewEvent("a", bus.EventAction, nil))
	eventBus.Publish(bus.NewEvent("a", bus.EventError, nil))

	assert.Equal(t, 2, b.Len())

	snap := b.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, bus.EventAction, snap[0].Event.Type)
	assert.Equal(t, uint64(1), snap[0].Event.Seq, "the recorded event carries the bus-assigned stamp")
}
