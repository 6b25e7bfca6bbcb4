package bus

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishStampsEvents(t *testing.T) {
	b := New()

	first := b.Publish(NewEvent("agent-1", EventAction, map[string]any{"action": "start"}))
	second := b.Publish(NewEvent("agent-1", EventResult, nil))

	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)
	assert.False(t, first.Timestamp.IsZero())
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, b.Len())
}

func TestSubscribeByType(t *testing.T) {
	b := New()

	var seen []EventType
	b.Subscribe(EventError, func(ev Event) error {
		seen = append(seen, ev.Type)
		return nil
	})

	b.Publish(NewEvent("a", EventAction, nil))
	b.Publish(NewEvent("a", EventError, nil))
	b.Publish(NewEvent("a", EventResult, nil))

	assert.Equal(t, []EventType{EventError}, seen)
}

func TestSubscribeAllSeesEveryType(t *testing.T) {
	b := New()

	var count int
	b.SubscribeAll(func(ev Event) error {
		count++
		return nil
	})

	b.Publish(NewEvent("a", EventAction, nil))
	b.Publish(NewEvent("a", EventError, nil))
	b.Publish(NewEvent("a", EventAssistanceRequest, nil))

	assert.Equal(t, 3, count)
}

func TestSubscribersInvokedInSubscriptionOrder(t *testing.T) {
	b := New()

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		b.Subscribe(EventAction, func(ev Event) error {
			order = append(order, name)
			return nil
		})
	}

	b.Publish(NewEvent("a", EventAction, nil))
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestSubscriberFailuresAreIsolated(t *testing.T) {
	b := New()

	var reached bool
	b.Subscribe(EventAction, func(ev Event) error { return errors.New("handler error") })
	b.Subscribe(EventAction, func(ev Event) error { panic("handler panic") })
	b.Subscribe(EventAction, func(ev Event) error {
		reached = true
		return nil
	})

	assert.NotPanics(t, func() {
		b.Publish(NewEvent("a", EventAction, nil))
	})
	assert.True(t, reached, "later subscribers still run after an earlier failure")
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := New()

	var count int
	id := b.Subscribe(EventAction, func(ev Event) error {
		count++
		return nil
	})

	b.Publish(NewEvent("a", EventAction, nil))
	b.Unsubscribe(id)
	b.Publish(NewEvent("a", EventAction, nil))
	b.Unsubscribe(id)
	b.Unsubscribe("never-existed")

	assert.Equal(t, 1, count)
}

func TestHistoryBoundedFIFO(t *testing.T) {
	b := New(func(o *Options) { o.HistorySize = 3 })

	for i := 0; i < 5; i++ {
		b.Publish(NewEvent("a", EventAction, map[string]any{"i": i}))
	}

	assert.Equal(t, 3, b.Len())

	events := b.History(Filter{})
	require.Len(t, events, 3)
	// Most-recent-first; the two oldest events were evicted.
	assert.Equal(t, uint64(5), events[0].Seq)
	assert.Equal(t, uint64(4), events[1].Seq)
	assert.Equal(t, uint64(3), events[2].Seq)
}

func TestHistoryFilters(t *testing.T) {
	b := New()

	b.Publish(NewEvent("alpha", EventAction, nil))
	b.Publish(NewEvent("beta", EventError, nil))
	b.Publish(NewEvent("alpha", EventError, nil))
	b.Publish(NewEvent("alpha", EventResult, nil))

	byAgent := b.History(Filter{AgentID: "alpha"})
	assert.Len(t, byAgent, 3)

	byType := b.History(Filter{Type: EventError})
	require.Len(t, byType, 2)
	assert.Equal(t, "alpha", byType[0].AgentID, "most recent first")
	assert.Equal(t, "beta", byType[1].AgentID)

	combined := b.History(Filter{Type: EventError, AgentID: "beta"})
	require.Len(t, combined, 1)

	limited := b.History(Filter{Limit: 2})
	require.Len(t, limited, 2)
	assert.Equal(t, uint64(4), limited[0].Seq)
}

func TestPublishSerializesSequence(t *testing.T) {
	b := New()

	done := make(chan struct{})
	for g := 0; g < 4; g++ {
		go func(g int) {
			for i := 0; i < 25; i++ {
				b.Publish(NewEvent(fmt.Sprintf("agent-%d", g), EventAction, nil))
			}
			done <- struct{}{}
		}(g)
	}
	for g := 0; g < 4; g++ {
		<-done
	}

	events := b.History(Filter{})
	require.Len(t, events, 100)
	// Most-recent-first with no gaps or duplicates.
	for i, ev := range events {
		assert.Equal(t, uint64(100-i), ev.Seq)
	}
}
