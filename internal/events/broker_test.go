package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/toolgate/toolgate/pkg/types"
)

func TestBrokerDeliversToSessionSubscribers(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("s1", 4)
	defer b.Unsubscribe("s1", ch)

	b.Publish(types.Event{Type: "decision", SessionID: "s1"})
	b.Publish(types.Event{Type: "decision", SessionID: "other"})

	select {
	case ev := <-ch:
		require.Equal(t, "s1", ev.SessionID)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected cross-session event %+v", ev)
	default:
	}
}

func TestBrokerFirehose(t *testing.T) {
	b := NewBroker()
	all := b.Subscribe("", 4)
	defer b.Unsubscribe("", all)

	b.Publish(types.Event{Type: "a", SessionID: "s1"})
	b.Publish(types.Event{Type: "b", SessionID: "s2"})
	b.Publish(types.Event{Type: "c"})

	got := map[string]bool{}
	for i := 0; i < 3; i++ {
		select {
		case ev := <-all:
			got[ev.Type] = true
		case <-time.After(time.Second):
			t.Fatal("missing firehose event")
		}
	}
	require.True(t, got["a"] && got["b"] && got["c"])
}

func TestBrokerDropsOnSlowSubscriber(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("s1", 1)
	defer b.Unsubscribe("s1", ch)

	b.Publish(types.Event{Type: "one", SessionID: "s1"})
	b.Publish(types.Event{Type: "two", SessionID: "s1"})

	require.Equal(t, int64(1), b.DroppedCount())
}
