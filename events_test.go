package arbor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventBusDispatchesInRegistrationOrder(t *testing.T) {
	b := newEventBus()
	var order []string
	b.subscribe(EventState, func(Event) { order = append(order, "first") })
	b.subscribe(EventState, func(Event) { order = append(order, "second") })

	b.publish(Event{Kind: EventState})
	require.Equal(t, []string{"first", "second"}, order)
}

func TestEventBusOnlyDispatchesMatchingKind(t *testing.T) {
	b := newEventBus()
	var stateCount, linkCount int
	b.subscribe(EventState, func(Event) { stateCount++ })
	b.subscribe(EventLink, func(Event) { linkCount++ })

	b.publish(Event{Kind: EventState})
	require.Equal(t, 1, stateCount)
	require.Equal(t, 0, linkCount)
}

func TestEventBusUnsubscribeStopsFutureDelivery(t *testing.T) {
	b := newEventBus()
	count := 0
	unsubscribe := b.subscribe(EventState, func(Event) { count++ })

	b.publish(Event{Kind: EventState})
	require.Equal(t, 1, count)

	unsubscribe()
	b.publish(Event{Kind: EventState})
	require.Equal(t, 1, count)

	unsubscribe() // second call is a no-op, not a panic
}

func TestEventKindString(t *testing.T) {
	require.Equal(t, "state", EventState.String())
	require.Equal(t, "link", EventLink.String())
	require.Equal(t, "unlink", EventUnlink.String())
	require.Equal(t, "unknown", EventKind(99).String())
}
