package eventbus

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type testEvent struct{ N int }
type otherEvent struct{ S string }

func TestPublishReachesSubscribersInOrder(t *testing.T) {
	Use(New())
	defer Use(nil)

	var got []string
	Subscribe(func(ctx context.Context, e testEvent) { got = append(got, "first") })
	Subscribe(func(ctx context.Context, e testEvent) { got = append(got, "second") })

	Publish(context.Background(), testEvent{N: 1})

	if diff := cmp.Diff([]string{"first", "second"}, got); diff != "" {
		t.Fatalf("dispatch order mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchIsTypeScoped(t *testing.T) {
	Use(New())
	defer Use(nil)

	var events, others int
	Subscribe(func(ctx context.Context, e testEvent) { events++ })
	Subscribe(func(ctx context.Context, e otherEvent) { others++ })

	Publish(context.Background(), testEvent{})
	Publish(context.Background(), testEvent{})
	Publish(context.Background(), otherEvent{})

	require.Equal(t, 2, events)
	require.Equal(t, 1, others)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	Use(New())
	defer Use(nil)

	var n int
	unsub := Subscribe(func(ctx context.Context, e testEvent) { n++ })
	Publish(context.Background(), testEvent{})
	unsub()
	Publish(context.Background(), testEvent{})

	require.Equal(t, 1, n)
}

func TestPanickingSubscriberDoesNotStopDispatch(t *testing.T) {
	Use(New())
	defer Use(nil)

	var reached bool
	Subscribe(func(ctx context.Context, e testEvent) { panic("broken sink") })
	Subscribe(func(ctx context.Context, e testEvent) { reached = true })

	Publish(context.Background(), testEvent{})
	require.True(t, reached)
}

func TestNilBusDropsEvents(t *testing.T) {
	Use(nil)
	Publish(context.Background(), testEvent{})
	unsub := Subscribe(func(ctx context.Context, e testEvent) { t.Fatal("must not fire") })
	unsub()
}
