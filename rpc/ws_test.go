package rpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"memepod/core/types"
)

func TestHubFiltersByPodAndType(t *testing.T) {
	hub := NewHub(nil)
	all, ok := hub.subscribe("", "")
	require.True(t, ok)
	podOnly, ok := hub.subscribe("P1", "")
	require.True(t, ok)
	buysOnly, ok := hub.subscribe("", "pod.buy")
	require.True(t, ok)

	require.NoError(t, hub.Publish(context.Background(), []*types.Event{
		{Type: "pod.create", Attributes: map[string]string{"pod": "P1"}},
		{Type: "pod.buy", Attributes: map[string]string{"pod": "P2"}},
	}))

	require.Len(t, all.ch, 2)
	require.Len(t, podOnly.ch, 1)
	require.Equal(t, "pod.create", (<-podOnly.ch).Type)
	require.Len(t, buysOnly.ch, 1)
	require.Equal(t, "P2", (<-buysOnly.ch).Attributes["pod"])
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewHub(nil)
	sub, ok := hub.subscribe("", "")
	require.True(t, ok)

	batch := make([]*types.Event, subscriberBacklog+1)
	for i := range batch {
		batch[i] = &types.Event{Type: "token.transfer", Attributes: map[string]string{}}
	}
	require.NoError(t, hub.Publish(context.Background(), batch))
	require.Zero(t, hub.Subscribers())

	drained := 0
	for range sub.ch {
		drained++
	}
	require.Equal(t, subscriberBacklog, drained)
}

func TestHubCloseRejectsNewSubscribers(t *testing.T) {
	hub := NewHub(nil)
	sub, ok := hub.subscribe("", "")
	require.True(t, ok)
	hub.Close()

	_, open := <-sub.ch
	require.False(t, open)
	_, ok = hub.subscribe("", "")
	require.False(t, ok)
	hub.unsubscribe(sub)
}
