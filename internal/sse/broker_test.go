package sse

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/openclaw/interview-server-go/internal/redis"
)

func receive(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case event := <-client.Events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestBroker_InProcess(t *testing.T) {
	b := NewBroker(nil)
	defer b.Close()

	first := b.Subscribe()
	second := b.Subscribe()
	assert.Equal(t, 2, b.ClientCount())

	event := Event{Type: "interview_evaluated", Data: []byte(`{"session_id":"s1"}`)}
	require.NoError(t, b.Publish(context.Background(), event))

	assert.Equal(t, event, receive(t, first))
	assert.Equal(t, event, receive(t, second))

	b.Unsubscribe(first)
	b.Unsubscribe(first)
	assert.Equal(t, 1, b.ClientCount())
	select {
	case <-first.Done:
	default:
		t.Fatal("unsubscribed client not closed")
	}
}

func TestBroker_Redis(t *testing.T) {
	srv := miniredis.RunT(t)
	client, err := redisclient.NewClient("redis://" + srv.Addr())
	require.NoError(t, err)
	defer client.Close()

	publisher := NewBroker(client)
	defer publisher.Close()
	subscriber := NewBroker(client)
	defer subscriber.Close()

	sub := subscriber.Subscribe()

	event := Event{Type: "interview_finalize_failed", Data: []byte(`{"session_id":"s2"}`)}
	require.NoError(t, publisher.Publish(context.Background(), event))

	got := receive(t, sub)
	assert.Equal(t, event.Type, got.Type)
	assert.JSONEq(t, string(event.Data), string(got.Data))
}

func TestBroker_CloseReleasesClients(t *testing.T) {
	b := NewBroker(nil)
	client := b.Subscribe()

	b.Close()

	select {
	case <-client.Done:
	default:
		t.Fatal("client not released on close")
	}
	assert.Zero(t, b.ClientCount())
}
