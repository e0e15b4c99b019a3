package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newTestClient(topics ...string) *Client {
	return &Client{
		ID:     uuid.New().String(),
		Topics: topics,
		Send:   make(chan []byte, 4),
	}
}

func TestPublishDeliversToSubscriber(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	doctorID := uuid.New()
	topic := DoctorTopic(doctorID)

	client := newTestClient(topic)
	hub.Register(client)
	defer hub.Unregister(client)

	event := Event{
		Type:      "visit.scheduled",
		Topic:     topic,
		Timestamp: time.Now().UTC(),
		Data:      json.RawMessage(`{"notes":"rounds"}`),
	}
	if err := hub.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case raw := <-client.Send:
		var got Event
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("unmarshal delivered event: %v", err)
		}
		if got.Type != "visit.scheduled" || got.Topic != topic {
			t.Errorf("delivered = %+v", got)
		}
	default:
		t.Fatal("no event delivered")
	}
}

func TestPublishNoSubscriberIsSilent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	err := hub.Publish(context.Background(), Event{Type: "x", Topic: "doctor:none"})
	if err != nil {
		t.Fatalf("publish must never error: %v", err)
	}
}

func TestPublishFullBufferDoesNotBlock(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := &Client{ID: "slow", Topics: []string{"t"}, Send: make(chan []byte)} // no buffer, no reader
	hub.Register(client)
	defer hub.Unregister(client)

	done := make(chan struct{})
	go func() {
		_ = hub.Publish(context.Background(), Event{Type: "x", Topic: "t"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newTestClient()
	hub.Register(client)
	defer hub.Unregister(client)

	hub.ProcessMessage(client, ClientMessage{Action: "subscribe", Topics: []string{"a", "b"}})
	if hub.TopicCount("a") != 1 || hub.TopicCount("b") != 1 {
		t.Errorf("subscription counts a=%d b=%d, want 1/1", hub.TopicCount("a"), hub.TopicCount("b"))
	}

	hub.ProcessMessage(client, ClientMessage{Action: "unsubscribe", Topics: []string{"a"}})
	if hub.TopicCount("a") != 0 {
		t.Errorf("topic a count = %d after unsubscribe, want 0", hub.TopicCount("a"))
	}
	if hub.TopicCount("b") != 1 {
		t.Errorf("topic b count = %d, want 1", hub.TopicCount("b"))
	}
}

func TestUnregisterClosesAndCleansUp(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newTestClient("t")
	hub.Register(client)

	if hub.ClientCount() != 1 {
		t.Fatalf("client count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Errorf("client count = %d after unregister, want 0", hub.ClientCount())
	}
	if hub.TopicCount("t") != 0 {
		t.Errorf("topic count = %d after unregister, want 0", hub.TopicCount("t"))
	}
	if _, open := <-client.Send; open {
		t.Error("send channel not closed")
	}

	// Double unregister is a no-op.
	hub.Unregister(client)
}
