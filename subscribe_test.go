package mqttc

import (
	"fmt"
	"testing"
	"time"

	"github.com/mmarban/mqttc/internal/packets"
)

func TestSubscribeSendsPacket(t *testing.T) {
	c := &Client{
		opts:          defaultOptions("tcp://localhost:1883"),
		subscriptions: make(map[string]subscriptionEntry),
		outgoing:      make(chan packets.Packet, 1),
		pending:       make(map[uint16]*pendingOp),
		stop:          make(chan struct{}),
	}

	topic := "test/topic"
	handler := func(c *Client, msg Message) {}

	token := c.Subscribe(topic, 1, handler)

	select {
	case p := <-c.outgoing:
		req, ok := p.(*packets.SubscribePacket)
		if !ok {
			t.Fatalf("expected SubscribePacket, got %T", p)
		}
		if len(req.Subscriptions) != 1 || req.Subscriptions[0].TopicFilter != topic {
			t.Errorf("request topic mismatch: %v", req.Subscriptions)
		}
		if op, ok := c.pending[req.PacketID]; !ok {
			t.Error("pending op not found")
		} else if op.token != token {
			t.Error("token mismatch")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for subscribe packet")
	}

	// Handler registered before SUBACK arrives
	if _, ok := c.subscriptions[topic]; !ok {
		t.Error("subscription should be registered immediately")
	}

	// Invalid filter fails synchronously
	token = c.Subscribe("#/invalid", 1, handler)
	select {
	case <-token.Done():
		if token.Error() == nil {
			t.Error("expected error for invalid topic filter")
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for invalid topic token completion")
	}
}

func TestUnsubscribeSendsPacket(t *testing.T) {
	c := &Client{
		opts: defaultOptions("tcp://localhost:1883"),
		subscriptions: map[string]subscriptionEntry{
			"test/topic": {qos: 1},
		},
		outgoing: make(chan packets.Packet, 1),
		pending:  make(map[uint16]*pendingOp),
		stop:     make(chan struct{}),
	}

	token := c.Unsubscribe("test/topic")

	select {
	case p := <-c.outgoing:
		req, ok := p.(*packets.UnsubscribePacket)
		if !ok {
			t.Fatalf("expected UnsubscribePacket, got %T", p)
		}
		if len(req.TopicFilters) != 1 || req.TopicFilters[0] != "test/topic" {
			t.Errorf("request topic mismatch: %v", req.TopicFilters)
		}
		if op, ok := c.pending[req.PacketID]; !ok {
			t.Error("pending op not found")
		} else if op.token != token {
			t.Error("token mismatch")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for unsubscribe packet")
	}

	// Local registration removed right away
	if _, ok := c.subscriptions["test/topic"]; ok {
		t.Error("subscription should be removed immediately")
	}
}

func TestUnsubscribeNoTopics(t *testing.T) {
	c := &Client{opts: defaultOptions("tcp://localhost:1883")}

	token := c.Unsubscribe()
	select {
	case <-token.Done():
		if token.Error() != nil {
			t.Errorf("empty unsubscribe should be a no-op, got %v", token.Error())
		}
	default:
		t.Error("empty unsubscribe should complete immediately")
	}
}

func TestResubscribeBatching(t *testing.T) {
	tests := []struct {
		name            string
		numTopics       int
		expectedBatches int
	}{
		{"no subscriptions", 0, 0},
		{"single topic", 1, 1},
		{"exactly one batch", 100, 1},
		{"two batches", 150, 2},
		{"partial last batch", 250, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{
				subscriptions: make(map[string]subscriptionEntry),
				pending:       make(map[uint16]*pendingOp),
				outgoing:      make(chan packets.Packet, 100),
				stop:          make(chan struct{}),
				opts:          defaultOptions("tcp://test:1883"),
			}

			for i := 0; i < tt.numTopics; i++ {
				c.subscriptions[fmt.Sprintf("test/topic/%d", i)] =
					subscriptionEntry{handler: func(*Client, Message) {}, qos: 1}
			}

			c.resubscribeAll()

			actualBatches := len(c.outgoing)
			if actualBatches != tt.expectedBatches {
				t.Fatalf("expected %d batches, got %d", tt.expectedBatches, actualBatches)
			}

			totalTopics := 0
			seenIDs := make(map[uint16]bool)
			for i := 0; i < actualBatches; i++ {
				pkt := <-c.outgoing
				subPkt, ok := pkt.(*packets.SubscribePacket)
				if !ok {
					t.Fatalf("expected SubscribePacket, got %T", pkt)
				}
				if subPkt.PacketID == 0 {
					t.Error("packet ID should not be 0")
				}
				if seenIDs[subPkt.PacketID] {
					t.Errorf("duplicate packet ID %d", subPkt.PacketID)
				}
				seenIDs[subPkt.PacketID] = true

				if len(subPkt.Subscriptions) > 100 {
					t.Errorf("batch exceeds 100 topics: %d", len(subPkt.Subscriptions))
				}
				totalTopics += len(subPkt.Subscriptions)
			}

			if totalTopics != tt.numTopics {
				t.Errorf("total topics mismatch: expected %d, got %d", tt.numTopics, totalTopics)
			}
			if len(c.pending) != tt.expectedBatches {
				t.Errorf("expected %d pending operations, got %d", tt.expectedBatches, len(c.pending))
			}
		})
	}
}
