package mqttc

import (
	"testing"

	"github.com/mmarban/mqttc/internal/packets"
)

func TestLoadSessionState(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "client-1")
	if err != nil {
		t.Fatal(err)
	}

	store.SavePendingPublish(10, &PersistedPublish{
		Topic:   "sensors/temp",
		Payload: []byte("21.0"),
		QoS:     1,
	})
	store.SaveSubscription("sensors/#", &SubscriptionInfo{QoS: 1})
	store.SaveReceivedQoS2(33)

	opts := defaultOptions("tcp://localhost:1883")
	opts.SessionStore = store
	opts.InitialSubscriptions = map[string]MessageHandler{
		"sensors/#": func(*Client, Message) {},
	}

	c := &Client{opts: opts}

	if err := c.loadSessionState(); err != nil {
		t.Fatalf("loadSessionState failed: %v", err)
	}

	op, ok := c.pending[10]
	if !ok {
		t.Fatal("pending publish not restored")
	}
	pub, ok := op.packet.(*packets.PublishPacket)
	if !ok {
		t.Fatalf("restored packet is %T", op.packet)
	}
	if pub.PacketID != 10 || pub.TopicName != "sensors/temp" {
		t.Errorf("restored publish mismatch: %+v", pub)
	}
	if !pub.Dup {
		t.Error("restored publish should carry the DUP flag")
	}
	if c.inFlightCount != 1 {
		t.Errorf("inFlightCount = %d, want 1", c.inFlightCount)
	}

	entry, ok := c.subscriptions["sensors/#"]
	if !ok {
		t.Fatal("subscription not restored")
	}
	if entry.qos != 1 {
		t.Errorf("restored QoS = %d, want 1", entry.qos)
	}
	if entry.handler == nil {
		t.Error("handler from WithSubscription should be re-attached")
	}

	if _, ok := c.receivedQoS2[33]; !ok {
		t.Error("received QoS 2 ID not restored")
	}
}

func TestCheckSessionPresentKeepsState(t *testing.T) {
	c := &Client{
		opts:         defaultOptions("tcp://localhost:1883"),
		receivedQoS2: map[uint16]struct{}{5: {}},
	}

	if err := c.checkSessionPresent(true); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.receivedQoS2[5]; !ok {
		t.Error("state must be preserved when the session is present")
	}
}

func TestCheckSessionPresentClearsStaleState(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "client-1")
	if err != nil {
		t.Fatal(err)
	}
	store.SaveReceivedQoS2(5)

	opts := defaultOptions("tcp://localhost:1883")
	opts.SessionStore = store

	c := &Client{
		opts:          opts,
		receivedQoS2:  map[uint16]struct{}{5: {}},
		subscriptions: make(map[string]subscriptionEntry),
		pending:       make(map[uint16]*pendingOp),
		outgoing:      make(chan packets.Packet, 1),
		stop:          make(chan struct{}),
	}

	if err := c.checkSessionPresent(false); err != nil {
		t.Fatal(err)
	}

	c.sessionLock.Lock()
	n := len(c.receivedQoS2)
	c.sessionLock.Unlock()
	if n != 0 {
		t.Error("stale QoS 2 dedup state should be dropped")
	}

	ids, err := store.LoadReceivedQoS2()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Error("persisted QoS 2 IDs should be cleared")
	}
}
