package mqttc

import (
	"errors"
	"testing"
	"time"

	"github.com/mmarban/mqttc/internal/packets"
)

func TestHandlePuback(t *testing.T) {
	c := &Client{
		pending: make(map[uint16]*pendingOp),
		opts:    defaultOptions("tcp://localhost:1883"),
	}

	packetID := uint16(7)
	tkn := newToken()
	c.pending[packetID] = &pendingOp{
		packet:    &packets.PublishPacket{PacketID: packetID, QoS: 1},
		token:     tkn,
		qos:       1,
		timestamp: time.Now(),
		attempts:  1,
	}
	c.inFlightCount = 1

	c.handlePuback(&packets.PubackPacket{PacketID: packetID})

	if _, ok := c.pending[packetID]; ok {
		t.Error("pending operation should be removed")
	}

	select {
	case <-tkn.Done():
		if tkn.Error() != nil {
			t.Errorf("expected no error, got %v", tkn.Error())
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("token should be completed")
	}

	if c.inFlightCount != 0 {
		t.Errorf("inFlightCount should be 0, got %d", c.inFlightCount)
	}
}

func TestHandlePubackUnknownID(t *testing.T) {
	c := &Client{
		pending: make(map[uint16]*pendingOp),
		opts:    defaultOptions("tcp://localhost:1883"),
	}

	// Must not panic or create state
	c.handlePuback(&packets.PubackPacket{PacketID: 99})

	if len(c.pending) != 0 {
		t.Error("pending should stay empty")
	}
}

func TestHandlePubrecSwapsToPubrel(t *testing.T) {
	c := &Client{
		pending:  make(map[uint16]*pendingOp),
		outgoing: make(chan packets.Packet, 1),
		opts:     defaultOptions("tcp://localhost:1883"),
	}

	packetID := uint16(3)
	tkn := newToken()
	c.pending[packetID] = &pendingOp{
		packet:    &packets.PublishPacket{PacketID: packetID, QoS: 2},
		token:     tkn,
		qos:       2,
		timestamp: time.Now().Add(-time.Minute),
		attempts:  4,
	}
	c.inFlightCount = 1

	c.handlePubrec(&packets.PubrecPacket{PacketID: packetID})

	select {
	case p := <-c.outgoing:
		pubrel, ok := p.(*packets.PubrelPacket)
		if !ok {
			t.Fatalf("expected PubrelPacket, got %T", p)
		}
		if pubrel.PacketID != packetID {
			t.Errorf("PUBREL packet ID = %d, want %d", pubrel.PacketID, packetID)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for PUBREL")
	}

	op := c.pending[packetID]
	if op == nil {
		t.Fatal("pending operation should survive PUBREC")
	}
	if _, ok := op.packet.(*packets.PubrelPacket); !ok {
		t.Errorf("pending packet should now be PUBREL, got %T", op.packet)
	}
	if op.attempts != 1 {
		t.Errorf("attempts should reset to 1 for the PUBREL leg, got %d", op.attempts)
	}
	if tkn.Error() != nil {
		t.Errorf("token must not complete on PUBREC: %v", tkn.Error())
	}

	// Flow control slot stays occupied until PUBCOMP
	if c.inFlightCount != 1 {
		t.Errorf("inFlightCount should still be 1, got %d", c.inFlightCount)
	}
}

func TestHandlePubrelSendsPubcomp(t *testing.T) {
	c := &Client{
		receivedQoS2: map[uint16]struct{}{12: {}},
		outgoing:     make(chan packets.Packet, 1),
		opts:         defaultOptions("tcp://localhost:1883"),
	}

	c.handlePubrel(&packets.PubrelPacket{PacketID: 12})

	select {
	case p := <-c.outgoing:
		pubcomp, ok := p.(*packets.PubcompPacket)
		if !ok {
			t.Fatalf("expected PubcompPacket, got %T", p)
		}
		if pubcomp.PacketID != 12 {
			t.Errorf("PUBCOMP packet ID = %d, want 12", pubcomp.PacketID)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for PUBCOMP")
	}

	if _, ok := c.receivedQoS2[12]; ok {
		t.Error("packet ID should be removed from receivedQoS2")
	}
}

func TestHandlePublishQoS2Deduplication(t *testing.T) {
	received := make(chan Message, 2)

	c := &Client{
		receivedQoS2: make(map[uint16]struct{}),
		outgoing:     make(chan packets.Packet, 4),
		opts:         defaultOptions("tcp://localhost:1883"),
		subscriptions: map[string]subscriptionEntry{
			"sensors/#": {handler: func(_ *Client, msg Message) { received <- msg }, qos: 2},
		},
	}

	pub := &packets.PublishPacket{
		QoS:       2,
		TopicName: "sensors/temp",
		PacketID:  21,
		Payload:   []byte("22.5"),
	}

	c.handlePublish(pub)

	select {
	case msg := <-received:
		if msg.Topic != "sensors/temp" || string(msg.Payload) != "22.5" {
			t.Errorf("unexpected message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("handler not invoked for first delivery")
	}

	// Duplicate delivery before PUBREL: re-acked but not redelivered
	dup := &packets.PublishPacket{
		QoS:       2,
		Dup:       true,
		TopicName: "sensors/temp",
		PacketID:  21,
		Payload:   []byte("22.5"),
	}
	c.handlePublish(dup)

	select {
	case <-received:
		t.Error("duplicate QoS 2 publish must not reach the handler")
	case <-time.After(50 * time.Millisecond):
	}

	// Both deliveries get a PUBREC
	for i := 0; i < 2; i++ {
		select {
		case p := <-c.outgoing:
			if _, ok := p.(*packets.PubrecPacket); !ok {
				t.Errorf("expected PubrecPacket, got %T", p)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for PUBREC")
		}
	}
}

func TestHandlePublishDefaultHandler(t *testing.T) {
	received := make(chan Message, 1)

	opts := defaultOptions("tcp://localhost:1883")
	opts.DefaultPublishHandler = func(_ *Client, msg Message) { received <- msg }

	c := &Client{
		receivedQoS2:  make(map[uint16]struct{}),
		outgoing:      make(chan packets.Packet, 1),
		opts:          opts,
		subscriptions: map[string]subscriptionEntry{},
	}

	c.handlePublish(&packets.PublishPacket{
		QoS:       0,
		TopicName: "unmatched/topic",
		Payload:   []byte("x"),
	})

	select {
	case msg := <-received:
		if msg.Topic != "unmatched/topic" {
			t.Errorf("unexpected topic %q", msg.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("default handler not invoked")
	}
}

func TestHandleSubackGrantedQoS(t *testing.T) {
	c := &Client{
		pending: make(map[uint16]*pendingOp),
		opts:    defaultOptions("tcp://localhost:1883"),
		subscriptions: map[string]subscriptionEntry{
			"a/b": {qos: 2},
			"c/d": {qos: 2},
		},
	}

	tkn := newToken()
	pkt := &packets.SubscribePacket{
		PacketID: 5,
		Subscriptions: []packets.Subscription{
			{TopicFilter: "a/b", QoS: 2},
			{TopicFilter: "c/d", QoS: 2},
		},
	}
	c.pending[5] = &pendingOp{packet: pkt, token: tkn, timestamp: time.Now(), attempts: 1}

	c.handleSuback(&packets.SubackPacket{
		PacketID:    5,
		ReturnCodes: []uint8{1, 0},
	})

	if got := c.subscriptions["a/b"].qos; got != 1 {
		t.Errorf("granted QoS for a/b = %d, want 1", got)
	}
	if got := c.subscriptions["c/d"].qos; got != 0 {
		t.Errorf("granted QoS for c/d = %d, want 0", got)
	}
	if tkn.Error() != nil {
		t.Errorf("expected success, got %v", tkn.Error())
	}
	if got := tkn.GrantedQoS(); got != 1 {
		t.Errorf("GrantedQoS() = %d, want 1", got)
	}
	if _, ok := c.pending[5]; ok {
		t.Error("pending op should be removed")
	}
}

func TestHandleSubackFailure(t *testing.T) {
	c := &Client{
		pending: make(map[uint16]*pendingOp),
		opts:    defaultOptions("tcp://localhost:1883"),
		subscriptions: map[string]subscriptionEntry{
			"a/b": {qos: 1},
		},
	}

	tkn := newToken()
	pkt := &packets.SubscribePacket{
		PacketID:      6,
		Subscriptions: []packets.Subscription{{TopicFilter: "a/b", QoS: 1}},
	}
	c.pending[6] = &pendingOp{packet: pkt, token: tkn, timestamp: time.Now(), attempts: 1}

	c.handleSuback(&packets.SubackPacket{
		PacketID:    6,
		ReturnCodes: []uint8{packets.SubackFailure},
	})

	select {
	case <-tkn.Done():
		if !errors.Is(tkn.Error(), ErrSubscriptionFailed) {
			t.Errorf("expected ErrSubscriptionFailed, got %v", tkn.Error())
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("token should be completed")
	}

	// A rejected filter must not linger: it would match incoming messages
	// and be re-requested on every reconnect.
	if _, ok := c.subscriptions["a/b"]; ok {
		t.Error("rejected filter should be removed from subscriptions")
	}
}

func TestHandleSubackPartialFailure(t *testing.T) {
	c := &Client{
		pending: make(map[uint16]*pendingOp),
		opts:    defaultOptions("tcp://localhost:1883"),
		subscriptions: map[string]subscriptionEntry{
			"ok/topic":  {qos: 1},
			"bad/topic": {qos: 1},
		},
	}

	tkn := newToken()
	pkt := &packets.SubscribePacket{
		PacketID: 7,
		Subscriptions: []packets.Subscription{
			{TopicFilter: "ok/topic", QoS: 1},
			{TopicFilter: "bad/topic", QoS: 1},
		},
	}
	c.pending[7] = &pendingOp{packet: pkt, token: tkn, timestamp: time.Now(), attempts: 1}

	c.handleSuback(&packets.SubackPacket{
		PacketID:    7,
		ReturnCodes: []uint8{1, packets.SubackFailure},
	})

	if !errors.Is(tkn.Error(), ErrSubscriptionFailed) {
		t.Errorf("expected ErrSubscriptionFailed, got %v", tkn.Error())
	}
	if _, ok := c.subscriptions["ok/topic"]; !ok {
		t.Error("granted filter should be kept")
	}
	if _, ok := c.subscriptions["bad/topic"]; ok {
		t.Error("rejected filter should be removed")
	}
}

func TestRetryPendingResendsWithDup(t *testing.T) {
	opts := defaultOptions("tcp://localhost:1883")
	opts.RetryInterval = 10 * time.Millisecond

	c := &Client{
		pending:  make(map[uint16]*pendingOp),
		outgoing: make(chan packets.Packet, 1),
		stop:     make(chan struct{}),
		opts:     opts,
	}

	pub := &packets.PublishPacket{PacketID: 9, QoS: 1, TopicName: "t", Payload: []byte("p")}
	c.pending[9] = &pendingOp{
		packet:    pub,
		token:     newToken(),
		qos:       1,
		timestamp: time.Now().Add(-time.Second),
		attempts:  1,
	}

	c.retryPending()

	select {
	case p := <-c.outgoing:
		sent, ok := p.(*packets.PublishPacket)
		if !ok {
			t.Fatalf("expected PublishPacket, got %T", p)
		}
		if !sent.Dup {
			t.Error("retransmitted PUBLISH must carry the DUP flag")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for retransmission")
	}

	if c.pending[9].attempts != 2 {
		t.Errorf("attempts = %d, want 2", c.pending[9].attempts)
	}
}

func TestRetryPendingGivesUpWithDeliveryError(t *testing.T) {
	opts := defaultOptions("tcp://localhost:1883")
	opts.RetryInterval = 10 * time.Millisecond
	opts.MaxRetries = 3

	c := &Client{
		pending:  make(map[uint16]*pendingOp),
		outgoing: make(chan packets.Packet, 1),
		stop:     make(chan struct{}),
		opts:     opts,
	}

	tkn := newToken()
	c.pending[4] = &pendingOp{
		packet:    &packets.PublishPacket{PacketID: 4, QoS: 1, TopicName: "t"},
		token:     tkn,
		qos:       1,
		timestamp: time.Now().Add(-time.Second),
		attempts:  3, // Budget exhausted
	}
	c.inFlightCount = 1

	c.retryPending()

	select {
	case <-tkn.Done():
		var de *DeliveryError
		if !errors.As(tkn.Error(), &de) {
			t.Fatalf("expected *DeliveryError, got %v", tkn.Error())
		}
		if de.PacketID != 4 || de.Attempts != 3 {
			t.Errorf("DeliveryError = %+v, want PacketID 4, Attempts 3", de)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("token should be completed with DeliveryError")
	}

	if _, ok := c.pending[4]; ok {
		t.Error("exhausted operation should be removed from pending")
	}
	if c.inFlightCount != 0 {
		t.Errorf("inFlightCount should be released, got %d", c.inFlightCount)
	}
	if len(c.outgoing) != 0 {
		t.Error("no retransmission expected after giving up")
	}
}

func TestRetryPendingRespectsInterval(t *testing.T) {
	c := &Client{
		pending:  make(map[uint16]*pendingOp),
		outgoing: make(chan packets.Packet, 1),
		stop:     make(chan struct{}),
		opts:     defaultOptions("tcp://localhost:1883"),
	}

	c.pending[2] = &pendingOp{
		packet:    &packets.PublishPacket{PacketID: 2, QoS: 1},
		token:     newToken(),
		qos:       1,
		timestamp: time.Now(), // Fresh, not due yet
		attempts:  1,
	}

	c.retryPending()

	if len(c.outgoing) != 0 {
		t.Error("fresh operation must not be retransmitted")
	}
}

func TestNextIDSkipsInUse(t *testing.T) {
	c := &Client{
		pending: make(map[uint16]*pendingOp),
		opts:    defaultOptions("tcp://localhost:1883"),
	}

	c.nextPacketID = 0
	c.pending[1] = &pendingOp{}
	c.pending[2] = &pendingOp{}

	if id := c.nextID(); id != 3 {
		t.Errorf("nextID() = %d, want 3", id)
	}
}

func TestNextIDWrapsAround(t *testing.T) {
	c := &Client{
		pending: make(map[uint16]*pendingOp),
		opts:    defaultOptions("tcp://localhost:1883"),
	}

	c.nextPacketID = 65535
	if id := c.nextID(); id != 1 {
		t.Errorf("nextID() after wrap = %d, want 1", id)
	}
}

func TestInternalResetState(t *testing.T) {
	c := &Client{
		pending:      make(map[uint16]*pendingOp),
		receivedQoS2: map[uint16]struct{}{1: {}},
		opts:         defaultOptions("tcp://localhost:1883"),
	}

	tkn := newToken()
	c.pending[8] = &pendingOp{
		packet: &packets.PublishPacket{PacketID: 8, QoS: 1},
		token:  tkn,
		qos:    1,
	}
	qTok := newToken()
	c.publishQueue = []*publishRequest{{
		packet: &packets.PublishPacket{QoS: 1},
		token:  qTok,
	}}
	c.inFlightCount = 1

	c.internalResetState()

	if !errors.Is(tkn.Error(), ErrConnectionLost) {
		t.Errorf("pending token error = %v, want ErrConnectionLost", tkn.Error())
	}
	if !errors.Is(qTok.Error(), ErrConnectionLost) {
		t.Errorf("queued token error = %v, want ErrConnectionLost", qTok.Error())
	}
	if len(c.pending) != 0 || len(c.publishQueue) != 0 || len(c.receivedQoS2) != 0 {
		t.Error("session state should be empty after reset")
	}
	if c.inFlightCount != 0 {
		t.Errorf("inFlightCount = %d, want 0", c.inFlightCount)
	}
}
