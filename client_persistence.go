package mqttc

import (
	"fmt"
	"time"

	"github.com/mmarban/mqttc/internal/packets"
)

// loadSessionState loads the persisted session state into the client.
// This must be called BEFORE the CONNECT packet is sent.
func (c *Client) loadSessionState() error {
	if c.opts.SessionStore == nil {
		return nil
	}

	c.opts.Logger.Debug("loading persistent session state")

	// 1. Load Pending Publishes
	pending, err := c.opts.SessionStore.LoadPendingPublishes()
	if err != nil {
		return fmt.Errorf("failed to load pending publishes: %w", err)
	}

	c.pending = make(map[uint16]*pendingOp)
	c.inFlightCount = 0
	for id, pub := range pending {
		op := c.convertFromPersistedPublish(pub)
		if pkt, ok := op.packet.(*packets.PublishPacket); ok {
			pkt.PacketID = id // Restore PacketID from map key
			if pkt.QoS > 0 {
				c.inFlightCount++
			}
		}
		c.pending[id] = op
	}

	// 2. Load Subscriptions
	// note: handlers are lost, but we restore the subscription state
	// so we know what topics we are subscribed to.
	subs, err := c.opts.SessionStore.LoadSubscriptions()
	if err != nil {
		return fmt.Errorf("failed to load subscriptions: %w", err)
	}

	if c.subscriptions == nil {
		c.subscriptions = make(map[string]subscriptionEntry)
	}

	for topic, sub := range subs {
		entry := subscriptionEntry{qos: sub.QoS, persist: true}
		if handler, ok := c.opts.InitialSubscriptions[topic]; ok {
			entry.handler = handler
		}
		c.subscriptions[topic] = entry
	}

	// 3. Load Received QoS 2 IDs
	qos2, err := c.opts.SessionStore.LoadReceivedQoS2()
	if err != nil {
		return fmt.Errorf("failed to load qos2 IDs: %w", err)
	}
	c.receivedQoS2 = qos2

	c.opts.Logger.Info("loaded session state",
		"pending", len(c.pending),
		"subscriptions", len(c.subscriptions),
		"qos2_received", len(c.receivedQoS2))

	return nil
}

// checkSessionPresent handles the Session Present flag from CONNACK.
// If set, the loaded state is kept as-is. If clear, the server lost our
// session: incoming-dedup state is stale and gets dropped, while pending
// publishes and subscriptions are preserved for re-delivery and
// re-subscription.
func (c *Client) checkSessionPresent(sessionPresent bool) error {
	if sessionPresent {
		c.opts.Logger.Debug("session present, keeping loaded state")
		return nil
	}

	c.opts.Logger.Debug("session not present, clearing stale state and resubscribing")

	if c.opts.SessionStore != nil {
		if err := c.opts.SessionStore.ClearReceivedQoS2(); err != nil {
			c.opts.Logger.Warn("failed to clear stale QoS2 IDs", "error", err)
		}
	}

	c.sessionLock.Lock()
	c.receivedQoS2 = make(map[uint16]struct{})
	c.sessionLock.Unlock()

	// Re-establish subscriptions added via WithSubscription or loaded from
	// the store.
	go c.resubscribeAll()

	return nil
}

// --- Conversion Helpers ---

func (c *Client) convertToPersistedPublish(req *publishRequest) *PersistedPublish {
	return &PersistedPublish{
		Topic:   req.packet.TopicName,
		Payload: req.packet.Payload,
		QoS:     req.packet.QoS,
		Retain:  req.packet.Retain,
	}
}

func (c *Client) convertFromPersistedPublish(p *PersistedPublish) *pendingOp {
	// Reconstruct the pending operation
	pkt := &packets.PublishPacket{
		TopicName: p.Topic,
		Payload:   p.Payload,
		QoS:       p.QoS,
		Retain:    p.Retain,
		Dup:       true,
		PacketID:  0, // Will be set by caller
	}

	return &pendingOp{
		packet:    pkt,
		token:     newToken(),
		qos:       p.QoS,
		timestamp: time.Now(), // Reset timestamp
		attempts:  1,
	}
}
