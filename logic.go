package mqttc

import (
	"time"

	"github.com/mmarban/mqttc/internal/packets"
)

// logicLoop is the single-threaded state machine that manages all session
// state: acknowledgement handshakes, retransmission, and dispatch of
// incoming messages.
func (c *Client) logicLoop() {
	defer c.wg.Done()

	// Tick at half the retry interval so a packet waits at most ~1.5x the
	// interval before retransmission.
	tick := c.opts.RetryInterval / 2
	if tick < time.Second {
		tick = time.Second
	}
	retryTicker := time.NewTicker(tick)
	defer retryTicker.Stop()

	for {
		select {
		case pkt := <-c.incoming:
			c.sessionLock.Lock()
			c.handleIncoming(pkt)
			c.sessionLock.Unlock()

		case <-retryTicker.C:
			c.sessionLock.Lock()
			c.retryPending()
			c.processPublishQueue()
			c.sessionLock.Unlock()

		case <-c.stop:
			c.opts.Logger.Debug("logicLoop stopped")
			c.sessionLock.Lock()
			for _, op := range c.pending {
				op.token.complete(ErrClientDisconnected)
			}
			// Complete tokens for queued publish requests
			for _, req := range c.publishQueue {
				req.token.complete(ErrClientDisconnected)
			}
			c.publishQueue = nil
			c.sessionLock.Unlock()
			return
		}
	}
}

// internalResetState drops all session state. Called when a clean-session
// reconnect makes the old state meaningless; in-flight operations complete
// with ErrConnectionLost.
func (c *Client) internalResetState() {
	c.sessionLock.Lock()
	defer c.sessionLock.Unlock()

	for _, op := range c.pending {
		op.token.complete(ErrConnectionLost)
	}
	for _, req := range c.publishQueue {
		req.token.complete(ErrConnectionLost)
	}
	c.pending = make(map[uint16]*pendingOp)
	c.publishQueue = nil
	c.receivedQoS2 = make(map[uint16]struct{})
	c.inFlightCount = 0
}

// resendPending retransmits all in-flight packets after a persistent-session
// reconnect. PUBLISH packets go out with the DUP flag set.
func (c *Client) resendPending() {
	c.sessionLock.Lock()
	defer c.sessionLock.Unlock()

	for id, op := range c.pending {
		if pub, ok := op.packet.(*packets.PublishPacket); ok {
			pub.Dup = true
		}
		op.timestamp = time.Now()

		select {
		case c.outgoing <- op.packet:
			op.attempts++
			c.opts.Logger.Debug("retransmitted in-flight packet", "packet_id", id)
		case <-c.stop:
			return
		default:
			// Outgoing queue full; the retry ticker picks it up.
			return
		}
	}
}

// handleIncoming processes incoming packets from the server.
func (c *Client) handleIncoming(pkt packets.Packet) {
	switch p := pkt.(type) {
	case *packets.PublishPacket:
		c.handlePublish(p)

	case *packets.PubackPacket:
		c.handlePuback(p)

	case *packets.PubrecPacket:
		c.handlePubrec(p)

	case *packets.PubrelPacket:
		c.handlePubrel(p)

	case *packets.PubcompPacket:
		c.handlePubcomp(p)

	case *packets.SubackPacket:
		c.handleSuback(p)

	case *packets.UnsubackPacket:
		c.handleUnsuback(p)

	case *packets.PingrespPacket:
		// Keepalive response - signal writeLoop that PINGRESP was received
		select {
		case c.pingPendingCh <- struct{}{}:
		default:
			// Channel full, which means writeLoop hasn't processed the previous signal yet
		}

	default:
		// CONNECT, CONNACK outside the handshake, SUBSCRIBE, UNSUBSCRIBE,
		// PINGREQ and DISCONNECT never flow server-to-client in v3.1.1.
		c.opts.Logger.Warn("unexpected packet from server, dropping connection",
			"type", packets.PacketNames[pkt.Type()])
		go c.dropConnection()
	}
}

// handlePublish processes an incoming PUBLISH packet.
func (c *Client) handlePublish(p *packets.PublishPacket) {
	// For QoS 2, check if we've already received this packet
	if p.QoS == 2 {
		if _, exists := c.receivedQoS2[p.PacketID]; exists {
			// Duplicate QoS 2 message - re-ack with PUBREC but don't deliver again
			select {
			case c.outgoing <- &packets.PubrecPacket{PacketID: p.PacketID}:
			case <-c.stop:
			default:
			}
			return
		}
		c.receivedQoS2[p.PacketID] = struct{}{}

		if c.opts.SessionStore != nil {
			if err := c.opts.SessionStore.SaveReceivedQoS2(p.PacketID); err != nil {
				c.opts.Logger.Warn("failed to persist QoS2 ID", "packet_id", p.PacketID, "error", err)
			}
		}
	}

	// Find matching handlers
	var handlers []MessageHandler
	for filter, entry := range c.subscriptions {
		if MatchTopic(filter, p.TopicName) {
			if entry.handler != nil {
				handlers = append(handlers, entry.handler)
			}
		}
	}

	// Use default handler if no matches found
	if len(handlers) == 0 && c.opts.DefaultPublishHandler != nil {
		handlers = append(handlers, c.opts.DefaultPublishHandler)
	}

	msg := Message{
		Topic:     p.TopicName,
		Payload:   p.Payload,
		QoS:       QoS(p.QoS),
		Retained:  p.Retain,
		Duplicate: p.Dup,
	}

	// Call handlers in separate goroutines (don't block logicLoop)
	for _, handler := range handlers {
		go handler(c, msg)
	}

	switch p.QoS {
	case 1:
		select {
		case c.outgoing <- &packets.PubackPacket{PacketID: p.PacketID}:
		case <-c.stop:
		default:
		}
	case 2:
		select {
		case c.outgoing <- &packets.PubrecPacket{PacketID: p.PacketID}:
		case <-c.stop:
		default:
		}
	}
}

// releaseInflight frees the flow-control slot held by a completed publish.
func (c *Client) releaseInflight(op *pendingOp) {
	switch op.packet.(type) {
	case *packets.PublishPacket, *packets.PubrelPacket:
		if op.qos > 0 {
			c.inFlightCount--
		}
	}
}

// handlePuback processes a PUBACK packet (QoS 1 acknowledgment).
func (c *Client) handlePuback(p *packets.PubackPacket) {
	if op, ok := c.pending[p.PacketID]; ok {
		op.token.complete(nil)
		delete(c.pending, p.PacketID)

		if c.opts.SessionStore != nil {
			if err := c.opts.SessionStore.DeletePendingPublish(p.PacketID); err != nil {
				c.opts.Logger.Warn("failed to delete pending publish", "packet_id", p.PacketID, "error", err)
			}
		}

		c.releaseInflight(op)
		c.processPublishQueue()
	}
}

// handlePubrec processes a PUBREC packet (QoS 2, step 1).
// A PUBREC with an unknown packet ID is ignored.
func (c *Client) handlePubrec(p *packets.PubrecPacket) {
	if op, ok := c.pending[p.PacketID]; ok {
		pubrel := &packets.PubrelPacket{PacketID: p.PacketID}
		select {
		case c.outgoing <- pubrel:
			// Track the PUBREL for retransmission; the retry budget restarts
			// for the second half of the handshake.
			op.packet = pubrel
			op.timestamp = time.Now()
			op.attempts = 1
		case <-c.stop:
		default:
		}
	}
}

// handlePubrel processes a PUBREL packet (QoS 2, step 2).
func (c *Client) handlePubrel(p *packets.PubrelPacket) {
	select {
	case c.outgoing <- &packets.PubcompPacket{PacketID: p.PacketID}:
	case <-c.stop:
	default:
	}

	delete(c.receivedQoS2, p.PacketID)

	if c.opts.SessionStore != nil {
		if err := c.opts.SessionStore.DeleteReceivedQoS2(p.PacketID); err != nil {
			c.opts.Logger.Warn("failed to delete QoS2 ID", "packet_id", p.PacketID, "error", err)
		}
	}
}

// handlePubcomp processes a PUBCOMP packet (QoS 2, step 3).
// A PUBCOMP with an unknown packet ID is ignored.
func (c *Client) handlePubcomp(p *packets.PubcompPacket) {
	if op, ok := c.pending[p.PacketID]; ok {
		op.token.complete(nil)
		delete(c.pending, p.PacketID)

		if c.opts.SessionStore != nil {
			if err := c.opts.SessionStore.DeletePendingPublish(p.PacketID); err != nil {
				c.opts.Logger.Warn("failed to delete pending publish", "packet_id", p.PacketID, "error", err)
			}
		}

		c.releaseInflight(op)
		c.processPublishQueue()
	}
}

// handleSuback processes a SUBACK packet. The server answers each filter
// individually; a 0x80 code means that filter was rejected while the others
// may still have been granted.
func (c *Client) handleSuback(p *packets.SubackPacket) {
	op, ok := c.pending[p.PacketID]
	if !ok {
		return
	}

	var err error
	for _, code := range p.ReturnCodes {
		if code == packets.SubackFailure {
			err = ErrSubscriptionFailed
			break
		}
	}

	if subPkt, ok := op.packet.(*packets.SubscribePacket); ok {
		for i, sub := range subPkt.Subscriptions {
			if i >= len(p.ReturnCodes) {
				continue
			}

			if p.ReturnCodes[i] == packets.SubackFailure {
				// The server never granted this filter; keeping the entry
				// would route messages to it and make every reconnect
				// re-request it.
				c.opts.Logger.Warn("subscription rejected by server", "topic", sub.TopicFilter)
				delete(c.subscriptions, sub.TopicFilter)
				continue
			}

			// Record the granted QoS, which may be lower than requested
			entry := c.subscriptions[sub.TopicFilter]
			entry.qos = p.ReturnCodes[i]
			c.subscriptions[sub.TopicFilter] = entry

			if c.opts.SessionStore != nil && entry.persist {
				info := &SubscriptionInfo{QoS: entry.qos}
				if err := c.opts.SessionStore.SaveSubscription(sub.TopicFilter, info); err != nil {
					c.opts.Logger.Warn("failed to persist subscription", "topic", sub.TopicFilter, "error", err)
				}
			}
		}
	}

	if err == nil && len(p.ReturnCodes) > 0 {
		op.token.grantedQoS = QoS(p.ReturnCodes[0])
	}
	op.token.complete(err)
	delete(c.pending, p.PacketID)
}

// handleUnsuback processes an UNSUBACK packet.
func (c *Client) handleUnsuback(p *packets.UnsubackPacket) {
	if op, ok := c.pending[p.PacketID]; ok {
		op.token.complete(nil)
		delete(c.pending, p.PacketID)

		if c.opts.SessionStore != nil {
			if unsubPkt, ok := op.packet.(*packets.UnsubscribePacket); ok {
				for _, topic := range unsubPkt.TopicFilters {
					if err := c.opts.SessionStore.DeleteSubscription(topic); err != nil {
						c.opts.Logger.Warn("failed to delete subscription", "topic", topic, "error", err)
					}
				}
			}
		}
	}
}

// retryPending retransmits packets that haven't been acknowledged, and gives
// up on packets that have exhausted their retry budget. Giving up completes
// the operation's token with a *DeliveryError; the connection stays up.
func (c *Client) retryPending() {
	now := time.Now()

	for id, op := range c.pending {
		if now.Sub(op.timestamp) <= c.opts.RetryInterval {
			continue
		}

		if c.opts.MaxRetries > 0 && op.attempts >= c.opts.MaxRetries {
			c.opts.Logger.Warn("giving up on unacknowledged packet",
				"packet_id", id, "attempts", op.attempts)
			op.token.complete(&DeliveryError{PacketID: id, Attempts: op.attempts})
			delete(c.pending, id)

			if c.opts.SessionStore != nil && op.qos > 0 {
				if err := c.opts.SessionStore.DeletePendingPublish(id); err != nil {
					c.opts.Logger.Warn("failed to delete pending publish", "packet_id", id, "error", err)
				}
			}

			c.releaseInflight(op)
			continue
		}

		// Resend with DUP flag if it's a PUBLISH
		if pub, ok := op.packet.(*packets.PublishPacket); ok {
			pub.Dup = true
		}

		select {
		case c.outgoing <- op.packet:
			op.timestamp = now
			op.attempts++
		case <-c.stop:
			return
		default:
			// Outgoing queue is full, skip retransmission for now
			// to avoid blocking the logicLoop.
			return
		}
	}
}

// nextID generates the next packet ID (1-65535, cycling, skipping IDs that
// are still in flight).
func (c *Client) nextID() uint16 {
	for i := 0; i < 65535; i++ {
		c.nextPacketID++
		if c.nextPacketID == 0 {
			c.nextPacketID = 1
		}
		if _, used := c.pending[c.nextPacketID]; !used {
			return c.nextPacketID
		}
	}
	// This should only happen if we have 65535 pending packets.
	// In that case, we return the next ID anyway as a fallback,
	// though it will cause a collision.
	return c.nextPacketID
}
