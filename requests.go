package mqttc

import (
	"time"
)

// internalPublish processes a publish request synchronously with locking.
func (c *Client) internalPublish(req *publishRequest) {
	pkt := req.packet

	if pkt.QoS == 0 {
		select {
		case c.outgoing <- pkt:
			req.token.complete(nil)
		case <-c.stop:
			req.token.complete(ErrClientDisconnected)
		}
		return
	}

	c.sessionLock.Lock()

	// Flow control for QoS > 0
	if c.opts.MaxInflight > 0 && c.inFlightCount >= c.opts.MaxInflight {
		c.publishQueue = append(c.publishQueue, req)
		c.sessionLock.Unlock()
		return
	}

	pkt.PacketID = c.nextID()

	c.pending[pkt.PacketID] = &pendingOp{
		packet:    pkt,
		token:     req.token,
		qos:       pkt.QoS,
		timestamp: time.Now(),
		attempts:  1,
	}
	c.inFlightCount++

	if c.opts.SessionStore != nil {
		pub := c.convertToPersistedPublish(req)
		if err := c.opts.SessionStore.SavePendingPublish(pkt.PacketID, pub); err != nil {
			c.opts.Logger.Warn("failed to persist publish", "packet_id", pkt.PacketID, "error", err)
		}
	}

	c.sessionLock.Unlock()
	select {
	case c.outgoing <- pkt:
	case <-c.stop:
		req.token.complete(ErrClientDisconnected)
	}
}

// sendPublishLocked sends a queued publish. Assumes the session lock is HELD.
// Returns true if sent, false if the outgoing queue is full or the client
// stopped.
func (c *Client) sendPublishLocked(req *publishRequest) bool {
	pkt := req.packet

	pkt.PacketID = c.nextID()

	c.pending[pkt.PacketID] = &pendingOp{
		packet:    pkt,
		token:     req.token,
		qos:       pkt.QoS,
		timestamp: time.Now(),
		attempts:  1,
	}

	select {
	case c.outgoing <- pkt:
		c.inFlightCount++

		if c.opts.SessionStore != nil {
			pub := c.convertToPersistedPublish(req)
			if err := c.opts.SessionStore.SavePendingPublish(pkt.PacketID, pub); err != nil {
				c.opts.Logger.Warn("failed to persist publish", "packet_id", pkt.PacketID, "error", err)
			}
		}
		return true

	case <-c.stop:
		// Client stopped, treat as "not sent" but also won't be retried successfully
		delete(c.pending, pkt.PacketID)
		return false

	default:
		// Channel full, back off
		// Remove from pending since we failed to send
		delete(c.pending, pkt.PacketID)
		return false
	}
}

// internalSubscribe processes a subscribe request synchronously with locking.
func (c *Client) internalSubscribe(req *subscribeRequest) {
	pkt := req.packet

	c.sessionLock.Lock()

	pkt.PacketID = c.nextID()

	c.pending[pkt.PacketID] = &pendingOp{
		packet:    pkt,
		token:     req.token,
		timestamp: time.Now(),
		attempts:  1,
	}

	// Register before receiving SUBACK to avoid racing with the server
	// since it might send messages right away before we get a SUBACK.
	for _, sub := range pkt.Subscriptions {
		c.subscriptions[sub.TopicFilter] = subscriptionEntry{
			handler: req.handler,
			qos:     sub.QoS,
			persist: req.persist,
		}
	}

	c.sessionLock.Unlock()
	select {
	case c.outgoing <- pkt:
	case <-c.stop:
		req.token.complete(ErrClientDisconnected)
	}
}

// internalUnsubscribe processes an unsubscribe request synchronously with locking.
func (c *Client) internalUnsubscribe(req *unsubscribeRequest) {
	pkt := req.packet

	c.sessionLock.Lock()

	pkt.PacketID = c.nextID()

	c.pending[pkt.PacketID] = &pendingOp{
		packet:    pkt,
		token:     req.token,
		timestamp: time.Now(),
		attempts:  1,
	}

	for _, topic := range req.topics {
		delete(c.subscriptions, topic)
	}

	c.sessionLock.Unlock()
	select {
	case c.outgoing <- pkt:
	case <-c.stop:
		req.token.complete(ErrClientDisconnected)
	}
}
