package mqttc

import (
	"fmt"
	"time"

	"github.com/mmarban/mqttc/internal/packets"
)

// SubscribeOptions holds configuration for a subscription.
type SubscribeOptions struct {
	Persistence bool
}

// SubscribeOption is a functional option for configuring a subscription.
type SubscribeOption func(*SubscribeOptions)

// WithPersistence sets whether the subscription should be persisted to the session store.
// If true (default), the subscription is saved and restored on process restart.
// If false, the subscription is ephemeral and lost on client restart.
// This is independent of the MQTT CleanSession flag which controls server-side persistence.
func WithPersistence(persistence bool) SubscribeOption {
	return func(o *SubscribeOptions) {
		o.Persistence = persistence
	}
}

// Subscribe subscribes to a topic with the specified QoS level.
//
// The handler function is called for each message received on topics matching
// the subscription filter. If a message matches multiple subscription filters,
// the handlers for all matching subscriptions will be called.
//
// The handler is called in a separate goroutine, so it should not block for
// long periods.
//
// Topic filters support MQTT wildcards:
//   - '+' matches a single level (e.g., "sensors/+/temperature")
//   - '#' matches multiple levels (e.g., "sensors/#")
//
// The function returns a SubscribeToken that completes when the subscription
// is acknowledged by the server. The server may grant a lower QoS than
// requested; GrantedQoS reports it after the token completes. A rejected
// filter completes the token with ErrSubscriptionFailed.
//
// For persistent sessions (CleanSession=false), it is recommended to use the
// mqttc.WithSubscription option during Dial instead. This ensures handlers
// are automatically re-registered if the session is lost and the client must
// re-subscribe.
//
// Example:
//
//	token := client.Subscribe("sensors/temperature", 1,
//	    func(c *mqttc.Client, msg mqttc.Message) {
//	        fmt.Printf("Temperature: %s\n", string(msg.Payload))
//	    })
//	if err := token.Wait(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
func (c *Client) Subscribe(topic string, qos QoS, handler MessageHandler, opts ...SubscribeOption) SubscribeToken {
	c.opts.Logger.Debug("subscribing to topic", "topic", topic, "qos", qos)

	if err := validateSubscribeTopic(topic, c.opts); err != nil {
		tok := newToken()
		tok.complete(fmt.Errorf("invalid topic filter: %w", err))
		return tok
	}

	if qos > 2 {
		tok := newToken()
		tok.complete(fmt.Errorf("invalid QoS %d: must be 0, 1 or 2", qos))
		return tok
	}

	subOpts := &SubscribeOptions{
		Persistence: true,
	}
	for _, opt := range opts {
		opt(subOpts)
	}

	pkt := &packets.SubscribePacket{
		PacketID: 0, // Assigned by internalSubscribe
		Subscriptions: []packets.Subscription{
			{TopicFilter: topic, QoS: uint8(qos)},
		},
	}

	tok := newToken()

	req := &subscribeRequest{
		packet:  pkt,
		handler: handler,
		token:   tok,
		persist: subOpts.Persistence,
	}

	c.internalSubscribe(req)

	return tok
}

// Unsubscribe unsubscribes from one or more topics.
//
// After unsubscribing, the client will no longer receive messages on the
// specified topics. The function returns a Token that completes when the
// unsubscription is acknowledged by the server.
//
// Example (single topic):
//
//	token := client.Unsubscribe("sensors/temperature")
//	token.Wait(context.Background())
//
// Example (multiple topics):
//
//	token := client.Unsubscribe("sensors/temp", "sensors/humidity")
//	if err := token.Wait(context.Background()); err != nil {
//	    log.Printf("Unsubscribe failed: %v", err)
//	}
func (c *Client) Unsubscribe(topics ...string) Token {
	c.opts.Logger.Debug("unsubscribing from topics", "topics", topics)

	if len(topics) == 0 {
		tok := newToken()
		tok.complete(nil)
		return tok
	}

	pkt := &packets.UnsubscribePacket{
		TopicFilters: topics,
	}
	tok := newToken()
	req := &unsubscribeRequest{
		packet: pkt,
		topics: topics,
		token:  tok,
	}
	c.internalUnsubscribe(req)

	return tok
}

// resubscribeAll resubscribes to all active subscriptions after reconnection.
// This is called automatically by the reconnect loop.
func (c *Client) resubscribeAll() {
	c.sessionLock.Lock()
	defer c.sessionLock.Unlock()

	if len(c.subscriptions) == 0 {
		return
	}

	c.opts.Logger.Debug("resubscribing to topics", "count", len(c.subscriptions))

	var subs []packets.Subscription
	for topic, entry := range c.subscriptions {
		subs = append(subs, packets.Subscription{TopicFilter: topic, QoS: entry.qos})
	}

	// Batch subscriptions to avoid exceeding server limits
	// Most servers limit SUBSCRIBE packets to 100-200 topics
	const batchSize = 100

	for i := 0; i < len(subs); i += batchSize {
		end := min(i+batchSize, len(subs))

		pkt := &packets.SubscribePacket{
			PacketID:      c.nextID(),
			Subscriptions: subs[i:end],
		}

		// Store pending operation BEFORE sending packet to avoid race conditions
		c.pending[pkt.PacketID] = &pendingOp{
			packet:    pkt,
			token:     newToken(),
			timestamp: time.Now(),
			attempts:  1,
		}

		select {
		case c.outgoing <- pkt:
		case <-c.stop:
			return
		}

		c.opts.Logger.Debug("resubscribe packet sent",
			"packet_id", pkt.PacketID,
			"topics_count", end-i)
	}
}
