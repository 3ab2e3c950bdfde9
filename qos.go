package mqttc

// QoS represents the MQTT Quality of Service level.
type QoS uint8

// MQTT Quality of Service levels.
//
// These constants provide readable names for the three QoS levels defined
// in the MQTT specification.
//
// Example:
//
//	client.Subscribe("sensors/temp", mqttc.AtLeastOnce, handler)
//	client.Publish("alert", data, mqttc.WithQoS(mqttc.ExactlyOnce))
const (
	// AtMostOnce (QoS 0) - Fire and forget delivery.
	// The message is delivered at most once, or it may not be delivered at all.
	// No acknowledgment is sent by the receiver, and the message is not retried.
	AtMostOnce QoS = 0

	// AtLeastOnce (QoS 1) - Acknowledged delivery.
	// The message is always delivered at least once. The receiver sends an
	// acknowledgment (PUBACK), and the sender retries until acknowledged.
	// Duplicate messages may occur.
	AtLeastOnce QoS = 1

	// ExactlyOnce (QoS 2) - Assured delivery.
	// The message is always delivered exactly once using a four-step handshake
	// (PUBLISH, PUBREC, PUBREL, PUBCOMP). This is the safest but slowest option.
	ExactlyOnce QoS = 2
)

func (q QoS) String() string {
	switch q {
	case AtMostOnce:
		return "at-most-once"
	case AtLeastOnce:
		return "at-least-once"
	case ExactlyOnce:
		return "exactly-once"
	}
	return "invalid"
}
