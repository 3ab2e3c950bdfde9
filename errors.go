package mqttc

import (
	"errors"
	"fmt"

	"github.com/mmarban/mqttc/internal/packets"
)

// Standard errors returned by the client
var (
	// ErrConnectionRefused is returned when the server rejects the connection.
	// You can unwrap this error to find the specific reason.
	ErrConnectionRefused = errors.New("connection refused")

	// Specific connection refusal reasons, matching the CONNACK return codes.
	// All of them wrap ErrConnectionRefused.
	ErrUnacceptableProtocolVersion = fmt.Errorf("%w: unacceptable protocol version", ErrConnectionRefused)
	ErrIdentifierRejected          = fmt.Errorf("%w: identifier rejected", ErrConnectionRefused)
	ErrServerUnavailable           = fmt.Errorf("%w: server unavailable", ErrConnectionRefused)
	ErrBadUsernameOrPassword       = fmt.Errorf("%w: bad username or password", ErrConnectionRefused)
	ErrNotAuthorized               = fmt.Errorf("%w: not authorized", ErrConnectionRefused)

	// ErrSubscriptionFailed is returned when the server rejects a subscription
	// filter with a 0x80 SUBACK return code.
	ErrSubscriptionFailed = errors.New("subscription failed")

	// ErrClientDisconnected is returned when an operation is cancelled because
	// the client was disconnected or stopped.
	ErrClientDisconnected = errors.New("client disconnected")

	// ErrConnectionLost is returned when the transport fails underneath an
	// in-flight operation.
	ErrConnectionLost = errors.New("connection lost")

	// ErrProtocolViolation is the base error for malformed packets received
	// from the server. Any error wrapping it is fatal to the connection that
	// produced it: the client drops the transport rather than trying to
	// resynchronize the byte stream.
	ErrProtocolViolation = packets.ErrProtocol
)

// connackError maps a non-zero CONNACK return code to its sentinel.
func connackError(code uint8) error {
	switch code {
	case packets.ConnRefusedUnacceptableProtocol:
		return ErrUnacceptableProtocolVersion
	case packets.ConnRefusedIdentifierRejected:
		return ErrIdentifierRejected
	case packets.ConnRefusedServerUnavailable:
		return ErrServerUnavailable
	case packets.ConnRefusedBadUsernameOrPassword:
		return ErrBadUsernameOrPassword
	case packets.ConnRefusedNotAuthorized:
		return ErrNotAuthorized
	default:
		return fmt.Errorf("%w: code %d", ErrConnectionRefused, code)
	}
}

// DeliveryError is returned by a publish token when a QoS 1 or QoS 2 message
// exhausted its retransmission budget without being acknowledged. The session
// stays connected; only the single message is given up on.
type DeliveryError struct {
	// PacketID identifies the abandoned message.
	PacketID uint16

	// Attempts is the number of transmissions that went unanswered.
	Attempts int
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery of packet %d failed after %d attempts", e.PacketID, e.Attempts)
}
