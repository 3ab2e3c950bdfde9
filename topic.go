package mqttc

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MatchTopic reports whether a topic name matches a topic filter with MQTT
// wildcards:
//   - '+' matches a single level
//   - '#' matches any number of trailing levels (must be the last level)
//
// Following MQTT-4.7.2-1, filters starting with a wildcard never match topic
// names beginning with '$' (such as "$SYS/..."); a filter that names the
// '$' level literally still does.
func MatchTopic(filter, topic string) bool {
	if len(topic) > 0 && topic[0] == '$' {
		if len(filter) > 0 && (filter[0] == '+' || filter[0] == '#') {
			return false
		}
	}

	fIdx := 0
	tIdx := 0
	fLen := len(filter)
	tLen := len(topic)

	for fIdx <= fLen {
		var fLevel string
		var fNext int

		// Find next level in filter
		if idx := strings.IndexByte(filter[fIdx:], '/'); idx >= 0 {
			fNext = fIdx + idx
			fLevel = filter[fIdx:fNext]
		} else {
			fNext = fLen
			fLevel = filter[fIdx:]
		}

		if fLevel == "#" {
			// Multi-level wildcard matches everything remaining (including nothing)
			return true
		}

		// Check if we've run out of topic levels
		if tIdx > tLen {
			return false
		}

		var tLevel string
		var tNext int

		// Find next level in topic
		if idx := strings.IndexByte(topic[tIdx:], '/'); idx >= 0 {
			tNext = tIdx + idx
			tLevel = topic[tIdx:tNext]
		} else {
			tNext = tLen
			tLevel = topic[tIdx:]
		}

		if fLevel == "+" {
			// Single-level wildcard matches this level
		} else if fLevel != tLevel {
			return false
		}

		if fNext == fLen {
			fIdx = fLen + 1
		} else {
			fIdx = fNext + 1
		}

		if tNext == tLen {
			tIdx = tLen + 1
		} else {
			tIdx = tNext + 1
		}
	}

	return tIdx > tLen
}

// MQTT specification limits (defaults when not configured)
const (
	// DefaultMaxTopicLength is the maximum length of an MQTT topic (2 bytes for length prefix)
	DefaultMaxTopicLength = 65535

	// DefaultMaxPayloadSize is the maximum size of an MQTT message payload
	DefaultMaxPayloadSize = 268435455

	// DefaultMaxIncomingPacket is the maximum size of an incoming MQTT packet
	DefaultMaxIncomingPacket = 268435455

	// MaxClientIDLength is the client ID length every v3.1.1 server must accept.
	// Longer IDs are legal but some servers reject them.
	MaxClientIDLength = 23
)

// getLimit returns the configured limit or the default if not set
func getLimit(configured, defaultLimit int) int {
	if configured > 0 {
		return configured
	}
	return defaultLimit
}

// validatePublishTopic validates a topic for publishing.
// Publish topics must not contain wildcards and must follow MQTT rules.
func validatePublishTopic(topic string, opts *clientOptions) error {
	if topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}

	maxLen := getLimit(opts.MaxTopicLength, DefaultMaxTopicLength)
	if len(topic) > maxLen {
		return fmt.Errorf("topic length %d exceeds maximum %d", len(topic), maxLen)
	}

	if strings.Contains(topic, "+") {
		return fmt.Errorf("topic contains single-level wildcard '+' which is not allowed in PUBLISH")
	}

	if strings.Contains(topic, "#") {
		return fmt.Errorf("topic contains multi-level wildcard '#' which is not allowed in PUBLISH")
	}

	if strings.Contains(topic, "\x00") {
		return fmt.Errorf("topic contains null byte which is not allowed")
	}

	if !utf8.ValidString(topic) {
		return fmt.Errorf("topic is not valid UTF-8")
	}

	return nil
}

// validateSubscribeTopic validates a topic filter for subscribing.
// Subscribe topics may contain wildcards but must follow MQTT rules.
func validateSubscribeTopic(topic string, opts *clientOptions) error {
	if topic == "" {
		return fmt.Errorf("topic filter cannot be empty")
	}

	maxLen := getLimit(opts.MaxTopicLength, DefaultMaxTopicLength)
	if len(topic) > maxLen {
		return fmt.Errorf("topic filter length %d exceeds maximum %d", len(topic), maxLen)
	}

	if strings.Contains(topic, "\x00") {
		return fmt.Errorf("topic filter contains null byte which is not allowed")
	}

	if !utf8.ValidString(topic) {
		return fmt.Errorf("topic filter is not valid UTF-8")
	}

	// Validate wildcard usage
	parts := strings.Split(topic, "/")
	for i, part := range parts {
		// Single-level wildcard must be alone in the level
		if strings.Contains(part, "+") && part != "+" {
			return fmt.Errorf("single-level wildcard '+' must occupy entire topic level")
		}

		// Multi-level wildcard must be last and alone
		if strings.Contains(part, "#") {
			if part != "#" {
				return fmt.Errorf("multi-level wildcard '#' must occupy entire topic level")
			}
			if i != len(parts)-1 {
				return fmt.Errorf("multi-level wildcard '#' must be the last character")
			}
		}
	}

	return nil
}

// validatePayloadSize validates message payload size.
func validatePayloadSize(payload []byte, opts *clientOptions) error {
	maxSize := getLimit(opts.MaxPayloadSize, DefaultMaxPayloadSize)
	if len(payload) > maxSize {
		return fmt.Errorf("payload size %d exceeds maximum %d", len(payload), maxSize)
	}
	return nil
}
