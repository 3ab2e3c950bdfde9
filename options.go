package mqttc

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"time"
)

// ContextDialer is an interface for custom network dialing logic.
// It matches the signature of net.Dialer.DialContext.
type ContextDialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// clientOptions holds configuration for the MQTT client.
type clientOptions struct {
	// MQTT server address (e.g., "tcp://localhost:1883")
	Server string

	// Client identifier
	ClientID string

	// Username for authentication (optional)
	Username string

	// Password for authentication (optional)
	Password string

	// Keep alive interval
	KeepAlive time.Duration

	// Clean session flag
	CleanSession bool

	// Auto-reconnect on connection loss
	AutoReconnect bool

	// Connection timeout
	ConnectTimeout time.Duration

	// Reconnect backoff (exponential, doubling from initial to max)
	ReconnectInitialBackoff time.Duration
	ReconnectMaxBackoff     time.Duration

	// Retransmission of unacknowledged QoS 1/2 packets
	RetryInterval time.Duration
	MaxRetries    int

	// MaxInflight caps the number of QoS 1/2 publishes awaiting
	// acknowledgement at once. Excess publishes queue client-side.
	// 0 = unlimited.
	MaxInflight int

	// TLS configuration (optional)
	TLSConfig *tls.Config

	// Logger for client events (optional, defaults to discarding logs)
	Logger *slog.Logger

	// Limits (0 = use MQTT spec defaults)
	MaxTopicLength    int // Maximum topic length (default: 65535)
	MaxPayloadSize    int // Maximum outgoing payload size (default: 256MB)
	MaxIncomingPacket int // Maximum incoming packet size (default: 256MB)

	// Will message (optional)
	will *willMessage

	// Lifecycle hooks (optional)
	OnConnect        func(*Client)
	OnConnectionLost func(*Client, error)

	// Initial subscriptions (optional)
	InitialSubscriptions map[string]MessageHandler

	// Default publish handler (optional)
	// Called when a PUBLISH packet doesn't match any registered subscription.
	DefaultPublishHandler MessageHandler

	// Custom dialer (optional)
	// If set, this is used to establish the connection instead of net.Dialer.
	Dialer ContextDialer

	// Session store for persistence (optional)
	// If set, session state will be persisted across process restarts.
	SessionStore SessionStore
}

// willMessage represents the Last Will and Testament message.
type willMessage struct {
	Topic    string
	Payload  []byte
	QoS      uint8
	Retained bool
}

// Option is a functional option for configuring the client.
type Option func(*clientOptions)

// WithClientID sets the client identifier.
//
// The client ID uniquely identifies this client to the MQTT server.
//
// Empty client ID behavior:
//   - With CleanSession=true: the client generates a random ID locally
//   - With CleanSession=false: Dial fails, since the server could not
//     associate the session with anything on reconnect
//
// IDs longer than 23 bytes are accepted but logged as a warning, because the
// v3.1.1 specification only requires servers to accept IDs up to that length.
func WithClientID(id string) Option {
	return func(o *clientOptions) {
		o.ClientID = id
	}
}

// WithCredentials sets the username and password for authentication.
func WithCredentials(username, password string) Option {
	return func(o *clientOptions) {
		o.Username = username
		o.Password = password
	}
}

// WithKeepAlive sets the MQTT keep alive interval (default: 60s).
//
// The client sends a PINGREQ when the connection is idle and declares the
// connection dead when nothing at all is received from the server within
// 1.5 times this interval. Set to 0 to disable keepalive probing.
func WithKeepAlive(duration time.Duration) Option {
	return func(o *clientOptions) {
		o.KeepAlive = duration
	}
}

// WithCleanSession sets the clean session flag.
//
// When set to true (default), the server will discard any previous session
// state and subscriptions for this client ID. Each connection starts fresh.
//
// When set to false, the server maintains session state across disconnections:
//   - Subscriptions persist and are restored on reconnect
//   - QoS 1 and 2 messages sent while offline are queued for delivery
//   - The client MUST use a non-empty client ID (via WithClientID)
//
// Use false for reliable message delivery across network interruptions.
//
// Example (persistent session):
//
//	client, err := mqttc.Dial("tcp://localhost:1883",
//	    mqttc.WithClientID("sensor-1"),        // Required for CleanSession=false
//	    mqttc.WithCleanSession(false))
func WithCleanSession(clean bool) Option {
	return func(o *clientOptions) {
		o.CleanSession = clean
	}
}

// WithAutoReconnect enables or disables automatic reconnection (default: true).
func WithAutoReconnect(enable bool) Option {
	return func(o *clientOptions) {
		o.AutoReconnect = enable
	}
}

// WithConnectTimeout sets the connection timeout (default: 30s).
func WithConnectTimeout(duration time.Duration) Option {
	return func(o *clientOptions) {
		o.ConnectTimeout = duration
	}
}

// WithReconnectBackoff configures the reconnection backoff.
//
// After a connection loss the client waits initial, then doubles the wait on
// every failed attempt up to max. Defaults: 1s initial, 2m max.
func WithReconnectBackoff(initial, max time.Duration) Option {
	return func(o *clientOptions) {
		o.ReconnectInitialBackoff = initial
		o.ReconnectMaxBackoff = max
	}
}

// WithRetry configures retransmission of unacknowledged QoS 1 and QoS 2
// packets.
//
// A packet that has not been acknowledged within interval is retransmitted
// with the DUP flag set. After maxRetries unanswered transmissions the
// operation's token completes with a *DeliveryError and the message is given
// up on; the connection itself stays up. maxRetries of 0 retries forever.
//
// Defaults: 10s interval, 5 retries.
func WithRetry(interval time.Duration, maxRetries int) Option {
	return func(o *clientOptions) {
		o.RetryInterval = interval
		o.MaxRetries = maxRetries
	}
}

// WithMaxInflight caps the number of QoS 1 and QoS 2 publishes awaiting
// acknowledgement at any moment. Publishes beyond the cap are queued
// client-side and sent as acknowledgements come in. 0 (default) means no cap.
func WithMaxInflight(n int) Option {
	return func(o *clientOptions) {
		o.MaxInflight = n
	}
}

// WithTLS sets the TLS configuration for secure connections.
// Pass nil for default TLS settings, or provide a custom *tls.Config.
// The server URL should use "tls://", "ssl://", or "mqtts://" scheme, or this
// option will enable TLS for "tcp://" URLs as well.
//
// Certificates are verified by default. To connect to a server with an
// untrusted certificate, the caller must pass a config with
// InsecureSkipVerify set explicitly.
func WithTLS(config *tls.Config) Option {
	return func(o *clientOptions) {
		o.TLSConfig = config
	}
}

// WithDefaultPublishHandler sets a fallback handler for incoming PUBLISH
// messages that do not match any registered subscription.
//
// This is useful for:
//   - Handling messages received during reconnection race conditions
//   - Handling persistent subscriptions restored without a registered handler
//   - Debugging or logging unexpected messages
//
// If not set (default), messages matching no subscription are silently dropped
// (but still acknowledged to comply with the protocol).
func WithDefaultPublishHandler(handler MessageHandler) Option {
	return func(o *clientOptions) {
		o.DefaultPublishHandler = handler
	}
}

// WithLogger sets a custom logger for the client.
// If not provided, the client will use a logger that discards all output.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	}))
//	client, _ := mqttc.Dial("tcp://localhost:1883", mqttc.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.Logger = logger
	}
}

// WithDialer sets a custom dialer for establishing the network connection.
// This enables support for alternative transports like WebSockets, Unix
// sockets, or proxying, without adding dependencies to the core library.
//
// If provided, the library will skip its standard scheme validation and
// delegate the connection creation entirely to the dialer.
//
// The dialer's DialContext method receives:
//   - ctx: The context provided to DialContext (or one created from WithConnectTimeout if using Dial)
//   - network: The scheme from the server URL (e.g. "ws", "tcp", "unix")
//   - addr: The original server string passed to Dial
func WithDialer(dialer ContextDialer) Option {
	return func(o *clientOptions) {
		o.Dialer = dialer
	}
}

// DialFunc is a helper to convert a function to the ContextDialer interface.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// DialContext implements ContextDialer.
func (f DialFunc) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return f(ctx, network, addr)
}

// WithWill sets the Last Will and Testament (LWT) message.
//
// The LWT is a message that the MQTT server will automatically publish on
// behalf of the client if the client disconnects unexpectedly (e.g., network
// failure, crash, or power loss). It is NOT sent on graceful disconnects via
// Disconnect().
//
// This is commonly used to notify other clients that a device has gone
// offline:
//
//	client, err := mqttc.Dial("tcp://localhost:1883",
//	    mqttc.WithClientID("sensor-1"),
//	    mqttc.WithWill("devices/sensor-1/status", []byte("offline"), 1, true))
//
// Other clients can subscribe to "devices/+/status" to monitor device
// connectivity.
func WithWill(topic string, payload []byte, qos QoS, retained bool) Option {
	return func(o *clientOptions) {
		o.will = &willMessage{
			Topic:    topic,
			Payload:  payload,
			QoS:      uint8(qos),
			Retained: retained,
		}
	}
}

// WithOnConnect sets the handler to be called when the client connects.
// This is called for the initial connection and every successful reconnection.
//
// The handler is invoked asynchronously in a separate goroutine. This allows
// implementing complex setup logic (e.g., subscribing, publishing) without
// blocking the connection process or logic loop.
func WithOnConnect(onConnect func(*Client)) Option {
	return func(o *clientOptions) {
		o.OnConnect = onConnect
	}
}

// WithOnConnectionLost sets the handler to be called when the connection is
// lost. The error parameter provides the reason for disconnection.
//
// The handler is invoked asynchronously in a separate goroutine to ensure
// it does not block internal cleanup or reconnection attempts.
func WithOnConnectionLost(onConnectionLost func(*Client, error)) Option {
	return func(o *clientOptions) {
		o.OnConnectionLost = onConnectionLost
	}
}

// WithSubscription defines a subscription that the client should maintain.
//
// This serves two purposes:
//  1. Registers the MessageHandler locally before connection (preventing race conditions).
//  2. Automatically subscribes to the topic on connection/reconnection if needed.
//
// For persistent sessions (CleanSession=false):
//   - If SessionPresent=true: the server has the subscription; we just register the handler locally.
//   - If SessionPresent=false: the client will automatically resubscribe to this topic.
//
// For clean sessions (CleanSession=true):
//   - The client will automatically subscribe to this topic on every connection.
func WithSubscription(topic string, handler MessageHandler) Option {
	return func(o *clientOptions) {
		if o.InitialSubscriptions == nil {
			o.InitialSubscriptions = make(map[string]MessageHandler)
		}
		o.InitialSubscriptions[topic] = handler
	}
}

// WithSessionStore sets a custom session store for persistence.
//
// If set, session state (pending publishes, subscriptions, received QoS 2
// IDs) will be persisted across process restarts. This enables the client to
// resume unacknowledged messages and subscriptions after a crash or reboot.
//
// The store is only loaded when the process starts (not on network
// reconnects). During normal reconnections, the in-memory state is used
// directly.
//
// Example with file-based storage:
//
//	store, err := mqttc.NewFileStore("/var/lib/mqtt", "sensor-1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := mqttc.Dial("tcp://localhost:1883",
//	    mqttc.WithClientID("sensor-1"),
//	    mqttc.WithCleanSession(false),
//	    mqttc.WithSessionStore(store))
func WithSessionStore(store SessionStore) Option {
	return func(o *clientOptions) {
		o.SessionStore = store
	}
}

// WithMaxTopicLength overrides the maximum accepted topic length.
func WithMaxTopicLength(n int) Option {
	return func(o *clientOptions) {
		o.MaxTopicLength = n
	}
}

// WithMaxPayloadSize overrides the maximum accepted outgoing payload size.
func WithMaxPayloadSize(n int) Option {
	return func(o *clientOptions) {
		o.MaxPayloadSize = n
	}
}

// WithMaxIncomingPacket overrides the maximum accepted incoming packet size.
// Incoming packets larger than this are a fatal connection error.
func WithMaxIncomingPacket(n int) Option {
	return func(o *clientOptions) {
		o.MaxIncomingPacket = n
	}
}

// defaultOptions returns the default client options.
func defaultOptions(server string) *clientOptions {
	return &clientOptions{
		Server:         server,
		ClientID:       "",
		KeepAlive:      60 * time.Second,
		CleanSession:   true,
		AutoReconnect:  true,
		ConnectTimeout: 30 * time.Second,

		ReconnectInitialBackoff: time.Second,
		ReconnectMaxBackoff:     2 * time.Minute,

		RetryInterval: 10 * time.Second,
		MaxRetries:    5,

		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),

		// Use MQTT spec defaults (0 = use defaults in validation functions)
		MaxTopicLength:    0,
		MaxPayloadSize:    0,
		MaxIncomingPacket: 0,
	}
}
