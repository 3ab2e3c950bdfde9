package mqttc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mmarban/mqttc/internal/packets"
)

type subscriptionEntry struct {
	handler MessageHandler
	qos     uint8
	persist bool
}

// Client represents an MQTT client connection.
type Client struct {
	// Configuration
	opts *clientOptions

	// Connection. connStop is closed when this particular connection is
	// torn down, so the loops of a dead connection exit instead of touching
	// the shared channels after a reconnect.
	conn     net.Conn
	connStop chan struct{}
	connLock sync.RWMutex

	// Channels for goroutine communication
	outgoing       chan packets.Packet // Packets to send
	incoming       chan packets.Packet // Packets received
	packetReceived chan struct{}       // Signal when packet received (for keepalive)
	pingPendingCh  chan struct{}       // Signal when PINGRESP received
	stop           chan struct{}       // Shutdown signal

	// Session State Lock guards:
	// - pending
	// - subscriptions
	// - receivedQoS2
	// - inFlightCount
	// - publishQueue
	// - nextPacketID
	sessionLock sync.Mutex

	// Internal queues
	publishQueue []*publishRequest

	// Session state
	nextPacketID  uint16
	pending       map[uint16]*pendingOp // Outgoing in-flight packets (PUBLISH QoS 1/2, SUBSCRIBE, UNSUBSCRIBE)
	subscriptions map[string]subscriptionEntry
	receivedQoS2  map[uint16]struct{} // Track received QoS 2 packet IDs to prevent duplicates
	inFlightCount int                 // Number of QoS 1/2 publishes currently in flight (outgoing)

	// Lifecycle
	connected atomic.Bool
	wg        sync.WaitGroup

	// Stats (atomic)
	packetsSent     atomic.Uint64
	packetsReceived atomic.Uint64
	bytesSent       atomic.Uint64
	bytesReceived   atomic.Uint64
	reconnectCount  atomic.Uint64

	// For reconnection
	disconnected chan struct{}
}

// publishRequest represents a request to publish a message.
type publishRequest struct {
	packet *packets.PublishPacket
	token  *token
}

// subscribeRequest represents a request to subscribe to a topic.
type subscribeRequest struct {
	packet  *packets.SubscribePacket
	handler MessageHandler
	token   *token
	persist bool
}

// unsubscribeRequest represents a request to unsubscribe from topics.
type unsubscribeRequest struct {
	packet *packets.UnsubscribePacket
	topics []string
	token  *token
}

// pendingOp tracks an in-flight operation (publish, subscribe, etc.)
type pendingOp struct {
	packet    packets.Packet
	token     *token
	qos       uint8
	timestamp time.Time
	attempts  int
}

// DialContext establishes a connection to an MQTT server with a context and
// returns a Client.
//
// The context is used to control the initial connection establishment,
// including the network dial, TLS handshake, and MQTT CONNECT handshake. If
// the context is cancelled or expires before the handshake completes,
// DialContext returns an error.
//
// When using DialContext, the WithConnectTimeout option is ignored for the
// initial connection (as the provided context takes precedence), but it is
// still used for subsequent automatic reconnection attempts.
//
// Once the initial connection is established, the context's expiration has no
// effect on the ongoing connection or background maintenance.
//
// Example:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//
//	client, err := mqttc.DialContext(ctx, "tcp://localhost:1883",
//	    mqttc.WithClientID("my-client"))
func DialContext(ctx context.Context, server string, opts ...Option) (*Client, error) {
	options := defaultOptions(server)
	for _, opt := range opts {
		opt(options)
	}

	if options.Logger != nil {
		options.Logger = options.Logger.With("lib", "mqttc")
	}

	if options.ClientID == "" {
		if !options.CleanSession {
			return nil, fmt.Errorf("a non-empty client ID is required when CleanSession is false")
		}
		options.ClientID = "mqttc-" + uuid.NewString()[:13]
		options.Logger.Debug("generated client ID", "client_id", options.ClientID)
	}
	if len(options.ClientID) > MaxClientIDLength {
		options.Logger.Warn("client ID exceeds 23 bytes, some v3.1.1 servers reject it",
			"client_id", options.ClientID, "length", len(options.ClientID))
	}

	c := &Client{
		opts:     options,
		outgoing: make(chan packets.Packet, 1000),
		incoming: make(chan packets.Packet, 100),

		packetReceived: make(chan struct{}, 1),
		pingPendingCh:  make(chan struct{}, 1),
		stop:           make(chan struct{}),
		pending:        make(map[uint16]*pendingOp),
		subscriptions:  make(map[string]subscriptionEntry),
		receivedQoS2:   make(map[uint16]struct{}),
		disconnected:   make(chan struct{}, 1),
	}

	for topic, handler := range options.InitialSubscriptions {
		c.subscriptions[topic] = subscriptionEntry{
			handler: handler,
			persist: true,
		}
	}

	if !c.opts.CleanSession {
		if err := c.loadSessionState(); err != nil {
			c.opts.Logger.Warn("failed to load session state", "error", err)
		}
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.logicLoop()

	if options.AutoReconnect {
		c.wg.Add(1)
		go c.reconnectLoop()
	}

	return c, nil
}

// Dial establishes a connection to an MQTT server and returns a Client.
//
// It is a wrapper around DialContext that uses the configured connection
// timeout (see WithConnectTimeout) to control the initial handshake.
//
// The server parameter specifies the server address with scheme and port.
// Supported schemes:
//   - tcp://  or mqtt://  - Unencrypted connection (default port 1883)
//   - tls://, ssl://, or mqtts:// - TLS encrypted connection (default port 8883)
//
// Options can be provided to configure the client behavior. Common options
// include WithClientID, WithCredentials, WithKeepAlive, WithTLS, and
// WithAutoReconnect.
//
// The function performs the MQTT handshake and starts background goroutines
// for reading, writing, and managing the connection. If AutoReconnect is
// enabled (default: true), the client will automatically reconnect on
// connection loss.
//
// Example (basic connection):
//
//	client, err := mqttc.Dial("tcp://localhost:1883",
//	    mqttc.WithClientID("my-client"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Disconnect(context.Background())
//
// Example (with authentication):
//
//	client, err := mqttc.Dial("tcp://server:1883",
//	    mqttc.WithClientID("secure-client"),
//	    mqttc.WithCredentials("username", "password"))
//
// Example (TLS connection):
//
//	client, err := mqttc.Dial("tls://server:8883",
//	    mqttc.WithClientID("tls-client"),
//	    mqttc.WithTLS(&tls.Config{}))
func Dial(server string, opts ...Option) (*Client, error) {
	// Parse options purely to get the ConnectTimeout
	options := defaultOptions(server)
	for _, opt := range opts {
		opt(options)
	}

	ctx, cancel := context.WithTimeout(context.Background(), options.ConnectTimeout)
	defer cancel()

	return DialContext(ctx, server, opts...)
}

// connect establishes the network connection and performs the MQTT handshake.
func (c *Client) connect(ctx context.Context) error {
	c.opts.Logger.Debug("connecting to MQTT server", "server", c.opts.Server)

	conn, err := c.dialServer(ctx)
	if err != nil {
		return err
	}

	connStop := make(chan struct{})
	c.connLock.Lock()
	c.conn = conn
	c.connStop = connStop
	c.connLock.Unlock()

	cr := &countingReader{Reader: conn, c: c}
	cw := &countingWriter{Writer: conn, c: c}

	// On a failed handshake the half-open connection must not stay
	// registered, or a later teardown could mistake it for a live one.
	fail := func() {
		c.connLock.Lock()
		c.conn = nil
		c.connStop = nil
		c.connLock.Unlock()
		conn.Close()
	}

	connectPkt := c.buildConnectPacket()
	if _, err := connectPkt.WriteTo(cw); err != nil {
		fail()
		return fmt.Errorf("failed to send CONNECT: %w", err)
	}
	c.packetsSent.Add(1)

	connack, err := c.awaitConnack(ctx, cr)
	if err != nil {
		fail()
		return err
	}

	if connack.ReturnCode != packets.ConnAccepted {
		fail()
		return connackError(connack.ReturnCode)
	}

	if !c.opts.CleanSession {
		if err := c.checkSessionPresent(connack.SessionPresent); err != nil {
			c.opts.Logger.Warn("failed to check session present", "error", err)
		}
	}

	c.opts.Logger.Debug("connection established", "server", c.opts.Server)

	c.connected.Store(true)

	if c.opts.OnConnect != nil {
		go c.opts.OnConnect(c)
	}

	c.wg.Add(2)
	go c.readLoop(conn, connStop)
	go c.writeLoop(conn, connStop)

	c.opts.Logger.Debug("client started", "client_id", c.opts.ClientID)
	return nil
}

// dialServer establishes a TCP, TLS, or custom connection to the MQTT server.
func (c *Client) dialServer(ctx context.Context) (net.Conn, error) {
	// If a custom dialer is provided, trust it to handle the scheme and address.
	// Pass the raw server string as the address to allow flexibility (e.g. WebSocket paths).
	if c.opts.Dialer != nil {
		network := "tcp"
		if u, err := url.Parse(c.opts.Server); err == nil && u.Scheme != "" {
			network = u.Scheme
		}

		conn, err := c.opts.Dialer.DialContext(ctx, network, c.opts.Server)
		if err != nil {
			return nil, fmt.Errorf("custom dialer failed: %w", err)
		}
		return conn, nil
	}

	u, err := url.Parse(c.opts.Server)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	if u.Port() == "" {
		switch u.Scheme {
		case "tls", "ssl", "mqtts":
			u.Host = net.JoinHostPort(u.Host, "8883")
		case "tcp", "mqtt", "":
			u.Host = net.JoinHostPort(u.Host, "1883")
		}
	}

	useTLS := u.Scheme == "tls" || u.Scheme == "ssl" || u.Scheme == "mqtts" || c.opts.TLSConfig != nil
	if !useTLS && u.Scheme != "tcp" && u.Scheme != "mqtt" {
		return nil, fmt.Errorf("unsupported scheme: %s (supported: tcp, mqtt, tls, ssl, mqtts)", u.Scheme)
	}

	var conn net.Conn
	if useTLS {
		tlsConfig := c.opts.TLSConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{}
		}
		dialer := &tls.Dialer{
			NetDialer: &net.Dialer{},
			Config:    tlsConfig,
		}
		conn, err = dialer.DialContext(ctx, "tcp", u.Host)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", u.Host)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}

	return conn, nil
}

// buildConnectPacket creates a CONNECT packet with the client's configuration.
func (c *Client) buildConnectPacket() *packets.ConnectPacket {
	pkt := &packets.ConnectPacket{
		CleanSession: c.opts.CleanSession,
		KeepAlive:    uint16(c.opts.KeepAlive.Seconds()),
		ClientID:     c.opts.ClientID,
		Username:     c.opts.Username,
	}

	if c.opts.Password != "" {
		pkt.Password = []byte(c.opts.Password)
	}

	if c.opts.will != nil {
		pkt.WillTopic = c.opts.will.Topic
		pkt.WillMessage = c.opts.will.Payload
		pkt.WillQoS = c.opts.will.QoS
		pkt.WillRetain = c.opts.will.Retained
	}

	return pkt
}

// awaitConnack reads the server's response to CONNECT. Anything other than a
// CONNACK at this point is a protocol violation.
func (c *Client) awaitConnack(ctx context.Context, r io.Reader) (*packets.ConnackPacket, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.opts.ConnectTimeout)
	}

	c.connLock.RLock()
	conn := c.conn
	c.connLock.RUnlock()
	_ = conn.SetReadDeadline(deadline)
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	pkt, err := packets.ReadPacket(r, c.opts.MaxIncomingPacket)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read CONNACK: %w", err)
	}
	c.packetsReceived.Add(1)

	connack, ok := pkt.(*packets.ConnackPacket)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("%w: expected CONNACK, got %s",
			ErrProtocolViolation, packets.PacketNames[pkt.Type()])
	}
	return connack, nil
}

// readLoop continuously reads bytes from the network and decodes packets out
// of an accumulation buffer. A short read leaves the partial packet in the
// buffer; a malformed packet kills the connection. The loop is tied to one
// connection and exits when that connection is torn down.
func (c *Client) readLoop(conn net.Conn, connStop <-chan struct{}) {
	defer c.wg.Done()
	defer c.handleDisconnect(conn)

	cr := &countingReader{Reader: conn, c: c}

	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)

	for {
		for len(buf) > 0 {
			pkt, n, err := packets.Decode(buf)
			if errors.Is(err, packets.ErrIncomplete) {
				break
			}
			if err != nil {
				c.opts.Logger.Error("protocol violation, dropping connection", "error", err)
				return
			}
			buf = buf[:copy(buf, buf[n:])]

			c.packetsReceived.Add(1)
			c.opts.Logger.Debug("received packet", "type", packets.PacketNames[pkt.Type()])

			select {
			case c.packetReceived <- struct{}{}:
			default:
			}

			select {
			case c.incoming <- pkt:
			case <-connStop:
				return
			case <-c.stop:
				c.opts.Logger.Debug("readLoop stopped")
				return
			}
		}

		// The fixed header is at most 5 bytes; anything beyond limit+5 still
		// incomplete means the announced packet is over the limit.
		if limit := getLimit(c.opts.MaxIncomingPacket, DefaultMaxIncomingPacket); len(buf) > limit+5 {
			c.opts.Logger.Error("incoming packet exceeds size limit", "limit", limit)
			return
		}

		n, err := cr.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			c.opts.Logger.Debug("read error, disconnecting", "error", err)
			return
		}
	}
}

// writeLoop continuously writes packets to the network and handles keepalive.
// Like readLoop, it serves exactly one connection; the ping-pending state is
// local so a fresh connection always starts with a clean keepalive cycle.
func (c *Client) writeLoop(conn net.Conn, connStop <-chan struct{}) {
	defer c.wg.Done()

	var ticker *time.Ticker
	var tickerCh <-chan time.Time

	if c.opts.KeepAlive > 0 {
		// Ticker runs 4 times per keepalive interval for better resolution
		ticker = time.NewTicker(c.opts.KeepAlive / 4)
		defer ticker.Stop()
		tickerCh = ticker.C
	}

	cw := &countingWriter{Writer: conn, c: c}
	lastReceived := time.Now()
	lastSent := lastReceived
	pingPending := false

	for {
		select {
		case pkt := <-c.outgoing:
			c.opts.Logger.Debug("sending packet", "type", packets.PacketNames[pkt.Type()])
			if _, err := pkt.WriteTo(cw); err != nil {
				c.opts.Logger.Debug("write error, disconnecting", "error", err)
				c.handleDisconnect(conn)
				return
			}
			c.packetsSent.Add(1)
			lastSent = time.Now()

		case <-c.packetReceived:
			// Update lastReceived timestamp when any packet arrives
			lastReceived = time.Now()

		case <-c.pingPendingCh:
			// PINGRESP received, clear pending flag
			pingPending = false

		case <-tickerCh:
			// Check if we've received anything recently (1.5x keepalive timeout)
			timeout := c.opts.KeepAlive + c.opts.KeepAlive/2
			if time.Since(lastReceived) >= timeout {
				c.opts.Logger.Debug("keepalive timeout, no packets received",
					"timeout", timeout,
					"last_received", time.Since(lastReceived))
				c.handleDisconnect(conn)
				return
			}

			// Send PINGREQ if we haven't sent anything for 3/4 of the keepalive
			// interval OR if we haven't received anything for 3/4 of the keepalive
			// interval. This ensures we actively probe the connection even when
			// publishing regularly. Only send if no PINGREQ is currently pending.
			threshold := c.opts.KeepAlive - (c.opts.KeepAlive / 4)
			timeSinceSent := time.Since(lastSent)
			timeSinceReceived := time.Since(lastReceived)

			if !pingPending && (timeSinceSent >= threshold || timeSinceReceived >= threshold) {
				c.opts.Logger.Debug("sending PINGREQ",
					"time_since_sent", timeSinceSent,
					"time_since_received", timeSinceReceived)

				ping := &packets.PingreqPacket{}
				if _, err := ping.WriteTo(cw); err != nil {
					c.handleDisconnect(conn)
					return
				}
				c.packetsSent.Add(1)
				lastSent = time.Now()
				pingPending = true
			}

		case <-connStop:
			return

		case <-c.stop:
			c.opts.Logger.Debug("writeLoop stopped")
			return
		}
	}
}

// handleDisconnect tears down the given connection. It is a no-op when a
// newer connection has already replaced conn, so the loops of a dead
// connection can never kill their successor.
func (c *Client) handleDisconnect(conn net.Conn) {
	c.connLock.Lock()
	if conn == nil || c.conn != conn {
		c.connLock.Unlock()
		return // Already torn down, or a newer connection took over
	}
	c.conn = nil
	if c.connStop != nil {
		close(c.connStop)
		c.connStop = nil
	}
	c.connLock.Unlock()

	conn.Close()

	if !c.connected.Swap(false) {
		return // Graceful disconnect in progress
	}

	if c.opts.OnConnectionLost != nil {
		go c.opts.OnConnectionLost(c, ErrConnectionLost)
	}

	// Signal reconnect loop
	select {
	case c.disconnected <- struct{}{}:
	default:
	}
}

// dropConnection tears down whichever connection is currently active.
func (c *Client) dropConnection() {
	c.connLock.RLock()
	conn := c.conn
	c.connLock.RUnlock()
	c.handleDisconnect(conn)
}

// IsConnected returns true if the client is currently connected to the server.
// This method is thread-safe.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Disconnect gracefully disconnects from the server.
//
// It sends a DISCONNECT packet to the server, stops all background
// goroutines, and closes the network connection. The function blocks until
// all goroutines have exited or the context is cancelled.
//
// Any operations still in flight complete with ErrClientDisconnected. The
// DISCONNECT packet is sent best-effort; no response is defined for it.
//
// If AutoReconnect is enabled, it will be disabled after calling Disconnect.
// To reconnect, create a new client with Dial.
func (c *Client) Disconnect(ctx context.Context) error {
	c.opts.Logger.Debug("disconnecting from server")

	// Mark as disconnected first
	if !c.connected.Swap(false) {
		return nil // Already disconnected
	}

	// Send DISCONNECT packet
	select {
	case c.outgoing <- &packets.DisconnectPacket{}:
	case <-time.After(100 * time.Millisecond):
		// Timeout sending disconnect, continue anyway
	}

	// Give it a moment to send
	time.Sleep(100 * time.Millisecond)

	// Stop all goroutines
	close(c.stop)

	// Close connection to unblock readLoop
	c.connLock.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.connStop != nil {
		close(c.connStop)
		c.connStop = nil
	}
	c.connLock.Unlock()

	// Wait for goroutines with timeout
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.opts.Logger.Debug("disconnected successfully")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for goroutines to exit")
	}
}

// reconnectLoop handles automatic reconnection.
func (c *Client) reconnectLoop() {
	defer c.wg.Done()

	backoff := c.opts.ReconnectInitialBackoff

	for {
		select {
		case <-c.disconnected:
			// Wait before reconnecting
			select {
			case <-time.After(backoff):
			case <-c.stop:
				return
			}

			c.reconnectCount.Add(1)

			ctx, cancel := context.WithTimeout(context.Background(), c.opts.ConnectTimeout)
			err := c.connect(ctx)
			cancel()

			if err != nil {
				c.opts.Logger.Debug("reconnect attempt failed", "error", err, "backoff", backoff)
				backoff = min(backoff*2, c.opts.ReconnectMaxBackoff)

				// Signal disconnected again to retry
				select {
				case c.disconnected <- struct{}{}:
				default:
				}
				continue
			}

			backoff = c.opts.ReconnectInitialBackoff

			if c.opts.CleanSession {
				c.internalResetState()
			} else {
				c.resendPending()
			}

			c.resubscribeAll()

		case <-c.stop:
			c.opts.Logger.Debug("reconnectLoop stopped")
			return
		}
	}
}

// ClientStats holds connection and throughput statistics.
type ClientStats struct {
	PacketsSent     uint64
	PacketsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
	ReconnectCount  uint64
	Connected       bool
}

// Stats returns the current client statistics.
func (c *Client) Stats() ClientStats {
	return ClientStats{
		PacketsSent:     c.packetsSent.Load(),
		PacketsReceived: c.packetsReceived.Load(),
		BytesSent:       c.bytesSent.Load(),
		BytesReceived:   c.bytesReceived.Load(),
		ReconnectCount:  c.reconnectCount.Load(),
		Connected:       c.IsConnected(),
	}
}

type countingReader struct {
	io.Reader
	c *Client
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	if n > 0 {
		r.c.bytesReceived.Add(uint64(n))
	}
	return n, err
}

type countingWriter struct {
	io.Writer
	c *Client
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.Writer.Write(p)
	if n > 0 {
		w.c.bytesSent.Add(uint64(n))
	}
	return n, err
}
