// Package display renders connection status and received messages to the
// terminal with color.
package display

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
)

var (
	statusOK   = color.New(color.FgGreen)
	statusErr  = color.New(color.FgRed)
	headerCol  = color.New(color.FgCyan, color.Bold)
	topicCol   = color.New(color.FgYellow)
	metaCol    = color.New(color.FgMagenta)
	payloadCol = color.New(color.FgWhite)
)

// Renderer writes formatted output to a terminal. It keeps a running message
// counter and is safe for concurrent use (message handlers run on separate
// goroutines).
type Renderer struct {
	mu    sync.Mutex
	w     io.Writer
	count int
}

// New creates a Renderer writing to w.
func New(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

// Status prints a green status line.
func (r *Renderer) Status(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	statusOK.Fprintf(r.w, format+"\n", args...)
}

// Error prints a red error line.
func (r *Renderer) Error(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	statusErr.Fprintf(r.w, format+"\n", args...)
}

// Message prints a received message as a block: counter, timestamp, topic,
// QoS, retain flag, then the payload.
func (r *Renderer) Message(topic string, payload []byte, qos uint8, retained bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.count++

	headerCol.Fprintf(r.w, "--- message #%d  %s ---\n",
		r.count, time.Now().Format("15:04:05"))
	topicCol.Fprintf(r.w, "topic: %s\n", topic)

	meta := fmt.Sprintf("qos: %d", qos)
	if retained {
		meta += "  retained"
	}
	metaCol.Fprintln(r.w, meta)

	payloadCol.Fprintln(r.w, FormatPayload(payload))
}

// FormatPayload renders a payload for the terminal: indented JSON when the
// payload parses as JSON, raw text for other UTF-8 data, and a byte-count
// placeholder for binary.
func FormatPayload(payload []byte) string {
	if len(payload) == 0 {
		return "(empty)"
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		var buf bytes.Buffer
		if err := json.Indent(&buf, trimmed, "", "  "); err == nil {
			return buf.String()
		}
	}

	if utf8.Valid(payload) {
		return string(payload)
	}

	return fmt.Sprintf("(%d bytes of binary data)", len(payload))
}
