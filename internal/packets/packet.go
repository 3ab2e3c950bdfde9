// Package packets implements the MQTT v3.1.1 wire protocol: one type per
// control packet, plus the fixed-header, string and variable-byte-integer
// encodings they share.
//
// Two decoding paths are provided. Decode works on a byte buffer and reports
// ErrIncomplete when the buffer does not yet hold a whole packet, which lets
// a read loop accumulate bytes without framing the stream itself. ReadPacket
// works on an io.Reader and blocks until a whole packet arrives; it is the
// right tool for handshakes and test harnesses.
package packets

import "io"

// Packet is implemented by all MQTT control packets.
type Packet interface {
	// Type returns the control packet type (CONNECT, PUBLISH, ...).
	Type() uint8

	// WriteTo serializes the packet to the writer.
	WriteTo(w io.Writer) (int64, error)
}

// Encoder is implemented by packets that can serialize themselves into a
// caller-provided buffer, avoiding the io.Writer indirection on the hot path.
type Encoder interface {
	// Encode appends the serialized packet to dst and returns the extended
	// slice.
	Encode(dst []byte) ([]byte, error)
}
