package packets

import (
	"fmt"
	"io"
)

// encodeVarInt encodes an integer as a Variable Byte Integer (1-4 bytes).
// This is used for the Remaining Length field in the Fixed Header.
// Algorithm from MQTT v3.1.1 spec section 2.2.3.
func encodeVarInt(value int) []byte {
	// Small optimization: most varints are 1 byte
	if value < 128 && value >= 0 {
		return []byte{byte(value)}
	}
	return appendVarInt(make([]byte, 0, 4), value)
}

// appendVarInt appends the Variable Byte Integer encoding of value to dst.
// It returns the extended slice.
func appendVarInt(dst []byte, value int) []byte {
	if value < 0 || value > MaxRemainingLength {
		panic(fmt.Sprintf("value %d out of range for variable byte integer", value))
	}

	for {
		digit := byte(value % 128)
		value /= 128
		if value > 0 {
			digit |= 0x80
		}
		dst = append(dst, digit)
		if value == 0 {
			break
		}
	}
	return dst
}

// decodeVarInt reads a Variable Byte Integer from the reader.
func decodeVarInt(r io.Reader) (int, error) {
	var buf [1]byte
	var value, shift int

	for i := 0; ; i++ {
		if i == 4 {
			return 0, protocolErrorf("remaining length exceeds 4 bytes")
		}
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		b := buf[0]
		value |= int(b&0x7F) << shift
		if b&0x80 == 0 {
			return value, nil
		}
		shift += 7
	}
}

// decodeVarIntBuf reads a Variable Byte Integer from a byte slice.
// Returns the decoded value, number of bytes read, and error.
// ErrIncomplete is returned when the buffer ends mid-varint.
func decodeVarIntBuf(buf []byte) (int, int, error) {
	var value, shift, n int

	for {
		if n >= len(buf) {
			if n >= 4 {
				return 0, 0, protocolErrorf("remaining length exceeds 4 bytes")
			}
			return 0, 0, ErrIncomplete
		}
		b := buf[n]
		n++
		value |= int(b&0x7F) << shift
		if b&0x80 == 0 {
			return value, n, nil
		}
		if n == 4 {
			// Continuation bit set on the 4th byte: a 5th byte would be needed,
			// which the spec forbids.
			return 0, 0, protocolErrorf("remaining length exceeds 4 bytes")
		}
		shift += 7
	}
}
