package packets

import (
	"bytes"
	"encoding/binary"
	"unicode/utf8"
)

// appendString appends a length-prefixed MQTT UTF-8 string to dst.
// The prefix is a 2-byte big-endian length.
func appendString(dst []byte, s string) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(s)))
	return append(dst, s...)
}

// appendBinary appends length-prefixed binary data to dst.
func appendBinary(dst []byte, b []byte) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(b)))
	return append(dst, b...)
}

// decodeString reads a length-prefixed UTF-8 string from buf.
// Returns the string, the number of bytes consumed, and an error for
// truncated, invalid UTF-8 or NUL-containing data.
func decodeString(buf []byte) (string, int, error) {
	b, n, err := decodeBinary(buf)
	if err != nil {
		return "", 0, err
	}
	if !utf8.Valid(b) {
		return "", 0, protocolErrorf("string is not valid UTF-8")
	}
	if bytes.IndexByte(b, 0) >= 0 {
		return "", 0, protocolErrorf("string contains NUL character")
	}
	return string(b), n, nil
}

// decodeBinary reads length-prefixed binary data from buf.
// The returned slice aliases buf.
func decodeBinary(buf []byte) ([]byte, int, error) {
	if len(buf) < 2 {
		return nil, 0, protocolErrorf("truncated length prefix")
	}
	length := int(binary.BigEndian.Uint16(buf))
	if len(buf) < 2+length {
		return nil, 0, protocolErrorf("truncated data: want %d bytes, have %d", length, len(buf)-2)
	}
	return buf[2 : 2+length], 2 + length, nil
}

// decodeUint16 reads a big-endian uint16 from buf.
func decodeUint16(buf []byte) (uint16, int, error) {
	if len(buf) < 2 {
		return 0, 0, protocolErrorf("truncated uint16")
	}
	return binary.BigEndian.Uint16(buf), 2, nil
}
