package packets

import "io"

// FixedHeader is the 2-5 byte header present on every control packet:
// packet type, flags, and the remaining length of the variable header plus
// payload.
type FixedHeader struct {
	PacketType      uint8
	Flags           uint8
	RemainingLength int
}

// appendBytes appends the encoded fixed header to dst.
func (h FixedHeader) appendBytes(dst []byte) []byte {
	dst = append(dst, h.PacketType<<4|h.Flags&0x0F)
	return appendVarInt(dst, h.RemainingLength)
}

// WriteTo writes the encoded fixed header to w.
func (h FixedHeader) WriteTo(w io.Writer) (int64, error) {
	var buf [5]byte
	b := h.appendBytes(buf[:0])
	n, err := w.Write(b)
	return int64(n), err
}

// DecodeFixedHeader reads a fixed header from the reader.
func DecodeFixedHeader(r io.Reader) (FixedHeader, error) {
	var first [1]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return FixedHeader{}, err
	}

	remaining, err := decodeVarInt(r)
	if err != nil {
		return FixedHeader{}, err
	}

	return FixedHeader{
		PacketType:      first[0] >> 4,
		Flags:           first[0] & 0x0F,
		RemainingLength: remaining,
	}, nil
}

// decodeFixedHeaderBuf decodes a fixed header from a byte slice. It returns
// the header, the number of bytes consumed, and ErrIncomplete when buf ends
// before the header does.
func decodeFixedHeaderBuf(buf []byte) (FixedHeader, int, error) {
	if len(buf) < 2 {
		return FixedHeader{}, 0, ErrIncomplete
	}

	remaining, n, err := decodeVarIntBuf(buf[1:])
	if err != nil {
		return FixedHeader{}, 0, err
	}

	return FixedHeader{
		PacketType:      buf[0] >> 4,
		Flags:           buf[0] & 0x0F,
		RemainingLength: remaining,
	}, 1 + n, nil
}
