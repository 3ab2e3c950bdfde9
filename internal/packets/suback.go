package packets

import (
	"encoding/binary"
	"io"
)

// SubackPacket carries the broker's per-filter response to SUBSCRIBE: the
// granted QoS, or 0x80 for a rejected filter.
type SubackPacket struct {
	PacketID    uint16
	ReturnCodes []uint8
}

// Type returns SUBACK.
func (p *SubackPacket) Type() uint8 { return SUBACK }

// WriteTo writes the encoded packet to w.
func (p *SubackPacket) WriteTo(w io.Writer) (int64, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	b := *buf
	b = FixedHeader{PacketType: SUBACK, RemainingLength: 2 + len(p.ReturnCodes)}.appendBytes(b)
	b = binary.BigEndian.AppendUint16(b, p.PacketID)
	b = append(b, p.ReturnCodes...)
	*buf = b

	n, err := w.Write(b)
	return int64(n), err
}

// DecodeSuback parses a SUBACK packet body.
func DecodeSuback(body []byte, h FixedHeader) (*SubackPacket, error) {
	if h.Flags != 0 {
		return nil, protocolErrorf("SUBACK: reserved flags must be 0, got %#x", h.Flags)
	}

	id, n, err := decodeUint16(body)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, protocolErrorf("SUBACK: packet identifier must be non-zero")
	}
	body = body[n:]

	if len(body) == 0 {
		return nil, protocolErrorf("SUBACK: no return codes")
	}
	codes := make([]uint8, len(body))
	for i, c := range body {
		if c > SubackQoS2 && c != SubackFailure {
			return nil, protocolErrorf("SUBACK: invalid return code %#x", c)
		}
		codes[i] = c
	}

	return &SubackPacket{PacketID: id, ReturnCodes: codes}, nil
}
