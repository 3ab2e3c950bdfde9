package packets

import (
	"encoding/binary"
	"io"
)

// UnsubscribePacket removes one or more subscriptions. Its fixed header
// carries mandatory flags 0x02.
type UnsubscribePacket struct {
	PacketID     uint16
	TopicFilters []string
}

// Type returns UNSUBSCRIBE.
func (p *UnsubscribePacket) Type() uint8 { return UNSUBSCRIBE }

// Encode appends the serialized packet to dst.
func (p *UnsubscribePacket) Encode(dst []byte) ([]byte, error) {
	remaining := 2
	for _, f := range p.TopicFilters {
		remaining += 2 + len(f)
	}

	dst = FixedHeader{PacketType: UNSUBSCRIBE, Flags: 0x02, RemainingLength: remaining}.appendBytes(dst)
	dst = binary.BigEndian.AppendUint16(dst, p.PacketID)
	for _, f := range p.TopicFilters {
		dst = appendString(dst, f)
	}
	return dst, nil
}

// WriteTo writes the encoded packet to w.
func (p *UnsubscribePacket) WriteTo(w io.Writer) (int64, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	b, err := p.Encode(*buf)
	if err != nil {
		return 0, err
	}
	*buf = b

	n, err := w.Write(b)
	return int64(n), err
}

// DecodeUnsubscribe parses an UNSUBSCRIBE packet body.
func DecodeUnsubscribe(body []byte, h FixedHeader) (*UnsubscribePacket, error) {
	if h.Flags != 0x02 {
		return nil, protocolErrorf("UNSUBSCRIBE: flags must be 0x2, got %#x", h.Flags)
	}

	id, n, err := decodeUint16(body)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, protocolErrorf("UNSUBSCRIBE: packet identifier must be non-zero")
	}
	body = body[n:]

	p := &UnsubscribePacket{PacketID: id}
	for len(body) > 0 {
		filter, n, err := decodeString(body)
		if err != nil {
			return nil, err
		}
		body = body[n:]
		p.TopicFilters = append(p.TopicFilters, filter)
	}

	if len(p.TopicFilters) == 0 {
		return nil, protocolErrorf("UNSUBSCRIBE: no topic filters")
	}
	return p, nil
}
