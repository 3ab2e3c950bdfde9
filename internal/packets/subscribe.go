package packets

import (
	"encoding/binary"
	"io"
)

// Subscription is one topic filter / QoS pair in a SUBSCRIBE packet.
type Subscription struct {
	TopicFilter string
	QoS         uint8
}

// SubscribePacket requests one or more subscriptions. Its fixed header
// carries mandatory flags 0x02.
type SubscribePacket struct {
	PacketID      uint16
	Subscriptions []Subscription
}

// Type returns SUBSCRIBE.
func (p *SubscribePacket) Type() uint8 { return SUBSCRIBE }

// Encode appends the serialized packet to dst.
func (p *SubscribePacket) Encode(dst []byte) ([]byte, error) {
	remaining := 2
	for _, s := range p.Subscriptions {
		remaining += 2 + len(s.TopicFilter) + 1
	}

	dst = FixedHeader{PacketType: SUBSCRIBE, Flags: 0x02, RemainingLength: remaining}.appendBytes(dst)
	dst = binary.BigEndian.AppendUint16(dst, p.PacketID)
	for _, s := range p.Subscriptions {
		dst = appendString(dst, s.TopicFilter)
		dst = append(dst, s.QoS)
	}
	return dst, nil
}

// WriteTo writes the encoded packet to w.
func (p *SubscribePacket) WriteTo(w io.Writer) (int64, error) {
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

// DecodeSubscribe parses a SUBSCRIBE packet body.
func DecodeSubscribe(body []byte, h FixedHeader) (*SubscribePacket, error) {
	if h.Flags != 0x02 {
		return nil, protocolErrorf("SUBSCRIBE: flags must be 0x2, got %#x", h.Flags)
	}

	id, n, err := decodeUint16(body)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, protocolErrorf("SUBSCRIBE: packet identifier must be non-zero")
	}
	body = body[n:]

	p := &SubscribePacket{PacketID: id}
	for len(body) > 0 {
		filter, n, err := decodeString(body)
		if err != nil {
			return nil, err
		}
		body = body[n:]

		if len(body) < 1 {
			return nil, protocolErrorf("SUBSCRIBE: missing requested QoS")
		}
		qos := body[0]
		if qos > QoS2 {
			return nil, protocolErrorf("SUBSCRIBE: invalid requested QoS %d", qos)
		}
		body = body[1:]

		p.Subscriptions = append(p.Subscriptions, Subscription{TopicFilter: filter, QoS: qos})
	}

	if len(p.Subscriptions) == 0 {
		return nil, protocolErrorf("SUBSCRIBE: no topic filters")
	}
	return p, nil
}
