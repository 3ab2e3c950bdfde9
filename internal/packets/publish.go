package packets

import (
	"encoding/binary"
	"io"
)

// PublishPacket carries an application message in either direction.
type PublishPacket struct {
	Dup       bool
	QoS       uint8
	Retain    bool
	TopicName string
	PacketID  uint16 // only present for QoS 1 and 2
	Payload   []byte
}

// Type returns PUBLISH.
func (p *PublishPacket) Type() uint8 { return PUBLISH }

func (p *PublishPacket) flags() uint8 {
	f := p.QoS << 1
	if p.Dup {
		f |= 0x08
	}
	if p.Retain {
		f |= 0x01
	}
	return f
}

// Encode appends the serialized packet to dst.
func (p *PublishPacket) Encode(dst []byte) ([]byte, error) {
	remaining := 2 + len(p.TopicName) + len(p.Payload)
	if p.QoS > QoS0 {
		remaining += 2
	}

	dst = FixedHeader{PacketType: PUBLISH, Flags: p.flags(), RemainingLength: remaining}.appendBytes(dst)
	dst = appendString(dst, p.TopicName)
	if p.QoS > QoS0 {
		dst = binary.BigEndian.AppendUint16(dst, p.PacketID)
	}
	return append(dst, p.Payload...), nil
}

// WriteTo writes the encoded packet to w.
func (p *PublishPacket) WriteTo(w io.Writer) (int64, error) {
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

// DecodePublish parses a PUBLISH packet body. The payload is copied, so the
// packet stays valid after the source buffer is reused.
func DecodePublish(body []byte, h FixedHeader) (*PublishPacket, error) {
	p := &PublishPacket{
		Dup:    h.Flags&0x08 != 0,
		QoS:    h.Flags >> 1 & 0x03,
		Retain: h.Flags&0x01 != 0,
	}
	if p.QoS > QoS2 {
		return nil, protocolErrorf("PUBLISH: invalid QoS 3")
	}
	if p.QoS == QoS0 && p.Dup {
		return nil, protocolErrorf("PUBLISH: DUP set on QoS 0 message")
	}

	topic, n, err := decodeString(body)
	if err != nil {
		return nil, err
	}
	p.TopicName = topic
	body = body[n:]

	if p.QoS > QoS0 {
		id, n, err := decodeUint16(body)
		if err != nil {
			return nil, err
		}
		if id == 0 {
			return nil, protocolErrorf("PUBLISH: packet identifier must be non-zero")
		}
		p.PacketID = id
		body = body[n:]
	}

	p.Payload = append([]byte(nil), body...)
	return p, nil
}
