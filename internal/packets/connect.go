package packets

import (
	"encoding/binary"
	"io"
)

// ConnectPacket is the CONNECT packet opening every MQTT session.
type ConnectPacket struct {
	CleanSession bool
	KeepAlive    uint16
	ClientID     string

	WillTopic   string
	WillMessage []byte
	WillQoS     uint8
	WillRetain  bool

	// Username present when non-empty; Password present when non-nil.
	Username string
	Password []byte
}

// Type returns CONNECT.
func (p *ConnectPacket) Type() uint8 { return CONNECT }

func (p *ConnectPacket) flags() uint8 {
	var f uint8
	if p.CleanSession {
		f |= 0x02
	}
	if p.WillTopic != "" {
		f |= 0x04
		f |= p.WillQoS << 3
		if p.WillRetain {
			f |= 0x20
		}
	}
	if p.Password != nil {
		f |= 0x40
	}
	if p.Username != "" {
		f |= 0x80
	}
	return f
}

// Encode appends the serialized packet to dst.
func (p *ConnectPacket) Encode(dst []byte) ([]byte, error) {
	body := GetBuffer()
	defer PutBuffer(body)

	b := *body
	b = appendString(b, "MQTT")
	b = append(b, 4) // protocol level for v3.1.1
	b = append(b, p.flags())
	b = binary.BigEndian.AppendUint16(b, p.KeepAlive)

	b = appendString(b, p.ClientID)
	if p.WillTopic != "" {
		b = appendString(b, p.WillTopic)
		b = appendBinary(b, p.WillMessage)
	}
	if p.Username != "" {
		b = appendString(b, p.Username)
	}
	if p.Password != nil {
		b = appendBinary(b, p.Password)
	}
	*body = b

	dst = FixedHeader{PacketType: CONNECT, RemainingLength: len(b)}.appendBytes(dst)
	return append(dst, b...), nil
}

// WriteTo writes the encoded packet to w.
func (p *ConnectPacket) WriteTo(w io.Writer) (int64, error) {
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

// DecodeConnect parses a CONNECT packet body. The client never receives
// CONNECT; this exists for broker-side test harnesses.
func DecodeConnect(body []byte, h FixedHeader) (*ConnectPacket, error) {
	if h.Flags != 0 {
		return nil, protocolErrorf("CONNECT: reserved flags must be 0, got %#x", h.Flags)
	}

	name, n, err := decodeString(body)
	if err != nil {
		return nil, err
	}
	if name != "MQTT" {
		return nil, protocolErrorf("CONNECT: unexpected protocol name %q", name)
	}
	body = body[n:]

	if len(body) < 4 {
		return nil, protocolErrorf("CONNECT: truncated variable header")
	}
	level := body[0]
	if level != 4 {
		return nil, protocolErrorf("CONNECT: unsupported protocol level %d", level)
	}
	flags := body[1]
	if flags&0x01 != 0 {
		return nil, protocolErrorf("CONNECT: reserved flag bit set")
	}

	p := &ConnectPacket{
		CleanSession: flags&0x02 != 0,
		KeepAlive:    binary.BigEndian.Uint16(body[2:4]),
	}
	body = body[4:]

	p.ClientID, n, err = decodeString(body)
	if err != nil {
		return nil, err
	}
	body = body[n:]

	if flags&0x04 != 0 {
		p.WillQoS = flags >> 3 & 0x03
		p.WillRetain = flags&0x20 != 0
		if p.WillQoS > QoS2 {
			return nil, protocolErrorf("CONNECT: invalid will QoS %d", p.WillQoS)
		}

		p.WillTopic, n, err = decodeString(body)
		if err != nil {
			return nil, err
		}
		body = body[n:]

		var msg []byte
		msg, n, err = decodeBinary(body)
		if err != nil {
			return nil, err
		}
		p.WillMessage = append([]byte(nil), msg...)
		body = body[n:]
	}

	if flags&0x80 != 0 {
		p.Username, n, err = decodeString(body)
		if err != nil {
			return nil, err
		}
		body = body[n:]
	}
	if flags&0x40 != 0 {
		var pw []byte
		pw, _, err = decodeBinary(body)
		if err != nil {
			return nil, err
		}
		p.Password = append([]byte(nil), pw...)
	}

	return p, nil
}
