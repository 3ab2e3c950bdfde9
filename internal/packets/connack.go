package packets

import "io"

// ConnackPacket is the broker's response to CONNECT.
type ConnackPacket struct {
	SessionPresent bool
	ReturnCode     uint8
}

// Type returns CONNACK.
func (p *ConnackPacket) Type() uint8 { return CONNACK }

// WriteTo writes the encoded packet to w.
func (p *ConnackPacket) WriteTo(w io.Writer) (int64, error) {
	var ack uint8
	if p.SessionPresent {
		ack = 0x01
	}
	buf := [4]byte{CONNACK << 4, 2, ack, p.ReturnCode}
	n, err := w.Write(buf[:])
	return int64(n), err
}

// DecodeConnack parses a CONNACK packet body.
func DecodeConnack(body []byte, h FixedHeader) (*ConnackPacket, error) {
	if h.Flags != 0 {
		return nil, protocolErrorf("CONNACK: reserved flags must be 0, got %#x", h.Flags)
	}
	if len(body) != 2 {
		return nil, protocolErrorf("CONNACK: remaining length must be 2, got %d", len(body))
	}
	if body[0]&0xFE != 0 {
		return nil, protocolErrorf("CONNACK: reserved acknowledge flags set")
	}
	if body[1] > ConnRefusedNotAuthorized {
		return nil, protocolErrorf("CONNACK: unknown return code %d", body[1])
	}
	if body[1] != ConnAccepted && body[0]&0x01 != 0 {
		return nil, protocolErrorf("CONNACK: session present with non-zero return code")
	}
	return &ConnackPacket{
		SessionPresent: body[0]&0x01 != 0,
		ReturnCode:     body[1],
	}, nil
}
