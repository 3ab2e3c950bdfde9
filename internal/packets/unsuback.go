package packets

import "io"

// UnsubackPacket acknowledges an UNSUBSCRIBE.
type UnsubackPacket struct {
	PacketID uint16
}

// Type returns UNSUBACK.
func (p *UnsubackPacket) Type() uint8 { return UNSUBACK }

// WriteTo writes the encoded packet to w.
func (p *UnsubackPacket) WriteTo(w io.Writer) (int64, error) {
	return writeAck(w, UNSUBACK, 0, p.PacketID)
}

// DecodeUnsuback parses an UNSUBACK packet body.
func DecodeUnsuback(body []byte, h FixedHeader) (*UnsubackPacket, error) {
	if h.Flags != 0 {
		return nil, protocolErrorf("UNSUBACK: reserved flags must be 0, got %#x", h.Flags)
	}
	id, err := decodeAckID("UNSUBACK", body)
	if err != nil {
		return nil, err
	}
	return &UnsubackPacket{PacketID: id}, nil
}
