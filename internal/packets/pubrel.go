package packets

import "io"

// PubrelPacket releases a QoS 2 message after PUBREC. Its fixed header
// carries mandatory flags 0x02.
type PubrelPacket struct {
	PacketID uint16
}

// Type returns PUBREL.
func (p *PubrelPacket) Type() uint8 { return PUBREL }

// WriteTo writes the encoded packet to w.
func (p *PubrelPacket) WriteTo(w io.Writer) (int64, error) {
	return writeAck(w, PUBREL, 0x02, p.PacketID)
}

// DecodePubrel parses a PUBREL packet body.
func DecodePubrel(body []byte, h FixedHeader) (*PubrelPacket, error) {
	if h.Flags != 0x02 {
		return nil, protocolErrorf("PUBREL: flags must be 0x2, got %#x", h.Flags)
	}
	id, err := decodeAckID("PUBREL", body)
	if err != nil {
		return nil, err
	}
	return &PubrelPacket{PacketID: id}, nil
}
