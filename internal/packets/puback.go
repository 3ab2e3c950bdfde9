package packets

import (
	"encoding/binary"
	"io"
)

// writeAck writes the shared 4-byte form of PUBACK, PUBREC, PUBREL, PUBCOMP
// and UNSUBACK: fixed header plus a packet identifier.
func writeAck(w io.Writer, packetType, flags uint8, id uint16) (int64, error) {
	buf := [4]byte{packetType<<4 | flags, 2}
	binary.BigEndian.PutUint16(buf[2:], id)
	n, err := w.Write(buf[:])
	return int64(n), err
}

// decodeAckID parses the packet identifier shared by the ack packets.
func decodeAckID(name string, body []byte) (uint16, error) {
	if len(body) != 2 {
		return 0, protocolErrorf("%s: remaining length must be 2, got %d", name, len(body))
	}
	id := binary.BigEndian.Uint16(body)
	if id == 0 {
		return 0, protocolErrorf("%s: packet identifier must be non-zero", name)
	}
	return id, nil
}

// PubackPacket acknowledges a QoS 1 PUBLISH.
type PubackPacket struct {
	PacketID uint16
}

// Type returns PUBACK.
func (p *PubackPacket) Type() uint8 { return PUBACK }

// WriteTo writes the encoded packet to w.
func (p *PubackPacket) WriteTo(w io.Writer) (int64, error) {
	return writeAck(w, PUBACK, 0, p.PacketID)
}

// DecodePuback parses a PUBACK packet body.
func DecodePuback(body []byte, h FixedHeader) (*PubackPacket, error) {
	if h.Flags != 0 {
		return nil, protocolErrorf("PUBACK: reserved flags must be 0, got %#x", h.Flags)
	}
	id, err := decodeAckID("PUBACK", body)
	if err != nil {
		return nil, err
	}
	return &PubackPacket{PacketID: id}, nil
}

// PubrecPacket is the first acknowledgement of a QoS 2 PUBLISH.
type PubrecPacket struct {
	PacketID uint16
}

// Type returns PUBREC.
func (p *PubrecPacket) Type() uint8 { return PUBREC }

// WriteTo writes the encoded packet to w.
func (p *PubrecPacket) WriteTo(w io.Writer) (int64, error) {
	return writeAck(w, PUBREC, 0, p.PacketID)
}

// DecodePubrec parses a PUBREC packet body.
func DecodePubrec(body []byte, h FixedHeader) (*PubrecPacket, error) {
	if h.Flags != 0 {
		return nil, protocolErrorf("PUBREC: reserved flags must be 0, got %#x", h.Flags)
	}
	id, err := decodeAckID("PUBREC", body)
	if err != nil {
		return nil, err
	}
	return &PubrecPacket{PacketID: id}, nil
}

// PubcompPacket completes the QoS 2 handshake.
type PubcompPacket struct {
	PacketID uint16
}

// Type returns PUBCOMP.
func (p *PubcompPacket) Type() uint8 { return PUBCOMP }

// WriteTo writes the encoded packet to w.
func (p *PubcompPacket) WriteTo(w io.Writer) (int64, error) {
	return writeAck(w, PUBCOMP, 0, p.PacketID)
}

// DecodePubcomp parses a PUBCOMP packet body.
func DecodePubcomp(body []byte, h FixedHeader) (*PubcompPacket, error) {
	if h.Flags != 0 {
		return nil, protocolErrorf("PUBCOMP: reserved flags must be 0, got %#x", h.Flags)
	}
	id, err := decodeAckID("PUBCOMP", body)
	if err != nil {
		return nil, err
	}
	return &PubcompPacket{PacketID: id}, nil
}
