package packets

import "io"

// PingreqPacket is the keepalive probe.
type PingreqPacket struct{}

// Type returns PINGREQ.
func (p *PingreqPacket) Type() uint8 { return PINGREQ }

// WriteTo writes the encoded packet to w.
func (p *PingreqPacket) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write([]byte{PINGREQ << 4, 0})
	return int64(n), err
}

// PingrespPacket is the broker's answer to PINGREQ.
type PingrespPacket struct{}

// Type returns PINGRESP.
func (p *PingrespPacket) Type() uint8 { return PINGRESP }

// WriteTo writes the encoded packet to w.
func (p *PingrespPacket) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write([]byte{PINGRESP << 4, 0})
	return int64(n), err
}

func decodeEmpty(name string, body []byte, h FixedHeader) error {
	if h.Flags != 0 {
		return protocolErrorf("%s: reserved flags must be 0, got %#x", name, h.Flags)
	}
	if len(body) != 0 {
		return protocolErrorf("%s: remaining length must be 0, got %d", name, len(body))
	}
	return nil
}
