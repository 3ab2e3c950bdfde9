package packets

import "io"

// DisconnectPacket announces a graceful client shutdown. No response is
// defined; the client closes the transport after sending it.
type DisconnectPacket struct{}

// Type returns DISCONNECT.
func (p *DisconnectPacket) Type() uint8 { return DISCONNECT }

// WriteTo writes the encoded packet to w.
func (p *DisconnectPacket) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write([]byte{DISCONNECT << 4, 0})
	return int64(n), err
}
