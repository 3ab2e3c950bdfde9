package packets

import "io"

// ReadPacket reads exactly one control packet from r, blocking until it
// arrives. maxIncoming bounds the accepted remaining length; 0 means no
// limit beyond the protocol maximum.
func ReadPacket(r io.Reader, maxIncoming int) (Packet, error) {
	h, err := DecodeFixedHeader(r)
	if err != nil {
		return nil, err
	}
	if maxIncoming > 0 && h.RemainingLength > maxIncoming {
		return nil, protocolErrorf("packet of %d bytes exceeds limit of %d", h.RemainingLength, maxIncoming)
	}

	buf := GetBuffer()
	defer PutBuffer(buf)

	if cap(*buf) < h.RemainingLength {
		*buf = make([]byte, h.RemainingLength)
	}
	body := (*buf)[:h.RemainingLength]
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	return decodeBody(body, h)
}
