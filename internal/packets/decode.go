package packets

// decodeBody dispatches a complete packet body to the per-type decoder.
func decodeBody(body []byte, h FixedHeader) (Packet, error) {
	switch h.PacketType {
	case CONNECT:
		return DecodeConnect(body, h)
	case CONNACK:
		return DecodeConnack(body, h)
	case PUBLISH:
		return DecodePublish(body, h)
	case PUBACK:
		return DecodePuback(body, h)
	case PUBREC:
		return DecodePubrec(body, h)
	case PUBREL:
		return DecodePubrel(body, h)
	case PUBCOMP:
		return DecodePubcomp(body, h)
	case SUBSCRIBE:
		return DecodeSubscribe(body, h)
	case SUBACK:
		return DecodeSuback(body, h)
	case UNSUBSCRIBE:
		return DecodeUnsubscribe(body, h)
	case UNSUBACK:
		return DecodeUnsuback(body, h)
	case PINGREQ:
		if err := decodeEmpty("PINGREQ", body, h); err != nil {
			return nil, err
		}
		return &PingreqPacket{}, nil
	case PINGRESP:
		if err := decodeEmpty("PINGRESP", body, h); err != nil {
			return nil, err
		}
		return &PingrespPacket{}, nil
	case DISCONNECT:
		if err := decodeEmpty("DISCONNECT", body, h); err != nil {
			return nil, err
		}
		return &DisconnectPacket{}, nil
	default:
		return nil, protocolErrorf("unknown packet type %d", h.PacketType)
	}
}

// Decode parses one control packet from the front of buf. On success it
// returns the packet and the number of bytes consumed; callers keep any
// trailing bytes for the next call. When buf holds less than one whole
// packet, Decode returns ErrIncomplete and consumes nothing. Any other error
// means the stream is corrupt and the connection must be dropped.
func Decode(buf []byte) (Packet, int, error) {
	h, n, err := decodeFixedHeaderBuf(buf)
	if err != nil {
		return nil, 0, err
	}
	if len(buf) < n+h.RemainingLength {
		return nil, 0, ErrIncomplete
	}

	p, err := decodeBody(buf[n:n+h.RemainingLength], h)
	if err != nil {
		return nil, 0, err
	}
	return p, n + h.RemainingLength, nil
}
