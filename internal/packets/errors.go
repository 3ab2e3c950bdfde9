package packets

import (
	"errors"
	"fmt"
)

// ErrIncomplete is returned by Decode when the buffer does not yet hold a
// complete packet. The caller should read more bytes and try again; nothing
// has been consumed.
var ErrIncomplete = errors.New("incomplete packet")

// ErrProtocol is the base error for malformed packets and protocol
// violations. Any error wrapping it is fatal to the connection that produced
// the bytes: the session must drop the transport rather than resynchronize.
var ErrProtocol = errors.New("protocol violation")

// protocolErrorf builds an error wrapping ErrProtocol.
func protocolErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}
