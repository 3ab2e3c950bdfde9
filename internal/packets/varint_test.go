package packets

import (
	"bytes"
	"errors"
	"testing"
)

func TestVarIntBoundaries(t *testing.T) {
	cases := []struct {
		value int
		want  []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{16383, []byte{0xFF, 0x7F}},
		{16384, []byte{0x80, 0x80, 0x01}},
		{2097151, []byte{0xFF, 0xFF, 0x7F}},
		{2097152, []byte{0x80, 0x80, 0x80, 0x01}},
		{268435455, []byte{0xFF, 0xFF, 0xFF, 0x7F}},
	}

	for _, tc := range cases {
		got := encodeVarInt(tc.value)
		if !bytes.Equal(got, tc.want) {
			t.Errorf("encodeVarInt(%d) = %#v, want %#v", tc.value, got, tc.want)
		}

		value, n, err := decodeVarIntBuf(tc.want)
		if err != nil {
			t.Errorf("decodeVarIntBuf(%#v): %v", tc.want, err)
			continue
		}
		if value != tc.value || n != len(tc.want) {
			t.Errorf("decodeVarIntBuf(%#v) = (%d, %d), want (%d, %d)",
				tc.want, value, n, tc.value, len(tc.want))
		}

		rv, err := decodeVarInt(bytes.NewReader(tc.want))
		if err != nil || rv != tc.value {
			t.Errorf("decodeVarInt(%#v) = (%d, %v), want %d", tc.want, rv, err, tc.value)
		}
	}
}

func TestVarIntEncodeOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for value above 268435455")
		}
	}()
	appendVarInt(nil, 268435456)
}

func TestVarIntDecodeOverlong(t *testing.T) {
	// Continuation bit set on the 4th byte: a 5th byte would be required.
	overlong := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x7F}

	if _, _, err := decodeVarIntBuf(overlong); !errors.Is(err, ErrProtocol) {
		t.Errorf("decodeVarIntBuf(overlong): got %v, want ErrProtocol", err)
	}
	if _, err := decodeVarInt(bytes.NewReader(overlong)); !errors.Is(err, ErrProtocol) {
		t.Errorf("decodeVarInt(overlong): got %v, want ErrProtocol", err)
	}
}

func TestVarIntDecodeIncomplete(t *testing.T) {
	for _, buf := range [][]byte{{}, {0x80}, {0xFF, 0xFF}, {0x80, 0x80, 0x80}} {
		if _, _, err := decodeVarIntBuf(buf); !errors.Is(err, ErrIncomplete) {
			t.Errorf("decodeVarIntBuf(%#v): got %v, want ErrIncomplete", buf, err)
		}
	}
}
