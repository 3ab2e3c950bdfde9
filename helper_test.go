package mqttc

import (
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/mmarban/mqttc/internal/packets"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testServer is an in-process fake broker. The script runs against the
// accepted connection; the listener closes when the test ends.
func testServer(t *testing.T, script func(conn net.Conn)) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go script(conn)
		}
	}()

	return "tcp://" + ln.Addr().String()
}

// acceptConnect reads the CONNECT packet and answers with a CONNACK.
func acceptConnect(t *testing.T, conn net.Conn, code uint8, sessionPresent bool) *packets.ConnectPacket {
	t.Helper()

	pkt, err := packets.ReadPacket(conn, 0)
	if err != nil {
		t.Errorf("failed to read CONNECT: %v", err)
		return nil
	}
	connect, ok := pkt.(*packets.ConnectPacket)
	if !ok {
		t.Errorf("expected ConnectPacket, got %T", pkt)
		return nil
	}

	connack := &packets.ConnackPacket{
		SessionPresent: sessionPresent,
		ReturnCode:     code,
	}
	if _, err := connack.WriteTo(conn); err != nil {
		t.Errorf("failed to write CONNACK: %v", err)
	}

	return connect
}

func readServerPacket(t *testing.T, conn net.Conn) packets.Packet {
	t.Helper()

	pkt, err := packets.ReadPacket(conn, 0)
	if err != nil {
		t.Errorf("failed to read packet: %v", err)
		return nil
	}
	return pkt
}
