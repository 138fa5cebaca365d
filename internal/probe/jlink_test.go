package probe

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
)

// serveGDB answers GDB remote packets on conn using handler until the
// connection closes.
func serveGDB(conn net.Conn, handler func(cmd string) string) {
	rd := bufio.NewReader(conn)
	for {
		b, err := rd.ReadByte()
		if err != nil {
			return
		}
		if b != '$' {
			continue // acks between packets
		}
		payload, err := rd.ReadString('#')
		if err != nil {
			return
		}
		payload = payload[:len(payload)-1]
		var csum [2]byte
		if _, err := io.ReadFull(rd, csum[:]); err != nil {
			return
		}
		if _, err := conn.Write([]byte{'+'}); err != nil {
			return
		}
		reply := handler(payload)
		var sum byte
		for i := 0; i < len(reply); i++ {
			sum += reply[i]
		}
		if _, err := fmt.Fprintf(conn, "$%s#%02x", reply, sum); err != nil {
			return
		}
	}
}

func pipeJLink(handler func(cmd string) string) (*JLinkProbe, func()) {
	client, server := net.Pipe()
	go serveGDB(server, handler)
	p := &JLinkProbe{conn: client, rd: bufio.NewReader(client)}
	return p, func() {
		client.Close()
		server.Close()
	}
}

func TestJLinkReadMemory(t *testing.T) {
	var gotCmd string
	p, done := pipeJLink(func(cmd string) string {
		gotCmd = cmd
		return "deadbeef"
	})
	defer done()

	buf, err := p.ReadMemory(0x20000000, 4, 8)
	if err != nil {
		t.Fatalf("ReadMemory: %v", err)
	}
	if gotCmd != "m20000000,4" {
		t.Errorf("command = %q, want m20000000,4", gotCmd)
	}
	want := []byte{0xde, 0xad, 0xbe, 0xef}
	if string(buf) != string(want) {
		t.Errorf("buf = %x, want %x", buf, want)
	}
}

func TestJLinkReadMemoryUnitWidth(t *testing.T) {
	var gotCmd string
	p, done := pipeJLink(func(cmd string) string {
		gotCmd = cmd
		return strings.Repeat("00", 16)
	})
	defer done()

	// 2 packed 64-bit units = 16 bytes.
	if _, err := p.ReadMemory(0x1000, 2, 64); err != nil {
		t.Fatalf("ReadMemory: %v", err)
	}
	if gotCmd != "m1000,10" {
		t.Errorf("command = %q, want m1000,10", gotCmd)
	}
}

func TestJLinkReadMemoryStubError(t *testing.T) {
	p, done := pipeJLink(func(cmd string) string { return "E01" })
	defer done()

	if _, err := p.ReadMemory(0x0, 4, 8); err == nil {
		t.Fatal("ReadMemory accepted a stub error reply")
	}
}

func TestJLinkReadMemoryShortReply(t *testing.T) {
	p, done := pipeJLink(func(cmd string) string { return "dead" })
	defer done()

	if _, err := p.ReadMemory(0x0, 4, 8); err == nil {
		t.Fatal("ReadMemory accepted a short reply")
	}
}

func TestJLinkConnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		serveGDB(conn, func(cmd string) string { return "S05" })
	}()

	p := NewJLinkProbe(ln.Addr().String(), "localhost:19021")
	if err := p.Connect("NRF52832_XXAA", "swd"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	p.Close()
}

func TestJLinkConnectRefused(t *testing.T) {
	// Grab a port and close it so the dial is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	p := NewJLinkProbe(addr, "localhost:19021")
	if err := p.Connect("NRF52832_XXAA", "swd"); !errors.Is(err, ErrConnection) {
		t.Fatalf("Connect error = %v, want ErrConnection", err)
	}
}

func TestJLinkRejectsBadChecksum(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		rd := bufio.NewReader(server)
		// Consume the request, then reply with a corrupted checksum
		// ("deadbeef" sums to 0x20, not 0x00).
		for {
			b, err := rd.ReadByte()
			if err != nil {
				return
			}
			if b == '#' {
				break
			}
		}
		if _, err := io.ReadFull(rd, make([]byte, 2)); err != nil {
			return
		}
		server.Write([]byte("+$deadbeef#00"))
	}()

	p := &JLinkProbe{conn: client, rd: bufio.NewReader(client)}
	_, err := p.ReadMemory(0x0, 4, 8)
	if err == nil || !strings.Contains(err.Error(), "checksum") {
		t.Fatalf("error = %v, want checksum mismatch", err)
	}
}

func TestExpandRunLength(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"deadbeef", "deadbeef"},
		{"0* ", "0000"},       // ' ' = 3 repeats
		{"ff0*!aa", "ff00000aa"}, // '!' = 4 repeats
	}
	for _, tt := range tests {
		if got := expandRunLength(tt.in); got != tt.want {
			t.Errorf("expandRunLength(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
