package probe

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"time"
)

// JLinkProbe drives a running J-Link GDB server over the GDB remote serial
// protocol and reads the target's RTT output from the companion telnet port.
// Memory is read with the core running; J-Link supports background access, so
// JLinkProbe does not implement Halter.
type JLinkProbe struct {
	gdbAddr string
	rttAddr string

	conn net.Conn
	rd   *bufio.Reader

	rttConn net.Conn
}

// NewJLinkProbe creates a probe client for the given GDB server and RTT
// telnet endpoints.
func NewJLinkProbe(gdbAddr, rttAddr string) *JLinkProbe {
	return &JLinkProbe{gdbAddr: gdbAddr, rttAddr: rttAddr}
}

func (p *JLinkProbe) Connect(target, iface string) error {
	conn, err := net.DialTimeout("tcp", p.gdbAddr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("%w: gdb server at %s: %v", ErrConnection, p.gdbAddr, err)
	}
	p.conn = conn
	p.rd = bufio.NewReader(conn)

	// The server owns target and interface selection; a stop-reason query
	// confirms the stub is actually talking to us.
	if _, err := p.command("?"); err != nil {
		conn.Close()
		p.conn = nil
		return fmt.Errorf("%w: gdb server handshake: %v", ErrConnection, err)
	}
	log.Printf("J-Link session up: %s over %s via %s", target, iface, p.gdbAddr)
	return nil
}

func (p *JLinkProbe) ReadMemory(addr uint64, units, unitBits int) ([]byte, error) {
	n := units * unitBits / 8
	resp, err := p.command(fmt.Sprintf("m%x,%x", addr, n))
	if err != nil {
		return nil, fmt.Errorf("memory read at %#x: %w", addr, err)
	}
	if strings.HasPrefix(resp, "E") {
		return nil, fmt.Errorf("memory read at %#x: stub reported %s", addr, resp)
	}
	buf, err := hex.DecodeString(resp)
	if err != nil {
		return nil, fmt.Errorf("memory read at %#x: bad hex payload: %v", addr, err)
	}
	if len(buf) != n {
		return nil, fmt.Errorf("memory read at %#x: got %d bytes, want %d", addr, len(buf), n)
	}
	return buf, nil
}

// ReadLogChannel reads from the RTT telnet port, which carries channel 0.
func (p *JLinkProbe) ReadLogChannel(channel int, timeout time.Duration) ([]byte, error) {
	if channel != 0 {
		return nil, fmt.Errorf("%w: RTT telnet carries channel 0 only, got %d", ErrNoLogChannel, channel)
	}
	if p.rttConn == nil {
		conn, err := net.DialTimeout("tcp", p.rttAddr, timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: RTT server at %s: %v", ErrConnection, p.rttAddr, err)
		}
		p.rttConn = conn
	}
	if err := p.rttConn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	buf := make([]byte, 512)
	n, err := p.rttConn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, err
	}
	return buf[:n], nil
}

func (p *JLinkProbe) Close() error {
	if p.rttConn != nil {
		p.rttConn.Close()
	}
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

// command sends one GDB remote packet and waits for its reply.
func (p *JLinkProbe) command(payload string) (string, error) {
	if p.conn == nil {
		return "", fmt.Errorf("not connected")
	}
	if err := p.send(payload); err != nil {
		return "", err
	}
	return p.readPacket()
}

// send writes a $payload#checksum packet.
func (p *JLinkProbe) send(payload string) error {
	var sum byte
	for i := 0; i < len(payload); i++ {
		sum += payload[i]
	}
	_, err := fmt.Fprintf(p.conn, "$%s#%02x", payload, sum)
	return err
}

// readPacket consumes acks until the next $...#xx packet, acknowledges it,
// and returns the expanded payload.
func (p *JLinkProbe) readPacket() (string, error) {
	for {
		b, err := p.rd.ReadByte()
		if err != nil {
			return "", err
		}
		if b == '$' {
			break
		}
		// '+'/'-' acks and stray bytes between packets.
	}
	payload, err := p.rd.ReadString('#')
	if err != nil {
		return "", err
	}
	payload = payload[:len(payload)-1]
	var csum [2]byte
	if _, err := io.ReadFull(p.rd, csum[:]); err != nil {
		return "", err
	}
	want, err := strconv.ParseUint(string(csum[:]), 16, 8)
	if err != nil {
		return "", fmt.Errorf("bad checksum field %q", csum[:])
	}
	var sum byte
	for i := 0; i < len(payload); i++ {
		sum += payload[i]
	}
	if sum != byte(want) {
		return "", fmt.Errorf("checksum mismatch: computed %02x, packet carries %02x", sum, want)
	}
	if _, err := p.conn.Write([]byte{'+'}); err != nil {
		return "", err
	}
	return expandRunLength(payload), nil
}

// expandRunLength undoes GDB remote run-length encoding: '*' means the
// preceding character repeats (next byte - 29) more times.
func expandRunLength(s string) string {
	if !strings.ContainsRune(s, '*') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '*' && i > 0 && i+1 < len(s) {
			n := int(s[i+1]) - 29
			for j := 0; j < n; j++ {
				b.WriteByte(s[i-1])
			}
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
