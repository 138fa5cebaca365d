package probe

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"
)

// tclTerminator ends every command and reply on OpenOCD's Tcl RPC port.
const tclTerminator = byte(0x1a)

// OpenOCDProbe drives an OpenOCD server through its Tcl RPC port. OpenOCD
// needs a halted core for memory reads, so reads are bracketed with
// Halt/Resume by the caller via the Halter interface.
type OpenOCDProbe struct {
	addr string

	conn net.Conn
	rd   *bufio.Reader
}

// NewOpenOCDProbe creates a probe client for the given Tcl RPC endpoint.
func NewOpenOCDProbe(addr string) *OpenOCDProbe {
	return &OpenOCDProbe{addr: addr}
}

func (p *OpenOCDProbe) Connect(target, iface string) error {
	conn, err := net.DialTimeout("tcp", p.addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("%w: openocd at %s: %v", ErrConnection, p.addr, err)
	}
	p.conn = conn
	p.rd = bufio.NewReader(conn)

	version, err := p.command("version")
	if err != nil {
		conn.Close()
		p.conn = nil
		return fmt.Errorf("%w: openocd handshake: %v", ErrConnection, err)
	}
	log.Printf("OpenOCD session up (%s): %s", iface, strings.TrimSpace(version))
	return nil
}

func (p *OpenOCDProbe) ReadMemory(addr uint64, units, unitBits int) ([]byte, error) {
	resp, err := p.command(fmt.Sprintf("read_memory 0x%x %d %d", addr, unitBits, units))
	if err != nil {
		return nil, fmt.Errorf("memory read at %#x: %w", addr, err)
	}
	fields := strings.Fields(resp)
	if len(fields) != units {
		return nil, fmt.Errorf("memory read at %#x: got %d values, want %d (reply %q)",
			addr, len(fields), units, resp)
	}
	buf := make([]byte, 0, units*unitBits/8)
	for _, f := range fields {
		v, err := strconv.ParseUint(strings.TrimPrefix(f, "0x"), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("memory read at %#x: bad value %q in reply", addr, f)
		}
		for i := 0; i < unitBits/8; i++ {
			buf = append(buf, byte(v>>(8*i)))
		}
	}
	return buf, nil
}

func (p *OpenOCDProbe) Halt() error {
	_, err := p.command("halt")
	return err
}

func (p *OpenOCDProbe) Resume() error {
	_, err := p.command("resume")
	return err
}

// ReadLogChannel always fails: OpenOCD's Tcl port carries no target log
// stream, which is why the OPENOCD path requires an explicit address.
func (p *OpenOCDProbe) ReadLogChannel(channel int, timeout time.Duration) ([]byte, error) {
	return nil, ErrNoLogChannel
}

func (p *OpenOCDProbe) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

// command sends one Tcl command and returns its reply, both 0x1a-terminated.
func (p *OpenOCDProbe) command(cmd string) (string, error) {
	if p.conn == nil {
		return "", fmt.Errorf("not connected")
	}
	if _, err := p.conn.Write(append([]byte(cmd), tclTerminator)); err != nil {
		return "", err
	}
	reply, err := p.rd.ReadString(tclTerminator)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(reply, string(tclTerminator)), nil
}
