package probe

import (
	"errors"
	"testing"
	"time"
)

// scriptedProbe replays canned log-channel chunks.
type scriptedProbe struct {
	chunks [][]byte
}

func (s *scriptedProbe) Connect(target, iface string) error { return nil }

func (s *scriptedProbe) ReadMemory(addr uint64, units, unitBits int) ([]byte, error) {
	return nil, nil
}

func (s *scriptedProbe) ReadLogChannel(channel int, timeout time.Duration) ([]byte, error) {
	if len(s.chunks) == 0 {
		return nil, nil
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *scriptedProbe) Close() error { return nil }

func TestDiscoverVRAM(t *testing.T) {
	p := &scriptedProbe{chunks: [][]byte{
		[]byte("booting v1.4.2\n"),
		[]byte("D-VR"), // marker split across reads
		[]byte("AM: 0x2000BEEF\ndisplay init ok\n"),
	}}
	addr, err := DiscoverVRAM(p, 10, time.Millisecond)
	if err != nil {
		t.Fatalf("DiscoverVRAM: %v", err)
	}
	if addr != 0x2000BEEF {
		t.Errorf("addr = %#x, want 0x2000beef", addr)
	}
}

func TestDiscoverVRAMAddressSplitAcrossReads(t *testing.T) {
	// The truncated "0x2000" is valid hex on its own; the line must not be
	// parsed until its newline arrives.
	p := &scriptedProbe{chunks: [][]byte{
		[]byte("D-VRAM: 0x2000"),
		[]byte("BEEF\n"),
	}}
	addr, err := DiscoverVRAM(p, 10, time.Millisecond)
	if err != nil {
		t.Fatalf("DiscoverVRAM: %v", err)
	}
	if addr != 0x2000BEEF {
		t.Errorf("addr = %#x, want 0x2000beef", addr)
	}
}

func TestDiscoverVRAMIgnoresUnterminatedTail(t *testing.T) {
	// A marker line that never gets its newline must not yield an address.
	p := &scriptedProbe{chunks: [][]byte{
		[]byte("D-VRAM: 0x2000"),
	}}
	_, err := DiscoverVRAM(p, 5, time.Millisecond)
	if !errors.Is(err, ErrAddressDiscovery) {
		t.Fatalf("error = %v, want ErrAddressDiscovery", err)
	}
}

func TestDiscoverVRAMNeverReported(t *testing.T) {
	p := &scriptedProbe{chunks: [][]byte{
		[]byte("booting\n"),
		[]byte("no framebuffer here\n"),
	}}
	_, err := DiscoverVRAM(p, 5, time.Millisecond)
	if !errors.Is(err, ErrAddressDiscovery) {
		t.Fatalf("error = %v, want ErrAddressDiscovery", err)
	}
}

func TestParseVRAMLine(t *testing.T) {
	tests := []struct {
		line string
		addr uint64
		ok   bool
	}{
		{"D-VRAM: 0xDEADBEEF", 0xDEADBEEF, true},
		{"  D-VRAM: 0x20001000  ", 0x20001000, true},
		{"D-VRAM: 0x0", 0, false},
		{"D-VRAM: garbage", 0, false},
		{"VRAM: 0x1234", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		addr, ok := ParseVRAMLine(tt.line)
		if addr != tt.addr || ok != tt.ok {
			t.Errorf("ParseVRAMLine(%q) = %#x, %v; want %#x, %v", tt.line, addr, ok, tt.addr, tt.ok)
		}
	}
}
