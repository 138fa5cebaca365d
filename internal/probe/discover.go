package probe

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// VRAMMarker prefixes the boot log line announcing the framebuffer address,
// e.g. "D-VRAM: 0xDEADBEEF".
const VRAMMarker = "D-VRAM:"

// DiscoverVRAM polls the probe's log channel until the target announces its
// framebuffer address, giving up after maxReads timed reads.
func DiscoverVRAM(p DebugProbe, maxReads int, timeout time.Duration) (uint64, error) {
	var pending []byte
	for i := 0; i < maxReads; i++ {
		chunk, err := p.ReadLogChannel(0, timeout)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrAddressDiscovery, err)
		}
		pending = append(pending, chunk...)
		// Only complete lines are parsed: a chunk can end mid-address, and
		// a truncated address is still valid hex. The unterminated tail
		// stays in pending until the next read finishes it.
		for {
			nl := bytes.IndexByte(pending, '\n')
			if nl < 0 {
				break
			}
			line := string(pending[:nl])
			pending = pending[nl+1:]
			if addr, ok := ParseVRAMLine(line); ok {
				return addr, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: no %q line on the log channel after %d reads "+
		"(firmware must print e.g. \"D-VRAM: 0xDEADBEEF\" at boot)",
		ErrAddressDiscovery, VRAMMarker, maxReads)
}

// ParseVRAMLine extracts the framebuffer address from one log line. Reports
// false for lines without the marker or with a zero/invalid address.
func ParseVRAMLine(line string) (uint64, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, VRAMMarker) {
		return 0, false
	}
	s := strings.TrimSpace(strings.TrimPrefix(line, VRAMMarker))
	addr, err := strconv.ParseUint(s, 0, 64)
	if err != nil || addr == 0 {
		return 0, false
	}
	return addr, true
}
