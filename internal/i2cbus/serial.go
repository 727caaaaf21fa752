package i2cbus

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/tarm/serial"
)

// SerialBridge is a Bus behind a USB-serial I2C adapter speaking a hex
// line protocol: "Waa <payload>" writes payload to address aa,
// "Raa <n>" reads n bytes back as one hex line.
type SerialBridge struct {
	mu sync.Mutex
	rw io.ReadWriter
	br *bufio.Reader
}

// OpenSerialBridge opens the adapter on the named serial port.
func OpenSerialBridge(port string, baud int) (*SerialBridge, error) {
	s, err := serial.OpenPort(&serial.Config{Name: port, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", port, err)
	}
	return NewSerialBridge(s), nil
}

// NewSerialBridge wraps an already-open adapter stream. Split out from
// OpenSerialBridge so tests can substitute an in-memory stream.
func NewSerialBridge(rw io.ReadWriter) *SerialBridge {
	return &SerialBridge{rw: rw, br: bufio.NewReader(rw)}
}

func (b *SerialBridge) Write(addr byte, p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := fmt.Fprintf(b.rw, "W%02x %s\n", addr, hex.EncodeToString(p)); err != nil {
		return fmt.Errorf("bridge write: %w", err)
	}
	return nil
}

func (b *SerialBridge) Read(addr byte, n int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := fmt.Fprintf(b.rw, "R%02x %d\n", addr, n); err != nil {
		return nil, fmt.Errorf("bridge read: %w", err)
	}
	line, err := b.br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading bridge reply: %w", err)
	}
	buf, err := hex.DecodeString(strings.TrimSpace(line))
	if err != nil {
		return nil, fmt.Errorf("bridge reply %q: %w", line, err)
	}
	if len(buf) != n {
		return nil, fmt.Errorf("bridge returned %d bytes, want %d", len(buf), n)
	}
	return buf, nil
}
