package i2cbus

import (
	"fmt"
	"sync"

	"golang.org/x/exp/io/i2c"
)

// Devfs is a Bus backed by a Linux /dev/i2c-N character device.
// Connections are opened lazily, one per peer address.
type Devfs struct {
	// Dev is the character device path, e.g. "/dev/i2c-1".
	Dev string

	mu      sync.Mutex
	devices map[byte]*i2c.Device
}

func (d *Devfs) device(addr byte) (*i2c.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if dev, ok := d.devices[addr]; ok {
		return dev, nil
	}
	dev, err := i2c.Open(&i2c.Devfs{Dev: d.Dev}, int(addr))
	if err != nil {
		return nil, fmt.Errorf("opening %q addr %#x: %w", d.Dev, addr, err)
	}
	if d.devices == nil {
		d.devices = make(map[byte]*i2c.Device)
	}
	d.devices[addr] = dev
	return dev, nil
}

func (d *Devfs) Write(addr byte, p []byte) error {
	dev, err := d.device(addr)
	if err != nil {
		return err
	}
	return dev.Write(p)
}

func (d *Devfs) Read(addr byte, n int) ([]byte, error) {
	dev, err := d.device(addr)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if err := dev.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *Devfs) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var firstErr error
	for addr, dev := range d.devices {
		if err := dev.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(d.devices, addr)
	}
	return firstErr
}
