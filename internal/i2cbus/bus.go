// Package i2cbus provides byte-addressed bus access for the tracker
// link, with backends for Linux i2c-dev and serial-attached bridge
// adapters.
package i2cbus

// Bus is a byte-oriented addressed bus. The tracker link performs one
// Write per command and one Read per reply; implementations may be
// shared between devices but each call is a single bus transfer.
type Bus interface {
	Write(addr byte, p []byte) error
	Read(addr byte, n int) ([]byte, error)
}
