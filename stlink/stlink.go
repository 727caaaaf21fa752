// Package stlink drives a two-axis solar tracker over its I2C command
// protocol: 16-byte ASCII command frames out, 4-byte ASCII decimal
// replies back.
package stlink

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sunwatcher/tracker_interface/internal/i2cbus"
	"github.com/sunwatcher/tracker_interface/tracker"
)

// DefaultAddr is the 7-bit bus address the tracker firmware listens on.
const DefaultAddr = 0x08

// settleDelay is how long the firmware needs between receiving a query
// and having the reply staged for the next bus read. There is no ready
// signal; the delay is the synchronization.
const settleDelay = 1000 * time.Microsecond

var ErrBadReply = errors.New("reply is not a decimal integer")

type StatusCallback func(status Status)

type Status struct {
	// Photodiode outputs in millivolts.
	SensorTL, SensorTR, SensorBL, SensorBR float64
	// Servo positions in degrees.
	PanPos, TiltPos float64
	// Solar cell output in millivolts.
	CellMV float64
	// Operating mode reported by the firmware.
	Mode Mode
}

func (s Status) Clone() tracker.Status { return s }

func (s Status) PanPosition() float64 { return s.PanPos }

func (s Status) TiltPosition() float64 { return s.TiltPos }

func (s Status) SolarCell() float64 { return s.CellMV }

// Tracker is a host-side handle on one tracker unit.
type Tracker struct {
	bus  i2cbus.Bus
	addr byte

	statusCallback StatusCallback

	// mu serializes bus exchanges. Two concurrent commands would
	// interleave their bytes on the bus and corrupt both.
	mu     sync.Mutex
	status Status
}

func New(bus i2cbus.Bus, addr byte) *Tracker {
	if addr == 0 {
		addr = DefaultAddr
	}
	return &Tracker{bus: bus, addr: addr}
}

// Connect returns a Tracker that polls telemetry once per second until
// ctx is canceled, reporting changes through statusCallback.
func Connect(ctx context.Context, bus i2cbus.Bus, addr byte, statusCallback StatusCallback) (*Tracker, error) {
	t := New(bus, addr)
	t.statusCallback = statusCallback
	go t.watch(ctx)
	return t, nil
}

func (t *Tracker) watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(1 * time.Second):
		}
		if err := t.pollOnce(); err != nil {
			log.Printf("polling tracker: %v", err)
		}
	}
}

// pollOnce reads all telemetry fields. A failed read keeps the field's
// last good value and the poll carries on; telemetry is best effort,
// and the NaN sentinel from receive must never reach the published
// status (it is not representable in JSON).
func (t *Tracker) pollOnce() error {
	t.mu.Lock()
	status := t.status
	t.mu.Unlock()
	var firstErr error
	read := func(dest *float64, field string) {
		v, err := t.exchange(query{field})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		*dest = v
	}
	read(&status.SensorTL, fieldSensorTL)
	read(&status.SensorTR, fieldSensorTR)
	read(&status.SensorBL, fieldSensorBL)
	read(&status.SensorBR, fieldSensorBR)
	read(&status.PanPos, fieldServoPan)
	read(&status.TiltPos, fieldServoTilt)
	read(&status.CellMV, fieldSolarCell)
	if mode, err := t.Mode(); err == nil {
		status.Mode = mode
	} else if firstErr == nil {
		firstErr = err
	}

	t.mu.Lock()
	changed := status != t.status
	t.status = status
	t.mu.Unlock()
	if changed && t.statusCallback != nil {
		t.statusCallback(status)
	}
	return firstErr
}

// Status returns the last polled telemetry.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// send encodes cmd and writes one fixed-size frame to the peer.
// Callers must hold mu.
func (t *Tracker) send(cmd command) error {
	buf, err := frame(cmd)
	if err != nil {
		return err
	}
	if err := t.bus.Write(t.addr, buf); err != nil {
		return fmt.Errorf("writing %q: %w", cmd.encode(), err)
	}
	return nil
}

// receive reads the fixed 4-byte reply and parses it as a signed
// decimal integer. NaN comes back alongside the error so permissive
// callers can keep treating any read as a number.
func (t *Tracker) receive() (float64, error) {
	raw, err := t.bus.Read(t.addr, replySize)
	if err != nil {
		return math.NaN(), fmt.Errorf("reading reply: %w", err)
	}
	text := strings.TrimSpace(strings.TrimRight(string(raw), "\x00"))
	n, err := strconv.Atoi(text)
	if err != nil {
		return math.NaN(), fmt.Errorf("reply %q: %w", raw, ErrBadReply)
	}
	return float64(n), nil
}

// exchange performs one query round trip: send, settle, receive.
func (t *Tracker) exchange(cmd command) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.send(cmd); err != nil {
		return math.NaN(), err
	}
	time.Sleep(settleDelay)
	return t.receive()
}

// set sends a command that expects no reply.
func (t *Tracker) set(cmd command) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.send(cmd)
}

// ReadSensor returns one photodiode's output in millivolts.
func (t *Tracker) ReadSensor(id SensorID) (float64, error) {
	return t.exchange(query{id.field()})
}

// ReadServo returns a servo's position in degrees.
func (t *Tracker) ReadServo(id ServoID) (float64, error) {
	return t.exchange(query{id.field()})
}

// ReadSolarCell returns the solar cell output in millivolts.
func (t *Tracker) ReadSolarCell() (float64, error) {
	return t.exchange(query{fieldSolarCell})
}

// Mode returns the firmware's current operating mode.
func (t *Tracker) Mode() (Mode, error) {
	v, err := t.exchange(query{fieldMode})
	if err != nil {
		return Manual, err
	}
	return Mode(int(v)), nil
}

// WriteServoPosition commands a servo to an absolute position in
// degrees. The firmware is responsible for clamping; out-of-range
// values pass through unchanged.
func (t *Tracker) WriteServoPosition(id ServoID, degree int) error {
	return t.set(setServo{id, degree})
}

func (t *Tracker) SetMode(mode Mode) error {
	return t.set(setMode{mode})
}

// TurnDirection nudges the head the given number of degrees in the
// given direction.
func (t *Tracker) TurnDirection(dir Direction, magnitude int) error {
	return t.set(turn{dir, magnitude})
}

// TurnVal is the signed form of TurnDirection: positive pan deltas
// turn left and positive tilt deltas turn down, matching the
// orientation of the sensor head.
func (t *Tracker) TurnVal(id ServoID, delta int) error {
	dir := Left
	if id == Tilt {
		dir = Down
	}
	if delta < 0 {
		delta = -delta
		dir = Right
		if id == Tilt {
			dir = Up
		}
	}
	return t.TurnDirection(dir, delta)
}

func (t *Tracker) SetPanPosition(degree int) error { return t.WriteServoPosition(Pan, degree) }

func (t *Tracker) SetTiltPosition(degree int) error { return t.WriteServoPosition(Tilt, degree) }

func (t *Tracker) TurnPan(delta int) error { return t.TurnVal(Pan, delta) }

func (t *Tracker) TurnTilt(delta int) error { return t.TurnVal(Tilt, delta) }
