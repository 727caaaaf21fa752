package stlink

import (
	"errors"
	"fmt"
)

// Field codes understood by the tracker firmware.
const (
	fieldSensorTL  = "tl"
	fieldSensorTR  = "tr"
	fieldSensorBL  = "bl"
	fieldSensorBR  = "br"
	fieldServoPan  = "servoP"
	fieldServoTilt = "servoT"
	fieldSolarCell = "solarC"
	fieldMode      = "opMode"
	fieldTurn      = "turnDir"
)

const (
	// frameSize is the fixed write transfer size. The firmware always
	// reads a full frame and parses up to the fields it recognizes.
	frameSize = 16
	// replySize is the fixed read transfer size.
	replySize = 4
)

var ErrCommandTooLong = errors.New("command exceeds write frame")

// SensorID selects one of the four photodiodes on the sensor head.
type SensorID int

const (
	TopLeft SensorID = iota
	TopRight
	BottomLeft
	BottomRight
)

func (s SensorID) field() string {
	switch s {
	case TopRight:
		return fieldSensorTR
	case BottomLeft:
		return fieldSensorBL
	case BottomRight:
		return fieldSensorBR
	}
	return fieldSensorTL
}

func (s SensorID) String() string { return s.field() }

// ServoID selects the pan or tilt axis.
type ServoID int

const (
	Pan ServoID = iota
	Tilt
)

func (s ServoID) field() string {
	if s == Tilt {
		return fieldServoTilt
	}
	return fieldServoPan
}

func (s ServoID) String() string {
	if s == Tilt {
		return "tilt"
	}
	return "pan"
}

// Direction is a relative movement of the sensor head. The ordinal
// values are part of the wire format: turnDir carries
// direction*1000 + magnitude.
type Direction int

const (
	Up    Direction = 0
	Down  Direction = 1
	Right Direction = 2
	Left  Direction = 3
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Right:
		return "right"
	}
	return "left"
}

// Mode is the firmware's operating mode: servos driven by hand,
// following the brightest sensor, or taking remote commands.
type Mode int

const (
	Manual    Mode = 0
	Automatic Mode = 1
	Remote    Mode = 2
)

func (m Mode) String() string {
	switch m {
	case Automatic:
		return "automatic"
	case Remote:
		return "remote"
	}
	return "manual"
}

// A command is one line of the firmware's "<field>,<value or ?>"
// grammar. Each variant owns its own encoding so the wire format can
// be tested without touching the bus.
type command interface {
	encode() string
}

type query struct {
	field string
}

func (c query) encode() string { return c.field + ",?" }

type setServo struct {
	servo  ServoID
	degree int
}

func (c setServo) encode() string { return fmt.Sprintf("%s,%d", c.servo.field(), c.degree) }

type setMode struct {
	mode Mode
}

func (c setMode) encode() string { return fmt.Sprintf("%s,%d", fieldMode, int(c.mode)) }

type turn struct {
	dir       Direction
	magnitude int
}

func (c turn) encode() string {
	return fmt.Sprintf("%s,%d", fieldTurn, int(c.dir)*1000+c.magnitude)
}

// frame serializes cmd into a fresh write buffer. The remainder of the
// frame is explicitly zero so a short command never carries trailing
// bytes from a longer one.
func frame(cmd command) ([]byte, error) {
	s := cmd.encode()
	if len(s) > frameSize {
		return nil, fmt.Errorf("command %q: %w", s, ErrCommandTooLong)
	}
	buf := make([]byte, frameSize)
	copy(buf, s)
	return buf, nil
}
