package stlink

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Simulator emulates the tracker firmware behind the bus interface:
// command frames are parsed as they are written and query replies are
// staged for the following read. Used by tests and trackerd's -sim
// flag.
type Simulator struct {
	mu      sync.Mutex
	sensors [4]int
	servos  [2]int
	cell    int
	mode    Mode
	reply   [replySize]byte
}

func NewSimulator() *Simulator {
	s := &Simulator{
		sensors: [4]int{2500, 2500, 2500, 2500},
		servos:  [2]int{90, 90},
		cell:    3300,
		mode:    Manual,
	}
	s.stage(0)
	return s
}

// SetSensor overrides one photodiode reading, in millivolts.
func (s *Simulator) SetSensor(id SensorID, mv int) {
	s.mu.Lock()
	s.sensors[id] = mv
	s.mu.Unlock()
}

// SetSolarCell overrides the solar cell output, in millivolts.
func (s *Simulator) SetSolarCell(mv int) {
	s.mu.Lock()
	s.cell = mv
	s.mu.Unlock()
}

func (s *Simulator) Write(addr byte, p []byte) error {
	cmd := strings.TrimRight(string(p), "\x00")
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle(cmd)
}

func (s *Simulator) Read(addr byte, n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n != replySize {
		return nil, fmt.Errorf("read of %d bytes, firmware replies with %d", n, replySize)
	}
	out := make([]byte, replySize)
	copy(out, s.reply[:])
	return out, nil
}

// stage formats v the way the firmware does: four ASCII bytes,
// zero-padded, sign included.
func (s *Simulator) stage(v int) {
	copy(s.reply[:], fmt.Sprintf("%04d", v))
}

func (s *Simulator) handle(cmd string) error {
	parts := strings.SplitN(cmd, ",", 2)
	if len(parts) != 2 {
		return fmt.Errorf("malformed command %q", cmd)
	}
	field, arg := parts[0], parts[1]
	if arg == "?" {
		return s.handleQuery(field)
	}
	v, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("command %q: %v", cmd, err)
	}
	switch field {
	case fieldServoPan:
		s.servos[Pan] = v
	case fieldServoTilt:
		s.servos[Tilt] = v
	case fieldMode:
		s.mode = Mode(v)
	case fieldTurn:
		s.turn(Direction(v/1000), v%1000)
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return nil
}

func (s *Simulator) handleQuery(field string) error {
	switch field {
	case fieldSensorTL:
		s.stage(s.sensors[TopLeft])
	case fieldSensorTR:
		s.stage(s.sensors[TopRight])
	case fieldSensorBL:
		s.stage(s.sensors[BottomLeft])
	case fieldSensorBR:
		s.stage(s.sensors[BottomRight])
	case fieldServoPan:
		s.stage(s.servos[Pan])
	case fieldServoTilt:
		s.stage(s.servos[Tilt])
	case fieldSolarCell:
		s.stage(s.cell)
	case fieldMode:
		s.stage(int(s.mode))
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return nil
}

func (s *Simulator) turn(dir Direction, magnitude int) {
	switch dir {
	case Left:
		s.servos[Pan] += magnitude
	case Right:
		s.servos[Pan] -= magnitude
	case Down:
		s.servos[Tilt] += magnitude
	case Up:
		s.servos[Tilt] -= magnitude
	}
}
