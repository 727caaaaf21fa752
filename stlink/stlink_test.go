package stlink

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fakeBus records frames and feeds back queued replies.
type fakeBus struct {
	writes  [][]byte
	replies [][]byte
	reads   int
}

func (b *fakeBus) Write(addr byte, p []byte) error {
	b.writes = append(b.writes, append([]byte(nil), p...))
	return nil
}

func (b *fakeBus) Read(addr byte, n int) ([]byte, error) {
	b.reads++
	if len(b.replies) == 0 {
		return bytes.Repeat([]byte{'0'}, n), nil
	}
	reply := b.replies[0]
	b.replies = b.replies[1:]
	return reply, nil
}

// lastCommand returns the most recent frame with its zero padding
// stripped, after checking the frame invariants.
func lastCommand(t *testing.T, b *fakeBus) string {
	t.Helper()
	if len(b.writes) == 0 {
		t.Fatal("no frame written")
	}
	buf := b.writes[len(b.writes)-1]
	if len(buf) != frameSize {
		t.Errorf("frame is %d bytes, want %d", len(buf), frameSize)
	}
	cmd := string(bytes.TrimRight(buf, "\x00"))
	for _, rest := range buf[len(cmd):] {
		if rest != 0 {
			t.Errorf("frame %q has nonzero padding", buf)
			break
		}
	}
	return cmd
}

func TestCommandEncoding(t *testing.T) {
	for _, test := range []struct {
		name string
		op   func(*Tracker) error
		want string
	}{
		{"sensor tl", func(tr *Tracker) error { _, err := tr.ReadSensor(TopLeft); return err }, "tl,?"},
		{"sensor tr", func(tr *Tracker) error { _, err := tr.ReadSensor(TopRight); return err }, "tr,?"},
		{"sensor bl", func(tr *Tracker) error { _, err := tr.ReadSensor(BottomLeft); return err }, "bl,?"},
		{"sensor br", func(tr *Tracker) error { _, err := tr.ReadSensor(BottomRight); return err }, "br,?"},
		{"servo pan", func(tr *Tracker) error { _, err := tr.ReadServo(Pan); return err }, "servoP,?"},
		{"servo tilt", func(tr *Tracker) error { _, err := tr.ReadServo(Tilt); return err }, "servoT,?"},
		{"solar cell", func(tr *Tracker) error { _, err := tr.ReadSolarCell(); return err }, "solarC,?"},
		{"mode query", func(tr *Tracker) error { _, err := tr.Mode(); return err }, "opMode,?"},
		{"mode manual", func(tr *Tracker) error { return tr.SetMode(Manual) }, "opMode,0"},
		{"mode automatic", func(tr *Tracker) error { return tr.SetMode(Automatic) }, "opMode,1"},
		{"mode remote", func(tr *Tracker) error { return tr.SetMode(Remote) }, "opMode,2"},
		{"turn up", func(tr *Tracker) error { return tr.TurnDirection(Up, 45) }, "turnDir,45"},
		{"turn down", func(tr *Tracker) error { return tr.TurnDirection(Down, 5) }, "turnDir,1005"},
		{"turn right", func(tr *Tracker) error { return tr.TurnDirection(Right, 10) }, "turnDir,2010"},
		{"turn left", func(tr *Tracker) error { return tr.TurnDirection(Left, 180) }, "turnDir,3180"},
		{"servo position", func(tr *Tracker) error { return tr.WriteServoPosition(Pan, 90) }, "servoP,90"},
		{"servo position tilt", func(tr *Tracker) error { return tr.WriteServoPosition(Tilt, 45) }, "servoT,45"},
	} {
		t.Run(test.name, func(t *testing.T) {
			bus := &fakeBus{}
			tr := New(bus, 0)
			if err := test.op(tr); err != nil {
				t.Fatalf("operation failed: %v", err)
			}
			if got := lastCommand(t, bus); got != test.want {
				t.Errorf("sent %q, want %q", got, test.want)
			}
		})
	}
}

func TestSetIssuesNoRead(t *testing.T) {
	bus := &fakeBus{}
	tr := New(bus, 0)
	if err := tr.WriteServoPosition(Pan, 90); err != nil {
		t.Fatal(err)
	}
	if err := tr.SetMode(Automatic); err != nil {
		t.Fatal(err)
	}
	if err := tr.TurnDirection(Left, 10); err != nil {
		t.Fatal(err)
	}
	if bus.reads != 0 {
		t.Errorf("set operations performed %d reads, want 0", bus.reads)
	}
}

func TestTurnValEquivalence(t *testing.T) {
	for _, test := range []struct {
		servo ServoID
		delta int
		dir   Direction
		mag   int
	}{
		{Pan, 30, Left, 30},
		{Pan, -30, Right, 30},
		{Tilt, 30, Down, 30},
		{Tilt, -30, Up, 30},
		{Pan, 0, Left, 0},
	} {
		busA := &fakeBus{}
		if err := New(busA, 0).TurnVal(test.servo, test.delta); err != nil {
			t.Fatal(err)
		}
		busB := &fakeBus{}
		if err := New(busB, 0).TurnDirection(test.dir, test.mag); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(busA.writes, busB.writes); diff != "" {
			t.Errorf("TurnVal(%v, %d) differs from TurnDirection(%v, %d): (-turnval +turndir):\n%s",
				test.servo, test.delta, test.dir, test.mag, diff)
		}
	}
}

func TestReceive(t *testing.T) {
	for _, test := range []struct {
		reply   string
		want    float64
		wantErr error
	}{
		{"0123", 123, nil},
		{"0000", 0, nil},
		{"-045", -45, nil},
		{"90\x00\x00", 90, nil},
		{"  42", 42, nil},
		{"abcd", math.NaN(), ErrBadReply},
		{"\x00\x00\x00\x00", math.NaN(), ErrBadReply},
	} {
		bus := &fakeBus{replies: [][]byte{[]byte(test.reply)}}
		tr := New(bus, 0)
		got, err := tr.ReadSolarCell()
		if !errors.Is(err, test.wantErr) {
			t.Errorf("reply %q: got error %v, want %v", test.reply, err, test.wantErr)
		}
		if math.IsNaN(test.want) {
			if !math.IsNaN(got) {
				t.Errorf("reply %q: got %v, want NaN", test.reply, got)
			}
		} else if got != test.want {
			t.Errorf("reply %q: got %v, want %v", test.reply, got, test.want)
		}
	}
}

func TestOversizeCommandRejected(t *testing.T) {
	if _, err := frame(query{"averylongfieldname"}); !errors.Is(err, ErrCommandTooLong) {
		t.Errorf("got %v, want ErrCommandTooLong", err)
	}
	bus := &fakeBus{}
	if err := New(bus, 0).TurnDirection(Left, 99999999); !errors.Is(err, ErrCommandTooLong) {
		t.Errorf("got %v, want ErrCommandTooLong", err)
	}
	if len(bus.writes) != 0 {
		t.Errorf("oversize command still reached the bus: %q", bus.writes)
	}
}

func TestSimulatorRoundTrip(t *testing.T) {
	sim := NewSimulator()
	tr := New(sim, 0)

	if err := tr.WriteServoPosition(Pan, 120); err != nil {
		t.Fatal(err)
	}
	if got, err := tr.ReadServo(Pan); err != nil || got != 120 {
		t.Errorf("ReadServo(Pan) = %v, %v; want 120", got, err)
	}

	// Relative turns move from the commanded position.
	if err := tr.TurnVal(Pan, -30); err != nil {
		t.Fatal(err)
	}
	if got, err := tr.ReadServo(Pan); err != nil || got != 90 {
		t.Errorf("after TurnVal(Pan, -30): ReadServo(Pan) = %v, %v; want 90", got, err)
	}
	if err := tr.TurnVal(Tilt, 15); err != nil {
		t.Fatal(err)
	}
	if got, err := tr.ReadServo(Tilt); err != nil || got != 105 {
		t.Errorf("after TurnVal(Tilt, 15): ReadServo(Tilt) = %v, %v; want 105", got, err)
	}

	if err := tr.SetMode(Automatic); err != nil {
		t.Fatal(err)
	}
	if got, err := tr.Mode(); err != nil || got != Automatic {
		t.Errorf("Mode() = %v, %v; want automatic", got, err)
	}

	sim.SetSensor(TopRight, 3100)
	if got, err := tr.ReadSensor(TopRight); err != nil || got != 3100 {
		t.Errorf("ReadSensor(TopRight) = %v, %v; want 3100", got, err)
	}
}

func TestPollOnce(t *testing.T) {
	sim := NewSimulator()
	sim.SetSensor(BottomLeft, 2600)
	sim.SetSolarCell(4100)
	tr := New(sim, 0)
	var got Status
	tr.statusCallback = func(s Status) { got = s }
	if err := tr.pollOnce(); err != nil {
		t.Fatalf("pollOnce: %v", err)
	}
	want := Status{
		SensorTL: 2500, SensorTR: 2500, SensorBL: 2600, SensorBR: 2500,
		PanPos: 90, TiltPos: 90,
		CellMV: 4100,
		Mode:   Manual,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected status (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, tr.Status()); diff != "" {
		t.Errorf("unexpected stored status (-want +got):\n%s", diff)
	}
}

// deadBus fails every transfer.
type deadBus struct{}

func (deadBus) Write(addr byte, p []byte) error { return errors.New("bus offline") }

func (deadBus) Read(addr byte, n int) ([]byte, error) { return nil, errors.New("bus offline") }

func TestPollKeepsLastGoodStatus(t *testing.T) {
	sim := NewSimulator()
	sim.SetSolarCell(4100)
	tr := New(sim, 0)
	if err := tr.pollOnce(); err != nil {
		t.Fatalf("pollOnce: %v", err)
	}
	want := tr.Status()

	tr.bus = deadBus{}
	if err := tr.pollOnce(); err == nil {
		t.Fatal("pollOnce with dead bus did not report an error")
	}
	got := tr.Status()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("failed poll changed the status (-want +got):\n%s", diff)
	}
	// The status feeds JSON surfaces; a failed read must never leave a
	// value behind that json.Marshal rejects.
	if _, err := json.Marshal(got); err != nil {
		t.Errorf("status not marshalable: %v", err)
	}
}

func TestPollNotifiesOnChange(t *testing.T) {
	sim := NewSimulator()
	tr := New(sim, 0)
	var calls int
	tr.statusCallback = func(Status) { calls++ }
	if err := tr.pollOnce(); err != nil {
		t.Fatal(err)
	}
	if err := tr.pollOnce(); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("callback fired %d times for unchanged telemetry, want 1", calls)
	}
	sim.SetSolarCell(4000)
	if err := tr.pollOnce(); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("callback fired %d times after a change, want 2", calls)
	}
}

func TestOffset(t *testing.T) {
	sim := NewSimulator()
	o := &Offset{Tracker: New(sim, 0), offsetPan: 10, offsetTilt: -5}
	if err := o.SetPanPosition(90); err != nil {
		t.Fatal(err)
	}
	if got, err := o.Tracker.ReadServo(Pan); err != nil || got != 80 {
		t.Errorf("raw pan = %v, %v; want 80", got, err)
	}
	if err := o.SetTiltPosition(45); err != nil {
		t.Fatal(err)
	}
	if got, err := o.Tracker.ReadServo(Tilt); err != nil || got != 50 {
		t.Errorf("raw tilt = %v, %v; want 50", got, err)
	}
}
