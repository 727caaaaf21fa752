package stlink

import (
	"context"
	"sync"

	"github.com/sunwatcher/tracker_interface/internal/i2cbus"
)

// Offset corrects for a tracker mounted off-square: the offsets are
// added to reported positions and subtracted from requested ones.
type Offset struct {
	*Tracker
	mu sync.Mutex
	// offsets in degrees
	offsetPan, offsetTilt int
}

// ConnectOffset is Connect with fixed mounting offsets applied to both
// directions of the pan/tilt position exchange.
func ConnectOffset(ctx context.Context, bus i2cbus.Bus, addr byte, statusCallback StatusCallback, offsetPan, offsetTilt int) (*Offset, error) {
	o := &Offset{offsetPan: offsetPan, offsetTilt: offsetTilt}
	cb := func(status Status) {
		o.mu.Lock()
		status.PanPos += float64(o.offsetPan)
		status.TiltPos += float64(o.offsetTilt)
		o.mu.Unlock()
		if statusCallback != nil {
			statusCallback(status)
		}
	}
	t, err := Connect(ctx, bus, addr, cb)
	if err != nil {
		return nil, err
	}
	o.Tracker = t
	return o, nil
}

func (o *Offset) SetPanOffset(offset int) {
	o.mu.Lock()
	o.offsetPan = offset
	o.mu.Unlock()
}

func (o *Offset) SetTiltOffset(offset int) {
	o.mu.Lock()
	o.offsetTilt = offset
	o.mu.Unlock()
}

func (o *Offset) WriteServoPosition(id ServoID, degree int) error {
	o.mu.Lock()
	offset := o.offsetPan
	if id == Tilt {
		offset = o.offsetTilt
	}
	o.mu.Unlock()
	return o.Tracker.WriteServoPosition(id, degree-offset)
}

func (o *Offset) SetPanPosition(degree int) error { return o.WriteServoPosition(Pan, degree) }

func (o *Offset) SetTiltPosition(degree int) error { return o.WriteServoPosition(Tilt, degree) }
