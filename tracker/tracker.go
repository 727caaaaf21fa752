package tracker

// Tracker is the host-side control surface for a two-axis solar
// tracker. Angles are servo degrees in the 0-180 range; deltas are
// signed degrees.
type Tracker interface {
	SetPanPosition(degree int) error
	SetTiltPosition(degree int) error
	TurnPan(delta int) error
	TurnTilt(delta int) error
}

type StatusCallback func(status Status)

type Status interface {
	PanPosition() float64
	TiltPosition() float64
	SolarCell() float64

	Clone() Status
}

type Offsetter interface {
	SetPanOffset(offset int)
	SetTiltOffset(offset int)
}
