// Package sunpos computes the topocentric position of the sun for a
// fixed observing site.
package sunpos

import (
	"github.com/pebbe/novas"
)

type Site struct {
	place *novas.Place
	sun   *novas.Body
}

// NewSite returns a Site at the given latitude and longitude in
// degrees and height in meters. Standard temperature and pressure are
// assumed; refraction at the elevations a tracker cares about is well
// under a degree.
func NewSite(latitude, longitude, height float64) *Site {
	return &Site{
		place: novas.NewPlace(latitude, longitude, height, 15, 1010),
		sun:   novas.Sun(),
	}
}

// Position returns the sun's current azimuth and altitude in degrees.
func (s *Site) Position() (az, alt float64) {
	d := s.sun.Topo(novas.Now(), s.place, novas.REFR_NONE)
	return d.Az, d.Alt
}
