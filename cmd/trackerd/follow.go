package main

import (
	"context"
	"log"
	"math"
	"time"
)

// followLoop drives the servos toward the computed sun position while
// following is enabled.
func (s *Server) followLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(30 * time.Second):
		}
		s.mu.Lock()
		following := s.following
		s.mu.Unlock()
		if !following {
			continue
		}
		az, alt := s.site.Position()
		if alt < 0 {
			// Sun below the horizon; leave the tracker where it is.
			continue
		}
		pan, tilt := s.pointing(az, alt)
		s.mu.Lock()
		if err := s.t.SetPanPosition(pan); err != nil {
			log.Printf("follow: %v", err)
		}
		if err := s.t.SetTiltPosition(tilt); err != nil {
			log.Printf("follow: %v", err)
		}
		s.mu.Unlock()
	}
}

// pointing maps sun azimuth/altitude to servo degrees. Pan 90 faces
// the configured mount heading and increases eastward; tilt 90 points
// at the horizon, 0 at the zenith. Results are clamped to the servo
// range so the follow loop never asks for an impossible angle.
func (s *Server) pointing(az, alt float64) (pan, tilt int) {
	pan = clamp(int(math.Round(90 + s.heading - az)))
	tilt = clamp(int(math.Round(90 - alt)))
	return pan, tilt
}

func clamp(deg int) int {
	if deg < 0 {
		return 0
	}
	if deg > 180 {
		return 180
	}
	return deg
}
