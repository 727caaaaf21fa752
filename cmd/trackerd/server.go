package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sunwatcher/tracker_interface/charger"
	"github.com/sunwatcher/tracker_interface/stlink"
	"github.com/sunwatcher/tracker_interface/sunpos"
)

type Server struct {
	site    *sunpos.Site
	heading float64

	mu        sync.Mutex
	t         *stlink.Offset
	charger   *charger.Charger
	following bool

	statusMu   sync.RWMutex
	statusCond *sync.Cond
	status     Status
}

// Status is the combined state pushed to clients.
type Status struct {
	Tracker   stlink.Status
	Charger   charger.Status
	Following bool
	SunAz     float64
	SunAlt    float64
}

func NewServer(site *sunpos.Site, heading float64) *Server {
	s := &Server{site: site, heading: heading}
	s.statusCond = sync.NewCond(s.statusMu.RLocker())
	return s
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) statusCallback(status stlink.Status) {
	az, alt := s.site.Position()
	s.mu.Lock()
	following := s.following
	s.mu.Unlock()
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.Tracker = status
	s.status.Following = following
	s.status.SunAz, s.status.SunAlt = az, alt
	s.statusCond.Broadcast()
}

func (s *Server) chargerCallback(status charger.Status) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.Charger = status
	s.statusCond.Broadcast()
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	s.statusMu.RLock()
	status := s.status
	s.statusMu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(status)
	if err != nil {
		log.Print(err)
		return
	}
	w.Write(data)
}

// Command is one JSON message from a websocket client; fields beyond
// Command are interpreted per command.
type Command struct {
	Command   string `json:"command"`
	Servo     string `json:"servo"`
	Degree    int    `json:"degree"`
	Mode      int    `json:"mode"`
	Direction string `json:"direction"`
	Magnitude int    `json:"magnitude"`
	Delta     int    `json:"delta"`
	Enabled   bool   `json:"enabled"`
}

func servoByName(name string) stlink.ServoID {
	if name == "tilt" {
		return stlink.Tilt
	}
	return stlink.Pan
}

func directionByName(name string) stlink.Direction {
	switch name {
	case "up":
		return stlink.Up
	case "down":
		return stlink.Down
	case "right":
		return stlink.Right
	}
	return stlink.Left
}

func (s *Server) handleCommand(msg Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	switch msg.Command {
	case "set_servo":
		err = s.t.WriteServoPosition(servoByName(msg.Servo), msg.Degree)
	case "set_mode":
		err = s.t.SetMode(stlink.Mode(msg.Mode))
	case "turn":
		err = s.t.TurnDirection(directionByName(msg.Direction), msg.Magnitude)
	case "turn_val":
		err = s.t.TurnVal(servoByName(msg.Servo), msg.Delta)
	case "follow":
		s.following = msg.Enabled
		if msg.Enabled {
			// Keep the firmware's own sensor logic out of the way
			// while the host drives the servos.
			err = s.t.SetMode(stlink.Remote)
		}
	case "set_load":
		if s.charger != nil {
			err = s.charger.SetLoadEnabled(msg.Enabled)
		}
	}
	if err != nil {
		log.Printf("command %q: %v", msg.Command, err)
	}
}

func (s *Server) StatusSocketHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		cancel()
		return
	}

	// Read and process incoming messages
	go func() {
		for {
			var msg Command
			if err := conn.ReadJSON(&msg); err != nil {
				cancel()
				conn.Close()
				break
			}
			s.handleCommand(msg)
		}
	}()

	send := func(status Status) bool {
		data, err := json.Marshal(status)
		if err != nil {
			log.Print(err)
			return false
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return false
		}
		return true
	}

	s.statusMu.RLock()
	status := s.status
	s.statusMu.RUnlock()
	if !send(status) {
		return
	}

	go func() {
		<-ctx.Done()
		// Wake the send loop so it notices the closed connection.
		s.statusCond.Broadcast()
	}()
	for {
		s.statusMu.RLock()
		s.statusCond.Wait()
		status := s.status
		s.statusMu.RUnlock()
		if ctx.Err() != nil {
			return
		}
		if !send(status) {
			return
		}
	}
}
