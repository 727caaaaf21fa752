package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"

	"github.com/sunwatcher/tracker_interface/stlink"
)

// ListenConsole serves a line-oriented text protocol for scripting:
// one command per line, "OK" or "ERR <reason>" per command.
func (s *Server) ListenConsole(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		log.Print("shutdown; closing console socket")
		ln.Close()
	}()
	go func() {
		for ctx.Err() == nil {
			conn, err := ln.Accept()
			if err != nil {
				log.Printf("failed to accept: %v", err)
				continue
			}
			go s.handleConsole(conn)
		}
	}()
	return nil
}

func (s *Server) handleConsole(conn net.Conn) {
	defer conn.Close()
	log.Printf("accepted connection from %v", conn.RemoteAddr())
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]
		log.Printf("%v command: %q args: %#v", conn.RemoteAddr(), cmd, args)
		if err := s.consoleCommand(conn, cmd, args); err != nil {
			fmt.Fprintf(conn, "ERR %v\n", err)
		} else {
			fmt.Fprintf(conn, "OK\n")
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("reading from %v: %v", conn.RemoteAddr(), err)
	}
}

func (s *Server) consoleCommand(conn net.Conn, cmd string, args []string) error {
	switch cmd {
	case "status":
		s.statusMu.RLock()
		status := s.status
		s.statusMu.RUnlock()
		fmt.Fprintf(conn, "pan: %.0f tilt: %.0f cell: %.0fmV mode: %v following: %v\n",
			status.Tracker.PanPos, status.Tracker.TiltPos,
			status.Tracker.CellMV, status.Tracker.Mode, status.Following)
		return nil
	case "sensors":
		s.statusMu.RLock()
		status := s.status.Tracker
		s.statusMu.RUnlock()
		fmt.Fprintf(conn, "tl: %.0f tr: %.0f bl: %.0f br: %.0f\n",
			status.SensorTL, status.SensorTR, status.SensorBL, status.SensorBR)
		return nil
	case "servo":
		if len(args) != 2 {
			return fmt.Errorf("usage: servo <pan|tilt> <degree>")
		}
		degree, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.t.WriteServoPosition(servoByName(args[0]), degree)
	case "turn":
		if len(args) != 2 {
			return fmt.Errorf("usage: turn <up|down|left|right> <degrees>")
		}
		magnitude, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.t.TurnDirection(directionByName(args[0]), magnitude)
	case "mode":
		if len(args) != 1 {
			return fmt.Errorf("usage: mode <manual|automatic|remote>")
		}
		var mode stlink.Mode
		switch args[0] {
		case "manual", "0":
			mode = stlink.Manual
		case "automatic", "1":
			mode = stlink.Automatic
		case "remote", "2":
			mode = stlink.Remote
		default:
			return fmt.Errorf("unknown mode %q", args[0])
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.t.SetMode(mode)
	case "follow":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return fmt.Errorf("usage: follow <on|off>")
		}
		s.handleCommand(Command{Command: "follow", Enabled: args[0] == "on"})
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}
