package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/sunwatcher/tracker_interface/charger"
	"github.com/sunwatcher/tracker_interface/internal/i2cbus"
	"github.com/sunwatcher/tracker_interface/stlink"
	"github.com/sunwatcher/tracker_interface/sunpos"
)

var (
	addr        = flag.String("addr", "127.0.0.1:8602", "address to listen on")
	consoleAddr = flag.String("console", "", "address for the text console listener (disabled if empty)")

	i2cDev     = flag.String("i2c_dev", "/dev/i2c-1", "I2C character device")
	i2cAddr    = flag.Int("i2c_addr", stlink.DefaultAddr, "tracker bus address")
	bridgePort = flag.String("bridge_serial", "", "serial port of an I2C bridge adapter (overrides -i2c_dev)")
	bridgeBaud = flag.Int("bridge_baud", 115200, "bridge baud rate")
	sim        = flag.Bool("sim", false, "use a simulated tracker instead of hardware")

	panOffset  = flag.Int("pan_offset", 0, "mounting offset added to pan degrees")
	tiltOffset = flag.Int("tilt_offset", 0, "mounting offset added to tilt degrees")

	latitude  = flag.Float64("latitude", 42.36, "site latitude in degrees")
	longitude = flag.Float64("longitude", -71.09, "site longitude in degrees")
	height    = flag.Float64("height", 0, "site height in meters")
	heading   = flag.Float64("heading", 180, "azimuth the panel faces at pan 90")

	chargerPort = flag.String("charger_serial", "", "charge controller serial port")
	chargerBaud = flag.Int("charger_baud", 9600, "charge controller baud rate")
)

func main() {
	flag.Parse()
	ctx := context.Background()

	var bus i2cbus.Bus
	switch {
	case *sim:
		bus = stlink.NewSimulator()
	case *bridgePort != "":
		b, err := i2cbus.OpenSerialBridge(*bridgePort, *bridgeBaud)
		if err != nil {
			log.Fatal(err)
		}
		bus = b
	default:
		bus = &i2cbus.Devfs{Dev: *i2cDev}
	}

	server := NewServer(sunpos.NewSite(*latitude, *longitude, *height), *heading)

	t, err := stlink.ConnectOffset(ctx, bus, byte(*i2cAddr), server.statusCallback, *panOffset, *tiltOffset)
	if err != nil {
		log.Fatal(err)
	}
	server.t = t

	if *chargerPort != "" {
		c, err := charger.Connect(ctx, *chargerPort, *chargerBaud, 1, server.chargerCallback)
		if err != nil {
			log.Fatal(err)
		}
		server.charger = c
	}

	if *consoleAddr != "" {
		if err := server.ListenConsole(ctx, *consoleAddr); err != nil {
			log.Fatal(err)
		}
	}

	r := mux.NewRouter()
	r.Handle("/api/status", http.HandlerFunc(server.StatusHandler))
	r.Handle("/api/ws", http.HandlerFunc(server.StatusSocketHandler))
	srv := &http.Server{
		Handler:      r,
		Addr:         *addr,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.followLoop(ctx) })
	g.Go(srv.ListenAndServe)
	log.Fatal(g.Wait())
}
