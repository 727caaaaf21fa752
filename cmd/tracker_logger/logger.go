package main

import (
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/sunwatcher/tracker_interface/charger"
	"github.com/sunwatcher/tracker_interface/stlink"
)

// Status mirrors the JSON trackerd pushes on its websocket.
type Status struct {
	Tracker   stlink.Status
	Charger   charger.Status
	Following bool
	SunAz     float64
	SunAlt    float64
}

// trackerFields flattens the head telemetry plus the sun ephemeris
// into one point's fields.
func trackerFields(status Status) map[string]interface{} {
	s := status.Tracker
	return map[string]interface{}{
		"sensor_tl_mv": s.SensorTL,
		"sensor_tr_mv": s.SensorTR,
		"sensor_bl_mv": s.SensorBL,
		"sensor_br_mv": s.SensorBR,
		"pan_deg":      s.PanPos,
		"tilt_deg":     s.TiltPos,
		"cell_mv":      s.CellMV,
		"mode":         int(s.Mode),
		"following":    status.Following,
		"sun_az":       status.SunAz,
		"sun_alt":      status.SunAlt,
	}
}

func chargerFields(s charger.Status) map[string]interface{} {
	return map[string]interface{}{
		"pv_voltage":      s.PVVoltage,
		"pv_current":      s.PVCurrent,
		"battery_voltage": s.BatteryVoltage,
		"battery_current": s.BatteryCurrent,
		"charging":        s.Charging,
		"load_on":         s.LoadOn,
	}
}

func main() {
	server := os.Getenv("INFLUX_SERVER")
	if server == "" {
		server = "http://localhost:9999"
	}
	client := influxdb2.NewClient(server, os.Getenv("INFLUX_TOKEN"))
	defer client.Close()
	// Non-blocking write client; failed writes surface on the errors
	// channel rather than stalling the websocket reader.
	writeApi := client.WriteApi("sunwatcher", "tracker.raw")
	defer writeApi.Close()
	errorsCh := writeApi.Errors()
	go func() {
		for err := range errorsCh {
			log.Printf("write error: %v", err)
		}
	}()
	for {
		if err := logData(writeApi); err != nil {
			log.Print(err)
		}
		time.Sleep(1 * time.Second)
	}
}

func logData(writeApi api.WriteApi) error {
	url := os.Getenv("TRACKER_ADDRESS")
	if url == "" {
		url = "ws://localhost:8602/api/ws"
	}
	defer writeApi.Flush()
	var dialer websocket.Dialer
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	for {
		var status Status
		if err := conn.ReadJSON(&status); err != nil {
			return err
		}
		now := time.Now()
		writeApi.WritePoint(influxdb2.NewPoint("tracker.status", nil, trackerFields(status), now))
		writeApi.WritePoint(influxdb2.NewPoint("charger.status", nil, chargerFields(status.Charger), now))
	}
}
