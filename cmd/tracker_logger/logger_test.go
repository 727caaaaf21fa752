package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sunwatcher/tracker_interface/charger"
	"github.com/sunwatcher/tracker_interface/stlink"
)

func TestTrackerFields(t *testing.T) {
	status := Status{
		Tracker: stlink.Status{
			SensorTL: 2500, SensorTR: 2600, SensorBL: 2400, SensorBR: 2550,
			PanPos: 92, TiltPos: 47,
			CellMV: 4100,
			Mode:   stlink.Remote,
		},
		Following: true,
		SunAz:     183.5,
		SunAlt:    42.1,
	}
	want := map[string]interface{}{
		"sensor_tl_mv": 2500.0,
		"sensor_tr_mv": 2600.0,
		"sensor_bl_mv": 2400.0,
		"sensor_br_mv": 2550.0,
		"pan_deg":      92.0,
		"tilt_deg":     47.0,
		"cell_mv":      4100.0,
		"mode":         2,
		"following":    true,
		"sun_az":       183.5,
		"sun_alt":      42.1,
	}
	if diff := cmp.Diff(want, trackerFields(status)); diff != "" {
		t.Errorf("unexpected fields (-want +got):\n%s", diff)
	}
}

func TestChargerFields(t *testing.T) {
	status := charger.Status{
		PVVoltage:      18.42,
		PVCurrent:      1.2,
		BatteryVoltage: 13.8,
		BatteryCurrent: -0.4,
		Charging:       true,
	}
	want := map[string]interface{}{
		"pv_voltage":      18.42,
		"pv_current":      1.2,
		"battery_voltage": 13.8,
		"battery_current": -0.4,
		"charging":        true,
		"load_on":         false,
	}
	if diff := cmp.Diff(want, chargerFields(status)); diff != "" {
		t.Errorf("unexpected fields (-want +got):\n%s", diff)
	}
}
