// Package charger monitors the installation's Modbus RTU charge
// controller: what the panel and battery are doing with the power the
// tracker is pointing at.
package charger

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/sunwatcher/tracker_interface/internal/modbus"
)

type Status struct {
	// Panel output.
	PVVoltage float64
	PVCurrent float64
	// Battery side.
	BatteryVoltage float64
	BatteryCurrent float64

	Charging bool
	LoadOn   bool
}

type StatusCallback func(status Status)

type Charger struct {
	statusCallback StatusCallback
	mu             sync.Mutex
	client         *modbus.Client
	registers      [4]uint16
	coils          []bool
	inputs         []bool
}

func Connect(ctx context.Context, port string, baud int, slaveID byte, statusCallback StatusCallback) (*Charger, error) {
	c := &Charger{
		client: &modbus.Client{
			Port:     port,
			BaudRate: baud,
			SlaveId:  slaveID,
		},
		statusCallback: statusCallback,
	}
	c.client.Poll = c.pollOnce
	return c, c.client.Connect(ctx)
}

func (c *Charger) pollOnce() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Input registers 0-3: PV voltage, PV current, battery voltage,
	// battery current, each in hundredths.
	results, err := c.client.ReadInputRegisters(0, 4)
	if err != nil {
		return err
	}
	for i := range c.registers {
		c.registers[i] = binary.BigEndian.Uint16(results[2*i : 2*i+2])
	}

	// Coil 0 is the load switch, discrete input 0 the charging flag.
	coils, err := c.client.ReadCoils(0, 1)
	if err != nil {
		return err
	}
	inputs, err := c.client.ReadDiscreteInputs(0, 1)
	if err != nil {
		return err
	}
	c.coils = modbus.BytesToBits(coils)
	c.inputs = modbus.BytesToBits(inputs)
	c.notifyStatus()
	return nil
}

func (c *Charger) notifyStatus() {
	status := c.parseRegisters()
	c.statusCallback(status)
}

func (c *Charger) parseRegisters() Status {
	status := Status{
		PVVoltage:      float64(c.registers[0]) / 100,
		PVCurrent:      float64(c.registers[1]) / 100,
		BatteryVoltage: float64(c.registers[2]) / 100,
		BatteryCurrent: float64(int16(c.registers[3])) / 100,
	}
	if len(c.coils) > 0 {
		status.LoadOn = c.coils[0]
	}
	if len(c.inputs) > 0 {
		status.Charging = c.inputs[0]
	}
	return status
}

// SetLoadEnabled switches the controller's load output.
func (c *Charger) SetLoadEnabled(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client.WriteCoil(0, enabled)
}
