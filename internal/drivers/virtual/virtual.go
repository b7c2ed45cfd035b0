// Package virtual implements an in-process device driver. Virtual
// devices hold their state in memory and answer immediately, serving
// manual provisioning, demos and tests of the full hub pipeline.
package virtual

import (
	"context"
	"fmt"
	"sync"

	"github.com/qubit-star/hsb-core/internal/device"
)

// DriverID identifies the virtual driver.
const DriverID uint32 = 1

// Driver is the virtual device driver. Devices are created through
// AddDevice and live until RemoveDevice; Probe re-reports them all.
type Driver struct {
	core   device.Core
	logger device.Logger

	mu      sync.Mutex
	nextMAC uint64
	devices map[device.MAC]*virtualDevice
}

type virtualDevice struct {
	mac     device.MAC
	devType uint32
	status  []device.StatusPair
}

// New creates the virtual driver reporting into core.
func New(core device.Core, logger device.Logger) *Driver {
	return &Driver{
		core:    core,
		logger:  logger,
		nextMAC: 1,
		devices: make(map[device.MAC]*virtualDevice),
	}
}

// ID implements device.Driver.
func (d *Driver) ID() uint32 { return DriverID }

// Name implements device.Driver.
func (d *Driver) Name() string { return "virtual" }

// Probe reports every virtual device online.
func (d *Driver) Probe(ctx context.Context) error {
	d.mu.Lock()
	devices := make([]*virtualDevice, 0, len(d.devices))
	for _, vd := range d.devices {
		devices = append(devices, vd)
	}
	d.mu.Unlock()

	for _, vd := range devices {
		if _, err := d.core.DeviceOnline(ctx, DriverID, vd.mac, vd.devType, vd.status); err != nil {
			d.logger.Warn("reporting virtual device", "dev_type", vd.devType, "error", err)
		}
	}
	return nil
}

// AddDevice creates a virtual device of the given type and reports it
// online immediately.
func (d *Driver) AddDevice(ctx context.Context, devType uint32) error {
	d.mu.Lock()
	var mac device.MAC
	for i := 0; i < 8; i++ {
		mac[i] = byte(d.nextMAC >> (8 * (7 - i)))
	}
	d.nextMAC++

	vd := &virtualDevice{
		mac:     mac,
		devType: devType,
		status:  defaultStatus(devType),
	}
	d.devices[mac] = vd
	status := append([]device.StatusPair(nil), vd.status...)
	d.mu.Unlock()

	_, err := d.core.DeviceOnline(ctx, DriverID, mac, devType, status)
	return err
}

// RecoverDevice re-adopts a persisted virtual device after a restart,
// rebuilding its in-memory record from the stored identity. The MAC
// counter advances past recovered addresses so new devices never
// collide with them.
func (d *Driver) RecoverDevice(ctx context.Context, dev *device.Device) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.devices[dev.Info.MAC]; !ok {
		d.devices[dev.Info.MAC] = &virtualDevice{
			mac:     dev.Info.MAC,
			devType: dev.Info.Type,
			status:  defaultStatus(dev.Info.Type),
		}
	}

	var seq uint64
	for _, b := range dev.Info.MAC {
		seq = seq<<8 | uint64(b)
	}
	if seq >= d.nextMAC {
		d.nextMAC = seq + 1
	}
	return nil
}

// RemoveDevice forgets a virtual device.
func (d *Driver) RemoveDevice(ctx context.Context, dev *device.Device) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.devices, dev.Info.MAC)
	return nil
}

// GetStatus returns the device's in-memory status vector.
func (d *Driver) GetStatus(ctx context.Context, dev *device.Device) ([]device.StatusPair, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	vd, ok := d.devices[dev.Info.MAC]
	if !ok {
		return nil, fmt.Errorf("virtual device %d: %w", dev.ID, device.ErrNotFound)
	}
	return append([]device.StatusPair(nil), vd.status...), nil
}

// SetStatus writes status pairs into the in-memory vector.
func (d *Driver) SetStatus(ctx context.Context, dev *device.Device, pairs []device.StatusPair) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	vd, ok := d.devices[dev.Info.MAC]
	if !ok {
		return fmt.Errorf("virtual device %d: %w", dev.ID, device.ErrNotFound)
	}

	for _, p := range pairs {
		updated := false
		for i := range vd.status {
			if vd.status[i].ID == p.ID {
				vd.status[i].Value = p.Value
				updated = true
				break
			}
		}
		if !updated {
			vd.status = append(vd.status, p)
		}
	}
	return nil
}

// SetAction accepts any action; virtual devices have no transport to
// fail on.
func (d *Driver) SetAction(ctx context.Context, dev *device.Device, actID uint16, param1 uint16, param2 uint32) error {
	d.mu.Lock()
	_, ok := d.devices[dev.Info.MAC]
	d.mu.Unlock()

	if !ok {
		return fmt.Errorf("virtual device %d: %w", dev.ID, device.ErrNotFound)
	}
	d.logger.Debug("virtual action", "dev_id", dev.ID, "act_id", actID, "param1", param1, "param2", param2)
	return nil
}

// TriggerSensor simulates a sensor firing, feeding the event pipeline.
func (d *Driver) TriggerSensor(ctx context.Context, dev *device.Device, recovered bool) {
	evtID := device.EvtSensorTriggered
	if recovered {
		evtID = device.EvtSensorRecovered
	}
	d.core.ReportEvent(ctx, device.Event{DevID: dev.ID, ID: evtID, Param1: 1})
}

func defaultStatus(devType uint32) []device.StatusPair {
	switch devType {
	case device.TypeSensor:
		return []device.StatusPair{{ID: 0, Value: 0}}
	default:
		return []device.StatusPair{{ID: 0, Value: 0}}
	}
}
