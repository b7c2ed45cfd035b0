// Package ir implements the infrared driver. Infrared devices (TVs,
// set-top boxes, air conditioners) have no uplink of their own; the
// driver relays their actions through the remote controller paired to
// the device's location, as derived by the registry.
package ir

import (
	"context"
	"fmt"

	"github.com/qubit-star/hsb-core/internal/device"
)

// Linker resolves the remote controller serving a device. Satisfied by
// the device registry.
type Linker interface {
	RemoteFor(devID uint32) uint32
}

// Transmitter sends an infrared code burst through a remote controller.
type Transmitter interface {
	Transmit(ctx context.Context, remoteID uint32, actID uint16, param1 uint16, param2 uint32) error
}

// Driver is the infrared device driver.
type Driver struct {
	core   device.Core
	linker Linker
	tx     Transmitter
	logger device.Logger
}

// New creates the infrared driver. The transmitter carries the actual
// IR bursts; the linker resolves which remote controller to use.
func New(core device.Core, linker Linker, tx Transmitter, logger device.Logger) *Driver {
	return &Driver{core: core, linker: linker, tx: tx, logger: logger}
}

// ID implements device.Driver.
func (d *Driver) ID() uint32 { return device.IRDriverID }

// Name implements device.Driver.
func (d *Driver) Name() string { return "ir" }

// Probe is a no-op; infrared devices are provisioned manually.
func (d *Driver) Probe(ctx context.Context) error { return nil }

// AddDevice provisions an infrared device. The hardware address is
// synthesised from the type because one-way IR targets have none.
func (d *Driver) AddDevice(ctx context.Context, devType uint32) error {
	mac := device.MAC{'i', 'r', 0, 0, byte(devType >> 24), byte(devType >> 16), byte(devType >> 8), byte(devType)}
	_, err := d.core.DeviceOnline(ctx, device.IRDriverID, mac, devType, nil)
	return err
}

// RecoverDevice re-adopts a persisted infrared device. One-way targets
// cannot answer a probe, so they are presumed present.
func (d *Driver) RecoverDevice(ctx context.Context, dev *device.Device) error { return nil }

// RemoveDevice forgets an infrared device; there is no hardware to
// release.
func (d *Driver) RemoveDevice(ctx context.Context, dev *device.Device) error { return nil }

// GetStatus is unsupported: infrared is a one-way medium.
func (d *Driver) GetStatus(ctx context.Context, dev *device.Device) ([]device.StatusPair, error) {
	return nil, fmt.Errorf("ir device %d status: %w", dev.ID, device.ErrNotSupported)
}

// SetStatus maps a single on/off style status write onto an action
// burst, so automation slots in status mode still work on IR devices.
func (d *Driver) SetStatus(ctx context.Context, dev *device.Device, pairs []device.StatusPair) error {
	if len(pairs) != 1 {
		return fmt.Errorf("ir device %d: multi-pair status: %w", dev.ID, device.ErrNotSupported)
	}
	return d.SetAction(ctx, dev, pairs[0].ID, pairs[0].Value, 0)
}

// SetAction relays the action through the remote controller linked to
// the device's location. Remote controllers themselves transmit
// directly.
func (d *Driver) SetAction(ctx context.Context, dev *device.Device, actID uint16, param1 uint16, param2 uint32) error {
	remoteID := dev.ID
	if dev.Info.Type != device.TypeRemoteController {
		remoteID = d.linker.RemoteFor(dev.ID)
		if remoteID == 0 {
			return fmt.Errorf("ir device %d has no linked remote: %w", dev.ID, device.ErrNotSupported)
		}
	}

	if err := d.tx.Transmit(ctx, remoteID, actID, param1, param2); err != nil {
		return fmt.Errorf("ir transmit via remote %d: %v: %w", remoteID, err, device.ErrIOFail)
	}
	d.logger.Debug("ir action relayed", "dev_id", dev.ID, "remote_id", remoteID, "act_id", actID)
	return nil
}
