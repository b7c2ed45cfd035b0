package device

import "context"

// DeviceOps is the per-device control surface a driver provides.
// The registry serialises calls per driver; implementations only need to
// be safe for the registry's own concurrency.
type DeviceOps interface {
	// GetStatus reads the device's current status vector.
	GetStatus(ctx context.Context, dev *Device) ([]StatusPair, error)

	// SetStatus writes one or more status pairs to the device.
	SetStatus(ctx context.Context, dev *Device, pairs []StatusPair) error

	// SetAction performs a device action (key press, preset, channel switch).
	SetAction(ctx context.Context, dev *Device, actID uint16, param1 uint16, param2 uint32) error
}

// Driver is a device driver registered with the registry. Drivers own
// device discovery and transport; they report arrivals and departures
// back through the Core callbacks they are constructed with.
type Driver interface {
	DeviceOps

	// ID returns the driver's stable identifier.
	ID() uint32

	// Name returns a human-readable driver name for logs.
	Name() string

	// Probe asks the driver to (re)discover its devices. Discovered
	// devices arrive asynchronously via Core.DeviceOnline.
	Probe(ctx context.Context) error

	// AddDevice creates a device of the given type under this driver.
	// Drivers without manual provisioning return ErrNotSupported.
	AddDevice(ctx context.Context, devType uint32) error

	// RemoveDevice tells the driver to forget a device it owns.
	RemoveDevice(ctx context.Context, dev *Device) error
}

// Core is the registry surface drivers call back into. It is satisfied
// by *Registry; drivers take the interface so tests can observe
// callbacks directly.
type Core interface {
	// DeviceOnline reports a discovered or recovered device. The
	// registry refreshes a matching online record, revives a matching
	// offline one, or creates a new record.
	DeviceOnline(ctx context.Context, driverID uint32, mac MAC, devType uint32, status []StatusPair) (uint32, error)

	// DeviceOffline reports that a device stopped responding.
	DeviceOffline(ctx context.Context, devID uint32) error

	// ReportEvent delivers a device event (sensor trigger, key press)
	// into the automation and notification pipeline.
	ReportEvent(ctx context.Context, evt Event)

	// ReportStatus delivers an unsolicited status change.
	ReportStatus(ctx context.Context, devID uint32, pairs []StatusPair)
}

// Notifier receives registry notifications for fanout to clients, the
// message bus and telemetry. Implementations must not block.
type Notifier interface {
	// DeviceEvent is called for every hub or device event.
	DeviceEvent(evt Event)

	// StatusChanged is called after a device's cached status changes.
	StatusChanged(devID uint32, pairs []StatusPair)

	// DeviceArrived is called with a full device record when a device
	// comes online.
	DeviceArrived(dev *Device)
}

// Store persists the durable half of registry state. Runtime state
// (online flags, cached status, armed delays) is never stored.
type Store interface {
	SaveDevice(ctx context.Context, dev *Device) error
	DeleteDevice(ctx context.Context, devID uint32) error
	LoadDevices(ctx context.Context) ([]*Device, error)

	SaveBoxState(ctx context.Context, mode WorkMode, nextID uint32) error
	LoadBoxState(ctx context.Context) (WorkMode, uint32, error)
}
