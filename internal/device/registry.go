package device

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ActionSink receives automation actions for asynchronous execution.
// Timers, delays, linkages and scenes never call drivers inline; they
// submit through the sink so a slow device cannot stall the hub.
type ActionSink interface {
	SubmitAction(devID uint32, actID uint16, param1 uint16, param2 uint32)
	SubmitStatus(devID uint32, pairs []StatusPair)
}

// Registry is the authoritative record of devices, drivers and
// per-device automation state.
//
// Devices live in one of two queues: online (reachable, ordered by
// arrival) or offline (persisted records waiting for their hardware to
// reappear). Device ids are monotonic and never reused; id 0 is
// reserved for addressing the hub itself.
//
// All public methods are thread-safe. Methods returning devices return
// deep copies; callers never share mutable state with the registry.
type Registry struct {
	mu      sync.RWMutex
	online  map[uint32]*Device
	order   []uint32
	offline []*Device
	drivers map[uint32]Driver

	nextID   uint32
	workMode WorkMode

	store     Store
	notifiers []Notifier
	actions   ActionSink
	logger    Logger

	// timer checker state, see tick.go
	prevSecToday   int
	fireWindow     int
	rolloverWindow int
}

// NewRegistry creates a device registry. The store may be nil, in which
// case nothing is persisted.
func NewRegistry(store Store) *Registry {
	return &Registry{
		online:         make(map[uint32]*Device),
		drivers:        make(map[uint32]Driver),
		nextID:         1,
		store:          store,
		logger:         noopLogger{},
		prevSecToday:   -1,
		fireWindow:     5,
		rolloverWindow: 10,
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetActionSink sets the sink automation actions are submitted to.
func (r *Registry) SetActionSink(s ActionSink) {
	r.actions = s
}

// AddNotifier registers a notification receiver. Notifiers are called
// outside the registry lock and must not block.
func (r *Registry) AddNotifier(n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifiers = append(r.notifiers, n)
}

// SetTimerWindows overrides the timer fire window and the midnight
// rollover detection window (both in seconds).
func (r *Registry) SetTimerWindows(fire, rollover int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fire > 0 {
		r.fireWindow = fire
	}
	if rollover > 0 {
		r.rolloverWindow = rollover
	}
}

// LoadFromStore restores persisted devices into the offline queue and
// the box state. Called once at startup, before drivers probe; drivers
// move records back online as their hardware reappears.
func (r *Registry) LoadFromStore(ctx context.Context) error {
	if r.store == nil {
		return nil
	}

	devices, err := r.store.LoadDevices(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}
	mode, nextID, err := r.store.LoadBoxState(ctx)
	if err != nil {
		return fmt.Errorf("loading box state: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.offline = r.offline[:0]
	for _, d := range devices {
		d.Online = false
		r.offline = append(r.offline, d)
		if d.ID >= nextID {
			nextID = d.ID + 1
		}
	}
	r.workMode = mode
	if nextID > r.nextID {
		r.nextID = nextID
	}

	r.logger.Info("registry restored", "devices", len(devices), "work_mode", mode, "next_id", r.nextID)
	return nil
}

// RegisterDriver registers a device driver.
// Returns ErrAlreadyExists if a driver with the same id is registered.
func (r *Registry) RegisterDriver(drv Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.drivers[drv.ID()]; ok {
		return fmt.Errorf("driver %d (%s): %w", drv.ID(), drv.Name(), ErrAlreadyExists)
	}
	r.drivers[drv.ID()] = drv
	r.logger.Info("driver registered", "driver_id", drv.ID(), "name", drv.Name())
	return nil
}

// Driver returns the registered driver with the given id.
func (r *Registry) Driver(id uint32) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	drv, ok := r.drivers[id]
	if !ok {
		return nil, fmt.Errorf("driver %d: %w", id, ErrNotFound)
	}
	return drv, nil
}

// ProbeAll asks every registered driver to rediscover its devices.
func (r *Registry) ProbeAll(ctx context.Context) {
	r.mu.RLock()
	drivers := make([]Driver, 0, len(r.drivers))
	for _, d := range r.drivers {
		drivers = append(drivers, d)
	}
	r.mu.RUnlock()

	for _, drv := range drivers {
		if err := drv.Probe(ctx); err != nil {
			r.logger.Warn("driver probe failed", "driver_id", drv.ID(), "error", err)
		}
	}
}

// DeviceOnline registers a reachable device reported by a driver.
//
// An online record with the same driver id and hardware address is
// refreshed in place; an offline one is revived with its configuration
// and automation slots intact; otherwise a new record is created with a
// type-derived default name. Returns the device id.
func (r *Registry) DeviceOnline(ctx context.Context, driverID uint32, mac MAC, devType uint32, status []StatusPair) (uint32, error) {
	r.mu.Lock()

	if _, ok := r.drivers[driverID]; !ok {
		r.mu.Unlock()
		return 0, fmt.Errorf("driver %d: %w", driverID, ErrNotFound)
	}

	// A driver may re-report hardware that never went offline, e.g. on
	// a client-requested probe. The existing record is refreshed; one
	// physical device never holds two ids.
	for _, d := range r.online {
		if d.Info.DriverID == driverID && d.Info.MAC == mac {
			d.Status = clonePairs(status)
			id := d.ID
			r.mu.Unlock()

			r.logger.Debug("device re-reported", "dev_id", id, "driver_id", driverID)
			r.notifyStatus(id, clonePairs(status))
			return id, nil
		}
	}

	var dev *Device
	revived := false
	for i, d := range r.offline {
		if d.Info.DriverID == driverID && d.Info.MAC == mac {
			dev = d
			r.offline = append(r.offline[:i], r.offline[i+1:]...)
			revived = true
			break
		}
	}

	if dev == nil {
		dev = &Device{
			ID: r.nextID,
			Info: Info{
				DriverID: driverID,
				Type:     devType,
				Class:    classForType(devType),
				MAC:      mac,
			},
			Config: defaultConfigForType(devType),
		}
		r.nextID++
	}

	dev.Online = true
	dev.Status = clonePairs(status)
	r.online[dev.ID] = dev
	r.order = append(r.order, dev.ID)

	r.relinkAllLocked()
	snapshot := dev.DeepCopy()
	r.mu.Unlock()

	r.persistDevice(ctx, snapshot)
	r.persistBoxState(ctx)

	param := DeviceAdded
	if revived {
		param = DeviceOnline
	}
	r.logger.Info("device online", "dev_id", dev.ID, "driver_id", driverID, "dev_type", devType, "revived", revived)

	r.notifyArrived(snapshot)
	r.notifyEvent(Event{DevID: snapshot.ID, ID: EvtDeviceUpdated, Param1: param})
	return snapshot.ID, nil
}

// DeviceOffline moves a device to the offline queue.
// Its configuration and automation slots are kept for revival.
func (r *Registry) DeviceOffline(ctx context.Context, devID uint32) error {
	r.mu.Lock()
	dev, ok := r.online[devID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("device %d: %w", devID, ErrNotFound)
	}

	delete(r.online, devID)
	r.removeFromOrder(devID)
	dev.Online = false
	dev.Status = nil
	r.offline = append(r.offline, dev)
	r.relinkAllLocked()
	r.mu.Unlock()

	r.logger.Info("device offline", "dev_id", devID)
	r.notifyEvent(Event{DevID: devID, ID: EvtDeviceUpdated, Param1: DeviceOffline})
	return nil
}

// RemoveDevice permanently deletes a device from either queue and asks
// its driver to forget it.
func (r *Registry) RemoveDevice(ctx context.Context, devID uint32) error {
	r.mu.Lock()

	dev, ok := r.online[devID]
	if ok {
		delete(r.online, devID)
		r.removeFromOrder(devID)
	} else {
		for i, d := range r.offline {
			if d.ID == devID {
				dev = d
				r.offline = append(r.offline[:i], r.offline[i+1:]...)
				break
			}
		}
	}
	if dev == nil {
		r.mu.Unlock()
		return fmt.Errorf("device %d: %w", devID, ErrNotFound)
	}

	drv := r.drivers[dev.Info.DriverID]
	r.relinkAllLocked()
	r.mu.Unlock()

	if drv != nil {
		if err := drv.RemoveDevice(ctx, dev.DeepCopy()); err != nil {
			r.logger.Warn("driver remove failed", "dev_id", devID, "error", err)
		}
	}
	if r.store != nil {
		if err := r.store.DeleteDevice(ctx, devID); err != nil {
			r.logger.Error("deleting device record", "dev_id", devID, "error", err)
		}
	}

	r.logger.Info("device removed", "dev_id", devID)
	r.notifyEvent(Event{DevID: devID, ID: EvtDeviceUpdated, Param1: DeviceOffline})
	return nil
}

// RecoverDevice revives an offline device by id, without a fresh driver
// report. Used when a driver confirms a known device answered again.
func (r *Registry) RecoverDevice(ctx context.Context, devID uint32) error {
	r.mu.Lock()

	var dev *Device
	for i, d := range r.offline {
		if d.ID == devID {
			dev = d
			r.offline = append(r.offline[:i], r.offline[i+1:]...)
			break
		}
	}
	if dev == nil {
		r.mu.Unlock()
		return fmt.Errorf("device %d: %w", devID, ErrNotFound)
	}

	dev.Online = true
	r.online[dev.ID] = dev
	r.order = append(r.order, dev.ID)
	r.relinkAllLocked()
	snapshot := dev.DeepCopy()
	r.mu.Unlock()

	r.logger.Info("device recovered", "dev_id", devID)
	r.notifyArrived(snapshot)
	r.notifyEvent(Event{DevID: devID, ID: EvtDeviceUpdated, Param1: DeviceOnline})
	return nil
}

// Recoverer is implemented by drivers that can re-adopt a persisted
// device without a discovery round-trip (one-way media, in-process
// devices). Drivers that discover on Probe do not implement it.
type Recoverer interface {
	RecoverDevice(ctx context.Context, dev *Device) error
}

// RecoverOffline offers every offline device back to its driver at
// startup. Devices whose driver re-adopts them come online with their
// persisted config and slots; the rest stay offline until the driver
// reports them through DeviceOnline.
func (r *Registry) RecoverOffline(ctx context.Context) {
	r.mu.RLock()
	candidates := make([]*Device, 0, len(r.offline))
	for _, dev := range r.offline {
		candidates = append(candidates, dev.DeepCopy())
	}
	r.mu.RUnlock()

	for _, dev := range candidates {
		r.mu.RLock()
		drv := r.drivers[dev.Info.DriverID]
		r.mu.RUnlock()

		rec, ok := drv.(Recoverer)
		if !ok {
			continue
		}
		if err := rec.RecoverDevice(ctx, dev); err != nil {
			r.logger.Warn("driver declined recovery", "dev_id", dev.ID, "error", err)
			continue
		}
		if err := r.RecoverDevice(ctx, dev.ID); err != nil {
			r.logger.Warn("recovering device", "dev_id", dev.ID, "error", err)
		}
	}
}

// Devices returns the ids of all online devices in arrival order.
func (r *Registry) Devices() []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uint32, len(r.order))
	copy(ids, r.order)
	return ids
}

// GetDevice returns a deep copy of an online device.
func (r *Registry) GetDevice(devID uint32) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, ok := r.online[devID]
	if !ok {
		return nil, fmt.Errorf("device %d: %w", devID, ErrNotFound)
	}
	return dev.DeepCopy(), nil
}

// Snapshot returns deep copies of all online devices in arrival order.
// Used to replay the online world to a newly connected client.
func (r *Registry) Snapshot() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]*Device, 0, len(r.order))
	for _, id := range r.order {
		if dev, ok := r.online[id]; ok {
			devices = append(devices, dev.DeepCopy())
		}
	}
	return devices
}

// GetInfo returns the immutable identity of an online device.
func (r *Registry) GetInfo(devID uint32) (Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, ok := r.online[devID]
	if !ok {
		return Info{}, fmt.Errorf("device %d: %w", devID, ErrNotFound)
	}
	return dev.Info, nil
}

// GetConfig returns a device's name and location.
func (r *Registry) GetConfig(devID uint32) (Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, ok := r.online[devID]
	if !ok {
		return Config{}, fmt.Errorf("device %d: %w", devID, ErrNotFound)
	}
	return dev.Config, nil
}

// SetConfig updates a device's name and location. Values longer than
// NameLen bytes are truncated. Location changes recompute infrared
// links.
func (r *Registry) SetConfig(ctx context.Context, devID uint32, cfg Config) error {
	cfg.Name = truncateName(cfg.Name)
	cfg.Location = truncateName(cfg.Location)

	r.mu.Lock()
	dev, ok := r.online[devID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("device %d: %w", devID, ErrNotFound)
	}

	dev.Config = cfg
	r.relinkAllLocked()
	snapshot := dev.DeepCopy()
	r.mu.Unlock()

	r.persistDevice(ctx, snapshot)
	r.logger.Debug("device config updated", "dev_id", devID, "name", cfg.Name, "location", cfg.Location)
	return nil
}

// WorkMode returns the hub's current operating mode.
func (r *Registry) WorkMode() WorkMode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.workMode
}

// SetWorkMode switches the hub's operating mode and notifies clients.
func (r *Registry) SetWorkMode(ctx context.Context, mode WorkMode) error {
	if mode > ModeGuard {
		return fmt.Errorf("work mode %d: %w", mode, ErrBadParam)
	}

	r.mu.Lock()
	changed := r.workMode != mode
	r.workMode = mode
	r.mu.Unlock()

	if !changed {
		return nil
	}

	r.persistBoxState(ctx)
	r.logger.Info("work mode changed", "mode", mode)
	r.notifyEvent(Event{ID: EvtModeChanged, Param1: uint16(mode)})
	return nil
}

// --- notification and persistence helpers ---

func (r *Registry) notifyEvent(evt Event) {
	r.mu.RLock()
	notifiers := r.notifiers
	r.mu.RUnlock()

	for _, n := range notifiers {
		n.DeviceEvent(evt)
	}
	r.triggerAutomation(evt)
}

func (r *Registry) notifyStatus(devID uint32, pairs []StatusPair) {
	r.mu.RLock()
	notifiers := r.notifiers
	r.mu.RUnlock()

	for _, n := range notifiers {
		n.StatusChanged(devID, clonePairs(pairs))
	}
}

func (r *Registry) notifyArrived(dev *Device) {
	r.mu.RLock()
	notifiers := r.notifiers
	r.mu.RUnlock()

	for _, n := range notifiers {
		n.DeviceArrived(dev.DeepCopy())
	}
}

func (r *Registry) persistDevice(ctx context.Context, dev *Device) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveDevice(ctx, dev); err != nil {
		r.logger.Error("persisting device", "dev_id", dev.ID, "error", err)
	}
}

func (r *Registry) persistBoxState(ctx context.Context) {
	if r.store == nil {
		return
	}
	r.mu.RLock()
	mode, nextID := r.workMode, r.nextID
	r.mu.RUnlock()

	if err := r.store.SaveBoxState(ctx, mode, nextID); err != nil {
		r.logger.Error("persisting box state", "error", err)
	}
}

func (r *Registry) removeFromOrder(devID uint32) {
	for i, id := range r.order {
		if id == devID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

func clonePairs(pairs []StatusPair) []StatusPair {
	if pairs == nil {
		return nil
	}
	cp := make([]StatusPair, len(pairs))
	copy(cp, pairs)
	return cp
}

func truncateName(s string) string {
	if len(s) > NameLen {
		return s[:NameLen]
	}
	return s
}

// defaultConfigForType names a freshly discovered device by its type.
func defaultConfigForType(devType uint32) Config {
	switch devType {
	case TypePlug:
		return Config{Name: "plug"}
	case TypeSensor:
		return Config{Name: "sensor"}
	case TypeCurtain:
		return Config{Name: "curtain"}
	case TypeTV:
		return Config{Name: "tv"}
	case TypeSTB:
		return Config{Name: "stb"}
	case TypeAirCondition:
		return Config{Name: "aircondition"}
	case TypeRemoteController:
		return Config{Name: "remotectl"}
	default:
		return Config{Name: "device"}
	}
}

// classForType derives the capability class for a device type.
func classForType(devType uint32) uint16 {
	switch devType {
	case TypePlug, TypeCurtain:
		return ClassSwitch
	case TypeSensor:
		return ClassSensor
	case TypeTV, TypeSTB:
		return ClassMedia
	case TypeAirCondition:
		return ClassMedia | ClassSwitch
	case TypeRemoteController:
		return ClassRemote
	default:
		return 0
	}
}
