package device

import "time"

// Capacity limits shared with the wire protocol.
const (
	// MaxStatusSlots is the maximum number of status pairs a device reports.
	MaxStatusSlots = 8

	// MaxTimers is the number of timer slots per device.
	MaxTimers = 8

	// MaxDelays is the number of delay slots per device.
	MaxDelays = 8

	// MaxLinkages is the number of linkage slots per device.
	MaxLinkages = 8

	// NameLen is the maximum byte length of names and locations.
	NameLen = 16
)

// Flag bits shared by timers, delays and linkages.
const (
	// FlagUseAction selects action execution over a single status write.
	FlagUseAction = 1 << 0

	// FlagActive marks the slot as in use.
	FlagActive = 1 << 1
)

// OneShotWeekdayBit marks a timer as date-based (fires once) rather than
// weekday-recurring.
const OneShotWeekdayBit = 1 << 7

// WorkMode is the hub's current operating mode. Timers, delays and
// linkages carry a mode mask and only apply when the current mode's bit
// is set.
type WorkMode uint8

// Hub operating modes.
const (
	ModeHome WorkMode = iota
	ModeAway
	ModeSleep
	ModeGuard
)

// Mask returns the bit for this mode within a mode mask.
func (m WorkMode) Mask() uint8 {
	return 1 << uint8(m)
}

// WorkModeAll matches every operating mode.
const WorkModeAll uint8 = 0xFF

// MAC is a device hardware address as reported by its driver.
type MAC [8]byte

// Info is the immutable identity of a device.
type Info struct {
	DriverID  uint32
	Class     uint16
	Interface uint16
	Type      uint32
	MAC       MAC
}

// Config is the user-editable portion of a device.
// Name and Location are limited to NameLen bytes.
type Config struct {
	Name     string
	Location string
}

// StatusPair is one (status id, value) entry of a device's status vector.
type StatusPair struct {
	ID    uint16
	Value uint16
}

// Channel is a named channel preset on a media device.
type Channel struct {
	Name string
	CID  uint32
}

// Timer is a clock-driven automation slot.
//
// A weekday timer (bit of Weekday set per day) fires every matching day.
// A date timer (OneShotWeekdayBit set in Weekday) fires once on
// Year/Month/Day and is deactivated afterwards. Year is offset from 1900
// and Month is zero-based, matching time.Time's Year()-1900 and Month()-1.
type Timer struct {
	WorkMode uint8
	Flag     uint8
	Hour     uint8
	Min      uint8
	Sec      uint8
	Weekday  uint8
	Year     uint16
	Month    uint8
	Day      uint8

	ActID     uint16
	ActParam1 uint16
	ActParam2 uint32

	// expired is set once the timer has fired today and cleared on day
	// rollover.
	expired bool
}

// Delay is an event-triggered automation slot that fires a fixed number
// of seconds after its trigger event is observed.
type Delay struct {
	WorkMode uint8
	Flag     uint8

	EvtID     uint16
	EvtParam1 uint16
	EvtParam2 uint32

	ActID     uint16
	ActParam1 uint16
	ActParam2 uint32

	DelaySec uint32

	started   bool
	startTime time.Time
}

// Linkage is an event-triggered automation slot that fires immediately,
// targeting an arbitrary device.
type Linkage struct {
	WorkMode uint8
	Flag     uint8

	EvtID     uint16
	EvtParam1 uint16
	EvtParam2 uint32

	ActDevID  uint32
	ActID     uint16
	ActParam1 uint16
	ActParam2 uint32
}

// Active reports whether the slot is in use.
func (t *Timer) Active() bool   { return t.Flag&FlagActive != 0 }
func (d *Delay) Active() bool   { return d.Flag&FlagActive != 0 }
func (l *Linkage) Active() bool { return l.Flag&FlagActive != 0 }

// Device is a registered device and all of its per-device automation
// state. All access goes through the Registry, which returns deep copies
// so callers never share mutable state with the registry's own records.
type Device struct {
	ID     uint32
	Info   Info
	Config Config

	Online bool

	// Status is the cached status vector, refreshed on reads and writes.
	Status []StatusPair

	Channels []Channel

	Timers   [MaxTimers]Timer
	Delays   [MaxDelays]Delay
	Linkages [MaxLinkages]Linkage

	// IRLink is the device id of the infrared remote controller serving
	// this device's location, or 0 when none is linked.
	IRLink uint32
}

// DeepCopy returns a copy of the device sharing no mutable state with
// the original.
func (d *Device) DeepCopy() *Device {
	cp := *d
	if d.Status != nil {
		cp.Status = make([]StatusPair, len(d.Status))
		copy(cp.Status, d.Status)
	}
	if d.Channels != nil {
		cp.Channels = make([]Channel, len(d.Channels))
		copy(cp.Channels, d.Channels)
	}
	return &cp
}

// Event ids carried in event notifications and matched by delay and
// linkage triggers.
const (
	EvtDeviceUpdated   uint16 = 1
	EvtStatusUpdated   uint16 = 2
	EvtSensorTriggered uint16 = 3
	EvtSensorRecovered uint16 = 4
	EvtIRKey           uint16 = 5
	EvtModeChanged     uint16 = 6
)

// Device-updated event parameters (Param1 of EvtDeviceUpdated).
const (
	DeviceAdded   uint16 = 0
	DeviceOnline  uint16 = 1
	DeviceOffline uint16 = 2
)

// Event is a notification originating from a device or the hub itself.
type Event struct {
	DevID  uint32
	ID     uint16
	Param1 uint16
	Param2 uint32
}

// Device types. TypeRemoteController devices are the link targets of
// location-based infrared pairing.
const (
	TypePlug             uint32 = 0x10
	TypeSensor           uint32 = 0x20
	TypeCurtain          uint32 = 0x30
	TypeTV               uint32 = 0x40
	TypeSTB              uint32 = 0x41
	TypeAirCondition     uint32 = 0x42
	TypeRemoteController uint32 = 0x50
)

// Device capability classes (bitmask).
const (
	ClassSwitch uint16 = 1 << 0
	ClassSensor uint16 = 1 << 1
	ClassMedia  uint16 = 1 << 2
	ClassRemote uint16 = 1 << 3
)

// IRDriverID identifies the infrared driver. Devices owned by it relay
// their actions through the remote controller linked to their location.
const IRDriverID uint32 = 3
