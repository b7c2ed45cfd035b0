package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/qubit-star/hsb-core/internal/device"
	"github.com/qubit-star/hsb-core/internal/scene"
)

// Frame layout constants. Every frame starts with a 4-byte header: the
// command code and the total frame length, both little-endian.
const (
	HeaderLen = 4

	// MaxFrameLen bounds incoming frames. The largest legal frame is a
	// full scene definition.
	MaxFrameLen = 1024
)

// Scene body block magics.
const (
	magicAction = 0xFF
	magicCond   = 0xFE
	magicAct    = 0xFD
)

// Scene body block sizes.
const (
	actionHeadLen = 4
	condLen       = 8
	actLen        = 12
)

// ReadFrame reads one complete frame, returning the command code and
// the full frame bytes (header included, so field offsets match the
// wire layout).
func ReadFrame(r io.Reader) (uint16, []byte, error) {
	head := make([]byte, HeaderLen)
	if _, err := io.ReadFull(r, head); err != nil {
		return 0, nil, err
	}

	cmd := binary.LittleEndian.Uint16(head[0:2])
	total := int(binary.LittleEndian.Uint16(head[2:4]))
	if total < HeaderLen || total > MaxFrameLen {
		return 0, nil, fmt.Errorf("frame length %d: %w", total, ErrInvalidMessage)
	}

	frame := make([]byte, total)
	copy(frame, head)
	if _, err := io.ReadFull(r, frame[HeaderLen:]); err != nil {
		return 0, nil, err
	}
	return cmd, frame, nil
}

// newFrame allocates a zeroed frame with its header filled in.
func newFrame(cmd uint16, total int) []byte {
	frame := make([]byte, total)
	binary.LittleEndian.PutUint16(frame[0:2], cmd)
	binary.LittleEndian.PutUint16(frame[2:4], uint16(total))
	return frame
}

func u16(b []byte, off int) uint16  { return binary.LittleEndian.Uint16(b[off : off+2]) }
func u32(b []byte, off int) uint32  { return binary.LittleEndian.Uint32(b[off : off+4]) }
func putU16(b []byte, off int, v uint16) { binary.LittleEndian.PutUint16(b[off:off+2], v) }
func putU32(b []byte, off int, v uint32) { binary.LittleEndian.PutUint32(b[off:off+4], v) }

// putName writes a zero-padded fixed-width name field.
func putName(b []byte, off int, s string) {
	field := b[off : off+device.NameLen]
	for i := range field {
		field[i] = 0
	}
	copy(field, s)
}

// getName reads a zero-padded fixed-width name field.
func getName(b []byte, off int) string {
	field := b[off : off+device.NameLen]
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}

func checkLen(frame []byte, want int) error {
	if len(frame) != want {
		return fmt.Errorf("frame length %d, want %d: %w", len(frame), want, ErrInvalidMessage)
	}
	return nil
}

// --- results ---

// EncodeResult builds a result frame answering the given command.
func EncodeResult(devID uint32, cmd uint16, code uint16) []byte {
	frame := newFrame(CmdResult, 12)
	putU32(frame, 4, devID)
	putU16(frame, 8, cmd)
	putU16(frame, 10, code)
	return frame
}

// DecodeResult parses a result frame.
func DecodeResult(frame []byte) (devID uint32, cmd uint16, code uint16, err error) {
	if err := checkLen(frame, 12); err != nil {
		return 0, 0, 0, err
	}
	return u32(frame, 4), u16(frame, 8), u16(frame, 10), nil
}

// --- device enumeration ---

// EncodeGetDevicesResp lists online device ids.
func EncodeGetDevicesResp(ids []uint32) []byte {
	frame := newFrame(CmdGetDevicesResp, 4+4*len(ids))
	for i, id := range ids {
		putU32(frame, 4+4*i, id)
	}
	return frame
}

// DecodeGetDevicesResp parses a device id list.
func DecodeGetDevicesResp(frame []byte) ([]uint32, error) {
	if len(frame) < 4 || (len(frame)-4)%4 != 0 {
		return nil, fmt.Errorf("device list length %d: %w", len(frame), ErrInvalidMessage)
	}
	n := (len(frame) - 4) / 4
	ids := make([]uint32, n)
	for i := range ids {
		ids[i] = u32(frame, 4+4*i)
	}
	return ids, nil
}

// DecodeDevID parses frames whose body is a single device id
// (get info, get config, get status, get channel, delete device).
func DecodeDevID(frame []byte) (uint32, error) {
	if err := checkLen(frame, 8); err != nil {
		return 0, err
	}
	return u32(frame, 4), nil
}

// EncodeGetInfoResp carries a device's identity.
func EncodeGetInfoResp(devID uint32, info device.Info) []byte {
	frame := newFrame(CmdGetInfoResp, 26)
	putU32(frame, 4, devID)
	putU32(frame, 8, info.DriverID)
	putU16(frame, 12, info.Class)
	putU16(frame, 14, info.Interface)
	putU32(frame, 16, info.Type)
	copy(frame[18:26], info.MAC[:])
	return frame
}

// DecodeGetInfoResp parses a device identity frame.
func DecodeGetInfoResp(frame []byte) (uint32, device.Info, error) {
	if err := checkLen(frame, 26); err != nil {
		return 0, device.Info{}, err
	}
	info := device.Info{
		DriverID:  u32(frame, 8),
		Class:     u16(frame, 12),
		Interface: u16(frame, 14),
		Type:      u32(frame, 16),
	}
	copy(info.MAC[:], frame[18:26])
	return u32(frame, 4), info, nil
}

// --- device config ---

// EncodeConfig carries a device's name and location. The same shape
// serves get-config responses and set-config requests.
func EncodeConfig(cmd uint16, devID uint32, cfg device.Config) []byte {
	frame := newFrame(cmd, 40)
	putU32(frame, 4, devID)
	putName(frame, 8, cfg.Name)
	putName(frame, 24, cfg.Location)
	return frame
}

// DecodeConfig parses a config frame.
func DecodeConfig(frame []byte) (uint32, device.Config, error) {
	if err := checkLen(frame, 40); err != nil {
		return 0, device.Config{}, err
	}
	cfg := device.Config{
		Name:     getName(frame, 8),
		Location: getName(frame, 24),
	}
	return u32(frame, 4), cfg, nil
}

// --- status ---

// EncodeStatus carries status pairs. The same shape serves set-status
// requests, get-status responses and unsolicited status updates.
func EncodeStatus(cmd uint16, devID uint32, pairs []device.StatusPair) []byte {
	frame := newFrame(cmd, 8+4*len(pairs))
	putU32(frame, 4, devID)
	for i, p := range pairs {
		putU16(frame, 8+4*i, p.ID)
		putU16(frame, 10+4*i, p.Value)
	}
	return frame
}

// DecodeStatus parses a status frame.
func DecodeStatus(frame []byte) (uint32, []device.StatusPair, error) {
	if len(frame) < 8 || (len(frame)-8)%4 != 0 {
		return 0, nil, fmt.Errorf("status length %d: %w", len(frame), ErrInvalidMessage)
	}
	n := (len(frame) - 8) / 4
	if n > device.MaxStatusSlots {
		return 0, nil, fmt.Errorf("%d status pairs: %w", n, ErrInvalidMessage)
	}
	pairs := make([]device.StatusPair, n)
	for i := range pairs {
		pairs[i] = device.StatusPair{
			ID:    u16(frame, 8+4*i),
			Value: u16(frame, 10+4*i),
		}
	}
	return u32(frame, 4), pairs, nil
}

// --- actions and events ---

// EncodeEvent carries a device event. Do-action requests share the
// shape under their own command code.
func EncodeEvent(cmd uint16, devID uint32, id uint16, param1 uint16, param2 uint32) []byte {
	frame := newFrame(cmd, 16)
	putU32(frame, 4, devID)
	putU16(frame, 8, id)
	putU16(frame, 10, param1)
	putU32(frame, 12, param2)
	return frame
}

// DecodeEvent parses an event or do-action frame.
func DecodeEvent(frame []byte) (devID uint32, id uint16, param1 uint16, param2 uint32, err error) {
	if err := checkLen(frame, 16); err != nil {
		return 0, 0, 0, 0, err
	}
	return u32(frame, 4), u16(frame, 8), u16(frame, 10), u32(frame, 12), nil
}

// --- automation slots ---

// DecodeSlotReq parses requests addressing one automation slot
// (get/del timer, delay, linkage).
func DecodeSlotReq(frame []byte) (devID uint32, slot uint16, err error) {
	if err := checkLen(frame, 12); err != nil {
		return 0, 0, err
	}
	return u32(frame, 4), u16(frame, 8), nil
}

// EncodeSlotReq builds a slot-addressed request.
func EncodeSlotReq(cmd uint16, devID uint32, slot uint16) []byte {
	frame := newFrame(cmd, 12)
	putU32(frame, 4, devID)
	putU16(frame, 8, slot)
	return frame
}

// EncodeTimer carries a timer slot. The calendar fields travel in
// human form: the year as-is and the month starting at one; zero means
// a weekday timer with no date.
func EncodeTimer(cmd uint16, devID uint32, slot uint16, t device.Timer) []byte {
	frame := newFrame(cmd, 28)
	putU32(frame, 4, devID)
	putU16(frame, 8, slot)
	frame[10] = t.WorkMode
	frame[11] = t.Flag
	frame[12] = t.Hour
	frame[13] = t.Min
	frame[14] = t.Sec
	frame[15] = t.Weekday
	if t.Weekday&device.OneShotWeekdayBit != 0 {
		putU16(frame, 16, t.Year+1900)
		frame[18] = t.Month + 1
		frame[19] = t.Day
	}
	putU16(frame, 20, t.ActID)
	putU16(frame, 22, t.ActParam1)
	putU32(frame, 24, t.ActParam2)
	return frame
}

// DecodeTimer parses a timer slot frame.
func DecodeTimer(frame []byte) (devID uint32, slot uint16, t device.Timer, err error) {
	if err := checkLen(frame, 28); err != nil {
		return 0, 0, device.Timer{}, err
	}

	t = device.Timer{
		WorkMode:  frame[10],
		Flag:      frame[11],
		Hour:      frame[12],
		Min:       frame[13],
		Sec:       frame[14],
		Weekday:   frame[15],
		ActID:     u16(frame, 20),
		ActParam1: u16(frame, 22),
		ActParam2: u32(frame, 24),
	}
	if t.Weekday&device.OneShotWeekdayBit != 0 {
		year := u16(frame, 16)
		mon := frame[18]
		if year < 1900 || mon == 0 {
			return 0, 0, device.Timer{}, fmt.Errorf("timer date %d-%d: %w", year, mon, ErrInvalidMessage)
		}
		t.Year = year - 1900
		t.Month = mon - 1
		t.Day = frame[19]
	}
	return u32(frame, 4), u16(frame, 8), t, nil
}

// EncodeDelay carries a delay slot.
func EncodeDelay(cmd uint16, devID uint32, slot uint16, d device.Delay) []byte {
	frame := newFrame(cmd, 32)
	putU32(frame, 4, devID)
	putU16(frame, 8, slot)
	frame[10] = d.WorkMode
	frame[11] = d.Flag
	putU16(frame, 12, d.EvtID)
	putU16(frame, 14, d.EvtParam1)
	putU32(frame, 16, d.EvtParam2)
	putU16(frame, 20, d.ActID)
	putU16(frame, 22, d.ActParam1)
	putU32(frame, 24, d.ActParam2)
	putU32(frame, 28, d.DelaySec)
	return frame
}

// DecodeDelay parses a delay slot frame.
func DecodeDelay(frame []byte) (devID uint32, slot uint16, d device.Delay, err error) {
	if err := checkLen(frame, 32); err != nil {
		return 0, 0, device.Delay{}, err
	}
	d = device.Delay{
		WorkMode:  frame[10],
		Flag:      frame[11],
		EvtID:     u16(frame, 12),
		EvtParam1: u16(frame, 14),
		EvtParam2: u32(frame, 16),
		ActID:     u16(frame, 20),
		ActParam1: u16(frame, 22),
		ActParam2: u32(frame, 24),
		DelaySec:  u32(frame, 28),
	}
	return u32(frame, 4), u16(frame, 8), d, nil
}

// EncodeLinkage carries a linkage slot.
func EncodeLinkage(cmd uint16, devID uint32, slot uint16, l device.Linkage) []byte {
	frame := newFrame(cmd, 32)
	putU32(frame, 4, devID)
	putU16(frame, 8, slot)
	frame[10] = l.WorkMode
	frame[11] = l.Flag
	putU16(frame, 12, l.EvtID)
	putU16(frame, 14, l.EvtParam1)
	putU32(frame, 16, l.EvtParam2)
	putU32(frame, 20, l.ActDevID)
	putU16(frame, 24, l.ActID)
	putU16(frame, 26, l.ActParam1)
	putU32(frame, 28, l.ActParam2)
	return frame
}

// DecodeLinkage parses a linkage slot frame.
func DecodeLinkage(frame []byte) (devID uint32, slot uint16, l device.Linkage, err error) {
	if err := checkLen(frame, 32); err != nil {
		return 0, 0, device.Linkage{}, err
	}
	l = device.Linkage{
		WorkMode:  frame[10],
		Flag:      frame[11],
		EvtID:     u16(frame, 12),
		EvtParam1: u16(frame, 14),
		EvtParam2: u32(frame, 16),
		ActDevID:  u32(frame, 20),
		ActID:     u16(frame, 24),
		ActParam1: u16(frame, 26),
		ActParam2: u32(frame, 28),
	}
	return u32(frame, 4), u16(frame, 8), l, nil
}

// --- channels ---

// EncodeChannel carries a channel preset. The same shape serves
// set-channel requests and get-channel response records.
func EncodeChannel(cmd uint16, devID uint32, name string, cid uint32) []byte {
	frame := newFrame(cmd, 28)
	putU32(frame, 4, devID)
	putName(frame, 8, name)
	putU32(frame, 24, cid)
	return frame
}

// DecodeChannel parses a channel preset frame.
func DecodeChannel(frame []byte) (devID uint32, name string, cid uint32, err error) {
	if err := checkLen(frame, 28); err != nil {
		return 0, "", 0, err
	}
	return u32(frame, 4), getName(frame, 8), u32(frame, 24), nil
}

// EncodeChannelName builds a name-addressed channel request
// (delete, switch).
func EncodeChannelName(cmd uint16, devID uint32, name string) []byte {
	frame := newFrame(cmd, 24)
	putU32(frame, 4, devID)
	putName(frame, 8, name)
	return frame
}

// DecodeChannelName parses a name-addressed channel request.
func DecodeChannelName(frame []byte) (devID uint32, name string, err error) {
	if err := checkLen(frame, 24); err != nil {
		return 0, "", err
	}
	return u32(frame, 4), getName(frame, 8), nil
}

// --- provisioning ---

// EncodeProbeDev builds a driver probe request.
func EncodeProbeDev(driverID uint16) []byte {
	frame := newFrame(CmdProbeDev, 8)
	putU16(frame, 4, driverID)
	return frame
}

// DecodeProbeDev parses a driver probe request.
func DecodeProbeDev(frame []byte) (uint16, error) {
	if err := checkLen(frame, 8); err != nil {
		return 0, err
	}
	return u16(frame, 4), nil
}

// EncodeAddDev builds a manual provisioning request.
func EncodeAddDev(driverID uint16, devType uint16) []byte {
	frame := newFrame(CmdAddDev, 8)
	putU16(frame, 4, driverID)
	putU16(frame, 6, devType)
	return frame
}

// DecodeAddDev parses a manual provisioning request.
func DecodeAddDev(frame []byte) (driverID uint16, devType uint16, err error) {
	if err := checkLen(frame, 8); err != nil {
		return 0, 0, err
	}
	return u16(frame, 4), u16(frame, 6), nil
}

// EncodeDelDev builds a device removal request.
func EncodeDelDev(devID uint32) []byte {
	frame := newFrame(CmdDelDev, 8)
	putU32(frame, 4, devID)
	return frame
}

// --- scenes ---

// EncodeSceneName builds a name-addressed scene request
// (delete, enter).
func EncodeSceneName(cmd uint16, name string) []byte {
	frame := newFrame(cmd, 20)
	putName(frame, 4, name)
	return frame
}

// DecodeSceneName parses a name-addressed scene request.
func DecodeSceneName(frame []byte) (string, error) {
	if err := checkLen(frame, 20); err != nil {
		return "", err
	}
	return getName(frame, 4), nil
}

// EncodeScene serialises a full scene definition. Each step is an
// action block, an optional condition block, and its act blocks, each
// introduced by a magic byte.
func EncodeScene(cmd uint16, s *scene.Scene) []byte {
	total := 20
	for _, a := range s.Actions {
		total += actionHeadLen
		if a.HasCond {
			total += condLen
		}
		total += actLen * len(a.Acts)
	}

	frame := newFrame(cmd, total)
	putName(frame, 4, s.Name)

	off := 20
	for _, a := range s.Actions {
		frame[off] = magicAction
		frame[off+1] = a.Delay
		if a.HasCond {
			frame[off+2] = 1
		}
		frame[off+3] = uint8(len(a.Acts))
		off += actionHeadLen

		if a.HasCond {
			frame[off] = magicCond
			frame[off+1] = uint8(a.Condition.Op)
			putU16(frame, off+2, uint16(a.Condition.DevID))
			putU16(frame, off+4, a.Condition.StatusID)
			putU16(frame, off+6, a.Condition.Value)
			off += condLen
		}

		for _, act := range a.Acts {
			frame[off] = magicAct
			frame[off+1] = act.Flag
			putU16(frame, off+2, uint16(act.DevID))
			putU16(frame, off+4, act.ID)
			putU16(frame, off+6, act.Param1)
			putU32(frame, off+8, act.Param2)
			off += actLen
		}
	}
	return frame
}

// DecodeScene parses a full scene definition. Any structural fault, a
// bad magic byte, a truncated block, too many steps or acts, fails the
// whole frame.
func DecodeScene(frame []byte) (*scene.Scene, error) {
	if len(frame) < 20 {
		return nil, fmt.Errorf("scene frame length %d: %w", len(frame), ErrInvalidMessage)
	}

	s := &scene.Scene{Name: getName(frame, 4)}
	off := 20

	for off < len(frame) {
		if len(s.Actions) >= scene.MaxActions {
			return nil, fmt.Errorf("more than %d scene steps: %w", scene.MaxActions, ErrInvalidMessage)
		}
		if off+actionHeadLen > len(frame) || frame[off] != magicAction {
			return nil, fmt.Errorf("scene step at offset %d: %w", off, ErrInvalidMessage)
		}

		action := scene.Action{
			Delay:   frame[off+1],
			HasCond: frame[off+2] != 0,
		}
		actNum := int(frame[off+3])
		off += actionHeadLen

		if actNum == 0 || actNum > scene.MaxActs {
			return nil, fmt.Errorf("%d acts in scene step: %w", actNum, ErrInvalidMessage)
		}

		if action.HasCond {
			if off+condLen > len(frame) || frame[off] != magicCond {
				return nil, fmt.Errorf("scene condition at offset %d: %w", off, ErrInvalidMessage)
			}
			action.Condition = scene.Condition{
				Op:       scene.CondOp(frame[off+1]),
				DevID:    uint32(u16(frame, off+2)),
				StatusID: u16(frame, off+4),
				Value:    u16(frame, off+6),
			}
			off += condLen
		}

		for i := 0; i < actNum; i++ {
			if off+actLen > len(frame) || frame[off] != magicAct {
				return nil, fmt.Errorf("scene act at offset %d: %w", off, ErrInvalidMessage)
			}
			action.Acts = append(action.Acts, scene.Act{
				Flag:   frame[off+1],
				DevID:  uint32(u16(frame, off+2)),
				ID:     u16(frame, off+4),
				Param1: u16(frame, off+6),
				Param2: u32(frame, off+8),
			})
			off += actLen
		}

		s.Actions = append(s.Actions, action)
	}

	if len(s.Actions) == 0 {
		return nil, fmt.Errorf("scene with no steps: %w", ErrInvalidMessage)
	}
	return s, nil
}

// --- device snapshot push ---

// EncodeDevOnline builds the full device record pushed when a device
// comes online and replayed to newly connected clients.
func EncodeDevOnline(dev *device.Device) []byte {
	frame := newFrame(CmdDevOnline, 60+4*len(dev.Status))
	putU32(frame, 4, dev.ID)
	putU32(frame, 8, dev.Info.DriverID)
	putU16(frame, 12, dev.Info.Class)
	putU16(frame, 14, dev.Info.Interface)
	putU32(frame, 16, dev.Info.Type)
	copy(frame[20:28], dev.Info.MAC[:])
	putName(frame, 28, dev.Config.Name)
	putName(frame, 44, dev.Config.Location)
	for i, p := range dev.Status {
		putU16(frame, 60+4*i, p.ID)
		putU16(frame, 62+4*i, p.Value)
	}
	return frame
}

// DecodeDevOnline parses a device record push.
func DecodeDevOnline(frame []byte) (*device.Device, error) {
	if len(frame) < 60 || (len(frame)-60)%4 != 0 {
		return nil, fmt.Errorf("device record length %d: %w", len(frame), ErrInvalidMessage)
	}

	dev := &device.Device{
		ID:     u32(frame, 4),
		Online: true,
		Info: device.Info{
			DriverID:  u32(frame, 8),
			Class:     u16(frame, 12),
			Interface: u16(frame, 14),
			Type:      u32(frame, 16),
		},
		Config: device.Config{
			Name:     getName(frame, 28),
			Location: getName(frame, 44),
		},
	}
	copy(dev.Info.MAC[:], frame[20:28])

	n := (len(frame) - 60) / 4
	for i := 0; i < n; i++ {
		dev.Status = append(dev.Status, device.StatusPair{
			ID:    u16(frame, 60+4*i),
			Value: u16(frame, 62+4*i),
		})
	}
	return dev, nil
}

// --- discovery ---

// Protocol version advertised in discovery replies.
const (
	VersionMajor = 1
	VersionMinor = 0
)

// EncodeDiscover builds a discovery request.
func EncodeDiscover() []byte {
	return newFrame(CmdDiscover, HeaderLen)
}

// EncodeDiscoverResp builds a discovery reply carrying the protocol
// version and the box id.
func EncodeDiscoverResp(boxID uint16) []byte {
	frame := newFrame(CmdDiscoverResp, 8)
	frame[4] = VersionMinor
	frame[5] = VersionMajor
	putU16(frame, 6, boxID)
	return frame
}

// DecodeDiscoverResp parses a discovery reply.
func DecodeDiscoverResp(frame []byte) (major, minor uint8, boxID uint16, err error) {
	if err := checkLen(frame, 8); err != nil {
		return 0, 0, 0, err
	}
	return frame[5], frame[4], u16(frame, 6), nil
}
