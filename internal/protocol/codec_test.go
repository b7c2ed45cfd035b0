package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/qubit-star/hsb-core/internal/device"
	"github.com/qubit-star/hsb-core/internal/scene"
)

func TestReadFrame(t *testing.T) {
	frame := EncodeResult(3, CmdSetStatus, CodeOK)

	cmd, got, err := ReadFrame(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if cmd != CmdResult {
		t.Errorf("cmd = %#x, want CmdResult", cmd)
	}
	if !bytes.Equal(got, frame) {
		t.Errorf("frame bytes differ")
	}
}

func TestReadFrameRejectsBadLength(t *testing.T) {
	// Header declares 2 bytes, less than the header itself.
	short := make([]byte, 4)
	binary.LittleEndian.PutUint16(short[0:2], CmdGetDevices)
	binary.LittleEndian.PutUint16(short[2:4], 2)
	if _, _, err := ReadFrame(bytes.NewReader(short)); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("short length error = %v, want ErrInvalidMessage", err)
	}

	huge := make([]byte, 4)
	binary.LittleEndian.PutUint16(huge[0:2], CmdGetDevices)
	binary.LittleEndian.PutUint16(huge[2:4], MaxFrameLen+1)
	if _, _, err := ReadFrame(bytes.NewReader(huge)); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("oversize length error = %v, want ErrInvalidMessage", err)
	}

	// Truncated body.
	trunc := EncodeResult(1, CmdSetStatus, CodeOK)[:8]
	if _, _, err := ReadFrame(bytes.NewReader(trunc)); err == nil {
		t.Errorf("truncated body: expected error")
	}
}

func TestResultRoundTrip(t *testing.T) {
	frame := EncodeResult(42, CmdSetTimer, CodeBadParam)
	if len(frame) != 12 {
		t.Fatalf("result length = %d, want 12", len(frame))
	}

	devID, cmd, code, err := DecodeResult(frame)
	if err != nil {
		t.Fatalf("DecodeResult() error = %v", err)
	}
	if devID != 42 || cmd != CmdSetTimer || code != CodeBadParam {
		t.Errorf("decoded = (%d, %#x, %d)", devID, cmd, code)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	cfg := device.Config{Name: "lamp", Location: "study"}
	frame := EncodeConfig(CmdGetConfigResp, 7, cfg)
	if len(frame) != 40 {
		t.Fatalf("config length = %d, want 40", len(frame))
	}

	devID, got, err := DecodeConfig(frame)
	if err != nil {
		t.Fatalf("DecodeConfig() error = %v", err)
	}
	if devID != 7 || got != cfg {
		t.Errorf("decoded = %d %+v, want 7 %+v", devID, got, cfg)
	}

	// A full-width name has no terminator and survives unchanged.
	full := device.Config{Name: "0123456789abcdef"}
	_, got, err = DecodeConfig(EncodeConfig(CmdSetConfig, 1, full))
	if err != nil {
		t.Fatalf("DecodeConfig(full) error = %v", err)
	}
	if got.Name != full.Name {
		t.Errorf("full-width name = %q, want %q", got.Name, full.Name)
	}
}

func TestStatusRoundTripAndBounds(t *testing.T) {
	pairs := []device.StatusPair{{ID: 0, Value: 1}, {ID: 2, Value: 30}}
	frame := EncodeStatus(CmdStatusUpdate, 5, pairs)
	if len(frame) != 16 {
		t.Fatalf("status length = %d, want 16", len(frame))
	}

	devID, got, err := DecodeStatus(frame)
	if err != nil {
		t.Fatalf("DecodeStatus() error = %v", err)
	}
	if devID != 5 || len(got) != 2 || got[0] != pairs[0] || got[1] != pairs[1] {
		t.Errorf("decoded = %d %+v", devID, got)
	}

	// More pairs than slots is a malformed frame.
	nine := make([]device.StatusPair, 9)
	if _, _, err := DecodeStatus(EncodeStatus(CmdSetStatus, 5, nine)); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("9 pairs error = %v, want ErrInvalidMessage", err)
	}
}

func TestTimerRoundTrip(t *testing.T) {
	weekday := device.Timer{
		WorkMode: device.WorkModeAll,
		Flag:     device.FlagActive,
		Hour:     7, Min: 30, Sec: 15,
		Weekday:   0x3E,
		ActID:     0,
		ActParam1: 1,
	}
	devID, slot, got, err := DecodeTimer(EncodeTimer(CmdSetTimer, 3, 2, weekday))
	if err != nil {
		t.Fatalf("DecodeTimer() error = %v", err)
	}
	if devID != 3 || slot != 2 || got != weekday {
		t.Errorf("decoded = %d/%d %+v, want 3/2 %+v", devID, slot, got, weekday)
	}
}

func TestTimerCalendarConversion(t *testing.T) {
	// Internally the year is offset from 1900 and the month is
	// zero-based; the wire carries human form.
	date := device.Timer{
		WorkMode: device.WorkModeAll,
		Hour:     12,
		Weekday:  device.OneShotWeekdayBit,
		Year:     2026 - 1900,
		Month:    2, // March
		Day:      4,
	}
	frame := EncodeTimer(CmdSetTimer, 1, 0, date)

	if y := binary.LittleEndian.Uint16(frame[16:18]); y != 2026 {
		t.Errorf("wire year = %d, want 2026", y)
	}
	if frame[18] != 3 {
		t.Errorf("wire month = %d, want 3", frame[18])
	}

	_, _, got, err := DecodeTimer(frame)
	if err != nil {
		t.Fatalf("DecodeTimer() error = %v", err)
	}
	if got != date {
		t.Errorf("round trip = %+v, want %+v", got, date)
	}

	// A date timer with a zero month is malformed.
	frame[18] = 0
	if _, _, _, err := DecodeTimer(frame); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("zero month error = %v, want ErrInvalidMessage", err)
	}
}

func TestDelayRoundTrip(t *testing.T) {
	d := device.Delay{
		WorkMode:  device.ModeHome.Mask(),
		Flag:      device.FlagActive | device.FlagUseAction,
		EvtID:     device.EvtSensorTriggered,
		EvtParam1: 1,
		ActID:     2,
		ActParam1: 0,
		DelaySec:  120,
	}
	devID, slot, got, err := DecodeDelay(EncodeDelay(CmdSetDelay, 9, 1, d))
	if err != nil {
		t.Fatalf("DecodeDelay() error = %v", err)
	}
	if devID != 9 || slot != 1 || got != d {
		t.Errorf("decoded = %d/%d %+v", devID, slot, got)
	}
}

func TestLinkageRoundTrip(t *testing.T) {
	l := device.Linkage{
		WorkMode:  device.WorkModeAll,
		Flag:      device.FlagActive,
		EvtID:     device.EvtSensorTriggered,
		EvtParam1: 1,
		ActDevID:  7,
		ActID:     0,
		ActParam1: 1,
	}
	devID, slot, got, err := DecodeLinkage(EncodeLinkage(CmdSetLinkage, 4, 0, l))
	if err != nil {
		t.Fatalf("DecodeLinkage() error = %v", err)
	}
	if devID != 4 || slot != 0 || got != l {
		t.Errorf("decoded = %d/%d %+v", devID, slot, got)
	}
}

func TestSceneRoundTrip(t *testing.T) {
	s := &scene.Scene{
		Name: "movie-night",
		Actions: []scene.Action{
			{
				Delay: 0,
				Acts: []scene.Act{
					{DevID: 1, ID: 0, Param1: 0},
					{DevID: 2, ID: 0, Param1: 1},
				},
			},
			{
				Delay:   5,
				HasCond: true,
				Condition: scene.Condition{
					DevID: 3, StatusID: 1, Op: scene.OpGreaterEqual, Value: 25,
				},
				Acts: []scene.Act{
					{Flag: scene.ActFlagUseAction, DevID: 4, ID: 7, Param2: 16},
				},
			},
		},
	}

	frame := EncodeScene(CmdSetScene, s)
	got, err := DecodeScene(frame)
	if err != nil {
		t.Fatalf("DecodeScene() error = %v", err)
	}

	if got.Name != s.Name || len(got.Actions) != 2 {
		t.Fatalf("decoded = %q with %d actions", got.Name, len(got.Actions))
	}
	if len(got.Actions[0].Acts) != 2 || got.Actions[0].HasCond {
		t.Errorf("step 0 = %+v", got.Actions[0])
	}
	a1 := got.Actions[1]
	if a1.Delay != 5 || !a1.HasCond || a1.Condition != s.Actions[1].Condition {
		t.Errorf("step 1 = %+v", a1)
	}
	if len(a1.Acts) != 1 || a1.Acts[0] != s.Actions[1].Acts[0] {
		t.Errorf("step 1 acts = %+v", a1.Acts)
	}
}

func TestSceneDecodeRejectsCorruptBodies(t *testing.T) {
	good := EncodeScene(CmdSetScene, &scene.Scene{
		Name: "n",
		Actions: []scene.Action{
			{
				HasCond:   true,
				Condition: scene.Condition{DevID: 1, StatusID: 0, Op: scene.OpEqual, Value: 1},
				Acts:      []scene.Act{{DevID: 1, ID: 0, Param1: 1}},
			},
		},
	})

	corrupt := func(mutate func(b []byte)) []byte {
		b := make([]byte, len(good))
		copy(b, good)
		mutate(b)
		return b
	}

	tests := []struct {
		name  string
		frame []byte
	}{
		{"bad action magic", corrupt(func(b []byte) { b[20] = 0xAA })},
		{"bad cond magic", corrupt(func(b []byte) { b[24] = 0xAA })},
		{"bad act magic", corrupt(func(b []byte) { b[32] = 0xAA })},
		{"zero acts", corrupt(func(b []byte) { b[23] = 0 })},
		{"truncated", good[:len(good)-4]},
		{"no steps", EncodeSceneName(CmdSetScene, "empty")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeScene(tt.frame); !errors.Is(err, ErrInvalidMessage) {
				t.Errorf("DecodeScene() error = %v, want ErrInvalidMessage", err)
			}
		})
	}
}

func TestDevOnlineRoundTrip(t *testing.T) {
	dev := &device.Device{
		ID: 11,
		Info: device.Info{
			DriverID: 1,
			Class:    device.ClassSwitch,
			Type:     device.TypePlug,
			MAC:      device.MAC{1, 2, 3, 4, 5, 6, 7, 8},
		},
		Config: device.Config{Name: "lamp", Location: "study"},
		Status: []device.StatusPair{{ID: 0, Value: 1}},
	}

	frame := EncodeDevOnline(dev)
	if len(frame) != 64 {
		t.Fatalf("frame length = %d, want 64", len(frame))
	}

	got, err := DecodeDevOnline(frame)
	if err != nil {
		t.Fatalf("DecodeDevOnline() error = %v", err)
	}
	if got.ID != dev.ID || got.Info != dev.Info || got.Config != dev.Config {
		t.Errorf("decoded = %+v", got)
	}
	if len(got.Status) != 1 || got.Status[0] != dev.Status[0] {
		t.Errorf("status = %+v", got.Status)
	}
}

func TestDiscoverRoundTrip(t *testing.T) {
	frame := EncodeDiscoverResp(7)
	major, minor, boxID, err := DecodeDiscoverResp(frame)
	if err != nil {
		t.Fatalf("DecodeDiscoverResp() error = %v", err)
	}
	if major != VersionMajor || minor != VersionMinor || boxID != 7 {
		t.Errorf("decoded = v%d.%d box %d", major, minor, boxID)
	}
}

func TestCodeForError(t *testing.T) {
	tests := []struct {
		err  error
		want uint16
	}{
		{nil, CodeOK},
		{device.ErrBadParam, CodeBadParam},
		{device.ErrNotFound, CodeNotFound},
		{device.ErrNotSupported, CodeNotSupported},
		{device.ErrAlreadyExists, CodeAlreadyExists},
		{device.ErrQueueFull, CodeBusy},
		{scene.ErrNotFound, CodeNotFound},
		{scene.ErrBusy, CodeBusy},
		{ErrInvalidMessage, CodeInvalidMessage},
		{errors.New("driver exploded"), CodeIOFail},
	}
	for _, tt := range tests {
		if got := CodeForError(tt.err); got != tt.want {
			t.Errorf("CodeForError(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
