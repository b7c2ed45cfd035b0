package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/qubit-star/hsb-core/internal/device"
	"github.com/qubit-star/hsb-core/internal/infrastructure/config"
	"github.com/qubit-star/hsb-core/internal/infrastructure/database"
	"github.com/qubit-star/hsb-core/internal/scene"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "hsb.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return New(db)
}

func TestDeviceRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dev := &device.Device{
		ID: 7,
		Info: device.Info{
			DriverID:  1,
			Class:     device.ClassMedia,
			Interface: 2,
			Type:      device.TypeTV,
			MAC:       device.MAC{0xAA, 0xBB, 0, 0, 0, 0, 0, 0x01},
		},
		Config: device.Config{Name: "living room tv", Location: "living room"},
		Channels: []device.Channel{
			{Name: "news", CID: 12},
			{Name: "sport", CID: 5},
		},
	}
	dev.Timers[2] = device.Timer{
		WorkMode: device.WorkModeAll, Flag: device.FlagActive | device.FlagUseAction,
		Hour: 22, Min: 30, Weekday: 0x7F,
		ActID: 1, ActParam1: 0,
	}
	dev.Delays[0] = device.Delay{
		WorkMode: device.WorkModeAll, Flag: device.FlagActive,
		EvtID: device.EvtSensorTriggered, DelaySec: 60,
		ActID: 0, ActParam1: 1,
	}
	dev.Linkages[5] = device.Linkage{
		WorkMode: device.WorkModeAll, Flag: device.FlagActive,
		EvtID: device.EvtSensorTriggered, ActDevID: 9, ActID: 0, ActParam1: 1,
	}

	if err := store.SaveDevice(ctx, dev); err != nil {
		t.Fatalf("SaveDevice() error = %v", err)
	}

	devices, err := store.LoadDevices(ctx)
	if err != nil {
		t.Fatalf("LoadDevices() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("len(devices) = %d, want 1", len(devices))
	}

	got := devices[0]
	if got.ID != 7 || got.Info != dev.Info || got.Config != dev.Config {
		t.Errorf("device = %+v, want saved identity", got)
	}
	if len(got.Channels) != 2 || got.Channels[0].Name != "news" || got.Channels[1].CID != 5 {
		t.Errorf("channels = %+v, want order preserved", got.Channels)
	}
	if got.Timers[2] != dev.Timers[2] {
		t.Errorf("timer slot 2 = %+v, want %+v", got.Timers[2], dev.Timers[2])
	}
	if got.Delays[0] != dev.Delays[0] {
		t.Errorf("delay slot 0 = %+v, want %+v", got.Delays[0], dev.Delays[0])
	}
	if got.Linkages[5] != dev.Linkages[5] {
		t.Errorf("linkage slot 5 = %+v, want %+v", got.Linkages[5], dev.Linkages[5])
	}
	// Slots that were never set stay empty.
	if got.Timers[0].Active() || got.Delays[1].Active() || got.Linkages[0].Active() {
		t.Errorf("unset slots came back active")
	}
}

func TestSaveDeviceReplacesSlots(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dev := &device.Device{ID: 1, Info: device.Info{DriverID: 1, Type: device.TypePlug}}
	dev.Timers[0] = device.Timer{Flag: device.FlagActive, Hour: 6, WorkMode: device.WorkModeAll}
	if err := store.SaveDevice(ctx, dev); err != nil {
		t.Fatalf("SaveDevice() error = %v", err)
	}

	// Deactivating the slot and saving again must drop the row.
	dev.Timers[0] = device.Timer{}
	dev.Timers[3] = device.Timer{Flag: device.FlagActive, Hour: 8, WorkMode: device.WorkModeAll}
	if err := store.SaveDevice(ctx, dev); err != nil {
		t.Fatalf("SaveDevice() error = %v", err)
	}

	devices, err := store.LoadDevices(ctx)
	if err != nil {
		t.Fatalf("LoadDevices() error = %v", err)
	}
	got := devices[0]
	if got.Timers[0].Active() {
		t.Errorf("cleared slot 0 still persisted: %+v", got.Timers[0])
	}
	if !got.Timers[3].Active() || got.Timers[3].Hour != 8 {
		t.Errorf("timer slot 3 = %+v, want the replacement", got.Timers[3])
	}
}

func TestDeleteDeviceCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dev := &device.Device{
		ID:       3,
		Info:     device.Info{DriverID: 1, Type: device.TypeTV, Class: device.ClassMedia},
		Channels: []device.Channel{{Name: "news", CID: 1}},
	}
	dev.Timers[0] = device.Timer{Flag: device.FlagActive, WorkMode: device.WorkModeAll}
	if err := store.SaveDevice(ctx, dev); err != nil {
		t.Fatalf("SaveDevice() error = %v", err)
	}

	if err := store.DeleteDevice(ctx, 3); err != nil {
		t.Fatalf("DeleteDevice() error = %v", err)
	}
	devices, err := store.LoadDevices(ctx)
	if err != nil {
		t.Fatalf("LoadDevices() error = %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("len(devices) = %d after delete, want 0", len(devices))
	}

	// Deleting an unknown device is not an error.
	if err := store.DeleteDevice(ctx, 99); err != nil {
		t.Errorf("DeleteDevice(unknown) error = %v", err)
	}
}

func TestBoxStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mode, nextID, err := store.LoadBoxState(ctx)
	if err != nil {
		t.Fatalf("LoadBoxState() error = %v", err)
	}
	if mode != device.ModeHome || nextID != 1 {
		t.Errorf("initial state = (%d, %d), want (home, 1)", mode, nextID)
	}

	if err := store.SaveBoxState(ctx, device.ModeGuard, 42); err != nil {
		t.Fatalf("SaveBoxState() error = %v", err)
	}
	mode, nextID, err = store.LoadBoxState(ctx)
	if err != nil {
		t.Fatalf("LoadBoxState() error = %v", err)
	}
	if mode != device.ModeGuard || nextID != 42 {
		t.Errorf("state = (%d, %d), want (guard, 42)", mode, nextID)
	}
}

func TestSceneRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	evening := &scene.Scene{
		Name: "evening",
		Actions: []scene.Action{
			{
				Delay: 0,
				Acts: []scene.Act{
					{DevID: 1, ID: 0, Param1: 1},
					{DevID: 2, ID: 0, Param1: 1},
				},
			},
			{
				Delay:   10,
				HasCond: true,
				Condition: scene.Condition{
					DevID: 3, StatusID: 0, Op: scene.OpGreater, Value: 50,
				},
				Acts: []scene.Act{
					{Flag: scene.ActFlagUseAction, DevID: 4, ID: 2, Param1: 7, Param2: 9},
				},
			},
		},
	}
	morning := &scene.Scene{
		Name:    "morning",
		Actions: []scene.Action{{Acts: []scene.Act{{DevID: 1, ID: 0, Param1: 0}}}},
	}

	if err := store.SaveScene(ctx, evening, 0); err != nil {
		t.Fatalf("SaveScene(evening) error = %v", err)
	}
	if err := store.SaveScene(ctx, morning, 1); err != nil {
		t.Fatalf("SaveScene(morning) error = %v", err)
	}

	scenes, err := store.LoadScenes(ctx)
	if err != nil {
		t.Fatalf("LoadScenes() error = %v", err)
	}
	if len(scenes) != 2 || scenes[0].Name != "evening" || scenes[1].Name != "morning" {
		t.Fatalf("scenes = %v, want [evening morning]", sceneNames(scenes))
	}

	got := scenes[0]
	if len(got.Actions) != 2 {
		t.Fatalf("len(actions) = %d, want 2", len(got.Actions))
	}
	if len(got.Actions[0].Acts) != 2 || got.Actions[0].Acts[1].DevID != 2 {
		t.Errorf("step 0 acts = %+v, want both writes in order", got.Actions[0].Acts)
	}
	step := got.Actions[1]
	if step.Delay != 10 || !step.HasCond || step.Condition != evening.Actions[1].Condition {
		t.Errorf("step 1 = %+v, want saved condition", step)
	}
	if step.Acts[0] != evening.Actions[1].Acts[0] {
		t.Errorf("step 1 act = %+v, want %+v", step.Acts[0], evening.Actions[1].Acts[0])
	}
}

func TestSaveSceneReplacesDefinition(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	s := &scene.Scene{
		Name: "night",
		Actions: []scene.Action{
			{Acts: []scene.Act{{DevID: 1, ID: 0, Param1: 1}}},
			{Delay: 5, Acts: []scene.Act{{DevID: 2, ID: 0, Param1: 1}}},
		},
	}
	if err := store.SaveScene(ctx, s, 0); err != nil {
		t.Fatalf("SaveScene() error = %v", err)
	}

	s.Actions = s.Actions[:1]
	s.Actions[0].Acts[0].Param1 = 0
	if err := store.SaveScene(ctx, s, 0); err != nil {
		t.Fatalf("SaveScene(replace) error = %v", err)
	}

	scenes, err := store.LoadScenes(ctx)
	if err != nil {
		t.Fatalf("LoadScenes() error = %v", err)
	}
	got := scenes[0]
	if len(got.Actions) != 1 || got.Actions[0].Acts[0].Param1 != 0 {
		t.Errorf("scene = %+v, want the single replacement step", got)
	}
}

func TestDeleteSceneCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	s := &scene.Scene{
		Name:    "away",
		Actions: []scene.Action{{Acts: []scene.Act{{DevID: 1, ID: 0, Param1: 0}}}},
	}
	if err := store.SaveScene(ctx, s, 0); err != nil {
		t.Fatalf("SaveScene() error = %v", err)
	}
	if err := store.DeleteScene(ctx, "away"); err != nil {
		t.Fatalf("DeleteScene() error = %v", err)
	}

	scenes, err := store.LoadScenes(ctx)
	if err != nil {
		t.Fatalf("LoadScenes() error = %v", err)
	}
	if len(scenes) != 0 {
		t.Errorf("len(scenes) = %d after delete, want 0", len(scenes))
	}
}

func sceneNames(scenes []*scene.Scene) []string {
	names := make([]string, len(scenes))
	for i, s := range scenes {
		names[i] = s.Name
	}
	return names
}
