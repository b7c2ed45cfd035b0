package device

import (
	"context"
	"testing"
	"time"
)

// Wednesday 2026-03-04, a fixed base for clock tests.
func wednesday(h, m, s int) time.Time {
	return time.Date(2026, time.March, 4, h, m, s, 0, time.UTC)
}

func setupTickRegistry(t *testing.T) (*Registry, uint32, *recordingSink) {
	t.Helper()
	r, _ := newTestRegistry(t)
	sink := &recordingSink{}
	r.SetActionSink(sink)

	id, err := r.DeviceOnline(context.Background(), 1, mac(0xA1), TypePlug, nil)
	if err != nil {
		t.Fatalf("DeviceOnline() error = %v", err)
	}
	return r, id, sink
}

func TestTimerFiresWithinWindow(t *testing.T) {
	r, id, sink := setupTickRegistry(t)
	ctx := context.Background()

	wedBit := uint8(1 << time.Wednesday)
	timer := Timer{
		WorkMode:  WorkModeAll,
		Hour:      7, Min: 30,
		Weekday:   wedBit,
		ActID:     0,
		ActParam1: 1,
	}
	if err := r.SetTimer(ctx, id, 0, timer); err != nil {
		t.Fatalf("SetTimer() error = %v", err)
	}

	// Before the scheduled second: nothing.
	r.Tick(wednesday(7, 29, 59))
	if len(sink.status) != 0 {
		t.Fatalf("timer fired early")
	}

	// Within the window (here 3s late): fires once.
	r.Tick(wednesday(7, 30, 3))
	if len(sink.status) != 1 {
		t.Fatalf("status submissions = %d, want 1", len(sink.status))
	}

	// Still inside the window a second later, but already fired today.
	r.Tick(wednesday(7, 30, 4))
	if len(sink.status) != 1 {
		t.Errorf("timer fired twice in one day")
	}

	// Past the window on a different day setup is covered by rollover test.
	r.Tick(wednesday(7, 30, 30))
	if len(sink.status) != 1 {
		t.Errorf("timer fired outside the window")
	}
}

func TestTimerMissesOutsideWindow(t *testing.T) {
	r, id, sink := setupTickRegistry(t)
	ctx := context.Background()

	timer := Timer{
		WorkMode: WorkModeAll,
		Hour:     7, Min: 30,
		Weekday:  uint8(1 << time.Wednesday),
	}
	if err := r.SetTimer(ctx, id, 0, timer); err != nil {
		t.Fatalf("SetTimer() error = %v", err)
	}

	// First observation is already past the window: the occurrence is lost.
	r.Tick(wednesday(7, 30, 6))
	if len(sink.status) != 0 {
		t.Errorf("timer fired %ds past its second", 6)
	}
}

func TestTimerWrongWeekdayAndMode(t *testing.T) {
	r, id, sink := setupTickRegistry(t)
	ctx := context.Background()

	// Monday-only timer never fires on Wednesday.
	if err := r.SetTimer(ctx, id, 0, Timer{
		WorkMode: WorkModeAll,
		Hour:     7, Weekday: uint8(1 << time.Monday),
	}); err != nil {
		t.Fatalf("SetTimer() error = %v", err)
	}
	// Home-only timer is suppressed while away.
	if err := r.SetTimer(ctx, id, 1, Timer{
		WorkMode: ModeHome.Mask(),
		Hour:     7, Weekday: uint8(1 << time.Wednesday),
	}); err != nil {
		t.Fatalf("SetTimer() error = %v", err)
	}
	if err := r.SetWorkMode(ctx, ModeAway); err != nil {
		t.Fatalf("SetWorkMode() error = %v", err)
	}

	r.Tick(wednesday(7, 0, 0))
	if len(sink.status) != 0 {
		t.Errorf("timer fired on wrong weekday or mode")
	}
}

func TestDateTimerFiresOnceAndDeactivates(t *testing.T) {
	r, id, sink := setupTickRegistry(t)
	ctx := context.Background()

	timer := Timer{
		WorkMode: WorkModeAll,
		Hour:     12,
		Weekday:  OneShotWeekdayBit,
		Year:     2026 - 1900,
		Month:    uint8(time.March) - 1,
		Day:      4,
	}
	if err := r.SetTimer(ctx, id, 0, timer); err != nil {
		t.Fatalf("SetTimer() error = %v", err)
	}

	r.Tick(wednesday(12, 0, 0))
	if len(sink.status) != 1 {
		t.Fatalf("date timer fired %d times, want 1", len(sink.status))
	}

	// A date timer deactivates after firing.
	if _, err := r.GetTimer(id, 0); err == nil {
		t.Errorf("date timer still active after firing")
	}
}

func TestTimerRearmsAfterRollover(t *testing.T) {
	r, id, sink := setupTickRegistry(t)
	ctx := context.Background()

	// Daily midnight timer.
	if err := r.SetTimer(ctx, id, 0, Timer{
		WorkMode: WorkModeAll,
		Weekday:  0x7F,
	}); err != nil {
		t.Fatalf("SetTimer() error = %v", err)
	}

	r.Tick(wednesday(0, 0, 1))
	if len(sink.status) != 1 {
		t.Fatalf("first fire count = %d, want 1", len(sink.status))
	}

	// Late evening, then the clock wraps past midnight into Thursday.
	r.Tick(wednesday(23, 59, 59))
	next := wednesday(0, 0, 2).AddDate(0, 0, 1)
	r.Tick(next)
	if len(sink.status) != 2 {
		t.Errorf("fire count after rollover = %d, want 2", len(sink.status))
	}
}

func TestRolloverIgnoresLargeClockJumps(t *testing.T) {
	r, id, sink := setupTickRegistry(t)
	ctx := context.Background()

	if err := r.SetTimer(ctx, id, 0, Timer{
		WorkMode: WorkModeAll,
		Hour:     8,
		Weekday:  0x7F,
	}); err != nil {
		t.Fatalf("SetTimer() error = %v", err)
	}

	r.Tick(wednesday(8, 0, 0))
	if len(sink.status) != 1 {
		t.Fatalf("fire count = %d, want 1", len(sink.status))
	}

	// Manual clock change back to mid-morning is not midnight; the timer
	// must not re-arm and fire again.
	r.Tick(wednesday(10, 0, 0))
	r.Tick(wednesday(8, 0, 1))
	if len(sink.status) != 1 {
		t.Errorf("timer re-fired after a manual clock change")
	}
}

func TestDelayFiresAfterCountdown(t *testing.T) {
	r, id, sink := setupTickRegistry(t)
	ctx := context.Background()

	delay := Delay{
		WorkMode:  WorkModeAll,
		EvtID:     EvtSensorTriggered,
		ActID:     0,
		ActParam1: 1,
		DelaySec:  3,
	}
	if err := r.SetDelay(ctx, id, 0, delay); err != nil {
		t.Fatalf("SetDelay() error = %v", err)
	}

	// Not armed: ticks do nothing.
	r.Tick(wednesday(10, 0, 0))
	if len(sink.status) != 0 {
		t.Fatalf("delay fired without trigger")
	}

	// Arm, then fire once the countdown elapses.
	r.ReportEvent(ctx, Event{DevID: id, ID: EvtSensorTriggered})
	r.Tick(wednesday(10, 0, 2))
	// The countdown measures from arming (wall clock), so force the
	// start time far enough back to elapse.
	r.mu.Lock()
	r.online[id].Delays[0].startTime = wednesday(10, 0, 0)
	r.mu.Unlock()

	r.Tick(wednesday(10, 0, 5))
	if len(sink.status) != 1 {
		t.Fatalf("delay fire count = %d, want 1", len(sink.status))
	}

	// The slot stays installed but disarmed; re-triggering arms it again.
	if _, err := r.GetDelay(id, 0); err != nil {
		t.Errorf("delay deactivated after firing: %v", err)
	}
	r.Tick(wednesday(10, 0, 9))
	if len(sink.status) != 1 {
		t.Errorf("delay re-fired without a new trigger")
	}
}

func TestDelayUsesActionFlag(t *testing.T) {
	r, id, sink := setupTickRegistry(t)
	ctx := context.Background()

	delay := Delay{
		WorkMode: WorkModeAll,
		Flag:     FlagUseAction,
		EvtID:    EvtSensorTriggered,
		ActID:    9,
		DelaySec: 1,
	}
	if err := r.SetDelay(ctx, id, 0, delay); err != nil {
		t.Fatalf("SetDelay() error = %v", err)
	}

	r.ReportEvent(ctx, Event{DevID: id, ID: EvtSensorTriggered})
	r.mu.Lock()
	r.online[id].Delays[0].startTime = wednesday(10, 0, 0)
	r.mu.Unlock()

	r.Tick(wednesday(10, 0, 2))
	if len(sink.actions) != 1 {
		t.Errorf("action submissions = %d, want 1", len(sink.actions))
	}
	if len(sink.status) != 0 {
		t.Errorf("action-flagged delay performed a status write")
	}
}
