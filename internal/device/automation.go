package device

import (
	"context"
	"fmt"
	"time"
)

// --- timer slots ---

// GetTimer returns the timer in the given slot.
// Returns ErrBadParam for an out-of-range slot or an inactive one.
func (r *Registry) GetTimer(devID uint32, slot int) (Timer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, ok := r.online[devID]
	if !ok {
		return Timer{}, fmt.Errorf("device %d: %w", devID, ErrNotFound)
	}
	if slot < 0 || slot >= MaxTimers {
		return Timer{}, fmt.Errorf("timer slot %d: %w", slot, ErrBadParam)
	}
	t := dev.Timers[slot]
	if !t.Active() {
		return Timer{}, fmt.Errorf("timer slot %d inactive: %w", slot, ErrBadParam)
	}
	return t, nil
}

// SetTimer installs a timer in the given slot, marking it active and
// clearing any stale fired state.
func (r *Registry) SetTimer(ctx context.Context, devID uint32, slot int, t Timer) error {
	r.mu.Lock()
	dev, ok := r.online[devID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("device %d: %w", devID, ErrNotFound)
	}
	if slot < 0 || slot >= MaxTimers {
		r.mu.Unlock()
		return fmt.Errorf("timer slot %d: %w", slot, ErrBadParam)
	}

	t.Flag |= FlagActive
	t.expired = false
	dev.Timers[slot] = t
	snapshot := dev.DeepCopy()
	r.mu.Unlock()

	r.persistDevice(ctx, snapshot)
	r.logger.Debug("timer set", "dev_id", devID, "slot", slot)
	return nil
}

// DelTimer clears the timer in the given slot.
// Returns ErrBadParam if the slot is out of range or inactive.
func (r *Registry) DelTimer(ctx context.Context, devID uint32, slot int) error {
	r.mu.Lock()
	dev, ok := r.online[devID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("device %d: %w", devID, ErrNotFound)
	}
	if slot < 0 || slot >= MaxTimers {
		r.mu.Unlock()
		return fmt.Errorf("timer slot %d: %w", slot, ErrBadParam)
	}
	if !dev.Timers[slot].Active() {
		r.mu.Unlock()
		return fmt.Errorf("timer slot %d inactive: %w", slot, ErrBadParam)
	}

	dev.Timers[slot] = Timer{}
	snapshot := dev.DeepCopy()
	r.mu.Unlock()

	r.persistDevice(ctx, snapshot)
	return nil
}

// --- delay slots ---

// GetDelay returns the delay in the given slot.
// Returns ErrBadParam for an out-of-range slot or an inactive one.
func (r *Registry) GetDelay(devID uint32, slot int) (Delay, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, ok := r.online[devID]
	if !ok {
		return Delay{}, fmt.Errorf("device %d: %w", devID, ErrNotFound)
	}
	if slot < 0 || slot >= MaxDelays {
		return Delay{}, fmt.Errorf("delay slot %d: %w", slot, ErrBadParam)
	}
	d := dev.Delays[slot]
	if !d.Active() {
		return Delay{}, fmt.Errorf("delay slot %d inactive: %w", slot, ErrBadParam)
	}
	return d, nil
}

// SetDelay installs a delay in the given slot, marking it active and
// disarming any pending trigger.
func (r *Registry) SetDelay(ctx context.Context, devID uint32, slot int, d Delay) error {
	r.mu.Lock()
	dev, ok := r.online[devID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("device %d: %w", devID, ErrNotFound)
	}
	if slot < 0 || slot >= MaxDelays {
		r.mu.Unlock()
		return fmt.Errorf("delay slot %d: %w", slot, ErrBadParam)
	}

	d.Flag |= FlagActive
	d.started = false
	dev.Delays[slot] = d
	snapshot := dev.DeepCopy()
	r.mu.Unlock()

	r.persistDevice(ctx, snapshot)
	r.logger.Debug("delay set", "dev_id", devID, "slot", slot)
	return nil
}

// DelDelay clears the delay in the given slot.
// Returns ErrBadParam if the slot is out of range or inactive.
func (r *Registry) DelDelay(ctx context.Context, devID uint32, slot int) error {
	r.mu.Lock()
	dev, ok := r.online[devID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("device %d: %w", devID, ErrNotFound)
	}
	if slot < 0 || slot >= MaxDelays {
		r.mu.Unlock()
		return fmt.Errorf("delay slot %d: %w", slot, ErrBadParam)
	}
	if !dev.Delays[slot].Active() {
		r.mu.Unlock()
		return fmt.Errorf("delay slot %d inactive: %w", slot, ErrBadParam)
	}

	dev.Delays[slot] = Delay{}
	snapshot := dev.DeepCopy()
	r.mu.Unlock()

	r.persistDevice(ctx, snapshot)
	return nil
}

// --- linkage slots ---

// GetLinkage returns the linkage in the given slot.
// Returns ErrBadParam for an out-of-range slot or an inactive one.
func (r *Registry) GetLinkage(devID uint32, slot int) (Linkage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, ok := r.online[devID]
	if !ok {
		return Linkage{}, fmt.Errorf("device %d: %w", devID, ErrNotFound)
	}
	if slot < 0 || slot >= MaxLinkages {
		return Linkage{}, fmt.Errorf("linkage slot %d: %w", slot, ErrBadParam)
	}
	l := dev.Linkages[slot]
	if !l.Active() {
		return Linkage{}, fmt.Errorf("linkage slot %d inactive: %w", slot, ErrBadParam)
	}
	return l, nil
}

// SetLinkage installs a linkage in the given slot, marking it active.
func (r *Registry) SetLinkage(ctx context.Context, devID uint32, slot int, l Linkage) error {
	r.mu.Lock()
	dev, ok := r.online[devID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("device %d: %w", devID, ErrNotFound)
	}
	if slot < 0 || slot >= MaxLinkages {
		r.mu.Unlock()
		return fmt.Errorf("linkage slot %d: %w", slot, ErrBadParam)
	}

	l.Flag |= FlagActive
	dev.Linkages[slot] = l
	snapshot := dev.DeepCopy()
	r.mu.Unlock()

	r.persistDevice(ctx, snapshot)
	r.logger.Debug("linkage set", "dev_id", devID, "slot", slot)
	return nil
}

// DelLinkage clears the linkage in the given slot.
// Returns ErrBadParam if the slot is out of range or inactive.
func (r *Registry) DelLinkage(ctx context.Context, devID uint32, slot int) error {
	r.mu.Lock()
	dev, ok := r.online[devID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("device %d: %w", devID, ErrNotFound)
	}
	if slot < 0 || slot >= MaxLinkages {
		r.mu.Unlock()
		return fmt.Errorf("linkage slot %d: %w", slot, ErrBadParam)
	}
	if !dev.Linkages[slot].Active() {
		r.mu.Unlock()
		return fmt.Errorf("linkage slot %d inactive: %w", slot, ErrBadParam)
	}

	dev.Linkages[slot] = Linkage{}
	snapshot := dev.DeepCopy()
	r.mu.Unlock()

	r.persistDevice(ctx, snapshot)
	return nil
}

// --- event-driven triggers ---

// triggerAutomation scans the automation slots of the device that
// produced an event: matching linkages fire immediately through the
// action sink, matching delays arm and fire later from the tick loop.
// A slot matches when it is active, its mode mask includes the current
// work mode, and its trigger fields equal the event exactly.
func (r *Registry) triggerAutomation(evt Event) {
	if evt.DevID == 0 {
		return
	}

	type firing struct {
		flag   uint8
		devID  uint32
		actID  uint16
		param1 uint16
		param2 uint32
	}
	var fires []firing

	r.mu.Lock()
	dev, ok := r.online[evt.DevID]
	if !ok {
		r.mu.Unlock()
		return
	}
	mask := r.workMode.Mask()
	now := time.Now()

	for i := range dev.Linkages {
		l := &dev.Linkages[i]
		if !l.Active() || l.WorkMode&mask == 0 {
			continue
		}
		if l.EvtID != evt.ID || l.EvtParam1 != evt.Param1 || l.EvtParam2 != evt.Param2 {
			continue
		}
		fires = append(fires, firing{l.Flag, l.ActDevID, l.ActID, l.ActParam1, l.ActParam2})
	}

	for i := range dev.Delays {
		d := &dev.Delays[i]
		if !d.Active() || d.started || d.WorkMode&mask == 0 {
			continue
		}
		if d.EvtID != evt.ID || d.EvtParam1 != evt.Param1 || d.EvtParam2 != evt.Param2 {
			continue
		}
		d.started = true
		d.startTime = now
	}
	r.mu.Unlock()

	for _, f := range fires {
		r.fireAutomation(f.flag, f.devID, f.actID, f.param1, f.param2)
	}
}

// fireAutomation submits an automation action through the sink. Flag
// bit 0 selects action execution; otherwise the act id and first
// parameter form a single status write.
func (r *Registry) fireAutomation(flag uint8, devID uint32, actID uint16, param1 uint16, param2 uint32) {
	if r.actions == nil {
		r.logger.Warn("automation fired with no action sink", "dev_id", devID, "act_id", actID)
		return
	}
	if flag&FlagUseAction != 0 {
		r.actions.SubmitAction(devID, actID, param1, param2)
		return
	}
	r.actions.SubmitStatus(devID, []StatusPair{{ID: actID, Value: param1}})
}
