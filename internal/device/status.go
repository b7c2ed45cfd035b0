package device

import (
	"context"
	"fmt"
)

// StatusWorkMode is the status id carrying the hub operating mode.
// Writing it to device id 0 switches the hub's work mode.
const StatusWorkMode uint16 = 0

// GetStatus reads a device's status from its driver and refreshes the
// cached vector. Device id 0 addresses the hub and returns the current
// work mode.
func (r *Registry) GetStatus(ctx context.Context, devID uint32) ([]StatusPair, error) {
	if devID == 0 {
		return []StatusPair{{ID: StatusWorkMode, Value: uint16(r.WorkMode())}}, nil
	}

	dev, drv, err := r.deviceAndDriver(devID)
	if err != nil {
		return nil, err
	}

	pairs, err := drv.GetStatus(ctx, dev)
	if err != nil {
		return nil, fmt.Errorf("device %d get status: %w", devID, err)
	}

	r.syncStatus(devID, pairs)
	return clonePairs(pairs), nil
}

// SetStatus writes status pairs to a device through its driver and, on
// success, updates the cache and notifies clients. Writing the work
// mode status to device id 0 switches the hub's operating mode.
func (r *Registry) SetStatus(ctx context.Context, devID uint32, pairs []StatusPair) error {
	if len(pairs) == 0 || len(pairs) > MaxStatusSlots {
		return fmt.Errorf("%d status pairs: %w", len(pairs), ErrBadParam)
	}

	if devID == 0 {
		if pairs[0].ID != StatusWorkMode {
			return fmt.Errorf("hub status %d: %w", pairs[0].ID, ErrBadParam)
		}
		return r.SetWorkMode(ctx, WorkMode(pairs[0].Value))
	}

	dev, drv, err := r.deviceAndDriver(devID)
	if err != nil {
		return err
	}

	if err := drv.SetStatus(ctx, dev, pairs); err != nil {
		return fmt.Errorf("device %d set status: %w", devID, err)
	}

	r.syncStatus(devID, pairs)
	r.notifyStatus(devID, pairs)
	return nil
}

// SetAction performs a device action through its driver.
func (r *Registry) SetAction(ctx context.Context, devID uint32, actID uint16, param1 uint16, param2 uint32) error {
	dev, drv, err := r.deviceAndDriver(devID)
	if err != nil {
		return err
	}

	if err := drv.SetAction(ctx, dev, actID, param1, param2); err != nil {
		return fmt.Errorf("device %d action %d: %w", devID, actID, err)
	}
	return nil
}

// CachedStatus returns the cached status vector without touching the
// driver. Scene conditions evaluate against this snapshot.
func (r *Registry) CachedStatus(devID uint32) ([]StatusPair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, ok := r.online[devID]
	if !ok {
		return nil, fmt.Errorf("device %d: %w", devID, ErrNotFound)
	}
	return clonePairs(dev.Status), nil
}

// ReportStatus records an unsolicited status change from a driver and
// notifies clients. Each changed pair also enters the event pipeline as
// a status-updated event, so linkages and delays can trigger on it.
// Part of the Core callback surface.
func (r *Registry) ReportStatus(ctx context.Context, devID uint32, pairs []StatusPair) {
	r.syncStatus(devID, pairs)
	r.notifyStatus(devID, pairs)
	for _, p := range pairs {
		r.notifyEvent(Event{DevID: devID, ID: EvtStatusUpdated, Param1: p.ID, Param2: uint32(p.Value)})
	}
}

// ReportEvent delivers a driver event into the notification and
// automation pipeline. Part of the Core callback surface.
func (r *Registry) ReportEvent(ctx context.Context, evt Event) {
	r.logger.Debug("device event", "dev_id", evt.DevID, "evt_id", evt.ID, "param1", evt.Param1, "param2", evt.Param2)
	r.notifyEvent(evt)
}

// deviceAndDriver resolves an online device and its driver, returning a
// device copy safe to hand to the driver outside the registry lock.
func (r *Registry) deviceAndDriver(devID uint32) (*Device, Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, ok := r.online[devID]
	if !ok {
		return nil, nil, fmt.Errorf("device %d: %w", devID, ErrNotFound)
	}
	drv, ok := r.drivers[dev.Info.DriverID]
	if !ok {
		return nil, nil, fmt.Errorf("driver %d: %w", dev.Info.DriverID, ErrNotFound)
	}
	return dev.DeepCopy(), drv, nil
}

// syncStatus folds pairs into the cached status vector. Pairs beyond
// the slot capacity are ignored.
func (r *Registry) syncStatus(devID uint32, pairs []StatusPair) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, ok := r.online[devID]
	if !ok {
		return
	}

	for _, p := range pairs {
		if p.ID >= MaxStatusSlots {
			continue
		}
		updated := false
		for i := range dev.Status {
			if dev.Status[i].ID == p.ID {
				dev.Status[i].Value = p.Value
				updated = true
				break
			}
		}
		if !updated && len(dev.Status) < MaxStatusSlots {
			dev.Status = append(dev.Status, p)
		}
	}
}
