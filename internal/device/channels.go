package device

import (
	"context"
	"fmt"
)

// ActSwitchChannel is the action id media drivers implement for channel
// switching. Param2 carries the channel number.
const ActSwitchChannel uint16 = 0x0100

// Channels returns a device's channel presets in insertion order.
func (r *Registry) Channels(devID uint32) ([]Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, ok := r.online[devID]
	if !ok {
		return nil, fmt.Errorf("device %d: %w", devID, ErrNotFound)
	}
	if dev.Info.Class&ClassMedia == 0 {
		return nil, fmt.Errorf("device %d channels: %w", devID, ErrNotSupported)
	}

	channels := make([]Channel, len(dev.Channels))
	copy(channels, dev.Channels)
	return channels, nil
}

// SetChannel adds a channel preset, or updates the channel number of an
// existing preset with the same name, keeping its position.
func (r *Registry) SetChannel(ctx context.Context, devID uint32, name string, cid uint32) error {
	name = truncateName(name)
	if name == "" {
		return fmt.Errorf("empty channel name: %w", ErrBadParam)
	}

	r.mu.Lock()
	dev, ok := r.online[devID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("device %d: %w", devID, ErrNotFound)
	}
	if dev.Info.Class&ClassMedia == 0 {
		r.mu.Unlock()
		return fmt.Errorf("device %d channels: %w", devID, ErrNotSupported)
	}

	updated := false
	for i := range dev.Channels {
		if dev.Channels[i].Name == name {
			dev.Channels[i].CID = cid
			updated = true
			break
		}
	}
	if !updated {
		dev.Channels = append(dev.Channels, Channel{Name: name, CID: cid})
	}
	snapshot := dev.DeepCopy()
	r.mu.Unlock()

	r.persistDevice(ctx, snapshot)
	return nil
}

// DelChannel removes a channel preset by name.
func (r *Registry) DelChannel(ctx context.Context, devID uint32, name string) error {
	name = truncateName(name)

	r.mu.Lock()
	dev, ok := r.online[devID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("device %d: %w", devID, ErrNotFound)
	}
	if dev.Info.Class&ClassMedia == 0 {
		r.mu.Unlock()
		return fmt.Errorf("device %d channels: %w", devID, ErrNotSupported)
	}

	found := false
	for i := range dev.Channels {
		if dev.Channels[i].Name == name {
			dev.Channels = append(dev.Channels[:i], dev.Channels[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		r.mu.Unlock()
		return fmt.Errorf("channel %q: %w", name, ErrNotFound)
	}
	snapshot := dev.DeepCopy()
	r.mu.Unlock()

	r.persistDevice(ctx, snapshot)
	return nil
}

// SwitchChannel looks up a preset by name and tunes the device to it.
func (r *Registry) SwitchChannel(ctx context.Context, devID uint32, name string) error {
	name = truncateName(name)

	r.mu.RLock()
	dev, ok := r.online[devID]
	if !ok {
		r.mu.RUnlock()
		return fmt.Errorf("device %d: %w", devID, ErrNotFound)
	}
	var cid uint32
	found := false
	for _, ch := range dev.Channels {
		if ch.Name == name {
			cid = ch.CID
			found = true
			break
		}
	}
	r.mu.RUnlock()

	if !found {
		return fmt.Errorf("channel %q: %w", name, ErrNotFound)
	}
	return r.SetAction(ctx, devID, ActSwitchChannel, 0, cid)
}
