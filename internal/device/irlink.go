package device

// relinkAllLocked recomputes infrared links across the online queue.
//
// An infrared device is served by the remote controller in its own
// location. The link is derived state: it holds only while exactly one
// online remote controller has the same non-empty location, and is
// recomputed whenever the online set or a location changes. Callers
// hold the write lock.
func (r *Registry) relinkAllLocked() {
	remotes := make(map[string][]uint32)
	for _, id := range r.order {
		dev := r.online[id]
		if dev.Info.Type == TypeRemoteController && dev.Config.Location != "" {
			remotes[dev.Config.Location] = append(remotes[dev.Config.Location], dev.ID)
		}
	}

	for _, id := range r.order {
		dev := r.online[id]
		dev.IRLink = 0
		if dev.Info.DriverID != IRDriverID || dev.Info.Type == TypeRemoteController {
			continue
		}
		if dev.Config.Location == "" {
			continue
		}
		if ids := remotes[dev.Config.Location]; len(ids) == 1 {
			dev.IRLink = ids[0]
		}
	}
}

// RemoteFor returns the id of the remote controller linked to a device,
// or 0 when none is linked.
func (r *Registry) RemoteFor(devID uint32) uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if dev, ok := r.online[devID]; ok {
		return dev.IRLink
	}
	return 0
}
