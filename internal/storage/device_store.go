package storage

import (
	"context"
	"fmt"

	"github.com/qubit-star/hsb-core/internal/device"
)

// SaveDevice writes a device and all its dependent records in one
// transaction. Dependent rows are replaced wholesale; devices carry at
// most eight slots per table, so a rewrite is cheaper than diffing.
func (s *Store) SaveDevice(ctx context.Context, dev *device.Device) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning save of device %d: %w", dev.ID, err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO devices (dev_id, driver_id, mac, dev_type, class, interface, name, location)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (dev_id) DO UPDATE SET
			driver_id = excluded.driver_id,
			mac = excluded.mac,
			dev_type = excluded.dev_type,
			class = excluded.class,
			interface = excluded.interface,
			name = excluded.name,
			location = excluded.location`,
		dev.ID, dev.Info.DriverID, dev.Info.MAC[:], dev.Info.Type,
		dev.Info.Class, dev.Info.Interface, dev.Config.Name, dev.Config.Location,
	); err != nil {
		return fmt.Errorf("saving device %d: %w", dev.ID, err)
	}

	for _, table := range []string{"channels", "timers", "delays", "linkages"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE dev_id = ?", dev.ID); err != nil {
			return fmt.Errorf("clearing %s of device %d: %w", table, dev.ID, err)
		}
	}

	for pos, ch := range dev.Channels {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO channels (dev_id, position, name, cid) VALUES (?, ?, ?, ?)",
			dev.ID, pos, ch.Name, ch.CID,
		); err != nil {
			return fmt.Errorf("saving channel %q of device %d: %w", ch.Name, dev.ID, err)
		}
	}

	for slot := range dev.Timers {
		t := &dev.Timers[slot]
		if !t.Active() {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO timers (dev_id, slot, work_mode, flag, hour, min, sec, wday, year, mon, mday, act_id, act_param1, act_param2)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			dev.ID, slot, t.WorkMode, t.Flag, t.Hour, t.Min, t.Sec, t.Weekday,
			t.Year, t.Month, t.Day, t.ActID, t.ActParam1, t.ActParam2,
		); err != nil {
			return fmt.Errorf("saving timer %d of device %d: %w", slot, dev.ID, err)
		}
	}

	for slot := range dev.Delays {
		d := &dev.Delays[slot]
		if !d.Active() {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO delays (dev_id, slot, work_mode, flag, evt_id, evt_param1, evt_param2, act_id, act_param1, act_param2, delay_sec)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			dev.ID, slot, d.WorkMode, d.Flag, d.EvtID, d.EvtParam1, d.EvtParam2,
			d.ActID, d.ActParam1, d.ActParam2, d.DelaySec,
		); err != nil {
			return fmt.Errorf("saving delay %d of device %d: %w", slot, dev.ID, err)
		}
	}

	for slot := range dev.Linkages {
		l := &dev.Linkages[slot]
		if !l.Active() {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO linkages (dev_id, slot, work_mode, flag, evt_id, evt_param1, evt_param2, act_dev_id, act_id, act_param1, act_param2)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			dev.ID, slot, l.WorkMode, l.Flag, l.EvtID, l.EvtParam1, l.EvtParam2,
			l.ActDevID, l.ActID, l.ActParam1, l.ActParam2,
		); err != nil {
			return fmt.Errorf("saving linkage %d of device %d: %w", slot, dev.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing save of device %d: %w", dev.ID, err)
	}
	return nil
}

// DeleteDevice removes a device; dependent rows cascade.
func (s *Store) DeleteDevice(ctx context.Context, devID uint32) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM devices WHERE dev_id = ?", devID); err != nil {
		return fmt.Errorf("deleting device %d: %w", devID, err)
	}
	return nil
}

// LoadDevices reassembles every persisted device record.
func (s *Store) LoadDevices(ctx context.Context) ([]*device.Device, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dev_id, driver_id, mac, dev_type, class, interface, name, location
		FROM devices ORDER BY dev_id`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	byID := make(map[uint32]*device.Device)
	var devices []*device.Device
	for rows.Next() {
		dev := &device.Device{}
		var mac []byte
		if err := rows.Scan(&dev.ID, &dev.Info.DriverID, &mac, &dev.Info.Type,
			&dev.Info.Class, &dev.Info.Interface, &dev.Config.Name, &dev.Config.Location,
		); err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		copy(dev.Info.MAC[:], mac)
		byID[dev.ID] = dev
		devices = append(devices, dev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	if err := s.loadChannels(ctx, byID); err != nil {
		return nil, err
	}
	if err := s.loadTimers(ctx, byID); err != nil {
		return nil, err
	}
	if err := s.loadDelays(ctx, byID); err != nil {
		return nil, err
	}
	if err := s.loadLinkages(ctx, byID); err != nil {
		return nil, err
	}
	return devices, nil
}

func (s *Store) loadChannels(ctx context.Context, byID map[uint32]*device.Device) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT dev_id, name, cid FROM channels ORDER BY dev_id, position")
	if err != nil {
		return fmt.Errorf("querying channels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var devID uint32
		var ch device.Channel
		if err := rows.Scan(&devID, &ch.Name, &ch.CID); err != nil {
			return fmt.Errorf("scanning channel row: %w", err)
		}
		if dev, ok := byID[devID]; ok {
			dev.Channels = append(dev.Channels, ch)
		}
	}
	return rows.Err()
}

func (s *Store) loadTimers(ctx context.Context, byID map[uint32]*device.Device) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dev_id, slot, work_mode, flag, hour, min, sec, wday, year, mon, mday, act_id, act_param1, act_param2
		FROM timers`)
	if err != nil {
		return fmt.Errorf("querying timers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var devID uint32
		var slot int
		var t device.Timer
		if err := rows.Scan(&devID, &slot, &t.WorkMode, &t.Flag, &t.Hour, &t.Min, &t.Sec,
			&t.Weekday, &t.Year, &t.Month, &t.Day, &t.ActID, &t.ActParam1, &t.ActParam2,
		); err != nil {
			return fmt.Errorf("scanning timer row: %w", err)
		}
		if dev, ok := byID[devID]; ok && slot >= 0 && slot < device.MaxTimers {
			dev.Timers[slot] = t
		}
	}
	return rows.Err()
}

func (s *Store) loadDelays(ctx context.Context, byID map[uint32]*device.Device) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dev_id, slot, work_mode, flag, evt_id, evt_param1, evt_param2, act_id, act_param1, act_param2, delay_sec
		FROM delays`)
	if err != nil {
		return fmt.Errorf("querying delays: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var devID uint32
		var slot int
		var d device.Delay
		if err := rows.Scan(&devID, &slot, &d.WorkMode, &d.Flag, &d.EvtID, &d.EvtParam1,
			&d.EvtParam2, &d.ActID, &d.ActParam1, &d.ActParam2, &d.DelaySec,
		); err != nil {
			return fmt.Errorf("scanning delay row: %w", err)
		}
		if dev, ok := byID[devID]; ok && slot >= 0 && slot < device.MaxDelays {
			dev.Delays[slot] = d
		}
	}
	return rows.Err()
}

func (s *Store) loadLinkages(ctx context.Context, byID map[uint32]*device.Device) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dev_id, slot, work_mode, flag, evt_id, evt_param1, evt_param2, act_dev_id, act_id, act_param1, act_param2
		FROM linkages`)
	if err != nil {
		return fmt.Errorf("querying linkages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var devID uint32
		var slot int
		var l device.Linkage
		if err := rows.Scan(&devID, &slot, &l.WorkMode, &l.Flag, &l.EvtID, &l.EvtParam1,
			&l.EvtParam2, &l.ActDevID, &l.ActID, &l.ActParam1, &l.ActParam2,
		); err != nil {
			return fmt.Errorf("scanning linkage row: %w", err)
		}
		if dev, ok := byID[devID]; ok && slot >= 0 && slot < device.MaxLinkages {
			dev.Linkages[slot] = l
		}
	}
	return rows.Err()
}

// SaveBoxState persists the hub's work mode and id counter.
func (s *Store) SaveBoxState(ctx context.Context, mode device.WorkMode, nextID uint32) error {
	if _, err := s.db.ExecContext(ctx,
		"UPDATE box_state SET work_mode = ?, next_dev_id = ? WHERE id = 1",
		mode, nextID,
	); err != nil {
		return fmt.Errorf("saving box state: %w", err)
	}
	return nil
}

// LoadBoxState reads the hub's work mode and id counter.
func (s *Store) LoadBoxState(ctx context.Context) (device.WorkMode, uint32, error) {
	var mode device.WorkMode
	var nextID uint32
	if err := s.db.QueryRowContext(ctx,
		"SELECT work_mode, next_dev_id FROM box_state WHERE id = 1",
	).Scan(&mode, &nextID); err != nil {
		return 0, 0, fmt.Errorf("loading box state: %w", err)
	}
	return mode, nextID, nil
}
