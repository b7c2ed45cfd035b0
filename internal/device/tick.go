package device

import "time"

// Tick advances the timer and delay checkers. It is driven at one-second
// resolution by the hub's main ticker.
//
// A timer fires when it is active, not yet fired today, its mode mask
// includes the current work mode, its weekday or date rule matches, and
// the wall clock is within the fire window past its scheduled second.
// Date timers deactivate after firing; weekday timers re-arm at the next
// day rollover.
//
// A backwards jump of seconds-since-midnight landing inside the rollover
// window is treated as midnight, re-deriving each timer's fired state
// for the new day. Larger backwards jumps (manual clock changes) are
// ignored rather than re-firing every timer.
func (r *Registry) Tick(now time.Time) {
	type firing struct {
		flag   uint8
		devID  uint32
		actID  uint16
		param1 uint16
		param2 uint32
	}
	var fires []firing

	r.mu.Lock()

	secToday := now.Hour()*3600 + now.Minute()*60 + now.Second()
	rollover := r.prevSecToday >= 0 && secToday < r.prevSecToday && secToday < r.rolloverWindow
	r.prevSecToday = secToday

	mask := r.workMode.Mask()

	for _, id := range r.order {
		dev := r.online[id]

		for i := range dev.Timers {
			t := &dev.Timers[i]
			if !t.Active() {
				continue
			}
			if rollover {
				t.expired = !timerMatchesDay(t, now)
			}
			if t.expired || t.WorkMode&mask == 0 || !timerMatchesDay(t, now) {
				continue
			}
			secTimer := int(t.Hour)*3600 + int(t.Min)*60 + int(t.Sec)
			if secToday < secTimer || secToday-secTimer > r.fireWindow {
				continue
			}

			fires = append(fires, firing{t.Flag, dev.ID, t.ActID, t.ActParam1, t.ActParam2})
			if t.Weekday&OneShotWeekdayBit != 0 {
				t.Flag &^= FlagActive
			} else {
				t.expired = true
			}
		}

		for i := range dev.Delays {
			d := &dev.Delays[i]
			if !d.Active() || !d.started || d.WorkMode&mask == 0 {
				continue
			}
			if now.Sub(d.startTime) < time.Duration(d.DelaySec)*time.Second {
				continue
			}

			fires = append(fires, firing{d.Flag, dev.ID, d.ActID, d.ActParam1, d.ActParam2})
			d.started = false
		}
	}
	r.mu.Unlock()

	for _, f := range fires {
		r.fireAutomation(f.flag, f.devID, f.actID, f.param1, f.param2)
	}
}

// timerMatchesDay reports whether the timer's weekday or date rule
// matches the given day.
func timerMatchesDay(t *Timer, now time.Time) bool {
	if t.Weekday&OneShotWeekdayBit != 0 {
		return int(t.Year)+1900 == now.Year() &&
			int(t.Month)+1 == int(now.Month()) &&
			int(t.Day) == now.Day()
	}
	return t.Weekday&(1<<uint(now.Weekday())) != 0
}
