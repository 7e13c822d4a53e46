package rates

// Window counts events in fixed windows of ticks.
type Window struct {
	Start uint64
	Count int
}

// Allow records one event at nowTick and reports whether it fits within max
// events per window ticks. When it does not, cooldown is the number of ticks
// until the window resets. A zero window or max disables the limit.
func (w *Window) Allow(nowTick, window uint64, max int) (ok bool, cooldown uint64) {
	if window == 0 || max <= 0 {
		return true, 0
	}
	if nowTick < w.Start || nowTick-w.Start >= window {
		w.Start = nowTick
		w.Count = 0
	}
	w.Count++
	if w.Count <= max {
		return true, 0
	}
	return false, (w.Start + window) - nowTick
}
