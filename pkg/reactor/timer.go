package reactor

import "time"

// Timer fires its callback once on the loop goroutine after a delay. An
// armed timer keeps the loop alive.
type Timer struct {
	loop   *Loop
	timer  *time.Timer
	gen    int
	active bool
}

// NewTimer creates a stopped timer.
func (l *Loop) NewTimer() *Timer {
	return &Timer{loop: l}
}

// Start arms the timer, replacing any previous arming.
func (t *Timer) Start(d time.Duration, cb func()) {
	t.Stop()
	t.active = true
	t.loop.active++
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(d, func() {
		t.loop.Post(func() {
			if !t.active || t.gen != gen {
				return
			}
			t.active = false
			t.loop.active--
			cb()
		})
	})
}

// Stop disarms the timer. Stopping a stopped timer does nothing.
func (t *Timer) Stop() {
	if !t.active {
		return
	}
	t.active = false
	t.loop.active--
	t.gen++
	t.timer.Stop()
}

// Active reports whether the timer is armed.
func (t *Timer) Active() bool { return t.active }
