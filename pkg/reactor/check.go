package reactor

// Check is a handle whose callback runs once per loop iteration, after the
// iteration's events have been processed. A started check keeps the loop
// alive.
type Check struct {
	loop       *Loop
	cb         func(*Check)
	active     bool
	registered bool
}

// NewCheck creates a stopped check handle.
func (l *Loop) NewCheck() *Check {
	return &Check{loop: l}
}

// Start begins invoking cb every iteration. Starting an active check only
// replaces its callback.
func (c *Check) Start(cb func(*Check)) {
	c.cb = cb
	if c.active {
		return
	}
	c.active = true
	c.loop.active++
	if !c.registered {
		c.registered = true
		c.loop.checks = append(c.loop.checks, c)
	}
}

// Stop stops the check. Stopping a stopped check does nothing.
func (c *Check) Stop() {
	if !c.active {
		return
	}
	c.active = false
	c.loop.active--
}

// Active reports whether the check is started.
func (c *Check) Active() bool { return c.active }
