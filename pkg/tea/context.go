package tea

import (
	"fmt"
	"sync"
)

// Position is a 1-based terminal cell coordinate.
type Position struct {
	Row, Col int
}

// CUP returns the escape sequence that moves the cursor to p.
func (p Position) CUP() string {
	return fmt.Sprintf("\x1b[%d;%dH", p.Row, p.Col)
}

// Snapshot is a copy of the RenderContext taken under its read lock.
type Snapshot struct {
	Width, Height int
	Home          Position
	Cursor        Position
	Terminating   bool
}

// RenderContext is the state shared between handlers, commands and the
// render step. Readers block writers; only the loop goroutine writes.
type RenderContext struct {
	mu          sync.RWMutex
	width       int
	height      int
	home        Position
	cursor      Position
	terminating bool
}

// Snapshot returns a consistent copy of the context.
func (c *RenderContext) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Width:       c.width,
		Height:      c.height,
		Home:        c.home,
		Cursor:      c.cursor,
		Terminating: c.terminating,
	}
}

// Terminating reports whether termination has been requested.
func (c *RenderContext) Terminating() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.terminating
}

func (c *RenderContext) setSize(width, height int) {
	c.mu.Lock()
	c.width, c.height = width, height
	c.mu.Unlock()
}

func (c *RenderContext) setHome(p Position) {
	c.mu.Lock()
	c.home, c.cursor = p, p
	c.mu.Unlock()
}

// terminate sets the terminating flag and reports whether it was already
// set. The flag is never cleared.
func (c *RenderContext) terminate() (already bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	already = c.terminating
	c.terminating = true
	return already
}
