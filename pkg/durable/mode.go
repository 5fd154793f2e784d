// Package durable wraps side-effecting operations so they can be
// re-executed after a crash without repeating the external effect:
// during live execution every call is recorded to an invocation log,
// and after a restart the same calls are satisfied from the log until
// it is exhausted, at which point the worker switches to live execution
// for good.
package durable

import "sync"

// Mode is the execution mode of a worker instance.
type Mode int

const (
	// Live mode: operations actually run against their real external
	// dependency and are logged.
	Live Mode = iota

	// Replay mode: operations are satisfied from a previously recorded
	// log instead of running again.
	Replay
)

func (m Mode) String() string {
	if m == Replay {
		return "replay"
	}
	return "live"
}

// ModeController tracks whether a worker is in Live or Replay mode.
// The only transition is Replay -> Live, taken at most once per worker
// lifetime when the log is exhausted. One controller is owned by one
// worker; it is never process-global, so multiple simulated workers can
// coexist in one process.
type ModeController struct {
	mu     sync.Mutex
	mode   Mode
	cursor uint64 // records consumed so far; meaningful in Replay only
}

// NewModeController creates a controller starting in the given mode.
func NewModeController(initial Mode) *ModeController {
	return &ModeController{mode: initial}
}

// Mode returns the current execution mode.
func (c *ModeController) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Cursor returns how many records have been consumed during replay.
func (c *ModeController) Cursor() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// advanceCursor bumps the replay cursor after a record is consumed.
func (c *ModeController) advanceCursor() {
	c.mu.Lock()
	c.cursor++
	c.mu.Unlock()
}

// switchToLive performs the irreversible Replay -> Live transition.
// Returns true if this call performed the switch.
func (c *ModeController) switchToLive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == Live {
		return false
	}
	c.mode = Live
	return true
}
