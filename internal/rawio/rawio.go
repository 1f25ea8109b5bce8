// Package rawio provides the RawIO gate: a process-wide enabled/disabled
// toggle that silences host terminal I/O during tests, with a scoped
// acquisition that restores both the gate and stdin's terminal state as it
// was when the gate was acquired.
//
// Grounded on internal/tty.Console's state/Restore pairing, generalized from
// "one console owns the terminal for its lifetime" to "any number of callers
// may acquire and release the gate, always leaving it exactly as they found
// it."
package rawio

import (
	"errors"
	"sync"
)

// ErrNoTTY is returned by callers that need a controlling terminal (e.g.
// interactive keystroke forwarding) when stdin isn't one, or when the gate
// is already disabled. Named after internal/tty.ErrNoTTY.
var ErrNoTTY = errors.New("rawio: not a TTY")

var (
	mu      sync.Mutex
	enabled = true
)

// Enabled reports whether host I/O is currently permitted. Code that would
// perform a terminal ioctl, raw-mode switch, or other host-visible I/O
// should check this first and skip the call when it reports false.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()

	return enabled
}

// Release restores the gate (and, if Acquire snapshotted stdin's terminal
// state, the terminal) to the state it held before the matching Acquire call.
// Acquire itself does not change the terminal mode. It is
// safe to call more than once; only the first call has an effect.
type Release func()

// Acquire disables host I/O for the scope of the caller, snapshotting stdin's
// terminal state first if the gate was enabled and stdin is a TTY. The
// returned Release must run on every exit path — callers should `defer
// gate()` immediately — to guarantee the gate and terminal are restored even
// if the caller panics.
func Acquire() Release {
	mu.Lock()
	prev := enabled
	var snap *ttyState
	if prev {
		snap = snapshotTTYState()
	}
	enabled = false
	mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			mu.Lock()
			enabled = prev
			mu.Unlock()

			if prev {
				restoreTTYState(snap)
			}
		})
	}
}
