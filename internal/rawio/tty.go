package rawio

import (
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// ttyState is the termios Acquire needs to restore on Release. It is nil
// when stdin isn't a terminal, in which case snapshotTTYState/
// restoreTTYState are no-ops — the gate must never fail to construct just
// because it's running without a controlling terminal.
type ttyState struct {
	fd      int
	termios *unix.Termios
}

// snapshotTTYState records stdin's current termios via the same
// IoctlGetTermios call internal/tty's Console uses, so a raw-mode switch
// made elsewhere in the process while the gate is held can be undone.
func snapshotTTYState() *ttyState {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}

	termios, err := unix.IoctlGetTermios(fd, getTermiosIoctl)
	if err != nil {
		return nil
	}

	return &ttyState{fd: fd, termios: termios}
}

// restoreTTYState restores a snapshot taken by snapshotTTYState. A nil
// snapshot (no TTY, or one that failed to capture) is a no-op.
func restoreTTYState(snap *ttyState) {
	if snap == nil {
		return
	}

	_ = unix.IoctlSetTermios(snap.fd, setTermiosIoctl, snap.termios)
}
