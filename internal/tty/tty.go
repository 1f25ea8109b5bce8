// Package tty adapts a host terminal into basin's guest input queue.
package tty

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/basin-os/basin/internal/kernel"
	"github.com/basin-os/basin/internal/rawio"
	"golang.org/x/term"
)

// Console forwards host keystrokes into a kernel.InputQueue while stdin is
// in raw mode. Grounded on the teacher's Console, with the display-forwarding
// half dropped: basin's framebuffer is a pixel buffer, not a character
// stream, and syncing it to a host window is the windowing shim's job, out
// of scope here (spec.md §1's Non-goals).
type Console struct {
	in    *os.File
	out   *term.Terminal
	fd    int
	state *term.State
	keyCh chan byte
}

// ErrNoTTY is returned if standard input is not a terminal, or if the RawIO
// gate is currently disabled (tests run with it disabled precisely to avoid
// this kind of host side effect).
var ErrNoTTY error = errors.New("console: not a TTY")

// ConsoleContext creates a Console reading os.Stdin and forwarding every
// byte read to input as a keyboard-press event. Calling the returned cancel
// restores the terminal and stops the forwarding goroutines.
func ConsoleContext(parent context.Context, input *kernel.InputQueue) (
	context.Context, *Console, context.CancelFunc,
) {
	ctx, cause := context.WithCancelCause(parent)

	console, err := NewConsole(os.Stdin)
	if err != nil {
		cause(err)

		return ctx, console, func() { cause(err) }
	}

	go console.readTerminal(ctx, cause)
	go console.updateInput(ctx, input)

	return ctx, console, func() {
		console.Restore()
		cause(context.Canceled)
	}
}

// NewConsole puts sin into raw mode and returns a Console reading from it.
// If sin is not a terminal, or the RawIO gate is disabled, ErrNoTTY is
// returned. Callers are responsible for calling Restore.
func NewConsole(sin *os.File) (*Console, error) {
	fd := int(sin.Fd())

	if !term.IsTerminal(fd) {
		return nil, ErrNoTTY
	}

	if !rawio.Enabled() {
		return nil, ErrNoTTY
	}

	// term.MakeRaw's termios defaults (VMIN=1, VTIME=0) already deliver one
	// byte per read with no further tuning, so unlike the teacher's Console
	// there's no separate ioctl call here to set those fields by hand.
	saved, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoTTY, err)
	}

	return &Console{
		fd:    fd,
		in:    sin,
		out:   term.NewTerminal(sin, ""),
		state: saved,
		keyCh: make(chan byte, 1),
	}, nil
}

// Press injects a key press into the input stream, for tests that can't
// drive a real terminal.
func (c Console) Press(key byte) {
	c.keyCh <- key
}

// Writer returns an io.Writer that writes to the terminal, translating
// newlines the way raw mode needs (no implicit carriage return).
func (c Console) Writer() io.Writer {
	return c.out
}

// Restore returns the terminal to its initial state.
func (c *Console) Restore() {
	_ = term.Restore(c.fd, c.state)
}

// readTerminal reads bytes from the terminal and writes them to the key
// channel until the context is cancelled.
func (c Console) readTerminal(ctx context.Context, cancel context.CancelCauseFunc) {
	buf := bufio.NewReader(c.in)

	for { // ever and ever
		select {
		case <-ctx.Done():
			return
		default:
		}

		b, err := buf.ReadByte()
		if err != nil {
			cancel(err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case c.keyCh <- b:
		}
	}
}

// updateInput takes keys from the key channel and pushes a keyboard-press
// event for each into the kernel's input queue.
func (c Console) updateInput(ctx context.Context, input *kernel.InputQueue) {
	for { // you, a gift.
		select {
		case <-ctx.Done():
			return
		case key := <-c.keyCh:
			input.Push(kernel.InputEvent{Kind: 1, SubKind: 0, Button: key})
		}
	}
}
