// Package tty_test tries to test consoles.
//
// The test is skipped when stdin is not a terminal (ErrNoTTY). Notably, this includes when run with
// "go test" because it redirects tests' standard input/output streams. You can test it by building
// a test binary and running it directly:
//
//	$ go test -c && ./tty.test
package tty_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/basin-os/basin/internal/kernel"
	"github.com/basin-os/basin/internal/tty"
)

const timeout = 100 * time.Millisecond

type fakeGuest struct {
	buf []byte
}

func (g *fakeGuest) WriteGuest(vaddr uint64, data []byte) (int, error) {
	g.buf = append([]byte(nil), data...)
	return len(data), nil
}

func TestConsole_ForwardsKeystrokes(tt *testing.T) {
	ctx := context.Background()
	ctx, cancel := context.WithTimeoutCause(ctx, timeout, context.DeadlineExceeded)
	defer cancel()

	var input kernel.InputQueue

	ctx, console, done := tty.ConsoleContext(ctx, &input)
	defer done()

	if err := context.Cause(ctx); errors.Is(err, tty.ErrNoTTY) {
		tt.Skipf("error: %s", context.Cause(ctx))
	}

	console.Press('!')

	time.Sleep(10 * time.Millisecond)

	var guest fakeGuest

	n, err := input.ReadInputEvent(&guest, 0)
	if err != nil {
		tt.Fatalf("read input event: %s", err)
	}

	if n != 32 {
		tt.Errorf("want event size 32, got %d", n)
	}

	if guest.buf[0] != 1 || guest.buf[5] != '!' {
		tt.Errorf("want keyboard press '!' encoded, got %v", guest.buf)
	}
}
