// Termtest is a testing tool for Unix terminal I/O. Lacking simple PTY support, running this tool
// manually is easier than writing a automated test.
package main

import (
	"context"
	"log"
	"time"

	"github.com/basin-os/basin/internal/kernel"
	"github.com/basin-os/basin/internal/tty"
)

func main() {
	ctx := context.Background()

	var input kernel.InputQueue

	ctx, console, cancel := tty.ConsoleContext(ctx, &input)
	defer cancel()

	log.SetOutput(console.Writer())

	poll := time.Tick(100 * time.Millisecond)
	timeout := time.After(5 * time.Second)

	select {
	case <-ctx.Done():
		log.Fatal(context.Cause(ctx))
	default:
	}

	log.Printf("polling input queue")

	var guest loggingGuest

	for {
		select {
		case <-poll:
			if _, err := input.ReadInputEvent(&guest, 0); err != nil {
				continue
			}

			log.Printf("key: %x", guest.buf[5])
		case <-timeout:
			cancel()
			return
		case <-ctx.Done():
			log.Printf("done: %s", ctx.Err())
			return
		}
	}
}

// loggingGuest is a single-slot GuestWriter standing in for guest memory:
// termtest has no VM to write into, it only needs the decoded wire bytes.
type loggingGuest struct {
	buf []byte
}

func (g *loggingGuest) WriteGuest(vaddr uint64, data []byte) (int, error) {
	g.buf = append([]byte(nil), data...)
	return len(data), nil
}
