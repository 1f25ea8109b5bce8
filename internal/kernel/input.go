package kernel

// input.go is the input-event queue behind read_input_event (spec.md §6):
// a bounded FIFO of 32-byte wire records covering both keyboard and mouse
// state. Generalized from internal/vm/kbd.go's single-key device register
// idiom into a queue, since RV64 guests poll a syscall rather than reading
// a memory-mapped status/data register pair.

const (
	inputEventSize  = 32
	inputQueueDepth = 64

	eventKindMouse    = 0
	eventKindKeyboard = 1
)

// InputEvent is a decoded input-event record (spec.md §6's wire format).
type InputEvent struct {
	Kind     byte // 0 mouse, 1 keyboard
	SubKind  byte // mouse: 0 down, 1 up, 2 move; keyboard: 0 press, 1 release
	Button   byte
	X        int32
	Y        int32
	Modifier byte
}

// Encode packs e into the 32-byte wire format.
func (e InputEvent) Encode() [inputEventSize]byte {
	var buf [inputEventSize]byte

	buf[0] = e.Kind
	buf[4] = e.SubKind
	buf[5] = e.Button
	buf[6] = byte(e.X)
	buf[7] = byte(e.X >> 8)
	buf[8] = byte(e.X >> 16)
	buf[9] = byte(e.X >> 24)
	buf[10] = byte(e.Y)
	buf[11] = byte(e.Y >> 8)
	buf[12] = byte(e.Y >> 16)
	buf[13] = byte(e.Y >> 24)
	buf[14] = e.Modifier

	return buf
}

// InputQueue is a bounded FIFO of pending input events.
type InputQueue struct {
	events []InputEvent
}

// Push enqueues an event, dropping the oldest if the queue is full. Host
// input forwarding (internal/tty's Console, started by internal/cli/cmd/run.go's
// -interactive mode) calls this for every
// keystroke or mouse action while the guest isn't consuming them fast
// enough; dropping stale events is preferable to unbounded growth.
func (q *InputQueue) Push(e InputEvent) {
	if len(q.events) >= inputQueueDepth {
		q.events = q.events[1:]
	}

	q.events = append(q.events, e)
}

// ReadInputEvent implements read_input_event: pops the oldest pending event
// and writes its wire encoding into guest memory at ptr. Returns the record
// size (32) on success, or would_block if no event is pending.
func (q *InputQueue) ReadInputEvent(mem GuestWriter, ptr uint64) (int64, error) {
	if len(q.events) == 0 {
		return 0, Fail("read_input_event", ErrWouldBlock)
	}

	e := q.events[0]
	q.events = q.events[1:]

	enc := e.Encode()

	if _, err := mem.WriteGuest(ptr, enc[:]); err != nil {
		return 0, Fail("read_input_event", ErrInvalidAddress)
	}

	return inputEventSize, nil
}
