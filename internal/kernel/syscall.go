package kernel

// syscall.go is the syscall dispatcher (spec.md §4.11): a flat number space
// carried in the RV64 a7/a0..a3 convention, routed to the table methods the
// rest of this package implements. Grounded on internal/monitor/traps.go's
// trap-vector dispatch idiom, re-targeted from LC-3's TRAP vector table in
// guest memory to a single native Go switch, since RV64 ECALL carries no
// guest-resident vector of its own.

import "encoding/binary"

// Syscall numbers (spec.md §4.11), grouped by the ranges the design assigns
// them. Gaps within a range are reserved, not available for reuse.
const (
	SysSpawn   = 1
	SysExit    = 2
	SysYield   = 3
	SysGetpid  = 4
	SysKill    = 5
	SysWait    = 6
	SysSleep   = 7
	SysTime    = 8
	SysSysinfo = 9

	SysMap     = 10
	SysUnmap   = 11
	SysProtect = 12

	SysOpen  = 20
	SysClose = 21
	SysRead  = 22
	SysWrite = 23

	SysChannelCreate = 30
	SysChannelSend   = 31
	SysChannelRecv   = 32
	SysChannelClose  = 33

	SysReadInputEvent = 60

	SysFBClear     = 70
	SysFBDrawPixel = 71
	SysFBDrawText  = 72
)

// HandleSyscall dispatches one ECALL: num is a7, a0..a3 are the argument
// registers. The return value is what the caller installs into a0 — a
// non-negative result on success, or a negative ErrorKind code on failure.
func (k *Kernel) HandleSyscall(num, a0, a1, a2, a3 uint64) int64 {
	cur := k.Scheduler.GetCurrent()
	owner := uint32(cur)

	switch num {
	case SysSpawn:
		// Backward-compatible stub: a Kernel built without WithGuestMemory has
		// no VM-memory reader to parse an ELF header through, so spawn skips
		// straight to a fresh process with entry_point set to executable_ptr
		// rather than faulting on the missing reader.
		entry := a0

		if k.Mem != nil {
			var err error

			entry, err = k.loadGuestELF(a0)
			if err != nil {
				return errCode(err)
			}
		}

		id, err := k.Processes.Spawn(entry, DefaultStackPointer())
		if err != nil {
			return errCode(err)
		}

		k.Scheduler.MarkReady(&k.Processes, id)

		return int64(id)

	case SysExit:
		k.Processes.Exit(cur, int64(a0))
		k.CleanupProcessResources(owner)
		k.rescheduleFrom(cur)

		return 0

	case SysYield:
		k.Scheduler.MarkReady(&k.Processes, cur)
		k.rescheduleFrom(cur)

		return 0

	case SysGetpid:
		return int64(cur)

	case SysKill:
		target := a0
		if _, ok := k.Processes.Get(target); !ok {
			return ErrNotFound.Code()
		}

		k.Processes.Exit(target, -1)
		k.CleanupProcessResources(uint32(target))

		if target == cur {
			k.rescheduleFrom(cur)
		}

		return 0

	case SysWait:
		proc, ok := k.Processes.Get(a0)
		if !ok {
			return ErrNotFound.Code()
		}

		if proc.State != StateExited {
			return ErrWouldBlock.Code()
		}

		k.Processes.Remove(a0)

		return proc.ExitStatus

	case SysSleep:
		// No real timer: sleep degrades to yield, per spec.md §9's cooperative
		// model — a sleeping process simply gives up its turn.
		k.Scheduler.MarkReady(&k.Processes, cur)
		k.rescheduleFrom(cur)

		return 0

	case SysTime:
		return int64(k.Uptime)

	case SysSysinfo:
		return errCode(k.writeSysinfo(a0))

	case SysMap:
		addr, err := k.Mappings.Map(&k.Pages, a0, a1, Flags(a2), owner)
		if err != nil {
			return errCode(err)
		}

		return int64(addr)

	case SysUnmap:
		return errCode(k.Mappings.Unmap(&k.Pages, a0, owner))

	case SysProtect:
		return errCode(k.Mappings.Protect(&k.Pages, a0, Flags(a1), owner))

	case SysOpen:
		path, err := k.readGuestString(a0, a1)
		if err != nil {
			return errCode(err)
		}

		id, err := k.Handles.Open(path, HandleFlags(a2), owner)
		if err != nil {
			return errCode(err)
		}

		return int64(id)

	case SysClose:
		return errCode(k.Handles.Close(a0))

	case SysRead:
		// Handles carry no real backing store (spec.md's data model tracks
		// only path/flags/position): a read reports len(buf) zero bytes and
		// advances position bookkeeping.
		buf := make([]byte, a2)
		if err := k.Handles.Read(a0, buf); err != nil {
			return errCode(err)
		}

		if _, err := k.Mem.WriteGuest(a1, buf); err != nil {
			return ErrInvalidAddress.Code()
		}

		return int64(len(buf))

	case SysWrite:
		buf := make([]byte, a2)
		if _, err := k.Mem.ReadGuest(a1, buf); err != nil {
			return ErrInvalidAddress.Code()
		}

		if err := k.Handles.Write(a0, buf); err != nil {
			return errCode(err)
		}

		return int64(len(buf))

	case SysChannelCreate:
		id, err := k.Channels.Create(owner)
		if err != nil {
			return errCode(err)
		}

		return int64(id)

	case SysChannelSend:
		buf := make([]byte, a2)
		if _, err := k.Mem.ReadGuest(a1, buf); err != nil {
			return ErrInvalidAddress.Code()
		}

		return errCode(k.Channels.Send(a0, buf))

	case SysChannelRecv:
		buf := make([]byte, a2)

		n, err := k.Channels.Recv(a0, buf)
		if err != nil {
			return errCode(err)
		}

		if n == 0 {
			return 0
		}

		if _, err := k.Mem.WriteGuest(a1, buf[:n]); err != nil {
			return ErrInvalidAddress.Code()
		}

		return int64(n)

	case SysChannelClose:
		return errCode(k.Channels.Close(a0))

	case SysReadInputEvent:
		n, err := k.Input.ReadInputEvent(k.Mem, a0)
		if err != nil {
			return errCode(err)
		}

		return n

	case SysFBClear:
		return errCode(k.Clear(k.Mem, uint32(a0)))

	case SysFBDrawPixel:
		return errCode(k.DrawPixel(k.Mem, a0, a1, uint32(a2)))

	case SysFBDrawText:
		n, err := k.DrawText(k.Mem, a0, a1, a2, uint32(a3))
		if err != nil {
			return errCode(err)
		}

		return n

	default:
		return ErrInvalidSyscall.Code()
	}
}

// rescheduleFrom marks the next ready process current and running, or
// leaves the kernel with no current process if none is ready.
func (k *Kernel) rescheduleFrom(prev uint64) {
	next, ok := k.Scheduler.ScheduleNext(&k.Processes)
	if !ok {
		k.Scheduler.SetCurrent(0)
		return
	}

	k.Processes.SetState(next, StateRunning)
	k.Scheduler.SetCurrent(next)
}

// readGuestString reads an n-byte path argument from guest memory.
func (k *Kernel) readGuestString(ptr, n uint64) (string, error) {
	if n == 0 || n > maxPathLen {
		return "", Fail("open", ErrInvalidArgument)
	}

	buf := make([]byte, n)
	if _, err := k.Mem.ReadGuest(ptr, buf); err != nil {
		return "", Fail("open", ErrInvalidAddress)
	}

	return string(buf), nil
}

// sysinfo's packed payload: five little-endian uint64 fields. The layout is
// implementation-defined (spec.md doesn't prescribe one); ordering mirrors
// the process-management and resource sections of spec.md §3.
type sysinfoPayload struct {
	Uptime       uint64
	ProcessCount uint64
	FreeMappings uint64
	FreeHandles  uint64
	FreeChannels uint64
}

const sysinfoSize = 40

func (k *Kernel) writeSysinfo(ptr uint64) error {
	info := sysinfoPayload{
		Uptime:       k.Uptime,
		ProcessCount: uint64(k.Processes.Count()),
		FreeMappings: uint64(MaxMappings - k.Mappings.Count()),
		FreeHandles:  uint64(MaxHandles - k.Handles.Count()),
		FreeChannels: uint64(MaxChannels - k.Channels.Count()),
	}

	buf := make([]byte, sysinfoSize)
	order := binary.LittleEndian
	order.PutUint64(buf[0:8], info.Uptime)
	order.PutUint64(buf[8:16], info.ProcessCount)
	order.PutUint64(buf[16:24], info.FreeMappings)
	order.PutUint64(buf[24:32], info.FreeHandles)
	order.PutUint64(buf[32:40], info.FreeChannels)

	if _, err := k.Mem.WriteGuest(ptr, buf); err != nil {
		return Fail("sysinfo", ErrInvalidAddress)
	}

	return nil
}

// errCode maps a kernel error to its guest-visible ABI code, or 0 for a nil
// error (every syscall above that returns a positive success value takes a
// different path; this helper is only used where success is plain 0).
func errCode(err error) int64 {
	if err == nil {
		return 0
	}

	if kerr, ok := err.(*KernelError); ok {
		return kerr.Kind.Code()
	}

	return ErrInvalidArgument.Code()
}
