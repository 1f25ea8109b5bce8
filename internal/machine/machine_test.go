package machine

import (
	"testing"

	"github.com/basin-os/basin/internal/kernel"
	"github.com/basin-os/basin/internal/rv64"
)

// newTestMachine builds a VM and kernel sharing one memory subsystem, the
// way cmd/basin wires them at startup.
func newTestMachine(tt *testing.T) *Machine {
	tt.Helper()

	vm := rv64.New()
	k := kernel.New(kernel.WithGuestMemory(vm.Mem))
	m := New(vm, k)

	if err := m.FinishInit(); err != nil {
		tt.Fatalf("finish init: %s", err)
	}

	return m
}

// writeProgram writes a sequence of 32-bit instruction words starting at
// addr.
func writeProgram(tt *testing.T, mem *rv64.Memory, addr uint64, words []uint32) {
	tt.Helper()

	for i, w := range words {
		if err := mem.Write32(addr+uint64(i)*4, w); err != nil {
			tt.Fatalf("write word %d: %s", i, err)
		}
	}
}

func TestMachine_FinishInit_PaintsDiagnosticPattern(tt *testing.T) {
	tt.Parallel()

	m := newTestMachine(tt)

	ok, _ := m.VM.Mem.Dirty.GetBounds()
	if !ok {
		tt.Errorf("want a dirty region after FinishInit paints the framebuffer")
	}
}

func TestMachine_RunCurrentProcess_ExecutesAndSavesContext(tt *testing.T) {
	tt.Parallel()

	m := newTestMachine(tt)

	entry := uint64(rv64.RAMBase)
	// addi x5, x0, 1; addi x5, x5, 1; jal x0, 0 (spin)
	writeProgram(tt, m.VM.Mem, entry, []uint32{
		0x00100293, // addi x5,x0,1
		0x00128293, // addi x5,x5,1
		0x0000006f, // jal x0,0
	})

	pid, err := m.Kernel.Processes.Spawn(entry, uint64(rv64.KernelBase)-uint64(rv64.PageSize))
	if err != nil {
		tt.Fatalf("spawn: %s", err)
	}

	m.Kernel.Scheduler.SetCurrent(pid)
	m.Kernel.Processes.SetState(pid, kernel.StateRunning)

	if _, err := m.RunCurrentProcess(2); err != nil {
		tt.Fatalf("run: %s", err)
	}

	proc, ok := m.Kernel.Processes.Get(pid)
	if !ok {
		tt.Fatalf("process vanished")
	}

	if proc.Context.GPR[5] != 2 {
		tt.Errorf("want x5 == 2 saved in context, got %d", proc.Context.GPR[5])
	}

	if proc.Context.PC != entry+8 {
		tt.Errorf("want saved PC at third instruction, got %#x", proc.Context.PC)
	}
}

func TestMachine_ScheduleAndRunNext_AlternatesProcesses(tt *testing.T) {
	tt.Parallel()

	m := newTestMachine(tt)

	entry := uint64(rv64.RAMBase)
	writeProgram(tt, m.VM.Mem, entry, []uint32{0x0000006f}) // jal x0,0 (spin forever)

	p1, _ := m.Kernel.Processes.Spawn(entry, uint64(rv64.KernelBase)-uint64(rv64.PageSize))
	p2, _ := m.Kernel.Processes.Spawn(entry, uint64(rv64.KernelBase)-uint64(rv64.PageSize))

	m.Kernel.Scheduler.MarkReady(&m.Kernel.Processes, p1)
	m.Kernel.Scheduler.MarkReady(&m.Kernel.Processes, p2)

	if _, err := m.ScheduleAndRunNext(1); err != nil {
		tt.Fatalf("run p1: %s", err)
	}

	if got := m.Kernel.Scheduler.GetCurrent(); got != p1 {
		tt.Errorf("want p1 scheduled first, got %d", got)
	}

	m.Kernel.Scheduler.MarkReady(&m.Kernel.Processes, p1)

	if _, err := m.ScheduleAndRunNext(1); err != nil {
		tt.Fatalf("run p2: %s", err)
	}

	if got := m.Kernel.Scheduler.GetCurrent(); got != p2 {
		tt.Errorf("want p2 scheduled second, got %d", got)
	}
}

func TestMachine_SyscallTrapRoundTrip(tt *testing.T) {
	tt.Parallel()

	m := newTestMachine(tt)

	entry := uint64(rv64.RAMBase)
	// li a7, 4 (getpid); ecall; jal x0,0
	writeProgram(tt, m.VM.Mem, entry, []uint32{
		0x00400893, // addi x17,x0,4  (a7 = SysGetpid)
		0x00000073, // ecall
		0x0000006f, // jal x0,0
	})

	pid, _ := m.Kernel.Processes.Spawn(entry, uint64(rv64.KernelBase)-uint64(rv64.PageSize))
	m.Kernel.Scheduler.SetCurrent(pid)
	m.Kernel.Processes.SetState(pid, kernel.StateRunning)

	if _, err := m.RunCurrentProcess(2); err != nil {
		tt.Fatalf("run: %s", err)
	}

	proc, _ := m.Kernel.Processes.Get(pid)
	if got := int64(proc.Context.GPR[10]); got != int64(pid) {
		tt.Errorf("want a0 == pid (%d) after getpid, got %d", pid, got)
	}
}
