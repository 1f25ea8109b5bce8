// Package machine binds an rv64 VM to a kernel: it installs the syscall
// trap, owns the cooperative context-switch between the VM's live register
// file and each process's saved context, and offers the two bounded entry
// points host code drives a run loop with.
//
// Grounded on internal/cli/cmd/exec.go's wiring of vm.New +
// monitor.WithDefaultSystemImage + vm.OptionFn into a single runnable
// machine; the syscall trap installation is the RV64 ECALL counterpart of
// that file's ctx/cancel-driven machine.Run goroutine.
package machine

import (
	"github.com/basin-os/basin/internal/kernel"
	"github.com/basin-os/basin/internal/rv64"
)

// Machine binds a VM and a kernel together (spec.md §4.14).
type Machine struct {
	VM     *rv64.VM
	Kernel *kernel.Kernel

	initialized bool
	lastRun     uint64 // pid whose context is currently loaded into VM
}

// New implements init_with_kernel: stores the VM/kernel references.
func New(vm *rv64.VM, k *kernel.Kernel) *Machine {
	return &Machine{VM: vm, Kernel: k}
}

// diagnosticColor is the framebuffer's initial pattern, distinct from the
// guest's "nothing has been drawn yet" all-zero state.
const diagnosticColor = 0x202030ff

// FinishInit implements finish_init: installs the syscall trap, paints the
// framebuffer's diagnostic pattern, and marks the machine ready.
func (m *Machine) FinishInit() error {
	m.VM.Trap = func(vm *rv64.VM) {
		num := vm.Reg.Get(rv64.X17)
		a0 := vm.Reg.Get(rv64.X10)
		a1 := vm.Reg.Get(rv64.X11)
		a2 := vm.Reg.Get(rv64.X12)
		a3 := vm.Reg.Get(rv64.X13)

		result := m.Kernel.HandleSyscall(num, a0, a1, a2, a3)
		vm.Reg.Set(rv64.X10, uint64(result))
	}

	if err := m.Kernel.Clear(m.VM.Mem, diagnosticColor); err != nil {
		return err
	}

	m.initialized = true

	return nil
}

// saveContext copies the VM's live PC/SP/GPR into pid's saved context.
func (m *Machine) saveContext(pid uint64) {
	if pid == 0 {
		return
	}

	proc, ok := m.Kernel.Processes.Get(pid)
	if !ok {
		return
	}

	ctx := proc.Context
	ctx.PC = m.VM.PC
	ctx.SP = m.VM.Reg.Get(rv64.X2)
	ctx.GPR = m.VM.Reg.Snapshot()
	ctx.Initialized = true

	m.Kernel.Processes.SaveContext(pid, ctx)
}

// loadContext installs pid's saved context into the VM's live registers.
// Process.Spawn seeds a fresh Context with a zeroed GPR snapshot, PC at the
// entry point, and SP at the initial stack pointer, so a never-yet-run
// process loads correctly through the same path as one resuming after a
// prior run_current_process call.
func (m *Machine) loadContext(pid uint64) {
	proc, ok := m.Kernel.Processes.Get(pid)
	if !ok {
		return
	}

	m.VM.Reg.Restore(proc.Context.GPR)
	m.VM.Reg.Set(rv64.X2, proc.Context.SP)
	m.VM.PC = proc.Context.PC
	m.VM.State = rv64.Running
}

// RunCurrentProcess implements run_current_process(max_steps): saves the
// previously loaded context, switches in scheduler.get_current()'s context,
// runs the VM for up to max_steps instructions, then saves the context
// back. It returns whether the caller should keep scheduling (the VM is
// still running) and any fatal error the VM encountered.
func (m *Machine) RunCurrentProcess(maxSteps uint64) (bool, error) {
	cur := m.Kernel.Scheduler.GetCurrent()
	if cur == 0 {
		return false, nil
	}

	if m.lastRun != cur {
		m.saveContext(m.lastRun)
		m.loadContext(cur)
		m.lastRun = cur
	}

	if m.VM.State != rv64.Running {
		m.VM.State = rv64.Running
	}

	before := m.VM.Perf.InstructionsExecuted
	err := m.VM.Execute(maxSteps)
	m.Kernel.Tick(m.VM.Perf.InstructionsExecuted - before)

	m.saveContext(cur)

	if err != nil {
		return false, err
	}

	return m.VM.State == rv64.Running, nil
}

// ScheduleAndRunNext implements schedule_and_run_next(max_steps): picks the
// next ready process, installs it as current, and runs it.
func (m *Machine) ScheduleAndRunNext(maxSteps uint64) (bool, error) {
	next, ok := m.Kernel.Scheduler.ScheduleNext(&m.Kernel.Processes)
	if !ok {
		return false, nil
	}

	m.Kernel.Processes.SetState(next, kernel.StateRunning)
	m.Kernel.Scheduler.SetCurrent(next)

	return m.RunCurrentProcess(maxSteps)
}
