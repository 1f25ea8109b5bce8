package rv64

// cpu.go assembles the virtual machine from its smaller parts: registers,
// memory, and the counters used for instrumentation.

import (
	"errors"
	"fmt"

	"github.com/basin-os/basin/internal/log"
)

// State is the VM's lifecycle state (spec.md §3).
type State int

const (
	Halted State = iota
	Running
	Errored
)

func (s State) String() string {
	switch s {
	case Halted:
		return "halted"
	case Running:
		return "running"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// SyscallTrap is installed by the integration layer and invoked when the
// interpreter executes ECALL. It reads a7/a0..a3 from the register file,
// dispatches the syscall, and writes the result into a0.
type SyscallTrap func(vm *VM)

// VM is a software-interpreted RV64I machine.
type VM struct {
	Reg Registers
	PC  Word
	Mem *Memory

	State     State
	LastError error

	Trap SyscallTrap

	Perf PerfCounters

	log *log.Logger
}

// ErrNotRunning reports that the VM is not in the running state. Step does not
// return it: on a VM that is not running, Step returns nil without executing.
var ErrNotRunning = errors.New("vm: not running")

// An OptionFn configures a VM at construction.
type OptionFn func(vm *VM)

// WithRAMSize overrides the default RAM size.
func WithRAMSize(size uint64) OptionFn {
	return func(vm *VM) { vm.Mem.RAM = make([]byte, size) }
}

// WithFramebufferSize overrides the default framebuffer geometry.
func WithFramebufferSize(width, height uint64) OptionFn {
	return func(vm *VM) {
		vm.Mem.FB = make([]byte, width*height*BytesPerPixel)
		vm.Mem.FBWidth = width
		vm.Mem.FBHeight = height
	}
}

// WithRegisterCounters enables per-register read/write instrumentation.
func WithRegisterCounters() OptionFn {
	return func(vm *VM) { vm.Reg.Counters = &RegisterCounters{} }
}

// WithLogger overrides the VM's logger.
func WithLogger(logger *log.Logger) OptionFn {
	return func(vm *VM) { vm.log = logger }
}

// WithSyscallTrap installs the syscall trap handler.
func WithSyscallTrap(trap SyscallTrap) OptionFn {
	return func(vm *VM) { vm.Trap = trap }
}

// New creates and initializes a virtual machine.
func New(opts ...OptionFn) *VM {
	vm := &VM{
		Mem:   NewMemory(RAMSize, DefaultFBWidth, DefaultFBHeight),
		State: Halted,
		log:   log.DefaultLogger(),
	}

	for _, fn := range opts {
		fn(vm)
	}

	vm.PC = RAMBase

	return vm
}

func (vm *VM) String() string {
	return fmt.Sprintf("PC: %s STATE: %s\n%s", hexWord(vm.PC), vm.State, vm.Reg.String())
}

// Reset returns an errored VM to the halted state so it may be reused. This
// is the only permitted errored->halted transition (spec.md §3).
func (vm *VM) Reset(pc Word) {
	vm.State = Halted
	vm.LastError = nil
	vm.PC = pc
}

// Start transitions a halted VM to running at the given entry point.
func (vm *VM) Start(pc Word) {
	vm.PC = pc
	vm.State = Running
}
