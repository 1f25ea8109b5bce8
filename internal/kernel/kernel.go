package kernel

// kernel.go assembles the basin kernel from its tables: mappings, handles,
// channels, processes, the page table, scheduler, and interrupt controller.
// Grounded on internal/vm/vm.go's LC3 struct-of-tables shape and
// internal/vm/vm.go's New/OptionFn construction pattern.

import (
	"github.com/basin-os/basin/internal/log"
	"github.com/basin-os/basin/internal/rv64"
)

// Default table capacities (spec.md §3).
const (
	MaxMappings = 256
	MaxHandles  = 64
	MaxChannels = 256
	MaxProcesses = 16

	PoolPages = 1024 // 1024 * 4 KiB = 4 MiB, backs the whole RAM region.
)

// GuestReader reads guest memory during syscall handling. It mirrors
// rv64.Memory.ReadGuest without importing internal/rv64, keeping the kernel
// independent of the interpreter package (internal/machine wires them
// together).
type GuestReader interface {
	ReadGuest(vaddr uint64, buf []byte) (int, error)
}

// GuestWriter writes guest memory during syscall handling.
type GuestWriter interface {
	WriteGuest(vaddr uint64, data []byte) (int, error)
}

// GuestMemory is the combined reader/writer contract of spec.md §6.
type GuestMemory interface {
	GuestReader
	GuestWriter
}

// Kernel holds every kernel-owned table. Callers access tables directly
// (Mappings, Handles, ...) the way internal/vm.LC3 exposes Mem/Reg/PSR as
// plain fields rather than hiding them behind accessors.
type Kernel struct {
	Pages    PageTable
	COW      COWTable
	Mappings MappingTable
	Handles  HandleTable
	Channels ChannelTable
	Processes ProcessTable
	Scheduler Scheduler
	Interrupt InterruptController
	Input    InputQueue
	FB       Framebuffer

	Mem GuestMemory

	// Uptime counts ticks (spec.md's instructions-executed notion, at
	// whatever granularity the integration layer calls Tick at) for the
	// time and sysinfo syscalls.
	Uptime uint64

	log *log.Logger
}

// Tick advances the kernel's uptime counter by n. internal/machine calls
// this once per run slice with the number of guest instructions the slice
// executed, keeping time/sysinfo in sync
// with the VM's own rv64.Perf.InstructionsExecuted without this package
// needing to import the interpreter to read it directly.
func (k *Kernel) Tick(n uint64) { k.Uptime += n }

// OptionFn configures a Kernel at construction.
type OptionFn func(k *Kernel)

// WithLogger overrides the kernel's logger.
func WithLogger(logger *log.Logger) OptionFn {
	return func(k *Kernel) { k.log = logger }
}

// WithGuestMemory installs the guest memory reader/writer the kernel uses
// during syscall handling (spec.md §6's VM-memory reader/writer contract).
func WithGuestMemory(mem GuestMemory) OptionFn {
	return func(k *Kernel) { k.Mem = mem }
}

// WithFramebufferSize overrides the default framebuffer geometry used by the
// fb_* syscalls' bounds checks.
func WithFramebufferSize(width, height uint64) OptionFn {
	return func(k *Kernel) {
		k.FB.Width = width
		k.FB.Height = height
	}
}

// New constructs a kernel with all tables at their default capacity.
func New(opts ...OptionFn) *Kernel {
	k := &Kernel{
		log: log.DefaultLogger(),
	}

	k.Mappings.init()
	k.Handles.init()
	k.Channels.init()
	k.Processes.init()
	k.Pages.init()
	k.COW.init()
	k.FB.Width = rv64.DefaultFBWidth
	k.FB.Height = rv64.DefaultFBHeight

	for _, fn := range opts {
		fn(k)
	}

	return k
}
