package kernel

// pages.go is the permission-checked page table (spec.md §4.5): a fixed
// array of page entries covering the user range, with pseudo-entries for
// the kernel and framebuffer ranges that carry implicit permissions.
// Grounded on the fixed-slot-table idiom of internal/vm/intr.go's
// Interrupt.idt, generalized from an interrupt-priority index to a
// virtual-page index.

import (
	"github.com/basin-os/basin/internal/rv64"
)

// Flags is a page or mapping permission set.
type Flags uint8

const (
	FlagRead Flags = 1 << iota
	FlagWrite
	FlagExec
	FlagShared
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// pageEntry is one page-table slot.
type pageEntry struct {
	mapped bool
	flags  Flags
}

// userPages is the number of page-table slots covering the user range
// [rv64.RAMBase, rv64.KernelBase).
const userPages = uint64(rv64.KernelBase-rv64.RAMBase) / uint64(rv64.PageSize)

// PageTable tracks per-page permissions over the user range. Kernel-range
// and framebuffer-range addresses are pseudo-entries: they carry implicit
// permissions not backed by a slot (spec.md §3's "Page-table entry" note).
type PageTable struct {
	pages [userPages]pageEntry
}

func (pt *PageTable) init() {
	for i := range pt.pages {
		pt.pages[i] = pageEntry{}
	}
}

// pageIndex returns the slot index for a user-range address, or false if
// addr isn't in the user range at all.
func pageIndex(addr uint64) (uint64, bool) {
	if addr < uint64(rv64.RAMBase) || addr >= uint64(rv64.KernelBase) {
		return 0, false
	}

	return (addr - uint64(rv64.RAMBase)) / uint64(rv64.PageSize), true
}

// CheckPermission implements spec.md §4.5's check_permission: kernel range
// is implicit rwx, framebuffer range is implicit rw, user range is
// page-table-backed, and everything else is unmapped.
func (pt *PageTable) CheckPermission(addr uint64) (Flags, bool) {
	switch {
	case addr >= uint64(rv64.FramebufferBase):
		// Framebuffer range isn't bounded here by its exact size; the
		// memory subsystem enforces the precise upper bound on access.
		return FlagRead | FlagWrite, true
	case addr >= uint64(rv64.KernelBase) && addr < uint64(rv64.RAMBase+rv64.RAMSize):
		return FlagRead | FlagWrite | FlagExec, true
	}

	idx, ok := pageIndex(addr)
	if !ok {
		return 0, false
	}

	entry := pt.pages[idx]
	if !entry.mapped {
		return 0, false
	}

	return entry.flags, true
}

// MapPages, UnmapPages, and ProtectPages are the primitive, page-granular
// helpers spec.md §4.5 describes: they perform no overlap/capacity
// validation of their own — that belongs to the mapping-table syscalls in
// mappings.go.
func (pt *PageTable) MapPages(addr, size uint64, flags Flags) {
	pt.walk(addr, size, func(i uint64) {
		pt.pages[i] = pageEntry{mapped: true, flags: flags}
	})
}

func (pt *PageTable) UnmapPages(addr, size uint64) {
	pt.walk(addr, size, func(i uint64) {
		pt.pages[i] = pageEntry{}
	})
}

func (pt *PageTable) ProtectPages(addr, size uint64, flags Flags) {
	pt.walk(addr, size, func(i uint64) {
		if pt.pages[i].mapped {
			pt.pages[i].flags = flags
		}
	})
}

func (pt *PageTable) walk(addr, size uint64, fn func(i uint64)) {
	for off := uint64(0); off < size; off += uint64(rv64.PageSize) {
		idx, ok := pageIndex(addr + off)
		if !ok {
			continue
		}

		fn(idx)
	}
}
