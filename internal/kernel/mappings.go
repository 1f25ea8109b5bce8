package kernel

// mappings.go is the memory-mapping table (spec.md §4.6): up to MaxMappings
// virtual-memory reservations tracked by address, size, flags, and owning
// process, with overlap and capacity enforcement the page table itself
// doesn't perform. Grounded on internal/vm/intr.go's fixed-slot-table idiom
// plus the region-tracking style of
// other_examples/…lookbusy1344-arm_emulator__vm-executor.go.go.

import "github.com/basin-os/basin/internal/rv64"

// Mapping is one allocated memory-mapping entry (spec.md §3).
type Mapping struct {
	Allocated bool
	Address   uint64
	Size      uint64
	Flags     Flags
	Owner     uint32
}

// MappingTable holds up to MaxMappings allocated mappings.
type MappingTable struct {
	slots [MaxMappings]Mapping
	count int
}

func (mt *MappingTable) init() {
	mt.slots = [MaxMappings]Mapping{}
	mt.count = 0
}

func pageAligned(v uint64) bool { return v%uint64(rv64.PageSize) == 0 }

func (mt *MappingTable) overlaps(addr, size uint64) bool {
	end := addr + size

	for i := range mt.slots {
		s := &mt.slots[i]
		if !s.Allocated {
			continue
		}

		sEnd := s.Address + s.Size
		if addr < sEnd && s.Address < end {
			return true
		}
	}

	return false
}

// firstFreeAddress scans the user range for the lowest page-aligned address
// not covered by any allocated mapping, for syscall_map's hint_addr==0 case.
func (mt *MappingTable) firstFreeAddress(size uint64) (uint64, bool) {
	for addr := uint64(rv64.RAMBase); addr+size <= uint64(rv64.KernelBase); addr += uint64(rv64.PageSize) {
		if !mt.overlaps(addr, size) {
			return addr, true
		}
	}

	return 0, false
}

// Map implements syscall_map (spec.md §4.6).
func (mt *MappingTable) Map(pt *PageTable, hintAddr, size uint64, flags Flags, owner uint32) (uint64, error) {
	if size == 0 || !pageAligned(size) {
		return 0, Fail("map", ErrInvalidArgument)
	}

	if flags&(FlagRead|FlagWrite|FlagExec) == 0 {
		return 0, Fail("map", ErrInvalidArgument)
	}

	var addr uint64

	if hintAddr == 0 {
		free, ok := mt.firstFreeAddress(size)
		if !ok {
			return 0, Fail("map", ErrOutOfMemory)
		}

		addr = free
	} else {
		if !pageAligned(hintAddr) {
			return 0, Fail("map", ErrUnalignedAccess)
		}

		if hintAddr < uint64(rv64.RAMBase) || hintAddr+size > uint64(rv64.KernelBase) {
			return 0, Fail("map", ErrPermissionDenied)
		}

		addr = hintAddr
	}

	if mt.overlaps(addr, size) {
		return 0, Fail("map", ErrInvalidArgument)
	}

	slot := mt.freeSlot()
	if slot < 0 {
		return 0, Fail("map", ErrOutOfMemory)
	}

	mt.slots[slot] = Mapping{Allocated: true, Address: addr, Size: size, Flags: flags, Owner: owner}
	mt.count++

	pt.MapPages(addr, size, flags)

	return addr, nil
}

// Unmap implements syscall_unmap.
func (mt *MappingTable) Unmap(pt *PageTable, addr uint64, owner uint32) error {
	idx := mt.find(addr, owner)
	if idx < 0 {
		return Fail("unmap", ErrInvalidArgument)
	}

	size := mt.slots[idx].Size
	mt.slots[idx] = Mapping{}
	mt.count--

	pt.UnmapPages(addr, size)

	return nil
}

// Protect implements syscall_protect.
func (mt *MappingTable) Protect(pt *PageTable, addr uint64, flags Flags, owner uint32) error {
	if flags&(FlagRead|FlagWrite|FlagExec) == 0 {
		return Fail("protect", ErrInvalidArgument)
	}

	idx := mt.find(addr, owner)
	if idx < 0 {
		return Fail("protect", ErrInvalidArgument)
	}

	mt.slots[idx].Flags = flags
	pt.ProtectPages(addr, mt.slots[idx].Size, flags)

	return nil
}

// find returns the slot index of the allocated mapping starting at addr,
// owned by owner or unowned (owner 0), or -1.
func (mt *MappingTable) find(addr uint64, owner uint32) int {
	for i := range mt.slots {
		s := &mt.slots[i]
		if s.Allocated && s.Address == addr && (s.Owner == owner || s.Owner == 0) {
			return i
		}
	}

	return -1
}

func (mt *MappingTable) freeSlot() int {
	for i := range mt.slots {
		if !mt.slots[i].Allocated {
			return i
		}
	}

	return -1
}

// Count returns the number of currently allocated mappings.
func (mt *MappingTable) Count() int { return mt.count }

// ReleaseOwnedBy clears every mapping owned by pid, for process cleanup
// (spec.md §4.13). Returns the number of mappings released.
func (mt *MappingTable) ReleaseOwnedBy(pt *PageTable, pid uint32) int {
	n := 0

	for i := range mt.slots {
		s := &mt.slots[i]
		if s.Allocated && s.Owner == pid {
			pt.UnmapPages(s.Address, s.Size)
			*s = Mapping{}
			mt.count--
			n++
		}
	}

	return n
}
