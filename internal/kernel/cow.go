package kernel

// cow.go is the copy-on-write reference-count table (spec.md §4.10): data
// is tracked but the write path does not yet enforce it, per spec.md §9(a)'s
// open question — left unspecified deliberately, not an oversight.

import "github.com/basin-os/basin/internal/rv64"

type cowEntry struct {
	refs   uint32
	marked bool
}

// COWTable parallels PageTable, one entry per user-range page.
type COWTable struct {
	entries [userPages]cowEntry
}

func (c *COWTable) init() {
	for i := range c.entries {
		c.entries[i] = cowEntry{}
	}
}

// IncrementRefs bumps the reference count for every page in [addr, addr+size)
// and optionally marks them copy-on-write.
func (c *COWTable) IncrementRefs(addr, size uint64, markCOW bool) {
	c.walk(addr, size, func(i uint64) {
		c.entries[i].refs++
		if markCOW {
			c.entries[i].marked = true
		}
	})
}

// DecrementRefs drops the reference count for every page in [addr, addr+size).
func (c *COWTable) DecrementRefs(addr, size uint64) {
	c.walk(addr, size, func(i uint64) {
		if c.entries[i].refs > 0 {
			c.entries[i].refs--
		}
	})
}

// ShouldCopyOnWrite reports whether a write to addr should materialize a
// private page: shared (refs >= 2) and marked copy-on-write.
func (c *COWTable) ShouldCopyOnWrite(addr uint64) bool {
	idx, ok := pageIndex(addr)
	if !ok {
		return false
	}

	e := c.entries[idx]

	return e.refs >= 2 && e.marked
}

// IsShared reports whether more than one owner references addr's page.
func (c *COWTable) IsShared(addr uint64) bool {
	idx, ok := pageIndex(addr)
	if !ok {
		return false
	}

	return c.entries[idx].refs >= 2
}

func (c *COWTable) walk(addr, size uint64, fn func(i uint64)) {
	for off := uint64(0); off < size; off += uint64(rv64.PageSize) {
		idx, ok := pageIndex(addr + off)
		if !ok {
			continue
		}

		fn(idx)
	}
}
