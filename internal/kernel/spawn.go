package kernel

// spawn.go parses the ELF64-LE-RISCV image backing the spawn syscall. Unlike
// internal/rv64/elf.go's ParseELF (which works over a contiguous host-side
// byte slice, for booting the initial kernel/init image from disk), spawn
// reads a guest-resident image through the GuestMemory contract field by
// field, since there is no separate host copy — the image and the process
// it spawns share the same flat RAM. Header offsets and validation mirror
// ParseELF exactly.

import (
	"encoding/binary"

	"github.com/basin-os/basin/internal/rv64"
)

// loadGuestELF validates the ELF header at ptr and copies its PT_LOAD
// segments within the guest address space (source and destination both
// reached through mem), returning the entry point.
func (k *Kernel) loadGuestELF(ptr uint64) (uint64, error) {
	hdr := make([]byte, 64)
	if _, err := k.Mem.ReadGuest(ptr, hdr); err != nil {
		return 0, Fail("spawn", ErrInvalidAddress)
	}

	if hdr[0] != rv64.ELFMagic0 || hdr[1] != rv64.ELFMagic1 || hdr[2] != rv64.ELFMagic2 || hdr[3] != rv64.ELFMagic3 {
		return 0, Fail("spawn", ErrInvalidArgument)
	}

	if hdr[4] != rv64.ELFClass64 || hdr[5] != rv64.ELFDataLE {
		return 0, Fail("spawn", ErrInvalidArgument)
	}

	order := binary.LittleEndian

	if order.Uint16(hdr[16:18]) != 2 { // e_type must be ET_EXEC, as in ParseELF
		return 0, Fail("spawn", ErrInvalidArgument)
	}

	entry := order.Uint64(hdr[24:32])
	phoff := order.Uint64(hdr[32:40])
	phentsize := order.Uint16(hdr[54:56])
	phnum := order.Uint16(hdr[56:58])

	if int(phentsize) != rv64.ELFPhentsize {
		return 0, Fail("spawn", ErrInvalidArgument)
	}

	for i := uint16(0); i < phnum; i++ {
		ph := make([]byte, phentsize)
		if _, err := k.Mem.ReadGuest(ptr+phoff+uint64(i)*uint64(phentsize), ph); err != nil {
			return 0, Fail("spawn", ErrInvalidAddress)
		}

		if order.Uint32(ph[0:4]) != rv64.PTLoad {
			continue
		}

		pOffset := order.Uint64(ph[8:16])
		pVAddr := order.Uint64(ph[16:24])
		pFilesz := order.Uint64(ph[32:40])
		pMemsz := order.Uint64(ph[40:48])

		if pVAddr < uint64(rv64.RAMBase) || pVAddr+pMemsz > uint64(rv64.KernelBase) {
			return 0, Fail("spawn", ErrPermissionDenied)
		}

		buf := make([]byte, pFilesz)
		if pFilesz > 0 {
			if _, err := k.Mem.ReadGuest(ptr+pOffset, buf); err != nil {
				return 0, Fail("spawn", ErrInvalidAddress)
			}
		}

		if _, err := k.Mem.WriteGuest(pVAddr, buf); err != nil {
			return 0, Fail("spawn", ErrInvalidAddress)
		}

		zero := make([]byte, 1)
		for off := uint64(len(buf)); off < pMemsz; off++ {
			if _, err := k.Mem.WriteGuest(pVAddr+off, zero); err != nil {
				return 0, Fail("spawn", ErrInvalidAddress)
			}
		}
	}

	return entry, nil
}
