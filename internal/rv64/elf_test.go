package rv64

import (
	"encoding/binary"
	"errors"
	"testing"
)

// buildELF assembles a minimal ELF64-LE-RISCV executable with one PT_LOAD
// segment, for tests that don't want to carry a binary fixture on disk.
func buildELF(entry, vaddr uint64, code []byte, memLen uint64) []byte {
	const (
		ehsize = 64
		phoff  = ehsize
	)

	buf := make([]byte, ehsize+elfPhentsize+len(code))
	order := binary.LittleEndian

	buf[0], buf[1], buf[2], buf[3] = elfMagic0, elfMagic1, elfMagic2, elfMagic3
	buf[4] = elfClass64
	buf[5] = elfDataLE
	buf[6] = 1 // EI_VERSION

	order.PutUint16(buf[16:18], elfTypeExec)
	order.PutUint16(buf[18:20], 243) // EM_RISCV
	order.PutUint32(buf[20:24], 1)   // e_version
	order.PutUint64(buf[24:32], entry)
	order.PutUint64(buf[32:40], uint64(phoff))
	order.PutUint16(buf[54:56], elfPhentsize)
	order.PutUint16(buf[56:58], 1) // e_phnum

	ph := buf[phoff : phoff+elfPhentsize]
	order.PutUint32(ph[0:4], ptLoad)
	order.PutUint64(ph[8:16], uint64(phoff+elfPhentsize))
	order.PutUint64(ph[16:24], vaddr)
	order.PutUint64(ph[32:40], uint64(len(code)))
	order.PutUint64(ph[40:48], memLen)

	copy(buf[phoff+elfPhentsize:], code)

	return buf
}

func TestParseELF(tt *testing.T) {
	tt.Parallel()

	code := []byte{0x01, 0x02, 0x03, 0x04}
	data := buildELF(0x1234, RAMBase, code, uint64(len(code))+4)

	img, err := ParseELF(data)
	if err != nil {
		tt.Fatalf("parse: %s", err)
	}

	if img.Entry != 0x1234 {
		tt.Errorf("entry: want %#x, got %#x", 0x1234, img.Entry)
	}

	if len(img.Segments) != 1 {
		tt.Fatalf("want 1 segment, got %d", len(img.Segments))
	}

	seg := img.Segments[0]
	if seg.VAddr != RAMBase {
		tt.Errorf("vaddr: want %s, got %s", hexWord(RAMBase), hexWord(seg.VAddr))
	}

	if seg.MemLen != uint64(len(code))+4 {
		tt.Errorf("memlen: want %d, got %d", len(code)+4, seg.MemLen)
	}
}

func TestParseELF_BadMagic(tt *testing.T) {
	tt.Parallel()

	data := buildELF(0, RAMBase, []byte{0}, 1)
	data[0] = 0x00

	_, err := ParseELF(data)
	if !errors.Is(err, ErrInvalidELF) {
		tt.Errorf("want %s, got %s", ErrInvalidELF, err)
	}
}

func TestLoadKernelImage(tt *testing.T) {
	tt.Parallel()

	code := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	data := buildELF(KernelBase+8, KernelBase, code, 8)

	vm := New()

	if err := LoadKernelImage(vm, data); err != nil {
		tt.Fatalf("load: %s", err)
	}

	if vm.PC != KernelBase+8 {
		tt.Errorf("pc: want %s, got %s", hexWord(KernelBase+8), hexWord(vm.PC))
	}

	got, err := vm.Mem.Read32(KernelBase)
	if err != nil {
		tt.Fatalf("read: %s", err)
	}

	if got != 0xDDCCBBAA {
		tt.Errorf("want %#08x, got %#08x", 0xDDCCBBAA, got)
	}

	zero, err := vm.Mem.Read32(KernelBase + 4)
	if err != nil {
		tt.Fatalf("read: %s", err)
	}

	if zero != 0 {
		tt.Errorf("want zero-filled tail, got %#08x", zero)
	}
}

func TestLoadKernelImage_RejectsUserRange(tt *testing.T) {
	tt.Parallel()

	data := buildELF(RAMBase, RAMBase, []byte{0x01}, 1)

	vm := New()

	err := LoadKernelImage(vm, data)
	if !errors.Is(err, ErrSegmentOutOfRange) {
		tt.Errorf("want %s, got %s", ErrSegmentOutOfRange, err)
	}
}

func TestLoadUserImage(tt *testing.T) {
	tt.Parallel()

	code := []byte{0x11, 0x22, 0x33, 0x44}
	data := buildELF(RAMBase+0x100, RAMBase, code, 4)

	mem := NewMemory(uint64(RAMSize), DefaultFBWidth, DefaultFBHeight)

	entry, sp, err := LoadUserImage(mem, data)
	if err != nil {
		tt.Fatalf("load: %s", err)
	}

	if entry != RAMBase+0x100 {
		tt.Errorf("entry: want %s, got %s", hexWord(RAMBase+0x100), hexWord(entry))
	}

	if sp != KernelBase-DefaultUserStackSize {
		tt.Errorf("sp: want %s, got %s", hexWord(KernelBase-DefaultUserStackSize), hexWord(sp))
	}
}

func TestLoadUserImage_RejectsKernelRange(tt *testing.T) {
	tt.Parallel()

	data := buildELF(KernelBase, KernelBase, []byte{0x01}, 1)

	mem := NewMemory(uint64(RAMSize), DefaultFBWidth, DefaultFBHeight)

	_, _, err := LoadUserImage(mem, data)
	if !errors.Is(err, ErrSegmentOutOfRange) {
		tt.Errorf("want %s, got %s", ErrSegmentOutOfRange, err)
	}
}
