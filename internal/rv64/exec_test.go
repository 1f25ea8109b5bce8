package rv64

import (
	"errors"
	"testing"
)

// encodeI assembles an I-type instruction (OP-IMM, LOAD, JALR).
func encodeI(opcode Opcode, imm int32, rs1, rd GPR, funct3 uint32) uint32 {
	return uint32(imm)<<20&0xFFF00000 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | uint32(opcode)
}

func TestStep_AddImmediate(tt *testing.T) {
	tt.Parallel()

	vm := New()
	vm.Reg.Set(GPR(2), 5)

	// addi x1, x2, 10
	raw := encodeI(OpIMM, 10, GPR(2), X1, Funct3ADD_SUB)
	if err := vm.Mem.Write32(RAMBase, raw); err != nil {
		tt.Fatalf("write: %s", err)
	}

	vm.Start(RAMBase)

	if err := vm.Step(); err != nil {
		tt.Fatalf("step: %s", err)
	}

	if got := vm.Reg.Get(X1); got != 15 {
		tt.Errorf("want 15, got %d", got)
	}

	if vm.PC != RAMBase+4 {
		tt.Errorf("want PC %s, got %s", hexWord(RAMBase+4), hexWord(vm.PC))
	}
}

func TestStep_LoadStoreRoundTrip(tt *testing.T) {
	tt.Parallel()

	vm := New()
	vm.Reg.Set(GPR(2), RAMBase+64)
	vm.Reg.Set(GPR(3), 0x1234)

	sw := uint32(0)<<25 | uint32(3)<<20 | uint32(2)<<15 | Funct3SW<<12 | uint32(0)<<7 | uint32(OpSTORE)
	lw := encodeI(OpLOAD, 0, GPR(2), X1, Funct3LW)

	if err := vm.Mem.Write32(RAMBase, sw); err != nil {
		tt.Fatalf("write sw: %s", err)
	}

	if err := vm.Mem.Write32(RAMBase+4, lw); err != nil {
		tt.Fatalf("write lw: %s", err)
	}

	vm.Start(RAMBase)

	if err := vm.Step(); err != nil {
		tt.Fatalf("step sw: %s", err)
	}

	if err := vm.Step(); err != nil {
		tt.Fatalf("step lw: %s", err)
	}

	if got := vm.Reg.Get(X1); got != 0x1234 {
		tt.Errorf("want 0x1234, got %#x", got)
	}
}

func TestStep_BranchTaken(tt *testing.T) {
	tt.Parallel()

	vm := New()

	// beq x0, x0, 8 -> skip the next instruction
	beq := encodeBType(OpBRANCH, 8, X0, X0, Funct3BEQ)
	addi := encodeI(OpIMM, 99, X0, X1, Funct3ADD_SUB)

	if err := vm.Mem.Write32(RAMBase, beq); err != nil {
		tt.Fatalf("write beq: %s", err)
	}

	if err := vm.Mem.Write32(RAMBase+4, addi); err != nil {
		tt.Fatalf("write addi: %s", err)
	}

	vm.Start(RAMBase)

	if err := vm.Step(); err != nil {
		tt.Fatalf("step: %s", err)
	}

	if vm.PC != RAMBase+8 {
		tt.Errorf("want PC %s, got %s", hexWord(RAMBase+8), hexWord(vm.PC))
	}

	taken, notTaken := vm.Perf.BranchStats(RAMBase)
	if taken != 1 || notTaken != 0 {
		tt.Errorf("want 1 taken, 0 not-taken, got %d/%d", taken, notTaken)
	}
}

func encodeBType(opcode Opcode, imm int32, rs2, rs1 GPR, funct3 uint32) uint32 {
	u := uint32(imm)
	imm12 := (u >> 12) & 1
	imm11 := (u >> 11) & 1
	imm10_5 := (u >> 5) & 0x3F
	imm4_1 := (u >> 1) & 0xF

	return imm12<<31 | imm10_5<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | imm4_1<<8 | imm11<<7 | uint32(opcode)
}

func TestStep_InvalidOpcodeFaults(tt *testing.T) {
	tt.Parallel()

	vm := New()

	if err := vm.Mem.Write32(RAMBase, 0x0000_0000); err != nil {
		tt.Fatalf("write: %s", err)
	}

	vm.Start(RAMBase)

	err := vm.Step()
	if !errors.Is(err, ErrInvalidInstruction) {
		tt.Errorf("want %s, got %s", ErrInvalidInstruction, err)
	}

	if vm.State != Errored {
		tt.Errorf("want %s, got %s", Errored, vm.State)
	}
}

func TestStep_BadFetchIsNotFatal(tt *testing.T) {
	tt.Parallel()

	vm := New()
	vm.Start(0) // neither RAM nor framebuffer window claims this address

	err := vm.Step()
	if !errors.Is(err, ErrInvalidMemoryAccess) {
		tt.Errorf("want %s, got %s", ErrInvalidMemoryAccess, err)
	}

	if vm.State != Running {
		tt.Errorf("a bad fetch address must stay guest-visible: want %s, got %s", Running, vm.State)
	}
}

func TestStep_NotRunningIsNoop(tt *testing.T) {
	tt.Parallel()

	vm := New()

	if err := vm.Step(); err != nil {
		tt.Errorf("want nil error on a halted VM, got %s", err)
	}
}

func TestECALL_NoTrapReturnsInvalidSyscall(tt *testing.T) {
	tt.Parallel()

	vm := New()

	ecall := uint32(Funct3ECALL)<<12 | uint32(OpSYSTEM)
	if err := vm.Mem.Write32(RAMBase, ecall); err != nil {
		tt.Fatalf("write: %s", err)
	}

	vm.Start(RAMBase)

	if err := vm.Step(); err != nil {
		tt.Fatalf("step: %s", err)
	}

	if got := int64(vm.Reg.Get(X10)); got != -8 {
		tt.Errorf("want -8, got %d", got)
	}

	if vm.State != Running {
		tt.Errorf("want %s after ecall, got %s", Running, vm.State)
	}
}

func TestECALL_TrapInvoked(tt *testing.T) {
	tt.Parallel()

	var sawState State

	vm := New(WithSyscallTrap(func(vm *VM) {
		sawState = vm.State
		vm.Reg.Set(X10, 7)
	}))

	ecall := uint32(Funct3ECALL)<<12 | uint32(OpSYSTEM)
	if err := vm.Mem.Write32(RAMBase, ecall); err != nil {
		tt.Fatalf("write: %s", err)
	}

	vm.Start(RAMBase)

	if err := vm.Step(); err != nil {
		tt.Fatalf("step: %s", err)
	}

	if sawState != Halted {
		tt.Errorf("trap should observe %s, saw %s", Halted, sawState)
	}

	if got := vm.Reg.Get(X10); got != 7 {
		tt.Errorf("want 7, got %d", got)
	}
}

func TestExecute_BoundedLoop(tt *testing.T) {
	tt.Parallel()

	vm := New()

	// an infinite self-loop: jal x0, 0
	jal := encodeJType(OpJAL, 0, X0)
	if err := vm.Mem.Write32(RAMBase, jal); err != nil {
		tt.Fatalf("write: %s", err)
	}

	vm.Start(RAMBase)

	if err := vm.Execute(1000); err != nil {
		tt.Fatalf("execute: %s", err)
	}

	if vm.State != Running {
		tt.Errorf("want %s, got %s", Running, vm.State)
	}

	if vm.Perf.InstructionsExecuted != 1000 {
		tt.Errorf("want 1000 instructions, got %d", vm.Perf.InstructionsExecuted)
	}
}

// encodeR assembles an R-type instruction (OP, and OP-IMM's shift variants,
// where funct7 carries the true discriminator or, for shift-immediates, the
// funct7/shamt split the OP-IMM encoding actually uses).
func encodeR(opcode Opcode, funct7 uint32, rs2, rs1, rd GPR, funct3 uint32) uint32 {
	return funct7<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | uint32(opcode)
}

func TestStep_OpImm_LogicAndCompare(tt *testing.T) {
	tt.Parallel()

	tcs := []struct {
		name   string
		funct3 uint32
		lhs    uint64
		imm    int32
		want   uint64
	}{
		{"XORI", Funct3XOR, 0x0F, 0x3, 0x0C},
		{"ORI", Funct3OR, 0x0F, 0x30, 0x3F},
		{"ANDI", Funct3AND, 0x0F, 0x03, 0x03},
		{"SLTI true", Funct3SLT, negOne, 0, 1},
		{"SLTIU false", Funct3SLTU, negOne, 0, 0},
	}

	for _, tc := range tcs {
		tc := tc

		tt.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			vm := New()
			vm.Reg.Set(GPR(2), tc.lhs)

			raw := encodeI(OpIMM, tc.imm, GPR(2), X1, tc.funct3)
			if err := vm.Mem.Write32(RAMBase, raw); err != nil {
				t.Fatalf("write: %s", err)
			}

			vm.Start(RAMBase)

			if err := vm.Step(); err != nil {
				t.Fatalf("step: %s", err)
			}

			if got := vm.Reg.Get(X1); got != tc.want {
				t.Errorf("want %#x, got %#x", tc.want, got)
			}
		})
	}
}

const negOne = 0xFFFFFFFFFFFFFFFF

// encodeShiftImm assembles an OP-IMM shift (SLLI/SRLI/SRAI), where the
// 12-bit I-immediate field packs a 6-bit funct6 (bits 11:6) above a 6-bit
// shamt (bits 5:0), not a plain 7-bit funct7 over a 5-bit shamt as RV32 uses.
func encodeShiftImm(funct6 uint32, shamt uint32, rs1, rd GPR, funct3 uint32) uint32 {
	imm := int32(funct6<<6 | shamt&0x3f)
	return encodeI(OpIMM, imm, rs1, rd, funct3)
}

func TestStep_OpImm_ShiftLowShamt(tt *testing.T) {
	tt.Parallel()

	vm := New()
	vm.Reg.Set(GPR(2), 0xFFFFFFFFFFFFFFF0) // arbitrary non-zero low bits

	// srli x1, x2, 4
	raw := encodeShiftImm(0, 4, GPR(2), X1, Funct3SRL_SRA)
	if err := vm.Mem.Write32(RAMBase, raw); err != nil {
		tt.Fatalf("write: %s", err)
	}

	vm.Start(RAMBase)

	if err := vm.Step(); err != nil {
		tt.Fatalf("step: %s", err)
	}

	want := uint64(0x0FFFFFFFFFFFFFFF)
	if got := vm.Reg.Get(X1); got != want {
		tt.Errorf("want %#x, got %#x", want, got)
	}
}

// TestStep_OpImm_ArithmeticShiftHighShamt is a regression test: funct7's RV32
// 7-bit layout leaks the top bit of a 6-bit RV64 shamt (bit 25 of the raw
// instruction). SRAI with shamt=40 sets that bit, so a discriminator that
// compares the raw 7-bit Funct7 against Funct7Alt fails and silently executes
// SRLI instead of SRAI.
func TestStep_OpImm_ArithmeticShiftHighShamt(tt *testing.T) {
	tt.Parallel()

	vm := New()
	vm.Reg.Set(GPR(2), 0xFFFFFFFFFFFFFF00) // -256, so arithmetic vs logical diverge

	// srai x1, x2, 40
	raw := encodeShiftImm(0b010000, 40, GPR(2), X1, Funct3SRL_SRA)
	if err := vm.Mem.Write32(RAMBase, raw); err != nil {
		tt.Fatalf("write: %s", err)
	}

	in := Decode(raw)
	if in.Funct7 != 0x21 {
		tt.Fatalf("test setup: want raw Funct7 0x21 (leaking shamt bit 5), got %#x", in.Funct7)
	}

	vm.Start(RAMBase)

	if err := vm.Step(); err != nil {
		tt.Fatalf("step: %s", err)
	}

	want := uint64(negOne) // -256 >> 40 arithmetic is -1, all bits set
	if got := vm.Reg.Get(X1); got != want {
		tt.Errorf("want arithmetic shift result %#x, got %#x (logical would be %#x)",
			want, got, uint64(0xFFFFFFFFFFFFFF00)>>40)
	}
}

func TestStep_Op_ArithmeticAndLogic(tt *testing.T) {
	tt.Parallel()

	tcs := []struct {
		name   string
		funct7 uint32
		funct3 uint32
		lhs    uint64
		rhs    uint64
		want   uint64
	}{
		{"ADD", 0, Funct3ADD_SUB, 3, 4, 7},
		{"SUB", Funct7Alt, Funct3ADD_SUB, 10, 3, 7},
		{"AND", 0, Funct3AND, 0xFF, 0x0F, 0x0F},
		{"OR", 0, Funct3OR, 0xF0, 0x0F, 0xFF},
		{"XOR", 0, Funct3XOR, 0xFF, 0x0F, 0xF0},
		{"SLT true", 0, Funct3SLT, negOne, 1, 1},
		{"SLTU false", 0, Funct3SLTU, negOne, 1, 0},
		{"SLL", 0, Funct3SLL, 1, 4, 16},
		{"SRL", 0, Funct3SRL_SRA, 0xF0, 4, 0x0F},
		{"SRA", Funct7Alt, Funct3SRL_SRA, 0xFFFFFFFFFFFFFFF0, 2, 0xFFFFFFFFFFFFFFFC}, // -16 >> 2 == -4
	}

	for _, tc := range tcs {
		tc := tc

		tt.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			vm := New()
			vm.Reg.Set(GPR(2), tc.lhs)
			vm.Reg.Set(GPR(3), tc.rhs)

			raw := encodeR(OpOP, tc.funct7, GPR(3), GPR(2), X1, tc.funct3)
			if err := vm.Mem.Write32(RAMBase, raw); err != nil {
				t.Fatalf("write: %s", err)
			}

			vm.Start(RAMBase)

			if err := vm.Step(); err != nil {
				t.Fatalf("step: %s", err)
			}

			if got := vm.Reg.Get(X1); got != tc.want {
				t.Errorf("want %#x, got %#x", tc.want, got)
			}
		})
	}
}

func encodeJType(opcode Opcode, imm int32, rd GPR) uint32 {
	u := uint32(imm)
	imm20 := (u >> 20) & 1
	imm19_12 := (u >> 12) & 0xFF
	imm11 := (u >> 11) & 1
	imm10_1 := (u >> 1) & 0x3FF

	return imm20<<31 | imm10_1<<21 | imm11<<20 | imm19_12<<12 | uint32(rd)<<7 | uint32(opcode)
}
