package rv64

// exec.go implements the instruction cycle: fetch, decode, execute.

import (
	"errors"
	"fmt"
)

// ErrInvalidInstruction is returned (and transitions the VM to Errored) when
// an opcode this interpreter does not implement is fetched.
var ErrInvalidInstruction = errors.New("invalid instruction")

// Step executes a single instruction. If the VM is not running, it returns
// immediately without error, matching spec.md §4.3's execution step 1.
func (vm *VM) Step() error {
	if vm.State != Running {
		return nil
	}

	raw, err := vm.Mem.Read32(vm.PC)
	if err != nil {
		// A bad fetch address (e.g. a JALR landing outside RAM) is
		// guest-visible, not fatal: the VM stays running and the caller
		// decides what to do next. Only an undecodable opcode is fatal.
		return err
	}

	in := Decode(raw)
	vm.Perf.RecordFetch(vm.PC)

	nextPC := vm.PC + 4

	switch in.Opcode {
	case OpLUI:
		vm.Reg.Set(in.RD, uint64(in.ImmU))
	case OpAUIPC:
		vm.Reg.Set(in.RD, vm.PC+uint64(in.ImmU))
	case OpIMM:
		vm.execOpImm(in)
	case OpOP:
		vm.execOp(in)
	case OpLOAD:
		if err := vm.execLoad(in); err != nil {
			return err
		}
	case OpSTORE:
		if err := vm.execStore(in); err != nil {
			return err
		}
	case OpBRANCH:
		if vm.execBranch(in) {
			nextPC = vm.PC + uint64(in.ImmB)
		}
	case OpJAL:
		vm.Reg.Set(in.RD, nextPC)
		nextPC = vm.PC + uint64(in.ImmJ)
	case OpJALR:
		target := (vm.Reg.Get(in.RS1) + uint64(in.ImmI)) &^ 1
		vm.Reg.Set(in.RD, nextPC)
		nextPC = target
	case OpSYSTEM:
		if in.Funct3 == Funct3ECALL {
			vm.execECALL()
			// execECALL advances PC itself, matching spec.md §4.3 step 6.
			return nil
		}

		vm.fault(fmt.Errorf("%w: %#08x", ErrInvalidInstruction, raw))

		return vm.LastError
	default:
		vm.fault(fmt.Errorf("%w: %#08x", ErrInvalidInstruction, raw))
		return vm.LastError
	}

	vm.PC = nextPC
	vm.Perf.InstructionsExecuted++

	return nil
}

// Execute runs the VM for up to maxSteps instructions, or until it leaves the
// running state. No unbounded loops: this is the only entry point that runs
// more than one instruction.
func (vm *VM) Execute(maxSteps uint64) error {
	for i := uint64(0); i < maxSteps && vm.State == Running; i++ {
		if err := vm.Step(); err != nil {
			return err
		}
	}

	return nil
}

// fault transitions the VM to Errored and records the cause. Per spec.md §7,
// only a fatal, kernel-local condition (here: an unimplemented opcode)
// reaches this path; memory errors are returned from Step without changing
// the VM's state, and guest-visible errors surface as negative return codes.
func (vm *VM) fault(err error) {
	vm.State = Errored
	vm.LastError = err
}

func (vm *VM) execOpImm(in Instruction) {
	lhs := vm.Reg.Get(in.RS1)
	imm := uint64(in.ImmI)

	var result uint64

	switch in.Funct3 {
	case Funct3ADD_SUB:
		result = lhs + imm
	case Funct3SLT:
		result = boolToWord(int64(lhs) < int64(imm))
	case Funct3SLTU:
		result = boolToWord(lhs < imm)
	case Funct3XOR:
		result = lhs ^ imm
	case Funct3OR:
		result = lhs | imm
	case Funct3AND:
		result = lhs & imm
	case Funct3SLL:
		result = lhs << (imm & 0x3f)
	case Funct3SRL_SRA:
		// For OP-IMM, the shift amount is 6 bits (instruction bits 25:20), so
		// bit 25 of Funct7 belongs to shamt, not the SRL/SRA discriminator.
		// Only the true funct6 (bits 31:26) selects arithmetic vs. logical.
		shamt := imm & 0x3f
		if in.Funct7>>1 == Funct7Alt>>1 {
			result = uint64(int64(lhs) >> shamt)
		} else {
			result = lhs >> shamt
		}
	}

	vm.Reg.Set(in.RD, result)
}

func (vm *VM) execOp(in Instruction) {
	lhs, rhs := vm.Reg.Get(in.RS1), vm.Reg.Get(in.RS2)

	var result uint64

	switch in.Funct3 {
	case Funct3ADD_SUB:
		if in.Funct7 == Funct7Alt {
			result = lhs - rhs
		} else {
			result = lhs + rhs
		}
	case Funct3SLT:
		result = boolToWord(int64(lhs) < int64(rhs))
	case Funct3SLTU:
		result = boolToWord(lhs < rhs)
	case Funct3XOR:
		result = lhs ^ rhs
	case Funct3OR:
		result = lhs | rhs
	case Funct3AND:
		result = lhs & rhs
	case Funct3SLL:
		result = lhs << (rhs & 0x3f)
	case Funct3SRL_SRA:
		shamt := rhs & 0x3f
		if in.Funct7 == Funct7Alt {
			result = uint64(int64(lhs) >> shamt)
		} else {
			result = lhs >> shamt
		}
	}

	vm.Reg.Set(in.RD, result)
}

func (vm *VM) execLoad(in Instruction) error {
	addr := vm.Reg.Get(in.RS1) + uint64(in.ImmI)

	var result uint64

	switch in.Funct3 {
	case Funct3LB:
		v, err := vm.Mem.Read8(addr)
		if err != nil {
			return err
		}

		result = uint64(signExtend(uint64(v), 8))
	case Funct3LBU:
		v, err := vm.Mem.Read8(addr)
		if err != nil {
			return err
		}

		result = uint64(v)
	case Funct3LH:
		v, err := vm.Mem.Read16(addr)
		if err != nil {
			return err
		}

		result = uint64(signExtend(uint64(v), 16))
	case Funct3LHU:
		v, err := vm.Mem.Read16(addr)
		if err != nil {
			return err
		}

		result = uint64(v)
	case Funct3LW:
		v, err := vm.Mem.Read32(addr)
		if err != nil {
			return err
		}

		result = uint64(signExtend(uint64(v), 32))
	case Funct3LWU:
		v, err := vm.Mem.Read32(addr)
		if err != nil {
			return err
		}

		result = uint64(v)
	case Funct3LD:
		v, err := vm.Mem.Read64(addr)
		if err != nil {
			return err
		}

		result = v
	}

	vm.Reg.Set(in.RD, result)

	return nil
}

func (vm *VM) execStore(in Instruction) error {
	addr := vm.Reg.Get(in.RS1) + uint64(in.ImmS)
	val := vm.Reg.Get(in.RS2)

	switch in.Funct3 {
	case Funct3SB:
		return vm.Mem.Write8(addr, uint8(val))
	case Funct3SH:
		return vm.Mem.Write16(addr, uint16(val))
	case Funct3SW:
		return vm.Mem.Write32(addr, uint32(val))
	case Funct3SD:
		return vm.Mem.Write64(addr, val)
	}

	return nil
}

func (vm *VM) execBranch(in Instruction) bool {
	lhs, rhs := vm.Reg.Get(in.RS1), vm.Reg.Get(in.RS2)

	var taken bool

	switch in.Funct3 {
	case Funct3BEQ:
		taken = lhs == rhs
	case Funct3BNE:
		taken = lhs != rhs
	case Funct3BLT:
		taken = int64(lhs) < int64(rhs)
	case Funct3BGE:
		taken = int64(lhs) >= int64(rhs)
	case Funct3BLTU:
		taken = lhs < rhs
	case Funct3BGEU:
		taken = lhs >= rhs
	}

	vm.Perf.RecordBranch(vm.PC, taken)

	return taken
}

// execECALL implements spec.md §4.3 step 6: halt, invoke the trap (if any),
// resume. Absent a trap handler, a0 receives invalid_syscall (-8), matching
// the error-code convention of kernel.ErrInvalidSyscall without importing the
// kernel package (which would create an import cycle).
func (vm *VM) execECALL() {
	vm.State = Halted

	if vm.Trap != nil {
		vm.Trap(vm)
	} else {
		invalidSyscall := int64(-8)
		vm.Reg.Set(X10, uint64(invalidSyscall))
	}

	vm.PC += 4
	vm.State = Running
}

func boolToWord(b bool) uint64 {
	if b {
		return 1
	}

	return 0
}
