package rv64

// decode.go extracts the RV64I instruction fields used by the interpreter.
// Field layouts follow the standard RISC-V encoding; see the base ISA manual
// and, for a from-scratch Go decoder to cross-check against, the RV64
// interpreters in the reference pack (tinyrange-cc's ccvm, bassosimone's
// risc32).

// Opcode is the 7-bit opcode field (instruction bits 6:0).
type Opcode uint32

// Base-ISA opcodes this interpreter decodes.
const (
	OpLUI    Opcode = 0b011_0111
	OpAUIPC  Opcode = 0b001_0111
	OpJAL    Opcode = 0b110_1111
	OpJALR   Opcode = 0b110_0111
	OpBRANCH Opcode = 0b110_0011
	OpLOAD   Opcode = 0b000_0011
	OpSTORE  Opcode = 0b010_0011
	OpIMM    Opcode = 0b001_0011
	OpOP     Opcode = 0b011_0011
	OpSYSTEM Opcode = 0b111_0011
)

// Instruction is a decoded RV64I instruction, keeping the raw word and the
// fields needed to execute it. Not every field is meaningful for every
// opcode; Decode only populates what the opcode requires.
type Instruction struct {
	Raw    uint32
	Opcode Opcode

	RD, RS1, RS2 GPR
	Funct3       uint32
	Funct7       uint32

	ImmI, ImmS, ImmB, ImmU, ImmJ int64
}

func bits(v uint32, hi, lo uint) uint32 {
	return (v >> lo) & ((1 << (hi - lo + 1)) - 1)
}

// Decode extracts the fields of raw that its opcode's instruction format
// defines and leaves the others zero; I-type opcodes also keep Funct7, which
// OP-IMM shifts use. Decode itself never fails: an instruction with an opcode
// this interpreter does not implement keeps every field, and Execute reports
// invalid_instruction.
func Decode(raw uint32) Instruction {
	in := Instruction{
		Raw:    raw,
		Opcode: Opcode(bits(raw, 6, 0)),
		RD:     GPR(bits(raw, 11, 7)),
		Funct3: bits(raw, 14, 12),
		RS1:    GPR(bits(raw, 19, 15)),
		RS2:    GPR(bits(raw, 24, 20)),
		Funct7: bits(raw, 31, 25),
	}

	in.ImmI = int64(signExtend(uint64(bits(raw, 31, 20)), 12))

	sImm := bits(raw, 31, 25)<<5 | bits(raw, 11, 7)
	in.ImmS = int64(signExtend(uint64(sImm), 12))

	bImm := bits(raw, 31, 31)<<12 | bits(raw, 7, 7)<<11 | bits(raw, 30, 25)<<5 | bits(raw, 11, 8)<<1
	in.ImmB = int64(signExtend(uint64(bImm), 13))

	in.ImmU = int64(int32(raw & 0xFFFFF000))

	jImm := bits(raw, 31, 31)<<20 | bits(raw, 19, 12)<<12 | bits(raw, 20, 20)<<11 | bits(raw, 30, 21)<<1
	in.ImmJ = int64(signExtend(uint64(jImm), 21))

	switch in.Opcode {
	case OpLUI, OpAUIPC:
		in = Instruction{Raw: raw, Opcode: in.Opcode, RD: in.RD, ImmU: in.ImmU}
	case OpJAL:
		in = Instruction{Raw: raw, Opcode: in.Opcode, RD: in.RD, ImmJ: in.ImmJ}
	case OpJALR, OpLOAD, OpIMM, OpSYSTEM:
		in = Instruction{Raw: raw, Opcode: in.Opcode, RD: in.RD, RS1: in.RS1, Funct3: in.Funct3, Funct7: in.Funct7, ImmI: in.ImmI}
	case OpSTORE:
		in = Instruction{Raw: raw, Opcode: in.Opcode, RS1: in.RS1, RS2: in.RS2, Funct3: in.Funct3, ImmS: in.ImmS}
	case OpBRANCH:
		in = Instruction{Raw: raw, Opcode: in.Opcode, RS1: in.RS1, RS2: in.RS2, Funct3: in.Funct3, ImmB: in.ImmB}
	case OpOP:
		in = Instruction{Raw: raw, Opcode: in.Opcode, RD: in.RD, RS1: in.RS1, RS2: in.RS2, Funct3: in.Funct3, Funct7: in.Funct7}
	}

	return in
}

// RV64I funct3 values used by OP-IMM and OP.
const (
	Funct3ADD_SUB = 0b000
	Funct3SLL     = 0b001
	Funct3SLT     = 0b010
	Funct3SLTU    = 0b011
	Funct3XOR     = 0b100
	Funct3SRL_SRA = 0b101
	Funct3OR      = 0b110
	Funct3AND     = 0b111

	Funct3LB  = 0b000
	Funct3LH  = 0b001
	Funct3LW  = 0b010
	Funct3LD  = 0b011
	Funct3LBU = 0b100
	Funct3LHU = 0b101
	Funct3LWU = 0b110

	Funct3SB = 0b000
	Funct3SH = 0b001
	Funct3SW = 0b010
	Funct3SD = 0b011

	Funct3BEQ  = 0b000
	Funct3BNE  = 0b001
	Funct3BLT  = 0b100
	Funct3BGE  = 0b101
	Funct3BLTU = 0b110
	Funct3BGEU = 0b111

	Funct7Alt = 0b010_0000 // distinguishes SUB from ADD, SRA from SRL

	Funct3ECALL = 0b000
)
