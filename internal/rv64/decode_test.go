package rv64

import "testing"

func TestDecode(tt *testing.T) {
	tt.Parallel()

	tcs := []struct {
		name   string
		raw    uint32
		expect Instruction
	}{
		{
			// addi x1, x2, -1
			name: "ADDI negative immediate",
			raw:  0b111111111111_00010_000_00001_0010011,
			expect: Instruction{
				Opcode: OpIMM,
				RD:     X1,
				RS1:    GPR(2),
				Funct3: Funct3ADD_SUB,
				ImmI:   -1,
			},
		},
		{
			// sd x3, 8(x4)
			name: "SD immediate split across imm[11:5]/imm[4:0]",
			raw:  0b0000000_00011_00100_011_01000_0100011,
			expect: Instruction{
				Opcode: OpSTORE,
				RS1:    GPR(4),
				RS2:    GPR(3),
				Funct3: Funct3SD,
				ImmS:   8,
			},
		},
		{
			// lui x5, 0x1
			name: "LUI",
			raw:  0b00000000000000000001_00101_0110111,
			expect: Instruction{
				Opcode: OpLUI,
				RD:     GPR(5),
				ImmU:   0x1000,
			},
		},
	}

	for _, tc := range tcs {
		tc := tc

		tt.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := Decode(tc.raw)

			if got.Opcode != tc.expect.Opcode {
				t.Errorf("opcode: want %#07b, got %#07b", tc.expect.Opcode, got.Opcode)
			}

			if got.RD != tc.expect.RD {
				t.Errorf("rd: want %s, got %s", tc.expect.RD, got.RD)
			}

			if got.RS1 != tc.expect.RS1 {
				t.Errorf("rs1: want %s, got %s", tc.expect.RS1, got.RS1)
			}

			if got.RS2 != tc.expect.RS2 {
				t.Errorf("rs2: want %s, got %s", tc.expect.RS2, got.RS2)
			}

			if got.ImmI != tc.expect.ImmI {
				t.Errorf("imm_i: want %d, got %d", tc.expect.ImmI, got.ImmI)
			}

			if got.ImmS != tc.expect.ImmS {
				t.Errorf("imm_s: want %d, got %d", tc.expect.ImmS, got.ImmS)
			}

			if got.ImmU != tc.expect.ImmU {
				t.Errorf("imm_u: want %d, got %d", tc.expect.ImmU, got.ImmU)
			}
		})
	}
}

func TestDecode_BranchImmediate(tt *testing.T) {
	tt.Parallel()

	// beq x1, x2, -4 (branch to self, a common spin-loop encoding)
	raw := uint32(0b1_111111_00010_00001_000_1110_1_1100011)

	in := Decode(raw)

	if in.Opcode != OpBRANCH {
		tt.Fatalf("opcode: want %#07b, got %#07b", OpBRANCH, in.Opcode)
	}

	if in.ImmB != -4 {
		tt.Errorf("imm_b: want -4, got %d", in.ImmB)
	}
}

func TestDecode_JumpImmediate(tt *testing.T) {
	tt.Parallel()

	// jal x1, -4
	raw := uint32(0b1_1111111110_1_11111111_00001_1101111)

	in := Decode(raw)

	if in.Opcode != OpJAL {
		tt.Fatalf("opcode: want %#07b, got %#07b", OpJAL, in.Opcode)
	}

	if in.ImmJ != -4 {
		tt.Errorf("imm_j: want -4, got %d", in.ImmJ)
	}
}
