package rv32

import "testing"

// Encoding helpers mirroring the standard instruction formats.
func encodeR(funct7, rs2, rs1, f3, rd, op uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | f3<<12 | rd<<7 | op
}

func encodeI(imm, rs1, f3, rd, op uint32) uint32 {
	return imm<<20 | rs1<<15 | f3<<12 | rd<<7 | op
}

func encodeS(imm, rs2, rs1, f3, op uint32) uint32 {
	return (imm>>5)<<25 | rs2<<20 | rs1<<15 | f3<<12 | (imm&0x1f)<<7 | op
}

func TestDecodeALU(t *testing.T) {
	tests := []struct {
		word uint32
		want Instruction
	}{
		// Words lifted from hand-assembled firmware.
		{0x00b50633, Instruction{Op: OpAdd, Rd: 12, Rs1: 10, Rs2: 11}},  // add a2, a0, a1
		{0x40b506b3, Instruction{Op: OpSub, Rd: 13, Rs1: 10, Rs2: 11}},  // sub a3, a0, a1
		{0x00b57733, Instruction{Op: OpAnd, Rd: 14, Rs1: 10, Rs2: 11}},  // and a4, a0, a1
		{0x00b567b3, Instruction{Op: OpOr, Rd: 15, Rs1: 10, Rs2: 11}},   // or a5, a0, a1
		{0x00b54833, Instruction{Op: OpXor, Rd: 16, Rs1: 10, Rs2: 11}},  // xor a6, a0, a1
		{0x00a00593, Instruction{Op: OpAddi, Rd: 11, Imm: 10}},          // li a1, 10
		{0xfff00513, Instruction{Op: OpAddi, Rd: 10, Imm: -1}},          // li a0, -1
		{0x10000537, Instruction{Op: OpLui, Rd: 10, Imm: 0x10000000}},   // lui a0, 0x10000
		{0x00155513, Instruction{Op: OpSrli, Rd: 10, Rs1: 10, Imm: 1}},  // srli a0, a0, 1
		{0x40155513, Instruction{Op: OpSrai, Rd: 10, Rs1: 10, Imm: 1}},  // srai a0, a0, 1
		{0x00151513, Instruction{Op: OpSlli, Rd: 10, Rs1: 10, Imm: 1}},  // slli a0, a0, 1
		{0x02b50633, Instruction{Op: OpMul, Rd: 12, Rs1: 10, Rs2: 11}},  // mul a2, a0, a1
		{0x02b546b3, Instruction{Op: OpDiv, Rd: 13, Rs1: 10, Rs2: 11}},  // div a3, a0, a1
		{0x02b56733, Instruction{Op: OpRem, Rd: 14, Rs1: 10, Rs2: 11}},  // rem a4, a0, a1
	}
	for _, tc := range tests {
		got, err := Decode(tc.word)
		if err != nil {
			t.Fatalf("Decode(0x%08x): %v", tc.word, err)
		}
		if got != tc.want {
			t.Errorf("Decode(0x%08x) = %+v, want %+v", tc.word, got, tc.want)
		}
	}
}

func TestDecodeMemory(t *testing.T) {
	tests := []struct {
		word uint32
		want Instruction
	}{
		{0x00b50023, Instruction{Op: OpSb, Rs1: 10, Rs2: 11}},         // sb a1, 0(a0)
		{0x0005a583, Instruction{Op: OpLw, Rd: 11, Rs1: 11}},          // lw a1, 0(a1)
		{encodeI(0xfff, 2, 0b000, 10, opcodeLoad), Instruction{Op: OpLb, Rd: 10, Rs1: 2, Imm: -1}},
		{encodeI(4, 8, 0b101, 9, opcodeLoad), Instruction{Op: OpLhu, Rd: 9, Rs1: 8, Imm: 4}},
		{encodeS(0xffc&0xfff, 11, 2, 0b010, opcodeStore), Instruction{Op: OpSw, Rs1: 2, Rs2: 11, Imm: -4}},
		{encodeS(6, 11, 10, 0b001, opcodeStore), Instruction{Op: OpSh, Rs1: 10, Rs2: 11, Imm: 6}},
	}
	for _, tc := range tests {
		got, err := Decode(tc.word)
		if err != nil {
			t.Fatalf("Decode(0x%08x): %v", tc.word, err)
		}
		if got != tc.want {
			t.Errorf("Decode(0x%08x) = %+v, want %+v", tc.word, got, tc.want)
		}
	}
}

func TestDecodeControlFlow(t *testing.T) {
	tests := []struct {
		word uint32
		want Instruction
	}{
		{0x00b50463, Instruction{Op: OpBeq, Rs1: 10, Rs2: 11, Imm: 8}},  // beq a0, a1, +8
		{0xfe000ee3, Instruction{Op: OpBeq, Imm: -4}},                   // beq zero, zero, -4
		{0xffdff06f, Instruction{Op: OpJal, Imm: -4}},                   // jal zero, -4
		{0x008000ef, Instruction{Op: OpJal, Rd: 1, Imm: 8}},             // jal ra, +8
		{0x00008067, Instruction{Op: OpJalr, Rs1: 1}},                   // ret
	}
	for _, tc := range tests {
		got, err := Decode(tc.word)
		if err != nil {
			t.Fatalf("Decode(0x%08x): %v", tc.word, err)
		}
		if got != tc.want {
			t.Errorf("Decode(0x%08x) = %+v, want %+v", tc.word, got, tc.want)
		}
	}
}

func TestDecodeSystem(t *testing.T) {
	tests := []struct {
		word uint32
		want Opcode
	}{
		{0x00000073, OpEcall},
		{0x00100073, OpEbreak},
		{0x30200073, OpMret},
		{0x10500073, OpWfi},
		{0x30529073, OpCsrrw},  // csrrw x0, mtvec, t0
		{0x3002a573, OpCsrrs},  // csrrs a0, mstatus, t0
		{0x3047d073, OpCsrrwi}, // csrrwi x0, mie, 15
	}
	for _, tc := range tests {
		got, err := Decode(tc.word)
		if err != nil {
			t.Fatalf("Decode(0x%08x): %v", tc.word, err)
		}
		if got.Op != tc.want {
			t.Errorf("Decode(0x%08x).Op = %v, want %v", tc.word, got.Op, tc.want)
		}
	}
}

func TestDecodeCSRSelector(t *testing.T) {
	inst, err := Decode(0x30529073) // csrrw x0, mtvec, t0
	if err != nil {
		t.Fatal(err)
	}
	if inst.CSR() != CSRMtvec {
		t.Errorf("CSR() = 0x%03x, want 0x%03x", inst.CSR(), uint32(CSRMtvec))
	}
	if inst.Rs1 != 5 {
		t.Errorf("Rs1 = %d, want 5", inst.Rs1)
	}
}

func TestDecodeAtomics(t *testing.T) {
	tests := []struct {
		word uint32
		want Instruction
	}{
		{encodeR(0b00010<<2, 0, 10, 0b010, 5, opcodeAMO), Instruction{Op: OpLrW, Rd: 5, Rs1: 10}},
		{encodeR(0b00011<<2, 7, 10, 0b010, 6, opcodeAMO), Instruction{Op: OpScW, Rd: 6, Rs1: 10, Rs2: 7}},
		{encodeR(0b00001<<2, 11, 10, 0b010, 12, opcodeAMO), Instruction{Op: OpAmoswapW, Rd: 12, Rs1: 10, Rs2: 11}},
		{encodeR(0b00000<<2, 11, 10, 0b010, 12, opcodeAMO), Instruction{Op: OpAmoaddW, Rd: 12, Rs1: 10, Rs2: 11}},
		{encodeR(0b11100<<2, 11, 10, 0b010, 12, opcodeAMO), Instruction{Op: OpAmomaxuW, Rd: 12, Rs1: 10, Rs2: 11}},
	}
	for _, tc := range tests {
		got, err := Decode(tc.word)
		if err != nil {
			t.Fatalf("Decode(0x%08x): %v", tc.word, err)
		}
		if got != tc.want {
			t.Errorf("Decode(0x%08x) = %+v, want %+v", tc.word, got, tc.want)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	words := []uint32{
		0x0000007f,          // unknown major opcode
		0x00000000,          // all-zero Q0 pattern is illegal
		0x00200073,          // system with unknown immediate
		encodeR(0, 0, 0, 0b011, 0, opcodeStore), // store with bad funct3
	}
	for _, word := range words {
		if _, err := Decode(word); err == nil {
			t.Errorf("Decode(0x%08x) succeeded, want error", word)
		}
	}
}

func TestDisassembly(t *testing.T) {
	tests := []struct {
		word uint32
		want string
	}{
		{0x00b50633, "add a2, a0, a1"},
		{0x00a00593, "addi a1, zero, 10"},
		{0x10000537, "lui a0, 0x10000"},
		{0x00b50023, "sb a1, 0(a0)"},
		{0x00100073, "ebreak"},
	}
	for _, tc := range tests {
		inst, err := Decode(tc.word)
		if err != nil {
			t.Fatal(err)
		}
		if got := inst.String(); got != tc.want {
			t.Errorf("String(0x%08x) = %q, want %q", tc.word, got, tc.want)
		}
	}
}

func TestClassification(t *testing.T) {
	csr, _ := Decode(0x30529073)
	if !csr.IsZicsr() || csr.IsM() || csr.IsCompressed() {
		t.Errorf("csrrw misclassified: zicsr=%v m=%v c=%v", csr.IsZicsr(), csr.IsM(), csr.IsCompressed())
	}
	mul, _ := Decode(0x02b50633)
	if !mul.IsM() || mul.IsZicsr() {
		t.Errorf("mul misclassified")
	}
	cli, _ := Decode(0x450d) // c.li a0, 3
	if !cli.IsCompressed() {
		t.Errorf("c.li not classified as compressed")
	}
}
