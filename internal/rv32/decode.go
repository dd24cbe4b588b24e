package rv32

import "fmt"

// Major opcode values for the regular 32-bit encoding.
const (
	opcodeLoad    = 0b0000011
	opcodeMiscMem = 0b0001111
	opcodeOpImm   = 0b0010011
	opcodeAuipc   = 0b0010111
	opcodeStore   = 0b0100011
	opcodeAMO     = 0b0101111
	opcodeOp      = 0b0110011
	opcodeLui     = 0b0110111
	opcodeBranch  = 0b1100011
	opcodeJalr    = 0b1100111
	opcodeJal     = 0b1101111
	opcodeSystem  = 0b1110011
)

// Instruction field extraction.
func opcode(word uint32) uint32 { return word & 0x7f }
func rdBits(word uint32) uint32 { return (word >> 7) & 0x1f }
func funct3(word uint32) uint32 { return (word >> 12) & 0x7 }
func rs1Bits(word uint32) uint32 {
	return (word >> 15) & 0x1f
}
func rs2Bits(word uint32) uint32 {
	return (word >> 20) & 0x1f
}
func funct7(word uint32) uint32 { return (word >> 25) & 0x7f }
func funct5(word uint32) uint32 { return (word >> 27) & 0x1f }

// signExtend sign-extends the low bits of val to 32 bits.
func signExtend(val uint32, bits uint32) int32 {
	shift := 32 - bits
	return int32(val<<shift) >> shift
}

// Immediate reconstruction, bit-exact per encoding type.
func immI(word uint32) int32 {
	return signExtend(word>>20, 12)
}

func immS(word uint32) int32 {
	imm := (word >> 7) & 0x1f
	imm |= ((word >> 25) & 0x7f) << 5
	return signExtend(imm, 12)
}

func immB(word uint32) int32 {
	imm := ((word >> 8) & 0xf) << 1
	imm |= ((word >> 25) & 0x3f) << 5
	imm |= ((word >> 7) & 0x1) << 11
	imm |= ((word >> 31) & 0x1) << 12
	return signExtend(imm, 13)
}

func immU(word uint32) int32 {
	return int32(word & 0xfffff000)
}

func immJ(word uint32) int32 {
	imm := ((word >> 21) & 0x3ff) << 1
	imm |= ((word >> 20) & 0x1) << 11
	imm |= ((word >> 12) & 0xff) << 12
	imm |= ((word >> 31) & 0x1) << 20
	return signExtend(imm, 21)
}

// Decode decodes one fetched word. The low two bits select the length:
// 0, 1 and 2 are the compressed quadrants Q0/Q1/Q2 (only the low 16 bits
// of word are significant), 3 is the regular 32-bit encoding.
func Decode(word uint32) (Instruction, error) {
	if word&0x3 != 0x3 {
		return decodeCompressed(uint16(word))
	}

	switch opcode(word) {
	case opcodeLui:
		return Instruction{Op: OpLui, Rd: rdBits(word), Imm: immU(word)}, nil
	case opcodeAuipc:
		return Instruction{Op: OpAuipc, Rd: rdBits(word), Imm: immU(word)}, nil
	case opcodeJal:
		return Instruction{Op: OpJal, Rd: rdBits(word), Imm: immJ(word)}, nil
	case opcodeJalr:
		if funct3(word) != 0 {
			return Instruction{}, fmt.Errorf("jalr with funct3=%d", funct3(word))
		}
		return Instruction{Op: OpJalr, Rd: rdBits(word), Rs1: rs1Bits(word), Imm: immI(word)}, nil
	case opcodeBranch:
		return decodeBranch(word)
	case opcodeLoad:
		return decodeLoad(word)
	case opcodeStore:
		return decodeStore(word)
	case opcodeOpImm:
		return decodeOpImm(word)
	case opcodeOp:
		return decodeOp(word)
	case opcodeMiscMem:
		// FENCE and FENCE.I; both are no-ops on a single hart.
		return Instruction{Op: OpFence, Rd: rdBits(word), Rs1: rs1Bits(word), Imm: immI(word)}, nil
	case opcodeSystem:
		return decodeSystem(word)
	case opcodeAMO:
		return decodeAMO(word)
	default:
		return Instruction{}, fmt.Errorf("unknown opcode 0b%07b in word 0x%08x", opcode(word), word)
	}
}

func decodeBranch(word uint32) (Instruction, error) {
	inst := Instruction{Rs1: rs1Bits(word), Rs2: rs2Bits(word), Imm: immB(word)}
	switch funct3(word) {
	case 0b000:
		inst.Op = OpBeq
	case 0b001:
		inst.Op = OpBne
	case 0b100:
		inst.Op = OpBlt
	case 0b101:
		inst.Op = OpBge
	case 0b110:
		inst.Op = OpBltu
	case 0b111:
		inst.Op = OpBgeu
	default:
		return Instruction{}, fmt.Errorf("branch with funct3=%d", funct3(word))
	}
	return inst, nil
}

func decodeLoad(word uint32) (Instruction, error) {
	inst := Instruction{Rd: rdBits(word), Rs1: rs1Bits(word), Imm: immI(word)}
	switch funct3(word) {
	case 0b000:
		inst.Op = OpLb
	case 0b001:
		inst.Op = OpLh
	case 0b010:
		inst.Op = OpLw
	case 0b100:
		inst.Op = OpLbu
	case 0b101:
		inst.Op = OpLhu
	default:
		return Instruction{}, fmt.Errorf("load with funct3=%d", funct3(word))
	}
	return inst, nil
}

func decodeStore(word uint32) (Instruction, error) {
	inst := Instruction{Rs1: rs1Bits(word), Rs2: rs2Bits(word), Imm: immS(word)}
	switch funct3(word) {
	case 0b000:
		inst.Op = OpSb
	case 0b001:
		inst.Op = OpSh
	case 0b010:
		inst.Op = OpSw
	default:
		return Instruction{}, fmt.Errorf("store with funct3=%d", funct3(word))
	}
	return inst, nil
}

func decodeOpImm(word uint32) (Instruction, error) {
	inst := Instruction{Rd: rdBits(word), Rs1: rs1Bits(word), Imm: immI(word)}
	switch funct3(word) {
	case 0b000:
		inst.Op = OpAddi
	case 0b001:
		inst.Op = OpSlli
		inst.Imm &= 0x1f
	case 0b010:
		inst.Op = OpSlti
	case 0b011:
		inst.Op = OpSltiu
	case 0b100:
		inst.Op = OpXori
	case 0b101:
		// SRAI is distinguished by bit 30 of the word (0x400 after the
		// immediate shift).
		if uint32(inst.Imm)&0x400 != 0 {
			inst.Op = OpSrai
		} else {
			inst.Op = OpSrli
		}
		inst.Imm &= 0x1f
	case 0b110:
		inst.Op = OpOri
	case 0b111:
		inst.Op = OpAndi
	}
	return inst, nil
}

func decodeOp(word uint32) (Instruction, error) {
	inst := Instruction{Rd: rdBits(word), Rs1: rs1Bits(word), Rs2: rs2Bits(word)}
	f7 := funct7(word)
	m := f7&0x1 != 0

	switch funct3(word) {
	case 0b000:
		switch {
		case m:
			inst.Op = OpMul
		case f7 == 0x20:
			inst.Op = OpSub
		default:
			inst.Op = OpAdd
		}
	case 0b001:
		if m {
			inst.Op = OpMulh
		} else {
			inst.Op = OpSll
		}
	case 0b010:
		if m {
			inst.Op = OpMulhsu
		} else {
			inst.Op = OpSlt
		}
	case 0b011:
		if m {
			inst.Op = OpMulhu
		} else {
			inst.Op = OpSltu
		}
	case 0b100:
		if m {
			inst.Op = OpDiv
		} else {
			inst.Op = OpXor
		}
	case 0b101:
		switch {
		case m:
			inst.Op = OpDivu
		case f7 == 0x20:
			inst.Op = OpSra
		default:
			inst.Op = OpSrl
		}
	case 0b110:
		if m {
			inst.Op = OpRem
		} else {
			inst.Op = OpOr
		}
	case 0b111:
		if m {
			inst.Op = OpRemu
		} else {
			inst.Op = OpAnd
		}
	}
	return inst, nil
}

func decodeSystem(word uint32) (Instruction, error) {
	inst := Instruction{Rd: rdBits(word), Rs1: rs1Bits(word), Imm: int32(word >> 20)}
	switch funct3(word) {
	case 0b000:
		switch word >> 20 {
		case 0x000:
			return Instruction{Op: OpEcall}, nil
		case 0x001:
			return Instruction{Op: OpEbreak}, nil
		case 0x302:
			return Instruction{Op: OpMret}, nil
		case 0x105:
			return Instruction{Op: OpWfi}, nil
		default:
			return Instruction{}, fmt.Errorf("system instruction with immediate 0x%03x", word>>20)
		}
	case 0b001:
		inst.Op = OpCsrrw
	case 0b010:
		inst.Op = OpCsrrs
	case 0b011:
		inst.Op = OpCsrrc
	case 0b101:
		inst.Op = OpCsrrwi
	case 0b110:
		inst.Op = OpCsrrsi
	case 0b111:
		inst.Op = OpCsrrci
	default:
		return Instruction{}, fmt.Errorf("system instruction with funct3=%d", funct3(word))
	}
	return inst, nil
}

func decodeAMO(word uint32) (Instruction, error) {
	if funct3(word) != 0b010 {
		return Instruction{}, fmt.Errorf("amo with funct3=%d", funct3(word))
	}
	inst := Instruction{Rd: rdBits(word), Rs1: rs1Bits(word), Rs2: rs2Bits(word)}
	switch funct5(word) {
	case 0b00010:
		if rs2Bits(word) != 0 {
			return Instruction{}, fmt.Errorf("lr.w with rs2=%d", rs2Bits(word))
		}
		inst.Op = OpLrW
		inst.Rs2 = 0
	case 0b00011:
		inst.Op = OpScW
	case 0b00001:
		inst.Op = OpAmoswapW
	case 0b00000:
		inst.Op = OpAmoaddW
	case 0b00100:
		inst.Op = OpAmoxorW
	case 0b01100:
		inst.Op = OpAmoandW
	case 0b01000:
		inst.Op = OpAmoorW
	case 0b10000:
		inst.Op = OpAmominW
	case 0b10100:
		inst.Op = OpAmomaxW
	case 0b11000:
		inst.Op = OpAmominuW
	case 0b11100:
		inst.Op = OpAmomaxuW
	default:
		return Instruction{}, fmt.Errorf("amo with funct5=0b%05b", funct5(word))
	}
	return inst, nil
}
