package rv32

import "fmt"

// Compressed instruction field extraction.
func cFunct3(half uint16) uint16 { return (half >> 13) & 0x7 }

// 3-bit register fields, mapped onto x8-x15.
func cRdPrime(half uint16) uint32  { return uint32((half>>2)&0x7) + 8 }
func cRs1Prime(half uint16) uint32 { return uint32((half>>7)&0x7) + 8 }
func cRs2Prime(half uint16) uint32 { return uint32((half>>2)&0x7) + 8 }

// Full 5-bit register fields.
func cRd(half uint16) uint32  { return uint32(half>>7) & 0x1f }
func cRs2(half uint16) uint32 { return uint32(half>>2) & 0x1f }

// imm6 extracts the common [12|6:2] 6-bit immediate, sign-extended.
func cImm6(half uint16) int32 {
	imm := uint32(half>>2) & 0x1f
	imm |= (uint32(half>>12) & 0x1) << 5
	return signExtend(imm, 6)
}

// decodeCompressed decodes one 16-bit slot from quadrant Q0, Q1 or Q2.
func decodeCompressed(half uint16) (Instruction, error) {
	switch half & 0x3 {
	case 0b00:
		return decodeQ0(half)
	case 0b01:
		return decodeQ1(half)
	case 0b10:
		return decodeQ2(half)
	}
	return Instruction{}, fmt.Errorf("not a compressed encoding: 0x%04x", half)
}

func decodeQ0(half uint16) (Instruction, error) {
	switch cFunct3(half) {
	case 0b000:
		// C.ADDI4SPN; the all-zero pattern is the defined illegal
		// instruction and falls out of the imm==0 check.
		imm := (uint32(half>>6) & 0x1) << 2
		imm |= (uint32(half>>5) & 0x1) << 3
		imm |= (uint32(half>>11) & 0x3) << 4
		imm |= (uint32(half>>7) & 0xf) << 6
		if imm == 0 {
			return Instruction{}, fmt.Errorf("illegal compressed instruction 0x%04x", half)
		}
		return Instruction{Op: OpCAddi4spn, Rd: cRdPrime(half), Imm: int32(imm)}, nil

	case 0b010: // C.LW
		imm := (uint32(half>>6) & 0x1) << 2
		imm |= (uint32(half>>10) & 0x7) << 3
		imm |= (uint32(half>>5) & 0x1) << 6
		return Instruction{Op: OpCLw, Rd: cRdPrime(half), Rs1: cRs1Prime(half), Imm: int32(imm)}, nil

	case 0b110: // C.SW
		imm := (uint32(half>>6) & 0x1) << 2
		imm |= (uint32(half>>10) & 0x7) << 3
		imm |= (uint32(half>>5) & 0x1) << 6
		return Instruction{Op: OpCSw, Rs1: cRs1Prime(half), Rs2: cRs2Prime(half), Imm: int32(imm)}, nil
	}
	// The remaining Q0 slots are the FP and 128-bit load/store forms.
	return Instruction{}, fmt.Errorf("unimplemented Q0 compressed instruction 0x%04x", half)
}

func decodeQ1(half uint16) (Instruction, error) {
	switch cFunct3(half) {
	case 0b000: // C.NOP / C.ADDI
		rd := cRd(half)
		if rd == 0 {
			return Instruction{Op: OpCNop}, nil
		}
		return Instruction{Op: OpCAddi, Rd: rd, Rs1: rd, Imm: cImm6(half)}, nil

	case 0b001: // C.JAL (RV32 only)
		return Instruction{Op: OpCJal, Rd: 1, Imm: cjImm(half)}, nil

	case 0b010: // C.LI
		return Instruction{Op: OpCLi, Rd: cRd(half), Imm: cImm6(half)}, nil

	case 0b011: // C.ADDI16SP / C.LUI
		rd := cRd(half)
		if rd == 2 {
			imm := (uint32(half>>6) & 0x1) << 4
			imm |= (uint32(half>>2) & 0x1) << 5
			imm |= (uint32(half>>5) & 0x1) << 6
			imm |= (uint32(half>>3) & 0x3) << 7
			imm |= (uint32(half>>12) & 0x1) << 9
			if imm == 0 {
				return Instruction{}, fmt.Errorf("illegal compressed instruction 0x%04x", half)
			}
			return Instruction{Op: OpCAddi16sp, Rd: 2, Rs1: 2, Imm: signExtend(imm, 10)}, nil
		}
		if rd == 0 {
			return Instruction{}, fmt.Errorf("c.lui with rd=0: 0x%04x", half)
		}
		imm := (uint32(half>>2) & 0x1f) << 12
		imm |= (uint32(half>>12) & 0x1) << 17
		if imm == 0 {
			return Instruction{}, fmt.Errorf("illegal compressed instruction 0x%04x", half)
		}
		return Instruction{Op: OpCLui, Rd: rd, Imm: signExtend(imm, 18)}, nil

	case 0b100: // shifts, C.ANDI and the register-register group
		rd := cRs1Prime(half)
		switch (half >> 10) & 0x3 {
		case 0b00:
			return Instruction{Op: OpCSrli, Rd: rd, Rs1: rd, Imm: int32(uint32(half>>2) & 0x1f)}, nil
		case 0b01:
			return Instruction{Op: OpCSrai, Rd: rd, Rs1: rd, Imm: int32(uint32(half>>2) & 0x1f)}, nil
		case 0b10:
			return Instruction{Op: OpCAndi, Rd: rd, Rs1: rd, Imm: cImm6(half)}, nil
		case 0b11:
			if (half>>12)&0x1 != 0 {
				// RV64 C.SUBW/C.ADDW slots.
				return Instruction{}, fmt.Errorf("unimplemented Q1 compressed instruction 0x%04x", half)
			}
			rs2 := cRs2Prime(half)
			switch (half >> 5) & 0x3 {
			case 0b00:
				return Instruction{Op: OpCSub, Rd: rd, Rs1: rd, Rs2: rs2}, nil
			case 0b01:
				return Instruction{Op: OpCXor, Rd: rd, Rs1: rd, Rs2: rs2}, nil
			case 0b10:
				return Instruction{Op: OpCOr, Rd: rd, Rs1: rd, Rs2: rs2}, nil
			case 0b11:
				return Instruction{Op: OpCAnd, Rd: rd, Rs1: rd, Rs2: rs2}, nil
			}
		}

	case 0b101: // C.J
		return Instruction{Op: OpCJ, Imm: cjImm(half)}, nil

	case 0b110: // C.BEQZ
		return Instruction{Op: OpCBeqz, Rs1: cRs1Prime(half), Imm: cbImm(half)}, nil

	case 0b111: // C.BNEZ
		return Instruction{Op: OpCBnez, Rs1: cRs1Prime(half), Imm: cbImm(half)}, nil
	}
	return Instruction{}, fmt.Errorf("unimplemented Q1 compressed instruction 0x%04x", half)
}

func decodeQ2(half uint16) (Instruction, error) {
	switch cFunct3(half) {
	case 0b000: // C.SLLI
		rd := cRd(half)
		if rd == 0 || (half>>12)&0x1 != 0 {
			return Instruction{}, fmt.Errorf("illegal c.slli: 0x%04x", half)
		}
		return Instruction{Op: OpCSlli, Rd: rd, Rs1: rd, Imm: int32(uint32(half>>2) & 0x1f)}, nil

	case 0b010: // C.LWSP
		rd := cRd(half)
		if rd == 0 {
			return Instruction{}, fmt.Errorf("c.lwsp with rd=0: 0x%04x", half)
		}
		imm := (uint32(half>>4) & 0x7) << 2
		imm |= (uint32(half>>12) & 0x1) << 5
		imm |= (uint32(half>>2) & 0x3) << 6
		return Instruction{Op: OpCLwsp, Rd: rd, Rs1: 2, Imm: int32(imm)}, nil

	case 0b100: // C.JR, C.MV, C.EBREAK, C.JALR, C.ADD
		rs1 := cRd(half)
		rs2 := cRs2(half)
		if (half>>12)&0x1 == 0 {
			if rs2 == 0 {
				if rs1 == 0 {
					return Instruction{}, fmt.Errorf("c.jr with rs1=0: 0x%04x", half)
				}
				return Instruction{Op: OpCJr, Rs1: rs1}, nil
			}
			return Instruction{Op: OpCMv, Rd: rs1, Rs2: rs2}, nil
		}
		if rs2 == 0 {
			if rs1 == 0 {
				return Instruction{Op: OpCEbreak}, nil
			}
			return Instruction{Op: OpCJalr, Rd: 1, Rs1: rs1}, nil
		}
		return Instruction{Op: OpCAdd, Rd: rs1, Rs1: rs1, Rs2: rs2}, nil

	case 0b110: // C.SWSP
		imm := (uint32(half>>9) & 0xf) << 2
		imm |= (uint32(half>>7) & 0x3) << 6
		return Instruction{Op: OpCSwsp, Rs1: 2, Rs2: cRs2(half), Imm: int32(imm)}, nil
	}
	// The remaining Q2 slots are the FP stack load/store forms.
	return Instruction{}, fmt.Errorf("unimplemented Q2 compressed instruction 0x%04x", half)
}

// cjImm reconstructs the C.J/C.JAL target offset.
func cjImm(half uint16) int32 {
	imm := (uint32(half>>3) & 0x7) << 1
	imm |= (uint32(half>>11) & 0x1) << 4
	imm |= (uint32(half>>2) & 0x1) << 5
	imm |= (uint32(half>>7) & 0x1) << 6
	imm |= (uint32(half>>6) & 0x1) << 7
	imm |= (uint32(half>>9) & 0x3) << 8
	imm |= (uint32(half>>8) & 0x1) << 10
	imm |= (uint32(half>>12) & 0x1) << 11
	return signExtend(imm, 12)
}

// cbImm reconstructs the C.BEQZ/C.BNEZ branch offset.
func cbImm(half uint16) int32 {
	imm := (uint32(half>>3) & 0x3) << 1
	imm |= (uint32(half>>10) & 0x3) << 3
	imm |= (uint32(half>>2) & 0x1) << 5
	imm |= (uint32(half>>5) & 0x3) << 6
	imm |= (uint32(half>>12) & 0x1) << 8
	return signExtend(imm, 9)
}

// Decompress expands a compressed instruction into its base-ISA
// equivalent. It is a pure function; calling it on a non-compressed
// instruction returns the instruction unchanged.
func (inst Instruction) Decompress() Instruction {
	switch inst.Op {
	case OpCAddi4spn:
		return Instruction{Op: OpAddi, Rd: inst.Rd, Rs1: 2, Imm: inst.Imm}
	case OpCLw:
		return Instruction{Op: OpLw, Rd: inst.Rd, Rs1: inst.Rs1, Imm: inst.Imm}
	case OpCSw:
		return Instruction{Op: OpSw, Rs1: inst.Rs1, Rs2: inst.Rs2, Imm: inst.Imm}
	case OpCNop:
		return Instruction{Op: OpAddi}
	case OpCAddi:
		return Instruction{Op: OpAddi, Rd: inst.Rd, Rs1: inst.Rs1, Imm: inst.Imm}
	case OpCJal:
		return Instruction{Op: OpJal, Rd: 1, Imm: inst.Imm}
	case OpCLi:
		return Instruction{Op: OpAddi, Rd: inst.Rd, Imm: inst.Imm}
	case OpCAddi16sp:
		return Instruction{Op: OpAddi, Rd: 2, Rs1: 2, Imm: inst.Imm}
	case OpCLui:
		return Instruction{Op: OpLui, Rd: inst.Rd, Imm: inst.Imm}
	case OpCSrli:
		return Instruction{Op: OpSrli, Rd: inst.Rd, Rs1: inst.Rs1, Imm: inst.Imm}
	case OpCSrai:
		return Instruction{Op: OpSrai, Rd: inst.Rd, Rs1: inst.Rs1, Imm: inst.Imm}
	case OpCAndi:
		return Instruction{Op: OpAndi, Rd: inst.Rd, Rs1: inst.Rs1, Imm: inst.Imm}
	case OpCSub:
		return Instruction{Op: OpSub, Rd: inst.Rd, Rs1: inst.Rs1, Rs2: inst.Rs2}
	case OpCXor:
		return Instruction{Op: OpXor, Rd: inst.Rd, Rs1: inst.Rs1, Rs2: inst.Rs2}
	case OpCOr:
		return Instruction{Op: OpOr, Rd: inst.Rd, Rs1: inst.Rs1, Rs2: inst.Rs2}
	case OpCAnd:
		return Instruction{Op: OpAnd, Rd: inst.Rd, Rs1: inst.Rs1, Rs2: inst.Rs2}
	case OpCJ:
		return Instruction{Op: OpJal, Imm: inst.Imm}
	case OpCBeqz:
		return Instruction{Op: OpBeq, Rs1: inst.Rs1, Imm: inst.Imm}
	case OpCBnez:
		return Instruction{Op: OpBne, Rs1: inst.Rs1, Imm: inst.Imm}
	case OpCSlli:
		return Instruction{Op: OpSlli, Rd: inst.Rd, Rs1: inst.Rs1, Imm: inst.Imm}
	case OpCLwsp:
		return Instruction{Op: OpLw, Rd: inst.Rd, Rs1: 2, Imm: inst.Imm}
	case OpCJr:
		return Instruction{Op: OpJalr, Rs1: inst.Rs1}
	case OpCMv:
		return Instruction{Op: OpAdd, Rd: inst.Rd, Rs2: inst.Rs2}
	case OpCEbreak:
		return Instruction{Op: OpEbreak}
	case OpCJalr:
		return Instruction{Op: OpJalr, Rd: 1, Rs1: inst.Rs1}
	case OpCAdd:
		return Instruction{Op: OpAdd, Rd: inst.Rd, Rs1: inst.Rs1, Rs2: inst.Rs2}
	case OpCSwsp:
		return Instruction{Op: OpSw, Rs1: 2, Rs2: inst.Rs2, Imm: inst.Imm}
	default:
		return inst
	}
}
