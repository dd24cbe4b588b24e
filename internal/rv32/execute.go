package rv32

import "fmt"

// addSigned adds a sign-extended immediate to an unsigned word with
// two's-complement wrapping.
func addSigned(base uint32, off int32) uint32 {
	return base + uint32(off)
}

// sra arithmetic-shifts right by shamt, implemented as an unsigned shift
// followed by sign extension from bit 31-shamt.
func sra(val uint32, shamt uint32) uint32 {
	return uint32(signExtend(val>>shamt, 32-shamt))
}

// exec executes one decoded instruction: advance pc by the instruction
// size, decompress if needed, then apply the semantics relative to the
// recorded instruction address.
func (cpu *CPU) exec(inst Instruction) error {
	if inst.IsZicsr() && !cpu.ZicsrEnabled {
		return fmt.Errorf("zicsr instruction %v found but zicsr is not enabled", inst.Op.Mnemonic())
	}
	if inst.IsM() && !cpu.MEnabled {
		return fmt.Errorf("m instruction %v found but m is not enabled", inst.Op.Mnemonic())
	}

	addr := cpu.PC
	if addr%2 != 0 {
		return fmt.Errorf("instruction address 0x%08x not aligned on two bytes", addr)
	}

	// Compressed instructions are expanded before semantic dispatch; the
	// pc advance (2 vs 4) is the only observable difference.
	if inst.IsCompressed() {
		cpu.PC += 2
		inst = inst.Decompress()
	} else {
		cpu.PC += 4
	}

	switch inst.Op {
	case OpLui:
		cpu.WriteReg(inst.Rd, uint32(inst.Imm))
	case OpAuipc:
		cpu.WriteReg(inst.Rd, addSigned(addr, inst.Imm))
	case OpJal:
		target := addSigned(addr, inst.Imm)
		if target%2 != 0 {
			return fmt.Errorf("jal target 0x%08x not 2-byte aligned", target)
		}
		cpu.WriteReg(inst.Rd, cpu.PC)
		cpu.PC = target
	case OpJalr:
		target := addSigned(cpu.ReadReg(inst.Rs1), inst.Imm) &^ 1
		if target%2 != 0 {
			return fmt.Errorf("jalr target 0x%08x not 2-byte aligned", target)
		}
		cpu.WriteReg(inst.Rd, cpu.PC)
		cpu.PC = target

	case OpBeq:
		return cpu.branch(addr, inst, cpu.ReadReg(inst.Rs1) == cpu.ReadReg(inst.Rs2))
	case OpBne:
		return cpu.branch(addr, inst, cpu.ReadReg(inst.Rs1) != cpu.ReadReg(inst.Rs2))
	case OpBlt:
		return cpu.branch(addr, inst, int32(cpu.ReadReg(inst.Rs1)) < int32(cpu.ReadReg(inst.Rs2)))
	case OpBge:
		return cpu.branch(addr, inst, int32(cpu.ReadReg(inst.Rs1)) >= int32(cpu.ReadReg(inst.Rs2)))
	case OpBltu:
		return cpu.branch(addr, inst, cpu.ReadReg(inst.Rs1) < cpu.ReadReg(inst.Rs2))
	case OpBgeu:
		return cpu.branch(addr, inst, cpu.ReadReg(inst.Rs1) >= cpu.ReadReg(inst.Rs2))

	case OpLb:
		v, err := cpu.Bus.ReadByte(addSigned(cpu.ReadReg(inst.Rs1), inst.Imm))
		if err != nil {
			return err
		}
		cpu.WriteReg(inst.Rd, uint32(int32(int8(v))))
	case OpLh:
		v, err := cpu.Bus.ReadHalf(addSigned(cpu.ReadReg(inst.Rs1), inst.Imm))
		if err != nil {
			return err
		}
		cpu.WriteReg(inst.Rd, uint32(int32(int16(v))))
	case OpLw:
		v, err := cpu.Bus.ReadWord(addSigned(cpu.ReadReg(inst.Rs1), inst.Imm))
		if err != nil {
			return err
		}
		cpu.WriteReg(inst.Rd, v)
	case OpLbu:
		v, err := cpu.Bus.ReadByte(addSigned(cpu.ReadReg(inst.Rs1), inst.Imm))
		if err != nil {
			return err
		}
		cpu.WriteReg(inst.Rd, uint32(v))
	case OpLhu:
		v, err := cpu.Bus.ReadHalf(addSigned(cpu.ReadReg(inst.Rs1), inst.Imm))
		if err != nil {
			return err
		}
		cpu.WriteReg(inst.Rd, uint32(v))

	case OpSb:
		return cpu.Bus.WriteByte(addSigned(cpu.ReadReg(inst.Rs1), inst.Imm), uint8(cpu.ReadReg(inst.Rs2)))
	case OpSh:
		return cpu.Bus.WriteHalf(addSigned(cpu.ReadReg(inst.Rs1), inst.Imm), uint16(cpu.ReadReg(inst.Rs2)))
	case OpSw:
		return cpu.Bus.WriteWord(addSigned(cpu.ReadReg(inst.Rs1), inst.Imm), cpu.ReadReg(inst.Rs2))

	case OpAddi:
		cpu.WriteReg(inst.Rd, addSigned(cpu.ReadReg(inst.Rs1), inst.Imm))
	case OpSlti:
		cpu.WriteReg(inst.Rd, boolToReg(int32(cpu.ReadReg(inst.Rs1)) < inst.Imm))
	case OpSltiu:
		cpu.WriteReg(inst.Rd, boolToReg(cpu.ReadReg(inst.Rs1) < uint32(inst.Imm)))
	case OpXori:
		cpu.WriteReg(inst.Rd, cpu.ReadReg(inst.Rs1)^uint32(inst.Imm))
	case OpOri:
		cpu.WriteReg(inst.Rd, cpu.ReadReg(inst.Rs1)|uint32(inst.Imm))
	case OpAndi:
		cpu.WriteReg(inst.Rd, cpu.ReadReg(inst.Rs1)&uint32(inst.Imm))
	case OpSlli:
		cpu.WriteReg(inst.Rd, cpu.ReadReg(inst.Rs1)<<(uint32(inst.Imm)&0x1f))
	case OpSrli:
		cpu.WriteReg(inst.Rd, cpu.ReadReg(inst.Rs1)>>(uint32(inst.Imm)&0x1f))
	case OpSrai:
		cpu.WriteReg(inst.Rd, sra(cpu.ReadReg(inst.Rs1), uint32(inst.Imm)&0x1f))

	case OpAdd:
		cpu.WriteReg(inst.Rd, cpu.ReadReg(inst.Rs1)+cpu.ReadReg(inst.Rs2))
	case OpSub:
		cpu.WriteReg(inst.Rd, cpu.ReadReg(inst.Rs1)-cpu.ReadReg(inst.Rs2))
	case OpSll:
		cpu.WriteReg(inst.Rd, cpu.ReadReg(inst.Rs1)<<(cpu.ReadReg(inst.Rs2)&0x1f))
	case OpSlt:
		cpu.WriteReg(inst.Rd, boolToReg(int32(cpu.ReadReg(inst.Rs1)) < int32(cpu.ReadReg(inst.Rs2))))
	case OpSltu:
		cpu.WriteReg(inst.Rd, boolToReg(cpu.ReadReg(inst.Rs1) < cpu.ReadReg(inst.Rs2)))
	case OpXor:
		cpu.WriteReg(inst.Rd, cpu.ReadReg(inst.Rs1)^cpu.ReadReg(inst.Rs2))
	case OpSrl:
		cpu.WriteReg(inst.Rd, cpu.ReadReg(inst.Rs1)>>(cpu.ReadReg(inst.Rs2)&0x1f))
	case OpSra:
		cpu.WriteReg(inst.Rd, sra(cpu.ReadReg(inst.Rs1), cpu.ReadReg(inst.Rs2)&0x1f))
	case OpOr:
		cpu.WriteReg(inst.Rd, cpu.ReadReg(inst.Rs1)|cpu.ReadReg(inst.Rs2))
	case OpAnd:
		cpu.WriteReg(inst.Rd, cpu.ReadReg(inst.Rs1)&cpu.ReadReg(inst.Rs2))

	case OpFence:
		// Single hart; nothing to order.

	case OpEcall:
		cpu.CSR.Mepc = addr
		cpu.CSR.Mcause = CauseEcallFromM
		cpu.PC = cpu.CSR.Mtvec
	case OpEbreak:
		// Observable no-op; the harness decides whether to terminate.
	case OpMret:
		cpu.PC = cpu.CSR.Mepc
	case OpWfi:
		cpu.WFI = true

	case OpCsrrw, OpCsrrs, OpCsrrc, OpCsrrwi, OpCsrrsi, OpCsrrci:
		return cpu.execCSR(inst)

	case OpMul:
		cpu.WriteReg(inst.Rd, uint32(uint64(cpu.ReadReg(inst.Rs1))*uint64(cpu.ReadReg(inst.Rs2))))
	case OpMulh:
		p := int64(int32(cpu.ReadReg(inst.Rs1))) * int64(int32(cpu.ReadReg(inst.Rs2)))
		cpu.WriteReg(inst.Rd, uint32(p>>32))
	case OpMulhsu:
		p := int64(int32(cpu.ReadReg(inst.Rs1))) * int64(cpu.ReadReg(inst.Rs2))
		cpu.WriteReg(inst.Rd, uint32(p>>32))
	case OpMulhu:
		p := uint64(cpu.ReadReg(inst.Rs1)) * uint64(cpu.ReadReg(inst.Rs2))
		cpu.WriteReg(inst.Rd, uint32(p>>32))
	case OpDiv:
		rs1, rs2 := cpu.ReadReg(inst.Rs1), cpu.ReadReg(inst.Rs2)
		switch {
		case rs2 == 0:
			cpu.WriteReg(inst.Rd, ^uint32(0))
		case rs1 == 0x8000_0000 && rs2 == ^uint32(0):
			// Signed overflow wraps to the dividend.
			cpu.WriteReg(inst.Rd, rs1)
		default:
			cpu.WriteReg(inst.Rd, uint32(int32(rs1)/int32(rs2)))
		}
	case OpDivu:
		rs1, rs2 := cpu.ReadReg(inst.Rs1), cpu.ReadReg(inst.Rs2)
		if rs2 == 0 {
			cpu.WriteReg(inst.Rd, ^uint32(0))
		} else {
			cpu.WriteReg(inst.Rd, rs1/rs2)
		}
	case OpRem:
		rs1, rs2 := cpu.ReadReg(inst.Rs1), cpu.ReadReg(inst.Rs2)
		switch {
		case rs2 == 0:
			cpu.WriteReg(inst.Rd, rs1)
		case rs1 == 0x8000_0000 && rs2 == ^uint32(0):
			cpu.WriteReg(inst.Rd, 0)
		default:
			cpu.WriteReg(inst.Rd, uint32(int32(rs1)%int32(rs2)))
		}
	case OpRemu:
		rs1, rs2 := cpu.ReadReg(inst.Rs1), cpu.ReadReg(inst.Rs2)
		if rs2 == 0 {
			cpu.WriteReg(inst.Rd, rs1)
		} else {
			cpu.WriteReg(inst.Rd, rs1%rs2)
		}

	case OpLrW:
		target := cpu.ReadReg(inst.Rs1)
		value, err := cpu.Bus.ReadWord(target)
		if err != nil {
			return err
		}
		cpu.WriteReg(inst.Rd, value)
		cpu.Bus.SetReservation(target, value)
	case OpScW:
		return cpu.execStoreConditional(inst)

	case OpAmoswapW, OpAmoaddW, OpAmoxorW, OpAmoandW, OpAmoorW,
		OpAmominW, OpAmomaxW, OpAmominuW, OpAmomaxuW:
		return cpu.execAMO(inst)

	default:
		return fmt.Errorf("executor reached unimplemented instruction %v", inst.Op.Mnemonic())
	}
	return nil
}

func boolToReg(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// branch applies a conditional branch relative to the instruction
// address. A taken branch to a misaligned target is fatal.
func (cpu *CPU) branch(addr uint32, inst Instruction, taken bool) error {
	if !taken {
		return nil
	}
	target := addSigned(addr, inst.Imm)
	if target%2 != 0 {
		return fmt.Errorf("branch target 0x%08x not 2-byte aligned", target)
	}
	cpu.PC = target
	return nil
}

// execCSR applies the read-modify-write CSR forms. The set/clear forms
// skip the CSR write when rs1 is x0 (or the immediate is zero); CSRRW
// always writes.
func (cpu *CPU) execCSR(inst Instruction) error {
	index := inst.CSR()
	old, err := cpu.CSR.Read(index)
	if err != nil {
		return err
	}

	switch inst.Op {
	case OpCsrrw:
		cpu.WriteReg(inst.Rd, old)
		return cpu.CSR.Write(index, cpu.ReadReg(inst.Rs1))
	case OpCsrrs:
		cpu.WriteReg(inst.Rd, old)
		if inst.Rs1 != 0 {
			return cpu.CSR.Write(index, old|cpu.ReadReg(inst.Rs1))
		}
	case OpCsrrc:
		cpu.WriteReg(inst.Rd, old)
		if inst.Rs1 != 0 {
			return cpu.CSR.Write(index, old&^cpu.ReadReg(inst.Rs1))
		}
	case OpCsrrwi:
		// The rs1 field holds a 5-bit unsigned immediate.
		if inst.Rd != 0 {
			cpu.WriteReg(inst.Rd, old)
		}
		return cpu.CSR.Write(index, inst.Rs1)
	case OpCsrrsi:
		cpu.WriteReg(inst.Rd, old)
		if inst.Rs1 != 0 {
			return cpu.CSR.Write(index, old|inst.Rs1)
		}
	case OpCsrrci:
		cpu.WriteReg(inst.Rd, old)
		if inst.Rs1 != 0 {
			return cpu.CSR.Write(index, old&^inst.Rs1)
		}
	}
	return nil
}

// execStoreConditional implements SC.W: success (rd=0) only if the
// reservation still names this address and the memory word is unchanged.
// The reservation is consumed on both paths.
func (cpu *CPU) execStoreConditional(inst Instruction) error {
	target := cpu.ReadReg(inst.Rs1)
	current, err := cpu.Bus.ReadWord(target)
	if err != nil {
		return err
	}

	cpu.WriteReg(inst.Rd, 1)
	if resAddr, resVal, ok := cpu.Bus.Reservation(); ok && resAddr == target && resVal == current {
		if err := cpu.Bus.WriteWord(target, cpu.ReadReg(inst.Rs2)); err != nil {
			return err
		}
		cpu.WriteReg(inst.Rd, 0)
	}
	cpu.Bus.ClearReservation()
	return nil
}

// execAMO implements the read-modify-write word atomics: rd receives the
// old memory value and the combined value is written back.
func (cpu *CPU) execAMO(inst Instruction) error {
	target := cpu.ReadReg(inst.Rs1)
	operand := cpu.ReadReg(inst.Rs2)
	old, err := cpu.Bus.ReadWord(target)
	if err != nil {
		return err
	}
	cpu.WriteReg(inst.Rd, old)

	var result uint32
	switch inst.Op {
	case OpAmoswapW:
		result = operand
	case OpAmoaddW:
		result = old + operand
	case OpAmoxorW:
		result = old ^ operand
	case OpAmoandW:
		result = old & operand
	case OpAmoorW:
		result = old | operand
	case OpAmominW:
		result = operand
		if int32(old) < int32(operand) {
			result = old
		}
	case OpAmomaxW:
		result = operand
		if int32(old) > int32(operand) {
			result = old
		}
	case OpAmominuW:
		result = min(old, operand)
	case OpAmomaxuW:
		result = max(old, operand)
	}
	return cpu.Bus.WriteWord(target, result)
}
