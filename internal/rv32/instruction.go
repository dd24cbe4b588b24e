// Package rv32 implements an instruction-accurate RV32IMAC_Zicsr core.
package rv32

import "fmt"

// Opcode identifies one decoded instruction form. Compressed forms keep
// their own opcodes; Decompress maps each of them onto a base form.
type Opcode uint8

const (
	OpInvalid Opcode = iota

	// RV32I base
	OpLui
	OpAuipc
	OpJal
	OpJalr
	OpBeq
	OpBne
	OpBlt
	OpBge
	OpBltu
	OpBgeu
	OpLb
	OpLh
	OpLw
	OpLbu
	OpLhu
	OpSb
	OpSh
	OpSw
	OpAddi
	OpSlti
	OpSltiu
	OpXori
	OpOri
	OpAndi
	OpSlli
	OpSrli
	OpSrai
	OpAdd
	OpSub
	OpSll
	OpSlt
	OpSltu
	OpXor
	OpSrl
	OpSra
	OpOr
	OpAnd
	OpFence
	OpEcall
	OpEbreak

	// Privileged
	OpMret
	OpWfi

	// Zicsr
	OpCsrrw
	OpCsrrs
	OpCsrrc
	OpCsrrwi
	OpCsrrsi
	OpCsrrci

	// M extension
	OpMul
	OpMulh
	OpMulhsu
	OpMulhu
	OpDiv
	OpDivu
	OpRem
	OpRemu

	// A extension (word forms)
	OpLrW
	OpScW
	OpAmoswapW
	OpAmoaddW
	OpAmoxorW
	OpAmoandW
	OpAmoorW
	OpAmominW
	OpAmomaxW
	OpAmominuW
	OpAmomaxuW

	// Compressed quadrant 0
	OpCAddi4spn
	OpCLw
	OpCSw

	// Compressed quadrant 1
	OpCNop
	OpCAddi
	OpCJal
	OpCLi
	OpCAddi16sp
	OpCLui
	OpCSrli
	OpCSrai
	OpCAndi
	OpCSub
	OpCXor
	OpCOr
	OpCAnd
	OpCJ
	OpCBeqz
	OpCBnez

	// Compressed quadrant 2
	OpCSlli
	OpCLwsp
	OpCJr
	OpCMv
	OpCEbreak
	OpCJalr
	OpCAdd
	OpCSwsp
)

var opcodeNames = map[Opcode]string{
	OpLui: "lui", OpAuipc: "auipc", OpJal: "jal", OpJalr: "jalr",
	OpBeq: "beq", OpBne: "bne", OpBlt: "blt", OpBge: "bge",
	OpBltu: "bltu", OpBgeu: "bgeu",
	OpLb: "lb", OpLh: "lh", OpLw: "lw", OpLbu: "lbu", OpLhu: "lhu",
	OpSb: "sb", OpSh: "sh", OpSw: "sw",
	OpAddi: "addi", OpSlti: "slti", OpSltiu: "sltiu", OpXori: "xori",
	OpOri: "ori", OpAndi: "andi", OpSlli: "slli", OpSrli: "srli",
	OpSrai: "srai",
	OpAdd: "add", OpSub: "sub", OpSll: "sll", OpSlt: "slt", OpSltu: "sltu",
	OpXor: "xor", OpSrl: "srl", OpSra: "sra", OpOr: "or", OpAnd: "and",
	OpFence: "fence", OpEcall: "ecall", OpEbreak: "ebreak",
	OpMret: "mret", OpWfi: "wfi",
	OpCsrrw: "csrrw", OpCsrrs: "csrrs", OpCsrrc: "csrrc",
	OpCsrrwi: "csrrwi", OpCsrrsi: "csrrsi", OpCsrrci: "csrrci",
	OpMul: "mul", OpMulh: "mulh", OpMulhsu: "mulhsu", OpMulhu: "mulhu",
	OpDiv: "div", OpDivu: "divu", OpRem: "rem", OpRemu: "remu",
	OpLrW: "lr.w", OpScW: "sc.w", OpAmoswapW: "amoswap.w",
	OpAmoaddW: "amoadd.w", OpAmoxorW: "amoxor.w", OpAmoandW: "amoand.w",
	OpAmoorW: "amoor.w", OpAmominW: "amomin.w", OpAmomaxW: "amomax.w",
	OpAmominuW: "amominu.w", OpAmomaxuW: "amomaxu.w",
	OpCAddi4spn: "c.addi4spn", OpCLw: "c.lw", OpCSw: "c.sw",
	OpCNop: "c.nop", OpCAddi: "c.addi", OpCJal: "c.jal", OpCLi: "c.li",
	OpCAddi16sp: "c.addi16sp", OpCLui: "c.lui", OpCSrli: "c.srli",
	OpCSrai: "c.srai", OpCAndi: "c.andi", OpCSub: "c.sub", OpCXor: "c.xor",
	OpCOr: "c.or", OpCAnd: "c.and", OpCJ: "c.j", OpCBeqz: "c.beqz",
	OpCBnez: "c.bnez",
	OpCSlli: "c.slli", OpCLwsp: "c.lwsp", OpCJr: "c.jr", OpCMv: "c.mv",
	OpCEbreak: "c.ebreak", OpCJalr: "c.jalr", OpCAdd: "c.add",
	OpCSwsp: "c.swsp",
}

// Mnemonic returns the assembler mnemonic for the opcode.
func (op Opcode) Mnemonic() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "unknown"
}

// Instruction is one decoded instruction. Operand fields that a form does
// not use are zero. Imm is sign-extended at decode time; for the Zicsr
// forms it holds the raw 12-bit CSR selector instead.
type Instruction struct {
	Op  Opcode
	Rd  uint32
	Rs1 uint32
	Rs2 uint32
	Imm int32
}

// CSR returns the CSR selector of a Zicsr instruction.
func (inst Instruction) CSR() uint32 {
	return uint32(inst.Imm) & 0xfff
}

// IsCompressed reports whether the instruction came from a 16-bit slot.
func (inst Instruction) IsCompressed() bool {
	return inst.Op >= OpCAddi4spn && inst.Op <= OpCSwsp
}

// IsZicsr reports whether the instruction belongs to the Zicsr subset.
func (inst Instruction) IsZicsr() bool {
	return inst.Op >= OpCsrrw && inst.Op <= OpCsrrci
}

// IsM reports whether the instruction belongs to the M subset.
func (inst Instruction) IsM() bool {
	return inst.Op >= OpMul && inst.Op <= OpRemu
}

var regNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// RegName returns the ABI name of an integer register.
func RegName(index uint32) string {
	if index < 32 {
		return regNames[index]
	}
	return fmt.Sprintf("x%d", index)
}

// String renders the instruction in conventional disassembly form, using
// ABI register names.
func (inst Instruction) String() string {
	m := inst.Op.Mnemonic()
	rd := RegName(inst.Rd)
	rs1 := RegName(inst.Rs1)
	rs2 := RegName(inst.Rs2)

	switch inst.Op {
	case OpLui, OpAuipc, OpCLui:
		return fmt.Sprintf("%s %s, 0x%x", m, rd, uint32(inst.Imm)>>12)
	case OpJal, OpCJal:
		return fmt.Sprintf("%s %s, %d", m, rd, inst.Imm)
	case OpCJ:
		return fmt.Sprintf("%s %d", m, inst.Imm)
	case OpJalr:
		return fmt.Sprintf("%s %s, %d(%s)", m, rd, inst.Imm, rs1)
	case OpBeq, OpBne, OpBlt, OpBge, OpBltu, OpBgeu:
		return fmt.Sprintf("%s %s, %s, %d", m, rs1, rs2, inst.Imm)
	case OpCBeqz, OpCBnez:
		return fmt.Sprintf("%s %s, %d", m, rs1, inst.Imm)
	case OpLb, OpLh, OpLw, OpLbu, OpLhu, OpCLw, OpCLwsp:
		return fmt.Sprintf("%s %s, %d(%s)", m, rd, inst.Imm, rs1)
	case OpSb, OpSh, OpSw, OpCSw, OpCSwsp:
		return fmt.Sprintf("%s %s, %d(%s)", m, rs2, inst.Imm, rs1)
	case OpAddi, OpSlti, OpSltiu, OpXori, OpOri, OpAndi,
		OpSlli, OpSrli, OpSrai:
		return fmt.Sprintf("%s %s, %s, %d", m, rd, rs1, inst.Imm)
	case OpAdd, OpSub, OpSll, OpSlt, OpSltu, OpXor, OpSrl, OpSra,
		OpOr, OpAnd,
		OpMul, OpMulh, OpMulhsu, OpMulhu, OpDiv, OpDivu, OpRem, OpRemu:
		return fmt.Sprintf("%s %s, %s, %s", m, rd, rs1, rs2)
	case OpFence:
		return m
	case OpEcall, OpEbreak, OpMret, OpWfi, OpCEbreak, OpCNop:
		return m
	case OpCsrrw, OpCsrrs, OpCsrrc:
		return fmt.Sprintf("%s %s, 0x%03x, %s", m, rd, inst.CSR(), rs1)
	case OpCsrrwi, OpCsrrsi, OpCsrrci:
		return fmt.Sprintf("%s %s, 0x%03x, %d", m, rd, inst.CSR(), inst.Rs1)
	case OpLrW:
		return fmt.Sprintf("%s %s, (%s)", m, rd, rs1)
	case OpScW, OpAmoswapW, OpAmoaddW, OpAmoxorW, OpAmoandW, OpAmoorW,
		OpAmominW, OpAmomaxW, OpAmominuW, OpAmomaxuW:
		return fmt.Sprintf("%s %s, %s, (%s)", m, rd, rs2, rs1)
	case OpCAddi4spn:
		return fmt.Sprintf("%s %s, sp, %d", m, rd, inst.Imm)
	case OpCAddi, OpCLi, OpCAndi, OpCSrli, OpCSrai, OpCSlli:
		return fmt.Sprintf("%s %s, %d", m, rd, inst.Imm)
	case OpCAddi16sp:
		return fmt.Sprintf("%s sp, %d", m, inst.Imm)
	case OpCSub, OpCXor, OpCOr, OpCAnd, OpCMv, OpCAdd:
		return fmt.Sprintf("%s %s, %s", m, rd, rs2)
	case OpCJr, OpCJalr:
		return fmt.Sprintf("%s %s", m, rs1)
	default:
		return m
	}
}
