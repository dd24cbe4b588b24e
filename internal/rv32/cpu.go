package rv32

import "fmt"

// Bus is the memory system seen by the core: three access widths in each
// direction, the LR/SC reservation slot and external interrupt polling.
// Halfword and word accesses are little-endian compositions of byte
// accesses, so a transfer may span region boundaries deterministically.
type Bus interface {
	ReadByte(addr uint32) (uint8, error)
	ReadHalf(addr uint32) (uint16, error)
	ReadWord(addr uint32) (uint32, error)
	WriteByte(addr uint32, value uint8) error
	WriteHalf(addr uint32, value uint16) error
	WriteWord(addr uint32, value uint32) error

	SetReservation(addr, value uint32)
	Reservation() (addr, value uint32, ok bool)
	ClearReservation()

	// PendingInterrupt returns the first pending external interrupt
	// source, if any. The code distinguishes sources, not priorities.
	PendingInterrupt() (uint32, bool)
}

// Machine external interrupt cause, interrupt bit set.
const CauseMachineExternalInterrupt uint32 = 0x8000_0000 + 11

// Environment call from M-mode.
const CauseEcallFromM uint32 = 11

// CPU is the single-hart RV32IMAC_Zicsr processor state. The register
// file, CSR file and bus are created once and owned by the CPU for the
// lifetime of the emulator.
type CPU struct {
	// Integer registers x0-x31. x0 reads as zero; use ReadReg/WriteReg.
	X [32]uint32

	// Program counter.
	PC uint32

	CSR CSRFile

	Bus Bus

	// WFI is set while the core stalls waiting for an interrupt.
	WFI bool

	// Feature gates. An instruction from a disabled subset reaching the
	// executor is an implementation configuration bug.
	ZicsrEnabled bool
	MEnabled     bool

	History History
}

// NewCPU creates a CPU attached to the given bus with Zicsr and M
// enabled, mirroring the FE310 feature set.
func NewCPU(bus Bus) *CPU {
	cpu := &CPU{
		Bus:          bus,
		ZicsrEnabled: true,
		MEnabled:     true,
	}
	cpu.CSR.Mie = 1
	return cpu
}

// ReadReg reads an integer register (x0 always returns 0).
func (cpu *CPU) ReadReg(reg uint32) uint32 {
	if reg == 0 {
		return 0
	}
	return cpu.X[reg]
}

// WriteReg writes an integer register (writes to x0 are discarded).
func (cpu *CPU) WriteReg(reg uint32, val uint32) {
	if reg != 0 {
		cpu.X[reg] = val
	}
}

// InstructionAt decodes the instruction at addr without executing it.
func (cpu *CPU) InstructionAt(addr uint32) (Instruction, error) {
	word, err := cpu.Bus.ReadWord(addr)
	if err != nil {
		return Instruction{}, err
	}
	return Decode(word)
}

// CurrentInstruction returns the instruction the executor will run next.
// While stalled on WFI it reports the last executed instruction instead,
// since pc already points past the WFI slot.
func (cpu *CPU) CurrentInstruction() (uint32, Instruction, error) {
	if cpu.WFI {
		entry, ok := cpu.History.Last()
		if !ok {
			return 0, Instruction{}, fmt.Errorf("stalled on wfi with empty history")
		}
		return entry.Addr, entry.Inst, nil
	}
	inst, err := cpu.InstructionAt(cpu.PC)
	if err != nil {
		return 0, Instruction{}, err
	}
	return cpu.PC, inst, nil
}

// NextEntry is one row of the lookahead disassembly: either a decoded
// instruction or the raw word that failed to decode.
type NextEntry struct {
	Addr uint32
	Inst Instruction
	Raw  uint32
	Ok   bool
}

// NextInstructions decodes up to n instructions ahead of pc without
// executing them. Slots that fail to decode carry the raw word and are
// stepped over as 4 bytes.
func (cpu *CPU) NextInstructions(n int) []NextEntry {
	entries := make([]NextEntry, 0, n)
	addr := cpu.PC
	for i := 0; i < n; i++ {
		inst, err := cpu.InstructionAt(addr)
		if err != nil {
			raw, _ := cpu.Bus.ReadWord(addr)
			entries = append(entries, NextEntry{Addr: addr, Raw: raw})
			addr += 4
			continue
		}
		entries = append(entries, NextEntry{Addr: addr, Inst: inst, Ok: true})
		if inst.IsCompressed() {
			addr += 2
		} else {
			addr += 4
		}
	}
	return entries
}

// externalInterrupt takes a machine external interrupt through mtvec.
func (cpu *CPU) externalInterrupt() {
	cpu.CSR.SetMPIE(cpu.CSR.MIE())
	cpu.CSR.SetMIE(false)
	cpu.CSR.Mepc = cpu.PC
	cpu.CSR.Mcause = CauseMachineExternalInterrupt
	cpu.PC = cpu.CSR.Mtvec
	cpu.WFI = false
}

// CheckInterrupts polls the bus and takes a pending machine external
// interrupt if the core is stalled on WFI (which implicitly enables
// interrupts) or mstatus.MIE is set. It returns true if one was taken.
func (cpu *CPU) CheckInterrupts() bool {
	if cpu.WFI || cpu.CSR.MIE() {
		if _, pending := cpu.Bus.PendingInterrupt(); pending {
			cpu.externalInterrupt()
			return true
		}
	}
	return false
}

// Step executes one instruction. It returns true for every instruction
// except EBREAK, which signals the surrounding harness that the program
// wants to terminate; the executor itself treats EBREAK as a no-op.
func (cpu *CPU) Step() (bool, error) {
	cpu.CheckInterrupts()
	if cpu.WFI {
		// Stalled; nothing retires until an interrupt arrives.
		return true, nil
	}

	addr := cpu.PC
	inst, err := cpu.InstructionAt(addr)
	if err != nil {
		return false, err
	}
	if err := cpu.exec(inst); err != nil {
		return false, err
	}
	cpu.History.Push(addr, inst)
	return inst.Op != OpEbreak && inst.Op != OpCEbreak, nil
}
