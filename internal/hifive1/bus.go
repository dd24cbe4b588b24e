// Package hifive1 models the memory map and peripherals of a SiFive
// HiFive1 Rev B class board (FE310-G002).
package hifive1

import (
	"fmt"

	"github.com/tinyrange/hifive1/internal/rv32"
)

// Memory map ranges. Limits are exclusive.
const (
	CLICBase  uint32 = 0x0200_0000
	CLICLimit uint32 = 0x0200_C000
	PLICBase  uint32 = 0x0C00_0000
	PLICLimit uint32 = 0x1000_0000
	RTTBase   uint32 = 0x1000_0040
	RTTLimit  uint32 = 0x1000_0081
	PRCIBase  uint32 = 0x1000_8000
	PRCILimit uint32 = 0x1000_8010
	GPIOBase  uint32 = 0x1001_2000
	GPIOLimit uint32 = 0x1001_3000
	UART0Base uint32 = 0x1001_3000
	UART0Limit uint32 = 0x1001_301C
	UART1Base uint32 = 0x1002_3000
	UART1Limit uint32 = 0x1002_301C
	ROMBase   uint32 = 0x2000_0000
	ROMLimit  uint32 = 0x4000_0000
	RAMBase   uint32 = 0x8000_0000
	RAMLimit  uint32 = 0x8000_8000
)

// CLIC byte windows the firmware actually touches. Only these respond;
// every other offset inside the CLIC range is an access fault.
const (
	CLICMsipBase      uint32 = 0x0200_0000 // msip for hart 0
	CLICMsipLimit     uint32 = 0x0200_0004
	CLICMtimecmpBase  uint32 = 0x0200_4000 // mtimecmp for hart 0
	CLICMtimecmpLimit uint32 = 0x0200_4008
	CLICMtimeBase     uint32 = 0x0200_BFF8 // mtime
	CLICMtimeLimit    uint32 = 0x0200_C000
)

// PLICClaimByte reports the pending external interrupt source id.
const PLICClaimByte uint32 = 0x0C20_0004

// PLIC source ids for the two UARTs. Callers treat these as opaque; they
// distinguish sources, not priorities.
const (
	IRQUart0 uint32 = 3
	IRQUart1 uint32 = 4
)

// Bus is the HiFive1 address bus: ROM, RAM, two UARTs and the stub
// ranges the firmware bring-up code touches. ROM is loader-writable but
// read-only from the core. It implements rv32.Bus.
type Bus struct {
	UART0 *UART
	UART1 *UART

	rom []byte
	ram []byte

	reservationAddr  uint32
	reservationValue uint32
	reservationSet   bool
}

// NewBus creates a bus with the default HiFive1 memory map and the given
// UARTs.
func NewBus(uart0, uart1 *UART) *Bus {
	return &Bus{
		UART0: uart0,
		UART1: uart1,
		rom:   make([]byte, ROMLimit-ROMBase),
		ram:   make([]byte, RAMLimit-RAMBase),
	}
}

// IsRAM reports whether addr falls into RAM.
func (bus *Bus) IsRAM(addr uint32) bool {
	return addr >= RAMBase && addr < RAMLimit
}

// IsROM reports whether addr falls into ROM.
func (bus *Bus) IsROM(addr uint32) bool {
	return addr >= ROMBase && addr < ROMLimit
}

// LoadAt copies loader data into ROM or RAM. Only the loader goes
// through this path; the core never writes ROM.
func (bus *Bus) LoadAt(addr uint32, data []byte) error {
	switch {
	case bus.IsROM(addr):
		if uint64(addr)+uint64(len(data)) > uint64(ROMLimit) {
			return fmt.Errorf("load of %d bytes at 0x%08x overflows ROM", len(data), addr)
		}
		copy(bus.rom[addr-ROMBase:], data)
	case bus.IsRAM(addr):
		if uint64(addr)+uint64(len(data)) > uint64(RAMLimit) {
			return fmt.Errorf("load of %d bytes at 0x%08x overflows RAM", len(data), addr)
		}
		copy(bus.ram[addr-RAMBase:], data)
	default:
		return fmt.Errorf("load address 0x%08x is neither in ROM nor RAM", addr)
	}
	return nil
}

// ReadByte dispatches a byte read to the owning region.
func (bus *Bus) ReadByte(addr uint32) (uint8, error) {
	switch {
	case bus.IsRAM(addr):
		return bus.ram[addr-RAMBase], nil
	case bus.IsROM(addr):
		return bus.rom[addr-ROMBase], nil
	case addr >= UART0Base && addr < UART0Limit:
		return bus.UART0.Read(addr - UART0Base)
	case addr >= UART1Base && addr < UART1Limit:
		return bus.UART1.Read(addr - UART1Base)
	case addr >= CLICBase && addr < CLICLimit:
		if clicMapped(addr) {
			return 0, nil
		}
		return 0, fmt.Errorf("clic: read outside memory map at address 0x%08x", addr)
	case addr == PLICClaimByte:
		if bus.UART0.Pending() {
			return uint8(IRQUart0), nil
		}
		if bus.UART1.Pending() {
			return uint8(IRQUart1), nil
		}
		return 0, nil
	case addr >= PLICBase && addr < PLICLimit:
		return 0, nil
	case addr >= RTTBase && addr < RTTLimit:
		return 0, nil
	case addr >= PRCIBase && addr < PRCILimit:
		return 0xFF, nil
	case addr >= GPIOBase && addr < GPIOLimit:
		return 0xFF, nil
	default:
		return 0, fmt.Errorf("read outside memory map at address 0x%08x", addr)
	}
}

// WriteByte dispatches a byte write to the owning region. The stub
// ranges accept and discard writes; ROM and unmapped addresses fault.
func (bus *Bus) WriteByte(addr uint32, value uint8) error {
	switch {
	case bus.IsRAM(addr):
		bus.ram[addr-RAMBase] = value
		return nil
	case addr >= UART0Base && addr < UART0Limit:
		return bus.UART0.Write(addr-UART0Base, value)
	case addr >= UART1Base && addr < UART1Limit:
		return bus.UART1.Write(addr-UART1Base, value)
	case addr >= CLICBase && addr < CLICLimit:
		if clicMapped(addr) {
			return nil
		}
		return fmt.Errorf("clic: write outside writable memory map at address 0x%08x", addr)
	case addr >= PLICBase && addr < PLICLimit:
		return nil
	case addr >= RTTBase && addr < RTTLimit:
		return nil
	case addr >= PRCIBase && addr < PRCILimit:
		return nil
	case addr >= GPIOBase && addr < GPIOLimit:
		return nil
	default:
		return fmt.Errorf("write outside writable memory map at address 0x%08x", addr)
	}
}

// clicMapped reports whether a CLIC offset falls into one of the byte
// windows that respond: msip, mtimecmp or mtime. They read as zero and
// discard writes.
func clicMapped(addr uint32) bool {
	return (addr >= CLICMsipBase && addr < CLICMsipLimit) ||
		(addr >= CLICMtimecmpBase && addr < CLICMtimecmpLimit) ||
		(addr >= CLICMtimeBase && addr < CLICMtimeLimit)
}

// ReadHalf reads a little-endian halfword as two byte accesses, so a
// transfer spanning a region boundary stays deterministic.
func (bus *Bus) ReadHalf(addr uint32) (uint16, error) {
	lo, err := bus.ReadByte(addr)
	if err != nil {
		return 0, err
	}
	hi, err := bus.ReadByte(addr + 1)
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

// ReadWord reads a little-endian word as two halfword accesses.
func (bus *Bus) ReadWord(addr uint32) (uint32, error) {
	lo, err := bus.ReadHalf(addr)
	if err != nil {
		return 0, err
	}
	hi, err := bus.ReadHalf(addr + 2)
	if err != nil {
		return 0, err
	}
	return uint32(lo) | uint32(hi)<<16, nil
}

// WriteHalf writes a little-endian halfword as two byte accesses.
func (bus *Bus) WriteHalf(addr uint32, value uint16) error {
	if err := bus.WriteByte(addr, uint8(value)); err != nil {
		return err
	}
	return bus.WriteByte(addr+1, uint8(value>>8))
}

// WriteWord writes a little-endian word as two halfword accesses.
func (bus *Bus) WriteWord(addr uint32, value uint32) error {
	if err := bus.WriteHalf(addr, uint16(value)); err != nil {
		return err
	}
	return bus.WriteHalf(addr+2, uint16(value>>16))
}

// SetReservation records the LR/SC reservation.
func (bus *Bus) SetReservation(addr, value uint32) {
	bus.reservationAddr = addr
	bus.reservationValue = value
	bus.reservationSet = true
}

// Reservation returns the current reservation, if any.
func (bus *Bus) Reservation() (uint32, uint32, bool) {
	return bus.reservationAddr, bus.reservationValue, bus.reservationSet
}

// ClearReservation drops the reservation.
func (bus *Bus) ClearReservation() {
	bus.reservationSet = false
}

// PendingInterrupt returns the first pending source among the UARTs.
func (bus *Bus) PendingInterrupt() (uint32, bool) {
	if bus.UART0.Pending() {
		return IRQUart0, true
	}
	if bus.UART1.Pending() {
		return IRQUart1, true
	}
	return 0, false
}

var _ rv32.Bus = (*Bus)(nil)
