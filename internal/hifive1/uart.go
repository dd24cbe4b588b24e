package hifive1

import "fmt"

// SiFive UART register offsets.
const (
	uartRegTxdata uint32 = 0x00
	uartRegRxdata uint32 = 0x04
	uartRegTxctrl uint32 = 0x08
	uartRegRxctrl uint32 = 0x0C
	uartRegIE     uint32 = 0x10
	uartRegIP     uint32 = 0x14
	uartRegDiv    uint32 = 0x18
)

// UART models one SiFive UART at register level. Bytes flow through a
// pluggable Backend; the watermark level for the pending interrupt is
// fixed at one byte.
type UART struct {
	backend Backend

	txEnable bool // latching; never cleared once set
	rxEnable bool
	txcnt    uint8
	rxcnt    uint8
	txwmIE   bool
	rxwmIE   bool
	div      uint16 // stored, otherwise ignored
}

// NewUART creates a UART over the given backend.
func NewUART(backend Backend) *UART {
	return &UART{backend: backend}
}

// Pending reports whether the UART asserts its external interrupt:
// receive-watermark semantics with the threshold at one buffered byte.
func (uart *UART) Pending() bool {
	return uart.backend.HasData()
}

// Read reads one register byte. Offsets past the register file are a
// fatal implementation error; the bus never produces them.
func (uart *UART) Read(offset uint32) (uint8, error) {
	switch offset {
	case uartRegTxdata, 0x01, 0x02:
		return 0, nil
	case 0x03:
		// txdata.full; the transmit queue never fills in this model.
		return 0, nil
	case uartRegRxdata:
		if uart.rxEnable {
			if data, ok := uart.backend.ReadByte(); ok {
				return data, nil
			}
		}
		return 0, nil
	case 0x05, 0x06:
		return 0, nil
	case 0x07:
		// rxdata.empty
		if !uart.backend.HasData() {
			return 0x80, nil
		}
		return 0, nil
	case uartRegTxctrl:
		if uart.txEnable {
			return 0x01, nil
		}
		return 0, nil
	case 0x09:
		return 0, nil
	case 0x0A:
		return uart.txcnt & 0x7, nil
	case 0x0B:
		return 0, nil
	case uartRegRxctrl:
		if uart.rxEnable {
			return 0x01, nil
		}
		return 0, nil
	case 0x0D:
		return 0, nil
	case 0x0E:
		return uart.rxcnt & 0x7, nil
	case 0x0F:
		return 0, nil
	case uartRegIE:
		var ret uint8
		if uart.txwmIE {
			ret |= 0x01
		}
		if uart.rxwmIE {
			ret |= 0x02
		}
		return ret, nil
	case 0x11, 0x12, 0x13:
		return 0, nil
	case uartRegIP:
		if uart.backend.HasData() {
			return 0x02, nil // rxwm pending
		}
		return 0, nil
	case 0x15, 0x16, 0x17:
		return 0, nil
	case uartRegDiv:
		return uint8(uart.div), nil
	case 0x19:
		return uint8(uart.div >> 8), nil
	case 0x1A, 0x1B:
		return 0, nil
	default:
		return 0, fmt.Errorf("uart read out of bounds at offset 0x%02x", offset)
	}
}

// Write writes one register byte.
func (uart *UART) Write(offset uint32, value uint8) error {
	switch offset {
	case uartRegTxdata:
		if uart.txEnable {
			uart.backend.WriteByte(value)
		}
	case 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07:
		// txdata high bytes and rxdata are read-only.
	case uartRegTxctrl:
		if value&0x01 != 0 {
			uart.txEnable = true
		}
		// bit 1 selects stop bits; ignored.
	case 0x09:
	case 0x0A:
		uart.txcnt = value & 0x7
	case 0x0B:
	case uartRegRxctrl:
		if value&0x01 != 0 {
			uart.rxEnable = true
		}
	case 0x0D:
	case 0x0E:
		uart.rxcnt = value & 0x7
	case 0x0F:
	case uartRegIE:
		uart.txwmIE = value&0x01 != 0
		uart.rxwmIE = value&0x02 != 0
	case 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17:
	case uartRegDiv:
		uart.div = uart.div&0xFF00 | uint16(value)
	case 0x19:
		uart.div = uart.div&0x00FF | uint16(value)<<8
	case 0x1A, 0x1B:
	default:
		return fmt.Errorf("uart write out of bounds at offset 0x%02x", offset)
	}
	return nil
}
