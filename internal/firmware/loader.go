// Package firmware loads guest images into the board's ROM and RAM.
package firmware

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"

	"github.com/tinyrange/hifive1/internal/hifive1"
)

// LoadELF copies the PT_LOAD segments of a 32-bit little-endian RISC-V
// ELF image into ROM or RAM by physical address and returns the entry
// point. Segments outside both regions are silently dropped, matching
// what the flash tooling does on real hardware.
func LoadELF(data []byte, bus *hifive1.Bus) (uint32, error) {
	file, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("parse elf: %w", err)
	}
	defer file.Close()

	if file.Class != elf.ELFCLASS32 {
		return 0, fmt.Errorf("not a 32-bit elf (class %v)", file.Class)
	}
	if file.Data != elf.ELFDATA2LSB {
		return 0, fmt.Errorf("not a little-endian elf (%v)", file.Data)
	}
	if file.Machine != elf.EM_RISCV {
		return 0, fmt.Errorf("not a risc-v elf (machine %v)", file.Machine)
	}

	for _, prog := range file.Progs {
		if prog.Type != elf.PT_LOAD || prog.Filesz == 0 {
			continue
		}
		paddr := uint32(prog.Paddr)
		if !bus.IsROM(paddr) && !bus.IsRAM(paddr) {
			continue
		}
		seg := make([]byte, prog.Filesz)
		if _, err := io.ReadFull(io.NewSectionReader(prog, 0, int64(prog.Filesz)), seg); err != nil {
			return 0, fmt.Errorf("read segment at paddr 0x%08x: %w", paddr, err)
		}
		if err := bus.LoadAt(paddr, seg); err != nil {
			return 0, err
		}
	}

	return uint32(file.Entry), nil
}

// LoadBin copies a flat binary to base, which must fall into ROM or
// RAM. The caller seeds pc with its own entry address.
func LoadBin(data []byte, bus *hifive1.Bus, base uint32) error {
	return bus.LoadAt(base, data)
}
