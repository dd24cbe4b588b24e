// Package tui renders the emulator dashboard into the host terminal.
package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/vt"

	"github.com/tinyrange/hifive1/internal/emu"
	"github.com/tinyrange/hifive1/internal/rv32"
)

// Console pane geometry.
const (
	consoleCols = 80
	consoleRows = 12
)

// Pane row counts.
const (
	lastInstructions = 10
	nextInstructions = 10
)

var (
	headerStyle = ansi.Style{}.Bold()
	dimStyle    = ansi.Style{}.Faint()
	pcStyle     = ansi.Style{}.Reverse(true)
)

// Dashboard paints snapshots of the executor state plus a guest console
// pane. Guest UART output is fed through a VT emulator so firmware that
// emits ANSI sequences renders the way it would on a real terminal.
type Dashboard struct {
	sys     *emu.System
	console *vt.SafeEmulator
	out     io.Writer

	mode string // "idle", "autostep"
}

// NewDashboard creates a dashboard writing frames to out.
func NewDashboard(sys *emu.System, out io.Writer) *Dashboard {
	return &Dashboard{
		sys:     sys,
		console: vt.NewSafeEmulator(consoleCols, consoleRows),
		out:     out,
		mode:    "idle",
	}
}

// ConsoleWrite feeds guest transmit bytes into the console pane.
func (d *Dashboard) ConsoleWrite(p []byte) {
	d.console.Write(p)
}

// SetMode updates the execution mode shown in the header.
func (d *Dashboard) SetMode(mode string) {
	d.mode = mode
}

// Render paints one frame from a fresh snapshot.
func (d *Dashboard) Render() {
	snap := d.sys.Snapshot(lastInstructions, nextInstructions)

	var b strings.Builder
	b.WriteString(ansi.CursorHomePosition)

	state := d.mode
	if snap.WFI {
		state = "stalled on wfi"
	}
	fmt.Fprintf(&b, "%s  pc %s  %s\r\n\r\n",
		headerStyle.Styled("hifive1"),
		pcStyle.Styled(fmt.Sprintf(" 0x%08X ", snap.PC)),
		dimStyle.Styled(state))

	d.renderRegisters(&b, snap)
	d.renderCSRs(&b, snap)
	d.renderDisassembly(&b, snap)
	d.renderConsole(&b)

	b.WriteString(dimStyle.Styled("^S step  ^A autostep  ^X stop  ^C quit — other keys go to UART0"))
	b.WriteString(ansi.EraseLineRight)
	b.WriteString("\r\n")

	io.WriteString(d.out, b.String())
}

// renderRegisters prints the register file in four columns, each entry
// as name, hex and signed decimal.
func (d *Dashboard) renderRegisters(b *strings.Builder, snap emu.Snapshot) {
	b.WriteString(headerStyle.Styled("registers"))
	b.WriteString("\r\n")
	for row := 0; row < 8; row++ {
		for col := 0; col < 4; col++ {
			i := uint32(col*8 + row)
			fmt.Fprintf(b, "%4s: 0x%08X %11d  ",
				rv32.RegName(i), snap.Regs[i], int32(snap.Regs[i]))
		}
		b.WriteString(ansi.EraseLineRight)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
}

func (d *Dashboard) renderCSRs(b *strings.Builder, snap emu.Snapshot) {
	fmt.Fprintf(b, "%s mstatus 0x%08X  mie 0x%08X  mtvec 0x%08X  mepc 0x%08X  mcause 0x%08X  mscratch 0x%08X",
		headerStyle.Styled("csr"),
		snap.CSR.Mstatus, snap.CSR.Mie, snap.CSR.Mtvec,
		snap.CSR.Mepc, snap.CSR.Mcause, snap.CSR.Mscratch)
	b.WriteString(ansi.EraseLineRight)
	b.WriteString("\r\n\r\n")
}

// renderDisassembly prints the executed history next to the lookahead.
func (d *Dashboard) renderDisassembly(b *strings.Builder, snap emu.Snapshot) {
	fmt.Fprintf(b, "%-44s%s", headerStyle.Styled("last"), headerStyle.Styled("next"))
	b.WriteString(ansi.EraseLineRight)
	b.WriteString("\r\n")

	for row := 0; row < lastInstructions; row++ {
		var left, right string
		if row < len(snap.Last) {
			e := snap.Last[row]
			left = fmt.Sprintf("0x%08X: %s", e.Addr, e.Inst)
		}
		if row < len(snap.Next) {
			e := snap.Next[row]
			if e.Ok {
				right = fmt.Sprintf("0x%08X: %s", e.Addr, e.Inst)
			} else {
				right = fmt.Sprintf("0x%08X: .word 0x%08x", e.Addr, e.Raw)
			}
		}
		fmt.Fprintf(b, "%-44s%s", left, right)
		b.WriteString(ansi.EraseLineRight)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
}

// renderConsole copies the VT screen contents into the frame.
func (d *Dashboard) renderConsole(b *strings.Builder) {
	fmt.Fprintf(b, "%s\r\n", headerStyle.Styled("uart0 console"))
	for y := 0; y < consoleRows; y++ {
		for x := 0; x < consoleCols; {
			cell := d.console.CellAt(x, y)
			if cell == nil || cell.Content == "" {
				b.WriteString(" ")
				x++
				continue
			}
			b.WriteString(cell.Content)
			if cell.Width > 1 {
				x += cell.Width
			} else {
				x++
			}
		}
		b.WriteString(ansi.EraseLineRight)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
}
