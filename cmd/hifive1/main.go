// Command hifive1 boots unmodified HiFive1 firmware in an
// instruction-accurate RV32IMAC emulator.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/tinyrange/hifive1/internal/config"
	"github.com/tinyrange/hifive1/internal/emu"
	"github.com/tinyrange/hifive1/internal/firmware"
	"github.com/tinyrange/hifive1/internal/hifive1"
	"github.com/tinyrange/hifive1/internal/rv32"
	"github.com/tinyrange/hifive1/internal/tui"
)

// exitError carries a specific process exit code out of run.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit code %d", e.code) }

func main() {
	if err := run(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		fmt.Fprintf(os.Stderr, "hifive1: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	headless := flag.Bool("headless", false, "Run without the TUI, as fast as possible")
	testing := flag.Bool("testing", false, "Probe registers after completion per riscv-tests (implies -headless)")
	binMode := flag.Bool("bin", false, "Treat the firmware file as a flat binary")
	entryAddress := flag.String("entryaddress", "0x20000000", "Entry address for -bin firmware (hex or decimal)")
	baseAddress := flag.String("baseaddress", "0x20000000", "Load address for -bin firmware; must be in ROM or RAM")
	uart0Path := flag.String("uart0", "", "Map UART0 onto a unix socket at this path instead of stdio")
	uart1Path := flag.String("uart1", "", "Map UART1 onto a unix socket at this path")
	configPath := flag.String("config", "", "Optional YAML run configuration")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if flag.NArg() != 1 {
		return fmt.Errorf("usage: hifive1 [flags] <firmware>")
	}
	image, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		return fmt.Errorf("could not read firmware: %w", err)
	}

	cfg := config.Default()
	if *configPath != "" {
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	if *uart0Path != "" {
		cfg.UART0Socket = *uart0Path
	}
	if *uart1Path != "" {
		cfg.UART1Socket = *uart1Path
	}

	// The event channel exists before the system so that backend reader
	// tasks can hold their interrupt sender from the start.
	events := make(chan emu.Event, 256)
	notify := emu.NotifyFunc(events)

	interactive := !*headless && !*testing

	// UART0: socket, dashboard console, or stdio.
	var uart0 *hifive1.UART
	var console hifive1.IOChannel
	switch {
	case cfg.UART0Socket != "":
		backend, channel := hifive1.NewChannelBackend(notify)
		if err := hifive1.ServeUnixSocket(cfg.UART0Socket, channel); err != nil {
			return err
		}
		uart0 = hifive1.NewUART(backend)
	case interactive:
		backend, channel := hifive1.NewChannelBackend(notify)
		console = channel
		uart0 = hifive1.NewUART(backend)
	default:
		uart0 = hifive1.NewUART(hifive1.NewTTYBackend(notify))
	}

	// UART1: socket or disconnected.
	var uart1 *hifive1.UART
	if cfg.UART1Socket != "" {
		backend, channel := hifive1.NewChannelBackend(notify)
		if err := hifive1.ServeUnixSocket(cfg.UART1Socket, channel); err != nil {
			return err
		}
		uart1 = hifive1.NewUART(backend)
	} else {
		uart1 = hifive1.NewUART(hifive1.NullBackend{})
	}

	bus := hifive1.NewBus(uart0, uart1)
	cpu := rv32.NewCPU(bus)

	if *binMode {
		base, err := parseAddress(*baseAddress)
		if err != nil {
			return fmt.Errorf("baseaddress: %w", err)
		}
		entry, err := parseAddress(*entryAddress)
		if err != nil {
			return fmt.Errorf("entryaddress: %w", err)
		}
		if err := firmware.LoadBin(image, bus, base); err != nil {
			return err
		}
		cpu.PC = entry
	} else {
		entry, err := firmware.LoadELF(image, bus)
		if err != nil {
			return err
		}
		cpu.PC = entry
	}
	slog.Debug("firmware loaded", "pc", fmt.Sprintf("0x%08x", cpu.PC), "bytes", len(image))

	sys := emu.NewSystem(cpu, cfg.AutostepBurst, events)
	go sys.Run()

	if interactive {
		return tui.Run(sys, console)
	}
	return runHeadless(sys, *testing)
}

// runHeadless autosteps to completion, forwarding UART interrupt events
// back to the executor. With testing enabled the riscv-tests protocol is
// probed afterwards: x17 (a7) must hold 93, otherwise x10 (a0) names
// the failing test and the exit code is non-zero.
func runHeadless(sys *emu.System, testing bool) error {
	sys.Jobs <- emu.Job{Kind: emu.JobAutoStep}

	for event := range sys.Events {
		switch event.Kind {
		case emu.EventStepComplete:
			if !event.Continue {
				return finishHeadless(sys, testing)
			}
		case emu.EventUARTInterrupt:
			sys.Jobs <- emu.Job{Kind: emu.JobCheckInterrupts}
		case emu.EventPanic:
			snap := sys.Snapshot(10, 0)
			fmt.Fprintln(os.Stderr, "unrecoverable error, last instructions:")
			for _, entry := range snap.Last {
				fmt.Fprintf(os.Stderr, "0x%08X: %s\n", entry.Addr, entry.Inst)
			}
			return fmt.Errorf("failed to step at address 0x%08X: %w", snap.PC, event.Err)
		}
	}
	return nil
}

func finishHeadless(sys *emu.System, testing bool) error {
	if !testing {
		fmt.Println("Done!")
		return nil
	}
	var a0, a7 uint32
	sys.WithLock(func(cpu *rv32.CPU) {
		a0 = cpu.ReadReg(10)
		a7 = cpu.ReadReg(17)
	})
	if a7 != 93 {
		fmt.Fprintf(os.Stderr, "Test failed: %d\n", a0)
		return &exitError{code: 1}
	}
	return nil
}

// parseAddress accepts hex (0x-prefixed) or decimal addresses.
func parseAddress(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
