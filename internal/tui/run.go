package tui

import (
	"fmt"
	"os"
	"time"

	"github.com/tinyrange/hifive1/internal/emu"
	"github.com/tinyrange/hifive1/internal/hifive1"
)

// redrawInterval bounds how stale a frame can get: the event receive is
// timed so idle snapshots are periodically repainted anyway.
const redrawInterval = 100 * time.Millisecond

// Run drives the interactive dashboard until the guest reaches EBREAK,
// the executor panics, or the user quits. uart0 is the console channel
// pair: guest transmit bytes render into the console pane and typed
// characters feed the guest's receive queue.
func Run(sys *emu.System, uart0 hifive1.IOChannel) error {
	restore, err := StartKeyboard(sys.Events)
	if err != nil {
		return fmt.Errorf("keyboard setup: %w", err)
	}
	defer restore()

	dash := NewDashboard(sys, os.Stdout)

	// Enter the alternate screen so the dashboard does not scroll the
	// user's shell history away.
	fmt.Print("\x1b[?1049h\x1b[?25l")
	defer fmt.Print("\x1b[?25h\x1b[?1049l")

	// Drain guest transmit bytes into the console pane.
	go func() {
		buf := make([]byte, 0, 64)
		for b := range uart0.Out {
			buf = append(buf[:0], b)
			for len(uart0.Out) > 0 && len(buf) < cap(buf) {
				buf = append(buf, <-uart0.Out)
			}
			dash.ConsoleWrite(buf)
		}
	}()

	ticker := time.NewTicker(redrawInterval)
	defer ticker.Stop()

	dash.Render()
	var runErr error

loop:
	for {
		select {
		case <-ticker.C:
			dash.Render()
		case event := <-sys.Events:
			switch event.Kind {
			case emu.EventKey:
				switch event.Key {
				case keyStep:
					sys.Jobs <- emu.Job{Kind: emu.JobStep, Steps: 1}
				case keyAutostep:
					dash.SetMode("autostep")
					sys.Jobs <- emu.Job{Kind: emu.JobAutoStep}
				case keyStop:
					dash.SetMode("idle")
					sys.Jobs <- emu.Job{Kind: emu.JobStop}
				case keyQuit:
					break loop
				default:
					// Everything else is guest input.
					select {
					case uart0.In <- event.Key:
					default:
					}
				}
			case emu.EventUARTInterrupt:
				sys.Jobs <- emu.Job{Kind: emu.JobCheckInterrupts}
			case emu.EventStepComplete:
				if !event.Continue {
					break loop
				}
			case emu.EventPanic:
				runErr = event.Err
				break loop
			case emu.EventExit:
				break loop
			}
		}
	}

	restore()
	fmt.Print("\x1b[?25h\x1b[?1049l")
	if runErr != nil {
		return postMortem(sys, runErr)
	}
	return nil
}

// postMortem prints the final pc and the last executed instructions
// after a fatal executor error.
func postMortem(sys *emu.System, runErr error) error {
	snap := sys.Snapshot(10, 0)
	fmt.Fprintln(os.Stderr, "unrecoverable error, last instructions:")
	for _, entry := range snap.Last {
		fmt.Fprintf(os.Stderr, "0x%08X: %s\n", entry.Addr, entry.Inst)
	}
	return fmt.Errorf("failed to step at address 0x%08X: %w", snap.PC, runErr)
}
