package emu

import (
	"testing"
	"time"

	"github.com/tinyrange/hifive1/internal/hifive1"
	"github.com/tinyrange/hifive1/internal/rv32"
)

// testSystem assembles a full board with UART0 on a channel backend and
// the given program loaded at the RAM base.
func testSystem(t *testing.T, words []uint32) (*System, hifive1.IOChannel) {
	t.Helper()
	events := make(chan Event, 256)
	backend, channel := hifive1.NewChannelBackend(NotifyFunc(events))
	bus := hifive1.NewBus(hifive1.NewUART(backend), hifive1.NewUART(hifive1.NullBackend{}))

	data := make([]byte, len(words)*4)
	for i, word := range words {
		data[i*4] = byte(word)
		data[i*4+1] = byte(word >> 8)
		data[i*4+2] = byte(word >> 16)
		data[i*4+3] = byte(word >> 24)
	}
	if err := bus.LoadAt(hifive1.RAMBase, data); err != nil {
		t.Fatal(err)
	}

	cpu := rv32.NewCPU(bus)
	cpu.PC = hifive1.RAMBase
	sys := NewSystem(cpu, 0, events)
	go sys.Run()
	return sys, channel
}

func nextEvent(t *testing.T, sys *System) Event {
	t.Helper()
	select {
	case event := <-sys.Events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("no event from executor")
		return Event{}
	}
}

// waitEvent drains events until one of the wanted kind shows up.
func waitEvent(t *testing.T, sys *System, kind EventKind) Event {
	t.Helper()
	for {
		event := nextEvent(t, sys)
		if event.Kind == kind {
			return event
		}
	}
}

func TestStepJob(t *testing.T) {
	sys, _ := testSystem(t, []uint32{
		0x00500513, // li a0, 5
		0x00100073, // ebreak
	})
	sys.Jobs <- Job{Kind: JobStep, Steps: 1}
	event := waitEvent(t, sys, EventStepComplete)
	if !event.Continue {
		t.Fatal("single step reported termination")
	}
	snap := sys.Snapshot(1, 0)
	if snap.Regs[10] != 5 {
		t.Errorf("a0 = %d after one step, want 5", snap.Regs[10])
	}
	if snap.PC != hifive1.RAMBase+4 {
		t.Errorf("pc = 0x%08x, want 0x%08x", snap.PC, hifive1.RAMBase+4)
	}
}

func TestZeroStepJobIsNoop(t *testing.T) {
	sys, _ := testSystem(t, []uint32{
		0x00100073, // ebreak
	})
	sys.Jobs <- Job{Kind: JobStep, Steps: 0}
	sys.Jobs <- Job{Kind: JobStep, Steps: 1}
	event := waitEvent(t, sys, EventStepComplete)
	if event.Continue {
		t.Fatal("ebreak step reported continue")
	}
}

func TestAutoStepRunsToEbreak(t *testing.T) {
	// A loop of arithmetic followed by ebreak, long enough to need
	// several bursts.
	words := make([]uint32, 0, 1024)
	for i := 0; i < 1000; i++ {
		words = append(words, 0x00150513) // addi a0, a0, 1
	}
	words = append(words, 0x00100073) // ebreak
	sys, _ := testSystem(t, words)

	sys.Jobs <- Job{Kind: JobAutoStep}
	for {
		event := waitEvent(t, sys, EventStepComplete)
		if !event.Continue {
			break
		}
	}
	snap := sys.Snapshot(1, 0)
	if snap.Regs[10] != 1000 {
		t.Errorf("a0 = %d, want 1000", snap.Regs[10])
	}
}

func TestPanicEvent(t *testing.T) {
	sys, _ := testSystem(t, []uint32{
		0x0000007f, // unknown opcode
	})
	sys.Jobs <- Job{Kind: JobStep, Steps: 1}
	event := waitEvent(t, sys, EventPanic)
	if event.Err == nil {
		t.Fatal("panic event without error")
	}
}

func TestWFIWakeupThroughJobs(t *testing.T) {
	sys, channel := testSystem(t, []uint32{
		0x00000297, // auipc t0, 0
		0x04028293, // addi t0, t0, 64
		0x30529073, // csrrw x0, mtvec, t0
		0x10500073, // wfi
		0x00100073, // ebreak (never reached; handler is at +64)
	})
	// Trap handler: ebreak.
	sys.WithLock(func(cpu *rv32.CPU) {
		bus := cpu.Bus.(*hifive1.Bus)
		if err := bus.LoadAt(hifive1.RAMBase+64, []byte{0x73, 0x00, 0x10, 0x00}); err != nil {
			t.Fatal(err)
		}
	})

	// Autostep parks on the wfi.
	sys.Jobs <- Job{Kind: JobAutoStep}
	waitEvent(t, sys, EventStepComplete)
	deadline := time.After(2 * time.Second)
	for {
		var stalled bool
		sys.WithLock(func(cpu *rv32.CPU) { stalled = cpu.WFI })
		if stalled {
			break
		}
		select {
		case <-deadline:
			t.Fatal("cpu never stalled on wfi")
		case <-time.After(time.Millisecond):
		}
	}

	// Poke a byte into UART0; the backend posts an interrupt event which
	// the harness answers with a CheckInterrupts job (at-least-once).
	channel.In <- 0x55
	waitEvent(t, sys, EventUARTInterrupt)
	sys.Jobs <- Job{Kind: JobCheckInterrupts}
	waitEvent(t, sys, EventStepComplete)

	snap := sys.Snapshot(1, 0)
	if snap.WFI {
		t.Error("stall flag still set after interrupt delivery")
	}
	if snap.CSR.Mcause != rv32.CauseMachineExternalInterrupt {
		t.Errorf("mcause = 0x%08X, want machine external interrupt", snap.CSR.Mcause)
	}

	// The handler's ebreak terminates the autostepped run.
	event := waitEvent(t, sys, EventStepComplete)
	for event.Continue {
		event = waitEvent(t, sys, EventStepComplete)
	}
}

func TestStopLeavesAutostep(t *testing.T) {
	// An infinite loop: autostep, then stop, and confirm the worker goes
	// back to serving discrete jobs.
	sys, _ := testSystem(t, []uint32{
		0x0000006f, // jal x0, 0 (loop forever)
	})
	sys.Jobs <- Job{Kind: JobAutoStep}
	waitEvent(t, sys, EventStepComplete)
	sys.Jobs <- Job{Kind: JobStop}
	sys.Jobs <- Job{Kind: JobStep, Steps: 1}
	waitEvent(t, sys, EventStepComplete)
}

func TestSnapshotLookahead(t *testing.T) {
	sys, _ := testSystem(t, []uint32{
		0x00500513, // li a0, 5
		0x00100073, // ebreak
	})
	snap := sys.Snapshot(0, 2)
	if len(snap.Next) != 2 {
		t.Fatalf("lookahead length = %d, want 2", len(snap.Next))
	}
	if !snap.Next[0].Ok || snap.Next[0].Inst.Op != rv32.OpAddi {
		t.Errorf("next[0] = %+v", snap.Next[0])
	}
	if snap.Next[1].Inst.Op != rv32.OpEbreak {
		t.Errorf("next[1] = %+v", snap.Next[1])
	}
}
