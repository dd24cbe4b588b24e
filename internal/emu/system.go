package emu

import (
	"runtime"
	"sync"

	"github.com/tinyrange/hifive1/internal/rv32"
)

// DefaultBurst is the number of instructions executed per autostep
// burst. The lock is held for a whole burst so UI snapshots observe
// consistent state.
const DefaultBurst = 300

// System owns the shared executor state. The executor worker is the
// only writer; the UI reads through Snapshot, which takes the same
// lock.
type System struct {
	mu  sync.Mutex
	cpu *rv32.CPU

	// Jobs feeds the executor worker; Events fans out to the UI.
	Jobs   chan Job
	Events chan Event

	burst int
}

// NewSystem wraps a CPU in a harness with the given autostep burst size
// (DefaultBurst if burst is zero or negative). events may be a
// pre-created event channel so that UART backends can post interrupt
// events before the system is assembled; pass nil to have one created.
func NewSystem(cpu *rv32.CPU, burst int, events chan Event) *System {
	if burst <= 0 {
		burst = DefaultBurst
	}
	if events == nil {
		events = make(chan Event, 256)
	}
	return &System{
		cpu:    cpu,
		Jobs:   make(chan Job, 16),
		Events: events,
		burst:  burst,
	}
}

// NotifyFunc returns the callback handed to UART backends: it posts a
// UART interrupt event for every enqueued byte.
func NotifyFunc(events chan<- Event) func() {
	return func() {
		events <- Event{Kind: EventUARTInterrupt}
	}
}

// WithLock runs f with exclusive access to the CPU.
func (sys *System) WithLock(f func(cpu *rv32.CPU)) {
	sys.mu.Lock()
	defer sys.mu.Unlock()
	f(sys.cpu)
}

// Snapshot is a consistent copy of the executor state for rendering.
type Snapshot struct {
	Regs [32]uint32
	PC   uint32
	CSR  rv32.CSRFile
	WFI  bool
	Last []rv32.HistoryEntry
	Next []rv32.NextEntry
}

// Snapshot copies the state the UI renders: registers, CSRs, the last
// lastN executed instructions and a nextN-instruction lookahead.
func (sys *System) Snapshot(lastN, nextN int) Snapshot {
	sys.mu.Lock()
	defer sys.mu.Unlock()
	snap := Snapshot{
		Regs: sys.cpu.X,
		PC:   sys.cpu.PC,
		CSR:  sys.cpu.CSR,
		WFI:  sys.cpu.WFI,
		Last: sys.cpu.History.LastN(lastN),
	}
	if nextN > 0 && !sys.cpu.WFI {
		snap.Next = sys.cpu.NextInstructions(nextN)
	}
	return snap
}

// Run is the executor worker loop. It terminates when the job channel
// closes, when the guest reaches EBREAK, or on a fatal error (reported
// as EventPanic). Run blocks; start it on its own goroutine.
func (sys *System) Run() {
	autostep := false
	for {
		sys.mu.Lock()
		stalled := sys.cpu.WFI
		sys.mu.Unlock()

		var job Job
		var ok bool
		if autostep && !stalled {
			select {
			case job, ok = <-sys.Jobs:
				if !ok {
					return
				}
			default:
				job = Job{Kind: JobStep, Steps: sys.burst}
			}
		} else {
			// Stalled or idle: block until the next job. A stalled core
			// is only woken by Step/AutoStep/CheckInterrupts.
			job, ok = <-sys.Jobs
			if !ok {
				return
			}
		}

		var steps int
		switch job.Kind {
		case JobStep:
			if job.Steps == 0 {
				continue
			}
			steps = job.Steps
		case JobAutoStep:
			autostep = true
			continue
		case JobStop:
			autostep = false
			continue
		case JobCheckInterrupts:
			sys.mu.Lock()
			taken := sys.cpu.CheckInterrupts()
			sys.mu.Unlock()
			if taken {
				sys.Events <- Event{Kind: EventStepComplete, Continue: true}
			}
			continue
		}

		continueExec := true
		var stepErr error
		sys.mu.Lock()
		for i := 0; i < steps; i++ {
			cont, err := sys.cpu.Step()
			if err != nil {
				stepErr = err
				break
			}
			if !cont {
				continueExec = false
				break
			}
			if sys.cpu.WFI {
				// Park on the next blocking receive instead of spinning
				// through stalled steps.
				break
			}
		}
		sys.mu.Unlock()

		if stepErr != nil {
			sys.Events <- Event{Kind: EventPanic, Err: stepErr}
			return
		}
		if !continueExec {
			sys.Events <- Event{Kind: EventStepComplete, Continue: false}
			return
		}
		sys.Events <- Event{Kind: EventStepComplete, Continue: true}
		runtime.Gosched()
	}
}
