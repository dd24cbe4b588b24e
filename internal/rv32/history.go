package rv32

// historyLength bounds the instruction log kept for post-mortems and the
// UI's "last instructions" pane.
const historyLength = 80

// HistoryEntry is one executed instruction and its address.
type HistoryEntry struct {
	Addr uint32
	Inst Instruction
}

// History is a fixed-capacity ring of the most recently executed
// instructions. The zero value is ready to use.
type History struct {
	entries [historyLength]HistoryEntry
	filled  int
	next    int
}

// Push appends an entry, discarding the oldest once the ring is full.
func (h *History) Push(addr uint32, inst Instruction) {
	h.entries[h.next] = HistoryEntry{Addr: addr, Inst: inst}
	h.next = (h.next + 1) % historyLength
	if h.filled < historyLength {
		h.filled++
	}
}

// Last returns the most recent entry.
func (h *History) Last() (HistoryEntry, bool) {
	if h.filled == 0 {
		return HistoryEntry{}, false
	}
	return h.entries[(h.next+historyLength-1)%historyLength], true
}

// LastN returns up to n entries, oldest first.
func (h *History) LastN(n int) []HistoryEntry {
	if n > h.filled {
		n = h.filled
	}
	out := make([]HistoryEntry, 0, n)
	for i := n; i > 0; i-- {
		out = append(out, h.entries[(h.next+historyLength-i)%historyLength])
	}
	return out
}

// Len returns the number of recorded entries.
func (h *History) Len() int {
	return h.filled
}
