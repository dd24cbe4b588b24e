package rv32

import "testing"

func TestHistoryRing(t *testing.T) {
	var h History
	if _, ok := h.Last(); ok {
		t.Fatal("empty history reported an entry")
	}

	for i := 0; i < historyLength+5; i++ {
		h.Push(uint32(i*4), Instruction{Op: OpAddi, Imm: int32(i)})
	}
	if h.Len() != historyLength {
		t.Fatalf("len = %d, want %d", h.Len(), historyLength)
	}

	last, ok := h.Last()
	if !ok || last.Inst.Imm != historyLength+4 {
		t.Errorf("last = %+v, want imm %d", last, historyLength+4)
	}

	three := h.LastN(3)
	if len(three) != 3 {
		t.Fatalf("LastN(3) returned %d entries", len(three))
	}
	// Oldest first.
	if three[0].Inst.Imm != historyLength+2 || three[2].Inst.Imm != historyLength+4 {
		t.Errorf("LastN order wrong: %+v", three)
	}

	// Asking for more than recorded caps at the ring size.
	if got := len(h.LastN(historyLength * 2)); got != historyLength {
		t.Errorf("LastN over-ask = %d entries, want %d", got, historyLength)
	}
}
