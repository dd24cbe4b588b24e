package tui

import (
	"os"

	"golang.org/x/term"

	"github.com/tinyrange/hifive1/internal/emu"
)

// Control keys understood by the dashboard.
const (
	keyStep     = 0x13 // ^S
	keyAutostep = 0x01 // ^A
	keyStop     = 0x18 // ^X
	keyQuit     = 0x03 // ^C
)

// StartKeyboard switches stdin to raw mode and posts one EventKey per
// byte read. The returned restore function must run before the process
// prints its final output.
func StartKeyboard(events chan<- emu.Event) (func(), error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}, nil
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	go func() {
		var buf [1]byte
		for {
			if _, err := os.Stdin.Read(buf[:]); err != nil {
				return
			}
			events <- emu.Event{Kind: emu.EventKey, Key: buf[0]}
		}
	}()
	return func() { term.Restore(fd, oldState) }, nil
}
