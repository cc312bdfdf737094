// Package console is C11: a synchronous console built over an
// asynchronous, interrupt-driven device. Grounded on
// userprog/synchconsole.cc/.h, with the asynchronous device itself backed
// by real terminal I/O instead of a simulated one: raw keystrokes via
// github.com/eiannone/keyboard and raw terminal mode via golang.org/x/term,
// the same two libraries the teacher's cmd/mipsvm uses for its own
// keystroke-driven front panel.
package console

import (
	"fmt"
	"os"

	"github.com/eiannone/keyboard"
	"golang.org/x/term"
)

// Console is the asynchronous device: each keystroke is buffered and then
// announced via onReadDone, and each write completes (after the real
// terminal write) and is announced via onWriteDone — mirroring the
// hardware console's ReadAvail/WriteDone interrupt pair the original
// Console class models.
type Console struct {
	pending     chan byte
	onReadDone  func()
	onWriteDone func()

	restoreTerm func() error
}

// New opens the real keyboard and, if stdin is a terminal, switches it to
// raw mode so individual keystrokes arrive without waiting for a newline.
func New(onReadDone, onWriteDone func()) (*Console, error) {
	c := &Console{
		pending:     make(chan byte, 1),
		onReadDone:  onReadDone,
		onWriteDone: onWriteDone,
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		state, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err == nil {
			c.restoreTerm = func() error { return term.Restore(int(os.Stdin.Fd()), state) }
		}
	}

	if err := keyboard.Open(); err != nil {
		return nil, fmt.Errorf("console: opening keyboard: %w", err)
	}

	go c.readLoop()
	return c, nil
}

func (c *Console) readLoop() {
	for {
		char, key, err := keyboard.GetKey()
		if err != nil {
			close(c.pending)
			return
		}

		b := byte(char)
		switch key {
		case keyboard.KeyEnter:
			b = '\n'
		case keyboard.KeySpace:
			b = ' '
		case keyboard.KeyBackspace, keyboard.KeyBackspace2:
			b = '\b'
		case keyboard.KeyCtrlD, keyboard.KeyCtrlC:
			close(c.pending)
			return
		}

		c.pending <- b
		if c.onReadDone != nil {
			c.onReadDone()
		}
	}
}

// GetChar returns the most recently buffered keystroke. Callers only call
// this after being woken by onReadDone, so the channel always has a value
// ready (synchconsole.cc: "console->GetChar()").
func (c *Console) GetChar() byte {
	return <-c.pending
}

// PutChar writes one byte to the real terminal and announces completion.
func (c *Console) PutChar(b byte) {
	os.Stdout.Write([]byte{b})
	if c.onWriteDone != nil {
		go c.onWriteDone()
	}
}

// Close releases the keyboard and restores the terminal's prior mode.
func (c *Console) Close() {
	keyboard.Close()
	if c.restoreTerm != nil {
		c.restoreTerm()
	}
}
