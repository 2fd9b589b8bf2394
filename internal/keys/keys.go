// Package keys watches the terminal for the quit key.
package keys

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/term"
)

// Quit keys. Ctrl-C only arrives as a byte in raw mode.
const (
	KeyQuit      = 'q'
	KeyInterrupt = 0x03
)

// Watcher reads single key presses and closes Quit() on a quit key.
type Watcher struct {
	in io.Reader
	fd int

	restore func() error
	raw     atomic.Bool

	quit     chan struct{}
	quitOnce sync.Once
	stopOnce sync.Once
}

// New watches f. When f is a terminal it is put in raw mode so keys arrive
// without Enter. A non-terminal f (pipe, /dev/null) is never read, so Quit()
// never fires.
func New(f *os.File) *Watcher {
	return &Watcher{in: f, fd: int(f.Fd()), quit: make(chan struct{})}
}

// NewReader watches an arbitrary reader as if it were a raw terminal.
func NewReader(r io.Reader) *Watcher {
	return &Watcher{in: r, fd: -1, quit: make(chan struct{})}
}

// Start begins reading keys in the background.
func (w *Watcher) Start() error {
	if w.fd >= 0 {
		if !term.IsTerminal(w.fd) {
			slog.Info("keys: stdin is not a terminal, quit key disabled")
			return nil
		}
		state, err := term.MakeRaw(w.fd)
		if err != nil {
			return err
		}
		w.restore = func() error { return term.Restore(w.fd, state) }
		w.raw.Store(true)
		slog.Info("keys: press q to quit")
	}

	go w.read()
	return nil
}

// Quit is closed once a quit key has been pressed.
func (w *Watcher) Quit() <-chan struct{} {
	return w.quit
}

// Stop restores the terminal. A read already blocked on the input is left to
// end with the process.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		if w.restore != nil {
			err = w.restore()
			w.raw.Store(false)
		}
	})
	return err
}

// Output wraps out so that lines written while the terminal is raw still
// start at column 0. Raw mode turns off output processing, so a bare "\n"
// moves down without returning the carriage.
func (w *Watcher) Output(out io.Writer) io.Writer {
	return &rawWriter{w: w, out: out}
}

type rawWriter struct {
	w   *Watcher
	out io.Writer
}

func (r *rawWriter) Write(p []byte) (int, error) {
	if !r.w.raw.Load() || bytes.IndexByte(p, '\n') < 0 {
		return r.out.Write(p)
	}
	if _, err := r.out.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *Watcher) read() {
	r := bufio.NewReader(w.in)
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err != io.EOF {
				slog.Debug("keys: read stopped", "error", err)
			}
			return
		}
		if IsQuit(b) {
			slog.Info("keys: quit key pressed")
			w.quitOnce.Do(func() { close(w.quit) })
			return
		}
	}
}

// IsQuit reports whether b ends the program.
func IsQuit(b byte) bool {
	return b == KeyQuit || b == 'Q' || b == KeyInterrupt
}
