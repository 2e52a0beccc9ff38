// Package client implements zmx's attach-side terminal I/O: raw-mode setup,
// SIGWINCH-driven resize frames, and the stdin/socket/stdout pump that
// proxies a live session to the caller's own terminal. It generalizes the
// teacher's internal/cmd/attach.go doAttach function (JSON handshake over a
// single socket) to zmx's binary wire protocol and multi-frame session
// lifecycle (Init, Resize, Detach, Run, History, Info).
package client

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/term"

	"zmx/internal/sockbuf"
	"zmx/internal/wire"
)

// detachByte is the Ctrl+\ keycode that ends an attach session locally,
// without tearing down the remote one.
const detachByte = 0x1c

// kittyDetachSequences are the Kitty keyboard protocol's encodings of
// Ctrl+\ when a terminal that supports the protocol has disambiguation
// enabled; a plain 0x1C never appears on the wire in that mode.
var kittyDetachSequences = [][]byte{
	[]byte("\x1b[92;5u"),
	[]byte("\x1b[92;5:1u"),
}

// findDetach returns the index and byte length of the earliest detach
// trigger in buf, or (-1, 0) if none is present.
func findDetach(buf []byte) (int, int) {
	best, bestLen := -1, 0
	if idx := indexByte(buf, detachByte); idx >= 0 {
		best, bestLen = idx, 1
	}
	for _, seq := range kittyDetachSequences {
		if idx := bytes.Index(buf, seq); idx >= 0 && (best == -1 || idx < best) {
			best, bestLen = idx, len(seq)
		}
	}
	return best, bestLen
}

// Session drives one attach/run session against an already-dialed socket.
type Session struct {
	conn net.Conn
	fd   int

	oldState *term.State
	sigCh    chan os.Signal

	closeOnce sync.Once
	done      chan struct{}
}

// New wraps conn for interactive use against os.Stdin/os.Stdout.
func New(conn net.Conn) *Session {
	return &Session{
		conn: conn,
		fd:   int(os.Stdin.Fd()),
		done: make(chan struct{}),
	}
}

// Attach sends the Init handshake, puts the local terminal into raw mode,
// and pumps stdin/stdout until the session detaches, the remote closes, or
// the shell exits. It restores terminal state before returning regardless
// of outcome.
func (s *Session) Attach() error {
	cols, rows, err := term.GetSize(s.fd)
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}
	if _, err := s.conn.Write(wire.Encode(wire.Init, encodeSize(cols, rows))); err != nil {
		return fmt.Errorf("send init: %w", err)
	}

	oldState, err := term.MakeRaw(s.fd)
	if err != nil {
		return fmt.Errorf("set raw mode: %w", err)
	}
	s.oldState = oldState
	defer s.restore()

	s.watchResize()
	defer signal.Stop(s.sigCh)

	return s.pump(true)
}

// Run sends its payload as a one-shot Run frame (spec.md §4.6) for the
// non-attaching `zmx run` invocation, then pumps without sending Init or
// entering raw mode: stdin is still forwarded as Input frames and Ctrl+\
// is not a detach key. It returns once the daemon's Ack arrives, the
// connection closes, or stdin ends.
func (s *Session) Run(payload []byte) error {
	if _, err := s.conn.Write(wire.Encode(wire.Run, payload)); err != nil {
		return fmt.Errorf("send run: %w", err)
	}
	return s.pump(false)
}

// restore plays back the fixed mode-reset sequence spec.md §4.5 mandates
// on detach: every mouse-tracking mode, bracketed paste, focus reporting,
// and the alternate screen, off, without clearing the screen, then the
// cursor visible and the terminal back in cooked mode.
func (s *Session) restore() {
	os.Stdout.WriteString("\033[?1000l\033[?1002l\033[?1003l\033[?1006l\033[?2004l\033[?1004l\033[?1049l")
	term.Restore(s.fd, s.oldState)
	os.Stdout.WriteString("\033[?25h\033[0m\r\n")
}

func (s *Session) watchResize() {
	s.sigCh = make(chan os.Signal, 1)
	signal.Notify(s.sigCh, syscall.SIGWINCH)
	go func() {
		for range s.sigCh {
			cols, rows, err := term.GetSize(s.fd)
			if err != nil {
				continue
			}
			s.conn.Write(wire.Encode(wire.Resize, encodeSize(cols, rows)))
		}
	}()
}

// pump runs the stdin-reader and socket-reader goroutines and blocks until
// either ends. detachOnCtrlBackslash gates whether Ctrl+\ ends the local
// attach by sending a Detach frame (interactive) or is just forwarded
// (non-interactive run, which has no detach concept).
func (s *Session) pump(detachOnCtrlBackslash bool) error {
	go func() {
		defer s.finish()
		buf := make([]byte, 4096)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				if detachOnCtrlBackslash {
					if idx, _ := findDetach(buf[:n]); idx >= 0 {
						if idx > 0 {
							s.conn.Write(wire.Encode(wire.Input, buf[:idx]))
						}
						s.conn.Write(wire.Encode(wire.Detach, nil))
						return
					}
				}
				if _, werr := s.conn.Write(wire.Encode(wire.Input, buf[:n])); werr != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	go func() {
		defer s.finish()
		in := sockbuf.New(0)
		for {
			frame, ok := in.Next()
			if !ok {
				if in.Malformed() || in.Overflowed() {
					return
				}
				if _, err := in.Fill(s.conn); err != nil {
					return
				}
				continue
			}
			switch frame.Tag {
			case wire.Output:
				os.Stdout.Write(frame.Payload)
			case wire.Ack:
				return
			}
		}
	}()

	<-s.done
	return nil
}

// finish closes done, which lets pump return, and closes the connection so
// a socket reader still blocked in Read unblocks with an error. A stdin
// reader still blocked in Read is not woken; pump does not wait for it.
func (s *Session) finish() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func encodeSize(cols, rows int) []byte {
	return wire.EncodeWindowSize(wire.WindowSize{Cols: uint16(cols), Rows: uint16(rows)})
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
