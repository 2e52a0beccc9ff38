// Package daemon implements the zmx session daemon: one process per named
// session, owning the PTY master, the VT model, and the listening socket,
// multiplexing any number of attached clients. It generalizes the
// teacher's internal/session package (daemon.go, listener.go, attach.go,
// session.go), which already multiplexes clients for a single agent, to
// the spec's full named-session namespace and binary wire protocol. The
// spec's single-threaded poll(2) loop is restated here as goroutines
// synchronized through one mutex guarding the VT and client set — the same
// shape the teacher's acceptLoop/readClientInput/VT.PipeOutput trio
// already uses for its one-client case.
package daemon

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/muesli/termenv"

	"zmx/internal/terminal"
)

// Session is the daemon-side record for one named session.
type Session struct {
	Name string
	Group string
	Cmd   []string
	Cwd   string

	mu            sync.Mutex
	term          terminal.Terminal
	cols, rows    int
	hasPTYOutput  bool
	hasHadClient  bool
	clients       []*Client
	accepted      int
	removed       int

	ptm      *os.File
	shellCmd *exec.Cmd
	listener net.Listener
	sockPath string

	oscFg string
	oscBg string

	running bool
	done    chan struct{}
}

func newSession(group, name string, cmdVec []string, cwd string, cols, rows int, backend terminal.Backend, maxScrollback int) (*Session, error) {
	term, err := terminal.New(backend, cols, rows, maxScrollback)
	if err != nil {
		return nil, err
	}
	return &Session{
		Name:    name,
		Group:   group,
		Cmd:     cmdVec,
		Cwd:     cwd,
		term:    term,
		cols:    cols,
		rows:    rows,
		oscFg:   os.Getenv("ZMX_OSC_FG"),
		oscBg:   os.Getenv("ZMX_OSC_BG"),
		running: true,
		done:    make(chan struct{}),
	}, nil
}

// ptyWriteTimeout bounds how long a client's Input/Run frame may block the
// dispatch goroutine if the shell has stopped reading its stdin.
const ptyWriteTimeout = 3 * time.Second

// errPTYWriteTimeout is returned by writePTY when the write does not
// complete within ptyWriteTimeout — the shell is likely hung.
var errPTYWriteTimeout = fmt.Errorf("pty write timed out")

// writePTY writes to the shell's PTY with a timeout, grounded on the
// teacher's virtualterminal.VT.WritePTY: the write runs in its own
// goroutine so a shell that has stopped reading stdin (kernel PTY buffer
// full) can't block the dispatch loop forever. The goroutine itself may
// still be blocked when writePTY returns; it is abandoned, matching the
// teacher's own trade-off of bounding the caller over killing the write.
func (s *Session) writePTY(p []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, err := s.ptm.Write(p)
		ch <- result{n, err}
	}()
	timer := time.NewTimer(ptyWriteTimeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.n, r.err
	case <-timer.C:
		return 0, errPTYWriteTimeout
	}
}

// cacheOSCColors reads the real terminal's foreground/background color
// before the daemon detaches from it, so a later OSC 10/11 query from the
// shell (which the daemon, running with no attached terminal, could never
// answer itself) can be answered from cache. Grounded on the teacher's
// wrapper.respondOSCColors/colorToX11, called here pre-fork instead of
// pre-raw-mode since the daemon never owns a terminal of its own.
func cacheOSCColors() (fg, bg string) {
	output := termenv.NewOutput(os.Stdout)
	if c := output.ForegroundColor(); c != nil {
		fg = colorToX11(c)
	}
	if c := output.BackgroundColor(); c != nil {
		bg = colorToX11(c)
	}
	return fg, bg
}

// colorToX11 converts a termenv.Color to the X11 "rgb:RRRR/GGGG/BBBB"
// format OSC 10/11 replies use, identical to the teacher's colorToX11.
func colorToX11(c termenv.Color) string {
	rgb, ok := c.(termenv.RGBColor)
	if !ok {
		return ""
	}
	hex := string(rgb)
	if len(hex) != 7 || hex[0] != '#' {
		return ""
	}
	r, err1 := strconv.ParseUint(hex[1:3], 16, 8)
	g, err2 := strconv.ParseUint(hex[3:5], 16, 8)
	b, err3 := strconv.ParseUint(hex[5:7], 16, 8)
	if err1 != nil || err2 != nil || err3 != nil {
		return ""
	}
	return fmt.Sprintf("rgb:%04x/%04x/%04x", r*0x101, g*0x101, b*0x101)
}

// forEachClient mirrors the teacher's Session.ForEachClient helper: it
// snapshots the client slice under the lock, then invokes fn for each
// without holding it, so fn is free to call back into the session.
func (s *Session) forEachClient(fn func(*Client)) {
	s.mu.Lock()
	clients := make([]*Client, len(s.clients))
	copy(clients, s.clients)
	s.mu.Unlock()
	for _, c := range clients {
		fn(c)
	}
}

func (s *Session) addClient(c *Client) {
	s.mu.Lock()
	s.clients = append(s.clients, c)
	s.accepted++
	s.mu.Unlock()
}

func (s *Session) removeClient(c *Client) {
	s.mu.Lock()
	for i, existing := range s.clients {
		if existing == c {
			s.clients = append(s.clients[:i], s.clients[i+1:]...)
			s.removed++
			break
		}
	}
	s.mu.Unlock()
	c.close()
}

func (s *Session) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
