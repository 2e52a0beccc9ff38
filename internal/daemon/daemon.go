package daemon

import (
	"bytes"
	"fmt"
	"log"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/creack/pty"

	"zmx/internal/sessiondir"
	"zmx/internal/terminal"
	"zmx/internal/wire"
	"zmx/internal/zmxerr"
	"zmx/internal/zmxpath"
)

// Config describes the session a freshly forked daemon process should own.
type Config struct {
	Group         string
	Name          string
	Cmd           []string
	Cwd           string
	Cols, Rows    int
	Backend       terminal.Backend
	MaxScrollback int
}

const defaultMaxScrollback = 10_000_000

// pidHeadroom is how long the daemon waits for a clean shell exit after
// SIGHUP before escalating to SIGKILL, exactly as spec.md §4.6 specifies.
const pidHeadroom = 500 * time.Millisecond

// RunDaemon runs the full daemon loop for the session described by cfg. It
// blocks until the session shuts down (Kill, shell exit, or SIGTERM) and
// returns only after teardown is complete. It is the body of the detached
// child process that internal/daemon/lifecycle.go forks into existence.
func RunDaemon(cfg Config) error {
	if err := zmxpath.EnsureRoots(cfg.Group); err != nil {
		return fmt.Errorf("ensure roots: %w", err)
	}

	logPath := zmxpath.SessionLogPath(cfg.Group, cfg.Name)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err == nil {
		log.SetOutput(logFile)
		defer logFile.Close()
	}
	log.Printf("starting session %s/%s", cfg.Group, cfg.Name)

	maxScrollback := cfg.MaxScrollback
	if maxScrollback <= 0 {
		maxScrollback = defaultMaxScrollback
	}
	sess, err := newSession(cfg.Group, cfg.Name, cfg.Cmd, cfg.Cwd, cfg.Cols, cfg.Rows, cfg.Backend, maxScrollback)
	if err != nil {
		return fmt.Errorf("%w: %v", zmxerr.ErrUnrecoverable, err)
	}

	sockPath := sessiondir.Path(cfg.Group, cfg.Name)
	os.Remove(sockPath)
	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return fmt.Errorf("%w: listen %s: %v", zmxerr.ErrUnrecoverable, sockPath, err)
	}
	sess.listener = listener
	sess.sockPath = sockPath

	shellCmd, ptm, err := spawnShellImpl(cfg)
	if err != nil {
		listener.Close()
		os.Remove(sockPath)
		return fmt.Errorf("%w: spawn shell: %v", zmxerr.ErrUnrecoverable, err)
	}
	sess.ptm = ptm
	sess.shellCmd = shellCmd

	sigTerm := make(chan os.Signal, 1)
	signal.Notify(sigTerm, syscall.SIGTERM)
	go func() {
		<-sigTerm
		log.Printf("received SIGTERM")
		sess.triggerShutdown()
	}()

	go sess.acceptLoop()
	go sess.ptyReadLoop()

	<-sess.done
	sess.shutdown()
	log.Printf("session %s/%s shut down", cfg.Group, cfg.Name)
	return nil
}

// acceptLoop accepts new client connections. Newly accepted clients are
// appended to the client set and handed their own read goroutine; they
// participate starting with whatever dispatch happens after this call
// returns, the Go-idiomatic equivalent of the spec's "not dispatched until
// the next poll iteration" rule — a client can't be processed before its
// own readLoop goroutine has even started.
func (s *Session) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.triggerShutdown()
			return
		}
		client := newClient(conn)
		s.addClient(client)
		go client.writerLoop()
		go s.clientReadLoop(client)
	}
}

// ptyReadLoop reads PTY output, feeds the VT, and broadcasts an Output
// frame to every attached client, all under the session mutex so every
// client observes PTY output in the order the shell produced it.
func (s *Session) ptyReadLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := s.ptm.Read(buf)
		if n > 0 {
			s.respondOSCColors(buf[:n])
			s.mu.Lock()
			s.term.Feed(buf[:n])
			s.hasPTYOutput = true
			frame := wire.Encode(wire.Output, buf[:n])
			for _, c := range s.clients {
				c.enqueue(frame)
			}
			s.mu.Unlock()
		}
		if err != nil {
			log.Printf("pty read: %v", err)
			s.triggerShutdown()
			return
		}
	}
}

// clientReadLoop drains one client's socket and dispatches every complete
// frame it yields, exactly the per-client "drain to completion before
// dispatching more than one frame" discipline spec.md §8 requires.
func (s *Session) clientReadLoop(c *Client) {
	for {
		if _, err := c.in.Fill(c.conn); err != nil {
			s.removeClient(c)
			return
		}
		for {
			frame, ok := c.in.Next()
			if !ok {
				break
			}
			if done := s.dispatch(c, frame); done {
				return
			}
		}
		if c.in.Malformed() || c.in.Overflowed() {
			s.removeClient(c)
			return
		}
	}
}

// dispatch handles one frame per spec.md §4.6's table. It returns true when
// the client's read loop should stop (Detach closed it, or Kill is
// shutting down the whole session).
func (s *Session) dispatch(c *Client, frame wire.Frame) bool {
	switch frame.Tag {
	case wire.Input:
		if _, err := s.writePTY(frame.Payload); err != nil {
			log.Printf("input write: %v", err)
		}

	case wire.Init:
		ws, err := wire.DecodeWindowSize(frame.Payload)
		if err != nil {
			return false
		}
		s.resize(ws)
		s.mu.Lock()
		sendSnapshot := s.hasPTYOutput && s.hasHadClient
		s.hasHadClient = true
		var snapshot []byte
		if sendSnapshot {
			if _, ok := s.term.Serialize(terminal.FormatVT); ok {
				snapshot = s.term.SerializeState()
			}
		}
		s.mu.Unlock()
		if len(snapshot) > 0 {
			c.enqueue(wire.Encode(wire.Output, snapshot))
		}

	case wire.Resize:
		ws, err := wire.DecodeWindowSize(frame.Payload)
		if err == nil {
			s.resize(ws)
		}

	case wire.Detach:
		s.removeClient(c)
		return true

	case wire.DetachAll:
		s.forEachClient(func(other *Client) { s.removeClient(other) })

	case wire.Kill:
		s.triggerShutdown()
		return true

	case wire.Info:
		s.mu.Lock()
		clientsLen := len(s.clients) - 1
		if clientsLen < 0 {
			clientsLen = 0
		}
		payload := wire.EncodeInfo(wire.InfoPayload{
			ClientsLen: uint64(clientsLen),
			PID:        int32(shellPID(s.shellCmd)),
			Cmd:        joinCmd(s.Cmd),
			Cwd:        s.Cwd,
		})
		s.mu.Unlock()
		c.enqueue(wire.Encode(wire.Info, payload))

	case wire.History:
		format := terminal.FormatPlain
		if len(frame.Payload) == 1 {
			switch wire.HistoryFormat(frame.Payload[0]) {
			case wire.HistoryVT:
				format = terminal.FormatVT
			case wire.HistoryHTML:
				format = terminal.FormatHTML
			}
		}
		s.mu.Lock()
		body, ok := s.term.SerializeHistory(format)
		s.mu.Unlock()
		if !ok {
			body = nil
		}
		c.enqueue(wire.Encode(wire.History, body))

	case wire.Run:
		if _, err := s.writePTY(frame.Payload); err != nil {
			log.Printf("run write: %v", err)
		}
		s.mu.Lock()
		s.hasHadClient = true
		s.mu.Unlock()
		c.enqueue(wire.Encode(wire.Ack, nil))

	case wire.Output, wire.Ack:
		// server→client tags; ignored if a client sends them.
	}
	return false
}

// respondOSCColors answers OSC 10/11 color queries the shell sends before
// the VT backend swallows them, exactly as the teacher's
// wrapper.respondOSCColors does, using colors cached pre-fork since the
// daemon itself has no terminal of its own to query.
func (s *Session) respondOSCColors(data []byte) {
	if s.oscFg != "" && bytes.Contains(data, []byte("\x1b]10;?")) {
		fmt.Fprintf(s.ptm, "\x1b]10;%s\x1b\\", s.oscFg)
	}
	if s.oscBg != "" && bytes.Contains(data, []byte("\x1b]11;?")) {
		fmt.Fprintf(s.ptm, "\x1b]11;%s\x1b\\", s.oscBg)
	}
}

func (s *Session) resize(ws wire.WindowSize) {
	pty.Setsize(s.ptm, &pty.Winsize{Cols: ws.Cols, Rows: ws.Rows})
	s.mu.Lock()
	s.cols, s.rows = int(ws.Cols), int(ws.Rows)
	s.term.Resize(int(ws.Cols), int(ws.Rows))
	s.mu.Unlock()
}

func (s *Session) triggerShutdown() {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()
	if wasRunning {
		close(s.done)
	}
}

// shutdown implements spec.md §4.6's teardown sequence: close every client,
// SIGHUP the shell's process group, wait, SIGKILL, waitpid, close the PTY,
// close the listener, unlink the socket.
func (s *Session) shutdown() {
	s.forEachClient(func(c *Client) { s.removeClient(c) })

	pid := shellPID(s.shellCmd)
	if pid > 0 {
		syscall.Kill(-pid, syscall.SIGHUP)
		time.Sleep(pidHeadroom)
		syscall.Kill(-pid, syscall.SIGKILL)
		s.shellCmd.Wait()
	}
	if s.ptm != nil {
		s.ptm.Close()
	}
	if s.listener != nil {
		s.listener.Close()
	}
	if s.sockPath != "" {
		os.Remove(s.sockPath)
	}
}

func shellPID(cmd *exec.Cmd) int {
	if cmd == nil || cmd.Process == nil {
		return 0
	}
	return cmd.Process.Pid
}

func joinCmd(cmd []string) string {
	out := ""
	for i, c := range cmd {
		if i > 0 {
			out += " "
		}
		out += c
	}
	return out
}
