package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/creack/pty"

	"zmx/internal/sessiondir"
	"zmx/internal/zmxerr"
)

// reexecSubcommand is the hidden subcommand cmd/zmx/main.go recognizes to
// run the daemon body after a fork + setsid.
const reexecSubcommand = "__daemon__"

// forkWait is how long EnsureSession gives a freshly spawned daemon to bind
// its listening socket before giving up.
const forkWait = 2 * time.Second

// EnsureSession implements spec.md §4.7's create-or-connect decision: it
// probes first, and only spawns a new daemon if the probe fails. cols/rows
// seed the PTY size for a freshly created session; they're ignored when an
// existing session is found (the existing session already has a size, and
// the caller's own Init frame will adjust it).
func EnsureSession(group, name string, cmdVec []string, cwd string, cols, rows int) error {
	if _, err := sessiondir.Probe(group, name); err == nil {
		return nil // client path: caller connects and proceeds
	}
	return spawnAndWait(group, name, cmdVec, cwd, cols, rows)
}

func spawnAndWait(group, name string, cmdVec []string, cwd string, cols, rows int) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("%w: %v", zmxerr.ErrUnrecoverable, err)
	}

	args := []string{reexecSubcommand, "--group", group, "--name", name, "--cols", strconv.Itoa(cols), "--rows", strconv.Itoa(rows)}
	if cwd != "" {
		args = append(args, "--cwd", cwd)
	}
	if len(cmdVec) > 0 {
		args = append(args, "--")
		args = append(args, cmdVec...)
	}

	cmd := exec.Command(self, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	fg, bg := cacheOSCColors()
	cmd.Env = append(os.Environ(), "ZMX_OSC_FG="+fg, "ZMX_OSC_BG="+bg)
	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err == nil {
		cmd.Stdin, cmd.Stdout, cmd.Stderr = devnull, devnull, devnull
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start daemon: %v", zmxerr.ErrUnrecoverable, err)
	}
	cmd.Process.Release()

	deadline := time.Now().Add(forkWait)
	for time.Now().Before(deadline) {
		if _, err := sessiondir.Probe(group, name); err == nil {
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("%w: %s never became live", zmxerr.ErrTimeout, name)
}

// Fork creates a new session that inherits source's command vector and
// cwd, per spec.md §4.7's fork operation. If target is empty, the smallest
// free "{source}-{N}" (N < 1000) is chosen.
func Fork(group, source, target string, cols, rows int) (string, error) {
	info, err := sessiondir.Find(group, source)
	if err != nil {
		return "", err
	}
	if target == "" {
		target, err = sessiondir.NextForkName(group, source)
		if err != nil {
			return "", err
		}
	} else if _, err := sessiondir.Probe(group, target); err == nil {
		return "", fmt.Errorf("%w: %s", zmxerr.ErrAlreadyExists, target)
	}

	// info.Cmd is already space-joined (joinCmd, for the Info reply); run it
	// through a shell rather than re-splitting it, since the joined form was
	// never guaranteed to survive a naive split round-trip.
	var cmdVec []string
	if info.Cmd != "" {
		cmdVec = []string{loginShell(), "-c", info.Cmd}
	}
	if err := spawnAndWait(group, target, cmdVec, info.Cwd, cols, rows); err != nil {
		return "", err
	}
	return target, nil
}

// spawnShellImpl starts the PTY-wrapped shell for a freshly created
// session: either the explicit command vector, or a login shell invoked as
// "-basename" per spec.md §4.7, with ZMX_SESSION/ZMX_GROUP set in its
// environment. Setsid ensures the shell becomes its own process-group
// leader so the daemon can signal the whole group by negative PID.
func spawnShellImpl(cfg Config) (*exec.Cmd, *os.File, error) {
	var cmd *exec.Cmd
	if len(cfg.Cmd) > 0 {
		cmd = exec.Command(cfg.Cmd[0], cfg.Cmd[1:]...)
	} else {
		shell := loginShell()
		cmd = exec.Command(shell)
		cmd.Args = []string{"-" + baseName(shell)}
	}
	cmd.Dir = cfg.Cwd
	cmd.Env = append(os.Environ(), "ZMX_SESSION="+cfg.Name, "ZMX_GROUP="+cfg.Group)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	ptm, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: uint16(cfg.Cols), Rows: uint16(cfg.Rows)})
	if err != nil {
		return nil, nil, err
	}
	return cmd, ptm, nil
}

func loginShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

