// Package terminal defines the narrow abstraction the daemon feeds every
// byte of PTY output through, and two interchangeable implementations:
// internal/terminal/midtermvt (full emulator, github.com/vito/midterm) and
// internal/terminal/vt10x (thinner alternative, github.com/hinshun/vt10x).
// Dispatch between them is a runtime interface, not a build-time switch:
// the per-call cost is dwarfed by the VT state machine itself.
package terminal

import (
	"fmt"
	"os"
)

// Format selects a serialization of the terminal's current state.
type Format int

const (
	// FormatPlain returns trimmed UTF-8 text, no escape sequences.
	FormatPlain Format = iota
	// FormatVT returns a self-contained byte stream that, written to a
	// freshly reset terminal, reproduces the screen, cursor, and modes.
	FormatVT
	// FormatHTML returns an HTML rendering of the screen. Not every
	// backend supports it.
	FormatHTML
)

// Terminal is the abstract VT state machine the daemon drives.
type Terminal interface {
	// Resize reflows the screen to the new dimensions; it may move the
	// cursor.
	Resize(cols, rows int)
	// Feed appends PTY output to the state machine. It is fed every byte
	// the PTY produces, in order, exactly once, and never client input.
	Feed(p []byte)
	// Serialize renders the requested format. The second return is false
	// when there is nothing to serialize (an empty screen) or when the
	// backend doesn't support the requested format.
	Serialize(f Format) ([]byte, bool)
	// SerializeState is the re-attach snapshot: Serialize(FormatVT) plus
	// the cursor-position and visibility escapes.
	SerializeState() []byte
	// Cursor reports the current cursor column, row, and visibility.
	Cursor() (col, row int, visible bool)
	// SerializeHistory renders the full scrollback (not just the live
	// screen) for the History command. Backends that don't keep a
	// separate scrollback fall back to the live screen.
	SerializeHistory(f Format) ([]byte, bool)
}

// Backend names a selectable Terminal implementation.
type Backend string

const (
	BackendMidterm Backend = "midterm"
	BackendVT10X   Backend = "vt10x"
)

// BackendFromEnv reads ZMX_VT_BACKEND, defaulting to BackendMidterm.
func BackendFromEnv() Backend {
	switch Backend(os.Getenv("ZMX_VT_BACKEND")) {
	case BackendVT10X:
		return BackendVT10X
	default:
		return BackendMidterm
	}
}

// Factory constructs a Terminal for a given backend. internal/daemon goes
// through New, which looks up the registered Factory, rather than importing
// both backend packages directly, so the backend choice stays a single
// runtime value threaded from BackendFromEnv.
type Factory func(cols, rows, maxScrollback int) Terminal

var registry = map[Backend]Factory{}

// Register associates a Backend name with a constructor. Each backend
// package calls this from an init function.
func Register(b Backend, f Factory) {
	registry[b] = f
}

// New constructs a Terminal using the registered factory for backend.
func New(backend Backend, cols, rows, maxScrollback int) (Terminal, error) {
	f, ok := registry[backend]
	if !ok {
		return nil, fmt.Errorf("terminal: unknown backend %q", backend)
	}
	return f(cols, rows, maxScrollback), nil
}
