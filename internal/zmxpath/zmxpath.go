// Package zmxpath resolves the filesystem roots zmx uses for sockets and
// logs, and the session-group name, from environment variables. Resolution
// happens once per process and is cached, mirroring the teacher's
// config.ResolveDir/socketdir.Dir caching pattern — trimmed here to the
// single-variable-then-fallback chain the spec actually calls for, since
// zmx sessions are not project-scoped the way the teacher's agent roles
// are.
package zmxpath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const defaultGroup = "default"

var (
	socketRootOnce sync.Once
	socketRoot     string

	logRootOnce sync.Once
	logRoot     string
)

// SocketRoot returns $ZMX_DIR, else $XDG_STATE_HOME/zmx, else
// $HOME/.local/state/zmx.
func SocketRoot() string {
	socketRootOnce.Do(func() {
		socketRoot = resolve("ZMX_DIR", "XDG_STATE_HOME", ".local/state/zmx")
	})
	return socketRoot
}

// LogRoot returns $ZMX_LOG_DIR, else $XDG_LOG_HOME/zmx, else
// $HOME/.local/logs/zmx.
func LogRoot() string {
	logRootOnce.Do(func() {
		logRoot = resolve("ZMX_LOG_DIR", "XDG_LOG_HOME", ".local/logs/zmx")
	})
	return logRoot
}

// Group returns $ZMX_GROUP, or "default" if unset or invalid. Group names
// must be non-empty and contain no "/" or "..".
func Group() string {
	g := os.Getenv("ZMX_GROUP")
	if g == "" || strings.Contains(g, "/") || strings.Contains(g, "..") {
		return defaultGroup
	}
	return g
}

// ResetCache clears the cached SocketRoot/LogRoot values. For tests only.
func ResetCache() {
	socketRootOnce = sync.Once{}
	socketRoot = ""
	logRootOnce = sync.Once{}
	logRoot = ""
}

func resolve(directVar, xdgVar, homeFallback string) string {
	if v := os.Getenv(directVar); v != "" {
		return v
	}
	if v := os.Getenv(xdgVar); v != "" {
		return filepath.Join(v, "zmx")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, homeFallback)
}

// SessionSocketPath returns the socket path for name in group.
func SessionSocketPath(group, name string) string {
	return filepath.Join(SocketRoot(), group, EncodeName(name))
}

// SessionLogPath returns the per-session log path for name in group.
func SessionLogPath(group, name string) string {
	return filepath.Join(LogRoot(), group, EncodeName(name)+".log")
}

// GlobalLogPath returns the daemon-wide fallback log file.
func GlobalLogPath() string {
	return filepath.Join(LogRoot(), "zmx.log")
}

// hexDigits are the uppercase digits EncodeName writes after each '%'.
const hexDigits = "0123456789ABCDEF"

// needsEncoding reports whether b is percent-encoded in a session name:
// the bytes that would be meaningful to the filesystem layer (/, \, NUL)
// plus the escape character itself (%).
func needsEncoding(b byte) bool {
	return b == '/' || b == '\\' || b == '%' || b == 0
}

// EncodeName percent-encodes the bytes /, \, %, and NUL in a session name;
// every other byte passes through unchanged.
func EncodeName(name string) string {
	var needed int
	for i := 0; i < len(name); i++ {
		if needsEncoding(name[i]) {
			needed++
		}
	}
	if needed == 0 {
		return name
	}
	out := make([]byte, 0, len(name)+needed*2)
	for i := 0; i < len(name); i++ {
		b := name[i]
		if needsEncoding(b) {
			out = append(out, '%', hexDigits[b>>4], hexDigits[b&0xf])
		} else {
			out = append(out, b)
		}
	}
	return string(out)
}

// DecodeName reverses EncodeName.
func DecodeName(encoded string) (string, error) {
	out := make([]byte, 0, len(encoded))
	for i := 0; i < len(encoded); i++ {
		if encoded[i] != '%' {
			out = append(out, encoded[i])
			continue
		}
		if i+2 >= len(encoded) {
			return "", fmt.Errorf("zmxpath: truncated escape in %q", encoded)
		}
		hi, ok1 := hexVal(encoded[i+1])
		lo, ok2 := hexVal(encoded[i+2])
		if !ok1 || !ok2 {
			return "", fmt.Errorf("zmxpath: invalid escape in %q", encoded)
		}
		out = append(out, hi<<4|lo)
		i += 2
	}
	return string(out), nil
}

func hexVal(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	default:
		return 0, false
	}
}

// EnsureRoots creates the socket and log root directories recursively.
func EnsureRoots(group string) error {
	if err := os.MkdirAll(filepath.Join(SocketRoot(), group), 0o700); err != nil {
		return err
	}
	return os.MkdirAll(filepath.Join(LogRoot(), group), 0o755)
}
