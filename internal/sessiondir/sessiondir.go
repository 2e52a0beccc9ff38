// Package sessiondir implements zmx's session-group namespace: filesystem
// paths, liveness probing, and discovery over a directory of Unix-domain
// sockets. It generalizes the teacher's internal/socketdir (flat
// {type}.{name}.sock naming, bare net.Dial liveness check) into the spec's
// {group}/{name} tree, adding the percent-encoding and full Info round-trip
// probe the teacher's single-process-family use case never needed.
package sessiondir

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"zmx/internal/sockbuf"
	"zmx/internal/wire"
	"zmx/internal/zmxerr"
	"zmx/internal/zmxpath"
)

// ProbeTimeout is the hard deadline for dialing and round-tripping an Info
// request against a candidate socket.
const ProbeTimeout = 1 * time.Second

// Info is the liveness and identity information returned by a successful
// probe.
type Info struct {
	Name    string
	Path    string
	Clients uint64
	PID     int32
	Cmd     string
	Cwd     string
}

// Path returns the socket path for name within group, without probing it.
func Path(group, name string) string {
	return zmxpath.SessionSocketPath(group, name)
}

// Probe dials the socket for name in group, sends an Info request, and
// parses the response. Any dial failure, timeout, or malformed reply
// unlinks the stale socket file. A dial or read failure is reported as
// zmxerr.ErrStaleSocket, a deadline expiry as zmxerr.ErrTimeout, and a
// malformed reply as zmxerr.ErrMalformed.
func Probe(group, name string) (Info, error) {
	path := Path(group, name)
	return ProbePath(name, path)
}

// ProbePath probes an already-resolved socket path, reporting results
// under the given display name.
func ProbePath(name, path string) (Info, error) {
	conn, err := net.DialTimeout("unix", path, ProbeTimeout)
	if err != nil {
		os.Remove(path)
		return Info{}, fmt.Errorf("%w: %s: %v", zmxerr.ErrStaleSocket, name, err)
	}
	defer conn.Close()

	info, err := RequestInfo(conn, ProbeTimeout)
	if err != nil {
		conn.Close()
		os.Remove(path)
		return Info{}, err
	}
	info.Name = name
	info.Path = path
	return info, nil
}

// RequestInfo sends an Info request over an already-connected conn and
// parses the response within deadline.
func RequestInfo(conn net.Conn, deadline time.Duration) (Info, error) {
	if err := conn.SetDeadline(time.Now().Add(deadline)); err != nil {
		return Info{}, fmt.Errorf("%w: set deadline: %v", zmxerr.ErrIoFatal, err)
	}
	defer conn.SetDeadline(time.Time{})

	if _, err := conn.Write(wire.Encode(wire.Info, nil)); err != nil {
		return Info{}, fmt.Errorf("%w: send info request: %v", zmxerr.ErrStaleSocket, err)
	}

	buf := sockbuf.New(wire.InfoSize + wire.HeaderSize)
	for {
		if frame, ok := buf.Next(); ok {
			if frame.Tag != wire.Info {
				return Info{}, fmt.Errorf("%w: expected Info reply, got %v", zmxerr.ErrMalformed, frame.Tag)
			}
			payload, err := wire.DecodeInfo(frame.Payload)
			if err != nil {
				return Info{}, err
			}
			return Info{Clients: payload.ClientsLen, PID: payload.PID, Cmd: payload.Cmd, Cwd: payload.Cwd}, nil
		}
		if buf.Malformed() || buf.Overflowed() {
			return Info{}, fmt.Errorf("%w: info reply", zmxerr.ErrMalformed)
		}
		if _, err := buf.Fill(conn); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return Info{}, fmt.Errorf("%w: info probe", zmxerr.ErrTimeout)
			}
			return Info{}, fmt.Errorf("%w: read info reply: %v", zmxerr.ErrStaleSocket, err)
		}
	}
}

// Entry is one discovered candidate session in a group directory.
type Entry struct {
	Name string
	Path string
}

// Discover lists every Unix-socket entry in group's directory, without
// probing them.
func Discover(group string) ([]Entry, error) {
	dir := filepath.Join(zmxpath.SocketRoot(), group)
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		fi, err := de.Info()
		if err != nil || fi.Mode().Type() != os.ModeSocket {
			continue
		}
		decoded, err := zmxpath.DecodeName(de.Name())
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Name: decoded, Path: filepath.Join(dir, de.Name())})
	}
	return entries, nil
}

// List discovers every candidate in group and probes each, opportunistically
// unlinking sockets that fail the probe. Only live sessions are returned.
func List(group string) ([]Info, error) {
	entries, err := Discover(group)
	if err != nil {
		return nil, err
	}
	var live []Info
	for _, e := range entries {
		info, err := ProbePath(e.Name, e.Path)
		if err != nil {
			continue
		}
		live = append(live, info)
	}
	return live, nil
}

// Find probes exactly the session named name in group, returning
// zmxerr.ErrNotFound if it isn't live.
func Find(group, name string) (Info, error) {
	info, err := Probe(group, name)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %s", zmxerr.ErrNotFound, name)
	}
	return info, nil
}

// NextForkName returns the smallest "{source}-{N}" (N < 1000) not already
// live in group, for a fork that wasn't given an explicit target name.
func NextForkName(group, source string) (string, error) {
	for n := 1; n < 1000; n++ {
		candidate := fmt.Sprintf("%s-%d", source, n)
		if _, err := Probe(group, candidate); err != nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no free fork name for %s", zmxerr.ErrAlreadyExists, source)
}
