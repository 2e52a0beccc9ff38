package sessiondir

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"zmx/internal/sockbuf"
	"zmx/internal/wire"
	"zmx/internal/zmxpath"
)

func TestProbeAgainstDeadSocketIsStale(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ZMX_DIR", dir)
	zmxpath.ResetCache()
	t.Cleanup(zmxpath.ResetCache)

	group := "default"
	os.MkdirAll(filepath.Join(dir, group), 0o700)
	path := Path(group, "dead")

	// Bind and immediately close: the socket file lingers but nothing
	// listens on it.
	l, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	l.Close()

	if _, err := Probe(group, "dead"); err == nil {
		t.Fatal("expected probe of a dead socket to fail")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected stale socket file to be unlinked")
	}
}

func TestProbeAgainstLiveInfoServer(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ZMX_DIR", dir)
	zmxpath.ResetCache()
	t.Cleanup(zmxpath.ResetCache)

	group := "default"
	os.MkdirAll(filepath.Join(dir, group), 0o700)
	path := Path(group, "live")

	l, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := sockbuf.New(0)
		for {
			frame, ok := buf.Next()
			if !ok {
				if _, err := buf.Fill(conn); err != nil {
					return
				}
				continue
			}
			if frame.Tag != wire.Info {
				return
			}
			reply := wire.EncodeInfo(wire.InfoPayload{ClientsLen: 2, PID: 1234, Cmd: "bash", Cwd: "/tmp"})
			conn.Write(wire.Encode(wire.Info, reply))
			return
		}
	}()

	info, err := Probe(group, "live")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if info.PID != 1234 || info.Clients != 2 || info.Cmd != "bash" || info.Cwd != "/tmp" {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestDiscoverIgnoresNonSockets(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ZMX_DIR", dir)
	zmxpath.ResetCache()
	t.Cleanup(zmxpath.ResetCache)

	group := "default"
	groupDir := filepath.Join(dir, group)
	os.MkdirAll(groupDir, 0o700)
	os.WriteFile(filepath.Join(groupDir, "not-a-socket"), []byte("x"), 0o600)

	l, err := net.Listen("unix", Path(group, "real"))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()

	entries, err := Discover(group)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "real" {
		t.Fatalf("entries = %+v, want exactly [real]", entries)
	}
}
