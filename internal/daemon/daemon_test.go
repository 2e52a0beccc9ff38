package daemon

import (
	"net"
	"os"
	"testing"
	"time"

	"zmx/internal/terminal"
	_ "zmx/internal/terminal/midtermvt"
	"zmx/internal/wire"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	sess, err := newSession("g", "s", nil, "", 80, 24, terminal.BackendMidterm, 1000)
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	return sess
}

func pipeClient(t *testing.T) (*Client, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	return newClient(a), b
}

func TestAddRemoveClientUpdatesCounts(t *testing.T) {
	sess := newTestSession(t)
	c, conn := pipeClient(t)
	defer conn.Close()

	sess.addClient(c)
	if sess.clientCount() != 1 {
		t.Fatalf("clientCount after add = %d, want 1", sess.clientCount())
	}
	if sess.accepted != 1 {
		t.Fatalf("accepted = %d, want 1", sess.accepted)
	}

	sess.removeClient(c)
	if sess.clientCount() != 0 {
		t.Fatalf("clientCount after remove = %d, want 0", sess.clientCount())
	}
	if sess.removed != 1 {
		t.Fatalf("removed = %d, want 1", sess.removed)
	}
}

func TestDispatchDetachRemovesOnlyThatClient(t *testing.T) {
	sess := newTestSession(t)
	c1, conn1 := pipeClient(t)
	c2, conn2 := pipeClient(t)
	defer conn1.Close()
	defer conn2.Close()
	sess.addClient(c1)
	sess.addClient(c2)

	done := sess.dispatch(c1, wire.Frame{Tag: wire.Detach})
	if !done {
		t.Fatalf("dispatch(Detach) should report done")
	}
	if sess.clientCount() != 1 {
		t.Fatalf("clientCount after Detach = %d, want 1", sess.clientCount())
	}
}

func TestDispatchDetachAllRemovesEveryClient(t *testing.T) {
	sess := newTestSession(t)
	c1, conn1 := pipeClient(t)
	c2, conn2 := pipeClient(t)
	defer conn1.Close()
	defer conn2.Close()
	sess.addClient(c1)
	sess.addClient(c2)

	sess.dispatch(c1, wire.Frame{Tag: wire.DetachAll})
	if sess.clientCount() != 0 {
		t.Fatalf("clientCount after DetachAll = %d, want 0", sess.clientCount())
	}
}

func TestDispatchInitSkipsSnapshotOnFirstAttach(t *testing.T) {
	sess := newTestSession(t)
	c, conn := pipeClient(t)
	defer conn.Close()
	sess.addClient(c)

	sess.term.Feed([]byte("hello"))
	sess.hasPTYOutput = true

	sess.dispatch(c, wire.Frame{Tag: wire.Init, Payload: wire.EncodeWindowSize(wire.WindowSize{Cols: 80, Rows: 24})})

	c.outMu.Lock()
	gotOutput := len(c.out) > 0
	c.outMu.Unlock()
	if gotOutput {
		t.Fatalf("first Init should not enqueue a snapshot")
	}
	if !sess.hasHadClient {
		t.Fatalf("hasHadClient should be set after first Init")
	}
}

func TestDispatchInitSendsSnapshotOnReattach(t *testing.T) {
	sess := newTestSession(t)
	sess.hasPTYOutput = true
	sess.hasHadClient = true
	sess.term.Feed([]byte("hello"))

	c, conn := pipeClient(t)
	defer conn.Close()
	sess.addClient(c)

	sess.dispatch(c, wire.Frame{Tag: wire.Init, Payload: wire.EncodeWindowSize(wire.WindowSize{Cols: 80, Rows: 24})})

	c.outMu.Lock()
	gotOutput := len(c.out) > 0
	c.outMu.Unlock()
	if !gotOutput {
		t.Fatalf("re-attach Init should enqueue a snapshot")
	}
}

func TestDispatchInfoExcludesRequester(t *testing.T) {
	sess := newTestSession(t)
	requester, conn1 := pipeClient(t)
	other, conn2 := pipeClient(t)
	defer conn1.Close()
	defer conn2.Close()
	sess.addClient(requester)
	sess.addClient(other)

	sess.dispatch(requester, wire.Frame{Tag: wire.Info})

	requester.outMu.Lock()
	raw := append([]byte{}, requester.out...)
	requester.outMu.Unlock()

	frame, _, err := wire.Next(raw)
	if err != nil {
		t.Fatalf("wire.Next: %v", err)
	}
	if frame.Tag != wire.Info {
		t.Fatalf("tag = %v, want Info", frame.Tag)
	}
	payload, err := wire.DecodeInfo(frame.Payload)
	if err != nil {
		t.Fatalf("DecodeInfo: %v", err)
	}
	if payload.ClientsLen != 1 {
		t.Fatalf("ClientsLen = %d, want 1 (excluding the requester)", payload.ClientsLen)
	}
}

func TestTriggerShutdownIsIdempotent(t *testing.T) {
	sess := newTestSession(t)
	sess.triggerShutdown()
	select {
	case <-sess.done:
	default:
		t.Fatalf("done channel should be closed")
	}
	// Second call must not panic on a double close.
	sess.triggerShutdown()
}

func TestWritePTYSucceedsWithinTimeout(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer r.Close()
	sess := &Session{ptm: w}
	defer w.Close()

	n, err := sess.writePTY([]byte("hi"))
	if err != nil {
		t.Fatalf("writePTY: %v", err)
	}
	if n != 2 {
		t.Fatalf("writePTY n = %d, want 2", n)
	}
}

func TestClientWriterLoopDeliversEnqueuedData(t *testing.T) {
	c, conn := pipeClient(t)
	go c.writerLoop()
	defer c.close()

	c.enqueue([]byte("abc"))

	buf := make([]byte, 3)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "abc" {
		t.Fatalf("got %q, want %q", buf[:n], "abc")
	}
}
