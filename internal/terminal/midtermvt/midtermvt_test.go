package midtermvt

import (
	"strings"
	"testing"

	"zmx/internal/terminal"
)

func TestFeedAndSerializePlain(t *testing.T) {
	term := New(80, 24, 1000)
	term.Feed([]byte("hello world\r\n"))
	out, ok := term.Serialize(terminal.FormatPlain)
	if !ok {
		t.Fatal("expected serialized content")
	}
	if !strings.Contains(string(out), "hello world") {
		t.Fatalf("serialized output = %q, want it to contain %q", out, "hello world")
	}
}

func TestSerializeVTStartsWithHomeAndClear(t *testing.T) {
	term := New(80, 24, 1000)
	term.Feed([]byte("hi"))
	out, ok := term.Serialize(terminal.FormatVT)
	if !ok {
		t.Fatal("expected serialized content")
	}
	if !strings.HasPrefix(string(out), "\x1b[2J\x1b[H") {
		t.Fatalf("serialized VT should start with home+clear, got %q", out[:10])
	}
}

func TestEmptyScreenSerializesToNothing(t *testing.T) {
	term := New(80, 24, 1000)
	if _, ok := term.Serialize(terminal.FormatPlain); ok {
		t.Fatal("expected no output for an empty screen")
	}
}

func TestCursorVisibilityTracksDECTCEM(t *testing.T) {
	term := New(80, 24, 1000)
	if _, _, visible := term.Cursor(); !visible {
		t.Fatal("cursor should start visible")
	}
	term.Feed([]byte("\x1b[?25l"))
	if _, _, visible := term.Cursor(); visible {
		t.Fatal("cursor should be hidden after DECTCEM hide")
	}
	term.Feed([]byte("\x1b[?25h"))
	if _, _, visible := term.Cursor(); !visible {
		t.Fatal("cursor should be visible again after DECTCEM show")
	}
}

func TestSerializeStateIncludesCursorEscape(t *testing.T) {
	term := New(80, 24, 1000)
	term.Feed([]byte("x"))
	state := term.SerializeState()
	if !strings.Contains(string(state), "H") {
		t.Fatalf("expected a cursor-position escape in state snapshot, got %q", state)
	}
}

func TestHistoryAfterScrollingPastLiveScreen(t *testing.T) {
	term := New(10, 3, 1000)
	for i := 0; i < 20; i++ {
		term.Feed([]byte("line\r\n"))
	}
	hist, ok := term.SerializeHistory(terminal.FormatPlain)
	if !ok {
		t.Fatal("expected history output")
	}
	if !strings.Contains(string(hist), "line") {
		t.Fatalf("history output = %q, want it to contain %q", hist, "line")
	}
}
