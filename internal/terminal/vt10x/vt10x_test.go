package vt10x

import (
	"strings"
	"testing"

	"zmx/internal/terminal"
)

func TestFeedAndSerializePlain(t *testing.T) {
	term := New(80, 24, 1000)
	term.Feed([]byte("hello world"))
	out, ok := term.Serialize(terminal.FormatPlain)
	if !ok {
		t.Fatal("expected serialized content")
	}
	if !strings.Contains(string(out), "hello world") {
		t.Fatalf("serialized output = %q, want it to contain %q", out, "hello world")
	}
}

func TestHTMLUnsupported(t *testing.T) {
	term := New(80, 24, 1000)
	term.Feed([]byte("hi"))
	if _, ok := term.Serialize(terminal.FormatHTML); ok {
		t.Fatal("vt10x backend should not support html serialization")
	}
}

func TestHistoryFallsBackToLiveScreen(t *testing.T) {
	term := New(80, 24, 1000)
	term.Feed([]byte("hi"))
	live, _ := term.Serialize(terminal.FormatPlain)
	hist, _ := term.SerializeHistory(terminal.FormatPlain)
	if string(live) != string(hist) {
		t.Fatalf("history = %q, want it to equal the live screen %q", hist, live)
	}
}
