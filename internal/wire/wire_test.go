package wire

import (
	"bytes"
	"errors"
	"testing"

	"zmx/internal/zmxerr"
)

func TestEncodeNextRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		tag     Tag
		payload []byte
	}{
		{"empty", Detach, nil},
		{"small", Input, []byte("hello")},
		{"binary", Output, []byte{0, 1, 2, 255, 254, 0, 0}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			encoded := Encode(c.tag, c.payload)
			frame, n, err := Next(encoded)
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			if n != len(encoded) {
				t.Fatalf("consumed %d, want %d", n, len(encoded))
			}
			if frame.Tag != c.tag {
				t.Fatalf("tag = %v, want %v", frame.Tag, c.tag)
			}
			if !bytes.Equal(frame.Payload, c.payload) {
				t.Fatalf("payload = %v, want %v", frame.Payload, c.payload)
			}
		})
	}
}

func TestNextNeedsMore(t *testing.T) {
	full := Encode(Input, []byte("hello world"))
	for i := 0; i < len(full); i++ {
		_, _, err := Next(full[:i])
		if !errors.Is(err, zmxerr.ErrIoTransient) {
			t.Fatalf("Next(buf[:%d]) = %v, want ErrIoTransient", i, err)
		}
	}
	_, n, err := Next(full)
	if err != nil || n != len(full) {
		t.Fatalf("Next(full) = (%d, %v), want (%d, nil)", n, err, len(full))
	}
}

func TestNextRejectsBadTag(t *testing.T) {
	buf := Encode(Ack, nil)
	buf[0] = 200
	_, _, err := Next(buf)
	if !errors.Is(err, zmxerr.ErrMalformed) {
		t.Fatalf("Next with bad tag = %v, want ErrMalformed", err)
	}
}

func TestNextRejectsOversizedLength(t *testing.T) {
	buf := Encode(Input, nil)
	buf[1] = 0xff
	buf[2] = 0xff
	buf[3] = 0xff
	buf[4] = 0xff
	_, _, err := Next(buf)
	if !errors.Is(err, zmxerr.ErrMalformed) {
		t.Fatalf("Next with oversized length = %v, want ErrMalformed", err)
	}
}

func TestNextConsumesOnlyOneFrame(t *testing.T) {
	buf := append(Encode(Input, []byte("a")), Encode(Input, []byte("bb"))...)
	frame, n, err := Next(buf)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(frame.Payload) != "a" {
		t.Fatalf("payload = %q, want %q", frame.Payload, "a")
	}
	frame2, n2, err := Next(buf[n:])
	if err != nil {
		t.Fatalf("Next second frame: %v", err)
	}
	if string(frame2.Payload) != "bb" {
		t.Fatalf("payload = %q, want %q", frame2.Payload, "bb")
	}
	if n+n2 != len(buf) {
		t.Fatalf("consumed %d+%d, want %d", n, n2, len(buf))
	}
}

func TestWindowSizeRoundTrip(t *testing.T) {
	ws := WindowSize{Cols: 120, Rows: 40}
	got, err := DecodeWindowSize(EncodeWindowSize(ws))
	if err != nil {
		t.Fatalf("DecodeWindowSize: %v", err)
	}
	if got != ws {
		t.Fatalf("got %+v, want %+v", got, ws)
	}
}

func TestInfoRoundTrip(t *testing.T) {
	p := InfoPayload{ClientsLen: 3, PID: 4242, Cmd: "bash -l", Cwd: "/home/zmx"}
	got, err := DecodeInfo(EncodeInfo(p))
	if err != nil {
		t.Fatalf("DecodeInfo: %v", err)
	}
	if got != p {
		t.Fatalf("got %+v, want %+v", got, p)
	}
}

func TestInfoTruncatesOversizedFields(t *testing.T) {
	long := bytes.Repeat([]byte("x"), MaxCmd+10)
	p := InfoPayload{Cmd: string(long)}
	got, err := DecodeInfo(EncodeInfo(p))
	if err != nil {
		t.Fatalf("DecodeInfo: %v", err)
	}
	if len(got.Cmd) != MaxCmd {
		t.Fatalf("len(Cmd) = %d, want %d", len(got.Cmd), MaxCmd)
	}
}
