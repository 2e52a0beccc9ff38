// Package wire implements zmx's length-prefixed binary frame protocol: one
// tag byte, a 4-byte little-endian length, and that many payload bytes.
// The codec is stateless and does no I/O; internal/sockbuf drives it against
// a real connection.
package wire

import (
	"encoding/binary"
	"fmt"

	"zmx/internal/zmxerr"
)

// Tag identifies the kind of a frame.
type Tag byte

const (
	Input Tag = iota
	Output
	Init
	Resize
	Detach
	DetachAll
	Kill
	Info
	History
	Run
	Ack
)

func (t Tag) String() string {
	switch t {
	case Input:
		return "Input"
	case Output:
		return "Output"
	case Init:
		return "Init"
	case Resize:
		return "Resize"
	case Detach:
		return "Detach"
	case DetachAll:
		return "DetachAll"
	case Kill:
		return "Kill"
	case Info:
		return "Info"
	case History:
		return "History"
	case Run:
		return "Run"
	case Ack:
		return "Ack"
	default:
		return fmt.Sprintf("Tag(%d)", byte(t))
	}
}

func validTag(t Tag) bool {
	return t <= Ack
}

// HeaderSize is the fixed tag+length prefix of every frame on the wire.
const HeaderSize = 1 + 4

// MaxFrameSize bounds the payload length the codec will accept, so a
// malformed or hostile peer can't force unbounded memory growth.
const MaxFrameSize = 16 << 20

// MaxCmd and MaxCwd bound the fixed-size fields of an Info payload.
const (
	MaxCmd = 4096
	MaxCwd = 4096
)

// InfoSize is the length of an Info response payload.
const InfoSize = 8 + 4 + 2 + 2 + MaxCmd + MaxCwd

// WindowSize is the Init/Resize payload: {cols: u16, rows: u16}, little-endian.
type WindowSize struct {
	Cols uint16
	Rows uint16
}

// EncodeWindowSize renders a WindowSize as the 4-byte Init/Resize payload.
func EncodeWindowSize(ws WindowSize) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint16(b[0:2], ws.Cols)
	binary.LittleEndian.PutUint16(b[2:4], ws.Rows)
	return b
}

// DecodeWindowSize parses a 4-byte Init/Resize payload.
func DecodeWindowSize(p []byte) (WindowSize, error) {
	if len(p) != 4 {
		return WindowSize{}, fmt.Errorf("%w: window size payload is %d bytes, want 4", zmxerr.ErrMalformed, len(p))
	}
	return WindowSize{
		Cols: binary.LittleEndian.Uint16(p[0:2]),
		Rows: binary.LittleEndian.Uint16(p[2:4]),
	}, nil
}

// InfoPayload is the fixed-size Info response: {clients_len: u64, pid: i32,
// cmd_len: u16, cwd_len: u16, cmd: [MaxCmd]u8, cwd: [MaxCwd]u8}.
type InfoPayload struct {
	ClientsLen uint64
	PID        int32
	Cmd        string
	Cwd        string
}

// EncodeInfo renders an InfoPayload as its fixed-size wire form. Cmd/Cwd
// longer than MaxCmd/MaxCwd are truncated.
func EncodeInfo(p InfoPayload) []byte {
	cmd := []byte(p.Cmd)
	if len(cmd) > MaxCmd {
		cmd = cmd[:MaxCmd]
	}
	cwd := []byte(p.Cwd)
	if len(cwd) > MaxCwd {
		cwd = cwd[:MaxCwd]
	}

	b := make([]byte, InfoSize)
	binary.LittleEndian.PutUint64(b[0:8], p.ClientsLen)
	binary.LittleEndian.PutUint32(b[8:12], uint32(p.PID))
	binary.LittleEndian.PutUint16(b[12:14], uint16(len(cmd)))
	binary.LittleEndian.PutUint16(b[14:16], uint16(len(cwd)))
	copy(b[16:16+MaxCmd], cmd)
	copy(b[16+MaxCmd:16+MaxCmd+MaxCwd], cwd)
	return b
}

// DecodeInfo parses a fixed-size Info response payload.
func DecodeInfo(p []byte) (InfoPayload, error) {
	if len(p) != InfoSize {
		return InfoPayload{}, fmt.Errorf("%w: info payload is %d bytes, want %d", zmxerr.ErrMalformed, len(p), InfoSize)
	}
	clientsLen := binary.LittleEndian.Uint64(p[0:8])
	pid := int32(binary.LittleEndian.Uint32(p[8:12]))
	cmdLen := binary.LittleEndian.Uint16(p[12:14])
	cwdLen := binary.LittleEndian.Uint16(p[14:16])
	if int(cmdLen) > MaxCmd || int(cwdLen) > MaxCwd {
		return InfoPayload{}, fmt.Errorf("%w: info field length out of range", zmxerr.ErrMalformed)
	}
	cmd := string(p[16 : 16+cmdLen])
	cwd := string(p[16+MaxCmd : 16+MaxCmd+cwdLen])
	return InfoPayload{ClientsLen: clientsLen, PID: pid, Cmd: cmd, Cwd: cwd}, nil
}

// HistoryFormat selects the serialization requested by a History frame.
type HistoryFormat byte

const (
	HistoryPlain HistoryFormat = iota
	HistoryVT
	HistoryHTML
)

// Frame is one decoded wire unit. Payload is a borrowed view into whatever
// buffer Next was called against; callers that need to retain it must copy.
type Frame struct {
	Tag     Tag
	Payload []byte
}

// Encode renders tag and payload as a complete frame ready to write to a
// connection.
func Encode(tag Tag, payload []byte) []byte {
	b := make([]byte, HeaderSize+len(payload))
	b[0] = byte(tag)
	binary.LittleEndian.PutUint32(b[1:5], uint32(len(payload)))
	copy(b[5:], payload)
	return b
}

// Next pulls one complete frame from the head of buf. It never copies the
// payload: Frame.Payload aliases buf. It returns (frame, n, nil) where n is
// the number of bytes consumed from buf, or (Frame{}, 0, zmxerr.ErrIoTransient)
// when buf holds an incomplete frame ("need more"), or (Frame{}, 0,
// zmxerr.ErrMalformed) when the header declares an invalid tag or an
// oversized length.
func Next(buf []byte) (Frame, int, error) {
	if len(buf) < HeaderSize {
		return Frame{}, 0, zmxerr.ErrIoTransient
	}
	tag := Tag(buf[0])
	if !validTag(tag) {
		return Frame{}, 0, fmt.Errorf("%w: tag %d out of range", zmxerr.ErrMalformed, buf[0])
	}
	length := binary.LittleEndian.Uint32(buf[1:5])
	if length > MaxFrameSize {
		return Frame{}, 0, fmt.Errorf("%w: frame length %d exceeds max %d", zmxerr.ErrMalformed, length, MaxFrameSize)
	}
	total := HeaderSize + int(length)
	if len(buf) < total {
		return Frame{}, 0, zmxerr.ErrIoTransient
	}
	return Frame{Tag: tag, Payload: buf[HeaderSize:total]}, total, nil
}
