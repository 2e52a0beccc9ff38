// Package vt10x implements internal/terminal.Terminal on top of
// github.com/hinshun/vt10x, the thinner alternative VT backend sourced from
// the elleryfamilia-thicc example. Unlike midtermvt it keeps no second
// append-only instance: vt10x.Terminal has no append-only mode, so
// SerializeHistory falls back to the live screen, matching the spec's
// allowance that only one backend need support every capability.
package vt10x

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/hinshun/vt10x"

	"zmx/internal/terminal"
)

func init() {
	terminal.Register(terminal.BackendVT10X, New)
}

// Terminal wraps a vt10x.Terminal. maxScrollback is accepted for interface
// parity; vt10x.Terminal manages its own internal scrollback and exposes no
// cap to configure.
type Terminal struct {
	vt vt10x.Terminal
}

func New(cols, rows, maxScrollback int) terminal.Terminal {
	return &Terminal{vt: vt10x.New(vt10x.WithSize(cols, rows))}
}

func (t *Terminal) Resize(cols, rows int) {
	t.vt.Resize(cols, rows)
}

func (t *Terminal) Feed(p []byte) {
	t.vt.Write(p)
}

func (t *Terminal) Cursor() (col, row int, visible bool) {
	c := t.vt.Cursor()
	return c.X, c.Y, t.vt.CursorVisible()
}

func (t *Terminal) Serialize(f terminal.Format) ([]byte, bool) {
	switch f {
	case terminal.FormatPlain:
		return t.serializePlain()
	case terminal.FormatVT:
		return t.serializeVT()
	case terminal.FormatHTML:
		// Not supported by this backend, per the spec's "the other MAY
		// return None for html" allowance.
		return nil, false
	default:
		return nil, false
	}
}

// SerializeHistory falls back to the live screen: vt10x.Terminal keeps no
// separate append-only scrollback instance the way midterm does.
func (t *Terminal) SerializeHistory(f terminal.Format) ([]byte, bool) {
	return t.Serialize(f)
}

func (t *Terminal) SerializeState() []byte {
	body, ok := t.serializeVT()
	if !ok {
		body = []byte("\x1b[2J\x1b[H")
	}
	col, row, visible := t.Cursor()
	var buf bytes.Buffer
	buf.Write(body)
	fmt.Fprintf(&buf, "\x1b[%d;%dH", row+1, col+1)
	if visible {
		buf.WriteString("\x1b[?25h")
	} else {
		buf.WriteString("\x1b[?25l")
	}
	return buf.Bytes()
}

const (
	modeBold      = 1 << 0
	modeUnderline = 1 << 1
	modeReverse   = 1 << 2
	modeBlink     = 1 << 3
	modeDim       = 1 << 4
)

func (t *Terminal) serializeVT() ([]byte, bool) {
	cols, rows := t.vt.Size()
	if cols == 0 || rows == 0 {
		return nil, false
	}
	var buf bytes.Buffer
	buf.WriteString("\x1b[2J\x1b[H")
	any := false
	for y := 0; y < rows; y++ {
		fmt.Fprintf(&buf, "\x1b[%d;1H\x1b[2K", y+1)
		var lastSGR string
		for x := 0; x < cols; x++ {
			g := t.vt.Cell(x, y)
			if g.Char == 0 {
				continue
			}
			any = true
			sgr := glyphSGR(g)
			if sgr != lastSGR {
				buf.WriteString("\x1b[0m")
				buf.WriteString(sgr)
				lastSGR = sgr
			}
			buf.WriteRune(g.Char)
		}
		buf.WriteString("\x1b[0m")
	}
	if !any {
		return nil, false
	}
	return buf.Bytes(), true
}

func glyphSGR(g vt10x.Glyph) string {
	var codes []string
	if g.Mode&modeBold != 0 {
		codes = append(codes, "1")
	}
	if g.Mode&modeDim != 0 {
		codes = append(codes, "2")
	}
	if g.Mode&modeUnderline != 0 {
		codes = append(codes, "4")
	}
	if g.Mode&modeBlink != 0 {
		codes = append(codes, "5")
	}
	if g.Mode&modeReverse != 0 {
		codes = append(codes, "7")
	}
	if g.FG != vt10x.DefaultFG {
		codes = append(codes, colorCode(g.FG, false))
	}
	if g.BG != vt10x.DefaultBG {
		codes = append(codes, colorCode(g.BG, true))
	}
	if len(codes) == 0 {
		return ""
	}
	return "\x1b[" + strings.Join(codes, ";") + "m"
}

func colorCode(c vt10x.Color, background bool) string {
	base := 30
	if background {
		base = 40
	}
	if c > 255 {
		r := (c >> 16) & 0xFF
		g := (c >> 8) & 0xFF
		b := c & 0xFF
		prefix := 38
		if background {
			prefix = 48
		}
		return fmt.Sprintf("%d;2;%d;%d;%d", prefix, r, g, b)
	}
	if c < 8 {
		return fmt.Sprintf("%d", base+int(c))
	}
	if c < 16 {
		return fmt.Sprintf("%d", base+60+int(c)-8)
	}
	prefix := 38
	if background {
		prefix = 48
	}
	return fmt.Sprintf("%d;5;%d", prefix, int(c))
}

func (t *Terminal) serializePlain() ([]byte, bool) {
	cols, rows := t.vt.Size()
	if cols == 0 || rows == 0 {
		return nil, false
	}
	var lines []string
	for y := 0; y < rows; y++ {
		var sb strings.Builder
		for x := 0; x < cols; x++ {
			g := t.vt.Cell(x, y)
			if g.Char == 0 {
				sb.WriteByte(' ')
				continue
			}
			sb.WriteRune(g.Char)
		}
		lines = append(lines, strings.TrimRight(sb.String(), " "))
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil, false
	}
	return []byte(strings.Join(lines, "\n")), true
}
