// Package midtermvt implements internal/terminal.Terminal on top of
// github.com/vito/midterm, the teacher's own VT emulation library. It keeps
// two live *midterm.Terminal instances exactly as the teacher's
// internal/virtualterminal.VT does: Vt for the current screen and an
// append-only Scrollback that never loses lines, so history queries can
// reach further back than the live screen holds. Re-attach snapshots
// (Serialize, SerializeState) render the live screen only.
package midtermvt

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/vito/midterm"

	"zmx/internal/terminal"
)

func init() {
	terminal.Register(terminal.BackendMidterm, New)
}

// Terminal wraps a live screen and an append-only scrollback, both fed
// identically. DECTCEM cursor-visibility escapes are scanned out of fed
// bytes directly, because midterm's Terminal does not expose a visibility
// query the way the teacher's wrapper never needed one (it always hides
// the cursor while redrawing and shows it again afterward).
type Terminal struct {
	vt         *midterm.Terminal
	scrollback *midterm.Terminal
	cols, rows int
	visible    bool
}

// New constructs a midtermvt.Terminal. maxScrollback is accepted for
// interface parity with the spec's configured cap; midterm's own Terminal
// does not expose a scrollback line cap, so the append-only instance grows
// unbounded within the process the same way the teacher's does.
func New(cols, rows, maxScrollback int) terminal.Terminal {
	t := &Terminal{cols: cols, rows: rows, visible: true}
	t.vt = midterm.NewTerminal(rows, cols)
	t.scrollback = midterm.NewTerminal(rows, cols)
	t.scrollback.AutoResizeY = true
	t.scrollback.AppendOnly = true
	return t
}

func (t *Terminal) Resize(cols, rows int) {
	t.cols, t.rows = cols, rows
	t.vt.Resize(rows, cols)
	t.scrollback.Resize(rows, cols)
}

func (t *Terminal) Feed(p []byte) {
	t.vt.Write(p)
	t.scrollback.Write(p)
	t.scanCursorVisibility(p)
}

func (t *Terminal) scanCursorVisibility(p []byte) {
	const hide = "\x1b[?25l"
	const show = "\x1b[?25h"
	for {
		hideIdx := bytes.Index(p, []byte(hide))
		showIdx := bytes.Index(p, []byte(show))
		switch {
		case hideIdx < 0 && showIdx < 0:
			return
		case hideIdx < 0:
			t.visible = true
			p = p[showIdx+len(show):]
		case showIdx < 0:
			t.visible = false
			p = p[hideIdx+len(hide):]
		case hideIdx < showIdx:
			t.visible = false
			p = p[hideIdx+len(hide):]
		default:
			t.visible = true
			p = p[showIdx+len(show):]
		}
	}
}

func (t *Terminal) Cursor() (col, row int, visible bool) {
	return t.vt.Cursor.X, t.vt.Cursor.Y, t.visible
}

func (t *Terminal) Serialize(f terminal.Format) ([]byte, bool) {
	return serializeOf(t.vt, t.rows, f)
}

// SerializeHistory renders the append-only scrollback terminal rather than
// the live screen, so a History query can reach lines the live screen has
// already scrolled past.
func (t *Terminal) SerializeHistory(f terminal.Format) ([]byte, bool) {
	return serializeOf(t.scrollback, len(t.scrollback.Content), f)
}

func (t *Terminal) SerializeState() []byte {
	body, ok := t.Serialize(terminal.FormatVT)
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

func serializeOf(vt *midterm.Terminal, maxRows int, f terminal.Format) ([]byte, bool) {
	switch f {
	case terminal.FormatPlain:
		return serializePlain(vt)
	case terminal.FormatVT:
		return serializeVT(vt, maxRows)
	case terminal.FormatHTML:
		return serializeHTML(vt, maxRows)
	default:
		return nil, false
	}
}

// serializeVT renders the screen with the bleed-prevention technique from
// the teacher's renderLine: an SGR reset at every attribute-region
// boundary, so a client that starts mid-stream never inherits a stale
// color.
func serializeVT(vt *midterm.Terminal, maxRows int) ([]byte, bool) {
	if len(vt.Content) == 0 {
		return nil, false
	}
	var buf bytes.Buffer
	buf.WriteString("\x1b[2J\x1b[H")
	any := false
	for row := 0; row < maxRows && row < len(vt.Content); row++ {
		fmt.Fprintf(&buf, "\x1b[%d;1H\x1b[2K", row+1)
		if renderLine(&buf, vt, row) {
			any = true
		}
	}
	if !any {
		return nil, false
	}
	return buf.Bytes(), true
}

func renderLine(buf *bytes.Buffer, vt *midterm.Terminal, row int) bool {
	if row >= len(vt.Content) {
		return false
	}
	line := vt.Content[row]
	wrote := false
	var pos int
	var lastFormat midterm.Format
	for region := range vt.Format.Regions(row) {
		f := region.F
		if f != lastFormat {
			buf.WriteString("\x1b[0m")
			buf.WriteString(f.Render())
			lastFormat = f
		}
		end := pos + region.Size
		if pos < len(line) {
			contentEnd := end
			if contentEnd > len(line) {
				contentEnd = len(line)
			}
			buf.WriteString(string(line[pos:contentEnd]))
			wrote = true
		}
		pos = end
	}
	buf.WriteString("\x1b[0m")
	return wrote
}

func serializePlain(vt *midterm.Terminal) ([]byte, bool) {
	if len(vt.Content) == 0 {
		return nil, false
	}
	var lines []string
	for _, row := range vt.Content {
		lines = append(lines, strings.TrimRight(string(row), " \x00"))
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil, false
	}
	return []byte(strings.Join(lines, "\n")), true
}

// serializeHTML hand-renders the screen as an HTML <pre> block, walking the
// same Content/Format.Regions data serializeVT does rather than relying on
// any HTML support midterm's own API may or may not expose — the only
// capability this package can ground in observed usage across the
// retrieval pack is Content plus Format.Regions.
func serializeHTML(vt *midterm.Terminal, maxRows int) ([]byte, bool) {
	if len(vt.Content) == 0 {
		return nil, false
	}
	var buf bytes.Buffer
	buf.WriteString("<pre>")
	wrote := false
	for row := 0; row < maxRows && row < len(vt.Content); row++ {
		line := vt.Content[row]
		var pos int
		for region := range vt.Format.Regions(row) {
			end := pos + region.Size
			segEnd := end
			if segEnd > len(line) {
				segEnd = len(line)
			}
			if pos < len(line) {
				seg := htmlEscape(string(line[pos:segEnd]))
				if seg != "" {
					wrote = true
				}
				buf.WriteString(seg)
			}
			pos = end
		}
		buf.WriteString("\n")
	}
	buf.WriteString("</pre>")
	if !wrote {
		return nil, false
	}
	return buf.Bytes(), true
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
