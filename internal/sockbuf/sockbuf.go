// Package sockbuf provides a growable byte buffer with an incremental
// frame iterator, used on both the client and daemon side of every
// connection. It survives partial reads: a Fill that lands mid-header or
// mid-payload simply leaves Next returning false until the rest arrives.
package sockbuf

import (
	"errors"
	"io"

	"zmx/internal/wire"
	"zmx/internal/zmxerr"
)

// initialCapacity is the starting allocation; small enough that an idle
// connection doesn't waste memory, large enough to avoid reallocating on
// the first few frames of normal traffic.
const initialCapacity = 4096

// Buffer is a reusable read buffer with a consumed-cursor, generalizing the
// io.ReadFull-plus-cap discipline of a single frame read into a pull-style
// iterator over an arbitrary stream of frames.
type Buffer struct {
	buf     []byte
	start   int // consumed cursor
	end     int // length of valid data
	maxLen  int
	lastErr error
}

// New returns an empty Buffer that rejects any frame whose declared length
// would push the buffer past maxLen bytes of payload. Pass 0 to use
// wire.MaxFrameSize.
func New(maxLen int) *Buffer {
	if maxLen <= 0 {
		maxLen = wire.MaxFrameSize
	}
	return &Buffer{buf: make([]byte, initialCapacity), maxLen: maxLen}
}

// Fill performs one Read into the tail of the buffer, growing capacity if
// needed, and returns the number of bytes appended. It returns io.EOF (or
// any other Read error) unchanged.
func (b *Buffer) Fill(r io.Reader) (int, error) {
	b.compact()
	if b.end == len(b.buf) {
		b.grow()
	}
	n, err := r.Read(b.buf[b.end:])
	b.end += n
	return n, err
}

// Next pulls the next complete frame, if any. The returned frame's payload
// aliases Buffer's internal storage and is only valid until the next call
// to Fill or Next; callers that need to retain it must copy it. On a false
// return, callers must check Malformed before calling Fill again: a
// malformed frame never becomes parseable no matter how much more data
// arrives.
func (b *Buffer) Next() (wire.Frame, bool) {
	frame, n, err := wire.Next(b.buf[b.start:b.end])
	b.lastErr = err
	if err != nil {
		return wire.Frame{}, false
	}
	b.start += n
	return frame, true
}

// Malformed reports whether the most recent Next call rejected the head of
// the buffer outright (bad tag, or a declared length past wire.MaxFrameSize)
// rather than merely finding an incomplete frame. Callers must close the
// connection in this case instead of calling Fill again.
func (b *Buffer) Malformed() bool {
	return errors.Is(b.lastErr, zmxerr.ErrMalformed)
}

// Overflowed reports whether the unconsumed region has grown to fill the
// buffer's hard cap without yielding a complete frame — Fill can no longer
// make progress, since grow refuses to exceed that same cap. Callers should
// treat this as zmxerr.ErrMalformed and close the connection.
func (b *Buffer) Overflowed() bool {
	return b.end-b.start >= wire.HeaderSize+b.maxLen
}

// compact shifts unconsumed bytes to the front when the consumed prefix is
// large relative to the buffer, so Buffer doesn't grow forever on a
// long-lived connection that happens to read in small chunks.
func (b *Buffer) compact() {
	if b.start == 0 {
		return
	}
	unconsumed := b.end - b.start
	if b.start < unconsumed && b.start < len(b.buf)/2 {
		return
	}
	copy(b.buf, b.buf[b.start:b.end])
	b.end = unconsumed
	b.start = 0
}

// grow doubles capacity, up to maxLen plus header room.
func (b *Buffer) grow() {
	newCap := len(b.buf) * 2
	limit := wire.HeaderSize + b.maxLen
	if newCap > limit {
		newCap = limit
	}
	if newCap <= len(b.buf) {
		// Already at the cap; let the next Fill read 0 bytes into a full
		// buffer, which Overflowed will catch.
		return
	}
	grown := make([]byte, newCap)
	copy(grown, b.buf[:b.end])
	b.buf = grown
}
