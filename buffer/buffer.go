// Package buffer provides a fixed-capacity byte window with independent read
// and write cursors.
//
// Unread data always lives in data[start:end]. Reads advance start, writes
// advance end, and once both cursors meet they snap back to zero. A write
// that would run past the end of the backing array first slides the unread
// bytes down to offset zero, so writers always get the full remaining
// capacity no matter how much has been read before.
//
// Every method holds the buffer's mutex for its own duration only. Callers
// that need several calls to appear atomic (peek then read, for example)
// must serialize those calls themselves.
package buffer

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

var (
	ErrFull          = errors.New("buffer: no space left")
	ErrInvalidLength = errors.New("buffer: invalid capacity")
)

type Buffer struct {
	mu    sync.Mutex
	data  []byte
	start int
	end   int
}

// New allocates a buffer holding at most capacity bytes.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		panic(ErrInvalidLength)
	}

	return &Buffer{
		data: make([]byte, capacity),
	}
}

func (b *Buffer) Cap() int {
	return len(b.data)
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.end - b.start
}

// Space returns how many bytes can still be written, counting the room that a
// defragmentation would reclaim.
func (b *Buffer) Space() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.data) - (b.end - b.start)
}

// Write appends as much of p as fits. A short write reports ErrFull.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(p) == 0 {
		return 0, nil
	}

	free := len(b.data) - (b.end - b.start)
	if free == 0 {
		return 0, ErrFull
	}

	if b.end+len(p) > len(b.data) {
		b.defragment()
	}

	n := copy(b.data[b.end:], p)
	b.end += n

	if n < len(p) {
		return n, ErrFull
	}
	return n, nil
}

func (b *Buffer) WriteByte(c byte) error {
	_, err := b.Write([]byte{c})
	return err
}

// WriteString is Write for strings.
func (b *Buffer) WriteString(s string) (int, error) {
	return b.Write([]byte(s))
}

// Read consumes up to len(p) bytes. It returns io.EOF when the buffer is empty.
func (b *Buffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.start == b.end {
		b.reset()
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}

	n := copy(p, b.data[b.start:b.end])
	b.start += n
	b.normalize()

	return n, nil
}

func (b *Buffer) ReadByte() (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.start == b.end {
		b.reset()
		return 0, io.EOF
	}

	c := b.data[b.start]
	b.start++
	b.normalize()

	return c, nil
}

// PeekAt copies unread bytes starting offset bytes past the read cursor into p
// without consuming them.
func (b *Buffer) PeekAt(p []byte, offset int) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if offset < 0 || b.start+offset >= b.end {
		return 0
	}

	return copy(p, b.data[b.start+offset:b.end])
}

// PeekByte returns the unread byte at offset without consuming it.
func (b *Buffer) PeekByte(offset int) (byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if offset < 0 || b.start+offset >= b.end {
		return 0, false
	}

	return b.data[b.start+offset], true
}

// Bytes returns a copy of the unread data.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, b.end-b.start)
	copy(out, b.data[b.start:b.end])
	return out
}

func (b *Buffer) Contains(needle []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return bytes.Contains(b.data[b.start:b.end], needle)
}

// TrimLeft discards n unread bytes from the front, clamped to Len.
func (b *Buffer) TrimLeft(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 {
		return
	}

	b.start += min(n, b.end-b.start)
	b.normalize()
}

// TrimRight discards n unread bytes from the back, clamped to Len.
func (b *Buffer) TrimRight(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 {
		return
	}

	b.end -= min(n, b.end-b.start)
	b.normalize()
}

// Defragment slides unread data down to offset zero.
func (b *Buffer) Defragment() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.defragment()
}

// Clear zeroes the backing storage and empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.data)
	b.reset()
}

// Fill performs a single read from r into the free space.
func (b *Buffer) Fill(r io.Reader) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.defragment()
	if b.end == len(b.data) {
		return 0, ErrFull
	}

	n, err := r.Read(b.data[b.end:])
	if n > 0 {
		b.end += n
	}
	return n, err
}

// WriteTo drains the unread data into w.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var total int64
	for b.start < b.end {
		n, err := w.Write(b.data[b.start:b.end])
		if n > 0 {
			b.start += n
			total += int64(n)
		}
		if err != nil {
			b.normalize()
			return total, err
		}
		if n == 0 {
			b.normalize()
			return total, io.ErrShortWrite
		}
	}
	b.reset()

	return total, nil
}

func (b *Buffer) defragment() {
	if b.start == 0 {
		return
	}

	n := copy(b.data, b.data[b.start:b.end])
	b.start = 0
	b.end = n
}

func (b *Buffer) normalize() {
	if b.start == b.end {
		b.reset()
	}
}

func (b *Buffer) reset() {
	b.start = 0
	b.end = 0
}
