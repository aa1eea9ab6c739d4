// Package textbuf is the append-only text buffer replies are assembled in.
//
// A Buffer never truncates. When an append would not fit, the backing array
// is replaced by one sized to the current length plus the request plus a
// fixed slack, so a run of small appends after a large one does not
// reallocate every time. Slices returned by Bytes before a growth keep
// pointing at the old array; always re-read through the Buffer.
package textbuf

// DefaultSlack is the headroom added on every growth.
const DefaultSlack = 1024

// Buffer accumulates text for one reply.
type Buffer struct {
	b     []byte
	slack int
	grows int
}

// New returns a Buffer with the given initial capacity and growth slack.
// A non-positive slack selects DefaultSlack.
func New(capacity, slack int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	if slack <= 0 {
		slack = DefaultSlack
	}
	return &Buffer{b: make([]byte, 0, capacity), slack: slack}
}

// Append appends every string in order and returns the buffer so calls can
// be chained.
func (b *Buffer) Append(parts ...string) *Buffer {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	b.reserve(n)
	for _, p := range parts {
		b.b = append(b.b, p...)
	}
	return b
}

// AppendByte appends a single byte.
func (b *Buffer) AppendByte(c byte) *Buffer {
	b.reserve(1)
	b.b = append(b.b, c)
	return b
}

// AppendBytes appends raw bytes.
func (b *Buffer) AppendBytes(p []byte) *Buffer {
	b.reserve(len(p))
	b.b = append(b.b, p...)
	return b
}

func (b *Buffer) reserve(n int) {
	if cap(b.b)-len(b.b) >= n {
		return
	}
	grown := make([]byte, len(b.b), len(b.b)+n+b.slack)
	copy(grown, b.b)
	b.b = grown
	b.grows++
}

// Len returns the number of bytes written.
func (b *Buffer) Len() int { return len(b.b) }

// Cap returns the current capacity.
func (b *Buffer) Cap() int { return cap(b.b) }

// Available returns how many bytes can be appended without growing.
func (b *Buffer) Available() int { return cap(b.b) - len(b.b) }

// Grows returns how many times the backing array has been replaced.
func (b *Buffer) Grows() int { return b.grows }

// Bytes returns the buffer contents. The slice is only valid until the next
// append.
func (b *Buffer) Bytes() []byte { return b.b }

// String returns a copy of the contents.
func (b *Buffer) String() string { return string(b.b) }

// Reset empties the buffer but keeps its capacity for the next reply.
func (b *Buffer) Reset() { b.b = b.b[:0] }
