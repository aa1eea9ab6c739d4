package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Framing constants.
const (
	Sentinel     = '\x11'
	LengthDigits = 9
)

// Frame is one decoded message.
type Frame struct {
	Body []byte
	// Declared is the length announced by the header, -1 when the length
	// field is not a number.
	Declared int
}

// Divergent reports whether the body length differs from the header.
func (f Frame) Divergent() bool { return len(f.Body) != f.Declared }

// Encode frames body for the runtime wire format. The link itself only
// decodes; Encode serves peers and tests.
func Encode(secret string, body []byte) []byte {
	out := make([]byte, 0, len(secret)+LengthDigits+len(body)+1)
	out = append(out, secret...)
	out = append(out, fmt.Sprintf("%0*d", LengthDigits, len(body))...)
	out = append(out, body...)
	return append(out, Sentinel)
}

// Reader decodes frames from a connection.
type Reader struct {
	r      *bufio.Reader
	secret string
	header []byte
}

// NewReader returns a frame reader over r.
func NewReader(r io.Reader, secret string) *Reader {
	return &Reader{
		r:      bufio.NewReaderSize(r, 64*1024),
		secret: secret,
		header: make([]byte, len(secret)+LengthDigits),
	}
}

// Next reads one frame. The body is read up to the sentinel whatever the
// header declares. A header without the secret yields ErrBadSecret after
// its body is skipped. Any read error, io.EOF included, means the
// connection is gone.
func (r *Reader) Next() (Frame, error) {
	if _, err := io.ReadFull(r.r, r.header); err != nil {
		return Frame{}, err
	}
	body, err := r.r.ReadBytes(Sentinel)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Frame{}, err
	}
	body = body[:len(body)-1]

	if !strings.HasPrefix(string(r.header), r.secret) {
		return Frame{}, fmt.Errorf("%w: %q", ErrBadSecret, r.header)
	}
	declared, err := strconv.Atoi(strings.TrimSpace(string(r.header[len(r.secret):])))
	if err != nil {
		declared = -1
	}
	return Frame{Body: body, Declared: declared}, nil
}
