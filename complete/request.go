package complete

import (
	"errors"
	"strings"
)

// Mode selects what a completion request lists.
type Mode int

const (
	// ModeNames lists objects whose name starts with the prefix.
	ModeNames Mode = iota
	// ModeLibraries lists installed libraries.
	ModeLibraries
	// ModeArgs lists the arguments of a function, then names when the
	// prefix is not empty.
	ModeArgs
)

func (m Mode) String() string {
	switch m {
	case ModeNames:
		return "names"
	case ModeLibraries:
		return "libraries"
	case ModeArgs:
		return "args"
	}
	return "unknown"
}

// Control-channel separators.
const (
	idSep      = '\x03'
	libraryTag = '\x04'
	argsTag    = '\x05'
)

// Request is one completion query.
type Request struct {
	ID   string
	Base string
	Mode Mode
	Func string
	// Args is the argument list the runtime already computed; only
	// requests coming from the runtime carry one.
	Args     string
	HaveArgs bool
}

// ErrMalformed is returned for requests that cannot be split into their
// fields. The returned Request still carries the id when one was found.
var ErrMalformed = errors.New("malformed completion request")

// ParseCommand decodes the payload of a control-channel completion command:
// "id 0x03 prefix", "id 0x03 0x04 prefix" or "id 0x03 0x05 prefix 0x05 func".
func ParseCommand(s string) (Request, error) {
	id, rest, ok := strings.Cut(s, string(idSep))
	if !ok {
		return Request{ID: s}, ErrMalformed
	}
	req := Request{ID: id}
	switch {
	case strings.HasPrefix(rest, string(libraryTag)):
		req.Mode = ModeLibraries
		req.Base = rest[1:]
	case strings.HasPrefix(rest, string(argsTag)):
		base, fn, ok := strings.Cut(rest[1:], string(argsTag))
		if !ok {
			return req, ErrMalformed
		}
		req.Mode = ModeArgs
		req.Base = base
		req.Func = fn
	default:
		req.Base = rest
	}
	return req, nil
}

// ParseRuntime decodes a runtime completion request, "id;prefix;func;args".
// The args field ends at the next ';' or newline and may be absent. A func
// equal to the library marker asks for installed libraries.
func ParseRuntime(s string) (Request, error) {
	parts := strings.SplitN(s, ";", 3)
	if len(parts) < 3 {
		return Request{ID: parts[0]}, ErrMalformed
	}
	fn, args, _ := strings.Cut(parts[2], ";")
	if fn == string(libraryTag) {
		return Request{ID: parts[0], Base: parts[1], Mode: ModeLibraries}, nil
	}
	req := Request{ID: parts[0], Base: parts[1], Mode: ModeArgs, HaveArgs: true}
	if i := strings.IndexAny(args, ";\n"); i >= 0 {
		args = args[:i]
	}
	req.Func = fn
	req.Args = args
	return req, nil
}
