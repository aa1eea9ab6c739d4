// Package dump parses the flat object dumps produced by the runtime.
//
// A dump is a sequence of newline-terminated records. Each record has seven
// fields, each followed by a separator byte:
//
//	name SEP kind SEP menu SEP origin SEP usage SEP title SEP description SEP \n
//
// Files on disk use 0x06 as the separator; 0x00 is accepted as well. The
// parser never interprets object values, only the kind tag, the name and the
// container size written at the start of a container's description.
package dump

import (
	"strconv"
	"strings"
)

// Wire bytes.
const (
	FieldSep   = '\x06'
	AltSep     = '\x00'
	NumFields  = 7
	QuoteEsc   = '\x13' // stands in for a literal single quote
	QuoteMark  = '\x12' // runtime's marker for a quote that must stay a quote
	HiddenMark = '.'
)

// NotCheckedUsage is the usage text of a global function whose arguments
// the runtime has not inspected yet.
const NotCheckedUsage = "['not_checked']"

// Kind is the first byte of a record's kind field.
type Kind byte

// Kind tags.
const (
	KindFunction    Kind = '\x03'
	KindNumeric     Kind = '{'
	KindCharacter   Kind = '~'
	KindFactor      Kind = '!'
	KindDataFrame   Kind = '$'
	KindList        Kind = '['
	KindLogical     Kind = '%'
	KindS4          Kind = '<'
	KindPromise     Kind = '&'
	KindEnvironment Kind = ':'
	KindUnknown     Kind = '*'
)

// IsContainer reports whether records of this kind may be followed by child
// records.
func (k Kind) IsContainer() bool {
	switch k {
	case KindList, KindDataFrame, KindS4, KindEnvironment:
		return true
	}
	return false
}

// MenuTag is the four-column type label shown in completion menus.
func (k Kind) MenuTag() string {
	switch k {
	case KindFunction:
		return "func"
	case KindNumeric:
		return "num "
	case KindCharacter:
		return "char"
	case KindFactor:
		return "fac "
	case KindDataFrame:
		return "data"
	case KindList:
		return "list"
	case KindLogical:
		return "log "
	case KindS4:
		return "S4  "
	case KindPromise:
		return "lazy"
	case KindEnvironment:
		return "env "
	case KindUnknown:
		return "?   "
	}
	return ""
}

// Glyph is the byte drawn before a name in the object browser.
func (k Kind) Glyph() byte {
	if k == KindFunction {
		return '('
	}
	return byte(k)
}

// Record is one parsed dump line. Text fields keep the quote escaping
// applied on load; use Unescape for user-visible text.
type Record struct {
	Name        string
	Type        string
	Menu        string
	Origin      string
	Usage       string
	Title       string
	Description string
}

// Kind returns the record's kind tag.
func (r Record) Kind() Kind {
	if r.Type == "" {
		return 0
	}
	return Kind(r.Type[0])
}

// Class is the value of the "cls" field sent to the editor.
func (r Record) Class() string {
	if r.Kind() == KindFunction {
		return "f"
	}
	return r.Type
}

// Hidden reports whether the object name starts with the hidden marker.
func (r Record) Hidden() bool {
	return strings.HasPrefix(r.Name, string(HiddenMark))
}

// NotChecked reports whether this is a function whose usage must be
// requested from the runtime.
func (r Record) NotChecked() bool {
	return r.Kind() == KindFunction && strings.HasPrefix(r.Usage, NotCheckedUsage)
}

// ChildCount returns the number of elements declared at the start of a
// container's description: from byte 3 on, and for data frames after the
// first space from there (the column count).
func (r Record) ChildCount() int {
	if len(r.Description) < 3 {
		return 0
	}
	s := r.Description[3:]
	if r.Kind() == KindDataFrame {
		i := strings.IndexByte(s, ' ')
		if i < 0 {
			return 0
		}
		s = s[i+1:]
	}
	s = strings.TrimLeft(s, " \t")
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// BrowserText is the text shown after the name in the object browser:
// functions show their title, everything else its description.
func (r Record) BrowserText() string {
	if r.Kind() == KindFunction {
		return r.Title
	}
	return r.Description
}

// Unescape turns the quote placeholder back into a single quote.
func Unescape(s string) string {
	if strings.IndexByte(s, QuoteEsc) < 0 {
		return s
	}
	return strings.ReplaceAll(s, string(QuoteEsc), "'")
}

// EscapeQuotes replaces literal single quotes with the placeholder so the
// text can be embedded in a single-quoted reply string.
func EscapeQuotes(s string) string {
	if strings.IndexByte(s, '\'') < 0 {
		return s
	}
	return strings.ReplaceAll(s, "'", string(QuoteEsc))
}

// Line formats fields as one dump line using the on-disk separator. Missing
// trailing fields are left empty.
func Line(fields ...string) string {
	var b strings.Builder
	for i := range NumFields {
		if i < len(fields) {
			b.WriteString(fields[i])
		}
		b.WriteByte(FieldSep)
	}
	b.WriteByte('\n')
	return b.String()
}
