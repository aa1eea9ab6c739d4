// Package browser renders object dumps as the collapsible outline shown in
// the editor's object browser and keeps the expand state of its nodes.
package browser

import (
	"strings"

	"github.com/rnvim/rnvimserver/dump"
	"github.com/rnvim/rnvimserver/textbuf"
)

// Glyphs are the connectors drawn before the last child and before the
// other children of a node.
type Glyphs struct {
	Last string
	Tee  string
}

// GlyphsFor returns the box-drawing connectors on UTF-8 terminals and ASCII
// ones elsewhere.
func GlyphsFor(utf8 bool) Glyphs {
	if utf8 {
		return Glyphs{Last: "└─ ", Tee: "├─ "}
	}
	return Glyphs{Last: "`- ", Tee: "|- "}
}

// Options control what is drawn and which containers start expanded.
type Options struct {
	UTF8 bool
	// AllNames shows objects whose name starts with a dot.
	AllNames bool
	// OpenDF and OpenLS are the default states of data frames and of the
	// other containers.
	OpenDF bool
	OpenLS bool
}

// Renderer writes outline lines into a buffer. It tracks how many records
// of the current package remain, which decides the connector of top-level
// library objects.
type Renderer struct {
	state     *StateTree
	opts      Options
	glyphs    Glyphs
	out       *textbuf.Buffer
	recs      []dump.Record
	remaining int
}

// NewRenderer returns a renderer reading and updating state.
func NewRenderer(state *StateTree, opts Options) *Renderer {
	return &Renderer{
		state:  state,
		opts:   opts,
		glyphs: GlyphsFor(opts.UTF8),
		out:    textbuf.New(4096, 0),
	}
}

// State returns the expand state tree.
func (r *Renderer) State() *StateTree { return r.state }

// Glyphs returns the connectors in use.
func (r *Renderer) Glyphs() Glyphs { return r.glyphs }

// Remaining returns the remaining-object counter.
func (r *Renderer) Remaining() int { return r.remaining }

// SetRemaining seeds the remaining-object counter.
func (r *Renderer) SetRemaining(n int) { r.remaining = n }

// Output returns the buffer lines are written to.
func (r *Renderer) Output() *textbuf.Buffer { return r.out }

// Node renders recs[i] with prefix, then its children when it is an
// expanded container, and returns the index of the first record it did not
// consume. Descendants skipped under a collapsed container count against
// the remaining-object counter; the record itself is counted by the caller.
func (r *Renderer) Node(recs []dump.Record, i int, prefix string, forceClosed bool) int {
	r.recs = recs
	return r.node(i, "", prefix, forceClosed)
}

func (r *Renderer) node(i int, base, prefix string, forceClosed bool) int {
	rec := r.recs[i]
	next := i + 1

	if !rec.Hidden() || r.opts.AllNames {
		r.out.Append("   ", prefix).
			AppendByte(rec.Kind().Glyph()).
			Append("#", dump.Unescape(strings.TrimPrefix(rec.Name, base)), "\t", dump.Unescape(rec.BrowserText()), "\n")
	}

	kind := rec.Kind()
	if !kind.IsContainer() || next >= len(r.recs) {
		return next
	}

	named := rec.Name + "$"
	if kind == dump.KindS4 {
		named = rec.Name + "@"
	}
	positional := rec.Name + "[["
	isChild := func(j int) bool {
		if j >= len(r.recs) {
			return false
		}
		n := r.recs[j].Name
		return strings.HasPrefix(n, named) || strings.HasPrefix(n, positional)
	}

	def := false
	if !forceClosed {
		if kind == dump.KindDataFrame {
			def = r.opts.OpenDF
		} else {
			def = r.opts.OpenLS
		}
	}

	if !r.state.Get(rec.Name, def) {
		for isChild(next) {
			next++
			r.remaining--
		}
		return next
	}
	if !isChild(next) {
		return next
	}

	indent := r.continuation(prefix)
	left := rec.ChildCount()
	for isChild(next) {
		left--
		connector := r.glyphs.Last
		if left != 0 && isChild(next+1) {
			connector = r.glyphs.Tee
		}
		childBase := rec.Name
		if strings.HasPrefix(r.recs[next].Name, named) {
			childBase = named
		}
		r.remaining--
		next = r.node(next, childBase, indent+connector, false)
	}
	return next
}

// continuation turns the parent's connector into the indentation of its
// children: the corner and horizontal bar become blanks, the tee and vertical
// bar become a vertical bar.
func (r *Renderer) continuation(prefix string) string {
	var b strings.Builder
	b.Grow(len(prefix))
	if r.opts.UTF8 {
		for _, c := range prefix {
			switch c {
			case '└', '─':
				b.WriteByte(' ')
			case '├', '│':
				b.WriteRune('│')
			default:
				b.WriteRune(c)
			}
		}
		return b.String()
	}
	for i := 0; i < len(prefix); i++ {
		switch prefix[i] {
		case '-', '`':
			b.WriteByte(' ')
		default:
			b.WriteByte(prefix[i])
		}
	}
	return b.String()
}
