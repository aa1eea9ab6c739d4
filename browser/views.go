package browser

import (
	"github.com/rnvim/rnvimserver/dump"
	"github.com/rnvim/rnvimserver/store"
)

// View headers. The first word names the view being shown.
const (
	GlobalHeader  = ".GlobalEnv | Libraries\n\n"
	LibraryHeader = "Libraries | .GlobalEnv\n\n"
)

// GlobalView renders the global environment dump. The returned slice is
// only valid until the next render.
func (r *Renderer) GlobalView(recs []dump.Record) []byte {
	r.out.Reset()
	r.out.Append(GlobalHeader)
	r.recs = recs
	for i := 0; i < len(recs); {
		i = r.node(i, "", "", false)
	}
	return r.out.Bytes()
}

// PackageKey is the state tree key of a package node.
func PackageKey(name string) string { return name + ":" }

// LibraryView renders every loaded package as a node whose objects appear
// below it when expanded. Objects at the package level start collapsed.
func (r *Renderer) LibraryView(pkgs []*store.Package) []byte {
	r.out.Reset()
	r.out.Append(LibraryHeader)
	for _, p := range pkgs {
		if !p.Loaded {
			continue
		}
		r.out.Append("   :#", p.Name, "\t", p.Title, "\n")
		open := r.state.Get(PackageKey(p.Name), false)
		if !open || !p.HasCache() || p.NumObjects() == 0 {
			continue
		}
		r.recs = p.Records
		r.remaining = p.NumObjects() - 1
		for i := 0; i < len(p.Records); {
			connector := r.glyphs.Tee
			if r.remaining == 0 {
				connector = r.glyphs.Last
			}
			r.remaining--
			i = r.node(i, "", connector, true)
		}
	}
	return r.out.Bytes()
}
