package browser

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// RootKey is the sentinel entry of the top-level scope.
const RootKey = "base:"

// StateTree remembers whether each container in the browser is expanded.
// Keys are full object paths; package nodes end in ':'.
type StateTree struct {
	open map[string]bool
}

// NewStateTree returns a tree holding only the root sentinel.
func NewStateTree() *StateTree {
	return &StateTree{open: map[string]bool{RootKey: false}}
}

// Get returns the state of path, storing def first if path is unknown.
func (t *StateTree) Get(path string, def bool) bool {
	v, ok := t.open[path]
	if !ok {
		t.open[path] = def
		return def
	}
	return v
}

// Lookup returns the state of path without inserting it.
func (t *StateTree) Lookup(path string) (open, ok bool) {
	open, ok = t.open[path]
	return open, ok
}

// Toggle flips the state of path. Unknown paths are left alone.
func (t *StateTree) Toggle(path string) {
	if v, ok := t.open[path]; ok {
		t.open[path] = !v
	}
}

// SetAll sets every node to open except the ones exclude matches. A nil
// exclude matches nothing.
func (t *StateTree) SetAll(open bool, exclude func(path string) bool) {
	for k := range t.open {
		if exclude != nil && exclude(k) {
			continue
		}
		t.open[k] = open
	}
}

// IsPackageNode reports whether path names a package in the library view.
func IsPackageNode(path string) bool {
	return strings.HasSuffix(path, ":")
}

// Len returns the number of stored paths, sentinel included.
func (t *StateTree) Len() int { return len(t.open) }

// Paths returns every stored path in byte order.
func (t *StateTree) Paths() []string {
	return slices.Sorted(maps.Keys(t.open))
}

type nodeState struct {
	Path string `yaml:"path"`
	Open bool   `yaml:"open"`
}

type treeDump struct {
	Nodes []nodeState `yaml:"nodes"`
}

// Dump writes the tree as YAML, paths in byte order.
func (t *StateTree) Dump(w io.Writer) error {
	d := treeDump{Nodes: make([]nodeState, 0, len(t.open))}
	for _, p := range t.Paths() {
		d.Nodes = append(d.Nodes, nodeState{Path: p, Open: t.open[p]})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode state tree: %w", err)
	}
	return enc.Close()
}
