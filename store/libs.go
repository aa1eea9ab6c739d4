package store

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rnvim/rnvimserver/dump"
	"github.com/rnvim/rnvimserver/logger"
)

// IndexFile is the installed-library index in the completion directory.
const IndexFile = "inst_libs"

// InstalledLib is one installed library. Title and Description keep the
// quote escaping.
type InstalledLib struct {
	Name        string
	Title       string
	Description string
	// Seen is set when a library-path scan confirms the library exists.
	Seen bool
}

// LibIndex is the installed-library index, ordered case-insensitively by
// name.
type LibIndex struct {
	path  string
	libs  []*InstalledLib
	paths []string
	log   *slog.Logger
}

// NewLibIndex returns an empty index stored in dir.
func NewLibIndex(dir string) *LibIndex {
	return &LibIndex{
		path: filepath.Join(dir, IndexFile),
		log:  logger.WithComponent("libindex"),
	}
}

// Path returns the index file location.
func (x *LibIndex) Path() string { return x.path }

// Libs returns the entries in index order.
func (x *LibIndex) Libs() []*InstalledLib { return x.libs }

// SetLibPaths sets the directories Scan walks.
func (x *LibIndex) SetLibPaths(paths []string) { x.paths = paths }

// LibPaths returns the directories Scan walks.
func (x *LibIndex) LibPaths() []string { return x.paths }

// Get returns the entry called name, or nil.
func (x *LibIndex) Get(name string) *InstalledLib {
	for _, l := range x.libs {
		if l.Name == name {
			return l
		}
	}
	return nil
}

// Title returns the unescaped title of name, or "".
func (x *LibIndex) Title(name string) string {
	if l := x.Get(name); l != nil {
		return dump.Unescape(l.Title)
	}
	return ""
}

// Load reads the index file. Entries start unconfirmed; lines missing a
// field end the read. A missing file leaves the index empty.
func (x *LibIndex) Load() error {
	data, err := os.ReadFile(x.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read library index: %w", err)
	}
	for len(data) > 0 {
		nl := bytes.IndexByte(data, '\n')
		if nl < 0 {
			break
		}
		line := string(data[:nl])
		data = data[nl+1:]
		parts := strings.SplitN(line, string(dump.FieldSep), 3)
		if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
			break
		}
		x.libs = append(x.libs, &InstalledLib{Name: parts[0], Title: parts[1], Description: parts[2]})
	}
	x.log.Debug("library index loaded", "entries", len(x.libs))
	return nil
}

// Save rewrites the index with the confirmed entries.
func (x *LibIndex) Save() error {
	var b bytes.Buffer
	for _, l := range x.libs {
		if !l.Seen {
			continue
		}
		fmt.Fprintf(&b, "%s%c%s%c%s\n", l.Name, dump.FieldSep, l.Title, dump.FieldSep, l.Description)
	}
	if err := os.WriteFile(x.path, b.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write library index: %w", err)
	}
	return nil
}

// Insert adds l keeping case-insensitive order. Equal names go after
// existing ones.
func (x *LibIndex) Insert(l *InstalledLib) {
	i := 0
	for i < len(x.libs) && compareFold(l.Name, x.libs[i].Name) >= 0 {
		i++
	}
	x.libs = append(x.libs, nil)
	copy(x.libs[i+1:], x.libs[i:])
	x.libs[i] = l
}

// compareFold compares ASCII strings ignoring case.
func compareFold(a, b string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		ca, cb := lower(a[i]), lower(b[i])
		if ca != cb {
			return int(ca) - int(cb)
		}
	}
	return len(a) - len(b)
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}

// Scan walks every library path. Known libraries are confirmed; new ones
// have their DESCRIPTION parsed and are inserted. When anything new is found
// the index file is rewritten. It returns the number of new libraries.
func (x *LibIndex) Scan() int {
	found := 0
	for _, dir := range x.paths {
		entries, err := os.ReadDir(dir)
		if err != nil {
			x.log.Debug("skip library path", "path", dir, "error", err)
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if strings.HasPrefix(name, ".") || !e.IsDir() {
				continue
			}
			if l := x.Get(name); l != nil {
				l.Seen = true
				continue
			}
			descr, err := os.ReadFile(filepath.Join(dir, name, "DESCRIPTION"))
			if err != nil {
				continue
			}
			found++
			l, err := ParseDescription(name, descr)
			if err != nil {
				x.log.Warn("bad DESCRIPTION", "library", name, "error", err)
				continue
			}
			l.Seen = true
			x.Insert(l)
		}
	}
	if found > 0 {
		if err := x.Save(); err != nil {
			x.log.Error("save library index", "error", err)
		}
	}
	return found
}

// ParseDescription extracts the Title and Description fields of a
// DESCRIPTION file. Continuation lines are joined with single spaces and
// quotes are escaped.
func ParseDescription(name string, data []byte) (*InstalledLib, error) {
	var title, descr string
	var haveTitle, haveDescr bool
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	for i := 0; i < len(lines); i++ {
		var field *string
		var have *bool
		var value string
		switch {
		case strings.HasPrefix(lines[i], "Title: "):
			field, have, value = &title, &haveTitle, strings.TrimPrefix(lines[i], "Title: ")
		case strings.HasPrefix(lines[i], "Description: "):
			field, have, value = &descr, &haveDescr, strings.TrimPrefix(lines[i], "Description: ")
		default:
			continue
		}
		for i+1 < len(lines) && strings.HasPrefix(lines[i+1], " ") {
			i++
			value += " " + strings.TrimLeft(lines[i], " ")
		}
		*field, *have = value, true
	}
	if !haveTitle {
		return nil, fmt.Errorf("%s: no Title field", name)
	}
	if !haveDescr {
		return nil, fmt.Errorf("%s: no Description field", name)
	}
	return &InstalledLib{
		Name:        name,
		Title:       dump.EscapeQuotes(title),
		Description: dump.EscapeQuotes(collapseSpaces(descr)),
	}, nil
}

func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prev := false
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			if prev {
				continue
			}
			prev = true
		} else {
			prev = false
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// ReadLibPaths reads one directory per line. Blank lines and carriage
// returns are dropped.
func ReadLibPaths(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read library paths: %w", err)
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		out = append(out, filepath.ToSlash(line))
	}
	return out, nil
}

// Dirtier reports whether the library paths may have changed.
type Dirtier interface {
	Dirty() bool
	MarkClean()
}

// Refresh scans the library paths unless w says nothing changed. A nil w
// always scans.
func (x *LibIndex) Refresh(w Dirtier) int {
	if w != nil {
		if !w.Dirty() {
			return 0
		}
		w.MarkClean()
	}
	return x.Scan()
}

// Confirmed returns the entries seen by a scan whose name starts with
// prefix.
func (x *LibIndex) Confirmed(prefix string) []*InstalledLib {
	var out []*InstalledLib
	for _, l := range x.libs {
		if l.Seen && strings.HasPrefix(l.Name, prefix) {
			out = append(out, l)
		}
	}
	return out
}
