// Package store is the in-memory catalog of packages attached in the
// runtime, their cached object lists and argument lists, and the index of
// installed libraries.
package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rnvim/rnvimserver/dump"
	"github.com/rnvim/rnvimserver/logger"
)

// Package is one attached package.
type Package struct {
	Name    string
	Version string
	// Title is the installed library's title, unescaped; empty when the
	// library is not in the index.
	Title string
	// CachePath is the object-list cache file.
	CachePath string
	Loaded    bool
	// Built is set once both cache files exist on disk.
	Built bool
	// Scheduled is set once the package has been handed to a cache build.
	Scheduled bool
	// Records is nil until LoadCache succeeds.
	Records []dump.Record
	// Args is nil until ReadArgs finds an argument cache.
	Args []dump.FuncArgs
}

// NumObjects returns the number of cached records.
func (p *Package) NumObjects() int { return len(p.Records) }

// HasCache reports whether an object-list cache has been loaded.
func (p *Package) HasCache() bool { return p.Records != nil }

// ID is the "name_version" form used in cache file names and listings.
func (p *Package) ID() string { return p.Name + "_" + p.Version }

// Catalog holds the attached packages, newest first, and the installed
// library index. It is not safe for concurrent use; one goroutine owns it.
type Catalog struct {
	dir  string
	pkgs []*Package
	libs *LibIndex
	log  *slog.Logger
}

// NewCatalog returns an empty catalog whose cache files live in dir.
func NewCatalog(dir string, libs *LibIndex) *Catalog {
	if libs == nil {
		libs = NewLibIndex(dir)
	}
	return &Catalog{
		dir:  dir,
		libs: libs,
		log:  logger.WithComponent("store"),
	}
}

// Dir returns the completion cache directory.
func (c *Catalog) Dir() string { return c.dir }

// Libs returns the installed-library index.
func (c *Catalog) Libs() *LibIndex { return c.libs }

// Packages returns the catalog in order, newest first. The slice must not
// be modified.
func (c *Catalog) Packages() []*Package { return c.pkgs }

// Names returns the package names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.pkgs))
	for i, p := range c.pkgs {
		names[i] = p.Name
	}
	return names
}

// Get returns the package called name, or nil.
func (c *Catalog) Get(name string) *Package {
	for _, p := range c.pkgs {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// AddPackage creates a package record and prepends it to the catalog.
func (c *Catalog) AddPackage(name, version string) *Package {
	p := &Package{
		Name:      name,
		Version:   version,
		Title:     c.libs.Title(name),
		CachePath: filepath.Join(c.dir, fmt.Sprintf("omnils_%s_%s", name, version)),
		Loaded:    true,
	}
	p.Built = exists(p.CachePath) && exists(c.FunPath(p))
	c.pkgs = append([]*Package{p}, c.pkgs...)
	c.log.Debug("package added", "name", name, "version", version, "built", p.Built)
	return p
}

// FunPath is the function-list cache written next to the object list.
func (c *Catalog) FunPath(p *Package) string {
	return filepath.Join(c.dir, "fun_"+p.ID())
}

// ArgsPath is the argument cache file of p.
func (c *Catalog) ArgsPath(p *Package) string {
	return filepath.Join(c.dir, "args_"+p.ID())
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadCache reads and validates the object-list cache of p. A missing or
// empty file leaves the package without a cache; a malformed one is
// discarded whole.
func (c *Catalog) LoadCache(p *Package) error {
	if p.Title == "" {
		p.Title = c.libs.Title(p.Name)
	}
	p.Records = nil
	data, err := os.ReadFile(p.CachePath)
	if err != nil {
		return fmt.Errorf("read cache of %s: %w", p.Name, err)
	}
	if len(data) == 0 {
		return nil
	}
	records, err := dump.Parse(data)
	if err != nil {
		c.log.Warn("discarding malformed cache", "package", p.Name, "path", p.CachePath, "error", err)
		return fmt.Errorf("cache of %s: %w", p.Name, err)
	}
	if records == nil {
		records = []dump.Record{}
	}
	p.Records = records
	p.Loaded = true
	c.log.Debug("cache loaded", "package", p.Name, "objects", len(records))
	return nil
}

// MarkBuilt sets Built on every package whose object-list cache now exists
// and loads the caches not loaded yet. It returns the packages it loaded.
func (c *Catalog) MarkBuilt() []*Package {
	var loaded []*Package
	for _, p := range c.pkgs {
		if !p.Built && exists(p.CachePath) {
			p.Built = true
		}
		if p.Built && !p.HasCache() {
			if err := c.LoadCache(p); err != nil {
				c.log.Warn("load cache failed", "package", p.Name, "error", err)
				continue
			}
			loaded = append(loaded, p)
		}
	}
	return loaded
}

// Unscheduled returns the packages never handed to a cache build and marks
// them scheduled.
func (c *Catalog) Unscheduled() []*Package {
	var out []*Package
	for _, p := range c.pkgs {
		if !p.Scheduled {
			p.Scheduled = true
			out = append(out, p)
		}
	}
	return out
}

// ReadArgs loads the argument caches of packages that have none yet.
// Missing files are not an error.
func (c *Catalog) ReadArgs() {
	for _, p := range c.pkgs {
		if p.Args != nil {
			continue
		}
		data, err := os.ReadFile(c.ArgsPath(p))
		if err != nil || len(data) == 0 {
			continue
		}
		p.Args = dump.ParseArgs(data)
		if p.Args == nil {
			p.Args = []dump.FuncArgs{}
		}
	}
}

// Ready lists "name_version" for every loaded package with a loaded
// cache, one per line, in catalog order.
func (c *Catalog) Ready() string {
	var b strings.Builder
	for _, p := range c.pkgs {
		if p.Loaded && p.Built && p.HasCache() {
			b.WriteString(p.ID())
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// ArgsLockMaxAge is how long the argument cache lock is honored.
const ArgsLockMaxAge = time.Hour

// ArgsLocked reports whether the runtime holds a fresh argument cache lock.
// A lock older than ArgsLockMaxAge is removed.
func (c *Catalog) ArgsLocked(now time.Time) bool {
	path := filepath.Join(c.dir, "args_lock")
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	if now.Sub(fi.ModTime()) < ArgsLockMaxAge {
		return true
	}
	if err := os.Remove(path); err != nil {
		c.log.Warn("remove stale args lock", "error", err)
	} else {
		c.log.Info("removed stale args lock")
	}
	return false
}
