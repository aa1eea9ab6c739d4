package store

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Separators of the in-memory package list sent by the runtime.
const (
	NameSep    = '\x03'
	VersionSep = '\x04'
)

// Pair is a reported name and version.
type Pair struct {
	Name    string
	Version string
}

// ParsePairs decodes "name 0x03 version 0x04" runs, each optionally
// followed by a newline. Decoding stops at the first incomplete pair or at a
// name or version containing a space.
func ParsePairs(s string) []Pair {
	var out []Pair
	for s != "" {
		name, rest, ok := strings.Cut(s, string(NameSep))
		if !ok {
			break
		}
		version, rest, ok := strings.Cut(rest, string(VersionSep))
		if !ok {
			break
		}
		s = strings.TrimPrefix(rest, "\n")
		if strings.Contains(name, " ") || strings.Contains(version, " ") {
			break
		}
		out = append(out, Pair{Name: name, Version: version})
	}
	return out
}

// ReadPairsFile reads a file of "name_version" lines. The version starts
// after the first underscore; lines without one are skipped.
func ReadPairsFile(path string) ([]Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open package list: %w", err)
	}
	defer f.Close()

	var out []Pair
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		name, version, ok := strings.Cut(line, "_")
		if !ok || name == "" {
			continue
		}
		out = append(out, Pair{Name: name, Version: version})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read package list: %w", err)
	}
	return out, nil
}

// RefreshLoaded makes the catalog match pairs: every package is first
// marked unloaded, reported ones are flagged loaded or added, and the
// packages still unloaded are removed. It returns the added packages.
func (c *Catalog) RefreshLoaded(pairs []Pair) []*Package {
	for _, p := range c.pkgs {
		p.Loaded = false
	}
	var added []*Package
	for _, pr := range pairs {
		if p := c.Get(pr.Name); p != nil {
			p.Loaded = true
			continue
		}
		added = append(added, c.AddPackage(pr.Name, pr.Version))
	}
	kept := c.pkgs[:0]
	for _, p := range c.pkgs {
		if p.Loaded {
			kept = append(kept, p)
		} else {
			c.log.Debug("package unloaded", "name", p.Name)
		}
	}
	clear(c.pkgs[len(kept):])
	c.pkgs = kept
	return added
}

// RefreshFromFile applies RefreshLoaded with the pairs listed in path.
func (c *Catalog) RefreshFromFile(path string) ([]*Package, error) {
	pairs, err := ReadPairsFile(path)
	if err != nil {
		return nil, err
	}
	return c.RefreshLoaded(pairs), nil
}
