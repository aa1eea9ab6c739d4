package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statsDescription = `Package: stats
Version: 4.3.0
Title: The R Stats Package
Description: R statistical functions.  Contains
    the 'usual'   suspects.
License: Part of R 4.3.0
`

func TestParseDescription(t *testing.T) {
	l, err := ParseDescription("stats", []byte(statsDescription))
	require.NoError(t, err)
	assert.Equal(t, "stats", l.Name)
	assert.Equal(t, "The R Stats Package", l.Title)
	assert.Equal(t, "R statistical functions. Contains the \x13usual\x13 suspects.", l.Description)

	_, err = ParseDescription("x", []byte("Title: only\n"))
	assert.ErrorContains(t, err, "Description")
	_, err = ParseDescription("x", []byte("Description: only\n"))
	assert.ErrorContains(t, err, "Title")
}

func TestInsert_CaseInsensitiveOrder(t *testing.T) {
	x := NewLibIndex(t.TempDir())
	for _, n := range []string{"stats", "MASS", "base", "Matrix", "zoo", "abind"} {
		x.Insert(&InstalledLib{Name: n})
	}
	var names []string
	for _, l := range x.Libs() {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"abind", "base", "MASS", "Matrix", "stats", "zoo"}, names)
}

func makeLib(t *testing.T, root, name, title string) {
	t.Helper()
	writeFile(t, filepath.Join(root, name, "DESCRIPTION"),
		"Package: "+name+"\nTitle: "+title+"\nDescription: About "+name+".\n")
}

func TestScanAndIndexRoundTrip(t *testing.T) {
	compl := t.TempDir()
	lib := t.TempDir()
	makeLib(t, lib, "methods", "Formal Methods")
	makeLib(t, lib, "MASS", "Support Functions")
	makeLib(t, lib, "memoise", "Memoisation")
	require.NoError(t, os.MkdirAll(filepath.Join(lib, ".hidden"), 0o755))
	writeFile(t, filepath.Join(lib, "README"), "not a library")

	x := NewLibIndex(compl)
	x.SetLibPaths([]string{lib, filepath.Join(lib, "absent")})
	assert.Equal(t, 3, x.Scan())
	assert.Equal(t, 0, x.Scan(), "second scan only confirms")

	data, err := os.ReadFile(filepath.Join(compl, IndexFile))
	require.NoError(t, err)
	assert.Equal(t,
		"MASS\x06Support Functions\x06About MASS.\n"+
			"memoise\x06Memoisation\x06About memoise.\n"+
			"methods\x06Formal Methods\x06About methods.\n",
		string(data))

	y := NewLibIndex(compl)
	require.NoError(t, y.Load())
	require.Len(t, y.Libs(), 3)
	assert.Empty(t, y.Confirmed(""), "loaded entries are unconfirmed")
	assert.Equal(t, "Memoisation", y.Title("memoise"))

	y.SetLibPaths([]string{lib})
	assert.Equal(t, 0, y.Scan())
	got := y.Confirmed("me")
	require.Len(t, got, 2)
	assert.Equal(t, "memoise", got[0].Name)
	assert.Equal(t, "methods", got[1].Name)
}

func TestSave_SkipsUnconfirmed(t *testing.T) {
	dir := t.TempDir()
	x := NewLibIndex(dir)
	x.Insert(&InstalledLib{Name: "a", Title: "A", Description: "a", Seen: true})
	x.Insert(&InstalledLib{Name: "b", Title: "B", Description: "b"})
	require.NoError(t, x.Save())

	data, err := os.ReadFile(x.Path())
	require.NoError(t, err)
	assert.Equal(t, "a\x06A\x06a\n", string(data))
}

func TestLoad_StopsAtIncompleteLine(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, IndexFile), "a\x06A\x06a\nb\x06B\nc\x06C\x06c\n")
	x := NewLibIndex(dir)
	require.NoError(t, x.Load())
	require.Len(t, x.Libs(), 1)
	assert.Equal(t, "a", x.Libs()[0].Name)

	assert.NoError(t, NewLibIndex(t.TempDir()).Load(), "missing index is not an error")
}

func TestReadLibPaths(t *testing.T) {
	f := filepath.Join(t.TempDir(), "libPaths")
	writeFile(t, f, "/usr/lib/R/library\r\n\n/home/u/R\n")
	got, err := ReadLibPaths(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/lib/R/library", "/home/u/R"}, got)
}

type fakeDirtier struct {
	dirty bool
	clean int
}

func (f *fakeDirtier) Dirty() bool { return f.dirty }
func (f *fakeDirtier) MarkClean()  { f.dirty = false; f.clean++ }

func TestRefresh_OnlyWhenDirty(t *testing.T) {
	lib := t.TempDir()
	x := NewLibIndex(t.TempDir())
	x.SetLibPaths([]string{lib})
	w := &fakeDirtier{}

	makeLib(t, lib, "a", "A")
	assert.Equal(t, 0, x.Refresh(w))
	assert.Empty(t, x.Libs())

	w.dirty = true
	assert.Equal(t, 1, x.Refresh(w))
	assert.Equal(t, 1, w.clean)
	assert.False(t, w.Dirty())

	makeLib(t, lib, "b", "B")
	assert.Equal(t, 1, x.Refresh(nil))
}
