package dump

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Records(t *testing.T) {
	data := []byte(Line("lm", "\x03", "function", "stats", "formula, data", "Fitting Linear Models", "lm is used to fit linear models") +
		Line("iris", "$", "data.frame", "datasets", "", "", "[#]150 5"))

	records, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, records, 2)

	lm := records[0]
	assert.Equal(t, "lm", lm.Name)
	assert.Equal(t, KindFunction, lm.Kind())
	assert.Equal(t, "f", lm.Class())
	assert.Equal(t, "stats", lm.Origin)
	assert.Equal(t, "formula, data", lm.Usage)
	assert.Equal(t, "Fitting Linear Models", lm.BrowserText())

	iris := records[1]
	assert.Equal(t, KindDataFrame, iris.Kind())
	assert.Equal(t, "$", iris.Class())
	assert.Equal(t, 5, iris.ChildCount())
	assert.Equal(t, "[#]150 5", iris.BrowserText())
}

func TestParse_NulSeparator(t *testing.T) {
	data := []byte("x\x00{\x00numeric\x00.GlobalEnv\x00\x00\x00[1] 3\x00\n")
	records, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "x", records[0].Name)
	assert.Equal(t, "[1] 3", records[0].Description)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"empty", "", false},
		{"single newline", "\n", false},
		{"one record", Line("a", "{"), false},
		{"too few separators", "a\x06{\x06\n", true},
		{"too many separators", "a\x06\x06\x06\x06\x06\x06\x06\x06\n", true},
		{"unterminated", Line("a", "{") + "b\x06", true},
		{"bad second line", Line("a", "{") + "oops\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]byte(tt.data))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var fe *FormatError
			require.True(t, errors.As(err, &fe), "want FormatError, got %v", err)
		})
	}
}

func TestValidate_ReportsLine(t *testing.T) {
	err := Validate([]byte(Line("a", "{") + Line("b", "~") + "c\x06\n"))
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 3, fe.Line)
	assert.Equal(t, 1, fe.Separators)
}

func TestParse_RejectsWholeDump(t *testing.T) {
	records, err := Parse([]byte(Line("a", "{") + "broken\x06\n"))
	assert.Error(t, err)
	assert.Nil(t, records)
}

func TestCount(t *testing.T) {
	assert.Equal(t, 0, Count(nil))
	assert.Equal(t, 0, Count([]byte("\n")))
	assert.Equal(t, 2, Count([]byte(Line("a")+Line("b"))))
}

func TestParse_QuoteEscaping(t *testing.T) {
	data := []byte(Line("f", "\x03", "function", "pkg", "x = \x12a\x12", "Don't panic", ""))
	records, err := Parse(data)
	require.NoError(t, err)
	r := records[0]
	assert.Equal(t, "x = 'a'", r.Usage)
	assert.Equal(t, "Don\x13t panic", r.Title)
	assert.Equal(t, "Don't panic", Unescape(r.Title))
	assert.Equal(t, "Don\x13t", EscapeQuotes("Don't"))
}

func TestKind_MenuTagAndContainers(t *testing.T) {
	tags := map[Kind]string{
		KindFunction:    "func",
		KindNumeric:     "num ",
		KindCharacter:   "char",
		KindFactor:      "fac ",
		KindDataFrame:   "data",
		KindList:        "list",
		KindLogical:     "log ",
		KindS4:          "S4  ",
		KindPromise:     "lazy",
		KindEnvironment: "env ",
		KindUnknown:     "?   ",
	}
	for k, want := range tags {
		assert.Equal(t, want, k.MenuTag(), "kind %q", byte(k))
	}
	for _, k := range []Kind{KindList, KindDataFrame, KindS4, KindEnvironment} {
		assert.True(t, k.IsContainer())
	}
	for _, k := range []Kind{KindFunction, KindNumeric, KindPromise} {
		assert.False(t, k.IsContainer())
	}
	assert.Equal(t, byte('('), KindFunction.Glyph())
	assert.Equal(t, byte('['), KindList.Glyph())
}

func TestRecord_ChildCount(t *testing.T) {
	tests := []struct {
		kind  string
		descr string
		want  int
	}{
		{"[", "[#] 3", 3},
		{"[", "[#] 12 more", 12},
		{"$", "[#]150 5", 5},
		{"$", "[#]150", 0},
		{"<", "[#]", 0},
		{"{", "", 0},
	}
	for _, tt := range tests {
		r := Record{Type: tt.kind, Description: tt.descr}
		assert.Equal(t, tt.want, r.ChildCount(), "%s %q", tt.kind, tt.descr)
	}
}

func TestRecord_NotCheckedAndHidden(t *testing.T) {
	assert.True(t, Record{Type: "\x03", Usage: "['not_checked']"}.NotChecked())
	assert.False(t, Record{Type: "\x03", Usage: "x, y"}.NotChecked())
	assert.False(t, Record{Type: "{", Usage: "['not_checked']"}.NotChecked())
	assert.True(t, Record{Name: ".hidden"}.Hidden())
	assert.False(t, Record{Name: "shown"}.Hidden())
}

func TestParseArgs(t *testing.T) {
	data := []byte("lm\x06formula\x05\x06data\x05NULL\x06\nmean\x06x\x05\x06trim\x050\x06\n\n")
	list := ParseArgs(data)
	require.Len(t, list, 2)
	assert.Equal(t, "lm", list[0].Func)
	assert.Equal(t, []Arg{{"formula", ""}, {"data", "NULL"}}, list[0].Args)

	def, ok := Lookup(list, "mean", "trim")
	assert.True(t, ok)
	assert.Equal(t, "0", def)

	_, ok = Lookup(list, "mean", "na.rm")
	assert.False(t, ok)
}
