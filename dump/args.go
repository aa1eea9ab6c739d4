package dump

import (
	"bytes"
	"strings"
)

// ArgSep separates an argument name from its default value in an argument
// cache line.
const ArgSep = '\x05'

// Arg is one formal argument of a function.
type Arg struct {
	Name    string
	Default string
}

// FuncArgs lists the arguments of one function.
type FuncArgs struct {
	Func string
	Args []Arg
}

// ParseArgs reads an argument cache: one line per function,
// "fname SEP arg ArgSep default SEP ...". Malformed lines are skipped.
func ParseArgs(data []byte) []FuncArgs {
	var out []FuncArgs
	for len(data) > 0 {
		var line []byte
		if nl := bytes.IndexByte(data, '\n'); nl >= 0 {
			line, data = data[:nl], data[nl+1:]
		} else {
			line, data = data, nil
		}
		fields := strings.FieldsFunc(string(line), func(r rune) bool {
			return r == FieldSep || r == AltSep
		})
		if len(fields) == 0 {
			continue
		}
		fa := FuncArgs{Func: fields[0]}
		for _, f := range fields[1:] {
			name, def, _ := strings.Cut(f, string(ArgSep))
			fa.Args = append(fa.Args, Arg{Name: name, Default: def})
		}
		out = append(out, fa)
	}
	return out
}

// Lookup returns the default of arg in function fn.
func Lookup(list []FuncArgs, fn, arg string) (string, bool) {
	for _, fa := range list {
		if fa.Func != fn {
			continue
		}
		for _, a := range fa.Args {
			if a.Name == arg {
				return a.Default, true
			}
		}
	}
	return "", false
}
