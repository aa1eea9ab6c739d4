// Package complete answers the editor's completion queries from the cached
// object lists: names, installed libraries, function arguments, details of
// one object and argument defaults.
package complete

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/rnvim/rnvimserver/dump"
	"github.com/rnvim/rnvimserver/logger"
	"github.com/rnvim/rnvimserver/store"
	"github.com/rnvim/rnvimserver/textbuf"
)

// GlobalScope names the global environment in info requests.
const GlobalScope = ".GlobalEnv"

// Engine builds completion replies. It reads the catalog and the global
// snapshot it is given and must be used from the goroutine that owns them.
type Engine struct {
	catalog *store.Catalog
	global  []dump.Record
	watcher store.Dirtier
	// Callback and InfoCallback are the editor functions replies call.
	Callback     string
	InfoCallback string
	instanceID   string
	buf          *textbuf.Buffer
	log          *slog.Logger
}

// Config holds the editor callback names.
type Config struct {
	Callback     string
	InfoCallback string
	InstanceID   string
}

// New returns an engine over catalog. watcher may be nil, in which case
// every library listing rescans the library paths.
func New(catalog *store.Catalog, watcher store.Dirtier, cfg Config) *Engine {
	return &Engine{
		catalog:      catalog,
		watcher:      watcher,
		Callback:     cfg.Callback,
		InfoCallback: cfg.InfoCallback,
		instanceID:   cfg.InstanceID,
		buf:          textbuf.New(32768, 0),
		log:          logger.WithComponent("complete"),
	}
}

// SetGlobal replaces the global environment snapshot.
func (e *Engine) SetGlobal(recs []dump.Record) { e.global = recs }

// Global returns the global environment snapshot.
func (e *Engine) Global() []dump.Record { return e.global }

// Complete answers req with one framed reply line. connected reports
// whether the runtime link is up.
func (e *Engine) Complete(req Request, connected bool) string {
	e.buf.Reset()
	e.log.Debug("complete", "id", req.ID, "base", req.Base, "mode", req.Mode.String(), "func", req.Func)

	switch req.Mode {
	case ModeLibraries:
		e.libraries(req.Base)
		return e.reply(req.ID)
	case ModeArgs:
		if connected && req.HaveArgs {
			e.buf.Append(strings.ReplaceAll(req.Args, string(dump.QuoteMark), "'"))
		} else {
			e.args(req.Func)
		}
		if req.Base == "" {
			return e.reply(req.ID)
		}
	}
	e.names(req.Base)
	return e.reply(req.ID)
}

// Empty is the reply carrying no candidates.
func (e *Engine) Empty(id string) string {
	e.buf.Reset()
	return e.reply(id)
}

// reply frames the buffer as 0x11 <length> 0x11 lua <cb>(<id>, {<items>}).
// The length counts the lua call without the newline.
func (e *Engine) reply(id string) string {
	body := "lua " + e.Callback + "(" + id + ", {" + e.buf.String() + "})"
	return "\x11" + strconv.Itoa(len(body)) + "\x11" + body + "\n"
}

func (e *Engine) libraries(base string) {
	libs := e.catalog.Libs()
	libs.Refresh(e.watcher)
	for _, l := range libs.Confirmed(base) {
		e.buf.Append("{word = '", l.Name, "', menu = '[pkg]', user_data = {ttl = '", l.Title,
			"', descr = '", l.Description, "', cls = 'l'}},")
	}
}

// args lists the usage of fn found in the package caches. A "pkg::fn"
// name restricts the search to one package.
func (e *Engine) args(fn string) {
	pkg, name, qualified := strings.Cut(fn, "::")
	if !qualified {
		pkg, name = "", fn
	}
	for _, p := range e.catalog.Packages() {
		if !p.HasCache() || (qualified && p.Name != pkg) {
			continue
		}
		for _, r := range p.Records {
			if r.Name == name {
				e.buf.Append("{pkg = '", p.Name, "', fnm = '", name, "', args = {", r.Usage, "}},")
				break
			}
		}
	}
}

// names scans the global snapshot with the whole prefix, then the package
// caches, restricted to one package when the prefix is "pkg::name".
func (e *Engine) names(base string) {
	e.matches(e.global, base, "")
	pkg, name, qualified := strings.Cut(base, "::")
	if !qualified {
		name = base
	}
	for _, p := range e.catalog.Packages() {
		if !p.HasCache() || (qualified && p.Name != pkg) {
			continue
		}
		if qualified {
			e.matches(p.Records, name, pkg)
		} else {
			e.matches(p.Records, name, "")
		}
	}
}

func (e *Engine) matches(recs []dump.Record, base, qualifier string) {
	for _, r := range recs {
		if !strings.HasPrefix(r.Name, base) || !sameDepth(base, r.Name) {
			continue
		}
		e.buf.Append("{word = '")
		if qualifier != "" {
			e.buf.Append(qualifier, "::")
		}
		menu := r.Menu
		if menu == "" {
			menu = r.Kind().MenuTag()
		}
		e.buf.Append(r.Name, "', menu = '", menu, " [", r.Origin, "]', user_data = {cls = '",
			r.Class(), "', pkg = '", r.Origin, "'}}, ")
	}
}

// sameDepth keeps container elements out of the results unless the prefix
// already reaches into that container.
func sameDepth(base, name string) bool {
	for _, c := range []string{"@", "$", "["} {
		if strings.Count(base, c) != strings.Count(name, c) {
			return false
		}
	}
	return true
}

// InfoResult is the outcome of an info request: either a line for the
// editor or a request to forward to the runtime.
type InfoResult struct {
	Reply   string
	Runtime string
}

// Info describes the object named word in scope, the global environment
// or a package. Functions whose arguments were never inspected are asked
// of the runtime when it is connected and get an empty usage otherwise.
// Unknown objects get an empty table.
func (e *Engine) Info(word, scope string, connected bool) InfoResult {
	var recs []dump.Record
	if scope == GlobalScope {
		recs = e.global
	} else if p := e.catalog.Get(scope); p != nil {
		recs = p.Records
	} else {
		e.log.Debug("info for unknown scope", "scope", scope)
	}

	for _, r := range recs {
		if r.Name != word {
			continue
		}
		usage := r.Usage
		if r.NotChecked() {
			if connected {
				return InfoResult{Runtime: fmt.Sprintf("E%snvimcom:::nvim.GlobalEnv.fun.args(\"%s\")\n", e.instanceID, word)}
			}
			usage = ""
		}
		e.buf.Reset()
		e.buf.Append("{cls = '", r.Class(), "', word = '", word, "', pkg = '", r.Origin,
			"', usage = {", usage, "}, ttl = '", r.Title, "', descr = '", r.Description, "'}")
		return InfoResult{Reply: "lua " + e.InfoCallback + "(" + e.buf.String() + ")\n"}
	}
	return InfoResult{Reply: "lua " + e.InfoCallback + "({})\n"}
}

// ResolveArg returns the editor line carrying the default of argument arg
// of function fn in package pkg. Unknown arguments resolve to empty text.
func (e *Engine) ResolveArg(pkg, fn, arg string) string {
	def := ""
	if p := e.catalog.Get(pkg); p != nil {
		if d, ok := dump.Lookup(p.Args, fn, arg); ok {
			def = d
		} else {
			e.log.Debug("argument not cached", "package", pkg, "func", fn, "arg", arg)
		}
	}
	return "lua require'cmp_r'.finish_get_args('" + def + "')\n"
}
