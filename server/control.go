package server

import (
	"fmt"
	"strings"

	"github.com/rnvim/rnvimserver/browser"
	"github.com/rnvim/rnvimserver/complete"
)

// Control-channel field separator of info and resolve commands.
const fieldSep = "\x02"

// handleCommand runs one control line. The first byte selects the command.
// Only the quit command and fatal listener errors are returned.
func (s *Server) handleCommand(line string) error {
	if line == "" {
		return nil
	}
	s.log.Debug("control", "line", line)

	switch line[0] {
	case '1':
		return s.startLink()
	case '2':
		s.sendRuntime(line[1:])
	case '3':
		s.browserCommand(line[1:])
	case '4':
		s.miscCommand(line[1:])
	case '5':
		s.completeCommand(line[1:])
	case '6':
		s.infoCommand(line[1:])
	case '7':
		s.resolveCommand(line[1:])
	case '9':
		return errQuit
	default:
		s.unknown(line)
	}
	return nil
}

func (s *Server) unknown(line string) {
	s.log.Warn("unknown command", "line", line)
	fmt.Fprintf(s.errOut, "Unknown command received: [%d] %s\n", line[0], line)
}

// browserCommand handles the 3x family.
func (s *Server) browserCommand(arg string) {
	if arg == "" {
		s.unknown("3")
		return
	}
	switch arg[0] {
	case '1':
		s.auto = true
		s.writeGlobalView()
	case '2':
		s.auto = true
		s.writeLibraryView()
	case '3':
		if len(arg) < 2 {
			s.unknown("3" + arg)
			return
		}
		s.state.Toggle(arg[2:])
		s.writeView(arg[1])
	case '4':
		if len(arg) < 3 {
			s.unknown("3" + arg)
			return
		}
		open := arg[1] == 'O'
		var exclude func(string) bool
		if open {
			exclude = browser.IsPackageNode
		}
		s.state.SetAll(open, exclude)
		s.writeView(arg[2])
	case '7':
		s.dumpState()
	default:
		s.unknown("3" + arg)
	}
}

// miscCommand handles the 4x family.
func (s *Server) miscCommand(arg string) {
	if arg == "" {
		s.unknown("4")
		return
	}
	switch arg[0] {
	case '1':
		s.readArgs()
	case '2':
		var b strings.Builder
		b.WriteString("lua require('r.server').echo_nrs_info('Loaded packages:")
		for _, name := range s.catalog.Names() {
			b.WriteString(" " + name)
		}
		b.WriteString("')\n")
		s.out.Write(b.String())
	case '3':
		s.engine.SetGlobal(nil)
		s.haveGlobal = false
		if s.auto {
			s.writeGlobalView()
		}
	default:
		s.unknown("4" + arg)
	}
}

func (s *Server) completeCommand(arg string) {
	req, err := complete.ParseCommand(arg)
	if err != nil {
		s.log.Warn("completion request", "error", err, "payload", arg)
		s.out.Write(s.engine.Empty(req.ID))
		return
	}
	s.out.Write(s.engine.Complete(req, s.connected()))
}

// infoCommand answers "word 0x02 scope". A "pkg::" qualifier on the word is
// dropped.
func (s *Server) infoCommand(arg string) {
	word, scope, ok := strings.Cut(arg, fieldSep)
	if !ok {
		s.log.Warn("info request without scope", "payload", arg)
	}
	if _, after, found := strings.Cut(word, "::"); found {
		word = after
	}
	res := s.engine.Info(word, scope, s.connected())
	if res.Runtime != "" {
		s.sendRuntime(res.Runtime)
		return
	}
	s.out.Write(res.Reply)
}

// resolveCommand answers "pkg 0x02 func 0x02 arg".
func (s *Server) resolveCommand(arg string) {
	parts := strings.SplitN(arg, fieldSep, 3)
	if len(parts) < 3 {
		s.log.Warn("malformed argument request", "payload", arg)
		parts = []string{"", "", ""}
	}
	s.out.Write(s.engine.ResolveArg(parts[0], parts[1], parts[2]))
}
