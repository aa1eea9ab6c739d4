package server

import (
	"github.com/cespare/xxhash/v2"

	"github.com/rnvim/rnvimserver/complete"
	"github.com/rnvim/rnvimserver/dump"
	"github.com/rnvim/rnvimserver/store"
)

// handleRuntime dispatches one message body from the runtime. Bodies
// starting with '+' are for the server; anything else, an empty body
// included, is forwarded to the editor with its length.
func (s *Server) handleRuntime(body []byte) {
	if len(body) == 0 || body[0] != '+' {
		s.out.Printf("\x11%d\x11%s\n", len(body), body)
		return
	}
	if len(body) < 2 {
		s.log.Warn("empty runtime command")
		return
	}
	switch body[1] {
	case 'G':
		s.updateGlobal(body[2:])
	case 'L':
		s.updatePackages(string(body[2:]))
	case 'A':
		s.runtimeCompletion(string(body[2:]))
	default:
		s.log.Warn("unknown runtime command", "code", string(body[1]))
	}
}

// updateGlobal replaces the global snapshot. An identical dump is skipped;
// a malformed one keeps the previous snapshot.
func (s *Server) updateGlobal(data []byte) {
	sum := xxhash.Sum64(data)
	if s.haveGlobal && sum == s.globalSum {
		s.log.Debug("global environment unchanged")
		return
	}
	recs, err := dump.Parse(data)
	if err != nil {
		s.log.Warn("invalid global environment", "error", err)
		return
	}
	s.engine.SetGlobal(recs)
	s.globalSum, s.haveGlobal = sum, true
	if s.auto {
		s.writeGlobalView()
	}
}

// updatePackages applies the runtime's list of attached packages and
// schedules the caches of new ones.
func (s *Server) updatePackages(list string) {
	added := s.catalog.RefreshLoaded(store.ParsePairs(list))
	s.log.Debug("packages updated", "added", len(added), "total", len(s.catalog.Packages()))
	s.scheduleBuild()
	if s.auto {
		s.writeLibraryView()
	}
}

func (s *Server) runtimeCompletion(payload string) {
	req, err := complete.ParseRuntime(payload)
	if err != nil {
		s.log.Warn("runtime completion request", "error", err)
		s.out.Write(s.engine.Empty(req.ID))
		return
	}
	s.out.Write(s.engine.Complete(req, s.connected()))
}
