package server

import (
	"fmt"
	"os"
)

func (s *Server) writeView(which byte) {
	if which == 'G' {
		s.writeGlobalView()
	} else {
		s.writeLibraryView()
	}
}

// writeGlobalView renders the global snapshot. The editor is only told
// when it asked for automatic updates.
func (s *Server) writeGlobalView() {
	path := s.cfg.GlobalViewPath()
	if err := os.WriteFile(path, s.render.GlobalView(s.engine.Global()), 0o644); err != nil {
		s.log.Error("write global view", "error", err)
		fmt.Fprintf(s.errOut, "Error opening \"%s\" for writing\n", path)
		return
	}
	if s.auto {
		s.out.Write("lua require('r.browser').update_OB('GlobalEnv')\n")
	}
}

func (s *Server) writeLibraryView() {
	path := s.cfg.LibraryViewPath()
	if err := os.WriteFile(path, s.render.LibraryView(s.catalog.Packages()), 0o644); err != nil {
		s.log.Error("write library view", "error", err)
		fmt.Fprintf(s.errOut, "Failed to open \"%s\"\n", path)
		return
	}
	s.out.Write("lua require('r.browser').update_OB('libraries')\n")
}

// dumpState writes the expand/collapse states for inspection.
func (s *Server) dumpState() {
	path := s.cfg.StateDumpPath()
	f, err := os.Create(path)
	if err != nil {
		s.log.Error("create state dump", "error", err)
		return
	}
	defer f.Close()
	if err := s.state.Dump(f); err != nil {
		s.log.Error("write state dump", "error", err)
		return
	}
	s.log.Info("state tree dumped", "path", path, "nodes", s.state.Len())
}
