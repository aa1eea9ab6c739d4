package server

import (
	"os"

	"github.com/rnvim/rnvimserver/builder"
)

// scheduleBuild hands packages never built to the builder.
func (s *Server) scheduleBuild() {
	pkgs := s.catalog.Unscheduled()
	if len(pkgs) == 0 {
		return
	}
	names := make([]string, len(pkgs))
	for i, p := range pkgs {
		names[i] = p.Name
	}
	s.builder.Submit(names)
	s.inflight++
}

// finishBuild loads the caches a build produced and tells the editor.
func (s *Server) finishBuild(res builder.Result) {
	s.inflight -= res.Batches
	if s.inflight < 0 {
		s.inflight = 0
	}
	switch {
	case res.Err != nil:
		s.log.Error("cache build failed", "error", res.Err)
	case res.Failed():
		s.out.Printf("lua require('r.server').show_bol_error('%d')\n", res.ExitCode)
	}

	loaded := s.catalog.MarkBuilt()
	s.log.Info("build finished", "packages", len(res.Packages), "loaded", len(loaded), "exit", res.ExitCode)
	if err := os.WriteFile(s.cfg.ReadyListPath(), []byte(s.catalog.Ready()), 0o644); err != nil {
		s.log.Error("write ready list", "error", err)
	}
	s.out.Write("lua require('r.server').update_Rhelp_list()\n")

	if s.auto {
		s.writeLibraryView()
	}
	if s.inflight > 0 || s.catalog.ArgsLocked(s.now()) {
		return
	}
	if s.argsPending {
		s.readArgs()
	}
}

// readArgs loads argument caches, or defers until running builds end.
func (s *Server) readArgs() {
	if s.inflight > 0 {
		s.argsPending = true
		return
	}
	s.catalog.ReadArgs()
	s.argsPending = false
}
