// Package server ties the pieces together. One goroutine owns the catalog,
// the global snapshot, the browser state and the completion engine; the
// control channel, the runtime link and the cache builder only feed it
// through channels.
package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rnvim/rnvimserver/browser"
	"github.com/rnvim/rnvimserver/builder"
	"github.com/rnvim/rnvimserver/complete"
	"github.com/rnvim/rnvimserver/config"
	"github.com/rnvim/rnvimserver/exec"
	"github.com/rnvim/rnvimserver/logger"
	"github.com/rnvim/rnvimserver/protocol"
	"github.com/rnvim/rnvimserver/store"
)

// errQuit ends Run without error.
var errQuit = errors.New("quit requested")

// Options replace the process streams and collaborators, mostly for tests.
type Options struct {
	Stdout   io.Writer
	Stderr   io.Writer
	Executor exec.CommandExecutor
	Now      func() time.Time
}

// Server is the helper process state.
type Server struct {
	cfg    *config.Config
	out    *Outbox
	errOut io.Writer
	log    *slog.Logger
	now    func() time.Time

	catalog *store.Catalog
	libs    *store.LibIndex
	watcher *store.LibWatcher
	engine  *complete.Engine
	state   *browser.StateTree
	render  *browser.Renderer
	builder *builder.Builder
	link    *protocol.Link

	// auto is set once the editor shows a browser view.
	auto       bool
	globalSum  uint64
	haveGlobal bool
	// inflight counts submitted build batches without a result yet.
	inflight    int
	argsPending bool

	group    *errgroup.Group
	ctx      context.Context
	bodies   chan []byte
	linkDone chan *protocol.Link
}

// New builds a server from a finalized, validated configuration. It loads
// the installed-library index and the library paths; missing files are
// logged.
func New(cfg *config.Config, opts Options) *Server {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Executor == nil {
		opts.Executor = exec.NewRealExecutor()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		cfg:      cfg,
		out:      NewOutbox(opts.Stdout),
		errOut:   opts.Stderr,
		log:      logger.WithInstance(cfg.ID).With("component", "server"),
		now:      opts.Now,
		libs:     store.NewLibIndex(cfg.ComplDir),
		state:    browser.NewStateTree(),
		bodies:   make(chan []byte),
		linkDone: make(chan *protocol.Link),
	}
	s.catalog = store.NewCatalog(cfg.ComplDir, s.libs)
	s.render = browser.NewRenderer(s.state, browser.Options{
		UTF8:     cfg.UTF8,
		AllNames: cfg.AllNames,
		OpenDF:   cfg.OpenDataFrames,
		OpenLS:   cfg.OpenLists,
	})
	s.builder = builder.New(builder.Config{
		RPath:          cfg.RPath,
		TmpDir:         cfg.TmpDir,
		RemoteTmpDir:   cfg.RemoteTmpDir,
		RemoteComplDir: cfg.RemoteComplDir,
	}, opts.Executor)

	if err := s.libs.Load(); err != nil {
		s.log.Warn("library index not loaded", "error", err)
	}
	if paths, err := store.ReadLibPaths(cfg.LibPathsFile()); err != nil {
		s.log.Warn("library paths not loaded", "error", err)
	} else {
		s.libs.SetLibPaths(paths)
	}

	var dirtier store.Dirtier
	if cfg.WatchLibraries {
		w, err := store.NewLibWatcher(s.libs.LibPaths())
		if err != nil {
			s.log.Warn("library watcher unavailable, scanning on every query", "error", err)
		} else {
			s.watcher = w
			dirtier = w
		}
	}
	s.engine = complete.New(s.catalog, dirtier, complete.Config{
		Callback:     cfg.CompletionCallback,
		InfoCallback: cfg.InfoCallback,
		InstanceID:   cfg.ID,
	})
	return s
}

// Catalog returns the package catalog. Only safe before Run or after it
// returns.
func (s *Server) Catalog() *store.Catalog { return s.catalog }

// Run performs the start-up work, then serves control commands read from in
// until the quit command, the end of in, ctx ending or a fatal link error.
// Fatal errors are *protocol.FatalError values.
func (s *Server) Run(ctx context.Context, in io.Reader) error {
	g, ctx := errgroup.WithContext(ctx)
	s.group, s.ctx = g, ctx
	defer s.close()

	s.startup()

	if s.watcher != nil {
		g.Go(func() error {
			s.watcher.Start(ctx)
			return nil
		})
	}
	g.Go(func() error { return s.builder.Run(ctx) })

	lines := make(chan string)
	go s.readControl(ctx, in, lines)
	g.Go(func() error { return s.loop(ctx, lines) })

	err := g.Wait()
	if errors.Is(err, errQuit) {
		s.log.Info("server stopped")
		return nil
	}
	return err
}

func (s *Server) close() {
	if s.link != nil {
		s.link.Close()
	}
	if s.watcher != nil {
		s.watcher.Close()
	}
}

// startup scans the installed libraries, loads the packages the editor
// expects before the runtime connects and schedules their cache builds.
func (s *Server) startup() {
	if s.watcher != nil {
		s.libs.Refresh(s.watcher)
	} else {
		s.libs.Scan()
	}
	if _, err := s.catalog.RefreshFromFile(s.cfg.StartupPackagesPath()); err != nil {
		s.log.Warn("startup packages not loaded", "error", err)
		fmt.Fprintf(s.errOut, "Failed to open \"%s\"\n", s.cfg.StartupPackagesPath())
	}
	s.scheduleBuild()
	s.out.Write("lua vim.g.R_Nvim_status = 3\n")
	s.log.Info("server initialized", "packages", len(s.catalog.Packages()), "libraries", len(s.libs.Libs()))
}

// readControl forwards each input line, stripped of its line ending. The
// channel is closed at the end of input.
func (s *Server) readControl(ctx context.Context, in io.Reader, lines chan<- string) {
	defer close(lines)
	r := bufio.NewReader(in)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			select {
			case lines <- strings.TrimRight(line, "\r\n"):
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				s.log.Error("control read error", "error", err)
			}
			return
		}
	}
}

// loop is the state owner.
func (s *Server) loop(ctx context.Context, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				s.log.Info("control channel closed")
				return errQuit
			}
			if err := s.handleCommand(line); err != nil {
				return err
			}
		case body := <-s.bodies:
			s.handleRuntime(body)
		case res := <-s.builder.Results():
			s.finishBuild(res)
		case l := <-s.linkDone:
			if s.link == l {
				s.link = nil
			}
		}
	}
}

// startLink opens the runtime listener and serves it in the group. A
// second start while a link is alive is refused.
func (s *Server) startLink() error {
	if s.link != nil {
		s.log.Warn("start listener", "error", protocol.ErrAlreadyListening)
		return nil
	}
	l, err := protocol.Listen(s.ctx, s.cfg.Secret, protocol.ListenOptions{
		Host:  s.cfg.Listen.Host,
		First: s.cfg.Listen.FirstPort,
		Last:  s.cfg.Listen.LastPort,
	})
	if err != nil {
		return err
	}
	s.link = l
	s.out.Printf("lua require('r.run').set_nrs_port('%d')\n", l.Port())

	ctx := s.ctx
	s.group.Go(func() error {
		err := l.Serve(ctx, func(body []byte) {
			select {
			case s.bodies <- bytes.Clone(body):
			case <-ctx.Done():
			}
		})
		select {
		case s.linkDone <- l:
		case <-ctx.Done():
		}
		return err
	})
	return nil
}

func (s *Server) connected() bool {
	return s.link != nil && s.link.Connected()
}

// sendRuntime writes msg to the runtime; failures are logged by the link.
func (s *Server) sendRuntime(msg string) {
	if s.link == nil {
		s.log.Warn("runtime is not connected", "error", protocol.ErrNotConnected)
		return
	}
	_ = s.link.Send(msg)
}
