// Package builder runs the runtime in the background to write the cache
// files of newly attached packages. Requests that arrive while a build runs
// are merged into the next build.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rnvim/rnvimserver/exec"
	"github.com/rnvim/rnvimserver/logger"
)

// File names in the temporary directory.
const (
	ScriptFile = "bo_code.R"
	StdoutFile = "run_R_stdout"
	StderrFile = "run_R_stderr"
)

// ExitPartial is the runtime exit status that still counts as success:
// some packages may fail to build while the others were written.
const ExitPartial = 2

// Config locates the runtime and the directories it writes to.
type Config struct {
	// RPath is the runtime executable.
	RPath string
	// TmpDir receives the script and the captured output.
	TmpDir string
	// RemoteTmpDir and RemoteComplDir are the same directories as seen by
	// the runtime.
	RemoteTmpDir   string
	RemoteComplDir string
}

// Result reports one finished build.
type Result struct {
	Packages []string
	// Batches is the number of Submit calls the build covered.
	Batches  int
	ExitCode int
	Err      error
}

// Failed reports whether the editor should be told about the exit status.
func (r Result) Failed() bool {
	return r.Err != nil || (r.ExitCode != 0 && r.ExitCode != ExitPartial)
}

// Builder owns the background build goroutine.
type Builder struct {
	cfg     Config
	exec    exec.CommandExecutor
	log     *slog.Logger
	results chan Result

	mu      sync.Mutex
	pending []string
	batches int
	wake    chan struct{}
}

// New returns a builder that runs commands through ex.
func New(cfg Config, ex exec.CommandExecutor) *Builder {
	return &Builder{
		cfg:     cfg,
		exec:    ex,
		log:     logger.WithComponent("builder"),
		results: make(chan Result, 1),
		wake:    make(chan struct{}, 1),
	}
}

// Results delivers one Result per build.
func (b *Builder) Results() <-chan Result { return b.results }

// Submit queues packages for the next build without blocking.
func (b *Builder) Submit(pkgs []string) {
	if len(pkgs) == 0 {
		return
	}
	b.mu.Lock()
	b.pending = append(b.pending, pkgs...)
	b.batches++
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Builder) take() ([]string, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pkgs, n := b.pending, b.batches
	b.pending, b.batches = nil, 0
	return pkgs, n
}

// Run builds queued packages until ctx ends.
func (b *Builder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.wake:
		}
		pkgs, n := b.take()
		if len(pkgs) == 0 {
			continue
		}
		res := b.Build(ctx, pkgs)
		res.Batches = n
		select {
		case b.results <- res:
		case <-ctx.Done():
			return nil
		}
	}
}

// Script returns the runtime code that builds the caches of pkgs.
func Script(pkgs []string) string {
	var sb strings.Builder
	sb.WriteString("library('nvimcom')\np <- c(")
	for i, p := range pkgs {
		if i > 0 {
			sb.WriteString(",\n  ")
		}
		sb.WriteString("'" + p + "'")
	}
	sb.WriteString(")\nnvimcom:::nvim.buildomnils(p)\n")
	return sb.String()
}

// Command returns the runtime invocation that sources the script.
func (b *Builder) Command() exec.Command {
	return exec.Command{
		Name: b.cfg.RPath,
		Args: []string{"--quiet", "--no-restore", "--no-save", "--no-echo", "--slave",
			"-f", filepath.Join(b.cfg.TmpDir, ScriptFile)},
		Env: []string{
			"RNVIM_TMPDIR=" + b.cfg.RemoteTmpDir,
			"RNVIM_COMPLDIR=" + b.cfg.RemoteComplDir,
		},
	}
}

// Build writes the script, runs the runtime and saves its output.
func (b *Builder) Build(ctx context.Context, pkgs []string) Result {
	res := Result{Packages: pkgs}
	script := filepath.Join(b.cfg.TmpDir, ScriptFile)
	if err := os.WriteFile(script, []byte(Script(pkgs)), 0o644); err != nil {
		res.Err = fmt.Errorf("write build script: %w", err)
		b.log.Error("build script", "error", res.Err)
		return res
	}

	b.log.Info("building caches", "packages", len(pkgs))
	out, err := b.exec.Run(ctx, b.Command())
	if err != nil {
		res.Err = fmt.Errorf("run %s: %w", b.cfg.RPath, err)
		b.log.Error("build failed", "error", res.Err)
		return res
	}
	res.ExitCode = out.ExitCode

	for name, data := range map[string][]byte{StdoutFile: out.Stdout, StderrFile: out.Stderr} {
		if err := os.WriteFile(filepath.Join(b.cfg.TmpDir, name), data, 0o644); err != nil {
			b.log.Warn("save build output", "file", name, "error", err)
		}
	}
	if res.Failed() {
		b.log.Warn("runtime exited with error", "code", out.ExitCode)
	}
	return res
}
