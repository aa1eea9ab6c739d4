package server

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rnvim/rnvimserver/config"
	"github.com/rnvim/rnvimserver/dump"
	"github.com/rnvim/rnvimserver/exec"
)

const testSecret = "s3cr3t"

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Secret = testSecret
	cfg.ID = "42"
	cfg.ComplDir = t.TempDir()
	cfg.TmpDir = t.TempDir()
	cfg.WatchLibraries = false
	cfg.Listen = config.Listen{Host: "127.0.0.1"}
	cfg.Finalize()
	require.NoError(t, cfg.Validate())
	return cfg
}

type fixture struct {
	cfg    *config.Config
	out    *syncBuffer
	errOut *syncBuffer
	mock   *exec.MockExecutor
	srv    *Server
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	f := &fixture{cfg: cfg, out: &syncBuffer{}, errOut: &syncBuffer{}, mock: exec.NewMockExecutor()}
	f.srv = New(cfg, Options{Stdout: f.out, Stderr: f.errOut, Executor: f.mock})
	return f
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// statsCache writes a built cache for stats 4.3.0 into the completion dir.
func statsCache(t *testing.T, cfg *config.Config) {
	t.Helper()
	writeFile(t, filepath.Join(cfg.ComplDir, "omnils_stats_4.3.0"),
		dump.Line("lm", "\x03", "function", "stats", "formula, data", "Fitting Linear Models", "lm is used to fit linear models")+
			dump.Line("median", "\x03", "function", "stats", "[\x12not_checked\x12]", "Median Value", "Compute the median"))
	writeFile(t, filepath.Join(cfg.ComplDir, "fun_stats_4.3.0"), "lm\nmedian\n")
	writeFile(t, filepath.Join(cfg.ComplDir, "args_stats_4.3.0"), "lm\x06formula\x05\x06data\x05NULL\x06\n")
}

func globalDump() string {
	return dump.Line("x", "[", "list", ".GlobalEnv", "", "", "[#] 1") +
		dump.Line("x$a", "{", "num", ".GlobalEnv", "", "", "num a") +
		dump.Line("xy", "{", "num", ".GlobalEnv", "", "", "num 3")
}

func waitFor(t *testing.T, buf *syncBuffer, substr string) {
	t.Helper()
	assert.Eventually(t, func() bool { return strings.Contains(buf.String(), substr) },
		5*time.Second, 10*time.Millisecond, "waiting for %q in %q", substr, buf)
}

func reply(id, items string) string {
	body := "lua require('cmp_r').asynccb(" + id + ", {" + items + "})"
	return "\x11" + strconv.Itoa(len(body)) + "\x11" + body + "\n"
}
