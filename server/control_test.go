package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rnvim/rnvimserver/builder"
)

// withStats attaches stats through the runtime and completes its build.
func withStats(t *testing.T) *fixture {
	t.Helper()
	cfg := testConfig(t)
	statsCache(t, cfg)
	f := newFixture(t, cfg)
	f.srv.handleRuntime([]byte("+Lstats\x034.3.0\x04\n"))
	require.Equal(t, 1, f.srv.inflight)
	f.srv.finishBuild(builder.Result{Packages: []string{"stats"}, Batches: 1})
	require.Equal(t, 0, f.srv.inflight)
	return f
}

func TestFinishBuild_LoadsCachesAndNotifies(t *testing.T) {
	f := withStats(t)

	p := f.srv.Catalog().Get("stats")
	require.NotNil(t, p)
	assert.True(t, p.Built)
	assert.Equal(t, 2, p.NumObjects())
	assert.Equal(t, "stats_4.3.0\n", readFile(t, f.cfg.ReadyListPath()))
	assert.Equal(t, "lua require('r.server').update_Rhelp_list()\n", f.out.String())
}

func TestFinishBuild_ReportsRuntimeFailure(t *testing.T) {
	f := newFixture(t, testConfig(t))
	f.srv.finishBuild(builder.Result{ExitCode: builder.ExitPartial})
	assert.NotContains(t, f.out.String(), "show_bol_error")

	f.srv.finishBuild(builder.Result{ExitCode: 1})
	assert.Contains(t, f.out.String(), "lua require('r.server').show_bol_error('1')\n")
}

func TestCompletionCommands(t *testing.T) {
	f := withStats(t)
	f.srv.handleCommand("41")

	tests := []struct {
		name string
		line string
		want string
	}{
		{"names", "53\x03l", reply("3", "{word = 'lm', menu = 'function [stats]', user_data = {cls = 'f', pkg = 'stats'}}, ")},
		{"qualified names", "58\x03stats::me", reply("8", "{word = 'stats::median', menu = 'function [stats]', user_data = {cls = 'f', pkg = 'stats'}}, ")},
		{"libraries", "54\x03\x04st", reply("4", "")},
		{"arguments", "55\x03\x05\x05lm", reply("5", "{pkg = 'stats', fnm = 'lm', args = {formula, data}},")},
		{"malformed", "5abc", reply("abc", "")},
		{"info", "6stats::lm\x02stats",
			"lua require('cmp_r').finish_ci({cls = 'f', word = 'lm', pkg = 'stats', usage = {formula, data}, ttl = 'Fitting Linear Models', descr = 'lm is used to fit linear models'})\n"},
		{"info unknown", "6nothere\x02.GlobalEnv", "lua require('cmp_r').finish_ci({})\n"},
		{"resolve", "7stats\x02lm\x02data", "lua require'cmp_r'.finish_get_args('NULL')\n"},
		{"resolve unknown", "7stats\x02lm\x02weights", "lua require'cmp_r'.finish_get_args('')\n"},
		{"resolve malformed", "7stats", "lua require'cmp_r'.finish_get_args('')\n"},
		{"loaded packages", "42", "lua require('r.server').echo_nrs_info('Loaded packages: stats')\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(f.out.String())
			require.NoError(t, f.srv.handleCommand(tt.line))
			assert.Equal(t, tt.want, f.out.String()[before:])
		})
	}
}

func TestInfo_UncheckedFunctionWithoutRuntime(t *testing.T) {
	f := withStats(t)
	before := len(f.out.String())
	f.srv.handleCommand("6median\x02stats")
	assert.Equal(t,
		"lua require('cmp_r').finish_ci({cls = 'f', word = 'median', pkg = 'stats', usage = {}, ttl = 'Median Value', descr = 'Compute the median'})\n",
		f.out.String()[before:])
}

func TestReadArgs_DeferredWhileBuilding(t *testing.T) {
	cfg := testConfig(t)
	statsCache(t, cfg)
	f := newFixture(t, cfg)
	f.srv.handleRuntime([]byte("+Lstats\x034.3.0\x04"))

	f.srv.handleCommand("41")
	assert.True(t, f.srv.argsPending)
	assert.Nil(t, f.srv.Catalog().Get("stats").Args)

	f.srv.finishBuild(builder.Result{Packages: []string{"stats"}, Batches: 1})
	assert.False(t, f.srv.argsPending)
	assert.NotNil(t, f.srv.Catalog().Get("stats").Args)
}

func TestReadArgs_FreshLockSkipsRead(t *testing.T) {
	cfg := testConfig(t)
	statsCache(t, cfg)
	writeFile(t, filepath.Join(cfg.ComplDir, "args_lock"), "")
	f := newFixture(t, cfg)
	f.srv.handleRuntime([]byte("+Lstats\x034.3.0\x04"))
	f.srv.handleCommand("41")

	f.srv.finishBuild(builder.Result{Batches: 1})
	assert.True(t, f.srv.argsPending)
	assert.Nil(t, f.srv.Catalog().Get("stats").Args)

	f.srv.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	f.srv.finishBuild(builder.Result{})
	assert.NotNil(t, f.srv.Catalog().Get("stats").Args)
	_, err := os.Stat(filepath.Join(cfg.ComplDir, "args_lock"))
	assert.True(t, os.IsNotExist(err), "stale lock removed")
}

func TestBrowserCommands_GlobalView(t *testing.T) {
	f := newFixture(t, testConfig(t))
	f.srv.handleRuntime([]byte("+G" + globalDump()))
	assert.NoFileExists(t, f.cfg.GlobalViewPath(), "no view before the editor asks")

	f.srv.handleCommand("31")
	assert.Equal(t, ".GlobalEnv | Libraries\n\n"+
		"   [#x\t[#] 1\n"+
		"   {#xy\tnum 3\n", readFile(t, f.cfg.GlobalViewPath()))
	assert.Equal(t, "lua require('r.browser').update_OB('GlobalEnv')\n", f.out.String())

	f.srv.handleCommand("33Gx")
	assert.Equal(t, ".GlobalEnv | Libraries\n\n"+
		"   [#x\t[#] 1\n"+
		"   `- {#a\tnum a\n"+
		"   {#xy\tnum 3\n", readFile(t, f.cfg.GlobalViewPath()))

	f.srv.handleCommand("34CG")
	assert.NotContains(t, readFile(t, f.cfg.GlobalViewPath()), "{#a")
	f.srv.handleCommand("34OG")
	assert.Contains(t, readFile(t, f.cfg.GlobalViewPath()), "`- {#a\tnum a\n")

	f.srv.handleCommand("37")
	dumped := readFile(t, f.cfg.StateDumpPath())
	assert.Contains(t, dumped, "path: x\n")
	assert.Contains(t, dumped, "open: true")

	f.srv.handleCommand("43")
	assert.Empty(t, f.srv.engine.Global())
	assert.Equal(t, ".GlobalEnv | Libraries\n\n", readFile(t, f.cfg.GlobalViewPath()))
}

func TestUpdateGlobal_SkipsIdenticalAndKeepsOnError(t *testing.T) {
	f := newFixture(t, testConfig(t))
	f.srv.handleCommand("31")
	f.srv.handleRuntime([]byte("+G" + globalDump()))
	f.srv.handleRuntime([]byte("+G" + globalDump()))
	assert.Equal(t, 2, strings.Count(f.out.String(), "update_OB('GlobalEnv')"), "identical snapshot not re-rendered")

	f.srv.handleRuntime([]byte("+Gbroken\x06line\n"))
	assert.Len(t, f.srv.engine.Global(), 3)
	assert.Equal(t, 2, strings.Count(f.out.String(), "update_OB('GlobalEnv')"))
}

func TestBrowserCommands_LibraryView(t *testing.T) {
	f := withStats(t)
	f.srv.handleCommand("32")
	assert.Equal(t, "Libraries | .GlobalEnv\n\n   :#stats\t\n", readFile(t, f.cfg.LibraryViewPath()))
	assert.True(t, strings.HasSuffix(f.out.String(), "lua require('r.browser').update_OB('libraries')\n"))

	f.srv.handleCommand("33Lstats:")
	assert.Equal(t, "Libraries | .GlobalEnv\n\n"+
		"   :#stats\t\n"+
		"   |- (#lm\tFitting Linear Models\n"+
		"   `- (#median\tMedian Value\n", readFile(t, f.cfg.LibraryViewPath()))

	f.srv.handleCommand("34CL")
	assert.Equal(t, "Libraries | .GlobalEnv\n\n   :#stats\t\n", readFile(t, f.cfg.LibraryViewPath()))
	f.srv.handleCommand("34OL")
	assert.Equal(t, "Libraries | .GlobalEnv\n\n   :#stats\t\n", readFile(t, f.cfg.LibraryViewPath()),
		"opening all leaves package nodes closed")
}

func TestRuntimeMessages(t *testing.T) {
	f := newFixture(t, testConfig(t))

	f.srv.handleRuntime([]byte("lua print('hi')"))
	assert.Equal(t, "\x1115\x11lua print('hi')\n", f.out.String())

	before := len(f.out.String())
	f.srv.handleRuntime([]byte("+"))
	f.srv.handleRuntime([]byte("+Zwhat"))
	assert.Equal(t, before, len(f.out.String()))

	f.srv.handleRuntime(nil)
	assert.Equal(t, "\x110\x11\n", f.out.String()[before:])
	before = len(f.out.String())

	f.srv.handleRuntime([]byte("+A7;;lm;"))
	assert.Equal(t, reply("7", ""), f.out.String()[before:])

	before = len(f.out.String())
	f.srv.handleRuntime([]byte("+Abad"))
	assert.Equal(t, reply("bad", ""), f.out.String()[before:])
}

func TestUpdatePackages_RemovesDetached(t *testing.T) {
	f := withStats(t)
	f.srv.handleRuntime([]byte("+Lutils\x034.3.0\x04\n"))
	assert.Equal(t, []string{"utils"}, f.srv.Catalog().Names())
	assert.Equal(t, 1, f.srv.inflight)
}

func TestHandleCommand_UnknownAndQuit(t *testing.T) {
	f := newFixture(t, testConfig(t))
	require.NoError(t, f.srv.handleCommand(""))
	require.NoError(t, f.srv.handleCommand("8x"))
	require.NoError(t, f.srv.handleCommand("3"))
	assert.Contains(t, f.errOut.String(), "Unknown command received: [56] 8x\n")
	assert.ErrorIs(t, f.srv.handleCommand("9"), errQuit)
}

func TestSendRuntime_WithoutLink(t *testing.T) {
	f := newFixture(t, testConfig(t))
	f.srv.handleCommand("2nvimcom:::ping()")
	assert.Empty(t, f.out.String())
}
