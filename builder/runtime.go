package builder

import (
	"context"
	"fmt"
	osexec "os/exec"
	"strings"

	"github.com/rnvim/rnvimserver/exec"
)

// maxVersionLen bounds the version string kept for logging.
const maxVersionLen = 100

// LookRuntime returns the path of the runtime executable rpath.
func LookRuntime(rpath string) (string, error) {
	path, err := osexec.LookPath(rpath)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: caches of new packages will not be built", rpath)
	}
	return path, nil
}

// RuntimeVersion returns the first line of "rpath --version", or "" when
// the runtime cannot tell.
func RuntimeVersion(ctx context.Context, ex exec.CommandExecutor, rpath string) string {
	out, err := ex.Run(ctx, exec.Command{Name: rpath, Args: []string{"--version"}})
	if err != nil || out.ExitCode != 0 {
		return ""
	}
	line, _, _ := strings.Cut(string(out.Stdout), "\n")
	line = strings.TrimSpace(line)
	if len(line) > maxVersionLen {
		line = line[:maxVersionLen] + "..."
	}
	return line
}
