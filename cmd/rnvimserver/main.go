package main

import (
	"os"

	"github.com/rnvim/rnvimserver/logger"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	code := run(os.Args, os.Stdin, os.Stdout, os.Stderr, os.Getenv)
	logger.Close()
	os.Exit(code)
}
