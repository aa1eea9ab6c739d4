package server

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/rnvim/rnvimserver/logger"
)

// Outbox writes lines to the controlling process. Each call is one write so
// lines never interleave.
type Outbox struct {
	mu  sync.Mutex
	w   io.Writer
	log *slog.Logger
}

// NewOutbox returns an outbox writing to w.
func NewOutbox(w io.Writer) *Outbox {
	return &Outbox{w: w, log: logger.WithComponent("outbox")}
}

// Write sends line as is; callers include the newline.
func (o *Outbox) Write(line string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := io.WriteString(o.w, line); err != nil {
		o.log.Error("failed to write to editor", "error", err)
		return
	}
	if len(line) > 200 {
		o.log.Debug("sent", "bytes", len(line))
	} else {
		o.log.Debug("sent", "line", line)
	}
}

// Printf formats and sends one line.
func (o *Outbox) Printf(format string, args ...any) {
	o.Write(fmt.Sprintf(format, args...))
}
