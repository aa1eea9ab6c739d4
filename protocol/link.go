package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rnvim/rnvimserver/logger"
)

// Default port range and bind address.
const (
	PortStart   = 10101
	PortEnd     = 10199
	DefaultHost = "0.0.0.0"
)

// ListenOptions select where the link listens. Zero values select the
// defaults; First and Last both 0 with a non-empty Host picks any free
// port.
type ListenOptions struct {
	Host  string
	First int
	Last  int
}

func (o ListenOptions) withDefaults() ListenOptions {
	if o.Host == "" {
		o.Host = DefaultHost
		if o.First == 0 && o.Last == 0 {
			o.First, o.Last = PortStart, PortEnd
		}
	}
	return o
}

// Link is the connection to the runtime. It accepts a single connection and
// ends when that connection is lost; a new Link is needed to reconnect.
type Link struct {
	secret   string
	listener net.Listener
	port     int

	conn      net.Conn
	connMu    sync.Mutex
	connected atomic.Bool
	closed    atomic.Bool

	log *slog.Logger
}

// Listen binds the first free port of the range. Failures map to exit
// codes: no socket is ExitSocket, an exhausted range is ExitNoPort and a
// failed listen is ExitListen.
func Listen(ctx context.Context, secret string, opts ListenOptions) (*Link, error) {
	opts = opts.withDefaults()
	log := logger.WithComponent("protocol")

	var lc net.ListenConfig
	var lastErr error
	for port := opts.First; port <= opts.Last; port++ {
		ln, err := lc.Listen(ctx, "tcp4", net.JoinHostPort(opts.Host, strconv.Itoa(port)))
		if err == nil {
			l := &Link{
				secret:   secret,
				listener: ln,
				port:     ln.Addr().(*net.TCPAddr).Port,
				log:      log,
			}
			log.Info("listening", "port", l.port)
			return l, nil
		}
		switch syscallOf(err) {
		case "socket":
			return nil, Fatal(ExitSocket, fmt.Errorf("socket creation failed: %w", err))
		case "listen":
			return nil, Fatal(ExitListen, fmt.Errorf("listen failed: %w", err))
		}
		lastErr = err
	}
	return nil, Fatal(ExitNoPort, fmt.Errorf("failed to bind any port in the range %d-%d: %w", opts.First, opts.Last, lastErr))
}

// Port returns the bound port.
func (l *Link) Port() int { return l.port }

// Connected reports whether a runtime connection is active.
func (l *Link) Connected() bool { return l.connected.Load() }

// Serve accepts one connection and passes every frame body to handle until
// the connection is lost, then closes the listener. handle runs on the
// calling goroutine. An accept failure is fatal with ExitAccept unless the
// link was closed or ctx ended.
func (l *Link) Serve(ctx context.Context, handle func(body []byte)) error {
	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	conn, err := l.listener.Accept()
	if err != nil {
		if l.closed.Load() || ctx.Err() != nil {
			return nil
		}
		l.Close()
		return Fatal(ExitAccept, fmt.Errorf("server accept failed: %w", err))
	}
	l.connMu.Lock()
	if l.closed.Load() {
		l.connMu.Unlock()
		conn.Close()
		return nil
	}
	l.conn = conn
	l.connected.Store(true)
	l.connMu.Unlock()
	l.log.Info("runtime connected", "remote", conn.RemoteAddr().String())

	defer l.Close()

	fr := NewReader(conn, l.secret)
	for {
		f, err := fr.Next()
		if err != nil {
			if errors.Is(err, ErrBadSecret) {
				l.log.Warn("dropping message", "error", err)
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				l.log.Warn("runtime connection lost", "error", err)
			} else {
				l.log.Info("runtime disconnected")
			}
			return nil
		}
		if f.Divergent() {
			l.log.Warn("divergent message size", "received", len(f.Body), "declared", f.Declared)
		}
		handle(f.Body)
	}
}

// Send writes msg to the runtime.
func (l *Link) Send(msg string) error {
	l.connMu.Lock()
	defer l.connMu.Unlock()
	if l.conn == nil || !l.connected.Load() {
		l.log.Warn("runtime is not connected", "msg_len", len(msg))
		return ErrNotConnected
	}
	if _, err := io.WriteString(l.conn, msg); err != nil {
		l.log.Error("partial or failed write", "error", err)
		return fmt.Errorf("send to runtime: %w", err)
	}
	return nil
}

// Close shuts the listener and any connection. Safe to call more than once.
func (l *Link) Close() error {
	if l.closed.Swap(true) {
		return nil
	}
	l.connected.Store(false)
	err := l.listener.Close()
	l.connMu.Lock()
	if l.conn != nil {
		l.conn.Close()
	}
	l.connMu.Unlock()
	return err
}
