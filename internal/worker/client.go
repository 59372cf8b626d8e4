package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/quillhq/quill-lsp/internal/config"
)

// dialFunc opens a transport to the worker and returns a function that
// reaps the process once the transport is closed.
type dialFunc func() (io.ReadWriteCloser, func() error, error)

// Client resolves worker handles backed by a single quill-worker process
// reached over stdio jsonrpc2. The process is started lazily on the first
// handle resolution and stopped again after the configured idle timeout;
// the next call transparently restarts it.
type Client struct {
	path     string
	args     []string
	settings *config.Settings
	log      zerolog.Logger
	dial     dialFunc

	mu        sync.Mutex
	conn      *jsonrpc2.Conn
	wait      func() error
	idleTimer *time.Timer
	closed    bool
}

// NewClient creates a client that will spawn the worker binary at path.
func NewClient(path string, args []string, settings *config.Settings, log zerolog.Logger) *Client {
	c := &Client{
		path:     path,
		args:     args,
		settings: settings,
		log:      log.With().Str("component", "worker-client").Logger(),
	}
	c.dial = c.spawn
	return c
}

// Handle implements HandleProvider. The returned handle stays valid across
// idle shutdowns of the worker process.
func (c *Client) Handle(ctx context.Context, uris ...string) (Handle, error) {
	if _, err := c.ensureStarted(); err != nil {
		return nil, err
	}
	return &clientHandle{client: c, uris: uris}, nil
}

// Close stops the worker process. The client must not be used afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.stopLocked()
}

// ensureStarted returns a live connection, starting the worker process when
// none is running. The returned conn is the one guaranteed under the lock;
// callers must use it rather than re-reading the shared field, which the
// idle timer may nil out at any moment.
func (c *Client) ensureStarted() (*jsonrpc2.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("worker client is closed")
	}
	if c.conn != nil {
		return c.conn, nil
	}

	rwc, wait, err := c.dial()
	if err != nil {
		return nil, err
	}

	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	c.conn = jsonrpc2.NewConn(context.Background(), stream, jsonrpc2.HandlerWithError(
		func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
			// The worker never calls back.
			return nil, nil
		}))
	c.wait = wait
	return c.conn, nil
}

// spawn starts the worker binary and wires its stdio into a transport.
func (c *Client) spawn() (io.ReadWriteCloser, func() error, error) {
	cmd := exec.Command(c.path, c.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open worker stdout: %w", err)
	}
	cmd.Stderr = c.log

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("failed to start worker %q: %w", c.path, err)
	}

	c.log.Debug().Str("path", c.path).Int("pid", cmd.Process.Pid).Msg("worker started")
	return procStream{stdout, stdin}, cmd.Wait, nil
}

// call performs one request. The idle timer can stop the connection between
// resolution and the request going out, so a call that finds its connection
// already closed is retried once against a freshly started worker.
func (c *Client) call(ctx context.Context, method string, params, result interface{}) error {
	conn, err := c.ensureStarted()
	if err != nil {
		return err
	}

	err = conn.Call(ctx, method, params, result)
	if errors.Is(err, jsonrpc2.ErrClosed) {
		if conn, err = c.ensureStarted(); err != nil {
			return err
		}
		err = conn.Call(ctx, method, params, result)
	}
	c.touchIdleTimer()
	return err
}

// touchIdleTimer arms (or re-arms) the idle shutdown. A timeout of zero or
// below disables idling out.
func (c *Client) touchIdleTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
	timeout := c.settings.WorkerIdleTimeout()
	if timeout <= 0 || c.conn == nil {
		return
	}
	c.idleTimer = time.AfterFunc(timeout, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || c.conn == nil {
			return
		}
		c.log.Debug().Dur("idle", timeout).Msg("stopping idle worker")
		if err := c.stopLocked(); err != nil {
			c.log.Warn().Err(err).Msg("failed to stop idle worker")
		}
	})
}

func (c *Client) stopLocked() error {
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if c.wait != nil {
		// Closing the transport makes the worker exit; reap it.
		if waitErr := c.wait(); waitErr != nil && err == nil {
			err = waitErr
		}
		c.wait = nil
	}
	return err
}

type clientHandle struct {
	client *Client
	uris   []string
}

// Diagnostics implements Handle
func (h *clientHandle) Diagnostics(ctx context.Context, content string) ([]Diagnostic, error) {
	uri := ""
	if len(h.uris) > 0 {
		uri = h.uris[0]
	}

	var result []Diagnostic
	if err := h.client.call(ctx, MethodDiagnostics, DiagnosticsParams{URI: uri, Content: content}, &result); err != nil {
		return nil, fmt.Errorf("worker diagnostics call failed: %w", err)
	}
	return result, nil
}

// procStream combines the worker's stdout and stdin into the
// ReadWriteCloser jsonrpc2 expects.
type procStream struct {
	io.Reader
	w io.WriteCloser
}

// Write implements io.Writer
func (s procStream) Write(p []byte) (int, error) { return s.w.Write(p) }

// Close implements io.Closer
func (s procStream) Close() error { return s.w.Close() }
