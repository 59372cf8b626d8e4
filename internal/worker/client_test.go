package worker

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/quill-lsp/internal/config"
)

type pipeRWC struct {
	in  *io.PipeReader
	out *io.PipeWriter
}

func (s pipeRWC) Read(p []byte) (int, error)  { return s.in.Read(p) }
func (s pipeRWC) Write(p []byte) (int, error) { return s.out.Write(p) }
func (s pipeRWC) Close() error {
	_ = s.in.Close()
	return s.out.Close()
}

// pipeWorker answers quill/diagnostics in-process over an io.Pipe pair,
// standing in for the spawned worker binary. Each diagnostic it returns
// echoes the request so tests can pin the parameter flow. When holdRequest
// is set, that request blocks until release is closed or the connection
// drops, letting tests hold a call in flight.
type pipeWorker struct {
	mu          sync.Mutex
	dials       int
	requests    int
	holdRequest int
	release     chan struct{}
}

func (w *pipeWorker) dial() (io.ReadWriteCloser, func() error, error) {
	w.mu.Lock()
	w.dials++
	w.mu.Unlock()

	toWorker, fromClient := io.Pipe()
	toClient, fromWorker := io.Pipe()

	stream := jsonrpc2.NewBufferedStream(pipeRWC{toWorker, fromWorker}, jsonrpc2.VSCodeObjectCodec{})
	jsonrpc2.NewConn(context.Background(), stream, jsonrpc2.HandlerWithError(
		func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
			if req.Method != MethodDiagnostics {
				return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: req.Method}
			}
			var params DiagnosticsParams
			if err := json.Unmarshal(*req.Params, &params); err != nil {
				return nil, err
			}

			w.mu.Lock()
			w.requests++
			n := w.requests
			w.mu.Unlock()
			if n == w.holdRequest {
				<-w.release
			}

			return []Diagnostic{{
				Severity: SeverityWarning,
				Start:    0,
				Length:   len(params.Content),
				Message:  params.URI,
			}}, nil
		}))

	return pipeRWC{toClient, fromClient}, func() error { return nil }, nil
}

func (w *pipeWorker) dialCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dials
}

func newPipeClient(t *testing.T, settings *config.Settings, fake *pipeWorker) *Client {
	t.Helper()
	c := NewClient("quill-worker", nil, settings, zerolog.Nop())
	c.dial = fake.dial
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClientRoundTrip(t *testing.T) {
	fake := &pipeWorker{}
	c := newPipeClient(t, config.NewSettings(), fake)

	handle, err := c.Handle(context.Background(), "file:///a.quill")
	require.NoError(t, err)

	diags, err := handle.Diagnostics(context.Background(), "{{ a }}")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, SeverityWarning, diags[0].Severity)
	assert.Equal(t, len("{{ a }}"), diags[0].Length)
	assert.Equal(t, "file:///a.quill", diags[0].Message)
	assert.Equal(t, 1, fake.dialCount())
}

func TestClientRestartsAfterIdleShutdown(t *testing.T) {
	settings := config.NewSettings()
	settings.SetWorkerIdleTimeout(15 * time.Millisecond)
	fake := &pipeWorker{}
	c := newPipeClient(t, settings, fake)

	handle, err := c.Handle(context.Background())
	require.NoError(t, err)
	_, err = handle.Diagnostics(context.Background(), "{{ a }}")
	require.NoError(t, err)

	// the idle timer stops the worker once the call is done
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.conn == nil
	}, 2*time.Second, 2*time.Millisecond)

	// the existing handle transparently restarts it
	_, err = handle.Diagnostics(context.Background(), "{{ b }}")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.dialCount())
}

func TestCallRetriesWhenIdleStopRacesTheCall(t *testing.T) {
	settings := config.NewSettings()
	settings.SetWorkerIdleTimeout(10 * time.Millisecond)
	fake := &pipeWorker{holdRequest: 2, release: make(chan struct{})}
	t.Cleanup(func() { close(fake.release) })
	c := newPipeClient(t, settings, fake)

	handle, err := c.Handle(context.Background())
	require.NoError(t, err)

	// the first call arms the idle timer
	_, err = handle.Diagnostics(context.Background(), "{{ a }}")
	require.NoError(t, err)

	// the second call is held in flight until the idle timer closes the
	// connection under it; the client must restart the worker and retry
	// instead of failing or panicking
	diags, err := handle.Diagnostics(context.Background(), "{{ b }}")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, len("{{ b }}"), diags[0].Length)
	assert.Equal(t, 2, fake.dialCount())
}

func TestClosedClientRejectsCalls(t *testing.T) {
	fake := &pipeWorker{}
	c := newPipeClient(t, config.NewSettings(), fake)

	handle, err := c.Handle(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = c.Handle(context.Background())
	assert.Error(t, err)
	_, err = handle.Diagnostics(context.Background(), "{{ a }}")
	assert.Error(t, err)
}
