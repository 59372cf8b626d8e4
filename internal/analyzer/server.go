package analyzer

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/quillhq/quill-lsp/internal/worker"
)

// Serve runs the analysis worker over the given reader/writer pair until
// the peer disconnects. It answers quill/diagnostics requests with the
// findings of Analyze.
func Serve(in io.Reader, out io.Writer, log zerolog.Logger) error {
	log = log.With().Str("component", "worker").Logger()

	handle := func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
		switch req.Method {
		case worker.MethodDiagnostics:
			var params worker.DiagnosticsParams
			if err := json.Unmarshal(*req.Params, &params); err != nil {
				return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeParseError, Message: err.Error()}
			}
			diags := Analyze(params.Content)
			log.Debug().Str("uri", params.URI).Int("diagnostics", len(diags)).Msg("validated document")
			if diags == nil {
				diags = []worker.Diagnostic{}
			}
			return diags, nil

		case "exit":
			if err := conn.Close(); err != nil {
				log.Warn().Err(err).Msg("error closing connection")
			}
			return nil, nil

		default:
			if req.ID == (jsonrpc2.ID{}) {
				return nil, nil
			}
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "Method not implemented: " + req.Method}
		}
	}

	stream := jsonrpc2.NewBufferedStream(stdrwc{in, out}, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(context.Background(), stream, jsonrpc2.HandlerWithError(handle))

	<-conn.DisconnectNotify()
	return nil
}

// stdrwc combines a reader and writer into a single ReadWriteCloser
type stdrwc struct {
	io.Reader
	io.Writer
}

// Close implements io.Closer
func (stdrwc) Close() error {
	return nil
}
