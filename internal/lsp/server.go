package lsp

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/quillhq/quill-lsp/internal/editor"
	"github.com/quillhq/quill-lsp/internal/lsp/protocol"
)

// Server is the editor-facing LSP server. It feeds the workspace from the
// textDocument lifecycle notifications and pushes the workspace's markers
// back to the client as publishDiagnostics notifications.
type Server struct {
	connMu              sync.Mutex
	conn                *jsonrpc2.Conn
	workspace           *editor.Workspace
	completionProviders []CompletionProvider
	markerDisposer      editor.Disposable
	log                 zerolog.Logger

	closersMu sync.Mutex
	closers   []func() error

	// OnReloadConfig, when set, handles the quill/reloadConfig notification.
	OnReloadConfig func() error
}

// NewServer creates a new LSP server backed by the given workspace
func NewServer(workspace *editor.Workspace, log zerolog.Logger) *Server {
	s := &Server{
		workspace: workspace,
		log:       log.With().Str("component", "lsp").Logger(),
	}
	s.markerDisposer = workspace.OnMarkersChange(s.publishDiagnostics)
	return s
}

// RegisterCompletionProvider registers a completion provider with the server
func (s *Server) RegisterCompletionProvider(provider CompletionProvider) {
	s.completionProviders = append(s.completionProviders, provider)
}

// RegisterCloser adds a cleanup function run on shutdown
func (s *Server) RegisterCloser(fn func() error) {
	s.closersMu.Lock()
	defer s.closersMu.Unlock()
	s.closers = append(s.closers, fn)
}

// CloseAll runs every registered cleanup function exactly once
func (s *Server) CloseAll() error {
	s.closersMu.Lock()
	closers := s.closers
	s.closers = nil
	s.closersMu.Unlock()

	if s.markerDisposer != nil {
		s.markerDisposer.Dispose()
		s.markerDisposer = nil
	}

	var firstErr error
	for _, fn := range closers {
		if err := fn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Start serves LSP over the given reader/writer pair until the client
// disconnects.
func (s *Server) Start(in io.Reader, out io.Writer) error {
	stream := jsonrpc2.NewBufferedStream(rwc{in, out}, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(context.Background(), stream, jsonrpc2.HandlerWithError(s.handle))
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	<-conn.DisconnectNotify()
	return nil
}

// rwc combines a reader and writer into a single ReadWriteCloser
type rwc struct {
	io.Reader
	io.Writer
}

// Close implements io.Closer
func (rwc) Close() error {
	return nil
}

// handle processes incoming JSON-RPC requests and notifications
func (s *Server) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	switch req.Method {
	case "initialize":
		var params protocol.InitializeParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeParseError, Message: err.Error()}
		}
		return s.initialize(&params), nil

	case "initialized":
		return nil, nil

	case "textDocument/didOpen":
		var params protocol.DidOpenTextDocumentParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
		doc := params.TextDocument
		s.workspace.Open(doc.URI, doc.LanguageID, doc.Text, doc.Version)
		return nil, nil

	case "textDocument/didChange":
		var params protocol.DidChangeTextDocumentParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
		if len(params.ContentChanges) > 0 {
			last := params.ContentChanges[len(params.ContentChanges)-1]
			s.workspace.SetText(params.TextDocument.URI, last.Text, params.TextDocument.Version)
		}
		return nil, nil

	case "textDocument/didClose":
		var params protocol.DidCloseTextDocumentParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
		s.workspace.Close(params.TextDocument.URI)
		return nil, nil

	case "textDocument/completion":
		var params protocol.CompletionParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
		return s.completion(ctx, &params), nil

	case "quill/reloadConfig":
		if s.OnReloadConfig != nil {
			if err := s.OnReloadConfig(); err != nil {
				s.log.Warn().Err(err).Msg("config reload failed")
			}
		}
		return nil, nil

	case "shutdown":
		if err := s.CloseAll(); err != nil {
			s.log.Warn().Err(err).Msg("cleanup failed during shutdown")
		}
		s.log.Info().Msg("shutdown requested, waiting for exit notification")
		return nil, nil

	case "exit":
		s.log.Info().Msg("exit notification received")
		if err := conn.Close(); err != nil {
			s.log.Warn().Err(err).Msg("error closing connection")
		}
		return nil, nil

	default:
		// Notifications without an ID need no response.
		if req.ID == (jsonrpc2.ID{}) {
			return nil, nil
		}
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "Method not implemented: " + req.Method}
	}
}

// initialize handles the LSP initialize request
func (s *Server) initialize(params *protocol.InitializeParams) interface{} {
	return map[string]interface{}{
		"capabilities": map[string]interface{}{
			"textDocumentSync": map[string]interface{}{
				"openClose": true,
				"change":    1, // Full sync
			},
			"completionProvider": map[string]interface{}{
				"triggerCharacters": s.collectTriggerCharacters(),
			},
		},
	}
}

// completion handles textDocument/completion requests
func (s *Server) completion(ctx context.Context, params *protocol.CompletionParams) *protocol.CompletionList {
	var items []protocol.CompletionItem
	for _, provider := range s.completionProviders {
		items = append(items, provider.GetCompletions(ctx, params)...)
	}
	return &protocol.CompletionList{
		IsIncomplete: false,
		Items:        items,
	}
}

// collectTriggerCharacters collects deduplicated trigger characters from all providers
func (s *Server) collectTriggerCharacters() []string {
	seen := make(map[string]bool)
	var chars []string
	for _, provider := range s.completionProviders {
		for _, char := range provider.GetTriggerCharacters() {
			if !seen[char] {
				seen[char] = true
				chars = append(chars, char)
			}
		}
	}
	return chars
}

// publishDiagnostics pushes the merged marker sets for a URI to the client,
// converting 1-based marker ranges to 0-based protocol positions.
func (s *Server) publishDiagnostics(uri string) {
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		return
	}

	var diagnostics []protocol.Diagnostic
	for owner, markers := range s.workspace.AllMarkers(uri) {
		for _, m := range markers {
			diagnostics = append(diagnostics, protocol.Diagnostic{
				Range: protocol.Range{
					Start: protocol.Position{Line: m.StartLine - 1, Character: m.StartColumn - 1},
					End:   protocol.Position{Line: m.EndLine - 1, Character: m.EndColumn - 1},
				},
				Severity: protocol.DiagnosticSeverity(m.Severity),
				Source:   owner,
				Message:  m.Message,
			})
		}
	}
	if diagnostics == nil {
		diagnostics = []protocol.Diagnostic{}
	}

	if err := conn.Notify(context.Background(), "textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	}); err != nil {
		s.log.Warn().Err(err).Str("uri", uri).Msg("failed to publish diagnostics")
	}
}
