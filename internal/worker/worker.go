// Package worker defines the contract of the out-of-process analysis
// worker and the jsonrpc2 client used to reach it. The worker owns all
// parsing and validation of Quill templates; this side only ships document
// content over and receives diagnostics back.
package worker

import "context"

// Severity is the worker-side severity of a diagnostic. Values outside the
// known set are mapped to an informational marker by the converter, never
// rejected.
type Severity int

const (
	// SeverityError marks content the worker cannot accept
	SeverityError Severity = iota
	// SeverityWarning marks content that is suspicious but renderable
	SeverityWarning
	// SeverityMessage carries neutral information
	SeverityMessage
	// SeveritySuggestion proposes an improvement
	SeveritySuggestion
)

// Chain is a linked list of nested diagnostic messages, each link one level
// deeper in the cause hierarchy.
type Chain struct {
	Text string `json:"text" msgpack:"text"`
	Next *Chain `json:"next,omitempty" msgpack:"next"`
}

// Diagnostic is one finding produced by the worker. Start and Length are
// linear byte offsets into the validated content. Message carries a flat
// text; Chain, when set, takes precedence and carries a nested one.
type Diagnostic struct {
	Severity Severity `json:"severity" msgpack:"severity"`
	Start    int      `json:"start" msgpack:"start"`
	Length   int      `json:"length" msgpack:"length"`
	Message  string   `json:"message,omitempty" msgpack:"message"`
	Chain    *Chain   `json:"chain,omitempty" msgpack:"chain"`
}

// DiagnosticsParams is the wire parameter of the quill/diagnostics request.
type DiagnosticsParams struct {
	URI     string `json:"uri"`
	Content string `json:"content"`
}

// MethodDiagnostics is the jsonrpc2 method the worker serves.
const MethodDiagnostics = "quill/diagnostics"

// Handle is an opaque reference to the analysis service, scoped to the
// documents it was requested for.
type Handle interface {
	// Diagnostics validates content and returns the worker's findings.
	Diagnostics(ctx context.Context, content string) ([]Diagnostic, error)
}

// HandleProvider resolves handles to the analysis service. Resolution may
// start a worker process and can fail; callers decide whether that failure
// is fatal (the diagnostics adapter swallows it, the completion provider
// only uses it as a warm-up signal).
type HandleProvider interface {
	Handle(ctx context.Context, uris ...string) (Handle, error)
}
