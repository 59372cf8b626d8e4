// Package diagnostics keeps published markers consistent with each tracked
// Quill document's latest content: it subscribes to document lifecycle and
// edit events, debounces re-validation, calls the analysis worker, and
// publishes the converted markers under this service's owner tag.
package diagnostics

import (
	"strings"

	"github.com/quillhq/quill-lsp/internal/editor"
	"github.com/quillhq/quill-lsp/internal/position"
	"github.com/quillhq/quill-lsp/internal/worker"
)

// markerSeverity maps a worker severity onto the marker scale. Unrecognized
// values fall back to an informational marker rather than failing.
func markerSeverity(s worker.Severity) editor.MarkerSeverity {
	switch s {
	case worker.SeverityError:
		return editor.MarkerError
	case worker.SeverityWarning:
		return editor.MarkerWarning
	case worker.SeverityMessage:
		return editor.MarkerInfo
	case worker.SeveritySuggestion:
		return editor.MarkerHint
	default:
		return editor.MarkerInfo
	}
}

// flattenMessage renders a diagnostic's message as a single string. A flat
// message passes through unchanged; a chain is joined by newlines with each
// link after the second indented two spaces per level of depth.
func flattenMessage(d worker.Diagnostic) string {
	if d.Chain == nil {
		return d.Message
	}

	var b strings.Builder
	depth := 0
	for link := d.Chain; link != nil; link = link.Next {
		if depth > 0 {
			b.WriteByte('\n')
			b.WriteString(strings.Repeat("  ", depth-1))
		}
		b.WriteString(link.Text)
		depth++
	}
	return b.String()
}

// toMarker converts one worker diagnostic into an editor marker, resolving
// its offsets against the content that was validated.
func toMarker(content string, d worker.Diagnostic) editor.Marker {
	r := position.SpanToRange(content, d.Start, d.Length)
	return editor.Marker{
		Severity:    markerSeverity(d.Severity),
		StartLine:   r.Start.Line,
		StartColumn: r.Start.Column,
		EndLine:     r.End.Line,
		EndColumn:   r.End.Column,
		Message:     flattenMessage(d),
	}
}
