// Package editor defines the contracts the language service consumes from
// its editing host: open documents, lifecycle and edit notifications, and a
// marker sink with replace-set semantics. Workspace is the in-memory
// implementation backing both the LSP server and the tests.
package editor

import "github.com/quillhq/quill-lsp/internal/position"

// Disposable releases a previously acquired subscription or resource.
// Dispose must be safe to call more than once.
type Disposable interface {
	Dispose()
}

// DisposeFunc adapts a plain function to the Disposable interface.
type DisposeFunc func()

// Dispose implements Disposable
func (f DisposeFunc) Dispose() {
	if f != nil {
		f()
	}
}

// MarkerSeverity represents the severity of a displayed marker
type MarkerSeverity int

const (
	// MarkerError represents an error marker
	MarkerError MarkerSeverity = 1
	// MarkerWarning represents a warning marker
	MarkerWarning MarkerSeverity = 2
	// MarkerInfo represents an informational marker
	MarkerInfo MarkerSeverity = 3
	// MarkerHint represents a hint marker
	MarkerHint MarkerSeverity = 4
)

// Marker is a displayable diagnostic annotation anchored to a 1-based
// line/column range.
type Marker struct {
	Severity    MarkerSeverity
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
	Message     string
}

// Document is one open text buffer owned by the host.
type Document interface {
	// URI is the stable identity of the document.
	URI() string
	// LanguageID reports the language the host currently assigns to the document.
	LanguageID() string
	// Version increases with every content change.
	Version() int
	// Text returns the full current content, lines joined by "\n".
	Text() string
	// WordRangeAt returns the range of the word under the given 1-based
	// position. When the position does not touch a word, the returned range
	// is empty and anchored at the position.
	WordRangeAt(pos position.Position) position.Range
}

// Host is the surface of the editor the language service runs against.
// All subscription methods return a disposer; callers own exactly one
// Dispose per subscription.
type Host interface {
	// Document looks up an open document by URI.
	Document(uri string) (Document, bool)
	// Documents lists all currently open documents.
	Documents() []Document

	// OnDocumentOpen fires after a document is opened.
	OnDocumentOpen(fn func(Document)) Disposable
	// OnDocumentClose fires before a document is removed; the document is
	// still resolvable inside the callback.
	OnDocumentClose(fn func(Document)) Disposable
	// OnLanguageChange fires when the host reassigns a document's language.
	OnLanguageChange(fn func(doc Document, previous string)) Disposable
	// OnContentChange fires after every content change of one document.
	OnContentChange(uri string, fn func(Document)) Disposable

	MarkerSink
}

// MarkerSink stores markers per (document, owner). Publishing always
// replaces the owner's previous set for that document, never appends.
type MarkerSink interface {
	// SetMarkers replaces the marker set for uri under the given owner tag.
	// A nil or empty slice clears it.
	SetMarkers(uri, owner string, markers []Marker)
	// Markers returns the currently stored set for uri under owner.
	Markers(uri, owner string) []Marker
}
