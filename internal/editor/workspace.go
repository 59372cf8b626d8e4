package editor

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quillhq/quill-lsp/internal/position"
)

// TextDocument represents a document open in the editor
type TextDocument struct {
	mu         sync.RWMutex
	uri        string
	languageID string
	version    int
	text       string
}

// URI implements Document
func (d *TextDocument) URI() string { return d.uri }

// LanguageID implements Document
func (d *TextDocument) LanguageID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.languageID
}

// Version implements Document
func (d *TextDocument) Version() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// Text implements Document
func (d *TextDocument) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text
}

// WordRangeAt implements Document
func (d *TextDocument) WordRangeAt(pos position.Position) position.Range {
	d.mu.RLock()
	text := d.text
	d.mu.RUnlock()

	offset := position.PositionToOffset(text, pos)

	start := offset
	for start > 0 && isWordByte(text[start-1]) {
		start--
	}
	end := offset
	for end < len(text) && isWordByte(text[end]) {
		end++
	}

	return position.Range{
		Start: position.OffsetToPosition(text, start),
		End:   position.OffsetToPosition(text, end),
	}
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

type listenerSet[T any] struct {
	seq int
	fns map[int]T
}

func (l *listenerSet[T]) add(fn T) int {
	if l.fns == nil {
		l.fns = make(map[int]T)
	}
	l.seq++
	l.fns[l.seq] = fn
	return l.seq
}

func (l *listenerSet[T]) snapshot() []T {
	out := make([]T, 0, len(l.fns))
	for _, fn := range l.fns {
		out = append(out, fn)
	}
	return out
}

// Workspace is the in-memory host implementation. The LSP layer feeds it
// from textDocument/did* notifications; the diagnostics and completion
// adapters consume it through the Host interface.
type Workspace struct {
	mu sync.RWMutex

	documents map[string]*TextDocument
	markers   map[string]map[string][]Marker

	openListeners     listenerSet[func(Document)]
	closeListeners    listenerSet[func(Document)]
	languageListeners listenerSet[func(Document, string)]
	changeListeners   map[string]*listenerSet[func(Document)]
	markerListeners   listenerSet[func(string)]

	log zerolog.Logger
}

// NewWorkspace creates an empty workspace
func NewWorkspace(log zerolog.Logger) *Workspace {
	return &Workspace{
		documents:       make(map[string]*TextDocument),
		markers:         make(map[string]map[string][]Marker),
		changeListeners: make(map[string]*listenerSet[func(Document)]),
		log:             log.With().Str("component", "workspace").Logger(),
	}
}

// Open adds a document and notifies open listeners. Opening an already-open
// URI with a different language id is treated as a language change; with the
// same language id it behaves like a content update.
func (w *Workspace) Open(uri, languageID, text string, version int) {
	w.mu.Lock()
	if existing, ok := w.documents[uri]; ok {
		previous := existing.LanguageID()
		existing.mu.Lock()
		existing.languageID = languageID
		existing.text = text
		existing.version = version
		existing.mu.Unlock()

		if previous != languageID {
			listeners := w.languageListeners.snapshot()
			w.mu.Unlock()
			for _, fn := range listeners {
				fn(existing, previous)
			}
			return
		}
		changed := w.changeSnapshot(uri)
		w.mu.Unlock()
		for _, fn := range changed {
			fn(existing)
		}
		return
	}

	doc := &TextDocument{uri: uri, languageID: languageID, text: text, version: version}
	w.documents[uri] = doc
	listeners := w.openListeners.snapshot()
	w.mu.Unlock()

	w.log.Debug().Str("uri", uri).Str("language", languageID).Msg("document opened")
	for _, fn := range listeners {
		fn(doc)
	}
}

// SetText replaces a document's content and notifies its change listeners
func (w *Workspace) SetText(uri, text string, version int) {
	w.mu.Lock()
	doc, ok := w.documents[uri]
	if !ok {
		w.mu.Unlock()
		w.log.Debug().Str("uri", uri).Msg("change for unknown document dropped")
		return
	}
	doc.mu.Lock()
	doc.text = text
	doc.version = version
	doc.mu.Unlock()
	listeners := w.changeSnapshot(uri)
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(doc)
	}
}

// SetLanguage reassigns a document's language and notifies language listeners
func (w *Workspace) SetLanguage(uri, languageID string) {
	w.mu.Lock()
	doc, ok := w.documents[uri]
	if !ok {
		w.mu.Unlock()
		return
	}
	previous := doc.LanguageID()
	if previous == languageID {
		w.mu.Unlock()
		return
	}
	doc.mu.Lock()
	doc.languageID = languageID
	doc.mu.Unlock()
	listeners := w.languageListeners.snapshot()
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(doc, previous)
	}
}

// Close notifies close listeners, then removes the document, its change
// listeners and every owner's markers.
func (w *Workspace) Close(uri string) {
	w.mu.Lock()
	doc, ok := w.documents[uri]
	if !ok {
		w.mu.Unlock()
		return
	}
	listeners := w.closeListeners.snapshot()
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(doc)
	}

	w.mu.Lock()
	delete(w.documents, uri)
	delete(w.changeListeners, uri)
	hadMarkers := len(w.markers[uri]) > 0
	delete(w.markers, uri)
	markerListeners := w.markerListeners.snapshot()
	w.mu.Unlock()

	w.log.Debug().Str("uri", uri).Msg("document closed")
	if hadMarkers {
		for _, fn := range markerListeners {
			fn(uri)
		}
	}
}

// Document implements Host
func (w *Workspace) Document(uri string) (Document, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	doc, ok := w.documents[uri]
	if !ok {
		return nil, false
	}
	return doc, true
}

// Documents implements Host
func (w *Workspace) Documents() []Document {
	w.mu.RLock()
	defer w.mu.RUnlock()
	docs := make([]Document, 0, len(w.documents))
	for _, doc := range w.documents {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].URI() < docs[j].URI() })
	return docs
}

// OnDocumentOpen implements Host
func (w *Workspace) OnDocumentOpen(fn func(Document)) Disposable {
	w.mu.Lock()
	id := w.openListeners.add(fn)
	w.mu.Unlock()
	return DisposeFunc(func() {
		w.mu.Lock()
		delete(w.openListeners.fns, id)
		w.mu.Unlock()
	})
}

// OnDocumentClose implements Host
func (w *Workspace) OnDocumentClose(fn func(Document)) Disposable {
	w.mu.Lock()
	id := w.closeListeners.add(fn)
	w.mu.Unlock()
	return DisposeFunc(func() {
		w.mu.Lock()
		delete(w.closeListeners.fns, id)
		w.mu.Unlock()
	})
}

// OnLanguageChange implements Host
func (w *Workspace) OnLanguageChange(fn func(Document, string)) Disposable {
	w.mu.Lock()
	id := w.languageListeners.add(fn)
	w.mu.Unlock()
	return DisposeFunc(func() {
		w.mu.Lock()
		delete(w.languageListeners.fns, id)
		w.mu.Unlock()
	})
}

// OnContentChange implements Host
func (w *Workspace) OnContentChange(uri string, fn func(Document)) Disposable {
	w.mu.Lock()
	set, ok := w.changeListeners[uri]
	if !ok {
		set = &listenerSet[func(Document)]{}
		w.changeListeners[uri] = set
	}
	id := set.add(fn)
	w.mu.Unlock()
	return DisposeFunc(func() {
		w.mu.Lock()
		if set, ok := w.changeListeners[uri]; ok {
			delete(set.fns, id)
		}
		w.mu.Unlock()
	})
}

// OnMarkersChange fires whenever the stored markers for a URI change.
// The LSP server uses this to push publishDiagnostics notifications.
func (w *Workspace) OnMarkersChange(fn func(uri string)) Disposable {
	w.mu.Lock()
	id := w.markerListeners.add(fn)
	w.mu.Unlock()
	return DisposeFunc(func() {
		w.mu.Lock()
		delete(w.markerListeners.fns, id)
		w.mu.Unlock()
	})
}

// SetMarkers implements MarkerSink
func (w *Workspace) SetMarkers(uri, owner string, markers []Marker) {
	w.mu.Lock()
	owners, ok := w.markers[uri]
	if !ok {
		owners = make(map[string][]Marker)
		w.markers[uri] = owners
	}
	if len(markers) == 0 {
		delete(owners, owner)
	} else {
		owners[owner] = append([]Marker(nil), markers...)
	}
	listeners := w.markerListeners.snapshot()
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(uri)
	}
}

// Markers implements MarkerSink
func (w *Workspace) Markers(uri, owner string) []Marker {
	w.mu.RLock()
	defer w.mu.RUnlock()
	set := w.markers[uri][owner]
	return append([]Marker(nil), set...)
}

// AllMarkers returns every owner's markers for a URI, keyed by owner tag
func (w *Workspace) AllMarkers(uri string) map[string][]Marker {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string][]Marker, len(w.markers[uri]))
	for owner, set := range w.markers[uri] {
		out[owner] = append([]Marker(nil), set...)
	}
	return out
}

func (w *Workspace) changeSnapshot(uri string) []func(Document) {
	if set, ok := w.changeListeners[uri]; ok {
		return set.snapshot()
	}
	return nil
}
