package diagnostics

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quillhq/quill-lsp/internal/config"
	"github.com/quillhq/quill-lsp/internal/editor"
	"github.com/quillhq/quill-lsp/internal/quill"
	"github.com/quillhq/quill-lsp/internal/worker"
)

// subscription is the per-document state owned by the adapter: the change
// listener and at most one live debounce timer.
type subscription struct {
	changeDisposer editor.Disposable
	timer          *time.Timer
}

// Adapter owns one subscription per tracked Quill document and keeps the
// markers published under the quill owner tag consistent with its content.
type Adapter struct {
	host     editor.Host
	provider worker.HandleProvider
	settings *config.Settings
	cache    *worker.ResultCache
	log      zerolog.Logger

	mu          sync.Mutex
	subs        map[string]*subscription
	disposables []editor.Disposable
	disposed    bool
}

// New creates the adapter, wires it to the host's lifecycle events and the
// settings change notifications, and tracks every already-open Quill
// document. The caller must Dispose it exactly once.
func New(host editor.Host, provider worker.HandleProvider, settings *config.Settings, cache *worker.ResultCache, log zerolog.Logger) *Adapter {
	a := &Adapter{
		host:     host,
		provider: provider,
		settings: settings,
		cache:    cache,
		log:      log.With().Str("component", "diagnostics").Logger(),
		subs:     make(map[string]*subscription),
	}

	a.disposables = append(a.disposables,
		host.OnDocumentOpen(a.Track),
		host.OnDocumentClose(func(doc editor.Document) { a.Untrack(doc.URI()) }),
		host.OnLanguageChange(a.handleLanguageChange),
		editor.DisposeFunc(settings.OnChange(a.RetriggerAll)),
	)

	for _, doc := range host.Documents() {
		a.Track(doc)
	}
	return a
}

// Track starts validating a document. Documents of other languages and
// already-tracked documents are ignored. One validation pass fires
// immediately for the current content; later edits are debounced.
func (a *Adapter) Track(doc editor.Document) {
	if doc.LanguageID() != quill.LanguageID {
		return
	}
	uri := doc.URI()

	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return
	}
	if _, ok := a.subs[uri]; ok {
		a.mu.Unlock()
		return
	}
	sub := &subscription{}
	sub.changeDisposer = a.host.OnContentChange(uri, func(editor.Document) {
		if a.settings.EagerSync() {
			go a.validate(uri)
			return
		}
		a.scheduleValidate(uri)
	})
	a.subs[uri] = sub
	a.mu.Unlock()

	a.log.Debug().Str("uri", uri).Msg("tracking document")
	go a.validate(uri)
}

// Untrack clears the document's markers under the quill owner tag, cancels
// any pending debounce timer, detaches the change listener and drops the
// subscription. It is a no-op for untracked documents.
func (a *Adapter) Untrack(uri string) {
	a.mu.Lock()
	sub, ok := a.subs[uri]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.subs, uri)
	if sub.timer != nil {
		sub.timer.Stop()
		sub.timer = nil
	}
	a.mu.Unlock()

	a.host.SetMarkers(uri, quill.Owner, nil)
	if sub.changeDisposer != nil {
		sub.changeDisposer.Dispose()
	}
	a.log.Debug().Str("uri", uri).Msg("stopped tracking document")
}

// RetriggerAll re-validates every open Quill document. Invoked when the
// global validation configuration changes.
func (a *Adapter) RetriggerAll() {
	for _, doc := range a.host.Documents() {
		if doc.LanguageID() != quill.LanguageID {
			continue
		}
		a.Untrack(doc.URI())
		a.Track(doc)
	}
}

// Dispose untracks every document and releases all host subscriptions.
// Safe to call more than once; only the first call does any work.
func (a *Adapter) Dispose() {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return
	}
	a.disposed = true
	uris := make([]string, 0, len(a.subs))
	for uri := range a.subs {
		uris = append(uris, uri)
	}
	disposables := a.disposables
	a.disposables = nil
	a.mu.Unlock()

	for _, uri := range uris {
		a.Untrack(uri)
	}
	for _, d := range disposables {
		d.Dispose()
	}
}

func (a *Adapter) handleLanguageChange(doc editor.Document, previous string) {
	if previous == quill.LanguageID {
		a.Untrack(doc.URI())
	}
	a.Track(doc)
}

// scheduleValidate replaces the document's pending debounce timer, so only
// the last edit inside the window triggers a validation pass.
func (a *Adapter) scheduleValidate(uri string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	sub, ok := a.subs[uri]
	if !ok {
		return
	}
	if sub.timer != nil {
		sub.timer.Stop()
	}
	sub.timer = time.AfterFunc(a.settings.ValidateDelay(), func() {
		a.mu.Lock()
		if current, ok := a.subs[uri]; ok {
			current.timer = nil
		}
		a.mu.Unlock()
		a.validate(uri)
	})
}

// validate runs one validation pass for the document's current content.
// Worker failures are logged and swallowed; the document's disposal is
// re-checked after every suspension point so a late result is discarded
// instead of published. Overlapping passes for the same document are not
// serialized: publishes race last-write-wins, and each publish replaces the
// whole marker set.
func (a *Adapter) validate(uri string) {
	doc, ok := a.host.Document(uri)
	if !ok || doc.LanguageID() != quill.LanguageID {
		return
	}
	if !a.settings.Validate() {
		return
	}
	content := doc.Text()
	ctx := context.Background()

	if a.cache != nil {
		if cached, hit, err := a.cache.Get(content); err != nil {
			a.log.Warn().Err(err).Str("uri", uri).Msg("cache lookup failed")
		} else if hit {
			a.publish(uri, content, cached)
			return
		}
	}

	handle, err := a.provider.Handle(ctx, uri)
	if err != nil {
		a.log.Debug().Err(err).Str("uri", uri).Msg("worker handle resolution failed")
		return
	}
	if _, ok := a.host.Document(uri); !ok {
		return
	}

	found, err := handle.Diagnostics(ctx, content)
	if err != nil {
		a.log.Debug().Err(err).Str("uri", uri).Msg("worker diagnostics call failed")
		return
	}

	if a.cache != nil {
		if err := a.cache.Put(content, found); err != nil {
			a.log.Warn().Err(err).Str("uri", uri).Msg("cache store failed")
		}
	}
	a.publish(uri, content, found)
}

// publish converts and stores the markers, unless the document was untracked
// or disposed while the result was in flight. The subscription check and the
// marker write happen under the same lock Untrack takes to drop the
// subscription, so once Untrack has cleared the set a late result can never
// land after it.
func (a *Adapter) publish(uri, content string, found []worker.Diagnostic) {
	markers := make([]editor.Marker, 0, len(found))
	for _, d := range found {
		markers = append(markers, toMarker(content, d))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, tracked := a.subs[uri]; !tracked {
		return
	}
	if _, ok := a.host.Document(uri); !ok {
		return
	}
	a.host.SetMarkers(uri, quill.Owner, markers)
	a.log.Debug().Str("uri", uri).Int("markers", len(markers)).Msg("published markers")
}
