package diagnostics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/quill-lsp/internal/config"
	"github.com/quillhq/quill-lsp/internal/editor"
	"github.com/quillhq/quill-lsp/internal/quill"
	"github.com/quillhq/quill-lsp/internal/worker"
)

// fakeWorker implements worker.HandleProvider and worker.Handle in-process.
type fakeWorker struct {
	mu        sync.Mutex
	calls     []string
	handleErr error
	diagsErr  error
	diags     func(content string) []worker.Diagnostic

	// when set, Diagnostics signals callStarted and then waits for gate
	gate        chan struct{}
	callStarted chan string
}

func (f *fakeWorker) Handle(ctx context.Context, uris ...string) (worker.Handle, error) {
	if f.handleErr != nil {
		return nil, f.handleErr
	}
	return f, nil
}

func (f *fakeWorker) Diagnostics(ctx context.Context, content string) ([]worker.Diagnostic, error) {
	if f.callStarted != nil {
		f.callStarted <- content
	}
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	f.calls = append(f.calls, content)
	f.mu.Unlock()

	if f.diagsErr != nil {
		return nil, f.diagsErr
	}
	if f.diags != nil {
		return f.diags(content), nil
	}
	return []worker.Diagnostic{}, nil
}

func (f *fakeWorker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeWorker) lastCall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func newTestAdapter(t *testing.T, fake *fakeWorker) (*editor.Workspace, *config.Settings, *Adapter) {
	t.Helper()
	ws := editor.NewWorkspace(zerolog.Nop())
	settings := config.NewSettings()
	settings.SetValidateDelay(25 * time.Millisecond)
	adapter := New(ws, fake, settings, nil, zerolog.Nop())
	t.Cleanup(adapter.Dispose)
	return ws, settings, adapter
}

func waitForCalls(t *testing.T, fake *fakeWorker, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return fake.callCount() == n },
		2*time.Second, 2*time.Millisecond)
}

func TestTrackIgnoresOtherLanguages(t *testing.T) {
	fake := &fakeWorker{}
	ws, _, _ := newTestAdapter(t, fake)

	ws.Open("file:///notes.txt", "plaintext", "{{ broken", 1)

	assert.Never(t, func() bool { return fake.callCount() > 0 },
		150*time.Millisecond, 10*time.Millisecond)
	assert.Empty(t, ws.Markers("file:///notes.txt", quill.Owner))
}

func TestOpenTriggersImmediateValidation(t *testing.T) {
	fake := &fakeWorker{}
	ws, _, _ := newTestAdapter(t, fake)

	ws.Open("file:///a.quill", quill.LanguageID, "{{ a }}", 1)

	waitForCalls(t, fake, 1)
	assert.Equal(t, "{{ a }}", fake.lastCall())
}

func TestAlreadyOpenDocumentsTrackedOnConstruction(t *testing.T) {
	fake := &fakeWorker{}
	ws := editor.NewWorkspace(zerolog.Nop())
	settings := config.NewSettings()
	settings.SetValidateDelay(25 * time.Millisecond)
	ws.Open("file:///a.quill", quill.LanguageID, "{{ a }}", 1)

	adapter := New(ws, fake, settings, nil, zerolog.Nop())
	defer adapter.Dispose()

	waitForCalls(t, fake, 1)
}

func TestDebounceCoalescesRapidEdits(t *testing.T) {
	fake := &fakeWorker{}
	ws, _, _ := newTestAdapter(t, fake)

	uri := "file:///a.quill"
	ws.Open(uri, quill.LanguageID, "v0", 1)
	waitForCalls(t, fake, 1)

	for i := 2; i <= 6; i++ {
		ws.SetText(uri, "edit", i)
	}
	ws.SetText(uri, "final content", 7)

	waitForCalls(t, fake, 2)
	assert.Equal(t, "final content", fake.lastCall())

	// no further passes fire once the burst has been coalesced
	assert.Never(t, func() bool { return fake.callCount() > 2 },
		150*time.Millisecond, 10*time.Millisecond)
}

func TestUntrackDiscardsLateWorkerResult(t *testing.T) {
	fake := &fakeWorker{
		gate:        make(chan struct{}),
		callStarted: make(chan string, 1),
		diags: func(string) []worker.Diagnostic {
			return []worker.Diagnostic{{Severity: worker.SeverityError, Start: 0, Length: 1, Message: "late"}}
		},
	}
	ws, _, adapter := newTestAdapter(t, fake)

	uri := "file:///a.quill"
	ws.Open(uri, quill.LanguageID, "{{ broken", 1)

	// the validation pass is now blocked inside the worker call
	<-fake.callStarted
	adapter.Untrack(uri)
	close(fake.gate)

	waitForCalls(t, fake, 1)
	assert.Never(t, func() bool { return len(ws.Markers(uri, quill.Owner)) > 0 },
		150*time.Millisecond, 10*time.Millisecond)
}

func TestCloseDiscardsLateWorkerResult(t *testing.T) {
	fake := &fakeWorker{
		gate:        make(chan struct{}),
		callStarted: make(chan string, 1),
		diags: func(string) []worker.Diagnostic {
			return []worker.Diagnostic{{Severity: worker.SeverityError, Start: 0, Length: 1, Message: "late"}}
		},
	}
	ws, _, _ := newTestAdapter(t, fake)

	uri := "file:///a.quill"
	ws.Open(uri, quill.LanguageID, "{{ broken", 1)

	<-fake.callStarted
	ws.Close(uri)
	close(fake.gate)

	waitForCalls(t, fake, 1)
	assert.Never(t, func() bool { return len(ws.Markers(uri, quill.Owner)) > 0 },
		150*time.Millisecond, 10*time.Millisecond)
}

func TestWorkerFailuresAreSwallowed(t *testing.T) {
	fake := &fakeWorker{diagsErr: assert.AnError}
	ws, _, _ := newTestAdapter(t, fake)

	uri := "file:///a.quill"
	ws.Open(uri, quill.LanguageID, "{{ a }}", 1)

	waitForCalls(t, fake, 1)
	assert.Empty(t, ws.Markers(uri, quill.Owner))
}

func TestHandleResolutionFailureIsSwallowed(t *testing.T) {
	fake := &fakeWorker{handleErr: assert.AnError}
	ws, _, _ := newTestAdapter(t, fake)

	ws.Open("file:///a.quill", quill.LanguageID, "{{ a }}", 1)

	assert.Never(t, func() bool { return fake.callCount() > 0 },
		150*time.Millisecond, 10*time.Millisecond)
	assert.Empty(t, ws.Markers("file:///a.quill", quill.Owner))
}

func TestConfigChangeRetriggersAllDocuments(t *testing.T) {
	fake := &fakeWorker{}
	ws, settings, _ := newTestAdapter(t, fake)

	ws.Open("file:///a.quill", quill.LanguageID, "{{ a }}", 1)
	ws.Open("file:///b.quill", quill.LanguageID, "{{ b }}", 1)
	waitForCalls(t, fake, 2)

	settings.SetEagerSync(true)
	waitForCalls(t, fake, 4)
}

func TestLanguageChangeStartsAndStopsTracking(t *testing.T) {
	fake := &fakeWorker{
		diags: func(string) []worker.Diagnostic {
			return []worker.Diagnostic{{Severity: worker.SeverityError, Start: 0, Length: 1, Message: "x"}}
		},
	}
	ws, _, _ := newTestAdapter(t, fake)

	uri := "file:///a.txt"
	ws.Open(uri, "plaintext", "{{ broken", 1)
	assert.Never(t, func() bool { return fake.callCount() > 0 },
		100*time.Millisecond, 10*time.Millisecond)

	ws.SetLanguage(uri, quill.LanguageID)
	waitForCalls(t, fake, 1)
	require.Eventually(t, func() bool { return len(ws.Markers(uri, quill.Owner)) == 1 },
		time.Second, 5*time.Millisecond)

	// moving away from the tracked language clears the markers
	ws.SetLanguage(uri, "plaintext")
	require.Eventually(t, func() bool { return len(ws.Markers(uri, quill.Owner)) == 0 },
		time.Second, 5*time.Millisecond)
}

func TestEndToEndMarkersLifecycle(t *testing.T) {
	fake := &fakeWorker{
		diags: func(content string) []worker.Diagnostic {
			return []worker.Diagnostic{{
				Severity: worker.SeverityError,
				Start:    0,
				Length:   len(content),
				Message:  "unterminated output expression",
			}}
		},
	}
	ws, _, _ := newTestAdapter(t, fake)

	uri := "file:///broken.quill"
	ws.Open(uri, quill.LanguageID, "{{ name", 1)

	require.Eventually(t, func() bool { return len(ws.Markers(uri, quill.Owner)) > 0 },
		2*time.Second, 5*time.Millisecond)

	markers := ws.Markers(uri, quill.Owner)
	require.Len(t, markers, 1)
	assert.Equal(t, editor.MarkerError, markers[0].Severity)
	assert.Equal(t, 1, markers[0].StartLine)
	assert.Equal(t, 1, markers[0].StartColumn)

	ws.Close(uri)
	assert.Empty(t, ws.Markers(uri, quill.Owner))
}

func TestValidationDisabledPublishesNothing(t *testing.T) {
	fake := &fakeWorker{}
	ws, settings, _ := newTestAdapter(t, fake)

	settings.SetValidate(false)
	ws.Open("file:///a.quill", quill.LanguageID, "{{ a }}", 1)

	assert.Never(t, func() bool { return fake.callCount() > 0 },
		150*time.Millisecond, 10*time.Millisecond)
}

func TestDisposeIsIdempotentAndDetaches(t *testing.T) {
	fake := &fakeWorker{}
	ws, _, adapter := newTestAdapter(t, fake)

	uri := "file:///a.quill"
	ws.Open(uri, quill.LanguageID, "{{ a }}", 1)
	waitForCalls(t, fake, 1)

	adapter.Dispose()
	adapter.Dispose()

	// listeners are gone: new documents and edits trigger nothing
	ws.Open("file:///b.quill", quill.LanguageID, "{{ b }}", 1)
	ws.SetText(uri, "changed", 2)
	assert.Never(t, func() bool { return fake.callCount() > 1 },
		150*time.Millisecond, 10*time.Millisecond)
}

// gateHost wraps a workspace so a test can pause one Document lookup and
// interleave other work at that exact point.
type gateHost struct {
	*editor.Workspace

	mu     sync.Mutex
	armed  bool
	paused chan struct{}
	resume chan struct{}
}

func newGateHost(ws *editor.Workspace) *gateHost {
	return &gateHost{
		Workspace: ws,
		paused:    make(chan struct{}),
		resume:    make(chan struct{}),
	}
}

func (h *gateHost) arm() {
	h.mu.Lock()
	h.armed = true
	h.mu.Unlock()
}

func (h *gateHost) Document(uri string) (editor.Document, bool) {
	h.mu.Lock()
	hit := h.armed
	h.armed = false
	h.mu.Unlock()
	if hit {
		h.paused <- struct{}{}
		<-h.resume
	}
	return h.Workspace.Document(uri)
}

func TestUntrackDuringPublishLeavesNoMarkers(t *testing.T) {
	fake := &fakeWorker{
		gate:        make(chan struct{}),
		callStarted: make(chan string, 1),
		diags: func(string) []worker.Diagnostic {
			return []worker.Diagnostic{{Severity: worker.SeverityError, Start: 0, Length: 1, Message: "stale"}}
		},
	}
	ws := editor.NewWorkspace(zerolog.Nop())
	host := newGateHost(ws)
	settings := config.NewSettings()
	settings.SetValidateDelay(25 * time.Millisecond)
	adapter := New(host, fake, settings, nil, zerolog.Nop())
	t.Cleanup(adapter.Dispose)

	uri := "file:///a.quill"
	ws.Open(uri, quill.LanguageID, "{{ broken", 1)

	// hold the validation pass inside the worker call, then pause it again
	// at the publish step's document re-check
	<-fake.callStarted
	host.arm()
	close(fake.gate)
	<-host.paused

	// Untrack races the paused publish; it must not complete in a way that
	// lets the in-flight result land afterwards
	done := make(chan struct{})
	go func() {
		adapter.Untrack(uri)
		close(done)
	}()

	close(host.resume)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Untrack did not complete")
	}

	assert.Empty(t, ws.Markers(uri, quill.Owner))
	assert.Never(t, func() bool { return len(ws.Markers(uri, quill.Owner)) > 0 },
		150*time.Millisecond, 10*time.Millisecond)
}

func TestUntrackIsNoOpForUntrackedDocument(t *testing.T) {
	fake := &fakeWorker{}
	_, _, adapter := newTestAdapter(t, fake)

	adapter.Untrack("file:///never-seen.quill")
}
