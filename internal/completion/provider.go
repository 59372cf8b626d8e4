package completion

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/quillhq/quill-lsp/internal/editor"
	"github.com/quillhq/quill-lsp/internal/lsp/protocol"
	"github.com/quillhq/quill-lsp/internal/position"
	"github.com/quillhq/quill-lsp/internal/quill"
	"github.com/quillhq/quill-lsp/internal/worker"
)

// StaticProvider serves the static Quill catalog. It acquires a worker
// handle per request purely to warm the worker; handle failures never
// suppress the suggestions.
type StaticProvider struct {
	host     editor.Host
	provider worker.HandleProvider
	log      zerolog.Logger
}

// NewStaticProvider creates the catalog-backed completion provider
func NewStaticProvider(host editor.Host, provider worker.HandleProvider, log zerolog.Logger) *StaticProvider {
	return &StaticProvider{
		host:     host,
		provider: provider,
		log:      log.With().Str("component", "completion").Logger(),
	}
}

// GetCompletions returns the catalog with the replacement range set to the
// word under the cursor. Documents of other languages get no suggestions.
func (p *StaticProvider) GetCompletions(ctx context.Context, params *protocol.CompletionParams) []protocol.CompletionItem {
	uri := params.TextDocument.URI
	doc, ok := p.host.Document(uri)
	if !ok || doc.LanguageID() != quill.LanguageID {
		return nil
	}

	if _, err := p.provider.Handle(ctx, uri); err != nil {
		p.log.Debug().Err(err).Str("uri", uri).Msg("worker warm-up failed")
	}

	// Protocol positions are 0-based; document positions are 1-based.
	cursor := position.Position{
		Line:   params.Position.Line + 1,
		Column: params.Position.Character + 1,
	}
	word := doc.WordRangeAt(cursor)
	editRange := protocol.Range{
		Start: protocol.Position{Line: word.Start.Line - 1, Character: word.Start.Column - 1},
		End:   protocol.Position{Line: word.End.Line - 1, Character: word.End.Column - 1},
	}

	items := make([]protocol.CompletionItem, 0, len(catalog))
	for _, entry := range catalog {
		items = append(items, protocol.CompletionItem{
			Label:            entry.label,
			Kind:             entry.kind,
			Detail:           entry.detail,
			TextEdit:         &protocol.TextEdit{Range: editRange, NewText: entry.insertText},
			InsertTextFormat: protocol.SnippetTextFormat,
			Documentation:    &protocol.MarkupContent{Kind: "markdown", Value: entry.doc},
		})
	}
	return items
}

// GetTriggerCharacters returns the characters that trigger this provider
func (p *StaticProvider) GetTriggerCharacters() []string {
	return []string{"."}
}
