package protocol

// CompletionList represents a list of completion items
type CompletionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []CompletionItem `json:"items"`
}

// InitializeParams represents the parameters for the 'initialize' request
type InitializeParams struct {
	RootPath         string            `json:"rootPath,omitempty"`
	RootURI          string            `json:"rootUri,omitempty"`
	WorkspaceFolders []WorkspaceFolder `json:"workspaceFolders,omitempty"`
}

// WorkspaceFolder represents a workspace folder
type WorkspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// CompletionParams represents the parameters for a completion request
type CompletionParams struct {
	TextDocument struct {
		URI string `json:"uri"`
	} `json:"textDocument"`
	Position Position `json:"position"`
}

// CompletionItemKind values used by this server
const (
	// CompletionItemKindFunction marks an item as a callable function
	CompletionItemKindFunction = 3
	// CompletionItemKindSnippet marks an item as an expandable snippet
	CompletionItemKindSnippet = 15
)

// CompletionItem represents a completion item
type CompletionItem struct {
	Label            string           `json:"label"`
	Kind             int              `json:"kind,omitempty"`
	Detail           string           `json:"detail,omitempty"`
	TextEdit         *TextEdit        `json:"textEdit,omitempty"`
	InsertTextFormat InsertTextFormat `json:"insertTextFormat,omitempty"`
	Documentation    *MarkupContent   `json:"documentation,omitempty"`
}

// MarkupContent represents human-readable documentation content
type MarkupContent struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}
