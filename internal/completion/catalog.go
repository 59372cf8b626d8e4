// Package completion answers completion requests for Quill documents from a
// static catalog of language snippets and builtin functions. The replacement
// range is recomputed per request from the word under the cursor; the
// catalog content itself never varies between calls.
package completion

import "github.com/quillhq/quill-lsp/internal/lsp/protocol"

// catalogEntry is one static suggestion. Insert text uses snippet tab-stop
// syntax: ordered numbered placeholders, $0 for the final cursor position.
type catalogEntry struct {
	label      string
	kind       int
	insertText string
	detail     string
	doc        string
}

var catalog = []catalogEntry{
	{
		label:      "template",
		kind:       protocol.CompletionItemKindSnippet,
		insertText: "{% template ${1:name}(${2:params}) %}\n\t$0\n{% endtemplate %}",
		detail:     "template block",
		doc:        "Defines a named template that can be rendered directly or included from other templates.",
	},
	{
		label:      "block",
		kind:       protocol.CompletionItemKindSnippet,
		insertText: "{% block ${1:name} %}\n\t$0\n{% endblock %}",
		detail:     "block",
		doc:        "Declares an overridable region inside a template.",
	},
	{
		label:      "if",
		kind:       protocol.CompletionItemKindSnippet,
		insertText: "{% if ${1:condition} %}\n\t$0\n{% endif %}",
		detail:     "if block",
		doc:        "Renders the body only when the condition is truthy.",
	},
	{
		label:      "else",
		kind:       protocol.CompletionItemKindSnippet,
		insertText: "{% else %}\n$0",
		detail:     "else branch",
		doc:        "Alternative branch of the enclosing if or for block.",
	},
	{
		label:      "for",
		kind:       protocol.CompletionItemKindSnippet,
		insertText: "{% for ${1:item} in ${2:items} %}\n\t$0\n{% endfor %}",
		detail:     "for block",
		doc:        "Repeats the body for every element of a sequence.",
	},
	{
		label:      "macro",
		kind:       protocol.CompletionItemKindSnippet,
		insertText: "{% macro ${1:name}(${2:args}) %}\n\t$0\n{% endmacro %}",
		detail:     "macro block",
		doc:        "Defines a reusable fragment with arguments.",
	},
	{
		label:      "include",
		kind:       protocol.CompletionItemKindSnippet,
		insertText: "{% include \"${1:path}\" %}$0",
		detail:     "include",
		doc:        "Renders another template in place.",
	},
	{
		label:      "upper",
		kind:       protocol.CompletionItemKindFunction,
		insertText: "upper(${1:value})$0",
		detail:     "upper(value)",
		doc:        "Converts a string to upper case.",
	},
	{
		label:      "lower",
		kind:       protocol.CompletionItemKindFunction,
		insertText: "lower(${1:value})$0",
		detail:     "lower(value)",
		doc:        "Converts a string to lower case.",
	},
	{
		label:      "length",
		kind:       protocol.CompletionItemKindFunction,
		insertText: "length(${1:value})$0",
		detail:     "length(value)",
		doc:        "Returns the number of elements in a sequence or characters in a string.",
	},
	{
		label:      "join",
		kind:       protocol.CompletionItemKindFunction,
		insertText: "join(${1:items}, ${2:separator})$0",
		detail:     "join(items, separator)",
		doc:        "Concatenates the elements of a sequence with a separator.",
	},
	{
		label:      "default",
		kind:       protocol.CompletionItemKindFunction,
		insertText: "default(${1:value}, ${2:fallback})$0",
		detail:     "default(value, fallback)",
		doc:        "Returns the value, or the fallback when the value is empty.",
	},
}
