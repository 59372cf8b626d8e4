// Package analyzer is the worker-side validator for Quill templates. It
// scans the raw text for the three delimiter pairs ({{ }}, {% %}, {# #}),
// checks tag spelling and block nesting, and reports findings as worker
// diagnostics with linear offsets.
package analyzer

import (
	"fmt"
	"strings"

	"github.com/quillhq/quill-lsp/internal/position"
	"github.com/quillhq/quill-lsp/internal/worker"
)

// blockTags open a region that must be closed by the matching end tag.
var blockTags = map[string]bool{
	"template": true,
	"block":    true,
	"if":       true,
	"for":      true,
	"macro":    true,
}

// inlineTags are complete on their own.
var inlineTags = map[string]bool{
	"include": true,
	"set":     true,
}

type openBlock struct {
	tag   string
	start int
}

// Analyze validates content and returns every finding. A valid template
// yields an empty slice.
func Analyze(content string) []worker.Diagnostic {
	var diags []worker.Diagnostic
	var stack []openBlock

	i := 0
	for i < len(content) {
		switch {
		case strings.HasPrefix(content[i:], "{{"):
			close := strings.Index(content[i+2:], "}}")
			if close < 0 {
				diags = append(diags, worker.Diagnostic{
					Severity: worker.SeverityError,
					Start:    i,
					Length:   len(content) - i,
					Message:  "Unterminated output expression, expected '}}'",
				})
				i = len(content)
				continue
			}
			if strings.TrimSpace(content[i+2:i+2+close]) == "" {
				diags = append(diags, worker.Diagnostic{
					Severity: worker.SeveritySuggestion,
					Start:    i,
					Length:   close + 4,
					Message:  "Empty output expression",
				})
			}
			i += close + 4

		case strings.HasPrefix(content[i:], "{#"):
			close := strings.Index(content[i+2:], "#}")
			if close < 0 {
				diags = append(diags, worker.Diagnostic{
					Severity: worker.SeverityError,
					Start:    i,
					Length:   len(content) - i,
					Message:  "Unterminated comment, expected '#}'",
				})
				i = len(content)
				continue
			}
			i += close + 4

		case strings.HasPrefix(content[i:], "{%"):
			close := strings.Index(content[i+2:], "%}")
			if close < 0 {
				diags = append(diags, worker.Diagnostic{
					Severity: worker.SeverityError,
					Start:    i,
					Length:   len(content) - i,
					Message:  "Unterminated tag, expected '%}'",
				})
				i = len(content)
				continue
			}
			tagLength := close + 4
			d, newStack := checkTag(content, i, tagLength, stack)
			stack = newStack
			if d != nil {
				diags = append(diags, *d)
			}
			i += tagLength

		default:
			i++
		}
	}

	for _, open := range stack {
		line := position.OffsetToPosition(content, open.start).Line
		diags = append(diags, worker.Diagnostic{
			Severity: worker.SeverityError,
			Start:    open.start,
			Length:   tagLengthAt(content, open.start),
			Chain: &worker.Chain{
				Text: fmt.Sprintf("Unclosed block {%% %s %%}", open.tag),
				Next: &worker.Chain{
					Text: fmt.Sprintf("expected {%% end%s %%} before the end of the template (block opened on line %d)", open.tag, line),
				},
			},
		})
	}

	return diags
}

// checkTag validates one {% ... %} tag starting at offset start and returns
// the finding (if any) together with the updated block stack.
func checkTag(content string, start, length int, stack []openBlock) (*worker.Diagnostic, []openBlock) {
	inner := content[start+2 : start+length-2]
	fields := strings.Fields(inner)

	if len(fields) == 0 {
		return &worker.Diagnostic{
			Severity: worker.SeverityWarning,
			Start:    start,
			Length:   length,
			Message:  "Empty tag",
		}, stack
	}

	name := fields[0]
	switch {
	case strings.HasPrefix(name, "end"):
		want := strings.TrimPrefix(name, "end")
		if len(stack) == 0 {
			return &worker.Diagnostic{
				Severity: worker.SeverityError,
				Start:    start,
				Length:   length,
				Message:  fmt.Sprintf("Unexpected {%% %s %%}: no open block", name),
			}, stack
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.tag != want {
			line := position.OffsetToPosition(content, top.start).Line
			return &worker.Diagnostic{
				Severity: worker.SeverityError,
				Start:    start,
				Length:   length,
				Chain: &worker.Chain{
					Text: fmt.Sprintf("Mismatched closing tag {%% %s %%}", name),
					Next: &worker.Chain{
						Text: fmt.Sprintf("expected {%% end%s %%}", top.tag),
						Next: &worker.Chain{
							Text: fmt.Sprintf("block '%s' opened on line %d", top.tag, line),
						},
					},
				},
			}, stack
		}
		return nil, stack

	case name == "else":
		if len(stack) == 0 || (stack[len(stack)-1].tag != "if" && stack[len(stack)-1].tag != "for") {
			return &worker.Diagnostic{
				Severity: worker.SeverityError,
				Start:    start,
				Length:   length,
				Message:  "{% else %} is only valid inside an if or for block",
			}, stack
		}
		return nil, stack

	case blockTags[name]:
		return nil, append(stack, openBlock{tag: name, start: start})

	case inlineTags[name]:
		return nil, stack

	default:
		return &worker.Diagnostic{
			Severity: worker.SeverityWarning,
			Start:    start,
			Length:   length,
			Message:  fmt.Sprintf("Unknown tag '%s'", name),
		}, stack
	}
}

// tagLengthAt returns the full delimiter-to-delimiter length of the tag
// starting at offset, falling back to the opener length when unterminated.
func tagLengthAt(content string, offset int) int {
	close := strings.Index(content[offset:], "%}")
	if close < 0 {
		return len(content) - offset
	}
	return close + 2
}
