// Package position converts between linear byte offsets into a document
// snapshot and 1-based line/column positions. All functions are pure and
// operate on the full text passed in; nothing is cached between calls.
package position

import "strings"

// Position is a 1-based line/column pair. Column counts bytes from the
// start of the line, matching how the workspace stores document text.
type Position struct {
	Line   int
	Column int
}

// Range spans from Start to End, both inclusive of the line/column
// coordinate system. Start and End are converted independently.
type Range struct {
	Start Position
	End   Position
}

// OffsetToPosition converts a linear offset into text to a 1-based
// line/column position. Offsets outside [0, len(text)] are clamped, so the
// end-of-document offset is always valid.
func OffsetToPosition(text string, offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(text) {
		offset = len(text)
	}

	before := text[:offset]
	line := strings.Count(before, "\n") + 1
	lineStart := strings.LastIndexByte(before, '\n') + 1

	return Position{Line: line, Column: offset - lineStart + 1}
}

// PositionToOffset converts a 1-based line/column position back to a linear
// offset. Lines beyond the document map to the end of the text; columns
// beyond a line map to the position just past its last character.
func PositionToOffset(text string, pos Position) int {
	if pos.Line < 1 {
		pos.Line = 1
	}
	if pos.Column < 1 {
		pos.Column = 1
	}

	lineStart := 0
	for line := 1; line < pos.Line; line++ {
		next := strings.IndexByte(text[lineStart:], '\n')
		if next < 0 {
			return len(text)
		}
		lineStart += next + 1
	}

	lineEnd := strings.IndexByte(text[lineStart:], '\n')
	if lineEnd < 0 {
		lineEnd = len(text) - lineStart
	}

	column := pos.Column - 1
	if column > lineEnd {
		column = lineEnd
	}
	return lineStart + column
}

// SpanToRange converts the span [start, start+length) into a line/column
// range by converting both endpoints independently.
func SpanToRange(text string, start, length int) Range {
	if length < 0 {
		length = 0
	}
	return Range{
		Start: OffsetToPosition(text, start),
		End:   OffsetToPosition(text, start+length),
	}
}
