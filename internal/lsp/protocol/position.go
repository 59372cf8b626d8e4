// Package protocol holds the subset of the Language Server Protocol wire
// types this server exchanges with clients. All positions are 0-based, as
// the protocol mandates; conversion from the service's 1-based coordinates
// happens at the server boundary.
package protocol

// Position represents a 0-based line/character position in a document
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range represents a range in a document
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// TextEdit represents an edit replacing a range with new text
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}
