// Package quill holds the identifiers shared by every component that deals
// with the Quill template language.
package quill

const (
	// LanguageID is the language identifier the editor reports for Quill
	// template documents.
	LanguageID = "quill"

	// FileExtension is the file extension of Quill template files.
	FileExtension = ".quill"

	// Owner is the tag under which this service publishes markers. Markers
	// published under a different owner are never touched.
	Owner = "quill"
)
