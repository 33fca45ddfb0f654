// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Sentinel field values stored when an abstract page lacks the
// corresponding element.
const (
	AuthorsUnavailable  = "Authors not available"
	AbstractUnavailable = "Abstract not available"
	PDFUnavailable      = "Unavailable"
)

// CategoryUncategorized is the category recorded when classification
// fails or the model answers outside the configured label set.
const CategoryUncategorized = "Uncategorized"

// DocumentRef identifies one abstract page discovered on a yearly
// proceedings index.
type DocumentRef struct {
	// Title is the link text, already cleaned of filesystem-unsafe
	// characters and truncated, so it can be compared against stored
	// titles directly.
	Title string `json:"title" yaml:"title"`

	// SourceURL is the absolute URL of the document's abstract page.
	SourceURL string `json:"source_url" yaml:"source_url"`

	// Year is the proceedings year the reference was discovered under.
	Year int `json:"year" yaml:"year"`
}

// PaperRecord is one paper as persisted in the tabular and structured
// stores. Title is the unique key: non-empty, filesystem-safe, and at
// most 200 characters.
type PaperRecord struct {
	// Year is the proceedings year.
	Year int `json:"year" yaml:"year"`

	// Title is the cleaned paper title.
	Title string `json:"title" yaml:"title"`

	// Authors is the author list as shown on the abstract page, or
	// AuthorsUnavailable.
	Authors string `json:"authors" yaml:"authors"`

	// Abstract is the abstract text, or AbstractUnavailable.
	Abstract string `json:"abstract" yaml:"abstract"`

	// PDFURL is the absolute URL the paper PDF was discovered at, or
	// PDFUnavailable when the page had no recognized PDF link. It is
	// recorded even when the local download failed.
	PDFURL string `json:"pdf_url" yaml:"pdf_url"`
}

// AnnotatedRecord is a PaperRecord plus the category assigned by the
// classification pass. It appears only in the annotated export; the
// harvest stores are never rewritten with categories.
type AnnotatedRecord struct {
	PaperRecord `yaml:",inline"`

	// Category is one of the configured labels, or
	// CategoryUncategorized.
	Category string `json:"category" yaml:"category"`
}
