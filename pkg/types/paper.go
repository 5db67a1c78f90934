// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ConversionStatus indicates the state of PDF conversion for a paper.
type ConversionStatus string

const (
	ConversionNone   ConversionStatus = "none"
	ConversionDone   ConversionStatus = "converted"
	ConversionFailed ConversionStatus = "failed"
)

// Paper holds metadata and file paths for a document moving through the
// pipeline.
type Paper struct {
	// ID is a slug derived from the file name (e.g. "2301.07041").
	ID string `json:"id" yaml:"id"`

	// Title is the paper title, taken from the parsed tree when available.
	Title string `json:"title" yaml:"title"`

	// PDFPath is the local path of the source PDF.
	PDFPath string `json:"pdf_path,omitempty" yaml:"pdf_path,omitempty"`

	// StructurePath is the local path of the converted TEI or structure JSON.
	StructurePath string `json:"structure_path,omitempty" yaml:"structure_path,omitempty"`

	// ConversionStatus tracks whether the PDF has been converted.
	ConversionStatus ConversionStatus `json:"conversion_status" yaml:"conversion_status"`

	// BuiltAt is when blocks were last built for this paper.
	BuiltAt time.Time `json:"built_at" yaml:"built_at"`
}
