// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package doctree

import "fmt"

// StructuralError reports a document tree that lacks expected substructure.
// It is fatal for the document: no blocks or sections are produced.
type StructuralError struct {
	// Format is "tei" or "structure".
	Format string

	// Reason describes what was missing or malformed.
	Reason string

	Err error
}

func (e *StructuralError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed %s document: %s: %v", e.Format, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed %s document: %s", e.Format, e.Reason)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}
