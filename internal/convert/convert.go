// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns PDFs into TEI XML through a conversion service and
// writes the result under the papers directory, where the build stage picks
// it up.
package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/grounding-engine/pkg/types"
)

const (
	// teiDir is the subdirectory under the papers base for TEI output.
	teiDir = "tei"
	// rawDir is the subdirectory under the papers base for raw PDFs.
	rawDir = "raw"

	teiSuffix = ".tei.xml"
)

// Converter transforms a PDF file into a structured document.
type Converter interface {
	// Convert reads a PDF at pdfPath and returns the converted document.
	Convert(ctx context.Context, pdfPath string) ([]byte, error)
}

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int

	// Outputs lists the TEI paths written or found, in input order.
	Outputs []string
}

// Total returns the total number of papers processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any papers failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// OutputPath returns where the TEI for pdfPath is written.
func OutputPath(pdfPath, papersDir string) string {
	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	return filepath.Join(papersDir, teiDir, base+teiSuffix)
}

// ConvertPaper converts a single PDF, writing the TEI under papersDir/tei.
// It returns the output path and the conversion status. An existing output
// is kept and reported as ConversionNone unless force is set.
func ConvertPaper(ctx context.Context, c Converter, pdfPath, papersDir string, force bool, w io.Writer) (string, types.ConversionStatus) {
	outPath := OutputPath(pdfPath, papersDir)
	base := filepath.Base(outPath)

	if !force {
		if _, err := os.Stat(outPath); err == nil {
			fmt.Fprintf(w, "skipped: %s (already exists)\n", base)
			return outPath, ConversionNone
		}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", base, err)
		return "", types.ConversionFailed
	}

	tei, err := c.Convert(ctx, pdfPath)
	if err != nil {
		zap.L().Warn("conversion failed", zap.String("pdf", pdfPath), zap.Error(err))
		fmt.Fprintf(w, "failed:  %s (%v)\n", base, err)
		return "", types.ConversionFailed
	}

	if err := os.WriteFile(outPath, tei, 0o644); err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", base, err)
		return "", types.ConversionFailed
	}

	fmt.Fprintf(w, "converted: %s\n", base)
	return outPath, types.ConversionDone
}

// ConvertPaths converts each PDF in order, printing per-file status to w and
// returning a summary. Cancellation stops the batch.
func ConvertPaths(ctx context.Context, c Converter, pdfPaths []string, papersDir string, force bool, w io.Writer) BatchResult {
	var result BatchResult
	for _, p := range pdfPaths {
		if ctx.Err() != nil {
			break
		}
		out, status := ConvertPaper(ctx, c, p, papersDir, force, w)
		switch status {
		case types.ConversionDone:
			result.Converted++
		case ConversionNone:
			result.Skipped++
		case types.ConversionFailed:
			result.Failed++
		}
		if out != "" {
			result.Outputs = append(result.Outputs, out)
		}
	}
	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return result
}

// RawPDFs lists the PDFs under papersDir/raw in name order.
func RawPDFs(papersDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(papersDir, rawDir, "*.pdf"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// ConversionNone is a local alias for "skip" status (output already exists).
const ConversionNone = types.ConversionNone
