// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/grounding-engine/internal/httputil"
	"github.com/pdiddy/grounding-engine/pkg/types"
)

const (
	fulltextEndpoint = "/api/processFulltextDocument"
	aliveEndpoint    = "/api/isalive"
)

// teiCoordinates are the elements GROBID annotates with page coordinates.
var teiCoordinates = []string{"s", "head", "note", "ref", "figure", "table"}

// GROBIDConverter converts PDFs to TEI XML with a GROBID service.
type GROBIDConverter struct {
	baseURL    string
	userAgent  string
	client     *http.Client
	maxRetries int
}

// NewGROBIDConverter creates a converter for the service at cfg.GROBIDURL.
// httpClient may be nil.
func NewGROBIDConverter(cfg types.ConversionConfig, httpClient *http.Client) *GROBIDConverter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &GROBIDConverter{
		baseURL:   strings.TrimRight(cfg.GROBIDURL, "/"),
		userAgent: cfg.UserAgent,
		client:    httpClient,
	}
}

// Alive reports whether the service answers its liveness probe.
func (g *GROBIDConverter) Alive(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+aliveEndpoint, nil)
	if err != nil {
		return false
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// WaitAlive polls the liveness probe every interval until the service
// answers or ctx is done.
func (g *GROBIDConverter) WaitAlive(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if g.Alive(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return eris.Wrapf(ctx.Err(), "convert: grobid at %s did not come up", g.baseURL)
		case <-ticker.C:
		}
	}
}

// Convert uploads the PDF at pdfPath and returns the TEI XML. Busy
// responses (503) are retried with backoff.
func (g *GROBIDConverter) Convert(ctx context.Context, pdfPath string) ([]byte, error) {
	pdf, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, eris.Wrapf(err, "convert: read %s", pdfPath)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, f := range []struct{ name, value string }{
		{"generateIDs", "1"},
		{"consolidateHeader", "0"},
		{"consolidateCitations", "0"},
		{"includeRawCitations", "1"},
	} {
		if err := writer.WriteField(f.name, f.value); err != nil {
			return nil, eris.Wrapf(err, "convert: write field %s", f.name)
		}
	}
	for _, c := range teiCoordinates {
		if err := writer.WriteField("teiCoordinates", c); err != nil {
			return nil, eris.Wrap(err, "convert: write teiCoordinates")
		}
	}
	part, err := writer.CreateFormFile("input", filepath.Base(pdfPath))
	if err != nil {
		return nil, eris.Wrap(err, "convert: create form file")
	}
	if _, err := part.Write(pdf); err != nil {
		return nil, eris.Wrap(err, "convert: write pdf")
	}
	if err := writer.Close(); err != nil {
		return nil, eris.Wrap(err, "convert: close writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+fulltextEndpoint, &buf)
	if err != nil {
		return nil, eris.Wrap(err, "convert: build request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/xml")
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, g.client, req, g.maxRetries)
	if err != nil {
		return nil, eris.Wrapf(err, "convert: grobid request for %s", filepath.Base(pdfPath))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "convert: read grobid response")
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return nil, eris.Errorf("convert: grobid extracted no content from %s", filepath.Base(pdfPath))
	default:
		return nil, eris.Errorf("convert: grobid returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, eris.Errorf("convert: grobid returned an empty document for %s", filepath.Base(pdfPath))
	}
	return body, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
