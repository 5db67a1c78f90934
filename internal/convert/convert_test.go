// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/grounding-engine/internal/httputil"
	"github.com/pdiddy/grounding-engine/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

const sampleTEI = `<TEI xmlns="http://www.tei-c.org/ns/1.0"><text><body/></text></TEI>`

// selectiveConverter returns different results per file path.
type selectiveConverter struct {
	outputs map[string]string
	errors  map[string]error
	calls   int
}

func (s *selectiveConverter) Convert(_ context.Context, pdfPath string) ([]byte, error) {
	s.calls++
	if err, ok := s.errors[pdfPath]; ok {
		return nil, err
	}
	if out, ok := s.outputs[pdfPath]; ok {
		return []byte(out), nil
	}
	return nil, errors.New("unexpected path: " + pdfPath)
}

// setupPDFs creates PDFs under a temp papers/raw directory.
func setupPDFs(t *testing.T, names ...string) (paths []string, papersDir string) {
	t.Helper()
	papersDir = t.TempDir()
	dir := filepath.Join(papersDir, rawDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, []byte("%PDF-1.7 fake"), 0o644))
		paths = append(paths, p)
	}
	return paths, papersDir
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("papers", "tei", "2301.07041.tei.xml"),
		OutputPath("/data/raw/2301.07041.pdf", "papers"))
}

func TestConvertPaper(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		preCreate  bool
		force      bool
		wantStatus types.ConversionStatus
		wantLog    string
		wantCalls  int
	}{
		{name: "successful conversion", wantStatus: types.ConversionDone, wantLog: "converted:", wantCalls: 1},
		{name: "skip existing tei", preCreate: true, wantStatus: ConversionNone, wantLog: "skipped:"},
		{name: "force overwrites", preCreate: true, force: true, wantStatus: types.ConversionDone, wantLog: "converted:", wantCalls: 1},
		{name: "conversion failure", err: errors.New("grobid down"), wantStatus: types.ConversionFailed, wantLog: "failed:", wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths, papersDir := setupPDFs(t, "2301.07041.pdf")
			conv := &selectiveConverter{outputs: map[string]string{paths[0]: sampleTEI}}
			if tt.err != nil {
				conv.errors = map[string]error{paths[0]: tt.err}
			}
			out := OutputPath(paths[0], papersDir)
			if tt.preCreate {
				require.NoError(t, os.MkdirAll(filepath.Dir(out), 0o755))
				require.NoError(t, os.WriteFile(out, []byte("existing"), 0o644))
			}

			var log bytes.Buffer
			gotPath, status := ConvertPaper(context.Background(), conv, paths[0], papersDir, tt.force, &log)

			assert.Equal(t, tt.wantStatus, status)
			assert.Contains(t, log.String(), tt.wantLog)
			assert.Equal(t, tt.wantCalls, conv.calls)
			if status == types.ConversionDone {
				assert.Equal(t, out, gotPath)
				data, err := os.ReadFile(out)
				require.NoError(t, err)
				assert.Equal(t, sampleTEI, string(data))
			}
		})
	}
}

func TestConvertPaths(t *testing.T) {
	paths, papersDir := setupPDFs(t, "a.pdf", "b.pdf", "c.pdf")

	// Pre-create output for "b" to trigger skip.
	existing := OutputPath(paths[1], papersDir)
	require.NoError(t, os.MkdirAll(filepath.Dir(existing), 0o755))
	require.NoError(t, os.WriteFile(existing, []byte("existing"), 0o644))

	conv := &selectiveConverter{
		outputs: map[string]string{paths[0]: sampleTEI},
		errors:  map[string]error{paths[2]: errors.New("bad pdf")},
	}

	var log bytes.Buffer
	result := ConvertPaths(context.Background(), conv, paths, papersDir, false, &log)

	assert.Equal(t, 1, result.Converted)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 3, result.Total())
	assert.True(t, result.HasFailures())
	assert.Equal(t, []string{OutputPath(paths[0], papersDir), existing}, result.Outputs)
	assert.Contains(t, log.String(), "Batch summary: 1 converted, 1 skipped, 1 failed (total: 3)")
}

func TestRawPDFs(t *testing.T) {
	paths, papersDir := setupPDFs(t, "b.pdf", "a.pdf")
	require.NoError(t, os.WriteFile(filepath.Join(papersDir, rawDir, "notes.txt"), nil, 0o644))

	got, err := RawPDFs(papersDir)
	require.NoError(t, err)
	assert.Equal(t, []string{paths[1], paths[0]}, got)
}

func TestGROBIDConvert(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, fulltextEndpoint, r.URL.Path)
		assert.Equal(t, "grounding-engine/test", r.Header.Get("User-Agent"))

		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "1", r.FormValue("generateIDs"))
		assert.Equal(t, teiCoordinates, r.MultipartForm.Value["teiCoordinates"])
		f, hdr, err := r.FormFile("input")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "paper.pdf", hdr.Filename)
		assert.Equal(t, "%PDF-1.7 fake", string(data))

		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(sampleTEI))
	}))
	defer ts.Close()

	pdf := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.7 fake"), 0o644))

	g := NewGROBIDConverter(types.ConversionConfig{
		HTTPConfig: types.HTTPConfig{UserAgent: "grounding-engine/test"},
		GROBIDURL:  ts.URL + "/",
	}, ts.Client())

	tei, err := g.Convert(context.Background(), pdf)
	require.NoError(t, err)
	assert.Equal(t, sampleTEI, string(tei))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "busy response is retried")
}

func TestGROBIDConvertFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"no content", http.StatusNoContent, "", "no content"},
		{"server error", http.StatusInternalServerError, "boom", "grobid returned 500: boom"},
		{"empty body", http.StatusOK, "  ", "empty document"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			pdf := filepath.Join(t.TempDir(), "paper.pdf")
			require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0o644))

			g := NewGROBIDConverter(types.ConversionConfig{GROBIDURL: ts.URL}, ts.Client())
			_, err := g.Convert(context.Background(), pdf)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGROBIDConvertMissingPDF(t *testing.T) {
	g := NewGROBIDConverter(types.ConversionConfig{GROBIDURL: "http://127.0.0.1:1"}, nil)
	_, err := g.Convert(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestGROBIDAlive(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != aliveEndpoint {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("true"))
	}))
	defer ts.Close()

	assert.True(t, NewGROBIDConverter(types.ConversionConfig{GROBIDURL: ts.URL}, ts.Client()).Alive(context.Background()))
	ts.Close()
	assert.False(t, NewGROBIDConverter(types.ConversionConfig{GROBIDURL: ts.URL}, ts.Client()).Alive(context.Background()))
}

func TestGROBIDWaitAlive(t *testing.T) {
	var probes int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&probes, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("true"))
	}))
	defer ts.Close()

	g := NewGROBIDConverter(types.ConversionConfig{GROBIDURL: ts.URL}, ts.Client())
	require.NoError(t, g.WaitAlive(context.Background(), time.Millisecond))
	assert.Equal(t, int32(3), atomic.LoadInt32(&probes))
}

func TestGROBIDWaitAliveTimesOut(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	g := NewGROBIDConverter(types.ConversionConfig{GROBIDURL: ts.URL}, ts.Client())
	err := g.WaitAlive(ctx, time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not come up")
}
