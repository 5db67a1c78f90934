// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/grounding-engine/pkg/types"
)

const exportLimit = 100000

// ExportFile is the document written by ExportYAML and ExportJSON.
type ExportFile struct {
	Count int          `json:"count" yaml:"count"`
	Items []types.Item `json:"items" yaml:"items"`
}

// ExportYAML writes the items matching q to exportDir/items.yaml and
// returns the path written.
func (s *Store) ExportYAML(ctx context.Context, q ItemQuery) (string, error) {
	f, err := s.exportFile(ctx, q)
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return "", eris.Wrap(err, "store: marshal YAML")
	}
	return s.writeExport("items.yaml", data)
}

// ExportJSON writes the items matching q to exportDir/items.json and
// returns the path written.
func (s *Store) ExportJSON(ctx context.Context, q ItemQuery) (string, error) {
	f, err := s.exportFile(ctx, q)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "store: marshal JSON")
	}
	return s.writeExport("items.json", data)
}

func (s *Store) exportFile(ctx context.Context, q ItemQuery) (*ExportFile, error) {
	q.MaxResults = exportLimit
	items, err := s.SearchItems(ctx, q)
	if err != nil {
		return nil, eris.Wrap(err, "store: query for export")
	}
	if items == nil {
		items = []types.Item{}
	}
	return &ExportFile{Count: len(items), Items: items}, nil
}

func (s *Store) writeExport(name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return "", eris.Wrap(err, "store: create export directory")
	}
	path := filepath.Join(s.exportDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "store: write %s", path)
	}
	return path, nil
}
