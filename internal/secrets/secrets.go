// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: anthropic-api-key, embedding-api-key.
package secrets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/grounding-engine/pkg/types"
)

// Key file names.
const (
	AnthropicAPIKey = "anthropic-api-key"
	EmbeddingAPIKey = "embedding-api-key"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, eris.Wrapf(err, "secrets: read directory %s", dir)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			zap.L().Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Apply fills empty API keys in cfg from loaded secrets. Keys already set by
// the config file or GROUNDING_ENGINE_* environment variables win.
func Apply(cfg *types.PipelineConfig, secrets map[string]string) {
	if cfg.Extraction.APIKey == "" {
		cfg.Extraction.APIKey = secrets[AnthropicAPIKey]
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = secrets[EmbeddingAPIKey]
	}
}
