// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "grounding-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// ChunkingConfig bounds the size of a single block. Passages above either
// budget are split at sentence boundaries.
type ChunkingConfig struct {
	// MaxChars is the character budget per chunk (default 1200).
	MaxChars int `json:"max_chars" yaml:"max_chars" mapstructure:"max_chars"`

	// MaxSentences is the sentence budget per chunk (default 10).
	MaxSentences int `json:"max_sentences" yaml:"max_sentences" mapstructure:"max_sentences"`

	// OverlapSentences repeats the trailing sentences of a chunk at the start
	// of the next one (default 0).
	OverlapSentences int `json:"overlap_sentences" yaml:"overlap_sentences" mapstructure:"overlap_sentences"`
}

// TableDetectionConfig holds the thresholds for promoting paragraph text to a
// table. Every threshold is inclusive.
type TableDetectionConfig struct {
	// MinTextLen is the shortest text considered.
	MinTextLen int `json:"min_text_len" yaml:"min_text_len" mapstructure:"min_text_len"`

	// MinRows is the fewest pseudo-rows the prefilter accepts.
	MinRows int `json:"min_rows" yaml:"min_rows" mapstructure:"min_rows"`

	// MinMultiSpaceRows is the fewest rows containing a column gap.
	MinMultiSpaceRows int `json:"min_multi_space_rows" yaml:"min_multi_space_rows" mapstructure:"min_multi_space_rows"`

	// MinNumericHits is the fewest numeric tokens when rows have column gaps.
	MinNumericHits int `json:"min_numeric_hits" yaml:"min_numeric_hits" mapstructure:"min_numeric_hits"`

	// MinTotalNumeric is the fewest numeric and percent tokens when rows have
	// no column gaps.
	MinTotalNumeric int `json:"min_total_numeric" yaml:"min_total_numeric" mapstructure:"min_total_numeric"`

	// MinGridRows and MinGridCols bound the parsed grid.
	MinGridRows int `json:"min_grid_rows" yaml:"min_grid_rows" mapstructure:"min_grid_rows"`
	MinGridCols int `json:"min_grid_cols" yaml:"min_grid_cols" mapstructure:"min_grid_cols"`
}

// FigureDetectionConfig holds the thresholds for promoting paragraph text to a
// figure caption.
type FigureDetectionConfig struct {
	MaxCaptionChars int `json:"max_caption_chars" yaml:"max_caption_chars" mapstructure:"max_caption_chars"`
	MaxCaptionWords int `json:"max_caption_words" yaml:"max_caption_words" mapstructure:"max_caption_words"`

	// AllowInlineReference accepts a figure reference inside the first 40
	// characters when it is followed by a colon.
	AllowInlineReference bool `json:"allow_inline_reference" yaml:"allow_inline_reference" mapstructure:"allow_inline_reference"`
}

// BuildConfig holds settings for block construction.
type BuildConfig struct {
	Chunking ChunkingConfig        `json:"chunking" yaml:"chunking" mapstructure:"chunking"`
	Tables   TableDetectionConfig  `json:"tables" yaml:"tables" mapstructure:"tables"`
	Figures  FigureDetectionConfig `json:"figures" yaml:"figures" mapstructure:"figures"`

	// IncludeFront emits title and abstract blocks.
	IncludeFront bool `json:"include_front" yaml:"include_front" mapstructure:"include_front"`

	// IncludeBack emits back matter blocks.
	IncludeBack bool `json:"include_back" yaml:"include_back" mapstructure:"include_back"`
}

// NoiseConfig holds settings for the noise filter.
type NoiseConfig struct {
	// MinLen is the shortest text accepted for types outside AllowShortTypes.
	MinLen int `json:"min_len" yaml:"min_len" mapstructure:"min_len"`

	// AllowShortTypes lists block types exempt from the length check.
	AllowShortTypes []BlockType `json:"allow_short_types" yaml:"allow_short_types" mapstructure:"allow_short_types"`

	// DropNoise removes noisy blocks instead of only flagging them.
	DropNoise bool `json:"drop_noise" yaml:"drop_noise" mapstructure:"drop_noise"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of retry attempts for transient API failures (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// MaxTokens caps the response length (default 4096).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// Temperature is the sampling temperature of the first attempt (default 0.2).
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`

	// RequestsPerSecond limits the call rate (default 2).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// Timeout bounds a single call (default 90s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// EmbeddingConfig holds settings for the OpenAI-compatible embedding API.
type EmbeddingConfig struct {
	// BaseURL is the API root (default "https://openrouter.ai/api/v1").
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Model is the embedding model (default "baai/bge-m3").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BatchSize is the number of texts per request (default 16).
	BatchSize int `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`

	// MaxRetries is the number of retry attempts (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// RequestsPerSecond limits the call rate (default 5).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// Timeout bounds a single request (default 120s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// RetrievalConfig holds settings for evidence retrieval.
type RetrievalConfig struct {
	// TopK is the number of nearest neighbors per query (default 12).
	TopK int `json:"top_k" yaml:"top_k" mapstructure:"top_k"`

	// NeighborWindow is how many stored blocks on each side of a hit, in its
	// section's block order, are added as context (default 1).
	NeighborWindow int `json:"neighbor_window" yaml:"neighbor_window" mapstructure:"neighbor_window"`

	// Timeout bounds each embed or search call (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// ExtractionConfig holds settings for candidate proposal and field extraction.
type ExtractionConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// MaxSectionChars caps the text sent for a section summary (default 8000).
	MaxSectionChars int `json:"max_section_chars" yaml:"max_section_chars" mapstructure:"max_section_chars"`
}

// StoreConfig holds settings for the SQLite store.
type StoreConfig struct {
	// Path is the database file (default "knowledge/index/grounding.db").
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// ExportDir is where item exports are written (default "knowledge/export").
	ExportDir string `json:"export_dir" yaml:"export_dir" mapstructure:"export_dir"`

	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// UpsertBatchSize is the number of vectors written per transaction (default 64).
	UpsertBatchSize int `json:"upsert_batch_size" yaml:"upsert_batch_size" mapstructure:"upsert_batch_size"`
}

// ConversionConfig holds settings for the conversion stage.
type ConversionConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// GROBIDURL is the GROBID service root (default "http://localhost:8070").
	GROBIDURL string `json:"grobid_url" yaml:"grobid_url" mapstructure:"grobid_url"`

	// GROBIDImage is the container image started by "grobid start"
	// (default "grobid/grobid:0.8.1").
	GROBIDImage string `json:"grobid_image" yaml:"grobid_image" mapstructure:"grobid_image"`

	// GROBIDContainer is the name of the local GROBID container
	// (default "grounding-engine-grobid").
	GROBIDContainer string `json:"grobid_container" yaml:"grobid_container" mapstructure:"grobid_container"`

	// PapersDir is the base directory for papers (contains raw/, tei/).
	PapersDir string `json:"papers_dir" yaml:"papers_dir" mapstructure:"papers_dir"`
}

// RunConfig holds orchestration settings.
type RunConfig struct {
	// Workers bounds concurrent per-candidate work (default 4).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	// SummarizeSections asks the model for a summary of each section.
	SummarizeSections bool `json:"summarize_sections" yaml:"summarize_sections" mapstructure:"summarize_sections"`
}

// LogConfig selects the logger level and encoding.
type LogConfig struct {
	// Level is a zap level name (default "info").
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is "json" or "console" (default "console").
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Build      BuildConfig      `json:"build" yaml:"build" mapstructure:"build"`
	Noise      NoiseConfig      `json:"noise" yaml:"noise" mapstructure:"noise"`
	Embedding  EmbeddingConfig  `json:"embedding" yaml:"embedding" mapstructure:"embedding"`
	Retrieval  RetrievalConfig  `json:"retrieval" yaml:"retrieval" mapstructure:"retrieval"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
	Store      StoreConfig      `json:"store" yaml:"store" mapstructure:"store"`
	Conversion ConversionConfig `json:"conversion" yaml:"conversion" mapstructure:"conversion"`
	Run        RunConfig        `json:"run" yaml:"run" mapstructure:"run"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
}
