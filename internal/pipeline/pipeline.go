// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs documents through normalization and evidence-grounded
// extraction: parse, build blocks, filter noise, store, index, propose
// candidates, retrieve evidence, extract items and validate their grounding.
//
// Each stage is also available on its own so the CLI can rebuild, reindex or
// re-extract a stored document. Only malformed documents and store failures
// are fatal; every other failure drops one candidate and is counted in the
// Summary.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/grounding-engine/internal/blocks"
	"github.com/pdiddy/grounding-engine/internal/candidate"
	"github.com/pdiddy/grounding-engine/internal/embed"
	"github.com/pdiddy/grounding-engine/internal/extract"
	"github.com/pdiddy/grounding-engine/internal/grounding"
	"github.com/pdiddy/grounding-engine/internal/llm"
	"github.com/pdiddy/grounding-engine/internal/noise"
	"github.com/pdiddy/grounding-engine/internal/retrieve"
	"github.com/pdiddy/grounding-engine/internal/store"
	"github.com/pdiddy/grounding-engine/pkg/types"
)

// Result is the outcome of a full run for one document.
type Result struct {
	Items   []types.Item
	Summary Summary
}

// Pipeline wires the stages to a store, an embedder and a language model.
type Pipeline struct {
	cfg       types.PipelineConfig
	store     *store.Store
	embedder  embed.Embedder
	backend   llm.Backend
	builder   *blocks.Builder
	retriever *retrieve.Retriever
	proposer  *candidate.Proposer
	extractor *extract.Extractor
	now       func() time.Time
}

// New creates a Pipeline. The store also serves as the vector index and the
// block source for retrieval.
func New(cfg types.PipelineConfig, st *store.Store, embedder embed.Embedder, backend llm.Backend) *Pipeline {
	if cfg.Run.Workers <= 0 {
		cfg.Run.Workers = 4
	}
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		embedder:  embedder,
		backend:   backend,
		builder:   blocks.NewBuilder(cfg.Build),
		retriever: retrieve.New(embedder, st, st, cfg.Retrieval),
		proposer:  candidate.NewProposer(backend, cfg.Extraction),
		extractor: extract.NewExtractor(backend, cfg.Extraction),
		now:       time.Now,
	}
}

// Run processes the converted file at path end to end.
func (p *Pipeline) Run(ctx context.Context, path string) (*Result, error) {
	sum, err := p.Build(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := p.Index(ctx, sum); err != nil {
		return nil, err
	}
	if p.cfg.Run.SummarizeSections {
		if err := p.Summarize(ctx, sum); err != nil {
			return nil, err
		}
	}
	items, err := p.Extract(ctx, sum)
	if err != nil {
		return nil, err
	}
	return &Result{Items: items, Summary: *sum}, nil
}

// Build parses path, builds and filters its blocks and replaces the stored
// document. A malformed document is returned as *doctree.StructuralError.
func (p *Pipeline) Build(ctx context.Context, path string) (*Summary, error) {
	documentID := DocumentID(path)
	doc, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	res, err := p.builder.Build(doc, documentID)
	if err != nil {
		return nil, err
	}

	kept, dropped := noise.Filter(res.Blocks, p.cfg.Noise)
	sections := noise.PruneSections(res.Sections, dropped)

	paper := types.Paper{
		ID:               documentID,
		Title:            doc.Title,
		StructurePath:    path,
		ConversionStatus: types.ConversionDone,
		BuiltAt:          p.now().UTC(),
	}
	if err := p.store.ReplaceDocument(ctx, paper, sections, kept); err != nil {
		return nil, err
	}

	zap.L().Info("document built",
		zap.String("document_id", documentID),
		zap.Int("sections", len(sections)),
		zap.Int("blocks", len(kept)),
		zap.Int("noise_dropped", len(dropped)))

	return &Summary{
		DocumentID:   documentID,
		Sections:     len(sections),
		Blocks:       len(kept),
		NoiseDropped: len(dropped),
	}, nil
}

// Index embeds the stored blocks of sum.DocumentID whose vector is missing or
// stale. An embedder failure is recorded in the summary and is not fatal:
// retrieval for the document then finds fewer or no hits.
func (p *Pipeline) Index(ctx context.Context, sum *Summary) error {
	bs, err := p.store.GetBlocks(ctx, sum.DocumentID)
	if err != nil {
		return err
	}
	existing, err := p.store.VectorPayloads(ctx, sum.DocumentID)
	if err != nil {
		return err
	}

	stale := staleBlocks(bs, existing)
	sum.Reused = len(bs) - len(stale)
	if len(stale) == 0 {
		return nil
	}

	texts := make([]string, len(stale))
	for i, b := range stale {
		texts[i] = b.Text
	}
	vecs, err := p.embedder.Embed(ctx, texts)
	if err == nil && len(vecs) != len(stale) {
		err = eris.Errorf("pipeline: got %d vectors for %d blocks", len(vecs), len(stale))
	}
	if err != nil {
		zap.L().Warn("indexing failed", zap.String("document_id", sum.DocumentID), zap.Error(err))
		sum.IndexError = err.Error()
		return nil
	}

	records := make([]store.VectorRecord, len(stale))
	for i, b := range stale {
		records[i] = store.VectorRecord{ID: b.ID, Vector: vecs[i], Payload: payloadOf(b)}
	}
	if err := p.store.Upsert(ctx, records); err != nil {
		return err
	}
	sum.Embedded = len(records)
	zap.L().Info("document indexed",
		zap.String("document_id", sum.DocumentID),
		zap.Int("embedded", sum.Embedded),
		zap.Int("reused", sum.Reused))
	return nil
}

// staleBlocks returns the blocks whose stored payload is missing or differs
// in text hash, section or position.
func staleBlocks(bs []types.Block, existing map[string]store.VectorPayload) []types.Block {
	var out []types.Block
	for _, b := range bs {
		if pl, ok := existing[b.ID]; ok && pl == payloadOf(b) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func payloadOf(b types.Block) store.VectorPayload {
	return store.VectorPayload{
		BlockID:    b.ID,
		DocumentID: b.DocumentID,
		SectionID:  b.SectionID,
		Type:       string(b.Type),
		TextHash:   b.TextHash,
		BlockIndex: b.BlockIndex,
	}
}

// Extract proposes candidates for every stored section of sum.DocumentID,
// merges them and runs retrieval, extraction and grounding per candidate with
// at most cfg.Run.Workers candidates in flight. Admitted items replace the
// document's stored items and are returned in candidate order.
func (p *Pipeline) Extract(ctx context.Context, sum *Summary) ([]types.Item, error) {
	documentID := sum.DocumentID
	sections, err := p.store.GetSections(ctx, documentID)
	if err != nil {
		return nil, err
	}
	bs, err := p.store.GetBlocks(ctx, documentID)
	if err != nil {
		return nil, err
	}

	proposed, failed := p.proposer.ProposeAll(ctx, sections, bs)
	merged := candidate.Merge(proposed)
	sum.Proposed = len(proposed)
	sum.ProposeFailures = failed
	sum.Merged = len(merged)

	outcomes := make([]candidateOutcome, len(merged))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Run.Workers)
	for i, c := range merged {
		g.Go(func() error {
			outcomes[i] = p.process(gctx, documentID, c)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrapf(err, "pipeline: extract %s", documentID)
	}

	var items []types.Item
	for _, o := range outcomes {
		if o.item == nil {
			sum.drop(o.reason)
			continue
		}
		items = append(items, *o.item)
	}
	sum.Admitted = len(items)

	if err := p.store.DeleteItems(ctx, documentID); err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := p.store.PutItems(ctx, items); err != nil {
			return nil, err
		}
	}

	zap.L().Info("document extracted",
		zap.String("document_id", documentID),
		zap.Int("candidates", len(merged)),
		zap.Int("admitted", len(items)),
		zap.Int("dropped", sum.Dropped()))
	return items, nil
}

// candidateOutcome is either an admitted item or a drop reason.
type candidateOutcome struct {
	item   *types.Item
	reason string
}

// process runs one candidate through retrieval, extraction and grounding.
func (p *Pipeline) process(ctx context.Context, documentID string, c types.Candidate) candidateOutcome {
	log := zap.L().With(zap.String("document_id", documentID), zap.String("candidate_id", c.ID))

	evidence := p.retriever.Retrieve(ctx, documentID, c)
	if len(evidence) == 0 {
		log.Debug("candidate dropped", zap.String("reason", DropNoEvidence))
		return candidateOutcome{reason: DropNoEvidence}
	}

	out, err := p.extractor.Extract(ctx, documentID, c, evidence)
	if err != nil {
		log.Warn("extraction failed", zap.Error(err))
		return candidateOutcome{reason: DropExtractionFailed}
	}
	if out.Dropped {
		log.Debug("candidate dropped", zap.String("reason", DropModel), zap.String("model_reason", out.DropReason))
		return candidateOutcome{reason: DropModel}
	}

	item, d := grounding.Validate(*out.Item)
	if d.StrippedIDs > 0 {
		log.Debug("malformed evidence removed", zap.Int("stripped", d.StrippedIDs))
	}
	if d.Drop {
		log.Debug("candidate dropped", zap.String("reason", d.Reason), zap.Strings("missing", d.Missing))
		return candidateOutcome{reason: d.Reason}
	}
	return candidateOutcome{item: &item}
}

// BatchResult summarizes a multi-document run.
type BatchResult struct {
	Done    int
	Failed  int
	Items   int
	Results []Summary
}

// HasFailures returns true if any document failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// RunPaths runs every path in order, printing progress and each summary to
// w. A failing document is reported and the batch continues; cancellation
// stops it.
func (p *Pipeline) RunPaths(ctx context.Context, paths []string, w io.Writer) BatchResult {
	var br BatchResult
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		fmt.Fprintf(w, "processing %s\n", path)
		res, err := p.Run(ctx, path)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", path, err)
			br.Failed++
			continue
		}
		res.Summary.Print(w)
		br.Done++
		br.Items += len(res.Items)
		br.Results = append(br.Results, res.Summary)
	}
	fmt.Fprintf(w, "\ndone: %d, failed: %d, items: %d\n", br.Done, br.Failed, br.Items)
	return br
}
