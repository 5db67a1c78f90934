// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieve gathers evidence blocks for a candidate: section-scoped
// vector search with a document-wide fallback, followed by neighbor
// expansion within each hit's section.
//
// Retrieval is best effort. Failed calls are logged as *RetrievalError and
// degrade to fewer results; Retrieve itself never fails.
package retrieve

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/grounding-engine/internal/embed"
	"github.com/pdiddy/grounding-engine/internal/store"
	"github.com/pdiddy/grounding-engine/pkg/types"
)

// queryConcurrency bounds concurrent queries for one candidate.
const queryConcurrency = 4

// VectorIndex is the nearest-neighbor search the retriever needs.
// *store.Store satisfies it.
type VectorIndex interface {
	Query(ctx context.Context, vec []float32, k int, filter store.VectorFilter) ([]store.VectorHit, error)
}

// BlockStore is the block lookup the retriever needs. *store.Store
// satisfies it.
type BlockStore interface {
	GetBlocksByIDs(ctx context.Context, documentID string, ids []string) ([]types.Block, error)
	GetBlocksBySection(ctx context.Context, documentID, sectionID string) ([]types.Block, error)
}

// RetrievalError reports an embedder, index or store failure for one
// operation. It is logged, never returned from Retrieve.
type RetrievalError struct {
	// Op is "embed", "search", "fetch" or "neighbors".
	Op          string
	CandidateID string
	Err         error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieve %s for %s: %v", e.Op, e.CandidateID, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// Stats counts what one Retrieve call did.
type Stats struct {
	Queries   int
	Fallbacks int
	Hits      int
	Neighbors int
	Errors    int
}

// Retriever finds evidence blocks for candidates.
type Retriever struct {
	embedder embed.Embedder
	index    VectorIndex
	blocks   BlockStore
	cfg      types.RetrievalConfig
}

// New returns a Retriever. Zero TopK defaults to 12.
func New(embedder embed.Embedder, index VectorIndex, blocks BlockStore, cfg types.RetrievalConfig) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 12
	}
	if cfg.NeighborWindow < 0 {
		cfg.NeighborWindow = 0
	}
	return &Retriever{embedder: embedder, index: index, blocks: blocks, cfg: cfg}
}

// Queries returns the query strings for c: its evidence hints followed by
// its label and summary joined by a space. Blank and repeated strings are
// dropped.
func Queries(c types.Candidate) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(q string) {
		q = strings.TrimSpace(q)
		if q == "" || seen[q] {
			return
		}
		seen[q] = true
		out = append(out, q)
	}
	for _, h := range c.EvidenceHints {
		add(h)
	}
	add(c.Label + " " + c.Summary)
	return out
}

// FallbackThreshold is the hit count below which a section-scoped search is
// repeated across the whole document: max(3, topK/2).
func FallbackThreshold(topK int) int {
	return max(3, topK/2)
}

// Retrieve returns the evidence blocks for candidate c in documentID. Direct
// hits come first, ordered by descending score, followed by neighbors in
// section and block order.
func (r *Retriever) Retrieve(ctx context.Context, documentID string, c types.Candidate) []types.EvidenceBlock {
	ev, _ := r.RetrieveWithStats(ctx, documentID, c)
	return ev
}

// RetrieveWithStats is Retrieve that also reports what happened.
func (r *Retriever) RetrieveWithStats(ctx context.Context, documentID string, c types.Candidate) ([]types.EvidenceBlock, Stats) {
	var st Stats
	queries := Queries(c)
	st.Queries = len(queries)
	if len(queries) == 0 {
		return nil, st
	}
	log := zap.L().With(zap.String("document_id", documentID), zap.String("candidate_id", c.ID))

	results := make([]queryResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(queryConcurrency)
	for i, q := range queries {
		g.Go(func() error {
			results[i] = r.runQuery(gctx, documentID, c, q)
			return nil
		})
	}
	_ = g.Wait()

	scores := make(map[string]float64)
	var order []string
	for _, res := range results {
		for _, err := range res.errs {
			r.report(log, &st, err)
		}
		if res.fellBack {
			st.Fallbacks++
		}
		for _, h := range res.hits {
			prev, ok := scores[h.ID]
			if !ok {
				order = append(order, h.ID)
			}
			if !ok || h.Score > prev {
				scores[h.ID] = h.Score
			}
		}
	}
	if len(order) == 0 {
		return nil, st
	}

	fetchCtx, cancel := r.withTimeout(ctx)
	hitBlocks, err := r.blocks.GetBlocksByIDs(fetchCtx, documentID, order)
	cancel()
	if err != nil {
		r.report(log, &st, &RetrievalError{Op: "fetch", CandidateID: c.ID, Err: err})
		return nil, st
	}
	sort.SliceStable(hitBlocks, func(i, j int) bool {
		si, sj := scores[hitBlocks[i].ID], scores[hitBlocks[j].ID]
		if si != sj {
			return si > sj
		}
		return hitBlocks[i].ID < hitBlocks[j].ID
	})

	present := make(map[string]bool, len(hitBlocks))
	out := make([]types.EvidenceBlock, 0, len(hitBlocks))
	for _, b := range hitBlocks {
		present[b.ID] = true
		out = append(out, evidence(b, scores[b.ID]))
	}
	st.Hits = len(out)

	neighbors := r.expand(ctx, log, &st, documentID, c.ID, hitBlocks, present)
	st.Neighbors = len(neighbors)
	out = append(out, neighbors...)

	log.Debug("retrieved evidence",
		zap.Int("queries", st.Queries), zap.Int("fallbacks", st.Fallbacks),
		zap.Int("hits", st.Hits), zap.Int("neighbors", st.Neighbors))
	return out, st
}

// queryResult is what one query string contributed.
type queryResult struct {
	hits     []store.VectorHit
	fellBack bool
	errs     []*RetrievalError
}

// runQuery embeds q and searches with it. A failure affects this query only.
func (r *Retriever) runQuery(ctx context.Context, documentID string, c types.Candidate, q string) queryResult {
	vec, err := r.embed(ctx, q)
	if err != nil {
		return queryResult{errs: []*RetrievalError{{Op: "embed", CandidateID: c.ID, Err: err}}}
	}
	var res queryResult
	hits, fellBack, errs := r.search(ctx, documentID, c.SectionID, vec)
	res.hits, res.fellBack = hits, fellBack
	for _, err := range errs {
		res.errs = append(res.errs, &RetrievalError{Op: "search", CandidateID: c.ID, Err: err})
	}
	return res
}

func (r *Retriever) embed(ctx context.Context, query string) ([]float32, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, eris.Errorf("embedder returned %d vectors for 1 query", len(vecs))
	}
	return vecs[0], nil
}

// search runs the section-scoped query and, when it comes back thin, the
// document-wide one. Hits from both are returned. A failed section query
// still triggers the fallback.
func (r *Retriever) search(ctx context.Context, documentID, sectionID string, vec []float32) ([]store.VectorHit, bool, []error) {
	filter := store.VectorFilter{DocumentID: documentID, SectionID: sectionID}
	var (
		hits []store.VectorHit
		errs []error
	)
	if sectionID != "" {
		local, err := r.query(ctx, vec, filter)
		if err != nil {
			errs = append(errs, err)
		}
		if len(local) >= FallbackThreshold(r.cfg.TopK) {
			return local, false, nil
		}
		hits = local
	}

	filter.SectionID = ""
	global, err := r.query(ctx, vec, filter)
	if err != nil {
		return hits, sectionID != "", append(errs, err)
	}
	return append(hits, global...), sectionID != "", errs
}

func (r *Retriever) query(ctx context.Context, vec []float32, filter store.VectorFilter) ([]store.VectorHit, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.index.Query(ctx, vec, r.cfg.TopK, filter)
}

// expand adds, for each hit, the stored blocks up to NeighborWindow
// positions away in the hit's section, ordered by block_index. Positions are
// taken in the stored list so blocks dropped as noise or owned by a
// subsection do not hide the real neighbor. Blocks already present are
// skipped.
func (r *Retriever) expand(ctx context.Context, log *zap.Logger, st *Stats, documentID, candidateID string, hits []types.Block, present map[string]bool) []types.EvidenceBlock {
	w := r.cfg.NeighborWindow
	if w == 0 {
		return nil
	}
	sections := make(map[string][]types.Block)
	var found []types.Block
	for _, h := range hits {
		list, ok := sections[h.SectionID]
		if !ok {
			nctx, cancel := r.withTimeout(ctx)
			var err error
			list, err = r.blocks.GetBlocksBySection(nctx, documentID, h.SectionID)
			cancel()
			if err != nil {
				r.report(log, st, &RetrievalError{Op: "neighbors", CandidateID: candidateID, Err: err})
				continue
			}
			sections[h.SectionID] = list
		}
		pos := slices.IndexFunc(list, func(b types.Block) bool { return b.ID == h.ID })
		if pos < 0 {
			continue
		}
		for _, b := range list[max(0, pos-w):min(len(list), pos+w+1)] {
			if present[b.ID] {
				continue
			}
			present[b.ID] = true
			found = append(found, b)
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].SectionID != found[j].SectionID {
			return found[i].SectionID < found[j].SectionID
		}
		return found[i].BlockIndex < found[j].BlockIndex
	})
	out := make([]types.EvidenceBlock, 0, len(found))
	for _, b := range found {
		out = append(out, evidence(b, 0))
	}
	return out
}

func (r *Retriever) report(log *zap.Logger, st *Stats, err *RetrievalError) {
	st.Errors++
	log.Warn("retrieval degraded", zap.String("op", err.Op), zap.Error(err))
}

func (r *Retriever) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.cfg.Timeout)
}

func evidence(b types.Block, score float64) types.EvidenceBlock {
	return types.EvidenceBlock{
		BlockID:   b.ID,
		SectionID: b.SectionID,
		Type:      b.Type,
		Text:      b.Text,
		Score:     score,
	}
}
