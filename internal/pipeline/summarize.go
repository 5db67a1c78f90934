// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/grounding-engine/internal/llm"
	"github.com/pdiddy/grounding-engine/pkg/types"
)

const summarySystem = "You summarize sections of protein biology papers. " +
	"Use only the given text. Reply with plain text, no markdown."

const summaryPrompt = "Summarize this section in 2-4 sentences. Name the assays, samples and " +
	"key quantitative results it reports.\n\nSECTION: "

// summaryTypes are the block types whose text feeds a section summary.
var summaryTypes = map[types.BlockType]bool{
	types.BlockAbstract:      true,
	types.BlockParagraph:     true,
	types.BlockTableBody:     true,
	types.BlockFigureCaption: true,
}

// SectionText joins the summary-relevant block text of one section, capped
// at maxChars runes. maxChars <= 0 means no cap.
func SectionText(blocks []types.Block, maxChars int) string {
	var sb strings.Builder
	for _, b := range blocks {
		if !summaryTypes[b.Type] {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(b.Text)
	}
	text := sb.String()
	if maxChars > 0 {
		if r := []rune(text); len(r) > maxChars {
			text = string(r[:maxChars])
		}
	}
	return text
}

// Summarize asks the model for a summary of every section with text. A
// failed call leaves that section's summary unchanged.
func (p *Pipeline) Summarize(ctx context.Context, sum *Summary) error {
	sections, err := p.store.GetSections(ctx, sum.DocumentID)
	if err != nil {
		return err
	}
	bs, err := p.store.GetBlocks(ctx, sum.DocumentID)
	if err != nil {
		return err
	}
	bySection := make(map[string][]types.Block)
	for _, b := range bs {
		bySection[b.SectionID] = append(bySection[b.SectionID], b)
	}

	summaries := make([]string, len(sections))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Run.Workers)
	for i, sec := range sections {
		text := SectionText(bySection[sec.ID], p.cfg.Extraction.MaxSectionChars)
		if strings.TrimSpace(text) == "" {
			continue
		}
		g.Go(func() error {
			temp := p.cfg.Extraction.Temperature
			out, err := p.backend.Complete(gctx, llm.Request{
				System:      summarySystem,
				Prompt:      summaryPrompt + sec.Title + "\n\n" + text,
				Temperature: &temp,
			})
			if err != nil {
				zap.L().Warn("section summary failed",
					zap.String("document_id", sum.DocumentID),
					zap.String("section_id", sec.ID),
					zap.Error(err))
				return nil
			}
			summaries[i] = strings.TrimSpace(out)
			return nil
		})
	}
	_ = g.Wait()

	for i, sec := range sections {
		if summaries[i] == "" {
			continue
		}
		if err := p.store.UpdateSectionSummary(ctx, sec.ID, summaries[i]); err != nil {
			return err
		}
		sum.Summarized++
	}
	return nil
}
