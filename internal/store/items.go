// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/grounding-engine/pkg/types"
)

// ItemQuery holds parameters for item searches.
type ItemQuery struct {
	// Query is an FTS5 search over item labels and summaries.
	Query string

	// Kind filters by item kind.
	Kind types.ItemKind

	// DocumentID filters by document.
	DocumentID string

	// MinCoverage keeps items at or above this coverage level.
	MinCoverage types.CoverageLevel

	// MaxResults limits the result count. Zero uses the store default.
	MaxResults int
}

// PutItems upserts items by id. Items are immutable once admitted, so a
// repeated put of the same id replaces an identical record.
func (s *Store) PutItems(ctx context.Context, items []types.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO items (id, document_id, candidate_id, kind, label, summary, coverage_level, confidence, body)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			document_id=excluded.document_id, candidate_id=excluded.candidate_id, kind=excluded.kind,
			label=excluded.label, summary=excluded.summary, coverage_level=excluded.coverage_level,
			confidence=excluded.confidence, body=excluded.body`)
	if err != nil {
		return eris.Wrap(err, "store: prepare item insert")
	}
	defer stmt.Close()

	for _, it := range items {
		body, err := json.Marshal(it)
		if err != nil {
			return eris.Wrapf(err, "store: marshal item %s", it.ID)
		}
		if _, err := stmt.ExecContext(ctx,
			it.ID, it.DocumentID, nullString(it.CandidateID), string(it.Kind), it.Label.String(),
			it.Summary.String(), string(it.Grounding.CoverageLevel), it.ConfidenceOverall, string(body),
		); err != nil {
			return eris.Wrapf(err, "store: insert item %s", it.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "store: commit items")
	}
	return nil
}

// DeleteItems removes every item of a document.
func (s *Store) DeleteItems(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE document_id = ?`, documentID); err != nil {
		return eris.Wrapf(err, "store: delete items of %s", documentID)
	}
	return nil
}

// SearchItems returns items matching q. Full-text queries are ranked by
// relevance; structured-only queries are sorted by document, kind and label.
func (s *Store) SearchItems(ctx context.Context, q ItemQuery) ([]types.Item, error) {
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = q.Query != ""
	)
	if useFTS {
		qb.WriteString(`SELECT i.body FROM items_fts JOIN items i ON i.rowid = items_fts.rowid WHERE items_fts MATCH ?`)
		args = append(args, q.Query)
	} else {
		qb.WriteString(`SELECT i.body FROM items i WHERE 1=1`)
	}

	if q.Kind != "" {
		qb.WriteString(` AND i.kind = ?`)
		args = append(args, string(q.Kind))
	}
	if q.DocumentID != "" {
		qb.WriteString(` AND i.document_id = ?`)
		args = append(args, q.DocumentID)
	}
	if rank := q.MinCoverage.Rank(); rank > 0 {
		var levels []string
		for _, l := range []types.CoverageLevel{types.CoverageProtocol, types.CoverageDesign, types.CoverageResults} {
			if l.Rank() >= rank {
				levels = append(levels, "?")
				args = append(args, string(l))
			}
		}
		qb.WriteString(` AND i.coverage_level IN (` + strings.Join(levels, ",") + `)`)
	}

	if useFTS {
		qb.WriteString(` ORDER BY items_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY i.document_id, i.kind, i.label`)
	}
	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: search items")
	}
	defer rows.Close()

	var out []types.Item
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, eris.Wrap(err, "store: scan item")
		}
		var it types.Item
		if err := json.Unmarshal([]byte(body), &it); err != nil {
			return nil, eris.Wrap(err, "store: decode item")
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate items")
	}
	return out, nil
}

// GetItem returns the item with the given id.
func (s *Store) GetItem(ctx context.Context, id string) (*types.Item, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM items WHERE id = ?`, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "store: item %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get item %s", id)
	}
	var it types.Item
	if err := json.Unmarshal([]byte(body), &it); err != nil {
		return nil, eris.Wrap(err, "store: decode item")
	}
	return &it, nil
}
