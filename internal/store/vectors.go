// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/binary"
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// VectorPayload is the metadata stored with each block vector.
type VectorPayload struct {
	BlockID    string `json:"block_id"`
	DocumentID string `json:"document_id"`
	SectionID  string `json:"section_id"`
	Type       string `json:"type"`
	TextHash   string `json:"text_hash"`
	BlockIndex int    `json:"block_index"`
}

// VectorRecord is one entry of the vector index. ID is the block id.
type VectorRecord struct {
	ID      string
	Vector  []float32
	Payload VectorPayload
}

// VectorFilter restricts a vector query. Empty fields match everything.
type VectorFilter struct {
	DocumentID string
	SectionID  string
}

// VectorHit is a query result.
type VectorHit struct {
	ID      string
	Score   float64
	Payload VectorPayload
}

// Upsert writes vectors, replacing existing entries with the same id.
// Records are committed in batches of the configured upsert batch size.
func (s *Store) Upsert(ctx context.Context, records []VectorRecord) error {
	for start := 0; start < len(records); start += s.batchSize {
		if err := s.upsertBatch(ctx, records[start:min(start+s.batchSize, len(records))]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertBatch(ctx context.Context, records []VectorRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO vectors (block_id, document_id, section_id, type, text_hash, block_index, dimensions, vector)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(block_id) DO UPDATE SET
			document_id=excluded.document_id, section_id=excluded.section_id, type=excluded.type,
			text_hash=excluded.text_hash, block_index=excluded.block_index,
			dimensions=excluded.dimensions, vector=excluded.vector`)
	if err != nil {
		return eris.Wrap(err, "store: prepare vector upsert")
	}
	defer stmt.Close()

	for _, r := range records {
		if len(r.Vector) == 0 {
			return eris.Errorf("store: empty vector for %s", r.ID)
		}
		p := r.Payload
		if _, err := stmt.ExecContext(ctx,
			r.ID, p.DocumentID, p.SectionID, p.Type, p.TextHash, p.BlockIndex, len(r.Vector), EncodeVector(r.Vector),
		); err != nil {
			return eris.Wrapf(err, "store: upsert vector %s", r.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "store: commit vectors")
	}
	return nil
}

// VectorPayloads returns the payload stored with each vector of a document,
// keyed by block id. The indexer compares them with the current blocks to
// skip re-embedding unchanged ones.
func (s *Store) VectorPayloads(ctx context.Context, documentID string) (map[string]VectorPayload, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT block_id, document_id, section_id, type, text_hash, block_index FROM vectors WHERE document_id = ?`,
		documentID)
	if err != nil {
		return nil, eris.Wrap(err, "store: query vector payloads")
	}
	defer rows.Close()

	out := make(map[string]VectorPayload)
	for rows.Next() {
		var p VectorPayload
		if err := rows.Scan(&p.BlockID, &p.DocumentID, &p.SectionID, &p.Type, &p.TextHash, &p.BlockIndex); err != nil {
			return nil, eris.Wrap(err, "store: scan vector payload")
		}
		out[p.BlockID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate vector payloads")
	}
	return out, nil
}

// Query returns the k stored vectors most similar to vec by cosine
// similarity, best first. Ties are broken by block id.
func (s *Store) Query(ctx context.Context, vec []float32, k int, filter VectorFilter) ([]VectorHit, error) {
	if k <= 0 {
		k = s.maxResults
	}

	q := `SELECT block_id, document_id, section_id, type, text_hash, block_index, vector FROM vectors WHERE 1=1`
	var args []any
	if filter.DocumentID != "" {
		q += ` AND document_id = ?`
		args = append(args, filter.DocumentID)
	}
	if filter.SectionID != "" {
		q += ` AND section_id = ?`
		args = append(args, filter.SectionID)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: query vectors")
	}
	defer rows.Close()

	var hits []VectorHit
	for rows.Next() {
		var (
			h    VectorHit
			blob []byte
		)
		if err := rows.Scan(&h.ID, &h.Payload.DocumentID, &h.Payload.SectionID, &h.Payload.Type,
			&h.Payload.TextHash, &h.Payload.BlockIndex, &blob); err != nil {
			return nil, eris.Wrap(err, "store: scan vector")
		}
		h.Payload.BlockID = h.ID
		h.Score = Cosine(vec, DecodeVector(blob))
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate vectors")
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// EncodeVector packs a vector as little-endian float32 values.
func EncodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector unpacks a vector written by EncodeVector.
func DecodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
