// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists documents, sections, blocks, items and block
// vectors in SQLite. Items are indexed for full-text search with FTS5.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"

	"github.com/pdiddy/grounding-engine/pkg/types"
)

// fetchBatch bounds the number of ids bound into a single IN clause.
const fetchBatch = 50

// Store manages the grounding SQLite database.
type Store struct {
	db         *sql.DB
	exportDir  string
	maxResults int
	batchSize  int
}

// Open opens or creates the database at cfg.Path and creates the schema if
// it does not exist.
func Open(cfg types.StoreConfig) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrap(err, "store: create index directory")
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, eris.Wrap(err, "store: open database")
	}

	s := &Store{
		db:         db,
		exportDir:  cfg.ExportDir,
		maxResults: cfg.MaxResults,
		batchSize:  cfg.UpsertBatchSize,
	}
	if s.maxResults <= 0 {
		s.maxResults = 20
	}
	if s.batchSize <= 0 {
		s.batchSize = 64
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "store: create schema")
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT,
			pdf_path TEXT,
			structure_path TEXT,
			conversion_status TEXT,
			built_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS sections (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			path TEXT NOT NULL,
			parent_id TEXT,
			level INTEGER NOT NULL,
			block_ids TEXT NOT NULL,
			summary TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sections_document ON sections(document_id)`,
		`CREATE TABLE IF NOT EXISTS blocks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			section_id TEXT NOT NULL,
			type TEXT NOT NULL,
			section_path TEXT NOT NULL,
			text TEXT NOT NULL CHECK (text <> ''),
			text_hash TEXT NOT NULL,
			block_index INTEGER NOT NULL,
			section_index INTEGER NOT NULL,
			chunk_index INTEGER,
			chunk_total INTEGER,
			source TEXT NOT NULL,
			flags TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_section ON blocks(document_id, section_id, block_index)`,
		`CREATE TABLE IF NOT EXISTS vectors (
			block_id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			section_id TEXT NOT NULL,
			type TEXT NOT NULL,
			text_hash TEXT NOT NULL,
			block_index INTEGER NOT NULL,
			dimensions INTEGER NOT NULL,
			vector BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_vectors_scope ON vectors(document_id, section_id)`,
		`CREATE TABLE IF NOT EXISTS items (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			candidate_id TEXT,
			kind TEXT NOT NULL,
			label TEXT NOT NULL,
			summary TEXT,
			coverage_level TEXT NOT NULL,
			confidence REAL,
			body TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_document ON items(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_items_kind ON items(kind)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return eris.Wrap(err, "executing schema statement")
		}
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='items_fts'`,
	).Scan(&ftsExists); err != nil {
		return eris.Wrap(err, "checking FTS table")
	}
	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE items_fts USING fts5(label, summary, content=items, content_rowid=rowid)`,
			`CREATE TRIGGER items_ai AFTER INSERT ON items BEGIN
				INSERT INTO items_fts(rowid, label, summary) VALUES (new.rowid, new.label, new.summary);
			END`,
			`CREATE TRIGGER items_ad AFTER DELETE ON items BEGIN
				INSERT INTO items_fts(items_fts, rowid, label, summary) VALUES('delete', old.rowid, old.label, old.summary);
			END`,
			`CREATE TRIGGER items_au AFTER UPDATE ON items BEGIN
				INSERT INTO items_fts(items_fts, rowid, label, summary) VALUES('delete', old.rowid, old.label, old.summary);
				INSERT INTO items_fts(rowid, label, summary) VALUES (new.rowid, new.label, new.summary);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return eris.Wrap(err, "creating FTS infrastructure")
			}
		}
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// PutDocument upserts a document record.
func (s *Store) PutDocument(ctx context.Context, p types.Paper) error {
	return putDocument(ctx, s.db, p)
}

func putDocument(ctx context.Context, ex execer, p types.Paper) error {
	builtAt := ""
	if !p.BuiltAt.IsZero() {
		builtAt = p.BuiltAt.UTC().Format(time.RFC3339)
	}
	_, err := ex.ExecContext(ctx,
		`INSERT INTO documents (id, title, pdf_path, structure_path, conversion_status, built_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, pdf_path=excluded.pdf_path, structure_path=excluded.structure_path,
			conversion_status=excluded.conversion_status, built_at=excluded.built_at`,
		p.ID, p.Title, p.PDFPath, p.StructurePath, string(p.ConversionStatus), builtAt,
	)
	if err != nil {
		return eris.Wrapf(err, "store: put document %s", p.ID)
	}
	return nil
}

// GetDocument returns the document record with the given id.
func (s *Store) GetDocument(ctx context.Context, id string) (*types.Paper, error) {
	var (
		p       types.Paper
		status  string
		builtAt sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, pdf_path, structure_path, conversion_status, built_at FROM documents WHERE id = ?`, id,
	).Scan(&p.ID, &p.Title, &p.PDFPath, &p.StructurePath, &status, &builtAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "store: document %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get document %s", id)
	}
	p.ConversionStatus = types.ConversionStatus(status)
	if builtAt.Valid && builtAt.String != "" {
		p.BuiltAt, _ = time.Parse(time.RFC3339, builtAt.String)
	}
	return &p, nil
}

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("not found")

// ReplaceDocument stores a document with its full section and block set in
// one transaction, removing sections and blocks left from a previous build
// and the vectors of blocks that no longer exist. Vectors of surviving
// blocks are kept; their text hash tells the indexer whether to re-embed.
// Either everything is written or nothing is.
func (s *Store) ReplaceDocument(ctx context.Context, p types.Paper, sections []types.Section, blocks []types.Block) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin transaction")
	}
	defer tx.Rollback()

	if err := putDocument(ctx, tx, p); err != nil {
		return err
	}
	for _, table := range []string{"sections", "blocks"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE document_id = ?`, p.ID); err != nil {
			return eris.Wrapf(err, "store: clear %s for %s", table, p.ID)
		}
	}
	if err := putSections(ctx, tx, sections); err != nil {
		return err
	}
	if err := putBlocks(ctx, tx, blocks); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`DELETE FROM vectors WHERE document_id = ? AND block_id NOT IN (SELECT id FROM blocks WHERE document_id = ?)`,
		p.ID, p.ID)
	if err != nil {
		return eris.Wrapf(err, "store: prune vectors for %s", p.ID)
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "store: commit document")
	}
	return nil
}

// PutSections upserts sections. The owning document must exist.
func (s *Store) PutSections(ctx context.Context, sections []types.Section) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin transaction")
	}
	defer tx.Rollback()
	if err := putSections(ctx, tx, sections); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "store: commit sections")
	}
	return nil
}

func putSections(ctx context.Context, ex execer, sections []types.Section) error {
	stmt, err := ex.PrepareContext(ctx,
		`INSERT OR REPLACE INTO sections (id, document_id, title, path, parent_id, level, block_ids, summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "store: prepare section insert")
	}
	defer stmt.Close()

	for _, sec := range sections {
		pathJSON, _ := json.Marshal(nonNil(sec.Path))
		idsJSON, _ := json.Marshal(nonNil(sec.BlockIDs))
		if _, err := stmt.ExecContext(ctx,
			sec.ID, sec.DocumentID, sec.Title, string(pathJSON), nullString(sec.ParentID),
			sec.Level, string(idsJSON), sec.Summary,
		); err != nil {
			return eris.Wrapf(err, "store: insert section %s", sec.ID)
		}
	}
	return nil
}

// UpdateSectionSummary sets the summary of one section.
func (s *Store) UpdateSectionSummary(ctx context.Context, sectionID, summary string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE sections SET summary = ? WHERE id = ?`, summary, sectionID); err != nil {
		return eris.Wrapf(err, "store: update summary of %s", sectionID)
	}
	return nil
}

// GetSections returns the sections of a document in level, then id order.
func (s *Store) GetSections(ctx context.Context, documentID string) ([]types.Section, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, title, path, parent_id, level, block_ids, summary
		 FROM sections WHERE document_id = ? ORDER BY level, rowid`, documentID)
	if err != nil {
		return nil, eris.Wrapf(err, "store: query sections of %s", documentID)
	}
	defer rows.Close()

	var out []types.Section
	for rows.Next() {
		var (
			sec               types.Section
			pathJSON, idsJSON string
			parentID, summary sql.NullString
		)
		if err := rows.Scan(&sec.ID, &sec.DocumentID, &sec.Title, &pathJSON, &parentID,
			&sec.Level, &idsJSON, &summary); err != nil {
			return nil, eris.Wrap(err, "store: scan section")
		}
		_ = json.Unmarshal([]byte(pathJSON), &sec.Path)
		_ = json.Unmarshal([]byte(idsJSON), &sec.BlockIDs)
		sec.ParentID = parentID.String
		sec.Summary = summary.String
		out = append(out, sec)
	}
	return out, rows.Err()
}

// PutBlocks upserts blocks. The owning document must exist.
func (s *Store) PutBlocks(ctx context.Context, blocks []types.Block) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin transaction")
	}
	defer tx.Rollback()
	if err := putBlocks(ctx, tx, blocks); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "store: commit blocks")
	}
	return nil
}

func putBlocks(ctx context.Context, ex execer, blocks []types.Block) error {
	stmt, err := ex.PrepareContext(ctx,
		`INSERT OR REPLACE INTO blocks (id, document_id, section_id, type, section_path, text, text_hash,
			block_index, section_index, chunk_index, chunk_total, source, flags)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "store: prepare block insert")
	}
	defer stmt.Close()

	for _, b := range blocks {
		if strings.TrimSpace(b.Text) == "" {
			return eris.Errorf("store: block %s has empty text", b.ID)
		}
		pathJSON, _ := json.Marshal(nonNil(b.SectionPath))
		sourceJSON, _ := json.Marshal(b.Source)
		flagsJSON, _ := json.Marshal(b.Flags)
		var chunkIndex, chunkTotal sql.NullInt64
		if b.Chunk != nil {
			chunkIndex = sql.NullInt64{Int64: int64(b.Chunk.Index), Valid: true}
			chunkTotal = sql.NullInt64{Int64: int64(b.Chunk.Total), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			b.ID, b.DocumentID, b.SectionID, string(b.Type), string(pathJSON), b.Text, b.TextHash,
			b.BlockIndex, b.SectionIndex, chunkIndex, chunkTotal, string(sourceJSON), string(flagsJSON),
		); err != nil {
			return eris.Wrapf(err, "store: insert block %s", b.ID)
		}
	}
	return nil
}

const blockColumns = `id, document_id, section_id, type, section_path, text, text_hash,
	block_index, section_index, chunk_index, chunk_total, source, flags`

// GetBlocks returns every block of a document ordered by block_index.
func (s *Store) GetBlocks(ctx context.Context, documentID string) ([]types.Block, error) {
	return s.queryBlocks(ctx,
		`SELECT `+blockColumns+` FROM blocks WHERE document_id = ? ORDER BY block_index`, documentID)
}

// GetBlocksByIDs returns the blocks with the given ids ordered by
// block_index. Unknown ids are ignored. Lookups are issued in batches of
// fetchBatch ids.
func (s *Store) GetBlocksByIDs(ctx context.Context, documentID string, ids []string) ([]types.Block, error) {
	var out []types.Block
	for start := 0; start < len(ids); start += fetchBatch {
		batch := ids[start:min(start+fetchBatch, len(ids))]
		args := make([]any, 0, len(batch)+1)
		args = append(args, documentID)
		for _, id := range batch {
			args = append(args, id)
		}
		q := `SELECT ` + blockColumns + ` FROM blocks WHERE document_id = ? AND id IN (?` +
			strings.Repeat(",?", len(batch)-1) + `)`
		blocks, err := s.queryBlocks(ctx, q, args...)
		if err != nil {
			return nil, err
		}
		out = append(out, blocks...)
	}
	sortBlocks(out)
	return out, nil
}

// GetBlocksBySection returns the blocks of one section ordered by block_index.
func (s *Store) GetBlocksBySection(ctx context.Context, documentID, sectionID string) ([]types.Block, error) {
	return s.queryBlocks(ctx,
		`SELECT `+blockColumns+` FROM blocks WHERE document_id = ? AND section_id = ? ORDER BY block_index`,
		documentID, sectionID)
}

func (s *Store) queryBlocks(ctx context.Context, query string, args ...any) ([]types.Block, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: query blocks")
	}
	defer rows.Close()

	var out []types.Block
	for rows.Next() {
		var (
			b                            types.Block
			typ                          string
			pathJSON, srcJSON, flagsJSON string
			chunkIndex, chunkTotal       sql.NullInt64
		)
		if err := rows.Scan(&b.ID, &b.DocumentID, &b.SectionID, &typ, &pathJSON, &b.Text, &b.TextHash,
			&b.BlockIndex, &b.SectionIndex, &chunkIndex, &chunkTotal, &srcJSON, &flagsJSON); err != nil {
			return nil, eris.Wrap(err, "store: scan block")
		}
		b.Type = types.BlockType(typ)
		_ = json.Unmarshal([]byte(pathJSON), &b.SectionPath)
		_ = json.Unmarshal([]byte(srcJSON), &b.Source)
		_ = json.Unmarshal([]byte(flagsJSON), &b.Flags)
		if chunkIndex.Valid {
			b.Chunk = &types.Chunk{Index: int(chunkIndex.Int64), Total: int(chunkTotal.Int64)}
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate blocks")
	}
	return out, nil
}

func sortBlocks(bs []types.Block) {
	for i := 1; i < len(bs); i++ {
		for j := i; j > 0 && bs[j].BlockIndex < bs[j-1].BlockIndex; j-- {
			bs[j], bs[j-1] = bs[j-1], bs[j]
		}
	}
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
