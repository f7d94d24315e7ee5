package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ragdesk/ragdesk/internal/adapter"
	"github.com/ragdesk/ragdesk/internal/db"
	"github.com/ragdesk/ragdesk/internal/ingest"
)

const formatVersion = "1"

var schema = []string{
	`CREATE TABLE index_meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE records (
		seq         INTEGER PRIMARY KEY,
		text        TEXT NOT NULL,
		source_id   TEXT NOT NULL,
		category    TEXT NOT NULL,
		char_offset INTEGER NOT NULL,
		embedding   BLOB NOT NULL
	)`,
}

// Save writes the index to path as an SQLite file. The file is written to a
// temporary sibling and renamed into place, so readers see either the old or
// the new index.
func (idx *Index) Save(ctx context.Context, path string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("index: save: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("index: save: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	conn, err := db.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("index: save: %w", err)
	}
	if err := idx.write(ctx, conn); err != nil {
		conn.Close()
		return fmt.Errorf("index: save: %w", err)
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("index: save: close: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("index: save: %w", err)
	}
	return nil
}

func (idx *Index) write(ctx context.Context, conn *sql.DB) error {
	withVec := db.VecAvailable(ctx, conn)
	if withVec {
		if err := db.CreateVecTable(ctx, conn, "vec_records", idx.dim); err != nil {
			withVec = false
		}
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	name, _ := describe(idx.embedder)
	meta := map[string]string{
		"format":    formatVersion,
		"embedder":  name,
		"dimension": strconv.Itoa(idx.dim),
		"count":     strconv.Itoa(len(idx.records)),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO index_meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("write meta: %w", err)
		}
	}

	insert, err := tx.PrepareContext(ctx,
		`INSERT INTO records (seq, text, source_id, category, char_offset, embedding) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insert.Close()

	var insertVec *sql.Stmt
	if withVec {
		insertVec, err = tx.PrepareContext(ctx, `INSERT INTO vec_records (rowid, embedding) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		defer insertVec.Close()
	}

	for i, r := range idx.records {
		c := r.Chunk
		if _, err := insert.ExecContext(ctx, i, c.Text, c.SourceID, c.Category, c.Offset, encodeVector(r.Vector)); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
		if insertVec == nil {
			continue
		}
		blob, err := db.SerializeVector(r.Vector)
		if err != nil {
			return fmt.Errorf("serialize record %d: %w", i, err)
		}
		if _, err := insertVec.ExecContext(ctx, i, blob); err != nil {
			return fmt.Errorf("write vector %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Load reads an index previously written by Save. Queries embed through
// embedder, which must be the one the index was built with: when it
// describes itself, a different provider, model or dimension is reported as
// ErrEmbedderMismatch before any record is read.
func Load(ctx context.Context, path string, embedder adapter.Embedder) (*Index, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("index: load: %w", err)
	}

	conn, err := db.OpenReadOnly(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer conn.Close()

	meta, err := readMeta(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := meta.check(embedder); err != nil {
		return nil, err
	}
	dim, count := meta.dim, meta.count

	rows, err := conn.QueryContext(ctx,
		`SELECT text, source_id, category, char_offset, embedding FROM records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer rows.Close()

	idx := &Index{embedder: embedder, dim: dim, records: make([]Record, 0, count)}
	for rows.Next() {
		var c ingest.Chunk
		var blob []byte
		if err := rows.Scan(&c.Text, &c.SourceID, &c.Category, &c.Offset, &blob); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		v, ok := decodeVector(blob, dim)
		if !ok {
			return nil, fmt.Errorf("%w: record %d has a %d-byte embedding, want %d", ErrCorrupt, len(idx.records), len(blob), dim*4)
		}
		idx.records = append(idx.records, Record{Chunk: c, Vector: v})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(idx.records) != count {
		return nil, fmt.Errorf("%w: %d records, header says %d", ErrCorrupt, len(idx.records), count)
	}
	return idx, nil
}

type storedMeta struct {
	embedder string
	dim      int
	count    int
}

func readMeta(ctx context.Context, conn *sql.DB) (storedMeta, error) {
	rows, err := conn.QueryContext(ctx, `SELECT key, value FROM index_meta`)
	if err != nil {
		return storedMeta{}, err
	}
	defer rows.Close()

	kv := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return storedMeta{}, err
		}
		kv[k] = v
	}
	if err := rows.Err(); err != nil {
		return storedMeta{}, err
	}

	if kv["format"] != formatVersion {
		return storedMeta{}, fmt.Errorf("unsupported format %q", kv["format"])
	}
	m := storedMeta{embedder: kv["embedder"]}
	if m.dim, err = strconv.Atoi(kv["dimension"]); err != nil || m.dim <= 0 {
		return storedMeta{}, fmt.Errorf("invalid dimension %q", kv["dimension"])
	}
	if m.count, err = strconv.Atoi(kv["count"]); err != nil || m.count <= 0 {
		return storedMeta{}, fmt.Errorf("invalid count %q", kv["count"])
	}
	return m, nil
}

// check rejects a query embedder that differs from the one that built the
// index. Embedders that do not describe themselves are not checked.
func (m storedMeta) check(embedder adapter.Embedder) error {
	name, dim := describe(embedder)
	if name != "" && m.embedder != "" && name != m.embedder {
		return fmt.Errorf("%w: index built with %s, configured embedder is %s", ErrEmbedderMismatch, m.embedder, name)
	}
	if dim > 0 && dim != m.dim {
		return fmt.Errorf("%w: index has dimension %d, %s produces %d", ErrEmbedderMismatch, m.dim, name, dim)
	}
	return nil
}

// describe returns "provider/model" and the vector width for embedders that
// report them through Info.
func describe(embedder adapter.Embedder) (string, int) {
	d, ok := embedder.(interface{ Info() adapter.ModelInfo })
	if !ok {
		return "", 0
	}
	info := d.Info()
	if info.EmbeddingModel == "" {
		return info.Provider, info.EmbeddingDimension
	}
	return info.Provider + "/" + info.EmbeddingModel, info.EmbeddingDimension
}

// SearchFile runs a k-nearest-neighbour search directly against a persisted
// index through its vec0 table, without loading the records into memory.
// Scores are 1/(1+d) for L2 distance d.
func SearchFile(ctx context.Context, path string, embedder adapter.Embedder, text string, k int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	conn, err := db.OpenReadOnly(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer conn.Close()

	meta, err := readMeta(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := meta.check(embedder); err != nil {
		return nil, err
	}
	if !db.VecAvailable(ctx, conn) {
		return nil, errors.New("index: search: sqlite-vec extension unavailable")
	}

	vecs, err := embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("index: embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("index: embedder returned %d vectors for 1 query", len(vecs))
	}
	blob, err := db.SerializeVector(vecs[0])
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}

	rows, err := conn.QueryContext(ctx, `
		WITH knn AS (
			SELECT rowid, distance FROM vec_records WHERE embedding MATCH ? AND k = ?
		)
		SELECT r.text, r.source_id, r.category, r.char_offset, knn.distance
		FROM knn JOIN records r ON r.seq = knn.rowid
		ORDER BY knn.distance`, blob, k)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var c ingest.Chunk
		var distance float64
		if err := rows.Scan(&c.Text, &c.SourceID, &c.Category, &c.Offset, &distance); err != nil {
			return nil, fmt.Errorf("index: search: %w", err)
		}
		out = append(out, Result{Chunk: c, Score: 1.0 / (1.0 + distance)})
	}
	return out, rows.Err()
}
