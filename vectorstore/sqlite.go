package vectorstore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github/itish2003/rentalqa/models"
)

//go:embed schema.sql
var schema string

// SQLite is a persistent local index. Queries scan the namespace and rank by
// cosine similarity in Go.
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (or creates) the index database at path.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, path: path}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logrus.WithField("component", "sqlite").Infof("opened index at %s", path)
	return s, nil
}

func (s *SQLite) init(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("pragma failed: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("schema creation failed: %w", err)
	}
	return nil
}

// Upsert stores records in one transaction, replacing rows with the same
// namespace and ID.
func (s *SQLite) Upsert(ctx context.Context, namespace string, records []models.IndexedRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (namespace, id, source, text, embedding, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (namespace, id) DO UPDATE SET
			source = excluded.source,
			text = excluded.text,
			embedding = excluded.embedding,
			metadata = excluded.metadata`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		metaJSON, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata of %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, namespace, r.ID, r.Metadata.Source(), r.Text, encodeFloat32Slice(r.Vector), string(metaJSON)); err != nil {
			return fmt.Errorf("upsert %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Query returns the k records nearest to vector by cosine similarity.
func (s *SQLite) Query(ctx context.Context, namespace string, vector []float32, k int) ([]models.RetrievedDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, text, embedding, metadata FROM records WHERE namespace = ?", namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []scored
	for rows.Next() {
		var (
			id, text string
			embBytes []byte
			metaJSON sql.NullString
		)
		if err := rows.Scan(&id, &text, &embBytes, &metaJSON); err != nil {
			return nil, err
		}
		hits = append(hits, scored{
			id: id,
			doc: models.RetrievedDocument{
				PageContent: text,
				Metadata:    decodeMetadata([]byte(metaJSON.String)),
				Score:       cosineSimilarity(vector, decodeFloat32Slice(embBytes)),
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return topK(hits, k), nil
}

// DeleteBySource removes every record of one source document.
func (s *SQLite) DeleteBySource(ctx context.Context, namespace, source string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM records WHERE namespace = ? AND source = ?", namespace, source)
	return err
}

// Count returns the number of records in namespace.
func (s *SQLite) Count(ctx context.Context, namespace string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM records WHERE namespace = ?", namespace).Scan(&n)
	return n, err
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}
