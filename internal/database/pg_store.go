package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	loadSql "disclosure-rag/internal/database/sql"
	"disclosure-rag/models"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// PostgresStore persists into pgvector tables and delegates ranking to the
// match_document_chunks SQL function
type PostgresStore struct {
	db *sql.DB
}

var _ Backend = (*PostgresStore)(nil)

// NewPostgresStore installs the schema (idempotent) and returns the store
func NewPostgresStore(ctx context.Context, db *sql.DB, embeddingDim int) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if err := loadSql.Init(ctx, db, embeddingDim); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) UpsertDocument(ctx context.Context, doc *models.Document) error {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO documents (id, filename, full_text, chunk_count, image_count, language, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			filename = EXCLUDED.filename,
			full_text = EXCLUDED.full_text,
			chunk_count = EXCLUDED.chunk_count,
			image_count = EXCLUDED.image_count,
			language = EXCLUDED.language,
			status = EXCLUDED.status,
			updated_at = NOW()
		RETURNING created_at, updated_at`,
		doc.ID, doc.Filename, doc.FullText, doc.ChunkCount, doc.ImageCount, doc.Language, doc.Status,
	)
	if err := row.Scan(&doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	doc := &models.Document{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, filename, full_text, chunk_count, image_count, language, status, created_at, updated_at
		FROM documents WHERE id = $1`, id,
	).Scan(&doc.ID, &doc.Filename, &doc.FullText, &doc.ChunkCount, &doc.ImageCount,
		&doc.Language, &doc.Status, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, chunk_count, image_count, language, status, created_at, updated_at
		FROM documents ORDER BY created_at DESC, filename ASC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.Filename, &d.ChunkCount, &d.ImageCount,
			&d.Language, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// InsertChunks writes the batch in one transaction so a failed ingestion
// leaves no half-written chunk list behind
func (s *PostgresStore) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_chunks (document_id, chunk_index, heading, text, filename, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("prepare insert chunk: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		var embedding interface{}
		if c.Searchable() {
			embedding = pgvector.NewVector(c.Embedding)
		}
		if _, err := stmt.ExecContext(ctx, c.DocumentID, c.Index, c.Heading, c.Text, c.Filename, embedding); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Index, describePQError(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunks: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteChunks(ctx context.Context, documentID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}
	return res.RowsAffected()
}

func (s *PostgresStore) CountChunks(ctx context.Context, documentID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_chunks WHERE document_id = $1`, documentID).Scan(&n)
	return n, err
}

func (s *PostgresStore) InsertImages(ctx context.Context, images []models.Image) error {
	if len(images) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_images (document_id, image_index, filename, data, caption, context)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("prepare insert image: %w", err)
	}
	defer stmt.Close()

	for _, img := range images {
		if _, err := stmt.ExecContext(ctx, img.DocumentID, img.Index, img.Filename, img.Data, img.Caption, img.Context); err != nil {
			return fmt.Errorf("insert image %d: %w", img.Index, describePQError(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit images: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteImages(ctx context.Context, documentID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM document_images WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete images: %w", err)
	}
	return res.RowsAffected()
}

func (s *PostgresStore) ImagesByDocument(ctx context.Context, documentID string) ([]models.Image, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, image_index, filename, data, caption, context, created_at
		FROM document_images WHERE document_id = $1 ORDER BY image_index`, documentID)
	if err != nil {
		return nil, fmt.Errorf("select images: %w", err)
	}
	defer rows.Close()

	images := []models.Image{}
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(&img.DocumentID, &img.Index, &img.Filename, &img.Data,
			&img.Caption, &img.Context, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (s *PostgresStore) MatchChunks(ctx context.Context, embedding []float32, threshold float64, limit int) ([]models.ScoredChunk, error) {
	if limit <= 0 || len(embedding) == 0 {
		return []models.ScoredChunk{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id, chunk_index, heading, text, filename, created_at, similarity
		 FROM match_document_chunks($1, $2, $3)`,
		pgvector.NewVector(embedding), threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("match chunks: %w", describePQError(err))
	}
	defer rows.Close()

	scored := []models.ScoredChunk{}
	for rows.Next() {
		var sc models.ScoredChunk
		if err := rows.Scan(&sc.DocumentID, &sc.Index, &sc.Heading, &sc.Text,
			&sc.Filename, &sc.CreatedAt, &sc.Similarity); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		scored = append(scored, sc)
	}
	return scored, rows.Err()
}

// describePQError adds the Postgres error code and detail when available
func describePQError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%s (%s): %w", pqErr.Detail, pqErr.Code, err)
	}
	return err
}
