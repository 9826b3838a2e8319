package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"disclosure-rag/models"
)

// MemoryStore keeps everything in process. Used by tests and the CLI.
type MemoryStore struct {
	mu        sync.RWMutex
	documents map[string]models.Document
	chunks    []models.Chunk // insertion order
	images    []models.Image
}

var _ Backend = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{documents: make(map[string]models.Document)}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) UpsertDocument(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.documents[doc.ID]; ok {
		doc.CreatedAt = existing.CreatedAt
	} else {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	s.documents[doc.ID] = *doc
	return nil
}

func (s *MemoryStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return &doc, nil
}

func (s *MemoryStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]models.Document, 0, len(s.documents))
	for _, d := range s.documents {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].Filename < docs[j].Filename
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return ErrDocumentNotFound
	}
	delete(s.documents, id)
	return nil
}

func (s *MemoryStore) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, c := range chunks {
		c.CreatedAt = now
		s.chunks = append(s.chunks, c)
	}
	return nil
}

func (s *MemoryStore) DeleteChunks(ctx context.Context, documentID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.chunks[:0]
	var removed int64
	for _, c := range s.chunks {
		if c.DocumentID == documentID {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	s.chunks = kept
	return removed, nil
}

func (s *MemoryStore) CountChunks(ctx context.Context, documentID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, c := range s.chunks {
		if c.DocumentID == documentID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) InsertImages(ctx context.Context, images []models.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, img := range images {
		img.CreatedAt = now
		s.images = append(s.images, img)
	}
	return nil
}

func (s *MemoryStore) DeleteImages(ctx context.Context, documentID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.images[:0]
	var removed int64
	for _, img := range s.images {
		if img.DocumentID == documentID {
			removed++
			continue
		}
		kept = append(kept, img)
	}
	s.images = kept
	return removed, nil
}

func (s *MemoryStore) ImagesByDocument(ctx context.Context, documentID string) ([]models.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	images := []models.Image{}
	for _, img := range s.images {
		if img.DocumentID == documentID {
			images = append(images, img)
		}
	}
	sort.SliceStable(images, func(i, j int) bool { return images[i].Index < images[j].Index })
	return images, nil
}

func (s *MemoryStore) MatchChunks(ctx context.Context, embedding []float32, threshold float64, limit int) ([]models.ScoredChunk, error) {
	s.mu.RLock()
	snapshot := make([]models.Chunk, len(s.chunks))
	copy(snapshot, s.chunks)
	s.mu.RUnlock()

	return rankChunks(snapshot, embedding, threshold, limit), nil
}
