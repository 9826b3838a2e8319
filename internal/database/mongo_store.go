package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"disclosure-rag/internal/config"
	"disclosure-rag/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore persists documents, chunks and images in three collections.
// Similarity is cosine over stored vectors, or Atlas $vectorSearch when enabled.
type MongoStore struct {
	documents     *mongo.Collection
	chunks        *mongo.Collection
	images        *mongo.Collection
	vectorSearch  bool
	vectorIndex   string
	numCandidates int
}

var _ Backend = (*MongoStore)(nil)

func NewMongoStore(client *mongo.Client, cfg *config.Config) *MongoStore {
	db := client.Database(cfg.DBName)
	return &MongoStore{
		documents:     db.Collection(config.DocumentsCollection),
		chunks:        db.Collection(config.ChunksCollection),
		images:        db.Collection(config.ImagesCollection),
		vectorSearch:  cfg.VectorSearchEnabled,
		vectorIndex:   cfg.VectorIndexName,
		numCandidates: 20,
	}
}

func (s *MongoStore) Name() string { return "mongo" }

func (s *MongoStore) UpsertDocument(ctx context.Context, doc *models.Document) error {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"filename":    doc.Filename,
			"full_text":   doc.FullText,
			"chunk_count": doc.ChunkCount,
			"image_count": doc.ImageCount,
			"language":    doc.Language,
			"status":      doc.Status,
			"updated_at":  now,
		},
		"$setOnInsert": bson.M{
			"created_at": now,
		},
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var stored models.Document
	if err := s.documents.FindOneAndUpdate(ctx, bson.M{"_id": doc.ID}, update, opts).Decode(&stored); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	doc.CreatedAt = stored.CreatedAt
	doc.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *MongoStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.documents.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find document: %w", err)
	}
	return &doc, nil
}

func (s *MongoStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	// Full text stays out of listings
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "filename", Value: 1}}).
		SetProjection(bson.M{"full_text": 0})

	cursor, err := s.documents.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer cursor.Close(ctx)

	docs := []models.Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	return docs, nil
}

func (s *MongoStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.documents.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (s *MongoStore) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	now := time.Now().UTC()
	docs := make([]interface{}, len(chunks))
	for i, c := range chunks {
		c.CreatedAt = now
		docs[i] = c
	}

	// Ordered so a failure stops at the first bad chunk instead of leaving gaps
	if _, err := s.chunks.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	return nil
}

func (s *MongoStore) DeleteChunks(ctx context.Context, documentID string) (int64, error) {
	res, err := s.chunks.DeleteMany(ctx, bson.M{"document_id": documentID})
	if err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) CountChunks(ctx context.Context, documentID string) (int64, error) {
	return s.chunks.CountDocuments(ctx, bson.M{"document_id": documentID})
}

func (s *MongoStore) InsertImages(ctx context.Context, images []models.Image) error {
	if len(images) == 0 {
		return nil
	}

	now := time.Now().UTC()
	docs := make([]interface{}, len(images))
	for i, img := range images {
		img.CreatedAt = now
		docs[i] = img
	}

	if _, err := s.images.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("insert images: %w", err)
	}
	return nil
}

func (s *MongoStore) DeleteImages(ctx context.Context, documentID string) (int64, error) {
	res, err := s.images.DeleteMany(ctx, bson.M{"document_id": documentID})
	if err != nil {
		return 0, fmt.Errorf("delete images: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) ImagesByDocument(ctx context.Context, documentID string) ([]models.Image, error) {
	opts := options.Find().SetSort(bson.D{{Key: "image_index", Value: 1}})
	cursor, err := s.images.Find(ctx, bson.M{"document_id": documentID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find images: %w", err)
	}
	defer cursor.Close(ctx)

	images := []models.Image{}
	if err := cursor.All(ctx, &images); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	return images, nil
}

func (s *MongoStore) MatchChunks(ctx context.Context, embedding []float32, threshold float64, limit int) ([]models.ScoredChunk, error) {
	if limit <= 0 || len(embedding) == 0 {
		return []models.ScoredChunk{}, nil
	}
	if s.vectorSearch {
		return s.matchWithVectorSearch(ctx, embedding, threshold, limit)
	}

	// Insertion order: batch timestamp, then position within the batch
	opts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: 1},
		{Key: "document_id", Value: 1},
		{Key: "chunk_index", Value: 1},
	})
	cursor, err := s.chunks.Find(ctx, bson.M{"embedding.0": bson.M{"$exists": true}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find chunks: %w", err)
	}
	defer cursor.Close(ctx)

	var chunks []models.Chunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("decode chunks: %w", err)
	}
	return rankChunks(chunks, embedding, threshold, limit), nil
}

type vectorSearchHit struct {
	models.Chunk `bson:",inline"`
	Score        float64 `bson:"score"`
}

// matchWithVectorSearch runs an Atlas $vectorSearch over a cosine index. Atlas
// reports cosine as (1 + cos) / 2, so the score is mapped back before filtering.
func (s *MongoStore) matchWithVectorSearch(ctx context.Context, embedding []float32, threshold float64, limit int) ([]models.ScoredChunk, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.M{
			"index":         s.vectorIndex,
			"path":          "embedding",
			"queryVector":   embedding,
			"numCandidates": limit * s.numCandidates,
			"limit":         limit,
		}}},
		{{Key: "$addFields", Value: bson.M{"score": bson.M{"$meta": "vectorSearchScore"}}}},
		{{Key: "$project", Value: bson.M{"embedding": 0}}},
	}

	cursor, err := s.chunks.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer cursor.Close(ctx)

	var hits []vectorSearchHit
	if err := cursor.All(ctx, &hits); err != nil {
		return nil, fmt.Errorf("decode vector search: %w", err)
	}

	scored := make([]models.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		sim := 2*h.Score - 1
		if sim < threshold {
			continue
		}
		scored = append(scored, models.ScoredChunk{Chunk: h.Chunk, Similarity: sim})
	}
	return scored, nil
}
