package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"disclosure-rag/internal/config"
	loadSql "disclosure-rag/internal/database/sql"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/migrate <command>")
		fmt.Println("Commands:")
		fmt.Println("  migrate  - Create the schema for STORE_BACKEND (Mongo indexes or Postgres tables and functions)")
		fmt.Println("  verify   - Check the schema exists and print row counts")
		os.Exit(1)
	}

	command := os.Args[1]

	// No model credentials are needed to manage the schema
	cfg, err := config.LoadConfigKeywordOnly()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch command {
	case "migrate":
		err = migrate(ctx, cfg)
	case "verify":
		err = verify(ctx, cfg)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("%s failed: %v\n", command, err)
		os.Exit(1)
	}
	fmt.Printf("%s completed successfully for %s backend\n", command, cfg.StoreBackend)
}

func migrate(ctx context.Context, cfg *config.Config) error {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := config.ConnectPostgres(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		return loadSql.Init(ctx, db, cfg.VectorDimensions)

	case config.BackendMongo:
		// ConnectMongoDB creates the indexes
		client, err := config.ConnectMongoDB(cfg)
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())
		if cfg.VectorSearchEnabled {
			fmt.Printf("Create the Atlas vector index %q on %s.embedding (%d dimensions, cosine) in the Atlas UI\n",
				cfg.VectorIndexName, config.ChunksCollection, cfg.VectorDimensions)
		}
		return nil

	default:
		return fmt.Errorf("backend %s has no schema", cfg.StoreBackend)
	}
}

func verify(ctx context.Context, cfg *config.Config) error {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := config.ConnectPostgres(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := loadSql.Verify(ctx, db); err != nil {
			return err
		}
		for _, table := range []string{"documents", "document_chunks", "document_images"} {
			var count int64
			if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
				return fmt.Errorf("failed to count %s: %w", table, err)
			}
			fmt.Printf("  %s: %d rows\n", table, count)
		}
		return nil

	case config.BackendMongo:
		client, err := config.ConnectMongoDB(cfg)
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())
		return verifyMongo(ctx, client.Database(cfg.DBName))

	default:
		return fmt.Errorf("backend %s has no schema", cfg.StoreBackend)
	}
}

func verifyMongo(ctx context.Context, db *mongo.Database) error {
	for _, name := range []string{config.DocumentsCollection, config.ChunksCollection, config.ImagesCollection} {
		collection := db.Collection(name)

		cursor, err := collection.Indexes().List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list indexes of %s: %w", name, err)
		}
		var indexes []bson.M
		if err := cursor.All(ctx, &indexes); err != nil {
			return err
		}

		count, err := collection.CountDocuments(ctx, bson.M{})
		if err != nil {
			return fmt.Errorf("failed to count documents in %s: %w", name, err)
		}
		fmt.Printf("  %s: %d documents, %d indexes\n", name, count, len(indexes))
	}
	return nil
}
