package sql

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed init.sql
var initSQL string

// Functions created by Init, checked by Verify
var Functions = []string{
	"init_document_store",
	"match_document_chunks",
}

// Init installs the vector extension, the SQL functions and the tables
func Init(ctx context.Context, db *sql.DB, embeddingDim int) error {
	if _, err := db.ExecContext(ctx, initSQL); err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}
	if _, err := db.ExecContext(ctx, `SELECT init_document_store($1)`, embeddingDim); err != nil {
		return fmt.Errorf("error initializing document store tables: %w", err)
	}
	return nil
}

// Verify reports the first expected function missing from the database
func Verify(ctx context.Context, db *sql.DB) error {
	for _, fn := range Functions {
		var exists bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM pg_proc WHERE proname = $1)`, fn,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("error checking function %s: %w", fn, err)
		}
		if !exists {
			return fmt.Errorf("function %s not found", fn)
		}
	}
	return nil
}
