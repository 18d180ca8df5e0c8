// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package config

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// OpenSQLite opens the session registry database and ensures its
// schema exists, generalizing the teacher's initDatabase from a
// two-table ingestion cache into the non-temporary session metadata
// store spec 4.G calls for. The document registry lives entirely in
// the vector store (spec §3: "not stored as a distinct record —
// derived by grouping chunks by document_id"), so no documents table
// is created here.
func OpenSQLite(cfg SQLiteConfig) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}
	return db, nil
}

func initSchema(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		is_archived INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := db.Exec(schema)
	return err
}
