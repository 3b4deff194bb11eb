// Package duckdb stores variant calls and the runs that produced them in
// DuckDB, so calls from many BAMs can be queried by region.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding variant calls.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database path, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		run_id BIGINT PRIMARY KEY,
		bam_path VARCHAR,
		bam_size BIGINT,
		bam_modtime VARCHAR,
		reference VARCHAR,
		min_depth INTEGER,
		min_af DOUBLE,
		created_at TIMESTAMP DEFAULT current_timestamp
	)`); err != nil {
		return err
	}

	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS variant_calls (
		run_id BIGINT,
		chrom VARCHAR,
		pos BIGINT,
		ref VARCHAR,
		alt VARCHAR,
		dp INTEGER,
		af DOUBLE,
		ref_fwd INTEGER,
		ref_rev INTEGER,
		alt_fwd INTEGER,
		alt_rev INTEGER,
		indel BOOLEAN,
		PRIMARY KEY (run_id, chrom, pos, ref, alt)
	)`)
	return err
}
