// Package duckdb persists knowledge base snapshots in DuckDB so curated
// tables can be inspected with SQL and reloaded without the YAML source.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding a knowledge snapshot.
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
			return nil, fmt.Errorf("create snapshot directory: %w", err)
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

// Path returns the database file, or "" for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS kb_metadata (
		key VARCHAR PRIMARY KEY,
		value VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS genes (
		ordinal BIGINT,
		symbol VARCHAR PRIMARY KEY,
		reference_allele VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS gene_alleles (
		gene VARCHAR,
		ordinal BIGINT,
		star VARCHAR,
		function VARCHAR,
		PRIMARY KEY (gene, star)
	)`,
	`CREATE TABLE IF NOT EXISTS allele_variants (
		gene VARCHAR,
		star VARCHAR,
		ordinal BIGINT,
		rsid VARCHAR,
		chrom VARCHAR,
		pos BIGINT,
		ref VARCHAR,
		alt VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS gene_regions (
		gene VARCHAR,
		ordinal BIGINT,
		assembly VARCHAR,
		chrom VARCHAR,
		start_pos BIGINT,
		end_pos BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS phenotypes (
		gene VARCHAR,
		diplotype VARCHAR,
		phenotype VARCHAR,
		PRIMARY KEY (gene, diplotype)
	)`,
	`CREATE TABLE IF NOT EXISTS drugs (
		ordinal BIGINT,
		name VARCHAR PRIMARY KEY,
		gene VARCHAR,
		aliases VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS risk_rules (
		ordinal BIGINT,
		gene VARCHAR,
		drug VARCHAR,
		phenotype VARCHAR,
		risk_label VARCHAR,
		severity VARCHAR,
		confidence DOUBLE,
		action VARCHAR,
		dosing_adjustment VARCHAR,
		monitoring VARCHAR
	)`,
}

// snapshotTables lists the knowledge tables cleared before each write.
var snapshotTables = []string{
	"genes", "gene_alleles", "allele_variants", "gene_regions",
	"phenotypes", "drugs", "risk_rules",
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
