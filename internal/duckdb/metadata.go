package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// SetMetadata stores a key/value pair, replacing any previous value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO kb_metadata VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}

// Metadata returns the value for key, or "" if unset.
func (s *Store) Metadata(key string) (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM kb_metadata WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	return v, nil
}

// SetSource records the YAML file the snapshot was built from.
func (s *Store) SetSource(fp FileFingerprint) error {
	for _, kv := range []struct{ key, val string }{
		{"source_path", fp.Path},
		{"source_size", strconv.FormatInt(fp.Size, 10)},
		{"source_modtime", fp.ModTime.UTC().Format(time.RFC3339Nano)},
	} {
		if err := s.SetMetadata(kv.key, kv.val); err != nil {
			return err
		}
	}
	return nil
}

// SourceMatches reports whether the snapshot was built from the file described by fp.
func (s *Store) SourceMatches(fp FileFingerprint) bool {
	checks := []struct{ key, val string }{
		{"source_path", fp.Path},
		{"source_size", strconv.FormatInt(fp.Size, 10)},
		{"source_modtime", fp.ModTime.UTC().Format(time.RFC3339Nano)},
	}
	for _, c := range checks {
		v, err := s.Metadata(c.key)
		if err != nil || v != c.val {
			return false
		}
	}
	return true
}
