package data

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"

	"github.com/DevRickLin/feishu-realname-sync/internal/biz/domain"
	"github.com/DevRickLin/feishu-realname-sync/internal/biz/repo"

	_ "modernc.org/sqlite"
)

const defaultSnapshotName = "names"

// SQLiteSnapshotRepo stores the snapshot as a single versioned row.
// The version token is the BLAKE3 hash of the content.
type SQLiteSnapshotRepo struct {
	db   *sql.DB
	name string
}

// NewSQLiteSnapshotRepo opens (or creates) the snapshot database at dbPath
func NewSQLiteSnapshotRepo(dbPath string) (*SQLiteSnapshotRepo, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			name TEXT PRIMARY KEY,
			content BLOB NOT NULL,
			version TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &SQLiteSnapshotRepo{db: db, name: defaultSnapshotName}, nil
}

var _ repo.SnapshotRepo = (*SQLiteSnapshotRepo)(nil)

// Fetch gets the current snapshot
func (r *SQLiteSnapshotRepo) Fetch(ctx context.Context) (*domain.Snapshot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT content, version FROM snapshots WHERE name = ?
	`, r.name)

	var snap domain.Snapshot
	err := row.Scan(&snap.Content, &snap.Version)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	return &snap, nil
}

// Write stores content if the stored version still equals expectedVersion.
// An empty expectedVersion means the snapshot must not exist yet.
func (r *SQLiteSnapshotRepo) Write(ctx context.Context, content []byte, expectedVersion string) error {
	version := contentVersion(content)
	now := time.Now().Unix()

	var (
		result sql.Result
		err    error
	)
	if expectedVersion == "" {
		// Create only; a row written meanwhile by another process is a conflict.
		result, err = r.db.ExecContext(ctx, `
			INSERT INTO snapshots (name, content, version, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(name) DO NOTHING
		`, r.name, content, version, now)
	} else {
		result, err = r.db.ExecContext(ctx, `
			UPDATE snapshots SET content = ?, version = ?, updated_at = ?
			WHERE name = ? AND version = ?
		`, content, version, now, r.name, expectedVersion)
	}
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("snapshot %s changed since %s: %w", r.name, expectedVersion, domain.ErrConflict)
	}
	return nil
}

// Ping checks the database connection (readiness check)
func (r *SQLiteSnapshotRepo) Ping() error {
	return r.db.Ping()
}

// Close closes the database connection
func (r *SQLiteSnapshotRepo) Close() error {
	return r.db.Close()
}

func contentVersion(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}
