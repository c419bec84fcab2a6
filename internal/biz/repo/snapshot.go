package repo

import (
	"context"

	"github.com/DevRickLin/feishu-realname-sync/internal/biz/domain"
)

// SnapshotRepo is the remote versioned store for the serialized name map
type SnapshotRepo interface {
	// Fetch returns the current content and version token.
	// Returns domain.ErrNotFound when nothing has been written yet.
	Fetch(ctx context.Context) (*domain.Snapshot, error)

	// Write stores content if the remote version still equals expectedVersion.
	// An empty expectedVersion is create only; an existing snapshot is a conflict.
	// Returns domain.ErrConflict when another writer got there first.
	Write(ctx context.Context, content []byte, expectedVersion string) error
}
