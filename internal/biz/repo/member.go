package repo

import (
	"context"

	"github.com/DevRickLin/feishu-realname-sync/internal/biz/domain"
)

// MemberRepo reads and updates member display labels on the chat platform
type MemberRepo interface {
	// GetMember fetches the member fresh from the platform (never cached)
	GetMember(ctx context.Context, memberID string) (*domain.Member, error)

	// SetNickname replaces the member's display label.
	// Failures wrap domain.ErrRelabelFailed.
	SetNickname(ctx context.Context, memberID, label string) error

	// ListMembers lists members of the managed group chat
	ListMembers(ctx context.Context) ([]domain.Member, error)
}
