package data

import (
	"context"
	"fmt"

	"github.com/DevRickLin/feishu-realname-sync/internal/biz/domain"
	"github.com/DevRickLin/feishu-realname-sync/internal/biz/repo"
	"github.com/DevRickLin/feishu-realname-sync/internal/infra/feishu"
)

// FeishuAPI is the subset of the Feishu client the repositories use
type FeishuAPI interface {
	GetUser(ctx context.Context, openID string) (*feishu.User, error)
	SetNickname(ctx context.Context, openID, nickname string) error
	GetChatInfo(ctx context.Context, chatID string) (*feishu.ChatInfo, error)
	GetChatMemberIDs(ctx context.Context, chatID string) ([]string, error)
	SendText(ctx context.Context, chatID, text string) error
	ReplyText(ctx context.Context, msgID, text string) error
}

// feishuMemberRepo implements MemberRepo over the contact directory
type feishuMemberRepo struct {
	client FeishuAPI
	chatID string
}

// NewFeishuMemberRepo creates a member repository. chatID scopes ListMembers.
func NewFeishuMemberRepo(client FeishuAPI, chatID string) repo.MemberRepo {
	return &feishuMemberRepo{client: client, chatID: chatID}
}

// GetMember fetches the member's current profile
func (r *feishuMemberRepo) GetMember(ctx context.Context, memberID string) (*domain.Member, error) {
	user, err := r.client.GetUser(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return toMember(user), nil
}

// SetNickname updates the member's nickname
func (r *feishuMemberRepo) SetNickname(ctx context.Context, memberID, label string) error {
	if err := r.client.SetNickname(ctx, memberID, label); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRelabelFailed, err)
	}
	return nil
}

// ListMembers lists members of the managed chat with their profiles
func (r *feishuMemberRepo) ListMembers(ctx context.Context) ([]domain.Member, error) {
	if r.chatID == "" {
		return nil, fmt.Errorf("list members: no chat configured")
	}

	ids, err := r.client.GetChatMemberIDs(ctx, r.chatID)
	if err != nil {
		return nil, err
	}

	members := make([]domain.Member, 0, len(ids))
	for _, id := range ids {
		user, err := r.client.GetUser(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", id, err)
		}
		members = append(members, *toMember(user))
	}
	return members, nil
}

func toMember(user *feishu.User) *domain.Member {
	return &domain.Member{
		OpenID:   user.OpenID,
		Name:     user.Name,
		Nickname: user.Nickname,
	}
}

// feishuMessageRepo implements MessageRepo
type feishuMessageRepo struct {
	client FeishuAPI
}

// NewFeishuMessageRepo creates a message repository
func NewFeishuMessageRepo(client FeishuAPI) repo.MessageRepo {
	return &feishuMessageRepo{client: client}
}

func (r *feishuMessageRepo) SendText(ctx context.Context, chatID, text string) error {
	return r.client.SendText(ctx, chatID, text)
}

func (r *feishuMessageRepo) ReplyText(ctx context.Context, msgID, text string) error {
	return r.client.ReplyText(ctx, msgID, text)
}
