package data

import (
	"context"
	"slices"

	"github.com/DevRickLin/feishu-realname-sync/internal/biz/repo"
)

// chatRolePolicy grants edit-others to configured admins and to the owner
// and managers of the managed chat
type chatRolePolicy struct {
	client FeishuAPI
	chatID string
	admins map[string]bool
}

// NewChatRolePolicy creates the authorization policy
func NewChatRolePolicy(client FeishuAPI, chatID string, adminIDs []string) repo.PolicyRepo {
	admins := make(map[string]bool, len(adminIDs))
	for _, id := range adminIDs {
		if id != "" {
			admins[id] = true
		}
	}
	return &chatRolePolicy{client: client, chatID: chatID, admins: admins}
}

// CanEditOthers reports whether actorID holds an admin role. The chat roles
// are looked up on every call so role changes apply immediately.
func (p *chatRolePolicy) CanEditOthers(ctx context.Context, actorID string) (bool, error) {
	if p.admins[actorID] {
		return true, nil
	}
	if p.chatID == "" || p.client == nil {
		return false, nil
	}

	info, err := p.client.GetChatInfo(ctx, p.chatID)
	if err != nil {
		return false, err
	}
	return info.OwnerID == actorID || slices.Contains(info.ManagerIDs, actorID), nil
}
