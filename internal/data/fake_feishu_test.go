package data

import (
	"context"
	"errors"

	"github.com/DevRickLin/feishu-realname-sync/internal/infra/feishu"
)

var errAPI = errors.New("api unavailable")

type fakeFeishuAPI struct {
	users     map[string]*feishu.User
	chat      *feishu.ChatInfo
	memberIDs []string

	chatErr     error
	nicknameErr error

	chatCalls int
	nicknames map[string]string
	sent      []string
	replies   []string
}

func newFakeFeishuAPI() *fakeFeishuAPI {
	return &fakeFeishuAPI{
		users:     make(map[string]*feishu.User),
		nicknames: make(map[string]string),
	}
}

func (f *fakeFeishuAPI) GetUser(_ context.Context, openID string) (*feishu.User, error) {
	u, ok := f.users[openID]
	if !ok {
		return nil, errAPI
	}
	cp := *u
	return &cp, nil
}

func (f *fakeFeishuAPI) SetNickname(_ context.Context, openID, nickname string) error {
	if f.nicknameErr != nil {
		return f.nicknameErr
	}
	f.nicknames[openID] = nickname
	return nil
}

func (f *fakeFeishuAPI) GetChatInfo(_ context.Context, _ string) (*feishu.ChatInfo, error) {
	f.chatCalls++
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return f.chat, nil
}

func (f *fakeFeishuAPI) GetChatMemberIDs(_ context.Context, _ string) ([]string, error) {
	return f.memberIDs, nil
}

func (f *fakeFeishuAPI) SendText(_ context.Context, chatID, text string) error {
	f.sent = append(f.sent, chatID+":"+text)
	return nil
}

func (f *fakeFeishuAPI) ReplyText(_ context.Context, msgID, text string) error {
	f.replies = append(f.replies, msgID+":"+text)
	return nil
}
