package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/DevRickLin/feishu-realname-sync/internal/biz/domain"
	"github.com/DevRickLin/feishu-realname-sync/internal/biz/usecase"
	"github.com/DevRickLin/feishu-realname-sync/internal/conf"
)

var errBoom = errors.New("boom")

var discardLog = slog.New(slog.DiscardHandler)

type fakeMemberRepo struct {
	members    map[string]*domain.Member
	relabelErr error
}

func (f *fakeMemberRepo) GetMember(_ context.Context, id string) (*domain.Member, error) {
	m, ok := f.members[id]
	if !ok {
		return nil, errBoom
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMemberRepo) SetNickname(_ context.Context, id, label string) error {
	if f.relabelErr != nil {
		return f.relabelErr
	}
	if m, ok := f.members[id]; ok {
		m.Nickname = label
	}
	return nil
}

func (f *fakeMemberRepo) ListMembers(_ context.Context) ([]domain.Member, error) {
	var out []domain.Member
	for _, m := range f.members {
		out = append(out, *m)
	}
	return out, nil
}

type fakePolicyRepo struct {
	admins map[string]bool
}

func (f *fakePolicyRepo) CanEditOthers(_ context.Context, actorID string) (bool, error) {
	return f.admins[actorID], nil
}

// fakeSnapshotRepo is safe for use from the flusher goroutine
type fakeSnapshotRepo struct {
	mu       sync.Mutex
	content  []byte
	writes   int
	writeErr error
}

func (f *fakeSnapshotRepo) Fetch(_ context.Context) (*domain.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.content == nil {
		return nil, domain.ErrNotFound
	}
	return &domain.Snapshot{Content: f.content, Version: "v"}, nil
}

func (f *fakeSnapshotRepo) Write(_ context.Context, content []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.content = append([]byte(nil), content...)
	f.writes++
	return nil
}

func (f *fakeSnapshotRepo) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

type sentText struct {
	ChatID string
	Text   string
}

type fakeMessageRepo struct {
	replies []string
	sent    []sentText
	sendErr error
}

func (f *fakeMessageRepo) SendText(_ context.Context, chatID, text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentText{ChatID: chatID, Text: text})
	return nil
}

func (f *fakeMessageRepo) ReplyText(_ context.Context, _ string, text string) error {
	f.replies = append(f.replies, text)
	return nil
}

func (f *fakeMessageRepo) last() string {
	if len(f.replies) == 0 {
		return ""
	}
	return f.replies[len(f.replies)-1]
}

type serviceFixture struct {
	members  *fakeMemberRepo
	snapshot *fakeSnapshotRepo
	messages *fakeMessageRepo
	engine   *usecase.SyncEngine
	svc      *RealNameService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		members: &fakeMemberRepo{members: map[string]*domain.Member{
			"ou_alex":  {OpenID: "ou_alex", Name: "Alexandra Smith"},
			"ou_bob":   {OpenID: "ou_bob", Name: "Bob", Nickname: "Bobby"},
			"ou_admin": {OpenID: "ou_admin", Name: "Admin"},
		}},
		snapshot: &fakeSnapshotRepo{},
		messages: &fakeMessageRepo{},
	}
	persister := usecase.NewPersister(f.snapshot, usecase.DefaultPersistConfig, nil, discardLog)
	f.engine = usecase.NewSyncEngine(
		domain.NewNameStore(),
		f.members,
		&fakePolicyRepo{admins: map[string]bool{"ou_admin": true}},
		persister,
		usecase.SyncConfig{MaxLabelLength: 32},
		nil,
		discardLog,
	)
	f.svc = NewRealNameService(f.engine, f.messages, conf.DefaultMessagesConfig(), 32, discardLog)
	return f
}
