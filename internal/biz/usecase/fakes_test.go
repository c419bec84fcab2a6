package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DevRickLin/feishu-realname-sync/internal/biz/domain"
)

var discardLog = slog.New(slog.DiscardHandler)

type relabelCall struct {
	MemberID string
	Label    string
}

// fakeMemberRepo keeps members in memory and records relabel calls
type fakeMemberRepo struct {
	members    map[string]*domain.Member
	relabels   []relabelCall
	getErr     error
	relabelErr error
}

func newFakeMemberRepo(members ...domain.Member) *fakeMemberRepo {
	r := &fakeMemberRepo{members: make(map[string]*domain.Member)}
	for i := range members {
		m := members[i]
		r.members[m.OpenID] = &m
	}
	return r
}

func (r *fakeMemberRepo) GetMember(ctx context.Context, memberID string) (*domain.Member, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	m, ok := r.members[memberID]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", memberID, domain.ErrNotFound)
	}
	copied := *m
	return &copied, nil
}

func (r *fakeMemberRepo) SetNickname(ctx context.Context, memberID, label string) error {
	r.relabels = append(r.relabels, relabelCall{MemberID: memberID, Label: label})
	if r.relabelErr != nil {
		return r.relabelErr
	}
	if m, ok := r.members[memberID]; ok {
		m.Nickname = label
	}
	return nil
}

func (r *fakeMemberRepo) ListMembers(ctx context.Context) ([]domain.Member, error) {
	var result []domain.Member
	for _, m := range r.members {
		result = append(result, *m)
	}
	return result, nil
}

// fakePolicyRepo allows a fixed set of actors
type fakePolicyRepo struct {
	admins map[string]bool
	err    error
	calls  int
}

func (r *fakePolicyRepo) CanEditOthers(ctx context.Context, actorID string) (bool, error) {
	r.calls++
	if r.err != nil {
		return false, r.err
	}
	return r.admins[actorID], nil
}

// fakeSnapshotRepo is a versioned blob with injectable conflicts
type fakeSnapshotRepo struct {
	content   []byte
	version   int
	exists    bool
	conflicts int // Writes to fail with a concurrent update before succeeding
	writeErr  error
	fetchErr  error
	onWrite   func() // runs at the start of every Write

	writes   int
	versions []string // expectedVersion of every write attempt
}

func (r *fakeSnapshotRepo) versionToken() string {
	return fmt.Sprintf("v%d", r.version)
}

func (r *fakeSnapshotRepo) Fetch(ctx context.Context) (*domain.Snapshot, error) {
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	if !r.exists {
		return nil, domain.ErrNotFound
	}
	return &domain.Snapshot{Content: append([]byte(nil), r.content...), Version: r.versionToken()}, nil
}

func (r *fakeSnapshotRepo) Write(ctx context.Context, content []byte, expectedVersion string) error {
	if r.onWrite != nil {
		r.onWrite()
	}
	r.writes++
	r.versions = append(r.versions, expectedVersion)
	if r.writeErr != nil {
		return r.writeErr
	}
	if r.conflicts > 0 {
		// Another writer slips in between our read and write.
		r.conflicts--
		r.version++
		r.exists = true
		r.content = []byte(`{"ou_other":"Intruder"}`)
		return domain.ErrConflict
	}
	// An empty expectedVersion is create-only.
	if r.exists && expectedVersion != r.versionToken() {
		return domain.ErrConflict
	}
	r.content = append([]byte(nil), content...)
	r.version++
	r.exists = true
	return nil
}

var errBoom = errors.New("boom")

func noSleep(ctx context.Context, d time.Duration) error { return nil }
