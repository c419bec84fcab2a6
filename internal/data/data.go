package data

import (
	"fmt"

	"github.com/DevRickLin/feishu-realname-sync/internal/biz/repo"
)

// Snapshot backends
const (
	BackendSQLite = "sqlite"
	BackendGitHub = "github"
)

// Options selects and configures the repository implementations
type Options struct {
	Backend  string
	DBPath   string
	GitHub   GitHubConfig
	ChatID   string
	AdminIDs []string
}

// Repositories contains all repositories
type Repositories struct {
	Snapshot repo.SnapshotRepo
	Member   repo.MemberRepo
	Policy   repo.PolicyRepo
	Message  repo.MessageRepo

	// Ping checks the snapshot backend, nil when the backend has no cheap check
	Ping func() error

	closers []func() error
}

// NewRepositories creates all repositories
func NewRepositories(client FeishuAPI, opts Options) (*Repositories, error) {
	repos := &Repositories{
		Member:  NewFeishuMemberRepo(client, opts.ChatID),
		Policy:  NewChatRolePolicy(client, opts.ChatID, opts.AdminIDs),
		Message: NewFeishuMessageRepo(client),
	}

	snapshot, err := NewSnapshotRepo(opts)
	if err != nil {
		return nil, err
	}
	repos.Snapshot = snapshot
	if s, ok := snapshot.(*SQLiteSnapshotRepo); ok {
		repos.Ping = s.Ping
		repos.closers = append(repos.closers, s.Close)
	}

	return repos, nil
}

// NewSnapshotRepo builds the snapshot backend named by opts.Backend
func NewSnapshotRepo(opts Options) (repo.SnapshotRepo, error) {
	switch opts.Backend {
	case "", BackendSQLite:
		s, err := NewSQLiteSnapshotRepo(opts.DBPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendGitHub:
		g, err := NewGitHubSnapshotRepo(opts.GitHub)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", opts.Backend)
	}
}

// Close releases backend resources
func (r *Repositories) Close() error {
	var firstErr error
	for _, closeFn := range r.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
