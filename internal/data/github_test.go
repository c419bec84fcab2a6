package data

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/feishu-realname-sync/internal/biz/domain"
)

// putBody is the contents API request body as GitHub receives it
type putBody struct {
	Message string  `json:"message"`
	Content string  `json:"content"`
	SHA     *string `json:"sha"`
	Branch  string  `json:"branch"`
}

func newTestGitHubRepo(t *testing.T, handler http.HandlerFunc) *GitHubSnapshotRepo {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	r, err := NewGitHubSnapshotRepo(GitHubConfig{
		Token:   "ghp_test",
		Repo:    "acme/directory",
		Path:    "names.json",
		BaseURL: srv.URL,
	})
	require.NoError(t, err)
	return r
}

func TestNewGitHubSnapshotRepo_RejectsBadRepo(t *testing.T) {
	for _, repoName := range []string{"", "acme", "acme/", "/directory", "acme/dir/extra"} {
		_, err := NewGitHubSnapshotRepo(GitHubConfig{Repo: repoName, Path: "names.json"})
		assert.Error(t, err, repoName)
	}

	_, err := NewGitHubSnapshotRepo(GitHubConfig{Repo: "acme/directory"})
	assert.Error(t, err)
}

func TestGitHubSnapshotRepo_FetchMissing(t *testing.T) {
	r := newTestGitHubRepo(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	})

	_, err := r.Fetch(context.Background())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGitHubSnapshotRepo_Fetch(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(`{"ou_1":"Alex"}`))
	wrapped := encoded[:8] + "\n" + encoded[8:] + "\n"

	r := newTestGitHubRepo(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "/repos/acme/directory/contents/names.json", req.URL.Path)
		assert.Equal(t, "main", req.URL.Query().Get("ref"))
		assert.Equal(t, "Bearer ghp_test", req.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"type":     "file",
			"name":     "names.json",
			"path":     "names.json",
			"sha":      "abc123",
			"content":  wrapped,
			"encoding": "base64",
		})
	})

	snap, err := r.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", snap.Version)
	assert.Equal(t, `{"ou_1":"Alex"}`, string(snap.Content))
}

func TestGitHubSnapshotRepo_FetchServerError(t *testing.T) {
	r := newTestGitHubRepo(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := r.Fetch(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestGitHubSnapshotRepo_WriteSendsVersion(t *testing.T) {
	var got putBody
	r := newTestGitHubRepo(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, http.MethodPut, req.Method)
		assert.Equal(t, "/repos/acme/directory/contents/names.json", req.URL.Path)
		require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	})

	require.NoError(t, r.Write(context.Background(), []byte(`{"ou_1":"Alex"}`), "abc123"))

	require.NotNil(t, got.SHA)
	assert.Equal(t, "abc123", *got.SHA)
	assert.Equal(t, "main", got.Branch)
	assert.NotEmpty(t, got.Message)
	decoded, err := base64.StdEncoding.DecodeString(got.Content)
	require.NoError(t, err)
	assert.Equal(t, `{"ou_1":"Alex"}`, string(decoded))
}

func TestGitHubSnapshotRepo_WriteCreateOmitsSHA(t *testing.T) {
	var raw map[string]any
	r := newTestGitHubRepo(t, func(w http.ResponseWriter, req *http.Request) {
		require.NoError(t, json.NewDecoder(req.Body).Decode(&raw))
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, r.Write(context.Background(), []byte(`{}`), ""))
	assert.NotContains(t, raw, "sha")
}

func TestGitHubSnapshotRepo_CreateOverExistingConflicts(t *testing.T) {
	r := newTestGitHubRepo(t, func(w http.ResponseWriter, req *http.Request) {
		var body putBody
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		if body.SHA == nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"Invalid request.\n\n\"sha\" wasn't supplied."}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	err := r.Write(context.Background(), []byte(`{}`), "")
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestGitHubSnapshotRepo_WriteConflict(t *testing.T) {
	for _, status := range []int{http.StatusConflict, http.StatusUnprocessableEntity} {
		r := newTestGitHubRepo(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"message":"names.json does not match"}`))
		})

		err := r.Write(context.Background(), []byte(`{}`), "stale")
		require.ErrorIs(t, err, domain.ErrConflict, "status %d", status)
		assert.Contains(t, err.Error(), "does not match")
	}
}

func TestGitHubSnapshotRepo_WriteServerError(t *testing.T) {
	r := newTestGitHubRepo(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := r.Write(context.Background(), []byte(`{}`), "v1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrConflict)
}
