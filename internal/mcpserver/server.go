package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DevRickLin/feishu-realname-sync/internal/biz/domain"
	"github.com/DevRickLin/feishu-realname-sync/internal/biz/repo"
	"github.com/DevRickLin/feishu-realname-sync/internal/logger"
)

// Server exposes read-only real-name lookups over MCP. It reads the
// persisted snapshot on every call, so it sees what the bot last flushed.
type Server struct {
	server       *mcp.Server
	snapshotRepo repo.SnapshotRepo
	log          *slog.Logger
}

// NewServer creates the lookup server and registers its tools
func NewServer(snapshotRepo repo.SnapshotRepo, version string, log *slog.Logger) *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "feishu-realname",
			Version: version,
		}, nil),
		snapshotRepo: snapshotRepo,
		log:          logger.Component(log, "MCP"),
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdio until the client disconnects or ctx ends
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("serving on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_real_name",
		Description: "Look up the real name bound to a Feishu member by open_id.",
	}, s.handleGetRealName)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_real_names",
		Description: "List every member with a bound real name, optionally filtered by a case-insensitive substring of the name.",
	}, s.handleListRealNames)
}

// GetRealNameInput is the input for get_real_name
type GetRealNameInput struct {
	MemberID string `json:"member_id" jsonschema:"the member's open_id, e.g. ou_xxx"`
}

// GetRealNameOutput is the output for get_real_name
type GetRealNameOutput struct {
	MemberID string `json:"member_id"`
	RealName string `json:"real_name,omitempty"`
	Found    bool   `json:"found"`
}

func (s *Server) handleGetRealName(ctx context.Context, _ *mcp.CallToolRequest, input GetRealNameInput) (*mcp.CallToolResult, GetRealNameOutput, error) {
	memberID := strings.TrimSpace(input.MemberID)
	if memberID == "" {
		return nil, GetRealNameOutput{}, fmt.Errorf("member_id is required")
	}

	store, err := s.loadStore(ctx)
	if err != nil {
		return nil, GetRealNameOutput{}, err
	}

	name, ok := store.Get(memberID)
	return nil, GetRealNameOutput{MemberID: memberID, RealName: name, Found: ok}, nil
}

// ListRealNamesInput is the input for list_real_names
type ListRealNamesInput struct {
	Query string `json:"query,omitempty" jsonschema:"optional substring to match against real names"`
}

// Binding is one member with a real name
type Binding struct {
	MemberID string `json:"member_id"`
	RealName string `json:"real_name"`
}

// ListRealNamesOutput is the output for list_real_names
type ListRealNamesOutput struct {
	Bindings []Binding `json:"bindings"`
	Total    int       `json:"total"`
}

func (s *Server) handleListRealNames(ctx context.Context, _ *mcp.CallToolRequest, input ListRealNamesInput) (*mcp.CallToolResult, ListRealNamesOutput, error) {
	store, err := s.loadStore(ctx)
	if err != nil {
		return nil, ListRealNamesOutput{}, err
	}

	query := strings.ToLower(strings.TrimSpace(input.Query))
	out := ListRealNamesOutput{Bindings: []Binding{}}
	for _, b := range store.Bindings() {
		if query != "" && !strings.Contains(strings.ToLower(b.RealName), query) {
			continue
		}
		out.Bindings = append(out.Bindings, Binding{MemberID: b.MemberID, RealName: b.RealName})
	}
	out.Total = len(out.Bindings)
	return nil, out, nil
}

func (s *Server) loadStore(ctx context.Context) (*domain.NameStore, error) {
	snap, err := s.snapshotRepo.Fetch(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewNameStore(), nil
	}
	if err != nil {
		s.log.Warn("snapshot fetch failed", "error", err)
		return nil, fmt.Errorf("read names: %w", err)
	}
	return domain.DeserializeNameStore(snap.Content), nil
}
