package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/DevRickLin/feishu-realname-sync/internal/biz/domain"
	"github.com/DevRickLin/feishu-realname-sync/internal/biz/repo"
	"github.com/DevRickLin/feishu-realname-sync/internal/biz/usecase"
	"github.com/DevRickLin/feishu-realname-sync/internal/conf"
	"github.com/DevRickLin/feishu-realname-sync/internal/logger"
)

// MessageRequest is an inbound text message
type MessageRequest struct {
	ChatID   string
	MsgID    string
	SenderID string
	Text     string
	Mentions []domain.Member // Mentioned members, bot excluded
}

// RealNameService turns chat commands and profile updates into sync engine
// calls and answers in the chat
type RealNameService struct {
	engine      *usecase.SyncEngine
	messageRepo repo.MessageRepo
	messages    *conf.MessagesConfig
	maxLabel    int
	log         *slog.Logger
}

// NewRealNameService creates a new real-name service
func NewRealNameService(
	engine *usecase.SyncEngine,
	messageRepo repo.MessageRepo,
	messages *conf.MessagesConfig,
	maxLabel int,
	log *slog.Logger,
) *RealNameService {
	if messages == nil {
		messages = conf.DefaultMessagesConfig()
	}
	if maxLabel <= 0 {
		maxLabel = domain.DefaultMaxLabelLength
	}
	return &RealNameService{
		engine:      engine,
		messageRepo: messageRepo,
		messages:    messages,
		maxLabel:    maxLabel,
		log:         logger.Component(log, "RealNameService"),
	}
}

// HandleMessage runs a /realname command and replies to it. Messages that
// are not commands are ignored.
func (s *RealNameService) HandleMessage(ctx context.Context, req *MessageRequest) error {
	cmd, ok := ParseCommand(req.Text)
	if !ok {
		return nil
	}

	target := domain.Member{OpenID: req.SenderID}
	if len(req.Mentions) > 0 {
		target = req.Mentions[0]
	}

	s.log.Info("command received", "kind", cmd.Kind, "actor_id", req.SenderID, "member_id", target.OpenID, "chat_id", req.ChatID)

	reply := s.execute(ctx, cmd, req.SenderID, &target)
	if reply == "" {
		return nil
	}
	if err := s.messageRepo.ReplyText(ctx, req.MsgID, reply); err != nil {
		s.log.Warn("reply failed", "msg_id", req.MsgID, "error", err)
		return err
	}
	return nil
}

func (s *RealNameService) execute(ctx context.Context, cmd Command, actorID string, target *domain.Member) string {
	vars := map[string]string{"member": target.FormatMention()}

	switch cmd.Kind {
	case CommandHelp:
		return s.messages.Help

	case CommandSet:
		vars["name"] = cmd.Args
		vars["max"] = strconv.Itoa(s.maxLabel)
		result, err := s.engine.HandleSetRequest(ctx, actorID, target.OpenID, cmd.Args)
		if err != nil {
			return s.errorReply(err, vars)
		}
		vars["label"] = result.Label
		if result.Label == "" {
			vars["label"] = result.RealName
		}
		return s.withWarnings(conf.Render(s.messages.Set.Done, vars), result.RelabelFailed, result.PersistFailed)

	case CommandRemove:
		result, err := s.engine.HandleRemoveRequest(ctx, actorID, target.OpenID)
		if err != nil {
			return s.errorReply(err, vars)
		}
		vars["name"] = result.RemovedName
		return s.withWarnings(conf.Render(s.messages.Remove.Done, vars), result.RelabelFailed, result.PersistFailed)

	case CommandShow:
		name, ok := s.engine.HandleShowRequest(ctx, target.OpenID)
		if !ok {
			return conf.Render(s.messages.Show.Unbound, vars)
		}
		vars["name"] = name
		return conf.Render(s.messages.Show.Bound, vars)

	default:
		return s.messages.Usage
	}
}

// errorReply maps request errors to user-facing text
func (s *RealNameService) errorReply(err error, vars map[string]string) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return conf.Render(s.messages.Errors.InvalidInput, vars)
	case errors.Is(err, domain.ErrNameTooLong):
		return conf.Render(s.messages.Errors.NameTooLong, vars)
	case errors.Is(err, domain.ErrNotFound):
		return conf.Render(s.messages.Errors.NotFound, vars)
	case errors.Is(err, domain.ErrPolicyRejected):
		return conf.Render(s.messages.Errors.PolicyRejected, vars)
	default:
		s.log.Error("command failed", "error", err)
		return conf.Render(s.messages.Errors.Generic, vars)
	}
}

func (s *RealNameService) withWarnings(reply string, relabelFailed, persistFailed bool) string {
	if relabelFailed {
		reply += "\n" + s.messages.Warning.RelabelFailed
	}
	if persistFailed {
		reply += "\n" + s.messages.Warning.PersistFailed
	}
	return reply
}

// HandleUserUpdate reconciles a member whose profile changed
func (s *RealNameService) HandleUserUpdate(ctx context.Context, member *domain.Member) usecase.ReconcileResult {
	return s.engine.HandleDriftEvent(ctx, member.OpenID, member.Label())
}

// AnnounceImport posts the result of a label import to chatID. Nothing is
// sent when no names were imported.
func (s *RealNameService) AnnounceImport(ctx context.Context, chatID string, imported int) error {
	if imported == 0 {
		return nil
	}
	text := conf.Render(s.messages.Import.Announce, map[string]string{
		"count": strconv.Itoa(imported),
		"total": strconv.Itoa(s.engine.Store().Len()),
	})
	if err := s.messageRepo.SendText(ctx, chatID, text); err != nil {
		s.log.Warn("import announcement failed", "chat_id", chatID, "error", err)
		return err
	}
	return nil
}
