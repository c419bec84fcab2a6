package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DevRickLin/feishu-realname-sync/internal/biz/domain"
	"github.com/DevRickLin/feishu-realname-sync/internal/biz/usecase"
	"github.com/DevRickLin/feishu-realname-sync/internal/infra/feishu"
	"github.com/DevRickLin/feishu-realname-sync/internal/logger"
	"github.com/DevRickLin/feishu-realname-sync/internal/service"
)

const (
	eventQueueSize = 256
	dedupWindow    = 5 * time.Minute
)

// EventSource delivers Feishu events; *feishu.Client implements it
type EventSource interface {
	OnMessage(handler feishu.MessageHandler)
	OnUserUpdate(handler feishu.UserUpdateHandler)
	Start(ctx context.Context) error
	Stop()
}

// EventHandler processes events one at a time
type EventHandler interface {
	HandleMessage(ctx context.Context, req *service.MessageRequest) error
	HandleUserUpdate(ctx context.Context, member *domain.Member) usecase.ReconcileResult
}

// event is one queued inbound event; exactly one payload is set
type event struct {
	id     string
	msg    *feishu.Message
	update *feishu.UserUpdate
}

// FeishuServer feeds commands and profile updates through a single event
// loop so each handler runs to completion before the next starts
type FeishuServer struct {
	source  EventSource
	handler EventHandler
	events  chan event
	done    chan struct{}
	log     *slog.Logger

	// Message deduplication cache
	seenMsgsMu sync.Mutex
	seenMsgs   map[string]time.Time // msgID -> timestamp
}

// NewFeishuServer creates a new Feishu server
func NewFeishuServer(source EventSource, handler EventHandler, log *slog.Logger) *FeishuServer {
	s := &FeishuServer{
		source:   source,
		handler:  handler,
		events:   make(chan event, eventQueueSize),
		done:     make(chan struct{}),
		log:      logger.Component(log, "Server"),
		seenMsgs: make(map[string]time.Time),
	}
	source.OnMessage(s.enqueueMessage)
	source.OnUserUpdate(s.enqueueUserUpdate)
	return s
}

// Run connects to Feishu and processes events until ctx is cancelled
func (s *FeishuServer) Run(ctx context.Context) error {
	defer close(s.done)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.source.Start(ctx)
	}()
	defer s.source.Stop()

	for {
		select {
		case ev := <-s.events:
			s.dispatch(ctx, ev)
		case err := <-errCh:
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error("event connection closed", "error", err)
			return err
		case <-ctx.Done():
			return nil
		}
	}
}

// enqueueMessage is called from the SDK goroutine and must not block for long
func (s *FeishuServer) enqueueMessage(msg *feishu.Message) {
	if !service.IsCommand(msg.Text) {
		return
	}
	if !s.markMessageSeen(msg.MsgID) {
		s.log.Debug("duplicate message ignored", "msg_id", msg.MsgID)
		return
	}
	s.enqueue(event{id: uuid.NewString(), msg: msg})
}

func (s *FeishuServer) enqueueUserUpdate(update *feishu.UserUpdate) {
	s.enqueue(event{id: uuid.NewString(), update: update})
}

func (s *FeishuServer) enqueue(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *FeishuServer) dispatch(ctx context.Context, ev event) {
	log := s.log.With("event_id", ev.id)

	switch {
	case ev.msg != nil:
		msg := ev.msg
		req := &service.MessageRequest{
			ChatID:   msg.ChatID,
			MsgID:    msg.MsgID,
			SenderID: msg.SenderID,
			Text:     msg.Text,
		}
		for _, m := range msg.Mentions {
			req.Mentions = append(req.Mentions, domain.Member{OpenID: m.OpenID, Name: m.Name})
		}
		log.Debug("handling command", "msg_id", msg.MsgID, "sender_id", msg.SenderID)
		if err := s.handler.HandleMessage(ctx, req); err != nil {
			log.Warn("command handling failed", "msg_id", msg.MsgID, "error", err)
		}

	case ev.update != nil:
		member := &domain.Member{
			OpenID:   ev.update.OpenID,
			Name:     ev.update.Name,
			Nickname: ev.update.Nickname,
		}
		result := s.handler.HandleUserUpdate(ctx, member)
		log.Debug("user update handled", "member_id", member.OpenID, "outcome", result.Outcome)
	}
}

// markMessageSeen records msgID and reports whether it was new. Records
// older than the dedup window are dropped on each call.
func (s *FeishuServer) markMessageSeen(msgID string) bool {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()

	now := time.Now()
	cutoff := now.Add(-dedupWindow)
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}

	if _, exists := s.seenMsgs[msgID]; exists {
		return false
	}
	s.seenMsgs[msgID] = now
	return true
}
