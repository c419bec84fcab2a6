package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkcontact "github.com/larksuite/oapi-sdk-go/v3/service/contact/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"

	"github.com/DevRickLin/feishu-realname-sync/internal/logger"
)

const userIDTypeOpenID = "open_id"

// Message represents a received Feishu text message
type Message struct {
	ChatID      string
	MsgID       string
	ChatType    string    // p2p (private), group
	Text        string    // Text with mention placeholders (@_user_1) removed
	SenderID    string    // Sender open_id
	Mentions    []Mention // Mentioned users, bot excluded
	MentionsBot bool      // True if the bot was mentioned
}

// Mention represents a mentioned user
type Mention struct {
	OpenID string
	Name   string
}

// UserUpdate is a contact.user.updated_v3 notification
type UserUpdate struct {
	OpenID      string
	Name        string
	Nickname    string
	OldNickname string
}

// User is a contact directory entry
type User struct {
	OpenID   string
	Name     string
	Nickname string
}

// ChatInfo represents information about a chat
type ChatInfo struct {
	ChatID     string
	Name       string
	OwnerID    string
	ManagerIDs []string
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *Message)

// UserUpdateHandler is the callback for user profile changes
type UserUpdateHandler func(update *UserUpdate)

// Client is the Feishu API client
type Client struct {
	appID        string
	appSecret    string
	larkCli      *lark.Client
	wsCli        *larkws.Client
	onMessage    MessageHandler
	onUserUpdate UserUpdateHandler
	ctx          context.Context
	cancel       context.CancelFunc
	botOpenID    string
	log          *slog.Logger
}

// NewClient creates a new Feishu client. The REST client is usable right
// away; Start opens the event websocket.
func NewClient(appID, appSecret string, log *slog.Logger) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
		log:       logger.Component(log, "Feishu"),
	}
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// OnUserUpdate sets the user-updated handler
func (c *Client) OnUserUpdate(handler UserUpdateHandler) {
	c.onUserUpdate = handler
}

// Start connects to Feishu via WebSocket and blocks until ctx is cancelled
func (c *Client) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.fetchBotOpenID(c.ctx); err != nil {
		c.log.Warn("failed to fetch bot open_id", "error", err)
	}

	// Handlers must return quickly so the SDK can ACK; they only enqueue.
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			c.handleMessage(event)
			return nil
		}).
		OnP2UserUpdatedV3(func(ctx context.Context, event *larkcontact.P2UserUpdatedV3) error {
			c.handleUserUpdated(event)
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	c.log.Info("starting websocket connection")
	return c.wsCli.Start(c.ctx)
}

// Stop disconnects from Feishu
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// fetchBotOpenID fetches the bot's own open_id so mentions of the bot can
// be told apart from command targets. The SDK supplies the tenant token.
func (c *Client) fetchBotOpenID(ctx context.Context) error {
	resp, err := c.larkCli.Get(ctx, "/open-apis/bot/v3/info", nil, larkcore.AccessTokenTypeTenant)
	if err != nil {
		return fmt.Errorf("get bot info: %w", err)
	}

	info, err := parseBotInfo(resp.RawBody)
	if err != nil {
		return err
	}

	c.botOpenID = info.OpenID
	c.log.Info("bot identity resolved", "open_id", c.botOpenID, "name", info.AppName)
	return nil
}

type botInfo struct {
	OpenID  string `json:"open_id"`
	AppName string `json:"app_name"`
}

// parseBotInfo decodes a bot/v3/info response body
func parseBotInfo(raw []byte) (*botInfo, error) {
	var result struct {
		Code int     `json:"code"`
		Msg  string  `json:"msg"`
		Bot  botInfo `json:"bot"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode bot info: %w", err)
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("API error: code=%d msg=%s", result.Code, result.Msg)
	}
	if result.Bot.OpenID == "" {
		return nil, fmt.Errorf("bot info has no open_id")
	}
	return &result.Bot, nil
}

// handleMessage converts a receive event into a Message
func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	if event.Event == nil || event.Event.Message == nil {
		return
	}
	rawMsg := event.Event.Message

	// Ignore messages sent by bots, including our own replies
	if event.Event.Sender != nil && event.Event.Sender.SenderType != nil && *event.Event.Sender.SenderType == "app" {
		return
	}

	if rawMsg.MessageType == nil || *rawMsg.MessageType != "text" {
		return
	}

	msg := &Message{
		ChatID: deref(rawMsg.ChatId),
		MsgID:  deref(rawMsg.MessageId),
	}
	msg.ChatType = deref(rawMsg.ChatType)

	if event.Event.Sender != nil && event.Event.Sender.SenderId != nil {
		msg.SenderID = deref(event.Event.Sender.SenderId.OpenId)
	}

	var placeholders []string
	for _, mention := range rawMsg.Mentions {
		if mention.Key != nil {
			placeholders = append(placeholders, *mention.Key)
		}
		if mention.Id == nil || mention.Id.OpenId == nil {
			continue
		}
		openID := *mention.Id.OpenId
		if openID == c.botOpenID {
			msg.MentionsBot = true
			continue
		}
		msg.Mentions = append(msg.Mentions, Mention{OpenID: openID, Name: deref(mention.Name)})
	}

	msg.Text = parseTextContent(deref(rawMsg.Content), placeholders)

	c.log.Debug("message received", "chat_id", msg.ChatID, "chat_type", msg.ChatType, "sender_id", msg.SenderID)

	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

// handleUserUpdated converts a contact user update into a UserUpdate
func (c *Client) handleUserUpdated(event *larkcontact.P2UserUpdatedV3) {
	if event.Event == nil || event.Event.Object == nil {
		return
	}
	obj := event.Event.Object

	update := &UserUpdate{
		OpenID:   deref(obj.OpenId),
		Name:     deref(obj.Name),
		Nickname: deref(obj.Nickname),
	}
	if event.Event.OldObject != nil {
		update.OldNickname = deref(event.Event.OldObject.Nickname)
	}
	if update.OpenID == "" {
		return
	}

	c.log.Debug("user updated", "open_id", update.OpenID, "nickname", update.Nickname, "old_nickname", update.OldNickname)

	if c.onUserUpdate != nil {
		c.onUserUpdate(update)
	}
}

// parseTextContent extracts text from a text message and drops mention
// placeholders, leaving only the typed words
func parseTextContent(content string, placeholders []string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	text := parsed.Text
	for _, key := range placeholders {
		text = strings.ReplaceAll(text, key, "")
	}
	return strings.Join(strings.Fields(text), " ")
}

// GetUser retrieves a user from the contact directory by open_id
func (c *Client) GetUser(ctx context.Context, openID string) (*User, error) {
	req := larkcontact.NewGetUserReqBuilder().
		UserId(openID).
		UserIdType(userIDTypeOpenID).
		Build()

	resp, err := c.larkCli.Contact.User.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get user failed: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("get user error: %s", resp.Msg)
	}
	if resp.Data == nil || resp.Data.User == nil {
		return nil, fmt.Errorf("get user error: empty response for %s", openID)
	}

	u := resp.Data.User
	return &User{
		OpenID:   openID,
		Name:     deref(u.Name),
		Nickname: deref(u.Nickname),
	}, nil
}

// SetNickname patches the user's nickname
func (c *Client) SetNickname(ctx context.Context, openID, nickname string) error {
	req := larkcontact.NewPatchUserReqBuilder().
		UserId(openID).
		UserIdType(userIDTypeOpenID).
		User(larkcontact.NewUserBuilder().
			Nickname(nickname).
			Build()).
		Build()

	resp, err := c.larkCli.Contact.User.Patch(ctx, req)
	if err != nil {
		return fmt.Errorf("patch user failed: %w", err)
	}
	if !resp.Success() {
		return &APIError{Code: resp.Code, Msg: resp.Msg}
	}

	c.log.Info("nickname updated", "open_id", openID, "nickname", nickname)
	return nil
}

// GetChatInfo retrieves the owner and managers of a chat
func (c *Client) GetChatInfo(ctx context.Context, chatID string) (*ChatInfo, error) {
	req := larkim.NewGetChatReqBuilder().
		ChatId(chatID).
		UserIdType(userIDTypeOpenID).
		Build()

	resp, err := c.larkCli.Im.Chat.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get chat info failed: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("get chat info error: %s", resp.Msg)
	}

	info := &ChatInfo{ChatID: chatID}
	if resp.Data != nil {
		info.Name = deref(resp.Data.Name)
		info.OwnerID = deref(resp.Data.OwnerId)
		info.ManagerIDs = append(info.ManagerIDs, resp.Data.UserManagerIdList...)
	}
	return info, nil
}

// GetChatMemberIDs retrieves the open_ids of all members of a chat.
// Uses pagination to get all members.
func (c *Client) GetChatMemberIDs(ctx context.Context, chatID string) ([]string, error) {
	var ids []string
	var pageToken string

	for {
		reqBuilder := larkim.NewGetChatMembersReqBuilder().
			MemberIdType(userIDTypeOpenID).
			ChatId(chatID).
			PageSize(100)
		if pageToken != "" {
			reqBuilder = reqBuilder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Im.ChatMembers.Get(ctx, reqBuilder.Build())
		if err != nil {
			return nil, fmt.Errorf("get chat members failed: %w", err)
		}
		if !resp.Success() {
			return nil, fmt.Errorf("get chat members error: %s", resp.Msg)
		}
		if resp.Data == nil {
			break
		}

		for _, item := range resp.Data.Items {
			if item.MemberId != nil {
				ids = append(ids, *item.MemberId)
			}
		}

		if resp.Data.PageToken == nil || *resp.Data.PageToken == "" {
			break
		}
		pageToken = *resp.Data.PageToken
	}

	c.log.Debug("chat members listed", "chat_id", chatID, "count", len(ids))
	return ids, nil
}

// SendText sends a text message to a chat
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	contentJSON, _ := json.Marshal(map[string]string{"text": text})

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}
	return nil
}

// ReplyText replies to a message
func (c *Client) ReplyText(ctx context.Context, msgID, text string) error {
	contentJSON, _ := json.Marshal(map[string]string{"text": text})

	req := larkim.NewReplyMessageReqBuilder().
		MessageId(msgID).
		Body(larkim.NewReplyMessageReqBodyBuilder().
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Reply(ctx, req)
	if err != nil {
		return fmt.Errorf("reply message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("reply message error: %s", resp.Msg)
	}
	return nil
}

// APIError is a non-success response from the Feishu open API
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("feishu api error %d: %s", e.Code, e.Msg)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
