package repo

import "context"

// MessageRepo sends command replies back to a chat
type MessageRepo interface {
	// SendText sends a text message
	SendText(ctx context.Context, chatID, text string) error

	// ReplyText replies in the thread of msgID
	ReplyText(ctx context.Context, msgID, text string) error
}
