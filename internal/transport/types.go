package transport

import "context"

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	FromName     string
	Text         string

	// PhotoID is the transport file reference of the largest attached
	// photo, empty when the message carries no photo.
	PhotoID string
	Caption string
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	MessageID int
	Data      string
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

// ChatInfo is the resolved identity of a chat/user id, used by the
// admin add-by-id path.
type ChatInfo struct {
	ID        int64
	FirstName string
	Username  string
}

// Photo references an image either by transport file id (re-sending an
// uploaded photo) or by URL (content provider results). Exactly one of
// FileID/URL should be set.
type Photo struct {
	FileID  string
	URL     string
	Caption string
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	// ReplyMarkupAdapter is adapter-specific markup (Telegram: *telebot.ReplyMarkup).
	ReplyMarkupAdapter any
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendPhoto(ctx context.Context, to ChatTarget, photo Photo, opt *SendOptions) (MessageRef, error)
	ResolveChat(ctx context.Context, chatID int64) (ChatInfo, error)
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}
