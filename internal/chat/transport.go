package chat

import (
	"context"
	"io"

	"chat-client/internal/domain"
)

// Transport es la frontera HTTP/auth que el controlador usa pero no implementa.
type Transport interface {
	SendMessage(ctx context.Context, conversationID, text, model string) (io.ReadCloser, error)
	FetchMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	CreateConversation(ctx context.Context, title string) (domain.Conversation, error)
	RenameConversation(ctx context.Context, id, title string) error
	DeleteConversation(ctx context.Context, id string) error
}
