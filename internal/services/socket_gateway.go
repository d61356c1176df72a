package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/binsarkiel/chatto/internal/models"
)

// SocketGateway fronts the chat service for the websocket hub. Expected
// failures keep their sentinel text; anything else is collapsed to
// ErrInternal so store and driver detail never reaches a socket client.
type SocketGateway struct {
	chat   *ChatService
	logger *slog.Logger
}

func NewSocketGateway(chat *ChatService, logger *slog.Logger) *SocketGateway {
	return &SocketGateway{chat: chat, logger: logger}
}

func (g *SocketGateway) JoinConversation(ctx context.Context, conversationID, userID string) ([]models.Message, error) {
	history, err := g.chat.JoinConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, g.sanitize("join", err)
	}
	return history, nil
}

func (g *SocketGateway) SendMessage(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	message, err := g.chat.SendMessage(ctx, conversationID, senderID, content)
	if err != nil {
		return nil, g.sanitize("send", err)
	}
	return message, nil
}

func (g *SocketGateway) sanitize(op string, err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrConversationNotFound),
		errors.Is(err, ErrNotAMember),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrForbidden):
		return err
	default:
		g.logger.Error("socket operation failed", "op", op, "error", err)
		return ErrInternal
	}
}
