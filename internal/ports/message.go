package ports

import (
	"context"

	"github.com/binsarkiel/chatto/internal/models"
)

type IMessageRepository interface {
	// Append stores the message, bumps the conversation's last activity and
	// seeds an unread flag for every member except the sender.
	Append(ctx context.Context, conversationID, senderID, content string) (*models.Message, error)

	GetMessages(ctx context.Context, conversationID string) ([]models.Message, error)

	// MarkRead flips the user's unread flags in the conversation. Idempotent.
	MarkRead(ctx context.Context, conversationID, userID string) error
}
