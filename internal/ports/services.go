package ports

import (
	"context"

	"github.com/binsarkiel/chatto/internal/models"
)

// IChatEvents is the slice of the chat service the websocket hub drives.
type IChatEvents interface {
	// JoinConversation verifies membership at join time, marks the
	// conversation read and returns its history.
	JoinConversation(ctx context.Context, conversationID, userID string) ([]models.Message, error)
	SendMessage(ctx context.Context, conversationID, senderID, content string) (*models.Message, error)
}

// ITokenValidator resolves a bearer token to a live user.
type ITokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*models.User, error)
}

type IMailer interface {
	SendWelcomeEmail(email, username string) error
}
