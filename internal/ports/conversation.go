package ports

import (
	"context"

	"github.com/binsarkiel/chatto/internal/models"
)

type IConversationRepository interface {
	// FindOrCreateDirect is atomic for an unordered user pair: concurrent
	// calls for the same pair yield the same conversation. The bool reports
	// whether a new conversation was created.
	FindOrCreateDirect(ctx context.Context, userA, userB string) (*models.Conversation, bool, error)

	CreateGroup(ctx context.Context, creatorID, name, description string) (*models.Conversation, error)

	// GetByID returns (nil, nil) when the conversation does not exist.
	GetByID(ctx context.Context, id string) (*models.Conversation, error)

	// ListForUser orders by last activity descending; conversations without
	// messages sort last, ties break on conversation id ascending.
	ListForUser(ctx context.Context, userID string) ([]models.ConversationSummary, error)

	// AddMember returns ErrDuplicate if the user is already a member.
	AddMember(ctx context.Context, conversationID, userID string, role models.MemberRole) error

	// RemoveMemberGuarded refuses with ErrPrecondition when removing the
	// target would leave the group without an admin.
	RemoveMemberGuarded(ctx context.Context, conversationID, userID string) error

	// TransferAdmin atomically demotes from and promotes to. Returns
	// ErrPrecondition when either side is not a member.
	TransferAdmin(ctx context.Context, conversationID, fromID, toID string) error
}
