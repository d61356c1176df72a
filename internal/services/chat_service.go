package services

import (
	"context"
	"log/slog"
	"sort"

	"github.com/binsarkiel/chatto/internal/models"
	"github.com/binsarkiel/chatto/internal/ports"
	"github.com/binsarkiel/chatto/internal/realtime"
)

type ChatService struct {
	conversationRepo ports.IConversationRepository
	messageRepo      ports.IMessageRepository
	userRepo         ports.IUserRepositoryReader
	hub              *realtime.Hub
	logger           *slog.Logger
}

func NewChatService(conversationRepo ports.IConversationRepository, messageRepo ports.IMessageRepository, userRepo ports.IUserRepositoryReader, logger *slog.Logger) *ChatService {
	return &ChatService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		userRepo:         userRepo,
		logger:           logger,
	}
}

func (s *ChatService) SetHub(hub *realtime.Hub) {
	s.hub = hub
}

// FindOrCreateDirect returns the direct conversation between the caller and
// the named recipient, creating it if the pair never chatted. Idempotent: a
// second call returns the same conversation.
func (s *ChatService) FindOrCreateDirect(ctx context.Context, userID, recipientUsername string) (*models.Conversation, bool, error) {
	if recipientUsername == "" {
		return nil, false, ErrInvalidInput
	}

	recipient, err := s.userRepo.GetUserByUsername(ctx, recipientUsername)
	if err != nil {
		s.logger.Error("recipient lookup failed", "username", recipientUsername, "error", err)
		return nil, false, err
	}
	if recipient == nil {
		s.logger.Warn("recipient not found", "username", recipientUsername)
		return nil, false, ErrUserNotFound
	}
	if recipient.ID == userID {
		return nil, false, ErrSelfChat
	}

	conversation, created, err := s.conversationRepo.FindOrCreateDirect(ctx, userID, recipient.ID)
	if err != nil {
		s.logger.Error("failed to find or create direct chat", "error", err)
		return nil, false, err
	}

	if created {
		s.notifyNewConversation(conversation)
		s.logger.Info("direct chat created", "conversationID", conversation.ID, "members", conversation.MemberIDs())
	}

	return conversation, created, nil
}

func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}

	summaries, err := s.conversationRepo.ListForUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list conversations", "userID", userID, "error", err)
		return nil, err
	}

	// Both stores already order this way; re-applying the rule here keeps the
	// contract independent of the backend.
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i].LastActivity, summaries[j].LastActivity
		switch {
		case a == nil && b == nil:
			return summaries[i].ID < summaries[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return summaries[i].ID < summaries[j].ID
		default:
			return a.After(*b)
		}
	})

	s.logger.Debug("retrieved conversations", "userID", userID, "count", len(summaries))
	return summaries, nil
}

// SendMessage persists the message and fans it out: the conversation room
// gets the message itself, members without the conversation open get a
// per-user notification so their list can update.
func (s *ChatService) SendMessage(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	if senderID == "" || content == "" {
		return nil, ErrInvalidInput
	}

	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		s.logger.Error("failed to check conversation existence", "conversationID", conversationID, "error", err)
		return nil, err
	}
	if conversation == nil {
		s.logger.Warn("conversation not found", "conversationID", conversationID)
		return nil, ErrConversationNotFound
	}

	if !conversation.HasMember(senderID) {
		s.logger.Warn("sender is not a member", "userID", senderID, "conversationID", conversationID)
		return nil, ErrNotAMember
	}

	message, err := s.messageRepo.Append(ctx, conversationID, senderID, content)
	if err != nil {
		s.logger.Error("failed to append message", "conversationID", conversationID, "error", err)
		return nil, err
	}

	s.notifyNewMessage(conversation, message)

	s.logger.Info("message sent", "conversationID", conversationID, "senderID", senderID)
	return message, nil
}

func (s *ChatService) GetMessages(ctx context.Context, conversationID, userID string) ([]models.Message, error) {
	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}
	if !conversation.HasMember(userID) {
		return nil, ErrNotAMember
	}

	messages, err := s.messageRepo.GetMessages(ctx, conversationID)
	if err != nil {
		s.logger.Error("failed to get messages", "conversationID", conversationID, "error", err)
		return nil, err
	}

	s.logger.Debug("retrieved messages", "conversationID", conversationID, "count", len(messages))
	return messages, nil
}

func (s *ChatService) MarkRead(ctx context.Context, conversationID, userID string) error {
	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conversation == nil {
		return ErrConversationNotFound
	}
	if !conversation.HasMember(userID) {
		return ErrNotAMember
	}

	return s.messageRepo.MarkRead(ctx, conversationID, userID)
}

// JoinConversation backs the hub's room-join: membership checked against the
// store at join time, unread flags flipped, history returned for replay.
func (s *ChatService) JoinConversation(ctx context.Context, conversationID, userID string) ([]models.Message, error) {
	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}
	if !conversation.HasMember(userID) {
		return nil, ErrNotAMember
	}

	if err := s.messageRepo.MarkRead(ctx, conversationID, userID); err != nil {
		s.logger.Error("failed to mark conversation read", "conversationID", conversationID, "error", err)
		return nil, err
	}

	return s.messageRepo.GetMessages(ctx, conversationID)
}

func (s *ChatService) notifyNewConversation(conversation *models.Conversation) {
	if s.hub == nil {
		return
	}

	event := realtime.Event{Type: "new_chat", Data: conversation}
	for _, member := range conversation.Members {
		s.hub.NotifyUser(member.UserID, event)
	}
}

func (s *ChatService) notifyNewMessage(conversation *models.Conversation, message *models.Message) {
	if s.hub == nil {
		return
	}

	s.hub.NotifyConversation(conversation.ID, realtime.Event{Type: "message", Data: message})

	room := realtime.ConversationRoom(conversation.ID)
	update := realtime.Event{Type: "chat_updated", Data: map[string]any{
		"conversation_id": conversation.ID,
		"latest_message":  message,
	}}
	for _, member := range conversation.Members {
		if member.UserID == message.SenderID {
			continue
		}
		if s.hub.IsUserInRoom(room, member.UserID) {
			continue
		}
		s.hub.NotifyUser(member.UserID, update)
	}
}
