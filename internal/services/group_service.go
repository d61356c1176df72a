package services

import (
	"context"
	"errors"

	"github.com/binsarkiel/chatto/internal/models"
	"github.com/binsarkiel/chatto/internal/ports"
	"github.com/binsarkiel/chatto/internal/realtime"
)

// Group membership operations. The store enforces the two invariants that
// matter across concurrent requests (pair uniqueness, at least one admin);
// the role checks here run on freshly fetched rows.

func (s *ChatService) CreateGroup(ctx context.Context, creatorID, name, description string) (*models.Conversation, error) {
	if name == "" {
		return nil, ErrInvalidInput
	}

	group, err := s.conversationRepo.CreateGroup(ctx, creatorID, name, description)
	if err != nil {
		s.logger.Error("failed to create group", "error", err)
		return nil, err
	}

	if s.hub != nil {
		s.hub.NotifyUser(creatorID, realtime.Event{Type: "new_chat", Data: group})
	}

	s.logger.Info("group created", "conversationID", group.ID, "name", name, "createdBy", creatorID)
	return group, nil
}

// fetchGroup loads a conversation and verifies it is a group the actor can
// administer.
func (s *ChatService) fetchGroup(ctx context.Context, groupID, actorID string) (*models.Conversation, error) {
	group, err := s.conversationRepo.GetByID(ctx, groupID)
	if err != nil {
		s.logger.Error("failed to fetch group", "conversationID", groupID, "error", err)
		return nil, err
	}
	if group == nil {
		return nil, ErrConversationNotFound
	}
	if group.Kind != models.KindGroup {
		return nil, ErrNotAGroup
	}

	role, isMember := group.MemberRole(actorID)
	if !isMember || role != models.RoleAdmin {
		s.logger.Warn("actor lacks admin role", "userID", actorID, "conversationID", groupID)
		return nil, ErrForbidden
	}

	return group, nil
}

func (s *ChatService) AddMember(ctx context.Context, groupID, actorID, targetUsername string) (*models.Conversation, error) {
	if _, err := s.fetchGroup(ctx, groupID, actorID); err != nil {
		return nil, err
	}

	target, err := s.userRepo.GetUserByUsername(ctx, targetUsername)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrUserNotFound
	}

	err = s.conversationRepo.AddMember(ctx, groupID, target.ID, models.RoleMember)
	if err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, ErrAlreadyMember
		}
		if errors.Is(err, ports.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		s.logger.Error("failed to add member", "conversationID", groupID, "error", err)
		return nil, err
	}

	group, err := s.conversationRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	s.notifyGroupChange(group, "memberAdded", map[string]any{"user_id": target.ID})
	// The new member gets a conversation-list entry even without an open room.
	if s.hub != nil {
		s.hub.NotifyUser(target.ID, realtime.Event{Type: "new_chat", Data: group})
	}

	s.logger.Info("member added", "conversationID", groupID, "userID", target.ID, "addedBy", actorID)
	return group, nil
}

func (s *ChatService) RemoveMember(ctx context.Context, groupID, actorID, targetID string) (*models.Conversation, error) {
	current, err := s.fetchGroup(ctx, groupID, actorID)
	if err != nil {
		return nil, err
	}
	if !current.HasMember(targetID) {
		return nil, ErrNotAMember
	}

	err = s.conversationRepo.RemoveMemberGuarded(ctx, groupID, targetID)
	if err != nil {
		if errors.Is(err, ports.ErrPrecondition) {
			s.logger.Warn("refused to remove the last admin", "conversationID", groupID, "userID", targetID)
			return nil, ErrLastAdmin
		}
		if errors.Is(err, ports.ErrNotFound) {
			return nil, ErrNotAMember
		}
		s.logger.Error("failed to remove member", "conversationID", groupID, "error", err)
		return nil, err
	}

	group, err := s.conversationRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	s.notifyGroupChange(group, "memberRemoved", map[string]any{"user_id": targetID})
	if s.hub != nil {
		s.hub.NotifyUser(targetID, realtime.Event{Type: "group_updated", Data: map[string]any{
			"change":          "removedFromGroup",
			"conversation_id": groupID,
		}})
	}

	s.logger.Info("member removed", "conversationID", groupID, "userID", targetID, "removedBy", actorID)
	return group, nil
}

func (s *ChatService) TransferAdmin(ctx context.Context, groupID, actorID, targetID string) (*models.Conversation, error) {
	current, err := s.fetchGroup(ctx, groupID, actorID)
	if err != nil {
		return nil, err
	}
	if targetID == actorID {
		return nil, ErrInvalidInput
	}
	if !current.HasMember(targetID) {
		return nil, ErrNotAMember
	}

	err = s.conversationRepo.TransferAdmin(ctx, groupID, actorID, targetID)
	if err != nil {
		if errors.Is(err, ports.ErrPrecondition) {
			// Membership changed between the fetch and the transfer.
			return nil, ErrNotAMember
		}
		s.logger.Error("failed to transfer admin", "conversationID", groupID, "error", err)
		return nil, err
	}

	group, err := s.conversationRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	s.notifyGroupChange(group, "adminTransferred", map[string]any{
		"new_admin_id": targetID,
		"old_admin_id": actorID,
	})

	s.logger.Info("admin transferred", "conversationID", groupID, "from", actorID, "to", targetID)
	return group, nil
}

func (s *ChatService) ListGroupMembers(ctx context.Context, groupID, callerID string) ([]models.Member, error) {
	group, err := s.conversationRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrConversationNotFound
	}
	if !group.HasMember(callerID) {
		return nil, ErrNotAMember
	}

	return group.Members, nil
}

// notifyGroupChange reaches every member's user room regardless of whether
// they currently have the group open.
func (s *ChatService) notifyGroupChange(group *models.Conversation, change string, extra map[string]any) {
	if s.hub == nil {
		return
	}

	data := map[string]any{
		"change":       change,
		"conversation": group,
	}
	for k, v := range extra {
		data[k] = v
	}

	event := realtime.Event{Type: "group_updated", Data: data}
	for _, member := range group.Members {
		s.hub.NotifyUser(member.UserID, event)
	}
}
