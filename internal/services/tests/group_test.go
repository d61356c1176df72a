package services_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/binsarkiel/chatto/app/tests"
	"github.com/binsarkiel/chatto/internal/models"
	"github.com/binsarkiel/chatto/internal/ports"
	"github.com/binsarkiel/chatto/internal/services"
)

func groupConversation(id string, admins []string, members ...string) *models.Conversation {
	conv := &models.Conversation{ID: id, Kind: models.KindGroup, Name: "team"}
	for _, a := range admins {
		conv.Members = append(conv.Members, models.Member{UserID: a, Role: models.RoleAdmin})
	}
	for _, m := range members {
		conv.Members = append(conv.Members, models.Member{UserID: m, Role: models.RoleMember})
	}
	return conv
}

func newGroupService(convRepo *tests.MockConversationRepository, userRepo *tests.MockUserRepository) *services.ChatService {
	return services.NewChatService(convRepo, &tests.MockMessageRepository{}, userRepo, slog.Default())
}

func TestGroup_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creator becomes admin", func(t *testing.T) {
		convRepo := &tests.MockConversationRepository{}
		convRepo.On("CreateGroup", ctx, "u1", "team", "the team room").
			Return(groupConversation("g1", []string{"u1"}), nil)

		service := newGroupService(convRepo, &tests.MockUserRepository{})
		group, err := service.CreateGroup(ctx, "u1", "team", "the team room")
		assert.NoError(t, err)

		role, ok := group.MemberRole("u1")
		assert.True(t, ok)
		assert.Equal(t, models.RoleAdmin, role)
		convRepo.AssertExpectations(t)
	})

	t.Run("empty name", func(t *testing.T) {
		service := newGroupService(&tests.MockConversationRepository{}, &tests.MockUserRepository{})
		_, err := service.CreateGroup(ctx, "u1", "", "")
		assert.Equal(t, services.ErrInvalidInput, err)
	})
}

func TestGroup_AddMember(t *testing.T) {
	ctx := context.Background()

	ts := []struct {
		name          string
		actorID       string
		target        string
		setupMocks    func(convRepo *tests.MockConversationRepository, userRepo *tests.MockUserRepository)
		expectedError error
	}{
		{
			name:    "admin adds a member",
			actorID: "admin",
			target:  "carol",
			setupMocks: func(convRepo *tests.MockConversationRepository, userRepo *tests.MockUserRepository) {
				convRepo.On("GetByID", ctx, "g1").Return(groupConversation("g1", []string{"admin"}, "bob"), nil)
				userRepo.On("GetUserByUsername", ctx, "carol").Return(&models.User{ID: "u3", Username: "carol"}, nil)
				convRepo.On("AddMember", ctx, "g1", "u3", models.RoleMember).Return(nil)
			},
		},
		{
			name:    "plain member cannot add",
			actorID: "bob",
			target:  "carol",
			setupMocks: func(convRepo *tests.MockConversationRepository, userRepo *tests.MockUserRepository) {
				convRepo.On("GetByID", ctx, "g1").Return(groupConversation("g1", []string{"admin"}, "bob"), nil)
			},
			expectedError: services.ErrForbidden,
		},
		{
			name:    "outsider cannot add",
			actorID: "stranger",
			target:  "carol",
			setupMocks: func(convRepo *tests.MockConversationRepository, userRepo *tests.MockUserRepository) {
				convRepo.On("GetByID", ctx, "g1").Return(groupConversation("g1", []string{"admin"}, "bob"), nil)
			},
			expectedError: services.ErrForbidden,
		},
		{
			name:    "target already a member",
			actorID: "admin",
			target:  "bob",
			setupMocks: func(convRepo *tests.MockConversationRepository, userRepo *tests.MockUserRepository) {
				convRepo.On("GetByID", ctx, "g1").Return(groupConversation("g1", []string{"admin"}, "bob"), nil)
				userRepo.On("GetUserByUsername", ctx, "bob").Return(&models.User{ID: "u2", Username: "bob"}, nil)
				convRepo.On("AddMember", ctx, "g1", "u2", models.RoleMember).Return(ports.ErrDuplicate)
			},
			expectedError: services.ErrAlreadyMember,
		},
		{
			name:    "target user does not exist",
			actorID: "admin",
			target:  "ghost",
			setupMocks: func(convRepo *tests.MockConversationRepository, userRepo *tests.MockUserRepository) {
				convRepo.On("GetByID", ctx, "g1").Return(groupConversation("g1", []string{"admin"}, "bob"), nil)
				userRepo.On("GetUserByUsername", ctx, "ghost").Return((*models.User)(nil), nil)
			},
			expectedError: services.ErrUserNotFound,
		},
		{
			name:    "direct chats take no members",
			actorID: "u1",
			target:  "carol",
			setupMocks: func(convRepo *tests.MockConversationRepository, userRepo *tests.MockUserRepository) {
				convRepo.On("GetByID", ctx, "g1").Return(directConversation("g1", "u1", "u2"), nil)
			},
			expectedError: services.ErrNotAGroup,
		},
	}

	for _, tt := range ts {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			convRepo := &tests.MockConversationRepository{}
			userRepo := &tests.MockUserRepository{}
			tt.setupMocks(convRepo, userRepo)

			service := newGroupService(convRepo, userRepo)
			group, err := service.AddMember(ctx, "g1", tt.actorID, tt.target)

			if tt.expectedError != nil {
				assert.Equal(t, tt.expectedError, err)
				assert.Nil(t, group)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, group)
			}

			convRepo.AssertExpectations(t)
			userRepo.AssertExpectations(t)
		})
	}
}

func TestGroup_RemoveMember(t *testing.T) {
	ctx := context.Background()

	ts := []struct {
		name          string
		actorID       string
		targetID      string
		setupMocks    func(convRepo *tests.MockConversationRepository)
		expectedError error
	}{
		{
			name:     "admin removes a member",
			actorID:  "admin",
			targetID: "bob",
			setupMocks: func(convRepo *tests.MockConversationRepository) {
				convRepo.On("GetByID", ctx, "g1").Return(groupConversation("g1", []string{"admin"}, "bob"), nil)
				convRepo.On("RemoveMemberGuarded", ctx, "g1", "bob").Return(nil)
			},
		},
		{
			name:     "removing the last admin is refused",
			actorID:  "admin",
			targetID: "admin",
			setupMocks: func(convRepo *tests.MockConversationRepository) {
				convRepo.On("GetByID", ctx, "g1").Return(groupConversation("g1", []string{"admin"}, "bob"), nil)
				convRepo.On("RemoveMemberGuarded", ctx, "g1", "admin").Return(ports.ErrPrecondition)
			},
			expectedError: services.ErrLastAdmin,
		},
		{
			name:     "one of two admins may leave",
			actorID:  "admin",
			targetID: "admin2",
			setupMocks: func(convRepo *tests.MockConversationRepository) {
				convRepo.On("GetByID", ctx, "g1").Return(groupConversation("g1", []string{"admin", "admin2"}, "bob"), nil)
				convRepo.On("RemoveMemberGuarded", ctx, "g1", "admin2").Return(nil)
			},
		},
		{
			name:     "plain member cannot remove",
			actorID:  "bob",
			targetID: "admin",
			setupMocks: func(convRepo *tests.MockConversationRepository) {
				convRepo.On("GetByID", ctx, "g1").Return(groupConversation("g1", []string{"admin"}, "bob"), nil)
			},
			expectedError: services.ErrForbidden,
		},
		{
			name:     "target is not a member",
			actorID:  "admin",
			targetID: "stranger",
			setupMocks: func(convRepo *tests.MockConversationRepository) {
				convRepo.On("GetByID", ctx, "g1").Return(groupConversation("g1", []string{"admin"}, "bob"), nil)
			},
			expectedError: services.ErrNotAMember,
		},
	}

	for _, tt := range ts {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			convRepo := &tests.MockConversationRepository{}
			tt.setupMocks(convRepo)

			service := newGroupService(convRepo, &tests.MockUserRepository{})
			_, err := service.RemoveMember(ctx, "g1", tt.actorID, tt.targetID)

			if tt.expectedError != nil {
				assert.Equal(t, tt.expectedError, err)
			} else {
				assert.NoError(t, err)
			}

			// Refused removals must not have reached the store mutation.
			convRepo.AssertExpectations(t)
		})
	}
}

func TestGroup_TransferAdmin(t *testing.T) {
	ctx := context.Background()

	ts := []struct {
		name          string
		actorID       string
		targetID      string
		setupMocks    func(convRepo *tests.MockConversationRepository)
		expectedError error
	}{
		{
			name:     "admin hands the role to a member",
			actorID:  "admin",
			targetID: "bob",
			setupMocks: func(convRepo *tests.MockConversationRepository) {
				convRepo.On("GetByID", ctx, "g1").Return(groupConversation("g1", []string{"admin"}, "bob"), nil)
				convRepo.On("TransferAdmin", ctx, "g1", "admin", "bob").Return(nil)
			},
		},
		{
			name:     "transfer to oneself",
			actorID:  "admin",
			targetID: "admin",
			setupMocks: func(convRepo *tests.MockConversationRepository) {
				convRepo.On("GetByID", ctx, "g1").Return(groupConversation("g1", []string{"admin"}, "bob"), nil)
			},
			expectedError: services.ErrInvalidInput,
		},
		{
			name:     "target is not a member",
			actorID:  "admin",
			targetID: "stranger",
			setupMocks: func(convRepo *tests.MockConversationRepository) {
				convRepo.On("GetByID", ctx, "g1").Return(groupConversation("g1", []string{"admin"}, "bob"), nil)
			},
			expectedError: services.ErrNotAMember,
		},
		{
			name:     "non-admin cannot transfer",
			actorID:  "bob",
			targetID: "admin",
			setupMocks: func(convRepo *tests.MockConversationRepository) {
				convRepo.On("GetByID", ctx, "g1").Return(groupConversation("g1", []string{"admin"}, "bob"), nil)
			},
			expectedError: services.ErrForbidden,
		},
		{
			name:     "target left between fetch and transfer",
			actorID:  "admin",
			targetID: "bob",
			setupMocks: func(convRepo *tests.MockConversationRepository) {
				convRepo.On("GetByID", ctx, "g1").Return(groupConversation("g1", []string{"admin"}, "bob"), nil)
				convRepo.On("TransferAdmin", ctx, "g1", "admin", "bob").Return(ports.ErrPrecondition)
			},
			expectedError: services.ErrNotAMember,
		},
	}

	for _, tt := range ts {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			convRepo := &tests.MockConversationRepository{}
			tt.setupMocks(convRepo)

			service := newGroupService(convRepo, &tests.MockUserRepository{})
			_, err := service.TransferAdmin(ctx, "g1", tt.actorID, tt.targetID)

			if tt.expectedError != nil {
				assert.Equal(t, tt.expectedError, err)
			} else {
				assert.NoError(t, err)
			}

			convRepo.AssertExpectations(t)
		})
	}
}

func TestGroup_ListMembers(t *testing.T) {
	ctx := context.Background()

	t.Run("any member can list", func(t *testing.T) {
		convRepo := &tests.MockConversationRepository{}
		convRepo.On("GetByID", ctx, "g1").Return(groupConversation("g1", []string{"admin"}, "bob"), nil)

		service := newGroupService(convRepo, &tests.MockUserRepository{})
		members, err := service.ListGroupMembers(ctx, "g1", "bob")
		assert.NoError(t, err)
		assert.Len(t, members, 2)
	})

	t.Run("outsider cannot list", func(t *testing.T) {
		convRepo := &tests.MockConversationRepository{}
		convRepo.On("GetByID", ctx, "g1").Return(groupConversation("g1", []string{"admin"}, "bob"), nil)

		service := newGroupService(convRepo, &tests.MockUserRepository{})
		_, err := service.ListGroupMembers(ctx, "g1", "stranger")
		assert.Equal(t, services.ErrNotAMember, err)
	})
}
