package services_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/binsarkiel/chatto/app/tests"
	"github.com/binsarkiel/chatto/internal/models"
	"github.com/binsarkiel/chatto/internal/services"
)

func TestSocketGateway_CollapsesStoreErrors(t *testing.T) {
	logger := slog.Default()
	ctx := context.Background()

	driverErr := errors.New(`pq: password authentication failed for user "chatto" host=db-internal-10.0.0.7`)

	convRepo := &tests.MockConversationRepository{}
	convRepo.On("GetByID", ctx, "c1").Return((*models.Conversation)(nil), driverErr)

	chat := services.NewChatService(convRepo, &tests.MockMessageRepository{}, &tests.MockUserRepository{}, logger)
	gateway := services.NewSocketGateway(chat, logger)

	_, err := gateway.JoinConversation(ctx, "c1", "u1")
	assert.Equal(t, services.ErrInternal, err)
	assert.NotContains(t, err.Error(), "pq:")
	assert.NotContains(t, err.Error(), "db-internal")

	_, err = gateway.SendMessage(ctx, "c1", "u1", "hello")
	assert.Equal(t, services.ErrInternal, err)
}

func TestSocketGateway_KeepsSentinelErrors(t *testing.T) {
	logger := slog.Default()
	ctx := context.Background()

	convRepo := &tests.MockConversationRepository{}
	convRepo.On("GetByID", ctx, "c1").Return(directConversation("c1", "u1", "u2"), nil)

	chat := services.NewChatService(convRepo, &tests.MockMessageRepository{}, &tests.MockUserRepository{}, logger)
	gateway := services.NewSocketGateway(chat, logger)

	_, err := gateway.JoinConversation(ctx, "c1", "intruder")
	assert.Equal(t, services.ErrNotAMember, err)

	_, err = gateway.SendMessage(ctx, "c1", "intruder", "hello")
	assert.Equal(t, services.ErrNotAMember, err)
}
