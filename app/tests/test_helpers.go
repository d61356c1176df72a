package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/binsarkiel/chatto/internal/models"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) ListUsers(ctx context.Context, excludeID string) ([]models.User, error) {
	args := m.Called(ctx, excludeID)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserRepository) CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	args := m.Called(ctx, username, email, passwordHash)
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) UpdateUsername(ctx context.Context, id, username string) error {
	args := m.Called(ctx, id, username)
	return args.Error(0)
}

type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) FindOrCreateDirect(ctx context.Context, userA, userB string) (*models.Conversation, bool, error) {
	args := m.Called(ctx, userA, userB)
	return args.Get(0).(*models.Conversation), args.Bool(1), args.Error(2)
}

func (m *MockConversationRepository) CreateGroup(ctx context.Context, creatorID, name, description string) (*models.Conversation, error) {
	args := m.Called(ctx, creatorID, name, description)
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockConversationRepository) ListForUser(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.ConversationSummary), args.Error(1)
}

func (m *MockConversationRepository) AddMember(ctx context.Context, conversationID, userID string, role models.MemberRole) error {
	args := m.Called(ctx, conversationID, userID, role)
	return args.Error(0)
}

func (m *MockConversationRepository) RemoveMemberGuarded(ctx context.Context, conversationID, userID string) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *MockConversationRepository) TransferAdmin(ctx context.Context, conversationID, fromID, toID string) error {
	args := m.Called(ctx, conversationID, fromID, toID)
	return args.Error(0)
}

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Append(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, content)
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageRepository) GetMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	args := m.Called(ctx, conversationID)
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockMessageRepository) MarkRead(ctx context.Context, conversationID, userID string) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

type MockHasher struct {
	mock.Mock
}

func (m *MockHasher) GenerateFromPassword(password []byte, cost int) ([]byte, error) {
	args := m.Called(password, cost)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockHasher) CompareHashAndPassword(storedHash []byte, password []byte) error {
	args := m.Called(storedHash, password)
	return args.Error(0)
}

func (m *MockHasher) DefaultCost() int {
	return m.Called().Int(0)
}

type MockTokenRepository struct {
	mock.Mock
}

func (m *MockTokenRepository) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	args := m.Called(ctx, tokenHash)
	return args.Bool(0), args.Error(1)
}

func (m *MockTokenRepository) Revoke(ctx context.Context, tokenHash string, expiration time.Duration) error {
	args := m.Called(ctx, tokenHash, expiration)
	return args.Error(0)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendWelcomeEmail(email, username string) error {
	args := m.Called(email, username)
	return args.Error(0)
}

func CreateTestRequest(url, method string, body interface{}) *http.Request {
	var buffer bytes.Buffer
	if body != nil {
		json.NewEncoder(&buffer).Encode(body)
	}

	req := httptest.NewRequest(method, url, &buffer)
	req.Header.Set("Content-Type", "application/json")

	return req
}

func ExecuteHandler(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}
