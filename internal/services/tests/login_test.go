package services_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/binsarkiel/chatto/app/tests"
	"github.com/binsarkiel/chatto/internal/handlers"
	"github.com/binsarkiel/chatto/internal/models"
	"github.com/binsarkiel/chatto/internal/services"
)

func TestLogin_TableDrive(t *testing.T) {
	gin.SetMode(gin.TestMode)

	storedUser := &models.User{
		ID:       "u1",
		Username: "validuser",
		Email:    "valid@gmail.com",
		Password: "stored_hash",
	}

	var ts = []struct {
		name         string
		requestBody  map[string]interface{}
		setupMocks   func(*tests.MockUserRepository, *tests.MockHasher)
		expectedCode int
		expectedBody string
	}{
		{
			name: "Successful login",
			requestBody: map[string]interface{}{
				"email":    "valid@gmail.com",
				"password": "validpassword",
			},
			setupMocks: func(mr *tests.MockUserRepository, mh *tests.MockHasher) {
				mr.On("GetUserByEmail", mock.Anything, "valid@gmail.com").Return(storedUser, nil)
				mh.On("CompareHashAndPassword", []byte("stored_hash"), []byte("validpassword")).Return(nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: "Logged in successfully",
		},
		{
			name: "empty email",
			requestBody: map[string]interface{}{
				"email":    "",
				"password": "validpassword",
			},
			setupMocks:   func(mr *tests.MockUserRepository, mh *tests.MockHasher) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: "invalid input",
		},
		{
			name: "empty password",
			requestBody: map[string]interface{}{
				"email":    "valid@gmail.com",
				"password": "",
			},
			setupMocks:   func(mr *tests.MockUserRepository, mh *tests.MockHasher) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: "invalid input",
		},
		{
			name: "unknown email",
			requestBody: map[string]interface{}{
				"email":    "nobody@gmail.com",
				"password": "validpassword",
			},
			setupMocks: func(mr *tests.MockUserRepository, mh *tests.MockHasher) {
				mr.On("GetUserByEmail", mock.Anything, "nobody@gmail.com").Return((*models.User)(nil), nil)
			},
			expectedCode: http.StatusUnauthorized,
			expectedBody: "invalid credentials",
		},
		{
			name: "wrong password",
			requestBody: map[string]interface{}{
				"email":    "valid@gmail.com",
				"password": "wrongpassword",
			},
			setupMocks: func(mr *tests.MockUserRepository, mh *tests.MockHasher) {
				mr.On("GetUserByEmail", mock.Anything, "valid@gmail.com").Return(storedUser, nil)
				mh.On("CompareHashAndPassword", []byte("stored_hash"), []byte("wrongpassword")).Return(errors.New("mismatch"))
			},
			expectedCode: http.StatusUnauthorized,
			expectedBody: "invalid credentials",
		},
		{
			name: "repository error",
			requestBody: map[string]interface{}{
				"email":    "valid@gmail.com",
				"password": "validpassword",
			},
			setupMocks: func(mr *tests.MockUserRepository, mh *tests.MockHasher) {
				mr.On("GetUserByEmail", mock.Anything, "valid@gmail.com").Return((*models.User)(nil), errors.New("db down"))
			},
			// A store failure is not a credential problem.
			expectedCode: http.StatusInternalServerError,
			expectedBody: "internal server error",
		},
	}

	for _, tt := range ts {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mockRepository := &tests.MockUserRepository{}
			mockHasher := &tests.MockHasher{}
			mockMailer := &tests.MockMailer{}
			mockTokens := &tests.MockTokenRepository{}
			logger := slog.Default()

			tt.setupMocks(mockRepository, mockHasher)

			authService := services.NewAuthService(
				mockRepository, mockMailer, mockHasher,
				mockTokens, []byte("test_key"), 24*time.Hour, logger)

			handler := handlers.NewAuthHandler(authService, logger)

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = tests.CreateTestRequest("/api/auth/login", http.MethodPost, tt.requestBody)

			handler.Login(c)

			assert.Equal(t, tt.expectedCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)

			mockRepository.AssertExpectations(t)
			mockHasher.AssertExpectations(t)
		})
	}
}

func TestValidateToken_RoundTrip(t *testing.T) {
	logger := slog.Default()
	user := &models.User{ID: "u1", Username: "validuser", Email: "valid@gmail.com", Password: "stored_hash"}

	mockRepository := &tests.MockUserRepository{}
	mockHasher := &tests.MockHasher{}
	mockMailer := &tests.MockMailer{}
	mockTokens := &tests.MockTokenRepository{}

	mockRepository.On("GetUserByEmail", mock.Anything, "valid@gmail.com").Return(user, nil)
	mockRepository.On("GetUserByID", mock.Anything, "u1").Return(user, nil)
	mockHasher.On("CompareHashAndPassword", []byte("stored_hash"), []byte("password")).Return(nil)
	mockTokens.On("IsRevoked", mock.Anything, mock.AnythingOfType("string")).Return(false, nil)

	authService := services.NewAuthService(
		mockRepository, mockMailer, mockHasher,
		mockTokens, []byte("test_key"), 24*time.Hour, logger)

	_, token, err := authService.Login(context.Background(), "valid@gmail.com", "password")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	resolved, err := authService.ValidateToken(context.Background(), token)
	assert.NoError(t, err)
	assert.Equal(t, "u1", resolved.ID)
}

func TestValidateToken_Revoked(t *testing.T) {
	logger := slog.Default()

	mockRepository := &tests.MockUserRepository{}
	mockTokens := &tests.MockTokenRepository{}
	mockTokens.On("IsRevoked", mock.Anything, mock.AnythingOfType("string")).Return(true, nil)

	authService := services.NewAuthService(
		mockRepository, &tests.MockMailer{}, &tests.MockHasher{},
		mockTokens, []byte("test_key"), 24*time.Hour, logger)

	_, err := authService.ValidateToken(context.Background(), "some.revoked.token")
	assert.ErrorIs(t, err, services.ErrUnauthenticated)
	mockRepository.AssertNotCalled(t, "GetUserByID", mock.Anything, mock.Anything)
}

func TestValidateToken_BadSignature(t *testing.T) {
	logger := slog.Default()

	mockTokens := &tests.MockTokenRepository{}
	mockTokens.On("IsRevoked", mock.Anything, mock.AnythingOfType("string")).Return(false, nil)

	mockRepository := &tests.MockUserRepository{}
	mockHasher := &tests.MockHasher{}
	user := &models.User{ID: "u1", Email: "valid@gmail.com", Password: "stored_hash"}
	mockRepository.On("GetUserByEmail", mock.Anything, "valid@gmail.com").Return(user, nil)
	mockHasher.On("CompareHashAndPassword", []byte("stored_hash"), []byte("password")).Return(nil)

	issuer := services.NewAuthService(
		mockRepository, &tests.MockMailer{}, mockHasher,
		mockTokens, []byte("other_key"), 24*time.Hour, logger)
	verifier := services.NewAuthService(
		&tests.MockUserRepository{}, &tests.MockMailer{}, &tests.MockHasher{},
		mockTokens, []byte("test_key"), 24*time.Hour, logger)

	_, token, err := issuer.Login(context.Background(), "valid@gmail.com", "password")
	assert.NoError(t, err)

	_, err = verifier.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, services.ErrUnauthenticated)
}
