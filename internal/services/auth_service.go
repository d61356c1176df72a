package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/binsarkiel/chatto/internal/models"
	"github.com/binsarkiel/chatto/internal/ports"
)

type AuthService struct {
	userRepo  ports.IUserRepository
	hasher    IHasher
	tokenRepo ports.TokenRepository
	mailer    ports.IMailer
	jwtKey    []byte
	tokenTTL  time.Duration
	logger    *slog.Logger
}

func NewAuthService(userRepo ports.IUserRepository, mailer ports.IMailer, hasher IHasher, tokenRepo ports.TokenRepository, jwtKey []byte, tokenTTL time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		mailer:    mailer,
		hasher:    hasher,
		tokenRepo: tokenRepo,
		jwtKey:    jwtKey,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

func (s *AuthService) Register(ctx context.Context, username, email, password string) (*models.User, string, error) {
	if username == "" || email == "" || password == "" {
		s.logger.Warn("missing required fields in registration")
		return nil, "", ErrInvalidInput
	}

	s.logger.Debug("attempting user registration", "username", username, "email", email)

	hashedPassword, err := s.hasher.GenerateFromPassword([]byte(password), s.hasher.DefaultCost())
	if err != nil {
		s.logger.Error("password hashing failed", "error", err)
		return nil, "", errors.New("registration failed")
	}

	user, err := s.userRepo.CreateUser(ctx, username, email, string(hashedPassword))
	if err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			s.logger.Warn("username or email already exists", "username", username)
			return nil, "", ErrAlreadyExists
		}
		s.logger.Error("user creation failed", "error", err)
		return nil, "", errors.New("registration failed")
	}

	token, err := s.issueToken(user)
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		return nil, "", errors.New("registration failed")
	}

	if err := s.mailer.SendWelcomeEmail(user.Email, user.Username); err != nil {
		s.logger.Warn("failed to send welcome email", "error", err)
	}

	s.logger.Info("user registered successfully", "username", username)
	return user, token, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	if email == "" || password == "" {
		s.logger.Warn("empty email or password")
		return nil, "", ErrInvalidInput
	}

	s.logger.Debug("attempting login", "email", email)

	user, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		s.logger.Error("user lookup failed", "email", email, "error", err)
		return nil, "", err
	}
	if user == nil {
		s.logger.Warn("user not found", "email", email)
		return nil, "", ErrInvalidCredentials
	}

	if err := s.hasher.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		s.logger.Warn("invalid password", "email", email)
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		return nil, "", errors.New("authentication failed")
	}

	s.logger.Info("login successful", "username", user.Username)
	return user, token, nil
}

// The token carries the user id only; everything else is resolved from the
// store on each request.
func (s *AuthService) issueToken(user *models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID,
		"exp": time.Now().Add(s.tokenTTL).Unix(),
	})
	return token.SignedString(s.jwtKey)
}

// ValidateToken checks revocation, signature and expiry, then resolves the
// subject to a live user row.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.User, error) {
	if tokenString == "" {
		return nil, ErrUnauthenticated
	}

	hash := sha256.Sum256([]byte(tokenString))
	tokenHash := hex.EncodeToString(hash[:])

	isRevoked, err := s.tokenRepo.IsRevoked(ctx, tokenHash)
	if err != nil {
		s.logger.Error("token revocation check failed", "error", err)
		return nil, err
	}
	if isRevoked {
		return nil, ErrUnauthenticated
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtKey, nil
	})
	if err != nil || !token.Valid {
		s.logger.Warn("token parsing failed", "error", err)
		return nil, ErrUnauthenticated
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrUnauthenticated
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return nil, ErrUnauthenticated
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error("user lookup failed during token validation", "userID", userID, "error", err)
		return nil, err
	}
	if user == nil {
		s.logger.Warn("token refers to a deleted user", "userID", userID)
		return nil, ErrUnauthenticated
	}

	s.logger.Debug("token validated", "username", user.Username)
	return user, nil
}

// RevokeToken blacklists the token hash for the remainder of its lifetime.
func (s *AuthService) RevokeToken(ctx context.Context, tokenString string) error {
	hash := sha256.Sum256([]byte(tokenString))
	tokenHash := hex.EncodeToString(hash[:])
	return s.tokenRepo.Revoke(ctx, tokenHash, s.tokenTTL)
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID, username string) (*models.User, error) {
	if username == "" {
		return nil, ErrInvalidInput
	}

	err := s.userRepo.UpdateUsername(ctx, userID, username)
	if err != nil {
		switch {
		case errors.Is(err, ports.ErrDuplicate):
			return nil, ErrAlreadyExists
		case errors.Is(err, ports.ErrNotFound):
			return nil, ErrUserNotFound
		}
		s.logger.Error("profile update failed", "userID", userID, "error", err)
		return nil, err
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("profile updated", "userID", userID, "username", username)
	return user, nil
}

func (s *AuthService) ListUsers(ctx context.Context, callerID string) ([]models.User, error) {
	users, err := s.userRepo.ListUsers(ctx, callerID)
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		return nil, err
	}
	return users, nil
}
