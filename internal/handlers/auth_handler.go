package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/binsarkiel/chatto/internal/models"
	"github.com/binsarkiel/chatto/internal/services"
)

type AuthHandler struct {
	service *services.AuthService
	logger  *slog.Logger
}

func NewAuthHandler(service *services.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: service, logger: logger}
}

func (a *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		a.logger.Warn("invalid input format", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid input format"})
		return
	}

	user, token, err := a.service.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		a.logger.Warn("register failed", "username", req.Username, "error", err)
		respondError(c, a.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"token":   token,
		"user":    user.Public(),
	})
}

func (a *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		a.logger.Warn("invalid input format", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid input format"})
		return
	}

	user, token, err := a.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		a.logger.Warn("login failed", "email", req.Email, "error", err)
		respondError(c, a.logger, err)
		return
	}

	a.logger.Info("login successful", "username", user.Username)
	c.JSON(http.StatusOK, gin.H{
		"message": "Logged in successfully",
		"token":   token,
		"user":    user.Public(),
	})
}

func (a *AuthHandler) Logout(c *gin.Context) {
	token := c.GetString("token")
	if err := a.service.RevokeToken(c.Request.Context(), token); err != nil {
		respondError(c, a.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (a *AuthHandler) UpdateProfile(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid input format"})
		return
	}

	user, err := a.service.UpdateProfile(c.Request.Context(), c.GetString("userID"), req.Username)
	if err != nil {
		respondError(c, a.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user":    user.Public(),
	})
}

func (a *AuthHandler) ListUsers(c *gin.Context) {
	users, err := a.service.ListUsers(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		respondError(c, a.logger, err)
		return
	}

	public := make([]models.PublicUser, 0, len(users))
	for i := range users {
		public = append(public, users[i].Public())
	}

	c.JSON(http.StatusOK, gin.H{"users": public})
}

// AuthMiddleware validates the bearer token and resolves it to a live user.
func (a *AuthHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.GetHeader("Authorization")
		if tokenStr == "" {
			a.logger.Warn("missing authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing token"})
			return
		}

		tokenStr = strings.TrimPrefix(tokenStr, "Bearer ")

		user, err := a.service.ValidateToken(c.Request.Context(), tokenStr)
		if err != nil {
			a.logger.Warn("token validation failed", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
			return
		}

		c.Set("user", user)
		c.Set("userID", user.ID)
		c.Set("token", tokenStr)

		a.logger.Debug("request authorized", "username", user.Username)
		c.Next()
	}
}
