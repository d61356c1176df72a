package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/binsarkiel/chatto/internal/services"
)

type ChatHandler struct {
	service *services.ChatService
	logger  *slog.Logger
}

func NewChatHandler(service *services.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{service: service, logger: logger}
}

// CreateDirectChat finds or creates the direct conversation with the named
// recipient. 201 when created, 200 when it already existed.
func (h *ChatHandler) CreateDirectChat(c *gin.Context) {
	var req struct {
		Recipient string `json:"recipient"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid input"})
		return
	}

	chat, created, err := h.service.FindOrCreateDirect(c.Request.Context(), c.GetString("userID"), req.Recipient)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	status := http.StatusOK
	message := "Chat already exists"
	if created {
		status = http.StatusCreated
		message = "Chat created successfully"
	}

	c.JSON(status, gin.H{"message": message, "chat": chat})
}

func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetString("userID")

	chats, err := h.service.ListConversations(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list chats", "userID", userID, "error", err)
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	messages, err := h.service.GetMessages(c.Request.Context(), c.Param("chatId"), c.GetString("userID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid input"})
		return
	}

	message, err := h.service.SendMessage(c.Request.Context(), c.Param("chatId"), c.GetString("userID"), req.Content)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Message sent successfully",
		"data":    message,
	})
}

func (h *ChatHandler) MarkRead(c *gin.Context) {
	err := h.service.MarkRead(c.Request.Context(), c.Param("chatId"), c.GetString("userID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Conversation marked as read"})
}
