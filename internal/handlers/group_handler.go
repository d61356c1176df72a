package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/binsarkiel/chatto/internal/services"
)

type GroupHandler struct {
	service *services.ChatService
	logger  *slog.Logger
}

func NewGroupHandler(service *services.ChatService, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{service: service, logger: logger}
}

func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid input"})
		return
	}

	group, err := h.service.CreateGroup(c.Request.Context(), c.GetString("userID"), req.Name, req.Description)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Group created successfully",
		"group":   group,
	})
}

func (h *GroupHandler) ListMembers(c *gin.Context) {
	members, err := h.service.ListGroupMembers(c.Request.Context(), c.Param("groupId"), c.GetString("userID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (h *GroupHandler) AddMember(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid input"})
		return
	}

	group, err := h.service.AddMember(c.Request.Context(), c.Param("groupId"), c.GetString("userID"), req.Username)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Member added successfully",
		"group":   group,
	})
}

func (h *GroupHandler) RemoveMember(c *gin.Context) {
	group, err := h.service.RemoveMember(c.Request.Context(), c.Param("groupId"), c.GetString("userID"), c.Param("userId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Member removed successfully",
		"group":   group,
	})
}

func (h *GroupHandler) TransferAdmin(c *gin.Context) {
	group, err := h.service.TransferAdmin(c.Request.Context(), c.Param("groupId"), c.GetString("userID"), c.Param("userId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Admin role transferred",
		"group":   group,
	})
}
