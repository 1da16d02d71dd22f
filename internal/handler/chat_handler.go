package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"Murmur/internal/errs"
	"Murmur/internal/hub"
	"Murmur/internal/model"
	"Murmur/internal/service"
)

// CallerIDKey is the gin context key carrying the authenticated user id.
const CallerIDKey = "callerId"

type ChatHandler interface {
	ListUsers(c *gin.Context)
	GetProfile(c *gin.Context)
	UpdateProfile(c *gin.Context)
	ListConversations(c *gin.Context)
	OpenConversation(c *gin.Context)
	GetHistory(c *gin.Context)
}

type chatHandler struct {
	chat     service.ChatService
	presence *hub.Registry
}

func NewChatHandler(chat service.ChatService, presence *hub.Registry) ChatHandler {
	return &chatHandler{chat: chat, presence: presence}
}

// ListUsers returns the contact list with live presence annotated.
func (h *chatHandler) ListUsers(c *gin.Context) {
	callerID := c.GetString(CallerIDKey)

	users, err := h.chat.ListUsers(c.Request.Context(), callerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}

	type userWithPresence struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Avatar   string `json:"avatar,omitempty"`
		Online   bool   `json:"online"`
	}
	out := make([]userWithPresence, 0, len(users))
	for _, u := range users {
		out = append(out, userWithPresence{
			ID:       u.ID,
			Name:     u.Name,
			Username: u.Username,
			Email:    u.Email,
			Avatar:   u.Avatar,
			Online:   h.presence.IsOnline(u.ID),
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// GetProfile returns the caller's own account.
func (h *chatHandler) GetProfile(c *gin.Context) {
	callerID := c.GetString(CallerIDKey)

	user, err := h.chat.GetProfile(c.Request.Context(), callerID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type updateProfileRequest struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// UpdateProfile applies the fields the caller sent; empty fields are ignored.
func (h *chatHandler) UpdateProfile(c *gin.Context) {
	callerID := c.GetString(CallerIDKey)

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.chat.UpdateProfile(c.Request.Context(), callerID, req.Name, req.Avatar)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, errs.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "profile updated", "user": user})
}

// ListConversations returns the caller's conversations with the partner id
// annotated so clients need no second lookup.
func (h *chatHandler) ListConversations(c *gin.Context) {
	callerID := c.GetString(CallerIDKey)

	convs, err := h.chat.ListConversations(c.Request.Context(), callerID)
	if err != nil {
		if errors.Is(err, errs.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
		return
	}

	callerOID, _ := primitive.ObjectIDFromHex(callerID)
	type conversationView struct {
		model.Conversation
		PartnerID string `json:"partnerId,omitempty"`
	}
	out := make([]conversationView, 0, len(convs))
	for _, conv := range convs {
		view := conversationView{Conversation: conv}
		if partner, ok := conv.Other(callerOID); ok {
			view.PartnerID = partner.Hex()
		}
		out = append(out, view)
	}
	c.JSON(http.StatusOK, gin.H{"conversations": out})
}

type openConversationRequest struct {
	ParticipantID string `json:"participantId" binding:"required"`
}

func (h *chatHandler) OpenConversation(c *gin.Context) {
	callerID := c.GetString(CallerIDKey)

	var req openConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.chat.OpenConversation(c.Request.Context(), callerID, req.ParticipantID)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, errs.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "participant not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open conversation"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

func (h *chatHandler) GetHistory(c *gin.Context) {
	callerID := c.GetString(CallerIDKey)
	conversationID := c.Param("conversationId")

	page, err := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page number"})
		return
	}

	msgs, err := h.chat.History(c.Request.Context(), callerID, conversationID, page)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		case errors.Is(err, errs.ErrRouting):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this conversation"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
