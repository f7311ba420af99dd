package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coachhub/coachhub-api/internal/core"
	"github.com/coachhub/coachhub-api/internal/middleware"
	"github.com/coachhub/coachhub-api/internal/models"
)

// ChatHandler serves /api/chat.
type ChatHandler struct {
	responder
	chats core.ChatService
}

func NewChatHandler(chats core.ChatService, r responder) *ChatHandler {
	return &ChatHandler{responder: r, chats: chats}
}

// actor returns the caller or writes a 401 and returns false.
func (h *ChatHandler) actor(c *gin.Context) (core.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		h.fail(c, core.ErrUnauthenticated)
	}
	return actor, ok
}

// Send handles POST /api/chat/send.
func (h *ChatHandler) Send(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	msg, err := h.chats.SendMessage(c.Request.Context(), actor, req.RecipientID, req.Content, req.Type)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, "Message sent", toMessageDTO(msg))
}

// CreateOrGet handles POST /api/chat/create-or-get.
func (h *ChatHandler) CreateOrGet(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req models.CreateOrGetChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	chat, err := h.chats.CreateOrGet(c.Request.Context(), actor, req.OtherUserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Chat ready", toChatDTO(chat))
}

// Messages handles GET /api/chat/messages/:chatId.
func (h *ChatHandler) Messages(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	msgs, err := h.chats.GetMessages(c.Request.Context(), actor, c.Param("chatId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Messages retrieved", toMessageDTOs(msgs))
}

// React handles POST /api/chat/reaction.
func (h *ChatHandler) React(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req models.ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	reactions, err := h.chats.ToggleReaction(c.Request.Context(), actor, req.ChatID, req.MessageID, req.Emoji)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Reaction updated", gin.H{"messageId": req.MessageID, "reactions": reactions})
}

// Conversations handles GET /api/chat/conversations.
func (h *ChatHandler) Conversations(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	summaries, err := h.chats.ListChats(c.Request.Context(), actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]ConversationDTO, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, ConversationDTO{Chat: toChatDTO(s.Chat), Other: toProfileDTO(s.Other), Unread: s.Unread})
	}
	h.ok(c, http.StatusOK, "Conversations retrieved", out)
}

// MarkRead handles POST /api/chat/read/:chatId.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	n, err := h.chats.MarkAsRead(c.Request.Context(), actor, c.Param("chatId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Messages marked as read", gin.H{"marked": n})
}

// UnreadCount handles GET /api/chat/unread-count.
func (h *ChatHandler) UnreadCount(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	n, err := h.chats.UnreadTotal(c.Request.Context(), actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "Unread count retrieved", gin.H{"unread": n})
}

// Contacts handles GET /api/chat/contacts.
func (h *ChatHandler) Contacts(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	profiles, err := h.chats.Contacts(c.Request.Context(), actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]*ProfileDTO, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, toProfileDTO(p))
	}
	h.ok(c, http.StatusOK, "Contacts retrieved", out)
}
