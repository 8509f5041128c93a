package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lumina/internal/app"
	"lumina/internal/render"
	"lumina/internal/transport/http/middleware"
	"lumina/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
	markdown    *render.Markdown
	logger      *zap.Logger
}

type RenameConversationRequest struct {
	Title string `json:"title" binding:"max=256"`
}

type SelectConversationRequest struct {
	ConversationID string `json:"conversation_id" binding:"max=36"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

func NewChatHandler(chatService *app.ChatService, markdown *render.Markdown, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chatService: chatService, markdown: markdown, logger: logger}
}

func (h *ChatHandler) State(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	response.OK(c, sessionSnapshot(sess, h.markdown))
}

func (h *ChatHandler) CreateConversation(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	if _, err := h.chatService.NewConversation(c.Request.Context(), sess); err != nil {
		writeActionError(c, h.logger, err, sessionSnapshot(sess, h.markdown))
		return
	}
	response.OK(c, sessionSnapshot(sess, h.markdown))
}

func (h *ChatHandler) RenameConversation(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	var req RenameConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if err := h.chatService.RenameConversation(c.Request.Context(), sess, c.Param("id"), req.Title); err != nil {
		writeActionError(c, h.logger, err, sessionSnapshot(sess, h.markdown))
		return
	}
	response.OK(c, sessionSnapshot(sess, h.markdown))
}

func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	if err := h.chatService.DeleteConversation(c.Request.Context(), sess, c.Param("id")); err != nil {
		writeActionError(c, h.logger, err, sessionSnapshot(sess, h.markdown))
		return
	}
	response.OK(c, sessionSnapshot(sess, h.markdown))
}

func (h *ChatHandler) SelectConversation(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	var req SelectConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if err := h.chatService.SelectConversation(c.Request.Context(), sess, req.ConversationID); err != nil {
		writeActionError(c, h.logger, err, sessionSnapshot(sess, h.markdown))
		return
	}
	response.OK(c, sessionSnapshot(sess, h.markdown))
}

// SendMessage blocks until the exchange is done; intermediate states reach
// the page over the events socket.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if err := h.chatService.SendMessage(c.Request.Context(), sess, req.Content); err != nil {
		writeActionError(c, h.logger, err, sessionSnapshot(sess, h.markdown))
		return
	}
	response.OK(c, sessionSnapshot(sess, h.markdown))
}
