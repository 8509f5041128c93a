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

type AuthHandler struct {
	authService *app.AuthService
	markdown    *render.Markdown
	logger      *zap.Logger
	secure      bool
}

type SignUpRequest struct {
	Email    string `json:"email" binding:"required,max=128"`
	Password string `json:"password" binding:"required,max=128"`
	Username string `json:"username" binding:"max=64"`
}

type SignInRequest struct {
	Email    string `json:"email" binding:"required,max=128"`
	Password string `json:"password" binding:"required,max=128"`
}

func NewAuthHandler(authService *app.AuthService, markdown *render.Markdown, logger *zap.Logger, secure bool) *AuthHandler {
	return &AuthHandler{authService: authService, markdown: markdown, logger: logger, secure: secure}
}

func (h *AuthHandler) SignUp(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.authService.SignUp(c.Request.Context(), sess, app.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
	})
	if err != nil {
		writeActionError(c, h.logger, err, sessionSnapshot(sess, h.markdown))
		return
	}
	if result.Session != nil {
		middleware.StoreToken(c, result.Session.AccessToken, result.Session.ExpiresAt, h.secure)
	}

	response.OK(c, gin.H{
		"confirmation_required": result.ConfirmationRequired,
		"snapshot":              sessionSnapshot(sess, h.markdown),
	})
}

func (h *AuthHandler) SignIn(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	session, err := h.authService.SignIn(c.Request.Context(), sess, app.SignInInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeActionError(c, h.logger, err, sessionSnapshot(sess, h.markdown))
		return
	}
	middleware.StoreToken(c, session.AccessToken, session.ExpiresAt, h.secure)
	response.OK(c, gin.H{"snapshot": sessionSnapshot(sess, h.markdown)})
}

func (h *AuthHandler) SignOut(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	if err := h.authService.SignOut(c.Request.Context(), sess); err != nil {
		writeActionError(c, h.logger, err, sessionSnapshot(sess, h.markdown))
		return
	}
	middleware.ClearToken(c, h.secure)
	response.OK(c, gin.H{"snapshot": sessionSnapshot(sess, h.markdown)})
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	session, err := h.authService.Refresh(c.Request.Context(), sess)
	if err != nil {
		middleware.ClearToken(c, h.secure)
		writeActionError(c, h.logger, err, sessionSnapshot(sess, h.markdown))
		return
	}
	middleware.StoreToken(c, session.AccessToken, session.ExpiresAt, h.secure)
	response.OK(c, gin.H{"expires_at": session.ExpiresAt})
}

// Confirm is the target of the emailed confirmation link.
func (h *AuthHandler) Confirm(c *gin.Context) {
	if err := h.authService.ConfirmEmail(c.Request.Context(), c.Query("token")); err != nil {
		h.logger.Info("email confirmation rejected", zap.Error(err))
		c.Redirect(http.StatusSeeOther, "/?confirm=failed")
		return
	}
	c.Redirect(http.StatusSeeOther, "/?confirm=ok")
}
