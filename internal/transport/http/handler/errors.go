package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lumina/internal/app"
	"lumina/internal/backend"
	"lumina/internal/transport/http/response"
)

// writeActionError maps a failed action to a status and returns the
// unchanged snapshot with it.
func writeActionError(c *gin.Context, logger *zap.Logger, err error, snap Snapshot) {
	var (
		authErr     *backend.AuthError
		conflictErr *backend.ConflictError
		storeErr    *backend.StoreError
	)
	switch {
	case errors.Is(err, app.ErrBlankInput), errors.Is(err, app.ErrBlankTitle):
		response.ErrorWithData(c, http.StatusBadRequest, response.CodeBadRequest, err.Error(), snap)
	case errors.Is(err, app.ErrNotAuthenticated):
		response.ErrorWithData(c, http.StatusUnauthorized, response.CodeUnauthorized, err.Error(), snap)
	case errors.Is(err, app.ErrSendInFlight):
		response.ErrorWithData(c, http.StatusConflict, response.CodeSendInFlight, err.Error(), snap)
	case errors.As(err, &authErr):
		status, code := authStatus(authErr.Reason)
		response.ErrorWithData(c, status, code, authErr.Message, snap)
	case errors.As(err, &conflictErr):
		response.ErrorWithData(c, http.StatusConflict, response.CodeEmailExists, conflictErr.Message, snap)
	case errors.As(err, &storeErr):
		logger.Error("store call failed", zap.String("op", storeErr.Op), zap.Error(err))
		if errors.Is(err, backend.ErrNotFound) {
			response.ErrorWithData(c, http.StatusNotFound, response.CodeNotFound, "not found", snap)
			return
		}
		response.ErrorWithData(c, http.StatusBadGateway, response.CodeStoreFailed, "store request failed", snap)
	default:
		logger.Error("action failed", zap.Error(err))
		response.ErrorWithData(c, http.StatusInternalServerError, response.CodeInternalServer, "internal error", snap)
	}
}

func authStatus(reason backend.AuthReason) (int, int) {
	switch reason {
	case backend.ReasonInvalidInput:
		return http.StatusBadRequest, response.CodeInvalidInput
	case backend.ReasonInvalidCredentials:
		return http.StatusUnauthorized, response.CodeInvalidCredentials
	case backend.ReasonUnconfirmed:
		return http.StatusUnauthorized, response.CodeEmailNotConfirmed
	case backend.ReasonSessionExpired:
		return http.StatusUnauthorized, response.CodeSessionExpired
	default:
		return http.StatusUnauthorized, response.CodeUnauthorized
	}
}
