package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/jason-s-yu/badluck/service/internal/apperr"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
}

// statusOf maps an error class to its HTTP status and code.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, apperr.ErrUnknownCard):
		return http.StatusBadRequest, "unknown_card"
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrDeckExhausted):
		return http.StatusNotFound, "deck_exhausted"
	case errors.Is(err, apperr.ErrNoActiveSession):
		return http.StatusConflict, "no_active_session"
	case errors.Is(err, apperr.ErrRoundActive):
		return http.StatusConflict, "round_active"
	case errors.Is(err, apperr.ErrRoundNotActive):
		return http.StatusConflict, "round_not_active"
	case errors.Is(err, apperr.ErrGameOver):
		return http.StatusConflict, "game_over"
	case errors.Is(err, apperr.ErrGameNotOver):
		return http.StatusConflict, "game_not_over"
	case errors.Is(err, apperr.ErrInsufficientCatalog):
		return http.StatusServiceUnavailable, "insufficient_catalog"
	case errors.Is(err, apperr.ErrPersistence):
		return http.StatusServiceUnavailable, "persistence_failure"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError renders err. Internal errors never leak their message.
func writeError(c *gin.Context, err error) {
	status, code := statusOf(err)
	body := ErrorResponse{Error: err.Error(), Code: code, Retryable: apperr.Retryable(err)}
	if status == http.StatusInternalServerError {
		body.Error = "internal server error"
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

func bindJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		writeError(c, bindError(err))
		return false
	}
	return true
}

// bindError names the first failing field when the body decoded but did not
// validate.
func bindError(err error) error {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		fe := fields[0]
		return apperr.Invalid(fe.Namespace(), "failed "+fe.Tag()+" check")
	}
	return apperr.Invalid("body", err.Error())
}
