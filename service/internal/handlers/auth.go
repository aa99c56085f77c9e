package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/badluck/service/internal/auth"
)

// Authenticator checks credentials.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (auth.Identity, error)
}

type AuthHandler struct {
	auth    Authenticator
	tokens  *auth.TokenIssuer
	limiter auth.Limiter
	secure  bool
	logger  logrus.FieldLogger
}

// NewAuthHandler builds the login routes. secure marks the token cookie
// HTTPS-only.
func NewAuthHandler(a Authenticator, tokens *auth.TokenIssuer, limiter auth.Limiter, secure bool, logger logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{auth: a, tokens: tokens, limiter: limiter, secure: secure, logger: logger}
}

func (h *AuthHandler) RegisterRoutes(router gin.IRouter) {
	router.POST("/login", h.handleLogin)
	router.POST("/logout", h.handleLogout)
	router.GET("/session", h.handleSession)
}

type loginRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,max=128"`
}

type loginResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

func (h *AuthHandler) handleLogin(c *gin.Context) {
	ctx := c.Request.Context()
	if h.limiter != nil {
		ok, err := h.limiter.Allow(ctx, c.ClientIP())
		if err != nil {
			// Limiter storage down: let the attempt through.
			h.logger.WithError(err).Warn("login limiter unavailable")
		} else if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many login attempts", Code: "rate_limited"})
			return
		}
	}

	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	id, err := h.auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		h.logger.WithField("username", req.Username).Info("login rejected")
		writeError(c, err)
		return
	}
	token, err := h.tokens.Issue(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, int(h.tokens.TTL().Seconds()), "/", "", h.secure, true)
	h.logger.WithFields(logrus.Fields{"user_id": id.UserID, "username": id.Username}).Info("login")
	c.JSON(http.StatusOK, loginResponse{ID: id.UserID, Username: id.Username, Token: token})
}

func (h *AuthHandler) handleLogout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, "", -1, "/", "", h.secure, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *AuthHandler) handleSession(c *gin.Context) {
	id := auth.FromContext(c)
	if id.Anonymous() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Not authenticated", Code: "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, id)
}
