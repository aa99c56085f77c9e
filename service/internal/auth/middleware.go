package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jason-s-yu/badluck/service/internal/apperr"
)

const (
	identityKey = "badluck.identity"
	// CookieName is the cookie that may carry the token instead of the header.
	CookieName = "token"
)

// Middleware attaches an Identity when a valid token is present. Requests
// without one continue as anonymous; an invalid token is treated the same.
func Middleware(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := FromRequest(tokens, c.Request); !id.Anonymous() {
			c.Set(identityKey, id)
		}
		c.Next()
	}
}

// FromRequest reads the token from the Authorization header or the cookie.
// It is for handlers served outside gin.
func FromRequest(tokens *TokenIssuer, r *http.Request) Identity {
	raw := bearerToken(r.Header.Get("Authorization"))
	if raw == "" {
		if ck, err := r.Cookie(CookieName); err == nil {
			raw = ck.Value
		}
	}
	if raw == "" {
		return Identity{}
	}
	id, err := tokens.Parse(raw)
	if err != nil {
		return Identity{}
	}
	return id
}

// FromContext returns the caller identity, anonymous when none was set.
func FromContext(c *gin.Context) Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(Identity); ok {
			return id
		}
	}
	return Identity{}
}

// RequireIdentity aborts anonymous requests with 401.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if FromContext(c).Anonymous() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": apperr.ErrUnauthorized.Error(),
				"code":  "unauthorized",
			})
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
