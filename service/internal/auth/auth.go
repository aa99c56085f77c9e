// Package auth resolves who is calling. Game code only ever sees an Identity;
// how it was established stays here.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/jason-s-yu/badluck/service/internal/apperr"
	"github.com/jason-s-yu/badluck/service/internal/models"
)

// Identity is the authenticated caller. The zero value is anonymous.
type Identity struct {
	UserID   int64  `json:"id"`
	Username string `json:"username"`
}

// Anonymous reports whether no user is behind the identity.
func (i Identity) Anonymous() bool { return i.UserID == 0 }

// TokenIssuer signs and verifies HS256 bearer tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL is how long issued tokens stay valid.
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Issue returns a signed token for id.
func (t *TokenIssuer) Issue(id Identity) (string, error) {
	now := t.now()
	c := claims{
		Username: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies raw and returns the identity it carries.
func (t *TokenIssuer) Parse(raw string) (Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(tok *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}
	uid, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || uid <= 0 {
		return Identity{}, fmt.Errorf("%w: bad subject", apperr.ErrUnauthorized)
	}
	return Identity{UserID: uid, Username: c.Username}, nil
}

// UserStore is the user lookup the Authenticator needs.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (models.User, error)
}

// Authenticator checks username and password against stored bcrypt hashes.
type Authenticator struct {
	users UserStore
}

func NewAuthenticator(users UserStore) *Authenticator {
	return &Authenticator{users: users}
}

// Login returns ErrUnauthorized for an unknown user or a wrong password,
// without saying which.
func (a *Authenticator) Login(ctx context.Context, username, password string) (Identity, error) {
	u, err := a.users.GetByUsername(ctx, username)
	if errors.Is(err, apperr.ErrNotFound) {
		return Identity{}, apperr.ErrUnauthorized
	}
	if err != nil {
		return Identity{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Identity{}, apperr.ErrUnauthorized
	}
	return Identity{UserID: u.ID, Username: u.Username}, nil
}

// HashPassword hashes with bcrypt's default cost.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}
