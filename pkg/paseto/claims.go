package pasetotoken

import (
	"time"

	"github.com/google/uuid"
)

type TokenType string

const (
	// TokenTypeAccess is a marketplace user acting on their own wallet.
	TokenTypeAccess TokenType = "access"
	// TokenTypeService is a marketplace backend (settlement agent) driving
	// units and milestones.
	TokenTypeService TokenType = "service"
)

// Claims is the app-facing token payload.
type Claims struct {
	Type TokenType

	UserID    uuid.UUID
	SessionID *uuid.UUID

	Issuer   string
	Audience string

	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time
	TokenID   string // jti
}

// GetUserID implements reqctx.AuthClaims.
func (c *Claims) GetUserID() uuid.UUID {
	return c.UserID
}

func (c *Claims) GetSessionID() *uuid.UUID {
	return c.SessionID
}

func (c *Claims) GetTokenType() string {
	return string(c.Type)
}

func (c *Claims) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}
