package pasetotoken

import "time"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the verified payload of an access or refresh token.
type Claims struct {
	Type      TokenType
	AccountID string
	SessionID string

	Issuer    string
	Audience  string
	TokenID   string
	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time
}

func (c *Claims) GetAccountID() string { return c.AccountID }

func (c *Claims) GetSessionID() string { return c.SessionID }

func (c *Claims) GetTokenType() string { return string(c.Type) }

func (c *Claims) IsExpired() bool { return time.Now().After(c.ExpiresAt) }
