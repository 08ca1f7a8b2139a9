package pasetotoken

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

type Config struct {
	Mode     Mode
	Issuer   string
	Audience string

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	Implicit []byte
	Now      func() time.Time
}

type Manager struct {
	cfg  Config
	keys Keys
}

func New(cfg Config, keys Keys) (*Manager, error) {
	if cfg.Mode != keys.Mode {
		return nil, ErrConfig{Msg: "mode does not match keys"}
	}
	if cfg.Issuer == "" {
		return nil, ErrConfig{Msg: "issuer is required"}
	}
	if cfg.Audience == "" {
		return nil, ErrConfig{Msg: "audience is required"}
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{cfg: cfg, keys: keys}, nil
}

func (m *Manager) AccessTTL() time.Duration  { return m.cfg.AccessTTL }
func (m *Manager) RefreshTTL() time.Duration { return m.cfg.RefreshTTL }

func (m *Manager) IssueAccess(accountID, sessionID string) (string, error) {
	return m.issue(TokenTypeAccess, accountID, sessionID, m.cfg.AccessTTL)
}

func (m *Manager) IssueRefresh(accountID, sessionID string) (string, error) {
	return m.issue(TokenTypeRefresh, accountID, sessionID, m.cfg.RefreshTTL)
}

// Verify checks signature, issuer, audience and validity window at the
// current time.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	p := paseto.NewParser()
	p.AddRule(paseto.IssuedBy(m.cfg.Issuer))
	p.AddRule(paseto.ForAudience(m.cfg.Audience))
	p.AddRule(paseto.ValidAt(m.cfg.Now()))

	var (
		tok *paseto.Token
		err error
	)
	switch m.cfg.Mode {
	case ModeLocal:
		if m.keys.Symmetric == nil {
			return nil, ErrConfig{Msg: "missing symmetric key"}
		}
		tok, err = p.ParseV4Local(*m.keys.Symmetric, tokenStr, m.cfg.Implicit)
	case ModePublic:
		if m.keys.Public == nil {
			return nil, ErrConfig{Msg: "missing public key"}
		}
		tok, err = p.ParseV4Public(*m.keys.Public, tokenStr, m.cfg.Implicit)
	default:
		return nil, ErrConfig{Msg: "unknown mode"}
	}
	if err != nil {
		return nil, ErrInvalidToken{Err: err}
	}

	claims, err := extractClaims(tok, m.cfg.Issuer, m.cfg.Audience)
	if err != nil {
		return nil, ErrInvalidToken{Err: err}
	}
	return claims, nil
}

// VerifyType is Verify plus a check of the token type.
func (m *Manager) VerifyType(tokenStr string, want TokenType) (*Claims, error) {
	c, err := m.Verify(tokenStr)
	if err != nil {
		return nil, err
	}
	if c.Type != want {
		return nil, ErrInvalidToken{Err: ErrWrongTokenType}
	}
	return c, nil
}

func (m *Manager) issue(tt TokenType, accountID, sessionID string, ttl time.Duration) (string, error) {
	now := m.cfg.Now()

	tok := paseto.NewToken()
	tok.SetIssuer(m.cfg.Issuer)
	tok.SetAudience(m.cfg.Audience)
	tok.SetJti(randHex(16))
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(now.Add(ttl))
	tok.SetSubject(accountID)

	tok.SetString("typ", string(tt))
	tok.SetString("uid", accountID)
	if sessionID != "" {
		tok.SetString("sid", sessionID)
	}

	switch m.cfg.Mode {
	case ModeLocal:
		if m.keys.Symmetric == nil {
			return "", ErrConfig{Msg: "missing symmetric key"}
		}
		return tok.V4Encrypt(*m.keys.Symmetric, m.cfg.Implicit), nil
	case ModePublic:
		if m.keys.Secret == nil {
			return "", ErrConfig{Msg: "missing secret key"}
		}
		return tok.V4Sign(*m.keys.Secret, m.cfg.Implicit), nil
	}
	return "", ErrConfig{Msg: "unknown mode"}
}

func randHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func extractClaims(tok *paseto.Token, iss, aud string) (*Claims, error) {
	out := &Claims{Issuer: iss, Audience: aud}

	var err error
	if out.TokenID, err = tok.GetJti(); err != nil {
		return nil, err
	}
	if out.IssuedAt, err = tok.GetIssuedAt(); err != nil {
		return nil, err
	}
	if out.NotBefore, err = tok.GetNotBefore(); err != nil {
		return nil, err
	}
	if out.ExpiresAt, err = tok.GetExpiration(); err != nil {
		return nil, err
	}

	typ, err := tok.GetString("typ")
	if err != nil {
		return nil, err
	}
	out.Type = TokenType(typ)

	if out.AccountID, err = tok.GetString("uid"); err != nil {
		return nil, err
	}
	// sid is optional
	if sid, err := tok.GetString("sid"); err == nil {
		out.SessionID = sid
	}
	return out, nil
}
