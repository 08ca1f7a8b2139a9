// Package auth is the identity gate: it turns a short username and a secret
// into a session, resolves the account profile behind it and tears sessions
// down everywhere they are held.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/consultorio_backend/internal/schema"
	"github.com/Alijeyrad/consultorio_backend/internal/syncstore"
	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
	pasetotoken "github.com/Alijeyrad/consultorio_backend/pkg/paseto"
	"github.com/Alijeyrad/consultorio_backend/pkg/util/password"
)

const (
	maxLoginAttempts = 5
	lockDuration     = 15 * time.Minute
)

func redisKeySession(sessionID string) string { return "session:" + sessionID }

func redisKeyLoginAttempts(login string) string { return "login:attempts:" + login }

// revokedChannel carries "<node>|<account>|<session>" for every logout.
const revokedChannel = "session:revoked"

var reUsername = regexp.MustCompile(`^[a-z0-9._-]{3,64}$`)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Identity is a live session and the profile resolved for it.
type Identity struct {
	Account   schema.Account
	SessionID string
}

type ProvisionRequest struct {
	Username string
	Password string
	Role     schema.Role
	Clinics  map[string]schema.ClinicConfig
}

// TeardownFunc runs when a session ends, on every node.
type TeardownFunc func(accountID, sessionID string)

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	CanonicalLogin(username string) string
	Login(ctx context.Context, username, secret string) (*Tokens, *Identity, error)
	Authenticate(ctx context.Context, accessToken string) (*Identity, error)
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)
	// Logout is idempotent: an unknown or expired session is not an error.
	Logout(ctx context.Context, accountID, sessionID string) error
	ChangePassword(ctx context.Context, accountID, current, next string) error
	Provision(ctx context.Context, req ProvisionRequest) (*schema.Account, error)
	OnTeardown(fn TeardownFunc)
	// WatchRevocations runs teardown hooks for logouts made on other nodes
	// until ctx is done.
	WatchRevocations(ctx context.Context) error
}

type Options struct {
	LoginSuffix string
	// NodeID tags revocation messages so a node skips its own.
	NodeID string
	Logger *slog.Logger
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type authService struct {
	backend docstore.Backend
	store   *syncstore.Store
	rdb     *redis.Client
	paseto  *pasetotoken.Manager
	hasher  *password.Hasher
	suffix  string
	node    string
	log     *slog.Logger

	mu    sync.RWMutex
	hooks []TeardownFunc
}

func New(
	backend docstore.Backend,
	store *syncstore.Store,
	rdb *redis.Client,
	paseto *pasetotoken.Manager,
	hasher *password.Hasher,
	opts Options,
) Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NodeID == "" {
		opts.NodeID = "local"
	}
	return &authService{
		backend: backend,
		store:   store,
		rdb:     rdb,
		paseto:  paseto,
		hasher:  hasher,
		suffix:  opts.LoginSuffix,
		node:    opts.NodeID,
		log:     opts.Logger.With("component", "auth"),
	}
}

// CanonicalLogin lowercases and trims the username and appends the
// internal domain suffix.
func (s *authService) CanonicalLogin(username string) string {
	return strings.ToLower(strings.TrimSpace(username)) + s.suffix
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func (s *authService) Login(ctx context.Context, username, secret string) (*Tokens, *Identity, error) {
	login := s.CanonicalLogin(username)
	if strings.TrimSpace(username) == "" || secret == "" {
		return nil, nil, ErrInvalidCredentials
	}

	attempts, err := s.rdb.Get(ctx, redisKeyLoginAttempts(login)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, nil, fmt.Errorf("redis get attempts: %w", err)
	}
	if attempts >= maxLoginAttempts {
		return nil, nil, ErrAccountLocked
	}

	cred, err := s.credential(ctx, login)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.recordFailedLogin(ctx, login)
		}
		return nil, nil, err
	}
	if err := s.hasher.Verify(cred.PasswordHash, secret); err != nil {
		s.recordFailedLogin(ctx, login)
		return nil, nil, ErrInvalidCredentials
	}
	s.rdb.Del(ctx, redisKeyLoginAttempts(login))

	account, err := s.resolveProfile(ctx, cred.UID)
	if err != nil {
		return nil, nil, err
	}

	sessionID := uuid.Must(uuid.NewV7()).String()
	if err := s.rdb.Set(ctx, redisKeySession(sessionID), account.UID, s.paseto.RefreshTTL()).Err(); err != nil {
		return nil, nil, fmt.Errorf("store session: %w", err)
	}

	tokens, err := s.issue(account.UID, sessionID)
	if err != nil {
		return nil, nil, err
	}

	if s.hasher.NeedsRehash(cred.PasswordHash) {
		s.rehash(ctx, login, cred, secret)
	}

	s.log.Info("login", "account_id", account.UID, "session_id", sessionID)
	return tokens, &Identity{Account: *account, SessionID: sessionID}, nil
}

// ---------------------------------------------------------------------------
// Authenticate / Refresh
// ---------------------------------------------------------------------------

func (s *authService) Authenticate(ctx context.Context, accessToken string) (*Identity, error) {
	claims, err := s.paseto.VerifyType(accessToken, pasetotoken.TokenTypeAccess)
	if err != nil || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	if err := s.checkSession(ctx, claims); err != nil {
		return nil, err
	}
	account, err := s.resolveProfile(ctx, claims.AccountID)
	if err != nil {
		return nil, err
	}
	return &Identity{Account: *account, SessionID: claims.SessionID}, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	claims, err := s.paseto.VerifyType(refreshToken, pasetotoken.TokenTypeRefresh)
	if err != nil || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	if err := s.checkSession(ctx, claims); err != nil {
		return nil, err
	}
	s.rdb.Expire(ctx, redisKeySession(claims.SessionID), s.paseto.RefreshTTL())

	access, err := s.paseto.IssueAccess(claims.AccountID, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	return &Tokens{
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.paseto.AccessTTL().Seconds()),
	}, nil
}

// ---------------------------------------------------------------------------
// Logout
// ---------------------------------------------------------------------------

func (s *authService) Logout(ctx context.Context, accountID, sessionID string) error {
	deleted, err := s.rdb.Del(ctx, redisKeySession(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if deleted == 0 {
		s.log.Debug("logout: session already gone", "session_id", sessionID)
	}

	s.runHooks(accountID, sessionID)

	msg := s.node + "|" + accountID + "|" + sessionID
	if err := s.rdb.Publish(ctx, revokedChannel, msg).Err(); err != nil {
		s.log.Warn("publish session revocation", "session_id", sessionID, "err", err)
	}
	return nil
}

func (s *authService) OnTeardown(fn TeardownFunc) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

func (s *authService) runHooks(accountID, sessionID string) {
	s.mu.RLock()
	hooks := append([]TeardownFunc(nil), s.hooks...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(accountID, sessionID)
	}
}

func (s *authService) WatchRevocations(ctx context.Context) error {
	sub := s.rdb.Subscribe(ctx, revokedChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", revokedChannel, err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			parts := strings.SplitN(msg.Payload, "|", 3)
			if len(parts) != 3 || parts[0] == s.node {
				continue
			}
			s.runHooks(parts[1], parts[2])
		}
	}
}

// ---------------------------------------------------------------------------
// ChangePassword / Provision
// ---------------------------------------------------------------------------

// ChangePassword re-authenticates with the current secret before replacing it.
func (s *authService) ChangePassword(ctx context.Context, accountID, current, next string) error {
	account, err := s.resolveProfile(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.hasher.CheckPolicy(next); err != nil {
		return fmt.Errorf("%w: minimum %d characters", ErrPasswordTooShort, s.hasher.MinLength())
	}

	login := s.CanonicalLogin(account.Username)
	cred, err := s.credential(ctx, login)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return ErrOrphanedCredential
		}
		return err
	}
	if cred.UID != accountID {
		return ErrInvalidCredentials
	}
	if err := s.hasher.Verify(cred.PasswordHash, current); err != nil {
		return ErrWrongPassword
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.backend.Commit(ctx, docstore.Mutation{
		Op:     docstore.OpMerge,
		Parent: docstore.CredentialsCollection,
		ID:     login,
		Fields: map[string]any{"passwordHash": hash},
	})
	if err != nil {
		return s.remoteErr("update credential", err)
	}
	s.log.Info("password changed", "account_id", accountID)
	return nil
}

// Provision creates a credential and its profile. Accounts are only created
// out of band, never through the API.
func (s *authService) Provision(ctx context.Context, req ProvisionRequest) (*schema.Account, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if !reUsername.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	if !req.Role.Valid() {
		return nil, ErrInvalidRole
	}
	if len(req.Clinics) == 0 {
		return nil, schema.ErrNoClinics
	}
	if err := s.hasher.CheckPolicy(req.Password); err != nil {
		return nil, fmt.Errorf("%w: minimum %d characters", ErrPasswordTooShort, s.hasher.MinLength())
	}

	login := s.CanonicalLogin(username)
	if _, err := s.backend.Get(ctx, docstore.CredentialsCollection, login); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return nil, s.remoteErr("check credential", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := schema.Account{
		UID:      uuid.Must(uuid.NewV7()).String(),
		Username: username,
		Email:    login,
		Role:     req.Role,
		Clinics:  req.Clinics,
	}
	profile, err := account.Fields()
	if err != nil {
		return nil, err
	}
	credFields, err := schema.Credential{UID: account.UID, PasswordHash: hash}.Fields()
	if err != nil {
		return nil, err
	}

	// profile first: a credential without a profile is an orphan
	if _, err := s.backend.Commit(ctx, docstore.Mutation{
		Op: docstore.OpSet, Parent: schema.ProfileParent, ID: account.UID, Fields: profile,
	}); err != nil {
		return nil, s.remoteErr("create profile", err)
	}
	if _, err := s.backend.Commit(ctx, docstore.Mutation{
		Op: docstore.OpSet, Parent: docstore.CredentialsCollection, ID: login, Fields: credFields,
	}); err != nil {
		return nil, s.remoteErr("create credential", err)
	}

	s.log.Info("account provisioned", "account_id", account.UID, "username", username, "role", account.Role)
	return &account, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// credential never distinguishes an unknown login from a wrong secret.
func (s *authService) credential(ctx context.Context, login string) (schema.Credential, error) {
	d, err := s.backend.Get(ctx, docstore.CredentialsCollection, login)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return schema.Credential{}, ErrInvalidCredentials
		}
		return schema.Credential{}, s.remoteErr("read credential", err)
	}
	cred, err := schema.CredentialFromDoc(d)
	if err != nil || cred.UID == "" || cred.PasswordHash == "" {
		s.log.Error("malformed credential", "login", login, "err", err)
		return schema.Credential{}, ErrInvalidCredentials
	}
	return cred, nil
}

// resolveProfile fails closed: a missing profile denies access even when the
// credential was valid.
func (s *authService) resolveProfile(ctx context.Context, uid string) (*schema.Account, error) {
	scope := syncstore.Scope{AccountID: uid}
	d, _, err := s.store.Get(ctx, scope, schema.ProfileParent, uid)
	switch {
	case errors.Is(err, syncstore.ErrNotFound):
		s.log.Error("orphaned credential: no profile for account", "account_id", uid)
		return nil, ErrOrphanedCredential
	case errors.Is(err, syncstore.ErrUnavailable):
		return nil, ErrUnavailable
	case err != nil:
		return nil, fmt.Errorf("resolve profile: %w", err)
	}

	account, err := schema.AccountFromDoc(d)
	if err != nil {
		s.log.Error("malformed profile", "account_id", uid, "err", err)
		return nil, ErrOrphanedCredential
	}
	if !account.Role.Valid() {
		account.Role = schema.RoleDoctor
	}
	return &account, nil
}

func (s *authService) checkSession(ctx context.Context, claims *pasetotoken.Claims) error {
	owner, err := s.rdb.Get(ctx, redisKeySession(claims.SessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get session: %w", err)
	}
	if owner != claims.AccountID {
		return ErrInvalidToken
	}
	return nil
}

func (s *authService) issue(accountID, sessionID string) (*Tokens, error) {
	access, err := s.paseto.IssueAccess(accountID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.paseto.IssueRefresh(accountID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.paseto.AccessTTL().Seconds()),
	}, nil
}

func (s *authService) recordFailedLogin(ctx context.Context, login string) {
	key := redisKeyLoginAttempts(login)
	pipe := s.rdb.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, lockDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn("record failed login", "err", err)
	}
}

// rehash upgrades a hash made with old parameters. Failure is only logged.
func (s *authService) rehash(ctx context.Context, login string, cred schema.Credential, secret string) {
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return
	}
	_, err = s.backend.Commit(ctx, docstore.Mutation{
		Op:     docstore.OpMerge,
		Parent: docstore.CredentialsCollection,
		ID:     login,
		Fields: map[string]any{"passwordHash": hash},
	})
	if err != nil {
		s.log.Warn("rehash credential", "account_id", cred.UID, "err", err)
	}
}

func (s *authService) remoteErr(op string, err error) error {
	if docstore.IsTransient(err) {
		return fmt.Errorf("%s: %w", op, ErrUnavailable)
	}
	return fmt.Errorf("%s: %w", op, err)
}
