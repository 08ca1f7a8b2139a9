package auth

import (
	"context"
	"errors"
	"sync"
)

type State int

const (
	StateResolving State = iota
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Gate holds the identity of one client. It starts out resolving, and
// dependents block in Wait until the first check completes.
type Gate struct {
	svc Service

	mu       sync.Mutex
	state    State
	identity *Identity
	tokens   *Tokens
	resolved chan struct{}
	hooks    []func()
}

func NewGate(svc Service) *Gate {
	return &Gate{svc: svc, state: StateResolving, resolved: make(chan struct{})}
}

// Resolve checks a stored access token. An empty token resolves to anonymous.
func (g *Gate) Resolve(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		g.settle(nil, nil)
		return nil
	}
	id, err := g.svc.Authenticate(ctx, accessToken)
	if err != nil {
		g.settle(nil, nil)
		return err
	}
	g.settle(id, &Tokens{AccessToken: accessToken})
	return nil
}

// SignIn logs in and authenticates the gate.
func (g *Gate) SignIn(ctx context.Context, username, secret string) (*Identity, error) {
	tokens, id, err := g.svc.Login(ctx, username, secret)
	if err != nil {
		g.settle(nil, nil)
		return nil, err
	}
	g.settle(id, tokens)
	return id, nil
}

func (g *Gate) settle(id *Identity, tokens *Tokens) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.identity, g.tokens = id, tokens
	if id != nil {
		g.state = StateAuthenticated
	} else {
		g.state = StateAnonymous
	}
	select {
	case <-g.resolved:
	default:
		close(g.resolved)
	}
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Tokens returns the tokens of the current session, nil when anonymous.
func (g *Gate) Tokens() *Tokens {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tokens
}

// Wait blocks while the gate is resolving and returns the identity, or
// ErrUnauthenticated when resolution ended anonymous.
func (g *Gate) Wait(ctx context.Context) (*Identity, error) {
	select {
	case <-g.resolved:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.identity == nil {
		return nil, ErrUnauthenticated
	}
	return g.identity, nil
}

// OnSignOut registers fn to run once when the session is torn down.
func (g *Gate) OnSignOut(fn func()) {
	g.mu.Lock()
	g.hooks = append(g.hooks, fn)
	g.mu.Unlock()
}

// SignOut ends the session everywhere it is held and runs the registered
// hooks. Calling it again, or on an anonymous gate, is a no-op.
func (g *Gate) SignOut(ctx context.Context) error {
	g.mu.Lock()
	id := g.identity
	hooks := g.hooks
	g.identity, g.tokens, g.hooks = nil, nil, nil
	if g.state != StateResolving {
		g.state = StateAnonymous
	}
	g.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	if id == nil {
		return nil
	}
	if err := g.svc.Logout(ctx, id.Account.UID, id.SessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	return nil
}
