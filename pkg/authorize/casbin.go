package authorize

import (
	"context"
	"errors"
	"fmt"

	casbin "github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
)

var (
	ErrForbidden   = errors.New("forbidden")
	ErrInvalidArgs = errors.New("invalid authorization arguments")
)

// IAuthorization is the only thing services and middleware depend on.
type IAuthorization interface {
	Enforce(ctx context.Context, role Role, object Resource, action Action) (bool, error)
	// MustEnforce returns ErrForbidden when the role is not allowed.
	MustEnforce(ctx context.Context, role Role, object Resource, action Action) error
}

type Authorization struct {
	enforcer *casbin.SyncedEnforcer
}

// New builds an enforcer from cfg. Without a policy file the enforcer is
// seeded with DefaultPolicies.
func New(cfg Config) (*Authorization, error) {
	var (
		m   model.Model
		err error
	)
	if cfg.ModelPath != "" {
		m, err = model.NewModelFromFile(cfg.ModelPath)
	} else {
		m, err = model.NewModelFromString(DefaultModel)
	}
	if err != nil {
		return nil, fmt.Errorf("casbin model: %w", err)
	}

	var e *casbin.SyncedEnforcer
	if cfg.PolicyPath != "" {
		e, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		e, err = casbin.NewSyncedEnforcer(m)
	}
	if err != nil {
		return nil, fmt.Errorf("casbin enforcer: %w", err)
	}

	a := &Authorization{enforcer: e}
	if cfg.PolicyPath == "" {
		p, g := DefaultPolicies()
		if err := a.Seed(p, g); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Seed adds permission and inheritance rows to the in-memory policy.
func (a *Authorization) Seed(perms []PermissionPolicy, inherit []RoleInheritance) error {
	for _, p := range perms {
		if err := validPermission(p); err != nil {
			return err
		}
		if _, err := a.enforcer.AddPolicy(string(p.Subject), string(p.Object), string(p.Action), string(p.Effect)); err != nil {
			return fmt.Errorf("add policy %v: %w", p, err)
		}
	}
	for _, g := range inherit {
		if _, err := a.enforcer.AddGroupingPolicy(string(g.Role), string(g.Inherits)); err != nil {
			return fmt.Errorf("add grouping %v: %w", g, err)
		}
	}
	return nil
}

func (a *Authorization) Enforce(ctx context.Context, role Role, object Resource, action Action) (bool, error) {
	_ = ctx
	if _, ok := KnownRoles[role]; !ok {
		return false, fmt.Errorf("%w: unknown role %q", ErrInvalidArgs, role)
	}
	if _, ok := KnownResources[object]; !ok {
		return false, fmt.Errorf("%w: unknown resource %q", ErrInvalidArgs, object)
	}
	if _, ok := KnownActions[action]; !ok {
		return false, fmt.Errorf("%w: unknown action %q", ErrInvalidArgs, action)
	}
	return a.enforcer.Enforce(string(role), string(object), string(action))
}

func (a *Authorization) MustEnforce(ctx context.Context, role Role, object Resource, action Action) error {
	ok, err := a.Enforce(ctx, role, object, action)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func validPermission(p PermissionPolicy) error {
	if _, ok := KnownRoles[p.Subject]; !ok {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidArgs, p.Subject)
	}
	if _, ok := KnownResources[p.Object]; !ok && p.Object != WildcardResource {
		return fmt.Errorf("%w: unknown resource %q", ErrInvalidArgs, p.Object)
	}
	if _, ok := KnownActions[p.Action]; !ok && p.Action != WildcardAction {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidArgs, p.Action)
	}
	if p.Effect != EffectAllow && p.Effect != EffectDeny {
		return fmt.Errorf("%w: invalid effect %q", ErrInvalidArgs, p.Effect)
	}
	return nil
}
