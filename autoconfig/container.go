package autoconfig

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/infigaming-com/go-authredis/config"
	autherrors "github.com/infigaming-com/go-authredis/errors"
)

var (
	ErrAlreadyRegistered = errors.New("component already registered")
	ErrNotRegistered     = errors.New("component not registered")
)

// Container is a minimal by-role component container for hosts without a
// DI framework of their own.
type Container struct {
	mu         sync.RWMutex
	components map[Role]any
}

func NewContainer() *Container {
	return &Container{components: make(map[Role]any)}
}

func (c *Container) Register(role Role, component any) error {
	if component == nil {
		return fmt.Errorf("nil component for %s", role)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.components[role]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, role)
	}
	c.components[role] = component
	return nil
}

// registerAll registers every entry or none of them.
func (c *Container) registerAll(entries map[Role]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for role := range entries {
		if _, exists := c.components[role]; exists {
			return fmt.Errorf("%w: %s", ErrAlreadyRegistered, role)
		}
	}
	for role, component := range entries {
		c.components[role] = component
	}
	return nil
}

func (c *Container) Resolve(role Role) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	component, exists := c.components[role]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, role)
	}
	return component, nil
}

// Roles lists the registered roles in sorted order.
func (c *Container) Roles() []Role {
	c.mu.RLock()
	defer c.mu.RUnlock()

	roles := make([]Role, 0, len(c.components))
	for role := range c.components {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// Install composes from whatever c already holds and registers defaults for
// the empty roles only. Running it again with the same container registers
// nothing new.
func Install(ctx context.Context, c *Container, cfg *config.Config, opts ...Option) (*Components, error) {
	provided, err := providedFrom(c)
	if err != nil {
		return nil, err
	}

	o := newOptions(opts)
	comps, err := Compose(ctx, cfg, provided, opts...)
	if err != nil {
		return nil, err
	}

	entries := make(map[Role]any)
	for role, src := range comps.Sources {
		if src == SourceDefault {
			entries[role] = comps.Get(role)
		}
	}
	if err := c.registerAll(entries); err != nil {
		if cerr := comps.Close(); cerr != nil {
			o.lg.Warn("failed to close redis manager", zap.Error(cerr))
		}
		o.lg.Error("failed to register redis auth components", zap.Error(err))
		return nil, err
	}
	return comps, nil
}

func providedFrom(c *Container) (Provided, error) {
	var (
		p    Provided
		errs []error
	)
	resolveAs(c, RoleRedisManager, &p.RedisManager, &errs)
	resolveAs(c, RoleSessionStore, &p.SessionStore, &errs)
	resolveAs(c, RoleCacheManager, &p.CacheManager, &errs)
	resolveAs(c, RoleSessionManager, &p.SessionManager, &errs)
	resolveAs(c, RoleSecurityManager, &p.SecurityManager, &errs)
	if len(errs) > 0 {
		return Provided{}, autherrors.Configuration("container holds components of the wrong type").
			WithCause(errors.Join(errs...))
	}
	return p, nil
}

func resolveAs[T any](c *Container, role Role, dst *T, errs *[]error) {
	v, err := c.Resolve(role)
	if err != nil {
		return
	}
	typed, ok := v.(T)
	if !ok {
		*errs = append(*errs, fmt.Errorf("%s: unexpected %T", role, v))
		return
	}
	*dst = typed
}

