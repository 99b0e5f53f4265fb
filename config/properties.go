package config

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/infigaming-com/go-authredis/errors"
)

// Property keys relative to the namespace.
const (
	KeyEnabled = "enabled"

	KeyDeployMode  = "redis-manager.deploy-mode"
	KeyHost        = "redis-manager.host"
	KeyMasterName  = "redis-manager.master-name"
	KeyTimeout     = "redis-manager.timeout"
	KeySoTimeout   = "redis-manager.so-timeout"
	KeyMaxAttempts = "redis-manager.max-attempts"
	KeyPassword    = "redis-manager.password"
	KeyDatabase    = "redis-manager.database"
	KeyCount       = "redis-manager.count"

	KeySessionExpire          = "session-dao.expire"
	KeySessionKeyPrefix       = "session-dao.key-prefix"
	KeySessionInMemoryTimeout = "session-dao.session-in-memory-timeout"

	KeyCachePrincipalIDFieldName = "cache-manager.principal-id-field-name"
	KeyCacheExpire               = "cache-manager.expire"
	KeyCacheKeyPrefix            = "cache-manager.key-prefix"
)

// Keys lists every recognised property key.
var Keys = []string{
	KeyEnabled,
	KeyDeployMode, KeyHost, KeyMasterName, KeyTimeout, KeySoTimeout,
	KeyMaxAttempts, KeyPassword, KeyDatabase, KeyCount,
	KeySessionExpire, KeySessionKeyPrefix, KeySessionInMemoryTimeout,
	KeyCachePrincipalIDFieldName, KeyCacheExpire, KeyCacheKeyPrefix,
}

type properties struct {
	ns    string
	props map[string]string
	errs  []error
}

func (p *properties) raw(key string) (string, bool) {
	full := key
	if p.ns != "" {
		full = p.ns + "." + key
	}
	v, ok := p.props[full]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (p *properties) str(key string) Optional[string] {
	v, ok := p.raw(key)
	if !ok {
		return None[string]()
	}
	return Some(v)
}

func (p *properties) integer(key string) Optional[int] {
	v, ok := p.raw(key)
	if !ok {
		return None[int]()
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return None[int]()
	}
	return Some(n)
}

func (p *properties) integer64(key string) Optional[int64] {
	v, ok := p.raw(key)
	if !ok {
		return None[int64]()
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return None[int64]()
	}
	return Some(n)
}

func (p *properties) boolean(key string) Optional[bool] {
	v, ok := p.raw(key)
	if !ok {
		return None[bool]()
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return None[bool]()
	}
	return Some(b)
}

// FromProperties builds a Config from flat, already parsed properties keyed
// "<ns>.<section>.<key>". Blank values count as absent and unknown keys are
// ignored.
func FromProperties(ns string, props map[string]string) (*Config, error) {
	p := &properties{ns: ns, props: props}

	cfg := &Config{
		Enabled: p.boolean(KeyEnabled),
		RedisManager: RedisManagerConfig{
			Host:        p.str(KeyHost),
			MasterName:  p.str(KeyMasterName),
			Timeout:     p.integer(KeyTimeout),
			SoTimeout:   p.integer(KeySoTimeout),
			MaxAttempts: p.integer(KeyMaxAttempts),
			Password:    p.str(KeyPassword),
			Database:    p.integer(KeyDatabase),
			Count:       p.integer(KeyCount),
		},
		SessionStore: SessionStoreConfig{
			Expire:                 p.integer(KeySessionExpire),
			KeyPrefix:              p.str(KeySessionKeyPrefix),
			SessionInMemoryTimeout: p.integer64(KeySessionInMemoryTimeout),
		},
		Cache: CacheConfig{
			PrincipalIDFieldName: p.str(KeyCachePrincipalIDFieldName),
			Expire:               p.integer(KeyCacheExpire),
			KeyPrefix:            p.str(KeyCacheKeyPrefix),
		},
	}
	if mode, ok := p.raw(KeyDeployMode); ok {
		cfg.RedisManager.DeployMode = Some(DeployMode(strings.ToLower(mode)))
	}

	if len(p.errs) > 0 {
		return nil, errors.Configuration("invalid %s properties", displayNamespace(ns)).
			WithCause(stderrors.Join(p.errs...))
	}
	return cfg, nil
}

func displayNamespace(ns string) string {
	if ns == "" {
		return "root"
	}
	return ns
}
