package config

// DefaultNamespace prefixes every property key when no namespace is given.
const DefaultNamespace = "redis-auth"

// DeployMode names the topology the redis store runs under. Values are kept
// as written by the operator; redismanager.Resolve rejects unknown ones.
type DeployMode string

const (
	Standalone DeployMode = "standalone"
	Sentinel   DeployMode = "sentinel"
	Cluster    DeployMode = "cluster"
)

func (m DeployMode) Valid() bool {
	switch m {
	case Standalone, Sentinel, Cluster:
		return true
	}
	return false
}

// RedisManagerConfig carries the store connection settings. Every field is
// optional; absent fields keep the topology's built-in default.
type RedisManagerConfig struct {
	DeployMode  Optional[DeployMode]
	Host        Optional[string]
	MasterName  Optional[string]
	Timeout     Optional[int] // milliseconds
	SoTimeout   Optional[int] // milliseconds
	MaxAttempts Optional[int]
	Password    Optional[string]
	Database    Optional[int]
	Count       Optional[int] // pool max idle connections
}

// Mode returns the configured deploy mode, standalone when absent.
func (c RedisManagerConfig) Mode() DeployMode {
	return c.DeployMode.OrElse(Standalone)
}

type SessionStoreConfig struct {
	Expire                 Optional[int] // seconds
	KeyPrefix              Optional[string]
	SessionInMemoryTimeout Optional[int64] // milliseconds
}

type CacheConfig struct {
	PrincipalIDFieldName Optional[string]
	Expire               Optional[int] // seconds
	KeyPrefix            Optional[string]
}

// Config is the whole module configuration as loaded at startup.
type Config struct {
	Enabled      Optional[bool]
	RedisManager RedisManagerConfig
	SessionStore SessionStoreConfig
	Cache        CacheConfig
}

// IsEnabled reports the master switch; the module is on unless explicitly
// turned off.
func (c *Config) IsEnabled() bool {
	if c == nil {
		return true
	}
	return c.Enabled.OrElse(true)
}
