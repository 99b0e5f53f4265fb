package redismanager

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"github.com/infigaming-com/go-authredis/config"
	"github.com/infigaming-com/go-authredis/errors"
)

const (
	DefaultHost         = "127.0.0.1:6379"
	DefaultSentinelHost = "127.0.0.1:26379,127.0.0.1:26380,127.0.0.1:26381"
	DefaultClusterHost  = "127.0.0.1:7000,127.0.0.1:7001,127.0.0.1:7002"
	DefaultMasterName   = "mymaster"
	DefaultTimeout      = 2000 * time.Millisecond
	DefaultSoTimeout    = 2000 * time.Millisecond
	DefaultMaxAttempts  = 3
	DefaultDatabase     = 0
	DefaultPoolMaxIdle  = 8
)

// Settings is the effective configuration of a resolved manager. Fields the
// topology does not use stay zero.
type Settings struct {
	Topology    config.DeployMode
	Addrs       []string
	MasterName  string
	Timeout     time.Duration
	SoTimeout   time.Duration
	MaxAttempts int
	Password    string
	Database    int
	PoolMaxIdle int
}

// params is one topology variant: its defaults, the fields it accepts and
// the go-redis client it produces.
type params interface {
	apply(cfg config.RedisManagerConfig) error
	settings() Settings
	newClient() redis.UniversalClient
}

type StandaloneParams struct {
	Addr        string
	Timeout     time.Duration
	Password    string
	Database    int
	PoolMaxIdle int
}

func DefaultStandaloneParams() StandaloneParams {
	return StandaloneParams{
		Addr:        DefaultHost,
		Timeout:     DefaultTimeout,
		Database:    DefaultDatabase,
		PoolMaxIdle: DefaultPoolMaxIdle,
	}
}

func (p *StandaloneParams) apply(cfg config.RedisManagerConfig) error {
	if host, ok := cfg.Host.Get(); ok {
		addr, err := parseAddr(host)
		if err != nil {
			return err
		}
		p.Addr = addr
	}
	applyMillis(cfg.Timeout, &p.Timeout)
	cfg.Password.ApplyTo(&p.Password)
	cfg.Database.ApplyTo(&p.Database)
	cfg.Count.ApplyTo(&p.PoolMaxIdle)
	return nil
}

func (p *StandaloneParams) settings() Settings {
	return Settings{
		Topology:    config.Standalone,
		Addrs:       []string{p.Addr},
		Timeout:     p.Timeout,
		Password:    p.Password,
		Database:    p.Database,
		PoolMaxIdle: p.PoolMaxIdle,
	}
}

func (p *StandaloneParams) newClient() redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:         p.Addr,
		Password:     p.Password,
		DB:           p.Database,
		DialTimeout:  p.Timeout,
		ReadTimeout:  p.Timeout,
		WriteTimeout: p.Timeout,
		MaxIdleConns: p.PoolMaxIdle,
	})
}

type SentinelParams struct {
	SentinelAddrs []string
	MasterName    string
	Timeout       time.Duration
	SoTimeout     time.Duration
	MaxAttempts   int
	Password      string
	Database      int
	PoolMaxIdle   int
}

func DefaultSentinelParams() SentinelParams {
	addrs, _ := parseAddrList(DefaultSentinelHost)
	return SentinelParams{
		SentinelAddrs: addrs,
		MasterName:    DefaultMasterName,
		Timeout:       DefaultTimeout,
		SoTimeout:     DefaultSoTimeout,
		MaxAttempts:   DefaultMaxAttempts,
		Database:      DefaultDatabase,
		PoolMaxIdle:   DefaultPoolMaxIdle,
	}
}

func (p *SentinelParams) apply(cfg config.RedisManagerConfig) error {
	if host, ok := cfg.Host.Get(); ok {
		addrs, err := parseAddrList(host)
		if err != nil {
			return err
		}
		p.SentinelAddrs = addrs
	}
	cfg.MasterName.ApplyTo(&p.MasterName)
	applyMillis(cfg.Timeout, &p.Timeout)
	applyMillis(cfg.SoTimeout, &p.SoTimeout)
	cfg.MaxAttempts.ApplyTo(&p.MaxAttempts)
	cfg.Password.ApplyTo(&p.Password)
	cfg.Database.ApplyTo(&p.Database)
	cfg.Count.ApplyTo(&p.PoolMaxIdle)

	if p.MasterName == "" {
		return errors.Configuration("sentinel deploy mode requires a master name")
	}
	return nil
}

func (p *SentinelParams) settings() Settings {
	return Settings{
		Topology:    config.Sentinel,
		Addrs:       append([]string(nil), p.SentinelAddrs...),
		MasterName:  p.MasterName,
		Timeout:     p.Timeout,
		SoTimeout:   p.SoTimeout,
		MaxAttempts: p.MaxAttempts,
		Password:    p.Password,
		Database:    p.Database,
		PoolMaxIdle: p.PoolMaxIdle,
	}
}

func (p *SentinelParams) newClient() redis.UniversalClient {
	return redis.NewFailoverClient(&redis.FailoverOptions{
		MasterName:    p.MasterName,
		SentinelAddrs: p.SentinelAddrs,
		Password:      p.Password,
		DB:            p.Database,
		DialTimeout:   p.Timeout,
		ReadTimeout:   p.SoTimeout,
		WriteTimeout:  p.SoTimeout,
		MaxRetries:    p.MaxAttempts,
		MaxIdleConns:  p.PoolMaxIdle,
	})
}

type ClusterParams struct {
	NodeAddrs   []string
	Timeout     time.Duration
	SoTimeout   time.Duration
	MaxAttempts int
	Password    string
	PoolMaxIdle int
}

func DefaultClusterParams() ClusterParams {
	addrs, _ := parseAddrList(DefaultClusterHost)
	return ClusterParams{
		NodeAddrs:   addrs,
		Timeout:     DefaultTimeout,
		SoTimeout:   DefaultSoTimeout,
		MaxAttempts: DefaultMaxAttempts,
		PoolMaxIdle: DefaultPoolMaxIdle,
	}
}

// apply ignores database: a cluster only serves db 0.
func (p *ClusterParams) apply(cfg config.RedisManagerConfig) error {
	if host, ok := cfg.Host.Get(); ok {
		addrs, err := parseAddrList(host)
		if err != nil {
			return err
		}
		p.NodeAddrs = addrs
	}
	applyMillis(cfg.Timeout, &p.Timeout)
	applyMillis(cfg.SoTimeout, &p.SoTimeout)
	cfg.MaxAttempts.ApplyTo(&p.MaxAttempts)
	cfg.Password.ApplyTo(&p.Password)
	cfg.Count.ApplyTo(&p.PoolMaxIdle)
	return nil
}

func (p *ClusterParams) settings() Settings {
	return Settings{
		Topology:    config.Cluster,
		Addrs:       append([]string(nil), p.NodeAddrs...),
		Timeout:     p.Timeout,
		SoTimeout:   p.SoTimeout,
		MaxAttempts: p.MaxAttempts,
		Password:    p.Password,
		PoolMaxIdle: p.PoolMaxIdle,
	}
}

func (p *ClusterParams) newClient() redis.UniversalClient {
	return redis.NewClusterClient(&redis.ClusterOptions{
		Addrs:        p.NodeAddrs,
		Password:     p.Password,
		DialTimeout:  p.Timeout,
		ReadTimeout:  p.SoTimeout,
		WriteTimeout: p.SoTimeout,
		// attempts bound both command retries and MOVED/ASK redirects
		MaxRetries:   p.MaxAttempts,
		MaxRedirects: p.MaxAttempts,
		MaxIdleConns: p.PoolMaxIdle,
	})
}

func applyMillis(o config.Optional[int], dst *time.Duration) {
	if ms, ok := o.Get(); ok {
		*dst = time.Duration(ms) * time.Millisecond
	}
}

// parseAddr validates a single host:port.
func parseAddr(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		return "", errors.Configuration("standalone host must be a single host:port, got %q", s)
	}
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return "", errors.Configuration("invalid host %q", s).WithCause(err)
	}
	if host == "" {
		return "", errors.Configuration("invalid host %q: empty host name", s)
	}
	if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
		return "", errors.Configuration("invalid host %q: bad port", s)
	}
	return s, nil
}

// parseAddrList splits a comma separated host:port list, dropping
// duplicates while keeping order.
func parseAddrList(s string) ([]string, error) {
	parts := lo.Map(strings.Split(s, ","), func(p string, _ int) string {
		return strings.TrimSpace(p)
	})
	if lo.Contains(parts, "") {
		return nil, errors.Configuration("invalid host list %q: empty entry", s)
	}
	addrs := make([]string, 0, len(parts))
	for _, p := range parts {
		addr, err := parseAddr(p)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return lo.Uniq(addrs), nil
}
