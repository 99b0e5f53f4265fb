package sessiontracker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/coocood/freecache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	TriggerDailyVisit   = "daily_visit"
	TriggerHostChange   = "host_change"
	TriggerDeviceChange = "device_change"

	DefaultRedisKeyPrefix = "redis-auth:activity:"
	defaultL1Size         = 1024 * 1024
)

// TrackRequest is one authenticated request as seen by the middleware.
type TrackRequest struct {
	Principal string
	SessionID string
	Host      string
	UserAgent string
}

// ChangeEvent describes what changed since the principal was last seen.
type ChangeEvent struct {
	Principal  string
	SessionID  string
	Triggers   []string
	Host       string
	PrevHost   string
	UAHash     string
	PrevUAHash string
	Timestamp  int64
}

// OnChangeFunc is called asynchronously when a change is detected.
type OnChangeFunc func(event *ChangeEvent)

// Tracker remembers the last host and user agent of every principal in two
// tiers: a freecache in front of a redis hash. Redis is only touched when the
// in-process tier cannot vouch that nothing changed today.
type Tracker struct {
	lg       *zap.Logger
	client   redis.UniversalClient
	onChange OnChangeFunc
	now      func() time.Time

	l1     *freecache.Cache
	l1Size int
	l1TTL  time.Duration

	redisKeyPrefix string
	l2TTL          time.Duration

	wg sync.WaitGroup
}

func New(client redis.UniversalClient, onChange OnChangeFunc, opts ...Option) *Tracker {
	t := &Tracker{
		lg:             zap.L(),
		client:         client,
		onChange:       onChange,
		now:            time.Now,
		l1Size:         defaultL1Size,
		l1TTL:          5 * time.Minute,
		redisKeyPrefix: DefaultRedisKeyPrefix,
		l2TTL:          30 * 24 * time.Hour,
	}
	for _, o := range opts {
		o(t)
	}
	t.l1 = freecache.NewCache(t.l1Size)
	return t
}

// Track records one request. It is safe for concurrent use.
func (t *Tracker) Track(ctx context.Context, req *TrackRequest) error {
	now := t.now().UTC()
	uaHash := hashUA(req.UserAgent)
	date := now.Format(time.DateOnly)
	fingerprint := []byte(date + "|" + req.Host + "|" + uaHash)

	l1Key := []byte(req.Principal)
	if cached, err := t.l1.Get(l1Key); err == nil && string(cached) == string(fingerprint) {
		return nil
	}

	key := t.redisKeyPrefix + req.Principal
	cached, err := t.client.HGetAll(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to read activity of %s: %w", req.Principal, err)
	}

	var triggers []string
	prevHost, prevUAHash := cached["host"], cached["ua_hash"]
	if cached["date"] != date {
		triggers = append(triggers, TriggerDailyVisit)
	}
	if prevHost != "" && prevHost != req.Host {
		triggers = append(triggers, TriggerHostChange)
	}
	if prevUAHash != "" && prevUAHash != uaHash {
		triggers = append(triggers, TriggerDeviceChange)
	}

	if len(triggers) > 0 {
		_, err = t.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key, map[string]any{
				"host":    req.Host,
				"ua_hash": uaHash,
				"date":    date,
			})
			p.Expire(ctx, key, t.l2TTL)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to record activity of %s: %w", req.Principal, err)
		}
	}

	if ttl := int(t.l1TTL / time.Second); ttl > 0 {
		if err := t.l1.Set(l1Key, fingerprint, ttl); err != nil {
			t.lg.Debug("activity entry not cached", zap.String("principal", req.Principal), zap.Error(err))
		}
	}

	if t.onChange != nil && len(triggers) > 0 {
		event := &ChangeEvent{
			Principal:  req.Principal,
			SessionID:  req.SessionID,
			Triggers:   triggers,
			Host:       req.Host,
			PrevHost:   prevHost,
			UAHash:     uaHash,
			PrevUAHash: prevUAHash,
			Timestamp:  now.UnixMilli(),
		}
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.onChange(event)
		}()
	}
	return nil
}

// Forget drops the in-process entry of principal, e.g. on logout.
func (t *Tracker) Forget(principal string) {
	t.l1.Del([]byte(principal))
}

// Wait blocks until every pending callback has returned.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func hashUA(ua string) string {
	h := sha256.Sum256([]byte(ua))
	return hex.EncodeToString(h[:8])
}
