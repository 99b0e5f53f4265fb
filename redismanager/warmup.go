package redismanager

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/infigaming-com/go-authredis/errors"
	"github.com/infigaming-com/go-authredis/util"
)

// WarmUp pings the store once, bounded by timeout. It never retries: a
// failure is an ErrConnection and the caller is expected to abort startup.
func WarmUp(ctx context.Context, lg *zap.Logger, m Manager, timeout time.Duration) error {
	s := m.Settings()
	if err := util.PingRedis(ctx, m.Client(), timeout); err != nil {
		return errors.Connection("failed to connect to redis", err).
			WithDetails(map[string]any{"topology": s.Topology, "addrs": s.Addrs})
	}
	lg.Info("connected to redis", zap.String("topology", string(s.Topology)), zap.Strings("addrs", s.Addrs))
	return nil
}
