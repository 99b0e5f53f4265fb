package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	MetricSessionReads  = "authredis.session.reads"
	MetricSessionWrites = "authredis.session.writes"
	MetricCacheLookups  = "authredis.cache.lookups"
)

type otelHook struct {
	sessionReads  metric.Int64Counter
	sessionWrites metric.Int64Counter
	cacheLookups  metric.Int64Counter
}

// NewOTelHook creates the counters on meter once and returns a Hook that
// records into them.
func NewOTelHook(meter metric.Meter) (Hook, error) {
	sessionReads, err := meter.Int64Counter(MetricSessionReads,
		metric.WithDescription("Session reads by source"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", MetricSessionReads, err)
	}

	sessionWrites, err := meter.Int64Counter(MetricSessionWrites,
		metric.WithDescription("Session writes by operation"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", MetricSessionWrites, err)
	}

	cacheLookups, err := meter.Int64Counter(MetricCacheLookups,
		metric.WithDescription("Principal cache lookups by cache and result"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", MetricCacheLookups, err)
	}

	return &otelHook{
		sessionReads:  sessionReads,
		sessionWrites: sessionWrites,
		cacheLookups:  cacheLookups,
	}, nil
}

func (h *otelHook) OnSessionRead(ctx context.Context, source string) {
	h.sessionReads.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (h *otelHook) OnSessionWrite(ctx context.Context, op string) {
	h.sessionWrites.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (h *otelHook) OnCacheLookup(ctx context.Context, cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	h.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", cache),
		attribute.String("result", result),
	))
}
