package metrics

import "context"

// Session read sources reported through Hook.OnSessionRead.
const (
	SourceMemory = "memory"
	SourceRedis  = "redis"
	SourceMiss   = "miss"
)

// Hook lets the session store and the cache report events to whatever
// observability stack the host runs, without a direct dependency.
type Hook interface {
	OnSessionRead(ctx context.Context, source string)
	OnSessionWrite(ctx context.Context, op string)
	OnCacheLookup(ctx context.Context, cache string, hit bool)
}

// Noop returns a Hook that discards every event.
func Noop() Hook {
	return noopHook{}
}

type noopHook struct{}

func (noopHook) OnSessionRead(context.Context, string)       {}
func (noopHook) OnSessionWrite(context.Context, string)      {}
func (noopHook) OnCacheLookup(context.Context, string, bool) {}
