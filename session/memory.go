package session

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/coocood/freecache"
)

// DefaultMemorySize is the freecache arena backing the in-memory tier.
const DefaultMemorySize = 8 * 1024 * 1024

// memoryTier holds recently read sessions for a short window. freecache only
// expires at second granularity, so each entry carries its own deadline in
// milliseconds and is rejected once that passes.
type memoryTier struct {
	cache   *freecache.Cache
	timeout time.Duration
}

func newMemoryTier(size int, timeout time.Duration) *memoryTier {
	return &memoryTier{
		cache:   freecache.NewCache(size),
		timeout: timeout,
	}
}

func (m *memoryTier) set(id string, data []byte, now time.Time) error {
	value := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(value, uint64(now.Add(m.timeout).UnixMilli()))
	copy(value[8:], data)

	// one extra second so freecache's whole-second clock never evicts early
	expireSeconds := int((m.timeout+time.Second-1)/time.Second) + 1
	if err := m.cache.Set([]byte(id), value, expireSeconds); err != nil {
		return fmt.Errorf("failed to set session %s: %w", id, err)
	}
	return nil
}

func (m *memoryTier) get(id string, now time.Time) ([]byte, bool) {
	value, err := m.cache.Get([]byte(id))
	if err != nil || len(value) < 8 {
		return nil, false
	}
	deadline := int64(binary.BigEndian.Uint64(value))
	if now.UnixMilli() >= deadline {
		m.cache.Del([]byte(id))
		return nil, false
	}
	return value[8:], true
}

func (m *memoryTier) del(id string) {
	m.cache.Del([]byte(id))
}

func (m *memoryTier) clear() {
	m.cache.Clear()
}
