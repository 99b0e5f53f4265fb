package cache

import (
	"context"
	"encoding/json"
)

// Cache is one named cache whose entries are keyed by principal.
type Cache interface {
	Name() string
	Get(ctx context.Context, key any) ([]byte, error)
	Put(ctx context.Context, key any, value []byte) error
	Remove(ctx context.Context, key any) error
	Clear(ctx context.Context) error
	Size(ctx context.Context) (int64, error)
	// Keys returns the principal ids currently cached.
	Keys(ctx context.Context) ([]string, error)
	Values(ctx context.Context) ([][]byte, error)
}

// Manager hands out caches by name.
type Manager interface {
	GetCache(name string) (Cache, error)
}

func PutTyped[T any](ctx context.Context, c Cache, key any, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return ErrJsonMarshal
	}
	return c.Put(ctx, key, data)
}

func GetTyped[T any](ctx context.Context, c Cache, key any) (T, error) {
	var result T

	data, err := c.Get(ctx, key)
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return result, ErrJsonUnmarshal
	}

	return result, nil
}
