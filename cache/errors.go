package cache

import "errors"

var (
	ErrKeyNotFound      = errors.New("key not found")
	ErrJsonMarshal      = errors.New("failed to marshal value to json")
	ErrJsonUnmarshal    = errors.New("failed to unmarshal value from json")
	ErrInvalidCacheName = errors.New("invalid cache name")
	ErrPrincipalIDField = errors.New("principal id field not found")
	ErrPrincipalIDNull  = errors.New("principal id is empty")
	ErrUnsupportedKey   = errors.New("unsupported cache key")
)
