package util

import (
	"context"
	"fmt"

	"github.com/infigaming-com/go-authredis/errors"
)

type ContextKey string

const (
	CorrelationIdKey ContextKey = "CorrelationId"
	SessionIdKey     ContextKey = "SessionId"
	PrincipalKey     ContextKey = "Principal"
)

func ValueToCtx[T any](ctx context.Context, key ContextKey, value T) context.Context {
	return context.WithValue(ctx, key, value)
}

func ValueFromCtx[T any](ctx context.Context, key ContextKey) (T, error) {
	var zero T
	raw := ctx.Value(key)
	if raw == nil {
		return zero, errors.NewError(ErrCodeValueNotFoundInContext, fmt.Sprintf("%v not found in context", key), nil)
	}
	value, ok := raw.(T)
	if !ok {
		return zero, errors.NewError(ErrCodeInvalidValueInContext, fmt.Sprintf("%v is %T, not %T", key, raw, zero), nil)
	}
	return value, nil
}

func CorrelationIdToCtx(ctx context.Context, correlationId string) context.Context {
	return ValueToCtx(ctx, CorrelationIdKey, correlationId)
}

func CorrelationIdFromCtx(ctx context.Context) (string, error) {
	return ValueFromCtx[string](ctx, CorrelationIdKey)
}

func SessionIdToCtx(ctx context.Context, sessionId string) context.Context {
	return ValueToCtx(ctx, SessionIdKey, sessionId)
}

func SessionIdFromCtx(ctx context.Context) (string, error) {
	return ValueFromCtx[string](ctx, SessionIdKey)
}

func PrincipalToCtx(ctx context.Context, principal string) context.Context {
	return ValueToCtx(ctx, PrincipalKey, principal)
}

func PrincipalFromCtx(ctx context.Context) (string, error) {
	return ValueFromCtx[string](ctx, PrincipalKey)
}
