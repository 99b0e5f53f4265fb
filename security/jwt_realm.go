package security

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type JWTRealmOption func(*JWTRealm)

func WithIssuer(issuer string) JWTRealmOption {
	return func(r *JWTRealm) {
		r.issuer = issuer
	}
}

func WithJWTNowFunc(now func() time.Time) JWTRealmOption {
	return func(r *JWTRealm) {
		if now != nil {
			r.now = now
		}
	}
}

// JWTRealm accepts HS256 bearer tokens and uses their subject as the
// principal. It only authenticates; roles come from the other realms.
type JWTRealm struct {
	name   string
	key    []byte
	issuer string
	now    func() time.Time
}

func NewJWTRealm(name string, key []byte, opts ...JWTRealmOption) *JWTRealm {
	r := &JWTRealm{name: name, key: key, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *JWTRealm) Name() string {
	return r.name
}

func (r *JWTRealm) Authenticate(_ context.Context, token Token) (AuthenticationInfo, error) {
	if token.Bearer == "" {
		return AuthenticationInfo{}, ErrUnsupportedToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(r.now),
		jwt.WithExpirationRequired(),
	}
	if r.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(r.issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token.Bearer, &claims, func(*jwt.Token) (any, error) {
		return r.key, nil
	}, parserOpts...)
	if err != nil {
		return AuthenticationInfo{}, fmt.Errorf("%w: %v", ErrIncorrectCredentials, err)
	}
	if claims.Subject == "" {
		return AuthenticationInfo{}, fmt.Errorf("%w: token has no subject", ErrIncorrectCredentials)
	}
	return AuthenticationInfo{Principal: claims.Subject, Realm: r.name}, nil
}

func (r *JWTRealm) Authorize(context.Context, string) (AuthorizationInfo, error) {
	return AuthorizationInfo{}, nil
}
