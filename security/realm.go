package security

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Token is what a subject presents at login: either a username and
// password or a bearer token.
type Token struct {
	Username string
	Password string
	Bearer   string
	Host     string
}

type AuthenticationInfo struct {
	Principal string
	Realm     string
}

type AuthorizationInfo struct {
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Realm is a source of accounts. Authenticate returns ErrUnsupportedToken
// for tokens it does not handle.
type Realm interface {
	Name() string
	Authenticate(ctx context.Context, token Token) (AuthenticationInfo, error)
	Authorize(ctx context.Context, principal string) (AuthorizationInfo, error)
}

type Account struct {
	PasswordHash []byte
	Roles        []string
	Permissions  []string
}

// HashPassword produces a hash suitable for Account.PasswordHash.
func HashPassword(password string, cost int) ([]byte, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

// StaticRealm serves a fixed set of bcrypt protected accounts.
type StaticRealm struct {
	name     string
	accounts map[string]Account
}

func NewStaticRealm(name string, accounts map[string]Account) *StaticRealm {
	copied := make(map[string]Account, len(accounts))
	for k, v := range accounts {
		copied[k] = v
	}
	return &StaticRealm{name: name, accounts: copied}
}

func (r *StaticRealm) Name() string {
	return r.name
}

func (r *StaticRealm) Authenticate(_ context.Context, token Token) (AuthenticationInfo, error) {
	if token.Username == "" {
		return AuthenticationInfo{}, ErrUnsupportedToken
	}
	account, ok := r.accounts[token.Username]
	if !ok {
		return AuthenticationInfo{}, ErrUnknownAccount
	}
	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(token.Password)); err != nil {
		return AuthenticationInfo{}, ErrIncorrectCredentials
	}
	return AuthenticationInfo{Principal: token.Username, Realm: r.name}, nil
}

func (r *StaticRealm) Authorize(_ context.Context, principal string) (AuthorizationInfo, error) {
	account, ok := r.accounts[principal]
	if !ok {
		return AuthorizationInfo{}, nil
	}
	return AuthorizationInfo{
		Roles:       append([]string(nil), account.Roles...),
		Permissions: append([]string(nil), account.Permissions...),
	}, nil
}
