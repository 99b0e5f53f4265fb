package security

import "errors"

var (
	ErrAuthentication       = errors.New("authentication failed")
	ErrUnknownAccount       = errors.New("unknown account")
	ErrIncorrectCredentials = errors.New("incorrect credentials")
	ErrUnsupportedToken     = errors.New("unsupported token")
	ErrExpiredSession       = errors.New("session expired")
	ErrNotAuthenticated     = errors.New("not authenticated")
)
