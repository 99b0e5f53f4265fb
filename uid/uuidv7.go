package uid

import (
	"github.com/google/uuid"
)

// Generator hands out session identifiers.
type Generator interface {
	New() (string, error)
}

// UUIDV7 issues time-ordered UUIDv7 strings.
type UUIDV7 struct{}

func NewUUIDV7() *UUIDV7 {
	return &UUIDV7{}
}

func (u *UUIDV7) New() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Func adapts a plain function to Generator.
type Func func() (string, error)

func (f Func) New() (string, error) {
	return f()
}
