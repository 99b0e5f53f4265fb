package config

import "fmt"

// Optional holds a value that may be absent. The zero Optional is absent,
// which keeps "not configured" distinct from an explicit zero value.
type Optional[T any] struct {
	value T
	set   bool
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

func None[T any]() Optional[T] {
	return Optional[T]{}
}

func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

func (o Optional[T]) IsSet() bool {
	return o.set
}

func (o Optional[T]) OrElse(def T) T {
	if o.set {
		return o.value
	}
	return def
}

// ApplyTo overwrites *dst with the held value when present and leaves it
// untouched otherwise.
func (o Optional[T]) ApplyTo(dst *T) {
	if o.set {
		*dst = o.value
	}
}

func (o Optional[T]) String() string {
	if !o.set {
		return "<unset>"
	}
	return fmt.Sprint(o.value)
}
