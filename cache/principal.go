package cache

import (
	"fmt"
	"reflect"
	"strings"
)

// PrincipalCollection is implemented by keys that carry several principals
// for one subject. Only the primary one identifies the cache entry.
type PrincipalCollection interface {
	PrimaryPrincipal() any
}

// PrincipalID derives the string identity of a cache key.
//
// Structs and pointers to structs are looked up by field, even when they
// implement fmt.Stringer: a zero-argument method named field or Get+field,
// then an exported struct field or json tag named field, all matched
// case-insensitively. A PrincipalCollection is reduced to its primary
// principal, which is used directly when it is a string and otherwise looked
// up by field. Strings, other fmt.Stringers and scalars are used as they are.
func PrincipalID(key any, field string) (string, error) {
	switch k := key.(type) {
	case nil:
		return "", ErrPrincipalIDNull
	case PrincipalCollection:
		primary := k.PrimaryPrincipal()
		if s, ok := primary.(string); ok {
			return nonEmpty(s)
		}
		return idByField(primary, field)
	case string:
		return nonEmpty(k)
	}

	v := reflect.ValueOf(key)
	if isStruct(v) {
		return idByField(key, field)
	}
	if s, ok := key.(fmt.Stringer); ok {
		return nonEmpty(s.String())
	}

	switch v.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprint(key), nil
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
}

func isStruct(v reflect.Value) bool {
	t := v.Type()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

func idByField(principal any, field string) (string, error) {
	if principal == nil {
		return "", ErrPrincipalIDNull
	}
	v := reflect.ValueOf(principal)
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return "", ErrPrincipalIDNull
	}

	if m, ok := findGetter(v, field); ok {
		return idString(m.Call(nil)[0])
	}

	s := v
	for s.Kind() == reflect.Pointer {
		s = s.Elem()
	}
	if s.Kind() == reflect.Struct {
		if f, ok := findField(s, field); ok {
			return idString(f)
		}
	}
	return "", fmt.Errorf("%w: %q on %T", ErrPrincipalIDField, field, principal)
}

func findGetter(v reflect.Value, field string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if !strings.EqualFold(m.Name, field) && !strings.EqualFold(m.Name, "get"+field) {
			continue
		}
		if m.Type.NumIn() != 1 || m.Type.NumOut() == 0 {
			continue
		}
		return v.Method(i), true
	}
	return reflect.Value{}, false
}

func findField(v reflect.Value, field string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if strings.EqualFold(f.Name, field) {
			return v.Field(i), true
		}
		if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag != "" && strings.EqualFold(tag, field) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func idString(v reflect.Value) (string, error) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return "", ErrPrincipalIDNull
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return "", ErrPrincipalIDNull
	}
	if v.CanInterface() {
		if s, ok := v.Interface().(fmt.Stringer); ok {
			return nonEmpty(s.String())
		}
	}
	return nonEmpty(fmt.Sprint(v.Interface()))
}

func nonEmpty(s string) (string, error) {
	if s == "" {
		return "", ErrPrincipalIDNull
	}
	return s, nil
}
