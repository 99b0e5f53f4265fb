package security

import (
	"strings"

	"github.com/samber/lo"
)

const (
	wildcardToken  = "*"
	partDivider    = ":"
	subpartDivider = ","
)

// Permission is a wildcard permission string such as "document:read,write:42".
// Parts are separated by ':', alternatives within a part by ',', and '*'
// matches anything. Matching is case-insensitive.
type Permission [][]string

func ParsePermission(s string) Permission {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	parts := strings.Split(s, partDivider)
	return lo.Map(parts, func(part string, _ int) []string {
		return lo.Compact(lo.Map(strings.Split(part, subpartDivider), func(sub string, _ int) string {
			return strings.TrimSpace(sub)
		}))
	})
}

// Implies reports whether holding p grants other. Parts p lacks are
// implied; extra parts in p must be wildcards.
func (p Permission) Implies(other Permission) bool {
	if len(p) == 0 || len(other) == 0 {
		return false
	}
	for i, want := range other {
		if i >= len(p) {
			return true
		}
		have := p[i]
		if lo.Contains(have, wildcardToken) {
			continue
		}
		if !lo.Every(have, want) {
			return false
		}
	}
	for _, extra := range p[min(len(other), len(p)):] {
		if !lo.Contains(extra, wildcardToken) {
			return false
		}
	}
	return true
}

func impliesAny(granted []string, permission string) bool {
	want := ParsePermission(permission)
	return lo.ContainsBy(granted, func(g string) bool {
		return ParsePermission(g).Implies(want)
	})
}
