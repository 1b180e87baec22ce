package stackmodel

import (
	"sort"
	"strings"

	"emperror.dev/errors"
)

// Match is one candidate returned by Find.
type Match struct {
	Name string
	Tier matchTier
}

type matchTier int

const (
	tierExact matchTier = iota
	tierPrefix
	tierSubstring
)

// Find resolves a fuzzy, case-insensitive pattern against every tracked
// branch name. Per spec.md §4.3: exact matches beat prefix matches beat
// substring matches; ties within the winning tier are all surfaced via
// ErrAmbiguous so the caller can present them to the user.
func (m *Model) Find(pattern string) (string, error) {
	needle := strings.ToLower(pattern)

	var exact, prefix, substring []string
	for name := range m.nodes {
		hay := strings.ToLower(name)
		switch {
		case hay == needle:
			exact = append(exact, name)
		case strings.HasPrefix(hay, needle):
			prefix = append(prefix, name)
		case strings.Contains(hay, needle):
			substring = append(substring, name)
		}
	}

	for _, tier := range [][]string{exact, prefix, substring} {
		if len(tier) == 0 {
			continue
		}
		sort.Strings(tier)
		if len(tier) > 1 {
			return "", errors.WrapIff(ErrAmbiguous, "%q matches: %s", pattern, strings.Join(tier, ", "))
		}
		return tier[0], nil
	}
	return "", errors.WrapIff(ErrNotFound, "no branch matches %q", pattern)
}
