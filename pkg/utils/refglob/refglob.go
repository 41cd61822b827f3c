// Package refglob matches branch and tag names against workflow filter
// patterns.
//
// Supported syntax: "*" matches any run of characters except "/", "**"
// matches any run including "/", "?" and "+" quantify the preceding
// character, "[...]" is a character class and a leading "!" negates a
// pattern. When patterns are combined, the last matching pattern decides.
package refglob

import (
	"regexp"
	"strings"
	"sync"
)

var cache sync.Map

// Compile converts a filter pattern (without "!") into an anchored regexp.
func Compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := cache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}

	var sb strings.Builder
	sb.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				sb.WriteString(".*")
				i++
			} else {
				sb.WriteString("[^/]*")
			}
		case '?', '+':
			sb.WriteByte(c)
		case '[':
			end := strings.IndexByte(pattern[i:], ']')
			if end < 0 {
				sb.WriteString(regexp.QuoteMeta(pattern[i:]))
				i = len(pattern)
				continue
			}
			sb.WriteString(pattern[i : i+end+1])
			i += end
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, err
	}
	cache.Store(pattern, re)
	return re, nil
}

// Match reports whether name matches a single pattern. A leading "!" is
// ignored here; use MatchAny for negation semantics. Invalid patterns never
// match.
func Match(pattern, name string) bool {
	re, err := Compile(strings.TrimPrefix(pattern, "!"))
	if err != nil {
		return false
	}
	return re.MatchString(name)
}

// MatchAny evaluates patterns in order. A positive match includes the name,
// a matching "!" pattern excludes it again.
func MatchAny(patterns []string, name string) bool {
	matched := false
	for _, p := range patterns {
		if neg, ok := strings.CutPrefix(p, "!"); ok {
			if matched && Match(neg, name) {
				matched = false
			}
			continue
		}
		if Match(p, name) {
			matched = true
		}
	}
	return matched
}
