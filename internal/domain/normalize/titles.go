package normalize

import (
	"slices"
	"strings"
)

const primePrecedence = "prime"

// AssembleTitles joins a record's titles: the prime title first, then every
// other title in reverse of its original order.
//
//	[A(prime), B, C] -> "A, C, B"
//
// Without a prime title all titles are reversed. Only the first prime counts.
func AssembleTitles(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	items, ok := asList(v)
	if !ok {
		return ""
	}

	var (
		prime  string
		found  bool
		others []string
	)
	for _, it := range items {
		name, isPrime := titleOf(it)
		if name == "" {
			continue
		}
		if isPrime && !found {
			prime, found = name, true
			continue
		}
		others = append(others, name)
	}
	slices.Reverse(others)

	parts := make([]string, 0, len(others)+1)
	if found {
		parts = append(parts, prime)
	}
	parts = append(parts, others...)
	return strings.Join(parts, ", ")
}

func titleOf(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, false
	case map[string]any:
		name := text(lookupOr(t, "Title", nil))
		prec := text(lookupOr(t, "Precedence", nil))
		return name, strings.EqualFold(prec, primePrecedence)
	}
	return "", false
}
