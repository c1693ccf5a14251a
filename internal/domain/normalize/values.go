package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// lookup finds key in m, falling back to a case-insensitive match so XML
// attribute casing (title vs Title) does not matter.
func lookup(m map[string]any, key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func lookupOr(m map[string]any, key string, def any) any {
	if v, ok := lookup(m, key); ok {
		return v
	}
	return def
}

// asList treats an object as a one-element array.
func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case map[string]any:
		return []any{t}, true
	}
	return nil, false
}

// text renders a scalar the way it appeared in the payload.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return fmt.Sprint(v)
}
