package normalize

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	dateLayout,
}

// ParseYYYYMM turns "202701" into "2027-01-01". Anything else yields nil.
func ParseYYYYMM(v any) *string {
	s := strings.TrimSpace(text(v))
	if len(s) != len("200601") {
		return nil
	}
	t, err := time.Parse("200601", s)
	if err != nil {
		return nil
	}
	out := t.Format(dateLayout)
	return &out
}

// NormalizeTimestamp renders a timestamp as RFC3339. Values without a zone
// are taken as UTC; unparsable values yield nil.
func NormalizeTimestamp(v any) *string {
	s := strings.TrimSpace(text(v))
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		out := t.Format(time.RFC3339)
		return &out
	}
	return nil
}
