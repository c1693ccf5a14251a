// Package normalize turns nested transcript payloads into flat, canonical
// records for one schema variant.
package normalize

import (
	"fmt"
	"strings"

	"github.com/okian/xsrledger/internal/domain/model"
)

// Variant is the per-schema strategy: where records live, which parent
// fields travel with them and how canonical fields are derived.
type Variant struct {
	Name string

	// RecordPath names the outer and inner array members, e.g.
	// versions[].courses[].
	RecordPath [2]string

	// MetaFields are copied from the outer element onto every record.
	// A record whose outer element lacks any of them is dropped.
	MetaFields []string

	// KeyFields feed the identity key, in order. Each one must be present on
	// its own; key_val is not used because its parts are glued without a
	// separator.
	KeyFields []string

	// XMLRecordTag is the element holding one outer record in XML payloads.
	XMLRecordTag string

	derive func(rec, meta map[string]any) (derived, error)
}

type derived struct {
	experienceID string
	keyVal       string
	description  any
	requirements any
	version      any
	skillLevel   any
}

// Course reads versions[].courses[].
var Course = Variant{
	Name:       "Course",
	RecordPath: [2]string{"versions", "courses"},
	MetaFields: []string{
		"ACEID", "VerNum", "Chapter", "ModDate", "StartDateYYYYMM", "EndDateYYYYMM",
		"LastUpdatedOn", "objective", "instruction", "titles", "locations", "groups",
	},
	KeyFields:    []string{"ACEID", "VerNum", "CourseNumber", model.FieldSourceSystem},
	XMLRecordTag: "version",
	derive:       deriveCourse,
}

// Occupation reads exhibits[].levels[].
var Occupation = Variant{
	Name:       "Occupation",
	RecordPath: [2]string{"exhibits", "levels"},
	MetaFields: []string{
		"ACEID", "Type", "Chapter", "ModDate", "StartDateYYYYMM", "EndDateYYYYMM",
		"LastUpdatedOn", "Pattern", "Summary", "titles", "field",
	},
	KeyFields:    []string{"ACEID", "SkillLevel", model.FieldSourceSystem},
	XMLRecordTag: "exhibit",
	derive:       deriveOccupation,
}

// ParseVariant resolves a configured variant name, case-insensitively.
func ParseVariant(name string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "course":
		return Course, nil
	case "occupation":
		return Occupation, nil
	}
	return Variant{}, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
}

func deriveCourse(rec, meta map[string]any) (derived, error) {
	number, err := required(rec, "CourseNumber")
	if err != nil {
		return derived{}, err
	}
	return derived{
		experienceID: number,
		keyVal:       text(meta["ACEID"]) + number + text(meta["VerNum"]),
		description:  meta["objective"],
		requirements: meta["instruction"],
		version:      meta["VerNum"],
	}, nil
}

func deriveOccupation(rec, meta map[string]any) (derived, error) {
	level, err := required(rec, "SkillLevel")
	if err != nil {
		return derived{}, err
	}
	ace := text(meta["ACEID"])
	return derived{
		experienceID: ace + "-" + level,
		keyVal:       ace + level,
		description:  meta["Summary"],
		requirements: meta["Pattern"],
		version:      lookupOr(rec, "VerNum", nil),
		skillLevel:   level,
	}, nil
}

func required(m map[string]any, key string) (string, error) {
	v, ok := lookup(m, key)
	if !ok || text(v) == "" {
		return "", fmt.Errorf("%w: %s", errMissingDerived, key)
	}
	return text(v), nil
}
