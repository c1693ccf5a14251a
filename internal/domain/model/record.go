// Package model contains domain models passed between layers.
package model

import "maps"

// Canonical field names of a NormalizedRecord.
const (
	FieldExperienceID = "experience_id"
	FieldDescription  = "description"
	FieldRequirements = "requirements"
	FieldTitles       = "titles"
	FieldGroups       = "groups"
	FieldKeyVal       = "key_val"
	FieldSourceSystem = "SOURCESYSTEM"
)

// NormalizedRecord is one flat row produced by the normalizer. Fields holds
// every original record and meta field except titles and groups, which are
// replaced by their assembled and expanded forms.
type NormalizedRecord struct {
	Variant      string
	ExperienceID string
	Description  any
	Requirements any
	Titles       string
	Groups       []AreaRecord
	KeyVal       string
	Fields       map[string]any
}

// Set stores a plain field, e.g. the publisher discriminator.
func (r *NormalizedRecord) Set(key string, value any) {
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	r.Fields[key] = value
}

// Get returns a field by canonical or original name.
func (r *NormalizedRecord) Get(key string) (any, bool) {
	switch key {
	case FieldExperienceID:
		return r.ExperienceID, true
	case FieldDescription:
		return r.Description, r.Description != nil
	case FieldRequirements:
		return r.Requirements, r.Requirements != nil
	case FieldTitles:
		return r.Titles, true
	case FieldGroups:
		return r.Groups, true
	case FieldKeyVal:
		return r.KeyVal, true
	}
	v, ok := r.Fields[key]
	return v, ok
}

// Map flattens the record into a single mapping, the shape that is hashed
// and persisted as source metadata.
func (r *NormalizedRecord) Map() map[string]any {
	out := make(map[string]any, len(r.Fields)+6)
	maps.Copy(out, r.Fields)
	out[FieldExperienceID] = r.ExperienceID
	out[FieldDescription] = r.Description
	out[FieldRequirements] = r.Requirements
	out[FieldTitles] = r.Titles
	groups := r.Groups
	if groups == nil {
		groups = []AreaRecord{}
	}
	out[FieldGroups] = groups
	out[FieldKeyVal] = r.KeyVal
	return out
}

// AreaRecord is one academic subject area expanded out of a record group.
type AreaRecord struct {
	Hours              any                `json:"hours"`
	Level              any                `json:"level"`
	Version            any                `json:"version"`
	StartDate          *string            `json:"start_date"`
	EndDate            *string            `json:"end_date"`
	LastUpdatedOn      *string            `json:"last_updated_on"`
	AcademicCourseArea AcademicCourseArea `json:"academic_course_area"`
	MilitaryCourse     string             `json:"military_course"`
	MilitaryName       string             `json:"military_name"`
	SkillLevel         any                `json:"skill_level"`
	AceIdentifier      any                `json:"ace_identifier"`
}

// AcademicCourseArea names the subject an area credits.
type AcademicCourseArea struct {
	CourseArea any `json:"course_area"`
}

// Drop explains why a record never reached the ledger.
type Drop struct {
	Reason     string `json:"reason"`
	Identifier string `json:"identifier"`
	Detail     string `json:"detail,omitempty"`
}

// Drop reasons.
const (
	DropMissingPath      = "missing_record_path"
	DropMissingMeta      = "missing_meta_field"
	DropMissingDerived   = "missing_derived_input"
	DropMissingKeyField  = "missing_key_field"
	DropDuplicateInBatch = "duplicate_in_batch"
	DropHashFailed       = "hash_failed"
)
