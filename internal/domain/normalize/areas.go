package normalize

import (
	"github.com/okian/xsrledger/internal/domain/model"
)

// areaBase carries the record level values every area repeats.
type areaBase struct {
	version       any
	startDate     *string
	endDate       *string
	lastUpdatedOn *string
	experienceID  string
	titles        string
	skillLevel    any
	aceID         any
}

// expandAreas emits one AreaRecord per subject of every group that has a
// subjects list. Groups without subjects contribute nothing.
func expandAreas(groups any, base areaBase) []model.AreaRecord {
	list, ok := asList(groups)
	if !ok {
		return nil
	}
	var out []model.AreaRecord
	for _, g := range list {
		group, ok := g.(map[string]any)
		if !ok {
			continue
		}
		raw, ok := lookup(group, "subjects")
		if !ok {
			continue
		}
		subjects, ok := asList(raw)
		if !ok {
			continue
		}
		level := lookupOr(group, "AcadLevel", nil)
		for _, s := range subjects {
			subject, ok := s.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, model.AreaRecord{
				Hours:         lookupOr(subject, "Min", nil),
				Level:         level,
				Version:       base.version,
				StartDate:     base.startDate,
				EndDate:       base.endDate,
				LastUpdatedOn: base.lastUpdatedOn,
				AcademicCourseArea: model.AcademicCourseArea{
					CourseArea: lookupOr(subject, "Subject", nil),
				},
				MilitaryCourse: base.experienceID,
				MilitaryName:   base.titles,
				SkillLevel:     base.skillLevel,
				AceIdentifier:  base.aceID,
			})
		}
	}
	return out
}
