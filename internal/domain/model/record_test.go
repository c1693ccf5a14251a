package model_test

import (
	"testing"

	model "github.com/okian/xsrledger/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNormalizedRecord(t *testing.T) {
	Convey("Given a normalized record", t, func() {
		rec := model.NormalizedRecord{
			Variant:      "Course",
			ExperienceID: "C1",
			Description:  "objective",
			Requirements: "instruction",
			Titles:       "A, C, B",
			KeyVal:       "X1C10",
			Fields:       map[string]any{"ACEID": "X1", "VerNum": "0"},
		}

		Convey("When reading canonical and original fields", func() {
			Convey("Then both are reachable through Get", func() {
				v, ok := rec.Get(model.FieldKeyVal)
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, "X1C10")

				v, ok = rec.Get("ACEID")
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, "X1")

				_, ok = rec.Get("SOURCESYSTEM")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the publisher is merged in", func() {
			rec.Set(model.FieldSourceSystem, "JKO")

			Convey("Then it appears in the flat mapping", func() {
				m := rec.Map()
				So(m[model.FieldSourceSystem], ShouldEqual, "JKO")
				So(m[model.FieldTitles], ShouldEqual, "A, C, B")
				So(m[model.FieldGroups], ShouldResemble, []model.AreaRecord{})
			})
		})

		Convey("When Map is called", func() {
			m := rec.Map()
			m["ACEID"] = "mutated"

			Convey("Then the record itself is not aliased", func() {
				v, _ := rec.Get("ACEID")
				So(v, ShouldEqual, "X1")
			})
		})

		Convey("When Set is called on a record without fields", func() {
			empty := model.NormalizedRecord{}
			empty.Set("k", "v")

			Convey("Then the field map is created", func() {
				v, ok := empty.Get("k")
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, "v")
			})
		})
	})
}

func TestBatchReport(t *testing.T) {
	Convey("Given a batch report", t, func() {
		r := model.BatchReport{Source: "ace"}

		Convey("When transitions are added", func() {
			r.Add(model.TransitionInserted)
			r.Add(model.TransitionInserted)
			r.Add(model.TransitionUnchanged)
			r.Add(model.TransitionSuperseded)

			Convey("Then each kind is counted", func() {
				So(r.Inserted, ShouldEqual, 2)
				So(r.Unchanged, ShouldEqual, 1)
				So(r.Superseded, ShouldEqual, 1)
			})
		})
	})
}

func TestJobDone(t *testing.T) {
	Convey("Given jobs in each state", t, func() {
		So((&model.Job{State: model.JobPending}).Done(), ShouldBeFalse)
		So((&model.Job{State: model.JobStarted}).Done(), ShouldBeFalse)
		So((&model.Job{State: model.JobSuccess}).Done(), ShouldBeTrue)
		So((&model.Job{State: model.JobFailure}).Done(), ShouldBeTrue)
	})
}
