package flatten_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/okian/xsrledger/internal/domain/flatten"
	. "github.com/smartystreets/goconvey/convey"
)

const sampleUpdate = `<update Database="Courses">
  <versions Chapter="Navy" Count="6">
    <version AceID="NV-1511-0022">
      <titles>
        <title Precedence="prime">Naval</title>
      </titles>
    </version>
  </versions>
</update>`

func TestExtractXML(t *testing.T) {
	Convey("Given an XML update document", t, func() {
		Convey("When extracting version nodes", func() {
			out, err := flatten.ExtractXML(strings.NewReader(sampleUpdate), "version")

			Convey("Then attributes seed the mapping and text children merge their attributes", func() {
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, 1)
				So(out[0]["AceID"], ShouldEqual, "NV-1511-0022")
				So(out[0]["titles"], ShouldResemble, flatten.Mapping{
					"title": flatten.Mapping{"title": "Naval", "Precedence": "prime"},
				})
			})
		})

		Convey("When a child tag occurs more than once", func() {
			doc := `<r><version><titles><title Precedence="prime">A</title><title>B</title><title>C</title></titles></version></r>`
			out, err := flatten.ExtractXML(strings.NewReader(doc), "version")

			Convey("Then it becomes a repeated group in document order", func() {
				So(err, ShouldBeNil)
				titles := out[0]["titles"].(flatten.Mapping)
				So(titles["title"], ShouldResemble, []any{
					flatten.Mapping{"title": "A", "Precedence": "prime"},
					flatten.Mapping{"title": "B"},
					flatten.Mapping{"title": "C"},
				})
			})
		})

		Convey("When a single child is configured as repeated", func() {
			doc := `<r><version><group AcadLevel="L"/></version></r>`
			out, err := flatten.ExtractXML(strings.NewReader(doc), "version", flatten.WithRepeated("group"))

			Convey("Then it is still a list", func() {
				So(err, ShouldBeNil)
				So(out[0]["group"], ShouldResemble, []any{flatten.Mapping{"AcadLevel": "L"}})
			})
		})

		Convey("When a child has neither text nor attributes", func() {
			doc := `<r><version><empty/><loc Code="X"/></version></r>`
			out, err := flatten.ExtractXML(strings.NewReader(doc), "version")

			Convey("Then it stores an empty mapping, attribute-only children keep attributes", func() {
				So(err, ShouldBeNil)
				So(out[0]["empty"], ShouldResemble, flatten.Mapping{})
				So(out[0]["loc"], ShouldResemble, flatten.Mapping{"Code": "X"})
			})
		})

		Convey("When nesting goes deeper than four levels", func() {
			doc := `<r><version><l2><l3><l4 A="1"><l5 B="2"/></l4></l3></l2></version></r>`
			out, err := flatten.ExtractXML(strings.NewReader(doc), "version")

			Convey("Then the fifth level is ignored", func() {
				So(err, ShouldBeNil)
				So(out[0], ShouldResemble, flatten.Mapping{
					"l2": flatten.Mapping{"l3": flatten.Mapping{"l4": flatten.Mapping{"A": "1"}}},
				})
			})

			Convey("And a smaller bound cuts earlier", func() {
				out, err := flatten.ExtractXML(strings.NewReader(doc), "version", flatten.WithMaxDepth(2))
				So(err, ShouldBeNil)
				So(out[0], ShouldResemble, flatten.Mapping{"l2": flatten.Mapping{}})
			})
		})

		Convey("When there are several matching nodes", func() {
			doc := `<r><version AceID="1"/><x><version AceID="2"/></x><version AceID="3"/></r>`
			out, err := flatten.ExtractXML(strings.NewReader(doc), "version")

			Convey("Then output follows document order", func() {
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, 3)
				So(out[0]["AceID"], ShouldEqual, "1")
				So(out[1]["AceID"], ShouldEqual, "2")
				So(out[2]["AceID"], ShouldEqual, "3")
			})
		})

		Convey("When no node matches", func() {
			out, err := flatten.ExtractXML(strings.NewReader(sampleUpdate), "course")

			Convey("Then the result is empty, not an error", func() {
				So(err, ShouldBeNil)
				So(out, ShouldBeEmpty)
			})
		})
	})
}

func TestExtractXMLMalformed(t *testing.T) {
	Convey("Given malformed XML", t, func() {
		cases := map[string]string{
			"mismatched tags": `<version><a></version>`,
			"truncated":       `<version><a>`,
			"empty input":     ``,
			"two roots":       `<a/><b/>`,
		}
		for name, doc := range cases {
			Convey("When the input is "+name, func() {
				out, err := flatten.ExtractXML(strings.NewReader(doc), "version")

				Convey("Then extraction fails fast without partial output", func() {
					So(out, ShouldBeNil)
					So(errors.Is(err, flatten.ErrMalformedTree), ShouldBeTrue)
					var mte *flatten.MalformedTreeError
					So(errors.As(err, &mte), ShouldBeTrue)
					So(mte.Format, ShouldEqual, "xml")
				})
			})
		}
	})
}

func TestExtractJSON(t *testing.T) {
	Convey("Given a nested JSON payload", t, func() {
		doc := `{"versions":[{"ACEID":"X1","VerNum":0,"courses":[{"CourseNumber":"C1"}],"tags":["a","b"]}]}`

		Convey("When extracting versions", func() {
			out, err := flatten.ExtractJSON(strings.NewReader(doc), "versions")

			Convey("Then arrays are repeated groups even with one element", func() {
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, 1)
				So(out[0]["ACEID"], ShouldEqual, "X1")
				So(out[0]["VerNum"], ShouldEqual, json.Number("0"))
				So(out[0]["courses"], ShouldResemble, []any{flatten.Mapping{"CourseNumber": "C1"}})
				So(out[0]["tags"], ShouldResemble, []any{"a", "b"})
			})
		})

		Convey("When the JSON is malformed", func() {
			out, err := flatten.ExtractJSON(strings.NewReader(`{"versions": [`), "versions")

			Convey("Then a MalformedTreeError is returned", func() {
				So(out, ShouldBeNil)
				So(errors.Is(err, flatten.ErrMalformedTree), ShouldBeTrue)
			})
		})

		Convey("When the top level is a scalar", func() {
			_, err := flatten.ParseJSON(strings.NewReader(`"just a string"`))

			Convey("Then it is rejected", func() {
				So(errors.Is(err, flatten.ErrMalformedTree), ShouldBeTrue)
			})
		})

		Convey("When trailing data follows the document", func() {
			_, err := flatten.DecodeJSONBytes([]byte(`{} {}`))

			Convey("Then it is rejected", func() {
				So(errors.Is(err, flatten.ErrMalformedTree), ShouldBeTrue)
			})
		})
	})
}

func TestCollapse(t *testing.T) {
	Convey("Given XML shaped mappings", t, func() {
		doc := `<r><version AceID="X1">
			<courses><course CourseNumber="C1"/><course CourseNumber="C2"/></courses>
			<titles><title Precedence="prime">Naval</title></titles>
			<objective>Learn things</objective>
		</version></r>`
		out, err := flatten.ExtractXML(strings.NewReader(doc), "version")
		So(err, ShouldBeNil)

		Convey("When collapsing plural wrappers", func() {
			c := flatten.Collapse(out[0])

			Convey("Then wrappers become lists", func() {
				So(c["courses"], ShouldResemble, []any{
					flatten.Mapping{"CourseNumber": "C1"},
					flatten.Mapping{"CourseNumber": "C2"},
				})
				So(c["titles"], ShouldResemble, []any{
					flatten.Mapping{"title": "Naval", "Precedence": "prime"},
				})
				So(c["AceID"], ShouldEqual, "X1")
			})

			Convey("And text-only leaves unwrap to their text", func() {
				So(c["objective"], ShouldEqual, "Learn things")
			})

			Convey("And the input is untouched", func() {
				_, isMap := out[0]["courses"].(flatten.Mapping)
				So(isMap, ShouldBeTrue)
			})
		})
	})
}
