package normalize

import (
	"bytes"
	"fmt"

	"github.com/okian/xsrledger/internal/domain/flatten"
	"github.com/okian/xsrledger/internal/domain/model"
)

// envelope is an optional single wrapper some feeds put around the payload.
const envelope = "update"

// xmlDepth leaves room for the wrapper element XML puts around every list,
// down to groups/group/subjects/subject.
const xmlDepth = 6

// Result is the output of one normalization pass.
type Result struct {
	Records []model.NormalizedRecord
	Drops   []model.Drop
}

// Normalizer applies one Variant to payloads.
type Normalizer struct {
	variant Variant
}

// New returns a Normalizer for v.
func New(v Variant) *Normalizer {
	return &Normalizer{variant: v}
}

// Variant returns the strategy in use.
func (n *Normalizer) Variant() Variant { return n.variant }

// Normalize decodes a JSON payload and normalizes it. Malformed JSON fails
// the whole payload with a *flatten.MalformedTreeError.
func (n *Normalizer) Normalize(payload []byte) (Result, error) {
	tree, err := flatten.DecodeJSONBytes(payload)
	if err != nil {
		return Result{}, err
	}
	return n.NormalizeTree(tree), nil
}

// NormalizeXML extracts the variant's record elements from an XML payload,
// collapses wrapper elements into lists and normalizes the result.
func (n *Normalizer) NormalizeXML(payload []byte) (Result, error) {
	root, err := flatten.ParseXML(bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	outer := flatten.Extract(root, n.variant.XMLRecordTag, flatten.WithMaxDepth(xmlDepth))
	list := make([]any, 0, len(outer))
	for _, m := range outer {
		list = append(list, flatten.Collapse(m))
	}
	return n.NormalizeTree(map[string]any{n.variant.RecordPath[0]: list}), nil
}

// NormalizeTree normalizes an already decoded payload. Records that miss
// their path, a meta field or a derivation input are reported as drops.
func (n *Normalizer) NormalizeTree(tree any) Result {
	var res Result

	root, ok := tree.(map[string]any)
	if !ok {
		res.Drops = append(res.Drops, model.Drop{Reason: model.DropMissingPath, Identifier: n.variant.RecordPath[0], Detail: "payload is not an object"})
		return res
	}
	if inner, ok := root[envelope].(map[string]any); ok && len(root) == 1 {
		root = inner
	}

	outerKey, innerKey := n.variant.RecordPath[0], n.variant.RecordPath[1]
	raw, ok := lookup(root, outerKey)
	outer, isList := asList(raw)
	if !ok || !isList {
		res.Drops = append(res.Drops, model.Drop{Reason: model.DropMissingPath, Identifier: outerKey})
		return res
	}

	for i, o := range outer {
		parent, ok := o.(map[string]any)
		if !ok {
			res.Drops = append(res.Drops, model.Drop{Reason: model.DropMissingPath, Identifier: fmt.Sprintf("%s[%d]", outerKey, i)})
			continue
		}
		parentID := text(lookupOr(parent, "ACEID", fmt.Sprintf("%s[%d]", outerKey, i)))

		rawInner, ok := lookup(parent, innerKey)
		inner, isList := asList(rawInner)
		if !ok || !isList {
			res.Drops = append(res.Drops, model.Drop{Reason: model.DropMissingPath, Identifier: parentID, Detail: innerKey})
			continue
		}

		meta, missing := n.collectMeta(parent)
		for j, r := range inner {
			id := fmt.Sprintf("%s/%s[%d]", parentID, innerKey, j)
			rec, ok := r.(map[string]any)
			if !ok {
				res.Drops = append(res.Drops, model.Drop{Reason: model.DropMissingPath, Identifier: id})
				continue
			}
			if missing != "" {
				res.Drops = append(res.Drops, model.Drop{Reason: model.DropMissingMeta, Identifier: id, Detail: missing})
				continue
			}
			out, err := n.build(rec, meta)
			if err != nil {
				res.Drops = append(res.Drops, model.Drop{Reason: model.DropMissingDerived, Identifier: id, Detail: err.Error()})
				continue
			}
			res.Records = append(res.Records, out)
		}
	}
	return res
}

// collectMeta copies the variant's meta fields from the outer element. It
// returns the first missing field name, if any.
func (n *Normalizer) collectMeta(parent map[string]any) (map[string]any, string) {
	meta := make(map[string]any, len(n.variant.MetaFields))
	for _, f := range n.variant.MetaFields {
		v, ok := lookup(parent, f)
		if !ok {
			return nil, f
		}
		meta[f] = v
	}
	return meta, ""
}

func (n *Normalizer) build(rec, meta map[string]any) (model.NormalizedRecord, error) {
	d, err := n.variant.derive(rec, meta)
	if err != nil {
		return model.NormalizedRecord{}, err
	}

	fields := make(map[string]any, len(meta)+len(rec))
	for k, v := range meta {
		fields[k] = v
	}
	// record level values win over parent values with the same name
	for k, v := range rec {
		fields[k] = v
	}
	titlesRaw := fields[model.FieldTitles]
	groupsRaw, hasGroups := rec[model.FieldGroups]
	if !hasGroups {
		groupsRaw = meta[model.FieldGroups]
	}
	delete(fields, model.FieldTitles)
	delete(fields, model.FieldGroups)
	// key fields are read by exact name downstream
	for _, k := range n.variant.KeyFields {
		if _, ok := fields[k]; ok {
			continue
		}
		if v, ok := lookup(fields, k); ok {
			fields[k] = v
		}
	}

	titles := AssembleTitles(titlesRaw)
	areas := expandAreas(groupsRaw, areaBase{
		version:       d.version,
		startDate:     ParseYYYYMM(meta["StartDateYYYYMM"]),
		endDate:       ParseYYYYMM(meta["EndDateYYYYMM"]),
		lastUpdatedOn: NormalizeTimestamp(meta["LastUpdatedOn"]),
		experienceID:  d.experienceID,
		titles:        titles,
		skillLevel:    d.skillLevel,
		aceID:         meta["ACEID"],
	})

	return model.NormalizedRecord{
		Variant:      n.variant.Name,
		ExperienceID: d.experienceID,
		Description:  d.description,
		Requirements: d.requirements,
		Titles:       titles,
		Groups:       areas,
		KeyVal:       d.keyVal,
		Fields:       fields,
	}, nil
}
