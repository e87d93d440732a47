package evaluator

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dev-mohitbeniwal/bouncer/model"
)

type resultKind int

const (
	resultAbsent resultKind = iota
	resultBoolean
	resultNamespaced
	resultFlat
	resultUnrecognized
)

const (
	mainNamespace      = "main"
	manipulatedDataKey = "manipulated_data"
	maskedDataKey      = "masked_data"
	allowKey           = "allow"
	reasonKey          = "reason"
)

// upstreamResult is the decoded "result" member of a decision response, one
// variant per shape the decision service is known to return.
type upstreamResult struct {
	kind    resultKind
	boolean bool
	object  map[string]interface{}
	typeOf  string
}

// decodeResult is the single dispatch point over result shapes. Order
// matters: a namespaced object is only recognized when its main
// sub-object carries allow or reason; every other object is flat.
func decodeResult(raw json.RawMessage) upstreamResult {
	if len(raw) == 0 || string(raw) == "null" {
		return upstreamResult{kind: resultAbsent}
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return upstreamResult{kind: resultUnrecognized, typeOf: "invalid json"}
	}

	switch value := v.(type) {
	case nil:
		return upstreamResult{kind: resultAbsent}
	case bool:
		return upstreamResult{kind: resultBoolean, boolean: value}
	case map[string]interface{}:
		if main, ok := value[mainNamespace].(map[string]interface{}); ok {
			_, hasAllow := main[allowKey]
			_, hasReason := main[reasonKey]
			if hasAllow || hasReason {
				return upstreamResult{kind: resultNamespaced, object: value}
			}
		}
		return upstreamResult{kind: resultFlat, object: value}
	default:
		return upstreamResult{kind: resultUnrecognized, typeOf: jsonTypeName(value)}
	}
}

func (r upstreamResult) toDecision(now time.Time) *model.Decision {
	switch r.kind {
	case resultBoolean:
		return &model.Decision{
			Allow:       r.boolean,
			Reason:      synthesizeReason(r.boolean),
			EvaluatedAt: now,
		}

	case resultNamespaced:
		main := r.object[mainNamespace].(map[string]interface{})
		allow := asBool(main[allowKey])
		d := &model.Decision{
			Allow:       allow,
			Reason:      asString(main[reasonKey]),
			MaskedData:  firstManipulatedData(r.object),
			EvaluatedAt: now,
		}
		if d.Reason == "" {
			d.Reason = synthesizeReason(allow)
		}
		for k, v := range r.object {
			if k == mainNamespace {
				continue
			}
			if d.Extra == nil {
				d.Extra = make(map[string]interface{})
			}
			d.Extra[k] = v
		}
		return d

	case resultFlat:
		allow := asBool(r.object[allowKey])
		d := &model.Decision{
			Allow:       allow,
			Reason:      asString(r.object[reasonKey]),
			MaskedData:  r.object[maskedDataKey],
			EvaluatedAt: now,
		}
		if d.Reason == "" {
			d.Reason = synthesizeReason(allow)
		}
		for k, v := range r.object {
			if k == allowKey || k == reasonKey || k == maskedDataKey {
				continue
			}
			if d.Extra == nil {
				d.Extra = make(map[string]interface{})
			}
			d.Extra[k] = v
		}
		return d

	case resultAbsent:
		d := model.NewDenyDecision("decision service returned no result", model.FailureNoResult)
		d.EvaluatedAt = now
		return d

	default:
		d := model.NewDenyDecision(
			fmt.Sprintf("decision service returned unrecognized result type %s", r.typeOf),
			model.FailureUnrecognizedResult)
		d.EvaluatedAt = now
		return d
	}
}

// firstManipulatedData returns a top-level manipulated_data value, or else
// the first one found in a sibling namespace, scanning namespaces by name.
// Later matches are ignored.
func firstManipulatedData(object map[string]interface{}) interface{} {
	if v, ok := object[manipulatedDataKey]; ok {
		return v
	}
	names := make([]string, 0, len(object))
	for k := range object {
		if k != mainNamespace {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		ns, ok := object[name].(map[string]interface{})
		if !ok {
			continue
		}
		if v, ok := ns[manipulatedDataKey]; ok {
			return v
		}
	}
	return nil
}

func synthesizeReason(allow bool) string {
	if allow {
		return "allowed by policy"
	}
	return "denied by policy"
}

func asBool(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func jsonTypeName(v interface{}) string {
	switch v.(type) {
	case string:
		return "string"
	case float64:
		return "number"
	case []interface{}:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}
