package enrichment

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/dev-mohitbeniwal/bouncer/model"
)

const (
	opEquals    = "equals"
	opNotEquals = "not_equals"
	opIn        = "in"
	opNotIn     = "not_in"
	opContains  = "contains"
	opExists    = "exists"
	opNotExists = "not_exists"
	opPrefix    = "prefix"
)

var knownOperators = map[string]bool{
	"":          true,
	opEquals:    true,
	opNotEquals: true,
	opIn:        true,
	opNotIn:     true,
	opContains:  true,
	opExists:    true,
	opNotExists: true,
	opPrefix:    true,
}

// lookupPath resolves a dotted path ("user.attributes.department") against a
// nested document.
func lookupPath(doc map[string]interface{}, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}
	var cur interface{} = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// evaluateCondition reports whether c holds against doc. The zero Condition
// always holds; All and Any are combined with the leaf test by AND.
func evaluateCondition(c model.Condition, doc map[string]interface{}) bool {
	for _, sub := range c.All {
		if !evaluateCondition(sub, doc) {
			return false
		}
	}
	if len(c.Any) > 0 {
		matched := false
		for _, sub := range c.Any {
			if evaluateCondition(sub, doc) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if c.Field == "" {
		return true
	}

	actual, found := lookupPath(doc, c.Field)
	switch c.Operator {
	case opExists:
		return found && actual != nil
	case opNotExists:
		return !found || actual == nil
	case "", opEquals:
		return found && valuesEqual(actual, c.Value)
	case opNotEquals:
		return !found || !valuesEqual(actual, c.Value)
	case opIn:
		return found && containsValue(c.Value, actual)
	case opNotIn:
		return !found || !containsValue(c.Value, actual)
	case opContains:
		if !found {
			return false
		}
		if s, ok := actual.(string); ok {
			return strings.Contains(s, fmt.Sprint(c.Value))
		}
		return containsValue(actual, c.Value)
	case opPrefix:
		s, ok := actual.(string)
		return found && ok && strings.HasPrefix(s, fmt.Sprint(c.Value))
	default:
		return false
	}
}

func conditionsHold(conds []model.Condition, doc map[string]interface{}) bool {
	for _, c := range conds {
		if !evaluateCondition(c, doc) {
			return false
		}
	}
	return true
}

// valuesEqual compares numbers by value regardless of their decoded type
// (YAML ints against JSON float64) and everything else structurally.
func valuesEqual(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

func containsValue(list, v interface{}) bool {
	rv := reflect.ValueOf(list)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if valuesEqual(rv.Index(i).Interface(), v) {
			return true
		}
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
