package enrichment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dev-mohitbeniwal/bouncer/model"
)

const (
	transformLowercase = "lowercase"
	transformUppercase = "uppercase"
	transformString    = "string"
	transformMask      = "mask"
	transformHash      = "hash"
)

var knownTransforms = map[string]bool{
	"":                 true,
	transformLowercase: true,
	transformUppercase: true,
	transformString:    true,
	transformMask:      true,
	transformHash:      true,
}

// sortRules orders ingestion rules by descending priority, keeping declared
// order for equal priorities.
func sortRules(rules []model.IngestionRule) []model.IngestionRule {
	out := append([]model.IngestionRule(nil), rules...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// splitSource splits "<sourceID>.<field path>". A bare ID selects the whole
// source document.
func splitSource(source string) (string, string) {
	id, path, _ := strings.Cut(source, ".")
	return id, path
}

// applyIngestionRules writes source values into ctxOut. Rules must already
// be sorted; the first rule to write a target wins.
func applyIngestionRules(
	rules []model.IngestionRule,
	g grants,
	doc map[string]interface{},
	sources map[string]*model.ContextSource,
	ctxOut map[string]interface{},
) []string {
	var diagnostics []string
	written := make(map[string]string, len(rules))

	for _, rule := range rules {
		if !rule.Enabled || rule.Target == "" {
			continue
		}
		if owner, taken := written[rule.Target]; taken {
			diagnostics = append(diagnostics,
				fmt.Sprintf("ingestion rule %s skipped: target %s already written by %s", rule.ID, rule.Target, owner))
			continue
		}
		if !g.hasAll(rule.Permissions) {
			continue
		}
		if !conditionsHold(rule.Conditions, doc) {
			continue
		}

		sourceID, path := splitSource(rule.Source)
		src, ok := sources[sourceID]
		if !ok {
			continue
		}

		var value interface{} = src.Data
		if path != "" {
			v, found := lookupPath(src.Data, path)
			if !found {
				continue
			}
			value = v
		}

		ctxOut[rule.Target] = transformValue(rule.Transform, value)
		written[rule.Target] = rule.ID
	}
	return diagnostics
}

func transformValue(transform string, v interface{}) interface{} {
	switch transform {
	case transformLowercase:
		return strings.ToLower(fmt.Sprint(v))
	case transformUppercase:
		return strings.ToUpper(fmt.Sprint(v))
	case transformString:
		return fmt.Sprint(v)
	case transformMask:
		return maskValue(v)
	case transformHash:
		return hashValue(v)
	default:
		return v
	}
}
