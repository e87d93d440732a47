package enrichment

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	bouncer_errors "github.com/dev-mohitbeniwal/bouncer/errors"
	logger "github.com/dev-mohitbeniwal/bouncer/logging"
	"github.com/dev-mohitbeniwal/bouncer/model"
)

// RulesFile is the on-disk form of the enrichment configuration.
type RulesFile struct {
	RolePermissions map[string][]string         `yaml:"role_permissions"`
	Policies        []model.SecurityPolicy      `yaml:"policies"`
	Sources         []model.ContextSourceConfig `yaml:"sources"`
	IngestionRules  []model.IngestionRule       `yaml:"ingestion_rules"`
}

// LoadPolicyFile reads and validates a YAML rules file.
func LoadPolicyFile(path string) (*RulesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bouncer_errors.ErrInvalidRulesFile, err)
	}
	rf, err := ParsePolicyFile(data)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded security rules",
		zap.String("path", path),
		zap.Int("policies", len(rf.Policies)),
		zap.Int("sources", len(rf.Sources)),
		zap.Int("ingestionRules", len(rf.IngestionRules)))
	return rf, nil
}

func ParsePolicyFile(data []byte) (*RulesFile, error) {
	var rf RulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("%w: %v", bouncer_errors.ErrInvalidRulesFile, err)
	}
	if err := rf.Validate(); err != nil {
		return nil, err
	}
	return &rf, nil
}

func (rf *RulesFile) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", bouncer_errors.ErrInvalidRulesFile, fmt.Sprintf(format, args...))
	}

	seen := make(map[string]bool, len(rf.Sources))
	for i, src := range rf.Sources {
		if src.ID == "" {
			return invalid("source at index %d has no id", i)
		}
		if seen[src.ID] {
			return invalid("duplicate source id %s", src.ID)
		}
		seen[src.ID] = true
		switch src.Type {
		case model.SourceAPI, model.SourceDatabase, model.SourceFile, model.SourceStream:
		default:
			return invalid("source %s has unknown type %q", src.ID, src.Type)
		}
	}

	for _, p := range rf.Policies {
		if p.ID == "" {
			return invalid("policy without id")
		}
		for i, r := range p.Rules {
			switch r.Type {
			case model.RuleAllow, model.RuleDeny:
			case model.RuleMask, model.RuleEncrypt:
				if r.Action == "" {
					return invalid("policy %s rule %d: %s rule needs a field pattern in action", p.ID, i, r.Type)
				}
			default:
				return invalid("policy %s rule %d has unknown type %q", p.ID, i, r.Type)
			}
			if err := validateCondition(r.Condition); err != nil {
				return invalid("policy %s rule %d: %v", p.ID, i, err)
			}
		}
	}

	for _, r := range rf.IngestionRules {
		if r.ID == "" || r.Target == "" {
			return invalid("ingestion rule needs id and target")
		}
		if sourceID, _ := splitSource(r.Source); !seen[sourceID] {
			return invalid("ingestion rule %s references unknown source %q", r.ID, sourceID)
		}
		if !knownTransforms[r.Transform] {
			return invalid("ingestion rule %s has unknown transform %q", r.ID, r.Transform)
		}
		for _, c := range r.Conditions {
			if err := validateCondition(c); err != nil {
				return invalid("ingestion rule %s: %v", r.ID, err)
			}
		}
	}
	return nil
}

func validateCondition(c model.Condition) error {
	if !knownOperators[c.Operator] {
		return fmt.Errorf("unknown operator %q", c.Operator)
	}
	for _, sub := range append(append([]model.Condition(nil), c.All...), c.Any...) {
		if err := validateCondition(sub); err != nil {
			return err
		}
	}
	return nil
}
