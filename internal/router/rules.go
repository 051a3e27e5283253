// internal/router/rules.go
package router

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"macro-pipeline/internal/models"
)

// ruleSpec is the YAML form of a rule, for operators who want to tune the
// table without recompiling. Order in the file is priority order.
type ruleSpec struct {
	Target          string   `yaml:"target"`
	Confidence      float64  `yaml:"confidence"`
	Reason          string   `yaml:"reason"`
	RequiresPayload bool     `yaml:"requires_payload"`
	Patterns        []string `yaml:"patterns"`
}

var validTargets = map[string]models.RouteTarget{
	"logging":  models.TargetLogging,
	"question": models.TargetQuestion,
	"feedback": models.TargetFeedback,
	"general":  models.TargetGeneral,
}

// LoadRules parses a YAML rule table. The last rule must be a catch-all
// (no patterns, no payload requirement) so routing can never fail.
func LoadRules(data []byte) ([]Rule, error) {
	var specs []ruleSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("rule table is empty")
	}

	rules := make([]Rule, len(specs))
	for i, spec := range specs {
		target, ok := validTargets[spec.Target]
		if !ok {
			return nil, fmt.Errorf("rule %d: unknown target %q", i+1, spec.Target)
		}
		if spec.Confidence <= 0 || spec.Confidence > 1 {
			return nil, fmt.Errorf("rule %d: confidence must be in (0,1], got %v", i+1, spec.Confidence)
		}

		patterns := make([]*regexp.Regexp, len(spec.Patterns))
		for j, expr := range spec.Patterns {
			p, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("rule %d pattern %d: %w", i+1, j+1, err)
			}
			patterns[j] = p
		}

		rules[i] = Rule{
			Target:          target,
			Confidence:      spec.Confidence,
			Reason:          spec.Reason,
			RequiresPayload: spec.RequiresPayload,
			Patterns:        patterns,
		}
	}

	last := rules[len(rules)-1]
	if len(last.Patterns) > 0 || last.RequiresPayload {
		return nil, fmt.Errorf("last rule must be an unconditional catch-all")
	}

	return rules, nil
}
